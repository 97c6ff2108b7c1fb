package model

// Action is a human-friendly operating mode for a slot.
// Keep these values stable; they are intended for CSV output.
type Action string

const (
	ActionCharging    Action = "CHARGING"
	ActionIdle        Action = "IDLE"
	ActionDischarging Action = "DISCHARGING"
)

// ActionFromFlows classifies a slot by its realized battery flows.
func ActionFromFlows(charge, discharge float64) Action {
	switch {
	case charge > 0:
		return ActionCharging
	case discharge > 0:
		return ActionDischarging
	default:
		return ActionIdle
	}
}
