package strategy

import (
	"context"
	"fmt"

	"battery-dispatch/internal/milp"
	"battery-dispatch/internal/model"
)

const (
	NameMILP = "milp"
	NameIdle = "idle"
)

// Strategy turns a horizon and a battery into a dispatch decision.
type Strategy interface {
	Name() string
	Plan(ctx context.Context, h *model.Horizon, spec model.BatterySpec) (*model.DispatchDecision, error)
}

// New returns the strategy registered under name.
func New(name string, opts milp.Options) (Strategy, error) {
	switch name {
	case "", NameMILP:
		return &MILP{Options: opts}, nil
	case NameIdle:
		return Idle{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// Names lists the available strategies.
func Names() []string { return []string{NameMILP, NameIdle} }
