package strategy

import (
	"context"

	"battery-dispatch/internal/model"
)

// Idle never touches the battery. Its cost equals the no-battery baseline.
type Idle struct{}

func (Idle) Name() string { return NameIdle }

func (Idle) Plan(_ context.Context, h *model.Horizon, spec model.BatterySpec) (*model.DispatchDecision, error) {
	d := model.NewDispatchDecision(h.Len())
	copy(d.CapacityCeiling, spec.CapacityCurve(h.Len()))
	for i := 0; i < h.Len(); i++ {
		o := h.At(i)
		d.Objective += o.Price * o.Deficit()
	}
	d.Strategy = NameIdle
	return d, nil
}
