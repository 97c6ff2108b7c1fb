package model

import (
	"fmt"
	"math"
)

// HourlyObservation is one slot of the planning horizon.
// Units:
// - PV: kWh produced in the hour
// - Load: kW average demand for the hour (== kWh over one hour)
// - Price: currency per kWh
type HourlyObservation struct {
	Label string
	PV    float64
	Load  float64
	Price float64
}

// Deficit is the energy the site needs from somewhere other than PV.
// Negative values mean PV surplus (export).
func (o HourlyObservation) Deficit() float64 {
	return o.Load - o.PV
}

// Horizon is the fixed, ordered sequence of hourly slots a schedule is planned over.
// It is immutable once built; accessors return copies.
type Horizon struct {
	labels []string
	pv     []float64
	load   []float64
	price  []float64
}

// NewHorizon builds a horizon from four parallel series. The inputs are copied.
func NewHorizon(labels []string, pv, load, price []float64) (*Horizon, error) {
	n := len(labels)
	if n == 0 {
		return nil, &InputShapeError{Field: "hour", Want: 1, Got: 0, Reason: "horizon is empty"}
	}
	for _, s := range []struct {
		name string
		vals []float64
	}{
		{"pv", pv},
		{"load", load},
		{"price", price},
	} {
		if len(s.vals) != n {
			return nil, &InputShapeError{Field: s.name, Want: n, Got: len(s.vals), Reason: "series length mismatch"}
		}
		for i, v := range s.vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &InputShapeError{Field: s.name, Want: n, Got: len(s.vals), Slot: i, Reason: "value is not finite"}
			}
		}
	}
	for i := 0; i < n; i++ {
		if pv[i] < 0 {
			return nil, &InputShapeError{Field: "pv", Want: n, Got: n, Slot: i, Reason: fmt.Sprintf("negative value %v", pv[i])}
		}
		if load[i] < 0 {
			return nil, &InputShapeError{Field: "load", Want: n, Got: n, Slot: i, Reason: fmt.Sprintf("negative value %v", load[i])}
		}
	}

	return &Horizon{
		labels: append([]string(nil), labels...),
		pv:     append([]float64(nil), pv...),
		load:   append([]float64(nil), load...),
		price:  append([]float64(nil), price...),
	}, nil
}

// Len returns the number of hourly slots H.
func (h *Horizon) Len() int { return len(h.labels) }

// At returns the observation for slot i.
func (h *Horizon) At(i int) HourlyObservation {
	return HourlyObservation{
		Label: h.labels[i],
		PV:    h.pv[i],
		Load:  h.load[i],
		Price: h.price[i],
	}
}

// Deficit returns load[i] - pv[i].
func (h *Horizon) Deficit(i int) float64 { return h.load[i] - h.pv[i] }

func (h *Horizon) Labels() []string { return append([]string(nil), h.labels...) }
func (h *Horizon) PV() []float64 { return append([]float64(nil), h.pv...) }
func (h *Horizon) Load() []float64 { return append([]float64(nil), h.load...) }
func (h *Horizon) Prices() []float64 { return append([]float64(nil), h.price...) }

// Observations returns every slot in order.
func (h *Horizon) Observations() []HourlyObservation {
	out := make([]HourlyObservation, h.Len())
	for i := range out {
		out[i] = h.At(i)
	}
	return out
}
