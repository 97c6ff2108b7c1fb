package analysis

import (
	"math"
	"sort"

	"battery-dispatch/internal/model"
)

// Baseline is the no-battery reference for a horizon: what the site pays
// when every deficit is bought from the grid and every surplus is exported
// at the same price.
type Baseline struct {
	Hours int

	NetGrid []float64 // load - pv, kWh
	Cost    []float64 // price * NetGrid
	Total   float64

	// SuggestedCapacity is the worst single-hour deficit. It is a starting
	// point for sizing, not an optimum.
	SuggestedCapacity float64
	PeakHour          int

	MinPrice    float64
	MaxPrice    float64
	MeanPrice   float64
	P05Price    float64
	P95Price    float64
	PriceSpread float64 // P95 - P05
}

func ComputeBaseline(h *model.Horizon) Baseline {
	b := Baseline{}
	if h == nil || h.Len() == 0 {
		return b
	}
	n := h.Len()
	b.Hours = n
	b.NetGrid = make([]float64, n)
	b.Cost = make([]float64, n)
	b.PeakHour = -1

	sum := 0.0
	minv := math.Inf(1)
	maxv := math.Inf(-1)
	prices := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		o := h.At(i)
		b.NetGrid[i] = o.Deficit()
		b.Cost[i] = o.Price * b.NetGrid[i]
		b.Total += b.Cost[i]
		if b.NetGrid[i] > b.SuggestedCapacity {
			b.SuggestedCapacity = b.NetGrid[i]
			b.PeakHour = i
		}

		prices = append(prices, o.Price)
		sum += o.Price
		if o.Price < minv {
			minv = o.Price
		}
		if o.Price > maxv {
			maxv = o.Price
		}
	}
	sort.Float64s(prices)
	b.MinPrice = minv
	b.MaxPrice = maxv
	b.MeanPrice = sum / float64(n)
	b.P05Price = percentileSorted(prices, 0.05)
	b.P95Price = percentileSorted(prices, 0.95)
	b.PriceSpread = b.P95Price - b.P05Price
	return b
}

func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
