package data

import (
	"math"
	"math/rand"
	"strconv"

	"battery-dispatch/internal/model"
)

// Synthetic generates a plausible residential week: a PV bell curve around
// noon, morning and evening load peaks and a two-tier price with evening
// peaks. The same seed always yields the same horizon.
func Synthetic(hours int, peakPV float64, seed int64) (*model.Horizon, error) {
	rng := rand.New(rand.NewSource(seed))
	labels := make([]string, hours)
	pv := make([]float64, hours)
	load := make([]float64, hours)
	price := make([]float64, hours)

	for i := 0; i < hours; i++ {
		hod := i % 24
		labels[i] = strconv.Itoa(i + 1)

		// Daylight between 06:00 and 20:00; cloudiness varies by day.
		if hod >= 6 && hod <= 20 {
			cloud := 0.6 + 0.4*rng.Float64()
			pv[i] = roundTo(peakPV*cloud*math.Sin(math.Pi*float64(hod-6)/14), 2)
		}

		base := 0.4 + 0.2*rng.Float64()
		switch {
		case hod >= 6 && hod <= 8:
			base += 1.5
		case hod >= 17 && hod <= 22:
			base += 2.5
		}
		load[i] = roundTo(base, 1)

		switch {
		case hod >= 17 && hod <= 21:
			price[i] = 0.32
		case hod >= 7 && hod <= 16:
			price[i] = 0.18
		default:
			price[i] = 0.09
		}
	}
	return model.NewHorizon(labels, pv, load, price)
}
