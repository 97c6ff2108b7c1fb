package report

import (
	"fmt"
	"image/color"
	"path/filepath"

	"battery-dispatch/internal/ledger"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Chart file names written by WriteCharts.
const (
	ChartDegradation = "1_battery_degradation.png"
	ChartNetEnergy   = "2_net_energy_consumption.png"
	ChartIndicators  = "3_charge_discharge_indicators.png"
	ChartCumulative  = "4_cumulative_cost.png"
	ChartTotals      = "5_total_cost.png"
)

var (
	colorWith   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorNo     = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	colorCharge = color.RGBA{G: 160, A: 255}
	colorDisch  = color.RGBA{R: 220, A: 255}
	colorInvest = color.RGBA{R: 240, G: 200, A: 255}
	chartWidth  = 12 * vg.Inch
	chartHeight = 6 * vg.Inch
)

// WriteCharts renders the five comparison charts into dir and returns the
// paths written.
func WriteCharts(dir string, res *ledger.Result) ([]string, error) {
	if res == nil || len(res.Rows) == 0 {
		return nil, fmt.Errorf("nothing to chart")
	}
	charts := []struct {
		name  string
		build func(*ledger.Result) (*plot.Plot, error)
	}{
		{ChartDegradation, degradationChart},
		{ChartNetEnergy, netEnergyChart},
		{ChartIndicators, indicatorChart},
		{ChartCumulative, cumulativeChart},
		{ChartTotals, totalsChart},
	}

	paths := make([]string, 0, len(charts))
	for _, c := range charts {
		p, err := c.build(res)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
		path := filepath.Join(dir, c.name)
		if err := p.Save(chartWidth, chartHeight, path); err != nil {
			return nil, fmt.Errorf("save %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return p
}

func series(rows []ledger.Row, y func(ledger.Row) float64) plotter.XYs {
	pts := make(plotter.XYs, len(rows))
	for i, r := range rows {
		pts[i].X = float64(i + 1)
		pts[i].Y = y(r)
	}
	return pts
}

func addLine(p *plot.Plot, name string, pts plotter.XYs, c color.Color) error {
	l, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	l.LineStyle.Color = c
	l.LineStyle.Width = vg.Points(1.5)
	p.Add(l)
	p.Legend.Add(name, l)
	return nil
}

func degradationChart(res *ledger.Result) (*plot.Plot, error) {
	p := newPlot("Battery degradation", "Time [h]", "Max. capacity [kWh]")
	pts := series(res.Rows, func(r ledger.Row) float64 { return r.CapacityCeiling })
	if err := addLine(p, "Capacity ceiling", pts, colorWith); err != nil {
		return nil, err
	}
	last := res.Rows[len(res.Rows)-1].CapacityCeiling
	p.Y.Min, p.Y.Max = last-4, res.Capacity+1
	return p, nil
}

func netEnergyChart(res *ledger.Result) (*plot.Plot, error) {
	p := newPlot("Net energy drawn from the grid per hour", "Time [h]", "Energy [kWh]")
	if err := addLine(p, "WITH BATTERY STORAGE", series(res.Rows, func(r ledger.Row) float64 { return r.NetGridWithBattery }), colorWith); err != nil {
		return nil, err
	}
	if err := addLine(p, "NO BATTERY STORAGE", series(res.Rows, func(r ledger.Row) float64 { return r.NetGridNoBattery }), colorNo); err != nil {
		return nil, err
	}
	return p, nil
}

func indicatorChart(res *ledger.Result) (*plot.Plot, error) {
	p := newPlot("Charging and discharging on the price curve", "Time [h]", "Price [Eur/kWh]")
	if err := addLine(p, "Price", series(res.Rows, func(r ledger.Row) float64 { return r.Price }), colorWith); err != nil {
		return nil, err
	}

	var charging, discharging plotter.XYs
	for i, r := range res.Rows {
		pt := plotter.XY{X: float64(i + 1), Y: r.Price}
		if r.Charge > 0 {
			charging = append(charging, pt)
		}
		if r.Discharge > 0 {
			discharging = append(discharging, pt)
		}
	}
	for _, m := range []struct {
		name  string
		pts   plotter.XYs
		shape draw.GlyphDrawer
		c     color.Color
	}{
		{"Battery charging", charging, draw.CircleGlyph{}, colorCharge},
		{"Battery discharging", discharging, draw.BoxGlyph{}, colorDisch},
	} {
		if len(m.pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(m.pts)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Shape = m.shape
		s.GlyphStyle.Color = m.c
		s.GlyphStyle.Radius = vg.Points(4)
		p.Add(s)
		p.Legend.Add(m.name, s)
	}
	return p, nil
}

func cumulativeChart(res *ledger.Result) (*plot.Plot, error) {
	p := newPlot("Cumulative cost with and without battery storage", "Time [h]", "Cost [Eur]")
	if err := addLine(p, "WITH BATTERY STORAGE", series(res.Rows, func(r ledger.Row) float64 { return r.CumCostWithBattery }), colorWith); err != nil {
		return nil, err
	}
	if err := addLine(p, "NO BATTERY STORAGE", series(res.Rows, func(r ledger.Row) float64 { return r.CumCostNoBattery }), colorNo); err != nil {
		return nil, err
	}
	return p, nil
}

func totalsChart(res *ledger.Result) (*plot.Plot, error) {
	p := newPlot("Total cost over the horizon", "", "Cost [Eur]")
	p.Legend.Top = false

	bars := []struct {
		name  string
		value float64
		c     color.Color
	}{
		{"WITHOUT battery", res.TotalCostNoBattery, colorNo},
		{"WITH battery", res.TotalCostWithBattery, colorWith},
		{"WITH battery (investment included)", res.TotalCostWithInvestment, colorInvest},
	}
	names := make([]string, len(bars))
	labels := plotter.XYLabels{XYs: make(plotter.XYs, len(bars)), Labels: make([]string, len(bars))}
	for i, b := range bars {
		bc, err := plotter.NewBarChart(plotter.Values{b.value}, vg.Points(80))
		if err != nil {
			return nil, err
		}
		bc.XMin = float64(i)
		bc.Color = b.c
		bc.LineStyle.Width = 0
		p.Add(bc)

		names[i] = b.name
		labels.XYs[i] = plotter.XY{X: float64(i), Y: b.value}
		labels.Labels[i] = fmt.Sprintf("%.2f", places(b.value, 2))
	}
	l, err := plotter.NewLabels(labels)
	if err != nil {
		return nil, err
	}
	p.Add(l)
	p.NominalX(names...)
	return p, nil
}
