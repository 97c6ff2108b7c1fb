// Package report renders a finished plan as an Excel workbook and PNG charts.
package report

import (
	"fmt"

	"battery-dispatch/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	sheetName = "Report"

	fillInput    = "ABEBC6"
	fillNoBatt   = "F9E79F"
	fillWithBatt = "85C1E9"
)

type columnGroup struct {
	title    string
	from, to string
	fill     string
	headers  []string
}

var groups = []columnGroup{
	{"Input data", "A", "D", fillInput, []string{
		"Hour",
		"PV production [kWh]",
		"Load [kW]",
		"Price [Eur/kWh]",
	}},
	{"WITHOUT use of a battery", "E", "F", fillNoBatt, []string{
		"Nett ene. consumed from grid [kW]",
		"Cost in given hour [Eur]",
	}},
	{"WITH use of a battery", "G", "K", fillWithBatt, []string{
		"P charging [kW]",
		"P discharging [kW]",
		"SoC (Max. SoC) [kWh]",
		"Nett ene. consumed from grid [kW]",
		"Cost in given hour [Eur]",
	}},
}

// WriteWorkbook saves the hourly ledger and totals to an xlsx file: grouped
// headers in rows 1-2, one row per hour from row 3, then a summary block two
// rows below the last hour.
func WriteWorkbook(path string, res *ledger.Result) error {
	if res == nil {
		return fmt.Errorf("result is nil")
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return err
	}
	if err := writeTable(f, res); err != nil {
		return err
	}
	if err := writeSummary(f, res); err != nil {
		return err
	}
	return f.SaveAs(path)
}

func cellStyle(f *excelize.File, fill string) (int, error) {
	border := func(side string) excelize.Border {
		return excelize.Border{Type: side, Color: "000000", Style: 1}
	}
	return f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
		Border:    []excelize.Border{border("left"), border("right"), border("top"), border("bottom")},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
}

func writeTable(f *excelize.File, res *ledger.Result) error {
	lastRow := len(res.Rows) + 2

	for _, g := range groups {
		if err := f.MergeCell(sheetName, g.from+"1", g.to+"1"); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, g.from+"1", g.title); err != nil {
			return err
		}
		col, _, err := excelize.CellNameToCoordinates(g.from + "1")
		if err != nil {
			return err
		}
		for i, h := range g.headers {
			cell, _ := excelize.CoordinatesToCellName(col+i, 2)
			if err := f.SetCellValue(sheetName, cell, h); err != nil {
				return err
			}
		}
		style, err := cellStyle(f, g.fill)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, g.from+"1", fmt.Sprintf("%s%d", g.to, lastRow), style); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheetName, "A", "K", 16); err != nil {
		return err
	}

	for i, r := range res.Rows {
		values := []any{
			r.Label,
			r.PV,
			r.Load,
			r.Price,
			r.NetGridNoBattery,
			r.CostNoBattery,
			places(r.Charge, 3),
			places(r.Discharge, 3),
			fmt.Sprintf("%s\n(%s)", normalized(r.SoC), normalized(r.CapacityCeiling)),
			places(r.NetGridWithBattery, 2),
			places(r.CostWithBattery, 2),
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, i+3)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeSummary(f *excelize.File, res *ledger.Result) error {
	first := len(res.Rows) + 4
	lines := []struct {
		label string
		value float64
		fill  string
	}{
		{"Battery capacity [kWh]:", res.Capacity, fillInput},
		{"Total energy cost (NO battery storage) [Eur]:", places(res.TotalCostNoBattery, 2), fillNoBatt},
		{"Total energy cost (WITH battery storage) [Eur]:", places(res.TotalCostWithBattery, 2), fillWithBatt},
		{"Battery investment [Eur]:", places(res.InvestmentCost, 2), fillWithBatt},
		{"Total cost (WITH battery, investment included) [Eur]:", places(res.TotalCostWithInvestment, 2), fillWithBatt},
	}
	for i, l := range lines {
		row := first + i
		label, value := fmt.Sprintf("A%d", row), fmt.Sprintf("D%d", row)
		if err := f.MergeCell(sheetName, label, fmt.Sprintf("C%d", row)); err != nil {
			return err
		}
		if err := f.MergeCell(sheetName, value, fmt.Sprintf("E%d", row)); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, label, l.label); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, value, l.value); err != nil {
			return err
		}
		style, err := cellStyle(f, l.fill)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, label, fmt.Sprintf("E%d", row), style); err != nil {
			return err
		}
	}
	return nil
}

// places rounds half away from zero in decimal, so 2.675 becomes 2.68.
func places(v float64, n int32) float64 {
	return decimal.NewFromFloat(v).Round(n).InexactFloat64()
}

// normalized formats v to three decimals without trailing zeros.
func normalized(v float64) string {
	return decimal.NewFromFloat(v).Round(3).String()
}
