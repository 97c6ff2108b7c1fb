package data

import (
	"fmt"
	"strconv"
	"strings"

	"battery-dispatch/internal/model"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// SheetLayout says where the hourly series live in a workbook.
type SheetLayout struct {
	// Sheet defaults to the active sheet.
	Sheet string
	// StartRow is the first data row (1-based); the row above is the header.
	StartRow int
	// Rows is the horizon length. Zero reads until the first empty hour cell.
	Rows int

	HourCol  string
	PVCol    string
	LoadCol  string
	PriceCol string

	// LoadDecimals rounds the load column; negative keeps it as read.
	LoadDecimals int
}

// DefaultSheetLayout is a week of hourly rows starting at row 2 with hour,
// PV, load and price in columns A, B, E and H, load rounded to 0.1 kWh.
func DefaultSheetLayout() SheetLayout {
	return SheetLayout{
		StartRow:     2,
		Rows:         168,
		HourCol:      "A",
		PVCol:        "B",
		LoadCol:      "E",
		PriceCol:     "H",
		LoadDecimals: 1,
	}
}

// LoadXLSX reads a horizon from an Excel workbook.
func LoadXLSX(path string, layout SheetLayout) (*model.Horizon, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheet := layout.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("workbook %s has no sheet %q", path, sheet)
	}
	if layout.StartRow < 1 {
		layout.StartRow = 1
	}

	var (
		labels          []string
		pv, load, price []float64
	)
	raw := excelize.Options{RawCellValue: true}
	for slot := 0; layout.Rows <= 0 || slot < layout.Rows; slot++ {
		row := layout.StartRow + slot
		cell := func(col string) (string, error) {
			v, err := f.GetCellValue(sheet, col+strconv.Itoa(row), raw)
			return strings.TrimSpace(v), err
		}

		hour, err := cell(layout.HourCol)
		if err != nil {
			return nil, fmt.Errorf("%s!%s%d: %w", sheet, layout.HourCol, row, err)
		}
		if hour == "" {
			if layout.Rows <= 0 {
				break
			}
			return nil, &model.InputShapeError{Field: "hour", Want: layout.Rows, Got: slot, Slot: slot, Reason: fmt.Sprintf("row %d is empty", row)}
		}

		vals := make([]float64, 3)
		for k, c := range []struct{ field, col string }{
			{"pv", layout.PVCol},
			{"load", layout.LoadCol},
			{"price", layout.PriceCol},
		} {
			s, err := cell(c.col)
			if err != nil {
				return nil, fmt.Errorf("%s!%s%d: %w", sheet, c.col, row, err)
			}
			v, err := parseNumber(s)
			if err != nil {
				return nil, &model.InputShapeError{Field: c.field, Slot: slot, Reason: fmt.Sprintf("cell %s%d: %v", c.col, row, err)}
			}
			vals[k] = v
		}

		labels = append(labels, hour)
		pv = append(pv, vals[0])
		load = append(load, roundTo(vals[1], layout.LoadDecimals))
		price = append(price, vals[2])
	}

	return model.NewHorizon(labels, pv, load, price)
}

func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("missing value")
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}

func roundTo(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	r, _ := decimal.NewFromFloat(v).Round(int32(places)).Float64()
	return r
}
