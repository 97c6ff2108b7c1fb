package data

import (
	"fmt"
	"path/filepath"
	"strings"

	"battery-dispatch/internal/config"
	"battery-dispatch/internal/model"
)

const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Load reads the horizon described by an input config section.
func Load(in config.InputConfig) (*model.Horizon, error) {
	if in.Path == "" {
		return nil, fmt.Errorf("input.path is required")
	}
	format := strings.ToLower(in.Format)
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(in.Path)), ".")
	}
	switch format {
	case FormatXLSX, "xlsm":
		return LoadXLSX(in.Path, LayoutFromConfig(in))
	case FormatCSV:
		return LoadCSV(in.Path)
	case FormatJSON:
		return LoadJSON(in.Path)
	default:
		return nil, fmt.Errorf("unsupported input format %q (want xlsx, csv or json)", format)
	}
}

// LayoutFromConfig applies the config's sheet settings over DefaultSheetLayout.
func LayoutFromConfig(in config.InputConfig) SheetLayout {
	l := DefaultSheetLayout()
	l.Sheet = in.Sheet
	if in.StartRow != 0 {
		l.StartRow = in.StartRow
	}
	if in.Rows != 0 {
		l.Rows = in.Rows
	}
	if in.Columns.Hour != "" {
		l.HourCol = strings.ToUpper(in.Columns.Hour)
	}
	if in.Columns.PV != "" {
		l.PVCol = strings.ToUpper(in.Columns.PV)
	}
	if in.Columns.Load != "" {
		l.LoadCol = strings.ToUpper(in.Columns.Load)
	}
	if in.Columns.Price != "" {
		l.PriceCol = strings.ToUpper(in.Columns.Price)
	}
	if in.LoadDecimals != nil {
		l.LoadDecimals = *in.LoadDecimals
	}
	return l
}
