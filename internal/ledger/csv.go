package ledger

import (
	"encoding/csv"
	"os"
	"strconv"
)

func WriteLedgerCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"index",
		"hour",
		"pv_kwh",
		"load_kwh",
		"price",
		"net_grid_no_battery_kwh",
		"cost_no_battery",
		"cum_cost_no_battery",
		"action",
		"charge_kwh",
		"discharge_kwh",
		"soc_kwh",
		"capacity_kwh",
		"net_grid_with_battery_kwh",
		"cost_with_battery",
		"cum_cost_with_battery",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		row := []string{
			strconv.Itoa(r.Index),
			r.Label,
			fmtFloat(r.PV),
			fmtFloat(r.Load),
			fmtFloat(r.Price),
			fmtFloat(r.NetGridNoBattery),
			fmtFloat(r.CostNoBattery),
			fmtFloat(r.CumCostNoBattery),
			string(r.Action),
			fmtFloat(r.Charge),
			fmtFloat(r.Discharge),
			fmtFloat(r.SoC),
			fmtFloat(r.CapacityCeiling),
			fmtFloat(r.NetGridWithBattery),
			fmtFloat(r.CostWithBattery),
			fmtFloat(r.CumCostWithBattery),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
