package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"battery-dispatch/internal/config"
	"battery-dispatch/internal/data"
	"battery-dispatch/internal/ledger"
	"battery-dispatch/internal/logger"
	"battery-dispatch/internal/planner"

	"github.com/spf13/pflag"
)

// Demo:
// - Generate a synthetic week of PV, load and prices
// - Size the battery automatically and optimize its dispatch
// - Print the first hours of the ledger to show how the pieces fit together
func main() {
	hours := pflag.Int("hours", 168, "Number of hours to generate")
	peakPV := pflag.Float64("peak-pv", 4, "Peak PV output in kW on a clear day")
	seed := pflag.Int64("seed", 1, "Random seed for the synthetic week")
	cfgPath := pflag.String("config", "", "Path to YAML config (optional, battery and solver sections are used)")
	n := pflag.Int("n", 24, "Number of ledger rows to print")
	outCSV := pflag.String("out", "", "Optional path to write ledger CSV (e.g. results/dispatch.csv)")
	pflag.Parse()

	cfg := &config.Config{}
	if *cfgPath != "" {
		loaded, err := config.LoadUnchecked(*cfgPath)
		if err != nil {
			panic(err)
		}
		cfg = loaded
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	h, err := data.Synthetic(*hours, *peakPV, *seed)
	if err != nil {
		panic(err)
	}

	log := logger.Get(cfg.LogLevel)
	start := time.Now()
	res, err := planner.New(log).Run(context.Background(), h, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plan failed after %s: %v\n", time.Since(start).Round(time.Millisecond), err)
		os.Exit(1)
	}

	led := res.Ledger
	fmt.Printf("%-5s %6s %6s %7s %8s %8s %8s %-12s %9s\n",
		"hour", "pv", "load", "price", "charge", "disch", "soc", "action", "cost")
	for i, r := range led.Rows {
		if i >= *n {
			break
		}
		fmt.Printf("%-5s %6.2f %6.2f %7.4f %8.3f %8.3f %8.3f %-12s %9.4f\n",
			r.Label, r.PV, r.Load, r.Price, r.Charge, r.Discharge, r.SoC, r.Action, r.CostWithBattery)
	}
	fmt.Println()
	fmt.Printf("Capacity=%.4f kWh (auto=%v) end capacity=%.4f kWh\n",
		res.Spec.Capacity, res.CapacityAuto, res.Spec.CapacityAtHour(h.Len()-1))
	fmt.Printf("Cost without battery=%.2f with battery=%.2f savings=%.2f verdict=%s\n",
		led.TotalCostNoBattery, led.TotalCostWithBattery, led.Savings, res.Verdict)
	fmt.Printf("Solved %d hours in %s\n", h.Len(), time.Since(start).Round(time.Millisecond))

	if *outCSV != "" {
		if err := os.MkdirAll(filepath.Dir(*outCSV), 0o755); err != nil {
			panic(err)
		}
		if err := ledger.WriteLedgerCSV(*outCSV, led.Rows); err != nil {
			panic(err)
		}
		fmt.Printf("Wrote %d rows to %s\n", len(led.Rows), *outCSV)
	}
}
