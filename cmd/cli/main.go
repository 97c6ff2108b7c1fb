package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"battery-dispatch/internal/analysis"
	"battery-dispatch/internal/config"
	"battery-dispatch/internal/data"
	"battery-dispatch/internal/ledger"
	"battery-dispatch/internal/logger"
	"battery-dispatch/internal/planner"
	"battery-dispatch/internal/report"

	"github.com/spf13/pflag"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "optimize":
		err = cmdOptimize(ctx, os.Args[2:])
	case "sweep":
		err = cmdSweep(ctx, os.Args[2:])
	case "baseline":
		err = cmdBaseline(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli optimize --config examples/configs/week.yaml [--data week.xlsx] [--capacity 10|auto] [--out results] [--workbook] [--charts]")
	fmt.Println("  cli sweep    --config examples/configs/week.yaml [--capacities 2,5,10] [--concurrency 4]")
	fmt.Println("  cli baseline --data week.xlsx")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - optimize writes ledger.csv to --out, plus report.xlsx and PNG charts with --workbook/--charts")
	fmt.Println("  - sweep ranks capacities by total cost including the battery investment")
}

// commonFlags are shared by optimize and sweep. Set flags override the config file.
type commonFlags struct {
	cfgPath   string
	dataPath  string
	capacity  config.Capacity
	timeLimit time.Duration
	recovery  string
	logLevel  string
}

func (c *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&c.cfgPath, "config", "c", "", "Path to YAML config (optional)")
	fs.StringVarP(&c.dataPath, "data", "d", "", "Input horizon (.xlsx, .csv or .json); overrides input.path")
	fs.Var(&c.capacity, "capacity", `Battery capacity in kWh or "auto"`)
	fs.DurationVar(&c.timeLimit, "time-limit", 0, "Solver wall-clock limit, e.g. 30s")
	fs.StringVar(&c.recovery, "recovery", "", `On solver failure: "abort" or "idle"`)
	fs.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")
}

func (c *commonFlags) load(fs *pflag.FlagSet) (*config.Config, error) {
	cfg := &config.Config{}
	if c.cfgPath != "" {
		loaded, err := config.LoadUnchecked(c.cfgPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if c.dataPath != "" {
		cfg.Input.Path = c.dataPath
		cfg.Input.Format = ""
	}
	if fs.Changed("capacity") {
		cfg.Battery.Capacity = c.capacity
	}
	if c.timeLimit > 0 {
		cfg.Solver.TimeLimit = c.timeLimit
	}
	if c.recovery != "" {
		cfg.Recovery = c.recovery
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func cmdOptimize(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("optimize", pflag.ExitOnError)
	var common commonFlags
	common.register(fs)
	outDir := fs.StringP("out", "o", "", "Output directory; overrides output.dir")
	workbook := fs.Bool("workbook", false, "Also write the xlsx report (output.workbook)")
	charts := fs.Bool("charts", false, "Also write the PNG charts (output.charts)")
	_ = fs.Parse(args)

	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	cfg.Output.Workbook = cfg.Output.Workbook || *workbook
	cfg.Output.Charts = cfg.Output.Charts || *charts
	log := logger.Get(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	h, err := data.Load(cfg.Input)
	if err != nil {
		return err
	}
	log.Infow("loaded horizon", "path", cfg.Input.Path, "hours", h.Len())

	res, err := planner.New(log).Run(ctx, h, cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return err
	}
	written, err := writeOutputs(cfg.Output, res.Ledger)
	if err != nil {
		return err
	}
	for _, p := range written {
		log.Infow("wrote", "path", p)
	}

	led := res.Ledger
	fmt.Printf("Run %s (%s)\n", res.ID, led.Strategy)
	fmt.Printf("Capacity=%.4f kWh auto=%v recovered=%v\n", res.Spec.Capacity, res.CapacityAuto, res.Recovered)
	fmt.Printf("Total cost without battery=%.2f with battery=%.2f savings=%.2f\n",
		led.TotalCostNoBattery, led.TotalCostWithBattery, led.Savings)
	fmt.Printf("Investment=%.2f total with investment=%.2f verdict=%s\n",
		led.InvestmentCost, led.TotalCostWithInvestment, res.Verdict)
	return nil
}

// writeOutputs always writes the ledger CSV; the workbook and charts are opt-in.
func writeOutputs(out config.OutputConfig, led *ledger.Result) ([]string, error) {
	p := filepath.Join(out.Dir, "ledger.csv")
	if err := ledger.WriteLedgerCSV(p, led.Rows); err != nil {
		return nil, err
	}
	written := []string{p}
	if out.Workbook {
		p := filepath.Join(out.Dir, "report.xlsx")
		if err := report.WriteWorkbook(p, led); err != nil {
			return nil, err
		}
		written = append(written, p)
	}
	if out.Charts {
		charts, err := report.WriteCharts(out.Dir, led)
		if err != nil {
			return nil, err
		}
		written = append(written, charts...)
	}
	return written, nil
}

func cmdSweep(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("sweep", pflag.ExitOnError)
	var common commonFlags
	common.register(fs)
	capacities := fs.Float64Slice("capacities", nil, "Capacities to try in kWh; overrides sweep.capacities")
	concurrency := fs.IntP("concurrency", "j", 0, "Candidates solved at once (0 = number of CPUs)")
	_ = fs.Parse(args)

	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	if len(*capacities) > 0 {
		cfg.Sweep.Capacities = *capacities
	}
	if *concurrency > 0 {
		cfg.Sweep.Concurrency = *concurrency
	}
	log := logger.Get(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	h, err := data.Load(cfg.Input)
	if err != nil {
		return err
	}
	cands, err := planner.New(log).Sweep(ctx, h, cfg, nil)
	if err != nil {
		return err
	}

	fmt.Printf("%-4s %12s %14s %12s %14s %16s\n", "rank", "capacity", "with battery", "savings", "investment", "total w/ invest")
	for i, c := range cands {
		if c.Err != nil {
			fmt.Printf("%-4s %12.4f  failed: %v\n", "-", c.Capacity, c.Err)
			continue
		}
		r := c.Result
		fmt.Printf("%-4d %12.4f %14.2f %12.2f %14.2f %16.2f\n",
			i+1, c.Capacity, r.TotalCostWithBattery, r.Savings, r.InvestmentCost, r.TotalCostWithInvestment)
	}
	if len(cands) == 0 || cands[0].Err != nil {
		return errors.New("no capacity could be planned")
	}
	return nil
}

func cmdBaseline(args []string) error {
	fs := pflag.NewFlagSet("baseline", pflag.ExitOnError)
	dataPath := fs.StringP("data", "d", "", "Input horizon (.xlsx, .csv or .json)")
	sheet := fs.String("sheet", "", "Worksheet name for xlsx input (default: first sheet)")
	_ = fs.Parse(args)

	if *dataPath == "" {
		return errors.New("--data is required")
	}
	cfg := &config.Config{Input: config.InputConfig{Path: *dataPath, Sheet: *sheet}}
	cfg.ApplyDefaults()
	h, err := data.Load(cfg.Input)
	if err != nil {
		return err
	}

	b := analysis.ComputeBaseline(h)
	fmt.Printf("Hours=%d total cost without battery=%.2f\n", b.Hours, b.Total)
	fmt.Printf("Suggested capacity=%.4f kWh (worst deficit at hour %d)\n", b.SuggestedCapacity, b.PeakHour+1)
	fmt.Printf("Price min=%.4f p05=%.4f mean=%.4f p95=%.4f max=%.4f spread=%.4f\n",
		b.MinPrice, b.P05Price, b.MeanPrice, b.P95Price, b.MaxPrice, b.PriceSpread)
	return nil
}
