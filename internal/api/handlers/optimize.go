package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"battery-dispatch/internal/analysis"
	"battery-dispatch/internal/api/models"
	"battery-dispatch/internal/config"
	"battery-dispatch/internal/data"
	"battery-dispatch/internal/ledger"
	"battery-dispatch/internal/logger"
	"battery-dispatch/internal/model"
	"battery-dispatch/internal/planner"
	"battery-dispatch/internal/strategy"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"golang.org/x/sync/semaphore"
)

const (
	// MaxHours caps request horizons; the relaxation tableau is dense.
	MaxHours = 744
	// MaxSweepCandidates caps the capacities of one sweep request.
	MaxSweepCandidates = 32

	// DefaultAdmitWait is how long a request waits for a free solver slot
	// before it is turned away.
	DefaultAdmitWait = 10 * time.Second

	defaultSyntheticHours  = 168
	defaultSyntheticPeakPV = 4.0
)

// OptimizeHandler runs plans and keeps finished runs for later retrieval
type OptimizeHandler struct {
	planner   *planner.Planner
	batteries *BatteryHandler
	runs      *data.Cache[*planner.Result]
	requests  *data.Cache[string]
	maxSolve  time.Duration
	log       *logger.Logger

	// solves bounds the plans running at once across all requests.
	solves    *semaphore.Weighted
	maxSolves int64
	admitWait time.Duration
}

// NewOptimizeHandler creates a new optimize handler. maxSolve caps the solver
// time limit a request may ask for; zero means the config default.
// maxConcurrent bounds simultaneous solves; zero means GOMAXPROCS.
func NewOptimizeHandler(runs *data.Cache[*planner.Result], batteries *BatteryHandler, maxSolve time.Duration, maxConcurrent int, log *logger.Logger) *OptimizeHandler {
	if maxSolve <= 0 {
		maxSolve = config.DefaultTimeLimit
	}
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.GOMAXPROCS(0)
	}
	return &OptimizeHandler{
		planner:   planner.New(log),
		batteries: batteries,
		runs:      runs,
		requests:  data.NewCache[string](time.Hour),
		maxSolve:  maxSolve,
		log:       log,
		solves:    semaphore.NewWeighted(int64(maxConcurrent)),
		maxSolves: int64(maxConcurrent),
		admitWait: DefaultAdmitWait,
	}
}

// admit reserves weight solver slots, waiting up to admitWait for running
// solves to finish. It writes 503 BUSY and returns false when none free up.
// The caller releases the slots.
func (h *OptimizeHandler) admit(c *gin.Context, weight int64) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.admitWait)
	defer cancel()
	if err := h.solves.Acquire(ctx, weight); err != nil {
		h.log.Warnw("solver slots exhausted", "max", h.maxSolves, "wanted", weight)
		abort(c, http.StatusServiceUnavailable, "BUSY", fmt.Sprintf("all %d solver slots are busy, retry later", h.maxSolves), map[string]interface{}{
			"max_concurrent_solves": h.maxSolves,
		})
		return false
	}
	return true
}

// Optimize handles POST /api/v1/optimize
func (h *OptimizeHandler) Optimize(c *gin.Context) {
	var req models.OptimizeRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		badRequest(c, "INVALID_REQUEST", err)
		return
	}

	// Identical requests yield identical plans, so serve them from the cache.
	var key string
	if raw, ok := c.Get(gin.BodyBytesKey); ok {
		if body, ok := raw.([]byte); ok {
			key = data.ContentKey(body)
		}
	}
	if id, ok := h.requests.Get(key); ok && key != "" {
		if res, ok := h.runs.Get(id); ok {
			c.Header("X-Run-ID", id)
			c.Header("X-Cache", "hit")
			c.JSON(http.StatusOK, buildResponse(res, req.IncludeLedger))
			return
		}
	}

	hz, err := horizonFrom(req.Horizon, req.Synthetic)
	if err != nil {
		h.inputError(c, err)
		return
	}

	cfg, err := h.buildConfig(req.BatteryFile, req.Battery, req.Solver, req.Strategy, req.Recovery)
	if err != nil {
		h.configError(c, err)
		return
	}

	if !h.admit(c, 1) {
		return
	}
	res, err := h.planner.Run(c.Request.Context(), hz, cfg)
	h.solves.Release(1)
	if err != nil {
		writeError(c, err)
		return
	}
	h.runs.Set(res.ID, res)
	if key != "" {
		h.requests.Set(key, res.ID)
	}

	c.Header("X-Run-ID", res.ID)
	c.Header("X-Cache", "miss")
	c.JSON(http.StatusOK, buildResponse(res, req.IncludeLedger))
}

// GetRun handles GET /api/v1/runs/:id
func (h *OptimizeHandler) GetRun(c *gin.Context) {
	id := c.Param("id")
	res, ok := h.runs.Get(id)
	if !ok {
		abort(c, http.StatusNotFound, "RUN_NOT_FOUND", "no run with id "+id+" (runs expire from the cache)", nil)
		return
	}
	c.JSON(http.StatusOK, buildResponse(res, c.DefaultQuery("include_ledger", "true") != "false"))
}

// Sweep handles POST /api/v1/sweep
func (h *OptimizeHandler) Sweep(c *gin.Context) {
	var req models.SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err)
		return
	}

	hz, err := horizonFrom(req.Horizon, req.Synthetic)
	if err != nil {
		h.inputError(c, err)
		return
	}

	cfg, err := h.buildConfig(req.BatteryFile, req.Battery, req.Solver, req.Strategy, "")
	if err == nil {
		cfg.Sweep = config.SweepConfig{
			Capacities:  req.Capacities,
			From:        req.From,
			To:          req.To,
			Steps:       req.Steps,
			Concurrency: req.Concurrency,
		}
		err = cfg.Validate()
	}
	if err != nil {
		h.configError(c, err)
		return
	}

	base := analysis.ComputeBaseline(hz)
	capacities := cfg.Sweep.SweepCapacities()
	if len(capacities) == 0 {
		capacities = planner.DefaultSweepCapacities(base)
	}
	if len(capacities) == 0 {
		writeError(c, planner.ErrNoDeficit)
		return
	}
	if len(capacities) > MaxSweepCandidates {
		abort(c, http.StatusBadRequest, "INVALID_CONFIG", "too many sweep capacities", map[string]interface{}{
			"max": MaxSweepCandidates,
			"got": len(capacities),
		})
		return
	}

	// A sweep holds as many slots as candidates it solves at once.
	weight := h.maxSolves
	if n := int64(cfg.Sweep.Concurrency); n > 0 && n < weight {
		weight = n
	}
	cfg.Sweep.Concurrency = int(weight)
	if !h.admit(c, weight) {
		return
	}
	cands, err := h.planner.Sweep(c.Request.Context(), hz, cfg, capacities)
	h.solves.Release(weight)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := models.SweepResponse{Candidates: make([]models.CandidateResult, 0, len(cands))}
	for _, cand := range cands {
		out := models.CandidateResult{CapacityKWh: cand.Capacity}
		if cand.Err != nil {
			out.Error = cand.Err.Error()
		} else {
			s := summarize(cand.Result, base.SuggestedCapacity, 0)
			out.Summary = &s
		}
		resp.Candidates = append(resp.Candidates, out)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].Error == "" {
		best := resp.Candidates[0]
		resp.Best = &best
	}
	c.JSON(http.StatusOK, resp)
}

func (h *OptimizeHandler) buildConfig(batteryFile string, b models.BatteryConfig, solver models.SolverConfig, strat, recovery string) (*config.Config, error) {
	cfg := &config.Config{
		Battery:  b.ToConfig(),
		Strategy: config.StrategyConfig{Name: strat},
		Solver: config.SolverConfig{
			TimeLimit: time.Duration(solver.TimeLimitSeconds * float64(time.Second)),
			MaxNodes:  solver.MaxNodes,
		},
		Recovery: recovery,
	}
	if batteryFile != "" {
		preset, err := h.batteries.Preset(batteryFile)
		if err != nil {
			return nil, err
		}
		cfg.BatteryFile = batteryFile
		cfg.Battery = config.MergeBattery(preset, cfg.Battery)
	}
	cfg.ApplyDefaults()
	if cfg.Solver.TimeLimit > h.maxSolve {
		cfg.Solver.TimeLimit = h.maxSolve
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := strategy.New(cfg.Strategy.Name, planner.SolverOptions(cfg.Solver)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (h *OptimizeHandler) inputError(c *gin.Context, err error) {
	var shape *model.InputShapeError
	if errors.As(err, &shape) {
		writeError(c, err)
		return
	}
	badRequest(c, "INVALID_REQUEST", err)
}

func (h *OptimizeHandler) configError(c *gin.Context, err error) {
	if errors.Is(err, ErrUnknownPreset) {
		badRequest(c, "UNKNOWN_BATTERY", err)
		return
	}
	badRequest(c, "INVALID_CONFIG", err)
}

func horizonFrom(doc *data.HorizonDocument, syn *models.SyntheticConfig) (*model.Horizon, error) {
	switch {
	case doc != nil && syn != nil:
		return nil, errors.New("set either horizon or synthetic, not both")
	case doc != nil:
		if len(doc.Hours) > MaxHours {
			return nil, fmt.Errorf("horizon has %d hours, max %d", len(doc.Hours), MaxHours)
		}
		return doc.Horizon()
	case syn != nil:
		hours := syn.Hours
		if hours == 0 {
			hours = defaultSyntheticHours
		}
		if hours < 0 || hours > MaxHours {
			return nil, fmt.Errorf("synthetic.hours must be in [1, %d]", MaxHours)
		}
		peak := syn.PeakPV
		if peak == 0 {
			peak = defaultSyntheticPeakPV
		}
		if peak < 0 {
			return nil, errors.New("synthetic.peak_pv must be >= 0")
		}
		return data.Synthetic(hours, peak, syn.Seed)
	default:
		return nil, errors.New("horizon or synthetic is required")
	}
}

func buildResponse(res *planner.Result, includeLedger bool) models.OptimizeResponse {
	out := models.OptimizeResponse{
		ID:       res.ID,
		Status:   "optimized",
		Verdict:  string(res.Verdict),
		Strategy: res.Ledger.Strategy,
		Battery: models.BatterySummary{
			CapacityKWh:            res.Spec.Capacity,
			CapacityAuto:           res.CapacityAuto,
			EndCapacityKWh:         res.Spec.CapacityAtHour(res.Horizon.Len() - 1),
			ChargeEfficiency:       res.Spec.ChargeEfficiency,
			DischargeEfficiency:    res.Spec.DischargeEfficiency,
			DegradationRatePerHour: res.Spec.DegradationRatePerHour,
			PricePerKWhOfCapacity:  res.Spec.PricePerKWhOfCapacity,
		},
		Summary: summarize(res.Ledger, res.Baseline.SuggestedCapacity, res.SolveTime),
	}
	if res.Recovered {
		out.Status = "recovered"
		if res.Cause != nil {
			out.Cause = res.Cause.Error()
		}
	}
	if includeLedger {
		out.Ledger = ledgerRows(res.Ledger.Rows)
	}
	return out
}

func summarize(led *ledger.Result, suggested float64, solveTime time.Duration) models.RunSummary {
	return models.RunSummary{
		Hours:                   len(led.Rows),
		TotalCostNoBattery:      led.TotalCostNoBattery,
		TotalCostWithBattery:    led.TotalCostWithBattery,
		Savings:                 led.Savings,
		InvestmentCost:          led.InvestmentCost,
		TotalCostWithInvestment: led.TotalCostWithInvestment,
		SuggestedCapacityKWh:    suggested,
		ClampedSlots:            led.ClampedSlots,
		SolverNodes:             led.SolverNodes,
		SolverObjective:         led.SolverObjective,
		SolveTimeMs:             solveTime.Milliseconds(),
	}
}

func ledgerRows(rows []ledger.Row) []models.LedgerRow {
	out := make([]models.LedgerRow, len(rows))
	for i, r := range rows {
		out[i] = models.LedgerRow{
			Index:              r.Index,
			Label:              r.Label,
			PV:                 r.PV,
			Load:               r.Load,
			Price:              r.Price,
			NetGridNoBattery:   r.NetGridNoBattery,
			CostNoBattery:      r.CostNoBattery,
			CumCostNoBattery:   r.CumCostNoBattery,
			Action:             string(r.Action),
			Charge:             r.Charge,
			Discharge:          r.Discharge,
			SoC:                r.SoC,
			CapacityCeiling:    r.CapacityCeiling,
			NetGridWithBattery: r.NetGridWithBattery,
			CostWithBattery:    r.CostWithBattery,
			CumCostWithBattery: r.CumCostWithBattery,
		}
	}
	return out
}
