package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"battery-dispatch/internal/api/models"
	"battery-dispatch/internal/data"
	"battery-dispatch/internal/logger"
	"battery-dispatch/internal/planner"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

const preset = `battery:
  name: Home 10
  capacity: 10
  charge_efficiency: 0.95
  discharge_efficiency: 0.95
  price_per_kwh_of_capacity: 250
`

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "home_10.yaml"), []byte(preset), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	return NewRouter(Options{BatteryDir: dir, MaxSolveTime: 30 * time.Second, Log: logger.Nop()},
		data.NewCache[*planner.Result](time.Minute))
}

func hours(pv, load, price []float64) []map[string]any {
	out := make([]map[string]any, len(pv))
	for i := range pv {
		out[i] = map[string]any{"pv": pv[i], "load": load[i], "price": price[i]}
	}
	return out
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorDetail {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error
}

func TestHealthAndListings(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = do(t, r, http.MethodGet, "/api/v1/strategies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var strategies struct {
		Strategies []models.StrategyInfo `json:"strategies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &strategies))
	require.Len(t, strategies.Strategies, 2)
	assert.Equal(t, "milp", strategies.Strategies[0].Name)
	assert.NotEmpty(t, strategies.Strategies[0].Description)

	w = do(t, r, http.MethodGet, "/api/v1/batteries", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var batteries struct {
		Batteries []models.BatteryInfo `json:"batteries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &batteries))
	require.Len(t, batteries.Batteries, 1)
	assert.Equal(t, "home_10", batteries.Batteries[0].ID)
	assert.Equal(t, "Home 10", batteries.Batteries[0].Name)
	assert.Equal(t, "10", batteries.Batteries[0].Specs.Capacity)

	w = do(t, r, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListBatteriesMissingDir(t *testing.T) {
	r := NewRouter(Options{BatteryDir: filepath.Join(t.TempDir(), "missing")}, data.NewCache[*planner.Result](time.Minute))
	w := do(t, r, http.MethodGet, "/api/v1/batteries", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"batteries":[]}`, w.Body.String())
}

func TestOptimize(t *testing.T) {
	r := newTestRouter(t)
	body := map[string]any{
		"horizon":        map[string]any{"hours": hours([]float64{5, 0, 0}, []float64{0, 10, 0}, []float64{1, 1, 1})},
		"battery":        map[string]any{"capacity": 10},
		"include_ledger": true,
	}

	w := do(t, r, http.MethodPost, "/api/v1/optimize", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "miss", w.Header().Get("X-Cache"))
	id := w.Header().Get("X-Run-ID")
	require.NotEmpty(t, id)

	var resp models.OptimizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.ID)
	assert.Equal(t, "optimized", resp.Status)
	assert.Equal(t, "milp", resp.Strategy)
	assert.Equal(t, string(planner.NoSavings), resp.Verdict)
	assert.InDelta(t, 5, resp.Summary.TotalCostNoBattery, 1e-6)
	assert.InDelta(t, 5, resp.Summary.TotalCostWithBattery, 1e-6)
	assert.InDelta(t, 10, resp.Battery.CapacityKWh, 1e-9)
	require.Len(t, resp.Ledger, 3)
	assert.Equal(t, "IDLE", resp.Ledger[0].Action)
	assert.InDelta(t, -5, resp.Ledger[0].CumCostNoBattery, 1e-9)
	assert.InDelta(t, 5, resp.Ledger[1].CumCostNoBattery, 1e-9)
	assert.InDelta(t, resp.Summary.TotalCostNoBattery, resp.Ledger[2].CumCostNoBattery, 1e-9)
	assert.InDelta(t, resp.Summary.TotalCostWithBattery, resp.Ledger[2].CumCostWithBattery, 1e-9)

	t.Run("identical request is served from the cache", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v1/optimize", body)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "hit", w.Header().Get("X-Cache"))
		assert.Equal(t, id, w.Header().Get("X-Run-ID"))
	})

	t.Run("run can be fetched by id", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v1/runs/"+id, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got models.OptimizeResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, id, got.ID)
		assert.Len(t, got.Ledger, 3)

		w = do(t, r, http.MethodGet, "/api/v1/runs/"+id+"?include_ledger=false", nil)
		require.Equal(t, http.StatusOK, w.Code)
		got = models.OptimizeResponse{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Empty(t, got.Ledger)
	})

	t.Run("unknown run", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v1/runs/does-not-exist", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "RUN_NOT_FOUND", decodeError(t, w).Code)
	})
}

func TestOptimizeSavesMoney(t *testing.T) {
	r := newTestRouter(t)
	body := map[string]any{
		"horizon":      map[string]any{"hours": hours([]float64{0, 0, 0, 0}, []float64{0, 0, 6, 0}, []float64{1, 1, 5, 1})},
		"battery_file": "home_10",
		"battery":      map[string]any{"charge_efficiency": 1, "discharge_efficiency": 1},
	}
	w := do(t, r, http.MethodPost, "/api/v1/optimize", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.OptimizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(planner.CostEffective), resp.Verdict)
	assert.Greater(t, resp.Summary.Savings, 0.0)
	assert.InDelta(t, 250, resp.Battery.PricePerKWhOfCapacity, 1e-9)
	assert.InDelta(t, 2500, resp.Summary.InvestmentCost, 1e-6)
	assert.Less(t, resp.Summary.TotalCostWithBattery, resp.Summary.TotalCostNoBattery)
}

func TestOptimizeSynthetic(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodPost, "/api/v1/optimize", map[string]any{
		"synthetic": map[string]any{"hours": 24, "peak_pv": 3, "seed": 7},
		"battery":   map[string]any{"capacity": 2},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.OptimizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 24, resp.Summary.Hours)
	assert.LessOrEqual(t, resp.Summary.TotalCostWithBattery, resp.Summary.TotalCostNoBattery+1e-6)
}

func TestOptimizeErrors(t *testing.T) {
	r := newTestRouter(t)
	flat := map[string]any{"hours": hours([]float64{0, 0, 0}, []float64{0, 1, 0}, []float64{1, 1, 1})}

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{
			name:   "malformed json",
			body:   "not an object",
			status: http.StatusBadRequest,
			code:   "INVALID_REQUEST",
		},
		{
			name:   "no data",
			body:   map[string]any{"battery": map[string]any{"capacity": 1}},
			status: http.StatusBadRequest,
			code:   "INVALID_REQUEST",
		},
		{
			name: "both horizon and synthetic",
			body: map[string]any{
				"horizon":   flat,
				"synthetic": map[string]any{"hours": 24},
			},
			status: http.StatusBadRequest,
			code:   "INVALID_REQUEST",
		},
		{
			name: "missing load value",
			body: map[string]any{
				"horizon": map[string]any{"hours": []map[string]any{{"pv": 0, "price": 1}}},
			},
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name:   "bad capacity",
			body:   map[string]any{"horizon": flat, "battery": map[string]any{"capacity": "big"}},
			status: http.StatusBadRequest,
			code:   "INVALID_REQUEST",
		},
		{
			name:   "efficiency out of range",
			body:   map[string]any{"horizon": flat, "battery": map[string]any{"capacity": 1, "charge_efficiency": 1.5}},
			status: http.StatusBadRequest,
			code:   "INVALID_CONFIG",
		},
		{
			name:   "unknown strategy",
			body:   map[string]any{"horizon": flat, "strategy": "greedy"},
			status: http.StatusBadRequest,
			code:   "INVALID_CONFIG",
		},
		{
			name:   "unknown preset",
			body:   map[string]any{"horizon": flat, "battery_file": "../etc/passwd"},
			status: http.StatusBadRequest,
			code:   "UNKNOWN_BATTERY",
		},
		{
			name: "auto capacity without deficit",
			body: map[string]any{
				"horizon": map[string]any{"hours": hours([]float64{2, 2}, []float64{1, 1}, []float64{1, 1})},
				"battery": map[string]any{"capacity": "auto"},
			},
			status: http.StatusUnprocessableEntity,
			code:   "NO_DEFICIT",
		},
		{
			name: "degradation exhausts the battery",
			body: map[string]any{
				"horizon": map[string]any{"hours": hours(
					[]float64{0, 0, 0, 0, 0}, []float64{0, 1, 1, 1, 1}, []float64{1, 1, 1, 1, 1})},
				"battery": map[string]any{"capacity": 1, "degradation_rate_per_hour": 0.5},
			},
			status: http.StatusUnprocessableEntity,
			code:   "INFEASIBLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/optimize", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestOptimizeRecovery(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodPost, "/api/v1/optimize", map[string]any{
		"horizon": map[string]any{"hours": hours(
			[]float64{0, 0, 0, 0, 0}, []float64{0, 1, 1, 1, 1}, []float64{1, 1, 1, 1, 1})},
		"battery":  map[string]any{"capacity": 1, "degradation_rate_per_hour": 0.5},
		"recovery": "idle",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.OptimizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "recovered", resp.Status)
	assert.Contains(t, resp.Cause, "infeasible")
	assert.InDelta(t, resp.Summary.TotalCostNoBattery, resp.Summary.TotalCostWithBattery, 1e-9)
}

func TestSweep(t *testing.T) {
	r := newTestRouter(t)
	body := map[string]any{
		"horizon":     map[string]any{"hours": hours([]float64{0, 0, 0, 0}, []float64{0, 0, 6, 0}, []float64{1, 1, 5, 1})},
		"capacities":  []float64{20, 2, 6},
		"concurrency": 2,
	}
	w := do(t, r, http.MethodPost, "/api/v1/sweep", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.SweepResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Candidates, 3)
	require.NotNil(t, resp.Best)
	assert.Equal(t, 2.0, resp.Best.CapacityKWh)
	for _, c := range resp.Candidates {
		assert.Empty(t, c.Error)
		require.NotNil(t, c.Summary)
	}

	t.Run("default capacities around the suggestion", func(t *testing.T) {
		delete(body, "capacities")
		w := do(t, r, http.MethodPost, "/api/v1/sweep", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := models.SweepResponse{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Candidates, 8)
	})

	t.Run("too many capacities", func(t *testing.T) {
		body["steps"] = 100
		body["from"] = 1
		body["to"] = 10
		w := do(t, r, http.MethodPost, "/api/v1/sweep", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_CONFIG", decodeError(t, w).Code)
	})
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/optimize", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Less(t, w.Code, 300)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}
