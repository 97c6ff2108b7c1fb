package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

func post(t *testing.T, r http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSolverAdmission(t *testing.T) {
	log := logger.Nop()
	h := NewOptimizeHandler(data.NewCache[*planner.Result](time.Minute), NewBatteryHandler(t.TempDir(), log), time.Minute, 1, log)
	h.admitWait = 20 * time.Millisecond

	r := gin.New()
	r.POST("/optimize", h.Optimize)
	r.POST("/sweep", h.Sweep)

	const plan = `{"horizon":{"hours":[{"pv":0,"load":0,"price":1},{"pv":0,"load":0,"price":1},{"pv":0,"load":4,"price":5},{"pv":0,"load":0,"price":1}]},"battery":{"capacity":5}}`
	const sweep = `{"horizon":{"hours":[{"pv":0,"load":0,"price":1},{"pv":0,"load":0,"price":1},{"pv":0,"load":4,"price":5},{"pv":0,"load":0,"price":1}]},"capacities":[2,4],"concurrency":4}`

	require.True(t, h.solves.TryAcquire(1))

	for _, tt := range []struct{ path, body string }{{"/optimize", plan}, {"/sweep", sweep}} {
		w := post(t, r, tt.path, tt.body)
		require.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "BUSY", resp.Error.Code)
	}

	h.solves.Release(1)

	w := post(t, r, "/optimize", plan)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = post(t, r, "/sweep", sweep)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Every slot came back.
	assert.True(t, h.solves.TryAcquire(1))
}
