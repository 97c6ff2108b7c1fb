package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"battery-dispatch/internal/ledger"
	"battery-dispatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleResult(t *testing.T) *ledger.Result {
	t.Helper()
	h, err := model.NewHorizon(
		[]string{"1", "2", "3", "4"},
		[]float64{0, 0, 0, 0},
		[]float64{0, 0, 10, 0},
		[]float64{1, 1, 5, 1},
	)
	require.NoError(t, err)
	spec := model.NewBatterySpec(10)
	d := model.NewDispatchDecision(4)
	copy(d.CapacityCeiling, spec.CapacityCurve(4))
	d.Charge[1], d.ChargeFlag[1], d.SoC[1] = 9.998, true, 9.998
	d.Discharge[2], d.DischargeFlag[2] = 9.998, true

	res, err := ledger.Evaluate(h, spec, d)
	require.NoError(t, err)
	return res
}

func TestWriteWorkbook(t *testing.T) {
	res := sampleResult(t)
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteWorkbook(path, res))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	get := func(cell string) string {
		v, err := f.GetCellValue(sheetName, cell)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "Input data", get("A1"))
	assert.Equal(t, "WITHOUT use of a battery", get("E1"))
	assert.Equal(t, "WITH use of a battery", get("G1"))
	assert.Equal(t, "Hour", get("A2"))
	assert.Equal(t, "Cost in given hour [Eur]", get("K2"))

	assert.Equal(t, "2", get("A4"))
	assert.Equal(t, "9.998\n(9.998)", get("I4"))
	assert.Equal(t, "0\n(10)", get("I3"))

	// Summary starts two rows below the last hour.
	assert.Equal(t, "Battery capacity [kWh]:", get("A8"))
	assert.Equal(t, "10", get("D8"))
	assert.Equal(t, "50", get("D9"))
	assert.Equal(t, "10.01", get("D10"))

	merged, err := f.GetMergeCells(sheetName)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(merged), 3+2*5)
}

func TestWriteCharts(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteCharts(dir, sampleResult(t))
	require.NoError(t, err)
	require.Len(t, paths, 5)

	for _, p := range paths {
		raw, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG")), p)
	}

	_, err = WriteCharts(dir, &ledger.Result{})
	assert.Error(t, err)
}

func TestNumberFormatting(t *testing.T) {
	assert.Equal(t, "1.5", normalized(1.5))
	assert.Equal(t, "0.333", normalized(1.0/3))
	assert.Equal(t, 2.68, places(2.675, 2))
}
