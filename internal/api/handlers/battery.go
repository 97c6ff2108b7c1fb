package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"battery-dispatch/internal/api/models"
	"battery-dispatch/internal/config"
	"battery-dispatch/internal/logger"

	"github.com/gin-gonic/gin"
)

// ErrUnknownPreset is returned for a battery_file that names no preset.
var ErrUnknownPreset = errors.New("unknown battery preset")

// BatteryHandler serves the battery presets in one directory
type BatteryHandler struct {
	dir string
	log *logger.Logger
}

// NewBatteryHandler creates a new battery handler. A relative dir is resolved
// against the working directory.
func NewBatteryHandler(dir string, log *logger.Logger) *BatteryHandler {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &BatteryHandler{dir: dir, log: log}
}

func (h *BatteryHandler) Dir() string { return h.dir }

// Preset loads a battery preset by ID (file name without .yaml).
func (h *BatteryHandler) Preset(id string) (config.BatteryConfig, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return config.BatteryConfig{}, fmt.Errorf("%w: %q", ErrUnknownPreset, id)
	}
	b, err := config.LoadBatteryFile(filepath.Join(h.dir, id+".yaml"))
	if errors.Is(err, os.ErrNotExist) {
		return config.BatteryConfig{}, fmt.Errorf("%w: %q", ErrUnknownPreset, id)
	}
	return b, err
}

// ListBatteries handles GET /api/v1/batteries
func (h *BatteryHandler) ListBatteries(c *gin.Context) {
	batteries := []models.BatteryInfo{}

	entries, err := os.ReadDir(h.dir)
	if err != nil {
		h.log.Warnw("read battery directory", "dir", h.dir, "err", err)
		c.JSON(http.StatusOK, gin.H{"batteries": batteries})
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(h.dir, entry.Name())
		b, err := config.LoadBatteryFile(path)
		if err != nil {
			h.log.Warnw("skipping battery preset", "file", path, "err", err)
			continue
		}
		batteries = append(batteries, batteryInfo(strings.TrimSuffix(entry.Name(), ".yaml"), path, b))
	}
	sort.Slice(batteries, func(i, j int) bool { return batteries[i].ID < batteries[j].ID })

	c.JSON(http.StatusOK, gin.H{"batteries": batteries})
}

func batteryInfo(id, path string, b config.BatteryConfig) models.BatteryInfo {
	name := b.Name
	if name == "" {
		name = id
	}
	capacity := b.Capacity
	if capacity.IsZero() {
		capacity = config.Capacity{Auto: true}
	}
	return models.BatteryInfo{
		ID:   id,
		Name: name,
		File: path,
		Specs: models.BatterySpecs{
			Capacity:               capacity.String(),
			ChargeEfficiency:       b.ChargeEfficiency,
			DischargeEfficiency:    b.DischargeEfficiency,
			DegradationRatePerHour: b.DegradationRatePerHour,
			PricePerKWhOfCapacity:  b.PricePerKWhOfCapacity,
		},
	}
}
