package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"battery-dispatch/internal/model"

	"gopkg.in/yaml.v3"
)

const (
	RecoveryAbort = "abort"
	RecoveryIdle  = "idle"

	DefaultTimeLimit = 5 * time.Minute
	DefaultMaxNodes  = 10000
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	// Optional: load battery parameters from a separate YAML (e.g. examples/batteries/*.yaml).
	// If both BatteryFile and Battery are provided, Battery overrides BatteryFile.
	BatteryFile string         `yaml:"battery_file"`
	Battery     BatteryConfig  `yaml:"battery"`
	Strategy    StrategyConfig `yaml:"strategy"`
	Solver      SolverConfig   `yaml:"solver"`
	Input       InputConfig    `yaml:"input"`
	Output      OutputConfig   `yaml:"output"`
	Sweep       SweepConfig    `yaml:"sweep"`

	// Recovery is what to do when the optimizer fails: "abort" (default)
	// stops the run, "idle" falls back to the no-battery schedule.
	Recovery string `yaml:"recovery"`
	LogLevel string `yaml:"log_level"`
}

type BatteryConfig struct {
	Name                   string   `yaml:"name"`
	Capacity               Capacity `yaml:"capacity"`
	ChargeEfficiency       float64  `yaml:"charge_efficiency"`
	DischargeEfficiency    float64  `yaml:"discharge_efficiency"`
	DegradationRatePerHour *float64 `yaml:"degradation_rate_per_hour"`
	PricePerKWhOfCapacity  *float64 `yaml:"price_per_kwh_of_capacity"`
}

type StrategyConfig struct {
	Name string `yaml:"name"`
}

type SolverConfig struct {
	TimeLimit time.Duration `yaml:"time_limit"`
	MaxNodes  int           `yaml:"max_nodes"`
}

// InputConfig locates the hourly series. Format is inferred from the file
// extension when empty. Columns, StartRow and Rows only apply to xlsx.
type InputConfig struct {
	Path         string        `yaml:"path"`
	Format       string        `yaml:"format"`
	Sheet        string        `yaml:"sheet"`
	StartRow     int           `yaml:"start_row"`
	Rows         int           `yaml:"rows"`
	Columns      ColumnsConfig `yaml:"columns"`
	LoadDecimals *int          `yaml:"load_decimals"`
}

type ColumnsConfig struct {
	Hour  string `yaml:"hour"`
	PV    string `yaml:"pv"`
	Load  string `yaml:"load"`
	Price string `yaml:"price"`
}

// OutputConfig picks where results go. The ledger CSV is always written.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Workbook bool   `yaml:"workbook"`
	Charts   bool   `yaml:"charts"`
}

// SweepConfig lists candidate capacities either explicitly or as an evenly
// spaced range.
type SweepConfig struct {
	Capacities  []float64 `yaml:"capacities"`
	From        float64   `yaml:"from"`
	To          float64   `yaml:"to"`
	Steps       int       `yaml:"steps"`
	Concurrency int       `yaml:"concurrency"`
}

// Capacity is either a fixed kWh value or "auto" (size to the worst
// single-hour deficit).
type Capacity struct {
	Auto  bool
	Value float64
}

func (c Capacity) IsZero() bool { return !c.Auto && c.Value == 0 }

func (c Capacity) String() string {
	if c.Auto {
		return "auto"
	}
	return strconv.FormatFloat(c.Value, 'f', -1, 64)
}

func ParseCapacity(s string) (Capacity, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "auto") {
		return Capacity{Auto: true}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Capacity{}, fmt.Errorf("capacity %q: want a number of kWh or \"auto\"", s)
	}
	return Capacity{Value: v}, nil
}

func (c *Capacity) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: capacity must be a scalar", n.Line)
	}
	parsed, err := ParseCapacity(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*c = parsed
	return nil
}

func (c Capacity) MarshalYAML() (any, error) {
	if c.Auto {
		return "auto", nil
	}
	return c.Value, nil
}

func (c Capacity) MarshalJSON() ([]byte, error) {
	if c.Auto {
		return []byte(`"auto"`), nil
	}
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts a number or the string "auto".
func (c *Capacity) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*c = Capacity{}
		return nil
	}
	parsed, err := ParseCapacity(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Set and Type make Capacity usable as a command-line flag value.
func (c *Capacity) Set(s string) error {
	parsed, err := ParseCapacity(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c *Capacity) Type() string { return "capacity" }

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config, but does not validate it.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	// If battery_file is set, load it and merge in any explicit overrides from c.Battery.
	if c.BatteryFile != "" {
		loaded, err := LoadBatteryFile(resolve(path, c.BatteryFile))
		if err != nil {
			return nil, err
		}
		c.Battery = MergeBattery(loaded, c.Battery)
	}
	if c.Input.Path != "" {
		c.Input.Path = resolve(path, c.Input.Path)
	}
	return &c, nil
}

// resolve interprets rel relative to the config file directory, falling back
// to the path as given (relative to cwd) if that doesn't exist.
func resolve(configPath, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	cand := filepath.Join(filepath.Dir(configPath), rel)
	if _, err := os.Stat(cand); err == nil {
		return cand
	}
	return rel
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.Battery.ChargeEfficiency == 0 {
		c.Battery.ChargeEfficiency = model.DefaultChargeEfficiency
	}
	if c.Battery.DischargeEfficiency == 0 {
		c.Battery.DischargeEfficiency = model.DefaultDischargeEfficiency
	}
	if c.Battery.DegradationRatePerHour == nil {
		v := model.DefaultDegradationRatePerHour
		c.Battery.DegradationRatePerHour = &v
	}
	if c.Battery.PricePerKWhOfCapacity == nil {
		v := model.DefaultPricePerKWhOfCapacity
		c.Battery.PricePerKWhOfCapacity = &v
	}
	if c.Battery.Capacity.IsZero() {
		c.Battery.Capacity = Capacity{Auto: true}
	}
	if c.Strategy.Name == "" {
		c.Strategy.Name = "milp"
	}
	if c.Solver.TimeLimit == 0 {
		c.Solver.TimeLimit = DefaultTimeLimit
	}
	if c.Solver.MaxNodes == 0 {
		c.Solver.MaxNodes = DefaultMaxNodes
	}
	if c.Input.StartRow == 0 {
		c.Input.StartRow = 2
	}
	if c.Input.Rows == 0 {
		c.Input.Rows = 168
	}
	if c.Input.Columns == (ColumnsConfig{}) {
		c.Input.Columns = ColumnsConfig{Hour: "A", PV: "B", Load: "E", Price: "H"}
	}
	if c.Input.LoadDecimals == nil {
		v := 1
		c.Input.LoadDecimals = &v
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "out"
	}
	if c.Recovery == "" {
		c.Recovery = RecoveryAbort
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Strategy.Name == "" {
		return errors.New("strategy.name is required")
	}
	if c.Recovery != RecoveryAbort && c.Recovery != RecoveryIdle {
		return fmt.Errorf("recovery must be %q or %q, got %q", RecoveryAbort, RecoveryIdle, c.Recovery)
	}
	if c.Solver.TimeLimit < 0 {
		return errors.New("solver.time_limit must be >= 0")
	}
	if c.Solver.MaxNodes < 0 {
		return errors.New("solver.max_nodes must be >= 0")
	}
	if !c.Battery.Capacity.Auto && c.Battery.Capacity.Value <= 0 {
		return errors.New("battery.capacity must be > 0 or \"auto\"")
	}
	// Validate battery params with a placeholder capacity when sizing is automatic.
	spec := c.Battery.ToSpec(1)
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("battery config invalid: %w", err)
	}
	for _, v := range c.Sweep.Capacities {
		if v <= 0 {
			return fmt.Errorf("sweep.capacities: %v must be > 0", v)
		}
	}
	if c.Sweep.Steps < 0 || (c.Sweep.Steps > 0 && (c.Sweep.From <= 0 || c.Sweep.To < c.Sweep.From)) {
		return errors.New("sweep range needs 0 < from <= to and steps > 0")
	}
	return nil
}

// ToSpec converts the battery section into a model spec. capacity is used
// when the configured capacity is automatic.
func (b BatteryConfig) ToSpec(capacity float64) model.BatterySpec {
	spec := model.NewBatterySpec(capacity)
	if !b.Capacity.Auto && b.Capacity.Value != 0 {
		spec.Capacity = b.Capacity.Value
	}
	if b.ChargeEfficiency != 0 {
		spec.ChargeEfficiency = b.ChargeEfficiency
	}
	if b.DischargeEfficiency != 0 {
		spec.DischargeEfficiency = b.DischargeEfficiency
	}
	if b.DegradationRatePerHour != nil {
		spec.DegradationRatePerHour = *b.DegradationRatePerHour
	}
	if b.PricePerKWhOfCapacity != nil {
		spec.PricePerKWhOfCapacity = *b.PricePerKWhOfCapacity
	}
	return spec
}

// SweepCapacities returns the explicit list if set, otherwise the range.
func (s SweepConfig) SweepCapacities() []float64 {
	if len(s.Capacities) > 0 {
		return append([]float64(nil), s.Capacities...)
	}
	if s.Steps <= 0 {
		return nil
	}
	if s.Steps == 1 {
		return []float64{s.From}
	}
	out := make([]float64, s.Steps)
	step := (s.To - s.From) / float64(s.Steps-1)
	for i := range out {
		out[i] = s.From + step*float64(i)
	}
	return out
}

type batteryFileWrapper struct {
	Battery BatteryConfig `yaml:"battery"`
}

// LoadBatteryFile reads a battery preset (a YAML document with a top-level
// "battery" key).
func LoadBatteryFile(path string) (BatteryConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return BatteryConfig{}, err
	}
	var w batteryFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return BatteryConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return w.Battery, nil
}

// MergeBattery overlays non-zero fields from override onto base.
// This is used when loading a battery file and then applying overrides from the request.
func MergeBattery(base, override BatteryConfig) BatteryConfig {
	out := base
	if override.Name != "" {
		out.Name = override.Name
	}
	if !override.Capacity.IsZero() {
		out.Capacity = override.Capacity
	}
	if override.ChargeEfficiency != 0 {
		out.ChargeEfficiency = override.ChargeEfficiency
	}
	if override.DischargeEfficiency != 0 {
		out.DischargeEfficiency = override.DischargeEfficiency
	}
	// Pointers so that an explicit 0 (no degradation, free battery) still overrides.
	if override.DegradationRatePerHour != nil {
		out.DegradationRatePerHour = override.DegradationRatePerHour
	}
	if override.PricePerKWhOfCapacity != nil {
		out.PricePerKWhOfCapacity = override.PricePerKWhOfCapacity
	}
	return out
}
