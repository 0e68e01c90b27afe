// Package config provides configuration for the garden CLI.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (GARDEN_*)
// 3. Project config (.gardenops/config.yaml in cwd)
// 4. Home config (~/.gardenops/config.yaml)
// 5. Defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gardenops/cli/internal/policy"
	"github.com/gardenops/cli/internal/regret"
)

// Config holds all garden configuration.
type Config struct {
	// Output controls the default output format (table, json).
	Output string `yaml:"output" json:"output"`

	// BaseDir is the governance data directory (default: .agents/garden).
	BaseDir string `yaml:"base_dir" json:"base_dir"`

	// Verbose enables verbose output.
	Verbose bool `yaml:"verbose" json:"verbose"`

	// Autonomy holds the governance policy knobs.
	Autonomy AutonomyConfig `yaml:"autonomy" json:"autonomy"`
}

// AutonomyConfig holds the level policy thresholds and window definitions.
type AutonomyConfig struct {
	// MaxLevel is the highest autonomy level any scope can reach.
	MaxLevel int `yaml:"max_level" json:"max_level"`

	// WindowSize is the trailing decision count for promotion checks.
	WindowSize int `yaml:"window_size" json:"window_size"`

	// PromoteMinAccuracy is the accuracy floor for promotion.
	PromoteMinAccuracy float64 `yaml:"promote_min_accuracy" json:"promote_min_accuracy"`

	// PromoteMaxRegret is the regret ceiling for promotion.
	PromoteMaxRegret float64 `yaml:"promote_max_regret" json:"promote_max_regret"`

	// DomainRegretThreshold locks a domain when its trailing regret rate
	// exceeds it.
	DomainRegretThreshold float64 `yaml:"domain_regret_threshold" json:"domain_regret_threshold"`

	// GlobalRegretDelta demotes globally when the period-over-period regret
	// increase exceeds it.
	GlobalRegretDelta float64 `yaml:"global_regret_delta" json:"global_regret_delta"`

	// Period is the rolling comparison period (Go duration, default 168h).
	Period string `yaml:"period" json:"period"`

	// PeriodComparison is "absolute" (percentage points) or "relative".
	PeriodComparison string `yaml:"period_comparison" json:"period_comparison"`

	// MinPeriodSamples is the minimum record count the previous period must
	// hold for the comparison to be well-defined.
	MinPeriodSamples int `yaml:"min_period_samples" json:"min_period_samples"`

	// DemotionMode is "step" (level-1) or "floor" (reset to SafetyFloor).
	DemotionMode string `yaml:"demotion_mode" json:"demotion_mode"`

	// SafetyFloor is the reset level used by the "floor" demotion mode.
	SafetyFloor int `yaml:"safety_floor" json:"safety_floor"`

	// LockTimeout bounds scope-lock acquisition (Go duration, default 5s).
	LockTimeout string `yaml:"lock_timeout" json:"lock_timeout"`
}

// Default config values (used in resolution and validation).
const (
	defaultOutput  = "table"
	defaultBaseDir = ".agents/garden"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Output:  defaultOutput,
		BaseDir: defaultBaseDir,
		Verbose: false,
		Autonomy: AutonomyConfig{
			MaxLevel:              4,
			WindowSize:            20,
			PromoteMinAccuracy:    0.90,
			PromoteMaxRegret:      0.05,
			DomainRegretThreshold: 0.05,
			GlobalRegretDelta:     0.05,
			Period:                "168h",
			PeriodComparison:      string(regret.ComparisonAbsolute),
			MinPeriodSamples:      1,
			DemotionMode:          string(policy.DemoteStep),
			SafetyFloor:           0,
			LockTimeout:           "5s",
		},
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	homeConfig, _ := loadFromPath(homeConfigPath())
	if homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	projectConfig, _ := loadFromPath(projectConfigPath())
	if projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, nil
}

// PolicyConfig resolves the autonomy knobs into the policy package's config.
func (c *Config) PolicyConfig() (policy.Config, error) {
	mode := policy.DemotionMode(c.Autonomy.DemotionMode)
	switch mode {
	case policy.DemoteStep, policy.DemoteFloor:
	case "":
		mode = policy.DemoteStep
	default:
		return policy.Config{}, fmt.Errorf("invalid demotion_mode %q (want step or floor)", c.Autonomy.DemotionMode)
	}
	return policy.Config{
		MaxLevel:              c.Autonomy.MaxLevel,
		PromoteMinAccuracy:    c.Autonomy.PromoteMinAccuracy,
		PromoteMaxRegret:      c.Autonomy.PromoteMaxRegret,
		DomainRegretThreshold: c.Autonomy.DomainRegretThreshold,
		GlobalRegretDelta:     c.Autonomy.GlobalRegretDelta,
		DemotionMode:          mode,
		SafetyFloor:           c.Autonomy.SafetyFloor,
	}, nil
}

// PeriodDuration parses the comparison period.
func (c *Config) PeriodDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Autonomy.Period)
	if err != nil {
		return 0, fmt.Errorf("invalid period %q: %w", c.Autonomy.Period, err)
	}
	return d, nil
}

// Comparison parses the period comparison mode.
func (c *Config) Comparison() (regret.Comparison, error) {
	return regret.ParseComparison(c.Autonomy.PeriodComparison)
}

// LockTimeoutDuration parses the scope-lock acquisition timeout.
func (c *Config) LockTimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Autonomy.LockTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid lock_timeout %q: %w", c.Autonomy.LockTimeout, err)
	}
	return d, nil
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gardenops", "config.yaml")
}

// projectConfigPath returns the project config path.
func projectConfigPath() string {
	if override := os.Getenv("GARDEN_CONFIG"); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".gardenops", "config.yaml")
}

// loadFromPath loads config from a YAML file.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("GARDEN_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("GARDEN_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if v := os.Getenv("GARDEN_VERBOSE"); v == "true" || v == "1" {
		cfg.Verbose = true
	}
	if v := os.Getenv("GARDEN_MAX_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Autonomy.MaxLevel = n
		}
	}
	if v := os.Getenv("GARDEN_WINDOW_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Autonomy.WindowSize = n
		}
	}
	if v := os.Getenv("GARDEN_PERIOD"); v != "" {
		cfg.Autonomy.Period = v
	}
	if v := os.Getenv("GARDEN_PERIOD_COMPARISON"); v != "" {
		cfg.Autonomy.PeriodComparison = v
	}
	if v := os.Getenv("GARDEN_DEMOTION_MODE"); v != "" {
		cfg.Autonomy.DemotionMode = v
	}
	if v := os.Getenv("GARDEN_LOCK_TIMEOUT"); v != "" {
		cfg.Autonomy.LockTimeout = v
	}
	return cfg
}

// mergeStr overwrites dst with src when src is non-empty.
func mergeStr(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// mergeInt overwrites dst with src when src is non-zero.
func mergeInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}

// mergeFloat overwrites dst with src when src is non-zero.
func mergeFloat(dst *float64, src float64) {
	if src != 0 {
		*dst = src
	}
}

// merge merges src into dst, with src values taking precedence.
func merge(dst, src *Config) *Config {
	mergeStr(&dst.Output, src.Output)
	mergeStr(&dst.BaseDir, src.BaseDir)
	if src.Verbose {
		dst.Verbose = true
	}
	mergeAutonomy(&dst.Autonomy, &src.Autonomy)
	return dst
}

// mergeAutonomy merges the governance policy knobs.
func mergeAutonomy(dst, src *AutonomyConfig) {
	mergeInt(&dst.MaxLevel, src.MaxLevel)
	mergeInt(&dst.WindowSize, src.WindowSize)
	mergeFloat(&dst.PromoteMinAccuracy, src.PromoteMinAccuracy)
	mergeFloat(&dst.PromoteMaxRegret, src.PromoteMaxRegret)
	mergeFloat(&dst.DomainRegretThreshold, src.DomainRegretThreshold)
	mergeFloat(&dst.GlobalRegretDelta, src.GlobalRegretDelta)
	mergeStr(&dst.Period, src.Period)
	mergeStr(&dst.PeriodComparison, src.PeriodComparison)
	mergeInt(&dst.MinPeriodSamples, src.MinPeriodSamples)
	mergeStr(&dst.DemotionMode, src.DemotionMode)
	mergeInt(&dst.SafetyFloor, src.SafetyFloor)
	mergeStr(&dst.LockTimeout, src.LockTimeout)
}
