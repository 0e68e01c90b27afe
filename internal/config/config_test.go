package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gardenops/cli/internal/policy"
	"github.com/gardenops/cli/internal/regret"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Output != "table" {
		t.Errorf("Default Output = %q, want %q", cfg.Output, "table")
	}
	if cfg.BaseDir != ".agents/garden" {
		t.Errorf("Default BaseDir = %q, want %q", cfg.BaseDir, ".agents/garden")
	}
	if cfg.Verbose {
		t.Error("Default Verbose = true, want false")
	}
	if cfg.Autonomy.MaxLevel != 4 {
		t.Errorf("Default MaxLevel = %d, want 4", cfg.Autonomy.MaxLevel)
	}
	if cfg.Autonomy.WindowSize != 20 {
		t.Errorf("Default WindowSize = %d, want 20", cfg.Autonomy.WindowSize)
	}
	if cfg.Autonomy.DomainRegretThreshold != 0.05 {
		t.Errorf("Default DomainRegretThreshold = %v, want 0.05", cfg.Autonomy.DomainRegretThreshold)
	}
}

func TestParsedAccessors(t *testing.T) {
	cfg := Default()

	if d, err := cfg.PeriodDuration(); err != nil || d != 168*time.Hour {
		t.Errorf("PeriodDuration = %v, %v", d, err)
	}
	if d, err := cfg.LockTimeoutDuration(); err != nil || d != 5*time.Second {
		t.Errorf("LockTimeoutDuration = %v, %v", d, err)
	}
	if c, err := cfg.Comparison(); err != nil || c != regret.ComparisonAbsolute {
		t.Errorf("Comparison = %q, %v", c, err)
	}

	pc, err := cfg.PolicyConfig()
	if err != nil {
		t.Fatalf("PolicyConfig: %v", err)
	}
	if pc.DemotionMode != policy.DemoteStep || pc.MaxLevel != 4 {
		t.Errorf("PolicyConfig = %+v", pc)
	}

	cfg.Autonomy.DemotionMode = "panic"
	if _, err := cfg.PolicyConfig(); err == nil {
		t.Error("expected error for invalid demotion mode")
	}
	cfg.Autonomy.Period = "soon"
	if _, err := cfg.PeriodDuration(); err == nil {
		t.Error("expected error for invalid period")
	}
}

func TestProjectConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, ".gardenops")
	if err := os.MkdirAll(cfgDir, 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "base_dir: /tmp/garden\nautonomy:\n  max_level: 6\n  promote_max_regret: 0.02\n"
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(content), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("GARDEN_CONFIG", filepath.Join(cfgDir, "config.yaml"))

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseDir != "/tmp/garden" {
		t.Errorf("BaseDir = %q", cfg.BaseDir)
	}
	if cfg.Autonomy.MaxLevel != 6 {
		t.Errorf("MaxLevel = %d, want 6", cfg.Autonomy.MaxLevel)
	}
	if cfg.Autonomy.PromoteMaxRegret != 0.02 {
		t.Errorf("PromoteMaxRegret = %v, want 0.02", cfg.Autonomy.PromoteMaxRegret)
	}
	// Untouched knobs keep defaults.
	if cfg.Autonomy.WindowSize != 20 {
		t.Errorf("WindowSize = %d, want default 20", cfg.Autonomy.WindowSize)
	}
}

func TestEnvOverridesProject(t *testing.T) {
	t.Setenv("GARDEN_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("GARDEN_BASE_DIR", "/env/garden")
	t.Setenv("GARDEN_MAX_LEVEL", "7")
	t.Setenv("GARDEN_LOCK_TIMEOUT", "250ms")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseDir != "/env/garden" {
		t.Errorf("BaseDir = %q", cfg.BaseDir)
	}
	if cfg.Autonomy.MaxLevel != 7 {
		t.Errorf("MaxLevel = %d, want 7", cfg.Autonomy.MaxLevel)
	}
	if d, err := cfg.LockTimeoutDuration(); err != nil || d != 250*time.Millisecond {
		t.Errorf("LockTimeoutDuration = %v, %v", d, err)
	}
}

func TestFlagOverridesEverything(t *testing.T) {
	t.Setenv("GARDEN_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("GARDEN_BASE_DIR", "/env/garden")

	cfg, err := Load(&Config{BaseDir: "/flag/garden", Output: "json"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseDir != "/flag/garden" {
		t.Errorf("BaseDir = %q", cfg.BaseDir)
	}
	if cfg.Output != "json" {
		t.Errorf("Output = %q", cfg.Output)
	}
}
