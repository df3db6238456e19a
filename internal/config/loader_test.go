package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	v := viper.New()
	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Terminals.Count != 4 {
		t.Errorf("Terminals.Count = %d, want 4", cfg.Terminals.Count)
	}
	if cfg.Stability.Threshold != 5*time.Second {
		t.Errorf("Stability.Threshold = %v, want %v", cfg.Stability.Threshold, 5*time.Second)
	}
	if !cfg.Guard.Enabled {
		t.Error("Guard.Enabled = false, want true")
	}
}

func TestLoadConfig_ProjectFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	defer func() { _ = os.Chdir(oldWd) }()

	if err := os.MkdirAll(ProjectConfigDir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	configContent := `
terminals:
  count: 2
stability:
  threshold: 5s
auto_continue:
  enabled: false
  max_attempts: 3
`
	configPath := filepath.Join(ProjectConfigDir, ProjectConfigFile)
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	v := viper.New()
	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Terminals.Count != 2 {
		t.Errorf("Terminals.Count = %d, want 2", cfg.Terminals.Count)
	}
	if cfg.Stability.Threshold != 5*time.Second {
		t.Errorf("Stability.Threshold = %v, want %v", cfg.Stability.Threshold, 5*time.Second)
	}
	if cfg.AutoContinue.Enabled {
		t.Error("AutoContinue.Enabled = true, want false")
	}
	if cfg.AutoContinue.MaxAttempts != 3 {
		t.Errorf("AutoContinue.MaxAttempts = %d, want 3", cfg.AutoContinue.MaxAttempts)
	}
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
terminals:
  count: 3
guard:
  enabled: false
`
	configPath := filepath.Join(tmpDir, "custom-config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	v := viper.New()
	v.Set("config", configPath)

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Terminals.Count != 3 {
		t.Errorf("Terminals.Count = %d, want 3", cfg.Terminals.Count)
	}
	if cfg.Guard.Enabled {
		t.Error("Guard.Enabled = true, want false")
	}
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	v := viper.New()
	v.Set("config", "/nonexistent/path/config.yaml")

	_, err := LoadConfig(v)
	if err == nil {
		t.Error("LoadConfig should fail for missing explicit config")
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	defer func() { _ = os.Chdir(oldWd) }()

	if err := os.MkdirAll(ProjectConfigDir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	configContent := `
terminals:
  count: 2
`
	configPath := filepath.Join(ProjectConfigDir, ProjectConfigFile)
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	v := viper.New()
	v.SetEnvPrefix("ATARI_INJECT")
	v.AutomaticEnv()

	// Simulate env var by setting directly in viper (env binding happens in CLI).
	v.Set("terminals.count", 6)

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Terminals.Count != 6 {
		t.Errorf("Terminals.Count = %d, want 6", cfg.Terminals.Count)
	}
}

func TestLoadConfig_DurationParsing(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		yaml    string
		wantDur time.Duration
		field   string
	}{
		{
			name:    "seconds",
			yaml:    "stability:\n  threshold: 30s",
			wantDur: 30 * time.Second,
			field:   "stability.threshold",
		},
		{
			name:    "minutes",
			yaml:    "stability:\n  threshold: 5m",
			wantDur: 5 * time.Minute,
			field:   "stability.threshold",
		},
		{
			name:    "combined",
			yaml:    "stability:\n  threshold: 1h30m",
			wantDur: 90 * time.Minute,
			field:   "stability.threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tmpDir, tt.name+".yaml")
			if err := os.WriteFile(configPath, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("write config failed: %v", err)
			}

			v := viper.New()
			v.Set("config", configPath)

			cfg, err := LoadConfig(v)
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}

			if cfg.Stability.Threshold != tt.wantDur {
				t.Errorf("got %v, want %v", cfg.Stability.Threshold, tt.wantDur)
			}
		})
	}
}

func TestLoadConfig_PartialOverride(t *testing.T) {
	tmpDir := t.TempDir()

	// Only override one field; everything else should keep its default.
	configContent := `
terminals:
  count: 8
`
	configPath := filepath.Join(tmpDir, "partial.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	v := viper.New()
	v.Set("config", configPath)

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Terminals.Count != 8 {
		t.Errorf("Terminals.Count = %d, want 8", cfg.Terminals.Count)
	}
	if cfg.Stability.Threshold != 5*time.Second {
		t.Errorf("Stability.Threshold = %v, want %v (default)", cfg.Stability.Threshold, 5*time.Second)
	}
	if cfg.Paths.State != ".atari-inject/state.db" {
		t.Errorf("Paths.State = %q, want %q (default)", cfg.Paths.State, ".atari-inject/state.db")
	}
}

func TestGlobalConfigPath(t *testing.T) {
	// Just test that it doesn't panic and returns empty for non-existent.
	path := globalConfigPath()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("globalConfigPath returned %q but file doesn't exist", path)
		}
	}
}

func TestProjectConfigPath(t *testing.T) {
	path := projectConfigPath()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("projectConfigPath returned %q but file doesn't exist", path)
		}
	}
}
