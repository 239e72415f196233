package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) {
		t.Errorf("data_dir not expanded: %s", cfg.Paths.DataDir)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Error("exists should be false for missing file")
	}
	if resolved != path {
		t.Errorf("resolved = %s, want %s", resolved, path)
	}
	if cfg.Whisper.Model != defaultWhisperModel {
		t.Errorf("model = %s", cfg.Whisper.Model)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"

[whisper]
model = "large-v3"

[workflow]
fallback_languages = [" EN ", "", "fr"]
cleanup_max_age_hours = 48
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Error("exists should be true")
	}
	if cfg.Whisper.Model != "large-v3" {
		t.Errorf("model = %s", cfg.Whisper.Model)
	}
	if cfg.Workflow.CleanupMaxAgeHours != 48 {
		t.Errorf("cleanup_max_age_hours = %d", cfg.Workflow.CleanupMaxAgeHours)
	}
	want := []string{"en", "fr"}
	if len(cfg.Workflow.FallbackLanguages) != len(want) {
		t.Fatalf("fallback_languages = %v", cfg.Workflow.FallbackLanguages)
	}
	for i, lang := range want {
		if cfg.Workflow.FallbackLanguages[i] != lang {
			t.Errorf("fallback_languages[%d] = %s, want %s", i, cfg.Workflow.FallbackLanguages[i], lang)
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty data dir", func(c *Config) { c.Paths.DataDir = "" }, "data_dir"},
		{"zero poll interval", func(c *Config) { c.Workflow.PollInterval = 0 }, "poll_interval"},
		{"negative retention", func(c *Config) { c.Workflow.CleanupMaxAgeHours = -1 }, "cleanup_max_age_hours"},
		{"bad log format", func(c *Config) { c.Logging.Format = "yaml" }, "logging.format"},
		{"empty ytdlp binary", func(c *Config) { c.Media.YtDlpBinary = "" }, "ytdlp_binary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if err := cfg.normalize(); err != nil {
				t.Fatalf("normalize: %v", err)
			}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestWriteSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if _, _, exists, err := Load(path); err != nil || !exists {
		t.Errorf("sample config should load cleanly: exists=%v err=%v", exists, err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("directory %s missing: %v", dir, err)
		}
	}
}
