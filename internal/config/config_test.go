package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config file") {
		t.Fatalf("expected config file error, got %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `scenarios: [a, b]
format: json
jobs: 2
timeout: 30s
options: ["-A crap.threshold=5"]
module_path: [/opt/mods]
log_level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := &Config{
		Scenarios:  []string{"a", "b"},
		Format:     "json",
		Jobs:       2,
		Timeout:    30 * time.Second,
		Options:    []string{"-A crap.threshold=5"},
		ModulePath: []string{"/opt/mods"},
		LogLevel:   "debug",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Level() != log.DebugLevel {
		t.Errorf("Level() = %v, want debug", cfg.Level())
	}
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "jobs: 8\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Jobs != 8 || cfg.Format != "text" || cfg.Timeout != 2*time.Minute {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"format", "format: xml\n", `invalid format "xml"`},
		{"jobs", "jobs: 0\n", "invalid jobs 0"},
		{"timeout", "timeout: -1s\n", "invalid timeout"},
		{"log level", "log_level: loud\n", `invalid log_level "loud"`},
		{"syntax", "jobs: [\n", "parsing config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
			if !strings.Contains(err.Error(), "config file") {
				t.Errorf("error should mention 'config file', got: %s", err)
			}
		})
	}
}
