package app

import (
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig with empty path failed: %v", err)
	}
	if config.Source.Type != SourceSim {
		t.Errorf("default source = %q, want sim", config.Source.Type)
	}
	if !math.IsNaN(config.Display.Threshold()) {
		t.Error("unset threshold should report NaN")
	}
	if config.Settings.Level() != slog.LevelInfo {
		t.Errorf("default log level = %v, want info", config.Settings.Level())
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
settings:
  logLevel: debug
display:
  mode: bars
  scheme: viridis
  thresholdDbm: -45
source:
  type: sim
  rateHz: 120
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Settings.Level() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", config.Settings.Level())
	}
	if config.Display.Mode != "bars" || config.Display.Scheme != "viridis" {
		t.Errorf("display = %+v, want bars/viridis", config.Display)
	}
	if config.Display.Threshold() != -45 {
		t.Errorf("threshold = %v, want -45", config.Display.Threshold())
	}
	if config.Source.RateHz != 120 {
		t.Errorf("rateHz = %v, want 120", config.Source.RateHz)
	}

	// Defaults survive a partial file.
	if config.Display.HistoryDepth != 200 {
		t.Errorf("historyDepth = %d, want default 200", config.Display.HistoryDepth)
	}
}

func TestLoadConfigNormalizesSourceType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
source:
  type: Replay
  dbPath: /tmp/session.sqlite
  sessionId: 1
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Source.Type != SourceReplay {
		t.Errorf("source type = %q, want %q", config.Source.Type, SourceReplay)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad mode", "display:\n  mode: scatter\n"},
		{"bad scheme", "display:\n  scheme: plasma\n"},
		{"bad source", "source:\n  type: serial\n"},
		{"replay without db", "source:\n  type: replay\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Error("invalid configuration was accepted")
			}
		})
	}
}
