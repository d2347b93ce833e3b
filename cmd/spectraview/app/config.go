package app

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Three-summers/spectraview/internal/render"
)

const (
	SourceSim    = "sim"
	SourceReplay = "replay"
)

// Config represents the main application configuration.
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Display   DisplayConfig   `yaml:"display"`
	Source    SourceConfig    `yaml:"source"`
	Recording RecordingConfig `yaml:"recording"`
}

// Settings represents global application settings.
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses the configured log level, defaulting to info.
func (s Settings) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// DisplayConfig represents the spectrum pane settings.
type DisplayConfig struct {
	WindowWidth   int      `yaml:"windowWidth"`
	WindowHeight  int      `yaml:"windowHeight"`
	Mode          string   `yaml:"mode"`
	Scheme        string   `yaml:"scheme"`
	ThresholdDbm  *float64 `yaml:"thresholdDbm"`
	HistoryDepth  int      `yaml:"historyDepth"`
	RefreshRateHz float64  `yaml:"refreshRateHz"`
	MaxFPS        float64  `yaml:"maxFps"`
	SnapshotDir   string   `yaml:"snapshotDir"`
}

// Threshold returns the highlight threshold, NaN when unset.
func (d DisplayConfig) Threshold() float64 {
	if d.ThresholdDbm == nil {
		return math.NaN()
	}
	return *d.ThresholdDbm
}

// SourceConfig selects and configures the frame source.
type SourceConfig struct {
	Type string `yaml:"type"`

	// sim
	RateHz float64 `yaml:"rateHz"`
	Seed   *int64  `yaml:"seed"`

	// replay
	DBPath    string `yaml:"dbPath"`
	SessionID int64  `yaml:"sessionId"`
}

// RecordingConfig enables persisting accepted frames to a database.
type RecordingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DataDirectory string `yaml:"dataDirectory"`
}

// NewConfig returns a configuration with usable defaults for a live
// simulated session.
func NewConfig() *Config {
	return &Config{
		Display: DisplayConfig{
			WindowWidth:   960,
			WindowHeight:  640,
			Mode:          string(render.ModeFill),
			Scheme:        string(render.SchemeTurbo),
			HistoryDepth:  200,
			RefreshRateHz: 15,
			MaxFPS:        30,
			SnapshotDir:   "snapshots",
		},
		Source: SourceConfig{
			Type:   SourceSim,
			RateHz: 60,
		},
	}
}

// LoadConfig reads and validates the YAML configuration at path. An
// empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := NewConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if err = config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if !render.ValidMode(render.DisplayMode(c.Display.Mode)) {
		return fmt.Errorf("invalid display mode: %s", c.Display.Mode)
	}
	if !render.ValidScheme(render.ColorScheme(c.Display.Scheme)) {
		return fmt.Errorf("invalid color scheme: %s", c.Display.Scheme)
	}
	if c.Display.HistoryDepth <= 0 {
		return errors.New("historyDepth must be positive")
	}

	// Normalize so later dispatch on the type matches the constants.
	c.Source.Type = strings.ToLower(c.Source.Type)

	switch c.Source.Type {
	case SourceSim:

	case SourceReplay:
		if c.Source.DBPath == "" {
			return errors.New("replay source requires dbPath")
		}
		if c.Source.SessionID <= 0 {
			return errors.New("replay source requires a session id")
		}

	default:
		return fmt.Errorf("invalid source type: %s", c.Source.Type)
	}

	return nil
}
