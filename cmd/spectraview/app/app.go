package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Three-summers/spectraview/internal/ingest"
	"github.com/Three-summers/spectraview/internal/render"
	"github.com/Three-summers/spectraview/internal/spectrum"
	"github.com/Three-summers/spectraview/internal/storage"
	"github.com/Three-summers/spectraview/internal/view"
)

const storageDir = "data"

// Run wires the configured frame source, optional recording store and
// pane session, then hands control to the window loop until the
// context is cancelled or the window closes.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	src, cleanupSrc, err := createSource(ctx, config)
	if err != nil {
		return fmt.Errorf("creating frame source: %w", err)
	}
	defer cleanupSrc()

	options := []func(*view.Session){view.WithLogger(logger)}

	if config.Recording.Enabled {
		sink, closeStore, err := createRecorder(ctx, config, logger)
		if err != nil {
			return fmt.Errorf("creating recording store: %w", err)
		}
		defer closeStore()
		options = append(options, view.WithFrameSink(sink))
	}

	session, err := view.NewSession(src, view.Config{
		TargetRateHz: config.Display.RefreshRateHz,
		HistoryDepth: config.Display.HistoryDepth,
		Scheme:       render.ColorScheme(config.Display.Scheme),
		Mode:         render.DisplayMode(config.Display.Mode),
		ThresholdDbm: config.Display.Threshold(),
		MaxFPS:       config.Display.MaxFPS,
	}, options...)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	defer session.Close()

	if err = session.Start(ctx); err != nil {
		logger.Error("subscription failed, pane starts in error state", "error", err)
	}

	return runWindow(ctx, session, config, logger)
}

func createSource(ctx context.Context, config *Config) (ingest.Source, func(), error) {
	switch config.Source.Type {
	case SourceReplay:
		store := storage.New(config.Source.DBPath)

		reader, err := store.ReadFrames(ctx, config.Source.SessionID)
		if err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("opening recorded session: %w", err)
		}

		return ingest.NewReplaySource(reader), func() { _ = store.Close() }, nil

	default:
		var options []func(*ingest.SimSource)
		if config.Source.Seed != nil {
			options = append(options, ingest.WithSeed(*config.Source.Seed))
		}
		return ingest.NewSimSource(config.Source.RateHz, options...), func() {}, nil
	}
}

func createRecorder(ctx context.Context, config *Config, logger *slog.Logger) (func(spectrum.Frame), func(), error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("getting working directory: %w", err)
	}

	dir := config.Recording.DataDirectory
	if dir == "" {
		dir = storageDir
	}
	dbDir := filepath.Join(wd, dir)

	if err = os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating storage directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, fmt.Sprintf("spectra_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	store := storage.New(dbPath)

	sessionID, err := store.CreateSession(ctx, config.Source.Type, "spectraview", config.Source)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("creating session record: %w", err)
	}

	logger.Info("recording session", slog.String("path", dbPath), slog.Int64("session", sessionID))

	sink := func(f spectrum.Frame) {
		if err := store.AppendFrame(ctx, sessionID, f); err != nil {
			logger.Warn("storing frame failed", "error", err)
		}
	}
	return sink, func() { _ = store.Close() }, nil
}
