package view

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoSurface is returned by Snapshot before the first Resize has
// allocated a backing surface.
var ErrNoSurface = errors.New("no surface to export")

// validateSnapshotName rejects names that would escape the target
// directory and normalizes the extension to .png.
func validateSnapshotName(filename string) (string, error) {
	name := strings.TrimSpace(filename)
	if name == "" {
		return "", errors.New("filename is empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return "", errors.New("filename contains path separator")
	}
	if name == "." || name == ".." {
		return "", errors.New("invalid filename")
	}
	if !strings.EqualFold(filepath.Ext(name), ".png") {
		name += ".png"
	}
	return name, nil
}

// Snapshot writes the current composed surface as a PNG file into dir,
// creating the directory if needed, and returns the full path written.
func (s *Session) Snapshot(dir, filename string) (string, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}

	name, err := validateSnapshotName(filename)
	if err != nil {
		return "", err
	}

	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", errors.New("directory is empty")
	}

	// Copy under the lock so a concurrent Tick cannot tear the image.
	s.mu.Lock()
	if s.surface == nil {
		s.mu.Unlock()
		return "", ErrNoSurface
	}
	img := image.NewRGBA(s.surface.Bounds())
	copy(img.Pix, s.surface.Pix)
	s.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}

	path := filepath.Join(dir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating snapshot file: %w", err)
	}

	if err := png.Encode(out, img); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing snapshot file: %w", err)
	}
	return path, nil
}
