package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/Three-summers/spectraview/internal/render"
	"github.com/Three-summers/spectraview/internal/view"
)

var modeCycle = []render.DisplayMode{render.ModeFill, render.ModeLine, render.ModeBars}

var schemeCycle = []render.ColorScheme{
	render.SchemeTurbo,
	render.SchemeViridis,
	render.SchemeJet,
	render.SchemeGrayscale,
}

// runWindow hosts the session surface in a desktop window. It blocks
// until the window closes or the context is cancelled.
func runWindow(ctx context.Context, session *view.Session, config *Config, logger *slog.Logger) error {
	g := &game{
		ctx:         ctx,
		session:     session,
		logger:      logger,
		snapshotDir: config.Display.SnapshotDir,
	}

	ebiten.SetWindowTitle("spectraview")
	ebiten.SetWindowSize(config.Display.WindowWidth, config.Display.WindowHeight)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(60)

	if err := ebiten.RunGame(g); err != nil {
		return fmt.Errorf("window loop: %w", err)
	}
	return nil
}

type game struct {
	ctx         context.Context
	session     *view.Session
	logger      *slog.Logger
	snapshotDir string

	width, height int
	surface       *ebiten.Image
}

// Update handles input and advances the session at the paint boundary.
func (g *game) Update() error {
	if err := g.ctx.Err(); err != nil {
		return ebiten.Termination
	}

	g.session.SetVisible(!ebiten.IsWindowMinimized())

	g.handleKeys()

	x, y := ebiten.CursorPosition()
	g.session.Hover(x, y)

	g.session.Tick()
	return nil
}

func (g *game) handleKeys() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.session.TogglePause()

	case inpututil.IsKeyJustPressed(ebiten.KeyM):
		g.cycleMode()

	case inpututil.IsKeyJustPressed(ebiten.KeyC):
		g.cycleScheme()

	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		if err := g.session.Retry(); err != nil {
			g.logger.Warn("retry failed", "error", err)
		}

	case inpututil.IsKeyJustPressed(ebiten.KeyH):
		g.session.ResetMaxHold()
		g.session.ResetAverage()

	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		name := fmt.Sprintf("spectrum_%s.png", time.Now().Format("20060102_150405"))
		path, err := g.session.Snapshot(g.snapshotDir, name)
		if err != nil {
			g.logger.Warn("snapshot failed", "error", err)
			return
		}
		g.logger.Info("snapshot saved", slog.String("path", path))
	}
}

func (g *game) cycleMode() {
	cur := g.session.Mode()
	for i, m := range modeCycle {
		if m == cur {
			next := modeCycle[(i+1)%len(modeCycle)]
			if err := g.session.SetDisplayMode(next); err != nil {
				g.logger.Warn("switching display mode failed", "error", err)
			}
			return
		}
	}
}

func (g *game) cycleScheme() {
	cur := g.session.Scheme()
	for i, sc := range schemeCycle {
		if sc == cur {
			next := schemeCycle[(i+1)%len(schemeCycle)]
			if err := g.session.SetColorScheme(next); err != nil {
				g.logger.Warn("switching color scheme failed", "error", err)
			}
			return
		}
	}
}

// Draw blits the composed session surface into the window.
func (g *game) Draw(screen *ebiten.Image) {
	img := g.session.Surface()
	if img == nil {
		return
	}

	b := img.Bounds()
	if g.surface == nil || g.surface.Bounds().Dx() != b.Dx() || g.surface.Bounds().Dy() != b.Dy() {
		if g.surface != nil {
			g.surface.Deallocate()
		}
		g.surface = ebiten.NewImage(b.Dx(), b.Dy())
	}

	g.surface.WritePixels(img.Pix)
	screen.DrawImage(g.surface, nil)
}

// Layout matches the backing surface to the window size.
func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != g.width || outsideHeight != g.height {
		g.width, g.height = outsideWidth, outsideHeight
		g.session.Resize(view.ViewportSize{WidthPx: outsideWidth, HeightPx: outsideHeight, PixelRatio: 1})
	}
	return outsideWidth, outsideHeight
}
