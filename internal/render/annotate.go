package render

import (
	"fmt"
	"image"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	fontDPI  = 72.0
	fontSize = 11.0
)

// annotator draws label text onto RGBA surfaces. Each renderer owns its
// own instance; freetype contexts are not safe for sharing.
type annotator struct {
	context  *freetype.Context
	fontFace font.Face
}

func newAnnotator(size float64) (*annotator, error) {
	if size <= 0 {
		size = fontSize
	}

	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(fontDPI)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(size)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.White)

	return &annotator{
		context: ctx,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    size,
			DPI:     fontDPI,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

// setColor changes the source used for subsequent drawString calls.
func (a *annotator) setColor(src image.Image) {
	a.context.SetSrc(src)
}

// drawString renders s with its baseline at (x, y).
func (a *annotator) drawString(img *image.RGBA, s string, x, y int) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if _, err := a.context.DrawString(s, freetype.Pt(x, y)); err != nil {
		return fmt.Errorf("drawing label: %w", err)
	}
	return nil
}

// measure returns the rendered width of s in pixels.
func (a *annotator) measure(s string) int {
	return font.MeasureString(a.fontFace, s).Round()
}

// lineHeight returns the font's ascent plus descent in pixels.
func (a *annotator) lineHeight() int {
	m := a.fontFace.Metrics()
	return (m.Ascent + m.Descent).Round()
}

// ascent returns the font's ascent in pixels.
func (a *annotator) ascent() int {
	return a.fontFace.Metrics().Ascent.Round()
}

// FormatHz renders a frequency with an SI prefix, e.g. "2.40 kHz".
func FormatHz(hz float64) string {
	fract, suffix := humanize.ComputeSI(hz)
	return fmt.Sprintf("%0.2f %sHz", fract, suffix)
}
