package render

import (
	"image"
	"image/color"
	"image/draw"
)

// fillRect fills r (clipped to img) with c.
func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r.Intersect(img.Bounds()), &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// vline draws a vertical line from (x, y0) to (x, y1) inclusive.
func vline(img *image.RGBA, x, y0, y1 int, c color.RGBA) {
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		setClipped(img, x, y, c)
	}
}

// hline draws a horizontal line from (x0, y) to (x1, y) inclusive.
func hline(img *image.RGBA, x0, x1, y int, c color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	for x := x0; x <= x1; x++ {
		setClipped(img, x, y, c)
	}
}

// dashedVLine draws a vertical line with the given on/off dash lengths.
func dashedVLine(img *image.RGBA, x, y0, y1, on, off int, c color.RGBA) {
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	period := on + off
	if period <= 0 {
		vline(img, x, y0, y1, c)
		return
	}
	for y := y0; y <= y1; y++ {
		if (y-y0)%period < on {
			setClipped(img, x, y, c)
		}
	}
}

// dashedHLine draws a horizontal line with the given on/off dash lengths.
func dashedHLine(img *image.RGBA, x0, x1, y, on, off int, c color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	period := on + off
	if period <= 0 {
		hline(img, x0, x1, y, c)
		return
	}
	for x := x0; x <= x1; x++ {
		if (x-x0)%period < on {
			setClipped(img, x, y, c)
		}
	}
}

// drawLine draws a line segment between two points (Bresenham).
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	err := dx + dy
	for {
		setClipped(img, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// blendPixel alpha-blends c over the existing pixel at (x, y).
func blendPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if !image.Pt(x, y).In(img.Bounds()) {
		return
	}
	if c.A == 255 {
		img.SetRGBA(x, y, c)
		return
	}

	dst := img.RGBAAt(x, y)
	a := uint32(c.A)
	inv := 255 - a
	img.SetRGBA(x, y, color.RGBA{
		R: uint8((uint32(c.R)*a + uint32(dst.R)*inv) / 255),
		G: uint8((uint32(c.G)*a + uint32(dst.G)*inv) / 255),
		B: uint8((uint32(c.B)*a + uint32(dst.B)*inv) / 255),
		A: 255,
	})
}

// blendVSpan alpha-blends a vertical run of pixels, used for glow strokes.
func blendVSpan(img *image.RGBA, x, y0, y1 int, c color.RGBA) {
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		blendPixel(img, x, y, c)
	}
}

func setClipped(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
