package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// defaultFontSize gives Go Mono a ~6px advance and ~8px line, close to the
// classic 6x8 OLED font.
const defaultFontSize = 10

// newMonoFace parses the embedded Go Mono font at the given pixel size.
func newMonoFace(size float64) (font.Face, error) {
	f, err := opentype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse gomono: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("new gomono face: %w", err)
	}
	return face, nil
}

// presentFunc pushes a finished frame to hardware. It may be nil for headless use.
type presentFunc func(img image.Image) error

// imageCanvas implements Canvas on top of any draw.Image.
//
// After Present, Snapshot returns a copy of the last presented frame; it is safe
// to call from other goroutines (e.g. the HTTP screenshot handler).
type imageCanvas struct {
	dst     draw.Image
	face    font.Face
	ascent  int
	on, off color.Color
	present presentFunc

	mu   sync.Mutex
	last *image.Gray
}

func newImageCanvas(dst draw.Image, face font.Face, present presentFunc) *imageCanvas {
	return &imageCanvas{
		dst:     dst,
		face:    face,
		ascent:  face.Metrics().Ascent.Ceil(),
		on:      color.White,
		off:     color.Black,
		present: present,
	}
}

func (c *imageCanvas) Clear() {
	draw.Draw(c.dst, c.dst.Bounds(), image.NewUniform(c.off), image.Point{}, draw.Src)
}

// DrawText draws s with its top-left corner at (x, y).
func (c *imageCanvas) DrawText(x, y int, s string) {
	d := font.Drawer{
		Dst:  c.dst,
		Src:  image.NewUniform(c.on),
		Face: c.face,
		Dot:  fixed.P(x, y+c.ascent),
	}
	d.DrawString(s)
}

func (c *imageCanvas) DrawTextCentered(y int, s string) {
	w := font.MeasureString(c.face, s).Ceil()
	x := (c.dst.Bounds().Dx() - w) / 2
	if x < 0 {
		x = 0
	}
	c.DrawText(x, y, s)
}

// DrawLine supports the horizontal and vertical separators the layout emits and
// falls back to a simple DDA for anything else.
func (c *imageCanvas) DrawLine(x1, y1, x2, y2 int) {
	dx, dy := x2-x1, y2-y1
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		c.dst.Set(x1, y1, c.on)
		return
	}
	for i := 0; i <= steps; i++ {
		x := x1 + dx*i/steps
		y := y1 + dy*i/steps
		c.dst.Set(x, y, c.on)
	}
}

func (c *imageCanvas) DrawRect(x, y, w, h int) {
	draw.Draw(c.dst, image.Rect(x, y, x+w, y+h), image.NewUniform(c.on), image.Point{}, draw.Src)
}

func (c *imageCanvas) ClearRect(x, y, w, h int) {
	draw.Draw(c.dst, image.Rect(x, y, x+w, y+h), image.NewUniform(c.off), image.Point{}, draw.Src)
}

func (c *imageCanvas) Present() error {
	snap := image.NewGray(c.dst.Bounds())
	draw.Draw(snap, snap.Bounds(), c.dst, c.dst.Bounds().Min, draw.Src)

	c.mu.Lock()
	c.last = snap
	c.mu.Unlock()

	if c.present == nil {
		return nil
	}
	return c.present(c.dst)
}

// Snapshot returns the last presented frame, or nil before the first Present.
func (c *imageCanvas) Snapshot() image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return nil
	}
	return c.last
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
