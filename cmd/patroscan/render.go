package main

import (
	"fmt"
	"math"
)

// Geometry describes the screen and the fixed bands of the menu layout.
type Geometry struct {
	Width        int
	Height       int
	RowHeight    int
	HeaderHeight int
	FooterHeight int

	// CharWidth is the advance of one glyph, used for centering and truncation.
	CharWidth int
}

// DefaultGeometry matches a 128x64 SSD1306 with 8px text.
func DefaultGeometry() Geometry {
	return Geometry{
		Width:        128,
		Height:       64,
		RowHeight:    8,
		HeaderHeight: 17,
		FooterHeight: 10,
		CharWidth:    6,
	}
}

// listTop is the y of the first row when the scroll offset is zero.
func (g Geometry) listTop() int { return g.HeaderHeight + 2 }

// listBottom is the y of the footer separator; rows must end on or above it.
func (g Geometry) listBottom() int { return g.Height - g.FooterHeight }

// VisibleRows is how many whole rows fit between header and footer.
func (g Geometry) VisibleRows() int {
	if g.RowHeight <= 0 {
		return 0
	}
	n := (g.listBottom() - g.listTop()) / g.RowHeight
	if n < 0 {
		return 0
	}
	return n
}

// OpKind selects which canvas primitive a DrawOp maps to.
type OpKind int

const (
	OpClear OpKind = iota
	OpText
	OpTextCentered
	OpLine
	OpRect
	OpClearRect
)

// DrawOp is one draw instruction. Which fields are used depends on Kind:
//
//	OpText:          X, Y, Text
//	OpTextCentered:  Y, Text
//	OpLine:          X, Y to X2, Y2
//	OpRect:          X, Y, W, H (filled)
//	OpClearRect:     X, Y, W, H
type DrawOp struct {
	Kind OpKind `json:"kind"`
	X    int    `json:"x,omitempty"`
	Y    int    `json:"y,omitempty"`
	X2   int    `json:"x2,omitempty"`
	Y2   int    `json:"y2,omitempty"`
	W    int    `json:"w,omitempty"`
	H    int    `json:"h,omitempty"`
	Text string `json:"text,omitempty"`
}

// MenuView is everything the layout needs for one frame.
type MenuView struct {
	Title     string
	Records   []NetworkRecord
	Selection SelectionState
	Scanning  bool
}

const (
	pointerGlyph = ">"
	barCount     = 5
	barWidth     = 2
	barSpacing   = 1

	// Row text for the selected row starts after pointer and bars.
	selectedTextX = 8 + barCount*(barWidth+barSpacing) + 3
)

// SignalBars buckets an RSSI into 1..5 bars.
func SignalBars(dbm int) int {
	switch {
	case dbm >= -50:
		return 5
	case dbm >= -60:
		return 4
	case dbm >= -70:
		return 3
	case dbm >= -80:
		return 2
	default:
		return 1
	}
}

// Layout turns a menu view into draw instructions. It does not modify v.
func Layout(v MenuView, g Geometry) []DrawOp {
	ops := make([]DrawOp, 0, 16+len(v.Records)*(2+barCount))
	ops = append(ops, DrawOp{Kind: OpClear})

	// Header
	ops = append(ops,
		DrawOp{Kind: OpTextCentered, Y: 0, Text: v.Title},
		DrawOp{Kind: OpTextCentered, Y: g.HeaderHeight / 2, Text: fmt.Sprintf("Networks found (%d)", len(v.Records))},
		DrawOp{Kind: OpLine, X: 0, Y: g.HeaderHeight, X2: g.Width - 1, Y2: g.HeaderHeight},
	)

	// Rows
	selected, hasSel := v.Selection.Selected(len(v.Records))
	scroll := int(math.Round(v.Selection.ScrollOffset))
	y := g.listTop() - scroll
	for i, rec := range v.Records {
		rowY := y
		y += g.RowHeight
		if rowY < g.HeaderHeight || rowY+g.RowHeight > g.listBottom() {
			continue
		}
		if hasSel && i == selected {
			ops = append(ops, DrawOp{Kind: OpText, X: 0, Y: rowY, Text: pointerGlyph})
			ops = appendSignalBars(ops, 8, rowY, g.RowHeight, SignalBars(rec.SignalDBM))
			ops = append(ops, DrawOp{Kind: OpText, X: selectedTextX, Y: rowY, Text: rowText(rec, g.Width-selectedTextX, g.CharWidth)})
			continue
		}
		ops = append(ops, DrawOp{Kind: OpText, X: 0, Y: rowY, Text: rowText(rec, g.Width, g.CharWidth)})
	}

	// Footer
	footerY := g.listBottom()
	ops = append(ops,
		DrawOp{Kind: OpClearRect, X: 0, Y: footerY, W: g.Width, H: g.FooterHeight},
		DrawOp{Kind: OpLine, X: 0, Y: footerY, X2: g.Width - 1, Y2: footerY},
	)
	var footer string
	switch {
	case hasSel:
		footer = v.Records[selected].Auth.Label()
	case v.Scanning:
		footer = "Scanning..."
	default:
		footer = "No networks"
	}
	ops = append(ops, DrawOp{Kind: OpText, X: 0, Y: footerY + 2, Text: fitText(footer, g.Width, g.CharWidth)})

	return ops
}

// appendSignalBars draws bars ascending left to right, bottom aligned in the row.
func appendSignalBars(ops []DrawOp, x, y, rowHeight, bars int) []DrawOp {
	for i := 0; i < bars && i < barCount; i++ {
		h := (i + 1) * (rowHeight - 1) / barCount
		if h <= 0 {
			h = 1
		}
		ops = append(ops, DrawOp{
			Kind: OpRect,
			X:    x + i*(barWidth+barSpacing),
			Y:    y + (rowHeight - 1 - h),
			W:    barWidth,
			H:    h,
		})
	}
	return ops
}

// rowText formats "name -65dBm" into width pixels, truncating the name and
// keeping the RSSI suffix intact.
func rowText(rec NetworkRecord, width, charWidth int) string {
	suffix := fmt.Sprintf(" %ddBm", rec.SignalDBM)
	maxChars := maxCharsFor(width, charWidth)
	nameMax := maxChars - len(suffix)
	if nameMax <= 0 {
		return fitText(rec.Name, width, charWidth)
	}
	return truncateText(rec.Name, nameMax) + suffix
}

func fitText(s string, width, charWidth int) string {
	return truncateText(s, maxCharsFor(width, charWidth))
}

func maxCharsFor(width, charWidth int) int {
	if charWidth <= 0 {
		return width
	}
	return width / charWidth
}

// truncateText keeps at most maxChars runes, marking a cut with "..".
func truncateText(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	if maxChars <= 2 {
		if maxChars <= 0 {
			return ""
		}
		return string(r[:maxChars])
	}
	return string(r[:maxChars-2]) + ".."
}

// Canvas is the set of drawing primitives a display backend provides.
type Canvas interface {
	Clear()
	DrawText(x, y int, s string)
	DrawTextCentered(y int, s string)
	DrawLine(x1, y1, x2, y2 int)
	DrawRect(x, y, w, h int)
	ClearRect(x, y, w, h int)
	Present() error
}

// Execute replays ops onto c and presents the frame.
func Execute(c Canvas, ops []DrawOp) error {
	for _, op := range ops {
		switch op.Kind {
		case OpClear:
			c.Clear()
		case OpText:
			c.DrawText(op.X, op.Y, op.Text)
		case OpTextCentered:
			c.DrawTextCentered(op.Y, op.Text)
		case OpLine:
			c.DrawLine(op.X, op.Y, op.X2, op.Y2)
		case OpRect:
			c.DrawRect(op.X, op.Y, op.W, op.H)
		case OpClearRect:
			c.ClearRect(op.X, op.Y, op.W, op.H)
		}
	}
	return c.Present()
}
