// Package preview draws an editing session on a terminal.
//
// A Painter maps canvas pixels onto character cells at a fixed scale and
// draws element outlines, the selection and the active guides onto any
// Surface. A Viewer runs a tcell screen and feeds mouse and key events
// back into the session, so elements can be selected and dragged in the
// terminal.
package preview

import (
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/pagecraft/internal/editor"
	"github.com/dshills/pagecraft/internal/geometry"
	"github.com/dshills/pagecraft/internal/guides"
	"github.com/dshills/pagecraft/internal/scene"
)

// Default pixels per cell. Cells are about twice as tall as they are wide.
const (
	DefaultScaleX = 10.0
	DefaultScaleY = 20.0
)

// Surface is a grid of styled cells. tcell.Screen satisfies it.
type Surface interface {
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
	Size() (width, height int)
}

// Styles are the cell styles the painter uses.
type Styles struct {
	Canvas   tcell.Style
	Outline  tcell.Style
	Group    tcell.Style
	Selected tcell.Style
	Locked   tcell.Style
	Guide    tcell.Style
	Status   tcell.Style
}

// DefaultStyles returns the default palette.
func DefaultStyles() Styles {
	base := tcell.StyleDefault
	return Styles{
		Canvas:   base.Foreground(tcell.ColorGray).Dim(true),
		Outline:  base.Foreground(tcell.ColorWhite),
		Group:    base.Foreground(tcell.ColorTeal),
		Selected: base.Foreground(tcell.ColorYellow).Bold(true),
		Locked:   base.Foreground(tcell.ColorGray).Dim(true),
		Guide:    base.Foreground(tcell.ColorFuchsia),
		Status:   base.Reverse(true),
	}
}

// Frame is everything one paint needs. Rects are canvas-local.
type Frame struct {
	Canvas   geometry.Rect
	Elements []scene.Element // parents before children
	Rects    map[string]geometry.Rect
	Selected map[string]bool
	Guides   []guides.Guide
	Status   string
}

// Capture snapshots the session into a frame.
func Capture(s *editor.Session, status string) Frame {
	all := s.Scene.All()
	f := Frame{
		Canvas:   s.Scene.Canvas(),
		Elements: all,
		Rects:    make(map[string]geometry.Rect, len(all)),
		Selected: make(map[string]bool),
		Guides:   s.Guides.Current(),
		Status:   status,
	}
	for _, el := range all {
		if r, ok := s.Scene.AbsoluteRect(el.ID); ok {
			f.Rects[el.ID] = r
		}
	}
	for _, id := range s.Selection.IDs() {
		f.Selected[id] = true
	}
	return f
}

// Painter draws frames at a pixels-per-cell scale.
type Painter struct {
	scaleX, scaleY float64
	styles         Styles
}

// PainterOption configures a Painter.
type PainterOption func(*Painter)

// WithScale sets the pixels per cell. Non-positive values keep the default.
func WithScale(x, y float64) PainterOption {
	return func(p *Painter) {
		if x > 0 {
			p.scaleX = x
		}
		if y > 0 {
			p.scaleY = y
		}
	}
}

// WithStyles replaces the palette.
func WithStyles(s Styles) PainterOption {
	return func(p *Painter) {
		p.styles = s
	}
}

// NewPainter creates a painter.
func NewPainter(opts ...PainterOption) *Painter {
	p := &Painter{
		scaleX: DefaultScaleX,
		scaleY: DefaultScaleY,
		styles: DefaultStyles(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Scale returns the pixels per cell.
func (p *Painter) Scale() (x, y float64) {
	return p.scaleX, p.scaleY
}

// CellToPoint returns the canvas point at the center of a cell.
func (p *Painter) CellToPoint(col, row int) geometry.Point {
	return geometry.Point{
		X: (float64(col) + 0.5) * p.scaleX,
		Y: (float64(row) + 0.5) * p.scaleY,
	}
}

// cellSpan returns the first and last cell covered by [lo, hi) pixels.
func cellSpan(lo, hi, scale float64) (first, last int) {
	first = int(math.Floor(lo / scale))
	last = int(math.Ceil(hi/scale)) - 1
	if last < first {
		last = first
	}
	return first, last
}

// Paint clears dst and draws f onto it. Hidden elements and the children of
// hidden groups are skipped; locked elements and their children are dimmed.
func (p *Painter) Paint(dst Surface, f Frame) {
	w, h := dst.Size()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetContent(x, y, ' ', nil, tcell.StyleDefault)
		}
	}

	p.box(dst, f.Canvas, boxPlain, p.styles.Canvas, "")

	hidden := make(map[string]bool)
	locked := make(map[string]bool)
	for _, el := range f.Elements {
		if el.Hidden || hidden[el.ParentID] {
			hidden[el.ID] = true
			continue
		}
		locked[el.ID] = el.Locked || locked[el.ParentID]

		r, ok := f.Rects[el.ID]
		if !ok {
			continue
		}
		runes := boxPlain
		style := p.styles.Outline
		if el.IsGroup() {
			runes = boxRounded
			style = p.styles.Group
		}
		switch {
		case f.Selected[el.ID]:
			runes = boxHeavy
			style = p.styles.Selected
		case locked[el.ID]:
			style = p.styles.Locked
		}
		label := el.Name
		if label == "" {
			label = el.ID
		}
		p.box(dst, r, runes, style, label)
	}

	for _, g := range f.Guides {
		p.guide(dst, g)
	}

	if f.Status != "" && h > 0 {
		row := []rune(f.Status)
		for x := 0; x < w; x++ {
			ch := ' '
			if x < len(row) {
				ch = row[x]
			}
			dst.SetContent(x, h-1, ch, nil, p.styles.Status)
		}
	}
}

// boxRunes are horizontal, vertical, then corners clockwise from top left.
type boxRunes [6]rune

var (
	boxPlain   = boxRunes{'─', '│', '┌', '┐', '┘', '└'}
	boxRounded = boxRunes{'─', '│', '╭', '╮', '╯', '╰'}
	boxHeavy   = boxRunes{'━', '┃', '┏', '┓', '┛', '┗'}
)

func (p *Painter) box(dst Surface, r geometry.Rect, b boxRunes, style tcell.Style, label string) {
	x0, x1 := cellSpan(r.Left(), r.Right(), p.scaleX)
	y0, y1 := cellSpan(r.Top(), r.Bottom(), p.scaleY)

	put := func(x, y int, ch rune) {
		if w, h := dst.Size(); x >= 0 && y >= 0 && x < w && y < h {
			dst.SetContent(x, y, ch, nil, style)
		}
	}

	for x := x0; x <= x1; x++ {
		put(x, y0, b[0])
		put(x, y1, b[0])
	}
	for y := y0; y <= y1; y++ {
		put(x0, y, b[1])
		put(x1, y, b[1])
	}
	if x0 == x1 && y0 == y1 {
		put(x0, y0, '■')
		return
	}
	put(x0, y0, b[2])
	put(x1, y0, b[3])
	put(x1, y1, b[4])
	put(x0, y1, b[5])

	for i, ch := range []rune(label) {
		x := x0 + 1 + i
		if x >= x1 {
			break
		}
		put(x, y0, ch)
	}
}

func (p *Painter) guide(dst Surface, g guides.Guide) {
	w, h := dst.Size()
	if g.Orientation == guides.Vertical {
		x := int(math.Floor(g.Position / p.scaleX))
		if x < 0 || x >= w {
			return
		}
		for y := 0; y < h; y++ {
			dst.SetContent(x, y, '┊', nil, p.styles.Guide)
		}
		return
	}
	y := int(math.Floor(g.Position / p.scaleY))
	if y < 0 || y >= h {
		return
	}
	for x := 0; x < w; x++ {
		dst.SetContent(x, y, '┄', nil, p.styles.Guide)
	}
}
