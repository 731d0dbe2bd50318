package terminal

import (
	"fmt"
	"math"
	"path"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/Flgjfvevdk/pilot-together/internal/scene"
)

// Screen layout: a status row, the play field, a gauge row and a roster row.
const (
	statusRows = 1
	footerRows = 2
)

var (
	styleDefault = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorBlack)
	styleNotice  = styleDefault.Foreground(tcell.ColorYellow)
	styleDim     = styleDefault.Foreground(tcell.ColorGray)
)

// Sprite glyphs keyed by image base name, then by entity id.
var glyphs = map[string]struct {
	glyph string
	color tcell.Color
}{
	"asteroid":   {"●", tcell.ColorTan},
	"projectile": {"•", tcell.ColorYellow},
	"shield":     {"◌", tcell.ColorDodgerBlue},
}

// selfArrows point along the ship angle, clockwise from right in 45 degree steps.
var selfArrows = []string{"→", "↘", "↓", "↙", "←", "↖", "↑", "↗"}

// fieldRows returns the number of screen rows used by the play field.
func fieldRows(h int) int {
	return max(h-statusRows-footerRows, 1)
}

// fieldToCell converts play field percent to a screen cell.
func fieldToCell(x, y float64, w, h int) (int, int) {
	rows := fieldRows(h)
	col := int(x / 100 * float64(w))
	row := int(y / 100 * float64(rows))
	return clampInt(col, 0, w-1), statusRows + clampInt(row, 0, rows-1)
}

// cellToField converts a screen cell to a play field pixel at the cell centre.
func (u *UI) cellToField(col, row int) (float64, float64) {
	w, h := u.screen.Size()
	rows := fieldRows(h)
	col = clampInt(col, 0, w-1)
	row = clampInt(row-statusRows, 0, rows-1)
	x := (float64(col) + 0.5) / float64(w) * u.cfg.FieldWidth
	y := (float64(row) + 0.5) / float64(rows) * u.cfg.FieldHeight
	return x, y
}

// draw paints the last frame.
func (u *UI) draw() {
	scr := u.screen
	scr.Clear()
	w, h := scr.Size()
	f := u.frame

	x := putText(scr, 0, 0, f.Status, styleDefault, w)
	if f.Notice != "" {
		putText(scr, x+2, 0, f.Notice, styleNotice, w)
	}

	for _, e := range f.Entries {
		if !e.Attributes.Visible {
			continue
		}
		glyph, style := entityGlyph(e)
		col, row := fieldToCell(e.Attributes.X, e.Attributes.Y, w, h)
		putGlyph(scr, col, row, glyph, style, w)
	}

	var gauges []string
	if f.Health != nil {
		gauges = append(gauges, "HP "+bar(f.Health.Ratio(), 10)+fmt.Sprintf(" %.0f/%.0f", f.Health.Current, f.Health.Max))
	}
	if f.Temperature != nil {
		gauges = append(gauges, "TEMP "+bar(f.Temperature.Ratio(), 10)+fmt.Sprintf(" %.0f/%.0f", f.Temperature.Current, f.Temperature.Max))
	}
	if f.Weapon > 0 {
		gauges = append(gauges, fmt.Sprintf("W%d/%d", f.Weapon, f.Weapons))
	}
	putText(scr, 0, h-2, strings.Join(gauges, "  "), styleDefault, w)
	putText(scr, 0, h-1, strings.Join(f.Players, ", "), styleDim, w)

	scr.Show()
}

func entityGlyph(e scene.Entry) (string, tcell.Style) {
	if e.ID == scene.SelfID {
		deg := e.Attributes.Angle * 180 / math.Pi
		i := int(math.Round(deg/45)) % len(selfArrows)
		if i < 0 {
			i += len(selfArrows)
		}
		return selfArrows[i], styleDefault.Foreground(tcell.ColorAqua).Bold(true)
	}
	img := e.Attributes.Image
	name := strings.TrimSuffix(path.Base(img), path.Ext(img))
	if g, ok := glyphs[name]; ok {
		return g.glyph, styleDefault.Foreground(g.color)
	}
	if g, ok := glyphs[e.ID]; ok {
		return g.glyph, styleDefault.Foreground(g.color)
	}
	return "?", styleDefault
}

func bar(ratio float64, width int) string {
	n := int(math.Round(ratio * float64(width)))
	return "[" + strings.Repeat("#", n) + strings.Repeat(" ", width-n) + "]"
}

// putText writes s at (x, y), stopping at the right edge. It returns the
// column after the last cell written.
func putText(scr tcell.Screen, x, y int, s string, st tcell.Style, width int) int {
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if rw == 0 {
			continue
		}
		if x+rw > width {
			break
		}
		scr.SetContent(x, y, r, nil, st)
		x += rw
	}
	return x
}

// putGlyph draws a single glyph, filling the second column of wide glyphs.
func putGlyph(scr tcell.Screen, x, y int, glyph string, style tcell.Style, width int) {
	runes := []rune(glyph)
	if len(runes) == 0 {
		return
	}
	wide := runewidth.StringWidth(glyph) == 2
	if wide && x+1 >= width {
		x = width - 2
	}
	scr.SetContent(x, y, runes[0], runes[1:], style)
	if wide {
		scr.SetContent(x+1, y, ' ', nil, style)
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
