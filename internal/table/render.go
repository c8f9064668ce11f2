package table

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/sigreer/lsblkpro/internal/model"
)

// Bullet separates a primary name from an annotation flushed to the right
const Bullet = "•"

// ErrPaletteExhausted is returned when a highlighted field has more distinct
// values than there are colors
var ErrPaletteExhausted = errors.New("not enough colors to highlight")

// Glyphs are the tree branches drawn in front of partitions
type Glyphs struct {
	Mid string
	End string
}

var (
	UnicodeGlyphs = Glyphs{Mid: " ├─ ", End: " └─ "}
	ASCIIGlyphs   = Glyphs{Mid: " |- ", End: " `- "}
)

// leftAligned columns read better flush left; everything else is numeric-ish
var leftAligned = map[string]bool{
	KeyDisplayName: true,
	KeyLocation:    true,
	"HCTL":         true,
	"by-id":        true,
	"by-path":      true,
	KeyName:        true,
	"NAME":         true,
	"KNAME":        true,
	"MOUNTPOINT":   true,
}

// palette returns the highlight colors, distinct enough for colorblind users
func palette() []*color.Color {
	return []*color.Color{
		color.New(color.Reset),
		color.New(color.FgRed),
		color.New(color.FgGreen),
		color.New(color.FgBlue),
		color.New(color.BgRed),
		color.New(color.BgGreen),
		color.New(color.BgBlue),
		color.New(color.BgMagenta),
		color.New(color.FgBlack, color.BgCyan),
		color.New(color.FgBlack, color.BgWhite),
	}
}

// RenderConfig carries every presentation choice of one invocation
type RenderConfig struct {
	Glyphs Glyphs

	// Highlight is the field whose values pick a row color; empty disables it
	Highlight string

	// Color enables ANSI escapes
	Color bool
}

// Renderer writes banners and the table
type Renderer struct {
	cfg RenderConfig
}

// NewRenderer creates a renderer for cfg
func NewRenderer(cfg RenderConfig) *Renderer {
	if cfg.Glyphs == (Glyphs{}) {
		cfg.Glyphs = UnicodeGlyphs
	}
	return &Renderer{cfg: cfg}
}

// Decorate computes display names using the configured glyphs
func (r *Renderer) Decorate(rows []*Row) {
	Decorate(rows, r.cfg.Glyphs)
}

// Highlights assigns a palette color to every distinct value of the
// highlight field, in row order
func (r *Renderer) Highlights(rows []*Row) ([]*color.Color, error) {
	if r.cfg.Highlight == "" {
		return nil, nil
	}
	colors := palette()
	assigned := make(map[string]*color.Color)
	out := make([]*color.Color, len(rows))
	for i, row := range rows {
		v, _ := row.Lookup(r.cfg.Highlight)
		c, ok := assigned[v]
		if !ok {
			if len(assigned) == len(colors) {
				return nil, fmt.Errorf("%w by '%s': more than %d distinct values", ErrPaletteExhausted, r.cfg.Highlight, len(colors))
			}
			c = colors[len(assigned)]
			if r.cfg.Color {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
			assigned[v] = c
		}
		out[i] = c
	}
	return out, nil
}

// Banners are the notes printed above the table
type Banners struct {
	Filters          []string
	MissingFromLsblk []string
	Warnings         []model.Warning
}

// Render writes the banners followed by the table. Highlight colors are
// assigned first so palette exhaustion is reported before any output.
func (r *Renderer) Render(w io.Writer, rows []*Row, plan Plan, banners Banners) error {
	colors, err := r.Highlights(rows)
	if err != nil {
		return err
	}
	if err := r.WriteBanners(w, plan, banners); err != nil {
		return err
	}
	return r.WriteTable(w, rows, plan, colors)
}

// WriteBanners prints the filter, uniform, label and lsblk notes
func (r *Renderer) WriteBanners(w io.Writer, plan Plan, b Banners) error {
	bw := &errWriter{w: w}

	if len(b.Filters) > 0 {
		bw.printf("Showing only entries where:\n")
		for _, f := range b.Filters {
			bw.printf("  %s\n", f)
		}
		bw.printf("\n")
	}

	facts := append(append([]Fact(nil), plan.Aliases...), plan.Uniform...)
	if len(facts) > 0 {
		bw.printf("Every device has these fields:\n")
		width := 0
		for _, f := range facts {
			width = max(width, runewidth.StringWidth(f.Key))
		}
		for _, f := range facts {
			bw.printf("  %s = %s\n", runewidth.FillRight(f.Key, width), f.Value)
		}
		bw.printf("\n")
	}

	if len(plan.Unranked) > 0 {
		bw.printf("Missing labels:\n  %s\n\n", strings.Join(plan.Unranked, ", "))
	}
	if len(plan.Overflow) > 0 {
		bw.printf("Overflowing labels:\n  %s\n\n", strings.Join(plan.Overflow, ", "))
	}
	if len(b.MissingFromLsblk) > 0 {
		bw.printf("Present in sysfs but not in `lsblk`:\n  %s\n\n", strings.Join(b.MissingFromLsblk, ", "))
	}

	if len(b.Warnings) > 0 {
		bw.printf("Warnings:\n")
		for _, warn := range b.Warnings {
			bw.printf("  %s\n", warn)
			if warn.Hint != "" {
				bw.printf("    %s\n", warn.Hint)
			}
		}
		bw.printf("\n")
	}
	return bw.err
}

// WriteTable prints the header and one line per row. colors may be nil.
func (r *Renderer) WriteTable(w io.Writer, rows []*Row, plan Plan, colors []*color.Color) error {
	if len(plan.Columns) == 0 {
		return nil
	}
	bw := &errWriter{w: w}

	cells := make([]string, len(plan.Columns))
	for i, c := range plan.Columns {
		cells[i] = align(c, Header(c.Key))
	}
	bw.printf("%s\n", strings.Join(cells, " "))

	for n, row := range rows {
		for i, c := range plan.Columns {
			cells[i] = align(c, splitBullet(Cell(row, c.Key), c.Width))
		}
		line := strings.Join(cells, " ")
		if colors != nil && colors[n] != nil {
			line = colors[n].Sprint(line)
		}
		bw.printf("%s\n", line)
	}
	return bw.err
}

func align(c Column, s string) string {
	if leftAligned[c.Key] {
		return runewidth.FillRight(s, c.Width)
	}
	return runewidth.FillLeft(s, c.Width)
}

// splitBullet turns "sda•a4" into "sda" and "a4" at opposite edges of width
func splitBullet(s string, width int) string {
	left, right, ok := strings.Cut(s, Bullet)
	if !ok {
		return s
	}
	right = strings.ReplaceAll(right, Bullet, " ")
	gap := width - runewidth.StringWidth(left) - runewidth.StringWidth(right)
	return left + strings.Repeat(" ", max(gap, 1)) + right
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
