package pdfpage

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/tsawler/tabula/text"

	"github.com/thywilljoshua/fincontext/internal/layout"
)

// ExtractText returns the text of page that lies inside box, one line per
// visual line. A nil box selects the whole page.
func (l *Loader) ExtractText(ctx context.Context, page *Page, box *layout.BoundingBox) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	frags, err := fragments(page.path, page.Number)
	if err != nil {
		return "", err
	}
	inside := selectFragments(frags, page.Extents, box)
	return assembleLines(inside, false), nil
}

// placed is a fragment in top-down page coordinates.
type placed struct {
	text     string
	x0, x1   float64
	y        float64 // vertical centre, growing downwards
	height   float64
	fontSize float64
	frag     text.TextFragment
}

// selectFragments keeps fragments whose centre lies inside box. PDF user
// space grows upwards, so Y is flipped against the page extents first.
func selectFragments(frags []text.TextFragment, extents layout.Rect, box *layout.BoundingBox) []placed {
	region := layout.ToAbsolute(box, extents)
	var out []placed
	for _, f := range frags {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		cx := f.X + f.Width/2
		cy := extents.Y0 + (extents.Y1 - (f.Y + f.Height/2))
		if cx < region.X0 || cx > region.X1 || cy < region.Y0 || cy > region.Y1 {
			continue
		}
		out = append(out, placed{
			text:     f.Text,
			x0:       f.X,
			x1:       f.X + f.Width,
			y:        cy,
			height:   f.Height,
			fontSize: f.FontSize,
			frag:     f,
		})
	}
	return out
}

// groupLines clusters fragments sharing a baseline and orders each line
// left to right.
func groupLines(ps []placed) [][]placed {
	sorted := append([]placed(nil), ps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].y-sorted[j].y) > lineTolerance(sorted[i], sorted[j]) {
			return sorted[i].y < sorted[j].y
		}
		return sorted[i].x0 < sorted[j].x0
	})

	var lines [][]placed
	for _, p := range sorted {
		n := len(lines)
		if n > 0 && math.Abs(lines[n-1][0].y-p.y) <= lineTolerance(lines[n-1][0], p) {
			lines[n-1] = append(lines[n-1], p)
			continue
		}
		lines = append(lines, []placed{p})
	}
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].x0 < line[j].x0 })
	}
	return lines
}

func lineTolerance(a, b placed) float64 {
	h := math.Max(a.height, b.height)
	if h <= 0 {
		h = math.Max(a.fontSize, b.fontSize)
	}
	return math.Max(2, h/2)
}

// assembleLines joins fragments into text. Word gaps become one space; with
// columns set, wide gaps become two spaces so column layout survives.
func assembleLines(ps []placed, columns bool) string {
	var b strings.Builder
	for i, line := range groupLines(ps) {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, p := range line {
			if j > 0 {
				gap := p.x0 - line[j-1].x1
				size := math.Max(p.fontSize, p.height)
				switch {
				case columns && gap > 1.5*size:
					b.WriteString("  ")
				case gap > math.Max(1, 0.2*size):
					b.WriteByte(' ')
				}
			}
			b.WriteString(p.text)
		}
	}
	return b.String()
}
