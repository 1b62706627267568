package pdfpage

import (
	"context"
	"regexp"
	"strings"

	"github.com/tsawler/tabula/model"
	"github.com/tsawler/tabula/tables"

	"github.com/thywilljoshua/fincontext/internal/layout"
)

// ExtractTables returns the tables inside box as Markdown. Geometric
// detection runs first; when it finds nothing, column-aligned text lines are
// read as a table instead. An empty result means no table was found.
func (l *Loader) ExtractTables(ctx context.Context, page *Page, box *layout.BoundingBox) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frags, err := fragments(page.path, page.Number)
	if err != nil {
		return nil, err
	}
	inside := selectFragments(frags, page.Extents, box)
	if len(inside) == 0 {
		return nil, nil
	}

	mp := &model.Page{
		Number: page.Number + 1,
		Width:  page.Extents.Width(),
		Height: page.Extents.Height(),
	}
	for _, p := range inside {
		f := p.frag
		mp.RawText = append(mp.RawText, model.TextFragment{
			Text:     f.Text,
			BBox:     model.BBox{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height},
			FontSize: f.FontSize,
			FontName: f.FontName,
		})
	}

	detected, err := tables.NewGeometricDetector().Detect(mp)
	if err != nil {
		l.log.Warn("pdfpage.tables.detect_failed", "source", page.Source, "page", page.Number, "err", err)
	}
	var out []string
	for _, t := range detected {
		if md := strings.TrimSpace(t.ToMarkdown()); md != "" {
			out = append(out, md)
		}
	}
	if len(out) > 0 {
		return out, nil
	}
	return columnTables(assembleLines(inside, true)), nil
}

var twoPlusSpaces = regexp.MustCompile(`\s{2,}`)

// columnTables finds runs of at least two lines that split into the same
// number (two or more) of columns on wide gaps, and renders each run as a
// Markdown table. The first line of a run is its header.
func columnTables(text string) []string {
	var out []string
	var block [][]string
	flush := func() {
		if len(block) >= 2 {
			out = append(out, markdownTable(block))
		}
		block = nil
	}
	for _, ln := range strings.Split(text, "\n") {
		parts := splitColumns(ln)
		if len(parts) < 2 || (len(block) > 0 && len(parts) != len(block[0])) {
			flush()
			if len(parts) >= 2 {
				block = append(block, parts)
			}
			continue
		}
		block = append(block, parts)
	}
	flush()
	return out
}

func splitColumns(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	parts := twoPlusSpaces.Split(line, -1)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func markdownTable(rows [][]string) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(rows[0], " | ") + " |\n")
	sep := make([]string, len(rows[0]))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |")
	for _, r := range rows[1:] {
		b.WriteString("\n| " + strings.Join(r, " | ") + " |")
	}
	return b.String()
}
