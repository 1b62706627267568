package pdfpage

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tsawler/tabula/text"

	"github.com/thywilljoshua/fincontext/internal/layout"
)

// Letter page, PDF coordinates: y grows upwards from the bottom edge.
var letter = layout.Rect{X0: 0, Y0: 0, X1: 612, Y1: 792}

func frag(s string, x, y, w float64) text.TextFragment {
	return text.TextFragment{Text: s, X: x, Y: y, Width: w, Height: 10, FontSize: 10}
}

func pageFragments() []text.TextFragment {
	return []text.TextFragment{
		frag("Revenue", 72, 700, 40),
		frag("Annual", 72, 740, 35),
		frag("Report", 110, 740, 35),
		frag("grew", 115, 700, 25),
		frag("Footer", 72, 40, 30),
		frag("   ", 300, 400, 10),
	}
}

func TestSelectFragmentsWholePage(t *testing.T) {
	got := assembleLines(selectFragments(pageFragments(), letter, nil), false)
	want := "Annual Report\nRevenue grew\nFooter"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("text mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectFragmentsTopOfPage(t *testing.T) {
	box := layout.BoundingBox{XMin: 0, YMin: 0, XMax: 100, YMax: 20}
	got := assembleLines(selectFragments(pageFragments(), letter, &box), false)
	want := "Annual Report\nRevenue grew"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("text mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectFragmentsBottomOfPage(t *testing.T) {
	box := layout.BoundingBox{XMin: 0, YMin: 90, XMax: 100, YMax: 100}
	if got := assembleLines(selectFragments(pageFragments(), letter, &box), false); got != "Footer" {
		t.Fatalf("text = %q", got)
	}
}

func TestSelectFragmentsOffsetOrigin(t *testing.T) {
	shifted := layout.Rect{X0: 100, Y0: 100, X1: 712, Y1: 892}
	frags := []text.TextFragment{frag("Top", 172, 840, 20), frag("Bottom", 172, 140, 30)}
	box := layout.BoundingBox{XMin: 0, YMin: 0, XMax: 100, YMax: 50}
	if got := assembleLines(selectFragments(frags, shifted, &box), false); got != "Top" {
		t.Fatalf("text = %q", got)
	}
}

func TestAssembleLinesJoinsAdjacentGlyphs(t *testing.T) {
	ps := selectFragments([]text.TextFragment{
		frag("1,2", 100, 500, 15),
		frag("00", 115, 500, 10),
	}, letter, nil)
	if got := assembleLines(ps, false); got != "1,200" {
		t.Fatalf("text = %q", got)
	}
}
