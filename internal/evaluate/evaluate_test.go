package evaluate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/thywilljoshua/fincontext/internal/layout"
)

func text(first, last string) layout.Section {
	return layout.Section{
		ContentType: layout.ContentText,
		Overview:    layout.TextOverview{TextSubtype: "body_text", FirstThreeWords: first, LastThreeWords: last},
	}
}

func table(rows ...string) layout.Section {
	return layout.Section{ContentType: layout.ContentTable, Overview: layout.TableOverview{RowHeaders: rows}}
}

func graph(axes ...string) layout.Section {
	return layout.Section{ContentType: layout.ContentGraph, Overview: layout.GraphOverview{AxisLabels: axes}}
}

var labelled = []layout.Section{
	text("Company's new portable", "and Financial Condition"),
	text("Backlog", "gross margin percentages"),
	table("Net sales", "Cost of sales", "Gross margin", "Gross margin percentage"),
}

func TestCompareSections(t *testing.T) {
	tests := []struct {
		name  string
		got   []layout.Section
		score int
	}{
		{"exact", labelled, 1},
		{
			"paragraphs merged",
			[]layout.Section{
				text("company's new portable", "gross margin percentages."),
				table("Net Sales", "Cost of sales", "Gross margin", "Gross margin percentage", "Total"),
			},
			1,
		},
		{
			"paragraph split",
			[]layout.Section{
				text("Company's new portable", "in the quarter"),
				text("The backlog", "and Financial Condition"),
				text("Backlog at year", "gross margin percentages"),
				table("Net sales", "Cost of sales", "Gross margin", "Gross margin percentage"),
			},
			1,
		},
		{"table missing", labelled[:2], 0},
		{
			"wrong order",
			[]layout.Section{labelled[2], labelled[0], labelled[1]},
			0,
		},
		{
			"wrong start",
			[]layout.Section{text("Results of operations", "gross margin percentages"), labelled[2]},
			0,
		},
		{
			"header missing",
			[]layout.Section{labelled[0], labelled[1], table("Net sales", "Gross margin")},
			0,
		},
		{
			"graph instead of table",
			[]layout.Section{labelled[0], labelled[1], graph("Net sales")},
			0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := CompareSections(labelled, tt.got)
			if res.Score != tt.score {
				t.Fatalf("score = %d (%s), want %d", res.Score, res.Reason, tt.score)
			}
			if res.Reason == "" {
				t.Error("empty reason")
			}
		})
	}
}

func TestCompareGraphs(t *testing.T) {
	want := []layout.Section{graph("Year", "Revenue")}
	if res := CompareSections(want, []layout.Section{graph("revenue", "year", "EUR")}); res.Score != 1 {
		t.Fatalf("score = 0: %s", res.Reason)
	}
	if res := CompareSections(want, []layout.Section{graph("year")}); res.Score != 0 {
		t.Fatal("missing axis label should fail")
	}
}

const casesYAML = `
- name: apple 10-k page
  image: page.png
  expected:
    - content_type: text
      overview:
        text_subtype: body_text
        first_three_words: Backlog
        last_three_words: gross margin percentages
    - content_type: table
      overview:
        row_headers: [Net sales, Cost of sales]
- image: /abs/other.png
  expected:
    - content_type: graph
      overview: {axis_labels: [year]}
`

func TestLoadCases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cases.yaml")
	if err := os.WriteFile(path, []byte(casesYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cases, err := LoadCases(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []Case{
		{
			Name:  "apple 10-k page",
			Image: filepath.Join(dir, "page.png"),
			Expected: []layout.Section{
				text("Backlog", "gross margin percentages"),
				table("Net sales", "Cost of sales"),
			},
		},
		{Name: "other.png", Image: "/abs/other.png", Expected: []layout.Section{graph("year")}},
	}
	if diff := cmp.Diff(want, cases); diff != "" {
		t.Fatalf("cases mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCasesInvalid(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"no-image.yaml": "- expected: []\n",
		"bad-text.yaml": "- image: a.png\n  expected:\n    - content_type: text\n      overview: {}\n",
		"not-yaml.yaml": "- [unclosed\n",
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadCases(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

type stubSummarizer struct {
	out []layout.Section
	err error
}

func (s stubSummarizer) Summarize(ctx context.Context, img []byte) ([]layout.Section, error) {
	return s.out, s.err
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "p.png")
	if err := os.WriteFile(img, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	cases := []Case{{Name: "p", Image: img, Expected: labelled}}

	reports, err := Run(context.Background(), stubSummarizer{out: labelled}, cases, nil)
	if err != nil {
		t.Fatal(err)
	}
	if Accuracy(reports) != 1 {
		t.Fatalf("accuracy = %v, reports = %+v", Accuracy(reports), reports)
	}

	reports, err = Run(context.Background(), stubSummarizer{err: errors.New("quota")}, cases, nil)
	if err != nil {
		t.Fatal(err)
	}
	if Accuracy(reports) != 0 || reports[0].Error == "" {
		t.Fatalf("reports = %+v", reports)
	}
}
