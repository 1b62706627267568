// Package evaluate scores the page summarizer against hand-labelled pages.
//
// A summary matches when it covers every expected section in order.
// Neighbouring sections of the same content type may be split or merged
// differently from the label without losing the match.
package evaluate

import (
	"fmt"
	"strings"

	"github.com/thywilljoshua/fincontext/internal/layout"
)

// Result is a pass/fail score with the first reason for failing.
type Result struct {
	Score  int    `json:"accuracy_score" yaml:"accuracy_score"`
	Reason string `json:"accuracy_reason" yaml:"accuracy_reason"`
}

// run is a maximal stretch of adjacent sections sharing a content type.
type run struct {
	kind     layout.ContentType
	sections []layout.Section
}

func runs(ss []layout.Section) []run {
	var out []run
	for _, s := range ss {
		if n := len(out); n > 0 && out[n-1].kind == s.ContentType {
			out[n-1].sections = append(out[n-1].sections, s)
			continue
		}
		out = append(out, run{kind: s.ContentType, sections: []layout.Section{s}})
	}
	return out
}

// CompareSections checks got against expected.
func CompareSections(expected, got []layout.Section) Result {
	want, have := runs(expected), runs(got)
	if len(want) != len(have) {
		return fail("expected %d content blocks (%s), got %d (%s)", len(want), kinds(want), len(have), kinds(have))
	}
	for i := range want {
		if want[i].kind != have[i].kind {
			return fail("block %d: expected %s, got %s", i, want[i].kind, have[i].kind)
		}
		if reason := compareRun(want[i], have[i]); reason != "" {
			return fail("block %d (%s): %s", i, want[i].kind, reason)
		}
	}
	return Result{Score: 1, Reason: fmt.Sprintf("all %d expected sections matched", len(expected))}
}

func fail(format string, args ...any) Result {
	return Result{Score: 0, Reason: fmt.Sprintf(format, args...)}
}

func kinds(rs []run) string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = string(r.kind)
	}
	return strings.Join(names, ", ")
}

func compareRun(want, have run) string {
	switch want.kind {
	case layout.ContentText:
		first, last := textBounds(want)
		hFirst, hLast := textBounds(have)
		if first != "" && !strings.HasPrefix(hFirst, first) && !strings.HasPrefix(first, hFirst) {
			return fmt.Sprintf("starts with %q, expected %q", hFirst, first)
		}
		if last != "" && !strings.HasSuffix(hLast, last) && !strings.HasSuffix(last, hLast) {
			return fmt.Sprintf("ends with %q, expected %q", hLast, last)
		}
	case layout.ContentTable:
		if missing := missingLabels(tableLabels(want), tableLabels(have)); len(missing) > 0 {
			return fmt.Sprintf("missing headers %q", missing)
		}
	case layout.ContentGraph:
		if missing := missingLabels(axisLabels(want), axisLabels(have)); len(missing) > 0 {
			return fmt.Sprintf("missing axis labels %q", missing)
		}
	}
	return ""
}

// textBounds returns the normalized first words of the run's first section
// and last words of its last section.
func textBounds(r run) (first, last string) {
	if o, ok := r.sections[0].Overview.(layout.TextOverview); ok {
		first = norm(o.FirstThreeWords)
	}
	if o, ok := r.sections[len(r.sections)-1].Overview.(layout.TextOverview); ok {
		last = norm(o.LastThreeWords)
	}
	return first, last
}

func tableLabels(r run) []string {
	var out []string
	for _, s := range r.sections {
		if o, ok := s.Overview.(layout.TableOverview); ok {
			out = append(out, o.RowHeaders...)
			out = append(out, o.ColumnHeaders...)
		}
	}
	return out
}

func axisLabels(r run) []string {
	var out []string
	for _, s := range r.sections {
		if o, ok := s.Overview.(layout.GraphOverview); ok {
			out = append(out, o.AxisLabels...)
		}
	}
	return out
}

func missingLabels(want, have []string) []string {
	seen := make(map[string]bool, len(have))
	for _, h := range have {
		seen[norm(h)] = true
	}
	var missing []string
	for _, w := range want {
		if n := norm(w); n != "" && !seen[n] {
			missing = append(missing, w)
		}
	}
	return missing
}

// norm lowercases s, collapses whitespace and drops surrounding punctuation.
func norm(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	return strings.Trim(s, ".,;:")
}
