package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thywilljoshua/fincontext/internal/ai"
	"github.com/thywilljoshua/fincontext/internal/layout"
)

// Case is one labelled page image.
type Case struct {
	Name     string
	Image    string // PNG path, relative paths resolve against the case file
	Expected []layout.Section
}

type rawCase struct {
	Name     string           `yaml:"name"`
	Image    string           `yaml:"image"`
	Expected []map[string]any `yaml:"expected"`
}

// LoadCases reads a YAML list of cases:
//
//	- name: income statement
//	  image: pages/apple-10k-p27.png
//	  expected:
//	    - content_type: text
//	      overview: {text_subtype: body_text, first_three_words: "Backlog"}
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}
	var raw []rawCase
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse cases %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	cases := make([]Case, 0, len(raw))
	for i, rc := range raw {
		if rc.Image == "" {
			return nil, fmt.Errorf("case %d: image is required", i)
		}
		// Sections decode through their JSON form so overviews get typed.
		js, err := json.Marshal(rc.Expected)
		if err != nil {
			return nil, fmt.Errorf("case %d: %w", i, err)
		}
		var expected []layout.Section
		if err := json.Unmarshal(js, &expected); err != nil {
			return nil, fmt.Errorf("case %d: expected: %w", i, err)
		}
		img := rc.Image
		if !filepath.IsAbs(img) {
			img = filepath.Join(dir, img)
		}
		name := rc.Name
		if name == "" {
			name = filepath.Base(rc.Image)
		}
		cases = append(cases, Case{Name: name, Image: img, Expected: expected})
	}
	return cases, nil
}

// Report is the outcome of one case.
type Report struct {
	Case   string           `json:"case"`
	Result Result           `json:"result"`
	Got    []layout.Section `json:"got,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// Run summarizes every case image and scores it. A summarizer failure
// scores zero for that case and does not stop the run.
func Run(ctx context.Context, s ai.Summarizer, cases []Case, logger *slog.Logger) ([]Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reports := make([]Report, 0, len(cases))
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		img, err := os.ReadFile(c.Image)
		if err != nil {
			return reports, fmt.Errorf("case %s: %w", c.Name, err)
		}
		start := time.Now()
		got, err := s.Summarize(ctx, img)
		if err != nil {
			logger.Warn("evaluate.case.error", "case", c.Name, "err", err)
			reports = append(reports, Report{Case: c.Name, Result: fail("summarizer error"), Error: err.Error()})
			continue
		}
		res := CompareSections(c.Expected, got)
		logger.Info("evaluate.case.done", "case", c.Name, "score", res.Score,
			"elapsed_ms", time.Since(start).Milliseconds())
		reports = append(reports, Report{Case: c.Name, Result: res, Got: got})
	}
	return reports, nil
}

// Accuracy is the mean score over reports.
func Accuracy(reports []Report) float64 {
	if len(reports) == 0 {
		return 0
	}
	total := 0
	for _, r := range reports {
		total += r.Result.Score
	}
	return float64(total) / float64(len(reports))
}
