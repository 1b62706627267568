// Package ai implements the two model-backed capabilities of the page
// context workflow: summarizing a page into typed sections, and judging
// whether a cropped region contains the intended section.
package ai

import (
	"context"
	"errors"

	"github.com/thywilljoshua/fincontext/internal/layout"
)

var (
	// ErrSummarization wraps any failure to obtain a usable page summary.
	ErrSummarization = errors.New("summarization failed")
	// ErrEvaluation wraps any failure to obtain a usable box judgment.
	ErrEvaluation = errors.New("bounding box evaluation failed")
)

// Summarizer turns a full-page PNG into an ordered, top-to-bottom list of
// sections.
type Summarizer interface {
	Summarize(ctx context.Context, pageImage []byte) ([]layout.Section, error)
}

// InspectRequest is one question to the box inspector. Crop is the PNG of
// the page cut at Current; Previous lists boxes already rejected for this
// section.
type InspectRequest struct {
	Crop     []byte
	Section  layout.Section
	Current  layout.BoundingBox
	Previous []layout.BoundingBox
}

// Judgment is the inspector's answer. Suggested is relative to the full
// page, never to the crop.
type Judgment struct {
	IsAccurate bool               `json:"is_accurate"`
	Suggested  layout.BoundingBox `json:"suggested_bounding_box"`
	Reason     string             `json:"reason,omitempty"`
}

// Inspector judges a candidate crop for a section.
type Inspector interface {
	Inspect(ctx context.Context, req InspectRequest) (Judgment, error)
}

// Prompt is a single multimodal request to a backend.
type Prompt struct {
	System string
	User   string
	Image  []byte // PNG
}

// Generator is a model backend returning the raw text of one completion.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}
