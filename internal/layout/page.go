package layout

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrInconsistent reports a parsed page that claims success but is missing
// required data.
var ErrInconsistent = errors.New("inconsistent page context")

// ContentKind says which field of a ContentItem is populated.
type ContentKind string

const (
	KindText   ContentKind = "text"
	KindTables ContentKind = "tables"
	KindImage  ContentKind = "image"
)

// ContentItem is the extracted content of one section: inline text, tables
// rendered as Markdown, or a base64 PNG crop.
type ContentItem struct {
	Kind   ContentKind `json:"kind"`
	Text   string      `json:"text,omitempty"`
	Tables []string    `json:"tables,omitempty"`
	Image  string      `json:"image,omitempty"`
}

// SectionResult is the refined box for one section together with what was
// found inside it.
type SectionResult struct {
	BoundingBox BoundingBox `json:"bounding_box"`
	Section     Section     `json:"section"`
	Accepted    bool        `json:"accepted"`
	Iterations  int         `json:"iterations"`
	Content     ContentItem `json:"content"`
}

// ParsedPage is the structured context of one PDF page.
type ParsedPage struct {
	Source     string          `json:"pdf_url"`
	PageNumber int             `json:"page_number"`
	PageImage  string          `json:"page_image"`
	Sections   []SectionResult `json:"sections"`
}

// Validate checks the invariants a completed page must satisfy.
func (p *ParsedPage) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil page", ErrInconsistent)
	}
	if p.Source == "" {
		return fmt.Errorf("%w: missing source", ErrInconsistent)
	}
	if p.PageImage == "" {
		return fmt.Errorf("%w: missing page image", ErrInconsistent)
	}
	if p.Sections == nil {
		return fmt.Errorf("%w: missing sections", ErrInconsistent)
	}
	for i, s := range p.Sections {
		if err := s.BoundingBox.Validate(); err != nil {
			return fmt.Errorf("%w: section %d: %v", ErrInconsistent, i, err)
		}
		if s.Content.Kind == "" {
			return fmt.Errorf("%w: section %d has no content", ErrInconsistent, i)
		}
	}
	return nil
}

// PageContent flattens the sections into the text and image lists consumed
// by analysis agents. Tables are emitted as a nested list.
func (p *ParsedPage) PageContent() (content []any, images []string) {
	for _, s := range p.Sections {
		switch s.Content.Kind {
		case KindText:
			content = append(content, s.Content.Text)
		case KindTables:
			content = append(content, s.Content.Tables)
		case KindImage:
			images = append(images, s.Content.Image)
		}
	}
	return content, images
}

// EncodeImage returns the standard base64 encoding of img.
func EncodeImage(img []byte) string {
	return base64.StdEncoding.EncodeToString(img)
}

// DecodeImage reverses EncodeImage.
func DecodeImage(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return b, nil
}
