package layout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ContentType tags a section. Values other than the constants below are kept
// as-is for forward compatibility.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentTable ContentType = "table"
	ContentGraph ContentType = "graph"
)

// ErrInvalidSection is returned when a section or its overview is malformed.
var ErrInvalidSection = errors.New("invalid section")

// Overview describes what a section contains. The concrete type depends on
// the section's content type.
type Overview interface {
	Validate() error
}

// TextOverview identifies a block of text by its first and last words.
type TextOverview struct {
	TextSubtype     string `json:"text_subtype"`
	FirstThreeWords string `json:"first_three_words"`
	LastThreeWords  string `json:"last_three_words"`
}

func (o TextOverview) Validate() error {
	if o.TextSubtype == "" {
		return fmt.Errorf("%w: text overview missing text_subtype", ErrInvalidSection)
	}
	if o.FirstThreeWords == "" && o.LastThreeWords == "" {
		return fmt.Errorf("%w: text overview missing identifying words", ErrInvalidSection)
	}
	return nil
}

// TableOverview carries optional headers and a description.
type TableOverview struct {
	ColumnHeaders    []string `json:"column_headers,omitempty"`
	RowHeaders       []string `json:"row_headers,omitempty"`
	TableDescription string   `json:"table_description,omitempty"`
}

func (o TableOverview) Validate() error { return nil }

// GraphOverview carries a description and the axis labels.
type GraphOverview struct {
	GraphDescription string   `json:"graph_description,omitempty"`
	AxisLabels       []string `json:"axis_labels"`
}

func (o GraphOverview) Validate() error {
	if o.AxisLabels == nil {
		return fmt.Errorf("%w: graph overview missing axis_labels", ErrInvalidSection)
	}
	return nil
}

// OpaqueOverview holds the overview of an unrecognised content type verbatim.
type OpaqueOverview struct {
	Raw json.RawMessage
}

func (o OpaqueOverview) Validate() error { return nil }

func (o OpaqueOverview) MarshalJSON() ([]byte, error) {
	if len(o.Raw) == 0 {
		return []byte("null"), nil
	}
	return o.Raw, nil
}

// Section is one logically distinct region of a page. YMin and YMax are the
// summarizer's vertical hint in percent of page height; they are not binding.
type Section struct {
	ContentType ContentType `json:"content_type"`
	Overview    Overview    `json:"overview"`
	YMin        float64     `json:"y_min"`
	YMax        float64     `json:"y_max"`
}

// Validate checks the vertical hint and the overview variant.
func (s Section) Validate() error {
	if s.ContentType == "" {
		return fmt.Errorf("%w: empty content_type", ErrInvalidSection)
	}
	if s.YMin < 0 || s.YMin > 100 || s.YMax < 0 || s.YMax > 100 {
		return fmt.Errorf("%w: y bounds (%v, %v) outside [0, 100]", ErrInvalidSection, s.YMin, s.YMax)
	}
	if s.Overview == nil {
		return fmt.Errorf("%w: missing overview", ErrInvalidSection)
	}
	return s.Overview.Validate()
}

// UnmarshalJSON selects the overview variant from content_type.
func (s *Section) UnmarshalJSON(data []byte) error {
	var raw struct {
		ContentType ContentType     `json:"content_type"`
		Overview    json.RawMessage `json:"overview"`
		YMin        float64         `json:"y_min"`
		YMax        float64         `json:"y_max"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ov, err := decodeOverview(raw.ContentType, raw.Overview)
	if err != nil {
		return err
	}
	*s = Section{ContentType: raw.ContentType, Overview: ov, YMin: raw.YMin, YMax: raw.YMax}
	return s.Validate()
}

func decodeOverview(ct ContentType, data json.RawMessage) (Overview, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = json.RawMessage("{}")
	}
	var (
		ov  Overview
		err error
	)
	switch ct {
	case ContentText:
		var o TextOverview
		err = json.Unmarshal(data, &o)
		ov = o
	case ContentTable:
		var o TableOverview
		err = json.Unmarshal(data, &o)
		ov = o
	case ContentGraph:
		var o GraphOverview
		err = json.Unmarshal(data, &o)
		ov = o
	default:
		ov = OpaqueOverview{Raw: append(json.RawMessage(nil), data...)}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s overview: %v", ErrInvalidSection, ct, err)
	}
	return ov, nil
}
