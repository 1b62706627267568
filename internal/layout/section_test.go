package layout

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSectionUnmarshalVariants(t *testing.T) {
	data := []byte(`[
		{"content_type":"text","overview":{"text_subtype":"body_text","first_three_words":"Company's new portable","last_three_words":"and Financial Condition"},"y_min":5,"y_max":30},
		{"content_type":"table","overview":{"row_headers":["Net sales","Cost of sales"]},"y_min":30,"y_max":60},
		{"content_type":"graph","overview":{"graph_description":"Revenue by year","axis_labels":["Year","USD m"]},"y_min":60,"y_max":90},
		{"content_type":"footnote","overview":{"marker":"1"},"y_min":90,"y_max":100}
	]`)
	var got []Section
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d sections", len(got))
	}
	if _, ok := got[0].Overview.(TextOverview); !ok {
		t.Errorf("section 0 overview = %T", got[0].Overview)
	}
	table, ok := got[1].Overview.(TableOverview)
	if !ok {
		t.Fatalf("section 1 overview = %T", got[1].Overview)
	}
	if diff := cmp.Diff([]string{"Net sales", "Cost of sales"}, table.RowHeaders); diff != "" {
		t.Errorf("row headers (-want +got):\n%s", diff)
	}
	if _, ok := got[2].Overview.(GraphOverview); !ok {
		t.Errorf("section 2 overview = %T", got[2].Overview)
	}
	opaque, ok := got[3].Overview.(OpaqueOverview)
	if !ok {
		t.Fatalf("section 3 overview = %T", got[3].Overview)
	}
	if !bytes.Contains(opaque.Raw, []byte(`"marker"`)) {
		t.Errorf("opaque overview lost data: %s", opaque.Raw)
	}

	// Marshal and decode again: variants survive.
	enc, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	var again []Section
	if err := json.Unmarshal(enc, &again); err != nil {
		t.Fatal(err)
	}
	if again[3].ContentType != "footnote" || again[1].Overview.(TableOverview).RowHeaders[0] != "Net sales" {
		t.Fatalf("round trip changed sections: %+v", again)
	}
}

func TestSectionUnmarshalRejectsInvalid(t *testing.T) {
	cases := []string{
		`{"content_type":"text","overview":{"first_three_words":"a b c"},"y_min":0,"y_max":10}`,
		`{"content_type":"graph","overview":{"graph_description":"x"},"y_min":0,"y_max":10}`,
		`{"content_type":"table","overview":{},"y_min":0,"y_max":120}`,
		`{"content_type":"","overview":{},"y_min":0,"y_max":10}`,
	}
	for _, c := range cases {
		var s Section
		if err := json.Unmarshal([]byte(c), &s); !errors.Is(err, ErrInvalidSection) {
			t.Errorf("%s: err = %v, want ErrInvalidSection", c, err)
		}
	}
}

func TestImageBase64RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 255, 4096} {
		buf := make([]byte, n)
		if _, err := rand.Read(buf); err != nil {
			t.Fatal(err)
		}
		got, err := DecodeImage(EncodeImage(buf))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, buf) {
			t.Fatalf("round trip of %d bytes changed content", n)
		}
	}
}

func TestParsedPageValidate(t *testing.T) {
	ok := &ParsedPage{
		Source:    "https://example.com/ar.pdf",
		PageImage: "iVBORw0=",
		Sections: []SectionResult{{
			BoundingBox: FullPage,
			Section:     Section{ContentType: ContentText, Overview: TextOverview{TextSubtype: "body_text", FirstThreeWords: "a"}},
			Content:     ContentItem{Kind: KindText, Text: "a"},
		}},
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid page rejected: %v", err)
	}

	missing := *ok
	missing.PageImage = ""
	if err := missing.Validate(); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("err = %v, want ErrInconsistent", err)
	}

	var nilPage *ParsedPage
	if err := nilPage.Validate(); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("nil page: err = %v", err)
	}
}

func TestPageContent(t *testing.T) {
	p := &ParsedPage{Sections: []SectionResult{
		{Content: ContentItem{Kind: KindText, Text: "Net sales rose."}},
		{Content: ContentItem{Kind: KindTables, Tables: []string{"| a |"}}},
		{Content: ContentItem{Kind: KindImage, Image: "AAAA"}},
	}}
	content, images := p.PageContent()
	want := []any{"Net sales rose.", []string{"| a |"}}
	if diff := cmp.Diff(want, content); diff != "" {
		t.Errorf("content (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"AAAA"}, images); diff != "" {
		t.Errorf("images (-want +got):\n%s", diff)
	}
}
