package ai

import (
	"encoding/json"
	"strings"

	"github.com/thywilljoshua/fincontext/internal/layout"
)

var summarizerInstructions = []string{
	"You are an expert content summarizer, summarizing financial documents.",
	"You will be presented with a single page image from a company financial report.",
	"Your task is to scan the page from top to bottom and generate an ordered list of sections on the page.",
	"Look through the image very carefully and make sure you capture all the sections.",
	"The content type of each section should be one of: text, table, or graph.",
	"The overview of each section should be a short description of the content within the section.",
	"For text sections the overview has text_subtype (header/footer/body_text/alt_text/title), first_three_words and last_three_words.",
	"For table sections the overview has optional column_headers, row_headers and table_description.",
	"For graph sections the overview has graph_description and axis_labels.",
	"For text sections, try to separate by paragraph.",
	"Sections should be ordered from top to bottom and should not overlap.",
	"y_min and y_max are percentages of the page height. When suggesting y_min and y_max, choose bounds that are as large as possible.",
}

var inspectorInstructions = []string{
	"You are an expert bounding box inspector working on pages of company financial reports.",
	"You will be shown an image cropped from a page, the bounding box used for the crop, and a description of the content the crop is intended to contain.",
	"Decide whether the crop contains all of the intended content and as little else as possible.",
	"If it does, set is_accurate to true and return the same bounding box as suggested_bounding_box.",
	"If it does not, set is_accurate to false and suggest a better bounding box.",
	"All bounding boxes are percentages (0-100) of the FULL page width and height, measured from the top-left corner, never relative to the crop.",
	"previous_choices lists bounding boxes that were already rejected for this content. Do not suggest any of them again.",
	"Give a short reason for your decision.",
}

func systemPrompt(instructions []string, schema map[string]any) string {
	return strings.Join(instructions, "\n") +
		"\n\nReturn ONLY a JSON object matching this JSON Schema, with no other text:\n" + mustJSON(schema)
}

type intendedData struct {
	ContentType layout.ContentType `json:"content_type"`
	Overview    layout.Overview    `json:"overview"`
}

type inspectorMessage struct {
	IntendedData       intendedData          `json:"intended_data"`
	CroppedBoundingBox layout.BoundingBox    `json:"cropped_bounding_box"`
	PreviousChoices    []layout.BoundingBox `json:"previous_choices"`
}

func inspectorUserMessage(req InspectRequest) string {
	prev := req.Previous
	if prev == nil {
		prev = []layout.BoundingBox{}
	}
	return mustJSON(inspectorMessage{
		IntendedData: intendedData{
			ContentType: req.Section.ContentType,
			Overview:    req.Section.Overview,
		},
		CroppedBoundingBox: req.Current,
		PreviousChoices:    prev,
	})
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
