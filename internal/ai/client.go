package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/thywilljoshua/fincontext/internal/layout"
)

// Options tunes a Client.
type Options struct {
	MaxAttempts int           // backend attempts per call, default 1
	Backoff     time.Duration // wait between attempts, default 500ms
	Timeout     time.Duration // per attempt, 0 means none
}

// Client realises Summarizer and Inspector on top of a Generator. Responses
// are recovered from code fences, validated against a JSON Schema and then
// decoded through the layout constructors.
type Client struct {
	gen      Generator
	opts     Options
	log      *slog.Logger
	summary  *jsonschema.Schema
	judgment *jsonschema.Schema
}

var (
	_ Summarizer = (*Client)(nil)
	_ Inspector  = (*Client)(nil)
)

func NewClient(gen Generator, opts Options, logger *slog.Logger) *Client {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		gen:      gen,
		opts:     opts,
		log:      logger,
		summary:  mustCompile("summary.json", summarySchema()),
		judgment: mustCompile("judgment.json", judgmentSchema()),
	}
}

type summaryResponse struct {
	Sections []layout.Section `json:"sections"`
}

// Summarize implements Summarizer.
func (c *Client) Summarize(ctx context.Context, pageImage []byte) ([]layout.Section, error) {
	p := Prompt{
		System: systemPrompt(summarizerInstructions, summarySchema()),
		User:   "Summarize the content of this page.",
		Image:  pageImage,
	}
	raw, err := c.call(ctx, "summarize", p, c.summary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSummarization, err)
	}
	var out summaryResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode sections: %v", ErrSummarization, err)
	}
	return out.Sections, nil
}

// Inspect implements Inspector.
func (c *Client) Inspect(ctx context.Context, req InspectRequest) (Judgment, error) {
	p := Prompt{
		System: systemPrompt(inspectorInstructions, judgmentSchema()),
		User:   inspectorUserMessage(req),
		Image:  req.Crop,
	}
	raw, err := c.call(ctx, "inspect", p, c.judgment)
	if err != nil {
		return Judgment{}, fmt.Errorf("%w: %v", ErrEvaluation, err)
	}
	var wire struct {
		IsAccurate bool `json:"is_accurate"`
		Suggested  struct {
			XMin float64 `json:"x_min"`
			YMin float64 `json:"y_min"`
			XMax float64 `json:"x_max"`
			YMax float64 `json:"y_max"`
		} `json:"suggested_bounding_box"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Judgment{}, fmt.Errorf("%w: decode judgment: %v", ErrEvaluation, err)
	}
	s := wire.Suggested
	box, err := layout.NewBoundingBox(s.XMin, s.YMin, s.XMax, s.YMax)
	if err != nil {
		return Judgment{}, fmt.Errorf("%w: %v", ErrEvaluation, err)
	}
	return Judgment{IsAccurate: wire.IsAccurate, Suggested: box, Reason: wire.Reason}, nil
}

// call runs the prompt with retries on backend errors and returns the
// schema-valid JSON object from the response.
func (c *Client) call(ctx context.Context, op string, p Prompt, schema *jsonschema.Schema) ([]byte, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("ai.call.start", "req_id", rid, "op", op, "image_bytes", len(p.Image))

	var (
		text string
		err  error
	)
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		text, err = c.generate(ctx, p)
		if err == nil {
			break
		}
		if ctx.Err() != nil || attempt == c.opts.MaxAttempts {
			break
		}
		c.log.Warn("ai.call.retry", "req_id", rid, "op", op, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(c.opts.Backoff * time.Duration(attempt)):
		}
	}
	if err != nil {
		c.log.Error("ai.call.backend_error", "req_id", rid, "op", op, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	js := findFirstJSON(stripCodeFences(text))
	if js == "" {
		c.log.Error("ai.call.no_json", "req_id", rid, "op", op, "response_bytes", len(text))
		return nil, fmt.Errorf("no JSON object in %s response", op)
	}
	if err := validateJSON(schema, []byte(js)); err != nil {
		c.log.Error("ai.call.schema_validation_failed", "req_id", rid, "op", op, "error", err, "content", js)
		return nil, err
	}
	c.log.Info("ai.call.ok", "req_id", rid, "op", op, "elapsed_ms", time.Since(start).Milliseconds())
	return []byte(js), nil
}

func (c *Client) generate(ctx context.Context, p Prompt) (string, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	return c.gen.Generate(ctx, p)
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.Index(s, "\n"); nl != -1 {
			s = s[nl+1:]
		}
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// findFirstJSON returns the first balanced {...} object in s, skipping
// braces inside string literals.
func findFirstJSON(s string) string {
	start, depth := -1, 0
	inString, escaped := false, false
	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if start != -1 {
				inString = true
			}
		case '{':
			if start == -1 {
				start = i
			}
			depth++
		case '}':
			if start != -1 {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
