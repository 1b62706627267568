package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OpenAIConfig configures an OpenAI-compatible chat/completions backend.
// The defaults target Groq, which serves Llama 4 vision models on that API.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string  // default https://api.groq.com/openai/v1
	Model       string  // default meta-llama/llama-4-scout-17b-16e-instruct
	Temperature float32 // 0..2
	Timeout     time.Duration
}

// OpenAI is a Generator speaking the chat/completions protocol with image
// data URLs.
type OpenAI struct {
	cfg  OpenAIConfig
	http *http.Client
	log  *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing API key for openai-compatible backend")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "meta-llama/llama-4-scout-17b-16e-instruct"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAI{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: logger}, nil
}

type chatContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Temperature    float32           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
	Messages       []chatMessage     `json:"messages"`
}

// Generate implements Generator.
func (o *OpenAI) Generate(ctx context.Context, p Prompt) (string, error) {
	user := []chatContentPart{{Type: "text", Text: p.User}}
	if len(p.Image) > 0 {
		user = append(user, chatContentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(p.Image)},
		})
	}
	body := chatRequest{
		Model:          o.cfg.Model,
		Temperature:    o.cfg.Temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: user},
		},
	}

	endpoint := strings.TrimRight(o.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := o.post(ctx, endpoint, body)
	if err != nil {
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", errors.New("no choices in chat completion")
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}

func (o *OpenAI) post(ctx context.Context, url string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			o.log.Warn("ai.openai.response_body_close_error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat completion: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(raw) > 1024 {
			raw = raw[:1024]
		}
		return nil, fmt.Errorf("chat completion status %d: %s", resp.StatusCode, raw)
	}
	return raw, nil
}
