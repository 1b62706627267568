package ai

import (
	"context"
	"errors"
	"fmt"

	genai "google.golang.org/genai"
)

// Gemini is a Generator backed by the Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGemini builds a Gemini backend. An empty model selects gemini-2.5-flash.
func NewGemini(ctx context.Context, apiKey, model string, temperature float32) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("missing GOOGLE_API_KEY")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &Gemini{client: c, model: model, temperature: temperature}, nil
}

// Generate sends the system prompt, the user text and the inline PNG, asking
// for a JSON response.
func (g *Gemini) Generate(ctx context.Context, p Prompt) (string, error) {
	parts := []*genai.Part{{Text: p.User}}
	if len(p.Image) > 0 {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: p.Image}})
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(g.temperature),
	}
	res, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		{Role: genai.RoleUser, Parts: parts},
	}, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}
	text := res.Text()
	if text == "" {
		return "", errors.New("gemini returned an empty response")
	}
	return text, nil
}
