package ai

import (
	"context"
	"testing"
)

func TestNewGemini(t *testing.T) {
	g, err := NewGemini(context.Background(), "k", "", 0.3)
	if err != nil {
		t.Fatal(err)
	}
	if g.model != "gemini-2.5-flash" || g.temperature != 0.3 {
		t.Fatalf("gemini = model %q temperature %v", g.model, g.temperature)
	}
	if _, err := NewGemini(context.Background(), "", "gemini-2.5-pro", 0); err == nil {
		t.Fatal("expected error without API key")
	}
}
