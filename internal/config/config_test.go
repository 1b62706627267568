package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", env(nil))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("defaults changed (-want +got):\n%s", diff)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fincontext.yaml")
	body := `
environment: production
provider: gemini
gemini:
  model: gemini-2.5-pro
  temperature: 0.4
ai:
  max_attempts: 5
  timeout: 30s
render:
  dpi: 200
workflow:
  max_bbox_iterations: 4
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, env(map[string]string{
		"GOOGLE_API_KEY":    "g-key",
		"FINCTX_CACHE_PATH": "/var/lib/fincontext/cache.db",
		"FINCTX_LISTEN":     "127.0.0.1:9000",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Environment != "production" || cfg.Provider != "gemini" || cfg.Gemini.Model != "gemini-2.5-pro" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Gemini.Temperature != 0.4 {
		t.Errorf("gemini temperature = %v, want 0.4", cfg.Gemini.Temperature)
	}
	if cfg.AI.MaxAttempts != 5 || cfg.AI.Timeout != 30*time.Second || cfg.Render.DPI != 200 {
		t.Errorf("ai/render = %+v %+v", cfg.AI, cfg.Render)
	}
	if cfg.Render.Pdftoppm != "pdftoppm" {
		t.Errorf("unset file field lost its default: %q", cfg.Render.Pdftoppm)
	}
	if cfg.APIKey() != "g-key" || cfg.Cache.Driver != "sqlite" || cfg.Server.Listen != "127.0.0.1:9000" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.Workflow.MaxBBoxIterations != 4 {
		t.Errorf("iterations = %d", cfg.Workflow.MaxBBoxIterations)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]map[string]string{
		"environment": {"FINCTX_ENVIRONMENT": "staging"},
		"provider":    {"FINCTX_PROVIDER": "ollama"},
		"iterations":  {"FINCTX_MAX_BBOX_ITERATIONS": "0"},
		"not a num":   {"FINCTX_MAX_BBOX_ITERATIONS": "three"},
	}
	for name, e := range tests {
		if _, err := Load("", env(e)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), env(nil)); err == nil {
		t.Error("missing file: expected error")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.Environment = "production"
	cfg.NewLogger(&buf).Info("workflow.run.ok", "sections", 2)
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"msg":"workflow.run.ok"`) {
		t.Fatalf("production log = %q", buf.String())
	}

	buf.Reset()
	Default().NewLogger(&buf).Info("workflow.run.ok")
	if !strings.Contains(buf.String(), "msg=workflow.run.ok") {
		t.Fatalf("development log = %q", buf.String())
	}
}
