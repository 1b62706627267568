// Package config builds the process configuration once, at startup, from an
// optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Environment string         `yaml:"environment"` // development or production
	Provider    string         `yaml:"provider"`    // gemini or openai
	Gemini      GeminiConfig   `yaml:"gemini"`
	OpenAI      OpenAIConfig   `yaml:"openai"`
	AI          AIConfig       `yaml:"ai"`
	Render      RenderConfig   `yaml:"render"`
	Cache       CacheConfig    `yaml:"cache"`
	Workflow    WorkflowConfig `yaml:"workflow"`
	Server      ServerConfig   `yaml:"server"`
}

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

// OpenAIConfig configures an OpenAI-compatible chat completions backend.
type OpenAIConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

// AIConfig holds the retry policy applied around either backend.
type AIConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RenderConfig holds page rendering settings.
type RenderConfig struct {
	Pdftoppm     string `yaml:"pdftoppm"`
	DPI          int    `yaml:"dpi"`
	MaxImageSide int    `yaml:"max_image_side"`
	WorkDir      string `yaml:"work_dir"`
}

// CacheConfig selects the page context store.
type CacheConfig struct {
	Driver string `yaml:"driver"` // memory or sqlite
	Path   string `yaml:"path"`
}

type WorkflowConfig struct {
	MaxBBoxIterations int `yaml:"max_bbox_iterations"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Environment: "development",
		Provider:    "openai",
		Gemini:      GeminiConfig{Model: "gemini-2.5-flash"},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "meta-llama/llama-4-scout-17b-16e-instruct",
		},
		AI:       AIConfig{MaxAttempts: 3, Timeout: 90 * time.Second},
		Render:   RenderConfig{Pdftoppm: "pdftoppm", DPI: 144, MaxImageSide: 1600},
		Cache:    CacheConfig{Driver: "memory"},
		Workflow: WorkflowConfig{MaxBBoxIterations: 3},
		Server:   ServerConfig{Listen: ":8080"},
	}
}

// Load reads path (if non-empty) over the defaults, then applies
// environment overrides through getenv, then validates.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	setString(&c.Environment, "FINCTX_ENVIRONMENT")
	setString(&c.Provider, "FINCTX_PROVIDER")
	setString(&c.Gemini.APIKey, "GOOGLE_API_KEY", "GEMINI_API_KEY")
	setString(&c.Gemini.Model, "FINCTX_GEMINI_MODEL")
	setString(&c.OpenAI.APIKey, "GROQ_API_KEY", "OPENAI_API_KEY")
	setString(&c.OpenAI.BaseURL, "FINCTX_OPENAI_BASE_URL")
	setString(&c.OpenAI.Model, "FINCTX_OPENAI_MODEL")
	setString(&c.Render.Pdftoppm, "FINCTX_PDFTOPPM")
	setString(&c.Render.WorkDir, "FINCTX_WORK_DIR")
	setString(&c.Server.Listen, "FINCTX_LISTEN")
	if v := getenv("FINCTX_CACHE_PATH"); v != "" {
		c.Cache.Driver = "sqlite"
		c.Cache.Path = v
	}
	if v := getenv("FINCTX_MAX_BBOX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FINCTX_MAX_BBOX_ITERATIONS: %w", err)
		}
		c.Workflow.MaxBBoxIterations = n
	}
	return nil
}

// Validate reports the first problem with c.
func (c *Config) Validate() error {
	var errs []error
	switch c.Environment {
	case "development", "production":
	default:
		errs = append(errs, fmt.Errorf("environment must be development or production, got %q", c.Environment))
	}
	switch c.Provider {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("provider must be gemini or openai, got %q", c.Provider))
	}
	switch c.Cache.Driver {
	case "memory":
	case "sqlite":
		if c.Cache.Path == "" {
			errs = append(errs, errors.New("cache.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.driver must be memory or sqlite, got %q", c.Cache.Driver))
	}
	if c.Workflow.MaxBBoxIterations < 1 {
		errs = append(errs, errors.New("workflow.max_bbox_iterations must be at least 1"))
	}
	if c.AI.MaxAttempts < 1 {
		errs = append(errs, errors.New("ai.max_attempts must be at least 1"))
	}
	if c.Render.DPI < 1 {
		errs = append(errs, errors.New("render.dpi must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// APIKey returns the key of the selected provider. Keys are checked when a
// backend is built, not at load time, so commands that never call a model
// work without one.
func (c *Config) APIKey() string {
	if c.Provider == "gemini" {
		return c.Gemini.APIKey
	}
	return c.OpenAI.APIKey
}

// NewLogger returns a text logger in development and a JSON logger in
// production.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	if c.Environment == "production" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
