package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/thywilljoshua/fincontext/internal/ai"
	"github.com/thywilljoshua/fincontext/internal/cache"
	"github.com/thywilljoshua/fincontext/internal/config"
	"github.com/thywilljoshua/fincontext/internal/pdfpage"
	"github.com/thywilljoshua/fincontext/internal/workflow"
)

// app is everything a command needs, built once from the config.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	client *ai.Client
	store  cache.Store
	wf     *workflow.Workflow
}

// newApp loads the config and wires the components. Logs go to logOut so
// commands that print results on stdout stay parseable.
func newApp(ctx context.Context, configPath string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configPath, os.Getenv)
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger(logOut)

	gen, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	client := ai.NewClient(gen, ai.Options{MaxAttempts: cfg.AI.MaxAttempts, Timeout: cfg.AI.Timeout}, logger)

	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	loader := pdfpage.NewLoader(pdfpage.Config{
		WorkDir:      cfg.Render.WorkDir,
		Pdftoppm:     cfg.Render.Pdftoppm,
		DPI:          cfg.Render.DPI,
		MaxImageSide: cfg.Render.MaxImageSide,
		Logger:       logger,
	})
	wf := workflow.New(loader, loader, client, client, store, workflow.Config{
		MaxIterations: cfg.Workflow.MaxBBoxIterations,
		MaxImageSide:  loader.MaxImageSide(),
	}, logger)

	logger.Debug("app.ready", "provider", cfg.Provider, "cache", cfg.Cache.Driver, "environment", cfg.Environment)
	return &app{cfg: cfg, log: logger, client: client, store: store, wf: wf}, nil
}

func (a *app) Close() error { return a.store.Close() }

func newGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ai.Generator, error) {
	switch cfg.Provider {
	case "gemini":
		return ai.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Temperature)
	case "openai":
		return ai.NewOpenAI(ai.OpenAIConfig{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     cfg.AI.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newStore(cfg *config.Config) (cache.Store, error) {
	if cfg.Cache.Driver == "sqlite" {
		return cache.OpenSQLite(cfg.Cache.Path)
	}
	return cache.NewMemory(), nil
}
