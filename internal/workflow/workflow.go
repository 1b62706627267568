// Package workflow turns one PDF page into structured page context: it
// renders the page, summarizes it into sections, refines a bounding box for
// every section and extracts what each box contains. Completed pages are
// cached per (source, page).
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/thywilljoshua/fincontext/internal/ai"
	"github.com/thywilljoshua/fincontext/internal/cache"
	"github.com/thywilljoshua/fincontext/internal/layout"
	"github.com/thywilljoshua/fincontext/internal/pdfpage"
)

// DefaultMaxIterations is the per-section inspector budget when a request
// does not set one.
const DefaultMaxIterations = 3

// ErrInvalidRequest reports a request that cannot be processed as given.
var ErrInvalidRequest = errors.New("invalid request")

// Request asks for the context of one page.
type Request struct {
	Source        string `json:"pdf_url"`
	PageNumber    int    `json:"page_number"`
	Overwrite     bool   `json:"overwrite_cache,omitempty"`
	MaxIterations int    `json:"n_max_bbox_iterations,omitempty"`
}

func (r Request) validate() error {
	if r.Source == "" {
		return fmt.Errorf("%w: pdf_url is required", ErrInvalidRequest)
	}
	if r.PageNumber < 0 {
		return fmt.Errorf("%w: page_number must not be negative", ErrInvalidRequest)
	}
	if r.MaxIterations < 0 {
		return fmt.Errorf("%w: n_max_bbox_iterations must be positive", ErrInvalidRequest)
	}
	return nil
}

// Renderer produces the rendered page that everything else works from.
type Renderer interface {
	RenderPage(ctx context.Context, source string, pageNumber int) (*pdfpage.Page, error)
}

// Extractor pulls text and tables out of a region of a rendered page.
type Extractor interface {
	ExtractText(ctx context.Context, page *pdfpage.Page, box *layout.BoundingBox) (string, error)
	ExtractTables(ctx context.Context, page *pdfpage.Page, box *layout.BoundingBox) ([]string, error)
}

// Config tunes a Workflow.
type Config struct {
	MaxIterations int // default budget, DefaultMaxIterations when 0
	MaxImageSide  int // longest side of images sent to models and returned, 0 keeps full size
}

// Workflow wires the collaborators together. It is safe for concurrent use;
// runs for the same page are serialized.
type Workflow struct {
	render     Renderer
	extract    Extractor
	summarizer ai.Summarizer
	inspector  ai.Inspector
	store      cache.Store
	cfg        Config
	log        *slog.Logger

	locks cache.Locks
}

func New(r Renderer, x Extractor, s ai.Summarizer, i ai.Inspector, store cache.Store, cfg Config, logger *slog.Logger) *Workflow {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		render:     r,
		extract:    x,
		summarizer: s,
		inspector:  i,
		store:      store,
		cfg:        cfg,
		log:        logger,
	}
}

// Run returns the context of the requested page, from cache when a
// completed entry exists and the request does not ask to overwrite it.
func (w *Workflow) Run(ctx context.Context, req Request) (*layout.ParsedPage, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	budget := req.MaxIterations
	if budget == 0 {
		budget = w.cfg.MaxIterations
	}

	key := cache.Key{Source: req.Source, Page: req.PageNumber}
	log := w.log.With("run_id", uuid.NewString(), "source", req.Source, "page", req.PageNumber)
	start := time.Now()
	log.Info("workflow.run.start", "overwrite", req.Overwrite, "budget", budget)

	unlock, err := w.locks.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	prev, found, err := w.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if found && prev.Done() && !req.Overwrite {
		if err := prev.Check(); err != nil {
			log.Error("workflow.cache.inconsistent", "err", err)
			return nil, err
		}
		log.Info("workflow.cache.hit", "sections", len(prev.Output.Sections))
		return prev.Output, nil
	}
	// Staging is skipped while a completed entry is being recomputed so the
	// old result stays readable until the new one is ready.
	stage := !(found && prev.Done())

	out, err := w.compute(ctx, log, key, budget, stage)
	if err != nil {
		if stage {
			if ierr := w.store.Invalidate(context.WithoutCancel(ctx), key); ierr != nil {
				log.Warn("workflow.cache.invalidate_failed", "err", ierr)
			}
		}
		log.Error("workflow.run.failed", "err", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	log.Info("workflow.run.ok", "sections", len(out.Sections), "elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

func (w *Workflow) compute(ctx context.Context, log *slog.Logger, key cache.Key, budget int, stage bool) (*layout.ParsedPage, error) {
	page, err := w.render.RenderPage(ctx, key.Source, key.Page)
	if err != nil {
		return nil, err
	}
	image, err := w.modelImage(page.Image)
	if err != nil {
		return nil, err
	}
	entry := &cache.Entry{PageImage: image}
	if stage {
		if err := w.store.Put(ctx, key, entry); err != nil {
			return nil, err
		}
	}

	sections, err := w.summarizer.Summarize(ctx, image)
	if err != nil {
		return nil, err
	}
	log.Info("workflow.summary.ok", "sections", len(sections))
	entry.Summary = sections
	if stage {
		if err := w.store.Put(ctx, key, entry); err != nil {
			return nil, err
		}
	}

	out := &layout.ParsedPage{
		Source:     key.Source,
		PageNumber: key.Page,
		PageImage:  layout.EncodeImage(image),
		Sections:   make([]layout.SectionResult, 0, len(sections)),
	}
	for i, sec := range sections {
		ref, err := w.refine(ctx, image, sec, budget)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		log.Info("workflow.section.refined", "section", i, "content_type", sec.ContentType,
			"accepted", ref.Accepted, "iterations", ref.Iterations, "box", ref.Box.String())

		content, err := w.content(ctx, page, sec, ref.Box)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		out.Sections = append(out.Sections, layout.SectionResult{
			BoundingBox: ref.Box,
			Section:     sec,
			Accepted:    ref.Accepted,
			Iterations:  ref.Iterations,
			Content:     content,
		})
	}

	entry.Output = out
	if err := entry.Check(); err != nil {
		return nil, err
	}
	if err := w.store.Put(ctx, key, entry); err != nil {
		return nil, err
	}
	return out, nil
}

// modelImage returns the page image as sent to models, downscaled when a
// size limit is configured.
func (w *Workflow) modelImage(pagePNG []byte) ([]byte, error) {
	if w.cfg.MaxImageSide <= 0 {
		return pagePNG, nil
	}
	img, err := pdfpage.CropImage(pagePNG, layout.FullPage, w.cfg.MaxImageSide)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pdfpage.ErrRetrieval, err)
	}
	return img, nil
}

// content extracts what box holds for the section's content type. Tables
// fall back to plain text when no table structure is found; graphs and
// unknown types are returned as an image crop.
func (w *Workflow) content(ctx context.Context, page *pdfpage.Page, sec layout.Section, box layout.BoundingBox) (layout.ContentItem, error) {
	switch sec.ContentType {
	case layout.ContentText:
		txt, err := w.extract.ExtractText(ctx, page, &box)
		if err != nil {
			return layout.ContentItem{}, fmt.Errorf("extract text: %w", err)
		}
		return layout.ContentItem{Kind: layout.KindText, Text: txt}, nil
	case layout.ContentTable:
		tables, err := w.extract.ExtractTables(ctx, page, &box)
		if err != nil {
			return layout.ContentItem{}, fmt.Errorf("extract tables: %w", err)
		}
		if len(tables) > 0 {
			return layout.ContentItem{Kind: layout.KindTables, Tables: tables}, nil
		}
		txt, err := w.extract.ExtractText(ctx, page, &box)
		if err != nil {
			return layout.ContentItem{}, fmt.Errorf("extract text: %w", err)
		}
		return layout.ContentItem{Kind: layout.KindText, Text: txt}, nil
	default:
		crop, err := pdfpage.CropImage(page.Image, box, w.cfg.MaxImageSide)
		if err != nil {
			return layout.ContentItem{}, fmt.Errorf("crop %s: %w", sec.ContentType, err)
		}
		return layout.ContentItem{Kind: layout.KindImage, Image: layout.EncodeImage(crop)}, nil
	}
}
