package pdfpage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tsawler/tabula/reader"
	"github.com/tsawler/tabula/text"

	"github.com/thywilljoshua/fincontext/internal/layout"
)

// RenderPage renders page pageNumber (zero-based) of source to PNG.
func (l *Loader) RenderPage(ctx context.Context, source string, pageNumber int) (*Page, error) {
	path, err := l.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	n, err := pageCount(path)
	if err != nil {
		return nil, err
	}
	if pageNumber < 0 || pageNumber >= n {
		return nil, fmt.Errorf("%w: page %d out of range (document has %d pages)", ErrRetrieval, pageNumber, n)
	}

	extents, err := pageBox(path, pageNumber)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	png, err := l.pdftoppm(ctx, path, pageNumber)
	if err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(png))
	if err != nil {
		return nil, fmt.Errorf("%w: decode rendered page: %v", ErrRetrieval, err)
	}
	l.log.Info("pdfpage.render.ok", "source", source, "page", pageNumber,
		"width", cfg.Width, "height", cfg.Height, "elapsed_ms", time.Since(start).Milliseconds())

	return &Page{
		Source:  source,
		Number:  pageNumber,
		Image:   png,
		Extents: extents,
		Width:   cfg.Width,
		Height:  cfg.Height,
		path:    path,
	}, nil
}

// pdftoppm renders one page with poppler. Its page numbers are one-based.
func (l *Loader) pdftoppm(ctx context.Context, path string, pageNumber int) ([]byte, error) {
	if err := os.MkdirAll(l.cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	dir, err := os.MkdirTemp(l.cfg.WorkDir, "render-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	p := strconv.Itoa(pageNumber + 1)
	args := []string{"-png", "-r", strconv.Itoa(l.cfg.DPI), "-f", p, "-l", p, "-singlefile", path, prefix}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, l.cfg.Pdftoppm, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: pdftoppm failed on page %d: %v: %s", ErrRetrieval, pageNumber, err, bytes.TrimSpace(stderr.Bytes()))
	}
	out, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("%w: rendered image not found for page %d: %v", ErrRetrieval, pageNumber, err)
	}
	return out, nil
}

// pageBox returns the visible page rectangle (CropBox, falling back to
// MediaBox) in points. The origin is kept as written in the document, which
// is not always (0, 0).
func pageBox(path string, pageNumber int) (layout.Rect, error) {
	r, err := reader.Open(path)
	if err != nil {
		return layout.Rect{}, fmt.Errorf("%w: open %s: %v", ErrRetrieval, path, err)
	}
	defer r.Close()
	pg, err := r.GetPage(pageNumber)
	if err != nil {
		return layout.Rect{}, fmt.Errorf("%w: page %d: %v", ErrRetrieval, pageNumber, err)
	}
	box, err := pg.CropBox()
	if err != nil {
		return layout.Rect{}, fmt.Errorf("%w: page %d: %v", ErrRetrieval, pageNumber, err)
	}
	return layout.Rect{X0: box[0], Y0: box[1], X1: box[2], Y1: box[3]}, nil
}

// fragments returns the positioned text of one page, in PDF user space.
func fragments(path string, pageNumber int) ([]text.TextFragment, error) {
	r, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()
	pg, err := r.GetPage(pageNumber)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageNumber, err)
	}
	frags, err := r.ExtractTextFragments(pg)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageNumber, err)
	}
	return frags, nil
}
