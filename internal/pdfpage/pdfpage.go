// Package pdfpage retrieves PDF documents, renders single pages to PNG and
// extracts the text and tables that fall inside a percentage box.
package pdfpage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	rpdf "rsc.io/pdf"

	"github.com/thywilljoshua/fincontext/internal/layout"
)

// ErrRetrieval reports an unreachable source or a page outside the document.
var ErrRetrieval = errors.New("pdf retrieval failed")

// Config configures a Loader.
type Config struct {
	WorkDir      string // downloads and render scratch space, default os.TempDir()/fincontext
	Pdftoppm     string // poppler renderer binary, default "pdftoppm"
	DPI          int    // render resolution, default 144
	MaxImageSide int    // longest side of images handed to models, 0 keeps full size
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

func (c *Config) defaults() {
	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(os.TempDir(), "fincontext")
	}
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.DPI <= 0 {
		c.DPI = 144
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Page is one rendered PDF page. Extents is the page box in points;
// within it, Y is measured downwards from the top edge.
type Page struct {
	Source  string
	Number  int // zero-based
	Image   []byte
	Extents layout.Rect
	Width   int // pixels
	Height  int

	path string
}

// Loader is the PDF collaborator of the page workflow.
type Loader struct {
	cfg Config
	log *slog.Logger

	mu         sync.Mutex
	downloaded map[string]string
}

func NewLoader(cfg Config) *Loader {
	cfg.defaults()
	return &Loader{cfg: cfg, log: cfg.Logger, downloaded: make(map[string]string)}
}

// MaxImageSide is the configured limit for images sent to models.
func (l *Loader) MaxImageSide() int { return l.cfg.MaxImageSide }

// Fetch resolves source to a local file. Remote documents are downloaded
// once per process.
func (l *Loader) Fetch(ctx context.Context, source string) (string, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return l.download(ctx, source)
	case strings.HasPrefix(source, "file://"):
		u, err := url.Parse(source)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrRetrieval, err)
		}
		return l.local(u.Path)
	default:
		return l.local(source)
	}
}

func (l *Loader) local(path string) (string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	if st.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrRetrieval, path)
	}
	return path, nil
}

func (l *Loader) download(ctx context.Context, source string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.downloaded[source]; ok {
		return p, nil
	}

	sum := sha256.Sum256([]byte(source))
	dest := filepath.Join(l.cfg.WorkDir, hex.EncodeToString(sum[:16])+".pdf")
	if err := os.MkdirAll(l.cfg.WorkDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	resp, err := l.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("%w: GET %s: status %d", ErrRetrieval, source, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(l.cfg.WorkDir, "download-*.pdf")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: download %s: %v", ErrRetrieval, source, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	l.log.Info("pdfpage.download.ok", "source", source, "bytes", n,
		"elapsed_ms", time.Since(start).Milliseconds())
	l.downloaded[source] = dest
	return dest, nil
}

// PageCount returns the number of pages in source.
func (l *Loader) PageCount(ctx context.Context, source string) (int, error) {
	path, err := l.Fetch(ctx, source)
	if err != nil {
		return 0, err
	}
	return pageCount(path)
}

func pageCount(path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("%w: malformed pdf %s: %v", ErrRetrieval, path, r)
		}
	}()
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	doc, err := rpdf.NewReader(f, st.Size())
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %v", ErrRetrieval, path, err)
	}
	return doc.NumPage(), nil
}
