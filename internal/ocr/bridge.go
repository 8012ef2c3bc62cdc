// Package ocr recognizes embedded page images and maps the recognized lines
// into page space.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MeKo-Tech/pdflabels/internal/coords"
	"github.com/MeKo-Tech/pdflabels/internal/hocr"
	"github.com/MeKo-Tech/pdflabels/internal/layout"
	"github.com/MeKo-Tech/pdflabels/internal/metrics"
	"github.com/MeKo-Tech/pdflabels/internal/model"
	"github.com/google/uuid"
)

// Policies for hOCR output without a bbox.
const (
	MalformedFailFile  = "fail-file"
	MalformedSkipImage = "skip-image"
)

// DefaultLanguage is the language hint passed to the engine.
const DefaultLanguage = "nld"

// ErrNoOutput is returned when the engine produced no result file.
var ErrNoOutput = errors.New("OCR produced no output")

// Config controls a Bridge.
type Config struct {
	Language        string
	TempDir         string
	Timeout         time.Duration
	Serialize       bool
	MalformedMarkup string
	FlipY           bool
	Grayscale       bool
	MinImageWidth   int
}

// DefaultConfig returns the bridge defaults.
func DefaultConfig() Config {
	return Config{
		Language:        DefaultLanguage,
		MalformedMarkup: MalformedFailFile,
	}
}

// Bridge runs an Engine on layout images. It is safe for concurrent use;
// every call works in its own transfer directory.
type Bridge struct {
	cfg     Config
	engine  Engine
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu sync.Mutex
}

// NewBridge returns a bridge running engine. logger and m may be nil.
func NewBridge(engine Engine, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MalformedMarkup == "" {
		cfg.MalformedMarkup = MalformedFailFile
	}
	return &Bridge{cfg: cfg, engine: engine, logger: logger, metrics: m}
}

// RecognizeImage returns the lines recognized in img, mapped into img's page
// bbox. Unsupported images and missing engine output yield no labels and no
// error. Malformed markup is an error unless the bridge skips such images.
func (b *Bridge) RecognizeImage(ctx context.Context, img *layout.Image) ([]model.Label, error) {
	logger := b.logger.With("image", img.Name, "bbox", img.Box.String())

	if b.cfg.Serialize {
		b.mu.Lock()
		defer b.mu.Unlock()
	}

	start := time.Now()
	labels, err := b.recognize(ctx, img, logger)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		b.metrics.ImageDone(metrics.StatusOK, elapsed)
		b.metrics.LabelsEmitted(metrics.SourceOCR, len(labels))
		logger.Debug("image recognized", "lines", len(labels), "duration", elapsed)
		return labels, nil
	case ctx.Err() != nil:
		b.metrics.ImageDone(metrics.StatusFailed, elapsed)
		return nil, ctx.Err()
	case errors.Is(err, layout.ErrImageUnsupported), errors.Is(err, ErrNoOutput):
		b.metrics.ImageDone(metrics.StatusSkipped, elapsed)
		logger.Warn("skipping image", "error", err)
		return nil, nil
	case errors.Is(err, hocr.ErrMissingBBox) && b.cfg.MalformedMarkup == MalformedSkipImage:
		b.metrics.ImageDone(metrics.StatusSkipped, elapsed)
		logger.Error("skipping image with malformed OCR markup", "error", err)
		return nil, nil
	default:
		b.metrics.ImageDone(metrics.StatusFailed, elapsed)
		return nil, fmt.Errorf("OCR of image %s: %w", img.Name, err)
	}
}

func (b *Bridge) recognize(ctx context.Context, img *layout.Image, logger *slog.Logger) ([]model.Label, error) {
	if img.Source == nil {
		return nil, fmt.Errorf("%w: no image data", layout.ErrImageUnsupported)
	}

	tempDir := b.cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	dir := filepath.Join(tempDir, "ocr-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create transfer directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("failed to remove transfer directory", "dir", dir, "error", err)
		}
	}()

	path, err := exportImage(img.Source, dir)
	if err != nil {
		return nil, err
	}
	if b.cfg.Grayscale || b.cfg.MinImageWidth > 0 {
		if path, err = prepareImage(path, dir, b.cfg.Grayscale, b.cfg.MinImageWidth); err != nil {
			return nil, err
		}
	}

	runCtx := ctx
	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	outBase := filepath.Join(dir, "out")
	if err := b.engine.Recognize(runCtx, path, outBase, b.cfg.Language); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Error("OCR engine failed", "engine", b.engine.Name(), "error", err)
	}

	result, err := findOutput(outBase)
	if err != nil {
		return nil, err
	}
	doc, err := parseOutput(result)
	if err != nil {
		return nil, err
	}

	labels := doc.Labels()
	for i := range labels {
		mapped, err := coords.Map(labels[i].BBox, doc.Page, img.Box)
		if err != nil {
			return nil, fmt.Errorf("line %q: %w", labels[i].Text, err)
		}
		if b.cfg.FlipY {
			mapped = coords.FlipY(mapped, img.Box)
		}
		labels[i].BBox = mapped
	}
	return labels, nil
}

// exportImage copies the image stream into dir and returns the file path.
func exportImage(src layout.ImageSource, dir string) (string, error) {
	rc, ext, err := src.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	if ext == "" {
		ext = ".img"
	}
	path := filepath.Join(dir, "image"+ext)
	f, err := os.Create(path) //nolint:gosec // G304: path inside our transfer directory
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to export image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to export image: %w", err)
	}
	return path, nil
}

// findOutput returns the engine's result file for outBase.
func findOutput(outBase string) (string, error) {
	for _, ext := range []string{".hocr", ".html"} {
		if info, err := os.Stat(outBase + ext); err == nil && !info.IsDir() {
			return outBase + ext, nil
		}
	}
	return "", ErrNoOutput
}

func parseOutput(path string) (*hocr.Document, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path inside our transfer directory
	if err != nil {
		return nil, fmt.Errorf("failed to open OCR output: %w", err)
	}
	defer func() { _ = f.Close() }()
	return hocr.Parse(f)
}
