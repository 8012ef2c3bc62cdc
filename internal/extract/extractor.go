package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MeKo-Tech/pdflabels/internal/metrics"
	"github.com/MeKo-Tech/pdflabels/internal/model"
	"github.com/MeKo-Tech/pdflabels/internal/pdf"
	"golang.org/x/text/unicode/norm"
)

// Options configures an Extractor.
type Options struct {
	PDF pdf.Options
	// Normalize names a Unicode normalization form applied to label text:
	// NFC, NFD, NFKC or NFKD. Empty leaves text untouched.
	Normalize string
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Extractor produces the labels of whole documents.
type Extractor struct {
	walker  *Walker
	pdfOpts pdf.Options
	form    *norm.Form
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// ParseNormalization returns the form called name; ok is false for unknown
// names. An empty name yields a nil form.
func ParseNormalization(name string) (form *norm.Form, ok bool) {
	var f norm.Form
	switch strings.ToUpper(name) {
	case "":
		return nil, true
	case "NFC":
		f = norm.NFC
	case "NFD":
		f = norm.NFD
	case "NFKC":
		f = norm.NFKC
	case "NFKD":
		f = norm.NFKD
	default:
		return nil, false
	}
	return &f, true
}

// NewExtractor returns an extractor walking pages with w.
func NewExtractor(w *Walker, opts Options) (*Extractor, error) {
	form, ok := ParseNormalization(opts.Normalize)
	if !ok {
		return nil, fmt.Errorf("unknown normalization form %q", opts.Normalize)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pdfOpts := opts.PDF
	if pdfOpts.Logger == nil {
		pdfOpts.Logger = logger
	}
	return &Extractor{walker: w, pdfOpts: pdfOpts, form: form, logger: logger, metrics: opts.Metrics}, nil
}

// ExtractFile opens the document at path and returns the labels of all its
// pages in page order.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (model.FileResult, error) {
	start := time.Now()
	logger := e.logger.With("file", path)

	doc, err := pdf.Open(path, e.pdfOpts)
	if err != nil {
		return model.FileResult{}, err
	}
	defer func() { _ = doc.Close() }()

	result := model.FileResult{
		Filename: path,
		Pages:    make([]model.PageResult, 0, doc.NumPages()),
	}
	for i := 0; i < doc.NumPages(); i++ {
		if err := ctx.Err(); err != nil {
			return model.FileResult{}, err
		}

		page, err := doc.Page(i)
		if err != nil {
			return model.FileResult{}, err
		}

		labels, err := e.walker.Walk(ctx, page.Root)
		if err != nil {
			return model.FileResult{}, fmt.Errorf("page %d: %w", i, err)
		}
		if labels == nil {
			labels = []model.Label{}
		}
		if e.form != nil {
			for j := range labels {
				labels[j].Text = e.form.String(labels[j].Text)
			}
		}

		result.Pages = append(result.Pages, model.PageResult{
			Index:       i,
			BoundingBox: page.BBox,
			Labels:      labels,
		})
		logger.Debug("page extracted", "page", i, "labels", len(labels))
	}

	e.metrics.PagesWalked(len(result.Pages))
	logger.Info("file extracted", "pages", len(result.Pages), "labels", result.LabelCount(),
		"duration", time.Since(start))
	return result, nil
}
