// Package metrics collects extraction counters on a private Prometheus
// registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status values used as label values.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Label sources.
const (
	SourceText = "text"
	SourceOCR  = "ocr"
)

// Metrics holds the collectors of one run.
type Metrics struct {
	registry *prometheus.Registry

	filesTotal   *prometheus.CounterVec
	fileDuration prometheus.Histogram
	pagesTotal   prometheus.Counter
	labelsTotal  *prometheus.CounterVec
	imagesTotal  *prometheus.CounterVec
	ocrDuration  prometheus.Histogram
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		filesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdflabels_files_total",
				Help: "Total number of PDF files processed",
			},
			[]string{"status"},
		),
		fileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pdflabels_file_duration_seconds",
				Help:    "Time spent extracting one PDF file",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
			},
		),
		pagesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pdflabels_pages_total",
				Help: "Total number of pages walked",
			},
		),
		labelsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdflabels_labels_total",
				Help: "Total number of labels emitted",
			},
			[]string{"source"}, // source: text, ocr
		),
		imagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdflabels_ocr_images_total",
				Help: "Total number of embedded images sent to OCR",
			},
			[]string{"status"},
		),
		ocrDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pdflabels_ocr_duration_seconds",
				Help:    "Time spent recognizing one embedded image",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50},
			},
		),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// FileDone records one processed file.
func (m *Metrics) FileDone(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.filesTotal.WithLabelValues(status).Inc()
	m.fileDuration.Observe(d.Seconds())
}

// PagesWalked adds n walked pages.
func (m *Metrics) PagesWalked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pagesTotal.Add(float64(n))
}

// LabelsEmitted adds n labels from source.
func (m *Metrics) LabelsEmitted(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.labelsTotal.WithLabelValues(source).Add(float64(n))
}

// ImageDone records one OCR invocation.
func (m *Metrics) ImageDone(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.imagesTotal.WithLabelValues(status).Inc()
	m.ocrDuration.Observe(d.Seconds())
}

// WriteTextfile writes the current values in the node-exporter textfile
// format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
