// Package config builds the immutable run configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MeKo-Tech/pdflabels/internal/batch"
	"github.com/MeKo-Tech/pdflabels/internal/extract"
	"github.com/MeKo-Tech/pdflabels/internal/layout"
	"github.com/MeKo-Tech/pdflabels/internal/metrics"
	"github.com/MeKo-Tech/pdflabels/internal/ocr"
	"github.com/MeKo-Tech/pdflabels/internal/output"
	"github.com/MeKo-Tech/pdflabels/internal/pdf"
)

const (
	// DefaultOutputFile is the result file written when none is configured.
	DefaultOutputFile = "result.json"

	maxIndent = 16
	redacted  = "********"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	ocrDefaults := ocr.DefaultConfig()
	return Config{
		LogLevel: "info",
		Input: InputConfig{
			Root:    ".",
			Pattern: batch.DefaultPattern,
			Exclude: []string{},
		},
		Output: OutputConfig{
			File:   DefaultOutputFile,
			Indent: output.DefaultIndent,
		},
		Batch: BatchConfig{
			Workers: batch.DefaultWorkers,
		},
		Layout: layout.DefaultParams(),
		OCR: OCRConfig{
			Enabled:         true,
			Engine:          ocr.EngineTesseract,
			Binary:          "tesseract",
			Language:        ocrDefaults.Language,
			MalformedMarkup: ocrDefaults.MalformedMarkup,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Batch.Workers < 1 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.Output.File == "" {
		return errors.New("output file must not be empty")
	}
	if c.Output.Indent < 0 || c.Output.Indent > maxIndent {
		return fmt.Errorf("invalid output indent: %d (must be between 0 and %d)", c.Output.Indent, maxIndent)
	}
	if _, ok := extract.ParseNormalization(c.Output.Normalize); !ok {
		return fmt.Errorf("invalid normalization form: %s (must be one of: NFC, NFD, NFKC, NFKD)", c.Output.Normalize)
	}

	if _, err := filepath.Match(c.Input.Pattern, ""); err != nil {
		return fmt.Errorf("invalid input pattern %q: %w", c.Input.Pattern, err)
	}
	if err := batch.ValidatePatterns(c.Input.Exclude); err != nil {
		return fmt.Errorf("invalid input exclude: %w", err)
	}

	if err := validateLayout(c.Layout); err != nil {
		return err
	}

	validEngines := []string{ocr.EngineTesseract, ocr.EngineGosseract}
	if !slices.Contains(validEngines, c.OCR.Engine) {
		return fmt.Errorf("invalid OCR engine: %s (must be one of: %s)", c.OCR.Engine, strings.Join(validEngines, ", "))
	}
	validPolicies := []string{ocr.MalformedFailFile, ocr.MalformedSkipImage}
	if !slices.Contains(validPolicies, c.OCR.MalformedMarkup) {
		return fmt.Errorf("invalid malformed markup policy: %s (must be one of: %s)",
			c.OCR.MalformedMarkup, strings.Join(validPolicies, ", "))
	}
	if c.OCR.Timeout < 0 {
		return fmt.Errorf("invalid OCR timeout: %s (must not be negative)", c.OCR.Timeout)
	}
	if c.OCR.MinImageWidth < 0 {
		return fmt.Errorf("invalid OCR min image width: %d (must not be negative)", c.OCR.MinImageWidth)
	}

	return nil
}

func validateLayout(p layout.Params) error {
	margins := []struct {
		name  string
		value float64
	}{
		{"layout.char_margin", p.CharMargin},
		{"layout.line_margin", p.LineMargin},
		{"layout.word_margin", p.WordMargin},
	}
	for _, m := range margins {
		if m.value < 0 {
			return fmt.Errorf("invalid %s: %.2f (must not be negative)", m.name, m.value)
		}
	}
	if p.LineOverlap < 0 || p.LineOverlap > 1 {
		return fmt.Errorf("invalid layout.line_overlap: %.2f (must be between 0.0 and 1.0)", p.LineOverlap)
	}
	return nil
}

// Redacted returns a copy with passwords masked, for display.
func (c Config) Redacted() Config {
	if c.PDF.UserPassword != "" {
		c.PDF.UserPassword = redacted
	}
	if c.PDF.OwnerPassword != "" {
		c.PDF.OwnerPassword = redacted
	}
	c.Input.Exclude = slices.Clone(c.Input.Exclude)
	return c
}

// SlogLevel returns the slog level of LogLevel.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ToOCRConfig converts the OCR section to the bridge configuration.
func (c *Config) ToOCRConfig() ocr.Config {
	return ocr.Config{
		Language:        c.OCR.Language,
		TempDir:         c.OCR.TempDir,
		Timeout:         c.OCR.Timeout,
		Serialize:       c.OCR.Serialize,
		MalformedMarkup: c.OCR.MalformedMarkup,
		FlipY:           c.OCR.FlipY,
		Grayscale:       c.OCR.Grayscale,
		MinImageWidth:   c.OCR.MinImageWidth,
	}
}

// ToExtractOptions converts the configuration to extractor options.
func (c *Config) ToExtractOptions(logger *slog.Logger, m *metrics.Metrics) extract.Options {
	return extract.Options{
		PDF: pdf.Options{
			Credentials: pdf.Credentials{
				UserPassword:  c.PDF.UserPassword,
				OwnerPassword: c.PDF.OwnerPassword,
			},
			Layout: c.Layout,
			Logger: logger,
		},
		Normalize: c.Output.Normalize,
		Logger:    logger,
		Metrics:   m,
	}
}
