//nolint:lll
package config

import (
	"time"

	"github.com/MeKo-Tech/pdflabels/internal/layout"
)

// Config represents the complete configuration of a pdflabels run. It is
// built once from defaults, a configuration file, environment variables and
// command-line flags, and is not modified afterwards.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`

	Input   InputConfig   `mapstructure:"input" yaml:"input" json:"input"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output" json:"output"`
	Batch   BatchConfig   `mapstructure:"batch" yaml:"batch" json:"batch"`
	Layout  layout.Params `mapstructure:"layout" yaml:"layout" json:"layout"`
	OCR     OCRConfig     `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	PDF     PDFConfig     `mapstructure:"pdf" yaml:"pdf" json:"pdf"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// InputConfig selects the documents to process.
type InputConfig struct {
	Root    string   `mapstructure:"root" yaml:"root" json:"root"`
	Pattern string   `mapstructure:"pattern" yaml:"pattern" json:"pattern"`
	Exclude []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
}

// OutputConfig controls the result file.
type OutputConfig struct {
	File      string `mapstructure:"file" yaml:"file" json:"file"`
	Indent    int    `mapstructure:"indent" yaml:"indent" json:"indent"`
	Normalize string `mapstructure:"normalize" yaml:"normalize" json:"normalize"`
}

// BatchConfig contains worker pool settings.
type BatchConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers" json:"workers"`
}

// OCRConfig contains settings for recognizing embedded images.
type OCRConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Engine          string        `mapstructure:"engine" yaml:"engine" json:"engine"`
	Binary          string        `mapstructure:"binary" yaml:"binary" json:"binary"`
	Language        string        `mapstructure:"language" yaml:"language" json:"language"`
	TempDir         string        `mapstructure:"temp_dir" yaml:"temp_dir" json:"temp_dir"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Serialize       bool          `mapstructure:"serialize" yaml:"serialize" json:"serialize"`
	MalformedMarkup string        `mapstructure:"malformed_markup" yaml:"malformed_markup" json:"malformed_markup"`
	MinImageWidth   int           `mapstructure:"min_image_width" yaml:"min_image_width" json:"min_image_width"`
	Grayscale       bool          `mapstructure:"grayscale" yaml:"grayscale" json:"grayscale"`
	FlipY           bool          `mapstructure:"flip_y" yaml:"flip_y" json:"flip_y"`
}

// PDFConfig holds the passwords tried on encrypted documents.
type PDFConfig struct {
	UserPassword  string `mapstructure:"user_password" yaml:"user_password" json:"user_password"`
	OwnerPassword string `mapstructure:"owner_password" yaml:"owner_password" json:"owner_password"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	File string `mapstructure:"file" yaml:"file" json:"file"`
}
