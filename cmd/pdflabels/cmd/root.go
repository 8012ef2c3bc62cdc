// Package cmd implements the pdflabels command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/pdflabels/internal/batch"
	"github.com/MeKo-Tech/pdflabels/internal/config"
	"github.com/MeKo-Tech/pdflabels/internal/extract"
	"github.com/MeKo-Tech/pdflabels/internal/metrics"
	"github.com/MeKo-Tech/pdflabels/internal/ocr"
	"github.com/MeKo-Tech/pdflabels/internal/output"
	"github.com/MeKo-Tech/pdflabels/internal/version"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// UsageError is a malformed invocation. The process prints the usage and
// exits with status 2.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// ExitCode maps the result of the root command to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return 2
	}
	return 1
}

// flagBindings maps configuration keys to the flags overriding them.
var flagBindings = map[string]string{
	"log_level":     "log-level",
	"input.root":    "root",
	"input.exclude": "exclude",
	"output.file":   "output",
	"batch.workers": "processes",
	"ocr.language":  "language",
	"metrics.file":  "metrics-file",
}

// NewRootCommand returns the pdflabels command. Every call returns an
// independent command with its own configuration loader.
func NewRootCommand() *cobra.Command {
	loader := config.NewLoader()
	var (
		cfgFile string
		cfg     *config.Config
		logger  *slog.Logger
	)

	rootCmd := &cobra.Command{
		Use:   "pdflabels [glob]",
		Short: "Extract positioned text labels from PDF files",
		Long: `pdflabels walks the current directory for PDF files and writes every piece
of text it finds, with its bounding box, font and orientation, to a JSON file.

Text drawn with fonts is read from the page content. Text inside embedded
images is recognized with tesseract and placed on the page.

Examples:
  pdflabels
  pdflabels -p 4 -o labels.json "invoice-*.pdf"
  pdflabels --no-ocr --exclude "drafts" --print-config`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 1 {
				return &UsageError{Err: fmt.Errorf("accepts at most 1 arg(s), received %d", len(args))}
			}
			return nil
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig(cmd, loader, cfgFile, args)
			if err != nil {
				return err
			}

			logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: cfg.SlogLevel(),
			}))
			slog.SetDefault(logger)
			logger.Debug("configuration loaded", "version", version.String(), "config_file", loader.ConfigFileUsed())
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if printConfig, _ := cmd.Flags().GetBool("print-config"); printConfig {
				data, err := yaml.Marshal(cfg.Redacted())
				if err != nil {
					return fmt.Errorf("failed to render configuration: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			summary, err := run(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			for _, f := range summary.Failures {
				logger.Debug("file skipped", "file", f.Path, "error", f.Err)
			}
			return nil
		},
	}

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/pdflabels, /etc/pdflabels)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("root", ".", "directory searched recursively for input files")
	flags.StringSlice("exclude", nil, "glob patterns of files or directories to skip")
	flags.StringP("output", "o", config.DefaultOutputFile, "output file")
	flags.IntP("processes", "p", batch.DefaultWorkers, "number of files processed in parallel")
	flags.String("language", ocr.DefaultLanguage, "tesseract language of embedded images")
	flags.Bool("no-ocr", false, "do not recognize text in embedded images")
	flags.String("metrics-file", "", "write Prometheus metrics to this file when done")
	flags.Bool("print-config", false, "print the effective configuration and exit")

	for key, name := range flagBindings {
		if err := loader.BindFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	return rootCmd
}

// loadConfig merges the configuration sources with the flags that have no
// configuration key, and validates the result.
func loadConfig(cmd *cobra.Command, loader *config.Loader, cfgFile string, args []string) (*config.Config, error) {
	cfg, err := loader.LoadWithoutValidation(cfgFile)
	if err != nil {
		return nil, err
	}

	if len(args) == 1 {
		cfg.Input.Pattern = args[0]
	}
	if noOCR, _ := cmd.Flags().GetBool("no-ocr"); noOCR {
		cfg.OCR.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, &UsageError{Err: fmt.Errorf("configuration validation failed: %w", err)}
	}
	return cfg, nil
}

// run processes every discovered file and streams the results to the
// output file.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) (batch.Summary, error) {
	files, err := batch.DiscoverFiles(cfg.Input.Root, cfg.Input.Pattern, cfg.Input.Exclude)
	if err != nil {
		return batch.Summary{}, fmt.Errorf("failed to discover input files: %w", err)
	}
	logger.Info("input files discovered", "root", cfg.Input.Root, "pattern", cfg.Input.Pattern, "files", len(files))

	m := metrics.New()

	var recognizer extract.Recognizer
	if cfg.OCR.Enabled {
		engine, err := ocr.NewEngine(cfg.OCR.Engine, cfg.OCR.Binary)
		if err != nil {
			return batch.Summary{}, err
		}
		recognizer = ocr.NewBridge(engine, cfg.ToOCRConfig(), logger, m)
	}

	extractor, err := extract.NewExtractor(extract.NewWalker(recognizer, m), cfg.ToExtractOptions(logger, m))
	if err != nil {
		return batch.Summary{}, err
	}

	out, err := os.Create(cfg.Output.File)
	if err != nil {
		return batch.Summary{}, fmt.Errorf("failed to create output file: %w", err)
	}

	writer := output.NewStreamWriter(out, cfg.Output.Indent, logger)
	pool, err := batch.NewPool(cfg.Batch.Workers, extractor, writer, logger, m)
	if err != nil {
		_ = out.Close()
		return batch.Summary{}, err
	}

	summary, runErr := pool.Run(ctx, files)
	if err := out.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to close output file: %w", err)
	}

	if cfg.Metrics.File != "" {
		if err := m.WriteTextfile(cfg.Metrics.File); err != nil {
			logger.Error("failed to write metrics", "file", cfg.Metrics.File, "error", err)
		}
	}

	return summary, runErr
}
