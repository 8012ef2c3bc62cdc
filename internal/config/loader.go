package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "pdflabels"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "PDFLABELS"
)

// Loader handles loading configuration from various sources. Each loader
// owns its viper instance.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// BindFlag binds a command-line flag to a configuration key. A flag only
// overrides the other sources when it was set explicitly.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag for key %s", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads configFile, or searches the standard locations when it is
// empty, applies environment variables and bound flags, and validates the
// result.
func (l *Loader) Load(configFile string) (*Config, error) {
	cfg, err := l.LoadWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithoutValidation is Load without the final validation.
func (l *Loader) LoadWithoutValidation(configFile string) (*Config, error) {
	l.setupEnvironmentVariables()
	l.setDefaults()

	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		l.v.SetConfigName(ConfigFileName)
		for _, p := range GetConfigSearchPaths() {
			l.v.AddConfigPath(p)
		}
		if err := l.v.ReadInConfig(); err != nil {
			// It's okay if config file doesn't exist, we'll use defaults and env vars
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// ConfigFileUsed returns the path of the config file used.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()

	// Replace dots and dashes with underscores in env var names
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key, which also makes each key reachable
// through environment variables.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)

	l.v.SetDefault("input.root", d.Input.Root)
	l.v.SetDefault("input.pattern", d.Input.Pattern)
	l.v.SetDefault("input.exclude", d.Input.Exclude)

	l.v.SetDefault("output.file", d.Output.File)
	l.v.SetDefault("output.indent", d.Output.Indent)
	l.v.SetDefault("output.normalize", d.Output.Normalize)

	l.v.SetDefault("batch.workers", d.Batch.Workers)

	l.v.SetDefault("layout.char_margin", d.Layout.CharMargin)
	l.v.SetDefault("layout.line_margin", d.Layout.LineMargin)
	l.v.SetDefault("layout.word_margin", d.Layout.WordMargin)
	l.v.SetDefault("layout.line_overlap", d.Layout.LineOverlap)
	l.v.SetDefault("layout.detect_vertical", d.Layout.DetectVertical)
	l.v.SetDefault("layout.all_texts", d.Layout.AllTexts)

	l.v.SetDefault("ocr.enabled", d.OCR.Enabled)
	l.v.SetDefault("ocr.engine", d.OCR.Engine)
	l.v.SetDefault("ocr.binary", d.OCR.Binary)
	l.v.SetDefault("ocr.language", d.OCR.Language)
	l.v.SetDefault("ocr.temp_dir", d.OCR.TempDir)
	l.v.SetDefault("ocr.timeout", d.OCR.Timeout)
	l.v.SetDefault("ocr.serialize", d.OCR.Serialize)
	l.v.SetDefault("ocr.malformed_markup", d.OCR.MalformedMarkup)
	l.v.SetDefault("ocr.min_image_width", d.OCR.MinImageWidth)
	l.v.SetDefault("ocr.grayscale", d.OCR.Grayscale)
	l.v.SetDefault("ocr.flip_y", d.OCR.FlipY)

	l.v.SetDefault("pdf.user_password", d.PDF.UserPassword)
	l.v.SetDefault("pdf.owner_password", d.PDF.OwnerPassword)

	l.v.SetDefault("metrics.file", d.Metrics.File)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	}

	paths = append(paths, filepath.Join("/etc", ConfigFileName))

	return paths
}
