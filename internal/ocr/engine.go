package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Engine names accepted by NewEngine.
const (
	EngineTesseract = "tesseract"
	EngineGosseract = "gosseract"
)

// ErrEngineUnavailable is returned when the requested engine is not built
// into this binary.
var ErrEngineUnavailable = errors.New("OCR engine unavailable")

// Engine recognizes the image at imagePath and writes hOCR to
// outBase + ".hocr" (or ".html").
type Engine interface {
	Name() string
	Recognize(ctx context.Context, imagePath, outBase, language string) error
}

// NewEngine returns the engine called name. binary is the tesseract
// executable used by the exec engine.
func NewEngine(name, binary string) (Engine, error) {
	switch name {
	case "", EngineTesseract:
		return NewExecEngine(binary), nil
	case EngineGosseract:
		return NewGosseractEngine()
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", name)
	}
}

// ExecEngine runs the tesseract command line tool.
type ExecEngine struct {
	Binary string
}

// NewExecEngine returns an engine running binary, "tesseract" if empty.
func NewExecEngine(binary string) *ExecEngine {
	if binary == "" {
		binary = "tesseract"
	}
	return &ExecEngine{Binary: binary}
}

func (e *ExecEngine) Name() string { return EngineTesseract }

// Recognize runs `tesseract <image> <outbase> -l <language> hocr`.
func (e *ExecEngine) Recognize(ctx context.Context, imagePath, outBase, language string) error {
	args := []string{imagePath, outBase}
	if language != "" {
		args = append(args, "-l", language)
	}
	args = append(args, "hocr")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Binary, args...) //nolint:gosec // G204: binary comes from configuration
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s failed: %w: %s", e.Binary, err, msg)
		}
		return fmt.Errorf("%s failed: %w", e.Binary, err)
	}
	return nil
}
