//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"os"

	"github.com/otiai10/gosseract/v2"
)

// GosseractEngine runs libtesseract in process.
type GosseractEngine struct{}

// NewGosseractEngine returns an in-process engine.
func NewGosseractEngine() (Engine, error) {
	return &GosseractEngine{}, nil
}

func (e *GosseractEngine) Name() string { return EngineGosseract }

func (e *GosseractEngine) Recognize(ctx context.Context, imagePath, outBase, language string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if language != "" {
		if err := client.SetLanguage(language); err != nil {
			return fmt.Errorf("set language: %w", err)
		}
	}
	if err := client.SetImage(imagePath); err != nil {
		return fmt.Errorf("set image: %w", err)
	}

	out, err := client.HOCRText()
	if err != nil {
		return fmt.Errorf("recognize %s: %w", imagePath, err)
	}
	return os.WriteFile(outBase+".hocr", []byte(out), 0o600)
}
