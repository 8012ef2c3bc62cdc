//go:build !gosseract

package ocr

import "fmt"

// NewGosseractEngine fails unless the binary was built with -tags gosseract.
func NewGosseractEngine() (Engine, error) {
	return nil, fmt.Errorf("%w: %s (rebuild with -tags gosseract)", ErrEngineUnavailable, EngineGosseract)
}
