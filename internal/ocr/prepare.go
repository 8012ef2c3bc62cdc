package ocr

import (
	"fmt"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"

	"github.com/MeKo-Tech/pdflabels/internal/layout"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// prepareImage decodes the image at path, applies the configured
// normalization and writes the result as PNG into dir.
func prepareImage(path, dir string, grayscale bool, minWidth int) (string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", layout.ErrImageUnsupported, err)
	}

	if minWidth > 0 && img.Bounds().Dx() < minWidth {
		img = imaging.Resize(img, minWidth, 0, imaging.Lanczos)
	}
	if grayscale {
		img = imaging.Grayscale(img)
	}

	out := filepath.Join(dir, "prepared.png")
	if err := imaging.Save(img, out); err != nil {
		return "", fmt.Errorf("failed to write prepared image: %w", err)
	}
	return out, nil
}
