package support

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/pdflabels/internal/testutil"
	"github.com/cucumber/godog"
)

// installTesseract points the OCR configuration at a script in the
// scenario's temp directory.
func (testCtx *TestContext) installTesseract(write func(dir string) (string, error)) error {
	dir := testCtx.GetTempDir("tesseract")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create tesseract directory: %w", err)
	}
	binary, err := write(dir)
	if err != nil {
		return fmt.Errorf("failed to install fake tesseract: %w", err)
	}
	testCtx.TesseractDir = dir
	testCtx.AddEnvVar("PDFLABELS_OCR_BINARY", binary)
	return nil
}

// tesseractRecognizes installs a tesseract that reports text as a single
// line covering the whole 8x4 image.
func (testCtx *TestContext) tesseractRecognizes(text string) error {
	hocr := testutil.HOCRDocument(8, 4, testutil.HOCRLine{Text: text, BBox: [4]int{0, 0, 8, 4}})
	return testCtx.installTesseract(func(dir string) (string, error) {
		return testutil.WriteFakeTesseract(dir, hocr)
	})
}

// tesseractFails installs a tesseract that exits with an error and writes
// no output.
func (testCtx *TestContext) tesseractFails() error {
	return testCtx.installTesseract(func(dir string) (string, error) {
		script := "#!/bin/sh\n" +
			"echo \"$@\" > '" + filepath.Join(dir, testutil.FakeTesseractArgs) + "'\n" +
			"echo 'Error in pixReadStream' >&2\nexit 1\n"
		binary := filepath.Join(dir, "tesseract")
		return binary, os.WriteFile(binary, []byte(script), 0o700) //nolint:gosec // the script must be executable
	})
}

func (testCtx *TestContext) tesseractArgs() (string, error) {
	if testCtx.TesseractDir == "" {
		return "", errors.New("no fake tesseract installed")
	}
	data, err := os.ReadFile(filepath.Join(testCtx.TesseractDir, testutil.FakeTesseractArgs))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// tesseractShouldHaveBeenCalledWithLanguage verifies the language argument
// of the last tesseract call.
func (testCtx *TestContext) tesseractShouldHaveBeenCalledWithLanguage(lang string) error {
	args, err := testCtx.tesseractArgs()
	if err != nil {
		return fmt.Errorf("tesseract was not called: %w", err)
	}
	if !strings.HasSuffix(args, "-l "+lang+" hocr") {
		return fmt.Errorf("tesseract called with %q, want language %s", args, lang)
	}
	return nil
}

// tesseractShouldNotHaveBeenCalled verifies no image was recognized.
func (testCtx *TestContext) tesseractShouldNotHaveBeenCalled() error {
	args, err := testCtx.tesseractArgs()
	if err == nil {
		return fmt.Errorf("tesseract was called with %q", args)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RegisterOCRSteps registers the OCR step definitions.
func (testCtx *TestContext) RegisterOCRSteps(sc *godog.ScenarioContext) {
	sc.Step(`^tesseract recognizes "([^"]*)" in every image$`, testCtx.tesseractRecognizes)
	sc.Step(`^tesseract fails on every image$`, testCtx.tesseractFails)
	sc.Step(`^tesseract should have been called with language "([^"]*)"$`,
		testCtx.tesseractShouldHaveBeenCalledWithLanguage)
	sc.Step(`^tesseract should not have been called$`, testCtx.tesseractShouldNotHaveBeenCalled)
}
