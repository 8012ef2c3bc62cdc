package ocr

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/MeKo-Tech/pdflabels/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTesseract writes a shell script that records its arguments and copies
// output to <outbase>.hocr.
func fakeTesseract(t *testing.T, output string) (binary, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}

	dir := testutil.CreateTempDir(t)
	binary, err := testutil.WriteFakeTesseract(dir, output)
	require.NoError(t, err)
	return binary, filepath.Join(dir, testutil.FakeTesseractArgs)
}

func TestExecEngine_Recognize(t *testing.T) {
	binary, argsFile := fakeTesseract(t, "<html/>")
	dir := testutil.CreateTempDir(t)
	outBase := filepath.Join(dir, "out")

	e := NewExecEngine(binary)
	require.NoError(t, e.Recognize(context.Background(), "img.png", outBase, "nld"))

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "img.png "+outBase+" -l nld hocr", strings.TrimSpace(string(args)))
	assert.True(t, testutil.FileExists(outBase+".hocr"))
}

func TestExecEngine_MissingBinary(t *testing.T) {
	e := NewExecEngine(filepath.Join(testutil.CreateTempDir(t), "no-such-tesseract"))
	err := e.Recognize(context.Background(), "img.png", "out", "nld")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-tesseract")
}

func TestBridge_WithExecEngine(t *testing.T) {
	binary, _ := fakeTesseract(t, helloHOCR())
	b, tmp := newTestBridge(t, NewExecEngine(binary), nil)

	labels, err := b.RecognizeImage(context.Background(), pngImage(t))
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.Equal(t, "Hello World", labels[0].Text)
	assertTransferDirsRemoved(t, tmp)
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine("", "")
	require.NoError(t, err)
	assert.Equal(t, EngineTesseract, e.Name())
	assert.Equal(t, "tesseract", e.(*ExecEngine).Binary)

	e, err = NewEngine(EngineTesseract, "/opt/tesseract")
	require.NoError(t, err)
	assert.Equal(t, "/opt/tesseract", e.(*ExecEngine).Binary)

	_, err = NewEngine("abbyy", "")
	require.Error(t, err)
}
