package testutil

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHOCRDocument(t *testing.T) {
	doc := HOCRDocument(100, 50, HOCRLine{Text: "a & b", BBox: [4]int{1, 2, 3, 4}})

	assert.Contains(t, doc, "bbox 0 0 100 50")
	assert.Contains(t, doc, "title='bbox 1 2 3 4; baseline 0 -3'")
	assert.Contains(t, doc, ">&amp;</span>")
	assert.Equal(t, 3, strings.Count(doc, "ocrx_word"))
}

func TestHOCREngine(t *testing.T) {
	dir := CreateTempDir(t)
	img := WriteFile(t, dir, "img.png", []byte("x"))
	e := &HOCREngine{Output: "<html/>", Err: errors.New("warn")}

	err := e.Recognize(context.Background(), img, filepath.Join(dir, "out"), "deu")
	require.EqualError(t, err, "warn")
	assert.Equal(t, 1, e.Calls())
	assert.Equal(t, "deu", e.LastLanguage())

	data, err := os.ReadFile(filepath.Join(dir, "out.hocr"))
	require.NoError(t, err)
	assert.Equal(t, "<html/>", string(data))

	err = e.Recognize(context.Background(), filepath.Join(dir, "missing.png"), filepath.Join(dir, "out"), "")
	require.Error(t, err)
}

func TestBytesSource(t *testing.T) {
	rc, ext, err := (&BytesSource{Data: []byte("abc"), Ext: ".png"}).Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
	assert.Equal(t, ".png", ext)

	_, _, err = (&BytesSource{Err: io.ErrUnexpectedEOF}).Open()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWriteFakeTesseract(t *testing.T) {
	dir := CreateTempDir(t)
	binary, err := WriteFakeTesseract(dir, "<html/>")
	require.NoError(t, err)

	info, err := os.Stat(binary)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100)

	script, err := os.ReadFile(binary)
	require.NoError(t, err)
	assert.Contains(t, string(script), FakeTesseractArgs)
	assert.True(t, FileExists(filepath.Join(dir, "fixture.hocr")))
}
