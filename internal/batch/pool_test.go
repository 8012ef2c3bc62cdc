package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/pdflabels/internal/coords"
	"github.com/MeKo-Tech/pdflabels/internal/extract"
	"github.com/MeKo-Tech/pdflabels/internal/layout"
	"github.com/MeKo-Tech/pdflabels/internal/model"
	"github.com/MeKo-Tech/pdflabels/internal/output"
	"github.com/MeKo-Tech/pdflabels/internal/pdf"
	"github.com/MeKo-Tech/pdflabels/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExtractor sleeps a random amount and fails for paths containing
// "bad" or panics for paths containing "panic".
type fakeExtractor struct {
	mu      sync.Mutex
	seen    []string
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (f *fakeExtractor) ExtractFile(ctx context.Context, path string) (model.FileResult, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.seen = append(f.seen, path)
	f.mu.Unlock()

	time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond) //nolint:gosec // jitter only

	switch {
	case strings.Contains(path, "panic"):
		panic("corrupt xref")
	case strings.Contains(path, "bad"):
		return model.FileResult{}, errors.New("malformed PDF")
	}
	return model.FileResult{
		Filename: path,
		Pages: []model.PageResult{{
			BoundingBox: coords.BBox{X1: 1, Y1: 1},
			Labels:      []model.Label{model.NewLabel(coords.BBox{X1: 1, Y1: 1}, path)},
		}},
	}, ctx.Err()
}

func runPool(t *testing.T, workers int, ex Extractor, files []string) (Summary, []model.FileResult) {
	t.Helper()
	var sb strings.Builder
	pool, err := NewPool(workers, ex, output.NewStreamWriter(&sb, output.DefaultIndent, nil), nil, nil)
	require.NoError(t, err)

	summary, err := pool.Run(context.Background(), files)
	require.NoError(t, err)

	var decoded []model.FileResult
	require.NoError(t, json.Unmarshal([]byte(sb.String()), &decoded), sb.String())
	return summary, decoded
}

func TestPool_AllFilesWritten(t *testing.T) {
	const k = 25
	files := make([]string, k)
	for i := range files {
		files[i] = fmt.Sprintf("doc-%02d.pdf", i)
	}

	for _, workers := range []int{1, 3, 8} {
		ex := &fakeExtractor{}
		summary, decoded := runPool(t, workers, ex, files)

		assert.Len(t, decoded, k)
		names := make([]string, 0, k)
		for _, r := range decoded {
			names = append(names, r.Filename)
		}
		assert.ElementsMatch(t, files, names)

		assert.Equal(t, k, summary.Files)
		assert.Equal(t, k, summary.Processed)
		assert.Equal(t, k, summary.Written)
		assert.Zero(t, summary.Failed)
		assert.LessOrEqual(t, int(ex.maxSeen.Load()), workers)
	}
}

func TestPool_FailingFilesSkipped(t *testing.T) {
	files := []string{"a.pdf", "bad-1.pdf", "b.pdf", "panic.pdf", "bad-2.pdf", "c.pdf"}
	ex := &fakeExtractor{}

	summary, decoded := runPool(t, 2, ex, files)

	assert.Len(t, decoded, 3)
	assert.Equal(t, 6, summary.Processed)
	assert.Equal(t, 3, summary.Failed)
	assert.Equal(t, 3, summary.Written)
	assert.Len(t, ex.seen, 6)

	failed := make([]string, 0, len(summary.Failures))
	for _, f := range summary.Failures {
		failed = append(failed, f.Path)
		assert.Error(t, f)
	}
	assert.ElementsMatch(t, []string{"bad-1.pdf", "panic.pdf", "bad-2.pdf"}, failed)
}

func TestPool_NoFiles(t *testing.T) {
	summary, decoded := runPool(t, 2, &fakeExtractor{}, nil)
	assert.Empty(t, decoded)
	assert.Zero(t, summary.Processed)
}

type failingSink struct{}

func (failingSink) Run(ctx context.Context, in <-chan model.FileResult) error {
	<-in
	return errors.New("disk full")
}

func TestPool_SinkErrorStopsWorkers(t *testing.T) {
	files := make([]string, 50)
	for i := range files {
		files[i] = fmt.Sprintf("%d.pdf", i)
	}

	pool, err := NewPool(4, &fakeExtractor{}, failingSink{}, nil, nil)
	require.NoError(t, err)

	summary, err := pool.Run(context.Background(), files)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Less(t, summary.Written, len(files))
}

func TestPool_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sb strings.Builder
	pool, err := NewPool(2, &fakeExtractor{}, output.NewStreamWriter(&sb, 0, nil), nil, nil)
	require.NoError(t, err)

	summary, err := pool.Run(ctx, []string{"a.pdf", "b.pdf"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Processed)
	assert.Equal(t, "[]", sb.String())
}

func TestNewPool_InvalidWorkers(t *testing.T) {
	_, err := NewPool(0, &fakeExtractor{}, failingSink{}, nil, nil)
	require.Error(t, err)
}

func TestFileError(t *testing.T) {
	cause := pdf.ErrExtractionDenied
	err := error(&FileError{Path: "x.pdf", Err: cause})

	assert.Equal(t, "x.pdf: "+cause.Error(), err.Error())
	assert.ErrorIs(t, err, pdf.ErrExtractionDenied)

	var fe *FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "x.pdf", fe.Path)
}

func TestPool_RealDocuments(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.NewPDF().AddTextPage("first file").WriteFile(t, filepath.Join(dir, "one.pdf"))
	testutil.NewPDF().AddTextPage("second", "file").AddTextPage("page two").WriteFile(t, filepath.Join(dir, "sub", "two.pdf"))
	testutil.NewPDF().AddPage(testutil.PDFPage{}).Encrypt(-64).WriteFile(t, filepath.Join(dir, "locked.pdf"))
	testutil.WriteFile(t, dir, "broken.pdf", []byte("%PDF-1.4 garbage"))

	files, err := DiscoverFiles(dir, "*.pdf", nil)
	require.NoError(t, err)
	require.Len(t, files, 4)

	ex, err := extract.NewExtractor(extract.NewWalker(nil, nil), extract.Options{
		PDF: pdf.Options{Layout: layout.DefaultParams()},
	})
	require.NoError(t, err)

	summary, decoded := runPool(t, 2, ex, files)
	assert.Equal(t, 2, summary.Failed)
	require.Len(t, decoded, 2)

	byName := map[string]model.FileResult{}
	for _, r := range decoded {
		byName[filepath.Base(r.Filename)] = r
	}
	require.Contains(t, byName, "two.pdf")
	two := byName["two.pdf"]
	require.Len(t, two.Pages, 2)
	assert.Equal(t, 1, two.Pages[1].Index)
	assert.Equal(t, "page two", two.Pages[1].Labels[0].Text)
}
