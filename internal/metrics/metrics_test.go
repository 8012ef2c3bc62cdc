package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.FileDone(StatusOK, time.Second)
	m.FileDone(StatusOK, 2*time.Second)
	m.FileDone(StatusFailed, time.Millisecond)
	m.PagesWalked(3)
	m.PagesWalked(0)
	m.LabelsEmitted(SourceText, 10)
	m.LabelsEmitted(SourceOCR, 2)
	m.ImageDone(StatusSkipped, time.Millisecond)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.filesTotal.WithLabelValues(StatusOK)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.filesTotal.WithLabelValues(StatusFailed)), 0)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.pagesTotal), 0)
	assert.InDelta(t, 10.0, testutil.ToFloat64(m.labelsTotal.WithLabelValues(SourceText)), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.labelsTotal.WithLabelValues(SourceOCR)), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.imagesTotal.WithLabelValues(StatusSkipped)), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.fileDuration))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.PagesWalked(5)

	assert.InDelta(t, 5.0, testutil.ToFloat64(a.pagesTotal), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(b.pagesTotal), 0)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.FileDone(StatusOK, time.Second)
		m.PagesWalked(1)
		m.LabelsEmitted(SourceText, 1)
		m.ImageDone(StatusOK, time.Second)
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.FileDone(StatusOK, time.Second)

	path := filepath.Join(t.TempDir(), "pdflabels.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `pdflabels_files_total{status="ok"} 1`)
	assert.Contains(t, string(data), "pdflabels_file_duration_seconds_count 1")
}
