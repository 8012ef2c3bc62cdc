// Package batch runs extraction over many files with a fixed set of workers
// feeding a single output writer.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/MeKo-Tech/pdflabels/internal/metrics"
	"github.com/MeKo-Tech/pdflabels/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the number of workers used when none is configured.
const DefaultWorkers = 2

// Extractor produces the result of one file.
type Extractor interface {
	ExtractFile(ctx context.Context, path string) (model.FileResult, error)
}

// Sink consumes results until in is closed.
type Sink interface {
	Run(ctx context.Context, in <-chan model.FileResult) error
}

// FileError is the failure of a single file.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

func (e *FileError) Unwrap() error { return e.Err }

// Summary describes a finished run.
type Summary struct {
	Files     int
	Processed int
	Failed    int
	Written   int
	Duration  time.Duration
	Failures  []*FileError
}

// Pool distributes files over workers.
type Pool struct {
	workers   int
	extractor Extractor
	sink      Sink
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewPool returns a pool of workers running ex and handing results to sink.
func NewPool(workers int, ex Extractor, sink Sink, logger *slog.Logger, m *metrics.Metrics) (*Pool, error) {
	if workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1, got %d", workers)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{workers: workers, extractor: ex, sink: sink, logger: logger, metrics: m}, nil
}

type tally struct {
	mu        sync.Mutex
	processed int
	written   int
	failures  []*FileError
}

// Run processes files and returns once every worker stopped and the sink
// closed its output. A failing file is logged and skipped. A sink error
// cancels the remaining work and is returned.
func (p *Pool) Run(ctx context.Context, files []string) (Summary, error) {
	start := time.Now()

	queue := make(chan string, len(files))
	for _, f := range files {
		queue <- f
	}
	close(queue)

	results := make(chan model.FileResult)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.sink.Run(gctx, results) })

	var t tally
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			p.work(gctx, i, queue, results, &t)
			return nil
		})
	}
	g.Go(func() error {
		wg.Wait()
		close(results)
		return nil
	})

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	summary := Summary{
		Files:     len(files),
		Processed: t.processed,
		Failed:    len(t.failures),
		Written:   t.written,
		Duration:  time.Since(start),
		Failures:  t.failures,
	}
	p.logger.Info(fmt.Sprintf("%d files processed", summary.Processed),
		"files", summary.Files, "failed", summary.Failed, "written", summary.Written,
		"duration", summary.Duration)
	return summary, err
}

func (p *Pool) work(ctx context.Context, worker int, queue <-chan string, results chan<- model.FileResult, t *tally) {
	logger := p.logger.With("worker", worker)
	for path := range queue {
		if ctx.Err() != nil {
			return
		}

		logger.Info("processing file", "file", path)
		start := time.Now()
		res, err := p.extract(ctx, path)

		t.mu.Lock()
		t.processed++
		if err != nil {
			t.failures = append(t.failures, &FileError{Path: path, Err: err})
		}
		t.mu.Unlock()

		if err != nil {
			p.metrics.FileDone(metrics.StatusFailed, time.Since(start))
			if errors.Is(err, context.Canceled) {
				logger.Warn("file cancelled", "file", path)
				continue
			}
			logger.Error("failed to process file", "file", path, "error", err)
			continue
		}
		p.metrics.FileDone(metrics.StatusOK, time.Since(start))

		select {
		case results <- res:
			t.mu.Lock()
			t.written++
			t.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

// extract runs the extractor, turning panics into errors.
func (p *Pool) extract(ctx context.Context, path string) (res model.FileResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Debug("recovered panic", "file", path, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic while processing: %v", rec)
		}
	}()
	return p.extractor.ExtractFile(ctx, path)
}
