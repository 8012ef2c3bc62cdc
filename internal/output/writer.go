// Package output streams file results into one JSON array.
package output

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/pdflabels/internal/model"
)

// DefaultIndent is the number of spaces used to indent each element.
const DefaultIndent = 4

// StreamWriter is the single owner of the output. Each element is flushed as
// soon as it is written, so the output always holds a prefix of a valid
// array.
type StreamWriter struct {
	w       *bufio.Writer
	indent  string
	logger  *slog.Logger
	written int
}

// NewStreamWriter returns a writer encoding onto w with indent spaces per
// level.
func NewStreamWriter(w io.Writer, indent int, logger *slog.Logger) *StreamWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if indent < 0 {
		indent = 0
	}
	return &StreamWriter{w: bufio.NewWriter(w), indent: strings.Repeat(" ", indent), logger: logger}
}

// Run writes "[" before the first element, "," between elements and "]" once
// in is closed. An empty stream produces "[]".
func (s *StreamWriter) Run(ctx context.Context, in <-chan model.FileResult) error {
	opened := false
	for res := range in {
		data, err := s.encode(res)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", res.Filename, err)
		}

		delim := ","
		if !opened {
			delim = "["
			opened = true
		}
		if _, err := s.w.WriteString(delim); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		if _, err := s.w.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		if err := s.w.Flush(); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		s.written++
		s.logger.Debug("result written", "file", res.Filename, "labels", res.LabelCount())
	}

	if !opened {
		if _, err := s.w.WriteString("["); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if _, err := s.w.WriteString("]"); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if ctx.Err() != nil {
		s.logger.Warn("output closed after cancellation", "written", s.written)
	}
	return nil
}

// Written returns the number of elements written so far.
func (s *StreamWriter) Written() int { return s.written }

// encode renders v with object keys in sorted order.
func (s *StreamWriter) encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	// Decoding into maps orders the keys on re-encoding; numbers pass
	// through unchanged.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", s.indent)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
