// Package output holds the result sinks that observe a pipeline: the score
// text writer and the optional SQLite and MQTT sinks.
package output

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/tphakala/anomalystream/internal/errors"
	"github.com/tphakala/anomalystream/internal/logger"
	"github.com/tphakala/anomalystream/internal/pipeline"
)

// StdoutPath selects standard output in OpenScoreWriter.
const StdoutPath = "-"

// FailureCounter counts sink failures. observability.PipelineMetrics
// implements it.
type FailureCounter interface {
	SinkError(sink string)
}

type noopCounter struct{}

func (noopCounter) SinkError(string) {}

// ScoreWriter writes one formatted anomaly score per line.
type ScoreWriter struct {
	mu        sync.Mutex
	w         *bufio.Writer
	closer    io.Closer
	path      string
	flushEach bool
	lines     int64
	err       error
	log       logger.Logger
}

// NewScoreWriter wraps w. With flushEachLine every score is flushed as soon
// as it is written, so a reader on the other end of a pipe sees it at once.
func NewScoreWriter(w io.Writer, flushEachLine bool) *ScoreWriter {
	return &ScoreWriter{
		w:         bufio.NewWriter(w),
		flushEach: flushEachLine,
		path:      StdoutPath,
		log:       GetLogger(),
	}
}

// OpenScoreWriter opens path for writing, truncating it. An empty path or
// StdoutPath selects standard output with per-line flushing.
func OpenScoreWriter(path string) (*ScoreWriter, error) {
	if path == "" || path == StdoutPath {
		return NewScoreWriter(os.Stdout, true), nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, errors.FileError(fmt.Errorf("opening output: %w", err), path)
	}
	sw := NewScoreWriter(f, false)
	sw.closer = f
	sw.path = path
	return sw, nil
}

func (s *ScoreWriter) OnNext(inf pipeline.Inference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}

	if _, err := s.w.WriteString(FormatScore(inf.AnomalyScore) + "\n"); err != nil {
		s.fail(err)
		return
	}
	s.lines++
	if s.flushEach {
		if err := s.w.Flush(); err != nil {
			s.fail(err)
		}
	}
}

// OnError flushes the scores written so far.
func (s *ScoreWriter) OnError(error) {
	s.flush()
}

func (s *ScoreWriter) OnComplete() {
	s.flush()
	s.log.Debug("scores written", logger.Int64("lines", s.lines), logger.String("path", s.path))
}

// Err returns the first write failure, an IOError naming the output path.
func (s *ScoreWriter) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close flushes and closes the underlying file. Standard output is left open.
func (s *ScoreWriter) Close() error {
	s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closer != nil {
		if err := s.closer.Close(); err != nil && s.err == nil {
			s.err = errors.FileError(fmt.Errorf("closing output: %w", err), s.path)
		}
		s.closer = nil
	}
	return s.err
}

func (s *ScoreWriter) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	if err := s.w.Flush(); err != nil {
		s.fail(err)
	}
}

// fail records the first write error; caller holds mu.
func (s *ScoreWriter) fail(err error) {
	s.err = errors.FileError(fmt.Errorf("writing scores: %w", err), s.path)
	s.log.Error("score output failed", logger.Error(err), logger.String("path", s.path))
}

// FormatScore renders f the way Java's Double.toString does: the shortest
// decimal that round-trips, always with a fractional part, switching to
// computerized scientific notation below 1e-3 and from 1e7 on.
func FormatScore(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	abs := math.Abs(f)
	if abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}

	s := strconv.FormatFloat(f, 'E', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	e, _ := strconv.Atoi(exp)
	return mantissa + "E" + strconv.Itoa(e)
}
