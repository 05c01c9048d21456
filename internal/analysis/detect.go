// Package analysis runs one detection: it reads CSV lines, feeds them to an
// assembled pipeline and routes the scores to the configured sinks.
package analysis

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/anomalystream/internal/conf"
	"github.com/tphakala/anomalystream/internal/errors"
	"github.com/tphakala/anomalystream/internal/logger"
	"github.com/tphakala/anomalystream/internal/observability"
	"github.com/tphakala/anomalystream/internal/output"
	"github.com/tphakala/anomalystream/internal/params"
	"github.com/tphakala/anomalystream/internal/pipeline"
)

const (
	initialLineBuffer = 64 * 1024
	maxLineBytes      = 16 * 1024 * 1024
)

// Stdio carries the process streams used when input or output is "-".
type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
}

// Detect scores every record of the configured input with a model built
// from model and writes one score per line to the configured output. It
// returns after the stream has completed or failed. Scores written before a
// failure stay flushed.
func Detect(ctx context.Context, settings *conf.Settings, model *params.ModelConfig, stdio Stdio) error {
	runID := uuid.NewString()
	log := GetLogger().With(logger.String("run_id", runID))

	loc, err := settings.Location()
	if err != nil {
		return errors.ConfigError("timezone", fmt.Errorf("resolving timezone %q: %w", settings.Timezone, err))
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	if settings.Metrics.Listen != "" {
		endpoint := observability.NewEndpoint(settings.Metrics.Listen, metrics)
		if err := endpoint.Start(); err != nil {
			return errors.New(err).Category(errors.CategoryNetwork).Context("listen", settings.Metrics.Listen).Build()
		}
		defer func() {
			if err := endpoint.Shutdown(context.WithoutCancel(ctx)); err != nil {
				log.Warn("metrics endpoint shutdown failed", logger.Error(err))
			}
		}()
	}

	p, err := pipeline.Assemble(model,
		pipeline.WithLocation(loc),
		pipeline.WithQueueSize(settings.QueueSize),
		pipeline.WithMetrics(metrics.Pipeline),
		pipeline.WithLogger(log.Module("pipeline")))
	if err != nil {
		return err
	}

	in, inputName, err := openInput(settings.Input, stdio.Stdin)
	if err != nil {
		return err
	}
	defer in.Close()

	scores, err := openOutput(settings.Output, stdio.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := scores.Close(); err != nil {
			log.Error("closing score output failed", logger.Error(err))
		}
	}()

	sinks, err := openSinks(settings, runID, metrics)
	if err != nil {
		return err
	}
	defer sinks.close(log)

	results := p.Results()
	observers := append([]pipeline.Observer{scores, newRunSummary(p, log, settings.Debug)}, sinks.observers()...)
	for _, o := range observers {
		if err := results.Subscribe(o); err != nil {
			return err
		}
	}

	log.Info("detection started",
		logger.String("input", inputName),
		logger.String("output", outputName(settings.Output)),
		logger.Int("skip", settings.Skip),
		logger.String("timezone", loc.String()))

	if err := p.Start(ctx); err != nil {
		return err
	}

	g := new(errgroup.Group)
	g.Go(func() error {
		return feed(ctx, p, in, inputName, settings.Skip, log)
	})

	if err := p.Wait(); err != nil {
		// the reader stops at its next push; closing a file input unblocks it sooner
		_ = in.Close()
		return err
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return scores.Err()
}

// feed pushes input lines until EOF or the first whitespace-only line, then
// completes the publisher. The first skip lines are discarded. A read error
// fails the stream instead.
func feed(ctx context.Context, p *pipeline.Pipeline, in io.Reader, inputName string, skip int, log logger.Logger) error {
	pub := p.Publisher()
	defer pub.Complete()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), maxLineBytes)

	lineNo, pushed := 0, 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			log.Debug("blank line ends input", logger.Int("line", lineNo))
			break
		}
		if skip > 0 {
			skip--
			continue
		}
		if err := pub.PushLine(ctx, lineNo, line); err != nil {
			if errors.Is(err, pipeline.ErrStreamClosed) {
				return nil
			}
			return err
		}
		pushed++
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-p.Done():
			// input closed after the stream failed; Wait reports the cause
			return nil
		default:
		}
		readErr := errors.FileError(fmt.Errorf("reading input at line %d: %w", lineNo+1, err), inputName)
		pub.Fail(readErr)
		return readErr
	}

	log.Debug("input exhausted", logger.Int("lines", lineNo), logger.Int("pushed", pushed))
	return nil
}

func openInput(path string, stdin io.Reader) (io.ReadCloser, string, error) {
	if path == "" || path == conf.StdStream {
		return io.NopCloser(stdin), "stdin", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, path, errors.FileError(fmt.Errorf("opening input: %w", err), path)
	}
	return f, path, nil
}

func openOutput(path string, stdout io.Writer) (*output.ScoreWriter, error) {
	if path == "" || path == conf.StdStream {
		return output.NewScoreWriter(stdout, true), nil
	}
	return output.OpenScoreWriter(path)
}

func outputName(path string) string {
	if path == "" || path == conf.StdStream {
		return "stdout"
	}
	return path
}
