package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/anomalystream/internal/errors"
	"github.com/tphakala/anomalystream/internal/htm"
	"github.com/tphakala/anomalystream/internal/logger"
	"github.com/tphakala/anomalystream/internal/params"
)

// DefaultQueueSize bounds the number of records waiting for the consumer.
const DefaultQueueSize = 1024

type options struct {
	loc       *time.Location
	queueSize int
	metrics   Metrics
	log       logger.Logger
}

// Option configures Assemble.
type Option func(*options)

// WithLocation sets the time zone used to parse timestamps. Default UTC.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithQueueSize sets the ingestion queue capacity. Values below 1 keep the default.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

type item struct {
	line   string
	lineNo int
}

// Pipeline owns the stage chain, the ingestion queue and the result stream
// of one run. It is not reusable.
type Pipeline struct {
	encoder *htm.MultiEncoder
	engine  *htm.Handle
	loc     *time.Location
	log     logger.Logger
	metrics Metrics

	queue chan item
	done  chan struct{}

	pubMu     sync.Mutex
	completed bool
	failure   error // set by Fail before the queue is closed

	mu        sync.Mutex
	observers []Observer
	started   bool
	err       error

	// consumer goroutine only
	nextRecord int64
}

// Publisher is the ingestion endpoint of a pipeline.
type Publisher struct {
	p *Pipeline
}

// ResultStream delivers a pipeline's results to observers.
type ResultStream struct {
	p *Pipeline
}

// Assemble builds the encoders and the engine for cfg and wires them behind
// one ingestion queue. Configurations the stages reject are pipeline errors.
func Assemble(cfg *params.ModelConfig, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.PipelineError(fmt.Errorf("model configuration is nil"))
	}

	o := options{
		loc:       time.UTC,
		queueSize: DefaultQueueSize,
		metrics:   noopMetrics{},
		log:       GetLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	encoder, err := htm.NewMultiEncoder(Header, cfg.Sensor.FieldEncodings, cfg.Sensor.ClipInput, o.loc)
	if err != nil {
		return nil, errors.New(fmt.Errorf("building encoders: %w", err)).
			Category(errors.CategoryPipeline).
			Context("header", HeaderNames).
			Build()
	}

	engine, err := htm.Configure(encoder.Width(), cfg.Spatial, cfg.Sequence)
	if err != nil {
		return nil, err
	}

	o.log.Debug("pipeline assembled",
		logger.String("header", HeaderNames),
		logger.String("types", HeaderTypes),
		logger.String("flags", HeaderFlags),
		logger.Int("input_width", encoder.Width()),
		logger.Int("queue_size", o.queueSize),
		logger.String("timezone", o.loc.String()))

	return &Pipeline{
		encoder: encoder,
		engine:  engine,
		loc:     o.loc,
		log:     o.log,
		metrics: o.metrics,
		queue:   make(chan item, o.queueSize),
		done:    make(chan struct{}),
	}, nil
}

// Publisher returns the ingestion endpoint.
func (p *Pipeline) Publisher() *Publisher {
	return &Publisher{p: p}
}

// Results returns the result stream.
func (p *Pipeline) Results() *ResultStream {
	return &ResultStream{p: p}
}

// Engine returns the scoring handle. It may only be inspected from observer
// callbacks or after Wait returns.
func (p *Pipeline) Engine() *htm.Handle {
	return p.engine
}

// Subscribe registers an observer. Observers must subscribe before Start.
func (r *ResultStream) Subscribe(o Observer) error {
	if o == nil {
		return fmt.Errorf("observer is nil")
	}
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	p.observers = append(p.observers, o)
	return nil
}

// Push queues one raw line. See PushLine.
func (pub *Publisher) Push(ctx context.Context, line string) error {
	return pub.PushLine(ctx, 0, line)
}

// PushLine queues one raw line, tagged with its source line number for
// diagnostics. It blocks while the queue is full and returns once the line
// is queued, the stream has terminated (ErrStreamClosed) or ctx is done.
func (pub *Publisher) PushLine(ctx context.Context, lineNo int, line string) error {
	p := pub.p
	p.pubMu.Lock()
	defer p.pubMu.Unlock()

	if p.completed {
		return ErrPublisherCompleted
	}
	select {
	case <-p.done:
		return ErrStreamClosed
	default:
	}

	select {
	case p.queue <- item{line: line, lineNo: lineNo}:
		p.metrics.RecordPushed()
		p.metrics.SetQueueDepth(len(p.queue))
		return nil
	case <-p.done:
		return ErrStreamClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Complete signals that no more lines will be pushed. It does not wait for
// the consumer to drain. Calling it again has no effect.
func (pub *Publisher) Complete() {
	p := pub.p
	p.pubMu.Lock()
	defer p.pubMu.Unlock()
	if p.completed {
		return
	}
	p.completed = true
	close(p.queue)
}

// Fail ends ingestion abnormally. Lines already queued are still scored,
// then the stream terminates with err instead of completing. It has no
// effect after Complete or a previous Fail.
func (pub *Publisher) Fail(err error) {
	if err == nil {
		err = ErrStreamClosed
	}
	p := pub.p
	p.pubMu.Lock()
	defer p.pubMu.Unlock()
	if p.completed {
		return
	}
	p.completed = true
	p.failure = err
	close(p.queue)
}

// Start launches the consumer goroutine. Canceling ctx terminates the
// stream with a stream error.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	observers := slices.Clone(p.observers)
	p.mu.Unlock()

	go p.consume(ctx, observers)
	return nil
}

// Wait blocks until the stream completes or fails and returns the terminal error.
func (p *Pipeline) Wait() error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	<-p.done
	return p.err
}

// Done is closed when the consumer has terminated.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

func (p *Pipeline) consume(ctx context.Context, observers []Observer) {
	defer close(p.done)

	for {
		select {
		case <-ctx.Done():
			p.terminate(observers, errors.StreamError(fmt.Errorf("stream canceled: %w", ctx.Err()), p.nextRecord, 0))
			return
		case it, ok := <-p.queue:
			if !ok {
				if p.failure != nil {
					p.terminate(observers, p.failure)
					return
				}
				p.log.Debug("stream completed", logger.Int64("records", p.nextRecord))
				for _, o := range observers {
					o.OnComplete()
				}
				return
			}
			p.metrics.SetQueueDepth(len(p.queue))

			inf, err := p.process(it)
			if err != nil {
				p.terminate(observers, err)
				return
			}
			for _, o := range observers {
				o.OnNext(inf)
			}
		}
	}
}

func (p *Pipeline) terminate(observers []Observer, err error) {
	p.err = err
	p.log.Debug("stream terminated",
		logger.Error(err),
		logger.Int64("records", p.nextRecord))
	for _, o := range observers {
		o.OnError(err)
	}
}

// process runs one line through parse, encode and score.
func (p *Pipeline) process(it item) (Inference, error) {
	start := time.Now()

	ts, value, err := parseRecord(it.line, p.loc)
	if err != nil {
		return Inference{}, p.stageError(StageParse, err, it)
	}

	bits, err := p.encoder.Encode([]any{ts, value})
	if err != nil {
		return Inference{}, p.stageError(StageEncode, err, it)
	}

	score, err := p.engine.Step(bits)
	if err != nil {
		return Inference{}, p.stageError(StageScore, err, it)
	}

	inf := Inference{
		RecordNum:    p.nextRecord,
		Line:         it.lineNo,
		Timestamp:    ts,
		Value:        value,
		AnomalyScore: score,
	}
	p.nextRecord++
	p.metrics.RecordScored(score, time.Since(start))
	return inf, nil
}

func (p *Pipeline) stageError(stage string, err error, it item) error {
	p.metrics.StreamError(stage)

	msg := fmt.Sprintf("record %d", p.nextRecord)
	if it.lineNo > 0 {
		msg = fmt.Sprintf("line %d", it.lineNo)
	}
	b := errors.New(fmt.Errorf("%s: %s: %w", msg, stage, err)).
		Category(errors.CategoryStream).
		Context("record", p.nextRecord).
		Context("stage", stage)
	if it.lineNo > 0 {
		b = b.Context("line", it.lineNo)
	}
	return b.Build()
}

// parseRecord splits a timestamp,value line and parses both fields.
func parseRecord(line string, loc *time.Location) (time.Time, float64, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != len(Header) {
		return time.Time{}, 0, fmt.Errorf("expected %d fields (%s), got %d", len(Header), HeaderNames, len(fields))
	}

	ts, err := time.ParseInLocation(params.DateTimeLayout, strings.TrimSpace(fields[0]), loc)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid timestamp %q: %w", fields[0], err)
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid value %q: %w", fields[1], err)
	}

	return ts, value, nil
}
