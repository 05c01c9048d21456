// Package pipeline assembles the scoring stages around one ingestion point
// and delivers ordered per-record results to subscribed observers.
package pipeline

import (
	"time"

	"github.com/tphakala/anomalystream/internal/errors"
	"github.com/tphakala/anomalystream/internal/htm"
	"github.com/tphakala/anomalystream/internal/params"
)

// Sentinel errors of the streaming channel.
var (
	// ErrStreamClosed is returned by Push once the consumer has terminated.
	ErrStreamClosed = errors.NewStd("stream closed")
	// ErrPublisherCompleted is returned by Push after Complete.
	ErrPublisherCompleted = errors.NewStd("publisher already completed")
	// ErrAlreadyStarted is returned by Subscribe and Start once the pipeline runs.
	ErrAlreadyStarted = errors.NewStd("pipeline already started")
	// ErrNotStarted is returned by Wait before Start.
	ErrNotStarted = errors.NewStd("pipeline not started")
)

// The fixed input header: column names, column types and column flags.
const (
	HeaderNames = "timestamp,value"
	HeaderTypes = "datetime,float"
	HeaderFlags = "T,B"
)

// Header is the column layout every record is parsed into.
var Header = []htm.Column{
	{Name: "timestamp", Type: params.FieldTypeDateTime},
	{Name: "value", Type: params.FieldTypeFloat},
}

// Stage names used in stream errors and metrics.
const (
	StageParse  = "parse"
	StageEncode = "encode"
	StageScore  = "score"
)

// Inference is the outcome of one record.
type Inference struct {
	// RecordNum counts accepted records from 0.
	RecordNum    int64
	Line         int
	Timestamp    time.Time
	Value        float64
	AnomalyScore float64
}

// Observer receives ordered results. OnNext is called once per record in
// push order. Exactly one of OnError or OnComplete ends the stream. All
// calls happen on the consumer goroutine.
type Observer interface {
	OnNext(Inference)
	OnError(error)
	OnComplete()
}

// ObserverFuncs adapts functions to Observer. Nil fields are ignored.
type ObserverFuncs struct {
	Next     func(Inference)
	Error    func(error)
	Complete func()
}

func (o ObserverFuncs) OnNext(inf Inference) {
	if o.Next != nil {
		o.Next(inf)
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

func (o ObserverFuncs) OnComplete() {
	if o.Complete != nil {
		o.Complete()
	}
}

// Metrics receives pipeline measurements. observability.PipelineMetrics
// implements it.
type Metrics interface {
	RecordPushed()
	RecordScored(score float64, elapsed time.Duration)
	StreamError(stage string)
	SetQueueDepth(depth int)
}

type noopMetrics struct{}

func (noopMetrics) RecordPushed()                       {}
func (noopMetrics) RecordScored(float64, time.Duration) {}
func (noopMetrics) StreamError(string)                  {}
func (noopMetrics) SetQueueDepth(int)                   {}
