package analysis

import (
	"time"

	"github.com/tphakala/anomalystream/internal/logger"
	"github.com/tphakala/anomalystream/internal/pipeline"
)

// runSummary traces every score and logs the outcome of the run.
type runSummary struct {
	p       *pipeline.Pipeline
	log     logger.Logger
	debug   bool
	records int64
	started time.Time
}

func newRunSummary(p *pipeline.Pipeline, log logger.Logger, debug bool) *runSummary {
	return &runSummary{p: p, log: log, debug: debug, started: time.Now()}
}

func (s *runSummary) OnNext(inf pipeline.Inference) {
	s.records++
	s.log.Trace("record scored",
		logger.Int64("record", inf.RecordNum),
		logger.Float64("score", inf.AnomalyScore))
}

func (s *runSummary) OnError(err error) {
	s.log.Error("error processing data",
		logger.Error(err),
		logger.Int64("records", s.records))
}

func (s *runSummary) OnComplete() {
	s.log.Info("detection completed",
		logger.Int64("records", s.records),
		logger.Duration("elapsed", time.Since(s.started)))
	if !s.debug {
		return
	}
	stats := s.p.Engine().Introspect()
	s.log.Debug("engine summary",
		logger.Int("active_duty_cycles", stats.ActiveColumnCount),
		logger.Int("iterations", stats.Iteration),
		logger.Int("segments", stats.Segments),
		logger.Int("synapses", stats.Synapses))
}
