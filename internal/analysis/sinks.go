package analysis

import (
	"github.com/tphakala/anomalystream/internal/conf"
	"github.com/tphakala/anomalystream/internal/logger"
	"github.com/tphakala/anomalystream/internal/observability"
	"github.com/tphakala/anomalystream/internal/output"
	"github.com/tphakala/anomalystream/internal/pipeline"
)

// sinkSet holds the optional secondary sinks of a run.
type sinkSet struct {
	sqlite *output.SQLiteSink
	mqtt   *output.MQTTSink
}

// openSinks opens the sinks enabled in settings. If one fails to open, the
// ones already opened are closed.
func openSinks(settings *conf.Settings, runID string, metrics *observability.Metrics) (*sinkSet, error) {
	s := &sinkSet{}

	if settings.SQLite.Path != "" {
		sink, err := output.NewSQLiteSink(settings.SQLite.Path, runID, output.DefaultBatchSize, metrics.Pipeline)
		if err != nil {
			return nil, err
		}
		s.sqlite = sink
	}

	if settings.MQTT.Broker != "" {
		sink, err := output.NewMQTTSink(output.MQTTConfig{
			Broker:   settings.MQTT.Broker,
			Topic:    settings.MQTT.Topic,
			ClientID: settings.MQTT.ClientID + "-" + runID[:8],
			Username: settings.MQTT.Username,
			Password: settings.MQTT.Password,
			RunID:    runID,
		}, metrics.Pipeline)
		if err != nil {
			s.close(GetLogger())
			return nil, err
		}
		s.mqtt = sink
	}

	return s, nil
}

func (s *sinkSet) observers() []pipeline.Observer {
	var out []pipeline.Observer
	if s.sqlite != nil {
		out = append(out, s.sqlite)
	}
	if s.mqtt != nil {
		out = append(out, s.mqtt)
	}
	return out
}

// close releases every sink. Sink failures are logged only; they never
// change the outcome of the run.
func (s *sinkSet) close(log logger.Logger) {
	if s.sqlite != nil {
		if err := s.sqlite.Close(); err != nil {
			log.Warn("score database incomplete", logger.Error(err))
		}
	}
	if s.mqtt != nil {
		if n := s.mqtt.Failures(); n > 0 {
			log.Warn("some scores were not published", logger.Int64("failures", n))
		}
		_ = s.mqtt.Close()
	}
}
