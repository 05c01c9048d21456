package output

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/anomalystream/internal/errors"
	"github.com/tphakala/anomalystream/internal/logger"
	"github.com/tphakala/anomalystream/internal/pipeline"
)

const (
	mqttSinkName = "mqtt"

	DefaultMQTTTopic      = "anomalystream/scores"
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	disconnectQuiesceMs   = 250
)

// MQTTConfig configures the MQTT sink.
type MQTTConfig struct {
	Broker         string
	Topic          string
	ClientID       string
	Username       string
	Password       string
	RunID          string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// Message is the JSON payload published for every inference.
type Message struct {
	RunID        string    `json:"run_id"`
	RecordNum    int64     `json:"record"`
	Timestamp    time.Time `json:"timestamp"`
	Value        float64   `json:"value"`
	AnomalyScore float64   `json:"anomaly_score"`
}

// StatusMessage is published once when the stream ends.
type StatusMessage struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	Records int64  `json:"records"`
	Error   string `json:"error,omitempty"`
}

// publisher is the part of a broker connection the sink needs.
type publisher interface {
	Publish(topic string, payload []byte) error
	Close()
}

// MQTTSink publishes inferences to a broker topic.
type MQTTSink struct {
	mu        sync.Mutex
	pub       publisher
	topic     string
	runID     string
	published int64
	failures  int64
	counter   FailureCounter
	log       logger.Logger
}

// NewMQTTSink connects to the broker. Connection failures are IOErrors.
func NewMQTTSink(cfg MQTTConfig, counter FailureCounter) (*MQTTSink, error) {
	if _, err := url.Parse(cfg.Broker); err != nil || cfg.Broker == "" {
		return nil, errors.New(fmt.Errorf("invalid MQTT broker URL %q", cfg.Broker)).
			Category(errors.CategoryFileIO).
			Context("broker", cfg.Broker).
			Build()
	}

	pub, err := dialPaho(cfg)
	if err != nil {
		return nil, errors.New(fmt.Errorf("connecting to MQTT broker %s: %w", cfg.Broker, err)).
			Category(errors.CategoryFileIO).
			Context("broker", cfg.Broker).
			Build()
	}
	return newMQTTSink(pub, cfg, counter), nil
}

func newMQTTSink(pub publisher, cfg MQTTConfig, counter FailureCounter) *MQTTSink {
	if counter == nil {
		counter = noopCounter{}
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultMQTTTopic
	}
	return &MQTTSink{
		pub:     pub,
		topic:   topic,
		runID:   cfg.RunID,
		counter: counter,
		log:     GetLogger().Module(mqttSinkName),
	}
}

func (s *MQTTSink) OnNext(inf pipeline.Inference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send(s.topic, Message{
		RunID:        s.runID,
		RecordNum:    inf.RecordNum,
		Timestamp:    inf.Timestamp,
		Value:        inf.Value,
		AnomalyScore: inf.AnomalyScore,
	})
}

func (s *MQTTSink) OnError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send(s.topic+"/status", StatusMessage{RunID: s.runID, Status: "failed", Records: s.published, Error: err.Error()})
}

func (s *MQTTSink) OnComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send(s.topic+"/status", StatusMessage{RunID: s.runID, Status: "completed", Records: s.published})
	s.log.Debug("scores published",
		logger.Int64("messages", s.published),
		logger.Int64("failures", s.failures),
		logger.String("topic", s.topic))
}

// Failures reports how many messages could not be published.
func (s *MQTTSink) Failures() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pub != nil {
		s.pub.Close()
		s.pub = nil
	}
	return nil
}

// send publishes v as JSON; caller holds mu.
func (s *MQTTSink) send(topic string, v any) {
	if s.pub == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err == nil {
		err = s.pub.Publish(topic, payload)
	}
	if err != nil {
		s.failures++
		s.counter.SinkError(mqttSinkName)
		// warn on the first failure only; Failures counts the rest
		if s.failures == 1 {
			s.log.Warn("publishing to MQTT failed", logger.Error(err), logger.String("topic", topic))
		}
		return
	}
	if _, ok := v.(Message); ok {
		s.published++
	}
}

type pahoPublisher struct {
	client  mqtt.Client
	timeout time.Duration
}

func dialPaho(cfg MQTTConfig) (*pahoPublisher, error) {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	publishTimeout := cfg.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetConnectRetry(false)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connection timeout after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	return &pahoPublisher{client: client, timeout: publishTimeout}, nil
}

func (p *pahoPublisher) Publish(topic string, payload []byte) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("not connected to MQTT broker")
	}
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}

func (p *pahoPublisher) Close() {
	p.client.Disconnect(disconnectQuiesceMs)
}
