package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/anomalystream/internal/errors"
	"github.com/tphakala/anomalystream/internal/pipeline"
)

func inference(n int64, score float64) pipeline.Inference {
	return pipeline.Inference{
		RecordNum:    n,
		Line:         int(n) + 1,
		Timestamp:    time.Date(2014, 4, 1, 0, int(n)*5, 0, 0, time.UTC),
		Value:        float64(n) * 1.5,
		AnomalyScore: score,
	}
}

func TestFormatScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{1, "1.0"},
		{0.5, "0.5"},
		{0.025, "0.025"},
		{0.001, "0.001"},
		{0.30000000000000004, "0.30000000000000004"},
		{1.0 / 3.0, "0.3333333333333333"},
		{4.8828125e-4, "4.8828125E-4"},
		{1e-4, "1.0E-4"},
		{12345678, "1.2345678E7"},
		{-2, "-2.0"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatScore(tt.in))
		})
	}

	a, b := 0.1, 0.2
	assert.Equal(t, "0.30000000000000004", FormatScore(a+b), "sums computed at run time keep every digit")
}

func TestScoreWriterWritesOneLinePerScore(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewScoreWriter(&buf, true)
	w.OnNext(inference(0, 1))
	assert.Equal(t, "1.0\n", buf.String(), "unbuffered sinks see each score at once")

	w.OnNext(inference(1, 0.5))
	w.OnNext(inference(2, 0.025))
	w.OnComplete()

	assert.Equal(t, "1.0\n0.5\n0.025\n", buf.String())
	require.NoError(t, w.Err())
	require.NoError(t, w.Close())
}

func TestScoreWriterFlushesOnError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewScoreWriter(&buf, false)
	w.OnNext(inference(0, 1))
	assert.Empty(t, buf.String(), "file sinks buffer")

	w.OnError(fmt.Errorf("boom"))
	assert.Equal(t, "1.0\n", buf.String())
}

func TestOpenScoreWriterFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "scores.txt")
	w, err := OpenScoreWriter(path)
	require.NoError(t, err)
	for i := range int64(3) {
		w.OnNext(inference(i, 0.25))
	}
	w.OnComplete()
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0.25\n0.25\n0.25\n", string(data))

	_, err = OpenScoreWriter(filepath.Join(t.TempDir(), "missing", "scores.txt"))
	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, fmt.Errorf("disk full") }

func TestScoreWriterReportsWriteFailure(t *testing.T) {
	t.Parallel()

	w := NewScoreWriter(failingWriter{}, true)
	w.OnNext(inference(0, 1))
	w.OnNext(inference(1, 1))

	err := w.Err()
	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))
	assert.Contains(t, err.Error(), "disk full")
}

type sinkCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *sinkCounter) SinkError(sink string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[sink]++
}

func TestSQLiteSinkStoresRun(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "db", "scores.db")
	sink, err := NewSQLiteSink(path, "run-1", 2, nil)
	require.NoError(t, err)

	for i := range int64(5) {
		sink.OnNext(inference(i, float64(i)/10))
	}
	sink.OnComplete()
	require.NoError(t, sink.Err())

	var rows []ScoreRecord
	require.NoError(t, sink.DB().Order("record_num").Find(&rows).Error)
	require.Len(t, rows, 5)
	for i, r := range rows {
		assert.Equal(t, "run-1", r.RunID)
		assert.Equal(t, int64(i), r.RecordNum)
		assert.Equal(t, i+1, r.Line)
		assert.InDelta(t, float64(i)/10, r.Score, 1e-12)
		assert.InDelta(t, float64(i)*1.5, r.Value, 1e-12)
	}
	require.NoError(t, sink.Close())
}

func TestSQLiteSinkKeepsRowsOnStreamError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "scores.db")
	sink, err := NewSQLiteSink(path, "run-2", 100, nil)
	require.NoError(t, err)

	sink.OnNext(inference(0, 1))
	sink.OnNext(inference(1, 0.5))
	sink.OnError(fmt.Errorf("bad record"))

	var count int64
	require.NoError(t, sink.DB().Model(&ScoreRecord{}).Where("run_id = ?", "run-2").Count(&count).Error)
	assert.Equal(t, int64(2), count)
	require.NoError(t, sink.Close())
}

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	fail     bool
	closed   bool
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("broker unavailable")
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakePublisher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func TestOpenDialectorSelectsDriver(t *testing.T) {
	t.Parallel()

	name, d, err := openDialector(MySQLScheme + "scores:secret@tcp(db:3306)/anomalies?parseTime=true")
	require.NoError(t, err)
	assert.Equal(t, "mysql", name)
	assert.Equal(t, "mysql", d.Name())

	name, d, err = openDialector(filepath.Join(t.TempDir(), "nested", "scores.db"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", name)
	assert.Equal(t, "sqlite", d.Name())
}

func TestMySQLSinkUnreachable(t *testing.T) {
	t.Parallel()

	_, err := NewSQLiteSink(MySQLScheme+"scores:secret@tcp(127.0.0.1:1)/anomalies", "run", 0, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))

	var ee *errors.EnhancedError
	require.ErrorAs(t, err, &ee)
	assert.NotContains(t, fmt.Sprint(ee.GetContext()), "secret")
}

func TestMQTTSinkPublishesInferences(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	sink := newMQTTSink(pub, MQTTConfig{RunID: "run-3", Topic: "nab/scores"}, nil)

	sink.OnNext(inference(0, 1))
	sink.OnNext(inference(1, 0.5))
	sink.OnComplete()
	require.NoError(t, sink.Close())

	require.Equal(t, []string{"nab/scores", "nab/scores", "nab/scores/status"}, pub.topics)
	assert.True(t, pub.closed)

	var msg Message
	require.NoError(t, json.Unmarshal(pub.payloads[1], &msg))
	assert.Equal(t, "run-3", msg.RunID)
	assert.Equal(t, int64(1), msg.RecordNum)
	assert.InDelta(t, 0.5, msg.AnomalyScore, 1e-12)

	var status StatusMessage
	require.NoError(t, json.Unmarshal(pub.payloads[2], &status))
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, int64(2), status.Records)
}

func TestMQTTSinkCountsFailures(t *testing.T) {
	t.Parallel()

	counter := &sinkCounter{}
	sink := newMQTTSink(&fakePublisher{fail: true}, MQTTConfig{}, counter)
	sink.OnNext(inference(0, 1))
	sink.OnNext(inference(1, 1))
	sink.OnError(fmt.Errorf("bad record"))

	assert.Equal(t, int64(3), sink.Failures())
	assert.Equal(t, map[string]int{mqttSinkName: 3}, counter.counts)
}

func TestNewMQTTSinkConnectFailure(t *testing.T) {
	t.Parallel()

	_, err := NewMQTTSink(MQTTConfig{
		Broker:         "tcp://127.0.0.1:1",
		ClientID:       "anomalystream-test",
		ConnectTimeout: 2 * time.Second,
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))

	_, err = NewMQTTSink(MQTTConfig{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))
}
