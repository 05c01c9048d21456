package analysis

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/anomalystream/internal/conf"
	"github.com/tphakala/anomalystream/internal/errors"
	"github.com/tphakala/anomalystream/internal/output"
	"github.com/tphakala/anomalystream/internal/params"
	"github.com/tphakala/anomalystream/internal/pipeline"
)

const nabEncoders = `{
	"timestamp_timeOfDay": {"fieldname": "timestamp", "name": "timestamp", "timeOfDay": [21, 9.49], "type": "DateEncoder"},
	"timestamp_dayOfWeek": null,
	"timestamp_weekend": null,
	"value": {"fieldname": "value", "name": "value", "numBuckets": 130, "resolution": 0.5, "seed": 42, "type": "RandomDistributedScalarEncoder"}
}`

// smallModel keeps the engine small so longer inputs stay fast.
func smallModel(t *testing.T) *params.ModelConfig {
	t.Helper()
	cfg, err := params.Resolve([]byte(`{"modelParams": {
		"spParams": {"columnCount": 256, "potentialRadius": 0, "globalInhibition": true,
			"numActiveColumnsPerInhArea": 10, "maxBoost": 1.0},
		"tpParams": {"columnCount": 256, "cellsPerColumn": 4, "activationThreshold": 6,
			"minThreshold": 4, "newSynapseCount": 8},
		"sensorParams": {"encoders": ` + nabEncoders + `}
	}}`))
	require.NoError(t, err)
	return cfg
}

func defaultModel(t *testing.T) *params.ModelConfig {
	t.Helper()
	cfg, err := params.Resolve([]byte(`{"modelParams": {"sensorParams": {"encoders": ` + nabEncoders + `}}}`))
	require.NoError(t, err)
	return cfg
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s, err := conf.Load(conf.NewViper(), "")
	require.NoError(t, err)
	return s
}

func csvLines(n int) []string {
	start := time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)
	lines := make([]string, n)
	for i := range lines {
		ts := start.Add(time.Duration(i) * 15 * time.Minute)
		lines[i] = fmt.Sprintf("%s,%.3f", ts.Format(params.DateTimeLayout), 40+20*math.Sin(float64(i)/6))
	}
	return lines
}

func detect(t *testing.T, settings *conf.Settings, model *params.ModelConfig, input string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Detect(t.Context(), settings, model, Stdio{Stdin: strings.NewReader(input), Stdout: &out})
	return out.String(), err
}

func parseScores(t *testing.T, out string) []float64 {
	t.Helper()
	var scores []float64
	for line := range strings.Lines(out) {
		s, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
		require.NoError(t, err, "output line %q", line)
		scores = append(scores, s)
	}
	return scores
}

func TestDetectTwoRecordScenario(t *testing.T) {
	t.Parallel()

	out, err := detect(t, testSettings(t), defaultModel(t), "2014-01-01 00:00:00,1.0\n2014-01-01 01:00:00,2.0\n")
	require.NoError(t, err)

	scores := parseScores(t, out)
	require.Len(t, scores, 2)
	for _, s := range scores {
		assert.True(t, s >= 0 && s <= 1, "score out of range: %v", s)
	}
	assert.True(t, strings.HasPrefix(out, "1.0\n"), "the first record is never predicted")
}

func TestDetectIsDeterministic(t *testing.T) {
	t.Parallel()

	input := strings.Join(csvLines(200), "\n") + "\n"
	first, err := detect(t, testSettings(t), smallModel(t), input)
	require.NoError(t, err)
	second, err := detect(t, testSettings(t), smallModel(t), input)
	require.NoError(t, err)

	assert.Len(t, parseScores(t, first), 200)
	assert.Equal(t, first, second, "identical runs give byte-identical output")
}

func TestDetectSkipsHeaderLines(t *testing.T) {
	t.Parallel()

	lines := csvLines(30)
	plain, err := detect(t, testSettings(t), smallModel(t), strings.Join(lines, "\n"))
	require.NoError(t, err)

	settings := testSettings(t)
	settings.Skip = 2
	withHeader := "timestamp,value\ndatetime,float\n" + strings.Join(lines, "\n")
	skipped, err := detect(t, settings, smallModel(t), withHeader)
	require.NoError(t, err)

	assert.Len(t, parseScores(t, skipped), 30)
	assert.Equal(t, plain, skipped, "skipped lines never reach the pipeline")
}

func TestDetectStopsAtBlankLine(t *testing.T) {
	t.Parallel()

	lines := csvLines(6)
	input := strings.Join(lines[:3], "\n") + "\n   \n" + strings.Join(lines[3:], "\n") + "\n"

	out, err := detect(t, testSettings(t), smallModel(t), input)
	require.NoError(t, err)
	assert.Len(t, parseScores(t, out), 3)
}

func TestDetectBlankLineInsideSkipStillStops(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	settings.Skip = 3
	out, err := detect(t, settings, smallModel(t), "header\n\n"+strings.Join(csvLines(4), "\n"))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDetectStreamErrorKeepsWrittenScores(t *testing.T) {
	t.Parallel()

	lines := csvLines(5)
	lines[2] = "2014-01-01 00:30:00;oops"

	out, err := detect(t, testSettings(t), smallModel(t), strings.Join(lines, "\n"))
	require.Error(t, err)
	assert.True(t, errors.IsStreamError(err))
	assert.Contains(t, err.Error(), "line 3")
	assert.Len(t, parseScores(t, out), 2)
}

func TestDetectRejectsIncompatibleModel(t *testing.T) {
	t.Parallel()

	model := smallModel(t)
	model.Sequence.ColumnCount = 128
	_, err := detect(t, testSettings(t), model, strings.Join(csvLines(2), "\n"))
	require.Error(t, err)
	assert.True(t, errors.IsPipelineError(err))
}

func TestDetectFilesAndSQLite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	inPath := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(inPath, []byte("timestamp,value\n"+strings.Join(csvLines(12), "\n")+"\n"), 0o600))

	settings := testSettings(t)
	settings.Input = inPath
	settings.Output = filepath.Join(dir, "scores.txt")
	settings.Skip = 1
	settings.SQLite.Path = filepath.Join(dir, "scores.db")

	err := Detect(t.Context(), settings, smallModel(t), Stdio{})
	require.NoError(t, err)

	data, err := os.ReadFile(settings.Output)
	require.NoError(t, err)
	scores := parseScores(t, string(data))
	require.Len(t, scores, 12)

	db, err := gorm.Open(sqlite.Open(settings.SQLite.Path), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	var rows []output.ScoreRecord
	require.NoError(t, db.Order("record_num").Find(&rows).Error)
	require.Len(t, rows, 12)
	for i, r := range rows {
		assert.Equal(t, int64(i), r.RecordNum)
		assert.Equal(t, i+2, r.Line, "line numbers count the skipped header")
		assert.Equal(t, output.FormatScore(scores[i]), output.FormatScore(r.Score))
	}
	assert.Len(t, rows[0].RunID, 36)
}

func TestDetectMissingInput(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	settings.Input = filepath.Join(t.TempDir(), "absent.csv")
	err := Detect(t.Context(), settings, smallModel(t), Stdio{})
	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))
}

// failingReader returns its content, then fails instead of reporting EOF.
type failingReader struct {
	r io.Reader
}

func (f *failingReader) Read(b []byte) (int, error) {
	n, err := f.r.Read(b)
	if err == io.EOF {
		return n, fmt.Errorf("disk read failed")
	}
	return n, err
}

func TestFeedReadErrorFailsStream(t *testing.T) {
	t.Parallel()

	p, err := pipeline.Assemble(smallModel(t))
	require.NoError(t, err)

	var scored, failed, completed int
	var cause error
	require.NoError(t, p.Results().Subscribe(pipeline.ObserverFuncs{
		Next:     func(pipeline.Inference) { scored++ },
		Error:    func(err error) { failed++; cause = err },
		Complete: func() { completed++ },
	}))
	require.NoError(t, p.Start(t.Context()))

	in := &failingReader{r: strings.NewReader(strings.Join(csvLines(3), "\n") + "\n")}
	feedErr := feed(t.Context(), p, in, "data.csv", 0, GetLogger())
	require.Error(t, feedErr)
	assert.True(t, errors.IsIOError(feedErr))
	assert.Contains(t, feedErr.Error(), "line 4")

	waitErr := p.Wait()
	require.ErrorIs(t, waitErr, feedErr)
	assert.Equal(t, 3, scored)
	assert.Equal(t, 1, failed)
	assert.Zero(t, completed, "a failed read never completes the stream")
	assert.True(t, errors.IsIOError(cause))
}

func TestDetectReadErrorExitsWithIOError(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	in := &failingReader{r: strings.NewReader(strings.Join(csvLines(3), "\n") + "\n")}
	err := Detect(t.Context(), testSettings(t), smallModel(t), Stdio{Stdin: in, Stdout: &out})
	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))
	assert.Len(t, parseScores(t, out.String()), 3)
}
