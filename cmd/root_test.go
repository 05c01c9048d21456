package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/anomalystream/internal/buildinfo"
)

const smallModel = `{"modelParams": {
	"spParams": {"columnCount": 256, "potentialRadius": 0, "globalInhibition": true,
		"numActiveColumnsPerInhArea": 10, "maxBoost": 1.0},
	"tpParams": {"columnCount": 256, "cellsPerColumn": 4, "activationThreshold": 6,
		"minThreshold": 4, "newSynapseCount": 8},
	"sensorParams": {"encoders": {
		"timestamp_timeOfDay": {"fieldname": "timestamp", "name": "timestamp", "timeOfDay": [21, 9.49], "type": "DateEncoder"},
		"value": {"fieldname": "value", "name": "value", "numBuckets": 130, "resolution": 0.5, "seed": 42, "type": "RandomDistributedScalarEncoder"}
	}}
}}`

type result struct {
	code   int
	stdout string
	stderr string
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Execute(t.Context(), args, Streams{In: strings.NewReader(stdin), Out: &out, Err: &errOut},
		&buildinfo.Context{Version: "v0.0.0-test"})
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func csvInput(n int) string {
	var b strings.Builder
	start := time.Date(2015, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range n {
		fmt.Fprintf(&b, "%s,%d\n", start.Add(time.Duration(i)*time.Hour).Format("2006-01-02 15:04:05"), 10+i%7)
	}
	return b.String()
}

func TestNoArgumentsPrintsUsage(t *testing.T) {
	r := run(t, "")
	assert.Equal(t, 0, r.code)
	assert.Contains(t, r.stdout, "Usage:")
	assert.Contains(t, r.stdout, "--params")
}

func TestMissingParameters(t *testing.T) {
	r := run(t, csvInput(3), "--skip", "1")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "expecting model parameters, see --help")
	assert.Empty(t, r.stdout)
}

func TestInlineParametersFromStdin(t *testing.T) {
	r := run(t, "timestamp,value\n"+csvInput(10), "-s", "1", smallModel)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Len(t, strings.Split(strings.TrimSpace(r.stdout), "\n"), 10)
}

func TestParamsFileAndOutputFile(t *testing.T) {
	dir := t.TempDir()
	paramsPath := filepath.Join(dir, "model.json")
	inPath := filepath.Join(dir, "in.csv")
	outPath := filepath.Join(dir, "scores.txt")
	require.NoError(t, os.WriteFile(paramsPath, []byte(smallModel), 0o600))
	require.NoError(t, os.WriteFile(inPath, []byte(csvInput(6)), 0o600))

	r := run(t, "", "-p", paramsPath, "-i", inPath, "-o", outPath)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Empty(t, r.stdout)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 6)
}

func TestMalformedRecordExitsNonZero(t *testing.T) {
	r := run(t, csvInput(2)+"not a record\n", smallModel)
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "line 3")
	assert.Len(t, strings.Split(strings.TrimSpace(r.stdout), "\n"), 2, "scores before the failure are kept")
}

func TestInvalidSettingsRejected(t *testing.T) {
	r := run(t, "", "--queue-size", "0", smallModel)
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "queue")
}

func TestResolveCommand(t *testing.T) {
	r := run(t, "", "resolve", smallModel)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "columnCount: 256")
	assert.Contains(t, r.stdout, "fieldType: datetime")
}

func TestResolveWithoutParameters(t *testing.T) {
	r := run(t, "", "resolve")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "expecting model parameters")
}

func TestVersionCommand(t *testing.T) {
	r := run(t, "", "version")
	require.Equal(t, 0, r.code)
	assert.Equal(t, "anomalystream v0.0.0-test (built unknown)\n", r.stdout)
}
