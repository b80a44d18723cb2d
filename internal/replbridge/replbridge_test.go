package replbridge

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func readRecords(t *testing.T, r *bufio.Reader, n int) []StatusRecord {
	t.Helper()
	var out []StatusRecord
	for i := 0; i < n; i++ {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		var rec StatusRecord
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestMultiLineSubmissionEvaluates(t *testing.T) {
	input := strings.Join([]string{
		"func f(x int) int {",
		"    return x + 1",
		"}",
		"",
	}, "\n") + Delimiter + "println(f(41))" + Delimiter

	var out bytes.Buffer
	var status bytes.Buffer
	b := New(strings.NewReader(input), &out, &status, "")

	require.NoError(t, b.Run())

	recs := readRecords(t, bufio.NewReader(&status), 2)
	require.Equal(t, "status", recs[0].Type)
	require.Equal(t, "ok", recs[0].Message)
	require.Equal(t, "status", recs[1].Type)
	require.Equal(t, "ok", recs[1].Message)

	// S5: the output pipe receives "42\n" then the delimiter for the
	// println submission, even though this input never sets
	// __CAPTURE_COMBINED__ (it defaults to true). The first submission
	// (the func declaration) prints nothing, so it contributes only its
	// own trailing delimiter ahead of it.
	require.Equal(t, Delimiter+"42\n"+Delimiter, out.String())
}

func TestSyntaxErrorReportsException(t *testing.T) {
	input := "func broken( {" + Delimiter

	var out bytes.Buffer
	var status bytes.Buffer
	b := New(strings.NewReader(input), &out, &status, "")

	require.NoError(t, b.Run())

	recs := readRecords(t, bufio.NewReader(&status), 1)
	require.Equal(t, "exception", recs[0].Type)
	require.NotEmpty(t, recs[0].Message)
}

func TestCaptureToggleParsing(t *testing.T) {
	val, ok := parseCaptureToggle("__CAPTURE_COMBINED__ = True")
	require.True(t, ok)
	require.True(t, val)

	val, ok = parseCaptureToggle("__CAPTURE_COMBINED__ = false")
	require.True(t, ok)
	require.False(t, val)

	_, ok = parseCaptureToggle("x := 1")
	require.False(t, ok)
}
