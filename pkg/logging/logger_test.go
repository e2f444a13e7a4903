package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	severity Severity
	entry    string
	calls    int
}

func (c *captureSink) OnLog(severity Severity, entry string) {
	c.severity = severity
	c.entry = entry
	c.calls++
}

func TestLogForwardsToSinkWithFormattedEntry(t *testing.T) {
	sink := &captureSink{}
	l := New(&bytes.Buffer{}, sink)

	l.Errorf("disk %s", "full")

	require.Equal(t, 1, sink.calls)
	assert.Equal(t, SeverityErr, sink.severity)
	assert.True(t, strings.HasSuffix(sink.entry, "disk full"))
	assert.Contains(t, sink.entry, "ERR")
	// date  time  delta  sev  func  file:line  msg -> 7 space-separated fields minimum
	fields := strings.Fields(sink.entry)
	assert.GreaterOrEqual(t, len(fields), 7)
}

func TestLogFirstEntryHasZeroDelta(t *testing.T) {
	sink := &captureSink{}
	l := New(&bytes.Buffer{}, sink)

	l.Infof("first")
	assert.Contains(t, sink.entry, "+0.000")
}

func TestLogSubsequentEntryHasPositiveDelta(t *testing.T) {
	sink := &captureSink{}
	l := New(&bytes.Buffer{}, sink)

	l.Infof("first")
	time.Sleep(5 * time.Millisecond)
	l.Infof("second")

	assert.NotContains(t, sink.entry, "+0.000")
}

func TestLogSeverityLevels(t *testing.T) {
	sink := &captureSink{}
	l := New(&bytes.Buffer{}, sink)

	l.Warnf("w")
	assert.Equal(t, SeverityWrn, sink.severity)
	l.Debugf("d")
	assert.Equal(t, SeverityDbg, sink.severity)
}

func TestLogWithNilWriterDefaultsToStderr(t *testing.T) {
	sink := &captureSink{}
	l := New(nil, sink)
	require.NotPanics(t, func() { l.Infof("fine") })
	assert.Equal(t, 1, sink.calls)
}

func TestFormatDeltaSaturatesAboveThreshold(t *testing.T) {
	assert.Equal(t, "+>9.999", formatDelta(10*time.Second))
	assert.Equal(t, "-1.000", formatDelta(-1*time.Second))
	assert.Equal(t, "+0.000", formatDelta(0))
	assert.Equal(t, "+9.999", formatDelta(9999*time.Millisecond))
}
