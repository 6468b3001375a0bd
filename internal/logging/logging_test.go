package logging

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]log.Level{
		"debug":   log.DebugLevel,
		"WARN":    log.WarnLevel,
		"warning": log.WarnLevel,
		"error":   log.ErrorLevel,
		"info":    log.InfoLevel,
		"bogus":   log.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel("warn")
	t.Cleanup(func() { SetLevel("info") })

	Infof("recalculated %s", "demo")
	assert.Empty(t, buf.String())

	Warnf("calendar %s missing", "standard")
	assert.Contains(t, buf.String(), "calendar standard missing")
}

func TestWithKeyvals(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel("debug")
	t.Cleanup(func() { SetLevel("info") })

	With("schedule", "demo").Debug("rescheduled", "changed", 3)
	out := buf.String()
	assert.Contains(t, out, "schedule=demo")
	assert.Contains(t, out, "changed=3")
}
