package diag_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanglelang/tangle/diag"
)

func TestWriterSinkPrefixesLines(t *testing.T) {
	var buf bytes.Buffer
	s := diag.NewWriterSink(&buf)
	s.Debugf("step %d", 1)
	s.Errorf("bad %s", "thing")

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "DEBUG: step 1", lines[0])
	assert.Equal(t, "ERROR: bad thing", lines[1])
}

func TestLevelSinkFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	s := diag.LevelSink{Level: 0, Sink: diag.NewWriterSink(&buf)}
	s.Debugf("hidden")
	s.Tracef("also hidden")
	s.Errorf("always shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "always shown")
}

func TestNoOpSinkDiscardsEverything(t *testing.T) {
	var s diag.NoOp
	s.Debugf("x")
	s.Tracef("y")
	s.Errorf("z")
}
