package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset() {
	SetLevel("info")
	SetOutput(os.Stderr)
}

func TestLevels(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	require.NoError(t, SetLevel("warn"))

	Debug("hidden debug")
	Info("hidden info")
	Warn("shown warn", "source", "bookA")
	Error("shown error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "msg=\"shown warn\"")
	assert.Contains(t, out, "source=bookA")
	assert.Contains(t, out, "level=ERROR")
}

func TestSetLevelUnknown(t *testing.T) {
	defer reset()
	assert.Error(t, SetLevel("chatty"))
}

func TestVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	require.NoError(t, SetLevel("info"))
	assert.False(t, IsVerbose())

	Debug("before")
	SetVerbose(true)
	assert.True(t, IsVerbose())
	Debug("after", "k", 5)

	out := buf.String()
	assert.False(t, strings.Contains(out, "before"))
	assert.Contains(t, out, "msg=after k=5")
}

func TestSetOutput(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	assert.Equal(t, &buf, Output())

	Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
