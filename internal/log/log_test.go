package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestLevels(t *testing.T) {
	buf := capture(t, LevelInfo)

	Debug("hidden")
	Info("shown", "id", 7)
	Error("failed", errors.New("boom"), "feed", "home service")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] shown id=7")
	assert.Contains(t, out, `[ERROR] failed err=boom feed="home service"`)
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestErrorLevelSuppressesInfo(t *testing.T) {
	buf := capture(t, LevelError)
	Info("quiet")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, l)

	l, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, l)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
