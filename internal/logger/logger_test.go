package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuffer(t *testing.T, verboseMode bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(verboseMode)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	withBuffer(t, false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestLevels_WhenVerbose(t *testing.T) {
	tests := []struct {
		name string
		log  func(string, ...any)
		want string
	}{
		{"debug", Debug, "[DEBUG] step 2 of 3\n"},
		{"info", Info, "[INFO] step 2 of 3\n"},
		{"warn", Warn, "[WARN] step 2 of 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := withBuffer(t, true)
			tt.log("step %d of %d", 2, 3)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestLevels_WhenQuiet(t *testing.T) {
	buf := withBuffer(t, false)

	Debug("hidden")
	Info("hidden")
	Warn("hidden")
	Section("hidden")

	assert.Empty(t, buf.String())
}

func TestError_AlwaysPrinted(t *testing.T) {
	buf := withBuffer(t, false)

	Error("run %s failed", "abc")

	assert.Equal(t, "[ERROR] run abc failed\n", buf.String())
}

func TestSection(t *testing.T) {
	buf := withBuffer(t, true)

	Section("Research Step")

	assert.Equal(t, "\n=== Research Step ===\n", buf.String())
}

func TestWriter(t *testing.T) {
	buf := withBuffer(t, true)
	assert.Same(t, buf, Writer())
}
