package logger

import (
	"bytes"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, l Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(l)
	t.Cleanup(func() {
		SetLevel(LevelError)
		SetTimestamps(false)
		SetOutput(os.Stderr)
		now = time.Now
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, LevelError)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())
	assert.True(t, Enabled(LevelInfo))

	SetVerbose(false)
	assert.False(t, IsVerbose())
	assert.False(t, Enabled(LevelWarn))
	assert.True(t, Enabled(LevelError))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{" warn ", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestLevels_Format(t *testing.T) {
	buf := capture(t, LevelDebug)

	Debug("delta %s", "alice")
	Info("synced %d deltas", 42)
	Warn("multi-valued %s", "mail")
	Error("resource %s: %d matches", "hr", 2)

	assert.Equal(t,
		"[DEBUG] delta alice\n"+
			"[INFO] synced 42 deltas\n"+
			"[WARN] multi-valued mail\n"+
			"[ERROR] resource hr: 2 matches\n",
		buf.String())
}

func TestThreshold(t *testing.T) {
	buf := capture(t, LevelWarn)

	Debug("hidden")
	Info("hidden")
	Section("hidden")
	Warn("shown")
	Error("shown")

	assert.Equal(t, "[WARN] shown\n[ERROR] shown\n", buf.String())
}

func TestError_AlwaysPrinted(t *testing.T) {
	buf := capture(t, LevelError)

	Warn("suppressed")
	Info("suppressed")
	Section("suppressed")
	Error("connector %s unavailable", "hr")

	assert.Equal(t, "[ERROR] connector hr unavailable\n", buf.String())
}

func TestSection(t *testing.T) {
	buf := capture(t, LevelInfo)

	Section("Sync hr")

	assert.Equal(t, "\n=== Sync hr ===\n", buf.String())
}

func TestTimestamps(t *testing.T) {
	buf := capture(t, LevelInfo)
	now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	SetTimestamps(true)

	Info("tick")

	assert.Equal(t, "2026-03-01T12:00:00Z [INFO] tick\n", buf.String())
}

func TestConcurrentAccess(t *testing.T) {
	capture(t, LevelError)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			SetVerbose(i%2 == 0)
			Debug("concurrent %d", i)
			IsVerbose()
		}()
	}
	wg.Wait()
}
