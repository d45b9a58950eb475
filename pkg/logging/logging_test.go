package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"syscall"
	"testing"

	"github.com/pubtracker/ackscan/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		out = append(out, entry)
	}
	return out
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewLogger(logging.DefaultConfig(), &buf)
	require.NoError(t, err)

	logger.Info("record scanned", zap.String("file", "a.txt"), zap.Bool("verdict", true))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "record scanned", entries[0]["msg"])
	assert.Equal(t, "a.txt", entries[0]["file"])
	assert.Equal(t, true, entries[0]["verdict"])
	assert.Contains(t, entries[0], "ts")
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewLogger(logging.Config{Level: logging.LevelWarn, Format: logging.FormatJSON}, &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("shown too")

	assert.Len(t, decodeLines(t, &buf), 2)
	assert.False(t, logger.Enabled(logging.LevelInfo))
	assert.True(t, logger.Enabled(logging.LevelError))
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewLogger(logging.Config{Level: logging.LevelInfo, Format: logging.FormatConsole}, &buf)
	require.NoError(t, err)

	logger.Info("console line")
	assert.Contains(t, buf.String(), "console line")
	assert.NotContains(t, buf.String(), `"msg"`)
}

func TestNewLogger_RejectsUnknown(t *testing.T) {
	_, err := logging.NewLogger(logging.Config{Level: "loud"}, nil)
	require.Error(t, err)

	_, err = logging.NewLogger(logging.Config{Level: logging.LevelInfo, Format: "xml"}, nil)
	require.Error(t, err)
}

func TestLogger_WithAndNamed(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewLogger(logging.DefaultConfig(), &buf)
	require.NoError(t, err)

	logger.With(zap.String("run_id", "r1")).Named("pipeline").Info("started")
	logger.Info("plain")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "r1", entries[0]["run_id"])
	assert.Equal(t, "pipeline", entries[0]["logger"])
	assert.NotContains(t, entries[1], "run_id")
}

func TestLogger_ErrorErr(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewLogger(logging.DefaultConfig(), &buf)
	require.NoError(t, err)

	logger.ErrorErr("copy failed", errors.New("disk full"), zap.String("file", "x"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "disk full", entries[0]["error"])
	assert.Equal(t, "x", entries[0]["file"])
}

func TestParseLevel(t *testing.T) {
	lvl, err := logging.ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, logging.LevelInfo, lvl)

	lvl, err = logging.ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, logging.LevelDebug, lvl)

	_, err = logging.ParseLevel("trace")
	require.Error(t, err)
}

func TestGlobal(t *testing.T) {
	prev := logging.L()
	t.Cleanup(func() { logging.SetGlobal(prev) })

	tl := logging.NewTestLogger()
	logging.SetGlobal(tl.Logger)

	logging.Info("global info")
	logging.Warn("global warn")
	logging.ErrorErr("global error", errors.New("boom"))
	logging.Debug("global debug")

	tl.AssertLogged(t, logging.LevelInfo, "global info")
	tl.AssertLogged(t, logging.LevelWarn, "global warn")
	tl.AssertLogged(t, logging.LevelError, "global error")
	tl.AssertLogged(t, logging.LevelDebug, "global debug")
	tl.AssertField(t, "global error", "error", "boom")
}

func TestTestLogger_NotLogged(t *testing.T) {
	tl := logging.NewTestLogger()
	tl.Info("only info")
	tl.AssertNotLogged(t, logging.LevelError, "only info")
	assert.Len(t, tl.All(), 1)
	assert.Equal(t, 1, tl.FilterMessage("only").Len())
}

func TestSync_IgnoresTerminalErrors(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig(), syncErrWriter{err: syscall.EINVAL})
	require.NoError(t, err)
	assert.NoError(t, logger.Sync())

	logger, err = logging.NewLogger(logging.DefaultConfig(), syncErrWriter{err: syscall.EIO})
	require.NoError(t, err)
	assert.Error(t, logger.Sync())
}

type syncErrWriter struct{ err error }

func (w syncErrWriter) Write(p []byte) (int, error) { return len(p), nil }
func (w syncErrWriter) Sync() error                 { return w.err }
