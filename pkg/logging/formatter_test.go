package logging

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsdurable/client/pkg/wserrors"
)

func TestTextFormatterIncludesMessageAndFields(t *testing.T) {
	f := NewTextFormatter()
	f.DisableColors = true
	f.DisableTimestamp = true

	out, err := f.Format(&Entry{
		Level:   InfoLevel,
		Message: "connected",
		Fields:  map[string]interface{}{"url": "ws://host/socket"},
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), "[INFO]")
	assert.Contains(t, string(out), "connected")
	assert.Contains(t, string(out), "url=ws://host/socket")
}

func TestTextFormatterPrefixesComponent(t *testing.T) {
	f := NewTextFormatter()
	f.DisableColors = true
	f.DisableTimestamp = true

	out, err := f.Format(&Entry{
		Level:     WarnLevel,
		Message:   "retrying",
		Component: "supervisor",
		Fields:    map[string]interface{}{"component": "supervisor"},
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), "supervisor: retrying")
}

func TestJSONFormatterRoundTripsFields(t *testing.T) {
	f := NewJSONFormatter()
	f.DisableTimestamp = true

	out, err := f.Format(&Entry{
		Level:   ErrorLevel,
		Message: "max retries exceeded",
		Fields:  map[string]interface{}{"retry_limit": 1000},
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"level":"ERROR"`)
	assert.Contains(t, string(out), `"retry_limit":1000`)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "INFO", InfoLevel.String())
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
}

func TestLoggerRespectsLevelThreshold(t *testing.T) {
	var buf countingWriter
	logger := New(&buf, NewJSONFormatter())
	logger.SetLevel(WarnLevel)

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")

	assert.Equal(t, 1, buf.writes)
}

type countingWriter struct {
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return len(p), nil
}

func TestWithErrorAttachesSessionErrorContext(t *testing.T) {
	base := New(&countingWriter{}, NewJSONFormatter())
	withErr := base.WithError(assertableError{})
	assert.NotNil(t, withErr)

	var buf bytes.Buffer
	logger := New(&buf, NewJSONFormatter())
	se := wserrors.ConfigMissing("url").WithContext(&wserrors.Context{Component: "config", Operation: "new_config"})
	logger.WithError(se).Error("construction failed")
	assert.Contains(t, buf.String(), `"error_kind":"config_missing"`)
	assert.Contains(t, buf.String(), `"error_severity":"fatal"`)
	assert.Contains(t, buf.String(), `"component":"config"`)
	assert.Contains(t, buf.String(), `"operation":"new_config"`)
}

type assertableError struct{}

func (assertableError) Error() string { return "boom" }

func TestDuration(t *testing.T) {
	field := Duration("delay", 5*time.Second)
	assert.Equal(t, 5*time.Second, field.Value)
}
