package wserrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMissingKindAndSeverity(t *testing.T) {
	err := ConfigMissing("url")
	assert.Equal(t, KindConfigMissing, err.Kind())
	assert.Equal(t, SeverityFatal, err.Severity())
	assert.Contains(t, err.Error(), "url")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial failed")
	err := TransientTransport("connect", cause)

	assert.Equal(t, KindTransientTransport, err.Kind())
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "dial failed")
}

func TestAsExtractsSessionError(t *testing.T) {
	err := QueueFullErr("drop_oldest")

	se, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindQueueFull, se.Kind())

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsMatchesKind(t *testing.T) {
	err := MaxRetriesExceededErr(1000)
	assert.True(t, Is(err, KindMaxRetriesExceeded))
	assert.False(t, Is(err, KindQueueFull))
}

func TestWithContextAttachesMetadata(t *testing.T) {
	err := UnknownOverflowPolicy("bogus").WithContext(&Context{Component: "queue", Operation: "parse_policy"})
	assert.Equal(t, "queue", err.Context().Component)
	assert.Equal(t, "parse_policy", err.Context().Operation)
}
