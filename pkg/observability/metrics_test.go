package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsdurable/client/pkg/session"
)

func TestNewMetricsRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(MetricsConfig{}, reg)
	require.NoError(t, err)

	m.SetConnectionState(session.PhaseConnected)
	m.SetRetryCount(3)
	m.SetQueueSize(42)
	m.IncQueuePressureAlerts()
	m.IncStalenessAlerts()
	m.IncFramesSent()
	m.IncFramesReceived()

	assert.Equal(t, float64(session.PhaseConnected), testutil.ToFloat64(m.connectionState))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.retryCount))
	assert.Equal(t, float64(42), testutil.ToFloat64(m.queueSize))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.queuePressureAlerts))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.stalenessAlerts))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.framesSent))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.framesReceived))
}

func TestNewMetricsDefaultsNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(MetricsConfig{}, reg)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
	assert.Contains(t, families[0].GetName(), "wsclient_")
}

func TestNewMetricsPropagatesDuplicateRegistrationError(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(MetricsConfig{}, reg)
	require.NoError(t, err)

	_, err = NewMetrics(MetricsConfig{}, reg)
	assert.Error(t, err)
}
