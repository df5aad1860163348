package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/wsdurable/client/pkg/queue"
	"github.com/wsdurable/client/pkg/wserrors"
)

// defaultMonitorIdentifier is the literal the spec assigns when the caller
// does not set MonitorIdentifier at all. An explicitly empty string disables
// monitor reporting rather than falling back to this default.
const defaultMonitorIdentifier = "monitor"

// Params is the caller-supplied input to NewConfig. Zero-value duration/count
// fields are replaced with the tuning defaults from the data model.
type Params struct {
	URL string
	// ClientIdentifier is optional; if empty a uuid is generated at
	// construction time so every process still reports a stable identity
	// for the lifetime of the Config.
	ClientIdentifier string
	// HostIdentifier is required: it is the ping/pong target.
	HostIdentifier string
	// MonitorIdentifier, if nil, defaults to "monitor". A non-nil pointer to
	// "" explicitly disables monitor reporting.
	MonitorIdentifier *string
	LastConnectedAt   string
	LogEnabled        bool

	ConnectionTimeout  time.Duration
	RetryInitialDelay  time.Duration
	RetryMaxDelay      time.Duration
	RetryLimit         int
	QueueCapacity      int
	OverflowPolicyName string
	ShutdownGrace      time.Duration
	HealthInterval     time.Duration
}

// Config is the resolved, immutable configuration for a Session. It is
// created once via NewConfig and never mutated afterward.
type Config struct {
	URL               string
	ClientIdentifier  string
	HostIdentifier    string
	MonitorIdentifier string
	LastConnectedAt   string
	LogEnabled        bool

	ConnectionTimeout       time.Duration
	RetryInitialDelay       time.Duration
	RetryMaxDelay           time.Duration
	RetryLimit              int
	QueueCapacity           int
	OverflowPolicy          queue.OverflowPolicy
	ShutdownGrace           time.Duration
	HealthInterval          time.Duration
	QueuePressureThreshold  int
}

// NewConfig validates and resolves Params into a Config. URL and
// HostIdentifier are required and fail fast; every other field has a
// spec-defined default.
func NewConfig(p Params) (*Config, error) {
	if p.URL == "" {
		return nil, wserrors.ConfigMissing("url")
	}
	if p.HostIdentifier == "" {
		return nil, wserrors.ConfigMissing("host_identifier")
	}

	clientID := p.ClientIdentifier
	if clientID == "" {
		clientID = uuid.NewString()
	}

	monitorID := defaultMonitorIdentifier
	if p.MonitorIdentifier != nil {
		monitorID = *p.MonitorIdentifier
	}

	policy, err := queue.ParsePolicy(p.OverflowPolicyName)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		URL:               p.URL,
		ClientIdentifier:  clientID,
		HostIdentifier:    p.HostIdentifier,
		MonitorIdentifier: monitorID,
		LastConnectedAt:   p.LastConnectedAt,
		LogEnabled:        p.LogEnabled,

		ConnectionTimeout: durationOrDefault(p.ConnectionTimeout, 30*time.Second),
		RetryInitialDelay: durationOrDefault(p.RetryInitialDelay, 5*time.Second),
		RetryMaxDelay:     durationOrDefault(p.RetryMaxDelay, 15*time.Second),
		RetryLimit:        intOrDefault(p.RetryLimit, 1000),
		QueueCapacity:     intOrDefault(p.QueueCapacity, 15000),
		OverflowPolicy:    policy,
		ShutdownGrace:     durationOrDefault(p.ShutdownGrace, 10*time.Second),
		HealthInterval:    durationOrDefault(p.HealthInterval, 300*time.Second),
	}
	cfg.QueuePressureThreshold = int(0.9 * float64(cfg.QueueCapacity))
	return cfg, nil
}

func durationOrDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func intOrDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
