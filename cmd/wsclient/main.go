// Command wsclient runs the durable WebSocket session client against a
// WS_* environment-configured endpoint, logging inbound frames (as JSON on
// stdout when WS_LOG is true; otherwise logging is a no-op) and exposing
// Prometheus metrics, until interrupted.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wsdurable/client/pkg/logging"
	"github.com/wsdurable/client/pkg/observability"
	"github.com/wsdurable/client/pkg/session"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, logEnabled, err := configFromEnv()
	if err != nil {
		return fmt.Errorf("resolving configuration: %w", err)
	}

	logger := logging.New(os.Stdout, logging.NewJSONFormatter())
	if !logEnabled {
		logger = logging.NewNop()
	}

	registry := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(observability.MetricsConfig{}, registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	tracer, err := observability.NewTracer(observability.TracingConfig{
		ServiceName: "wsclient",
		Disabled:    os.Getenv("WS_TRACING_ENDPOINT") == "",
		Endpoint:    os.Getenv("WS_TRACING_ENDPOINT"),
	}, logger)
	if err != nil {
		return fmt.Errorf("building tracer: %w", err)
	}
	defer tracer.Shutdown(context.Background())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: ":9090", Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("metrics server stopped unexpectedly")
		}
	}()
	defer metricsServer.Close()

	sess := session.New(cfg, stdoutCallbacks{logger: logger},
		session.WithLogger(logger),
		session.WithMetrics(metrics),
		session.WithTracer(tracer),
	)

	sess.Start()
	logger.Info("session started", logging.String("url", cfg.URL))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")
	sess.Stop()
	return nil
}

// stdoutCallbacks implements session.Callbacks by logging every inbound
// frame; a real embedder supplies its own handler.
type stdoutCallbacks struct {
	logger logging.Logger
}

func (c stdoutCallbacks) HandleMessage(payload []byte) {
	c.logger.Info("inbound frame", logging.String("payload", string(payload)))
}

func (c stdoutCallbacks) NotifyMaxRetriesReached() {
	c.logger.Error("retry limit exhausted, giving up")
}

func configFromEnv() (*session.Config, bool, error) {
	logEnabled, _ := strconv.ParseBool(envOr("WS_LOG", "false"))

	monitorID := envOr("WS_MONITOR_IDENTIFIER", "monitor")
	params := session.Params{
		URL:               os.Getenv("WS_URL"),
		ClientIdentifier:  os.Getenv("WS_IDENTIFIER"),
		HostIdentifier:    os.Getenv("WS_HOST_IDENTIFIER"),
		MonitorIdentifier: &monitorID,
		LastConnectedAt:   os.Getenv("WS_LAST_CONNECTED_AT"),
		LogEnabled:        logEnabled,
	}

	cfg, err := session.NewConfig(params)
	return cfg, logEnabled, err
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
