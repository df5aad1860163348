// Package session implements the connection supervisor and message-pump
// core of the durable WebSocket client: the state machine that opens and
// re-opens the transport with bounded exponential backoff, the outbound
// queue, the ping/pong keepalive, the periodic health checker, and
// cooperative shutdown.
package session

import (
	"bytes"
	"context"
	"net/http"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wsdurable/client/pkg/logging"
	"github.com/wsdurable/client/pkg/queue"
	"github.com/wsdurable/client/pkg/wserrors"
	"github.com/wsdurable/client/pkg/wstransport"
)

// Phase is one of the Supervisor's six lifecycle states.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseReconnecting
	PhaseStopping
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseReconnecting:
		return "reconnecting"
	case PhaseStopping:
		return "stopping"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot exposed to the application.
type Status struct {
	Connected         bool `json:"connected"`
	Started           bool `json:"started"`
	Stopping          bool `json:"stopping"`
	RetryCount        int  `json:"retry_count"`
	MaxRetriesReached bool `json:"max_retries_reached"`
	QueueSize         int  `json:"queue_size"`
	EventWorkerAlive  bool `json:"event_worker_alive"`
	SendWorkerAlive   bool `json:"send_worker_alive"`
}

// TransportFactory constructs a fresh, single-use Transport for one
// connection attempt. Tests inject a fake; production wires
// wstransport.New.
type TransportFactory func(handlers wstransport.Handlers) wstransport.Transport

// Option configures optional collaborators on a Session.
type Option func(*Session)

// WithLogger attaches a structured logger; defaults to a no-op logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches a MetricsSink; defaults to a no-op sink.
func WithMetrics(sink MetricsSink) Option {
	return func(s *Session) {
		if sink != nil {
			s.metrics = sink
		}
	}
}

// WithTracer attaches a Tracer; defaults to a no-op tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Session) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithTransportFactory overrides how connection attempts build a Transport.
// Tests use this to inject a fake transport with no real network I/O.
func WithTransportFactory(factory TransportFactory) Option {
	return func(s *Session) {
		if factory != nil {
			s.transportFactory = factory
		}
	}
}

// WithDispatchPoolSize overrides the fixed size of the receive dispatch pool.
func WithDispatchPoolSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.dispatchPoolSize = n
		}
	}
}

// Session is the connection supervisor and message pump. Construct with New
// and drive it with Start/Stop/SendMessage.
type Session struct {
	cfg       *Config
	callbacks Callbacks
	logger    logging.Logger
	metrics   MetricsSink
	tracer    Tracer

	queue            *queue.Queue
	transportFactory TransportFactory
	dispatchPoolSize int

	mu                sync.Mutex
	phase             Phase
	retryCount        int
	maxRetriesReached bool
	lastMessageAt     time.Time
	transport         wstransport.Transport

	stopCh chan struct{}
	wg     sync.WaitGroup

	eventWorkerAlive atomic.Bool
	sendWorkerAlive  atomic.Bool
	healthWorkerAlive atomic.Bool

	dispatchJobs chan func()
}

// New constructs a Session. The Session does not start any workers until
// Start is called.
func New(cfg *Config, callbacks Callbacks, opts ...Option) *Session {
	s := &Session{
		cfg:              cfg,
		callbacks:        callbacks,
		logger:           logging.NewNop(),
		metrics:          noopMetrics{},
		tracer:           noopTracer{},
		queue:            queue.New(cfg.QueueCapacity, cfg.OverflowPolicy),
		dispatchPoolSize: defaultDispatchPoolSize(),
		stopCh:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.transportFactory == nil {
		s.transportFactory = func(h wstransport.Handlers) wstransport.Transport {
			return wstransport.New(h, wstransport.WithLogger(s.logger))
		}
	}
	return s
}

// Start is idempotent: calling it while already started has no effect. It
// launches the three long-lived workers (Event Loop, Send Worker, Health
// Checker) plus the fixed-size receive dispatch pool.
func (s *Session) Start() {
	s.mu.Lock()
	if s.phase != PhaseIdle {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseConnecting
	s.mu.Unlock()

	s.dispatchJobs = make(chan func(), s.cfg.QueueCapacity)

	for i := 0; i < s.dispatchPoolSize; i++ {
		s.wg.Add(1)
		go s.dispatchWorker()
	}

	s.wg.Add(1)
	go s.connectLoop()

	s.wg.Add(1)
	go s.sendWorkerLoop()

	s.wg.Add(1)
	go s.healthCheckerLoop()
}

// Running reports whether the session has been started and is neither
// Stopping nor Stopped.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase != PhaseIdle && s.phase != PhaseStopping && s.phase != PhaseStopped
}

// Status returns a snapshot of the Session's externally visible state.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		Connected:         s.phase == PhaseConnected,
		Started:           s.phase != PhaseIdle,
		Stopping:          s.phase == PhaseStopping,
		RetryCount:        s.retryCount,
		MaxRetriesReached: s.maxRetriesReached,
	}
	s.mu.Unlock()
	st.QueueSize = s.queue.Size()
	st.EventWorkerAlive = s.eventWorkerAlive.Load()
	st.SendWorkerAlive = s.sendWorkerAlive.Load()
	return st
}

// SendMessage enqueues an outbound message. It never blocks and never
// surfaces a full-queue condition to the caller; the overflow policy applies
// silently (a warning is logged).
func (s *Session) SendMessage(payload []byte) {
	if accepted := s.queue.Push(payload); !accepted {
		s.logger.WithError(wserrors.QueueFullErr(overflowPolicyName(s.cfg.OverflowPolicy))).
			Warn("outbound queue full, message dropped")
	}
}

// Stop initiates cooperative shutdown and blocks until all workers have
// joined or the combined grace period has elapsed. Idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.phase == PhaseStopping || s.phase == PhaseStopped {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseStopping
	s.mu.Unlock()

	s.queue.Push(queue.StopSignal)
	close(s.stopCh)

	s.mu.Lock()
	transport := s.transport
	s.mu.Unlock()
	if transport != nil {
		_ = transport.Close()
	}

	joined := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(joined)
	}()

	select {
	case <-joined:
	case <-time.After(3 * s.cfg.ShutdownGrace):
		s.logger.Warn("shutdown grace exceeded, workers left running")
	}

	discarded := s.queue.Drain()
	s.logger.Info("shutdown drained queue", logging.Int("discarded", discarded))

	s.mu.Lock()
	s.transport = nil
	s.phase = PhaseStopped
	s.mu.Unlock()
}

// connectLoop is the Event Loop worker: it drives one connection attempt at
// a time, handling backoff between failures.
func (s *Session) connectLoop() {
	defer s.wg.Done()
	s.eventWorkerAlive.Store(true)
	defer s.eventWorkerAlive.Store(false)

	for {
		s.mu.Lock()
		phase := s.phase
		s.mu.Unlock()
		if phase == PhaseStopping || phase == PhaseStopped {
			return
		}

		if s.attemptConnect() {
			// attemptConnect returned because Stop was requested.
			return
		}

		if s.backoffAndMaybeStop() {
			return
		}
	}
}

// attemptConnect performs a single connect-and-wait-for-disconnect cycle. It
// returns true if the loop should exit because Stop was requested.
func (s *Session) attemptConnect() (stopped bool) {
	s.mu.Lock()
	if s.phase == PhaseStopping || s.phase == PhaseStopped {
		s.mu.Unlock()
		return true
	}
	s.phase = PhaseConnecting
	s.mu.Unlock()

	attemptID := uuid.NewString()
	ctx, endSpan := s.tracer.StartAttempt(context.Background(), attemptID)
	ctx = logging.ContextWithAttemptID(ctx, attemptID)
	logger := s.logger.WithContext(ctx)

	closeCh := make(chan struct{}, 1)
	var once sync.Once
	signalClose := func() { once.Do(func() { closeCh <- struct{}{} }) }

	handlers := wstransport.Handlers{
		OnOpen: func() { s.onOpen() },
		OnMessage: func(data []byte) {
			s.metrics.IncFramesReceived()
			s.onMessage(data)
		},
		OnClose: func(code int, reason string) {
			logger.Info("transport closed", logging.Int("code", code), logging.String("reason", reason))
			s.onDisconnect()
			signalClose()
		},
		OnError: func(err error) {
			logger.WithError(err).Warn("transport error")
			s.onDisconnect()
			signalClose()
		},
	}

	transport := s.transportFactory(handlers)

	stopCtx, stopCancel := contextFromStopCh(ctx, s.stopCh)
	defer stopCancel()

	dialCtx, cancel := context.WithTimeout(stopCtx, s.cfg.ConnectionTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("identifier", s.cfg.ClientIdentifier)
	header.Set("last-connected-at", s.cfg.LastConnectedAt)

	if err := transport.Connect(dialCtx, s.cfg.URL, header); err != nil {
		outcome := "failed"
		select {
		case <-s.stopCh:
			outcome = "stopped"
			logger.Info("connection attempt aborted by stop")
		default:
			if dialCtx.Err() != nil {
				logger.WithError(wserrors.ConnectionTimeoutErr(s.cfg.ConnectionTimeout)).Warn("connection attempt timed out")
			} else {
				logger.WithError(err).Warn("connect failed")
			}
		}
		endSpan(outcome, s.currentRetryCount())
		stopped = s.onDisconnect()
		return stopped
	}

	s.mu.Lock()
	s.transport = transport
	s.mu.Unlock()
	endSpan("connected", s.currentRetryCount())

	select {
	case <-closeCh:
		return false
	case <-s.stopCh:
		_ = transport.Close()
		return true
	}
}

// contextFromStopCh derives a child of parent that is also canceled as soon
// as stopCh closes, so a blocking dial unblocks promptly when Stop is
// called instead of running out its full connection timeout.
func contextFromStopCh(parent context.Context, stopCh <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (s *Session) currentRetryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCount
}

// onOpen handles the Transport Adapter's on_open callback.
func (s *Session) onOpen() {
	s.mu.Lock()
	if s.phase == PhaseStopping || s.phase == PhaseStopped {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseConnected
	s.retryCount = 0
	s.maxRetriesReached = false
	s.mu.Unlock()

	s.metrics.SetConnectionState(PhaseConnected)
	s.metrics.SetRetryCount(0)
	s.logger.Info("connected", logging.String("url", s.cfg.URL))
}

// onDisconnect is the shared tie-break point for on_close, on_error, and a
// failed dial: the first caller to observe a non-terminal phase transitions
// to Reconnecting; a racing second caller just observes the new phase.
func (s *Session) onDisconnect() (stopped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseStopping || s.phase == PhaseStopped {
		return true
	}
	if s.phase == PhaseReconnecting {
		return false
	}
	s.phase = PhaseReconnecting
	s.transport = nil
	s.metrics.SetConnectionState(PhaseReconnecting)
	return false
}

// backoffAndMaybeStop waits out the backoff delay for the current
// retryCount, or transitions to Stopped if the retry limit has already been
// reached. It returns true if the connect loop should exit.
func (s *Session) backoffAndMaybeStop() (stopped bool) {
	s.mu.Lock()
	if s.phase == PhaseStopping || s.phase == PhaseStopped {
		s.mu.Unlock()
		return true
	}
	if s.retryCount >= s.cfg.RetryLimit {
		s.maxRetriesReached = true
		s.phase = PhaseStopped
		s.mu.Unlock()

		s.logger.WithError(wserrors.MaxRetriesExceededErr(s.cfg.RetryLimit)).Error("max retries exceeded")
		notifyMaxRetries(s.callbacks)
		return true
	}
	delay := computeBackoff(s.cfg.RetryInitialDelay, s.cfg.RetryMaxDelay, s.retryCount)
	s.retryCount++
	retryCount := s.retryCount
	s.mu.Unlock()

	s.metrics.SetRetryCount(retryCount)
	s.logger.Info("reconnecting after backoff", logging.Duration("delay", delay), logging.Int("retry_count", retryCount))

	if !interruptibleSleep(delay, s.stopCh) {
		return true
	}
	return false
}

// onMessage implements the Receive Dispatcher (component G).
func (s *Session) onMessage(payload []byte) {
	s.mu.Lock()
	s.lastMessageAt = time.Now()
	s.mu.Unlock()

	if bytes.Contains(payload, []byte(pingMatchSubstring)) {
		s.respondToPing()
	}

	job := func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in message handler",
					logging.Any("recovered", r), logging.String("stack", string(debug.Stack())))
			}
		}()
		s.callbacks.HandleMessage(payload)
	}

	select {
	case s.dispatchJobs <- job:
	default:
		s.logger.Warn("dispatch pool saturated, running handler on a detached goroutine")
		go job()
	}
}

func (s *Session) respondToPing() {
	pong, err := buildPongFrame(s.cfg.HostIdentifier)
	if err != nil {
		s.logger.WithError(err).Error("failed to build pong frame")
		return
	}
	s.SendMessage(pong)

	if s.cfg.MonitorIdentifier == "" {
		return
	}
	monitor, err := buildMonitorFrame(s.cfg.MonitorIdentifier, s.cfg.ClientIdentifier, s.Status())
	if err != nil {
		s.logger.WithError(err).Error("failed to build monitor frame")
		return
	}
	s.SendMessage(monitor)
}

func (s *Session) dispatchWorker() {
	defer s.wg.Done()
	for {
		select {
		case job := <-s.dispatchJobs:
			job()
		case <-s.stopCh:
			return
		}
	}
}

// defaultDispatchPoolSize scales with GOMAXPROCS but never drops below 2, so
// the Health Checker's queue-pressure semantics stay meaningful under
// callback storms on single-core environments too.
func defaultDispatchPoolSize() int {
	if n := runtime.GOMAXPROCS(0); n > 2 {
		return n
	}
	return 2
}

func overflowPolicyName(p queue.OverflowPolicy) string {
	if p == queue.OverflowDropNewest {
		return "drop_newest"
	}
	return "drop_oldest"
}
