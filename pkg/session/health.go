package session

import (
	"time"

	"github.com/wsdurable/client/pkg/logging"
)

// healthCheckerLoop implements the Health Checker (component H): a purely
// observational audit that never forces reconnection, keeping reconnect
// policy single-sourced in the Supervisor.
func (s *Session) healthCheckerLoop() {
	defer s.wg.Done()
	s.healthWorkerAlive.Store(true)
	defer s.healthWorkerAlive.Store(false)

	ticker := time.NewTicker(s.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.checkHealth()
		}
	}
}

func (s *Session) checkHealth() {
	s.mu.Lock()
	phase := s.phase
	lastMessageAt := s.lastMessageAt
	s.mu.Unlock()

	queueSize := s.queue.Size()
	s.metrics.SetQueueSize(queueSize)

	connected := phase == PhaseConnected
	if connected && queueSize > s.cfg.QueuePressureThreshold {
		s.metrics.IncQueuePressureAlerts()
		s.logger.Error("queue pressure alert",
			logging.Int("queue_size", queueSize), logging.Int("threshold", s.cfg.QueuePressureThreshold))
	}

	if connected && !lastMessageAt.IsZero() && time.Since(lastMessageAt) > s.cfg.HealthInterval {
		s.metrics.IncStalenessAlerts()
		s.logger.Warn("staleness alert",
			logging.Duration("since_last_message", time.Since(lastMessageAt)))
	}

	s.logger.Info("health snapshot",
		logging.String("phase", phase.String()),
		logging.Int("queue_size", queueSize),
		logging.Bool("last_message_at_set", !lastMessageAt.IsZero()))
}
