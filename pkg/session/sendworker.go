package session

import (
	"bytes"
	"time"

	"github.com/wsdurable/client/pkg/queue"
)

// parkedPollInterval is how often the Send Worker rechecks connection state
// while parked. Short enough that a reconnect is picked up promptly, long
// enough not to spin.
const parkedPollInterval = 100 * time.Millisecond

// sendWorkerLoop implements the Send Worker (component F): it drains the
// outbound queue, forwarding to the transport while Connected and parking
// otherwise. A message is only ever popped once the worker is actually
// ready to hand it to the transport, so the queue's FIFO order is also the
// delivery order — parking never rotates the backlog.
func (s *Session) sendWorkerLoop() {
	defer s.wg.Done()
	s.sendWorkerAlive.Store(true)
	defer s.sendWorkerAlive.Store(false)

	for {
		s.mu.Lock()
		phase := s.phase
		transport := s.transport
		s.mu.Unlock()

		if phase == PhaseStopping || phase == PhaseStopped {
			return
		}

		if phase != PhaseConnected || transport == nil {
			if !interruptibleSleep(parkedPollInterval, s.stopCh) {
				return
			}
			continue
		}

		msg, err := s.queue.Pop(time.Second)
		if err != nil {
			continue
		}

		if bytes.Equal(msg, queue.StopSignal) {
			return
		}

		if err := transport.Send(msg); err != nil {
			// Dropped, not re-enqueued: resending a malformed frame
			// forever would never succeed; the Supervisor's own
			// on_error/on_close callbacks drive reconnection.
			s.logger.WithError(err).Warn("send failed, dropping message")
		} else {
			s.metrics.IncFramesSent()
		}
	}
}
