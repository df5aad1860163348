package session

import (
	"context"
	"net/http"
	"sync"

	"github.com/wsdurable/client/pkg/wstransport"
)

// fakeTransport is an in-memory stand-in for the gorilla/websocket-backed
// Transport, injected via WithTransportFactory so the Supervisor's tests
// never touch a real socket.
type fakeTransport struct {
	handlers   wstransport.Handlers
	connectErr error
	// openGate, if set, delays the on_open callback until the gate is
	// closed (or ctx is canceled), letting a test control exactly when a
	// connection attempt succeeds.
	openGate <-chan struct{}

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (f *fakeTransport) Connect(ctx context.Context, url string, header http.Header) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	if f.openGate != nil {
		select {
		case <-f.openGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.handlers.OnOpen != nil {
		f.handlers.OnOpen()
	}
	return nil
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), data...)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

// newFakeFactory returns a TransportFactory that always fails to connect
// with connectErr, or always succeeds if connectErr is nil. Each constructed
// instance is pushed onto instances so a test can reach into it afterward.
func newFakeFactory(connectErr error, instances chan *fakeTransport) TransportFactory {
	return func(h wstransport.Handlers) wstransport.Transport {
		ft := &fakeTransport{handlers: h, connectErr: connectErr}
		select {
		case instances <- ft:
		default:
		}
		return ft
	}
}

// newGatedFakeFactory is like newFakeFactory but the instance only calls
// on_open once openGate is closed, so a test can hold a connection attempt
// open (unsuccessful) for an arbitrary duration before letting it succeed.
func newGatedFakeFactory(openGate <-chan struct{}, instances chan *fakeTransport) TransportFactory {
	return func(h wstransport.Handlers) wstransport.Transport {
		ft := &fakeTransport{handlers: h, openGate: openGate}
		select {
		case instances <- ft:
		default:
		}
		return ft
	}
}

// blockingTransport never completes Connect on its own; it only returns
// once the context it was given is canceled, simulating a dial against an
// unreachable host that would otherwise run out its full ConnectionTimeout.
type blockingTransport struct{}

func (blockingTransport) Connect(ctx context.Context, url string, header http.Header) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingTransport) Send(data []byte) error { return nil }
func (blockingTransport) Close() error           { return nil }

func newBlockingFactory() TransportFactory {
	return func(h wstransport.Handlers) wstransport.Transport {
		return blockingTransport{}
	}
}

// recordingCallbacks captures inbound frames and max-retries notifications
// for assertions.
type recordingCallbacks struct {
	mu                 sync.Mutex
	messages           [][]byte
	maxRetriesNotified int
}

func (c *recordingCallbacks) HandleMessage(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, append([]byte(nil), payload...))
}

func (c *recordingCallbacks) NotifyMaxRetriesReached() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxRetriesNotified++
}

func (c *recordingCallbacks) messageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *recordingCallbacks) maxRetriesCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxRetriesNotified
}
