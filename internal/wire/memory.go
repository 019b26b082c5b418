package wire

import (
	"errors"
	"sync"

	"paxosring/internal/directory"
)

// ErrClosed is returned by a MemoryTransport's Recv after Close.
var ErrClosed = errors.New("wire: transport closed")

// MemoryBus is a shared in-process switchboard for MemoryTransport
// endpoints. It satisfies the same Send/Recv contract the UDP transport
// does, so a Node built against the Transport interface runs unmodified
// against either — the bus exists only so full-cluster scenario tests can
// run in one process without real sockets. The bus itself starts no
// goroutines; the nodes' dispatchers still run their own.
type MemoryBus struct {
	mu      sync.Mutex
	inboxes map[directory.Endpoint]chan Received
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{inboxes: make(map[directory.Endpoint]chan Received)}
}

// Register creates a MemoryTransport bound to local on this bus.
func (b *MemoryBus) Register(local directory.Endpoint) *MemoryTransport {
	b.mu.Lock()
	defer b.mu.Unlock()
	inbox := make(chan Received, 256)
	b.inboxes[local] = inbox
	return &MemoryTransport{bus: b, local: local, inbox: inbox, closed: make(chan struct{})}
}

func (b *MemoryBus) deliver(to directory.Endpoint, r Received) bool {
	b.mu.Lock()
	inbox, ok := b.inboxes[to]
	b.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case inbox <- r:
		return true
	default:
		// Full inbox: treat as transport loss, same as a dropped datagram.
		return false
	}
}

// MemoryTransport is one endpoint's view of a MemoryBus.
type MemoryTransport struct {
	bus   *MemoryBus
	local directory.Endpoint
	inbox chan Received

	closeOnce sync.Once
	closed    chan struct{}
}

func (t *MemoryTransport) LocalAddr() directory.Endpoint { return t.local }

func (t *MemoryTransport) Send(to directory.Endpoint, msg Message) error {
	t.bus.deliver(to, Received{From: t.local, Msg: msg})
	return nil
}

func (t *MemoryTransport) Recv() (Received, error) {
	select {
	case r := <-t.inbox:
		return r, nil
	case <-t.closed:
		return Received{}, ErrClosed
	}
}

func (t *MemoryTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}
