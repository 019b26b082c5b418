// Package dispatch is the per-node receiver/worker pair spec.md §4.1 and §5
// describe: a receiver goroutine that only enqueues, and a single worker
// goroutine that is the sole mutator of node state.
package dispatch

import (
	"log"
	"sync"

	"paxosring/internal/directory"
	"paxosring/internal/wire"
)

// Handler processes one received message. It runs exclusively on the
// worker goroutine, so it may freely mutate node state without locking.
type Handler func(wire.Received)

// Dispatcher owns a node's receiver goroutine, its in-memory queue, and its
// single worker goroutine. It replaces the teacher's bounded sleeps before
// first use of a socket with an explicit Ready() signal, per spec.md §9's
// "replace every implicit startup delay with an explicit readiness
// handshake".
type Dispatcher struct {
	transport wire.Transport
	handle    Handler
	logger    *log.Logger

	queue chan wire.Received
	ready chan struct{}
	stop  chan struct{}
	wg    sync.WaitGroup
}

// New creates a Dispatcher bound to an already-listening transport. The
// queue is sized generously rather than literally unbounded, since Go has
// no unbounded channel primitive; in practice this workload never
// approaches the bound.
func New(transport wire.Transport, handle Handler, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		handle:    handle,
		logger:    logger,
		queue:     make(chan wire.Received, 4096),
		ready:     make(chan struct{}),
		stop:      make(chan struct{}),
	}
}

// Start launches the receiver and worker goroutines. It returns
// immediately; callers that need to know the receiver is live should wait
// on Ready().
func (d *Dispatcher) Start() {
	d.wg.Add(2)
	go d.receive()
	go d.work()
}

// Ready is closed once the receiver goroutine has started running. Callers
// block on it before sending the first outbound message that depends on
// this node being reachable (e.g. the first ELECT token).
func (d *Dispatcher) Ready() <-chan struct{} { return d.ready }

func (d *Dispatcher) receive() {
	defer d.wg.Done()
	close(d.ready)
	for {
		r, err := d.transport.Recv()
		if err != nil {
			return // transport closed; Stop is tearing the node down
		}
		select {
		case d.queue <- r:
		case <-d.stop:
			return
		}
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for {
		select {
		case r := <-d.queue:
			d.handle(r)
		case <-d.stop:
			return
		}
	}
}

// Stop closes the transport (unblocking the receiver's Recv) and waits for
// both goroutines to exit. Matches the teacher's Start/Stop shutdown pair.
func (d *Dispatcher) Stop() {
	close(d.stop)
	d.transport.Close()
	d.wg.Wait()
}

// Send routes one outgoing message through the node's transport, logging
// (rather than propagating) failures — consistent with spec.md §7's policy
// that transport loss is recovered by quorum redundancy or back-off, not by
// caller-visible errors.
func (d *Dispatcher) Send(to directory.Endpoint, msg wire.Message) {
	if err := d.transport.Send(to, msg); err != nil {
		d.logger.Printf("send %s to %s: %v", msg.Header(), to, err)
	}
}
