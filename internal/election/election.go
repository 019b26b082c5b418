// Package election implements Chang–Roberts leader election over the
// consensus ring, per spec.md §4.2.
package election

import (
	"log"

	"paxosring/internal/directory"
	"paxosring/internal/ids"
	"paxosring/internal/wire"
)

// Engine runs one Chang–Roberts round on behalf of a single consensus
// node. Its run-loop shape (enter -> in-flight -> decided) mirrors the
// teacher's raft.RaftNode state machine, generalized from
// Follower/Candidate/Leader to this ring protocol's own states.
type Engine struct {
	self ids.NodeID
	dir  *directory.Directory
	send func(to directory.Endpoint, msg wire.Message)
	log  *log.Logger

	forwardedMax ids.NodeID
	leader       ids.NodeID
	decided      chan struct{}
}

// New creates an election engine for self, which must be a consensus id.
func New(self ids.NodeID, dir *directory.Directory, send func(directory.Endpoint, wire.Message), logger *log.Logger) *Engine {
	return &Engine{self: self, dir: dir, send: send, log: logger, forwardedMax: -1, decided: make(chan struct{})}
}

// Enter sends this node's own identifier as a token to its ring successor,
// per spec.md §4.2's "On entry, each consensus node sends a token with its
// own identifier to its successor."
func (e *Engine) Enter() {
	e.forward(e.self)
}

// HandleElect processes an incoming ELECT token.
func (e *Engine) HandleElect(msg wire.Elect) {
	v := msg.Candidate
	switch {
	case v > e.self:
		e.forward(v)
	case v < e.self:
		if e.forwardedMax > e.self {
			return // already forwarded an id larger than our own; we can't win
		}
		e.forward(e.self)
	default: // v == e.self
		e.leader = e.self
		e.announce()
	}
}

// HandleElected processes the single "elected" announcement cycling the
// ring once. Every node except the leader itself forwards it on.
func (e *Engine) HandleElected(msg wire.Elected) {
	e.leader = msg.Leader
	select {
	case <-e.decided:
	default:
		close(e.decided)
	}
	if msg.Leader == e.self {
		return // announcement has completed its one cycle
	}
	e.sendToSuccessor(wire.Elected{Leader: msg.Leader})
}

func (e *Engine) announce() {
	select {
	case <-e.decided:
	default:
		close(e.decided)
	}
	e.sendToSuccessor(wire.Elected{Leader: e.leader})
}

func (e *Engine) forward(candidate ids.NodeID) {
	if candidate > e.forwardedMax {
		e.forwardedMax = candidate
	}
	e.sendToSuccessor(wire.Elect{Candidate: candidate})
}

func (e *Engine) sendToSuccessor(msg wire.Message) {
	succ := e.dir.Successor(e.self)
	ep, err := e.dir.Endpoint(succ)
	if err != nil {
		e.log.Printf("election: resolve successor %s: %v", succ, err)
		return
	}
	e.send(ep, msg)
}

// Done reports when this node has learned the elected leader.
func (e *Engine) Done() <-chan struct{} { return e.decided }

// Leader returns the leader this node has learned, valid only after Done()
// is closed.
func (e *Engine) Leader() ids.NodeID { return e.leader }

