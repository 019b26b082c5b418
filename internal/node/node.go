// Package node wires the dispatcher, election engine, role assigner, and
// Paxos state machines together into one running consensus process.
package node

import (
	"fmt"
	"log"
	"os"

	"paxosring/internal/assign"
	"paxosring/internal/config"
	"paxosring/internal/directory"
	"paxosring/internal/dispatch"
	"paxosring/internal/election"
	"paxosring/internal/ids"
	"paxosring/internal/paxos"
	"paxosring/internal/wire"
)

// Node is one consensus process: a proposer, acceptor, or learner,
// depending on the role the leader assigns it once the ring election
// completes.
type Node struct {
	self ids.NodeID
	dir  *directory.Directory
	cfg  config.Config
	log  *log.Logger

	transport wire.Transport
	disp      *dispatch.Dispatcher
	elect     *election.Engine

	role      ids.Role
	started   bool
	ranAssign bool
	proposer  *paxos.Proposer
	acceptor  *paxos.Acceptor
	learner   *paxos.Learner
	proposers []directory.Endpoint

	terminated chan struct{}
	stopped    chan struct{}
}

// New constructs a Node for consensus identifier self, listening on its own
// UDP endpoint as resolved from the directory.
func New(self ids.NodeID, dir *directory.Directory, cfg config.Config) (*Node, error) {
	ep, err := dir.Endpoint(self)
	if err != nil {
		return nil, err
	}
	transport, err := wire.Listen(ep)
	if err != nil {
		return nil, err
	}
	return NewWithTransport(self, dir, cfg, transport), nil
}

// NewWithTransport constructs a Node over a caller-supplied Transport,
// letting tests drive a cluster over an in-memory bus instead of real
// sockets.
func NewWithTransport(self ids.NodeID, dir *directory.Directory, cfg config.Config, transport wire.Transport) *Node {
	logger := log.New(os.Stderr, fmt.Sprintf("[%s] ", self), log.LstdFlags)

	n := &Node{
		self:       self,
		dir:        dir,
		cfg:        cfg,
		log:        logger,
		transport:  transport,
		terminated: make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	n.disp = dispatch.New(transport, n.route, logger)
	n.elect = election.New(self, dir, n.disp.Send, logger)
	return n
}

// Start launches the receiver/worker goroutines and enters the leader
// election once the receiver is confirmed listening.
func (n *Node) Start() {
	n.disp.Start()
	go func() {
		<-n.disp.Ready()
		n.elect.Enter()
	}()
	go func() {
		<-n.terminated
		n.disp.Stop()
		close(n.stopped)
	}()
}

// Wait blocks until TERMINATE has been processed and the node has shut
// down cleanly.
func (n *Node) Wait() { <-n.stopped }

// route is the worker's single dispatch point, run exclusively on the
// dispatcher's worker goroutine — the sole mutator of all state below.
func (n *Node) route(r wire.Received) {
	switch msg := r.Msg.(type) {
	case wire.Elect:
		n.elect.HandleElect(msg)
		n.maybeBecomeLeader()
	case wire.Elected:
		n.elect.HandleElected(msg)
		n.maybeBecomeLeader()
	case wire.Assign:
		n.handleAssign(msg)
	case wire.Start:
		n.handleStart(msg)
	case wire.Fwd:
		if n.started && n.role == ids.RoleProposer {
			n.proposer.HandleFwd(r.From, msg)
		} else {
			n.dropOutOfState(r)
		}
	case wire.Proposal:
		if n.started && n.role == ids.RoleAcceptor {
			n.acceptor.HandlePrepare(r.From, msg)
		} else {
			n.dropOutOfState(r)
		}
	case wire.Ack:
		if n.started && n.role == ids.RoleProposer {
			n.proposer.HandleAck(r.From, msg)
		} else {
			n.dropOutOfState(r)
		}
	case wire.Nack:
		if n.started && n.role == ids.RoleProposer {
			n.proposer.HandleNack(r.From, msg)
		} else {
			n.dropOutOfState(r)
		}
	case wire.Accept:
		// ACCEPT is reused for both the request and its confirm; the
		// receiving node's own role decides which handler applies.
		switch {
		case n.started && n.role == ids.RoleAcceptor:
			n.acceptor.HandleAccept(r.From, msg)
		case n.started && n.role == ids.RoleProposer:
			n.proposer.HandleAcceptConfirm(r.From, msg)
		default:
			n.dropOutOfState(r)
		}
	case wire.Learn:
		if n.started && n.role == ids.RoleLearner {
			n.learner.HandleLearn(r.From, msg)
		} else {
			n.dropOutOfState(r)
		}
	case wire.Terminate:
		// Every client broadcasts TERMINATE, so repeats are expected.
		select {
		case <-n.terminated:
		default:
			n.log.Printf("TERMINATE received, shutting down")
			close(n.terminated)
		}
	default:
		n.log.Printf("unrecognized message %T from %s", msg, r.From)
	}
}

func (n *Node) maybeBecomeLeader() {
	select {
	case <-n.elect.Done():
	default:
		return
	}
	if n.elect.Leader() != n.self || n.ranAssign {
		return
	}
	n.ranAssign = true
	if err := assign.Run(n.dir, n.disp.Send, n.log); err != nil {
		n.log.Printf("leader: role assignment failed: %v", err)
	}
}

func (n *Node) handleAssign(msg wire.Assign) {
	n.role = msg.Role
	n.proposers = msg.Proposers
	switch n.role {
	case ids.RoleProposer:
		p, err := paxos.NewProposer(n.self, n.dir, n.cfg, n.disp.Send, n.log)
		if err != nil {
			n.log.Printf("build proposer: %v", err)
			return
		}
		n.proposer = p
	case ids.RoleAcceptor:
		n.acceptor = paxos.NewAcceptor(n.self, n.dir, n.cfg, n.disp.Send, n.log)
	case ids.RoleLearner:
		n.learner = paxos.NewLearner(n.self, n.dir, n.cfg, n.disp.Send, n.log)
	}
	n.log.Printf("assigned role %s", n.role)
}

func (n *Node) handleStart(msg wire.Start) {
	n.started = true
	n.log.Printf("START received, cluster is live")
	assign.ForwardProposerList(n.dir, n.disp.Send, msg.Proposers)
}

func (n *Node) dropOutOfState(r wire.Received) {
	n.log.Printf("out-of-state message %s from %s dropped (started=%v role=%s)", r.Msg.Header(), r.From, n.started, n.role)
}
