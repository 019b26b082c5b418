// Package paxos implements the Proposer, Acceptor, and Learner state
// machines of spec.md §4.4–§4.6, grounded on the teacher's paxos.Paxos
// (promisedNumber/acceptedNumber/acceptedValue, hasQuorum) and
// consensus.QuorumConsensus/SimpleConsensus vote-counting shape.
package paxos

import (
	"log"

	"paxosring/internal/config"
	"paxosring/internal/directory"
	"paxosring/internal/ids"
	"paxosring/internal/wire"
)

// Acceptor is the per-node state spec.md §3's AcceptorState and §4.5
// describe: (minProposal, acceptedNumber, acceptedValue), all initially
// "none", mutated only by the handlers below.
type Acceptor struct {
	self ids.NodeID
	dir  *directory.Directory
	cfg  config.Config
	log  *log.Logger
	send func(directory.Endpoint, wire.Message)

	minProposal    ids.ProposalNumber
	acceptedNumber ids.ProposalNumber
	acceptedValue  string
	hasAccepted    bool
}

// NewAcceptor creates an Acceptor with no promise or accept recorded yet.
func NewAcceptor(self ids.NodeID, dir *directory.Directory, cfg config.Config, send func(directory.Endpoint, wire.Message), logger *log.Logger) *Acceptor {
	return &Acceptor{
		self:        self,
		dir:         dir,
		cfg:         cfg,
		log:         logger,
		send:        send,
		minProposal: ids.None,
	}
}

// HandlePrepare implements spec.md §4.5's Phase 1b rule: promise iff this
// is the first proposal number seen, or it is strictly greater than the
// current promise.
func (a *Acceptor) HandlePrepare(from directory.Endpoint, msg wire.Proposal) {
	if msg.N.Greater(a.minProposal) {
		a.minProposal = msg.N
		a.trace("promise %d from proposer %s", msg.N, msg.ProposerID)
		a.send(from, wire.Ack{
			N:              msg.N,
			RoundID:        msg.RoundID,
			AcceptorID:     a.self,
			HasAccepted:    a.hasAccepted,
			AcceptedNumber: a.acceptedNumber,
			AcceptedValue:  a.acceptedValue,
		})
		return
	}
	a.send(from, wire.Nack{N: msg.N, RoundID: msg.RoundID, FromID: a.self, MinProposal: a.minProposal})
}

// HandleAccept implements spec.md §4.5's Phase 2b rule: accept iff n is
// greater than OR EQUAL to the current promise — the one place equality is
// honored, since an acceptor may still accept the exact number it just
// promised.
func (a *Acceptor) HandleAccept(from directory.Endpoint, msg wire.Accept) {
	if msg.N.GreaterOrEqual(a.minProposal) {
		a.minProposal = msg.N
		a.acceptedNumber = msg.N
		a.acceptedValue = msg.Value
		a.hasAccepted = true
		a.trace("accept %d=%q", msg.N, msg.Value)

		learners, err := a.dir.Endpoints(a.dir.LearnerIDs())
		if err != nil {
			a.log.Printf("acceptor %s: resolve learners: %v", a.self, err)
		} else {
			for _, l := range learners {
				a.send(l, wire.Learn{N: msg.N, RoundID: msg.RoundID, Value: msg.Value, AcceptorID: a.self})
			}
		}
		a.send(from, wire.Accept{N: msg.N, RoundID: msg.RoundID, From: a.self, Value: msg.Value})
		return
	}
	a.send(from, wire.Nack{N: msg.N, RoundID: msg.RoundID, FromID: a.self, MinProposal: a.minProposal})
}

func (a *Acceptor) trace(format string, args ...any) {
	if a.cfg.Debug {
		a.log.Printf("acceptor %s: "+format, append([]any{a.self}, args...)...)
	}
}
