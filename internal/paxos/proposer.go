package paxos

import (
	"log"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"paxosring/internal/config"
	"paxosring/internal/directory"
	"paxosring/internal/ids"
	"paxosring/internal/wire"
)

// ackInfo is what a proposer remembers about one acceptor's Phase 1b reply.
type ackInfo struct {
	hasAccepted    bool
	acceptedNumber ids.ProposalNumber
	acceptedValue  string
}

// round is the per-outstanding-proposal state spec.md §3's ProposerState
// describes. A proposer holds at most one round at a time (single-decree).
type round struct {
	n           ids.ProposalNumber
	roundID     uuid.UUID
	clientID    ids.NodeID
	clientAddr  directory.Endpoint
	value       string
	acks        map[ids.NodeID]ackInfo
	accepted    map[ids.NodeID]struct{}
	phase2Value string
	entered     bool
}

// Proposer is the per-node Phase 1/Phase 2 state machine.
type Proposer struct {
	self      ids.NodeID
	dir       *directory.Directory
	cfg       config.Config
	log       *log.Logger
	send      func(directory.Endpoint, wire.Message)
	acceptors []directory.Endpoint

	lastN ids.ProposalNumber
	cur   *round
}

// NewProposer creates a Proposer. Its first proposal number equals its own
// identifier; subsequent numbers advance by the cluster's consensus count,
// per spec.md §3, keeping every proposer's sequence in a disjoint residue
// class modulo (P+A+L).
func NewProposer(self ids.NodeID, dir *directory.Directory, cfg config.Config, send func(directory.Endpoint, wire.Message), logger *log.Logger) (*Proposer, error) {
	acceptors, err := dir.Endpoints(dir.AcceptorIDs())
	if err != nil {
		return nil, err
	}
	return &Proposer{
		self:      self,
		dir:       dir,
		cfg:       cfg,
		log:       logger,
		send:      send,
		acceptors: acceptors,
		lastN:     ids.ProposalNumber(self) - ids.ProposalNumber(dir.ConsensusCount()),
	}, nil
}

// HandleFwd is the Phase 1a trigger: a client's forwarded request. Starts a
// new round, dropping any unfinished prior round from this proposer (the
// system is single-decree; only one proposal is ever in flight locally).
func (p *Proposer) HandleFwd(from directory.Endpoint, msg wire.Fwd) {
	p.startRound(msg.ClientID, msg.ClientAddr, msg.Value)
}

func (p *Proposer) startRound(clientID ids.NodeID, clientAddr directory.Endpoint, value string) {
	p.lastN += ids.ProposalNumber(p.dir.ConsensusCount())
	p.cur = &round{
		n:          p.lastN,
		roundID:    uuid.New(),
		clientID:   clientID,
		clientAddr: clientAddr,
		value:      value,
		acks:       make(map[ids.NodeID]ackInfo),
		accepted:   make(map[ids.NodeID]struct{}),
	}
	p.log.Printf("proposer %s: round %d starting for client %s", p.self, p.cur.n, clientID)
	for _, ep := range p.acceptors {
		p.send(ep, wire.Proposal{N: p.cur.n, RoundID: p.cur.roundID, ProposerID: p.self})
	}
}

// HandleAck implements Phase 1b handling, per spec.md §4.4.
func (p *Proposer) HandleAck(from directory.Endpoint, msg wire.Ack) {
	if p.cur == nil || msg.N != p.cur.n || msg.RoundID != p.cur.roundID {
		p.trace("drop stale ACK n=%d round=%s", msg.N, msg.RoundID)
		return
	}
	if _, ok := p.cur.acks[msg.AcceptorID]; ok {
		return // idempotent: already counted this acceptor
	}
	p.cur.acks[msg.AcceptorID] = ackInfo{
		hasAccepted:    msg.HasAccepted,
		acceptedNumber: msg.AcceptedNumber,
		acceptedValue:  msg.AcceptedValue,
	}

	quorum := ids.Majority(len(p.acceptors))
	if len(p.cur.acks) < quorum {
		return
	}
	if p.cur.entered {
		return // already moved to Phase 2a for this round
	}
	p.enterPhase2()
}

// enterPhase2 picks the candidate value per spec.md §3's invariant: the
// client's original value unless some ACK carried a prior accepted value,
// in which case the one with the highest accepted number wins.
func (p *Proposer) enterPhase2() {
	best := ids.None
	value := p.cur.value
	for _, info := range p.cur.acks {
		if info.hasAccepted && info.acceptedNumber.Greater(best) {
			best = info.acceptedNumber
			value = info.acceptedValue
		}
	}
	p.cur.phase2Value = value
	p.cur.entered = true
	p.log.Printf("proposer %s: round %d entering phase 2 with value %q", p.self, p.cur.n, value)
	for _, ep := range p.acceptors {
		p.send(ep, wire.Accept{N: p.cur.n, RoundID: p.cur.roundID, From: p.self, Value: value})
	}
}

// HandleAcceptConfirm implements Phase 2b handling, per spec.md §4.4.
func (p *Proposer) HandleAcceptConfirm(from directory.Endpoint, msg wire.Accept) {
	if p.cur == nil || msg.N != p.cur.n || msg.RoundID != p.cur.roundID {
		p.trace("drop stale ACCEPT-confirm n=%d round=%s", msg.N, msg.RoundID)
		return
	}
	p.cur.accepted[msg.From] = struct{}{}
	if len(p.cur.accepted) < ids.Majority(len(p.acceptors)) {
		return
	}
	p.log.Printf("proposer %s: round %d reached accept majority, discharging", p.self, p.cur.n)
	p.cur = nil
}

// HandleNack implements spec.md §4.4's NACK handling: abandon the round,
// and if back-off is enabled, retry Phase 1a with an advanced number after
// a random bounded wait.
func (p *Proposer) HandleNack(from directory.Endpoint, msg wire.Nack) {
	if p.cur == nil || msg.N != p.cur.n || msg.RoundID != p.cur.roundID {
		return
	}
	p.log.Printf("proposer %s: round %d NACKed (peer promised %d)", p.self, p.cur.n, msg.MinProposal)
	lost := *p.cur
	p.cur = nil
	if !p.cfg.Backoff {
		return
	}
	// Re-enter Phase 1a by looping a fresh FWD back through this node's own
	// transport after a jittered wait, rather than mutating state directly
	// from this goroutine — the retry is picked up by the worker goroutine
	// like any other message, preserving the single-writer discipline.
	self, err := p.dir.Endpoint(p.self)
	if err != nil {
		p.log.Printf("proposer %s: resolve own endpoint: %v", p.self, err)
		return
	}
	go func() {
		wait := time.Duration(50+rand.IntN(150)) * time.Millisecond
		time.Sleep(wait)
		p.send(self, wire.Fwd{ClientID: lost.clientID, ClientAddr: lost.clientAddr, Value: lost.value})
	}()
}

func (p *Proposer) trace(format string, args ...any) {
	if p.cfg.Debug {
		p.log.Printf("proposer %s: "+format, append([]any{p.self}, args...)...)
	}
}
