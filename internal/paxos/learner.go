package paxos

import (
	"log"

	"paxosring/internal/config"
	"paxosring/internal/directory"
	"paxosring/internal/ids"
	"paxosring/internal/wire"
)

// decree is the key a Learner tallies distinct acceptors under: one
// (proposalNumber, value) pair, per spec.md §3's LearnerState.
type decree struct {
	n     ids.ProposalNumber
	value string
}

// Learner tracks, per (n, value), the set of distinct acceptors that
// reported LEARN, and delivers the value to every client the first time
// that set reaches strict majority.
type Learner struct {
	self ids.NodeID
	dir  *directory.Directory
	cfg  config.Config
	log  *log.Logger
	send func(directory.Endpoint, wire.Message)

	acceptorCount int
	votes         map[decree]map[ids.NodeID]struct{}
	chosen        bool
}

// NewLearner creates a Learner for a cluster with the given acceptor count.
func NewLearner(self ids.NodeID, dir *directory.Directory, cfg config.Config, send func(directory.Endpoint, wire.Message), logger *log.Logger) *Learner {
	return &Learner{
		self:          self,
		dir:           dir,
		cfg:           cfg,
		log:           logger,
		send:          send,
		acceptorCount: dir.Acceptors,
		votes:         make(map[decree]map[ids.NodeID]struct{}),
	}
}

// HandleLearn implements spec.md §4.6: tally the reporting acceptor under
// (n, value); on first reaching strict majority, deliver FINAL to every
// client. Subsequent LEARN messages for the same pair are tolerated and
// may still trigger (redundant, visible) re-deliveries.
func (l *Learner) HandleLearn(from directory.Endpoint, msg wire.Learn) {
	key := decree{n: msg.N, value: msg.Value}
	set, ok := l.votes[key]
	if !ok {
		set = make(map[ids.NodeID]struct{})
		l.votes[key] = set
	}
	set[msg.AcceptorID] = struct{}{}

	if len(set) < ids.Majority(l.acceptorCount) {
		return
	}

	wasChosen := l.chosen
	l.chosen = true
	if !wasChosen {
		l.log.Printf("learner %s: value %q chosen at proposal %d round %s", l.self, msg.Value, msg.N, msg.RoundID)
	} else {
		l.trace("redundant LEARN delivery for already-chosen %d=%q round %s", msg.N, msg.Value, msg.RoundID)
	}
	l.deliver(msg.Value)
}

func (l *Learner) deliver(value string) {
	clients := l.dir.Clients()
	for _, c := range clients {
		l.send(c, wire.Final{Value: value})
	}
}

func (l *Learner) trace(format string, args ...any) {
	if l.cfg.Debug {
		l.log.Printf("learner %s: "+format, append([]any{l.self}, args...)...)
	}
}
