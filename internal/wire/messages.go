// Package wire defines the closed set of message types exchanged between
// nodes and the two Transport implementations (UDP and an in-memory fake)
// that carry them.
package wire

import (
	"encoding/gob"

	"github.com/google/uuid"

	"paxosring/internal/directory"
	"paxosring/internal/ids"
)

// Header is one of the closed set of wire message tags from spec.md §6.
type Header string

const (
	HeaderElect     Header = "ELECT"
	HeaderElected   Header = "ELECTED"
	HeaderAssign    Header = "ASSIGN"
	HeaderStart     Header = "START"
	HeaderFwd       Header = "FWD"
	HeaderProposal  Header = "PROPOSAL"
	HeaderAck       Header = "ACK"
	HeaderNack      Header = "NACK"
	HeaderAccept    Header = "ACCEPT"
	HeaderLearn     Header = "LEARN"
	HeaderFinal     Header = "FINAL"
	HeaderTerminate Header = "TERMINATE"
)

// Message is the marker interface implemented by every concrete wire type.
// Dispatch routes with a Go type switch over the concrete types; Header()
// names a message in log lines.
type Message interface {
	Header() Header
}

// Elect is a Chang–Roberts election token carrying a candidate identifier.
type Elect struct {
	Candidate ids.NodeID
}

func (Elect) Header() Header { return HeaderElect }

// Elected announces the winning leader once around the ring.
type Elected struct {
	Leader ids.NodeID
}

func (Elected) Header() Header { return HeaderElected }

// Assign is the leader's unicast role assignment to one consensus node.
type Assign struct {
	Role      ids.Role
	Proposers []directory.Endpoint
	Acceptors []directory.Endpoint
	Learners  []directory.Endpoint
	P, A, L   int
}

func (Assign) Header() Header { return HeaderAssign }

// Start is the leader's readiness broadcast to consensus nodes, and, when
// forwarded by a consensus node to a client, carries the proposer list a
// client needs to complete its own Initialize().
type Start struct {
	Proposers []directory.Endpoint
}

func (Start) Header() Header { return HeaderStart }

// Fwd is a client's request forwarded to its chosen proposer.
type Fwd struct {
	ClientID   ids.NodeID
	ClientAddr directory.Endpoint
	Value      string
}

func (Fwd) Header() Header { return HeaderFwd }

// Proposal is a proposer's Phase 1a Prepare, sent to every acceptor.
type Proposal struct {
	N          ids.ProposalNumber
	RoundID    uuid.UUID
	ProposerID ids.NodeID
}

func (Proposal) Header() Header { return HeaderProposal }

// Ack is an acceptor's Phase 1b Promise reply.
type Ack struct {
	N              ids.ProposalNumber
	RoundID        uuid.UUID
	AcceptorID     ids.NodeID
	HasAccepted    bool
	AcceptedNumber ids.ProposalNumber
	AcceptedValue  string
}

func (Ack) Header() Header { return HeaderAck }

// Nack is sent by an acceptor that rejects a Proposal because it has
// already promised a higher or equal number, or an Accept because it has
// already promised a strictly higher number.
type Nack struct {
	N           ids.ProposalNumber
	RoundID     uuid.UUID
	FromID      ids.NodeID
	MinProposal ids.ProposalNumber
}

func (Nack) Header() Header { return HeaderNack }

// Accept is reused for both directions of Phase 2: a proposer's Accept
// request to acceptors, and an acceptor's Accept-confirm back to the
// proposer. Dispatch tells the two apart by the receiving node's own
// assigned role, not by any field here.
type Accept struct {
	N       ids.ProposalNumber
	RoundID uuid.UUID
	From    ids.NodeID
	Value   string
}

func (Accept) Header() Header { return HeaderAccept }

// Learn is an acceptor's notification to every learner that it has
// accepted (N, Value).
type Learn struct {
	N          ids.ProposalNumber
	RoundID    uuid.UUID
	Value      string
	AcceptorID ids.NodeID
}

func (Learn) Header() Header { return HeaderLearn }

// Final is a learner's delivery of the chosen value to a client.
type Final struct {
	Value string
}

func (Final) Header() Header { return HeaderFinal }

// Terminate requests clean shutdown of a consensus node.
type Terminate struct{}

func (Terminate) Header() Header { return HeaderTerminate }

// Envelope is the gob-encoded unit placed on the wire. Registering every
// concrete Message with gob lets the interface field round-trip without a
// hand-rolled header-to-struct re-dispatch step.
type Envelope struct {
	Msg Message
}

func init() {
	gob.Register(Elect{})
	gob.Register(Elected{})
	gob.Register(Assign{})
	gob.Register(Start{})
	gob.Register(Fwd{})
	gob.Register(Proposal{})
	gob.Register(Ack{})
	gob.Register(Nack{})
	gob.Register(Accept{})
	gob.Register(Learn{})
	gob.Register(Final{})
	gob.Register(Terminate{})
}
