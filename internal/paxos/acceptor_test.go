package paxos

import (
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"paxosring/internal/config"
	"paxosring/internal/directory"
	"paxosring/internal/ids"
	"paxosring/internal/wire"
)

func testLogger() *log.Logger { return log.New(os.Stderr, "", 0) }

type sent struct {
	to  directory.Endpoint
	msg wire.Message
}

func captureSend(out *[]sent) func(directory.Endpoint, wire.Message) {
	return func(to directory.Endpoint, msg wire.Message) {
		*out = append(*out, sent{to: to, msg: msg})
	}
}

func oneAcceptorDir(t *testing.T) *directory.Directory {
	t.Helper()
	path := t.TempDir() + "/directory.txt"
	require.NoError(t, os.WriteFile(path, []byte(`
PROPOSERS 1
ACCEPTORS 1
LEARNERS  1
h 0 con
h 1 con
h 2 con
h 3 cli
`), 0o644))
	dir, err := directory.Parse(path)
	require.NoError(t, err)
	return dir
}

func TestAcceptorPromisesFirstProposal(t *testing.T) {
	dir := oneAcceptorDir(t)
	var out []sent
	a := NewAcceptor(1, dir, config.Config{}, captureSend(&out), testLogger())

	from, _ := dir.Endpoint(0)
	a.HandlePrepare(from, wire.Proposal{N: 1, ProposerID: 0})

	require.Len(t, out, 1)
	ack, ok := out[0].msg.(wire.Ack)
	require.True(t, ok)
	require.Equal(t, ids.ProposalNumber(1), ack.N)
	require.False(t, ack.HasAccepted)
}

func TestAcceptorRejectsLowerOrEqualProposal(t *testing.T) {
	dir := oneAcceptorDir(t)
	var out []sent
	a := NewAcceptor(1, dir, config.Config{}, captureSend(&out), testLogger())
	from, _ := dir.Endpoint(0)

	a.HandlePrepare(from, wire.Proposal{N: 4, ProposerID: 0})
	a.HandlePrepare(from, wire.Proposal{N: 4, ProposerID: 0}) // equal: rejected
	a.HandlePrepare(from, wire.Proposal{N: 2, ProposerID: 0}) // lower: rejected

	require.Len(t, out, 3)
	_, isAck := out[0].msg.(wire.Ack)
	require.True(t, isAck)
	_, isNack1 := out[1].msg.(wire.Nack)
	require.True(t, isNack1)
	_, isNack2 := out[2].msg.(wire.Nack)
	require.True(t, isNack2)
}

func TestAcceptorAcceptsAtOrAboveMinProposal(t *testing.T) {
	dir := oneAcceptorDir(t)
	var out []sent
	a := NewAcceptor(1, dir, config.Config{}, captureSend(&out), testLogger())
	from, _ := dir.Endpoint(0)

	a.HandlePrepare(from, wire.Proposal{N: 4, ProposerID: 0})
	a.HandleAccept(from, wire.Accept{N: 4, Value: "v1"}) // equal: honored

	require.Equal(t, ids.ProposalNumber(4), a.acceptedNumber)
	require.Equal(t, "v1", a.acceptedValue)

	a.HandleAccept(from, wire.Accept{N: 2, Value: "v2"}) // lower: rejected
	require.Equal(t, "v1", a.acceptedValue)
}
