// Package assign implements the leader-driven role assignment and
// readiness broadcast described in spec.md §4.3. It runs only on the
// elected leader.
package assign

import (
	"log"

	"paxosring/internal/directory"
	"paxosring/internal/ids"
	"paxosring/internal/wire"
)

// Run partitions the consensus identifier space and unicasts each node its
// Assign, then broadcasts Start to every consensus node. The partition is
// locally derivable by every node from the directory file alone, but the
// unicast/broadcast round trip is an explicit synchronization barrier, per
// spec.md §4.3's "this is the boundary between bootstrap and steady
// state" — not merely information transfer.
func Run(dir *directory.Directory, send func(directory.Endpoint, wire.Message), logger *log.Logger) error {
	proposers, err := dir.Endpoints(dir.ProposerIDs())
	if err != nil {
		return err
	}
	acceptors, err := dir.Endpoints(dir.AcceptorIDs())
	if err != nil {
		return err
	}
	learners, err := dir.Endpoints(dir.LearnerIDs())
	if err != nil {
		return err
	}

	for id := ids.NodeID(0); int(id) < dir.ConsensusCount(); id++ {
		ep, err := dir.Endpoint(id)
		if err != nil {
			return err
		}
		send(ep, wire.Assign{
			Role:      dir.RoleOf(id),
			Proposers: proposers,
			Acceptors: acceptors,
			Learners:  learners,
			P:         dir.Proposers,
			A:         dir.Acceptors,
			L:         dir.Learners,
		})
	}

	logger.Printf("assign: broadcasting START to %d consensus nodes", dir.ConsensusCount())
	for id := ids.NodeID(0); int(id) < dir.ConsensusCount(); id++ {
		ep, err := dir.Endpoint(id)
		if err != nil {
			return err
		}
		send(ep, wire.Start{Proposers: proposers})
	}
	return nil
}

// ForwardProposerList is what every consensus node does on receipt of
// START: forward the proposer list to every client endpoint so clients can
// complete Initialize(). Per spec.md §4.3 this runs on ALL consensus
// nodes, not only the leader.
func ForwardProposerList(dir *directory.Directory, send func(directory.Endpoint, wire.Message), proposers []directory.Endpoint) {
	for _, client := range dir.Clients() {
		send(client, wire.Start{Proposers: proposers})
	}
}
