package wire

import "paxosring/internal/directory"

// Received pairs an inbound message with the endpoint it came from: the
// datagram's source address over UDP, the sending endpoint on the
// in-memory bus. Acceptors address their replies to it.
type Received struct {
	From directory.Endpoint
	Msg  Message
}

// Transport is the best-effort, connectionless collaborator spec.md §1
// requires: unordered, possibly-lossy, message-boundary-preserving.
// Both the UDP implementation and the in-memory test fake satisfy it, so
// every node built against Transport runs unmodified in either.
type Transport interface {
	LocalAddr() directory.Endpoint
	Send(to directory.Endpoint, msg Message) error
	Recv() (Received, error)
	Close() error
}
