// Package client implements the Initialize/Set/Cleanup operations spec.md
// §4.7 exposes to a client process.
package client

import (
	"fmt"
	"log"
	"os"

	"paxosring/internal/config"
	"paxosring/internal/directory"
	"paxosring/internal/ids"
	"paxosring/internal/wire"
)

// Client is one client process: it selects a proposer, submits one value,
// and waits for the learners' decision.
type Client struct {
	self ids.NodeID
	dir  *directory.Directory
	log  *log.Logger

	transport wire.Transport
	incoming  chan wire.Received
	done      chan struct{}

	proposer directory.Endpoint
}

// New constructs a Client listening on its own UDP endpoint as resolved
// from the directory.
func New(self ids.NodeID, dir *directory.Directory, cfg config.Config) (*Client, error) {
	ep, err := dir.Endpoint(self)
	if err != nil {
		return nil, err
	}
	transport, err := wire.Listen(ep)
	if err != nil {
		return nil, err
	}
	return NewWithTransport(self, dir, transport), nil
}

// NewWithTransport constructs a Client over a caller-supplied Transport,
// letting tests drive a cluster over an in-memory bus instead of real
// sockets.
func NewWithTransport(self ids.NodeID, dir *directory.Directory, transport wire.Transport) *Client {
	c := &Client{
		self:      self,
		dir:       dir,
		log:       log.New(os.Stderr, fmt.Sprintf("[client %s] ", self), log.LstdFlags),
		transport: transport,
		incoming:  make(chan wire.Received, 64),
		done:      make(chan struct{}),
	}
	go c.receive()
	return c
}

func (c *Client) receive() {
	for {
		r, err := c.transport.Recv()
		if err != nil {
			return
		}
		select {
		case c.incoming <- r:
		case <-c.done:
			return
		}
	}
}

// Initialize blocks until a proposer list arrives from some consensus
// node, then selects the proposer at desiredProposerIndex mod |proposers|.
func (c *Client) Initialize(desiredProposerIndex int) error {
	for r := range c.incoming {
		start, ok := r.Msg.(wire.Start)
		if !ok || len(start.Proposers) == 0 {
			continue
		}
		idx := ((desiredProposerIndex % len(start.Proposers)) + len(start.Proposers)) % len(start.Proposers)
		c.proposer = start.Proposers[idx]
		c.log.Printf("initialized: selected proposer %s (index %d of %d)", c.proposer, idx, len(start.Proposers))
		return nil
	}
	return fmt.Errorf("client %s: transport closed before proposer list arrived", c.self)
}

// Set sends the client's value to its chosen proposer and blocks until a
// FINAL value arrives from any learner, then returns it.
func (c *Client) Set(value string) (string, error) {
	self, err := c.dir.Endpoint(c.self)
	if err != nil {
		return "", err
	}
	if err := c.transport.Send(c.proposer, wire.Fwd{ClientID: c.self, ClientAddr: self, Value: value}); err != nil {
		return "", fmt.Errorf("client %s: send FWD: %w", c.self, err)
	}
	for r := range c.incoming {
		final, ok := r.Msg.(wire.Final)
		if !ok {
			continue
		}
		return final.Value, nil
	}
	return "", fmt.Errorf("client %s: transport closed before FINAL arrived", c.self)
}

// Cleanup broadcasts TERMINATE to every consensus node and stops the
// receive loop.
func (c *Client) Cleanup() {
	for id := ids.NodeID(0); int(id) < c.dir.ConsensusCount(); id++ {
		ep, err := c.dir.Endpoint(id)
		if err != nil {
			continue
		}
		if err := c.transport.Send(ep, wire.Terminate{}); err != nil {
			c.log.Printf("send TERMINATE to %s: %v", ep, err)
		}
	}
	close(c.done)
	c.transport.Close()
}

