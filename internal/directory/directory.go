// Package directory parses the host directory file and answers the
// identifier/role/endpoint questions the rest of the cluster needs.
//
// The directory file format and parsing style follow the hand-rolled,
// bufio.Scanner-based line parsing used throughout the teacher repo for its
// own simple text protocols (e.g. heartbeat.HeartbeatMessage's plain-field
// encoding) — no configuration library is pulled in for this, since the
// teacher never reaches for one either.
package directory

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"paxosring/internal/ids"
)

// Endpoint identifies a node by host and port.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string { return fmt.Sprintf("%s:%d", e.Host, e.Port) }

// Directory is the static, immutable-after-startup cluster topology.
type Directory struct {
	Proposers int
	Acceptors int
	Learners  int

	consensus []Endpoint
	clients   []Endpoint
}

// Parse reads the host directory file at path.
//
//	PROPOSERS <p>
//	ACCEPTORS <a>
//	LEARNERS  <l>
//	<host> <port> con   (repeated p+a+l times)
//	<host> <port> cli   (repeated for each client)
func Parse(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("directory: open %s: %w", path, err)
	}
	defer f.Close()

	d := &Directory{}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch strings.ToUpper(fields[0]) {
		case "PROPOSERS":
			d.Proposers, err = parseCount(fields, lineNo)
		case "ACCEPTORS":
			d.Acceptors, err = parseCount(fields, lineNo)
		case "LEARNERS":
			d.Learners, err = parseCount(fields, lineNo)
		default:
			ep, kind, perr := parseEndpointLine(fields, lineNo)
			if perr != nil {
				return nil, perr
			}
			switch kind {
			case "con":
				d.consensus = append(d.consensus, ep)
			case "cli":
				d.clients = append(d.clients, ep)
			default:
				return nil, fmt.Errorf("directory: line %d: unknown endpoint kind %q", lineNo, kind)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("directory: scan %s: %w", path, err)
	}

	if want := d.Proposers + d.Acceptors + d.Learners; want != len(d.consensus) {
		return nil, fmt.Errorf("directory: P+A+L=%d but found %d consensus lines", want, len(d.consensus))
	}
	return d, nil
}

func parseCount(fields []string, lineNo int) (int, error) {
	if len(fields) != 2 {
		return 0, fmt.Errorf("directory: line %d: expected \"<LABEL> <count>\"", lineNo)
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("directory: line %d: bad count %q: %w", lineNo, fields[1], err)
	}
	return n, nil
}

func parseEndpointLine(fields []string, lineNo int) (Endpoint, string, error) {
	if len(fields) != 3 {
		return Endpoint{}, "", fmt.Errorf("directory: line %d: expected \"<host> <port> <con|cli>\"", lineNo)
	}
	port, err := strconv.Atoi(fields[1])
	if err != nil {
		return Endpoint{}, "", fmt.Errorf("directory: line %d: bad port %q: %w", lineNo, fields[1], err)
	}
	return Endpoint{Host: fields[0], Port: port}, strings.ToLower(fields[2]), nil
}

// ConsensusCount returns P+A+L.
func (d *Directory) ConsensusCount() int { return len(d.consensus) }

// NodeCount returns P+A+L+C, the total number of addressable nodes.
func (d *Directory) NodeCount() int { return len(d.consensus) + len(d.clients) }

// Clients returns the client endpoints, in directory order.
func (d *Directory) Clients() []Endpoint {
	out := make([]Endpoint, len(d.clients))
	copy(out, d.clients)
	return out
}

// Endpoint resolves a node identifier to its endpoint. Consensus
// identifiers occupy [0, ConsensusCount()); client identifiers follow.
func (d *Directory) Endpoint(id ids.NodeID) (Endpoint, error) {
	i := int(id)
	switch {
	case i < 0:
		return Endpoint{}, fmt.Errorf("directory: negative node id %d", i)
	case i < len(d.consensus):
		return d.consensus[i], nil
	case i < d.NodeCount():
		return d.clients[i-len(d.consensus)], nil
	default:
		return Endpoint{}, fmt.Errorf("directory: node id %d out of range [0,%d)", i, d.NodeCount())
	}
}

// LeaderID is the Chang–Roberts winner by construction: the highest
// consensus identifier, i.e. the final consensus line in the file.
func (d *Directory) LeaderID() ids.NodeID {
	return ids.NodeID(d.ConsensusCount() - 1)
}

// Successor returns the next consensus identifier around the election ring.
func (d *Directory) Successor(id ids.NodeID) ids.NodeID {
	n := d.ConsensusCount()
	return ids.NodeID((int(id) + 1) % n)
}

// RoleOf returns the consensus role assigned to a consensus identifier:
// the first P ids are proposers, the next A are acceptors, the final L
// (including the leader) are learners.
func (d *Directory) RoleOf(id ids.NodeID) ids.Role {
	i := int(id)
	switch {
	case i < d.Proposers:
		return ids.RoleProposer
	case i < d.Proposers+d.Acceptors:
		return ids.RoleAcceptor
	case i < d.ConsensusCount():
		return ids.RoleLearner
	default:
		return ids.RoleClient
	}
}

// ProposerIDs, AcceptorIDs, LearnerIDs return the node identifiers in each
// role group, in directory order.
func (d *Directory) ProposerIDs() []ids.NodeID { return idRange(0, d.Proposers) }
func (d *Directory) AcceptorIDs() []ids.NodeID {
	return idRange(d.Proposers, d.Proposers+d.Acceptors)
}
func (d *Directory) LearnerIDs() []ids.NodeID {
	return idRange(d.Proposers+d.Acceptors, d.ConsensusCount())
}

func idRange(lo, hi int) []ids.NodeID {
	out := make([]ids.NodeID, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, ids.NodeID(i))
	}
	return out
}

// Endpoints resolves a slice of identifiers to their endpoints.
func (d *Directory) Endpoints(nodeIDs []ids.NodeID) ([]Endpoint, error) {
	out := make([]Endpoint, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		ep, err := d.Endpoint(id)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}
