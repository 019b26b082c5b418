package node

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paxosring/internal/client"
	"paxosring/internal/config"
	"paxosring/internal/directory"
	"paxosring/internal/ids"
	"paxosring/internal/wire"
)

// writeDir writes a host directory file and parses it back, mirroring
// spec.md §8's literal end-to-end scenarios.
func writeDir(t *testing.T, contents string) *directory.Directory {
	t.Helper()
	path := t.TempDir() + "/directory.txt"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	dir, err := directory.Parse(path)
	require.NoError(t, err)
	return dir
}

// startCluster builds one Node per consensus id and one Client per client
// id, all sharing a single in-memory bus, and starts every consensus node.
func startCluster(t *testing.T, dir *directory.Directory, cfg config.Config) ([]*Node, []*client.Client) {
	t.Helper()
	bus := wire.NewMemoryBus()

	nodes := make([]*Node, dir.ConsensusCount())
	for id := ids.NodeID(0); int(id) < dir.ConsensusCount(); id++ {
		ep, err := dir.Endpoint(id)
		require.NoError(t, err)
		nodes[id] = NewWithTransport(id, dir, cfg, bus.Register(ep))
	}

	clientEndpoints := dir.Clients()
	clients := make([]*client.Client, len(clientEndpoints))
	for i, ep := range clientEndpoints {
		clientID := ids.NodeID(dir.ConsensusCount() + i)
		require.Equal(t, ep, mustEndpoint(t, dir, clientID))
		clients[i] = client.NewWithTransport(clientID, dir, bus.Register(ep))
	}

	for _, n := range nodes {
		n.Start()
	}
	t.Cleanup(func() {
		for _, n := range nodes {
			select {
			case <-n.terminated:
			default:
				close(n.terminated)
			}
		}
		for _, n := range nodes {
			n.Wait()
		}
	})
	return nodes, clients
}

func mustEndpoint(t *testing.T, dir *directory.Directory, id ids.NodeID) directory.Endpoint {
	t.Helper()
	ep, err := dir.Endpoint(id)
	require.NoError(t, err)
	return ep
}

// TestScenarioMinimal matches spec.md §8 scenario 1: P=A=L=1, one client.
func TestScenarioMinimal(t *testing.T) {
	dir := writeDir(t, `
PROPOSERS 1
ACCEPTORS 1
LEARNERS  1
h 0 con
h 1 con
h 2 con
h 3 cli
`)
	_, clients := startCluster(t, dir, config.Config{})
	c := clients[0]

	require.NoError(t, c.Initialize(0))
	result, err := c.Set("210")
	require.NoError(t, err)
	require.Equal(t, "210", result)
	c.Cleanup()
}

// TestScenarioMultipleClientsOneProposer matches spec.md §8 scenario 2:
// several clients targeting the same proposer must all observe the same
// chosen value.
func TestScenarioMultipleClientsOneProposer(t *testing.T) {
	dir := writeDir(t, `
PROPOSERS 1
ACCEPTORS 3
LEARNERS  1
h 0 con
h 1 con
h 2 con
h 3 con
h 4 con
h 5 cli
h 6 cli
h 7 cli
h 8 cli
`)
	_, clients := startCluster(t, dir, config.Config{})
	values := []string{"55", "56", "57", "230"}

	results := make([]string, len(clients))
	errs := make([]error, len(clients))
	done := make(chan int, len(clients))
	for i, c := range clients {
		go func(i int, c *client.Client) {
			defer func() { done <- i }()
			if err := c.Initialize(1); err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = c.Set(values[i])
		}(i, c)
	}
	for range clients {
		<-done
	}

	for i := range clients {
		require.NoError(t, errs[i])
	}
	chosen := results[0]
	require.Contains(t, values, chosen)
	for _, r := range results {
		require.Equal(t, chosen, r)
	}
	for _, c := range clients {
		c.Cleanup()
	}
}

// killAfterStart simulates processes being killed once the cluster is live:
// it closes the given nodes' terminated channel directly, the same signal
// TERMINATE would deliver, without requiring the node to still be reachable
// over the bus to receive it.
func killAfterStart(nodes []*Node, victims ...ids.NodeID) {
	for _, id := range victims {
		n := nodes[id]
		select {
		case <-n.terminated:
		default:
			close(n.terminated)
		}
	}
}

// TestScenarioAcceptorMinorityFailure matches spec.md §8 scenario 4: with
// A=5, killing any two acceptors after START still reaches consensus; the
// ring (and hence election and role assignment) must complete first, so the
// full cluster is started and only torn down once the client has already
// received its proposer list.
func TestScenarioAcceptorMinorityFailure(t *testing.T) {
	dir := writeDir(t, `
PROPOSERS 1
ACCEPTORS 5
LEARNERS  1
h 0 con
h 1 con
h 2 con
h 3 con
h 4 con
h 5 con
h 6 con
h 7 cli
`)
	nodes, clients := startCluster(t, dir, config.Config{})
	c := clients[0]
	require.NoError(t, c.Initialize(0))

	acceptors := dir.AcceptorIDs()
	killAfterStart(nodes, acceptors[0], acceptors[1])

	resultCh := make(chan string, 1)
	go func() {
		v, err := c.Set("42")
		if err == nil {
			resultCh <- v
		}
	}()

	select {
	case v := <-resultCh:
		require.Equal(t, "42", v)
	case <-time.After(2 * time.Second):
		t.Fatal("expected consensus to survive two killed acceptors out of five")
	}
	c.Cleanup()
}

// TestScenarioAcceptorMajorityFailure matches the second half of spec.md §8
// scenario 4: killing three of five acceptors leaves no possible majority,
// so the client's Set blocks indefinitely and no FINAL is ever delivered.
func TestScenarioAcceptorMajorityFailure(t *testing.T) {
	dir := writeDir(t, `
PROPOSERS 1
ACCEPTORS 5
LEARNERS  1
h 0 con
h 1 con
h 2 con
h 3 con
h 4 con
h 5 con
h 6 con
h 7 cli
`)
	nodes, clients := startCluster(t, dir, config.Config{})
	c := clients[0]
	require.NoError(t, c.Initialize(0))

	acceptors := dir.AcceptorIDs()
	killAfterStart(nodes, acceptors[0], acceptors[1], acceptors[2])

	resultCh := make(chan string, 1)
	go func() {
		v, err := c.Set("42")
		if err == nil {
			resultCh <- v
		}
	}()

	select {
	case <-resultCh:
		t.Fatal("expected no majority to be reachable with three of five acceptors killed")
	case <-time.After(300 * time.Millisecond):
		// No FINAL arrived, as expected: the client is left blocked.
	}
	c.Cleanup()
}

// TestScenarioConcurrentProposers matches spec.md §8 scenario 3: P=3,A=3,L=5
// with eight clients targeting various proposer indices must still converge
// on exactly one chosen value.
func TestScenarioConcurrentProposers(t *testing.T) {
	dir := writeDir(t, `
PROPOSERS 3
ACCEPTORS 3
LEARNERS  5
h 0 con
h 1 con
h 2 con
h 3 con
h 4 con
h 5 con
h 6 con
h 7 con
h 8 con
h 9 con
h 10 con
h 11 cli
h 12 cli
h 13 cli
h 14 cli
h 15 cli
h 16 cli
h 17 cli
h 18 cli
`)
	_, clients := startCluster(t, dir, config.Config{})
	values := []string{"55", "89", "123", "157", "191", "202", "217", "233"}

	results := make([]string, len(clients))
	errs := make([]error, len(clients))
	done := make(chan int, len(clients))
	for i, c := range clients {
		go func(i int, c *client.Client) {
			defer func() { done <- i }()
			if err := c.Initialize(i % 3); err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = c.Set(values[i])
		}(i, c)
	}
	for range clients {
		<-done
	}

	for i := range clients {
		require.NoError(t, errs[i])
	}
	chosen := results[0]
	require.Contains(t, values, chosen)
	for _, r := range results {
		require.Equal(t, chosen, r)
	}
	for _, c := range clients {
		c.Cleanup()
	}
}

// TestScenarioNackRace matches spec.md §8 scenario 5: two proposers race
// over the same acceptors with back-off disabled; whichever is NACKed
// abandons its round outright, but both clients still observe the single
// value the other proposer's round committed, since FINAL is broadcast to
// every client regardless of which proposer it went through.
func TestScenarioNackRace(t *testing.T) {
	dir := writeDir(t, `
PROPOSERS 2
ACCEPTORS 3
LEARNERS  1
h 0 con
h 1 con
h 2 con
h 3 con
h 4 con
h 5 con
h 6 cli
h 7 cli
`)
	_, clients := startCluster(t, dir, config.Config{Backoff: false})
	values := []string{"111", "222"}

	results := make([]string, len(clients))
	errs := make([]error, len(clients))
	done := make(chan int, len(clients))
	for i, c := range clients {
		go func(i int, c *client.Client) {
			defer func() { done <- i }()
			if err := c.Initialize(i); err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = c.Set(values[i])
		}(i, c)
	}
	for range clients {
		<-done
	}

	for i := range clients {
		require.NoError(t, errs[i])
	}
	require.Contains(t, values, results[0])
	require.Equal(t, results[0], results[1])
	for _, c := range clients {
		c.Cleanup()
	}
}
