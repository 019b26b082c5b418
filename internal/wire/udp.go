package wire

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log"
	"net"
	"sync"

	"paxosring/internal/directory"
)

// maxDatagram bounds message size to a conservative UDP MTU, per spec.md §6.
const maxDatagram = 4096

// UDPTransport is the real, lossy, best-effort collaborator. Its shape
// follows the teacher's udp.UDPServer/udp.UDPClient: a bound net.UDPConn,
// a pooled read buffer, one goroutine decoding each incoming datagram.
type UDPTransport struct {
	conn    *net.UDPConn
	local   directory.Endpoint
	bufPool *sync.Pool
}

// Listen binds a UDP socket on the given endpoint. The bind is synchronous:
// by the time Listen returns, the socket is ready to receive, which is the
// explicit readiness guarantee the dispatcher's startup handshake relies on.
func Listen(local directory.Endpoint) (*UDPTransport, error) {
	addr, err := net.ResolveUDPAddr("udp", local.String())
	if err != nil {
		return nil, fmt.Errorf("wire: resolve %s: %w", local, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("wire: listen %s: %w", local, err)
	}
	return &UDPTransport{
		conn:  conn,
		local: local,
		bufPool: &sync.Pool{
			New: func() any { return make([]byte, maxDatagram) },
		},
	}, nil
}

func (t *UDPTransport) LocalAddr() directory.Endpoint { return t.local }

// Send gob-encodes msg inside an Envelope and writes it as one datagram.
func (t *UDPTransport) Send(to directory.Endpoint, msg Message) error {
	addr, err := net.ResolveUDPAddr("udp", to.String())
	if err != nil {
		return fmt.Errorf("wire: resolve %s: %w", to, err)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&Envelope{Msg: msg}); err != nil {
		return fmt.Errorf("wire: encode %T: %w", msg, err)
	}
	if _, err := t.conn.WriteToUDP(buf.Bytes(), addr); err != nil {
		return fmt.Errorf("wire: write to %s: %w", to, err)
	}
	return nil
}

// Recv blocks for the next datagram, decodes it, and reports its sender.
// An unparsable datagram is dropped here with a warning log line, and Recv
// goes on to wait for the next datagram.
func (t *UDPTransport) Recv() (Received, error) {
	for {
		buf := t.bufPool.Get().([]byte)
		n, from, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			t.bufPool.Put(buf)
			return Received{}, err
		}

		var env Envelope
		decErr := gob.NewDecoder(bytes.NewReader(buf[:n])).Decode(&env)
		t.bufPool.Put(buf)
		if decErr != nil {
			log.Printf("wire: dropping unparsable datagram from %s: %v", from, decErr)
			continue
		}
		return Received{From: fromEndpoint(from), Msg: env.Msg}, nil
	}
}

func (t *UDPTransport) Close() error { return t.conn.Close() }

func fromEndpoint(addr *net.UDPAddr) directory.Endpoint {
	if addr == nil {
		return directory.Endpoint{}
	}
	return directory.Endpoint{Host: addr.IP.String(), Port: addr.Port}
}
