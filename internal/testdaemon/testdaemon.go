// Package testdaemon is a minimal fake dora daemon used by the rest of
// this module's tests: it accepts framed connections exactly like a real
// daemon would, decodes each request with the same codecs daemonconn
// uses, and answers with whatever Handler returns. Grounded on the
// request/reply shape of original_source/.../daemon_connection/tcp.rs,
// reimplemented server-side.
package testdaemon

import (
	"net"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dora-rs/dora-node-go/internal/protocol"
	"github.com/dora-rs/dora-node-go/transport"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler answers one request with one reply. It is called from a
// per-connection goroutine, so implementations touching shared state
// must synchronize.
type Handler func(req protocol.Request) protocol.Reply

// Daemon is a fake daemon listening on loopback.
type Daemon struct {
	t        *testing.T
	listener net.Listener

	wg sync.WaitGroup
}

// Start listens on an ephemeral loopback port and serves connections
// with handle until the test ends (Start registers a Cleanup).
func Start(t *testing.T, handle Handler) *Daemon {
	t.Helper()
	return StartOnAddr(t, "127.0.0.1:0", handle)
}

// StartOnAddr is Start, but listens on addr instead of an ephemeral
// port, for tests that need to stand in for the daemon's well-known
// address (e.g. protocol.DefaultDaemonPort, which a bootstrap dial
// targets without any way to override it).
func StartOnAddr(t *testing.T, addr string, handle Handler) *Daemon {
	t.Helper()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("testdaemon: failed to listen on %q: %v", addr, err)
	}

	d := &Daemon{t: t, listener: ln}
	d.wg.Add(1)
	go d.acceptLoop(handle)

	t.Cleanup(func() {
		_ = ln.Close()
		d.wg.Wait()
	})
	return d
}

// Addr returns the "host:port" the daemon is listening on.
func (d *Daemon) Addr() string {
	return d.listener.Addr().String()
}

func (d *Daemon) acceptLoop(handle Handler) {
	defer d.wg.Done()
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return
		}
		d.wg.Add(1)
		go d.serve(conn, handle)
	}
}

func (d *Daemon) serve(conn net.Conn, handle Handler) {
	defer d.wg.Done()
	framed := transport.NewFramed(conn)
	defer framed.Close()

	for {
		raw, err := framed.Receive()
		if err != nil {
			return
		}

		var req protocol.Timestamped[protocol.Request]
		if err := msgpack.Unmarshal(raw, &req); err != nil {
			d.t.Errorf("testdaemon: failed to decode request: %v", err)
			return
		}

		reply := handle(req.Inner)
		if req.Inner.ExpectedReply() == protocol.ReplyNone {
			continue
		}

		var encoded []byte
		var encodeErr error
		if req.Inner.ExpectedReply() == protocol.ReplyText {
			encoded, encodeErr = jsonAPI.Marshal(&reply)
		} else {
			encoded, encodeErr = msgpack.Marshal(&reply)
		}
		if encodeErr != nil {
			d.t.Errorf("testdaemon: failed to encode reply: %v", encodeErr)
			return
		}
		if err := framed.Send(encoded); err != nil {
			return
		}
	}
}
