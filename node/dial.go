package node

import (
	"net"

	"github.com/pkg/errors"

	"github.com/dora-rs/dora-node-go/daemonconn"
	"github.com/dora-rs/dora-node-go/internal/protocol"
	"github.com/dora-rs/dora-node-go/transport"
)

// dialDaemonConn opens a fresh connection to the daemon described by
// comm and wraps it in a typed DaemonChannel. Each logical channel
// (event stream, drop stream, control channel) gets its own connection,
// matching the Rust implementation's per-subsystem TcpStream.
func dialDaemonConn(comm protocol.DaemonCommunication) (*daemonconn.DaemonChannel, error) {
	if comm.Kind != protocol.DaemonCommTCP || comm.Tcp == nil {
		return nil, errors.Errorf("unsupported daemon communication kind %q", comm.Kind)
	}
	conn, err := net.Dial("tcp", comm.Tcp.SocketAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to daemon at %s", comm.Tcp.SocketAddr)
	}
	return daemonconn.New(transport.NewFramed(conn)), nil
}
