package node

import (
	"fmt"
	"net"
	"os"

	"github.com/pkg/errors"

	"github.com/dora-rs/dora-node-go/eventstream"
	"github.com/dora-rs/dora-node-go/internal/clock"
	"github.com/dora-rs/dora-node-go/internal/protocol"
)

// InitFromNodeID bootstraps a node without pre-supplied config: it opens
// a fresh transport to the daemon at (remoteAddr ?? loopback,
// DefaultDaemonPort), requests NodeConfig{node_id}, rewrites the
// returned DaemonCommunication::Tcp socket address to combine remoteAddr
// with the daemon-reported port, then calls Init.
//
// When the daemon replies with a Shmem DaemonCommunication, the rewrite
// is silently skipped: whether an analogous rewrite is needed for Shmem
// addresses is an open question left to the protocol owner, so this implementation mirrors the Rust reference and leaves
// Shmem untouched.
func InitFromNodeID(nodeID string, remoteAddr *net.IP) (*Node, *eventstream.EventStream, error) {
	remoteIP := protocol.DefaultDaemonHost
	if remoteAddr != nil {
		remoteIP = remoteAddr.String()
	}
	daemonAddr := fmt.Sprintf("%s:%d", remoteIP, protocol.DefaultDaemonPort)

	conn, err := dialDaemonConn(protocol.DaemonCommunication{
		Kind: protocol.DaemonCommTCP,
		Tcp:  &protocol.TCPDaemonCommunication{SocketAddr: daemonAddr},
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not connect to the daemon")
	}
	defer conn.Close()

	clk := clock.NewHLC(hashNodeID(nodeID))
	reply, err := conn.Request(protocol.Timestamped[protocol.Request]{
		Timestamp: clk.New(),
		Inner: protocol.Request{
			Kind:       protocol.KindNodeConfig,
			NodeConfig: &protocol.NodeConfigRequest{NodeID: nodeID},
		},
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to request node config from daemon")
	}

	if reply.Kind != protocol.ReplyKindNodeConfig || reply.NodeConfig == nil {
		return nil, nil, errors.New("unexpected reply from daemon")
	}
	if reply.NodeConfig.Err != "" {
		return nil, nil, errors.Errorf("failed to get node config from daemon: %s", reply.NodeConfig.Err)
	}

	cfg := *reply.NodeConfig.Config
	if cfg.DaemonCommunication.Kind == protocol.DaemonCommTCP && cfg.DaemonCommunication.Tcp != nil {
		_, port, splitErr := net.SplitHostPort(cfg.DaemonCommunication.Tcp.SocketAddr)
		if splitErr == nil {
			cfg.DaemonCommunication.Tcp = &protocol.TCPDaemonCommunication{
				SocketAddr: net.JoinHostPort(remoteIP, port),
			}
		}
	}

	return Init(cfg)
}

// InitFlexible prefers DORA_NODE_CONFIG if present; otherwise falls back
// to InitFromNodeID against the default loopback daemon.
func InitFlexible(nodeID string) (*Node, *eventstream.EventStream, error) {
	if _, ok := os.LookupEnv(nodeConfigEnvVar); ok {
		return InitFromEnv()
	}
	return InitFromNodeID(nodeID, nil)
}
