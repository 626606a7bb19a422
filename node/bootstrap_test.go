package node

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dora-rs/dora-node-go/eventstream"
	"github.com/dora-rs/dora-node-go/internal/protocol"
	"github.com/dora-rs/dora-node-go/internal/testdaemon"
)

// TestInitFromNodeIDRewritesBootstrapAddress exercises the host-rewrite
// step in InitFromNodeID. The bootstrap dial always targets
// protocol.DefaultDaemonPort on loopback; the fake daemon answering
// there replies with a NodeConfig naming an unreachable host on a
// different port. If the rewrite is wired correctly, Init's follow-up
// connections (event/drop/control) substitute the dialed host (here,
// the default loopback address) back in while keeping the
// daemon-reported port, landing on a second fake daemon bound to that
// address; if the rewrite were a no-op, those dials would instead try
// the unreachable host and Init would fail or time out.
func TestInitFromNodeIDRewritesBootstrapAddress(t *testing.T) {
	const rewrittenPort = 9000
	unreachableHost := "192.0.2.10" // TEST-NET-1, guaranteed non-routable

	realState := &fakeDaemonState{}
	testdaemon.StartOnAddr(t, fmt.Sprintf("%s:%d", protocol.DefaultDaemonHost, rewrittenPort), realState.handle)

	bootstrapHandle := func(req protocol.Request) protocol.Reply {
		if req.Kind != protocol.KindNodeConfig {
			return protocol.Reply{Kind: protocol.ReplyKindEmpty}
		}
		return protocol.Reply{
			Kind: protocol.ReplyKindNodeConfig,
			NodeConfig: &protocol.NodeConfigReply{
				Config: &protocol.NodeConfig{
					DataflowID: "flow-1",
					NodeID:     req.NodeConfig.NodeID,
					DaemonCommunication: protocol.DaemonCommunication{
						Kind: protocol.DaemonCommTCP,
						Tcp:  &protocol.TCPDaemonCommunication{SocketAddr: fmt.Sprintf("%s:%d", unreachableHost, rewrittenPort)},
					},
				},
			},
		}
	}
	testdaemon.StartOnAddr(t, fmt.Sprintf("%s:%d", protocol.DefaultDaemonHost, protocol.DefaultDaemonPort), bootstrapHandle)

	n, events, err := InitFromNodeID("node-1", nil)
	require.NoError(t, err, "Init's follow-up dials must target the rewritten (reachable) host, not the daemon-reported one")
	t.Cleanup(func() {
		events.Close()
		_ = n.Close()
	})

	require.Eventually(t, func() bool {
		_, err := events.TryRecv()
		return err == nil || err == eventstream.ErrEmpty
	}, time.Second, 10*time.Millisecond, "event stream must be able to talk to the rewritten address")
}
