package daemonconn

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dora-rs/dora-node-go/internal/clock"
	"github.com/dora-rs/dora-node-go/internal/protocol"
	"github.com/dora-rs/dora-node-go/internal/testdaemon"
	"github.com/dora-rs/dora-node-go/transport"
)

func dial(t *testing.T, addr string) *DaemonChannel {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	return New(transport.NewFramed(conn))
}

func TestRequestBinaryReply(t *testing.T) {
	daemon := testdaemon.Start(t, func(req protocol.Request) protocol.Reply {
		require.Equal(t, protocol.KindOutputsDone, req.Kind)
		return protocol.Reply{Kind: protocol.ReplyKindEmpty}
	})

	channel := dial(t, daemon.Addr())
	defer channel.Close()

	clk := clock.NewHLC(1)
	reply, err := channel.Request(protocol.Timestamped[protocol.Request]{
		Timestamp: clk.New(),
		Inner:     protocol.Request{Kind: protocol.KindOutputsDone},
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.ReplyKindEmpty, reply.Kind)
}

func TestRequestTextReply(t *testing.T) {
	daemon := testdaemon.Start(t, func(req protocol.Request) protocol.Reply {
		require.Equal(t, protocol.KindNodeConfig, req.Kind)
		return protocol.Reply{
			Kind: protocol.ReplyKindNodeConfig,
			NodeConfig: &protocol.NodeConfigReply{
				Config: &protocol.NodeConfig{NodeID: req.NodeConfig.NodeID},
			},
		}
	})

	channel := dial(t, daemon.Addr())
	defer channel.Close()

	clk := clock.NewHLC(1)
	reply, err := channel.Request(protocol.Timestamped[protocol.Request]{
		Timestamp: clk.New(),
		Inner: protocol.Request{
			Kind:       protocol.KindNodeConfig,
			NodeConfig: &protocol.NodeConfigRequest{NodeID: "node-a"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, reply.NodeConfig)
	require.NotNil(t, reply.NodeConfig.Config)
	assert.Equal(t, "node-a", reply.NodeConfig.Config.NodeID)
}

func TestRequestServerDisconnectedMapsToSentinel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Close()
	}()

	channel := dial(t, ln.Addr().String())
	defer channel.Close()

	clk := clock.NewHLC(1)
	_, err = channel.Request(protocol.Timestamped[protocol.Request]{
		Timestamp: clk.New(),
		Inner:     protocol.Request{Kind: protocol.KindOutputsDone},
	})
	assert.ErrorIs(t, err, ErrServerDisconnected)
}
