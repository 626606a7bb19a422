package control

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dora-rs/dora-node-go/daemonconn"
	"github.com/dora-rs/dora-node-go/internal/clock"
	"github.com/dora-rs/dora-node-go/internal/protocol"
	"github.com/dora-rs/dora-node-go/internal/testdaemon"
	"github.com/dora-rs/dora-node-go/transport"
)

func dial(t *testing.T, addr string) *daemonconn.DaemonChannel {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	return daemonconn.New(transport.NewFramed(conn))
}

func TestReportClosedOutputsSkipsAlreadyReported(t *testing.T) {
	var received [][]string
	daemon := testdaemon.Start(t, func(req protocol.Request) protocol.Reply {
		require.Equal(t, protocol.KindCloseOutputs, req.Kind)
		received = append(received, req.CloseOutputs.OutputIDs)
		return protocol.Reply{Kind: protocol.ReplyKindEmpty}
	})

	c := New(dial(t, daemon.Addr()), clock.NewHLC(1))

	require.NoError(t, c.ReportClosedOutputs([]string{"a", "b"}))
	require.NoError(t, c.ReportClosedOutputs([]string{"a", "c"}))

	require.Len(t, received, 2)
	assert.ElementsMatch(t, []string{"a", "b"}, received[0])
	assert.ElementsMatch(t, []string{"c"}, received[1])
}

func TestReportClosedOutputsNoopWhenAllAlreadyReported(t *testing.T) {
	calls := 0
	daemon := testdaemon.Start(t, func(req protocol.Request) protocol.Reply {
		calls++
		return protocol.Reply{Kind: protocol.ReplyKindEmpty}
	})

	c := New(dial(t, daemon.Addr()), clock.NewHLC(1))

	require.NoError(t, c.ReportClosedOutputs([]string{"a"}))
	require.NoError(t, c.ReportClosedOutputs([]string{"a"}))

	assert.Equal(t, 1, calls)
}

func TestSendMessagePropagatesDaemonError(t *testing.T) {
	daemon := testdaemon.Start(t, func(req protocol.Request) protocol.Reply {
		return protocol.Reply{Kind: protocol.ReplyKindError, Error: &protocol.ErrorReply{Message: "unknown output"}}
	})

	c := New(dial(t, daemon.Addr()), clock.NewHLC(1))
	err := c.SendMessage("out1", protocol.Metadata{}, nil)
	assert.Error(t, err)
}
