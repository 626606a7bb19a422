package dropstream

import (
	"net"
	"testing"
	"time"

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

func TestRecvTimeoutReturnsEmptyWhenNothingDelivered(t *testing.T) {
	daemon := testdaemon.Start(t, func(req protocol.Request) protocol.Reply {
		time.Sleep(5 * time.Millisecond)
		return protocol.Reply{Kind: protocol.ReplyKindNextDropToken, NextDropToken: &protocol.NextDropTokenReply{}}
	})

	ds := Init(dial(t, daemon.Addr()), clock.NewHLC(1))
	defer ds.Close()

	_, err := ds.RecvTimeout(30 * time.Millisecond)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestTryRecvDeliversToken(t *testing.T) {
	delivered := false
	daemon := testdaemon.Start(t, func(req protocol.Request) protocol.Reply {
		if delivered {
			time.Sleep(5 * time.Millisecond)
			return protocol.Reply{Kind: protocol.ReplyKindNextDropToken, NextDropToken: &protocol.NextDropTokenReply{}}
		}
		delivered = true
		tok := protocol.DropToken("tok-1")
		return protocol.Reply{Kind: protocol.ReplyKindNextDropToken, NextDropToken: &protocol.NextDropTokenReply{Token: &tok}}
	})

	ds := Init(dial(t, daemon.Addr()), clock.NewHLC(1))
	defer ds.Close()

	require.Eventually(t, func() bool {
		tok, err := ds.TryRecv()
		return err == nil && tok == protocol.DropToken("tok-1")
	}, time.Second, 10*time.Millisecond)
}
