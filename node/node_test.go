package node

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dora-rs/dora-node-go/internal/protocol"
	"github.com/dora-rs/dora-node-go/internal/testdaemon"
)

// fakeDaemonState is a small in-memory daemon: it accepts SendOutput
// requests unconditionally and lets the test control exactly when (or
// whether) a drop token is handed back over the drop stream, so tests
// can exercise both the reclaim path and the teardown timeout path.
type fakeDaemonState struct {
	mu         sync.Mutex
	pending    []protocol.DropToken
	deliver    bool
	outputsLog []string
}

func (s *fakeDaemonState) handle(req protocol.Request) protocol.Reply {
	switch req.Kind {
	case protocol.KindNextEvent:
		time.Sleep(2 * time.Millisecond)
		return protocol.Reply{Kind: protocol.ReplyKindNextEvent, NextEvent: &protocol.NextEventReply{}}
	case protocol.KindNextDropToken:
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.deliver || len(s.pending) == 0 {
			time.Sleep(2 * time.Millisecond)
			return protocol.Reply{Kind: protocol.ReplyKindNextDropToken, NextDropToken: &protocol.NextDropTokenReply{}}
		}
		token := s.pending[0]
		s.pending = s.pending[1:]
		return protocol.Reply{Kind: protocol.ReplyKindNextDropToken, NextDropToken: &protocol.NextDropTokenReply{Token: &token}}
	case protocol.KindSendOutput:
		s.mu.Lock()
		s.outputsLog = append(s.outputsLog, req.SendOutput.OutputID)
		if req.SendOutput.Data != nil && req.SendOutput.Data.Kind == protocol.DataMessageSharedMemory {
			s.pending = append(s.pending, req.SendOutput.Data.SharedMemory.DropToken)
		}
		s.mu.Unlock()
		return protocol.Reply{Kind: protocol.ReplyKindEmpty}
	default:
		return protocol.Reply{Kind: protocol.ReplyKindEmpty}
	}
}

func startTestNode(t *testing.T, outputs []string) (*Node, *fakeDaemonState) {
	t.Helper()
	state := &fakeDaemonState{}
	daemon := testdaemon.Start(t, state.handle)

	cfg := protocol.NodeConfig{
		DataflowID: "flow-1",
		NodeID:     "node-1",
		RunConfig:  protocol.NodeRunConfig{Outputs: outputs},
		DaemonCommunication: protocol.DaemonCommunication{
			Kind: protocol.DaemonCommTCP,
			Tcp:  &protocol.TCPDaemonCommunication{SocketAddr: daemon.Addr()},
		},
	}

	n, events, err := Init(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		events.Close()
		_ = n.Close()
	})
	return n, state
}

func TestSendOutputBytesSmallEchoesOverControlChannel(t *testing.T) {
	n, state := startTestNode(t, []string{"out1"})

	err := n.SendOutputBytes("out1", nil, []byte("hello"))
	require.NoError(t, err)

	state.mu.Lock()
	defer state.mu.Unlock()
	assert.Equal(t, []string{"out1"}, state.outputsLog)
	assert.Zero(t, n.cacheLen(), "small payloads stay on the heap, never touching the shmem cache")
}

func TestSendOutputUnknownOutputIsRejected(t *testing.T) {
	n, _ := startTestNode(t, []string{"out1"})

	err := n.SendOutputBytes("not-declared", nil, []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownOutput)
}

func TestLargeOutputReclaimsDropTokenOnNextSend(t *testing.T) {
	n, state := startTestNode(t, []string{"out1"})

	big := make([]byte, ZeroCopyThreshold+1)
	require.NoError(t, n.SendOutputBytes("out1", nil, big))
	assert.Equal(t, 1, n.inFlightLen())

	state.mu.Lock()
	state.deliver = true
	state.mu.Unlock()

	require.Eventually(t, func() bool {
		if err := n.SendOutputBytes("out1", nil, []byte("tiny")); err != nil {
			return false
		}
		return n.inFlightLen() == 0
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, n.cacheLen(), "the reclaimed region must return to the reuse cache")
}

func TestCacheNeverExceedsMaxSizeAcrossManySends(t *testing.T) {
	n, state := startTestNode(t, []string{"out1"})
	state.mu.Lock()
	state.deliver = true
	state.mu.Unlock()

	for i := 0; i < 21; i++ {
		big := make([]byte, ZeroCopyThreshold+1)
		require.NoError(t, n.SendOutputBytes("out1", nil, big))

		require.Eventually(t, func() bool {
			if err := n.SendOutputBytes("out1", nil, []byte("tiny")); err != nil {
				return false
			}
			return n.inFlightLen() == 0
		}, time.Second, 10*time.Millisecond)
	}

	assert.LessOrEqual(t, n.cacheLen(), 20)
}

func TestTeardownTimesOutOnStuckDropToken(t *testing.T) {
	n, _ := startTestNode(t, []string{"out1"})

	big := make([]byte, ZeroCopyThreshold+1)
	require.NoError(t, n.SendOutputBytes("out1", nil, big))
	require.Equal(t, 1, n.inFlightLen())

	start := time.Now()
	require.NoError(t, n.Close())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second, "teardown must not block indefinitely on an unreclaimed token")
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond, "teardown should honor the per-token wait before giving up")
}

func TestCloseOutputsRejectsUnknownID(t *testing.T) {
	n, _ := startTestNode(t, []string{"out1"})

	err := n.CloseOutputs([]string{"out1", "missing"})
	assert.ErrorIs(t, err, ErrUnknownOutput)
	assert.Contains(t, n.Outputs(), "out1", "a rejected batch must not partially close outputs")
}

func TestCloseOutputsRemovesDeclaredIDs(t *testing.T) {
	n, _ := startTestNode(t, []string{"out1", "out2"})

	require.NoError(t, n.CloseOutputs([]string{"out1"}))
	assert.NotContains(t, n.Outputs(), "out1")
	assert.Contains(t, n.Outputs(), "out2")
}
