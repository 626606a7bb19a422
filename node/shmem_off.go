//go:build noshmem

// Disabled-mode counterpart to shmem_on.go: no in-flight table, no drop
// stream, no cache, no shared-memory data-sample variant exist in this
// build.
package node

import (
	"github.com/dora-rs/dora-node-go/dropstream"
	"github.com/dora-rs/dora-node-go/internal/clock"
	"github.com/dora-rs/dora-node-go/internal/protocol"
	"github.com/dora-rs/dora-node-go/sample"
)

// connectDropStream is a no-op in the noshmem build: no drop-stream
// connection is ever opened, since no shared-memory regions are ever
// sent.
func connectDropStream(comm protocol.DaemonCommunication, clk *clock.HLC) (*dropstream.DropStream, error) {
	return nil, nil
}

type shmemState struct{}

// newShmemState ignores dropStream: the noshmem build never opens a
// drop-stream connection in the first place (see node/node.go's Init).
func newShmemState(dropStream *dropstream.DropStream) shmemState {
	return shmemState{}
}

func (n *Node) allocateSample(length int) (*sample.Sample, error) {
	return sample.NewHeap(length), nil
}

func (n *Node) registerFinalizedShared(shared *sample.Shared) {}

func (n *Node) drainDropTokens() error { return nil }

func (n *Node) awaitDropTokensOrTimeout() {}

func (n *Node) closeShmem() {}

func (n *Node) cacheLen() int { return 0 }

func (n *Node) inFlightLen() int { return 0 }
