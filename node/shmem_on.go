//go:build !noshmem

// This file holds the shared-memory-dependent half of the node facade:
// the in-flight table, reuse cache, and drop-token drain/wait loops. It
// is compiled out entirely under the noshmem build tag, whose
// counterpart lives in shmem_off.go as a stub with the same method set.
package node

import (
	"time"

	"github.com/pkg/errors"

	"github.com/dora-rs/dora-node-go/dropstream"
	"github.com/dora-rs/dora-node-go/internal/clock"
	"github.com/dora-rs/dora-node-go/internal/protocol"
	"github.com/dora-rs/dora-node-go/logging"
	"github.com/dora-rs/dora-node-go/sample"
	"github.com/dora-rs/dora-node-go/shmpool"
)

// connectDropStream dials the daemon's drop endpoint and starts the
// background polling loop. In the noshmem build (shmem_off.go) this is a
// no-op returning a nil stream, since no drop tokens ever exist.
func connectDropStream(comm protocol.DaemonCommunication, clk *clock.HLC) (*dropstream.DropStream, error) {
	conn, err := dialDaemonConn(comm)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect drop stream")
	}
	return dropstream.Init(conn, clk), nil
}

// shmemState is the shared-memory-dependent state the node facade owns.
type shmemState struct {
	pool       *shmpool.Pool
	dropStream *dropstream.DropStream
	inFlight   map[protocol.DropToken]*shmpool.Region
}

func newShmemState(dropStream *dropstream.DropStream) shmemState {
	return shmemState{
		pool:       shmpool.NewPool(),
		dropStream: dropStream,
		inFlight:   map[protocol.DropToken]*shmpool.Region{},
	}
}

// allocateSample allocates a sample of the given length, choosing a
// shared-memory or heap backing per the zero-copy threshold.
func (n *Node) allocateSample(length int) (*sample.Sample, error) {
	if length >= ZeroCopyThreshold {
		region, err := n.shmem.pool.Allocate(length)
		if err != nil {
			return nil, err
		}
		return sample.NewShared(region, length), nil
	}
	return sample.NewHeap(length), nil
}

// registerFinalizedShared records a freshly sent shared-memory region in
// the in-flight table, keyed by its drop token.
func (n *Node) registerFinalizedShared(shared *sample.Shared) {
	if shared == nil {
		return
	}
	n.shmem.inFlight[shared.DropToken] = shared.Region
}

// drainDropTokens pulls all currently available tokens from the drop
// stream non-blockingly before a send, reclaiming their regions into
// the cache.
func (n *Node) drainDropTokens() error {
	for {
		token, err := n.shmem.dropStream.TryRecv()
		switch err {
		case nil:
			n.reclaimDropToken(token)
		case dropstream.ErrEmpty:
			return nil
		case dropstream.ErrClosed:
			return errDropStreamClosed
		default:
			return err
		}
	}
}

func (n *Node) reclaimDropToken(token protocol.DropToken) {
	region, ok := n.shmem.inFlight[token]
	if !ok {
		logging.L().Warn("received unknown finished drop token", "token", token)
		return
	}
	delete(n.shmem.inFlight, token)
	n.shmem.pool.Return(region)
}

// awaitDropTokensOrTimeout implements teardown step 2:
// while the in-flight table is non-empty, wait up to 500ms per token;
// regions removed here are dropped (freed), not returned to the cache,
// because the node is going away. Regions still in flight when the wait
// ends (timeout, closed stream or error) are freed as well.
func (n *Node) awaitDropTokensOrTimeout() {
	const perTokenTimeout = 500 * time.Millisecond

	defer func() {
		for token, region := range n.shmem.inFlight {
			delete(n.shmem.inFlight, token)
			_ = region.Free()
		}
	}()

	for len(n.shmem.inFlight) > 0 {
		token, err := n.shmem.dropStream.RecvTimeout(perTokenTimeout)
		switch err {
		case nil:
			if region, ok := n.shmem.inFlight[token]; ok {
				delete(n.shmem.inFlight, token)
				_ = region.Free()
			}
		case dropstream.ErrEmpty:
			logging.L().Warn("timeout while waiting for drop tokens; regions may still be in use",
				"remaining", len(n.shmem.inFlight))
			return
		case dropstream.ErrClosed:
			logging.L().Warn("drop stream closed while still waiting for drop tokens; regions may still be in use",
				"remaining", len(n.shmem.inFlight))
			return
		default:
			logging.L().Warn("error waiting for drop tokens; regions may still be in use",
				"remaining", len(n.shmem.inFlight), "error", err)
			return
		}
	}
}

func (n *Node) closeShmem() {
	n.shmem.dropStream.Close()
}

// cacheLen exposes the idle-region cache size, used by tests asserting
// it never exceeds MaxCacheSize.
func (n *Node) cacheLen() int {
	return n.shmem.pool.Len()
}

// inFlightLen exposes the in-flight table size for tests.
func (n *Node) inFlightLen() int {
	return len(n.shmem.inFlight)
}
