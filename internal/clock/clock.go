// Package clock implements a hybrid logical clock used to timestamp every
// message exchanged between a node and its daemon. It is treated as an
// opaque comparable token by every other package: nothing in this module
// assumes monotonicity stronger than "comparable".
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Timestamp is an opaque, comparable hybrid logical clock reading.
type Timestamp struct {
	WallNanos int64
	Counter   uint32
	NodeID    uint64
}

// Before reports whether ts happened before other under the clock's total order.
func (ts Timestamp) Before(other Timestamp) bool {
	if ts.WallNanos != other.WallNanos {
		return ts.WallNanos < other.WallNanos
	}
	if ts.Counter != other.Counter {
		return ts.Counter < other.Counter
	}
	return ts.NodeID < other.NodeID
}

func (ts Timestamp) String() string {
	return fmt.Sprintf("%d.%d@%x", ts.WallNanos, ts.Counter, ts.NodeID)
}

// HLC is a small hybrid logical clock oracle, shared across node
// subsystems by pointer. Every subsystem mints its own timestamps by
// calling New; the clock does not need external reference counting
// because Go's garbage collector keeps the *HLC alive as long as any
// subsystem holds a pointer to it.
type HLC struct {
	mu      sync.Mutex
	nodeID  uint64
	last    int64
	counter uint32
}

// NewHLC creates a clock oracle identified by nodeID (used only to break
// ties between clocks on different nodes; it carries no other meaning).
func NewHLC(nodeID uint64) *HLC {
	return &HLC{nodeID: nodeID}
}

// New returns a fresh timestamp, guaranteed to be greater than any
// previously minted by this oracle.
func (c *HLC) New() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixNano()
	if now > c.last {
		c.last = now
		c.counter = 0
	} else {
		c.counter++
	}
	return Timestamp{WallNanos: c.last, Counter: c.counter, NodeID: c.nodeID}
}
