package node

import "github.com/dora-rs/dora-node-go/logging"

// Close implements teardown. Go has no reliable destructor
// equivalent to Rust's Drop, so callers are expected to `defer
// node.Close()`; Close is idempotent.
func (n *Node) Close() error {
	if n.closed {
		return nil
	}
	n.closed = true

	// Step 1: best-effort, close all remaining declared outputs first so
	// subscribers are notified as early as possible.
	remaining := n.Outputs()
	if len(remaining) > 0 {
		if err := n.control.ReportClosedOutputs(remaining); err != nil {
			logging.L().Warn("failed to close outputs on teardown", "error", err)
		}
	}

	// Step 2: wait (bounded) for outstanding shared-memory regions to be
	// reclaimed by the daemon.
	n.awaitDropTokensOrTimeout()

	// Step 3: best-effort final notification.
	if err := n.control.ReportOutputsDone(); err != nil {
		logging.L().Warn("failed to report outputs done on teardown", "error", err)
	}

	n.events.Close()
	n.closeShmem()
	_ = n.control.Close()

	return nil
}
