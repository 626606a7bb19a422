// Package node implements the node facade: it
// coordinates the framed transport, daemon channel, event/drop streams,
// control channel and shared-memory pool behind a single type, enforces
// the declared output schema, and owns the node's lifecycle.
package node

import (
	"runtime"

	"github.com/pkg/errors"

	"github.com/dora-rs/dora-node-go/control"
	"github.com/dora-rs/dora-node-go/eventstream"
	"github.com/dora-rs/dora-node-go/internal/clock"
	"github.com/dora-rs/dora-node-go/internal/protocol"
	"github.com/dora-rs/dora-node-go/logging"
)

// Node coordinates every node<->daemon subsystem and enforces output
// schema and lifecycle. It is not safe for concurrent
// use: all operations require the exclusive access of a single owning
// goroutine.
type Node struct {
	id                 string
	dataflowID         string
	outputs            map[string]struct{}
	control            *control.ControlChannel
	events             *eventstream.EventStream
	clock              *clock.HLC
	dataflowDescriptor map[string]any
	shmem              shmemState
	closed             bool
}

// Init constructs a node from an already-resolved NodeConfig, wiring up
// the event stream, drop stream (when shmem is enabled) and control
// channel, and returns the node plus the event stream the caller reads
// input events from.
func Init(cfg protocol.NodeConfig) (*Node, *eventstream.EventStream, error) {
	clk := clock.NewHLC(hashNodeID(cfg.NodeID))

	eventConn, err := dialDaemonConn(cfg.DaemonCommunication)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to init event stream")
	}
	events := eventstream.Init(eventConn, clk)

	dropStream, err := connectDropStream(cfg.DaemonCommunication, clk)
	if err != nil {
		events.Close()
		return nil, nil, errors.Wrap(err, "failed to init drop stream")
	}

	controlConn, err := dialDaemonConn(cfg.DaemonCommunication)
	if err != nil {
		events.Close()
		return nil, nil, errors.Wrap(err, "failed to init control channel")
	}
	controlChannel := control.New(controlConn, clk)
	events.SetDropNotifier(func(token protocol.DropToken) {
		if err := controlChannel.ReportDropToken(token); err != nil {
			logging.L().Warn("failed to report drop token for consumed input", "error", err)
		}
	})

	outputs := make(map[string]struct{}, len(cfg.RunConfig.Outputs))
	for _, id := range cfg.RunConfig.Outputs {
		outputs[id] = struct{}{}
	}

	n := &Node{
		id:                 cfg.NodeID,
		dataflowID:         cfg.DataflowID,
		outputs:            outputs,
		control:            controlChannel,
		events:             events,
		clock:              clk,
		dataflowDescriptor: cfg.DataflowDescriptor,
		shmem:              newShmemState(dropStream),
	}

	// Best-effort backstop for a node that is never explicitly closed:
	// logs rather than tearing anything down itself, since by the time
	// the finalizer runs the daemon connections may already be gone and
	// there is no safe way to run Close's network round-trips from a
	// finalizer goroutine. Grounded on SagerNet-smux's
	// runtime.SetFinalizer use in AcceptStream/OpenStream.
	runtime.SetFinalizer(n, func(n *Node) {
		if !n.closed {
			logging.L().Warn("node garbage collected without being closed", "node_id", n.id)
		}
	})

	return n, events, nil
}

// ID returns the node's identifier.
func (n *Node) ID() string { return n.id }

// DataflowID returns the dataflow this node belongs to.
func (n *Node) DataflowID() string { return n.dataflowID }

// DataflowDescriptor returns the opaque, already-parsed dataflow graph
// this node is part of.
func (n *Node) DataflowDescriptor() map[string]any { return n.dataflowDescriptor }

// Outputs returns the currently declared output ids.
func (n *Node) Outputs() []string {
	ids := make([]string, 0, len(n.outputs))
	for id := range n.outputs {
		ids = append(ids, id)
	}
	return ids
}

// CloseOutputs removes each id from the declared output set (failing on
// an unknown id) and notifies the daemon.
func (n *Node) CloseOutputs(ids []string) error {
	for _, id := range ids {
		if _, ok := n.outputs[id]; !ok {
			return errors.Wrapf(ErrUnknownOutput, "output %q", id)
		}
	}
	for _, id := range ids {
		delete(n.outputs, id)
	}
	return n.control.ReportClosedOutputs(ids)
}

func hashNodeID(id string) uint64 {
	var h uint64 = 14695981039346656037 // FNV-1a offset basis
	for i := 0; i < len(id); i++ {
		h ^= uint64(id[i])
		h *= 1099511628211
	}
	return h
}
