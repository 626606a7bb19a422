// Package control implements the control channel: sending outputs and
// lifecycle notifications to the daemon.
package control

import (
	"github.com/pkg/errors"

	"github.com/dora-rs/dora-node-go/daemonconn"
	"github.com/dora-rs/dora-node-go/internal/clock"
	"github.com/dora-rs/dora-node-go/internal/protocol"
)

// ControlChannel sends outputs, closes, and lifecycle notifications.
type ControlChannel struct {
	conn           *daemonconn.DaemonChannel
	clock          *clock.HLC
	reportedClosed map[string]struct{}
}

// New wraps an already-connected DaemonChannel.
func New(conn *daemonconn.DaemonChannel, clk *clock.HLC) *ControlChannel {
	return &ControlChannel{conn: conn, clock: clk, reportedClosed: map[string]struct{}{}}
}

// Close closes the underlying connection.
func (c *ControlChannel) Close() error {
	return c.conn.Close()
}

// SendMessage issues a SendOutput request and expects an Empty reply.
func (c *ControlChannel) SendMessage(outputID string, metadata protocol.Metadata, data *protocol.DataMessage) error {
	reply, err := c.conn.Request(protocol.Timestamped[protocol.Request]{
		Timestamp: c.clock.New(),
		Inner: protocol.Request{
			Kind: protocol.KindSendOutput,
			SendOutput: &protocol.SendOutputRequest{
				OutputID: outputID,
				Metadata: metadata,
				Data:     data,
			},
		},
	})
	if err != nil {
		return err
	}
	return expectEmpty(reply)
}

// ReportClosedOutputs notifies the daemon that the given outputs are
// closed. Outputs previously reported closed are skipped, so a repeated
// call is a no-op for them.
func (c *ControlChannel) ReportClosedOutputs(ids []string) error {
	var fresh []string
	for _, id := range ids {
		if _, already := c.reportedClosed[id]; already {
			continue
		}
		fresh = append(fresh, id)
	}
	if len(fresh) == 0 {
		return nil
	}

	reply, err := c.conn.Request(protocol.Timestamped[protocol.Request]{
		Timestamp: c.clock.New(),
		Inner: protocol.Request{
			Kind:         protocol.KindCloseOutputs,
			CloseOutputs: &protocol.CloseOutputsRequest{OutputIDs: fresh},
		},
	})
	if err != nil {
		return err
	}
	if err := expectEmpty(reply); err != nil {
		return err
	}
	for _, id := range fresh {
		c.reportedClosed[id] = struct{}{}
	}
	return nil
}

// ReportOutputsDone emits the final teardown notification. It is meant
// to be called exactly once, at node teardown.
func (c *ControlChannel) ReportOutputsDone() error {
	reply, err := c.conn.Request(protocol.Timestamped[protocol.Request]{
		Timestamp: c.clock.New(),
		Inner:     protocol.Request{Kind: protocol.KindOutputsDone},
	})
	if err != nil {
		return err
	}
	return expectEmpty(reply)
}

// ReportDropToken notifies the daemon that a shared-memory-backed input
// carrying token has been fully consumed, so the daemon can relay the
// release back to the region's producer.
func (c *ControlChannel) ReportDropToken(token protocol.DropToken) error {
	reply, err := c.conn.Request(protocol.Timestamped[protocol.Request]{
		Timestamp: c.clock.New(),
		Inner: protocol.Request{
			Kind:       protocol.KindReportDrop,
			ReportDrop: &protocol.ReportDropRequest{Token: token},
		},
	})
	if err != nil {
		return err
	}
	return expectEmpty(reply)
}

func expectEmpty(reply protocol.Reply) error {
	switch reply.Kind {
	case protocol.ReplyKindEmpty:
		return nil
	case protocol.ReplyKindError:
		return errors.Errorf("daemon returned error: %s", reply.Error.Message)
	default:
		return errors.Errorf("unexpected reply kind %q from daemon", reply.Kind)
	}
}
