// Package eventstream delivers ordered input/control events from the
// daemon to the node in daemon-send order. A background
// goroutine owns a dedicated daemon connection, repeatedly issuing
// NextEvent requests and fanning the resulting events out onto a
// buffered channel the node's owner drains with Recv/TryRecv/RecvTimeout,
// grounded on SagerNet-smux's recvLoop-feeds-a-channel shape.
package eventstream

import (
	"errors"
	"sync"
	"time"

	"github.com/dora-rs/dora-node-go/arrowdata"
	"github.com/dora-rs/dora-node-go/daemonconn"
	"github.com/dora-rs/dora-node-go/internal/clock"
	"github.com/dora-rs/dora-node-go/internal/protocol"
	"github.com/dora-rs/dora-node-go/logging"
)

// ErrNotInput is returned by Resolve when called on a non-Input event.
var ErrNotInput = errors.New("event carries no input data to resolve")

// ErrClosed is returned by Recv/TryRecv/RecvTimeout once the stream has
// terminated.
var ErrClosed = errors.New("event stream closed")

// ErrEmpty is returned by TryRecv when no event is currently buffered.
var ErrEmpty = errors.New("no event available")

// DropNotifier is invoked by Ack for every shared-memory-backed Input
// event once the caller has finished with its data, so the node facade
// can route the drop token back to the daemon. Installed via
// SetDropNotifier rather than at Init, to avoid a direct dependency
// from eventstream onto the control channel (the control channel isn't
// constructed until after the event stream is).
type DropNotifier func(protocol.DropToken)

// EventStream is a one-way, single-consumer channel of daemon events.
type EventStream struct {
	events chan protocol.Event
	done   chan struct{}
	stopCh chan struct{}

	notifyMu sync.RWMutex
	notify   DropNotifier
}

// SetDropNotifier installs the callback Ack uses to report finished
// shared-memory-backed inputs back to the daemon. The node facade wires
// this once its control channel is available, after Init returns.
func (es *EventStream) SetDropNotifier(notify DropNotifier) {
	es.notifyMu.Lock()
	es.notify = notify
	es.notifyMu.Unlock()
}

// Ack reports that the caller is finished with ev's data. For Input
// events backed by shared memory this forwards the drop token to the
// daemon via the injected DropNotifier so the producer can reclaim the
// region; for every other event kind it is a no-op.
func (es *EventStream) Ack(ev protocol.Event) {
	if ev.Kind != protocol.EventKindInput || ev.Input == nil {
		return
	}
	if ev.Input.RawData.Kind != protocol.DataMessageSharedMemory || ev.Input.RawData.SharedMemory == nil {
		return
	}

	es.notifyMu.RLock()
	notify := es.notify
	es.notifyMu.RUnlock()
	if notify != nil {
		notify(ev.Input.RawData.SharedMemory.DropToken)
	}
}

// Resolve maps ev's raw data onto an accessible byte slice plus the
// BufferOwner that keeps it alive, attaching the backing shared-memory
// region if ev was transmitted that way. The caller must call the
// returned BufferOwner's Release exactly once after it is done with the
// bytes (and with any Arrow array arrowdata.Reconstruct built on top of
// them) — for a shared-memory Input this unmaps the attached region;
// for every other case it is a no-op. Ack, not Release, is what tells
// the daemon the region may be reused; call both.
func (es *EventStream) Resolve(ev protocol.Event) ([]byte, arrowdata.BufferOwner, error) {
	if ev.Kind != protocol.EventKindInput || ev.Input == nil {
		return nil, nil, ErrNotInput
	}
	return arrowdata.Resolve(ev.Input.RawData)
}

// Init starts the background polling loop against chanConn, which must be a
// DaemonChannel already connected to the daemon's event endpoint.
func Init(chanConn *daemonconn.DaemonChannel, clk *clock.HLC) *EventStream {
	es := &EventStream{
		events: make(chan protocol.Event, 256),
		done:   make(chan struct{}),
		stopCh: make(chan struct{}),
	}
	go es.pollLoop(chanConn, clk)
	return es
}

func (es *EventStream) pollLoop(conn *daemonconn.DaemonChannel, clk *clock.HLC) {
	defer close(es.done)
	for {
		select {
		case <-es.stopCh:
			return
		default:
		}

		reply, err := conn.Request(protocol.Timestamped[protocol.Request]{
			Timestamp: clk.New(),
			Inner:     protocol.Request{Kind: protocol.KindNextEvent},
		})
		if err != nil {
			logging.L().Debug("event stream ending", "reason", err)
			return
		}
		if reply.Kind == protocol.ReplyKindError {
			logging.L().Warn("daemon reported error on event stream", "message", reply.Error.Message)
			return
		}
		if reply.NextEvent == nil {
			continue
		}

		for _, ev := range reply.NextEvent.Events {
			if ev.Kind == protocol.EventKindStop {
				select {
				case es.events <- ev:
				default:
				}
				return
			}
			select {
			case es.events <- ev:
			case <-es.stopCh:
				return
			}
		}
	}
}

// Recv blocks until an event arrives or the stream closes.
func (es *EventStream) Recv() (protocol.Event, error) {
	select {
	case ev, ok := <-es.events:
		if !ok {
			return protocol.Event{}, ErrClosed
		}
		return ev, nil
	case <-es.done:
		select {
		case ev, ok := <-es.events:
			if ok {
				return ev, nil
			}
		default:
		}
		return protocol.Event{}, ErrClosed
	}
}

// TryRecv never blocks.
func (es *EventStream) TryRecv() (protocol.Event, error) {
	select {
	case ev, ok := <-es.events:
		if !ok {
			return protocol.Event{}, ErrClosed
		}
		return ev, nil
	default:
		select {
		case <-es.done:
			return protocol.Event{}, ErrClosed
		default:
			return protocol.Event{}, ErrEmpty
		}
	}
}

// RecvTimeout blocks up to d for the next event.
func (es *EventStream) RecvTimeout(d time.Duration) (protocol.Event, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case ev, ok := <-es.events:
		if !ok {
			return protocol.Event{}, ErrClosed
		}
		return ev, nil
	case <-timer.C:
		return protocol.Event{}, ErrEmpty
	case <-es.done:
		select {
		case ev, ok := <-es.events:
			if ok {
				return ev, nil
			}
		default:
		}
		return protocol.Event{}, ErrClosed
	}
}

// Close stops the polling loop. Safe to call multiple times.
func (es *EventStream) Close() {
	select {
	case <-es.stopCh:
	default:
		close(es.stopCh)
	}
}
