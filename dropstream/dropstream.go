// Package dropstream delivers DropToken acknowledgements the daemon has
// certified released downstream. Mirrors eventstream's
// background-goroutine/channel shape for a single message type.
package dropstream

import (
	"errors"
	"time"

	"github.com/dora-rs/dora-node-go/daemonconn"
	"github.com/dora-rs/dora-node-go/internal/clock"
	"github.com/dora-rs/dora-node-go/internal/protocol"
	"github.com/dora-rs/dora-node-go/logging"
)

// ErrClosed is returned once the stream has terminated.
var ErrClosed = errors.New("drop stream closed")

// ErrEmpty is returned by TryRecv when no token is currently buffered.
var ErrEmpty = errors.New("no drop token available")

// DropStream is a one-way, single-consumer channel of drop tokens.
type DropStream struct {
	tokens chan protocol.DropToken
	done   chan struct{}
	stopCh chan struct{}
}

// Init starts the background polling loop against chanConn, which must
// be a DaemonChannel already connected to the daemon's drop endpoint.
func Init(chanConn *daemonconn.DaemonChannel, clk *clock.HLC) *DropStream {
	ds := &DropStream{
		tokens: make(chan protocol.DropToken, 256),
		done:   make(chan struct{}),
		stopCh: make(chan struct{}),
	}
	go ds.pollLoop(chanConn, clk)
	return ds
}

func (ds *DropStream) pollLoop(conn *daemonconn.DaemonChannel, clk *clock.HLC) {
	defer close(ds.done)
	for {
		select {
		case <-ds.stopCh:
			return
		default:
		}

		reply, err := conn.Request(protocol.Timestamped[protocol.Request]{
			Timestamp: clk.New(),
			Inner:     protocol.Request{Kind: protocol.KindNextDropToken},
		})
		if err != nil {
			logging.L().Debug("drop stream ending", "reason", err)
			return
		}
		if reply.NextDropToken == nil || reply.NextDropToken.Token == nil {
			continue
		}

		select {
		case ds.tokens <- *reply.NextDropToken.Token:
		case <-ds.stopCh:
			return
		}
	}
}

// TryRecv never blocks.
func (ds *DropStream) TryRecv() (protocol.DropToken, error) {
	select {
	case tok, ok := <-ds.tokens:
		if !ok {
			return "", ErrClosed
		}
		return tok, nil
	default:
		select {
		case <-ds.done:
			return "", ErrClosed
		default:
			return "", ErrEmpty
		}
	}
}

// RecvTimeout blocks up to d for the next drop token.
func (ds *DropStream) RecvTimeout(d time.Duration) (protocol.DropToken, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case tok, ok := <-ds.tokens:
		if !ok {
			return "", ErrClosed
		}
		return tok, nil
	case <-timer.C:
		return "", ErrEmpty
	case <-ds.done:
		select {
		case tok, ok := <-ds.tokens:
			if ok {
				return tok, nil
			}
		default:
		}
		return "", ErrClosed
	}
}

// Len reports the number of drop tokens currently buffered.
func (ds *DropStream) Len() int {
	return len(ds.tokens)
}

// Close stops the polling loop. Safe to call multiple times.
func (ds *DropStream) Close() {
	select {
	case <-ds.stopCh:
	default:
		close(ds.stopCh)
	}
}
