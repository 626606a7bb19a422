// Package transport implements the length-framed wire format shared by
// every node<->daemon connection: an 8-byte little-endian length prefix
// followed by exactly that many payload bytes. It is
// grounded on SagerNet-smux's session.go frame header encoding and
// sendLoop, simplified from smux's multiplexed-stream session down to a
// single request/reply or push stream of frames, and uses
// github.com/sagernet/sing's vectorised writer for scatter-gather sends
// when the underlying connection supports it.
package transport

import (
	"encoding/binary"
	"io"
	"net"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sagernet/sing/common/bufio"
)

const lengthPrefixSize = 8

// Framed wraps a reliable, ordered byte-stream endpoint (a TCP
// connection to the daemon) with the length-prefixed Send/Receive pair
// describes. No escaping, no compression, no checksumming:
// the transport is assumed reliable and in-order.
type Framed struct {
	conn net.Conn
}

// NewFramed wraps conn. The caller retains ownership of conn's lifecycle
// (Framed.Close closes it).
func NewFramed(conn net.Conn) *Framed {
	return &Framed{conn: conn}
}

// Close closes the underlying connection.
func (f *Framed) Close() error {
	return f.conn.Close()
}

// Conn returns the wrapped connection, e.g. so callers can read its
// LocalAddr/RemoteAddr for the bootstrap IP-rewrite step.
func (f *Framed) Conn() net.Conn {
	return f.conn
}

// Send writes a single length-prefixed frame: length header, then
// payload, flushed immediately (a net.Conn has no internal buffering to
// flush, so this call is unbuffered by construction).
func (f *Framed) Send(payload []byte) error {
	var header [lengthPrefixSize]byte
	binary.LittleEndian.PutUint64(header[:], uint64(len(payload)))

	if bw, ok := bufio.CreateVectorisedWriter(f.conn); ok {
		vec := [][]byte{header[:], payload}
		if _, err := bufio.WriteVectorised(bw, vec); err != nil {
			return errors.Wrap(err, "failed to write frame")
		}
		return nil
	}

	if _, err := f.conn.Write(header[:]); err != nil {
		return errors.Wrap(err, "failed to write frame length")
	}
	if len(payload) > 0 {
		if _, err := f.conn.Write(payload); err != nil {
			return errors.Wrap(err, "failed to write frame payload")
		}
	}
	return nil
}

// Receive reads one length-prefixed frame. A clean disconnection while
// reading the length header is reported as ErrStreamEnded, not an
// error: it is the expected signal that the peer is gone.
func (f *Framed) Receive() ([]byte, error) {
	var header [lengthPrefixSize]byte
	if _, err := io.ReadFull(f.conn, header[:]); err != nil {
		if isCleanDisconnect(err) {
			return nil, ErrStreamEnded
		}
		return nil, errors.Wrap(err, "failed to read frame length")
	}

	length := binary.LittleEndian.Uint64(header[:])
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(f.conn, payload); err != nil {
			if isCleanDisconnect(err) {
				return nil, ErrStreamEnded
			}
			return nil, errors.Wrap(err, "failed to read frame payload")
		}
	}
	return payload, nil
}

// isCleanDisconnect reports whether err represents the peer going away
// rather than some other I/O failure: EOF (full frame never arrived),
// a read/write on an already-closed connection, or the connection
// having been reset/aborted out from under us. Any other *net.OpError
// (e.g. a timeout, or a syscall error unrelated to disconnection) is
// left to the caller as a real error instead of being swallowed here.
func isCleanDisconnect(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED)
}
