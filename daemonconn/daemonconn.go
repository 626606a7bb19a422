// Package daemonconn implements the typed request/reply wrapper over a
// transport.Framed connection: serialize with the binary compact codec,
// send, and (if the request expects one) receive and decode a reply with
// whichever serializer the request variant declares.
package daemonconn

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dora-rs/dora-node-go/internal/protocol"
	"github.com/dora-rs/dora-node-go/transport"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrServerDisconnected is returned when the daemon closes the
// connection cleanly right after a request that expected a reply.
var ErrServerDisconnected = errors.New("server disconnected unexpectedly")

// DaemonChannel is a thin typed wrapper over a single TCP connection to
// the daemon.
type DaemonChannel struct {
	framed *transport.Framed
}

// New wraps an already-established connection to the daemon.
func New(framed *transport.Framed) *DaemonChannel {
	return &DaemonChannel{framed: framed}
}

// Close closes the underlying connection.
func (c *DaemonChannel) Close() error {
	return c.framed.Close()
}

// Request implements steps 1-4.
func (c *DaemonChannel) Request(req protocol.Timestamped[protocol.Request]) (protocol.Reply, error) {
	serialized, err := msgpack.Marshal(&req)
	if err != nil {
		return protocol.Reply{}, errors.Wrap(err, "failed to serialize request")
	}
	if err := c.framed.Send(serialized); err != nil {
		return protocol.Reply{}, errors.Wrap(err, "failed to send request")
	}

	switch req.Inner.ExpectedReply() {
	case protocol.ReplyNone:
		return protocol.Reply{Kind: protocol.ReplyKindEmpty}, nil
	case protocol.ReplyBinary:
		return c.receiveReply(decodeBinary)
	case protocol.ReplyText:
		return c.receiveReply(decodeText)
	default:
		return protocol.Reply{Kind: protocol.ReplyKindEmpty}, nil
	}
}

func (c *DaemonChannel) receiveReply(decode func([]byte) (protocol.Reply, error)) (protocol.Reply, error) {
	raw, err := c.framed.Receive()
	if err != nil {
		if errors.Is(err, transport.ErrStreamEnded) {
			return protocol.Reply{}, ErrServerDisconnected
		}
		return protocol.Reply{}, errors.Wrap(err, "failed to receive reply")
	}

	reply, err := decode(raw)
	if err != nil {
		return protocol.Reply{}, errors.Wrap(err, "failed to deserialize reply")
	}
	return reply, nil
}

func decodeBinary(raw []byte) (protocol.Reply, error) {
	var reply protocol.Reply
	if err := msgpack.Unmarshal(raw, &reply); err != nil {
		return protocol.Reply{}, err
	}
	return reply, nil
}

func decodeText(raw []byte) (protocol.Reply, error) {
	var reply protocol.Reply
	if err := jsonAPI.Unmarshal(raw, &reply); err != nil {
		return protocol.Reply{}, err
	}
	return reply, nil
}
