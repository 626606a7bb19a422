package node

import "github.com/pkg/errors"

// ErrUnknownOutput is returned when a caller tries to send or close an
// output id that is not in the node's declared output set.
var ErrUnknownOutput = errors.New("unknown output")

// errDropStreamClosed is returned internally by drainDropTokens when the
// drop stream has closed before all expected tokens arrived.
var errDropStreamClosed = errors.New("drop stream was closed before sending all expected drop tokens")
