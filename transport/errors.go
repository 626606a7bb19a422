package transport

import "errors"

// ErrStreamEnded signals a clean end-of-stream where more data was
// expected. Per this is not an error condition in itself —
// callers decide whether a clean stream end is fatal for their protocol
// step.
var ErrStreamEnded = errors.New("stream ended")
