package core

import "errors"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Frame is one encoded outbound event.
type Frame []byte

// SignalConnection abstracts a connection's outbound queue.
// Owned by the adapter; the adapter must Close() it.
// TrySend never blocks: a full queue returns ErrBackpressure and a closed
// connection returns ErrConnClosed.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
