// Package core holds the interfaces and error taxonomy shared between the
// application layer and the transport adapters.
package core

// Frame is a raw binary wire payload.
type Frame []byte

// Conn is a live transport endpoint. Owned by the adapter; the adapter must
// Close() it. TrySend is non-blocking and may drop under backpressure.
type Conn interface {
	TrySend(Frame) error
	Close()
}
