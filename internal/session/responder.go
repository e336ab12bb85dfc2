package session

import "context"

// Responder is the transport-facing abstraction a Session sends bytes
// through and uses to trigger disconnect. The session holds this
// capability; the transport holds only a back-reference used to route
// inbound bytes and lifecycle events, never the reverse (spec.md §9 DESIGN
// NOTES: "one-way ownership: session holds an abstract outbound channel
// capability").
type Responder interface {
	// Send writes a fully-built message frame to the wire. It returns an
	// error if the underlying stream has failed.
	Send(ctx context.Context, raw []byte) error

	// Disconnect tears down the underlying connection. reason is used for
	// logging only.
	Disconnect(reason string)
}
