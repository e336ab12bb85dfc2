// Package session implements the FIX session-level protocol state machine:
// sequence-number management, the logon/logout handshake, heartbeats and
// test requests, gap detection and resend, and session-time scheduling. It
// consumes parsed messages and periodic ticks and emits outbound messages
// through a Responder, the transport-facing abstraction it owns no
// back-reference to beyond routing inbound bytes and lifecycle events.
package session
