// Package transport carries a FIX session over a persistent TCP connection:
// Conn adapts net.Conn to session.Responder and drives the inbound read
// pump, Acceptor listens for and dispatches inbound connections to
// registered sessions by their reversed identity, and Initiator dials out,
// satisfying registry.Dialer.
package transport
