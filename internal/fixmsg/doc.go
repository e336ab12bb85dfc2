// Package fixmsg implements the FIX tag=value wire format: field storage
// (FieldMap), the Message container (header/body/trailer plus repeating
// groups), and the incremental Framer that splits a byte stream into raw
// message strings.
//
// This is the leaf layer of the session engine. Nothing in this package
// knows about sequence numbers, sessions, or the state machine in
// internal/session -- it only knows how to read and write FIX bytes.
package fixmsg
