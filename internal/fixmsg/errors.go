package fixmsg

import "errors"

// Sentinel errors for FieldMap/Message/Framer operations.
var (
	// ErrFieldNotFound indicates a requested tag is absent from the FieldMap,
	// or a requested group index is out of range (spec.md DESIGN NOTES: group
	// indexing is 1-based throughout, including out-of-range reporting).
	ErrFieldNotFound = errors.New("fixmsg: field not found")

	// ErrInvalidFieldValue indicates a field's raw value cannot be converted
	// to the requested type (int, float, time, bool).
	ErrInvalidFieldValue = errors.New("fixmsg: invalid field value")

	// ErrParse indicates the framer or message parser found bytes that do
	// not form a well-formed FIX message. Recoverable: the framer resyncs
	// past it and continues (spec.md §4.1, §7).
	ErrParse = errors.New("fixmsg: parse error")

	// ErrBodyLength indicates the BodyLength(9) field does not match the
	// actual number of bytes between the end of "9=...<SOH>" and the <SOH>
	// preceding "10=" (spec.md §3, §4.1).
	ErrBodyLength = errors.New("fixmsg: body length mismatch")

	// ErrChecksum indicates the CheckSum(10) trailer field does not match
	// the sum of all preceding bytes modulo 256 (spec.md §3, §4.1).
	ErrChecksum = errors.New("fixmsg: checksum mismatch")
)
