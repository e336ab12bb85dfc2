package session

import "fmt"

// ID identifies a session by its FIX counterparty identity (spec.md §3:
// "SessionID"). Sub/Location qualifiers are included when an interop
// partner distinguishes multiple logical sessions under the same CompIDs.
type ID struct {
	BeginString string

	SenderCompID     string
	SenderSubID      string
	SenderLocationID string

	TargetCompID     string
	TargetSubID      string
	TargetLocationID string
}

// String renders ID in the conventional colon-delimited form used in logs
// and as a map key.
func (id ID) String() string {
	return fmt.Sprintf("%s:%s%s%s->%s%s%s",
		id.BeginString,
		id.SenderCompID, subPart(id.SenderSubID), subPart(id.SenderLocationID),
		id.TargetCompID, subPart(id.TargetSubID), subPart(id.TargetLocationID),
	)
}

func subPart(s string) string {
	if s == "" {
		return ""
	}
	return "/" + s
}

// Reversed returns the ID as seen from the counterparty's side: Sender and
// Target swapped. An acceptor uses this to derive the expected local
// identity from an inbound Logon's header (spec.md §4.6: "derives SessionID
// by reversing its CompIDs").
func (id ID) Reversed() ID {
	return ID{
		BeginString:      id.BeginString,
		SenderCompID:     id.TargetCompID,
		SenderSubID:      id.TargetSubID,
		SenderLocationID: id.TargetLocationID,
		TargetCompID:     id.SenderCompID,
		TargetSubID:      id.SenderSubID,
		TargetLocationID: id.SenderLocationID,
	}
}
