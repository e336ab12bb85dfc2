package dict

import (
	"fmt"

	"github.com/dantte-lp/gofix/internal/fixmsg"
)

// SessionRejectReason enumerates the FIX SessionRejectReason(373) values
// used when the engine generates a session-level Reject(3) (spec.md §7:
// "generate session-level Reject (3) with the appropriate
// SessionRejectReason"). The full table is carried from the FIX
// specification even though spec.md's distillation only names a subset
// (SPEC_FULL.md §4.5).
type SessionRejectReason int

const (
	RejectInvalidTagNumber               SessionRejectReason = 0
	RejectRequiredTagMissing             SessionRejectReason = 1
	RejectTagNotDefinedForMessage        SessionRejectReason = 2
	RejectUndefinedTag                   SessionRejectReason = 3
	RejectTagSpecifiedWithoutValue       SessionRejectReason = 4
	RejectValueIncorrect                 SessionRejectReason = 5
	RejectIncorrectDataFormat            SessionRejectReason = 6
	RejectDecryptionProblem              SessionRejectReason = 7
	RejectSignatureProblem               SessionRejectReason = 8
	RejectCompIDProblem                  SessionRejectReason = 9
	RejectSendingTimeAccuracyProblem     SessionRejectReason = 10
	RejectInvalidMsgType                 SessionRejectReason = 11
	RejectXMLValidationError             SessionRejectReason = 12
	RejectTagAppearsMoreThanOnce         SessionRejectReason = 13
	RejectTagSpecifiedOutOfOrder         SessionRejectReason = 14
	RejectRepeatingGroupFieldsOutOfOrder SessionRejectReason = 15
	RejectIncorrectNumInGroupCount       SessionRejectReason = 16
	RejectNonDataValueIncludesDelimiter  SessionRejectReason = 17
	RejectOther                          SessionRejectReason = 99
)

var sessionRejectReasonText = map[SessionRejectReason]string{
	RejectInvalidTagNumber:               "invalid tag number",
	RejectRequiredTagMissing:             "required tag missing",
	RejectTagNotDefinedForMessage:        "tag not defined for this message type",
	RejectUndefinedTag:                   "undefined tag",
	RejectTagSpecifiedWithoutValue:       "tag specified without a value",
	RejectValueIncorrect:                 "value is incorrect (out of range) for this tag",
	RejectIncorrectDataFormat:            "incorrect data format for value",
	RejectDecryptionProblem:              "decryption problem",
	RejectSignatureProblem:               "signature problem",
	RejectCompIDProblem:                  "CompID problem",
	RejectSendingTimeAccuracyProblem:     "sending time accuracy problem",
	RejectInvalidMsgType:                 "invalid MsgType",
	RejectXMLValidationError:             "XML validation error",
	RejectTagAppearsMoreThanOnce:         "tag appears more than once",
	RejectTagSpecifiedOutOfOrder:         "tag specified out of order",
	RejectRepeatingGroupFieldsOutOfOrder: "repeating group fields out of order",
	RejectIncorrectNumInGroupCount:       "incorrect NumInGroup count for repeating group",
	RejectNonDataValueIncludesDelimiter:  "non-data value includes field delimiter (SOH character)",
	RejectOther:                          "other",
}

// String returns the human-readable description of the reject reason.
func (r SessionRejectReason) String() string {
	if s, ok := sessionRejectReasonText[r]; ok {
		return s
	}
	return fmt.Sprintf("Unknown(%d)", int(r))
}

// ValidationError reports one dictionary validation failure against a
// specific message: its MsgType, the reject reason, the offending tag (0 if
// not tag-specific), and a human-readable explanation.
type ValidationError struct {
	MsgType string
	Reason  SessionRejectReason
	Tag     fixmsg.Tag
	Text    string
}

func (e *ValidationError) Error() string {
	if e.Tag != 0 {
		return fmt.Sprintf("dict: %s: %s (tag %d): %s", e.MsgType, e.Reason, e.Tag, e.Text)
	}
	return fmt.Sprintf("dict: %s: %s: %s", e.MsgType, e.Reason, e.Text)
}
