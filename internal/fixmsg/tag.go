package fixmsg

// Tag identifies a FIX field by its numeric tag (FIX tag=value encoding).
type Tag int

// Header tags (FIX 4.0-4.4, FIXT.1.1 transport header).
const (
	TagBeginString            Tag = 8
	TagBodyLength             Tag = 9
	TagMsgType                Tag = 35
	TagSenderCompID           Tag = 49
	TagSenderSubID            Tag = 50
	TagSenderLocationID       Tag = 142
	TagTargetCompID           Tag = 56
	TagTargetSubID            Tag = 57
	TagTargetLocationID       Tag = 143
	TagOnBehalfOfCompID       Tag = 115
	TagDeliverToCompID        Tag = 128
	TagSecureDataLen          Tag = 90
	TagSecureData             Tag = 91
	TagMsgSeqNum              Tag = 34
	TagPossDupFlag            Tag = 43
	TagPossResend             Tag = 97
	TagSendingTime            Tag = 52
	TagOrigSendingTime        Tag = 122
	TagXmlDataLen             Tag = 212
	TagXmlData                Tag = 213
	TagMessageEncoding        Tag = 347
	TagLastMsgSeqNumProcessed Tag = 369
	TagApplVerID              Tag = 1128
	TagCstmApplVerID          Tag = 1129
)

// Trailer tags.
const (
	TagSignatureLength Tag = 93
	TagSignature       Tag = 89
	TagCheckSum        Tag = 10
)

// Session-level (admin) message body tags.
const (
	TagEncryptMethod         Tag = 98
	TagHeartBtInt            Tag = 108
	TagRawDataLength         Tag = 95
	TagRawData               Tag = 96
	TagResetSeqNumFlag       Tag = 141
	TagNextExpectedMsgSeqNum Tag = 789
	TagDefaultApplVerID      Tag = 1137
	TagTestReqID             Tag = 112
	TagBeginSeqNo            Tag = 7
	TagEndSeqNo              Tag = 16
	TagNewSeqNo              Tag = 36
	TagGapFillFlag           Tag = 123
	TagSessionRejectReason   Tag = 373
	TagRefSeqNum             Tag = 45
	TagRefTagID              Tag = 371
	TagRefMsgType            Tag = 372
	TagText                  Tag = 58
	TagSessionStatus         Tag = 1409
)

// MsgType values relevant to the session layer (FIX 4.0-4.4 admin messages).
const (
	MsgTypeHeartbeat      = "0"
	MsgTypeTestRequest    = "1"
	MsgTypeResendRequest  = "2"
	MsgTypeReject         = "3"
	MsgTypeSequenceReset  = "4"
	MsgTypeLogout         = "5"
	MsgTypeLogon          = "A"
)

// adminMsgTypes is the set of MsgType values considered session-level
// (spec.md Glossary: "Admin message").
var adminMsgTypes = map[string]bool{
	MsgTypeHeartbeat:     true,
	MsgTypeTestRequest:   true,
	MsgTypeResendRequest: true,
	MsgTypeReject:        true,
	MsgTypeSequenceReset: true,
	MsgTypeLogout:        true,
	MsgTypeLogon:         true,
}

// IsAdminMsgType reports whether msgType is one of the session-level
// (administrative) message types.
func IsAdminMsgType(msgType string) bool {
	return adminMsgTypes[msgType]
}

// headerFieldOrder is the tag order header fields are serialized in.
// BeginString, BodyLength and MsgType must always come first on the wire;
// the rest follow convention used by interoperating FIX engines.
var headerFieldOrder = []Tag{
	TagBeginString,
	TagBodyLength,
	TagMsgType,
	TagSenderCompID,
	TagTargetCompID,
	TagOnBehalfOfCompID,
	TagDeliverToCompID,
	TagSecureDataLen,
	TagSecureData,
	TagMsgSeqNum,
	TagSenderSubID,
	TagSenderLocationID,
	TagTargetSubID,
	TagTargetLocationID,
	TagPossDupFlag,
	TagPossResend,
	TagSendingTime,
	TagOrigSendingTime,
	TagXmlDataLen,
	TagXmlData,
	TagMessageEncoding,
	TagLastMsgSeqNumProcessed,
	TagApplVerID,
	TagCstmApplVerID,
}

// trailerFieldOrder is the tag order trailer fields are serialized in.
// CheckSum is always emitted last regardless of this slice.
var trailerFieldOrder = []Tag{
	TagSignatureLength,
	TagSignature,
}
