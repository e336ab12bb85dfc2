package session

import (
	"github.com/dantte-lp/gofix/internal/dict"
	"github.com/dantte-lp/gofix/internal/fixmsg"
)

// newAdminMessage returns a Message with MsgType set, ready for
// InitializeHeader + Send.
func newAdminMessage(msgType string) *fixmsg.Message {
	msg := fixmsg.NewMessage()
	msg.Header.Set(fixmsg.TagMsgType, msgType)
	return msg
}

func buildLogon(heartBtInt int, resetSeqNumFlag bool, defaultApplVerID string) *fixmsg.Message {
	msg := newAdminMessage(fixmsg.MsgTypeLogon)
	msg.Body.Set(fixmsg.TagEncryptMethod, "0")
	msg.Body.SetInt(fixmsg.TagHeartBtInt, heartBtInt)
	if resetSeqNumFlag {
		msg.Body.SetBool(fixmsg.TagResetSeqNumFlag, true)
	}
	if defaultApplVerID != "" {
		msg.Body.Set(fixmsg.TagDefaultApplVerID, defaultApplVerID)
	}
	return msg
}

func buildHeartbeat(testReqID string) *fixmsg.Message {
	msg := newAdminMessage(fixmsg.MsgTypeHeartbeat)
	if testReqID != "" {
		msg.Body.Set(fixmsg.TagTestReqID, testReqID)
	}
	return msg
}

func buildTestRequest(testReqID string) *fixmsg.Message {
	msg := newAdminMessage(fixmsg.MsgTypeTestRequest)
	msg.Body.Set(fixmsg.TagTestReqID, testReqID)
	return msg
}

func buildResendRequest(begin, end int) *fixmsg.Message {
	msg := newAdminMessage(fixmsg.MsgTypeResendRequest)
	msg.Body.SetInt(fixmsg.TagBeginSeqNo, begin)
	msg.Body.SetInt(fixmsg.TagEndSeqNo, end)
	return msg
}

// buildGapFill builds a SequenceReset-GapFill covering [from, newSeqNo)
// (spec.md Glossary: "Gap-fill: SequenceReset (35=4) with GapFillFlag=Y
// skipping missing sequence numbers"). The caller assigns MsgSeqNum=from
// when sending (this is the one case InitializeHeader takes a
// caller-supplied sequence number).
func buildGapFill(newSeqNo int) *fixmsg.Message {
	msg := newAdminMessage(fixmsg.MsgTypeSequenceReset)
	msg.Body.SetBool(fixmsg.TagGapFillFlag, true)
	msg.Body.SetInt(fixmsg.TagNewSeqNo, newSeqNo)
	return msg
}

func buildSequenceResetReset(newSeqNo int) *fixmsg.Message {
	msg := newAdminMessage(fixmsg.MsgTypeSequenceReset)
	msg.Body.SetBool(fixmsg.TagGapFillFlag, false)
	msg.Body.SetInt(fixmsg.TagNewSeqNo, newSeqNo)
	return msg
}

func buildLogout(text string) *fixmsg.Message {
	msg := newAdminMessage(fixmsg.MsgTypeLogout)
	if text != "" {
		msg.Body.Set(fixmsg.TagText, text)
	}
	return msg
}

func buildReject(refSeqNum int, refTagID fixmsg.Tag, refMsgType string, reason dict.SessionRejectReason, text string) *fixmsg.Message {
	msg := newAdminMessage(fixmsg.MsgTypeReject)
	msg.Body.SetInt(fixmsg.TagRefSeqNum, refSeqNum)
	if refTagID != 0 {
		msg.Body.SetInt(fixmsg.TagRefTagID, int(refTagID))
	}
	if refMsgType != "" {
		msg.Body.Set(fixmsg.TagRefMsgType, refMsgType)
	}
	msg.Body.SetInt(fixmsg.TagSessionRejectReason, int(reason))
	if text != "" {
		msg.Body.Set(fixmsg.TagText, text)
	}
	return msg
}

// parseBool interprets a FIX boolean field, defaulting to false on absence
// or malformed input (callers of this helper treat the field as optional).
func parseBool(fm *fixmsg.FieldMap, tag fixmsg.Tag) bool {
	v, err := fm.GetBool(tag)
	if err != nil {
		return false
	}
	return v
}

func parseIntOrZero(fm *fixmsg.FieldMap, tag fixmsg.Tag) int {
	v, err := fm.GetInt(tag)
	if err != nil {
		return 0
	}
	return v
}
