package session

import (
	"context"

	"github.com/dantte-lp/gofix/internal/fixmsg"
)

// handleResendRequestLocked implements spec.md §4.5.5.
func (s *Session) handleResendRequestLocked(ctx context.Context, msg *fixmsg.Message) error {
	beginSeqNo := parseIntOrZero(msg.Body, fixmsg.TagBeginSeqNo)
	endSeqNo := parseIntOrZero(msg.Body, fixmsg.TagEndSeqNo)

	if s.settings.IgnorePossDupResendRequests && parseBool(msg.Header, fixmsg.TagPossDupFlag) {
		return nil
	}

	if endSeqNo == 0 || endSeqNo == 999999 {
		endSeqNo = s.store.NextSenderMsgSeqNum() - 1
	}
	if beginSeqNo > endSeqNo {
		return nil
	}

	if !s.settings.PersistMessages {
		newSeqNo := endSeqNo + 1
		if nextSender := s.store.NextSenderMsgSeqNum(); newSeqNo > nextSender {
			newSeqNo = nextSender
		}
		s.sendLocked(ctx, buildGapFill(newSeqNo), beginSeqNo)
		s.metrics.IncResendsServiced(s.id)
		return nil
	}

	gapBegin := 0
	for seq := beginSeqNo; seq <= endSeqNo; seq++ {
		stored, err := s.store.Get(seq, seq)
		if err != nil || len(stored) == 0 {
			if gapBegin == 0 {
				gapBegin = seq
			}
			continue
		}

		parsed, err := s.ParseMessage(stored[0])
		if err != nil {
			if gapBegin == 0 {
				gapBegin = seq
			}
			continue
		}

		mt, _ := parsed.MsgType()
		collapse := fixmsg.IsAdminMsgType(mt) && !(mt == fixmsg.MsgTypeReject && s.settings.ResendSessionLevelRejects)
		if !collapse && !fixmsg.IsAdminMsgType(mt) {
			if err := s.app.ToApp(s.id, parsed); err != nil {
				collapse = true
			}
		}
		if collapse {
			if gapBegin == 0 {
				gapBegin = seq
			}
			continue
		}

		if gapBegin != 0 {
			s.sendLocked(ctx, buildGapFill(seq), gapBegin)
			gapBegin = 0
		}
		s.resendStoredLocked(ctx, parsed, seq)
	}

	if gapBegin != 0 {
		s.sendLocked(ctx, buildGapFill(endSeqNo+1), gapBegin)
	}
	s.metrics.IncResendsServiced(s.id)
	return nil
}

// resendStoredLocked re-transmits a previously stored message under seq,
// marking it PossDupFlag=Y with OrigSendingTime set to its original
// SendingTime. Unlike sendLocked it never consumes a new
// NextSenderMsgSeqNum nor persists, since seq has already been sent once
// (spec.md §4.5.5: "re-send the stored message with PossDupFlag=Y and
// OrigSendingTime set to the original SendingTime").
func (s *Session) resendStoredLocked(ctx context.Context, parsed *fixmsg.Message, seq int) {
	msgType, _ := parsed.MsgType()
	origSendingTime, _ := parsed.Header.GetField(fixmsg.TagSendingTime)

	s.initializeHeaderLocked(parsed, seq)
	parsed.Header.SetBool(fixmsg.TagPossDupFlag, true)
	parsed.Header.Set(fixmsg.TagOrigSendingTime, origSendingTime)

	if fixmsg.IsAdminMsgType(msgType) {
		s.app.ToAdmin(s.id, parsed)
	}

	raw, err := parsed.Build()
	if err != nil || s.responder == nil {
		return
	}
	if err := s.responder.Send(ctx, raw); err != nil {
		s.logger.Warn("resend transport send failed", "error", err)
		return
	}
	s.lastSentTime = s.clock.Now()
	s.metrics.IncMessagesSent(s.id, msgType)
}

// handleSequenceResetLocked implements the inbound half of SequenceReset:
// NextTargetMsgSeqNum jumps to NewSeqNo(36) rather than merely advancing by
// one, covering both the GapFillFlag=Y (gap-fill) and the administrative
// reset forms.
func (s *Session) handleSequenceResetLocked(ctx context.Context, msg *fixmsg.Message) error {
	newSeqNo := parseIntOrZero(msg.Body, fixmsg.TagNewSeqNo)
	if newSeqNo <= 0 {
		return nil
	}
	current := s.store.NextTargetMsgSeqNum()
	switch {
	case newSeqNo > current:
		s.store.SetNextTargetMsgSeqNum(newSeqNo)
		if s.resendRange.active() {
			s.advanceResendRangeLocked(ctx, newSeqNo-1)
		}
	case newSeqNo < current:
		s.logger.Warn("SequenceReset requested decreasing NextTargetMsgSeqNum, ignoring", "new_seq_no", newSeqNo, "current", current)
	}
	return nil
}
