package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/dantte-lp/gofix/internal/dict"
	"github.com/dantte-lp/gofix/internal/fixmsg"
)

// OnMessage processes one inbound, already-parsed message (spec.md §4.5.3).
// The common prelude validates BeginString and, if a dictionary is
// configured, the message's fields; Logon gets its own handshake handling,
// while every other recognized MsgType runs Verify and, on success,
// advances NextTargetMsgSeqNum and invokes the matching application
// callback.
func (s *Session) OnMessage(ctx context.Context, msg *fixmsg.Message) error {
	ctx, release, _ := s.crit.acquire(ctx)
	defer release()

	now := s.clock.Now()
	s.lastReceivedTime = now

	msgType, err := msg.MsgType()
	if err != nil {
		return recoverableErr(err)
	}
	s.metrics.IncMessagesReceived(s.id, msgType)

	beginString, _ := msg.Header.GetField(fixmsg.TagBeginString)
	if beginString != s.settings.ID.BeginString {
		s.sendLocked(ctx, buildLogout("Unsupported BeginString"), 0)
		s.disconnectLocked("Unsupported BeginString")
		return fatalErr("Unsupported BeginString", ErrUnsupportedVersion)
	}

	if s.settings.UseDataDictionary && s.settings.Dictionary != nil {
		if violations := dict.Validate(s.settings.Dictionary, msg); len(violations) > 0 {
			v := violations[0]
			seqNum, _ := msg.MsgSeqNum()
			s.sendLocked(ctx, buildReject(seqNum, v.Tag, msgType, v.Reason, v.Text), 0)
			s.store.IncrNextTargetMsgSeqNum()
			s.logger.Warn("dictionary validation failed", slog.String("msg_type", msgType), slog.String("reason", v.Reason.String()))
			return recoverableErr(v)
		}
	}

	if msgType == fixmsg.MsgTypeLogon {
		return s.handleLogonLocked(ctx, msg)
	}

	ok, err := s.verifyLocked(ctx, msg)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	s.store.IncrNextTargetMsgSeqNum()
	s.drainGapQueueLocked(ctx)

	return s.dispatchLocked(ctx, msgType, msg)
}

// dispatchLocked routes a verified, sequence-advanced message to its
// type-specific handler or the application FromApp/FromAdmin callback.
func (s *Session) dispatchLocked(ctx context.Context, msgType string, msg *fixmsg.Message) error {
	switch msgType {
	case fixmsg.MsgTypeHeartbeat:
		return nil
	case fixmsg.MsgTypeTestRequest:
		testReqID, _ := msg.Body.GetField(fixmsg.TagTestReqID)
		s.sendLocked(ctx, buildHeartbeat(testReqID), 0)
		return nil
	case fixmsg.MsgTypeResendRequest:
		return s.handleResendRequestLocked(ctx, msg)
	case fixmsg.MsgTypeSequenceReset:
		return s.handleSequenceResetLocked(ctx, msg)
	case fixmsg.MsgTypeLogout:
		return s.handleLogoutLocked(ctx, msg)
	case fixmsg.MsgTypeReject:
		if err := s.app.FromAdmin(s.id, msg); err != nil {
			s.logger.Warn("FromAdmin callback error", slog.String("error", err.Error()))
		}
		return nil
	default:
		if fixmsg.IsAdminMsgType(msgType) {
			if err := s.app.FromAdmin(s.id, msg); err != nil {
				s.logger.Warn("FromAdmin callback error", slog.String("error", err.Error()))
			}
			return nil
		}
		if err := s.app.FromApp(s.id, msg); err != nil {
			s.logger.Warn("FromApp callback error", slog.String("error", err.Error()))
		}
		return nil
	}
}

// handleLogonLocked implements spec.md §4.5.3 "Logon (A)".
func (s *Session) handleLogonLocked(ctx context.Context, msg *fixmsg.Message) error {
	resetSeqNumFlag := parseBool(msg.Body, fixmsg.TagResetSeqNumFlag)

	if resetSeqNumFlag {
		_ = s.store.Reset()
	} else if s.settings.ConnectionType == ConnectionTypeAcceptor && s.settings.ResetOnLogon {
		_ = s.store.Reset()
	}
	if s.settings.RefreshOnLogon {
		_ = s.store.Refresh()
	}

	if s.settings.CheckCompID {
		if reject := s.checkCompIDLocked(ctx, msg); reject {
			return fatalErr("CompID problem", ErrCompIDProblem)
		}
	}
	if !s.checkSendingTimeLocked(ctx, msg) {
		return fatalErr("SendingTime accuracy problem", ErrSendingTimeAccuracy)
	}

	if err := s.app.FromAdmin(s.id, msg); err != nil {
		reason := err.Error()
		if rl, ok := err.(*RejectLogonError); ok {
			reason = rl.Reason
		}
		s.sendLocked(ctx, buildLogout(reason), 0)
		s.disconnectLocked(reason)
		return fatalErr(reason, err)
	}

	s.phase.receivedLogon = true

	if s.settings.ConnectionType == ConnectionTypeAcceptor {
		heartBtInt := parseIntOrZero(msg.Body, fixmsg.TagHeartBtInt)
		if heartBtInt > 0 {
			s.settings.HeartBtInt = time.Duration(heartBtInt) * time.Second
		}
		s.sendLocked(ctx, buildLogon(heartBtIntSeconds(s.settings.HeartBtInt), resetSeqNumFlag, s.settings.DefaultApplVerID), 0)
	}

	peerSeq, _ := msg.MsgSeqNum()
	if peerSeq > s.store.NextTargetMsgSeqNum() && !resetSeqNumFlag {
		s.openGapLocked(ctx, msg, peerSeq)
	} else {
		s.store.IncrNextTargetMsgSeqNum()
	}

	s.metrics.ObserveStateChange(s.id, s.phase.loggedOn())
	s.app.OnLogon(s.id)
	return nil
}

func (s *Session) handleLogoutLocked(ctx context.Context, msg *fixmsg.Message) error {
	wasLoggedOn := s.phase.loggedOn()
	if !s.phase.sentLogout {
		s.sendLocked(ctx, buildLogout(""), 0)
	}
	if err := s.app.FromAdmin(s.id, msg); err != nil {
		s.logger.Warn("FromAdmin callback error", slog.String("error", err.Error()))
	}
	if wasLoggedOn {
		s.app.OnLogout(s.id)
	}
	reason := "Logout received"
	if s.settings.ResetOnLogout {
		return s.resetLocked(ctx, reason)
	}
	s.disconnectLocked(reason)
	return nil
}

// verifyLocked implements spec.md §4.5.3 "Verify".
func (s *Session) verifyLocked(ctx context.Context, msg *fixmsg.Message) (bool, error) {
	if s.settings.CheckCompID && s.checkCompIDLocked(ctx, msg) {
		seqNum, _ := msg.MsgSeqNum()
		s.sendLocked(ctx, buildReject(seqNum, fixmsg.TagSenderCompID, mustMsgType(msg), dict.RejectCompIDProblem, "CompID problem"), 0)
		s.sendLocked(ctx, buildLogout("CompID problem"), 0)
		s.disconnectLocked("CompID problem")
		return false, fatalErr("CompID problem", ErrCompIDProblem)
	}

	seqNum, err := msg.MsgSeqNum()
	if err != nil {
		return false, recoverableErr(err)
	}
	expected := s.store.NextTargetMsgSeqNum()

	if seqNum > expected {
		s.openGapLocked(ctx, msg, seqNum)
		return false, nil
	}

	if seqNum < expected {
		possDup := parseBool(msg.Header, fixmsg.TagPossDupFlag)
		if !possDup {
			s.sendLocked(ctx, buildLogout("MsgSeqNum too low, no PossDupFlag"), 0)
			s.disconnectLocked("MsgSeqNum too low, no PossDupFlag")
			return false, fatalErr("MsgSeqNum too low, no PossDupFlag", ErrSeqNumTooLowNoDup)
		}
		if s.settings.RequiresOrigSendingTime && !msg.Header.Has(fixmsg.TagOrigSendingTime) {
			s.sendLocked(ctx, buildLogout("PossDup missing OrigSendingTime"), 0)
			s.disconnectLocked("PossDup missing OrigSendingTime")
			return false, fatalErr("PossDup missing OrigSendingTime", ErrMissingLogonField)
		}
		// A valid possible-duplicate retransmission of an already-processed
		// sequence number: acknowledge receipt without re-advancing state.
		return false, nil
	}

	if s.resendRange.active() && s.resendRange.satisfiedBy(seqNum) {
		s.advanceResendRangeLocked(ctx, seqNum)
	}

	if !s.checkSendingTimeLocked(ctx, msg) {
		seqNumForReject, _ := msg.MsgSeqNum()
		s.sendLocked(ctx, buildReject(seqNumForReject, fixmsg.TagSendingTime, mustMsgType(msg), dict.RejectSendingTimeAccuracyProblem, "SendingTime accuracy problem"), 0)
		s.sendLocked(ctx, buildLogout("SendingTime accuracy problem"), 0)
		s.disconnectLocked("SendingTime accuracy problem")
		return false, fatalErr("SendingTime accuracy problem", ErrSendingTimeAccuracy)
	}

	return true, nil
}

func (s *Session) checkCompIDLocked(_ context.Context, msg *fixmsg.Message) (reject bool) {
	senderCompID, _ := msg.Header.GetField(fixmsg.TagSenderCompID)
	targetCompID, _ := msg.Header.GetField(fixmsg.TagTargetCompID)
	return senderCompID != s.settings.ID.TargetCompID || targetCompID != s.settings.ID.SenderCompID
}

func (s *Session) checkSendingTimeLocked(_ context.Context, msg *fixmsg.Message) bool {
	if !s.settings.CheckLatency {
		return true
	}
	sendingTime, err := msg.Header.GetTime(fixmsg.TagSendingTime)
	if err != nil {
		return false
	}
	delta := s.clock.Now().Sub(sendingTime)
	if delta < 0 {
		delta = -delta
	}
	maxLatency := s.settings.MaxLatency
	if maxLatency <= 0 {
		maxLatency = 120 * time.Second
	}
	return delta <= maxLatency
}

func mustMsgType(msg *fixmsg.Message) string {
	mt, _ := msg.MsgType()
	return mt
}
