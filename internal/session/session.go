package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dantte-lp/gofix/internal/fixmsg"
)

// ParseMessage parses raw using the session's configured dictionary, when
// one is enabled, so repeating groups are reconstructed before OnMessage or
// resend servicing ever sees the result; without a dictionary it falls back
// to a flat parse. Transport and resend servicing call this instead of
// fixmsg.ParseMessage directly, since only the session knows which
// dictionary applies.
func (s *Session) ParseMessage(raw []byte) (*fixmsg.Message, error) {
	if s.settings.UseDataDictionary && s.settings.Dictionary != nil {
		return s.settings.Dictionary.ParseMessage(raw)
	}
	return fixmsg.ParseMessage(raw)
}

// MetricsReporter receives session-level counters. Implementations must be
// safe for concurrent use across many sessions; the default NoopMetrics
// discards everything.
type MetricsReporter interface {
	IncMessagesSent(id ID, msgType string)
	IncMessagesReceived(id ID, msgType string)
	IncGapsDetected(id ID)
	IncResendsServiced(id ID)
	ObserveStateChange(id ID, loggedOn bool)
}

// NoopMetrics discards every report.
type NoopMetrics struct{}

func (NoopMetrics) IncMessagesSent(ID, string)      {}
func (NoopMetrics) IncMessagesReceived(ID, string)   {}
func (NoopMetrics) IncGapsDetected(ID)               {}
func (NoopMetrics) IncResendsServiced(ID)            {}
func (NoopMetrics) ObserveStateChange(ID, bool)      {}

// Option configures optional Session parameters.
type Option func(*Session)

// WithClock overrides the session's time source (defaults to RealClock).
func WithClock(c Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetrics attaches a MetricsReporter (defaults to NoopMetrics).
func WithMetrics(m MetricsReporter) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Session implements the FIX session-level state machine (spec.md §4.5).
// All mutating operations -- OnMessage, Tick, Send, Reset, Disconnect,
// SetResponder -- serialize under crit, a reentrant single-holder section
// scoped to the caller's own continuation (spec.md §5, §9).
type Session struct {
	id       ID
	settings Settings
	app      Application
	store    MessageStore
	clock    Clock
	metrics  MetricsReporter
	logger   *slog.Logger

	crit critSection

	connState ConnectionState
	phase     logonPhase
	responder Responder

	lastSentTime       time.Time
	lastReceivedTime   time.Time
	testRequestCounter int

	enabled      bool
	logoutReason string

	resendRange ResendRange
	gaps        *gapQueue
}

// NewSession constructs a Session. The session goroutine model is the
// caller's choice: Tick and OnMessage may both be driven from whatever
// goroutines the transport and a ticker use, since crit serializes them.
func NewSession(settings Settings, app Application, store MessageStore, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		id:       settings.ID,
		settings: settings,
		app:      app,
		store:    store,
		clock:    RealClock,
		metrics:  NoopMetrics{},
		logger:   logger.With(slog.String("session", settings.ID.String())),
		connState: ConnectionStateDisconnected,
		enabled:  true,
		gaps:     newGapQueue(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.app.OnCreate(s.id)
	return s
}

// ID returns the session's identity.
func (s *Session) ID() ID { return s.id }

// ConnectionState returns the current transport-level state.
func (s *Session) ConnectionState() ConnectionState {
	ctx, release, _ := s.crit.acquire(context.Background())
	defer release()
	_ = ctx
	return s.connState
}

// IsLoggedOn reports whether both SentLogon and ReceivedLogon are true.
func (s *Session) IsLoggedOn() bool {
	ctx, release, _ := s.crit.acquire(context.Background())
	defer release()
	_ = ctx
	return s.phase.loggedOn()
}

// InSessionTime reports whether now falls within the session's configured
// Schedule, or true if no Schedule is configured (spec.md §4.6: initiator
// reconnects are gated on "Disconnected and within session time").
func (s *Session) InSessionTime(now time.Time) bool {
	ctx, release, _ := s.crit.acquire(context.Background())
	defer release()
	_ = ctx
	if s.settings.Schedule == nil {
		return true
	}
	return s.settings.Schedule.IsSessionTime(now)
}

// ValidatesChecksum reports whether inbound frames should have their
// CheckSum verified (spec.md §6 ValidateLengthAndChecksum). Transport
// consults this once a connection is attached to configure its Framer.
func (s *Session) ValidatesChecksum() bool {
	ctx, release, _ := s.crit.acquire(context.Background())
	defer release()
	_ = ctx
	return s.settings.ValidateLengthAndChecksum
}

// SeqNums returns the next outbound and expected inbound sequence numbers,
// for status reporting through the admin API.
func (s *Session) SeqNums() (nextSender, nextTarget int) {
	ctx, release, _ := s.crit.acquire(context.Background())
	defer release()
	_ = ctx
	return s.store.NextSenderMsgSeqNum(), s.store.NextTargetMsgSeqNum()
}

// SetEnabled toggles the administrative enable flag (spec.md §4.5.2 step
// 4: "!IsEnabled and currently LoggedOn and no logout sent").
func (s *Session) SetEnabled(ctx context.Context, enabled bool) {
	ctx, release, _ := s.crit.acquire(ctx)
	defer release()
	_ = ctx
	s.enabled = enabled
}

// SetResponder attaches the transport's outbound capability. It fails with
// ErrAlreadyConnected if a responder is already attached, enforcing
// at-most-one concurrent connection per SessionID (spec.md §8 Testable
// Property 6).
func (s *Session) SetResponder(ctx context.Context, r Responder) error {
	ctx, release, _ := s.crit.acquire(ctx)
	defer release()
	_ = ctx
	if s.connState == ConnectionStateConnected {
		return ErrAlreadyConnected
	}
	s.responder = r
	s.connState = ConnectionStateConnected
	now := s.clock.Now()
	s.lastReceivedTime = now
	s.lastSentTime = now
	s.testRequestCounter = 0
	s.logger.Info("responder attached", slog.String("state", s.connState.String()))
	return nil
}

// Disconnect tears down the transport and resets connection-scoped state.
// It leaves sequence numbers alone unless Settings.ResetOnDisconnect is
// set, in which case the store is reset; callers wanting a reset otherwise
// call Reset.
func (s *Session) Disconnect(ctx context.Context, reason string) {
	ctx, release, _ := s.crit.acquire(ctx)
	defer release()
	_ = ctx
	s.disconnectLocked(reason)
}

func (s *Session) disconnectLocked(reason string) {
	if s.responder != nil {
		s.responder.Disconnect(reason)
		s.responder = nil
	}
	if s.connState != ConnectionStateDisconnected {
		s.logger.Info("session disconnected", slog.String("reason", reason))
	}
	s.connState = ConnectionStateDisconnected
	s.phase = s.phase.reset()
	s.gaps.clear()
	s.resendRange = ResendRange{}
	s.metrics.ObserveStateChange(s.id, false)
	if s.settings.ResetOnDisconnect {
		_ = s.store.Reset()
	}
}

// Reset implements spec.md §4.5.6: Logout (if logged on), disconnect, zero
// both sequence numbers, clear the gap queue and resend range.
func (s *Session) Reset(ctx context.Context, reason string) error {
	ctx, release, _ := s.crit.acquire(ctx)
	defer release()
	return s.resetLocked(ctx, reason)
}

func (s *Session) resetLocked(ctx context.Context, reason string) error {
	if s.phase.loggedOn() && s.responder != nil {
		s.sendLocked(ctx, buildLogout(reason), 0)
	}
	s.disconnectLocked(reason)
	if err := s.store.Reset(); err != nil {
		return fmt.Errorf("session: reset: %w", err)
	}
	s.logger.Info("session reset", slog.String("reason", reason))
	return nil
}

// Send implements spec.md §4.5.7. It strips any caller-supplied
// PossDupFlag/OrigSendingTime, assigns the header under the session's
// critical section, invokes ToAdmin/ToApp, and pushes the serialized bytes
// through the responder. It returns false (with no error) if ToApp vetoed
// the send via DoNotSend, or if no responder is attached.
func (s *Session) Send(ctx context.Context, msg *fixmsg.Message) (bool, error) {
	ctx, release, _ := s.crit.acquire(ctx)
	defer release()
	return s.sendLocked(ctx, msg, 0), nil
}

// sendLocked performs the Send pipeline. seqNumOverride, if nonzero,
// supplies MsgSeqNum directly (used when re-sending a stored message
// during resend servicing); 0 means use and increment
// NextSenderMsgSeqNum normally.
func (s *Session) sendLocked(ctx context.Context, msg *fixmsg.Message, seqNumOverride int) bool {
	msg.Header.RemoveField(fixmsg.TagPossDupFlag)
	msg.Header.RemoveField(fixmsg.TagOrigSendingTime)

	msgType, _ := msg.MsgType()
	isAdmin := fixmsg.IsAdminMsgType(msgType)
	isResend := seqNumOverride != 0

	seqNum := seqNumOverride
	if seqNum == 0 {
		seqNum = s.store.NextSenderMsgSeqNum()
	}
	s.initializeHeaderLocked(msg, seqNum)

	if isAdmin {
		s.app.ToAdmin(s.id, msg)
	} else {
		if err := s.app.ToApp(s.id, msg); err != nil {
			s.logger.Debug("outbound application message vetoed", slog.String("error", err.Error()))
			return false
		}
	}

	resetSeqNumFlag := msgType == fixmsg.MsgTypeLogon && parseBool(msg.Body, fixmsg.TagResetSeqNumFlag)
	if resetSeqNumFlag {
		_ = s.store.Reset()
		seqNum = 1
		s.initializeHeaderLocked(msg, seqNum)
	}

	raw, err := msg.Build()
	if err != nil {
		s.logger.Error("failed to build outbound message", slog.String("error", err.Error()))
		return false
	}

	if s.settings.PersistMessages && !isResend {
		_ = s.store.Set(seqNum, raw)
	}
	if !isResend {
		s.store.IncrNextSenderMsgSeqNum()
	}

	if s.responder == nil {
		return false
	}
	if err := s.responder.Send(ctx, raw); err != nil {
		s.logger.Warn("transport send failed", slog.String("error", err.Error()))
		return false
	}

	s.lastSentTime = s.clock.Now()
	s.metrics.IncMessagesSent(s.id, msgType)

	switch msgType {
	case fixmsg.MsgTypeLogon:
		s.phase.sentLogon = true
	case fixmsg.MsgTypeLogout:
		s.phase.sentLogout = true
	}
	return true
}

// SendSequenceReset administratively forces the outbound sequence number
// to newSeqNo by sending a SequenceReset-Reset (GapFillFlag=N) carrying
// MsgSeqNum=NewSeqNo=newSeqNo, then advancing NextSenderMsgSeqNum to match
// (spec.md §4.5.5 distinguishes this administrative reset form from the
// gap-fill form buildGapFill produces). It returns false, with no error, if
// no responder is attached.
func (s *Session) SendSequenceReset(ctx context.Context, newSeqNo int) (bool, error) {
	ctx, release, _ := s.crit.acquire(ctx)
	defer release()
	if newSeqNo <= 0 {
		return false, fmt.Errorf("session: SendSequenceReset: newSeqNo must be positive, got %d", newSeqNo)
	}
	sent := s.sendLocked(ctx, buildSequenceResetReset(newSeqNo), newSeqNo)
	if sent {
		s.store.SetNextSenderMsgSeqNum(newSeqNo)
	}
	return sent, nil
}

// initializeHeaderLocked sets BeginString, CompIDs, MsgSeqNum and
// SendingTime (spec.md §4.5.7 step 2).
func (s *Session) initializeHeaderLocked(msg *fixmsg.Message, seqNum int) {
	msg.Header.Set(fixmsg.TagBeginString, s.settings.ID.BeginString)
	msg.Header.Set(fixmsg.TagSenderCompID, s.settings.ID.SenderCompID)
	msg.Header.Set(fixmsg.TagTargetCompID, s.settings.ID.TargetCompID)
	if s.settings.ID.SenderSubID != "" {
		msg.Header.Set(fixmsg.TagSenderSubID, s.settings.ID.SenderSubID)
	}
	if s.settings.ID.TargetSubID != "" {
		msg.Header.Set(fixmsg.TagTargetSubID, s.settings.ID.TargetSubID)
	}
	msg.Header.SetInt(fixmsg.TagMsgSeqNum, seqNum)
	msg.Header.Set(fixmsg.TagSendingTime, fixmsg.FormatSendingTime(s.clock.Now(), s.settings.TimeStampPrecision))
	if s.settings.EnableLastMsgSeqNumProcessed {
		msg.Header.SetInt(fixmsg.TagLastMsgSeqNumProcessed, s.store.NextTargetMsgSeqNum()-1)
	}
}
