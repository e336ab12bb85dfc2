package session

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dantte-lp/gofix/internal/fixmsg"
)

// fakeClock is a manually advanced Clock for deterministic Tick tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeResponder records every frame sent to it and whether it was told to
// disconnect.
type fakeResponder struct {
	mu         sync.Mutex
	sent       [][]byte
	disconnect string
	disconnected bool
}

func (r *fakeResponder) Send(_ context.Context, raw []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(raw))
	copy(cp, raw)
	r.sent = append(r.sent, cp)
	return nil
}

func (r *fakeResponder) Disconnect(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnect = reason
	r.disconnected = true
}

func (r *fakeResponder) messages(t *testing.T) []*fixmsg.Message {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*fixmsg.Message, 0, len(r.sent))
	for _, raw := range r.sent {
		msg, err := fixmsg.ParseMessage(raw)
		if err != nil {
			t.Fatalf("responder captured unparseable frame: %v", err)
		}
		out = append(out, msg)
	}
	return out
}

func (r *fakeResponder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// fakeApplication records callback invocations; FromAdmin and ToApp can be
// overridden per test to exercise the veto/reject paths.
type fakeApplication struct {
	NoopApplication

	mu        sync.Mutex
	loggedOn  int
	loggedOut int

	fromAdmin func(ID, *fixmsg.Message) error
	toApp     func(ID, *fixmsg.Message) error
}

func (a *fakeApplication) OnLogon(ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loggedOn++
}

func (a *fakeApplication) OnLogout(ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loggedOut++
}

func (a *fakeApplication) FromAdmin(id ID, msg *fixmsg.Message) error {
	if a.fromAdmin != nil {
		return a.fromAdmin(id, msg)
	}
	return nil
}

func (a *fakeApplication) ToApp(id ID, msg *fixmsg.Message) error {
	if a.toApp != nil {
		return a.toApp(id, msg)
	}
	return nil
}

func testID() ID {
	return ID{BeginString: "FIX.4.4", SenderCompID: "US", TargetCompID: "THEM"}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// buildInbound constructs a wire-ready inbound message as seen from the
// session under test: SenderCompID/TargetCompID are from the peer's point
// of view (i.e. reversed from testID()).
func buildInbound(t *testing.T, msgType string, seqNum int, now time.Time, setBody func(b *fixmsg.FieldMap)) *fixmsg.Message {
	t.Helper()
	msg := fixmsg.NewMessage()
	msg.Header.Set(fixmsg.TagMsgType, msgType)
	msg.Header.Set(fixmsg.TagBeginString, "FIX.4.4")
	msg.Header.Set(fixmsg.TagSenderCompID, "THEM")
	msg.Header.Set(fixmsg.TagTargetCompID, "US")
	msg.Header.SetInt(fixmsg.TagMsgSeqNum, seqNum)
	msg.Header.Set(fixmsg.TagSendingTime, fixmsg.FormatSendingTime(now, fixmsg.PrecisionMillis))
	if setBody != nil {
		setBody(msg.Body)
	}
	raw, err := msg.Build()
	if err != nil {
		t.Fatalf("building inbound fixture: %v", err)
	}
	parsed, err := fixmsg.ParseMessage(raw)
	if err != nil {
		t.Fatalf("re-parsing inbound fixture: %v", err)
	}
	return parsed
}

func newTestSession(t *testing.T, connType ConnectionType, clock Clock, app *fakeApplication) (*Session, *fakeResponder) {
	t.Helper()
	settings := DefaultSettings(testID(), connType)
	settings.CheckLatency = false
	store := NewMemoryStore(clock)
	s := NewSession(settings, app, store, testLogger(), WithClock(clock))
	responder := &fakeResponder{}
	if err := s.SetResponder(context.Background(), responder); err != nil {
		t.Fatalf("SetResponder: %v", err)
	}
	return s, responder
}

// TestCleanLogonHandshakeInitiator covers spec.md §8 S1: an initiator sends
// Logon on its first Tick, then completes the handshake on the peer's Logon
// response.
func TestCleanLogonHandshakeInitiator(t *testing.T) {
	clock := newFakeClock()
	app := &fakeApplication{}
	s, responder := newTestSession(t, ConnectionTypeInitiator, clock, app)

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	sent := responder.messages(t)
	if len(sent) != 1 {
		t.Fatalf("expected one Logon sent, got %d", len(sent))
	}
	if mt, _ := sent[0].MsgType(); mt != fixmsg.MsgTypeLogon {
		t.Fatalf("expected Logon, got MsgType %q", mt)
	}

	reply := buildInbound(t, fixmsg.MsgTypeLogon, 1, clock.Now(), func(b *fixmsg.FieldMap) {
		b.SetInt(fixmsg.TagHeartBtInt, 30)
		b.Set(fixmsg.TagEncryptMethod, "0")
	})
	if err := s.OnMessage(context.Background(), reply); err != nil {
		t.Fatalf("OnMessage(Logon): %v", err)
	}
	if !s.IsLoggedOn() {
		t.Fatal("expected session to be LoggedOn after handshake completes")
	}
	if app.loggedOn != 1 {
		t.Fatalf("expected OnLogon called once, got %d", app.loggedOn)
	}
}

// TestGapDetectionSendsResendRequest covers spec.md §8 S2: an inbound
// message with MsgSeqNum ahead of NextTargetMsgSeqNum queues the message and
// asks the peer to resend the gap.
func TestGapDetectionSendsResendRequest(t *testing.T) {
	clock := newFakeClock()
	app := &fakeApplication{}
	s, responder := newTestSession(t, ConnectionTypeAcceptor, clock, app)
	s.store.SetNextTargetMsgSeqNum(2)

	ahead := buildInbound(t, "D", 5, clock.Now(), func(b *fixmsg.FieldMap) {
		b.Set(fixmsg.Tag(11), "CLORD1")
	})
	if err := s.OnMessage(context.Background(), ahead); err != nil {
		t.Fatalf("OnMessage: %v", err)
	}
	if s.store.NextTargetMsgSeqNum() != 2 {
		t.Fatalf("NextTargetMsgSeqNum should not advance on a gap, got %d", s.store.NextTargetMsgSeqNum())
	}

	sent := responder.messages(t)
	if len(sent) != 1 {
		t.Fatalf("expected one ResendRequest sent, got %d", len(sent))
	}
	if mt, _ := sent[0].MsgType(); mt != fixmsg.MsgTypeResendRequest {
		t.Fatalf("expected ResendRequest, got MsgType %q", mt)
	}
	begin, _ := sent[0].Body.GetInt(fixmsg.TagBeginSeqNo)
	end, _ := sent[0].Body.GetInt(fixmsg.TagEndSeqNo)
	if begin != 2 || end != 0 {
		t.Fatalf("expected ResendRequest(2, 0), got (%d, %d)", begin, end)
	}
}

// TestResendServiceCollapsesAdminIntoGapFill covers spec.md §8 S3: servicing
// a ResendRequest across stored messages 1..5 where only seq 3 is an
// application message collapses the admin runs either side into GapFills.
func TestResendServiceCollapsesAdminIntoGapFill(t *testing.T) {
	clock := newFakeClock()
	app := &fakeApplication{}
	s, responder := newTestSession(t, ConnectionTypeAcceptor, clock, app)
	s.store.SetNextSenderMsgSeqNum(6)
	s.store.SetNextTargetMsgSeqNum(1)

	for seq := 1; seq <= 5; seq++ {
		var m *fixmsg.Message
		if seq == 3 {
			m = buildInbound(t, "D", seq, clock.Now(), func(b *fixmsg.FieldMap) {
				b.Set(fixmsg.Tag(11), "CLORD")
			})
		} else {
			m = buildInbound(t, fixmsg.MsgTypeHeartbeat, seq, clock.Now(), nil)
		}
		// CompIDs/MsgSeqNum/SendingTime get overwritten by
		// initializeHeaderLocked on resend; only MsgType, Body and the
		// original SendingTime (read before that happens) matter here.
		if err := s.store.Set(seq, m.Bytes()); err != nil {
			t.Fatalf("store.Set: %v", err)
		}
	}

	req := buildInbound(t, fixmsg.MsgTypeResendRequest, 1, clock.Now(), func(b *fixmsg.FieldMap) {
		b.SetInt(fixmsg.TagBeginSeqNo, 1)
		b.SetInt(fixmsg.TagEndSeqNo, 0)
	})
	if err := s.OnMessage(context.Background(), req); err != nil {
		t.Fatalf("OnMessage(ResendRequest): %v", err)
	}

	sent := responder.messages(t)
	if len(sent) != 3 {
		t.Fatalf("expected 3 messages (GapFill, resend, GapFill), got %d", len(sent))
	}

	mt0, _ := sent[0].MsgType()
	if mt0 != fixmsg.MsgTypeSequenceReset {
		t.Fatalf("expected first reply to be SequenceReset-GapFill, got %q", mt0)
	}
	seq0, _ := sent[0].Header.GetInt(fixmsg.TagMsgSeqNum)
	newSeq0, _ := sent[0].Body.GetInt(fixmsg.TagNewSeqNo)
	if seq0 != 1 || newSeq0 != 3 {
		t.Fatalf("expected GapFill MsgSeqNum=1 NewSeqNo=3, got MsgSeqNum=%d NewSeqNo=%d", seq0, newSeq0)
	}

	mt1, _ := sent[1].MsgType()
	if mt1 != "D" {
		t.Fatalf("expected resend of the application message, got MsgType %q", mt1)
	}
	possDup, _ := sent[1].Header.GetBool(fixmsg.TagPossDupFlag)
	if !possDup {
		t.Fatal("expected resent application message to carry PossDupFlag=Y")
	}
	if !sent[1].Header.Has(fixmsg.TagOrigSendingTime) {
		t.Fatal("expected resent application message to carry OrigSendingTime")
	}

	mt2, _ := sent[2].MsgType()
	if mt2 != fixmsg.MsgTypeSequenceReset {
		t.Fatalf("expected trailing GapFill, got %q", mt2)
	}
	seq2, _ := sent[2].Header.GetInt(fixmsg.TagMsgSeqNum)
	newSeq2, _ := sent[2].Body.GetInt(fixmsg.TagNewSeqNo)
	if seq2 != 4 || newSeq2 != 6 {
		t.Fatalf("expected trailing GapFill MsgSeqNum=4 NewSeqNo=6, got MsgSeqNum=%d NewSeqNo=%d", seq2, newSeq2)
	}
}

// TestHeartbeatTestRequestEscalation covers spec.md §8 S4: a silent peer
// triggers a TestRequest at 1.2 x HeartBtInt, then a timeout-disconnect at
// 2.4 x HeartBtInt if it never answers.
func TestHeartbeatTestRequestEscalation(t *testing.T) {
	clock := newFakeClock()
	app := &fakeApplication{}
	s, responder := newTestSession(t, ConnectionTypeAcceptor, clock, app)
	s.settings.HeartBtInt = 10 * time.Second
	s.phase.sentLogon = true
	s.phase.receivedLogon = true

	clock.Advance(12 * time.Second)
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	sent := responder.messages(t)
	if len(sent) == 0 {
		t.Fatal("expected a TestRequest after 1.2x HeartBtInt of silence")
	}
	if mt, _ := sent[len(sent)-1].MsgType(); mt != fixmsg.MsgTypeTestRequest {
		t.Fatalf("expected TestRequest, got %q", mt)
	}

	clock.Advance(30 * time.Second)
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !responder.disconnected {
		t.Fatal("expected disconnect after 2.4x HeartBtInt of total silence")
	}
}

// TestCompIDMismatchDisconnects covers spec.md §8 S6: an inbound message
// whose CompIDs don't match the configured session identity forces a
// protocol-fatal disconnect.
func TestCompIDMismatchDisconnects(t *testing.T) {
	clock := newFakeClock()
	app := &fakeApplication{}
	s, responder := newTestSession(t, ConnectionTypeAcceptor, clock, app)
	s.phase.sentLogon = true
	s.phase.receivedLogon = true
	s.store.SetNextTargetMsgSeqNum(1)

	msg := fixmsg.NewMessage()
	msg.Header.Set(fixmsg.TagMsgType, "D")
	msg.Header.Set(fixmsg.TagBeginString, "FIX.4.4")
	msg.Header.Set(fixmsg.TagSenderCompID, "WRONG")
	msg.Header.Set(fixmsg.TagTargetCompID, "US")
	msg.Header.SetInt(fixmsg.TagMsgSeqNum, 1)
	msg.Header.Set(fixmsg.TagSendingTime, fixmsg.FormatSendingTime(clock.Now(), fixmsg.PrecisionMillis))
	raw, err := msg.Build()
	if err != nil {
		t.Fatalf("building fixture: %v", err)
	}
	parsed, err := fixmsg.ParseMessage(raw)
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}

	err = s.OnMessage(context.Background(), parsed)
	if err == nil {
		t.Fatal("expected a protocol-fatal error on CompID mismatch")
	}
	if !responder.disconnected {
		t.Fatal("expected disconnect on CompID mismatch")
	}
}

// TestResetOnLogoutClearsSequenceNumbers covers spec.md §4.5.6: a Logout
// received while ResetOnLogout is set zeroes both sequence numbers.
func TestResetOnLogoutClearsSequenceNumbers(t *testing.T) {
	clock := newFakeClock()
	app := &fakeApplication{}
	s, _ := newTestSession(t, ConnectionTypeAcceptor, clock, app)
	s.settings.ResetOnLogout = true
	s.phase.sentLogon = true
	s.phase.receivedLogon = true
	s.store.SetNextTargetMsgSeqNum(7)
	s.store.SetNextSenderMsgSeqNum(9)

	logout := buildInbound(t, fixmsg.MsgTypeLogout, 7, clock.Now(), nil)
	if err := s.OnMessage(context.Background(), logout); err != nil {
		t.Fatalf("OnMessage(Logout): %v", err)
	}
	if got := s.store.NextTargetMsgSeqNum(); got != 1 {
		t.Fatalf("expected NextTargetMsgSeqNum reset to 1, got %d", got)
	}
	if got := s.store.NextSenderMsgSeqNum(); got != 1 {
		t.Fatalf("expected NextSenderMsgSeqNum reset to 1, got %d", got)
	}
	if app.loggedOut != 1 {
		t.Fatalf("expected OnLogout called once, got %d", app.loggedOut)
	}
}

// TestSendVetoedByApplication covers spec.md §4.5.7: ToApp returning
// DoNotSend silently drops the outbound application message without
// consuming a sequence number.
func TestSendVetoedByApplication(t *testing.T) {
	clock := newFakeClock()
	app := &fakeApplication{
		toApp: func(ID, *fixmsg.Message) error { return DoNotSend() },
	}
	s, responder := newTestSession(t, ConnectionTypeInitiator, clock, app)
	before := s.store.NextSenderMsgSeqNum()

	msg := fixmsg.NewMessage()
	msg.Header.Set(fixmsg.TagMsgType, "D")
	ok, err := s.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if ok {
		t.Fatal("expected Send to report false when vetoed")
	}
	if responder.count() != 0 {
		t.Fatalf("expected no frame sent, got %d", responder.count())
	}
	if s.store.NextSenderMsgSeqNum() != before {
		t.Fatalf("expected NextSenderMsgSeqNum unchanged on veto, got %d (was %d)", s.store.NextSenderMsgSeqNum(), before)
	}
}

// TestSendSequenceReset covers the administrative SequenceReset-Reset path
// (spec.md §4.5.5): it sends GapFillFlag=N with NewSeqNo=MsgSeqNum, and
// forces NextSenderMsgSeqNum to newSeqNo rather than incrementing it.
func TestSendSequenceReset(t *testing.T) {
	clock := newFakeClock()
	app := &fakeApplication{}
	s, responder := newTestSession(t, ConnectionTypeInitiator, clock, app)
	s.store.SetNextSenderMsgSeqNum(10)

	sent, err := s.SendSequenceReset(context.Background(), 25)
	if err != nil {
		t.Fatalf("SendSequenceReset: %v", err)
	}
	if !sent {
		t.Fatal("expected SendSequenceReset to report true")
	}

	msgs := responder.messages(t)
	if len(msgs) != 1 {
		t.Fatalf("expected one SequenceReset sent, got %d", len(msgs))
	}
	if mt, _ := msgs[0].MsgType(); mt != fixmsg.MsgTypeSequenceReset {
		t.Fatalf("expected SequenceReset, got MsgType %q", mt)
	}
	if n, _ := msgs[0].MsgSeqNum(); n != 25 {
		t.Fatalf("MsgSeqNum = %d, want 25", n)
	}
	if newSeqNo, _ := msgs[0].Body.GetInt(fixmsg.TagNewSeqNo); newSeqNo != 25 {
		t.Fatalf("NewSeqNo = %d, want 25", newSeqNo)
	}
	if gapFill, _ := msgs[0].Body.GetBool(fixmsg.TagGapFillFlag); gapFill {
		t.Fatal("expected GapFillFlag=N for an administrative reset")
	}

	if got := s.store.NextSenderMsgSeqNum(); got != 25 {
		t.Fatalf("NextSenderMsgSeqNum = %d, want 25", got)
	}
}

// TestSendSequenceResetRejectsNonPositive covers the validation guard on
// SendSequenceReset's newSeqNo argument.
func TestSendSequenceResetRejectsNonPositive(t *testing.T) {
	clock := newFakeClock()
	app := &fakeApplication{}
	s, _ := newTestSession(t, ConnectionTypeInitiator, clock, app)

	if _, err := s.SendSequenceReset(context.Background(), 0); err == nil {
		t.Fatal("expected error for non-positive newSeqNo")
	}
}
