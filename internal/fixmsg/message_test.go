package fixmsg_test

import (
	"io"
	"strings"
	"testing"

	"github.com/dantte-lp/gofix/internal/fixmsg"
)

func soh(s string) []byte {
	return []byte(strings.ReplaceAll(s, "|", "\x01"))
}

// TestBuildRoundTrip verifies spec.md Testable Property 3: parse(serialize(m))
// reproduces the same fields, and BodyLength/CheckSum equal the computed
// values.
func TestBuildRoundTrip(t *testing.T) {
	t.Parallel()

	msg := fixmsg.NewMessage()
	msg.Header.Set(fixmsg.TagBeginString, "FIX.4.4")
	msg.Header.Set(fixmsg.TagMsgType, fixmsg.MsgTypeLogon)
	msg.Header.Set(fixmsg.TagSenderCompID, "S")
	msg.Header.Set(fixmsg.TagTargetCompID, "T")
	msg.Header.SetInt(fixmsg.TagMsgSeqNum, 1)
	msg.Body.SetInt(fixmsg.TagEncryptMethod, 0)
	msg.Body.SetInt(fixmsg.TagHeartBtInt, 30)

	raw, err := msg.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := fixmsg.ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}

	if mt, _ := got.MsgType(); mt != fixmsg.MsgTypeLogon {
		t.Fatalf("MsgType = %q, want A", mt)
	}
	if n, _ := got.MsgSeqNum(); n != 1 {
		t.Fatalf("MsgSeqNum = %d, want 1", n)
	}
	if v, err := got.Body.GetInt(fixmsg.TagHeartBtInt); err != nil || v != 30 {
		t.Fatalf("HeartBtInt = %d, %v, want 30, nil", v, err)
	}

	// Re-parsing must also pass checksum/bodylength validation via the framer.
	f := fixmsg.NewFramer(newReaderFromBytes(raw))
	again, err := f.Next()
	if err != nil {
		t.Fatalf("Framer.Next on built message: %v", err)
	}
	if string(again) != string(raw) {
		t.Fatalf("framed bytes differ from built bytes")
	}
}

func TestParseMessageRejectsBadHeaderOrder(t *testing.T) {
	t.Parallel()

	raw := soh("35=A|8=FIX.4.4|9=5|10=000|")
	if _, err := fixmsg.ParseMessage(raw); err == nil {
		t.Fatal("expected error for out-of-order leading fields")
	}
}

func TestFieldMapGetFieldNotFound(t *testing.T) {
	t.Parallel()

	fm := fixmsg.NewFieldMap()
	if _, err := fm.GetField(fixmsg.TagHeartBtInt); err == nil {
		t.Fatal("expected ErrFieldNotFound")
	}
}

func TestFieldMapSetFieldOverwrite(t *testing.T) {
	t.Parallel()

	fm := fixmsg.NewFieldMap()
	fm.Set(fixmsg.TagText, "first")
	fm.SetField(fixmsg.TagText, "second", false)
	if v, _ := fm.GetField(fixmsg.TagText); v != "first" {
		t.Fatalf("GetField = %q, want %q (overwrite=false should not replace)", v, "first")
	}
	fm.SetField(fixmsg.TagText, "third", true)
	if v, _ := fm.GetField(fixmsg.TagText); v != "third" {
		t.Fatalf("GetField = %q, want %q", v, "third")
	}
}

func TestGroupAddGetRemoveOneBased(t *testing.T) {
	t.Parallel()

	fm := fixmsg.NewFieldMap()
	const noMsgTypes fixmsg.Tag = 384
	const refMsgType fixmsg.Tag = 372

	g1 := fixmsg.NewGroup(refMsgType)
	g1.Set(refMsgType, "D")
	g2 := fixmsg.NewGroup(refMsgType)
	g2.Set(refMsgType, "8")

	fm.AddGroup(noMsgTypes, g1)
	fm.AddGroup(noMsgTypes, g2)

	if fm.GroupCount(noMsgTypes) != 2 {
		t.Fatalf("GroupCount = %d, want 2", fm.GroupCount(noMsgTypes))
	}

	got, err := fm.GetGroup(1, noMsgTypes)
	if err != nil {
		t.Fatalf("GetGroup(1): %v", err)
	}
	if v, _ := got.GetField(refMsgType); v != "D" {
		t.Fatalf("GetGroup(1) RefMsgType = %q, want D", v)
	}

	if _, err := fm.GetGroup(0, noMsgTypes); err == nil {
		t.Fatal("GetGroup(0) should fail: 1-based indexing")
	}
	if _, err := fm.GetGroup(3, noMsgTypes); err == nil {
		t.Fatal("GetGroup(3) should fail: out of range")
	}

	if err := fm.RemoveGroup(1, noMsgTypes); err != nil {
		t.Fatalf("RemoveGroup(1): %v", err)
	}
	if fm.GroupCount(noMsgTypes) != 1 {
		t.Fatalf("GroupCount after remove = %d, want 1", fm.GroupCount(noMsgTypes))
	}
	remaining, err := fm.GetGroup(1, noMsgTypes)
	if err != nil {
		t.Fatalf("GetGroup(1) after remove: %v", err)
	}
	if v, _ := remaining.GetField(refMsgType); v != "8" {
		t.Fatalf("remaining group RefMsgType = %q, want 8", v)
	}
}

// TestParseMessageWithGroupsReconstructsInstances verifies that
// ParseMessageWithGroups, unlike plain ParseMessage, recovers each
// repeating-group instance instead of letting same-tag fields from later
// instances overwrite earlier ones (spec.md §4.2 Group, §8 Testable
// Property 3).
func TestParseMessageWithGroupsReconstructsInstances(t *testing.T) {
	t.Parallel()

	const noPartyIDs fixmsg.Tag = 453
	const partyID fixmsg.Tag = 448
	const partyIDSource fixmsg.Tag = 447

	raw := soh("8=FIX.4.4|9=5|35=D|49=S|56=T|34=1|52=20260730-00:00:00|" +
		"453=2|448=AAA|447=D|448=BBB|447=D|10=000|")

	lookup := func(msgType string) map[fixmsg.Tag]fixmsg.GroupLayout {
		if msgType != "D" {
			return nil
		}
		return map[fixmsg.Tag]fixmsg.GroupLayout{
			noPartyIDs: {DelimTag: partyID, Members: []fixmsg.Tag{partyID, partyIDSource}},
		}
	}

	msg, err := fixmsg.ParseMessageWithGroups(raw, lookup)
	if err != nil {
		t.Fatalf("ParseMessageWithGroups: %v", err)
	}

	if got := msg.Body.GroupCount(noPartyIDs); got != 2 {
		t.Fatalf("GroupCount(NoPartyIDs) = %d, want 2", got)
	}
	first, err := msg.Body.GetGroup(1, noPartyIDs)
	if err != nil {
		t.Fatalf("GetGroup(1): %v", err)
	}
	if v, _ := first.GetField(partyID); v != "AAA" {
		t.Fatalf("instance 1 PartyID = %q, want AAA", v)
	}
	second, err := msg.Body.GetGroup(2, noPartyIDs)
	if err != nil {
		t.Fatalf("GetGroup(2): %v", err)
	}
	if v, _ := second.GetField(partyID); v != "BBB" {
		t.Fatalf("instance 2 PartyID = %q, want BBB", v)
	}

	// Rebuilding must re-emit both instances, not just the last-seen values.
	out, err := msg.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	again, err := fixmsg.ParseMessageWithGroups(out, lookup)
	if err != nil {
		t.Fatalf("ParseMessageWithGroups on rebuilt bytes: %v", err)
	}
	if got := again.Body.GroupCount(noPartyIDs); got != 2 {
		t.Fatalf("GroupCount after round-trip = %d, want 2", got)
	}
}

// TestParseMessagePlainFlattensGroups documents ParseMessage's flat-parse
// behavior for callers with no dictionary: it is not expected to
// reconstruct groups, only ParseMessageWithGroups/dict.Dictionary.ParseMessage is.
func TestParseMessagePlainFlattensGroups(t *testing.T) {
	t.Parallel()

	raw := soh("8=FIX.4.4|9=5|35=D|49=S|56=T|34=1|52=20260730-00:00:00|" +
		"453=2|448=AAA|447=D|448=BBB|447=D|10=000|")

	msg, err := fixmsg.ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if got := msg.Body.GroupCount(453); got != 0 {
		t.Fatalf("GroupCount = %d, want 0 (no lookup supplied)", got)
	}
}

type byteReader struct {
	b []byte
}

func (r *byteReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}

func newReaderFromBytes(b []byte) *byteReader {
	return &byteReader{b: append([]byte{}, b...)}
}
