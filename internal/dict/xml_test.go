package dict

import (
	"strings"
	"testing"

	"github.com/dantte-lp/gofix/internal/fixmsg"
)

const sampleDictionaryXML = `<fix major="4" minor="4" type="FIX">
  <header>
    <field name="BeginString" required="Y"/>
    <field name="BodyLength" required="Y"/>
    <field name="MsgType" required="Y"/>
    <field name="SenderCompID" required="Y"/>
    <field name="TargetCompID" required="Y"/>
    <field name="MsgSeqNum" required="Y"/>
    <field name="SendingTime" required="Y"/>
  </header>
  <trailer>
    <field name="CheckSum" required="Y"/>
  </trailer>
  <messages>
    <message name="NewOrderSingle" msgtype="D" msgcat="app">
      <field name="ClOrdID" required="Y"/>
      <field name="Symbol" required="Y"/>
      <field name="Side" required="Y"/>
      <group name="NoAllocs" required="N">
        <field name="AllocAccount" required="Y"/>
        <field name="AllocShares" required="N"/>
      </group>
    </message>
  </messages>
  <fields>
    <field number="8" name="BeginString" type="STRING"/>
    <field number="9" name="BodyLength" type="LENGTH"/>
    <field number="35" name="MsgType" type="STRING"/>
    <field number="49" name="SenderCompID" type="STRING"/>
    <field number="56" name="TargetCompID" type="STRING"/>
    <field number="34" name="MsgSeqNum" type="SEQNUM"/>
    <field number="52" name="SendingTime" type="UTCTIMESTAMP"/>
    <field number="10" name="CheckSum" type="STRING"/>
    <field number="11" name="ClOrdID" type="STRING"/>
    <field number="55" name="Symbol" type="STRING"/>
    <field number="54" name="Side" type="CHAR">
      <value enum="1" description="BUY"/>
      <value enum="2" description="SELL"/>
    </field>
    <field number="78" name="NoAllocs" type="NUMINGROUP"/>
    <field number="79" name="AllocAccount" type="STRING"/>
    <field number="80" name="AllocShares" type="QTY"/>
  </fields>
</fix>`

func TestLoadXMLRoundTrip(t *testing.T) {
	d, err := LoadXML("FIX.4.4", strings.NewReader(sampleDictionaryXML))
	if err != nil {
		t.Fatalf("LoadXML: %v", err)
	}

	if len(d.Header) != 7 {
		t.Fatalf("expected 7 header fields, got %d", len(d.Header))
	}
	if d.Header[0].Tag != fixmsg.Tag(8) || !d.Header[0].Required {
		t.Fatalf("expected first header field to be required BeginString(8), got %+v", d.Header[0])
	}

	spec, ok := d.Message("D")
	if !ok {
		t.Fatalf("expected message D to be registered")
	}
	if spec.Name != "NewOrderSingle" {
		t.Fatalf("expected name NewOrderSingle, got %q", spec.Name)
	}
	if len(spec.Fields) != 4 {
		t.Fatalf("expected 4 top-level fields (3 scalar + 1 group), got %d", len(spec.Fields))
	}

	group := spec.Fields[3]
	if group.Group == nil {
		t.Fatalf("expected NoAllocs field to carry a GroupSpec")
	}
	if group.Group.CountTag != fixmsg.Tag(78) {
		t.Fatalf("expected group count tag 78, got %d", group.Group.CountTag)
	}
	if group.Group.DelimTag != fixmsg.Tag(79) {
		t.Fatalf("expected group delimiter tag 79 (first member), got %d", group.Group.DelimTag)
	}
	if len(group.Group.Members) != 2 {
		t.Fatalf("expected 2 group members, got %d", len(group.Group.Members))
	}

	sideSpec, ok := d.Field(fixmsg.Tag(54))
	if !ok {
		t.Fatalf("expected tag 54 (Side) to be registered")
	}
	if !sideSpec.Enum["1"] || !sideSpec.Enum["2"] || sideSpec.Enum["3"] {
		t.Fatalf("unexpected Side enum set: %v", sideSpec.Enum)
	}
}

func TestLoadXMLValidatesParsedMessage(t *testing.T) {
	d, err := LoadXML("FIX.4.4", strings.NewReader(sampleDictionaryXML))
	if err != nil {
		t.Fatalf("LoadXML: %v", err)
	}

	msg := newOrderMsg(t, "11=A1|55=EUR/USD|54=1|")
	if errs := Validate(d, msg); len(errs) != 0 {
		t.Fatalf("expected clean message to validate against loaded dictionary, got %v", errs)
	}

	bad := newOrderMsg(t, "11=A1|55=EUR/USD|54=7|")
	errs := Validate(d, bad)
	found := false
	for _, e := range errs {
		if e.Reason == RejectValueIncorrect && e.Tag == fixmsg.Tag(54) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected RejectValueIncorrect for out-of-enum Side, got %v", errs)
	}
}
