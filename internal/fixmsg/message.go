package fixmsg

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// SOH is the FIX field delimiter, byte 0x01 (spec.md §4.1).
const SOH = byte(0x01)

var headerTagSet = tagSet(headerFieldOrder)

var trailerTagSet = tagSet(append(append([]Tag{}, trailerFieldOrder...), TagCheckSum))

func tagSet(tags []Tag) map[Tag]bool {
	m := make(map[Tag]bool, len(tags))
	for _, t := range tags {
		m[t] = true
	}
	return m
}

// Message is the ordered collection of fields that make up one FIX message,
// partitioned into Header, Body and Trailer (spec.md §3 Message).
type Message struct {
	Header  *FieldMap
	Body    *FieldMap
	Trailer *FieldMap

	// ReceiveTime is when this message was read off the wire. Zero for
	// messages constructed locally for sending.
	ReceiveTime time.Time

	// raw is the original bytes this Message was parsed from, if any.
	// Nil for locally-constructed outbound messages prior to Build.
	raw []byte
}

// NewMessage returns an empty Message ready for outbound construction.
func NewMessage() *Message {
	return &Message{
		Header:  NewFieldMap(),
		Body:    NewFieldMap(),
		Trailer: NewFieldMap(),
	}
}

// MsgType returns the message's MsgType(35) header field.
func (m *Message) MsgType() (string, error) {
	return m.Header.GetField(TagMsgType)
}

// IsAdmin reports whether this message's MsgType is session-level.
func (m *Message) IsAdmin() bool {
	mt, err := m.MsgType()
	if err != nil {
		return false
	}
	return IsAdminMsgType(mt)
}

// MsgSeqNum returns the header's MsgSeqNum(34) field.
func (m *Message) MsgSeqNum() (int, error) {
	return m.Header.GetInt(TagMsgSeqNum)
}

// Bytes returns the raw bytes this Message was parsed from. Empty for
// messages that have not been parsed or built.
func (m *Message) Bytes() []byte {
	return m.raw
}

// GroupLayout describes one repeating group's wire shape for parse-time
// reconstruction: its delimiter tag (the first field of every instance) and
// its declared member tags in order. A member tag that is itself a nested
// group's count tag has a corresponding entry in Nested (spec.md §4.2,
// §4.3: repeating groups may nest).
type GroupLayout struct {
	DelimTag Tag
	Members  []Tag
	Nested   map[Tag]GroupLayout
}

// GroupLookup resolves a MsgType's repeating groups, keyed by each group's
// NoXxx count tag. It lets a data dictionary -- which alone knows group
// layouts -- drive group-aware parsing without fixmsg importing dict.
type GroupLookup func(msgType string) map[Tag]GroupLayout

// ParseMessage parses a single, already-framed raw FIX message (as produced
// by Framer) into a Message. It requires the message begin with
// BeginString(8), BodyLength(9), MsgType(35) in that order, per convention
// (spec.md §4.1, §4.2).
//
// ParseMessage does not reconstruct repeating groups -- every field is
// classified into a flat Header/Body/Trailer, so same-tag fields belonging
// to different group instances overwrite each other. Callers that expect
// a message's MsgType to carry repeating groups must use
// ParseMessageWithGroups (or Session.ParseMessage, which supplies the
// session's configured dictionary) instead.
func ParseMessage(raw []byte) (*Message, error) {
	return parseMessage(raw, nil)
}

// ParseMessageWithGroups parses raw the same way ParseMessage does, but
// additionally reconstructs repeating groups: for each body field whose tag
// groups resolves to a GroupLayout, it reads the preceding NumInGroup value,
// then walks that many delimiter-first instances off the wire and appends
// each as a Group via Body.AddGroup, recursing into Nested layouts
// (spec.md §4.2: "AddGroup(group)", §4.3: "group counts match declared
// NoXxx").
func ParseMessageWithGroups(raw []byte, groups GroupLookup) (*Message, error) {
	return parseMessage(raw, groups)
}

func parseMessage(raw []byte, lookup GroupLookup) (*Message, error) {
	msg := NewMessage()
	msg.raw = raw

	fields, err := splitFields(raw)
	if err != nil {
		return nil, err
	}
	if len(fields) < 3 {
		return nil, fmt.Errorf("%w: message too short", ErrParse)
	}
	if fields[0].Tag != TagBeginString || fields[1].Tag != TagBodyLength || fields[2].Tag != TagMsgType {
		return nil, fmt.Errorf("%w: message must begin with BeginString, BodyLength, MsgType", ErrParse)
	}

	var groups map[Tag]GroupLayout
	if lookup != nil {
		groups = lookup(fields[2].Value)
	}

	i := 0
	for i < len(fields) {
		fld := fields[i]
		switch {
		case headerTagSet[fld.Tag]:
			msg.Header.Set(fld.Tag, fld.Value)
			i++
		case trailerTagSet[fld.Tag]:
			msg.Trailer.Set(fld.Tag, fld.Value)
			i++
		default:
			layout, isGroup := groups[fld.Tag]
			if !isGroup {
				msg.Body.Set(fld.Tag, fld.Value)
				i++
				continue
			}
			msg.Body.Set(fld.Tag, fld.Value)
			count, convErr := strconv.Atoi(fld.Value)
			if convErr != nil {
				return nil, fmt.Errorf("%w: group count tag %d value %q is not numeric", ErrParse, fld.Tag, fld.Value)
			}
			i++
			for n := 0; n < count; n++ {
				inst, consumed, gerr := parseGroupInstance(fields[i:], layout)
				if gerr != nil {
					return nil, fmt.Errorf("%w: group %d instance %d: %s", ErrParse, fld.Tag, n+1, gerr)
				}
				msg.Body.AddGroup(fld.Tag, inst)
				i += consumed
			}
		}
	}

	return msg, nil
}

// parseGroupInstance consumes one group instance starting at fields[0],
// which must carry layout.DelimTag, and continues until the next occurrence
// of DelimTag (the following instance) or a tag that is not one of the
// group's declared members (the group, and the field list it was nested
// in, ends there). It returns the instance and how many fields it consumed.
func parseGroupInstance(fields []rawField, layout GroupLayout) (*Group, int, error) {
	if len(fields) == 0 || fields[0].Tag != layout.DelimTag {
		return nil, 0, fmt.Errorf("%w: instance must start with delimiter tag %d", ErrParse, layout.DelimTag)
	}
	members := tagSet(layout.Members)

	g := NewGroup(layout.DelimTag)
	i := 0
	for i < len(fields) {
		fld := fields[i]
		if i > 0 && fld.Tag == layout.DelimTag {
			break
		}
		if !members[fld.Tag] {
			break
		}
		nested, isNested := layout.Nested[fld.Tag]
		if !isNested {
			g.Set(fld.Tag, fld.Value)
			i++
			continue
		}
		g.Set(fld.Tag, fld.Value)
		count, convErr := strconv.Atoi(fld.Value)
		if convErr != nil {
			return nil, 0, fmt.Errorf("%w: nested group count tag %d value %q is not numeric", ErrParse, fld.Tag, fld.Value)
		}
		i++
		for n := 0; n < count; n++ {
			nestedInst, consumed, gerr := parseGroupInstance(fields[i:], nested)
			if gerr != nil {
				return nil, 0, gerr
			}
			g.AddGroup(fld.Tag, nestedInst)
			i += consumed
		}
	}
	return g, i, nil
}

// rawField is one tag=value pair as it appeared on the wire.
type rawField struct {
	Tag   Tag
	Value string
}

// splitFields walks raw, which must be SOH-delimited tag=value pairs with
// a trailing SOH after the final field, into an ordered field list.
func splitFields(raw []byte) ([]rawField, error) {
	var out []rawField
	for len(raw) > 0 {
		soh := bytes.IndexByte(raw, SOH)
		if soh < 0 {
			return nil, fmt.Errorf("%w: unterminated field", ErrParse)
		}
		field := raw[:soh]
		raw = raw[soh+1:]

		eq := bytes.IndexByte(field, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("%w: malformed field %q", ErrParse, field)
		}
		tagNum, err := strconv.Atoi(string(field[:eq]))
		if err != nil {
			return nil, fmt.Errorf("%w: non-numeric tag in %q", ErrParse, field)
		}
		out = append(out, rawField{Tag: Tag(tagNum), Value: string(field[eq+1:])})
	}
	return out, nil
}

// Build serializes the message, computing and overwriting BodyLength(9) and
// CheckSum(10) (spec.md §4.2: "Computes BodyLength and CheckSum just before
// output").
//
// Header fields are emitted in the configured tag order (headerFieldOrder),
// then Body fields in insertion order (including any repeating groups added
// via AddGroup, serialized delimiter-tag-first), then Trailer fields, with
// CheckSum always last.
func (m *Message) Build() ([]byte, error) {
	if !m.Header.Has(TagMsgType) {
		return nil, fmt.Errorf("%w: MsgType(35) required", ErrParse)
	}

	var body bytes.Buffer
	writeOrderedHeader(&body, m.Header)
	writeBody(&body, m.Body)
	writeTrailerExceptChecksum(&body, m.Trailer)

	bodyLen := body.Len()
	// BodyLength(9) counts bytes after "9=...<SOH>" up to and including the
	// <SOH> preceding "10=" -- i.e. everything we just wrote except the
	// BeginString/BodyLength fields themselves, which we haven't emitted yet.
	// We build the full frame in two passes: first without 8/9, to learn the
	// length, then prefix 8=/9= and recompute checksum over the whole thing.
	beginString, err := m.Header.GetField(TagBeginString)
	if err != nil {
		return nil, fmt.Errorf("%w: BeginString(8) required", ErrParse)
	}

	var full bytes.Buffer
	fmt.Fprintf(&full, "8=%s\x01", beginString)
	fmt.Fprintf(&full, "9=%d\x01", bodyLen)
	full.Write(body.Bytes())

	sum := checksum(full.Bytes())
	fmt.Fprintf(&full, "10=%03d\x01", sum)

	m.raw = full.Bytes()
	return m.raw, nil
}

// writeOrderedHeader writes h's fields (minus BeginString/BodyLength, which
// Build prefixes separately) in headerFieldOrder, then any remaining header
// fields not in that order in insertion order.
func writeOrderedHeader(buf *bytes.Buffer, h *FieldMap) {
	written := map[Tag]bool{TagBeginString: true, TagBodyLength: true}
	for _, tag := range headerFieldOrder {
		if tag == TagBeginString || tag == TagBodyLength {
			continue
		}
		if v, ok := h.values[tag]; ok {
			writeField(buf, tag, v)
			written[tag] = true
		}
	}
	for _, tag := range h.order {
		if !written[tag] {
			writeField(buf, tag, h.values[tag])
		}
	}
}

// writeBody writes b's scalar fields in insertion order, interleaving
// repeating groups at the point their count tag was inserted.
func writeBody(buf *bytes.Buffer, b *FieldMap) {
	groupWritten := map[Tag]bool{}
	for _, tag := range b.order {
		writeField(buf, tag, b.values[tag])
		if insts, ok := b.groups[tag]; ok && !groupWritten[tag] {
			writeGroupInstances(buf, insts)
			groupWritten[tag] = true
		}
	}
	// Groups whose count tag was never set as a scalar (AddGroup without a
	// preceding SetField for the NoXxx tag) are written with a synthesized
	// count field.
	for _, tag := range b.groupTags {
		if groupWritten[tag] {
			continue
		}
		writeField(buf, tag, strconv.Itoa(len(b.groups[tag])))
		writeGroupInstances(buf, b.groups[tag])
	}
}

func writeGroupInstances(buf *bytes.Buffer, insts []*Group) {
	for _, g := range insts {
		for _, tag := range g.orderedTags() {
			writeField(buf, tag, g.values[tag])
		}
	}
}

func writeTrailerExceptChecksum(buf *bytes.Buffer, t *FieldMap) {
	for _, tag := range trailerFieldOrder {
		if v, ok := t.values[tag]; ok {
			writeField(buf, tag, v)
		}
	}
}

func writeField(buf *bytes.Buffer, tag Tag, value string) {
	fmt.Fprintf(buf, "%d=%s\x01", int(tag), value)
}

// checksum computes the FIX CheckSum(10) value: the sum of all bytes mod 256
// (spec.md §3: "CheckSum is the sum of all preceding bytes modulo 256").
func checksum(b []byte) int {
	var sum int
	for _, c := range b {
		sum += int(c)
	}
	return sum % 256
}
