package dict

import "github.com/dantte-lp/gofix/internal/fixmsg"

// FieldType is the declared data type of a dictionary field, used for basic
// type-checking (spec.md §4.3: "field ... types").
type FieldType string

// Field types recognized by the validator. Unrecognized types in a loaded
// dictionary are treated as STRING (no additional checking).
const (
	TypeString       FieldType = "STRING"
	TypeChar         FieldType = "CHAR"
	TypeInt          FieldType = "INT"
	TypeSeqNum       FieldType = "SEQNUM"
	TypeNumInGroup   FieldType = "NUMINGROUP"
	TypeFloat        FieldType = "FLOAT"
	TypeQty          FieldType = "QTY"
	TypePrice        FieldType = "PRICE"
	TypeBoolean      FieldType = "BOOLEAN"
	TypeUTCTimestamp FieldType = "UTCTIMESTAMP"
	TypeData         FieldType = "DATA"
	TypeLength       FieldType = "LENGTH"
)

// FieldSpec describes one tag's dictionary entry.
type FieldSpec struct {
	Tag  fixmsg.Tag
	Name string
	Type FieldType
	// Enum, if non-nil, is the set of legal values for this field. A nil
	// map means any value is accepted (no enumeration declared).
	Enum map[string]bool
}

// FieldRef is a reference to a field within a message, header or trailer
// definition: the tag, whether it is required, and (for groups) its nested
// GroupSpec.
type FieldRef struct {
	Tag      fixmsg.Tag
	Required bool
	Group    *GroupSpec
}

// GroupSpec describes a repeating group: its NoXxx count tag, its
// delimiter (first field of each instance), and the instance's member
// fields in declared order (spec.md §4.3: "group counts match declared
// NoXxx").
type GroupSpec struct {
	CountTag fixmsg.Tag
	DelimTag fixmsg.Tag
	Members  []FieldRef
}

// MessageSpec is one MsgType's dictionary entry: its declared field order
// (spec.md §4.2: "header/body ... field order") plus which are required.
type MessageSpec struct {
	MsgType string
	Name    string
	Fields  []FieldRef
}

// RequiredTags returns the top-level tags MessageSpec marks required.
func (m MessageSpec) RequiredTags() []fixmsg.Tag {
	var out []fixmsg.Tag
	for _, f := range m.Fields {
		if f.Required {
			out = append(out, f.Tag)
		}
	}
	return out
}

// FieldOrder returns the declared tag order for MessageSpec's top-level
// fields (group count tags included, group members excluded).
func (m MessageSpec) FieldOrder() []fixmsg.Tag {
	out := make([]fixmsg.Tag, len(m.Fields))
	for i, f := range m.Fields {
		out[i] = f.Tag
	}
	return out
}

// Dictionary is a single FIX version's data dictionary: the field
// definitions, the header/trailer layout, and the per-MsgType message
// definitions (spec.md §4.3).
type Dictionary struct {
	BeginString string
	Fields      map[fixmsg.Tag]FieldSpec
	Header      []FieldRef
	Trailer     []FieldRef
	Messages    map[string]MessageSpec

	// CheckUnknownFields controls whether tags absent from Fields are
	// rejected (spec.md §4.3: "unknown tags (configurable)").
	CheckUnknownFields bool
}

// NewDictionary returns an empty Dictionary for beginString, ready to have
// fields and messages registered (by LoadXML or directly by callers
// constructing a dictionary in code, e.g. in tests).
func NewDictionary(beginString string) *Dictionary {
	return &Dictionary{
		BeginString: beginString,
		Fields:      make(map[fixmsg.Tag]FieldSpec),
		Messages:    make(map[string]MessageSpec),
	}
}

// Field looks up a field's spec, reporting ok=false for unknown tags.
func (d *Dictionary) Field(tag fixmsg.Tag) (FieldSpec, bool) {
	f, ok := d.Fields[tag]
	return f, ok
}

// Message looks up a MsgType's spec, reporting ok=false for unknown types.
func (d *Dictionary) Message(msgType string) (MessageSpec, bool) {
	m, ok := d.Messages[msgType]
	return m, ok
}

// GroupLayouts resolves msgType's repeating groups into the shape
// fixmsg.ParseMessageWithGroups needs to reconstruct them at parse time,
// keyed by each group's NumInGroup count tag. It implements
// fixmsg.GroupLookup. Unknown MsgTypes resolve to no groups rather than an
// error, since parsing happens before Validate gets a chance to reject an
// unrecognized MsgType.
func (d *Dictionary) GroupLayouts(msgType string) map[fixmsg.Tag]fixmsg.GroupLayout {
	spec, ok := d.Message(msgType)
	if !ok {
		return nil
	}
	return groupLayoutsForFields(spec.Fields)
}

func groupLayoutsForFields(fields []FieldRef) map[fixmsg.Tag]fixmsg.GroupLayout {
	var out map[fixmsg.Tag]fixmsg.GroupLayout
	for _, f := range fields {
		if f.Group == nil {
			continue
		}
		if out == nil {
			out = make(map[fixmsg.Tag]fixmsg.GroupLayout)
		}
		out[f.Group.CountTag] = groupLayoutFor(*f.Group)
	}
	return out
}

func groupLayoutFor(g GroupSpec) fixmsg.GroupLayout {
	members := make([]fixmsg.Tag, len(g.Members))
	for i, m := range g.Members {
		members[i] = m.Tag
	}
	layout := fixmsg.GroupLayout{DelimTag: g.DelimTag, Members: members}
	layout.Nested = groupLayoutsForFields(g.Members)
	return layout
}

// ParseMessage parses raw using d's group layouts, so the returned Message's
// Body correctly carries repeating group instances rather than a flat,
// last-value-wins field list (spec.md §4.2, §4.3).
func (d *Dictionary) ParseMessage(raw []byte) (*fixmsg.Message, error) {
	return fixmsg.ParseMessageWithGroups(raw, d.GroupLayouts)
}

// FIXT11Dictionary composes a transport dictionary (session-layer messages:
// Logon, Logout, Heartbeat, TestRequest, ResendRequest, SequenceReset,
// Reject) with one or more application dictionaries keyed by
// DefaultApplVerID, as FIXT.1.1 requires (spec.md §4.3, §6).
type FIXT11Dictionary struct {
	Transport *Dictionary
	App       map[string]*Dictionary // keyed by ApplVerID, e.g. "7" for FIX.5.0SP2
}

// NewFIXT11Dictionary returns a composed dictionary around transport.
func NewFIXT11Dictionary(transport *Dictionary) *FIXT11Dictionary {
	return &FIXT11Dictionary{Transport: transport, App: make(map[string]*Dictionary)}
}

// AddApp registers an application dictionary under applVerID.
func (c *FIXT11Dictionary) AddApp(applVerID string, d *Dictionary) {
	c.App[applVerID] = d
}

// For returns the dictionary that should validate msgType: the transport
// dictionary for admin message types, the application dictionary for
// applVerID otherwise.
func (c *FIXT11Dictionary) For(msgType, applVerID string) (*Dictionary, bool) {
	if fixmsg.IsAdminMsgType(msgType) {
		return c.Transport, true
	}
	d, ok := c.App[applVerID]
	return d, ok
}
