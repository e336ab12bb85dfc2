package dict

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/dantte-lp/gofix/internal/fixmsg"
)

// xmlRoot mirrors the QuickFIX-style data dictionary XML shape: a <fields>
// section declaring every tag's name/type/enum, a <header>/<trailer>
// section listing the transport envelope, and a <messages> section with one
// <message> per MsgType (spec.md §1: "data dictionary XML parsing" is an
// external collaborator concern; this is that parser).
type xmlRoot struct {
	XMLName  xml.Name        `xml:"fix"`
	Header   xmlFieldRefList `xml:"header"`
	Trailer  xmlFieldRefList `xml:"trailer"`
	Messages []xmlMessage    `xml:"messages>message"`
	Fields   []xmlField      `xml:"fields>field"`
}

type xmlField struct {
	Number int       `xml:"number,attr"`
	Name   string    `xml:"name,attr"`
	Type   string    `xml:"type,attr"`
	Values []xmlEnum `xml:"value"`
}

type xmlEnum struct {
	Enum        string `xml:"enum,attr"`
	Description string `xml:"description,attr"`
}

// xmlFieldRef is one <field> or <group> element, possibly with nested
// <field>/<group> children (group members).
type xmlFieldRef struct {
	IsGroup  bool
	Name     string
	Required string
	Children []xmlFieldRef
}

// xmlFieldRefList decodes the direct <field>/<group> children of a
// container element (<header>, <trailer>, or a <group>), preserving
// document order.
type xmlFieldRefList struct {
	Refs []xmlFieldRef
}

func (l *xmlFieldRefList) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	refs, err := decodeFieldRefs(d, start)
	if err != nil {
		return err
	}
	l.Refs = refs
	return nil
}

// xmlMessage is a <message> element; its <field>/<group> children are its
// declared body fields, decoded with the same container logic used for
// <header>/<trailer>/<group>.
type xmlMessage struct {
	Name    string
	MsgType string
	MsgCat  string
	Fields  []xmlFieldRef
}

func (m *xmlMessage) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "name":
			m.Name = a.Value
		case "msgtype":
			m.MsgType = a.Value
		case "msgcat":
			m.MsgCat = a.Value
		}
	}
	refs, err := decodeFieldRefs(d, start)
	if err != nil {
		return err
	}
	m.Fields = refs
	return nil
}

// decodeFieldRefs reads the <field>/<group> children of start until start's
// matching end tag, returning them in document order. <group> children are
// decoded recursively into xmlFieldRef.Children.
func decodeFieldRefs(d *xml.Decoder, start xml.StartElement) ([]xmlFieldRef, error) {
	var out []xmlFieldRef
	for {
		tok, err := d.Token()
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "field" && t.Name.Local != "group" {
				if err := d.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			ref := xmlFieldRef{IsGroup: t.Name.Local == "group"}
			for _, a := range t.Attr {
				switch a.Name.Local {
				case "name":
					ref.Name = a.Value
				case "required":
					ref.Required = a.Value
				}
			}
			if ref.IsGroup {
				children, err := decodeFieldRefs(d, t)
				if err != nil {
					return nil, err
				}
				ref.Children = children
			} else if err := d.Skip(); err != nil {
				return nil, err
			}
			out = append(out, ref)
		case xml.EndElement:
			if t.Name == start.Name {
				return out, nil
			}
		}
	}
}

// LoadXML parses a QuickFIX-style data dictionary XML document into a
// Dictionary for beginString.
func LoadXML(beginString string, r io.Reader) (*Dictionary, error) {
	var root xmlRoot
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("dict: parse dictionary xml: %w", err)
	}

	d := NewDictionary(beginString)

	nameToTag := make(map[string]fixmsg.Tag, len(root.Fields))
	for _, f := range root.Fields {
		tag := fixmsg.Tag(f.Number)
		nameToTag[f.Name] = tag
		spec := FieldSpec{Tag: tag, Name: f.Name, Type: FieldType(f.Type)}
		if len(f.Values) > 0 {
			spec.Enum = make(map[string]bool, len(f.Values))
			for _, v := range f.Values {
				spec.Enum[v.Enum] = true
			}
		}
		d.Fields[tag] = spec
	}

	d.Header = resolveRefs(root.Header.Refs, nameToTag)
	d.Trailer = resolveRefs(root.Trailer.Refs, nameToTag)

	for _, m := range root.Messages {
		d.Messages[m.MsgType] = MessageSpec{
			MsgType: m.MsgType,
			Name:    m.Name,
			Fields:  resolveRefs(m.Fields, nameToTag),
		}
	}

	return d, nil
}

func resolveRefs(refs []xmlFieldRef, nameToTag map[string]fixmsg.Tag) []FieldRef {
	out := make([]FieldRef, 0, len(refs))
	for _, r := range refs {
		tag, ok := nameToTag[r.Name]
		if !ok {
			continue
		}
		fr := FieldRef{Tag: tag, Required: r.Required == "Y"}
		if r.IsGroup && len(r.Children) > 0 {
			members := resolveRefs(r.Children, nameToTag)
			delim := fixmsg.Tag(0)
			if len(members) > 0 {
				delim = members[0].Tag
			}
			fr.Group = &GroupSpec{CountTag: tag, DelimTag: delim, Members: members}
		}
		out = append(out, fr)
	}
	return out
}
