package dict

import (
	"strconv"

	"github.com/dantte-lp/gofix/internal/fixmsg"
)

// Validate checks msg against d: the MsgType's required top-level tags
// present, unknown body tags (if CheckUnknownFields), declared field order of
// the top-level body fields, enumerated values and basic data types in
// header/body/trailer, and repeating group cardinality (spec.md §4.3).
// Header and trailer field order, the order of fields inside group
// instances, and conditional (MsgType-dependent) requirements are not
// checked.
//
// It returns every violation found rather than stopping at the first, so
// callers (the session engine) can choose which single reason to report in
// a Reject(3) -- conventionally the first structural violation takes
// precedence over value-level ones.
func Validate(d *Dictionary, msg *fixmsg.Message) []*ValidationError {
	msgType, err := msg.MsgType()
	if err != nil {
		return []*ValidationError{{Reason: RejectRequiredTagMissing, Tag: fixmsg.TagMsgType, Text: "MsgType(35) missing"}}
	}

	spec, ok := d.Message(msgType)
	if !ok {
		return []*ValidationError{{MsgType: msgType, Reason: RejectInvalidMsgType, Text: "unrecognized MsgType"}}
	}

	var errs []*ValidationError

	for _, tag := range spec.RequiredTags() {
		if !fieldPresent(msg, tag) {
			errs = append(errs, &ValidationError{MsgType: msgType, Reason: RejectRequiredTagMissing, Tag: tag, Text: "required field missing"})
		}
	}

	errs = append(errs, validateFieldOrder(msgType, spec.FieldOrder(), msg.Body)...)
	errs = append(errs, validateTypesAndEnums(d, msgType, msg.Header)...)
	errs = append(errs, validateTypesAndEnums(d, msgType, msg.Body)...)
	errs = append(errs, validateTypesAndEnums(d, msgType, msg.Trailer)...)

	if d.CheckUnknownFields {
		errs = append(errs, validateUnknownTags(d, msgType, msg.Body)...)
	}

	for _, f := range spec.Fields {
		if f.Group == nil {
			continue
		}
		errs = append(errs, validateGroup(msgType, f, msg.Body)...)
	}

	return errs
}

func fieldPresent(msg *fixmsg.Message, tag fixmsg.Tag) bool {
	return msg.Header.Has(tag) || msg.Body.Has(tag) || msg.Trailer.Has(tag)
}

// validateFieldOrder reports RejectTagSpecifiedOutOfOrder when body fields
// that ARE present in the declared order appear in a relative order that
// contradicts it.
func validateFieldOrder(msgType string, declared []fixmsg.Tag, body *fixmsg.FieldMap) []*ValidationError {
	pos := make(map[fixmsg.Tag]int, len(declared))
	for i, t := range declared {
		pos[t] = i
	}

	var errs []*ValidationError
	lastPos := -1
	for _, tag := range body.Order() {
		p, known := pos[tag]
		if !known {
			continue
		}
		if p < lastPos {
			errs = append(errs, &ValidationError{MsgType: msgType, Reason: RejectTagSpecifiedOutOfOrder, Tag: tag, Text: "field out of declared order"})
			continue
		}
		lastPos = p
	}
	return errs
}

func validateUnknownTags(d *Dictionary, msgType string, fm *fixmsg.FieldMap) []*ValidationError {
	var errs []*ValidationError
	for _, tag := range fm.Order() {
		if _, ok := d.Field(tag); !ok {
			errs = append(errs, &ValidationError{MsgType: msgType, Reason: RejectUndefinedTag, Tag: tag, Text: "tag not defined in data dictionary"})
		}
	}
	return errs
}

func validateTypesAndEnums(d *Dictionary, msgType string, fm *fixmsg.FieldMap) []*ValidationError {
	var errs []*ValidationError
	for _, tag := range fm.Order() {
		spec, ok := d.Field(tag)
		if !ok {
			continue
		}
		raw, _ := fm.GetField(tag)
		if raw == "" {
			errs = append(errs, &ValidationError{MsgType: msgType, Reason: RejectTagSpecifiedWithoutValue, Tag: tag, Text: "empty value"})
			continue
		}
		if err := checkType(spec.Type, raw); err != nil {
			errs = append(errs, &ValidationError{MsgType: msgType, Reason: RejectIncorrectDataFormat, Tag: tag, Text: err.Error()})
			continue
		}
		if spec.Enum != nil && !spec.Enum[raw] {
			errs = append(errs, &ValidationError{MsgType: msgType, Reason: RejectValueIncorrect, Tag: tag, Text: "value not in enumeration"})
		}
	}
	return errs
}

func checkType(t FieldType, raw string) error {
	switch t {
	case TypeInt, TypeSeqNum, TypeNumInGroup, TypeLength:
		_, err := strconv.Atoi(raw)
		return err
	case TypeFloat, TypeQty, TypePrice:
		_, err := strconv.ParseFloat(raw, 64)
		return err
	case TypeBoolean:
		if raw != "Y" && raw != "N" {
			return errNotBoolean
		}
		return nil
	case TypeUTCTimestamp:
		_, err := fixmsg.ParseSendingTime(raw)
		return err
	case TypeChar:
		if len(raw) != 1 {
			return errNotChar
		}
		return nil
	default:
		return nil
	}
}

var errNotBoolean = newTypeError("value is not Y/N")
var errNotChar = newTypeError("value is not a single character")

type typeError struct{ msg string }

func newTypeError(msg string) error { return &typeError{msg: msg} }
func (e *typeError) Error() string  { return e.msg }

// validateGroup checks that the body's NumInGroup count for f.Group.CountTag
// matches the number of instances actually present (spec.md §4.3: "group
// counts match declared NoXxx").
func validateGroup(msgType string, f FieldRef, body *fixmsg.FieldMap) []*ValidationError {
	declared, err := body.GetInt(f.Group.CountTag)
	if err != nil {
		if f.Required {
			return []*ValidationError{{MsgType: msgType, Reason: RejectRequiredTagMissing, Tag: f.Group.CountTag, Text: "group count tag missing"}}
		}
		return nil
	}

	actual := body.GroupCount(f.Group.CountTag)
	if declared != actual {
		return []*ValidationError{{MsgType: msgType, Reason: RejectIncorrectNumInGroupCount, Tag: f.Group.CountTag, Text: "declared count does not match instances present"}}
	}
	return nil
}
