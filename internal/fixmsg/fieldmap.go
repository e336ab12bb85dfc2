package fixmsg

import (
	"fmt"
	"strconv"
	"time"
)

// FieldMap is an ordered tag->value container. It backs each of a Message's
// Header, Body and Trailer partitions, and backs each instance of a
// repeating Group (spec.md §3 Message, §4.2 FieldMap/Message).
//
// Scalar fields are stored as their raw wire string; typed accessors parse
// on read. Repeating groups are stored separately, keyed by the group's
// NoXxx count tag, preserving the 1-based indexing spec.md requires.
type FieldMap struct {
	values map[Tag]string
	order  []Tag // insertion order, used for body serialization

	groups    map[Tag][]*Group // countTag -> ordered instances
	groupTags []Tag            // insertion order of group countTags
}

// NewFieldMap returns an empty, ready-to-use FieldMap.
func NewFieldMap() *FieldMap {
	return &FieldMap{
		values: make(map[Tag]string),
		groups: make(map[Tag][]*Group),
	}
}

// SetField sets tag to value. If overwrite is false and tag is already
// present, the existing value is kept (spec.md §4.2: "overwrites unless
// overwrite=false").
func (f *FieldMap) SetField(tag Tag, value string, overwrite bool) {
	if _, exists := f.values[tag]; exists {
		if !overwrite {
			return
		}
		f.values[tag] = value
		return
	}
	f.values[tag] = value
	f.order = append(f.order, tag)
}

// Set is shorthand for SetField(tag, value, true).
func (f *FieldMap) Set(tag Tag, value string) {
	f.SetField(tag, value, true)
}

// SetInt sets tag to the base-10 representation of v.
func (f *FieldMap) SetInt(tag Tag, v int) {
	f.Set(tag, strconv.Itoa(v))
}

// Order returns the tags of this FieldMap's scalar fields in insertion
// order.
func (f *FieldMap) Order() []Tag {
	out := make([]Tag, len(f.order))
	copy(out, f.order)
	return out
}

// Has reports whether tag is present as a scalar field.
func (f *FieldMap) Has(tag Tag) bool {
	_, ok := f.values[tag]
	return ok
}

// GetField returns the raw string value of tag, or ErrFieldNotFound.
func (f *FieldMap) GetField(tag Tag) (string, error) {
	v, ok := f.values[tag]
	if !ok {
		return "", fmt.Errorf("%w: tag %d", ErrFieldNotFound, tag)
	}
	return v, nil
}

// GetInt returns tag's value parsed as an int.
func (f *FieldMap) GetInt(tag Tag) (int, error) {
	raw, err := f.GetField(tag)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: tag %d value %q: %s", ErrInvalidFieldValue, tag, raw, err)
	}
	return v, nil
}

// GetIntOrDefault returns tag's int value, or def if tag is absent.
func (f *FieldMap) GetIntOrDefault(tag Tag, def int) int {
	v, err := f.GetInt(tag)
	if err != nil {
		return def
	}
	return v
}

// GetBool returns tag's value interpreted as a FIX boolean ("Y"/"N").
func (f *FieldMap) GetBool(tag Tag) (bool, error) {
	raw, err := f.GetField(tag)
	if err != nil {
		return false, err
	}
	switch raw {
	case "Y":
		return true, nil
	case "N":
		return false, nil
	default:
		return false, fmt.Errorf("%w: tag %d value %q is not Y/N", ErrInvalidFieldValue, tag, raw)
	}
}

// SetBool sets tag to "Y" or "N".
func (f *FieldMap) SetBool(tag Tag, v bool) {
	if v {
		f.Set(tag, "Y")
		return
	}
	f.Set(tag, "N")
}

// GetTime returns tag's value parsed as a FIX UTCTimestamp.
func (f *FieldMap) GetTime(tag Tag) (time.Time, error) {
	raw, err := f.GetField(tag)
	if err != nil {
		return time.Time{}, err
	}
	t, err := ParseSendingTime(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: tag %d: %s", ErrInvalidFieldValue, tag, err)
	}
	return t, nil
}

// RemoveField deletes tag if present; absence is not an error.
func (f *FieldMap) RemoveField(tag Tag) {
	if _, ok := f.values[tag]; !ok {
		return
	}
	delete(f.values, tag)
	for i, t := range f.order {
		if t == tag {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// AddGroup appends g as the next instance under countTag (spec.md §4.2:
// "AddGroup(group)", 1-based indexing once stored).
func (f *FieldMap) AddGroup(countTag Tag, g *Group) {
	if _, ok := f.groups[countTag]; !ok {
		f.groupTags = append(f.groupTags, countTag)
	}
	f.groups[countTag] = append(f.groups[countTag], g)
}

// GetGroup returns the n'th (1-based) instance under countTag.
// Out-of-range n returns ErrFieldNotFound (spec.md DESIGN NOTES: the source's
// RemoveGroup mixed 0-based and 1-based indexing; this is specified 1-based
// consistently throughout).
func (f *FieldMap) GetGroup(n int, countTag Tag) (*Group, error) {
	instances := f.groups[countTag]
	if n < 1 || n > len(instances) {
		return nil, fmt.Errorf("%w: group %d instance %d", ErrFieldNotFound, countTag, n)
	}
	return instances[n-1], nil
}

// GroupCount returns the number of instances stored under countTag.
func (f *FieldMap) GroupCount(countTag Tag) int {
	return len(f.groups[countTag])
}

// RemoveGroup deletes the n'th (1-based) instance under countTag.
func (f *FieldMap) RemoveGroup(n int, countTag Tag) error {
	instances := f.groups[countTag]
	if n < 1 || n > len(instances) {
		return fmt.Errorf("%w: group %d instance %d", ErrFieldNotFound, countTag, n)
	}
	f.groups[countTag] = append(instances[:n-1], instances[n:]...)
	return nil
}
