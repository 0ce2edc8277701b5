// Package hl7v2 provides parsing primitives for HL7 v2.x pipe-delimited messages.
package hl7v2

import "strings"

// HL7 encoding characters. Repetition (~) and escape (\) are treated as
// opaque text; only field, component and subcomponent separators are split.
const (
	FieldSeparator        = "|"
	ComponentSeparator    = "^"
	SubcomponentSeparator = "&"
	RepetitionSeparator   = "~"
	EscapeCharacter       = `\`
)

// Field is the raw text of a single HL7 field. Components and subcomponents
// are split lazily and addressed 1-based per HL7 convention.
type Field string

// String returns the raw field text.
func (f Field) String() string {
	return string(f)
}

// Components splits the field on the component separator.
func (f Field) Components() []string {
	return strings.Split(string(f), ComponentSeparator)
}

// Component returns the i-th component (1-based). Out-of-range indices
// return the empty string, never an error.
func (f Field) Component(i int) string {
	if i < 1 {
		return ""
	}
	parts := f.Components()
	if i > len(parts) {
		return ""
	}
	return parts[i-1]
}

// Subcomponent returns the j-th subcomponent of the i-th component, both
// 1-based. Out-of-range indices return the empty string.
func (f Field) Subcomponent(i, j int) string {
	if j < 1 {
		return ""
	}
	parts := strings.Split(f.Component(i), SubcomponentSeparator)
	if j > len(parts) {
		return ""
	}
	return parts[j-1]
}

// HasComponents reports whether the field contains a component separator.
func (f Field) HasComponents() bool {
	return strings.Contains(string(f), ComponentSeparator)
}

// Segment is a single parsed HL7 segment. Fields[0] is the segment type tag.
// Segments are immutable once parsed.
type Segment struct {
	Type   string
	Fields []string
	Line   int
	Raw    string
}

// Field returns the i-th pipe-delimited token of the segment, with Fields[0]
// being the segment type tag. Out-of-range access returns the empty string:
// a missing field is not a parse error.
func (s Segment) Field(i int) Field {
	if i < 0 || i >= len(s.Fields) {
		return ""
	}
	return Field(s.Fields[i])
}

// FieldCount returns the number of pipe-delimited tokens, including the tag.
func (s Segment) FieldCount() int {
	return len(s.Fields)
}
