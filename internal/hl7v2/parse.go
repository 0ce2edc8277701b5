package hl7v2

import "strings"

// Parse splits raw HL7 message text into an ordered sequence of typed
// segments. Line endings may be CR, LF or CRLF in any mix. Blank lines are
// skipped, and a line that yields fewer than two pipe-delimited tokens is
// silently dropped rather than flagged.
func Parse(raw string) []Segment {
	var segments []Segment

	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	for i, line := range strings.Split(strings.TrimSpace(normalized), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, FieldSeparator)
		if len(fields) < 2 {
			continue
		}
		segments = append(segments, Segment{
			Type:   fields[0],
			Fields: fields,
			Line:   i + 1,
			Raw:    line,
		})
	}

	return segments
}

// FindFirst returns the first segment of the given type, or false when the
// message contains none.
func FindFirst(segments []Segment, segType string) (Segment, bool) {
	for _, seg := range segments {
		if seg.Type == segType {
			return seg, true
		}
	}
	return Segment{}, false
}

// FindAll returns all segments of the given type in source order.
func FindAll(segments []Segment, segType string) []Segment {
	var out []Segment
	for _, seg := range segments {
		if seg.Type == segType {
			out = append(out, seg)
		}
	}
	return out
}
