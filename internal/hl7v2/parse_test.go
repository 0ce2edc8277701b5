package hl7v2

import "testing"

func TestParseLineEndings(t *testing.T) {
	for _, sep := range []string{"\n", "\r", "\r\n"} {
		raw := "MSH|^~\\&|A|B|C|D|20240101120000||ADT^A01|1|P|2.5.1" + sep +
			"PID|1|123|123^^^X^MR||SMITH^JOHN||19650312|M"
		segments := Parse(raw)
		if len(segments) != 2 {
			t.Errorf("separator %q: got %d segments, want 2", sep, len(segments))
			continue
		}
		if segments[0].Type != "MSH" || segments[1].Type != "PID" {
			t.Errorf("separator %q: types %s/%s", sep, segments[0].Type, segments[1].Type)
		}
	}
}

func TestParseSkipsBlankAndBareLines(t *testing.T) {
	raw := "MSH|^~\\&|A|B|C|D|20240101120000||ADT^A01|1|P|2.5.1\n" +
		"\n" +
		"garbage without pipes\n" +
		"PID|1|123|123^^^X^MR||SMITH^JOHN||19650312|M\n"
	segments := Parse(raw)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
}

func TestParseEmpty(t *testing.T) {
	if got := Parse(""); got != nil {
		t.Errorf("Parse(\"\") = %v, want nil", got)
	}
}

func TestFieldOutOfRange(t *testing.T) {
	seg := Parse("PID|1|123")[0]
	if got := seg.Field(99); got != "" {
		t.Errorf("out-of-range field = %q, want empty", got)
	}
	if got := seg.Field(-1); got != "" {
		t.Errorf("negative index = %q, want empty", got)
	}
	if got := seg.Field(2); got != "123" {
		t.Errorf("Field(2) = %q, want 123", got)
	}
}

func TestComponents(t *testing.T) {
	f := Field("123^^^SIMULATOR^MR")
	if got := f.Component(1); got != "123" {
		t.Errorf("Component(1) = %q", got)
	}
	if got := f.Component(5); got != "MR" {
		t.Errorf("Component(5) = %q", got)
	}
	if got := f.Component(6); got != "" {
		t.Errorf("out-of-range component = %q, want empty", got)
	}
	if !f.HasComponents() {
		t.Error("HasComponents() = false")
	}
}

func TestSubcomponents(t *testing.T) {
	f := Field("A&B^C")
	if got := f.Subcomponent(1, 2); got != "B" {
		t.Errorf("Subcomponent(1,2) = %q", got)
	}
	if got := f.Subcomponent(2, 1); got != "C" {
		t.Errorf("Subcomponent(2,1) = %q", got)
	}
	if got := f.Subcomponent(1, 9); got != "" {
		t.Errorf("out-of-range subcomponent = %q", got)
	}
}

func TestFindHelpers(t *testing.T) {
	segments := Parse("MSH|^~\\&|A|B|C|D|1||ADT^A01|1|P|2.5.1\nOBX|1|NM|x\nOBX|2|NM|y")
	if _, ok := FindFirst(segments, "PID"); ok {
		t.Error("FindFirst found a PID that is not there")
	}
	if got := len(FindAll(segments, "OBX")); got != 2 {
		t.Errorf("FindAll(OBX) = %d, want 2", got)
	}
}

func TestToISO8601(t *testing.T) {
	cases := []struct{ in, want string }{
		{"20240101", "2024-01-01"},
		{"2024010112", "2024-01-01T12:00:00Z"},
		{"202401011230", "2024-01-01T12:30:00Z"},
		{"20240101123045", "2024-01-01T12:30:45Z"},
		{"2024-01-01T12:30", "2024-01-01T12:30:00Z"}, // non-digits stripped first
		{"1234567", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ToISO8601(tc.in); got != tc.want {
			t.Errorf("ToISO8601(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestToHL7(t *testing.T) {
	cases := []struct{ in, want string }{
		{"2024-01-01T12:30:45Z", "20240101123045"},
		{"2024-01-01", "20240101"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ToHL7(tc.in); got != tc.want {
			t.Errorf("ToHL7(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTimestampRoundTripExact(t *testing.T) {
	ts := "20240101123045"
	if got := ToHL7(ToISO8601(ts)); got != ts {
		t.Errorf("round trip = %q, want %q", got, ts)
	}
}
