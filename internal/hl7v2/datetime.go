package hl7v2

import "strings"

// ToISO8601 converts an HL7 numeric timestamp (YYYYMMDD[HH[MM[SS]]]) to an
// ISO-8601 string. Non-digit characters other than '.' are stripped first.
// Fewer than eight digits yields the empty string. Once any time-of-day
// digits are present the result carries a trailing Z, with missing minute
// and second defaulting to 00.
func ToISO8601(hl7 string) string {
	var b strings.Builder
	for _, c := range hl7 {
		if (c >= '0' && c <= '9') || c == '.' {
			b.WriteRune(c)
		}
	}
	clean := b.String()

	if len(clean) < 8 {
		return ""
	}

	date := clean[:4] + "-" + clean[4:6] + "-" + clean[6:8]
	switch {
	case len(clean) >= 14:
		return date + "T" + clean[8:10] + ":" + clean[10:12] + ":" + clean[12:14] + "Z"
	case len(clean) >= 12:
		return date + "T" + clean[8:10] + ":" + clean[10:12] + ":00Z"
	case len(clean) >= 10:
		return date + "T" + clean[8:10] + ":00:00Z"
	default:
		return date
	}
}

// ToHL7 converts an ISO-8601 timestamp back to the compact HL7 numeric form
// by stripping '-', 'T' and ':'. Empty input yields empty output. A full
// 14-digit HL7 timestamp survives a ToISO8601/ToHL7 round trip exactly.
func ToHL7(iso string) string {
	if iso == "" {
		return ""
	}
	r := strings.NewReplacer("-", "", "T", "", ":", "", "Z", "")
	out := r.Replace(iso)
	if len(out) > 14 {
		out = out[:14]
	}
	return out
}
