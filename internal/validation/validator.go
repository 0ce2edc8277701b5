package validation

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clinsim/hl7bridge/internal/hl7v2"
	"github.com/clinsim/hl7bridge/internal/terminology"
)

var hl7Versions = []string{
	"2.1", "2.2", "2.3", "2.3.1", "2.4", "2.5", "2.5.1",
	"2.6", "2.7", "2.8", "2.8.1", "2.8.2",
}

var adminSexValues = []string{"M", "F", "O", "U", "A", "N"}

var patientClassValues = []string{"I", "O", "P", "E", "R", "B", "N", "U"}

// Validator runs the severity-classified rule pipeline over HL7 messages.
// A Validator retains no per-message state and is safe for concurrent use.
type Validator struct {
	level  Level
	logger *zap.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// New creates a Validator for the given level.
func New(level Level, opts ...Option) *Validator {
	v := &Validator{level: level, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the full pipeline: structural check, per-segment checks,
// cross-segment checks, business rules, then summary. Issues are collected
// and returned, never raised.
func (v *Validator) Validate(raw string) Report {
	run := &run{}

	run.checkStructure(raw)

	segments := hl7v2.Parse(raw)
	for _, seg := range segments {
		run.checkSegment(seg)
	}

	run.checkCrossSegments(segments)
	v.checkBusinessRules(run, segments)

	return summarize(run.issues, v.level)
}

// run accumulates issues for a single validation call.
type run struct {
	issues []Issue
}

func (r *run) add(issue Issue) {
	r.issues = append(r.issues, issue)
}

// checkStructure validates the minimal message shape.
func (r *run) checkStructure(raw string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		r.add(Issue{
			Severity:     SeverityCritical,
			SegmentType:  "MESSAGE",
			Message:      "Empty or null HL7 message",
			Details:      "The provided HL7 message is empty or contains only whitespace",
			SuggestedFix: "Provide a valid HL7 message",
		})
		return
	}

	normalized := strings.ReplaceAll(trimmed, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	lines := strings.Split(normalized, "\n")

	if len(lines) < 2 {
		r.add(Issue{
			Severity:     SeverityError,
			SegmentType:  "MESSAGE",
			Message:      "Message too short",
			Details:      "HL7 message must contain at least MSH and one other segment",
			SuggestedFix: "Ensure message contains MSH segment and at least one data segment",
		})
	}

	if !strings.HasPrefix(lines[0], "MSH") {
		r.add(Issue{
			Severity:     SeverityCritical,
			SegmentType:  "MSH",
			Message:      "Missing MSH segment",
			Details:      "HL7 message must start with MSH (Message Header) segment",
			SuggestedFix: "Add MSH segment at the beginning of the message",
		})
	}
}

// checkSegment dispatches on the segment type tag.
func (r *run) checkSegment(seg hl7v2.Segment) {
	switch seg.Type {
	case "MSH":
		r.checkMSH(seg)
	case "PID":
		r.checkPID(seg)
	case "PV1":
		r.checkPV1(seg)
	case "DG1":
		r.checkDG1(seg)
	case "OBX":
		r.checkOBX(seg)
	case "PR1":
		r.checkPR1(seg)
	default:
		r.checkUnknown(seg)
	}
}

func (r *run) checkMSH(seg hl7v2.Segment) {
	if seg.FieldCount() < 12 {
		r.add(Issue{
			Severity:     SeverityError,
			SegmentType:  "MSH",
			Message:      "Insufficient fields in MSH segment",
			Details:      fmt.Sprintf("MSH segment has %d fields, minimum 12 required", seg.FieldCount()),
			SuggestedFix: "Ensure MSH segment contains all required fields",
		})
		return
	}

	// MSH-1 is the field separator itself, the character after the tag.
	if len(seg.Raw) < 4 || seg.Raw[3] != '|' {
		r.add(Issue{
			Severity:     SeverityError,
			SegmentType:  "MSH",
			FieldNumber:  1,
			Message:      "Invalid field separator",
			Details:      "Expected '|' as the MSH field separator",
			SuggestedFix: "Change field separator to '|'",
		})
	}

	if enc := seg.Field(1); enc != "" && len(enc) < 4 {
		r.add(Issue{
			Severity:     SeverityError,
			SegmentType:  "MSH",
			FieldNumber:  2,
			Message:      "Invalid encoding characters",
			Details:      "Encoding characters must be at least 4 characters",
			SuggestedFix: "Provide complete encoding character set",
		})
	}

	if seg.Field(2) == "" {
		r.add(Issue{
			Severity:     SeverityWarning,
			SegmentType:  "MSH",
			FieldNumber:  3,
			Message:      "Missing sending application",
			Details:      "Sending application identifier is empty",
			SuggestedFix: "Provide sending application identifier",
		})
	}

	if seg.Field(3) == "" {
		r.add(Issue{
			Severity:     SeverityWarning,
			SegmentType:  "MSH",
			FieldNumber:  4,
			Message:      "Missing sending facility",
			Details:      "Sending facility identifier is empty",
			SuggestedFix: "Provide sending facility identifier",
		})
	}

	if ts := seg.Field(6); ts != "" {
		r.checkDatetime(string(ts), "MSH", 7)
	}

	if mt := seg.Field(8); mt != "" && !mt.HasComponents() {
		r.add(Issue{
			Severity:     SeverityWarning,
			SegmentType:  "MSH",
			FieldNumber:  9,
			Message:      "Invalid message type format",
			Details:      fmt.Sprintf("Message type %q should contain '^' separator", mt),
			SuggestedFix: "Use format: MESSAGE_TYPE^TRIGGER_EVENT",
		})
	}

	if version := string(seg.Field(11)); version != "" && !contains(hl7Versions, version) {
		r.add(Issue{
			Severity:     SeverityWarning,
			SegmentType:  "MSH",
			FieldNumber:  12,
			Message:      "Unsupported HL7 version",
			Details:      fmt.Sprintf("Version %q may not be supported", version),
			SuggestedFix: "Use one of: " + strings.Join(hl7Versions, ", "),
		})
	}
}

func (r *run) checkPID(seg hl7v2.Segment) {
	if seg.FieldCount() < 4 {
		r.add(Issue{
			Severity:     SeverityError,
			SegmentType:  "PID",
			Message:      "Insufficient fields in PID segment",
			Details:      fmt.Sprintf("PID segment has %d fields, minimum 4 required", seg.FieldCount()),
			SuggestedFix: "Ensure PID segment contains all required fields",
		})
		return
	}

	if id := seg.Field(3); id != "" && !id.HasComponents() {
		r.add(Issue{
			Severity:     SeverityWarning,
			SegmentType:  "PID",
			FieldNumber:  3,
			Message:      "Invalid patient identifier format",
			Details:      "Patient identifier should contain component separators",
			SuggestedFix: "Use format: ID^CHECK_DIGIT^CHECK_DIGIT_SCHEME^ASSIGNING_AUTHORITY^ID_TYPE",
		})
	}

	if name := seg.Field(5); name != "" && !name.HasComponents() {
		r.add(Issue{
			Severity:     SeverityWarning,
			SegmentType:  "PID",
			FieldNumber:  5,
			Message:      "Invalid patient name format",
			Details:      "Patient name should contain component separators",
			SuggestedFix: "Use format: FAMILY_NAME^GIVEN_NAME^MIDDLE_NAME^SUFFIX^PREFIX",
		})
	}

	if dob := seg.Field(7); dob != "" {
		r.checkDatetime(string(dob), "PID", 7)
	}

	if sex := string(seg.Field(8)); sex != "" && !contains(adminSexValues, sex) {
		r.add(Issue{
			Severity:     SeverityWarning,
			SegmentType:  "PID",
			FieldNumber:  8,
			Message:      "Invalid administrative sex",
			Details:      fmt.Sprintf("Sex %q is not a valid HL7 value", sex),
			SuggestedFix: "Use one of: " + strings.Join(adminSexValues, ", "),
		})
	}

	if addr := seg.Field(11); addr != "" && len(addr.Components()) < 4 {
		r.add(Issue{
			Severity:     SeverityWarning,
			SegmentType:  "PID",
			FieldNumber:  11,
			Message:      "Incomplete patient address",
			Details:      "Address should contain street, city, state, and postal code",
			SuggestedFix: "Use format: STREET^CITY^STATE^POSTAL_CODE^COUNTRY",
		})
	}
}

func (r *run) checkPV1(seg hl7v2.Segment) {
	if seg.FieldCount() < 3 {
		r.add(Issue{
			Severity:     SeverityError,
			SegmentType:  "PV1",
			Message:      "Insufficient fields in PV1 segment",
			Details:      fmt.Sprintf("PV1 segment has %d fields, minimum 3 required", seg.FieldCount()),
			SuggestedFix: "Ensure PV1 segment contains all required fields",
		})
		return
	}

	if class := string(seg.Field(2)); class != "" && !contains(patientClassValues, class) {
		r.add(Issue{
			Severity:     SeverityWarning,
			SegmentType:  "PV1",
			FieldNumber:  2,
			Message:      "Invalid patient class",
			Details:      fmt.Sprintf("Patient class %q is not valid", class),
			SuggestedFix: "Use one of: " + strings.Join(patientClassValues, ", "),
		})
	}

	if loc := seg.Field(3); loc != "" && !loc.HasComponents() {
		r.add(Issue{
			Severity:     SeverityWarning,
			SegmentType:  "PV1",
			FieldNumber:  3,
			Message:      "Invalid patient location format",
			Details:      "Location should contain component separators",
			SuggestedFix: "Use format: POINT_OF_CARE^ROOM^BED^FACILITY",
		})
	}
}

func (r *run) checkDG1(seg hl7v2.Segment) {
	if seg.FieldCount() < 5 {
		r.add(Issue{
			Severity:     SeverityError,
			SegmentType:  "DG1",
			Message:      "Insufficient fields in DG1 segment",
			Details:      fmt.Sprintf("DG1 segment has %d fields, minimum 5 required", seg.FieldCount()),
			SuggestedFix: "Ensure DG1 segment contains all required fields",
		})
		return
	}

	if code := seg.Field(3); code != "" {
		if !code.HasComponents() {
			r.add(Issue{
				Severity:     SeverityWarning,
				SegmentType:  "DG1",
				FieldNumber:  3,
				Message:      "Invalid diagnosis code format",
				Details:      "Diagnosis code should contain component separators",
				SuggestedFix: "Use format: IDENTIFIER^TEXT^CODING_SYSTEM",
			})
		} else if display, ok := terminology.LookupICD10(code.Component(1)); ok {
			r.add(Issue{
				Severity:    SeverityInfo,
				SegmentType: "DG1",
				FieldNumber: 3,
				Message:     "Valid ICD-10 code detected",
				Details:     fmt.Sprintf("Code %q corresponds to %q", code.Component(1), display),
			})
		}
	}

	if seg.FieldCount() > 4 && seg.Field(4) == "" {
		r.add(Issue{
			Severity:     SeverityWarning,
			SegmentType:  "DG1",
			FieldNumber:  4,
			Message:      "Missing diagnosis description",
			Details:      "Diagnosis description is empty",
			SuggestedFix: "Provide diagnosis description",
		})
	}
}

func (r *run) checkOBX(seg hl7v2.Segment) {
	if seg.FieldCount() < 6 {
		r.add(Issue{
			Severity:     SeverityError,
			SegmentType:  "OBX",
			Message:      "Insufficient fields in OBX segment",
			Details:      fmt.Sprintf("OBX segment has %d fields, minimum 6 required", seg.FieldCount()),
			SuggestedFix: "Ensure OBX segment contains all required fields",
		})
		return
	}

	if id := seg.Field(3); id != "" {
		if !id.HasComponents() {
			r.add(Issue{
				Severity:     SeverityWarning,
				SegmentType:  "OBX",
				FieldNumber:  3,
				Message:      "Invalid observation identifier format",
				Details:      "Observation identifier should contain component separators",
				SuggestedFix: "Use format: IDENTIFIER^TEXT^CODING_SYSTEM",
			})
		} else if display, ok := terminology.LookupLOINC(id.Component(1)); ok {
			r.add(Issue{
				Severity:    SeverityInfo,
				SegmentType: "OBX",
				FieldNumber: 3,
				Message:     "Valid LOINC code detected",
				Details:     fmt.Sprintf("Code %q corresponds to %q", id.Component(1), display),
			})
		}
	}

	if seg.FieldCount() > 5 && strings.TrimSpace(string(seg.Field(5))) == "" {
		r.add(Issue{
			Severity:     SeverityWarning,
			SegmentType:  "OBX",
			FieldNumber:  5,
			Message:      "Empty observation value",
			Details:      "Observation value is empty",
			SuggestedFix: "Provide a valid observation value",
		})
	}

	if units := seg.Field(6); units != "" && !units.HasComponents() {
		r.add(Issue{
			Severity:     SeverityWarning,
			SegmentType:  "OBX",
			FieldNumber:  6,
			Message:      "Invalid units format",
			Details:      "Units should contain component separators",
			SuggestedFix: "Use format: IDENTIFIER^TEXT^CODING_SYSTEM",
		})
	}
}

func (r *run) checkPR1(seg hl7v2.Segment) {
	if seg.FieldCount() < 5 {
		r.add(Issue{
			Severity:     SeverityError,
			SegmentType:  "PR1",
			Message:      "Insufficient fields in PR1 segment",
			Details:      fmt.Sprintf("PR1 segment has %d fields, minimum 5 required", seg.FieldCount()),
			SuggestedFix: "Ensure PR1 segment contains all required fields",
		})
		return
	}

	if code := seg.Field(4); code != "" && !code.HasComponents() {
		r.add(Issue{
			Severity:     SeverityWarning,
			SegmentType:  "PR1",
			FieldNumber:  4,
			Message:      "Invalid procedure code format",
			Details:      "Procedure code should contain component separators",
			SuggestedFix: "Use format: IDENTIFIER^TEXT^CODING_SYSTEM",
		})
	}
}

func (r *run) checkUnknown(seg hl7v2.Segment) {
	if seg.FieldCount() < 2 {
		r.add(Issue{
			Severity:     SeverityWarning,
			SegmentType:  seg.Type,
			Message:      "Unknown segment type with insufficient fields",
			Details:      fmt.Sprintf("Segment %s has only %d fields", seg.Type, seg.FieldCount()),
			SuggestedFix: "Verify segment type and field count",
		})
	}
}

// checkDatetime validates HL7 numeric timestamp shapes:
// YYYYMMDD, YYYYMMDDHH, YYYYMMDDHHMM or YYYYMMDDHHMMSS.
func (r *run) checkDatetime(value, segType string, field int) {
	if !isHL7Timestamp(value) {
		r.add(Issue{
			Severity:     SeverityWarning,
			SegmentType:  segType,
			FieldNumber:  field,
			Message:      "Invalid datetime format",
			Details:      fmt.Sprintf("Datetime %q does not match HL7 format", value),
			SuggestedFix: "Use YYYYMMDDHHMMSS format",
		})
	}
}

// checkCrossSegments validates relationships between segments: exactly one
// MSH and at least one PID are required.
func (r *run) checkCrossSegments(segments []hl7v2.Segment) {
	mshCount := 0
	pidCount := 0
	for _, seg := range segments {
		switch seg.Type {
		case "MSH":
			mshCount++
		case "PID":
			pidCount++
		}
	}

	switch {
	case mshCount == 0:
		r.add(Issue{
			Severity:     SeverityCritical,
			SegmentType:  "MESSAGE",
			Message:      "Missing required MSH segment",
			Details:      "Every HL7 message must contain an MSH segment",
			SuggestedFix: "Add MSH segment to the message",
		})
	case mshCount > 1:
		r.add(Issue{
			Severity:     SeverityCritical,
			SegmentType:  "MESSAGE",
			Message:      "Multiple MSH segments",
			Details:      fmt.Sprintf("Message contains %d MSH segments, exactly one is allowed", mshCount),
			SuggestedFix: "Remove extra MSH segments",
		})
	}

	if pidCount == 0 {
		r.add(Issue{
			Severity:     SeverityError,
			SegmentType:  "MESSAGE",
			Message:      "Missing required PID segment",
			Details:      "Patient identification segment is required",
			SuggestedFix: "Add PID segment to the message",
		})
	}
}

// checkBusinessRules extracts demographic context for clinical rule hooks.
// No rules are enforced yet; this is the extension point for them.
func (v *Validator) checkBusinessRules(r *run, segments []hl7v2.Segment) {
	pid, ok := hl7v2.FindFirst(segments, "PID")
	if !ok {
		return
	}
	v.logger.Debug("business rule context extracted",
		zap.String("dob", string(pid.Field(7))),
		zap.String("gender", string(pid.Field(8))),
	)
}

func isHL7Timestamp(value string) bool {
	switch len(value) {
	case 8, 10, 12, 14:
	default:
		return false
	}
	for _, c := range value {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
