// Package validation implements the severity-classified rule engine for
// HL7 v2.x messages.
package validation

import "encoding/json"

// Severity classifies a validation issue. Severities are ordered
// INFO < WARNING < ERROR < CRITICAL.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityError:    2,
	SeverityCritical: 3,
}

// Rank returns the ordering position of the severity, INFO lowest.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Level selects a validation profile. Accepted for API compatibility with
// the simulation platform; the active rule set is currently the same at
// every level.
type Level int

const (
	LevelBasic Level = iota + 1
	LevelStandard
	LevelStrict
	LevelCompliance
)

// ParseLevel maps a level name to a Level, defaulting to STANDARD.
func ParseLevel(name string) Level {
	switch name {
	case "BASIC":
		return LevelBasic
	case "STRICT":
		return LevelStrict
	case "COMPLIANCE":
		return LevelCompliance
	default:
		return LevelStandard
	}
}

var levelNames = map[Level]string{
	LevelBasic:      "BASIC",
	LevelStandard:   "STANDARD",
	LevelStrict:     "STRICT",
	LevelCompliance: "COMPLIANCE",
}

// String returns the level name, STANDARD for unknown values.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "STANDARD"
}

// MarshalJSON emits the level name; consumers see "STANDARD", not 2.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts a level name.
func (l *Level) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*l = ParseLevel(name)
	return nil
}

// Issue is a single validation finding.
type Issue struct {
	Severity     Severity `json:"severity"`
	SegmentType  string   `json:"segment_type"`
	FieldNumber  int      `json:"field_number,omitempty"`
	Message      string   `json:"message"`
	Details      string   `json:"details"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
}

// Report summarizes a validation run.
type Report struct {
	Status          string           `json:"status"`
	TotalIssues     int              `json:"total_issues"`
	SeverityCounts  map[Severity]int `json:"severity_counts"`
	Issues          []Issue          `json:"issues"`
	ValidationLevel Level            `json:"validation_level"`
	IsValid         bool             `json:"is_valid"`
	NeedsAttention  bool             `json:"needs_attention"`
}

// summarize derives the report from the accumulated issues. Overall status
// is the worst severity present: CRITICAL > ERROR > WARNING > VALID.
func summarize(issues []Issue, level Level) Report {
	counts := map[Severity]int{
		SeverityInfo:     0,
		SeverityWarning:  0,
		SeverityError:    0,
		SeverityCritical: 0,
	}
	for _, issue := range issues {
		counts[issue.Severity]++
	}

	status := "VALID"
	switch {
	case counts[SeverityCritical] > 0:
		status = "CRITICAL"
	case counts[SeverityError] > 0:
		status = "ERROR"
	case counts[SeverityWarning] > 0:
		status = "WARNING"
	}

	if issues == nil {
		issues = []Issue{}
	}

	return Report{
		Status:          status,
		TotalIssues:     len(issues),
		SeverityCounts:  counts,
		Issues:          issues,
		ValidationLevel: level,
		IsValid:         status == "VALID" || status == "WARNING",
		NeedsAttention:  status == "ERROR" || status == "CRITICAL",
	}
}
