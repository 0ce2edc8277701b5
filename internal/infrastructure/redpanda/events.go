// Package redpanda publishes bridge lifecycle events to a Kafka-compatible
// broker with franz-go. The gateway only produces; consumption belongs to
// the simulation platform on the other side of the topics.
package redpanda

import "github.com/clinsim/hl7bridge/internal/validation"

// Topic names for bridge events.
const (
	TopicHL7Validated   = "hl7.validated"
	TopicFHIRConverted  = "fhir.converted"
	TopicHL7Synthesized = "hl7.synthesized"
	TopicDeadLetter     = "dead.letter"
)

// ValidatedEvent is emitted after every validation request.
type ValidatedEvent struct {
	MessageControlID string                      `json:"message_control_id,omitempty"`
	Status           string                      `json:"status"`
	IsValid          bool                        `json:"is_valid"`
	TotalIssues      int                         `json:"total_issues"`
	SeverityCounts   map[validation.Severity]int `json:"severity_counts"`
	ValidationLevel  validation.Level            `json:"validation_level"`
	OccurredAt       string                      `json:"occurred_at"`
}

// ConvertedEvent is emitted after an HL7 to FHIR conversion.
type ConvertedEvent struct {
	PatientID     string `json:"patient_id,omitempty"`
	BundleID      string `json:"bundle_id,omitempty"`
	ResourceCount int    `json:"resource_count"`
	Success       bool   `json:"success"`
	WarningCount  int    `json:"warning_count"`
	OccurredAt    string `json:"occurred_at"`
}

// SynthesizedEvent is emitted after a FHIR to HL7 conversion, including the
// data-augmentation fallback paths.
type SynthesizedEvent struct {
	PatientID    string `json:"patient_id,omitempty"`
	MessageCount int    `json:"message_count"`
	OccurredAt   string `json:"occurred_at"`
}
