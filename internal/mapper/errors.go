package mapper

import "fmt"

// ConvertError describes a conversion fault tied to a message region.
type ConvertError struct {
	Direction string // "hl7-to-fhir" or "fhir-to-hl7"
	Segment   string // segment or resource type involved, if known
	Err       error
}

func (e *ConvertError) Error() string {
	if e.Segment != "" {
		return fmt.Sprintf("%s: %s: %v", e.Direction, e.Segment, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Direction, e.Err)
}

func (e *ConvertError) Unwrap() error {
	return e.Err
}
