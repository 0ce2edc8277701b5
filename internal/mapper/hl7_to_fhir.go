package mapper

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clinsim/hl7bridge/internal/fhir/r4"
	"github.com/clinsim/hl7bridge/internal/hl7v2"
)

// ConversionResult is the outcome of an HL7 to FHIR conversion. Errors and
// Warnings are always non-nil so the JSON output carries empty arrays.
type ConversionResult struct {
	Success   bool          `json:"success"`
	Resources []r4.Resource `json:"resources"`
	Bundle    *r4.Bundle    `json:"bundle,omitempty"`
	Errors    []string      `json:"errors"`
	Warnings  []string      `json:"warnings"`
}

// HL7ToFHIRMapper transforms HL7 v2.x messages into FHIR R4 bundles.
// A mapper holds no per-call state and is safe for concurrent use.
type HL7ToFHIRMapper struct {
	deps deps
}

// NewHL7ToFHIRMapper creates a forward mapper.
func NewHL7ToFHIRMapper(opts ...Option) *HL7ToFHIRMapper {
	d := defaultDeps()
	for _, opt := range opts {
		opt(&d)
	}
	return &HL7ToFHIRMapper{deps: d}
}

var genderFromHL7 = map[string]string{
	"M": "male",
	"F": "female",
	"O": "other",
	"U": "unknown",
}

var encounterClassFromHL7 = map[string]string{
	"I": "inpatient",
	"O": "outpatient",
	"P": "prenatal",
	"E": "emergency",
	"R": "recurring patient",
	"B": "obstetrics",
	"N": "not applicable",
	"U": "unknown",
}

var interpretationDisplay = map[string]string{
	"H":  "high",
	"L":  "low",
	"N":  "normal",
	"A":  "abnormal",
	"HH": "critically high",
	"LL": "critically low",
}

// Convert parses the message and builds a collection bundle. A message
// without any usable PID yields success=false and no partial output.
// Unexpected faults are folded into the error list instead of escaping;
// per-segment extraction faults skip only the segment at hand.
func (m *HL7ToFHIRMapper) Convert(raw string) (result ConversionResult) {
	result.Resources = []r4.Resource{}
	result.Errors = []string{}
	result.Warnings = []string{}

	defer func() {
		if r := recover(); r != nil {
			err := &ConvertError{Direction: "hl7-to-fhir", Err: fmt.Errorf("conversion failed: %v", r)}
			result = ConversionResult{
				Success:   false,
				Resources: []r4.Resource{},
				Errors:    []string{err.Error()},
				Warnings:  []string{},
			}
		}
	}()

	segments := hl7v2.Parse(raw)

	patient := m.extractPatient(segments)
	if patient == nil {
		result.Errors = append(result.Errors, "No patient data found in HL7 message")
		return result
	}
	result.Resources = append(result.Resources, patient)

	encounter := m.extractEncounter(segments, patient)
	if encounter != nil {
		result.Resources = append(result.Resources, encounter)
	}

	for _, c := range m.extractConditions(segments, patient, &result.Warnings) {
		result.Resources = append(result.Resources, c)
	}
	for _, o := range m.extractObservations(segments, patient, encounter, &result.Warnings) {
		result.Resources = append(result.Resources, o)
	}
	for _, p := range m.extractProcedures(segments, patient, encounter, &result.Warnings) {
		result.Resources = append(result.Resources, p)
	}

	result.Bundle = m.buildBundle(result.Resources)
	result.Success = true
	return result
}

// extractPatient builds the Patient from the first PID carrying enough
// fields. The identifier value is taken verbatim; only an absent PID-3
// gets a generated id.
func (m *HL7ToFHIRMapper) extractPatient(segments []hl7v2.Segment) *r4.Patient {
	for _, seg := range hl7v2.FindAll(segments, "PID") {
		if seg.FieldCount() < 8 {
			continue
		}

		patientID := seg.Field(3).Component(1)
		if seg.Field(3) == "" {
			patientID = m.deps.newID()
		}

		family, given := "Unknown", "Unknown"
		if name := seg.Field(5); name != "" {
			parts := name.Components()
			family = parts[0]
			if len(parts) > 1 {
				given = parts[1]
			}
		}

		birthDate := string(seg.Field(7))
		if len(birthDate) >= 8 {
			birthDate = birthDate[:4] + "-" + birthDate[4:6] + "-" + birthDate[6:8]
		}

		gender, ok := genderFromHL7[string(seg.Field(8))]
		if !ok {
			gender = "unknown"
		}

		patient := &r4.Patient{
			ResourceType: "Patient",
			ID:           patientID,
			Identifier: []r4.Identifier{{
				Use: "usual",
				Type: &r4.CodeableConcept{
					Coding: []r4.Coding{{
						System:  r4.SystemV2IdentType,
						Code:    "MR",
						Display: "Medical Record Number",
					}},
				},
				Value: patientID,
			}},
			Name: []r4.HumanName{{
				Use:    "official",
				Family: family,
				Given:  []string{given},
			}},
			Gender:    gender,
			BirthDate: birthDate,
		}

		if phone := string(seg.Field(13)); phone != "" {
			patient.Telecom = []r4.ContactPoint{{System: "phone", Value: phone, Use: "home"}}
		}

		if addr := seg.Field(11); addr != "" {
			parts := addr.Components()
			if len(parts) >= 4 {
				address := r4.Address{
					City:       parts[1],
					State:      parts[2],
					PostalCode: parts[3],
					Country:    "US",
				}
				if parts[0] != "" {
					address.Line = []string{parts[0]}
				}
				if len(parts) > 4 && parts[4] != "" {
					address.Country = parts[4]
				}
				patient.Address = []r4.Address{address}
			}
		}

		return patient
	}
	return nil
}

// extractEncounter builds at most one Encounter from the first PV1 with
// enough fields. The class code comes from PV1-2 through a fixed table.
func (m *HL7ToFHIRMapper) extractEncounter(segments []hl7v2.Segment, patient *r4.Patient) *r4.Encounter {
	for _, seg := range hl7v2.FindAll(segments, "PV1") {
		if seg.FieldCount() < 4 {
			continue
		}

		class := string(seg.Field(2))
		if class == "" {
			class = "I"
		}
		classCode, ok := encounterClassFromHL7[class]
		if !ok {
			classCode = "unknown"
		}

		encounter := &r4.Encounter{
			ResourceType: "Encounter",
			ID:           m.deps.newID(),
			Status:       "finished",
			Class: r4.Coding{
				System:  r4.SystemActCode,
				Code:    classCode,
				Display: titleCase(classCode),
			},
			Subject: &r4.Reference{Reference: "Patient/" + patient.ID},
		}

		if loc := seg.Field(3); loc != "" && loc.Component(1) != "" {
			room := "Unknown"
			if parts := loc.Components(); len(parts) > 1 {
				room = parts[1]
			}
			encounter.Location = []r4.EncounterLocation{{
				Location: r4.Reference{Display: "Room " + room},
			}}
		}

		if admit := string(seg.Field(44)); admit != "" {
			if start := hl7v2.ToISO8601(admit); start != "" {
				encounter.Period = &r4.Period{Start: start}
			}
		}

		return encounter
	}
	return nil
}

// extractConditions builds one Condition per DG1, in source order. Repeated
// codes are never collapsed.
func (m *HL7ToFHIRMapper) extractConditions(segments []hl7v2.Segment, patient *r4.Patient, warnings *[]string) []*r4.Condition {
	var conditions []*r4.Condition

	for _, seg := range hl7v2.FindAll(segments, "DG1") {
		if seg.FieldCount() < 5 {
			*warnings = append(*warnings, fmt.Sprintf("DG1 segment at line %d skipped: insufficient fields", seg.Line))
			continue
		}

		condition := &r4.Condition{
			ResourceType: "Condition",
			ID:           m.deps.newID(),
			Subject:      &r4.Reference{Reference: "Patient/" + patient.ID},
			ClinicalStatus: &r4.CodeableConcept{
				Coding: []r4.Coding{{System: r4.SystemCondClinical, Code: "active", Display: "Active"}},
			},
			VerificationStatus: &r4.CodeableConcept{
				Coding: []r4.Coding{{System: r4.SystemCondVerStatus, Code: "confirmed", Display: "Confirmed"}},
			},
		}

		if code := seg.Field(3); code != "" && code.Component(1) != "" {
			display := code.Component(2)
			if display == "" {
				display = code.Component(1)
			}
			condition.Code = &r4.CodeableConcept{
				Coding: []r4.Coding{{
					System:  r4.SystemICD10CM,
					Code:    code.Component(1),
					Display: display,
				}},
			}
		}

		if text := string(seg.Field(4)); text != "" {
			if condition.Code == nil {
				condition.Code = &r4.CodeableConcept{}
			}
			condition.Code.Text = text
		}

		if onset := string(seg.Field(5)); onset != "" {
			condition.OnsetDateTime = hl7v2.ToISO8601(onset)
		}

		conditions = append(conditions, condition)
	}

	return conditions
}

// extractObservations builds one Observation per OBX. Numeric value types
// yield valueQuantity when the text parses; everything else is valueString.
func (m *HL7ToFHIRMapper) extractObservations(segments []hl7v2.Segment, patient *r4.Patient, encounter *r4.Encounter, warnings *[]string) []*r4.Observation {
	var observations []*r4.Observation

	for _, seg := range hl7v2.FindAll(segments, "OBX") {
		if seg.FieldCount() < 6 {
			*warnings = append(*warnings, fmt.Sprintf("OBX segment at line %d skipped: insufficient fields", seg.Line))
			continue
		}

		obs := &r4.Observation{
			ResourceType: "Observation",
			ID:           m.deps.newID(),
			Status:       "final",
			Subject:      &r4.Reference{Reference: "Patient/" + patient.ID},
		}
		if encounter != nil {
			obs.Encounter = &r4.Reference{Reference: "Encounter/" + encounter.ID}
		}

		if code := seg.Field(3); code != "" && code.Component(1) != "" {
			display := code.Component(2)
			if display == "" {
				display = code.Component(1)
			}
			obs.Code = &r4.CodeableConcept{
				Coding: []r4.Coding{{System: r4.SystemLOINC, Code: code.Component(1), Display: display}},
			}
		}

		if value := string(seg.Field(5)); value != "" {
			valueType := string(seg.Field(2))
			if valueType == "" {
				valueType = "ST"
			}
			if valueType == "NM" || valueType == "SN" {
				if v, err := strconv.ParseFloat(value, 64); err == nil {
					obs.ValueQuantity = &r4.Quantity{Value: v, Unit: string(seg.Field(6))}
				} else {
					obs.ValueString = value
				}
			} else {
				obs.ValueString = value
			}
		}

		if rangeText := string(seg.Field(7)); rangeText != "" {
			parts := strings.Split(rangeText, "-")
			if len(parts) == 2 {
				low, lowErr := strconv.ParseFloat(parts[0], 64)
				high, highErr := strconv.ParseFloat(parts[1], 64)
				if lowErr == nil && highErr == nil {
					obs.ReferenceRange = []r4.ReferenceRange{{
						Low:  &r4.Quantity{Value: low},
						High: &r4.Quantity{Value: high},
					}}
				}
			}
		}

		if flag := string(seg.Field(8)); flag != "" {
			if display, ok := interpretationDisplay[flag]; ok {
				obs.Interpretation = []r4.CodeableConcept{{
					Coding: []r4.Coding{{System: r4.SystemInterpretation, Code: flag, Display: display}},
				}}
			}
		}

		observations = append(observations, obs)
	}

	return observations
}

// extractProcedures builds one Procedure per PR1.
func (m *HL7ToFHIRMapper) extractProcedures(segments []hl7v2.Segment, patient *r4.Patient, encounter *r4.Encounter, warnings *[]string) []*r4.Procedure {
	var procedures []*r4.Procedure

	for _, seg := range hl7v2.FindAll(segments, "PR1") {
		if seg.FieldCount() < 5 {
			*warnings = append(*warnings, fmt.Sprintf("PR1 segment at line %d skipped: insufficient fields", seg.Line))
			continue
		}

		proc := &r4.Procedure{
			ResourceType: "Procedure",
			ID:           m.deps.newID(),
			Status:       "completed",
			Subject:      &r4.Reference{Reference: "Patient/" + patient.ID},
		}
		if encounter != nil {
			proc.Encounter = &r4.Reference{Reference: "Encounter/" + encounter.ID}
		}

		if code := seg.Field(3); code != "" && code.Component(1) != "" {
			display := code.Component(2)
			if display == "" {
				display = code.Component(1)
			}
			proc.Code = &r4.CodeableConcept{
				Coding: []r4.Coding{{System: r4.SystemCPT, Code: code.Component(1), Display: display}},
			}
		}

		if performed := string(seg.Field(5)); performed != "" {
			proc.PerformedDateTime = hl7v2.ToISO8601(performed)
		}

		if surgeon := seg.Field(11); surgeon != "" {
			if parts := surgeon.Components(); len(parts) >= 3 {
				proc.Performer = []r4.ProcedurePerformer{{
					Actor: r4.Reference{Display: parts[1] + " " + parts[2]},
				}}
			}
		}

		procedures = append(procedures, proc)
	}

	return procedures
}

// buildBundle wraps the resources in a collection bundle keyed by urn:uuid
// full URLs.
func (m *HL7ToFHIRMapper) buildBundle(resources []r4.Resource) *r4.Bundle {
	bundle := &r4.Bundle{
		ResourceType: "Bundle",
		ID:           m.deps.newID(),
		Type:         "collection",
		Timestamp:    m.deps.now().Format(time.RFC3339),
	}
	for _, res := range resources {
		bundle.Entry = append(bundle.Entry, r4.Entry{
			FullURL:  "urn:uuid:" + res.ResourceID(),
			Resource: res,
		})
	}
	return bundle
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
