package r4

// Resource is the tagged union of FHIR resource types handled by the bridge.
// Every resource knows its type tag and logical id.
type Resource interface {
	ResourceTypeName() string
	ResourceID() string
}

// Patient represents a FHIR R4 Patient resource.
type Patient struct {
	ResourceType string         `json:"resourceType"`
	ID           string         `json:"id,omitempty"`
	Identifier   []Identifier   `json:"identifier,omitempty"`
	Name         []HumanName    `json:"name,omitempty"`
	Telecom      []ContactPoint `json:"telecom,omitempty"`
	Gender       string         `json:"gender,omitempty"` // male | female | other | unknown
	BirthDate    string         `json:"birthDate,omitempty"`
	Address      []Address      `json:"address,omitempty"`
}

// ResourceTypeName implements Resource.
func (p *Patient) ResourceTypeName() string { return "Patient" }

// ResourceID implements Resource.
func (p *Patient) ResourceID() string { return p.ID }

// OfficialName returns the patient's official name, or the first available.
func (p *Patient) OfficialName() *HumanName {
	for i := range p.Name {
		if p.Name[i].Use == "official" {
			return &p.Name[i]
		}
	}
	if len(p.Name) > 0 {
		return &p.Name[0]
	}
	return nil
}

// MRN returns the patient's medical record number, if identified as such.
func (p *Patient) MRN() string {
	for _, id := range p.Identifier {
		if id.Type == nil {
			continue
		}
		for _, coding := range id.Type.Coding {
			if coding.Code == "MR" {
				return id.Value
			}
		}
	}
	return ""
}

// Phone returns the patient's first phone contact, if any.
func (p *Patient) Phone() string {
	for _, t := range p.Telecom {
		if t.System == "phone" {
			return t.Value
		}
	}
	return ""
}

// Encounter represents a FHIR R4 Encounter resource.
type Encounter struct {
	ResourceType string              `json:"resourceType"`
	ID           string              `json:"id,omitempty"`
	Status       string              `json:"status,omitempty"`
	Class        Coding              `json:"class,omitempty"`
	Subject      *Reference          `json:"subject,omitempty"`
	Location     []EncounterLocation `json:"location,omitempty"`
	Period       *Period             `json:"period,omitempty"`
}

// EncounterLocation is a location the patient was at during an encounter.
type EncounterLocation struct {
	Location Reference `json:"location"`
}

// ResourceTypeName implements Resource.
func (e *Encounter) ResourceTypeName() string { return "Encounter" }

// ResourceID implements Resource.
func (e *Encounter) ResourceID() string { return e.ID }

// Condition represents a FHIR R4 Condition resource.
type Condition struct {
	ResourceType       string           `json:"resourceType"`
	ID                 string           `json:"id,omitempty"`
	ClinicalStatus     *CodeableConcept `json:"clinicalStatus,omitempty"`
	VerificationStatus *CodeableConcept `json:"verificationStatus,omitempty"`
	Code               *CodeableConcept `json:"code,omitempty"`
	Subject            *Reference       `json:"subject,omitempty"`
	OnsetDateTime      string           `json:"onsetDateTime,omitempty"`
}

// ResourceTypeName implements Resource.
func (c *Condition) ResourceTypeName() string { return "Condition" }

// ResourceID implements Resource.
func (c *Condition) ResourceID() string { return c.ID }

// Observation represents a FHIR R4 Observation resource.
type Observation struct {
	ResourceType   string            `json:"resourceType"`
	ID             string            `json:"id,omitempty"`
	Status         string            `json:"status,omitempty"`
	Code           *CodeableConcept  `json:"code,omitempty"`
	Subject        *Reference        `json:"subject,omitempty"`
	Encounter      *Reference        `json:"encounter,omitempty"`
	ValueQuantity  *Quantity         `json:"valueQuantity,omitempty"`
	ValueString    string            `json:"valueString,omitempty"`
	ReferenceRange []ReferenceRange  `json:"referenceRange,omitempty"`
	Interpretation []CodeableConcept `json:"interpretation,omitempty"`
}

// ReferenceRange is the expected range for an observation value.
type ReferenceRange struct {
	Low  *Quantity `json:"low,omitempty"`
	High *Quantity `json:"high,omitempty"`
}

// ResourceTypeName implements Resource.
func (o *Observation) ResourceTypeName() string { return "Observation" }

// ResourceID implements Resource.
func (o *Observation) ResourceID() string { return o.ID }

// Procedure represents a FHIR R4 Procedure resource.
type Procedure struct {
	ResourceType      string               `json:"resourceType"`
	ID                string               `json:"id,omitempty"`
	Status            string               `json:"status,omitempty"`
	Code              *CodeableConcept     `json:"code,omitempty"`
	Subject           *Reference           `json:"subject,omitempty"`
	Encounter         *Reference           `json:"encounter,omitempty"`
	PerformedDateTime string               `json:"performedDateTime,omitempty"`
	Performer         []ProcedurePerformer `json:"performer,omitempty"`
}

// ProcedurePerformer identifies who performed a procedure.
type ProcedurePerformer struct {
	Actor Reference `json:"actor"`
}

// ResourceTypeName implements Resource.
func (p *Procedure) ResourceTypeName() string { return "Procedure" }

// ResourceID implements Resource.
func (p *Procedure) ResourceID() string { return p.ID }

// MedicationStatement represents the subset of a FHIR R4 MedicationStatement
// the reverse converter reads when emitting pharmacy segments.
type MedicationStatement struct {
	ResourceType              string           `json:"resourceType"`
	ID                        string           `json:"id,omitempty"`
	Status                    string           `json:"status,omitempty"`
	MedicationCodeableConcept *CodeableConcept `json:"medicationCodeableConcept,omitempty"`
	Subject                   *Reference       `json:"subject,omitempty"`
	Dosage                    []Dosage         `json:"dosage,omitempty"`
}

// Dosage describes how a medication is taken.
type Dosage struct {
	Text         string    `json:"text,omitempty"`
	DoseQuantity *Quantity `json:"doseQuantity,omitempty"`
}

// ResourceTypeName implements Resource.
func (m *MedicationStatement) ResourceTypeName() string { return "MedicationStatement" }

// ResourceID implements Resource.
func (m *MedicationStatement) ResourceID() string { return m.ID }
