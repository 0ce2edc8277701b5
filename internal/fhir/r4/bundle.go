package r4

import "encoding/json"

// Bundle aggregates resources as entries. Every entry's fullUrl is
// urn:uuid:<id> of its contained resource, unique within the bundle.
type Bundle struct {
	ResourceType string  `json:"resourceType"`
	ID           string  `json:"id,omitempty"`
	Type         string  `json:"type,omitempty"`
	Timestamp    string  `json:"timestamp,omitempty"`
	Entry        []Entry `json:"entry,omitempty"`
}

// ResourceTypeName implements Resource.
func (b *Bundle) ResourceTypeName() string { return "Bundle" }

// ResourceID implements Resource.
func (b *Bundle) ResourceID() string { return b.ID }

// Entry wraps a single resource inside a bundle.
type Entry struct {
	FullURL  string   `json:"fullUrl,omitempty"`
	Resource Resource `json:"resource,omitempty"`
}

// entryProbe peeks at the resourceType tag before decoding the concrete type.
type entryProbe struct {
	FullURL  string          `json:"fullUrl"`
	Resource json.RawMessage `json:"resource"`
}

type resourceProbe struct {
	ResourceType string `json:"resourceType"`
}

// UnmarshalJSON decodes an entry into the concrete resource type named by its
// resourceType tag. Entries carrying unhandled resource types are kept with a
// nil Resource rather than rejected: a bundle from the synthetic-patient
// generator may contain more than the bridge consumes.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var probe entryProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	e.FullURL = probe.FullURL
	if len(probe.Resource) == 0 {
		return nil
	}

	var rt resourceProbe
	if err := json.Unmarshal(probe.Resource, &rt); err != nil {
		return err
	}

	var target Resource
	switch rt.ResourceType {
	case "Patient":
		target = &Patient{}
	case "Encounter":
		target = &Encounter{}
	case "Condition":
		target = &Condition{}
	case "Observation":
		target = &Observation{}
	case "Procedure":
		target = &Procedure{}
	case "MedicationStatement":
		target = &MedicationStatement{}
	case "Bundle":
		target = &Bundle{}
	default:
		return nil
	}

	if err := json.Unmarshal(probe.Resource, target); err != nil {
		return err
	}
	e.Resource = target
	return nil
}

// Patients returns every Patient entry in bundle order.
func (b *Bundle) Patients() []*Patient {
	var out []*Patient
	for _, entry := range b.Entry {
		if p, ok := entry.Resource.(*Patient); ok {
			out = append(out, p)
		}
	}
	return out
}

// Conditions returns every Condition entry in bundle order.
func (b *Bundle) Conditions() []*Condition {
	var out []*Condition
	for _, entry := range b.Entry {
		if c, ok := entry.Resource.(*Condition); ok {
			out = append(out, c)
		}
	}
	return out
}

// Observations returns every Observation entry in bundle order.
func (b *Bundle) Observations() []*Observation {
	var out []*Observation
	for _, entry := range b.Entry {
		if o, ok := entry.Resource.(*Observation); ok {
			out = append(out, o)
		}
	}
	return out
}

// Procedures returns every Procedure entry in bundle order.
func (b *Bundle) Procedures() []*Procedure {
	var out []*Procedure
	for _, entry := range b.Entry {
		if p, ok := entry.Resource.(*Procedure); ok {
			out = append(out, p)
		}
	}
	return out
}

// MedicationStatements returns every MedicationStatement entry in bundle order.
func (b *Bundle) MedicationStatements() []*MedicationStatement {
	var out []*MedicationStatement
	for _, entry := range b.Entry {
		if m, ok := entry.Resource.(*MedicationStatement); ok {
			out = append(out, m)
		}
	}
	return out
}
