package mapper

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clinsim/hl7bridge/internal/fhir/r4"
	"github.com/clinsim/hl7bridge/internal/hl7v2"
	"github.com/clinsim/hl7bridge/internal/terminology"
)

var pv1ProviderNames = []string{"SMITH", "JOHNSON", "WILLIAMS", "BROWN", "JONES", "GARCIA", "MILLER", "DAVIS"}

var pr1ProviderNames = []string{"SMITH", "JOHNSON", "WILLIAMS"}

// FHIRToHL7Mapper synthesizes HL7 v2.x messages from FHIR R4 resources.
// Header fields, provider identity and any data missing from the source
// bundle are fabricated from the injected random source: the output is
// plausible simulation feed, not a faithful inverse of the forward mapper.
// The shared random source makes a mapper unsafe for concurrent use; give
// each goroutine its own.
type FHIRToHL7Mapper struct {
	deps deps
}

// NewFHIRToHL7Mapper creates a reverse mapper.
func NewFHIRToHL7Mapper(opts ...Option) *FHIRToHL7Mapper {
	d := defaultDeps()
	for _, opt := range opts {
		opt(&d)
	}
	return &FHIRToHL7Mapper{deps: d}
}

// ConvertBundle emits one HL7 message per Patient in the bundle.
func (m *FHIRToHL7Mapper) ConvertBundle(bundle *r4.Bundle) []string {
	var messages []string
	for _, patient := range bundle.Patients() {
		messages = append(messages, m.ConvertPatient(patient, bundle))
	}
	return messages
}

// ConvertPatient emits a single message for the patient, drawing related
// resources from the bundle when given. Segment order is fixed: MSH, PID,
// PV1, then all DG1, OBX, PR1 and RXR segments.
func (m *FHIRToHL7Mapper) ConvertPatient(patient *r4.Patient, bundle *r4.Bundle) string {
	segments := []string{
		m.buildMSH(),
		m.buildPID(patient),
		m.buildPV1(patient),
	}
	segments = append(segments, m.buildDG1s(patient, bundle)...)
	segments = append(segments, m.buildOBXs(patient, bundle)...)
	segments = append(segments, m.buildPR1s(bundle)...)
	segments = append(segments, m.buildRXRs(bundle)...)
	return strings.Join(segments, "\n")
}

func (m *FHIRToHL7Mapper) buildMSH() string {
	timestamp := m.deps.now().Format("20060102150405")
	return fmt.Sprintf(`MSH|^~\&|SYNTHEA|SYNTHEA|SIMULATOR|SIMULATOR|%s||ADT^A01|%s|P|2.5.1`,
		timestamp, m.shortID(10))
}

func (m *FHIRToHL7Mapper) buildPID(patient *r4.Patient) string {
	patientID := patient.ID
	if patientID == "" {
		patientID = m.deps.newID()
	}

	family, given := "UNKNOWN", "UNKNOWN"
	if len(patient.Name) > 0 {
		name := patient.Name[0]
		if name.Family != "" {
			family = name.Family
		}
		if len(name.Given) > 0 {
			given = strings.Join(name.Given, " ")
		}
	}

	birthDate := strings.ReplaceAll(patient.BirthDate, "-", "")

	gender := strings.ToUpper(patient.Gender)
	if gender == "" {
		gender = "U"
	}

	addressStr := "UNKNOWN"
	if len(patient.Address) > 0 {
		addr := patient.Address[0]
		street := ""
		if len(addr.Line) > 0 {
			street = addr.Line[0]
		}
		addressStr = fmt.Sprintf("%s^%s^%s^%s", street, addr.City, addr.State, addr.PostalCode)
	}

	phone := patient.Phone()

	ssn := fmt.Sprintf("%03d-%02d-%04d",
		m.deps.rng.Intn(900)+100,
		m.deps.rng.Intn(90)+10,
		m.deps.rng.Intn(9000)+1000)

	return fmt.Sprintf("PID|1|%s|%s^^^SIMULATOR^MR~%s^^^SIMULATOR^SB|%s^^^USSSA^SS|%s^%s||%s|%s|||%s||%s|||%s|NON|%s|%s",
		patientID, patientID, patientID, patientID, family, given, birthDate, gender,
		addressStr, phone, gender, patientID, ssn)
}

// buildPV1 derives the patient class purely from age: pediatric, emergency
// for the elderly, inpatient otherwise. Any Encounter.class in the source
// bundle is deliberately ignored.
func (m *FHIRToHL7Mapper) buildPV1(patient *r4.Patient) string {
	timestamp := m.deps.now().Format("20060102150405")
	providerName := "PROVIDER^" + pv1ProviderNames[m.deps.rng.Intn(len(pv1ProviderNames))]

	age := m.ageOf(patient)
	patientClass := "I"
	switch {
	case age < 18:
		patientClass = "P"
	case age > 65:
		patientClass = "E"
	}

	return fmt.Sprintf("PV1|1|%s|MEDSURG^101^01||||%s^%s|||GENERAL||||||ADM|A0|||||||||||||||||||||||||%s",
		patientClass, m.shortID(5), providerName, timestamp)
}

// buildDG1s translates bundle Conditions to DG1 segments. Conditions whose
// text cannot be mapped to an ICD-10-CM code are dropped; when none survive,
// age-appropriate diagnoses are synthesized instead.
func (m *FHIRToHL7Mapper) buildDG1s(patient *r4.Patient, bundle *r4.Bundle) []string {
	var segments []string
	timestamp := m.deps.now().Format("20060102150405")

	if bundle != nil {
		for _, condition := range bundle.Conditions() {
			if condition.Code == nil || len(condition.Code.Coding) == 0 {
				continue
			}
			coding := condition.Code.Coding[0]
			icd10, ok := m.resolveICD10(coding.Code, coding.Display, condition.Code.Text)
			if !ok {
				continue
			}
			segments = append(segments, fmt.Sprintf("DG1|%d|ICD-10-CM|%s|%s|%s|A",
				len(segments)+1, icd10, coding.Display, timestamp))
		}
	}

	if len(segments) == 0 {
		age := m.ageOf(patient)
		if age > 65 {
			segments = append(segments, fmt.Sprintf("DG1|1|ICD-10-CM|%s|ESSENTIAL (PRIMARY) HYPERTENSION|%s|A",
				terminology.ICD10ByConcept["hypertension"], timestamp))
		}
		if age > 50 && m.deps.rng.Float64() < 0.3 {
			segments = append(segments, fmt.Sprintf("DG1|%d|ICD-10-CM|%s|TYPE 2 DIABETES MELLITUS WITHOUT COMPLICATIONS|%s|A",
				len(segments)+1, terminology.ICD10ByConcept["diabetes_type2"], timestamp))
		}
		if age < 5 && m.deps.rng.Float64() < 0.4 {
			segments = append(segments, fmt.Sprintf("DG1|%d|ICD-10-CM|%s|ACUTE BRONCHIOLITIS, UNSPECIFIED|%s|A",
				len(segments)+1, terminology.ICD10ByConcept["bronchiolitis"], timestamp))
		}
	}

	return segments
}

// resolveICD10 keeps a code already in the curated ICD-10-CM table, then
// falls back to keyword-matching the display and the free text.
func (m *FHIRToHL7Mapper) resolveICD10(code, display, text string) (string, bool) {
	if _, ok := terminology.ICD10Display[code]; ok {
		return code, true
	}
	if mapped, ok := terminology.MapTextToICD10(display); ok {
		return mapped, true
	}
	if mapped, ok := terminology.MapTextToICD10(text); ok {
		return mapped, true
	}
	return "", false
}

func (m *FHIRToHL7Mapper) buildOBXs(patient *r4.Patient, bundle *r4.Bundle) []string {
	var segments []string

	if bundle != nil {
		for _, obs := range bundle.Observations() {
			if seg, ok := m.observationToOBX(obs, len(segments)+1); ok {
				segments = append(segments, seg)
			}
		}
	}

	if len(segments) == 0 {
		segments = m.synthesizeVitals(patient)
	}

	return segments
}

func (m *FHIRToHL7Mapper) observationToOBX(obs *r4.Observation, setID int) (string, bool) {
	if obs.Code == nil || len(obs.Code.Coding) == 0 {
		return "", false
	}
	coding := obs.Code.Coding[0]

	value, unit := "", ""
	if obs.ValueQuantity != nil {
		value = formatNumber(obs.ValueQuantity.Value)
		unit = obs.ValueQuantity.Unit
	}

	refRange := ""
	if len(obs.ReferenceRange) > 0 {
		rr := obs.ReferenceRange[0]
		if rr.Low != nil && rr.High != nil {
			refRange = formatNumber(rr.Low.Value) + "-" + formatNumber(rr.High.Value)
		}
	}

	flag := "N"
	if len(obs.Interpretation) > 0 && len(obs.Interpretation[0].Coding) > 0 {
		switch obs.Interpretation[0].Coding[0].Code {
		case "H", "HH":
			flag = "H"
		case "L", "LL":
			flag = "L"
		}
	}

	return fmt.Sprintf("OBX|%d|NM|%s^%s^LN||%s|%s|%s|%s|||F",
		setID, coding.Code, coding.Display, value, unit, refRange, flag), true
}

// synthesizeVitals fabricates an age-appropriate set of vital signs, plus
// basic labs for adults.
func (m *FHIRToHL7Mapper) synthesizeVitals(patient *r4.Patient) []string {
	var segments []string
	age := m.ageOf(patient)
	rng := m.deps.rng

	hr, hrRef := rng.Intn(41)+60, "60-100"
	if age < 18 {
		hr, hrRef = rng.Intn(51)+70, "70-120"
	}
	segments = append(segments, fmt.Sprintf("OBX|1|NM|%s^HEART RATE^LN||%d|/min|%s|N|||F",
		terminology.LOINCByConcept["heart_rate"], hr, hrRef))

	sysBP, diaBP, sysRef, diaRef := rng.Intn(31)+110, rng.Intn(21)+70, "90-130", "60-80"
	if age < 18 {
		sysBP, diaBP, sysRef, diaRef = rng.Intn(31)+80, rng.Intn(21)+50, "80-110", "50-70"
	}
	segments = append(segments, fmt.Sprintf("OBX|2|NM|%s^SYSTOLIC BP^LN||%d|mmHg|%s|N|||F",
		terminology.LOINCByConcept["systolic_bp"], sysBP, sysRef))
	segments = append(segments, fmt.Sprintf("OBX|3|NM|%s^DIASTOLIC BP^LN||%d|mmHg|%s|N|||F",
		terminology.LOINCByConcept["diastolic_bp"], diaBP, diaRef))

	temp := 36.5 + rng.Float64()
	segments = append(segments, fmt.Sprintf("OBX|4|NM|%s^BODY TEMPERATURE^LN||%.1f|C|36.5-37.5|N|||F",
		terminology.LOINCByConcept["temperature"], temp))

	rr, rrRef := rng.Intn(9)+12, "12-20"
	if age < 18 {
		rr, rrRef = rng.Intn(11)+20, "20-30"
	}
	segments = append(segments, fmt.Sprintf("OBX|5|NM|%s^RESPIRATORY RATE^LN||%d|/min|%s|N|||F",
		terminology.LOINCByConcept["respiratory_rate"], rr, rrRef))

	spo2 := rng.Intn(6) + 95
	segments = append(segments, fmt.Sprintf("OBX|6|NM|%s^OXYGEN SATURATION^LN||%d|%%|95-100|N|||F",
		terminology.LOINCByConcept["oxygen_saturation"], spo2))

	if age > 18 {
		glucose := rng.Intn(41) + 80
		if age > 50 && rng.Float64() < 0.2 {
			glucose = rng.Intn(61) + 140
		}
		segments = append(segments, fmt.Sprintf("OBX|7|NM|%s^GLUCOSE^LN||%d|mg/dL|70-110|N|||F",
			terminology.LOINCByConcept["glucose"], glucose))

		creatinine := 0.6 + rng.Float64()*0.6
		segments = append(segments, fmt.Sprintf("OBX|8|NM|%s^CREATININE^LN||%.1f|mg/dL|0.6-1.2|N|||F",
			terminology.LOINCByConcept["creatinine"], creatinine))
	}

	return segments
}

func (m *FHIRToHL7Mapper) buildPR1s(bundle *r4.Bundle) []string {
	var segments []string
	if bundle == nil {
		return segments
	}

	for _, proc := range bundle.Procedures() {
		if proc.Code == nil || len(proc.Code.Coding) == 0 {
			continue
		}
		coding := proc.Code.Coding[0]
		performed := hl7v2.ToHL7(proc.PerformedDateTime)
		providerName := "PROVIDER^" + pr1ProviderNames[m.deps.rng.Intn(len(pr1ProviderNames))]

		segments = append(segments, fmt.Sprintf("PR1|%d||%s^%s^ICD10|%s|ROUTINE|||01|%s^%s",
			len(segments)+1, coding.Code, coding.Display, performed, m.shortID(5), providerName))
	}

	return segments
}

func (m *FHIRToHL7Mapper) buildRXRs(bundle *r4.Bundle) []string {
	var segments []string
	if bundle == nil {
		return segments
	}

	for _, med := range bundle.MedicationStatements() {
		if med.MedicationCodeableConcept == nil || len(med.MedicationCodeableConcept.Coding) == 0 {
			continue
		}
		coding := med.MedicationCodeableConcept.Coding[0]

		doseValue, doseUnit := "", ""
		if len(med.Dosage) > 0 && med.Dosage[0].DoseQuantity != nil {
			doseValue = formatNumber(med.Dosage[0].DoseQuantity.Value)
			doseUnit = med.Dosage[0].DoseQuantity.Unit
		}

		segments = append(segments, fmt.Sprintf("RXR|%d|%s^%s^NDC|%s|%s|ORAL|||F",
			len(segments)+1, coding.Code, coding.Display, doseValue, doseUnit))
	}

	return segments
}

// ageOf computes whole years from the patient's birthDate against the
// injected clock, defaulting to 30 when the date is absent or unparseable.
func (m *FHIRToHL7Mapper) ageOf(patient *r4.Patient) int {
	if patient.BirthDate == "" {
		return 30
	}
	birth, err := time.Parse("2006-01-02", patient.BirthDate)
	if err != nil {
		return 30
	}
	now := m.deps.now()
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// shortID returns the first n hex characters of a fresh id with dashes
// stripped, for message control and provider ids.
func (m *FHIRToHL7Mapper) shortID(n int) string {
	id := strings.ReplaceAll(m.deps.newID(), "-", "")
	if len(id) > n {
		id = id[:n]
	}
	return id
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
