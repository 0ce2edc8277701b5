package terminology

import "strings"

// conditionKeyword pairs a free-text fragment with its ICD-10-CM concept.
// Order matters: the first matching keyword wins.
type conditionKeyword struct {
	fragment string
	concept  string
}

var conditionKeywords = []conditionKeyword{
	{"hypertension", "hypertension"},
	{"high blood pressure", "hypertension"},
	{"diabetes", "diabetes_type2"},
	{"chest pain", "chest_pain"},
	{"stroke", "stroke"},
	{"cerebral infarction", "stroke"},
	{"pneumonia", "pneumonia"},
	{"asthma", "asthma"},
	{"depression", "depression"},
	{"anxiety", "anxiety"},
}

// MapTextToICD10 maps free condition text to a curated ICD-10-CM code via
// case-insensitive substring matching against a fixed keyword set. The first
// matching keyword wins; unmatched text reports ok=false so callers can omit
// the condition entirely.
func MapTextToICD10(text string) (code string, ok bool) {
	lower := strings.ToLower(text)
	for _, kw := range conditionKeywords {
		if strings.Contains(lower, kw.fragment) {
			return ICD10ByConcept[kw.concept], true
		}
	}
	return "", false
}

// LookupLOINC reports the display name of a curated LOINC code.
func LookupLOINC(code string) (string, bool) {
	display, ok := LOINCDisplay[code]
	return display, ok
}

// LookupICD10 reports the display name of a curated ICD-10-CM code.
func LookupICD10(code string) (string, bool) {
	display, ok := ICD10Display[code]
	return display, ok
}

// LookupSNOMED reports the display name of a curated SNOMED CT code.
func LookupSNOMED(code string) (string, bool) {
	display, ok := SNOMEDDisplay[code]
	return display, ok
}
