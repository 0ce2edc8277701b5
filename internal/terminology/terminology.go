// Package terminology holds the curated code-system subsets used for
// validation annotations and coding lookups. All tables are read-only and
// constructed once at process start; concurrent readers need no locking.
package terminology

// LOINCDisplay maps curated LOINC codes to their display names.
var LOINCDisplay = map[string]string{
	"8867-4": "Heart rate",
	"8480-6": "Systolic blood pressure",
	"8462-4": "Diastolic blood pressure",
	"8310-5": "Body temperature",
	"9279-1": "Respiratory rate",
	"2708-6": "Oxygen saturation",
	"2345-7": "Glucose",
	"4548-4": "Hemoglobin A1c",
	"2160-0": "Creatinine",
}

// ICD10Display maps curated ICD-10-CM codes to their display names.
var ICD10Display = map[string]string{
	"I10":   "Essential hypertension",
	"E11.9": "Type 2 diabetes mellitus",
	"R07.9": "Chest pain, unspecified",
	"I63.9": "Cerebral infarction",
	"J21.9": "Acute bronchiolitis",
}

// SNOMEDDisplay maps curated SNOMED CT codes to their display names.
var SNOMEDDisplay = map[string]string{
	"182829008": "Blood draw",
	"399208008": "Chest X-ray",
	"164930006": "Electrocardiogram",
}

// LOINCByConcept maps clinical concept names to LOINC codes. Used when
// synthesizing observation segments for patients without source data.
var LOINCByConcept = map[string]string{
	// Vital signs
	"heart_rate":        "8867-4",
	"systolic_bp":       "8480-6",
	"diastolic_bp":      "8462-4",
	"temperature":       "8310-5",
	"respiratory_rate":  "9279-1",
	"oxygen_saturation": "2708-6",
	"height":            "8302-2",
	"weight":            "29463-7",
	"bmi":               "39156-5",

	// Laboratory values
	"glucose":           "2345-7",
	"hemoglobin":        "718-7",
	"hematocrit":        "4544-3",
	"creatinine":        "2160-0",
	"hemoglobin_a1c":    "4548-4",
	"total_cholesterol": "2093-3",
	"hdl_cholesterol":   "2085-9",
	"ldl_cholesterol":   "2089-1",
	"triglycerides":     "2571-8",
	"white_blood_cells": "770-8",
	"red_blood_cells":   "789-8",
	"platelets":         "777-3",
	"sodium":            "2951-2",
	"potassium":         "2823-3",
	"chloride":          "2075-0",
	"bun":               "3094-0",
	"alt":               "1742-6",
	"ast":               "1920-8",
	"tsh":               "3016-3",
	"troponin_i":        "6598-7",
	"inr":               "34714-6",
}

// ICD10ByConcept maps condition concept names to ICD-10-CM codes.
var ICD10ByConcept = map[string]string{
	// Cardiovascular
	"hypertension":          "I10",
	"myocardial_infarction": "I21.9",
	"angina":                "I20.9",
	"chest_pain":            "R07.9",
	"heart_failure":         "I50.9",
	"atrial_fibrillation":   "I48.91",
	"stroke":                "I63.9",

	// Endocrine
	"diabetes_type1": "E10.9",
	"diabetes_type2": "E11.9",
	"hyperlipidemia": "E78.5",
	"hypothyroidism": "E03.9",
	"obesity":        "E66.9",

	// Respiratory
	"pneumonia": "J18.9",
	"asthma":    "J45.9",
	"copd":      "J44.1",

	// Neurological
	"migraine": "G43.9",
	"epilepsy": "G40.9",
	"dementia": "F03.90",

	// Genitourinary
	"urinary_tract_infection": "N39.0",
	"chronic_kidney_disease":  "N18.6",

	// Mental health
	"depression": "F32.9",
	"anxiety":    "F41.9",

	// Infectious
	"influenza": "J11.1",
	"covid19":   "U07.1",
	"sepsis":    "A41.9",

	// Pediatric
	"bronchiolitis": "J21.9",
	"otitis_media":  "H66.9",
	"croup":         "J05.0",
}

// SNOMEDByConcept maps procedure concept names to SNOMED CT codes.
var SNOMEDByConcept = map[string]string{
	"blood_draw": "182829008",
	"chest_xray": "399208008",
	"ekg":        "164930006",
	"surgery":    "387713003",
	"injection":  "182829008",
}

// MedicationCode maps medication names to curated RxNorm-style codes.
var MedicationCode = map[string]string{
	"lisinopril":    "314076",
	"metoprolol":    "1190805",
	"amlodipine":    "197361",
	"atorvastatin":  "617312",
	"warfarin":      "106009",
	"aspirin":       "1191",
	"metformin":     "860975",
	"insulin":       "7980",
	"albuterol":     "148",
	"acetaminophen": "161",
	"ibuprofen":     "3640",
	"amoxicillin":   "7980",
}
