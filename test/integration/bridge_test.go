// Package integration provides end-to-end tests for the HL7 bridge.
package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/clinsim/hl7bridge/internal/api/handlers"
	r4 "github.com/clinsim/hl7bridge/internal/fhir/r4"
	"github.com/clinsim/hl7bridge/internal/validation"
)

func newBridge(t *testing.T) http.Handler {
	t.Helper()
	h := handlers.New(handlers.Config{Logger: zap.NewNop(), BatchWorkers: 2})
	t.Cleanup(h.Close)
	return h.Routes()
}

func post(t *testing.T, router http.Handler, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST %s: status = %d, body: %s", path, rec.Code, rec.Body.String())
	}
	return rec
}

// TestBundleRoundTrip drives a FHIR bundle through the reverse conversion,
// validates the synthesized HL7, and converts it back to FHIR. Clinical
// identity must survive: patient id, diagnosis code, observation value.
func TestBundleRoundTrip(t *testing.T) {
	data, err := os.ReadFile("../fixtures/patient_bundle.json")
	if err != nil {
		t.Skipf("fixture not found: %v", err)
	}

	router := newBridge(t)

	// FHIR -> HL7
	rec := post(t, router, "/fhir/convert", "application/json", string(data))
	var reverse handlers.ReverseResult
	if err := json.Unmarshal(rec.Body.Bytes(), &reverse); err != nil {
		t.Fatalf("decode reverse result: %v", err)
	}
	if !reverse.Success || reverse.Count != 1 {
		t.Fatalf("reverse conversion failed: %+v", reverse)
	}
	message := reverse.Messages[0]

	// Synthesized messages must pass validation
	rec = post(t, router, "/messages/validate", "text/plain", message)
	var report validation.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if !report.IsValid {
		t.Fatalf("synthesized message invalid: %+v", report.Issues)
	}

	// HL7 -> FHIR
	rec = post(t, router, "/messages/convert", "text/plain", message)
	var result struct {
		Success bool       `json:"success"`
		Bundle  *r4.Bundle `json:"bundle"`
		Errors  []string   `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode conversion result: %v", err)
	}
	if !result.Success || result.Bundle == nil {
		t.Fatalf("forward conversion failed: %v", result.Errors)
	}

	patients := result.Bundle.Patients()
	if len(patients) != 1 || patients[0].ID != "pat-77001" {
		t.Fatalf("patient identity lost: %+v", patients)
	}
	if patients[0].BirthDate != "1957-11-02" {
		t.Errorf("birthDate = %q, want 1957-11-02", patients[0].BirthDate)
	}

	foundDiagnosis := false
	for _, cond := range result.Bundle.Conditions() {
		if cond.Code != nil && len(cond.Code.Coding) > 0 && cond.Code.Coding[0].Code == "I10" {
			foundDiagnosis = true
		}
	}
	if !foundDiagnosis {
		t.Errorf("hypertension diagnosis I10 lost in round trip")
	}

	foundBP := false
	for _, obs := range result.Bundle.Observations() {
		if obs.Code == nil || len(obs.Code.Coding) == 0 || obs.Code.Coding[0].Code != "8480-6" {
			continue
		}
		foundBP = true
		if obs.ValueQuantity == nil || obs.ValueQuantity.Value != 148 {
			t.Errorf("systolic value = %+v, want 148", obs.ValueQuantity)
		}
	}
	if !foundBP {
		t.Errorf("systolic observation 8480-6 lost in round trip")
	}
}

// TestBatchIsolation converts a mixed batch and checks that a bundle without
// a patient does not poison its neighbors.
func TestBatchIsolation(t *testing.T) {
	data, err := os.ReadFile("../fixtures/patient_bundle.json")
	if err != nil {
		t.Skipf("fixture not found: %v", err)
	}

	router := newBridge(t)

	body := `{"bundles":[` + string(data) + `,{"resourceType":"Bundle","type":"collection"},` + string(data) + `]}`
	rec := post(t, router, "/fhir/convert/batch", "application/json", body)

	var resp handlers.BatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode batch response: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(resp.Results))
	}
	if !resp.Results[0].Success || !resp.Results[2].Success {
		t.Errorf("populated bundles failed: %+v", resp.Results)
	}
	if resp.Results[1].Success {
		t.Errorf("empty bundle reported success")
	}
}
