package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	r4 "github.com/clinsim/hl7bridge/internal/fhir/r4"
	"github.com/clinsim/hl7bridge/internal/infrastructure/redpanda"
	"github.com/clinsim/hl7bridge/internal/validation"
)

// convertResponse decodes the forward-conversion body without the
// polymorphic resources array; the bundle carries the same content.
type convertResponse struct {
	Success bool       `json:"success"`
	Bundle  *r4.Bundle `json:"bundle"`
	Errors  []string   `json:"errors"`
}

const sampleMessage = "MSH|^~\\&|SIM|FAC|REC|RFAC|20240101120000||ADT^A01|MSG001|P|2.5.1\n" +
	"PID|1||123^^^HOSP^MR||DOE^JOHN||19800101|M\n" +
	"PV1|1|I|MEDSURG^101^01\n" +
	"DG1|1|ICD-10-CM|R07.9|Chest pain|20240101"

type publishedEvent struct {
	Topic string
	Key   string
	Event any
}

type capturePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *capturePublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{Topic: topic, Key: key, Event: event})
	return nil
}

func (p *capturePublisher) byTopic(topic string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

func newTestHandler(t *testing.T, publisher Publisher) *Handler {
	t.Helper()
	h := New(Config{
		Publisher:    publisher,
		Logger:       zap.NewNop(),
		BatchWorkers: 2,
	})
	t.Cleanup(h.Close)
	return h
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestValidateEndpoint(t *testing.T) {
	publisher := &capturePublisher{}
	h := newTestHandler(t, publisher)
	router := h.Routes()

	rec := postJSON(t, router, "/messages/validate", MessageRequest{Message: sampleMessage})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var report validation.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if !report.IsValid {
		t.Errorf("IsValid = false, issues: %+v", report.Issues)
	}

	events := publisher.byTopic(redpanda.TopicHL7Validated)
	if len(events) != 1 {
		t.Fatalf("published %d validated events, want 1", len(events))
	}
	if events[0].Key != "MSG001" {
		t.Errorf("event key = %q, want control id MSG001", events[0].Key)
	}
}

func TestValidateRawBody(t *testing.T) {
	h := newTestHandler(t, nil)
	router := h.Routes()

	req := httptest.NewRequest(http.MethodPost, "/messages/validate", strings.NewReader(sampleMessage))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var report validation.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Status == "CRITICAL" {
		t.Errorf("raw body was not parsed as HL7: %+v", report.Issues)
	}
}

func TestValidateJunkInput(t *testing.T) {
	h := newTestHandler(t, nil)
	router := h.Routes()

	rec := postJSON(t, router, "/messages/validate", MessageRequest{Message: "this is not hl7"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var report validation.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Status != "CRITICAL" || report.IsValid {
		t.Errorf("Status = %q IsValid = %v, want CRITICAL/false", report.Status, report.IsValid)
	}
}

func TestConvertEndpoint(t *testing.T) {
	publisher := &capturePublisher{}
	h := newTestHandler(t, publisher)
	router := h.Routes()

	rec := postJSON(t, router, "/messages/convert", MessageRequest{Message: sampleMessage})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result convertResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Success {
		t.Fatalf("Success = false, errors: %v", result.Errors)
	}
	if result.Bundle == nil {
		t.Fatal("Bundle is nil")
	}
	if len(result.Bundle.Patients()) != 1 {
		t.Errorf("got %d patients, want 1", len(result.Bundle.Patients()))
	}

	events := publisher.byTopic(redpanda.TopicFHIRConverted)
	if len(events) != 1 {
		t.Fatalf("published %d converted events, want 1", len(events))
	}
	if events[0].Key != "123" {
		t.Errorf("event key = %q, want patient id 123", events[0].Key)
	}
}

func TestConvertFailureStillResponds(t *testing.T) {
	h := newTestHandler(t, nil)
	router := h.Routes()

	rec := postJSON(t, router, "/messages/convert", MessageRequest{Message: "garbage"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var result convertResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Success || len(result.Errors) == 0 {
		t.Errorf("Success = %v Errors = %v, want failed with errors", result.Success, result.Errors)
	}
}

func TestConvertFHIRBundle(t *testing.T) {
	publisher := &capturePublisher{}
	h := newTestHandler(t, publisher)
	router := h.Routes()

	bundle := map[string]any{
		"resourceType": "Bundle",
		"type":         "collection",
		"entry": []map[string]any{
			{"resource": map[string]any{
				"resourceType": "Patient",
				"id":           "p-1",
				"name":         []map[string]any{{"family": "DOE", "given": []string{"JANE"}}},
				"gender":       "female",
				"birthDate":    "1980-05-20",
			}},
		},
	}

	rec := postJSON(t, router, "/fhir/convert", bundle)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result ReverseResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Success || result.Count != 1 {
		t.Fatalf("Success = %v Count = %d, want one message", result.Success, result.Count)
	}
	if !strings.HasPrefix(result.Messages[0], "MSH|") {
		t.Errorf("message does not start with MSH: %q", result.Messages[0])
	}

	events := publisher.byTopic(redpanda.TopicHL7Synthesized)
	if len(events) != 1 || events[0].Key != "p-1" {
		t.Errorf("synthesized events = %+v, want one keyed p-1", events)
	}
}

func TestConvertFHIRBarePatient(t *testing.T) {
	h := newTestHandler(t, nil)
	router := h.Routes()

	patient := map[string]any{
		"resourceType": "Patient",
		"id":           "p-2",
		"gender":       "male",
		"birthDate":    "1990-01-01",
	}

	rec := postJSON(t, router, "/fhir/convert", patient)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var result ReverseResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Success || result.Count != 1 {
		t.Errorf("Success = %v Count = %d, want one message", result.Success, result.Count)
	}
}

func TestConvertFHIRUnknownResourceType(t *testing.T) {
	h := newTestHandler(t, nil)
	router := h.Routes()

	rec := postJSON(t, router, "/fhir/convert", map[string]any{"resourceType": "Device"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestConvertFHIRBatch(t *testing.T) {
	h := newTestHandler(t, nil)
	router := h.Routes()

	patientBundle := func(id string) map[string]any {
		return map[string]any{
			"resourceType": "Bundle",
			"type":         "collection",
			"entry": []map[string]any{
				{"resource": map[string]any{
					"resourceType": "Patient",
					"id":           id,
					"gender":       "female",
					"birthDate":    "1975-03-03",
				}},
			},
		}
	}
	emptyBundle := map[string]any{"resourceType": "Bundle", "type": "collection"}

	rec := postJSON(t, router, "/fhir/convert/batch", map[string]any{
		"bundles": []any{patientBundle("a"), emptyBundle, patientBundle("b")},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp BatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(resp.Results))
	}
	if !resp.Results[0].Success || !resp.Results[2].Success {
		t.Errorf("patient bundles failed: %+v", resp.Results)
	}
	if resp.Results[1].Success {
		t.Errorf("empty bundle reported success")
	}
	for i, want := range []string{"a", "b"} {
		msg := resp.Results[i*2].Messages[0]
		if !strings.Contains(msg, "PID|1|"+want+"|") {
			t.Errorf("result %d does not carry patient %s: %q", i*2, want, msg)
		}
	}
}

func TestConvertFHIRBatchEmpty(t *testing.T) {
	h := newTestHandler(t, nil)
	router := h.Routes()

	rec := postJSON(t, router, "/fhir/convert/batch", map[string]any{"bundles": []any{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	publisher := &capturePublisher{err: errors.New("broker down")}
	h := newTestHandler(t, publisher)
	router := h.Routes()

	rec := postJSON(t, router, "/messages/validate", MessageRequest{Message: sampleMessage})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	h := newTestHandler(t, nil)
	router := h.Routes()

	req := httptest.NewRequest(http.MethodPost, "/messages/validate", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
