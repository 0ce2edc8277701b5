package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	r4 "github.com/clinsim/hl7bridge/internal/fhir/r4"
	"github.com/clinsim/hl7bridge/internal/infrastructure/redpanda"
	"github.com/clinsim/hl7bridge/internal/mapper"
	"github.com/clinsim/hl7bridge/pkg/workerpool"
)

// ReverseResult is the response body for a FHIR to HL7 conversion.
type ReverseResult struct {
	Success  bool     `json:"success"`
	Messages []string `json:"messages"`
	Count    int      `json:"count"`
	Error    string   `json:"error,omitempty"`
}

// ConvertFHIR handles POST /fhir/convert. The body is a FHIR Bundle or a
// bare Patient resource.
func (h *Handler) ConvertFHIR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("hl7-handler")
	ctx, span := tracer.Start(ctx, "convert_fhir")
	defer span.End()

	var probe struct {
		ResourceType string `json:"resourceType"`
	}
	body := json.RawMessage{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var (
		bundle *r4.Bundle
		err    error
	)
	switch probe.ResourceType {
	case "Bundle":
		bundle = &r4.Bundle{}
		err = json.Unmarshal(body, bundle)
	case "Patient":
		patient := &r4.Patient{}
		if err = json.Unmarshal(body, patient); err == nil {
			bundle = &r4.Bundle{ResourceType: "Bundle", Type: "collection"}
			bundle.Entry = append(bundle.Entry, r4.Entry{Resource: patient})
		}
	default:
		h.jsonError(w, "resourceType must be Bundle or Patient", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.jsonError(w, "invalid "+probe.ResourceType+" resource", http.StatusBadRequest)
		return
	}

	start := time.Now()
	messages := h.newReverse().ConvertBundle(bundle)
	h.observeConversion("fhir_to_hl7", len(messages) > 0, time.Since(start))
	span.SetAttributes(attribute.Int("conversion.messages", len(messages)))

	if len(messages) == 0 {
		h.writeJSON(w, http.StatusOK, ReverseResult{
			Success:  false,
			Messages: []string{},
			Error:    "no Patient resource in input",
		})
		return
	}

	if h.metrics != nil {
		h.metrics.SegmentsSynthesized.Add(float64(segmentCount(messages)))
	}

	var patientID string
	if patients := bundle.Patients(); len(patients) > 0 {
		patientID = patients[0].ID
	}
	h.publish(ctx, redpanda.TopicHL7Synthesized, patientID, redpanda.SynthesizedEvent{
		PatientID:    patientID,
		MessageCount: len(messages),
		OccurredAt:   time.Now().UTC().Format(time.RFC3339),
	})

	h.writeJSON(w, http.StatusOK, ReverseResult{
		Success:  true,
		Messages: messages,
		Count:    len(messages),
	})
}

// BatchRequest is the request body for a batch FHIR to HL7 conversion.
type BatchRequest struct {
	Bundles []*r4.Bundle `json:"bundles"`
}

// BatchResponse reports per-bundle results in request order.
type BatchResponse struct {
	Results []ReverseResult `json:"results"`
}

// ConvertFHIRBatch handles POST /fhir/convert/batch. Bundles are converted
// concurrently on the worker pool; a failed bundle does not fail the batch.
func (h *Handler) ConvertFHIRBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("hl7-handler")
	ctx, span := tracer.Start(ctx, "convert_fhir_batch")
	defer span.End()

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Bundles) == 0 {
		h.jsonError(w, "bundles is required", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int("batch.size", len(req.Bundles)))
	if h.metrics != nil {
		h.metrics.BatchSize.Observe(float64(len(req.Bundles)))
	}

	payloads := make([]any, len(req.Bundles))
	for i, b := range req.Bundles {
		payloads[i] = b
	}

	start := time.Now()
	results := h.pool.convert(ctx, payloads)
	totalMessages := 0

	resp := BatchResponse{Results: make([]ReverseResult, len(results))}
	for i, res := range results {
		item := ReverseResult{Messages: []string{}}
		switch {
		case res == nil:
			item.Error = "conversion did not complete"
		case !res.Success:
			item.Error = "conversion failed"
			if res.Err != nil {
				item.Error = res.Err.Error()
			}
		default:
			messages, _ := res.Data.([]string)
			item.Success = len(messages) > 0
			item.Messages = messages
			item.Count = len(messages)
			if item.Count == 0 {
				item.Error = "no Patient resource in bundle"
			}
			totalMessages += item.Count
		}
		resp.Results[i] = item
	}
	h.observeConversion("fhir_to_hl7_batch", totalMessages > 0, time.Since(start))

	h.publish(ctx, redpanda.TopicHL7Synthesized, "", redpanda.SynthesizedEvent{
		MessageCount: totalMessages,
		OccurredAt:   time.Now().UTC().Format(time.RFC3339),
	})

	h.writeJSON(w, http.StatusOK, resp)
}

func segmentCount(messages []string) int {
	n := 0
	for _, msg := range messages {
		n += len(strings.Split(msg, "\n"))
	}
	return n
}

// batchPool runs reverse conversions on a bounded worker pool. Each task
// gets its own mapper; the reverse mapper is not safe for concurrent use.
type batchPool struct {
	pool *workerpool.Pool
}

func newBatchPool(workers int, newReverse func() *mapper.FHIRToHL7Mapper, logger *zap.Logger) *batchPool {
	fn := func(ctx context.Context, task *workerpool.Task) *workerpool.Result {
		bundle, ok := task.Payload.(*r4.Bundle)
		if !ok || bundle == nil {
			return &workerpool.Result{
				TaskID: task.ID,
				Err:    fmt.Errorf("task %s: payload is not a bundle", task.ID),
			}
		}
		return &workerpool.Result{
			TaskID:  task.ID,
			Success: true,
			Data:    newReverse().ConvertBundle(bundle),
		}
	}

	cfg := workerpool.DefaultConfig()
	cfg.Workers = workers
	pool, _ := workerpool.New(cfg, fn, logger)
	pool.Start()
	return &batchPool{pool: pool}
}

func (b *batchPool) convert(ctx context.Context, payloads []any) []*workerpool.Result {
	return b.pool.Map(ctx, payloads)
}

func (b *batchPool) healthy() bool { return b.pool.Healthy() }

func (b *batchPool) stop() { b.pool.Stop() }
