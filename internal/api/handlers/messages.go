// Package handlers provides HTTP handlers for the HL7 gateway.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/clinsim/hl7bridge/internal/hl7v2"
	"github.com/clinsim/hl7bridge/internal/infrastructure/redpanda"
	"github.com/clinsim/hl7bridge/internal/mapper"
	"github.com/clinsim/hl7bridge/internal/observability/metrics"
	"github.com/clinsim/hl7bridge/internal/validation"
	"github.com/clinsim/hl7bridge/pkg/circuitbreaker"
)

// Publisher is the event sink for pipeline events. Satisfied by
// redpanda.Producer; nil disables publication.
type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

// Handler handles the message and FHIR bridge endpoints.
type Handler struct {
	forward    *mapper.HL7ToFHIRMapper
	newReverse func() *mapper.FHIRToHL7Mapper
	publisher  Publisher
	breaker    *circuitbreaker.Breaker
	metrics    *metrics.Metrics
	logger     *zap.Logger
	pool       *batchPool
}

// Config wires the handler's collaborators. Publisher, Breaker and Metrics
// may be nil; BatchWorkers defaults to 8.
type Config struct {
	Publisher    Publisher
	Breaker      *circuitbreaker.Breaker
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	BatchWorkers int
	ReverseOpts  []mapper.Option
}

// New creates a handler and starts its batch conversion pool.
func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BatchWorkers <= 0 {
		cfg.BatchWorkers = 8
	}

	h := &Handler{
		forward: mapper.NewHL7ToFHIRMapper(),
		newReverse: func() *mapper.FHIRToHL7Mapper {
			return mapper.NewFHIRToHL7Mapper(cfg.ReverseOpts...)
		},
		publisher: cfg.Publisher,
		breaker:   cfg.Breaker,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
	h.pool = newBatchPool(cfg.BatchWorkers, h.newReverse, cfg.Logger)
	return h
}

// Close stops the batch pool.
func (h *Handler) Close() {
	h.pool.stop()
}

// Healthy reports whether the batch pool and the event breaker can accept
// work. Used by the readiness probe.
func (h *Handler) Healthy() bool {
	if !h.pool.healthy() {
		return false
	}
	if h.breaker != nil && !h.breaker.Healthy() {
		return false
	}
	return true
}

// Routes returns the handler routes, mounted under /api/v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/messages", func(r chi.Router) {
		r.Post("/validate", h.Validate)
		r.Post("/convert", h.Convert)
	})
	r.Route("/fhir", func(r chi.Router) {
		r.Post("/convert", h.ConvertFHIR)
		r.Post("/convert/batch", h.ConvertFHIRBatch)
	})
	return r
}

// MessageRequest is the JSON form of a validate or convert request. Clients
// may also post the raw HL7 message with a text content type.
type MessageRequest struct {
	Message         string `json:"message"`
	ValidationLevel string `json:"validation_level,omitempty"`
}

// readMessage accepts either a JSON MessageRequest or a raw HL7 body.
func readMessage(r *http.Request) (MessageRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return MessageRequest{}, err
	}

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var req MessageRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return MessageRequest{}, err
		}
		return req, nil
	}
	return MessageRequest{Message: string(body)}, nil
}

// Validate handles POST /messages/validate
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("hl7-handler")
	ctx, span := tracer.Start(ctx, "validate_message")
	defer span.End()

	req, err := readMessage(r)
	if err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	level := validation.ParseLevel(req.ValidationLevel)
	report := validation.New(level, validation.WithLogger(h.logger)).Validate(req.Message)
	span.SetAttributes(
		attribute.String("validation.status", report.Status),
		attribute.Int("validation.issues", report.TotalIssues),
	)

	if h.metrics != nil {
		h.metrics.MessagesValidated.WithLabelValues(report.Status).Inc()
		for severity, n := range report.SeverityCounts {
			h.metrics.ValidationIssues.WithLabelValues(string(severity)).Add(float64(n))
		}
	}

	controlID := messageControlID(req.Message)
	h.publish(ctx, redpanda.TopicHL7Validated, controlID, redpanda.ValidatedEvent{
		MessageControlID: controlID,
		Status:           report.Status,
		IsValid:          report.IsValid,
		TotalIssues:      report.TotalIssues,
		SeverityCounts:   report.SeverityCounts,
		ValidationLevel:  report.ValidationLevel,
		OccurredAt:       time.Now().UTC().Format(time.RFC3339),
	})

	h.writeJSON(w, http.StatusOK, report)
}

// Convert handles POST /messages/convert
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("hl7-handler")
	ctx, span := tracer.Start(ctx, "convert_message")
	defer span.End()

	req, err := readMessage(r)
	if err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	start := time.Now()
	result := h.forward.Convert(req.Message)
	h.observeConversion("hl7_to_fhir", result.Success, time.Since(start))
	span.SetAttributes(
		attribute.Bool("conversion.success", result.Success),
		attribute.Int("conversion.resources", len(result.Resources)),
	)

	if h.metrics != nil && result.Success {
		h.metrics.ResourcesProduced.Add(float64(len(result.Resources)))
	}

	var patientID, bundleID string
	if result.Bundle != nil {
		bundleID = result.Bundle.ID
		if patients := result.Bundle.Patients(); len(patients) > 0 {
			patientID = patients[0].ID
		}
	}
	h.publish(ctx, redpanda.TopicFHIRConverted, patientID, redpanda.ConvertedEvent{
		PatientID:     patientID,
		BundleID:      bundleID,
		ResourceCount: len(result.Resources),
		Success:       result.Success,
		WarningCount:  len(result.Warnings),
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	})

	h.writeJSON(w, http.StatusOK, result)
}

// publish sends an event through the circuit breaker. Publish failures are
// logged and never surfaced to the client.
func (h *Handler) publish(ctx context.Context, topic, key string, event any) {
	if h.publisher == nil {
		return
	}

	send := func() error { return h.publisher.PublishEvent(ctx, topic, key, event) }
	var err error
	if h.breaker != nil {
		err = h.breaker.Do(ctx, send)
	} else {
		err = send()
	}

	if h.metrics != nil {
		if err != nil {
			h.metrics.EventsFailed.Inc()
		} else {
			h.metrics.EventsPublished.Inc()
		}
	}
	if err != nil {
		h.logger.Warn("event publish failed",
			zap.String("topic", topic),
			zap.Error(err),
		)
	}
}

func (h *Handler) observeConversion(direction string, success bool, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	h.metrics.Conversions.WithLabelValues(direction, outcome).Inc()
	h.metrics.ConversionDuration.WithLabelValues(direction).Observe(elapsed.Seconds())
}

// messageControlID extracts MSH-10 from the raw message, if present.
func messageControlID(raw string) string {
	seg, ok := hl7v2.FindFirst(hl7v2.Parse(raw), "MSH")
	if !ok {
		return ""
	}
	return seg.Field(9).String()
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	h.writeJSON(w, code, map[string]string{"error": message})
}
