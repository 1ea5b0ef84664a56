// Package diagapi exposes the diagnosis engine over HTTP.
package diagapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/verdict/internal/bench"
	"github.com/linnemanlabs/verdict/internal/diagnosis"
	"github.com/linnemanlabs/verdict/internal/incident"
)

// DiagnosisService defines the business operations diagapi needs.
type DiagnosisService interface {
	Diagnose(ctx context.Context, inc *incident.Context) (*diagnosis.Record, error)
	Compare(ctx context.Context, inc *incident.Context) (*diagnosis.Record, error)
	Get(ctx context.Context, id string) (*diagnosis.Record, bool, error)
	GetByFingerprint(ctx context.Context, fp string) (*diagnosis.Record, bool, error)
}

// Benchmarker runs the SLA benchmark.
type Benchmarker interface {
	Run(ctx context.Context, n int, target time.Duration) (*bench.Report, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    DiagnosisService
	bench  Benchmarker
}

// New creates a new API handler. bench may be nil, in which case the
// benchmark endpoint responds 503.
func New(logger log.Logger, svc DiagnosisService, bench Benchmarker) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("diagnosis service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
		bench:  bench,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/diagnoses", a.handleCreateDiagnosis)
		r.Get("/diagnoses", a.handleLookupDiagnosis)
		r.Get("/diagnoses/{id}", a.handleGetDiagnosis)
		r.Post("/benchmark", a.handleBenchmark)
	})
}

func (a *API) handleGetDiagnosis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("verdict.diagnosis.id", id))

	rec, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get diagnosis", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("verdict.diagnosis.mode", string(rec.Mode)))

	writeJSON(w, http.StatusOK, rec)
}

// handleLookupDiagnosis answers GET /diagnoses?fingerprint=... with the most
// recent diagnosis of that normalized incident, covering repeats that have
// aged out of the response cache.
func (a *API) handleLookupDiagnosis(w http.ResponseWriter, r *http.Request) {
	fp := r.URL.Query().Get("fingerprint")
	if fp == "" {
		http.Error(w, `{"error":"fingerprint query parameter is required"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("verdict.incident.fingerprint", fp))

	rec, ok, err := a.svc.GetByFingerprint(r.Context(), fp)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to look up diagnosis", "fingerprint", fp)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
