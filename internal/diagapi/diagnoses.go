package diagapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/verdict/internal/diagnosis"
	"github.com/linnemanlabs/verdict/internal/incident"
)

const maxRequestBody = 64 << 10

// diagnosisRequest is the inbound shape for POST /api/v1/diagnoses.
type diagnosisRequest struct {
	Mode     diagnosis.Mode   `json:"mode,omitempty"`
	Incident incident.Context `json:"incident"`
}

func (req *diagnosisRequest) validate() string {
	if req.Mode == "" {
		req.Mode = diagnosis.ModeRace
	}
	if !diagnosis.ValidMode(req.Mode) {
		return "mode must be race or compare"
	}
	if strings.TrimSpace(req.Incident.Title) == "" {
		return "incident.title is required"
	}
	if strings.TrimSpace(req.Incident.Description) == "" {
		return "incident.description is required"
	}
	if req.Incident.SeverityHint != "" && !incident.ValidSeverity(req.Incident.SeverityHint) {
		return "incident.severity_hint must be critical, high, medium, or low"
	}
	return ""
}

func (a *API) handleCreateDiagnosis(w http.ResponseWriter, r *http.Request) {
	var req diagnosisRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("verdict.diagnosis.mode", string(req.Mode)),
		attribute.String("verdict.incident.fingerprint", req.Incident.Fingerprint()),
	)

	var (
		rec *diagnosis.Record
		err error
	)
	switch req.Mode {
	case diagnosis.ModeCompare:
		rec, err = a.svc.Compare(r.Context(), &req.Incident)
	default:
		rec, err = a.svc.Diagnose(r.Context(), &req.Incident)
	}
	if err != nil {
		a.logger.Error(r.Context(), err, "diagnosis failed",
			"mode", string(req.Mode), "title", req.Incident.Title)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.String("verdict.diagnosis.id", rec.ID))

	writeJSON(w, http.StatusCreated, rec)
}
