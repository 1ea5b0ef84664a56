package diagnosis

import (
	"fmt"
	"time"

	"github.com/linnemanlabs/verdict/internal/incident"
)

// ErrorClass classifies why an adapter call failed. Adapter failures are
// absorbed into failed AnalysisResults and never surface as Go errors.
type ErrorClass string

const (
	ErrClassTimeout      ErrorClass = "timeout"
	ErrClassTransport    ErrorClass = "transport_error"
	ErrClassMalformed    ErrorClass = "malformed_response"
	ErrClassUnauthorized ErrorClass = "unauthorized"
)

// Provenance values for OrchestrationOutcome.
const (
	ProvenanceFallback = "fallback"
	ProvenanceCache    = "cache"
)

// AdapterProvenance returns the provenance string for a winning adapter.
func AdapterProvenance(name string) string {
	return "adapter:" + name
}

// AnalysisResult is the normalized output of one analysis backend (or the
// fallback analyzer). Immutable once produced.
type AnalysisResult struct {
	Provider         string            `json:"provider"`
	Success          bool              `json:"success"`
	ErrClass         ErrorClass        `json:"error_class,omitempty"`
	Confidence       float64           `json:"confidence"`
	Severity         incident.Severity `json:"severity,omitempty"`
	RootCause        string            `json:"root_cause,omitempty"`
	BusinessImpact   string            `json:"business_impact,omitempty"`
	Actions          []string          `json:"recommended_actions,omitempty"`
	AutoResolvable   bool              `json:"auto_resolvable"`
	EstimatedMinutes int               `json:"estimated_minutes,omitempty"`
	Latency          time.Duration     `json:"latency_ns"`
}

// Failed builds a failed AnalysisResult with the given classification.
func Failed(provider string, class ErrorClass, latency time.Duration) *AnalysisResult {
	return &AnalysisResult{
		Provider: provider,
		Success:  false,
		ErrClass: class,
		Latency:  latency,
	}
}

// Validate checks field ranges on a successful result. Adapters treat a
// validation failure as a malformed upstream payload, not as a
// partially-trusted result.
func (r *AnalysisResult) Validate() error {
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", r.Confidence)
	}
	if !incident.ValidSeverity(r.Severity) {
		return fmt.Errorf("unknown severity %q", r.Severity)
	}
	if r.RootCause == "" {
		return fmt.Errorf("empty root cause")
	}
	if r.EstimatedMinutes < 0 {
		return fmt.Errorf("negative resolution estimate %d", r.EstimatedMinutes)
	}
	return nil
}

// Outcome is the final answer of one orchestration call.
type Outcome struct {
	Result     *AnalysisResult `json:"result"`
	Provenance string          `json:"provenance"`
	Elapsed    time.Duration   `json:"elapsed_ns"`
	SLAMet     bool            `json:"sla_met"`
}

// Mode selects the orchestration strategy for a request.
type Mode string

const (
	// ModeRace accepts the first adequate adapter result and cancels the rest.
	ModeRace Mode = "race"

	// ModeCompare waits for every adapter and merges the results into a
	// consensus verdict.
	ModeCompare Mode = "compare"
)

// ValidMode reports whether m is a known orchestration mode.
func ValidMode(m Mode) bool {
	return m == ModeRace || m == ModeCompare
}

// Record is a persisted diagnosis: the outcome of one orchestration call
// together with identity and bookkeeping fields.
type Record struct {
	ID          string            `json:"id"`
	Fingerprint string            `json:"fingerprint"`
	Mode        Mode              `json:"mode"`
	Title       string            `json:"title"`
	Outcome     *Outcome          `json:"outcome,omitempty"`
	Consensus   *ConsensusVerdict `json:"consensus,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
