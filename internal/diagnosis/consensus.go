package diagnosis

import (
	"errors"
	"time"

	"github.com/linnemanlabs/verdict/internal/incident"
)

// ErrNoResults is returned by Merge when called with no inputs.
var ErrNoResults = errors.New("consensus: no results to merge")

// ProviderStatus records how one input fared, for provider-health
// transparency in comparison mode.
type ProviderStatus struct {
	Provider   string        `json:"provider"`
	Success    bool          `json:"success"`
	ErrClass   ErrorClass    `json:"error_class,omitempty"`
	Confidence float64       `json:"confidence"`
	Latency    time.Duration `json:"latency_ns"`
}

// ConsensusVerdict is the weighted merge of multiple completed results.
type ConsensusVerdict struct {
	RootCause        string            `json:"root_cause"`
	Severity         incident.Severity `json:"severity"`
	Confidence       float64           `json:"confidence"`
	Actions          []string          `json:"recommended_actions,omitempty"`
	EstimatedMinutes int               `json:"estimated_minutes,omitempty"`
	Providers        []ProviderStatus  `json:"providers"`
}

// Merge builds a consensus verdict from a non-empty ordered result list.
// The primary is the max-confidence successful result (first wins on ties,
// so identical ordered input always yields identical output). Root cause,
// severity, and actions come from the primary; confidence is the maximum;
// the resolution estimate is the optimistic minimum over successful inputs,
// since independent analyses agreeing should not be penalized by the
// slowest estimate. When no input succeeded, the verdict degrades to the
// first input's shape with zero confidence.
func Merge(results []*AnalysisResult) (*ConsensusVerdict, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	var primary *AnalysisResult
	minEstimate := 0
	for _, r := range results {
		if !r.Success {
			continue
		}
		if primary == nil || r.Confidence > primary.Confidence {
			primary = r
		}
		if r.EstimatedMinutes > 0 && (minEstimate == 0 || r.EstimatedMinutes < minEstimate) {
			minEstimate = r.EstimatedMinutes
		}
	}

	v := &ConsensusVerdict{
		Providers: make([]ProviderStatus, 0, len(results)),
	}
	for _, r := range results {
		v.Providers = append(v.Providers, ProviderStatus{
			Provider:   r.Provider,
			Success:    r.Success,
			ErrClass:   r.ErrClass,
			Confidence: r.Confidence,
			Latency:    r.Latency,
		})
	}

	if primary == nil {
		v.RootCause = "no analysis backend produced a verdict"
		v.Severity = results[0].Severity
		if v.Severity == "" {
			v.Severity = incident.SeverityMedium
		}
		return v, nil
	}

	v.RootCause = primary.RootCause
	v.Severity = primary.Severity
	v.Confidence = primary.Confidence
	v.Actions = append([]string(nil), primary.Actions...)
	v.EstimatedMinutes = minEstimate
	return v, nil
}
