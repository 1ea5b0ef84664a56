// Package backend holds the normalized wire payload shared by analysis
// backend adapters, and the translation into a diagnosis.AnalysisResult.
package backend

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/verdict/internal/diagnosis"
	"github.com/linnemanlabs/verdict/internal/incident"
)

// Payload is the verdict shape every provider is expected to produce.
type Payload struct {
	Confidence       float64  `json:"confidence"`
	Severity         string   `json:"severity"`
	RootCause        string   `json:"root_cause"`
	BusinessImpact   string   `json:"business_impact,omitempty"`
	Actions          []string `json:"recommended_actions"`
	AutoResolvable   bool     `json:"auto_resolvable"`
	EstimatedMinutes int      `json:"estimated_minutes"`
}

// Parse decodes raw provider output into a validated AnalysisResult.
// Any decoding or range failure means the upstream payload is malformed;
// the caller classifies it as such rather than trusting it partially.
func Parse(provider string, raw []byte, latency time.Duration) (*diagnosis.AnalysisResult, error) {
	var p Payload
	if err := json.Unmarshal(stripFences(raw), &p); err != nil {
		return nil, fmt.Errorf("decode verdict: %w", err)
	}

	res := &diagnosis.AnalysisResult{
		Provider:         provider,
		Success:          true,
		Confidence:       p.Confidence,
		Severity:         incident.Severity(strings.ToLower(p.Severity)),
		RootCause:        p.RootCause,
		BusinessImpact:   p.BusinessImpact,
		Actions:          p.Actions,
		AutoResolvable:   p.AutoResolvable,
		EstimatedMinutes: p.EstimatedMinutes,
		Latency:          latency,
	}
	if err := res.Validate(); err != nil {
		return nil, fmt.Errorf("validate verdict: %w", err)
	}
	return res, nil
}

// stripFences removes a surrounding markdown code fence, which LLM providers
// sometimes wrap JSON in despite instructions.
func stripFences(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return raw
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(strings.TrimSpace(s))
}
