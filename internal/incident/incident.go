// Package incident defines the normalized incident description that the
// diagnosis engine accepts, along with severity levels and the stable
// fingerprint used as a cache key.
package incident

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Severity is the operational severity of an incident or a predicted verdict.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// ValidSeverity reports whether s is one of the defined severity levels.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Context is an immutable normalized description of an operational incident.
// It is created per request and discarded after orchestration.
type Context struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	SeverityHint    Severity `json:"severity_hint,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	AffectedSystems []string `json:"affected_systems,omitempty"`
}

// Fingerprint returns a stable hash over the normalized title, description,
// and severity hint. Case and whitespace differences do not change the
// fingerprint, so retries and copy-pasted duplicates hit the same cache key.
func (c *Context) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(normalize(c.Title)))
	h.Write([]byte{0})
	h.Write([]byte(normalize(c.Description)))
	h.Write([]byte{0})
	h.Write([]byte(normalize(string(c.SeverityHint))))
	return hex.EncodeToString(h.Sum(nil))
}

// normalize lowercases and folds all runs of whitespace to single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
