// Package fallback implements the deterministic, dependency-free analyzer
// that backs the orchestrator when every analysis backend fails. It
// classifies incidents by keyword and tag matching with no external I/O,
// so it always produces an answer in well under a millisecond.
package fallback

import (
	"strings"
	"time"

	"github.com/linnemanlabs/verdict/internal/diagnosis"
	"github.com/linnemanlabs/verdict/internal/incident"
)

// ProviderName identifies fallback results in provenance and logs.
const ProviderName = "heuristic"

// MaxConfidence caps fallback confidence; a keyword match is never as
// trustworthy as a real analysis backend.
const MaxConfidence = 0.6

const baseConfidence = 0.35

// rule maps a category of incident to a canned verdict. Rules are evaluated
// in order; the rule with the most keyword hits wins and earlier rules win
// ties, so classification is fully deterministic.
type rule struct {
	category         string
	keywords         []string
	rootCause        string
	actions          []string
	severity         incident.Severity
	estimatedMinutes int
	autoResolvable   bool
}

var rules = []rule{
	{
		category:         "infrastructure",
		keywords:         []string{"pod", "kubernetes", "k8s", "node", "container", "crashloopbackoff", "oomkilled", "evicted"},
		rootCause:        "workload scheduling or container runtime failure",
		actions:          []string{"inspect pod events and container logs", "check node resource pressure", "roll back the most recent deployment"},
		severity:         incident.SeverityHigh,
		estimatedMinutes: 30,
	},
	{
		category:         "database",
		keywords:         []string{"database", "postgres", "mysql", "sql", "deadlock", "connection pool", "replication"},
		rootCause:        "database contention or connectivity failure",
		actions:          []string{"check database connection pool saturation", "review slow query log", "verify replica health"},
		severity:         incident.SeverityHigh,
		estimatedMinutes: 45,
	},
	{
		category:         "network",
		keywords:         []string{"dns", "tls", "certificate", "connection refused", "latency", "packet", "proxy", "gateway"},
		rootCause:        "network path or name resolution failure",
		actions:          []string{"verify DNS resolution from affected hosts", "check certificate expiry", "inspect load balancer target health"},
		severity:         incident.SeverityMedium,
		estimatedMinutes: 25,
	},
	{
		category:         "capacity",
		keywords:         []string{"disk", "full", "quota", "memory", "cpu", "throttle", "limit"},
		rootCause:        "resource exhaustion",
		actions:          []string{"free or expand the exhausted resource", "review retention and autoscaling policies"},
		severity:         incident.SeverityMedium,
		estimatedMinutes: 20,
		autoResolvable:   true,
	},
	{
		category:         "application",
		keywords:         []string{"exception", "panic", "nil pointer", "modulenotfounderror", "stack trace", "5xx", "500", "missing dependency"},
		rootCause:        "application defect introduced by a recent change",
		actions:          []string{"diff the failing release against the last known good", "roll back or hotfix the offending change"},
		severity:         incident.SeverityMedium,
		estimatedMinutes: 40,
	},
}

// escalators bump predicted severity to critical when present.
var escalators = []string{"critical", "down", "crash", "outage", "data loss", "unavailable"}

// Analyzer classifies incidents by keyword matching. The zero value is ready
// to use.
type Analyzer struct{}

// New returns a ready Analyzer.
func New() *Analyzer { return &Analyzer{} }

// Analyze always succeeds. Confidence never exceeds MaxConfidence and the
// recommended actions end with generic safe steps.
func (a *Analyzer) Analyze(inc *incident.Context) *diagnosis.AnalysisResult {
	start := time.Now()
	text := haystack(inc)

	best := rules[len(rules)-1] // application is the catch-all on zero hits
	bestHits := 0
	for _, r := range rules {
		hits := 0
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = r, hits
		}
	}

	confidence := baseConfidence + 0.05*float64(bestHits)
	if confidence > MaxConfidence {
		confidence = MaxConfidence
	}
	if bestHits == 0 {
		confidence = baseConfidence - 0.1
	}

	severity := best.severity
	for _, esc := range escalators {
		if strings.Contains(text, esc) {
			severity = incident.SeverityCritical
			break
		}
	}
	if inc.SeverityHint == incident.SeverityCritical {
		severity = incident.SeverityCritical
	}

	actions := append([]string(nil), best.actions...)
	actions = append(actions, "check logs", "escalate to on-call")

	rootCause := best.rootCause
	if bestHits == 0 {
		rootCause = "unclassified incident; insufficient signal for keyword analysis"
	}

	return &diagnosis.AnalysisResult{
		Provider:         ProviderName,
		Success:          true,
		Confidence:       confidence,
		Severity:         severity,
		RootCause:        rootCause,
		BusinessImpact:   "unknown; heuristic classification only",
		Actions:          actions,
		AutoResolvable:   best.autoResolvable && severity != incident.SeverityCritical,
		EstimatedMinutes: best.estimatedMinutes,
		Latency:          time.Since(start),
	}
}

// haystack folds the searchable incident text to lower case once.
func haystack(inc *incident.Context) string {
	var sb strings.Builder
	sb.WriteString(inc.Title)
	sb.WriteByte(' ')
	sb.WriteString(inc.Description)
	for _, t := range inc.Tags {
		sb.WriteByte(' ')
		sb.WriteString(t)
	}
	for _, s := range inc.AffectedSystems {
		sb.WriteByte(' ')
		sb.WriteString(s)
	}
	return strings.ToLower(sb.String())
}
