package bench

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/verdict/internal/diagnosis"
	"github.com/linnemanlabs/verdict/internal/incident"
)

// stubRunner returns canned outcomes in sequence, cycling when exhausted.
type stubRunner struct {
	outcomes []*diagnosis.Outcome
	calls    int
}

func (s *stubRunner) Run(_ context.Context, _ *incident.Context) *diagnosis.Outcome {
	out := s.outcomes[s.calls%len(s.outcomes)]
	s.calls++
	return out
}

func adapterOutcome(latency time.Duration) *diagnosis.Outcome {
	return &diagnosis.Outcome{
		Result: &diagnosis.AnalysisResult{
			Provider:   "claude",
			Success:    true,
			Confidence: 0.9,
			Severity:   incident.SeverityHigh,
			RootCause:  "bad deploy",
			Latency:    latency,
		},
		Provenance: diagnosis.AdapterProvenance("claude"),
		Elapsed:    latency,
		SLAMet:     true,
	}
}

func fallbackOutcome(latency time.Duration) *diagnosis.Outcome {
	return &diagnosis.Outcome{
		Result: &diagnosis.AnalysisResult{
			Provider:   "heuristic",
			Success:    true,
			Confidence: 0.5,
			Severity:   incident.SeverityMedium,
			RootCause:  "unclassified",
			Latency:    latency,
		},
		Provenance: diagnosis.ProvenanceFallback,
		Elapsed:    latency,
		SLAMet:     true,
	}
}

func TestRun_AggregatesReport(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{outcomes: []*diagnosis.Outcome{
		adapterOutcome(200 * time.Millisecond),
		adapterOutcome(1500 * time.Millisecond),
		fallbackOutcome(3 * time.Second),
		adapterOutcome(400 * time.Millisecond),
	}}
	h := New(runner, nil)

	report, err := h.Run(context.Background(), 4, 2*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Scenarios) != 4 {
		t.Fatalf("scenarios = %d, want 4", len(report.Scenarios))
	}
	if runner.calls != 4 {
		t.Errorf("runner calls = %d, want 4", runner.calls)
	}
	if report.SuccessRate != 75 {
		t.Errorf("success rate = %v, want 75 (fallback run counts as failure)", report.SuccessRate)
	}
	if report.TargetMetPct != 75 {
		t.Errorf("target met = %v, want 75", report.TargetMetPct)
	}
	wantAvg := (200*time.Millisecond + 1500*time.Millisecond + 3*time.Second + 400*time.Millisecond) / 4
	if report.AvgLatency != wantAvg {
		t.Errorf("avg latency = %v, want %v", report.AvgLatency, wantAvg)
	}
}

func TestRun_Buckets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		latency time.Duration
		target  time.Duration
		want    string
	}{
		{"sub-second is excellent", 300 * time.Millisecond, 5 * time.Second, BucketExcellent},
		{"within target is good", 1500 * time.Millisecond, 2 * time.Second, BucketGood},
		{"exactly target is good", 2 * time.Second, 2 * time.Second, BucketGood},
		{"over target needs improvement", 2500 * time.Millisecond, 2 * time.Second, BucketNeedsImprovement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := bucket(tt.latency, tt.target); got != tt.want {
				t.Errorf("bucket(%v, %v) = %q, want %q", tt.latency, tt.target, got, tt.want)
			}
		})
	}
}

func TestRun_TargetMetMonotonicWithTarget(t *testing.T) {
	t.Parallel()

	outcomes := []*diagnosis.Outcome{
		adapterOutcome(100 * time.Millisecond),
		adapterOutcome(800 * time.Millisecond),
		adapterOutcome(1900 * time.Millisecond),
		adapterOutcome(4 * time.Second),
	}

	var prev float64 = -1
	for _, target := range []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		5 * time.Second,
	} {
		h := New(&stubRunner{outcomes: outcomes}, nil)
		report, err := h.Run(context.Background(), len(outcomes), target)
		if err != nil {
			t.Fatalf("Run(target=%v): %v", target, err)
		}
		if report.TargetMetPct < prev {
			t.Errorf("target %v: met %.0f%% < previous %.0f%%, want monotonic", target, report.TargetMetPct, prev)
		}
		prev = report.TargetMetPct
	}
}

func TestRun_Recommendations(t *testing.T) {
	t.Parallel()

	t.Run("healthy run has none", func(t *testing.T) {
		t.Parallel()
		h := New(&stubRunner{outcomes: []*diagnosis.Outcome{adapterOutcome(100 * time.Millisecond)}}, nil)
		report, err := h.Run(context.Background(), 10, 2*time.Second)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(report.Recommendations) != 0 {
			t.Errorf("recommendations = %v, want none", report.Recommendations)
		}
	})

	t.Run("fallback-heavy run suggests more backends", func(t *testing.T) {
		t.Parallel()
		h := New(&stubRunner{outcomes: []*diagnosis.Outcome{
			adapterOutcome(100 * time.Millisecond),
			fallbackOutcome(100 * time.Millisecond),
		}}, nil)
		report, err := h.Run(context.Background(), 10, 2*time.Second)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if !containsSubstring(report.Recommendations, "redundant analysis backends") {
			t.Errorf("recommendations = %v, want redundant-backends advice", report.Recommendations)
		}
	})

	t.Run("slow run suggests raising timeouts and caching", func(t *testing.T) {
		t.Parallel()
		h := New(&stubRunner{outcomes: []*diagnosis.Outcome{adapterOutcome(3 * time.Second)}}, nil)
		report, err := h.Run(context.Background(), 5, 2*time.Second)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if !containsSubstring(report.Recommendations, "raise adapter timeouts") {
			t.Errorf("recommendations = %v, want timeout advice", report.Recommendations)
		}
		if !containsSubstring(report.Recommendations, "response cache") {
			t.Errorf("recommendations = %v, want cache advice", report.Recommendations)
		}
	})
}

func TestRun_RejectsBadArguments(t *testing.T) {
	t.Parallel()

	h := New(&stubRunner{outcomes: []*diagnosis.Outcome{adapterOutcome(time.Millisecond)}}, nil)

	if _, err := h.Run(context.Background(), 0, time.Second); err == nil {
		t.Error("expected error for zero scenarios")
	}
	if _, err := h.Run(context.Background(), 5, 0); err == nil {
		t.Error("expected error for zero target")
	}
}

func TestRun_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := New(&stubRunner{outcomes: []*diagnosis.Outcome{adapterOutcome(time.Millisecond)}}, nil)
	if _, err := h.Run(ctx, 5, time.Second); err == nil {
		t.Error("expected error when context already cancelled")
	}
}

func TestScenarioIncident_DeterministicAndCycling(t *testing.T) {
	t.Parallel()

	a := scenarioIncident(3)
	b := scenarioIncident(3)
	if a.Title != b.Title || a.Description != b.Description {
		t.Error("same index must produce identical scenarios")
	}

	wrapped := scenarioIncident(len(archetypes))
	first := scenarioIncident(0)
	if wrapped.Description != first.Description {
		t.Error("catalog should cycle after exhaustion")
	}
	if wrapped.Title == first.Title {
		t.Error("cycled scenario should still carry a distinct index in its title")
	}
}

func containsSubstring(recs []string, sub string) bool {
	for _, r := range recs {
		if strings.Contains(r, sub) {
			return true
		}
	}
	return false
}
