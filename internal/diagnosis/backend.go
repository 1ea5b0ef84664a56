package diagnosis

import (
	"context"

	"github.com/linnemanlabs/verdict/internal/incident"
)

// Adapter is the contract every analysis backend implements. Analyze must
// honor ctx cancellation promptly, never exceed the ctx deadline, and never
// return nil or panic: all upstream faults come back as a failed
// AnalysisResult with a classified error. Adapters are mutually unaware of
// one another.
type Adapter interface {
	Name() string
	Analyze(ctx context.Context, inc *incident.Context) *AnalysisResult
}

// Fallback is the terminal guarantee of the orchestrator: a deterministic,
// dependency-free analyzer that always succeeds without external I/O.
type Fallback interface {
	Analyze(inc *incident.Context) *AnalysisResult
}
