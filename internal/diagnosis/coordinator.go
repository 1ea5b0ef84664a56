package diagnosis

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/verdict/internal/incident"
)

const (
	// DefaultAcceptThreshold is the minimum confidence for a result to win
	// the race outright.
	DefaultAcceptThreshold = 0.7

	// DefaultAdapterTimeout bounds each individual adapter call.
	DefaultAdapterTimeout = 3 * time.Second

	// DefaultDeadline bounds the whole orchestration call.
	DefaultDeadline = 5 * time.Second
)

// CoordinatorConfig holds the tunables of the race coordinator.
type CoordinatorConfig struct {
	// AcceptThreshold is the confidence at or above which the first
	// successful result is accepted and the rest are cancelled.
	AcceptThreshold float64

	// AdapterTimeout is the per-call budget. The effective budget of each
	// call is min(AdapterTimeout, remaining time to Deadline).
	AdapterTimeout time.Duration

	// Deadline is the overall budget for one orchestration call.
	Deadline time.Duration

	// Priority breaks ties between equal-confidence, equal-latency results.
	// Earlier names win. Providers not listed rank after all listed ones.
	Priority []string
}

func (c CoordinatorConfig) withDefaults() CoordinatorConfig {
	if c.AcceptThreshold <= 0 {
		c.AcceptThreshold = DefaultAcceptThreshold
	}
	if c.AdapterTimeout <= 0 {
		c.AdapterTimeout = DefaultAdapterTimeout
	}
	if c.Deadline <= 0 {
		c.Deadline = DefaultDeadline
	}
	return c
}

// CoordinatorHooks lets callers observe coordinator activity without coupling
// the coordinator to a metrics backend.
type CoordinatorHooks struct {
	// OnAdapterResult fires for every completed adapter call, winning or not.
	OnAdapterResult func(provider string, success bool, class ErrorClass, latency time.Duration)

	// OnOutcome fires once per orchestration call with the final provenance.
	OnOutcome func(provenance string, slaMet bool, elapsed time.Duration)
}

// Coordinator fans out to all configured adapters concurrently, accepts the
// first adequate result, cancels the rest, and falls back to the
// deterministic analyzer on total failure. It never returns nil and never
// blocks past its deadline plus scheduling overhead.
type Coordinator struct {
	cfg      CoordinatorConfig
	adapters []Adapter
	fallback Fallback
	rank     map[string]int
	logger   log.Logger
	hooks    CoordinatorHooks
}

// NewCoordinator creates a Coordinator. The fallback is required; adapters
// may be empty, in which case every call answers from the fallback.
func NewCoordinator(cfg CoordinatorConfig, adapters []Adapter, fallback Fallback, logger log.Logger, hooks CoordinatorHooks) *Coordinator {
	if logger == nil {
		logger = log.Nop()
	}
	cfg = cfg.withDefaults()
	rank := make(map[string]int, len(cfg.Priority))
	for i, name := range cfg.Priority {
		rank[name] = i
	}
	return &Coordinator{
		cfg:      cfg,
		adapters: adapters,
		fallback: fallback,
		rank:     rank,
		logger:   logger,
		hooks:    hooks,
	}
}

// Run races all adapters and returns the winning outcome. The only paths
// are: first success at or above the accept threshold, best completed
// success once all calls finish or the deadline elapses, or the fallback
// analyzer. Individual adapter failures never propagate.
func (c *Coordinator) Run(ctx context.Context, inc *incident.Context) *Outcome {
	start := time.Now()

	if len(c.adapters) == 0 {
		return c.fallbackOutcome(ctx, inc, start, "no adapters configured")
	}

	cctx, cancel := context.WithTimeout(ctx, c.cfg.Deadline)
	defer cancel()

	// Buffered so a result landing after acceptance never blocks its goroutine.
	results := make(chan *AnalysisResult, len(c.adapters))
	for _, a := range c.adapters {
		go func(a Adapter) {
			results <- c.callAdapter(cctx, a, inc)
		}(a)
	}

	var completed []*AnalysisResult
	pending := len(c.adapters)
	for pending > 0 {
		select {
		case res := <-results:
			pending--
			completed = append(completed, res)
			c.observeAdapter(cctx, res)
			if res.Success && res.Confidence >= c.cfg.AcceptThreshold {
				cancel()
				c.logUnused(cctx, completed, res)
				return c.finish(AdapterProvenance(res.Provider), res, start)
			}
		case <-cctx.Done():
			pending = 0
		}
	}

	if best := c.best(completed); best != nil {
		c.logUnused(ctx, completed, best)
		return c.finish(AdapterProvenance(best.Provider), best, start)
	}
	return c.fallbackOutcome(ctx, inc, start, "no adapter succeeded")
}

// RunAll invokes every adapter to completion (comparison mode) and returns
// all completed results in adapter registration order. Calls that do not
// finish within the deadline are reported as timeouts. If no adapters are
// configured the fallback result is returned alone.
func (c *Coordinator) RunAll(ctx context.Context, inc *incident.Context) []*AnalysisResult {
	if len(c.adapters) == 0 {
		return []*AnalysisResult{c.fallback.Analyze(inc)}
	}

	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, c.cfg.Deadline)
	defer cancel()

	type indexed struct {
		i   int
		res *AnalysisResult
	}

	// Buffered so stragglers finishing after the deadline never block.
	done := make(chan indexed, len(c.adapters))
	for i, a := range c.adapters {
		go func(i int, a Adapter) {
			done <- indexed{i, c.callAdapter(cctx, a, inc)}
		}(i, a)
	}

	results := make([]*AnalysisResult, len(c.adapters))
	pending := len(c.adapters)
	for pending > 0 {
		select {
		case d := <-done:
			pending--
			results[d.i] = d.res
			c.observeAdapter(cctx, d.res)
		case <-cctx.Done():
			pending = 0
		}
	}

	// Slots still empty belong to adapters that slept through cancellation.
	// Report them as timeouts instead of waiting for their return.
	for i, res := range results {
		if res == nil {
			results[i] = Failed(c.adapters[i].Name(), ErrClassTimeout, time.Since(start))
			c.observeAdapter(ctx, results[i])
		}
	}
	return results
}

// callAdapter runs one adapter under its effective budget and normalizes
// every misbehavior (panic, nil result, overrun) into a failed result.
func (c *Coordinator) callAdapter(ctx context.Context, a Adapter, inc *incident.Context) (res *AnalysisResult) {
	actx, acancel := context.WithTimeout(ctx, c.cfg.AdapterTimeout)
	defer acancel()

	t0 := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(ctx, fmt.Errorf("adapter panic: %v", r), "adapter panicked", "provider", a.Name())
			res = Failed(a.Name(), ErrClassTransport, time.Since(t0))
		}
		if res == nil {
			res = Failed(a.Name(), ErrClassMalformed, time.Since(t0))
		}
		if res.Latency == 0 {
			res.Latency = time.Since(t0)
		}
	}()

	return a.Analyze(actx, inc)
}

// best picks the highest-confidence completed success. Ties prefer lower
// latency, then the configured priority order, then completion order.
func (c *Coordinator) best(completed []*AnalysisResult) *AnalysisResult {
	var best *AnalysisResult
	for _, res := range completed {
		if !res.Success {
			continue
		}
		if best == nil || c.better(res, best) {
			best = res
		}
	}
	return best
}

func (c *Coordinator) better(a, b *AnalysisResult) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Latency != b.Latency {
		return a.Latency < b.Latency
	}
	return c.priorityRank(a.Provider) < c.priorityRank(b.Provider)
}

func (c *Coordinator) priorityRank(provider string) int {
	if r, ok := c.rank[provider]; ok {
		return r
	}
	return len(c.rank)
}

func (c *Coordinator) observeAdapter(ctx context.Context, res *AnalysisResult) {
	if c.hooks.OnAdapterResult != nil {
		c.hooks.OnAdapterResult(res.Provider, res.Success, res.ErrClass, res.Latency)
	}
	if !res.Success {
		c.logger.Warn(ctx, "adapter call failed",
			"provider", res.Provider,
			"error_class", res.ErrClass,
			"latency_ms", res.Latency.Milliseconds(),
		)
	}
}

// logUnused records completed-but-unused results so slower high-confidence
// answers remain visible in the logs even though only one is returned.
func (c *Coordinator) logUnused(ctx context.Context, completed []*AnalysisResult, winner *AnalysisResult) {
	for _, res := range completed {
		if res == winner || !res.Success {
			continue
		}
		c.logger.Info(ctx, "discarding unused adapter result",
			"provider", res.Provider,
			"confidence", res.Confidence,
			"latency_ms", res.Latency.Milliseconds(),
			"winner", winner.Provider,
		)
	}
}

func (c *Coordinator) fallbackOutcome(ctx context.Context, inc *incident.Context, start time.Time, reason string) *Outcome {
	res := c.fallback.Analyze(inc)
	if res == nil {
		// Unreachable by construction: the fallback has no external
		// dependency and cannot fail. Logged as a critical defect.
		c.logger.Error(ctx, fmt.Errorf("fallback analyzer returned nil"), "fallback failure", "reason", reason)
		res = &AnalysisResult{
			Provider:  "fallback",
			Success:   true,
			Severity:  incident.SeverityMedium,
			RootCause: "diagnosis unavailable",
			Actions:   []string{"check logs", "escalate to on-call"},
		}
	}
	c.logger.Info(ctx, "answering from fallback analyzer", "reason", reason)
	return c.finish(ProvenanceFallback, res, start)
}

func (c *Coordinator) finish(provenance string, res *AnalysisResult, start time.Time) *Outcome {
	elapsed := time.Since(start)
	out := &Outcome{
		Result:     res,
		Provenance: provenance,
		Elapsed:    elapsed,
		SLAMet:     elapsed <= c.cfg.Deadline,
	}
	if c.hooks.OnOutcome != nil {
		c.hooks.OnOutcome(provenance, out.SLAMet, elapsed)
	}
	return out
}

// Deadline exposes the configured overall budget (used by the benchmark
// harness to derive its default latency target).
func (c *Coordinator) Deadline() time.Duration {
	return c.cfg.Deadline
}
