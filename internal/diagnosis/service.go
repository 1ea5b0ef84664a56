package diagnosis

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/verdict/internal/incident"
	"github.com/linnemanlabs/verdict/internal/respcache"
)

// Notifier pushes finished diagnoses to an external channel (e.g. Slack).
type Notifier interface {
	Notify(ctx context.Context, rec *Record) error
}

// Service is the business boundary for diagnosis operations. It owns the
// response cache, the race coordinator, persistence, and notification.
type Service struct {
	coord    *Coordinator
	cache    *respcache.Cache[*Outcome]
	store    Store
	metrics  *Metrics
	notifier Notifier
	logger   log.Logger
}

// NewService creates a new diagnosis service. metrics and notifier may be nil.
func NewService(coord *Coordinator, cache *respcache.Cache[*Outcome], store Store, metrics *Metrics, notifier Notifier, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		coord:    coord,
		cache:    cache,
		store:    store,
		metrics:  metrics,
		notifier: notifier,
		logger:   logger,
	}
}

// Diagnose runs race-mode orchestration for the incident, memoized by
// fingerprint. Repeated submissions of the same normalized incident within
// the cache TTL answer from cache without touching the adapters.
func (s *Service) Diagnose(ctx context.Context, inc *incident.Context) (*Record, error) {
	fp := inc.Fingerprint()

	outcome, hit, err := s.cache.GetOrCompute(ctx, fp, func(ctx context.Context) (*Outcome, error) {
		return s.coord.Run(ctx, inc), nil
	})
	if err != nil {
		// The coordinator never returns an error; this is only reachable
		// through a future compute-path change.
		return nil, fmt.Errorf("orchestrate: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveCacheLookup(hit)
	}
	if hit {
		cp := *outcome
		cp.Provenance = ProvenanceCache
		outcome = &cp
	}

	rec := &Record{
		ID:          ulid.Make().String(),
		Fingerprint: fp,
		Mode:        ModeRace,
		Title:       inc.Title,
		Outcome:     outcome,
		CreatedAt:   time.Now(),
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist diagnosis: %w", err)
	}

	s.logger.Info(ctx, "diagnosis complete",
		"diagnosis_id", rec.ID,
		"fingerprint", fp,
		"provenance", outcome.Provenance,
		"sla_met", outcome.SLAMet,
		"elapsed_ms", outcome.Elapsed.Milliseconds(),
	)

	if !hit {
		s.maybeNotify(ctx, rec)
	}
	return rec, nil
}

// Compare runs every adapter to completion and merges the results into a
// consensus verdict. Comparison mode is never cached: its value is a fresh
// side-by-side view of all providers.
func (s *Service) Compare(ctx context.Context, inc *incident.Context) (*Record, error) {
	results := s.coord.RunAll(ctx, inc)

	verdict, err := Merge(results)
	if err != nil {
		return nil, fmt.Errorf("merge results: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ConsensusTotal.Inc()
	}

	rec := &Record{
		ID:          ulid.Make().String(),
		Fingerprint: inc.Fingerprint(),
		Mode:        ModeCompare,
		Title:       inc.Title,
		Consensus:   verdict,
		CreatedAt:   time.Now(),
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist diagnosis: %w", err)
	}

	s.logger.Info(ctx, "consensus diagnosis complete",
		"diagnosis_id", rec.ID,
		"providers", len(verdict.Providers),
		"confidence", verdict.Confidence,
	)
	return rec, nil
}

// Get retrieves a diagnosis record by ID.
func (s *Service) Get(ctx context.Context, id string) (*Record, bool, error) {
	return s.store.Get(ctx, id)
}

// GetByFingerprint retrieves the most recent diagnosis of a normalized
// incident, letting callers find prior verdicts that have aged out of the
// response cache.
func (s *Service) GetByFingerprint(ctx context.Context, fp string) (*Record, bool, error) {
	return s.store.GetByFingerprint(ctx, fp)
}

// maybeNotify pushes critical verdicts to the notifier without blocking or
// failing the request.
func (s *Service) maybeNotify(ctx context.Context, rec *Record) {
	if s.notifier == nil || rec.Outcome == nil {
		return
	}
	if rec.Outcome.Result.Severity != incident.SeverityCritical {
		return
	}
	go func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.notifier.Notify(nctx, rec); err != nil {
			s.logger.Error(nctx, err, "notify failed", "diagnosis_id", rec.ID)
		}
	}()
}
