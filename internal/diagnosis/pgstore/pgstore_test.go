package pgstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/verdict/internal/diagnosis"
	"github.com/linnemanlabs/verdict/internal/diagnosis/pgstore"
	"github.com/linnemanlabs/verdict/internal/incident"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("VERDICT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("VERDICT_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)
	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	return s
}

func testRecord() *diagnosis.Record {
	return &diagnosis.Record{
		ID:          ulid.Make().String(),
		Fingerprint: "fp-" + ulid.Make().String(),
		Mode:        diagnosis.ModeRace,
		Title:       "Pod CrashLoopBackOff",
		Outcome: &diagnosis.Outcome{
			Result: &diagnosis.AnalysisResult{
				Provider:         "A",
				Success:          true,
				Confidence:       0.92,
				Severity:         incident.SeverityHigh,
				RootCause:        "missing dependency",
				Actions:          []string{"rebuild image"},
				EstimatedMinutes: 15,
				Latency:          300 * time.Millisecond,
			},
			Provenance: "adapter:A",
			Elapsed:    310 * time.Millisecond,
			SLAMet:     true,
		},
		CreatedAt: time.Now().Truncate(time.Microsecond).UTC(),
	}
}

func TestPutAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	r := testRecord()
	if err := s.Put(ctx, r); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get returned ok=false, want true")
	}
	if got.Fingerprint != r.Fingerprint {
		t.Errorf("Fingerprint = %q, want %q", got.Fingerprint, r.Fingerprint)
	}
	if got.Outcome == nil || got.Outcome.Provenance != "adapter:A" {
		t.Errorf("Outcome = %+v, want provenance adapter:A", got.Outcome)
	}
	if got.Outcome.Result.Confidence != 0.92 {
		t.Errorf("Confidence = %v, want 0.92", got.Outcome.Result.Confidence)
	}
}

func TestGetByFingerprintReturnsLatest(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	old := testRecord()
	old.CreatedAt = old.CreatedAt.Add(-time.Hour)
	latest := testRecord()
	latest.Fingerprint = old.Fingerprint

	if err := s.Put(ctx, old); err != nil {
		t.Fatalf("Put old: %v", err)
	}
	if err := s.Put(ctx, latest); err != nil {
		t.Fatalf("Put latest: %v", err)
	}

	got, ok, err := s.GetByFingerprint(ctx, old.Fingerprint)
	if err != nil {
		t.Fatalf("GetByFingerprint: %v", err)
	}
	if !ok {
		t.Fatal("expected a record for the fingerprint")
	}
	if got.ID != latest.ID {
		t.Errorf("ID = %q, want latest %q", got.ID, latest.ID)
	}
}

func TestGetMissing(t *testing.T) {
	s := openStore(t)

	_, ok, err := s.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing ID")
	}
}

func TestPutConsensusRecord(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	r := testRecord()
	r.Mode = diagnosis.ModeCompare
	r.Outcome = nil
	r.Consensus = &diagnosis.ConsensusVerdict{
		RootCause:  "missing dependency",
		Severity:   incident.SeverityHigh,
		Confidence: 0.92,
		Providers: []diagnosis.ProviderStatus{
			{Provider: "A", Success: true, Confidence: 0.92},
			{Provider: "B", Success: false, ErrClass: diagnosis.ErrClassTimeout},
		},
	}

	if err := s.Put(ctx, r); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, r.ID)
	if err != nil || !ok {
		t.Fatalf("Get = (%v, %v)", ok, err)
	}
	if got.Outcome != nil {
		t.Error("expected nil outcome on a consensus record")
	}
	if got.Consensus == nil || len(got.Consensus.Providers) != 2 {
		t.Errorf("Consensus = %+v, want 2 provider statuses", got.Consensus)
	}
}
