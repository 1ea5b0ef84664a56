package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/linnemanlabs/verdict/internal/diagnosis"
)

func TestStore_PutAndGet(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	r := &diagnosis.Record{ID: "d-1", Fingerprint: "fp-1", Mode: diagnosis.ModeRace}
	if err := s.Put(ctx, r); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, "d-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected record to be found")
	}
	if got.ID != "d-1" {
		t.Errorf("ID = %q, want %q", got.ID, "d-1")
	}
	if got.Fingerprint != "fp-1" {
		t.Errorf("Fingerprint = %q, want %q", got.Fingerprint, "fp-1")
	}
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	s := New()
	_, ok, err := s.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing ID")
	}
}

func TestStore_GetByFingerprint(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	r := &diagnosis.Record{ID: "d-2", Fingerprint: "fp-abc", Mode: diagnosis.ModeRace}
	if err := s.Put(ctx, r); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.GetByFingerprint(ctx, "fp-abc")
	if err != nil {
		t.Fatalf("GetByFingerprint: %v", err)
	}
	if !ok {
		t.Fatal("expected record to be found by fingerprint")
	}
	if got.ID != "d-2" {
		t.Errorf("ID = %q, want %q", got.ID, "d-2")
	}
}

func TestStore_GetByFingerprintReturnsLatest(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.Put(ctx, &diagnosis.Record{ID: "d-old", Fingerprint: "fp-3", Mode: diagnosis.ModeRace})
	_ = s.Put(ctx, &diagnosis.Record{ID: "d-new", Fingerprint: "fp-3", Mode: diagnosis.ModeCompare})

	got, ok, err := s.GetByFingerprint(ctx, "fp-3")
	if err != nil {
		t.Fatalf("GetByFingerprint: %v", err)
	}
	if !ok {
		t.Fatal("expected record to be found")
	}
	if got.ID != "d-new" {
		t.Errorf("ID = %q, want the latest diagnosis for the fingerprint", got.ID)
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.Put(ctx, &diagnosis.Record{ID: "d-4", Fingerprint: "fp-4", Title: "original"})

	got, _, _ := s.Get(ctx, "d-4")
	got.Title = "mutated"

	again, _, _ := s.Get(ctx, "d-4")
	if again.Title != "original" {
		t.Error("mutating a returned record leaked into the store")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n * 2)

	for i := range n {
		id := fmt.Sprintf("id-%d", i)
		fp := fmt.Sprintf("fp-%d", i)

		go func() {
			defer wg.Done()
			_ = s.Put(ctx, &diagnosis.Record{ID: id, Fingerprint: fp})
		}()

		go func() {
			defer wg.Done()
			_, _, _ = s.Get(ctx, id)
			_, _, _ = s.GetByFingerprint(ctx, fp)
		}()
	}

	wg.Wait()
}
