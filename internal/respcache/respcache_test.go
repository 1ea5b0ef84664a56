package respcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock is an adjustable clock for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestGetOrCompute_CachesWithinTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New[int](5*time.Minute, 10, WithClock[int](clock.Now))

	var calls atomic.Int32
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		return 42, nil
	}

	v, hit, err := c.GetOrCompute(context.Background(), "k", compute)
	if err != nil || v != 42 || hit {
		t.Fatalf("first call = (%d, %v, %v), want (42, false, nil)", v, hit, err)
	}

	clock.Advance(4 * time.Minute)
	v, hit, err = c.GetOrCompute(context.Background(), "k", compute)
	if err != nil || v != 42 || !hit {
		t.Fatalf("second call = (%d, %v, %v), want (42, true, nil)", v, hit, err)
	}
	if calls.Load() != 1 {
		t.Errorf("compute ran %d times, want 1", calls.Load())
	}
}

func TestGetOrCompute_ExpiredEntryRecomputes(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New[int](5*time.Minute, 10, WithClock[int](clock.Now))

	var calls atomic.Int32
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		return int(calls.Load()), nil
	}

	if _, _, err := c.GetOrCompute(context.Background(), "k", compute); err != nil {
		t.Fatal(err)
	}

	clock.Advance(5 * time.Minute)
	v, hit, err := c.GetOrCompute(context.Background(), "k", compute)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("expired entry reported as hit")
	}
	if v != 2 || calls.Load() != 2 {
		t.Errorf("after expiry: v = %d, calls = %d, want 2, 2", v, calls.Load())
	}
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	t.Parallel()

	c := New[int](time.Minute, 10)
	boom := errors.New("boom")

	var calls atomic.Int32
	failing := func(context.Context) (int, error) {
		calls.Add(1)
		return 0, boom
	}

	if _, _, err := c.GetOrCompute(context.Background(), "k", failing); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if _, _, err := c.GetOrCompute(context.Background(), "k", failing); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if calls.Load() != 2 {
		t.Errorf("compute ran %d times, want 2 (errors must not be cached)", calls.Load())
	}
}

func TestGetOrCompute_SingleFlight(t *testing.T) {
	t.Parallel()

	c := New[int](time.Minute, 10)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.GetOrCompute(context.Background(), "k", compute)
			if err != nil {
				t.Error(err)
			}
			results[i] = v
		}()
	}

	// Let the goroutines pile onto the flight, then release it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("compute ran %d times for %d concurrent callers, want 1", calls.Load(), n)
	}
	for i, v := range results {
		if v != 7 {
			t.Errorf("caller %d got %d, want 7", i, v)
		}
	}
}

func TestInsert_EvictsLeastRecentlyInserted(t *testing.T) {
	t.Parallel()

	c := New[string](time.Minute, 2)
	ctx := context.Background()

	mk := func(s string) func(context.Context) (string, error) {
		return func(context.Context) (string, error) { return s, nil }
	}

	for i, key := range []string{"a", "b"} {
		if _, _, err := c.GetOrCompute(ctx, key, mk(fmt.Sprintf("v%d", i))); err != nil {
			t.Fatal(err)
		}
	}

	// Read "a" so access order differs from insertion order, then insert "c".
	if _, hit, _ := c.GetOrCompute(ctx, "a", mk("never")); !hit {
		t.Fatal("expected hit on a")
	}
	if _, _, err := c.GetOrCompute(ctx, "c", mk("v2")); err != nil {
		t.Fatal(err)
	}

	// "a" was inserted first, so it goes despite the recent read.
	if _, hit, _ := c.GetOrCompute(ctx, "b", mk("never")); !hit {
		t.Error("entry b was evicted, want a")
	}
	if _, hit, _ := c.GetOrCompute(ctx, "a", mk("recomputed")); hit {
		t.Error("oldest-inserted entry survived eviction")
	}
	if c.Len() > 2 {
		t.Errorf("len = %d, want <= 2", c.Len())
	}
}

func TestDisabledCacheComputesEveryCall(t *testing.T) {
	t.Parallel()

	c := New[int](0, 0)

	var calls atomic.Int32
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		return 1, nil
	}
	for range 3 {
		if _, hit, err := c.GetOrCompute(context.Background(), "k", compute); err != nil || hit {
			t.Fatalf("disabled cache returned hit=%v err=%v", hit, err)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("compute ran %d times, want 3", calls.Load())
	}
}
