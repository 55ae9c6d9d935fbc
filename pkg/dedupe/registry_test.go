package dedupe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Fleurdelys0/library-client/pkg/cache"
	"github.com/Fleurdelys0/library-client/pkg/transport"
)

func TestRegistry_ConcurrentCallersShareOneRetrieval(t *testing.T) {
	registry := NewRegistry()
	store := cache.New[[]byte]("test", time.Minute)

	var calls atomic.Int64
	release := make(chan struct{})
	factory := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte(`{"title": "Effective Java"}`), nil
	}

	const n = 10
	results := make([][]byte, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = registry.Fetch(context.Background(), "9780134685991", store, factory)
		}(i)
	}

	// Wait until the single retrieval is registered, then release it.
	for registry.Pending() != 1 {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("factory calls = %d, want exactly 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if string(results[i]) != `{"title": "Effective Java"}` {
			t.Errorf("caller %d got %s", i, results[i])
		}
	}
}

func TestRegistry_FailureSharedByAllWaiters(t *testing.T) {
	registry := NewRegistry()

	boom := errors.New("backend down")
	release := make(chan struct{})
	factory := func(ctx context.Context) ([]byte, error) {
		<-release
		return nil, boom
	}

	const n = 5
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = registry.Fetch(context.Background(), "k", nil, factory)
		}(i)
	}

	for registry.Pending() != 1 {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		if !errors.Is(errs[i], boom) {
			t.Errorf("caller %d error = %v, want the shared failure", i, errs[i])
		}
	}
}

func TestRegistry_CacheHitSkipsFactory(t *testing.T) {
	registry := NewRegistry()
	store := cache.New[[]byte]("test", time.Minute)
	store.Set("k", []byte("cached"))

	factory := func(ctx context.Context) ([]byte, error) {
		t.Error("factory must not run on a cache hit")
		return nil, nil
	}

	got, err := registry.Fetch(context.Background(), "k", store, factory)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(got) != "cached" {
		t.Errorf("Fetch() = %s, want cached", got)
	}
	if registry.Pending() != 0 {
		t.Errorf("Pending() = %d after cache hit, want 0", registry.Pending())
	}
}

func TestRegistry_SettlementPopulatesCache(t *testing.T) {
	registry := NewRegistry()
	store := cache.New[[]byte]("test", time.Minute)

	factory := func(ctx context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	}

	if _, err := registry.Fetch(context.Background(), "k", store, factory); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if v, ok := store.Get("k"); !ok || string(v) != "fresh" {
		t.Errorf("cache after settlement = %s (present=%v), want fresh", v, ok)
	}
	if registry.Pending() != 0 {
		t.Errorf("Pending() = %d after settlement, want 0", registry.Pending())
	}
}

func TestRegistry_FreshOperationAfterSettlement(t *testing.T) {
	registry := NewRegistry()

	var calls atomic.Int64
	factory := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("v"), nil
	}

	// No cache: each sequential call settles and a later one starts fresh.
	registry.Fetch(context.Background(), "k", nil, factory)
	registry.Fetch(context.Background(), "k", nil, factory)

	if got := calls.Load(); got != 2 {
		t.Errorf("factory calls = %d, want 2 (new call after settlement starts fresh)", got)
	}
}

func TestRegistry_FailureNotCached(t *testing.T) {
	registry := NewRegistry()
	store := cache.New[[]byte]("test", time.Minute)

	factory := func(ctx context.Context) ([]byte, error) {
		return nil, errors.New("boom")
	}

	registry.Fetch(context.Background(), "k", store, factory)

	if _, ok := store.Get("k"); ok {
		t.Error("failed retrieval populated the cache")
	}
}

func TestRegistry_CancelledCallerDetaches(t *testing.T) {
	registry := NewRegistry()
	store := cache.New[[]byte]("test", time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	factory := func(ctx context.Context) ([]byte, error) {
		close(started)
		select {
		case <-release:
			return []byte("late"), nil
		case <-ctx.Done():
			return nil, transport.Cancelled("k", ctx.Err())
		}
	}

	ctx1, cancel1 := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := registry.Fetch(ctx1, "k", store, factory)
		errCh <- err
	}()
	<-started

	// Second caller keeps the retrieval alive.
	done2 := make(chan struct{})
	var got2 []byte
	var err2 error
	go func() {
		got2, err2 = registry.Fetch(context.Background(), "k", store, factory)
		close(done2)
	}()

	for registry.Pending() != 1 {
		time.Sleep(time.Millisecond)
	}
	cancel1()

	err1 := <-errCh
	if !transport.IsCancelled(err1) {
		t.Errorf("cancelled caller error = %v, want cancelled kind", err1)
	}

	// The operation survives its first caller and settles for the second.
	close(release)
	<-done2
	if err2 != nil {
		t.Fatalf("surviving caller error = %v", err2)
	}
	if string(got2) != "late" {
		t.Errorf("surviving caller got %s", got2)
	}

	// And the cancelled session still benefits future callers via the cache.
	if v, ok := store.Get("k"); !ok || string(v) != "late" {
		t.Errorf("cache = %s (present=%v), want late", v, ok)
	}
}

func TestRegistry_LastWaiterDetachingAbortsRetrieval(t *testing.T) {
	registry := NewRegistry()

	started := make(chan struct{})
	aborted := make(chan struct{})
	factory := func(ctx context.Context) ([]byte, error) {
		close(started)
		<-ctx.Done()
		close(aborted)
		return nil, transport.Cancelled("k", ctx.Err())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := registry.Fetch(ctx, "k", nil, factory)
		errCh <- err
	}()
	<-started
	cancel()

	if err := <-errCh; !transport.IsCancelled(err) {
		t.Errorf("error = %v, want cancelled", err)
	}

	select {
	case <-aborted:
	case <-time.After(time.Second):
		t.Error("retrieval context not cancelled after last waiter detached")
	}
}
