package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Fleurdelys0/library-client/pkg/transport"
)

// stubFetcher scripts each strategy and records the order of calls.
type stubFetcher struct {
	enriched  []outcome
	create    error
	enhanced  outcome
	basic     outcome
	callOrder []string
}

type outcome struct {
	payload []byte
	err     error
}

func notFound() *transport.Error {
	return &transport.Error{StatusCode: 404, Kind: transport.KindNotFound, Message: "Book not found."}
}

func serverError() *transport.Error {
	return &transport.Error{StatusCode: 503, Kind: transport.KindTransport, Message: "upstream degraded"}
}

func (f *stubFetcher) FetchEnriched(ctx context.Context, isbn string) ([]byte, error) {
	f.callOrder = append(f.callOrder, "enriched")
	if len(f.enriched) == 0 {
		return nil, notFound()
	}
	out := f.enriched[0]
	f.enriched = f.enriched[1:]
	return out.payload, out.err
}

func (f *stubFetcher) CreateFromISBN(ctx context.Context, isbn string) error {
	f.callOrder = append(f.callOrder, "create")
	return f.create
}

func (f *stubFetcher) FetchEnhanced(ctx context.Context, isbn string) ([]byte, error) {
	f.callOrder = append(f.callOrder, "enhanced")
	return f.enhanced.payload, f.enhanced.err
}

func (f *stubFetcher) FetchBasic(ctx context.Context, isbn string) ([]byte, error) {
	f.callOrder = append(f.callOrder, "basic")
	return f.basic.payload, f.basic.err
}

func TestResolve_EnrichedSucceedsImmediately(t *testing.T) {
	fetcher := &stubFetcher{
		enriched: []outcome{{payload: []byte("enriched")}},
	}
	r := New(fetcher)

	got, err := r.Resolve(context.Background(), "123")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if string(got) != "enriched" {
		t.Errorf("Resolve() = %s", got)
	}
	if len(fetcher.callOrder) != 1 {
		t.Errorf("callOrder = %v, want only the enriched step", fetcher.callOrder)
	}
}

func TestResolve_CreateThenRetryBeforeSecondary(t *testing.T) {
	fetcher := &stubFetcher{
		enriched: []outcome{
			{err: notFound()},
			{payload: []byte("enriched-after-create")},
		},
	}
	r := New(fetcher)

	got, err := r.Resolve(context.Background(), "123")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if string(got) != "enriched-after-create" {
		t.Errorf("Resolve() = %s", got)
	}

	want := []string{"enriched", "create", "enriched"}
	if len(fetcher.callOrder) != len(want) {
		t.Fatalf("callOrder = %v, want %v", fetcher.callOrder, want)
	}
	for i := range want {
		if fetcher.callOrder[i] != want[i] {
			t.Fatalf("callOrder = %v, want %v (create-then-retry precedes any secondary endpoint)", fetcher.callOrder, want)
		}
	}
}

func TestResolve_FallsBackToEnhancedThenBasic(t *testing.T) {
	fetcher := &stubFetcher{
		enriched: []outcome{{err: notFound()}, {err: notFound()}},
		enhanced: outcome{err: notFound()},
		basic:    outcome{payload: []byte("basic")},
	}
	r := New(fetcher)

	got, err := r.Resolve(context.Background(), "123")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if string(got) != "basic" {
		t.Errorf("Resolve() = %s", got)
	}

	want := []string{"enriched", "create", "enriched", "enhanced", "basic"}
	for i, step := range want {
		if i >= len(fetcher.callOrder) || fetcher.callOrder[i] != step {
			t.Fatalf("callOrder = %v, want %v", fetcher.callOrder, want)
		}
	}
}

func TestResolve_TransportErrorAbortsImmediately(t *testing.T) {
	fetcher := &stubFetcher{
		enriched: []outcome{{err: serverError()}},
	}
	r := New(fetcher)

	_, err := r.Resolve(context.Background(), "123")
	if !transport.IsTransport(err) {
		t.Fatalf("Resolve() error = %v, want the transport error verbatim", err)
	}
	if len(fetcher.callOrder) != 1 {
		t.Errorf("callOrder = %v, want no fallback after a transport error", fetcher.callOrder)
	}
}

func TestResolve_TransportErrorMidChainAborts(t *testing.T) {
	fetcher := &stubFetcher{
		enriched: []outcome{{err: notFound()}, {err: notFound()}},
		enhanced: outcome{err: serverError()},
	}
	r := New(fetcher)

	_, err := r.Resolve(context.Background(), "123")
	if !transport.IsTransport(err) {
		t.Fatalf("Resolve() error = %v, want transport", err)
	}
	for _, step := range fetcher.callOrder {
		if step == "basic" {
			t.Error("basic step attempted after a transport error")
		}
	}
}

func TestResolve_AllStepsFailTerminal(t *testing.T) {
	fetcher := &stubFetcher{
		enriched: []outcome{{err: notFound()}, {err: notFound()}},
		enhanced: outcome{err: notFound()},
		basic:    outcome{err: notFound()},
	}
	r := New(fetcher)

	_, err := r.Resolve(context.Background(), "9780134685991")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Resolve() error = %v, want ErrUnavailable", err)
	}
	if want := "isbn 9780134685991"; err != nil && !strings.Contains(err.Error(), want) {
		t.Errorf("terminal error %q does not name the isbn", err.Error())
	}
}

func TestResolve_CreateFailureOtherThanNotFoundAborts(t *testing.T) {
	fetcher := &stubFetcher{
		enriched: []outcome{{err: notFound()}},
		create:   serverError(),
	}
	r := New(fetcher)

	_, err := r.Resolve(context.Background(), "123")
	if !transport.IsTransport(err) {
		t.Fatalf("Resolve() error = %v, want transport", err)
	}
}

func TestResolve_CreateNotFoundSkipsRetry(t *testing.T) {
	fetcher := &stubFetcher{
		enriched: []outcome{{err: notFound()}},
		create:   notFound(),
		enhanced: outcome{payload: []byte("enhanced")},
	}
	r := New(fetcher)

	got, err := r.Resolve(context.Background(), "123")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if string(got) != "enhanced" {
		t.Errorf("Resolve() = %s", got)
	}

	// The upstream provider has never heard of the ISBN; retrying the
	// enriched endpoint would just 404 again.
	want := []string{"enriched", "create", "enhanced"}
	for i, step := range want {
		if i >= len(fetcher.callOrder) || fetcher.callOrder[i] != step {
			t.Fatalf("callOrder = %v, want %v", fetcher.callOrder, want)
		}
	}
}

func TestResolve_CancellationPropagatesNotAsNotFound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &stubFetcher{}
	r := New(fetcher)

	_, err := r.Resolve(ctx, "123")
	if !transport.IsCancelled(err) {
		t.Fatalf("Resolve() error = %v, want cancelled", err)
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("cancellation surfaced as resource-unavailable")
	}
	if len(fetcher.callOrder) != 0 {
		t.Errorf("callOrder = %v, want none after pre-cancelled context", fetcher.callOrder)
	}
}

func TestResolve_CancellationMidChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fetcher := &stubFetcher{
		enriched: []outcome{{err: notFound()}},
	}
	// Cancel as soon as the first step has failed.
	wrapped := &cancellingFetcher{inner: fetcher, cancel: cancel}
	r := New(wrapped)

	_, err := r.Resolve(ctx, "123")
	if !transport.IsCancelled(err) {
		t.Fatalf("Resolve() error = %v, want cancelled", err)
	}
	for _, step := range fetcher.callOrder {
		if step == "create" || step == "enhanced" || step == "basic" {
			t.Errorf("step %q ran after cancellation", step)
		}
	}
}

// cancellingFetcher cancels the context after the first enriched attempt.
type cancellingFetcher struct {
	inner  *stubFetcher
	cancel context.CancelFunc
}

func (f *cancellingFetcher) FetchEnriched(ctx context.Context, isbn string) ([]byte, error) {
	payload, err := f.inner.FetchEnriched(ctx, isbn)
	f.cancel()
	return payload, err
}

func (f *cancellingFetcher) CreateFromISBN(ctx context.Context, isbn string) error {
	return f.inner.CreateFromISBN(ctx, isbn)
}

func (f *cancellingFetcher) FetchEnhanced(ctx context.Context, isbn string) ([]byte, error) {
	return f.inner.FetchEnhanced(ctx, isbn)
}

func (f *cancellingFetcher) FetchBasic(ctx context.Context, isbn string) ([]byte, error) {
	return f.inner.FetchBasic(ctx, isbn)
}

