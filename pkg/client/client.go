// Package client is the public surface of the catalog data-access
// orchestrator. It guarantees at-most-one in-flight request per resource,
// serves fresh-enough data from short-lived caches, revalidates against
// the versioned backend, falls back across degraded endpoints, and
// cancels superseded detail-view work. UI code must reach the catalog
// only through this package so those guarantees are never bypassed.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/Fleurdelys0/library-client/pkg/cache"
	"github.com/Fleurdelys0/library-client/pkg/dedupe"
	"github.com/Fleurdelys0/library-client/pkg/ratelimit"
	"github.com/Fleurdelys0/library-client/pkg/resolver"
	"github.com/Fleurdelys0/library-client/pkg/session"
	"github.com/Fleurdelys0/library-client/pkg/transport"
	"github.com/Fleurdelys0/library-client/pkg/validator"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the orchestrator configuration.
type Config struct {
	// BaseURL of the catalog backend
	BaseURL string

	// APIKey for mutating endpoints
	APIKey string

	// UserAgent header
	UserAgent string

	// Redis enables shared validator records and quota state across
	// instances. Nil keeps everything in-process.
	Redis *redis.Client

	// Cache TTLs per resource class. Details change rarely relative to
	// their fetch cost; summaries and lists churn faster.
	DetailTTL  time.Duration
	SummaryTTL time.Duration
	ListTTL    time.Duration

	// Timeout per HTTP request
	Timeout time.Duration

	// Retry policy for idempotent reads
	MaxRetries     int
	InitialBackoff time.Duration

	// Progress receives global in-flight transitions (optional)
	Progress transport.Progress
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		UserAgent:      "library-client/0.1.0",
		DetailTTL:      5 * time.Minute,
		SummaryTTL:     2 * time.Minute,
		ListTTL:        1 * time.Minute,
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
	}
}

// Client is the catalog data-access orchestrator.
type Client struct {
	transport  *transport.Adapter
	resolver   *resolver.Resolver
	registry   *dedupe.Registry
	validators validator.Store
	sessions   *session.Controller

	details   *cache.Store[[]byte]
	summaries *cache.Store[[]byte]
	lists     *cache.Store[[]byte]

	config Config
	logger zerolog.Logger
}

// New creates a catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.DetailTTL <= 0 {
		cfg.DetailTTL = 5 * time.Minute
	}
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = 2 * time.Minute
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = 1 * time.Minute
	}

	logger := log.With().Str("component", "catalog-client").Logger()

	var validators validator.Store
	if cfg.Redis != nil {
		validators = validator.NewRedisStore(cfg.Redis)
	} else {
		validators = validator.NewMemoryStore()
	}

	adapter, err := transport.New(transport.Config{
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		UserAgent:      cfg.UserAgent,
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}, validators)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}
	adapter.SetLimiter(ratelimit.NewTracker(cfg.Redis, logger))
	if cfg.Progress != nil {
		adapter.SetProgress(cfg.Progress)
	}

	c := &Client{
		transport:  adapter,
		registry:   dedupe.NewRegistry(),
		validators: validators,
		sessions:   session.NewController(),
		details:    cache.New[[]byte]("details", cfg.DetailTTL),
		summaries:  cache.New[[]byte]("summaries", cfg.SummaryTTL),
		lists:      cache.New[[]byte]("lists", cfg.ListTTL),
		config:     cfg,
		logger:     logger,
	}
	c.resolver = resolver.New(&strategies{transport: adapter})

	return c, nil
}

// Transport returns the underlying adapter (for testing).
func (c *Client) Transport() *transport.Adapter {
	return c.transport
}

// OpenSession opens a cancellation session for a logical UI surface,
// superseding the surface's previous session.
func (c *Client) OpenSession(surface string) *session.Session {
	return c.sessions.Open(surface)
}

// strategies implements resolver.CatalogFetcher over the adapter.
type strategies struct {
	transport *transport.Adapter
}

func (s *strategies) FetchEnriched(ctx context.Context, isbn string) ([]byte, error) {
	return s.transport.Get(ctx, "/books/"+url.PathEscape(isbn)+"/enriched", true)
}

func (s *strategies) CreateFromISBN(ctx context.Context, isbn string) error {
	_, err := s.transport.Post(ctx, "/books", map[string]string{"isbn": isbn})
	return err
}

func (s *strategies) FetchEnhanced(ctx context.Context, isbn string) ([]byte, error) {
	return s.transport.Get(ctx, "/books/"+url.PathEscape(isbn)+"/enhanced", true)
}

func (s *strategies) FetchBasic(ctx context.Context, isbn string) ([]byte, error) {
	return s.transport.Get(ctx, "/books/"+url.PathEscape(isbn), true)
}

// detailKey is the dedup/cache key for a book's detail payload.
func detailKey(isbn string) string {
	return "detail:" + isbn
}

// summaryKey is the dedup/cache key for a book's AI summary.
func summaryKey(isbn string) string {
	return "summary:" + isbn
}

// FetchDetail retrieves the best available detail record for isbn under
// the session's cancellation scope. Concurrent calls for the same ISBN
// share one retrieval; results are cached for DetailTTL. A session
// superseded mid-flight gets a cancelled error while the retrieval
// still completes and populates the cache for later sessions.
func (c *Client) FetchDetail(sess *session.Session, isbn string) (*BookDetail, error) {
	payload, err := c.fetchDetailPayload(sess.Context(), isbn)
	if err != nil {
		return nil, err
	}

	// The cancelled session's own chain must not render.
	if !sess.Alive() {
		return nil, transport.Cancelled("/books/"+isbn, context.Canceled)
	}

	var detail BookDetail
	if err := json.Unmarshal(payload, &detail); err != nil {
		return nil, fmt.Errorf("decode book detail: %w", err)
	}
	return &detail, nil
}

// fetchDetailPayload runs the deduplicated, cached, fallback-resolved
// detail retrieval without a session attached.
func (c *Client) fetchDetailPayload(ctx context.Context, isbn string) ([]byte, error) {
	return c.registry.Fetch(ctx, detailKey(isbn), c.details, func(opCtx context.Context) ([]byte, error) {
		return c.resolver.Resolve(opCtx, isbn)
	})
}

// WarmDetail pre-populates the detail cache for isbn. Used by prefetch
// workers ahead of anticipated detail views.
func (c *Client) WarmDetail(ctx context.Context, isbn string) error {
	_, err := c.fetchDetailPayload(ctx, isbn)
	return err
}

// FetchDetailContext is FetchDetail without a session, scoped by ctx
// alone. Intended for non-interactive callers such as the proxy daemon.
func (c *Client) FetchDetailContext(ctx context.Context, isbn string) (*BookDetail, error) {
	payload, err := c.fetchDetailPayload(ctx, isbn)
	if err != nil {
		return nil, err
	}

	var detail BookDetail
	if err := json.Unmarshal(payload, &detail); err != nil {
		return nil, fmt.Errorf("decode book detail: %w", err)
	}
	return &detail, nil
}

// FetchSummary retrieves the AI summary for isbn, generating one when
// the catalog has none yet. Same dedup, caching, and session semantics
// as FetchDetail, with the summaries store's shorter TTL.
func (c *Client) FetchSummary(sess *session.Session, isbn string) (*Summary, error) {
	payload, err := c.fetchSummaryPayload(sess.Context(), isbn)
	if err != nil {
		return nil, err
	}

	if !sess.Alive() {
		return nil, transport.Cancelled("/books/"+isbn+"/ai-summary", context.Canceled)
	}

	return decodeSummary(payload, isbn)
}

// FetchSummaryContext is FetchSummary without a session.
func (c *Client) FetchSummaryContext(ctx context.Context, isbn string) (*Summary, error) {
	payload, err := c.fetchSummaryPayload(ctx, isbn)
	if err != nil {
		return nil, err
	}
	return decodeSummary(payload, isbn)
}

// fetchSummaryPayload runs the deduplicated summary retrieval,
// triggering generation when the catalog has no summary stored.
func (c *Client) fetchSummaryPayload(ctx context.Context, isbn string) ([]byte, error) {
	endpoint := "/books/" + url.PathEscape(isbn) + "/ai-summary"

	return c.registry.Fetch(ctx, summaryKey(isbn), c.summaries, func(opCtx context.Context) ([]byte, error) {
		body, err := c.transport.Get(opCtx, endpoint, true)
		if err == nil {
			return body, nil
		}
		if !transport.IsNotFound(err) {
			return nil, err
		}

		// No summary yet: ask the backend to generate one, then re-read.
		c.logger.Debug().Str("isbn", isbn).Msg("No summary stored, requesting generation")
		if _, err := c.transport.Post(opCtx, "/books/"+url.PathEscape(isbn)+"/generate-summary", nil); err != nil {
			return nil, err
		}
		return c.transport.Get(opCtx, endpoint, true)
	})
}

func decodeSummary(payload []byte, isbn string) (*Summary, error) {
	var summary Summary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	if summary.ISBN == "" {
		summary.ISBN = isbn
	}
	return &summary, nil
}

// ListBooks returns the catalog listing, optionally filtered by a search
// query. Shares dedup and the lists cache across identical queries.
func (c *Client) ListBooks(ctx context.Context, query string) ([]Book, error) {
	var q url.Values
	if query != "" {
		q = url.Values{"q": []string{query}}
	}
	key := cache.Key{Endpoint: "/books", Query: q}.String()

	payload, err := c.registry.Fetch(ctx, key, c.lists, func(opCtx context.Context) ([]byte, error) {
		return c.transport.GetQuery(opCtx, "/books", q, true)
	})
	if err != nil {
		return nil, err
	}

	var books []Book
	if err := json.Unmarshal(payload, &books); err != nil {
		return nil, fmt.Errorf("decode book list: %w", err)
	}
	return books, nil
}

// Stats returns catalog-wide aggregates.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	key := cache.Key{Endpoint: "/stats"}.String()

	payload, err := c.registry.Fetch(ctx, key, c.lists, func(opCtx context.Context) ([]byte, error) {
		return c.transport.Get(opCtx, "/stats", true)
	})
	if err != nil {
		return nil, err
	}

	var stats Stats
	if err := json.Unmarshal(payload, &stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &stats, nil
}

// AddBook creates a book from its ISBN; the catalog pulls metadata from
// the upstream provider. Invalidates dependent caches.
func (c *Client) AddBook(ctx context.Context, isbn string) (*Book, error) {
	payload, err := c.transport.Post(ctx, "/books", map[string]string{"isbn": isbn})
	if err != nil {
		return nil, err
	}
	c.Invalidate(isbn)

	var book Book
	if err := json.Unmarshal(payload, &book); err != nil {
		return nil, fmt.Errorf("decode created book: %w", err)
	}
	return &book, nil
}

// AddBookManual creates a book with explicit details.
func (c *Client) AddBookManual(ctx context.Context, title, author, isbn string) (*Book, error) {
	payload, err := c.transport.Post(ctx, "/books", map[string]string{
		"title":  title,
		"author": author,
		"isbn":   isbn,
	})
	if err != nil {
		return nil, err
	}
	c.Invalidate(isbn)

	var book Book
	if err := json.Unmarshal(payload, &book); err != nil {
		return nil, fmt.Errorf("decode created book: %w", err)
	}
	return &book, nil
}

// UpdateBook changes a book's mutable fields. Invalidates dependent caches.
func (c *Client) UpdateBook(ctx context.Context, isbn string, update BookUpdate) (*Book, error) {
	payload, err := c.transport.Put(ctx, "/books/"+url.PathEscape(isbn), update)
	if err != nil {
		return nil, err
	}
	c.Invalidate(isbn)

	var book Book
	if err := json.Unmarshal(payload, &book); err != nil {
		return nil, fmt.Errorf("decode updated book: %w", err)
	}
	return &book, nil
}

// DeleteBook removes a book. Invalidates dependent caches.
func (c *Client) DeleteBook(ctx context.Context, isbn string) error {
	if _, err := c.transport.Delete(ctx, "/books/"+url.PathEscape(isbn)); err != nil {
		return err
	}
	c.Invalidate(isbn)
	return nil
}

// GenerateSummary forces regeneration of a book's AI summary.
func (c *Client) GenerateSummary(ctx context.Context, isbn string) error {
	if _, err := c.transport.Post(ctx, "/books/"+url.PathEscape(isbn)+"/generate-summary", nil); err != nil {
		return err
	}
	c.invalidateSummary(context.WithoutCancel(ctx), isbn)
	return nil
}

// Invalidate removes every cached payload and validator record whose
// content depends on isbn. The next fetch for the ISBN is guaranteed to
// hit the network, even inside the TTL window.
func (c *Client) Invalidate(isbn string) {
	ctx := context.Background()

	c.details.Invalidate(detailKey(isbn))
	c.invalidateSummary(ctx, isbn)

	// List and stats payloads aggregate over all books; search-query
	// variants cannot be enumerated, so the whole class goes.
	c.lists.Purge()

	escaped := url.PathEscape(isbn)
	for _, endpoint := range []string{
		"/books/" + escaped,
		"/books/" + escaped + "/enriched",
		"/books/" + escaped + "/enhanced",
		"/books",
		"/stats",
	} {
		key := cache.Key{Endpoint: endpoint}.String()
		if err := c.validators.Invalidate(ctx, key); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Validator invalidation failed")
		}
	}

	c.logger.Debug().Str("isbn", isbn).Msg("Invalidated caches for book")
}

// invalidateSummary drops the summary cache entry and validator record.
func (c *Client) invalidateSummary(ctx context.Context, isbn string) {
	c.summaries.Invalidate(summaryKey(isbn))
	key := cache.Key{Endpoint: "/books/" + url.PathEscape(isbn) + "/ai-summary"}.String()
	if err := c.validators.Invalidate(ctx, key); err != nil {
		c.logger.Warn().Err(err).Str("isbn", isbn).Msg("Summary validator invalidation failed")
	}
}
