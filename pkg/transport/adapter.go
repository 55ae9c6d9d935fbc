// Package transport performs the actual catalog HTTP calls: conditional
// revalidation via the validator store, defensive error decoding, quota
// gating, and a global in-flight count driving a progress indicator.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Fleurdelys0/library-client/pkg/cache"
	"github.com/Fleurdelys0/library-client/pkg/ratelimit"
	"github.com/Fleurdelys0/library-client/pkg/validator"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Progress receives transitions of the global in-flight request count.
// Start fires when the count goes 0 -> 1, Done when it returns to 0.
// Drives a single "loading" indicator for any number of overlapping calls.
type Progress interface {
	Start()
	Done()
}

// Config holds the adapter configuration.
type Config struct {
	// BaseURL of the catalog backend, e.g. "http://localhost:8000"
	BaseURL string

	// APIKey sent as X-API-Key on every request. The catalog requires it
	// for mutations; attaching it here keeps callers auth-unaware.
	APIKey string

	// UserAgent header
	UserAgent string

	// Timeout for a single HTTP request
	Timeout time.Duration

	// MaxRetries for idempotent GETs on server/network failures.
	// Zero disables retrying.
	MaxRetries int

	// InitialBackoff between retry attempts
	InitialBackoff time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		UserAgent:      "library-client/0.1.0",
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
	}
}

// Adapter performs catalog HTTP requests.
type Adapter struct {
	httpClient *http.Client
	validators validator.Store
	limiter    *ratelimit.Tracker // nil disables quota gating
	config     Config
	logger     zerolog.Logger
	progress   Progress
	inflight   atomic.Int64
}

// New creates a catalog transport adapter.
func New(cfg Config, validators validator.Store) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if validators == nil {
		return nil, fmt.Errorf("validator store is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "catalog-transport").Logger()

	return &Adapter{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		validators: validators,
		config:     cfg,
		logger:     logger,
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (a *Adapter) SetHTTPClient(client *http.Client) {
	a.httpClient = client
}

// SetProgress installs the progress indicator for in-flight transitions.
func (a *Adapter) SetProgress(p Progress) {
	a.progress = p
}

// SetLimiter installs a quota tracker gating outbound requests.
func (a *Adapter) SetLimiter(t *ratelimit.Tracker) {
	a.limiter = t
}

// InFlight returns the current number of outstanding requests.
func (a *Adapter) InFlight() int64 {
	return a.inflight.Load()
}

// begin increments the global in-flight count, driving the indicator on
// the 0 -> 1 transition.
func (a *Adapter) begin() {
	requestsInFlight.Inc()
	if a.inflight.Add(1) == 1 && a.progress != nil {
		a.progress.Start()
	}
}

// end decrements the count; the indicator deactivates only at zero.
func (a *Adapter) end() {
	requestsInFlight.Dec()
	if a.inflight.Add(-1) == 0 && a.progress != nil {
		a.progress.Done()
	}
}

// Get performs a GET against endpoint. When conditional is true the
// adapter attaches the last-known validator token as If-None-Match and
// serves the stored payload on a 304.
func (a *Adapter) Get(ctx context.Context, endpoint string, conditional bool) ([]byte, error) {
	return a.GetQuery(ctx, endpoint, nil, conditional)
}

// GetQuery is Get with query parameters.
func (a *Adapter) GetQuery(ctx context.Context, endpoint string, query url.Values, conditional bool) ([]byte, error) {
	a.begin()
	defer a.end()

	endpointKey := cache.Key{Endpoint: endpoint, Query: query}.String()

	var rec *validator.Record
	if conditional {
		var err error
		rec, err = a.validators.Get(ctx, endpointKey)
		if err != nil && err != validator.ErrNoRecord {
			// Degraded validator backend: fall through to an
			// unconditional fetch rather than failing the read.
			a.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Validator store get failed")
			rec = nil
		}
	}

	var payload []byte
	attempt := func() error {
		body, err := a.doOnce(ctx, http.MethodGet, endpoint, query, nil, rec, endpointKey)
		if err != nil {
			return err
		}
		payload = body
		return nil
	}

	if err := retryWithBackoff(ctx, a.config, attempt); err != nil {
		return nil, err
	}
	return payload, nil
}

// Post performs a POST with a JSON body.
func (a *Adapter) Post(ctx context.Context, endpoint string, body any) ([]byte, error) {
	a.begin()
	defer a.end()
	return a.doOnce(ctx, http.MethodPost, endpoint, nil, body, nil, "")
}

// Put performs a PUT with a JSON body.
func (a *Adapter) Put(ctx context.Context, endpoint string, body any) ([]byte, error) {
	a.begin()
	defer a.end()
	return a.doOnce(ctx, http.MethodPut, endpoint, nil, body, nil, "")
}

// Delete performs a DELETE.
func (a *Adapter) Delete(ctx context.Context, endpoint string) ([]byte, error) {
	a.begin()
	defer a.end()
	return a.doOnce(ctx, http.MethodDelete, endpoint, nil, nil, nil, "")
}

// doOnce executes a single HTTP exchange and maps the outcome to a typed
// result: payload bytes, a validator-served 304 payload, or an Error.
func (a *Adapter) doOnce(ctx context.Context, method, endpoint string, query url.Values, body any, rec *validator.Record, endpointKey string) ([]byte, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	if a.limiter != nil {
		allowed, err := a.limiter.ShouldAllowRequest(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, Cancelled(endpoint, ctx.Err())
			}
			a.logger.Error().Err(err).Msg("Quota check failed")
			return nil, &Error{
				Kind:     KindTransport,
				Endpoint: endpoint,
				Message:  "quota check failed",
				Err:      err,
			}
		}
		if !allowed {
			a.logger.Warn().Str("endpoint", endpoint).Msg("Request blocked by quota tracker")
			requestsTotal.WithLabelValues(endpoint, "quota_blocked").Inc()
			return nil, &Error{
				Kind:     KindTransport,
				Endpoint: endpoint,
				Message:  "enrichment quota critical",
				Err:      ErrQuotaBlocked,
			}
		}
	}

	reqURL := strings.TrimRight(a.config.BaseURL, "/") + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", a.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.config.APIKey != "" {
		req.Header.Set("X-API-Key", a.config.APIKey)
	}

	conditional := rec != nil && rec.Token != ""
	if conditional {
		// The origin must evaluate the precondition itself; forbid any
		// intermediate cache from answering.
		req.Header.Set("If-None-Match", rec.Token)
		req.Header.Set("Cache-Control", "no-cache")
		conditionalRequestsSent.Inc()
		a.logger.Debug().
			Str("endpoint", endpoint).
			Str("etag", rec.Token).
			Msg("Making conditional request")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			a.logger.Debug().Str("endpoint", endpoint).Msg("Request cancelled")
			requestsTotal.WithLabelValues(endpoint, "cancelled").Inc()
			return nil, Cancelled(endpoint, ctx.Err())
		}
		a.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		errorsTotal.WithLabelValues(string(KindTransport)).Inc()
		return nil, &Error{
			Kind:     KindTransport,
			Endpoint: endpoint,
			Message:  "network failure",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	if a.limiter != nil {
		if err := a.limiter.UpdateFromResponse(ctx, resp.StatusCode, resp.Header); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to update quota state from headers")
		}
	}

	requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotModified {
		notModifiedResponses.Inc()
		// The 304 carries no body; the stored payload stands in for it.
		// A token without a payload cannot be served.
		if rec == nil || len(rec.Payload) == 0 {
			errorsTotal.WithLabelValues(string(KindInconsistency)).Inc()
			a.logger.Error().
				Str("endpoint", endpoint).
				Msg("304 with no stored payload - validator inconsistency")
			return nil, &Error{
				StatusCode: resp.StatusCode,
				Kind:       KindInconsistency,
				Endpoint:   endpoint,
				Message:    "not modified, but no stored payload exists",
			}
		}
		a.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - serving stored payload")
		return rec.Payload, nil
	}

	if resp.StatusCode >= 400 {
		return nil, a.errorFromResponse(resp, endpoint)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(KindTransport)).Inc()
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Kind:       KindTransport,
			Endpoint:   endpoint,
			Message:    "read response body",
			Err:        err,
		}
	}

	// A fresh response with a token replaces the validator record wholesale.
	if method == http.MethodGet && endpointKey != "" {
		if etag := resp.Header.Get("ETag"); etag != "" {
			if err := a.validators.Put(ctx, endpointKey, etag, payload); err != nil {
				a.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to store validator record")
			} else {
				a.logger.Debug().
					Str("endpoint", endpoint).
					Str("etag", etag).
					Msg("Stored validator record")
			}
		}
	}

	return payload, nil
}

// errorBody is the shape of a catalog error payload. The backend sends
// {"detail": "..."}; older deployments used {"message": "..."}.
type errorBody struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

// errorFromResponse builds a typed error from a non-2xx response,
// decoding the body defensively: empty or non-JSON bodies must not
// crash the caller.
func (a *Adapter) errorFromResponse(resp *http.Response, endpoint string) *Error {
	kind := KindTransport
	if resp.StatusCode == http.StatusNotFound {
		kind = KindNotFound
	}
	errorsTotal.WithLabelValues(string(kind)).Inc()

	message := fmt.Sprintf("catalog request failed with status %d", resp.StatusCode)
	if body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil && len(body) > 0 {
		var eb errorBody
		if jsonErr := json.Unmarshal(body, &eb); jsonErr == nil {
			switch {
			case eb.Detail != "":
				message = eb.Detail
			case eb.Message != "":
				message = eb.Message
			}
		}
	}

	a.logger.Warn().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Str("kind", string(kind)).
		Msg("Catalog request error")

	return &Error{
		StatusCode: resp.StatusCode,
		Kind:       kind,
		Endpoint:   endpoint,
		Message:    message,
	}
}
