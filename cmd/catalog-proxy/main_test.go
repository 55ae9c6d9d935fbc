package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Fleurdelys0/library-client/internal/testutil"
	"github.com/Fleurdelys0/library-client/pkg/client"
)

func newProxyClient(t *testing.T, backend *testutil.MockCatalog) *client.Client {
	t.Helper()
	cfg := client.DefaultConfig(backend.URL())
	cfg.MaxRetries = 0
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	return c
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpointWithoutRedis(t *testing.T) {
	backend := testutil.NewMockCatalog()
	defer backend.Close()

	handler := readyHandler(nil, newProxyClient(t, backend))

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Result().StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	backend := testutil.NewMockCatalog()
	defer backend.Close()

	// Creating a client registers every catalog_ metric family.
	newProxyClient(t, backend)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "# HELP") || !strings.Contains(string(body), "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
}

func TestBookHandlerServesDetail(t *testing.T) {
	backend := testutil.NewMockCatalog()
	defer backend.Close()
	backend.SetBookResponse("9780441013593", testutil.NewHealthyResponse(
		`{"title": "Dune", "author": "Frank Herbert", "isbn": "9780441013593"}`))

	handler := bookHandler(newProxyClient(t, backend), zerolog.Nop())

	req := httptest.NewRequest("GET", "/books/9780441013593", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), `"title":"Dune"`) {
		t.Errorf("Expected detail payload, got %s", body)
	}
}

func TestBookHandlerNotFound(t *testing.T) {
	backend := testutil.NewMockCatalog()
	defer backend.Close()
	// Every fallback step misses.
	for _, path := range []string{
		"/books/0000000000/enriched",
		"/books/0000000000/enhanced",
		"/books/0000000000",
	} {
		backend.SetResponse(path, testutil.NewNotFoundResponse("Book not found"))
	}
	backend.SetHandler("POST /books", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "ISBN not found upstream"}`))
	})

	handler := bookHandler(newProxyClient(t, backend), zerolog.Nop())

	req := httptest.NewRequest("GET", "/books/0000000000", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	// Exhausted fallback surfaces as a gateway error, not a silent 200.
	if w.Result().StatusCode == http.StatusOK {
		t.Errorf("Expected error status, got 200")
	}
}

func TestBooksHandlerList(t *testing.T) {
	backend := testutil.NewMockCatalog()
	defer backend.Close()
	backend.SetResponse("/books", testutil.NewHealthyResponse(
		`[{"title": "Dune", "author": "Frank Herbert", "isbn": "9780441013593"}]`))

	handler := booksHandler(newProxyClient(t, backend), zerolog.Nop())

	req := httptest.NewRequest("GET", "/books", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "Frank Herbert") {
		t.Errorf("Expected list payload, got %s", body)
	}
}

func TestBooksHandlerPostRequiresISBN(t *testing.T) {
	backend := testutil.NewMockCatalog()
	defer backend.Close()

	handler := booksHandler(newProxyClient(t, backend), zerolog.Nop())

	req := httptest.NewRequest("POST", "/books", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
	}
}

func TestStatsHandler(t *testing.T) {
	backend := testutil.NewMockCatalog()
	defer backend.Close()
	backend.SetResponse("/stats", testutil.NewHealthyResponse(
		`{"total_books": 42, "unique_authors": 17}`))

	handler := statsHandler(newProxyClient(t, backend), zerolog.Nop())

	req := httptest.NewRequest("GET", "/stats", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), `"total_books":42`) {
		t.Errorf("Expected stats payload, got %s", body)
	}
}
