// catalog-proxy exposes the catalog client over HTTP so non-Go
// consumers share its caches, deduplication, and quota handling. With
// REDIS_URL set, multiple proxy instances share validator records and
// quota state.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Fleurdelys0/library-client/pkg/client"
	"github.com/Fleurdelys0/library-client/pkg/logging"
	"github.com/Fleurdelys0/library-client/pkg/transport"
)

func main() {
	catalogURL := getEnv("CATALOG_URL", "http://localhost:8000")
	apiKey := os.Getenv("CATALOG_API_KEY")
	redisURL := os.Getenv("REDIS_URL")
	port := getEnv("PORT", "8080")
	userAgent := getEnv("USER_AGENT", "catalog-proxy/0.1.0")

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: os.Getenv("LOG_PRETTY") == "true",
		Output: os.Stderr,
	})

	var redisClient *redis.Client
	if redisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: redisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("redis_url", redisURL).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("redis_url", redisURL).Msg("Connected to Redis")
	}

	cfg := client.DefaultConfig(catalogURL)
	cfg.APIKey = apiKey
	cfg.UserAgent = userAgent
	cfg.Redis = redisClient

	catalog, err := client.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create catalog client")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(redisClient, catalog))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/books", booksHandler(catalog, logger))
	mux.HandleFunc("/books/", bookHandler(catalog, logger))
	mux.HandleFunc("/stats", statsHandler(catalog, logger))

	addr := ":" + port
	logger.Info().
		Str("addr", addr).
		Str("catalog_url", catalogURL).
		Bool("redis", redisClient != nil).
		Msg("Starting catalog proxy")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// readyHandler reports readiness; with Redis configured, an unreachable
// Redis makes the instance not ready.
func readyHandler(redisClient *redis.Client, catalog *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

// booksHandler serves GET /books (list, optional ?q=) and POST /books.
func booksHandler(catalog *client.Client, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		switch r.Method {
		case http.MethodGet:
			books, err := catalog.ListBooks(ctx, r.URL.Query().Get("q"))
			if err != nil {
				writeError(w, logger, err)
				return
			}
			writeJSON(w, http.StatusOK, books)

		case http.MethodPost:
			var body struct {
				Title  string `json:"title"`
				Author string `json:"author"`
				ISBN   string `json:"isbn"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ISBN == "" {
				http.Error(w, `{"detail": "isbn is required"}`, http.StatusBadRequest)
				return
			}
			var book *client.Book
			var err error
			if body.Title != "" || body.Author != "" {
				book, err = catalog.AddBookManual(ctx, body.Title, body.Author, body.ISBN)
			} else {
				book, err = catalog.AddBook(ctx, body.ISBN)
			}
			if err != nil {
				writeError(w, logger, err)
				return
			}
			writeJSON(w, http.StatusCreated, book)

		default:
			http.Error(w, `{"detail": "method not allowed"}`, http.StatusMethodNotAllowed)
		}
	}
}

// bookHandler serves /books/{isbn} and its sub-resources.
func bookHandler(catalog *client.Client, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		rest := strings.TrimPrefix(r.URL.Path, "/books/")
		isbn, sub, _ := strings.Cut(rest, "/")
		if isbn == "" {
			http.Error(w, `{"detail": "isbn is required"}`, http.StatusBadRequest)
			return
		}

		switch {
		case sub == "" && r.Method == http.MethodGet:
			detail, err := catalog.FetchDetailContext(ctx, isbn)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			writeJSON(w, http.StatusOK, detail)

		case sub == "" && r.Method == http.MethodPut:
			var update client.BookUpdate
			if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
				http.Error(w, `{"detail": "invalid body"}`, http.StatusBadRequest)
				return
			}
			book, err := catalog.UpdateBook(ctx, isbn, update)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			writeJSON(w, http.StatusOK, book)

		case sub == "" && r.Method == http.MethodDelete:
			if err := catalog.DeleteBook(ctx, isbn); err != nil {
				writeError(w, logger, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"message": "book deleted"})

		case sub == "summary" && r.Method == http.MethodGet:
			summary, err := catalog.FetchSummaryContext(ctx, isbn)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			writeJSON(w, http.StatusOK, summary)

		default:
			http.Error(w, `{"detail": "not found"}`, http.StatusNotFound)
		}
	}
}

func statsHandler(catalog *client.Client, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		stats, err := catalog.Stats(ctx)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps client error kinds onto proxy response statuses.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := http.StatusBadGateway
	switch transport.KindOf(err) {
	case transport.KindNotFound:
		status = http.StatusNotFound
	case transport.KindCancelled:
		// Client went away mid-request.
		status = 499
	}

	logger.Warn().Err(err).Int("status", status).Msg("Proxy request failed")
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
