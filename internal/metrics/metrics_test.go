package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Togather-Foundation/gatherings/internal/domain/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Init must be safe to call more than once
	Init("v1.0.0", "abc123", "2026-01-30")
	Init("v1.0.1", "def456", "2026-02-01")

	// Only the latest version labels remain
	if got := testutil.CollectAndCount(AppInfo); got != 1 {
		t.Errorf("Expected 1 app_info series, got %d", got)
	}
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(RSVPUpserts.WithLabelValues("created"))
	RSVPUpserts.WithLabelValues("created").Inc()
	if got := testutil.ToFloat64(RSVPUpserts.WithLabelValues("created")); got != before+1 {
		t.Errorf("Expected rsvp counter %v, got %v", before+1, got)
	}

	ReviewsCreated.WithLabelValues("5").Inc()
	if testutil.CollectAndCount(ReviewsCreated) == 0 {
		t.Error("ReviewsCreated should have recorded a review")
	}
}

func TestHTTPMiddleware(t *testing.T) {
	// Create a test handler
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Wrap with metrics middleware
	wrapped := HTTPMiddleware(handler)

	// Create test request
	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	// Execute request
	wrapped.ServeHTTP(rec, req)

	// Verify response
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	// Verify metrics were recorded
	if testutil.CollectAndCount(HTTPRequestsTotal) == 0 {
		t.Error("HTTPRequestsTotal should have recorded at least one request")
	}

	if testutil.CollectAndCount(HTTPRequestDuration) == 0 {
		t.Error("HTTPRequestDuration should have recorded at least one request")
	}
}

func TestHTTPMiddlewareStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Not Found", http.StatusNotFound},
		{"Internal Server Error", http.StatusInternalServerError},
		{"Unauthorized", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			wrapped := HTTPMiddleware(handler)
			req := httptest.NewRequest("GET", "/test", nil)
			rec := httptest.NewRecorder()

			wrapped.ServeHTTP(rec, req)

			if rec.Code != tt.statusCode {
				t.Errorf("Expected status %d, got %d", tt.statusCode, rec.Code)
			}
		})
	}
}

type fakePool struct{ stat *pgxpool.Stat }

func (p fakePool) Stats() *pgxpool.Stat { return p.stat }

func TestPoolCollectorWithoutStats(t *testing.T) {
	if got := testutil.CollectAndCount(NewPoolCollector(fakePool{})); got != 0 {
		t.Errorf("Expected no samples without pool stats, got %d", got)
	}
	if got := testutil.CollectAndCount(NewPoolCollector(nil)); got != 0 {
		t.Errorf("Expected no samples for nil pool, got %d", got)
	}
}

func TestClassifyDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "no rows", err: fmt.Errorf("get: %w", pgx.ErrNoRows), want: ""},
		{name: "domain not found", err: events.ErrNotFound, want: ""},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "timeout", err: fmt.Errorf("list: %w", context.DeadlineExceeded), want: "timeout"},
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, want: "unique_violation"},
		{name: "foreign key", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}), want: "foreign_key_violation"},
		{name: "other", err: errors.New("connection reset"), want: "query_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyDBError(tt.err); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRecordQuery(t *testing.T) {
	// Test successful query
	start := time.Now()
	RecordQuery("test_select", start, nil)

	// Verify metric was recorded
	if testutil.CollectAndCount(DBQueryDuration) == 0 {
		t.Error("DBQueryDuration should have recorded at least one query")
	}

	// Test failed query
	start = time.Now()
	RecordQuery("test_failed", start, context.Canceled)

	// Verify error was recorded
	if testutil.CollectAndCount(DBErrors) == 0 {
		t.Error("DBErrors should have recorded at least one error")
	}
}

func TestHTTPMiddlewareLabelsByRoute(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/rsvps/{id}/{$}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	wrapped := HTTPMiddleware(mux)

	counter := HTTPRequestsTotal.WithLabelValues("418", "get", "/api/rsvps/{param}/")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rsvps/01HYX3KQW7ERTV9XNBM2P8QJZF/", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("Expected status 418, got %d", rec.Code)
	}
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("Expected route counter %v, got %v", before+1, got)
	}
}
