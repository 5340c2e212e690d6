package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestSize(t *testing.T) {
	tests := []struct {
		name         string
		maxBytes     int64
		bodySize     int
		declareSize  bool
		expectStatus int
	}{
		{name: "small request accepted", maxBytes: 1024, bodySize: 512, declareSize: true, expectStatus: http.StatusOK},
		{name: "exact limit accepted", maxBytes: 1024, bodySize: 1024, declareSize: true, expectStatus: http.StatusOK},
		{name: "declared oversize rejected early", maxBytes: 1024, bodySize: 2048, declareSize: true, expectStatus: http.StatusRequestEntityTooLarge},
		{name: "streamed oversize fails on read", maxBytes: 1024, bodySize: 2048, declareSize: false, expectStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequestSize(tt.maxBytes)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, err := io.ReadAll(r.Body)
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					w.WriteHeader(http.StatusRequestEntityTooLarge)
					return
				}
				require.NoError(t, err)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/events/", strings.NewReader(strings.Repeat("x", tt.bodySize)))
			if !tt.declareSize {
				req.ContentLength = -1
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectStatus, rec.Code)
		})
	}
}

func TestRequestSize_NoBody(t *testing.T) {
	handler := RequestSize(DefaultMaxBodySize)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/events/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
