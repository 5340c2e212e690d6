package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Togather-Foundation/gatherings/internal/domain/access"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func decodeEntry(t *testing.T, output string) Entry {
	t.Helper()
	var wrapper map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(output)), &wrapper))
	raw, ok := wrapper["audit"]
	require.True(t, ok, "no audit field in %s", output)
	var entry Entry
	require.NoError(t, json.Unmarshal(raw, &entry))
	return entry
}

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithZerolog(zerolog.New(&buf))

	logger.Log(Entry{
		Action:       "event.update",
		Actor:        "tom",
		ResourceType: "event",
		ResourceID:   "01HX12ABC123",
		IPAddress:    "192.168.1.1",
		Status:       StatusSuccess,
	})

	entry := decodeEntry(t, buf.String())
	require.Equal(t, "event.update", entry.Action)
	require.Equal(t, "tom", entry.Actor)
	require.Equal(t, "event", entry.ResourceType)
	require.Equal(t, "01HX12ABC123", entry.ResourceID)
	require.False(t, entry.Timestamp.IsZero())
}

func TestLogger_LogSuccessAndFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithZerolog(zerolog.New(&buf))

	logger.LogSuccess("rsvp.upsert", "jerry", "rsvp", "01HX12RSVP00", "10.0.0.1", map[string]string{"status": "Maybe"})
	require.Contains(t, buf.String(), `"status":"Maybe"`)
	require.Contains(t, buf.String(), StatusSuccess)

	buf.Reset()
	logger.LogFailure("auth.token", "jerry", "10.0.0.1", map[string]string{"reason": "invalid_credentials"})
	entry := decodeEntry(t, buf.String())
	require.Equal(t, StatusFailure, entry.Status)
	require.Equal(t, "invalid_credentials", entry.Details["reason"])
}

func TestLogFromRequest_UsesActor(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithZerolog(zerolog.New(&buf))

	req := httptest.NewRequest(http.MethodDelete, "/api/events/01HX12ABC123/", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	req = req.WithContext(access.WithActor(req.Context(), access.Actor{UserID: "u1", Username: "tom"}))

	logger.LogFromRequest(req, "event.delete", "event", "01HX12ABC123", StatusSuccess, nil)

	entry := decodeEntry(t, buf.String())
	require.Equal(t, "tom", entry.Actor)
	require.Equal(t, "10.0.0.1", entry.IPAddress)
}

func TestLogFromRequest_Anonymous(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithZerolog(zerolog.New(&buf))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/token/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.1, 198.51.100.1")
	logger.LogFromRequest(req, "auth.token", "user", "", StatusFailure, nil)

	entry := decodeEntry(t, buf.String())
	require.Equal(t, "anonymous", entry.Actor)
	require.Equal(t, "203.0.113.1", entry.IPAddress)
}

func TestWithLogger_AndFromContext(t *testing.T) {
	logger := NewLogger()
	ctx := WithLogger(context.Background(), logger)

	require.Same(t, logger, FromContext(ctx))
	require.NotNil(t, FromContext(context.Background()))
}

func TestNilLoggerIsNoop(t *testing.T) {
	var logger *Logger
	require.NotPanics(t, func() { logger.LogSuccess("x", "y", "", "", "", nil) })
}
