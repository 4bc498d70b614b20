package failure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opscore/internal/auth"
	"opscore/internal/logger"
	"opscore/internal/models"
)

type captureSink struct {
	entries []*models.FailureEntry
	err     error
}

func (s *captureSink) Save(ctx context.Context, entry *models.FailureEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func panicHandler(v any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(v)
	})
}

func serve(sink Sink, handler http.Handler, body string) *httptest.ResponseRecorder {
	wrapped := middleware.RequestID(Recoverer(sink, NewMasker(), logger.Nop())(handler))
	w := httptest.NewRecorder()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	r := httptest.NewRequest(http.MethodPost, "/v1/clients", rdr)
	wrapped.ServeHTTP(w, r)
	return w
}

func decodeUniform(t *testing.T, w *httptest.ResponseRecorder) uniformResponse {
	t.Helper()
	var resp uniformResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRecovererWritesUniformResponse(t *testing.T) {
	sink := &captureSink{}
	w := serve(sink, panicHandler("boom"), "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	resp := decodeUniform(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "An unexpected error occurred.", resp.Message)
	assert.NotEmpty(t, resp.TraceID)
	// The original failure detail never reaches the client.
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestRecovererPersistsMaskedEntry(t *testing.T) {
	sink := &captureSink{}
	w := serve(sink, panicHandler("boom"), `{"password":"abc123","name":"x"}`)

	require.Len(t, sink.entries, 1)
	entry := sink.entries[0]
	assert.Equal(t, "boom", entry.Message)
	assert.NotEmpty(t, entry.StackTrace)
	assert.Equal(t, "/v1/clients", entry.RequestPath)
	assert.Equal(t, http.MethodPost, entry.HTTPMethod)
	assert.Equal(t, http.StatusInternalServerError, entry.StatusCode)
	assert.NotEmpty(t, entry.TraceID)

	require.NotNil(t, entry.RequestBody)
	var body map[string]any
	require.NoError(t, json.Unmarshal(*entry.RequestBody, &body))
	assert.Equal(t, Masked, body["password"])
	assert.Equal(t, "x", body["name"])

	resp := decodeUniform(t, w)
	assert.Equal(t, entry.TraceID, resp.TraceID)
}

func TestRecovererCapturesInnerMessage(t *testing.T) {
	sink := &captureSink{}
	wrapped := fmt.Errorf("outer: %w", errors.New("inner detail"))
	serve(sink, panicHandler(wrapped), "")

	require.Len(t, sink.entries, 1)
	require.NotNil(t, sink.entries[0].InnerMessage)
	assert.Equal(t, "inner detail", *sink.entries[0].InnerMessage)
}

func TestRecovererUnreadableBodyDegradesToNull(t *testing.T) {
	sink := &captureSink{}
	serve(sink, panicHandler("boom"), "not json at all")

	require.Len(t, sink.entries, 1)
	assert.Nil(t, sink.entries[0].RequestBody)
}

func TestSinkFailureStillWritesResponse(t *testing.T) {
	sink := &captureSink{err: errors.New("store down")}
	w := serve(sink, panicHandler("boom"), "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeUniform(t, w)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.TraceID)
}

func TestRecovererPassesThroughHealthyRequests(t *testing.T) {
	sink := &captureSink{}
	var seenBody string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seenBody = string(b)
		w.WriteHeader(http.StatusOK)
	})
	w := serve(sink, handler, `{"ok":true}`)

	assert.Equal(t, http.StatusOK, w.Code)
	// Buffering for capture must not consume the body.
	assert.Equal(t, `{"ok":true}`, seenBody)
	assert.Empty(t, sink.entries)
}

func TestRecovererDoesNotTruncateLargeBodies(t *testing.T) {
	sink := &captureSink{}
	large := strings.Repeat("a", maxBodyCapture+36*1024)
	var seen int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = len(b)
		w.WriteHeader(http.StatusOK)
	})
	w := serve(sink, handler, large)

	assert.Equal(t, http.StatusOK, w.Code)
	// Only the capture buffer is capped; the handler reads the full stream.
	assert.Equal(t, len(large), seen)
}

func TestTagUserRecordsPrincipal(t *testing.T) {
	sink := &captureSink{}
	inner := TagUser(panicHandler("boom"))
	authed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithPrincipal(r.Context(), auth.Principal{ID: "u1"})
		inner.ServeHTTP(w, r.WithContext(ctx))
	})
	serve(sink, authed, "")

	require.Len(t, sink.entries, 1)
	require.NotNil(t, sink.entries[0].UserID)
	assert.Equal(t, "u1", *sink.entries[0].UserID)
}
