// Package failure wraps request execution as the outermost middleware,
// converting any uncaught failure into a persisted, masked failure record
// and a uniform client response that never echoes the original error.
package failure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"opscore/internal/auth"
	"opscore/internal/models"
)

const maxBodyCapture = 64 << 10

type uniformResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TraceID string `json:"traceId"`
}

// actorCarrier lets inner middleware report the resolved principal back to
// the hook, which sits outside the auth layer in the chain.
type actorCarrier struct {
	mu     sync.Mutex
	userID *string
}

type carrierKey struct{}

// TagUser copies the authenticated subject into the hook's actor carrier.
// Mount after the auth middleware.
func TagUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sub := auth.Subject(r.Context()); sub != "" {
			if c, ok := r.Context().Value(carrierKey{}).(*actorCarrier); ok {
				c.mu.Lock()
				c.userID = &sub
				c.mu.Unlock()
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Recoverer is the failure capture hook. It buffers the request body for
// later masking, recovers any panic below it, persists a failure entry,
// logs it, and writes the uniform 500 response. Once invoked it is not
// cancellable: the entry is written on a detached context so a dropped
// client cannot suppress the record.
func Recoverer(sink Sink, masker *Masker, lg *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body []byte
			if r.Body != nil && r.Body != http.NoBody {
				body, _ = io.ReadAll(io.LimitReader(r.Body, maxBodyCapture))
				// Only the captured prefix is kept for the failure entry;
				// the handler must still see the full stream.
				r.Body = struct {
					io.Reader
					io.Closer
				}{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
			}
			carrier := &actorCarrier{}
			r = r.WithContext(context.WithValue(r.Context(), carrierKey{}, carrier))

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				traceID := middleware.GetReqID(r.Context())
				if traceID == "" {
					traceID = uuid.NewString()
				}
				entry := buildEntry(rec, r, body, masker, traceID)
				carrier.mu.Lock()
				entry.UserID = carrier.userID
				carrier.mu.Unlock()

				lg.Errorw("unhandled request failure",
					"trace_id", traceID,
					"path", entry.RequestPath,
					"method", entry.HTTPMethod,
					"error", entry.Message,
				)
				if err := sink.Save(context.WithoutCancel(r.Context()), entry); err != nil {
					// Never let failure-record persistence take down the
					// response path.
					lg.Warnw("failure entry persist failed", "trace_id", traceID, "error", err)
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(uniformResponse{
					Success: false,
					Message: "An unexpected error occurred.",
					TraceID: traceID,
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func buildEntry(rec any, r *http.Request, body []byte, masker *Masker, traceID string) *models.FailureEntry {
	entry := &models.FailureEntry{
		ID:          uuid.NewString(),
		Message:     fmt.Sprint(rec),
		StackTrace:  string(debug.Stack()),
		RequestPath: r.URL.Path,
		HTTPMethod:  r.Method,
		StatusCode:  http.StatusInternalServerError,
		TraceID:     traceID,
		Timestamp:   time.Now().UTC(),
	}
	if err, ok := rec.(error); ok {
		if inner := errors.Unwrap(err); inner != nil {
			msg := inner.Error()
			entry.InnerMessage = &msg
		}
	}
	if masked := masker.Mask(body); masked != nil {
		j := models.JSONB(masked)
		entry.RequestBody = &j
	}
	return entry
}
