package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/pkgmeta/repometa/internal/metrics"
	"github.com/pkgmeta/repometa/internal/observability"
)

const panicErrorCode = "INTERNAL_ERROR"

// Recovery turns a handler panic into a 500 error envelope and logs the
// stack with the request's log fields. http.ErrAbortHandler is re-raised so
// net/http can drop the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			requestID := GetRequestID(r.Context())
			stack := string(debug.Stack())
			observability.FromContext(r.Context(), baseLogger()).Error("Recovered from handler panic",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Any("panic", rec),
				zap.String("stack", stack),
			)
			metrics.RecordPanic()

			envelope := errors.NewErrorEnvelope(panicErrorCode, "internal error while handling request").
				WithCorrelationID(requestID)
			envelope, _ = envelope.WithSeverity(errors.SeverityCritical)
			envelope, _ = envelope.WithContext(map[string]interface{}{
				"panic": fmt.Sprint(rec),
			})
			writeEnvelope(w, envelope, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}

// envelopeResponse mirrors the body written by internal/errors, which
// imports this package for request ids.
type envelopeResponse struct {
	Error struct {
		Code      string                 `json:"code"`
		Message   string                 `json:"message"`
		Details   map[string]interface{} `json:"details,omitempty"`
		RequestID string                 `json:"request_id,omitempty"`
	} `json:"error"`
}

func writeEnvelope(w http.ResponseWriter, envelope *errors.ErrorEnvelope, status int) {
	var body envelopeResponse
	body.Error.Code = envelope.Code
	body.Error.Message = envelope.Message
	body.Error.Details = envelope.Context
	body.Error.RequestID = envelope.CorrelationID

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
