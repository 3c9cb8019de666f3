package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"catalogbridge/pkg/httpx"
)

type ctxKey int

const ctxKeyRequestID ctxKey = iota

// requestIDFromContext returns the request id attached by RequestID.
func requestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

// statusRecorder captures the status code and byte count of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// RequestID attaches an X-Request-Id to every request, honoring one already
// supplied by the caller.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)))
	})
}

// AccessLog logs every request with its outcome and latency.
func AccessLog(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", sr.status).
				Int("bytes", sr.bytes).
				Dur("latency", time.Since(start)).
				Str("request_id", requestIDFromContext(r.Context())).
				Msg("http request")
		})
	}
}

const maxAuthBodyBytes = 1 << 20

// authBody is the slice of the request body the auth middleware reads.
type authBody struct {
	APIKey    string `json:"api_key"`
	APIKeyAlt string `json:"apiKey"`
}

// APIKeyAuth authenticates requests by the api_key field in the JSON body,
// comparing sha256 digests in constant time. The body is restored for the
// next handler.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	expected := sha256.Sum256([]byte(apiKey))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := io.ReadAll(io.LimitReader(r.Body, maxAuthBodyBytes))
			if err != nil {
				httpx.RespondError(w, http.StatusBadRequest, "INVALID_INPUT", "could not read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))

			var body authBody
			_ = json.Unmarshal(raw, &body)
			key := body.APIKey
			if key == "" {
				key = body.APIKeyAlt
			}
			if key == "" {
				httpx.RespondError(w, http.StatusUnauthorized, "UNAUTHORIZED",
					"API key required: send api_key in the request body")
				return
			}

			received := sha256.Sum256([]byte(key))
			if subtle.ConstantTimeCompare(received[:], expected[:]) != 1 {
				httpx.RespondError(w, http.StatusForbidden, "FORBIDDEN", "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
