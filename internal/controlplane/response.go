package controlplane

import (
	"context"
	"errors"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/coachpo/feedgate/internal/errs"
)

// requestIDHeader is the header a correlation id is both accepted from
// (so callers can thread their own trace id through) and echoed on.
const requestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// withRequestID assigns each request a correlation id: the caller's
// X-Request-Id header if present, otherwise a generated uuid. The id is
// echoed on the response and reachable from handlers via requestIDFrom.
func withRequestID(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		handler.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

func limitRequestBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
}

func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	if isRequestTooLarge(err) {
		writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, r, http.StatusBadRequest, err.Error())
}

func isRequestTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError reports status/message as a JSON error envelope, tagged
// with the request's correlation id so a caller can match a support
// report back to this exact request.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message, "requestId": requestIDFrom(r)})
}

// writeRegistryError maps a registry/integration error envelope onto an
// HTTP status the way spec.md §6's error column prescribes.
func writeRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	var e *errs.E
	if errors.As(err, &e) {
		switch e.Code {
		case errs.CodeNotFound:
			writeError(w, r, http.StatusNotFound, err.Error())
			return
		case errs.CodeConflict, errs.CodeInvalid:
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	writeError(w, r, http.StatusBadRequest, err.Error())
}

func withCORS(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
