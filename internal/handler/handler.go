// Package handler exposes the family-sharing service as a JSON HTTP API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/shopassist/internal/apperr"
	"github.com/dukerupert/shopassist/internal/auth"
	"github.com/dukerupert/shopassist/internal/service"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code. Wrapped store errors never reach
// the client; unexpected and transient failures are logged with their cause.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindUnexpected || kind == apperr.KindTransient {
		logger.Error("request failed", "kind", kind, "error", err)
	}
	writeJSON(w, statusFor(kind), errorResponse{Error: apperr.Message(err), Kind: string(kind)})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindExpired:
		return http.StatusGone
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Kind: string(apperr.KindValidation)})
}

func parseIDParam(r *http.Request) (int64, error) {
	return parsePathID(r, "id")
}

func parsePathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err != nil {
		if errors.Is(err, io.EOF) {
			badRequest(w, "request body is required")
		} else {
			badRequest(w, "invalid JSON")
		}
		return false
	}
	return true
}

// callerFrom builds the service caller from the identity RequireAuth stored
// on the request.
func callerFrom(r *http.Request) service.Caller {
	ac, _ := auth.FromContext(r.Context())
	return service.Caller{UserID: ac.UserID, Email: ac.Email}
}
