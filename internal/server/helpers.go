package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cwbudde/routeviz/internal/config"
	"github.com/cwbudde/routeviz/internal/points"
	"github.com/cwbudde/routeviz/internal/render"
	"github.com/cwbudde/routeviz/internal/session"
	"github.com/cwbudde/routeviz/internal/store"
)

// errorResponse is the JSON body of every API error.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(data); err != nil {
		slog.Debug("Failed to write PNG", "error", err)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, points.ErrFrozen),
		errors.Is(err, session.ErrRunning),
		errors.Is(err, session.ErrNotIdle),
		errors.Is(err, session.ErrNotRunning),
		errors.Is(err, render.ErrInvalidRoute):
		return http.StatusConflict
	case errors.Is(err, session.ErrConfigure):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, points.ErrTooFewPoints),
		errors.Is(err, points.ErrIndexOutOfRange),
		errors.Is(err, config.ErrInvalidSettings):
		return http.StatusBadRequest
	default:
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}

// pathInt parses a numeric path value.
func pathInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return v, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON: " + err.Error())
	}
	return nil
}
