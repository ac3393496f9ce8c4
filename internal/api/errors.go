package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dewansh/dewhome-core/internal/auth"
	"github.com/dewansh/dewhome-core/internal/automation"
	"github.com/dewansh/dewhome-core/internal/device"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// messageResponse is the body of most successful mutations.
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="dewhome"`)
	writeError(w, http.StatusUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound),
		errors.Is(err, automation.ErrActionNotFound):
		return http.StatusNotFound

	case errors.Is(err, device.ErrPinInUse),
		errors.Is(err, device.ErrDeviceInUse),
		errors.Is(err, automation.ErrActionRunning):
		return http.StatusConflict

	case errors.Is(err, device.ErrInvalidName),
		errors.Is(err, device.ErrInvalidIcon),
		errors.Is(err, device.ErrInvalidPin),
		errors.Is(err, device.ErrInvalidState),
		errors.Is(err, device.ErrInvalidCommand),
		errors.Is(err, automation.ErrInvalidName),
		errors.Is(err, automation.ErrInvalidType),
		errors.Is(err, automation.ErrInvalidSchedule),
		errors.Is(err, automation.ErrNoDeviceActions),
		errors.Is(err, automation.ErrInvalidDeviceAction),
		errors.Is(err, automation.ErrUnknownDevice):
		return http.StatusBadRequest

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenInvalid):
		return http.StatusUnauthorized

	case errors.Is(err, automation.ErrSchedulerStopped):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes err with the status statusForError picks.
// Internal errors are logged and hidden from the client.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
		writeInternalError(w)
		return
	}
	writeError(w, status, err.Error())
}
