package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Quraeshi99/NoorTime/internal/errs"
)

// APIError is the error body every non-2xx response carries.
type APIError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// RespondJSON writes a JSON body with the given status.
func RespondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

// RespondBadRequest reports a caller mistake.
func RespondBadRequest(w http.ResponseWriter, msg string) {
	RespondJSON(w, http.StatusBadRequest, APIError{Error: msg, Kind: "bad_request"})
}

// RespondError maps the error taxonomy onto HTTP statuses: NotFound 404,
// Conflict 409, Transient 503 (with Retry-After when known), everything
// else 500.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := http.StatusInternalServerError
	msg := "internal error"

	switch kind {
	case errs.NotFound:
		status = http.StatusNotFound
		msg = err.Error()
	case errs.Conflict:
		status = http.StatusConflict
		msg = err.Error()
	case errs.Transient:
		status = http.StatusServiceUnavailable
		msg = "upstream temporarily unavailable"
		if ra := errs.RetryAfterOf(err); ra > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(ra.Seconds())))
		}
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "kind", kind.String(), "err", err)
	}
	RespondJSON(w, status, APIError{Error: msg, Kind: kind.String()})
}
