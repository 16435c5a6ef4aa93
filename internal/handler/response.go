package handler

// RESPONSE HELPERS:
// Every JSON body this API sends goes through writeJSON or writeError so the
// envelope stays consistent:
//
//	success: {"success": true, ...payload}
//	failure: {"success": false, "error": "human readable message"}
//
// Clients only ever need to look at "success" and, when it is false, show
// "error" verbatim.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/velric/velric-server/internal/apperror"
)

// ErrorResponse is the failure envelope returned by all API endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
}

const internalErrorMessage = "An internal error occurred"

// maxBodyBytes caps request bodies. Submissions carry code, so this is a
// little above service.MaxCodeLength + service.MaxSubmissionTextLength.
const maxBodyBytes = 1 << 20

// writeJSON sends data with the given status. Headers must be set before
// WriteHeader; anything after that is ignored by net/http.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already out; logging is all that is left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status.
//
// errors.Is walks the wrap chain, so a service returning
// fmt.Errorf("...: %w", apperror.NotFound(...)) still maps to 404.
// Anything that is not an *apperror.AppError is a 500 with a generic
// message; raw errors may carry SQL or file paths.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: internalErrorMessage})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
	}

	msg := appErr.Message
	if status == http.StatusInternalServerError {
		msg = internalErrorMessage
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Field: appErr.Field})
}

// decodeJSON reads a size-limited JSON body into dst. A malformed body is a
// validation error so writeError turns it into a 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("body", "request body is too large")
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}
