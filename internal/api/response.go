package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/farmcost/internal/auth"
	"github.com/hyperengineering/farmcost/internal/store"
	"github.com/hyperengineering/farmcost/internal/types"
	"github.com/hyperengineering/farmcost/internal/validation"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Envelope messages shared by handlers and tests.
const (
	msgUnauthorized    = "Unauthorized"
	msgForbidden       = "Forbidden"
	msgRequiredFields  = "All fields are required"
	msgInvalidFields   = "Invalid field values"
	msgInvalidJSON     = "Invalid JSON body"
	msgNotFound        = "Resource not found"
	msgConflict        = "Duplicate entry"
	msgUnavailable     = "Database unavailable"
	msgInternal        = "Internal Server Error"
	msgInvalidLogin    = "Invalid credentials"
	msgLoginOK         = "Login successful"
	msgLoggedOut       = "Logged out"
	msgNotLoggedIn     = "No user logged in"
	msgUserAdded       = "User added successfully"
	msgUserDeleted     = "User deleted successfully"
	msgUnknownKind     = "Unknown reference kind"
	msgInvalidQueryArg = "Invalid query parameter"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// WriteError writes the error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, status int, message string) {
	WriteJSON(w, status, types.ErrorResponse{Status: statusError, Message: message})
}

// WriteValidationErrors writes a 400 error envelope with field errors.
func WriteValidationErrors(w http.ResponseWriter, r *http.Request, errs []validation.ValidationError) {
	message := msgInvalidFields
	for _, e := range errs {
		if e.Message == "is required" {
			message = msgRequiredFields
			break
		}
	}
	WriteJSON(w, http.StatusBadRequest, types.ErrorResponse{
		Status:  statusError,
		Message: message,
		Errors:  errs,
	})
}

// MapStoreError converts domain errors to error envelopes.
// Internal details are logged, never returned.
func MapStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *auth.InvalidInputError
	switch {
	case errors.As(err, &invalid):
		WriteValidationErrors(w, r, invalid.Errors)
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, msgNotFound)
	case errors.Is(err, store.ErrConflict):
		WriteError(w, r, http.StatusConflict, msgConflict)
	case errors.Is(err, store.ErrUnavailable):
		slog.Error("storage unavailable",
			"component", "api",
			"path", r.URL.Path,
			"error", err,
		)
		WriteError(w, r, http.StatusServiceUnavailable, msgUnavailable)
	default:
		slog.Error("request failed",
			"component", "api",
			"path", r.URL.Path,
			"error", err,
		)
		WriteError(w, r, http.StatusInternalServerError, msgInternal)
	}
}
