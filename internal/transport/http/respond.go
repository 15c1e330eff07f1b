// Package httptransport is the admin console API. Handlers stay thin: decode,
// delegate to a service, translate the result.
package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "regnotify/pkg/domain-errors"
	"regnotify/pkg/sentinel"
)

// WriteJSON writes a success envelope.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError translates domain and sentinel errors into the console's JSON
// error envelope.
func WriteError(w http.ResponseWriter, err error) {
	code := codeFor(err)
	message := "Internal server error"
	var de *dErrors.Error
	if errors.As(err, &de) {
		message = de.Message
	} else {
		switch code {
		case dErrors.CodeNotFound:
			message = "Not found"
		case dErrors.CodeUnauthorized:
			message = "Unauthorized"
		case dErrors.CodeUnavailable:
			message = "Service temporarily unavailable"
		}
	}

	WriteJSON(w, dErrors.ToHTTPStatus(code), map[string]any{
		"success": false,
		"message": message,
	})
}

func codeFor(err error) dErrors.Code {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.CodeNotFound
	case errors.Is(err, sentinel.ErrUnauthorized):
		return dErrors.CodeUnauthorized
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, sentinel.ErrAlreadySent),
		errors.Is(err, sentinel.ErrLocked):
		return dErrors.CodeConflict
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.CodeUnavailable
	}
	return dErrors.CodeOf(err)
}

// DecodeJSON decodes a request body, rejecting unknown shapes loudly enough
// for the console to show a useful message.
func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "Invalid request body")
	}
	return nil
}
