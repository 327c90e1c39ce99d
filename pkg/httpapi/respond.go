package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MattMyers204453/smashrank-api/pkg/auth"
	"github.com/MattMyers204453/smashrank-api/pkg/match"
	"github.com/MattMyers204453/smashrank-api/pkg/store"
)

// errorBody is the JSON error envelope the auth endpoints and the bearer
// middleware use.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// statusFor maps a domain error to its HTTP status. Anything unrecognized is
// an internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, match.ErrValidation), errors.Is(err, auth.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, match.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, match.ErrBusy),
		errors.Is(err, match.ErrInvalidState),
		errors.Is(err, match.ErrNotFound),
		errors.Is(err, auth.ErrUsernameTaken):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

const internalErrorMessage = "Something went wrong. Please try again."

// textError writes a domain error as a plain-text body, the convention for
// the match and pool endpoints. Internal errors are logged and masked.
func (s *Server) textError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeText(w, status, internalErrorMessage)
		return
	}
	writeText(w, status, err.Error())
}

// jsonError writes a domain error as an {"error": ...} body, the convention
// for the auth endpoints.
func (s *Server) jsonError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorBody{Error: internalErrorMessage})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// decodeBody reads a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
