package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/gatherings/internal/api/problem"
	"github.com/Togather-Foundation/gatherings/internal/auth"
	"github.com/Togather-Foundation/gatherings/internal/domain/access"
	"github.com/Togather-Foundation/gatherings/internal/domain/events"
	"github.com/Togather-Foundation/gatherings/internal/domain/reviews"
	"github.com/Togather-Foundation/gatherings/internal/domain/rsvps"
	"github.com/Togather-Foundation/gatherings/internal/domain/users"
	"github.com/Togather-Foundation/gatherings/internal/validation"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads a JSON object body into dst. An empty body leaves dst
// untouched so that field validation reports what is missing.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return malformedBody(err)
	}
	if dec.More() {
		return malformedBody(errors.New("unexpected data after JSON object"))
	}
	return nil
}

type malformedBodyError struct {
	err error
}

func (e malformedBodyError) Error() string {
	return fmt.Sprintf("JSON parse error - %v", e.err)
}

func (e malformedBodyError) Unwrap() error {
	return e.err
}

func malformedBody(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return validation.New(typeErr.Field, fmt.Sprintf("Expected a value of type %s.", typeErr.Type))
	}
	return malformedBodyError{err: err}
}

func pathParam(r *http.Request, key string) string {
	return strings.TrimSpace(r.PathValue(key))
}

// writeError maps domain and transport errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	if fields, ok := validation.As(err); ok {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env,
			problem.WithErrors(fields))
		return
	}

	var filterErr events.FilterError
	if errors.As(err, &filterErr) {
		opts := []problem.Option{}
		if filterErr.Field != "" {
			opts = append(opts, problem.WithErrors(map[string]string{filterErr.Field: filterErr.Message}))
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env, opts...)
		return
	}

	var malformed malformedBodyError
	if errors.As(err, &malformed) {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Malformed request body", err, env)
		return
	}

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypePayloadTooLarge, "Request body too large", err, env)
	case errors.Is(err, events.ErrNotFound),
		errors.Is(err, rsvps.ErrNotFound),
		errors.Is(err, reviews.ErrNotFound),
		errors.Is(err, users.ErrUserNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, env)
	case errors.Is(err, access.ErrUnauthenticated),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, users.ErrInvalidCredentials):
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, env)
	case errors.Is(err, access.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Forbidden", err, env,
			problem.WithDetail("You do not have permission to perform this action."))
	case errors.Is(err, users.ErrUsernameTaken):
		problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Conflict", err, env,
			problem.WithErrors(map[string]string{"username": "A user with that username already exists."}))
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, env)
	}
}
