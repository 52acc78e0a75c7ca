package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/job"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// statusFor maps an error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, escrow.ErrValidation),
		errors.Is(err, escrow.ErrUnknownQueue),
		errors.Is(err, escrow.ErrUnknownJobType):
		return http.StatusBadRequest
	case errors.Is(err, escrow.ErrEscrowNotFound),
		errors.Is(err, escrow.ErrMilestoneNotFound),
		errors.Is(err, escrow.ErrJobNotFound),
		errors.Is(err, escrow.ErrDLQNotFound):
		return http.StatusNotFound
	case errors.Is(err, escrow.ErrInvalidState),
		errors.Is(err, escrow.ErrConcurrencyConflict),
		errors.Is(err, escrow.ErrEscrowAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, escrow.ErrPreconditionFailed):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("encode response", slog.String("error", err.Error()))
	}
}

// writeError replies with the mapped status. Internal errors are logged and
// their detail is withheld from the client.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		msg = "internal error"
	}
	a.writeJSON(w, status, ErrorResponse{Error: msg})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", escrow.ErrValidation, err)
	}
	return nil
}

// page reads limit and offset query parameters.
func page(r *http.Request) (limit, offset int, err error) {
	limit = defaultPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			return 0, 0, fmt.Errorf("%w: limit must be a positive integer", escrow.ErrValidation)
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("%w: offset must be a non-negative integer", escrow.ErrValidation)
		}
	}
	return limit, offset, nil
}

func badState(s job.State) error {
	return fmt.Errorf("%w: unknown job state %q", escrow.ErrValidation, s)
}

func badID(kind string, err error) error {
	return fmt.Errorf("%w: invalid %s id: %v", escrow.ErrValidation, kind, err)
}
