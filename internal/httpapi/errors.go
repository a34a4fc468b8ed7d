package httpapi

import (
	"errors"
	"net/http"

	"shiftdesk/backend/internal/domain"
	"shiftdesk/backend/internal/store"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrShiftAlreadyOpen),
		errors.Is(err, domain.ErrNoActiveShift),
		errors.Is(err, domain.ErrShiftNotClosed),
		errors.Is(err, domain.ErrExpenseTypeInUse),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, store.ErrInvalidRecord):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errorBody masks 5xx details: the client only learns that something broke.
func (a *API) errorBody(r *http.Request, err error) (int, map[string]any) {
	status := statusFor(err)
	msg := err.Error()
	if status >= 500 {
		a.log.WithError(err).WithField("path", r.URL.Path).Error("internal error")
		msg = "internal server error"
	}
	body := map[string]any{"error": msg}

	var inputErr *domain.InputError
	if errors.As(err, &inputErr) {
		body["field"] = inputErr.Field
	}
	return status, body
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := a.errorBody(r, err)
	writeJSON(w, status, body)
}
