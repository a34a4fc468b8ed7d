package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"shiftdesk/backend/internal/domain"
)

func (a *API) handleEmployees(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		includeInactive := strings.EqualFold(r.URL.Query().Get("include_inactive"), "true")
		employees, err := a.service.ListEmployees(r.Context(), includeInactive)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"employees": employees})
	case http.MethodPost:
		if !requireAdmin(w, r) {
			return
		}
		var req domain.EmployeeCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		employee, err := a.service.CreateEmployee(r.Context(), req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, employee)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleEmployeeActions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r.URL.Path, "/api/v1/employees/", "")
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown employee path"))
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req domain.EmployeeUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		employee, err := a.service.UpdateEmployee(r.Context(), id, req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, employee)
	case http.MethodDelete:
		if err := a.service.DeleteEmployee(r.Context(), id); err != nil {
			a.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleExpenseTypes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		types, err := a.service.ListExpenseTypes(r.Context())
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"expense_types": types})
	case http.MethodPost:
		if !requireAdmin(w, r) {
			return
		}
		var req domain.ExpenseTypeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		created, err := a.service.CreateExpenseType(r.Context(), req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleExpenseTypeActions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r.URL.Path, "/api/v1/expense-types/", "")
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown expense type path"))
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req domain.ExpenseTypeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		renamed, err := a.service.RenameExpenseType(r.Context(), id, req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, renamed)
	case http.MethodDelete:
		if err := a.service.DeleteExpenseType(r.Context(), id); err != nil {
			a.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}
