package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shiftdesk/backend/internal/domain"
	"shiftdesk/backend/internal/reconcile"
	"shiftdesk/backend/internal/service"
)

const shiftsPrefix = "/api/v1/shifts/"

func (a *API) handleShifts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	filter := domain.ShiftFilter{
		EmployeeID: q.Get("employee_id"),
		Status:     q.Get("status"),
		Limit:      parsePositiveLimit(q.Get("limit"), 50, 500),
	}
	var err error
	if filter.From, err = parseQueryTime(q.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("from: %w", err))
		return
	}
	if filter.To, err = parseQueryTime(q.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("to: %w", err))
		return
	}

	shifts, err := a.service.ListShifts(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shifts": shifts})
}

// handleShiftOpen opens a shift on POST and looks up an employee's open shift
// on GET. Cashiers act for themselves only.
func (a *API) handleShiftOpen(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		employeeID, ok := actingEmployee(w, r, r.URL.Query().Get("employee_id"))
		if !ok {
			return
		}
		shift, err := a.service.GetOpenShift(r.Context(), employeeID)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"shift": shift})
	case http.MethodPost:
		var req domain.ShiftOpenRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		employeeID, ok := actingEmployee(w, r, req.EmployeeID)
		if !ok {
			return
		}
		req.EmployeeID = employeeID

		resp, err := a.service.OpenShift(r.Context(), req)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

// actingEmployee defaults a cashier's requests to their own employee id and
// refuses requests made on behalf of someone else.
func actingEmployee(w http.ResponseWriter, r *http.Request, requested string) (string, bool) {
	requested = strings.TrimSpace(requested)
	actor, ok := service.ActorFromContext(r.Context())
	if !ok || actor.Role == domain.RoleAdmin {
		return requested, true
	}
	if requested == "" {
		return actor.Username, true
	}
	if requested != actor.Username {
		writeError(w, http.StatusForbidden, errors.New("cashiers can only act for themselves"))
		return "", false
	}
	return requested, true
}

func (a *API) handleShiftActions(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/close"):
		id, ok := pathID(path, shiftsPrefix, "/close")
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("unknown shift path"))
			return
		}
		a.handleShiftClose(w, r, id)
	case strings.HasSuffix(path, "/report"):
		id, ok := pathID(path, shiftsPrefix, "/report")
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("unknown shift path"))
			return
		}
		a.handleShiftReport(w, r, id)
	case strings.HasSuffix(path, "/transactions"):
		id, ok := pathID(path, shiftsPrefix, "/transactions")
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("unknown shift path"))
			return
		}
		a.handleShiftTransactions(w, r, id)
	default:
		id, ok := pathID(path, shiftsPrefix, "")
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("unknown shift path"))
			return
		}
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		resp, err := a.service.GetShift(r.Context(), id)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleShiftClose tells the client whether the shift is still open whenever
// the close fails, so a retry can be offered safely.
func (a *API) handleShiftClose(w http.ResponseWriter, r *http.Request, shiftID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ShiftCloseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "shift_still_open": true})
		return
	}

	resp, err := a.service.CloseShift(r.Context(), shiftID, req)
	if err != nil {
		status, body := a.errorBody(r, err)
		body["shift_still_open"] = !errors.Is(err, domain.ErrNoActiveShift)
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleShiftReport(w http.ResponseWriter, r *http.Request, shiftID string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	summary, err := a.service.GetShiftReport(r.Context(), shiftID)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))) {
	case "csv":
		body, err := summaryToCSV(summary)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"shift-report-%s.csv\"", summary.ShiftID))
		_, _ = w.Write([]byte(body))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(summaryToPrintableHTML(summary)))
	case "text", "txt":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(reconcile.Text(summary)))
	default:
		writeJSON(w, http.StatusOK, summary)
	}
}

func (a *API) handleShiftTransactions(w http.ResponseWriter, r *http.Request, shiftID string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := a.service.ListShiftTransactions(r.Context(), shiftID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseQueryTime accepts RFC 3339 timestamps or plain dates.
func parseQueryTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, errors.New("expected RFC 3339 time or YYYY-MM-DD")
	}
	return t.UTC(), nil
}
