package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"shiftdesk/backend/internal/domain"
	"shiftdesk/backend/internal/money"
	"shiftdesk/backend/internal/reconcile"
	"shiftdesk/backend/internal/store"
	"shiftdesk/backend/internal/xid"
)

var (
	errEmployeeRequired = errors.New("employee id required")
	errEmployeeInactive = errors.New("employee is inactive")
	errAboveOpeningCap  = errors.New("above the opening cash limit")
)

const (
	defaultShiftListLimit = 50
	maxShiftListLimit     = 500
)

// OpenShift starts a shift for an active employee with the counted opening
// float. An employee can hold at most one open shift.
func (s *Service) OpenShift(ctx context.Context, req domain.ShiftOpenRequest) (domain.ShiftResponse, error) {
	employeeID := strings.TrimSpace(req.EmployeeID)
	if employeeID == "" {
		return domain.ShiftResponse{}, domain.NewInputError("employee_id", errEmployeeRequired)
	}

	initial, err := money.Parse(req.InitialCash)
	if err != nil {
		return domain.ShiftResponse{}, fmt.Errorf("%w: initial_cash: %v", domain.ErrInvalidAmount, err)
	}
	if err := money.NonNegative(initial); err != nil {
		return domain.ShiftResponse{}, fmt.Errorf("%w: initial_cash: %v", domain.ErrInvalidAmount, err)
	}
	if limit := s.policy.MaxInitialCash; limit.IsPositive() && initial.GreaterThan(limit) {
		return domain.ShiftResponse{}, fmt.Errorf("%w: initial_cash: %v", domain.ErrInvalidAmount, errAboveOpeningCap)
	}

	employee, err := s.repo.GetEmployee(ctx, employeeID)
	if err != nil {
		return domain.ShiftResponse{}, err
	}
	if !employee.Active {
		return domain.ShiftResponse{}, domain.NewInputError("employee_id", errEmployeeInactive)
	}

	unlock := s.locks.Lock("employee:" + employeeID)
	defer unlock()

	if _, err := s.repo.GetOpenShift(ctx, employeeID); err == nil {
		return domain.ShiftResponse{}, domain.ErrShiftAlreadyOpen
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.ShiftResponse{}, err
	}

	saved, err := s.repo.CreateShift(ctx, domain.Shift{
		ID:           xid.New("shift"),
		EmployeeID:   employeeID,
		EmployeeName: employee.Name,
		StartTime:    s.now(),
		InitialCash:  initial,
		Status:       domain.ShiftStatusOpen,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.ShiftResponse{}, domain.ErrShiftAlreadyOpen
		}
		return domain.ShiftResponse{}, err
	}

	s.logAudit(ctx, "shift_open", "shift", saved.ID, fmt.Sprintf("employee=%s,initial_cash=%s", employeeID, money.Format(initial)))
	s.log.WithFields(logrus.Fields{"shift_id": saved.ID, "employee_id": employeeID}).Info("shift opened")

	return domain.ShiftResponse{Shift: *saved}, nil
}

// CloseShift reconciles the drawer and closes the shift in one repository
// write. Input errors are reported before anything is locked; if the close
// fails for any reason the shift stays open.
func (s *Service) CloseShift(ctx context.Context, shiftID string, req domain.ShiftCloseRequest) (domain.ShiftCloseResponse, error) {
	shiftID = strings.TrimSpace(shiftID)
	if shiftID == "" {
		return domain.ShiftCloseResponse{}, domain.ErrNoActiveShift
	}

	in, err := reconcile.ParseClosingInputs(req)
	if err != nil {
		return domain.ShiftCloseResponse{}, err
	}

	unlock := s.locks.Lock("shift:" + shiftID)
	defer unlock()

	expenseTypes, err := s.repo.ListExpenseTypes(ctx)
	if err != nil {
		return domain.ShiftCloseResponse{}, err
	}

	closedAt := s.now()
	var report domain.ReconciliationReport
	closed, err := s.repo.CloseShift(ctx, shiftID, closedAt, func(shift domain.Shift, txs []domain.Transaction) (domain.ShiftClosing, error) {
		scope := reconcile.ScopeOf(shift)
		scope.ClosedAt = &closedAt
		report = reconcile.Reconcile(shift.InitialCash, reconcile.Aggregate(scope, txs, expenseTypes), in)
		return reconcile.Closing(report, in), nil
	})
	if err != nil {
		return domain.ShiftCloseResponse{}, noActiveShift(err)
	}

	entry := s.log.WithField("shift_id", closed.ID)
	for _, w := range report.Warnings {
		entry.WithFields(logrus.Fields{"transaction_id": w.TransactionID, "kind": w.Kind}).Warn("transaction skipped: " + w.Reason)
	}

	s.saveDefaultSalaries(ctx, in.Salaries)

	summary := reconcile.Summarize(*closed, s.employeeName(ctx, *closed), report)
	if err := s.reports.Set(ctx, closed.ID, &summary, s.policy.ReportCacheTTL); err != nil {
		entry.WithError(err).Warn("failed to cache shift report")
	}

	s.logAudit(ctx, "shift_close", "shift", closed.ID, fmt.Sprintf("expected=%s,counted=%s,discrepancy=%s",
		summary.ExpectedCash, summary.CountedCash, summary.Discrepancy))
	entry.WithFields(logrus.Fields{"discrepancy": summary.Discrepancy, "verdict": summary.Verdict}).Info("shift closed")

	return domain.ShiftCloseResponse{Shift: *closed, Report: report, Summary: summary}, nil
}

// saveDefaultSalaries remembers flagged payouts as the employee's default
// salary. The shift is already closed, so failures are only logged.
func (s *Service) saveDefaultSalaries(ctx context.Context, payouts []domain.SalaryPayout) {
	for _, p := range payouts {
		if !p.SaveDefault || p.EmployeeID == "" {
			continue
		}
		entry := s.log.WithField("employee_id", p.EmployeeID)
		employee, err := s.repo.GetEmployee(ctx, p.EmployeeID)
		if err != nil {
			entry.WithError(err).Warn("failed to load employee for default salary")
			continue
		}
		employee.DefaultSalary = p.Amount
		if _, err := s.repo.UpdateEmployee(ctx, *employee); err != nil {
			entry.WithError(err).Warn("failed to save default salary")
		}
	}
}

func (s *Service) employeeName(ctx context.Context, shift domain.Shift) string {
	if shift.EmployeeName != "" {
		return shift.EmployeeName
	}
	employee, err := s.repo.GetEmployee(ctx, shift.EmployeeID)
	if err != nil {
		return shift.EmployeeID
	}
	return employee.Name
}

// GetOpenShift returns the employee's open shift, or nil when there is none.
func (s *Service) GetOpenShift(ctx context.Context, employeeID string) (*domain.Shift, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return nil, domain.NewInputError("employee_id", errEmployeeRequired)
	}
	shift, err := s.repo.GetOpenShift(ctx, employeeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return shift, nil
}

func (s *Service) GetShift(ctx context.Context, id string) (domain.ShiftResponse, error) {
	shift, err := s.repo.GetShift(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.ShiftResponse{}, err
	}
	return domain.ShiftResponse{Shift: *shift}, nil
}

func (s *Service) ListShifts(ctx context.Context, filter domain.ShiftFilter) ([]domain.Shift, error) {
	filter.EmployeeID = strings.TrimSpace(filter.EmployeeID)
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	switch filter.Status {
	case "", domain.ShiftStatusOpen, domain.ShiftStatusClosed:
	default:
		return nil, domain.NewInputError("status", fmt.Errorf("unknown shift status %q", filter.Status))
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return nil, domain.NewInputError("to", errors.New("must be after from"))
	}
	if filter.Limit < 1 {
		filter.Limit = defaultShiftListLimit
	}
	if filter.Limit > maxShiftListLimit {
		filter.Limit = maxShiftListLimit
	}
	return s.repo.ListShifts(ctx, filter)
}

// GetShiftReport returns the summary of a closed shift, rebuilding it from
// the persisted closing attributes when the cache misses.
func (s *Service) GetShiftReport(ctx context.Context, shiftID string) (domain.ShiftSummary, error) {
	shiftID = strings.TrimSpace(shiftID)
	entry := s.log.WithField("shift_id", shiftID)

	cached, ok, err := s.reports.Get(ctx, shiftID)
	if err != nil {
		entry.WithError(err).Warn("report cache read failed")
	}
	if ok && cached != nil {
		return *cached, nil
	}

	shift, err := s.repo.GetShift(ctx, shiftID)
	if err != nil {
		return domain.ShiftSummary{}, err
	}
	report, closed := reconcile.ReportFromClosing(*shift)
	if !closed {
		return domain.ShiftSummary{}, domain.ErrShiftNotClosed
	}

	summary := reconcile.Summarize(*shift, s.employeeName(ctx, *shift), report)
	if err := s.reports.Set(ctx, shiftID, &summary, s.policy.ReportCacheTTL); err != nil {
		entry.WithError(err).Warn("failed to cache shift report")
	}
	return summary, nil
}

func (s *Service) ListShiftTransactions(ctx context.Context, shiftID string) (domain.ShiftTransactionsResponse, error) {
	shift, err := s.repo.GetShift(ctx, strings.TrimSpace(shiftID))
	if err != nil {
		return domain.ShiftTransactionsResponse{}, err
	}
	txs, err := s.repo.ListTransactionsForShift(ctx, shift.ID)
	if err != nil {
		return domain.ShiftTransactionsResponse{}, err
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return domain.ShiftTransactionsResponse{Shift: *shift, Transactions: txs}, nil
}
