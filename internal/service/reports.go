package service

import (
	"context"
	"strings"
	"time"

	"shiftdesk/backend/internal/domain"
	"shiftdesk/backend/internal/reconcile"
)

const dateLayout = "2006-01-02"

// DailySummary folds every shift that started on date (UTC, YYYY-MM-DD,
// today when blank) through the same aggregator the close uses. Cash in
// drawer sums the counted cash of the day's closed shifts.
func (s *Service) DailySummary(ctx context.Context, date string) (domain.DailySummary, error) {
	from, err := s.parseDay(date)
	if err != nil {
		return domain.DailySummary{}, err
	}
	to := from.Add(24 * time.Hour)

	shifts, err := s.repo.ListShifts(ctx, domain.ShiftFilter{From: from, To: to, Limit: maxShiftListLimit})
	if err != nil {
		return domain.DailySummary{}, err
	}
	expenseTypes, err := s.repo.ListExpenseTypes(ctx)
	if err != nil {
		return domain.DailySummary{}, err
	}

	summary := domain.DailySummary{Date: from.Format(dateLayout), Shifts: len(shifts)}
	for _, shift := range shifts {
		txs, err := s.repo.ListTransactionsForShift(ctx, shift.ID)
		if err != nil {
			return domain.DailySummary{}, err
		}
		sub := reconcile.Aggregate(reconcile.ScopeOf(shift), txs, expenseTypes)
		for _, w := range sub.Warnings {
			s.log.WithField("shift_id", shift.ID).WithField("transaction_id", w.TransactionID).Warn("transaction skipped: " + w.Reason)
		}

		summary.IncomeCash = summary.IncomeCash.Add(sub.IncomeCash)
		summary.IncomeCard = summary.IncomeCard.Add(sub.IncomeCard)
		summary.ExpenseCash = summary.ExpenseCash.Add(sub.ExpenseCash)
		summary.ExpenseTransfer = summary.ExpenseTransfer.Add(sub.ExpenseTransfer)
		summary.PaidOrders += sub.PaidOrders
		if shift.Closing != nil {
			summary.CashInDrawer = summary.CashInDrawer.Add(shift.Closing.CashBalance)
		}
	}
	summary.TotalSales = summary.IncomeCash.Add(summary.IncomeCard)
	summary.TotalExpenses = summary.ExpenseCash.Add(summary.ExpenseTransfer)
	return summary, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().Add(-24 * time.Hour)
	} else {
		day, err := s.parseDay(date)
		if err != nil {
			return nil, err
		}
		from = day
	}
	return s.repo.ListAuditLogs(ctx, from, from.Add(24*time.Hour), limit)
}

func (s *Service) parseDay(date string) (time.Time, error) {
	if strings.TrimSpace(date) == "" {
		now := s.now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	parsed, err := time.Parse(dateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, domain.NewInputError("date", err)
	}
	return parsed.UTC(), nil
}
