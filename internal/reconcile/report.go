package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shiftdesk/backend/internal/domain"
	"shiftdesk/backend/internal/money"
)

// Verdict labels a discrepancy after rounding it to two places. The comparison
// is exact: 0.004 is balanced, 0.005 is a surplus.
func Verdict(discrepancy decimal.Decimal) string {
	switch money.Round(discrepancy).Sign() {
	case 0:
		return domain.VerdictBalanced
	case 1:
		return domain.VerdictSurplus
	default:
		return domain.VerdictShortage
	}
}

// Summarize builds the presentation payload of a closed shift.
func Summarize(shift domain.Shift, employeeName string, report domain.ReconciliationReport) domain.ShiftSummary {
	if strings.TrimSpace(employeeName) == "" {
		employeeName = shift.EmployeeName
	}
	summary := domain.ShiftSummary{
		ShiftID:          shift.ID,
		CashierName:      employeeName,
		StartedAt:        shift.StartTime,
		InitialCash:      money.Format(report.InitialCash),
		SalesCash:        money.Format(report.IncomeCash),
		SalesTransfer:    money.Format(report.IncomeCard),
		TotalDiscounts:   money.Format(report.TotalDiscounts),
		ExpensesCash:     money.Format(report.ExpenseCash),
		ExpensesTransfer: money.Format(report.ExpenseTransfer),
		TerminalBalance:  money.Format(report.TerminalBalance),
		FuelExpense:      money.Format(report.FuelExpense),
		SalaryPayments:   money.Format(report.SalaryPayments),
		Salaries:         []domain.SummaryLine{},
		Categories:       make([]domain.SummaryLine, 0, len(report.ExpensesByCategory)),
		ExpectedCash:     money.Format(report.ExpectedCash),
		CountedCash:      money.Format(report.CountedCash),
		Discrepancy:      money.Format(report.Discrepancy),
		Verdict:          Verdict(report.Discrepancy),
	}
	if shift.EndTime != nil {
		summary.EndedAt = *shift.EndTime
	}
	if shift.Closing != nil {
		for _, s := range shift.Closing.Salaries {
			summary.Salaries = append(summary.Salaries, domain.SummaryLine{Label: s.Name, Amount: money.Format(s.Amount)})
		}
		summary.Notes = shift.Closing.Notes
	}
	for _, c := range report.ExpensesByCategory {
		summary.Categories = append(summary.Categories, domain.SummaryLine{Label: c.Name, Amount: money.Format(c.Amount)})
	}
	return summary
}

// Text renders the summary as the plain text slip handed to printers.
func Text(s domain.ShiftSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SHIFT REPORT %s\n", s.ShiftID)
	fmt.Fprintf(&b, "Cashier: %s\n", s.CashierName)
	fmt.Fprintf(&b, "Opened: %s\n", formatTime(s.StartedAt))
	fmt.Fprintf(&b, "Closed: %s\n", formatTime(s.EndedAt))
	b.WriteString("\n")
	writeRow(&b, "Opening cash", s.InitialCash)
	writeRow(&b, "Sales (cash)", s.SalesCash)
	writeRow(&b, "Sales (transfer)", s.SalesTransfer)
	writeRow(&b, "Discounts", s.TotalDiscounts)
	writeRow(&b, "Expenses (cash)", s.ExpensesCash)
	writeRow(&b, "Expenses (transfer)", s.ExpensesTransfer)
	writeRow(&b, "Terminal", s.TerminalBalance)
	writeRow(&b, "Fuel", s.FuelExpense)
	writeRow(&b, "Salaries", s.SalaryPayments)
	for _, line := range s.Salaries {
		writeRow(&b, "  "+line.Label, line.Amount)
	}
	if len(s.Categories) > 0 {
		b.WriteString("\nExpenses by category\n")
		for _, line := range s.Categories {
			writeRow(&b, "  "+line.Label, line.Amount)
		}
	}
	b.WriteString("\n")
	writeRow(&b, "Expected in drawer", s.ExpectedCash)
	writeRow(&b, "Counted", s.CountedCash)
	writeRow(&b, "Difference", s.Discrepancy)
	fmt.Fprintf(&b, "Result: %s\n", verdictLabel(s.Verdict))
	if s.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", s.Notes)
	}
	return b.String()
}

func writeRow(b *strings.Builder, label string, amount string) {
	fmt.Fprintf(b, "%-24s %12s\n", label, amount)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func verdictLabel(verdict string) string {
	switch verdict {
	case domain.VerdictSurplus:
		return "SURPLUS"
	case domain.VerdictShortage:
		return "SHORTAGE"
	default:
		return "BALANCED"
	}
}
