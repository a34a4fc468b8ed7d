package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"shiftdesk/backend/internal/domain"
	"shiftdesk/backend/internal/money"
)

var errPayoutName = errors.New("name required for a payout")

// ParseClosingInputs validates the manually entered closing figures. Blank
// terminal, fuel and salary amounts mean zero; counted cash is mandatory.
// Every failure is an *domain.InputError naming the field.
func ParseClosingInputs(req domain.ShiftCloseRequest) (domain.ClosingInputs, error) {
	var in domain.ClosingInputs
	var err error

	if in.TerminalBalance, err = parseAmount("terminal_balance", req.TerminalBalance, true); err != nil {
		return domain.ClosingInputs{}, err
	}
	if in.FuelExpense, err = parseAmount("fuel_expense", req.FuelExpense, true); err != nil {
		return domain.ClosingInputs{}, err
	}

	for i, line := range req.Salaries {
		field := fmt.Sprintf("salaries[%d]", i)
		amount, err := parseAmount(field+".amount", line.Amount, true)
		if err != nil {
			return domain.ClosingInputs{}, err
		}
		name := strings.TrimSpace(line.Name)
		if name == "" {
			if amount.IsZero() {
				continue
			}
			return domain.ClosingInputs{}, domain.NewInputError(field+".name", errPayoutName)
		}
		in.Salaries = append(in.Salaries, domain.SalaryPayout{
			EmployeeID:  strings.TrimSpace(line.EmployeeID),
			Name:        name,
			Amount:      amount,
			SaveDefault: line.SaveDefault,
		})
	}

	if in.CountedCash, err = parseAmount("counted_cash", req.CountedCash, false); err != nil {
		return domain.ClosingInputs{}, err
	}
	in.Notes = strings.TrimSpace(req.Notes)
	return in, nil
}

func parseAmount(field string, raw string, optional bool) (decimal.Decimal, error) {
	parse := money.Parse
	if optional {
		parse = money.ParseOptional
	}
	v, err := parse(raw)
	if err != nil {
		return decimal.Zero, domain.NewInputError(field, err)
	}
	if err := money.NonNegative(v); err != nil {
		return decimal.Zero, domain.NewInputError(field, err)
	}
	return v, nil
}

// Reconcile balances the drawer:
//
//	expected    = initial + incomeCash - terminal - fuel - salaries - expenseCash
//	discrepancy = counted - expected
//
// Card income is reported but never enters the drawer equation. Nothing is
// rounded here.
func Reconcile(initialCash decimal.Decimal, sub domain.Subtotals, in domain.ClosingInputs) domain.ReconciliationReport {
	salaries := in.SalaryPayments()
	expected := initialCash.
		Add(sub.IncomeCash).
		Sub(in.TerminalBalance).
		Sub(in.FuelExpense).
		Sub(salaries).
		Sub(sub.ExpenseCash)

	return domain.ReconciliationReport{
		Subtotals:       sub,
		InitialCash:     initialCash,
		TerminalBalance: in.TerminalBalance,
		FuelExpense:     in.FuelExpense,
		SalaryPayments:  salaries,
		ExpectedCash:    expected,
		CountedCash:     in.CountedCash,
		Discrepancy:     in.CountedCash.Sub(expected),
		CardVariance:    in.TerminalBalance.Sub(sub.IncomeCard),
	}
}

// Closing copies the report's figures into the attributes persisted on the
// shift.
func Closing(report domain.ReconciliationReport, in domain.ClosingInputs) domain.ShiftClosing {
	categories := make([]domain.CategoryTotal, len(report.ExpensesByCategory))
	copy(categories, report.ExpensesByCategory)
	salaries := make([]domain.SalaryPayout, len(in.Salaries))
	copy(salaries, in.Salaries)

	return domain.ShiftClosing{
		CashBalance:       report.CountedCash,
		CardBalance:       report.TerminalBalance,
		FuelExpense:       report.FuelExpense,
		SalaryPayments:    report.SalaryPayments,
		CashExpenses:      report.ExpenseCash,
		TransferExpenses:  report.ExpenseTransfer,
		CashRevenue:       report.IncomeCash,
		CardRevenue:       report.IncomeCard,
		TotalRevenue:      report.IncomeCash.Add(report.IncomeCard),
		TotalDiscounts:    report.TotalDiscounts,
		ExpectedCash:      report.ExpectedCash,
		Discrepancy:       report.Discrepancy,
		ExpenseCategories: categories,
		Salaries:          salaries,
		Notes:             in.Notes,
	}
}

// ReportFromClosing rebuilds the report of an already closed shift from its
// persisted attributes. Order counts and warnings are not persisted and come
// back empty.
func ReportFromClosing(shift domain.Shift) (domain.ReconciliationReport, bool) {
	if shift.Closing == nil {
		return domain.ReconciliationReport{}, false
	}
	c := shift.Closing
	categories := make([]domain.CategoryTotal, len(c.ExpenseCategories))
	copy(categories, c.ExpenseCategories)

	return domain.ReconciliationReport{
		Subtotals: domain.Subtotals{
			IncomeCash:         c.CashRevenue,
			IncomeCard:         c.CardRevenue,
			ExpenseCash:        c.CashExpenses,
			ExpenseTransfer:    c.TransferExpenses,
			TotalDiscounts:     c.TotalDiscounts,
			ExpensesByCategory: categories,
		},
		InitialCash:     shift.InitialCash,
		TerminalBalance: c.CardBalance,
		FuelExpense:     c.FuelExpense,
		SalaryPayments:  c.SalaryPayments,
		ExpectedCash:    c.ExpectedCash,
		CountedCash:     c.CashBalance,
		Discrepancy:     c.Discrepancy,
		CardVariance:    c.CardBalance.Sub(c.CardRevenue),
	}, true
}
