package reconcile

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftdesk/backend/internal/domain"
)

var opened = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func scope() ShiftScope {
	return ShiftScope{ShiftID: "shf-1", OpenedAt: opened}
}

func order(id string, payment string, status string, total string) domain.Transaction {
	return domain.SaleTransaction(domain.Order{
		ID:             id,
		ShiftID:        "shf-1",
		OrderType:      domain.OrderTypeHall,
		PaymentType:    payment,
		OriginalAmount: amt(total),
		TotalAmount:    amt(total),
		Status:         status,
		Timestamp:      opened.Add(time.Hour),
	})
}

func expense(id string, payment string, typeID string, typeName string, amount string) domain.Transaction {
	return domain.ExpenseTransaction(domain.Expense{
		ID:              id,
		ShiftID:         "shf-1",
		ExpenseTypeID:   typeID,
		ExpenseTypeName: typeName,
		Amount:          amt(amount),
		PaymentType:     payment,
		Timestamp:       opened.Add(2 * time.Hour),
	})
}

func TestClassifyNormalizesEnums(t *testing.T) {
	tx := order("ord-1", "CARD", "weird", "10")
	tx.Order.OrderType = "drive-thru"

	c := Classify(tx, scope())
	assert.True(t, c.Belongs)
	assert.False(t, c.Counts, "unknown status falls back to pending")
	assert.Equal(t, domain.PaymentTransfer, c.PaymentType)
	assert.Equal(t, domain.OrderTypeDelivery, c.OrderType)
	assert.Equal(t, domain.OrderStatusPending, c.Status)
	assert.NoError(t, c.Rejected)

	c = Classify(order("ord-2", "crypto", domain.OrderStatusPaid, "10"), scope())
	assert.Equal(t, domain.PaymentCash, c.PaymentType)
	assert.True(t, c.Counts)
}

func TestClassifyMembership(t *testing.T) {
	other := order("ord-x", domain.PaymentCash, domain.OrderStatusPaid, "10")
	other.Order.ShiftID = "shf-2"
	assert.False(t, Classify(other, scope()).Belongs)

	// Timestamp inside the window does not override an explicit shift id.
	other.Order.Timestamp = opened.Add(time.Minute)
	assert.False(t, Classify(other, scope()).Belongs)

	legacy := order("ord-l", domain.PaymentCash, domain.OrderStatusPaid, "10")
	legacy.Order.ShiftID = ""
	assert.True(t, Classify(legacy, scope()).Belongs)

	legacy.Order.Timestamp = opened.Add(-time.Second)
	assert.False(t, Classify(legacy, scope()).Belongs)

	closed := opened.Add(3 * time.Hour)
	s := ShiftScope{ShiftID: "shf-1", OpenedAt: opened, ClosedAt: &closed}
	legacy.Order.Timestamp = closed
	assert.False(t, Classify(legacy, s).Belongs)
	legacy.Order.Timestamp = closed.Add(-time.Second)
	assert.True(t, Classify(legacy, s).Belongs)
}

func TestClassifyRejectsUnusableAmounts(t *testing.T) {
	negative := expense("exp-1", domain.PaymentCash, "", "Fuel", "-5")
	c := Classify(negative, scope())
	assert.ErrorIs(t, c.Rejected, domain.ErrInvalidAmount)
	assert.False(t, c.Counts)

	decoded := order("ord-1", domain.PaymentCash, domain.OrderStatusPaid, "0")
	decoded.DecodeError = "total_amount: amount is not numeric"
	c = Classify(decoded, scope())
	assert.ErrorIs(t, c.Rejected, domain.ErrInvalidAmount)
	assert.False(t, c.Counts)

	c = Classify(domain.Transaction{Kind: domain.TransactionKindSale}, scope())
	assert.Error(t, c.Rejected)
}

func TestAggregateScenario(t *testing.T) {
	txs := []domain.Transaction{
		order("ord-1", domain.PaymentCash, domain.OrderStatusPaid, "500"),
		order("ord-2", domain.PaymentTransfer, domain.OrderStatusPaid, "300"),
		expense("exp-1", domain.PaymentCash, "et-groceries", "", "100"),
	}
	types := []domain.ExpenseType{{ID: "et-groceries", Name: "Groceries"}}

	sub := Aggregate(scope(), txs, types)
	assert.Equal(t, "500", sub.IncomeCash.String())
	assert.Equal(t, "300", sub.IncomeCard.String())
	assert.Equal(t, "100", sub.ExpenseCash.String())
	assert.True(t, sub.ExpenseTransfer.IsZero())
	require.Len(t, sub.ExpensesByCategory, 1)
	assert.Equal(t, "Groceries", sub.ExpensesByCategory[0].Name)
	assert.Equal(t, 2, sub.PaidOrders)
	assert.Equal(t, 1, sub.ExpenseCount)

	in := domain.ClosingInputs{TerminalBalance: amt("300"), CountedCash: amt("1400")}
	report := Reconcile(amt("1000"), sub, in)
	assert.Equal(t, "1100", report.ExpectedCash.String())
	assert.Equal(t, "300", report.Discrepancy.String())
	assert.Equal(t, domain.VerdictSurplus, Verdict(report.Discrepancy))
	assert.True(t, report.CardVariance.IsZero())
}

func TestAggregateCancelledOrderContributesNothing(t *testing.T) {
	sub := Aggregate(scope(), []domain.Transaction{
		order("ord-1", domain.PaymentCash, domain.OrderStatusCancelled, "1000"),
		order("ord-2", domain.PaymentCash, domain.OrderStatusPending, "250"),
	}, nil)

	assert.True(t, sub.IncomeCash.IsZero())
	assert.True(t, sub.IncomeCard.IsZero())
	assert.Equal(t, 1, sub.CancelledOrders)
	assert.Equal(t, 1, sub.PendingOrders)
	assert.Zero(t, sub.PaidOrders)
}

func TestAggregateDiscount(t *testing.T) {
	tx := domain.SaleTransaction(domain.Order{
		ID:              "ord-1",
		ShiftID:         "shf-1",
		PaymentType:     domain.PaymentCash,
		DiscountPercent: amt("10"),
		OriginalAmount:  amt("1000"),
		TotalAmount:     amt("900"),
		Status:          domain.OrderStatusPaid,
	})

	sub := Aggregate(scope(), []domain.Transaction{tx}, nil)
	assert.Equal(t, "900", sub.IncomeCash.String())
	assert.Equal(t, "100", sub.TotalDiscounts.String())
}

func TestAggregateSkipsRejectedWithWarning(t *testing.T) {
	bad := expense("exp-bad", domain.PaymentCash, "", "Fuel", "-20")
	foreign := expense("exp-foreign", domain.PaymentCash, "", "Fuel", "-20")
	foreign.Expense.ShiftID = "shf-9"

	sub := Aggregate(scope(), []domain.Transaction{
		bad,
		foreign,
		expense("exp-ok", domain.PaymentTransfer, "", "Fuel", "20"),
	}, nil)

	require.Len(t, sub.Warnings, 1)
	assert.Equal(t, "exp-bad", sub.Warnings[0].TransactionID)
	assert.Equal(t, domain.TransactionKindExpense, sub.Warnings[0].Kind)
	assert.Equal(t, "20", sub.ExpenseTransfer.String())
	assert.Equal(t, 1, sub.ExpenseCount)
}

func TestAggregateCategoryOrderAndFallbacks(t *testing.T) {
	types := []domain.ExpenseType{{ID: "et-1", Name: "Packaging"}}
	sub := Aggregate(scope(), []domain.Transaction{
		expense("e1", domain.PaymentCash, "et-gone", "Groceries", "10"),
		expense("e2", domain.PaymentCash, "et-1", "", "5"),
		expense("e3", domain.PaymentTransfer, "et-gone", "", "7"),
		expense("e4", domain.PaymentTransfer, "et-1", "Groceries", "2.5"),
	}, types)

	require.Len(t, sub.ExpensesByCategory, 3)
	assert.Equal(t, "Groceries", sub.ExpensesByCategory[0].Name)
	assert.Equal(t, "12.5", sub.ExpensesByCategory[0].Amount.String())
	assert.Equal(t, "Packaging", sub.ExpensesByCategory[1].Name)
	assert.Equal(t, domain.UncategorizedExpense, sub.ExpensesByCategory[2].Name)
}

func TestAggregateTotalsMatchSourceRecords(t *testing.T) {
	txs := []domain.Transaction{
		order("o1", domain.PaymentCash, domain.OrderStatusPaid, "12.34"),
		order("o2", "card", domain.OrderStatusPaid, "0.01"),
		order("o3", domain.PaymentTransfer, domain.OrderStatusCancelled, "99"),
		order("o4", domain.PaymentCash, domain.OrderStatusPending, "7"),
		order("o5", "", domain.OrderStatusPaid, "100.005"),
		expense("e1", domain.PaymentCash, "", "A", "3.333"),
		expense("e2", domain.PaymentTransfer, "", "B", "1.1"),
		expense("e3", "bogus", "", "A", "0.667"),
	}

	paid := decimal.Zero
	expenses := decimal.Zero
	for _, tx := range txs {
		if tx.Order != nil && tx.Order.Status == domain.OrderStatusPaid {
			paid = paid.Add(tx.Order.TotalAmount)
		}
		if tx.Expense != nil {
			expenses = expenses.Add(tx.Expense.Amount)
		}
	}

	first := Aggregate(scope(), txs, nil)
	second := Aggregate(scope(), txs, nil)
	assert.Equal(t, first, second)

	assert.True(t, first.IncomeCash.Add(first.IncomeCard).Equal(paid))
	assert.True(t, first.ExpenseCash.Add(first.ExpenseTransfer).Equal(expenses))

	byCategory := decimal.Zero
	for _, c := range first.ExpensesByCategory {
		byCategory = byCategory.Add(c.Amount)
	}
	assert.True(t, byCategory.Equal(expenses))
	assert.Equal(t, "4", first.ExpenseCash.String())
}

func TestParseClosingInputs(t *testing.T) {
	in, err := ParseClosingInputs(domain.ShiftCloseRequest{
		TerminalBalance: "300",
		Salaries: []domain.SalaryPayoutRequest{
			{EmployeeID: "emp-1", Name: "Anna", Amount: "150.50", SaveDefault: true},
			{Name: "", Amount: ""},
			{Name: "Oleg", Amount: "49.5"},
		},
		CountedCash: "1400",
		Notes:       "  short day ",
	})
	require.NoError(t, err)
	assert.True(t, in.FuelExpense.IsZero())
	require.Len(t, in.Salaries, 2)
	assert.True(t, in.Salaries[0].SaveDefault)
	assert.Equal(t, "200", in.SalaryPayments().String())
	assert.Equal(t, "short day", in.Notes)

	cases := []struct {
		name  string
		req   domain.ShiftCloseRequest
		field string
	}{
		{"counted cash missing", domain.ShiftCloseRequest{}, "counted_cash"},
		{"terminal not numeric", domain.ShiftCloseRequest{TerminalBalance: "abc", CountedCash: "1"}, "terminal_balance"},
		{"fuel negative", domain.ShiftCloseRequest{FuelExpense: "-1", CountedCash: "1"}, "fuel_expense"},
		{"counted NaN", domain.ShiftCloseRequest{CountedCash: "NaN"}, "counted_cash"},
		{"salary not numeric", domain.ShiftCloseRequest{CountedCash: "1", Salaries: []domain.SalaryPayoutRequest{{Name: "A", Amount: "x"}}}, "salaries[0].amount"},
		{"salary unnamed", domain.ShiftCloseRequest{CountedCash: "1", Salaries: []domain.SalaryPayoutRequest{{Amount: "10"}}}, "salaries[0].name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseClosingInputs(tc.req)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
			var inputErr *domain.InputError
			require.True(t, errors.As(err, &inputErr))
			assert.Equal(t, tc.field, inputErr.Field)
		})
	}
}

func TestReconcileIsDeterministicAndUnrounded(t *testing.T) {
	sub := domain.Subtotals{IncomeCash: amt("0.333"), ExpenseCash: amt("0.001"), IncomeCard: amt("5")}
	in := domain.ClosingInputs{
		TerminalBalance: amt("4.5"),
		FuelExpense:     amt("0.1"),
		Salaries:        []domain.SalaryPayout{{Name: "A", Amount: amt("0.2")}},
		CountedCash:     amt("10"),
	}

	a := Reconcile(amt("15"), sub, in)
	b := Reconcile(amt("15"), sub, in)
	assert.Equal(t, a, b)
	assert.Equal(t, "10.532", a.ExpectedCash.String())
	assert.Equal(t, "-0.532", a.Discrepancy.String())
	assert.Equal(t, "-0.5", a.CardVariance.String())
	assert.Equal(t, domain.VerdictShortage, Verdict(a.Discrepancy))
}

func TestVerdictUsesRoundedValue(t *testing.T) {
	assert.Equal(t, domain.VerdictBalanced, Verdict(amt("0")))
	assert.Equal(t, domain.VerdictBalanced, Verdict(amt("0.004")))
	assert.Equal(t, domain.VerdictBalanced, Verdict(amt("-0.004")))
	assert.Equal(t, domain.VerdictSurplus, Verdict(amt("0.005")))
	assert.Equal(t, domain.VerdictShortage, Verdict(amt("-0.01")))
}

func TestSummarizeAndText(t *testing.T) {
	closedAt := opened.Add(9 * time.Hour)
	in := domain.ClosingInputs{
		TerminalBalance: amt("300"),
		Salaries:        []domain.SalaryPayout{{Name: "Anna", Amount: amt("0")}},
		CountedCash:     amt("1100"),
		Notes:           "ok",
	}
	sub := domain.Subtotals{
		IncomeCash:         amt("500"),
		IncomeCard:         amt("300"),
		ExpenseCash:        amt("100"),
		ExpensesByCategory: []domain.CategoryTotal{{Name: "Groceries", Amount: amt("100")}},
	}
	report := Reconcile(amt("1000"), sub, in)
	shift := domain.Shift{
		ID:           "shf-1",
		EmployeeName: "Anna",
		StartTime:    opened,
		EndTime:      &closedAt,
		InitialCash:  amt("1000"),
		Status:       domain.ShiftStatusClosed,
	}
	closing := Closing(report, in)
	shift.Closing = &closing

	summary := Summarize(shift, "", report)
	assert.Equal(t, "Anna", summary.CashierName)
	assert.Equal(t, "1100.00", summary.ExpectedCash)
	assert.Equal(t, "0.00", summary.Discrepancy)
	assert.Equal(t, domain.VerdictBalanced, summary.Verdict)
	assert.Equal(t, closedAt, summary.EndedAt)
	require.Len(t, summary.Categories, 1)
	require.Len(t, summary.Salaries, 1)

	rebuilt, ok := ReportFromClosing(shift)
	require.True(t, ok)
	assert.Equal(t, summary, Summarize(shift, "", rebuilt))

	text := Text(summary)
	assert.True(t, strings.Contains(text, "Cashier: Anna"))
	assert.True(t, strings.Contains(text, "Groceries"))
	assert.True(t, strings.Contains(text, "Result: BALANCED"))
}
