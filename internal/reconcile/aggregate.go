package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"

	"shiftdesk/backend/internal/domain"
)

// Aggregate folds txs into the subtotals of the scoped shift in a single pass.
// Records of other shifts are ignored; rejected records of this shift are
// skipped and reported as warnings. Duplicates are counted as often as they
// appear.
func Aggregate(scope ShiftScope, txs []domain.Transaction, expenseTypes []domain.ExpenseType) domain.Subtotals {
	typeNames := make(map[string]string, len(expenseTypes))
	for _, et := range expenseTypes {
		typeNames[et.ID] = et.Name
	}

	sub := domain.Subtotals{
		IncomeCash:         decimal.Zero,
		IncomeCard:         decimal.Zero,
		ExpenseCash:        decimal.Zero,
		ExpenseTransfer:    decimal.Zero,
		TotalDiscounts:     decimal.Zero,
		ExpensesByCategory: []domain.CategoryTotal{},
	}
	categoryIndex := make(map[string]int)

	for _, tx := range txs {
		c := Classify(tx, scope)
		if !c.Belongs {
			continue
		}
		if c.Rejected != nil {
			sub.Warnings = append(sub.Warnings, domain.IntegrityWarning{
				TransactionID: tx.ID(),
				Kind:          c.Kind,
				Reason:        c.Rejected.Error(),
			})
			continue
		}

		switch c.Kind {
		case domain.TransactionKindSale:
			switch c.Status {
			case domain.OrderStatusCancelled:
				sub.CancelledOrders++
				continue
			case domain.OrderStatusPending:
				sub.PendingOrders++
				continue
			}
			sub.PaidOrders++
			if c.PaymentType == domain.PaymentTransfer {
				sub.IncomeCard = sub.IncomeCard.Add(c.Amount)
			} else {
				sub.IncomeCash = sub.IncomeCash.Add(c.Amount)
			}
			sub.TotalDiscounts = sub.TotalDiscounts.Add(c.Discount)
		case domain.TransactionKindExpense:
			sub.ExpenseCount++
			if c.PaymentType == domain.PaymentTransfer {
				sub.ExpenseTransfer = sub.ExpenseTransfer.Add(c.Amount)
			} else {
				sub.ExpenseCash = sub.ExpenseCash.Add(c.Amount)
			}

			name := categoryName(*tx.Expense, typeNames)
			idx, ok := categoryIndex[name]
			if !ok {
				idx = len(sub.ExpensesByCategory)
				categoryIndex[name] = idx
				sub.ExpensesByCategory = append(sub.ExpensesByCategory, domain.CategoryTotal{Name: name, Amount: decimal.Zero})
			}
			sub.ExpensesByCategory[idx].Amount = sub.ExpensesByCategory[idx].Amount.Add(c.Amount)
		}
	}

	return sub
}

// categoryName prefers the name captured when the expense was written, so a
// later rename or delete of the type does not move historical amounts.
func categoryName(expense domain.Expense, typeNames map[string]string) string {
	if name := strings.TrimSpace(expense.ExpenseTypeName); name != "" {
		return name
	}
	if name := strings.TrimSpace(typeNames[expense.ExpenseTypeID]); name != "" {
		return name
	}
	return domain.UncategorizedExpense
}
