// Package reconcile holds the pure shift accounting core: it classifies
// logged transactions, folds them into subtotals, balances the cash drawer and
// formats the closing summary. Nothing here touches storage or the clock.
package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shiftdesk/backend/internal/domain"
)

// ShiftScope is the window a transaction is matched against. ClosedAt is nil
// while the shift is open.
type ShiftScope struct {
	ShiftID  string
	OpenedAt time.Time
	ClosedAt *time.Time
}

func ScopeOf(shift domain.Shift) ShiftScope {
	return ShiftScope{ShiftID: shift.ID, OpenedAt: shift.StartTime, ClosedAt: shift.EndTime}
}

type Classification struct {
	Belongs     bool
	Counts      bool
	Kind        string
	PaymentType string
	OrderType   string
	Status      string
	Amount      decimal.Decimal
	Discount    decimal.Decimal
	Rejected    error
}

var errEmptyTransaction = errors.New("transaction carries neither order nor expense")

// Classify decides whether tx belongs to the scoped shift and whether it moves
// money. Malformed enum values are normalized; unusable amounts reject the
// record instead.
func Classify(tx domain.Transaction, scope ShiftScope) Classification {
	c := Classification{Belongs: belongsTo(tx, scope)}

	switch {
	case tx.Order != nil:
		order := tx.Order
		c.Kind = domain.TransactionKindSale
		c.PaymentType = NormalizePaymentType(order.PaymentType)
		c.OrderType = NormalizeOrderType(order.OrderType)
		c.Status = NormalizeOrderStatus(order.Status)
		c.Amount = order.TotalAmount
		switch {
		case tx.DecodeError != "":
			c.Rejected = fmt.Errorf("%w: %s", domain.ErrInvalidAmount, tx.DecodeError)
		case order.TotalAmount.IsNegative():
			c.Rejected = fmt.Errorf("%w: total amount %s is negative", domain.ErrInvalidAmount, order.TotalAmount)
		case order.OriginalAmount.IsNegative():
			c.Rejected = fmt.Errorf("%w: original amount %s is negative", domain.ErrInvalidAmount, order.OriginalAmount)
		}
		if c.Rejected == nil && c.Status == domain.OrderStatusPaid {
			c.Discount = discountOf(*order)
		}
		c.Counts = c.Belongs && c.Rejected == nil && c.Status == domain.OrderStatusPaid
	case tx.Expense != nil:
		expense := tx.Expense
		c.Kind = domain.TransactionKindExpense
		c.PaymentType = NormalizePaymentType(expense.PaymentType)
		c.Amount = expense.Amount
		switch {
		case tx.DecodeError != "":
			c.Rejected = fmt.Errorf("%w: %s", domain.ErrInvalidAmount, tx.DecodeError)
		case expense.Amount.IsNegative():
			c.Rejected = fmt.Errorf("%w: amount %s is negative", domain.ErrInvalidAmount, expense.Amount)
		}
		c.Counts = c.Belongs && c.Rejected == nil
	default:
		c.Kind = tx.Kind
		c.Rejected = errEmptyTransaction
	}

	if c.Rejected != nil {
		c.Amount = decimal.Zero
		c.Discount = decimal.Zero
	}
	return c
}

// belongsTo matches by shift id. Only legacy records without one fall back to
// the timestamp window.
func belongsTo(tx domain.Transaction, scope ShiftScope) bool {
	if shiftID := strings.TrimSpace(tx.ShiftID()); shiftID != "" {
		return shiftID == scope.ShiftID
	}
	ts := tx.Timestamp()
	if ts.IsZero() || ts.Before(scope.OpenedAt) {
		return false
	}
	if scope.ClosedAt != nil && !ts.Before(*scope.ClosedAt) {
		return false
	}
	return true
}

func discountOf(order domain.Order) decimal.Decimal {
	if !order.DiscountPercent.IsPositive() || !order.OriginalAmount.IsPositive() {
		return decimal.Zero
	}
	diff := order.OriginalAmount.Sub(order.TotalAmount)
	if diff.IsNegative() {
		return decimal.Zero
	}
	return diff
}

func NormalizePaymentType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case domain.PaymentTransfer, "card", "terminal":
		return domain.PaymentTransfer
	default:
		return domain.PaymentCash
	}
}

func NormalizeOrderType(raw string) string {
	switch value := strings.ToLower(strings.TrimSpace(raw)); value {
	case domain.OrderTypeHall, domain.OrderTypePickup, domain.OrderTypeDelivery:
		return value
	default:
		return domain.OrderTypeDelivery
	}
}

func NormalizeOrderStatus(raw string) string {
	switch value := strings.ToLower(strings.TrimSpace(raw)); value {
	case domain.OrderStatusPaid, domain.OrderStatusCancelled, domain.OrderStatusPending:
		return value
	default:
		return domain.OrderStatusPending
	}
}
