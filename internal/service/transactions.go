package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"shiftdesk/backend/internal/domain"
	"shiftdesk/backend/internal/money"
	"shiftdesk/backend/internal/store"
	"shiftdesk/backend/internal/xid"
)

var (
	errShiftRequired       = errors.New("shift id required")
	errExpenseTypeRequired = errors.New("expense type id required")
	errUnknownExpenseType  = errors.New("unknown expense type")
)

// RecordOrder logs an order on an open shift. The stored total is the
// original amount after the discount percentage.
func (s *Service) RecordOrder(ctx context.Context, req domain.OrderCreateRequest) (domain.Order, error) {
	shiftID := strings.TrimSpace(req.ShiftID)
	if shiftID == "" {
		return domain.Order{}, domain.NewInputError("shift_id", errShiftRequired)
	}
	orderType, err := parseOrderType(req.OrderType)
	if err != nil {
		return domain.Order{}, err
	}
	paymentType, err := parsePaymentType(req.PaymentType)
	if err != nil {
		return domain.Order{}, err
	}
	status, err := parseOrderStatus(req.Status)
	if err != nil {
		return domain.Order{}, err
	}

	original, err := parseStoredAmount("original_amount", req.OriginalAmount)
	if err != nil {
		return domain.Order{}, err
	}
	percent, err := money.ParseOptional(req.DiscountPercent)
	if err != nil {
		return domain.Order{}, domain.NewInputError("discount_percent", err)
	}
	total, err := money.ApplyDiscount(original, percent)
	if err != nil {
		return domain.Order{}, domain.NewInputError("discount_percent", err)
	}

	unlock := s.locks.Lock("shift:" + shiftID)
	defer unlock()

	saved, err := s.repo.CreateOrder(ctx, domain.Order{
		ID:              xid.New("ord"),
		ShiftID:         shiftID,
		OrderType:       orderType,
		PaymentType:     paymentType,
		DiscountPercent: percent,
		OriginalAmount:  original,
		TotalAmount:     total,
		Status:          status,
		Timestamp:       s.now(),
	})
	if err != nil {
		return domain.Order{}, noActiveShift(err)
	}

	s.logAudit(ctx, "order_create", "order", saved.ID, fmt.Sprintf("shift=%s,total=%s,payment=%s,status=%s",
		shiftID, money.Format(total), paymentType, status))
	return *saved, nil
}

// ResolveOrder moves an order forward: pending to paid or cancelled, and paid
// to cancelled. Orders of a closed shift are read-only.
func (s *Service) ResolveOrder(ctx context.Context, orderID string, req domain.OrderStatusRequest) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	to := strings.ToLower(strings.TrimSpace(req.Status))

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.ShiftID == "" {
		return domain.Order{}, domain.ErrNoActiveShift
	}
	if !canResolve(order.Status, to) {
		return domain.Order{}, domain.NewInputError("status", fmt.Errorf("cannot move order from %q to %q", order.Status, to))
	}

	unlock := s.locks.Lock("shift:" + order.ShiftID)
	defer unlock()

	updated, err := s.repo.UpdateOrderStatus(ctx, orderID, order.Status, to)
	if err != nil {
		return domain.Order{}, noActiveShift(err)
	}

	s.logAudit(ctx, "order_status", "order", orderID, fmt.Sprintf("%s->%s", order.Status, to))
	return *updated, nil
}

func canResolve(from string, to string) bool {
	switch from {
	case domain.OrderStatusPending:
		return to == domain.OrderStatusPaid || to == domain.OrderStatusCancelled
	case domain.OrderStatusPaid:
		return to == domain.OrderStatusCancelled
	default:
		return false
	}
}

// RecordExpense logs an expense on an open shift and snapshots the expense
// type's current name onto the record.
func (s *Service) RecordExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	shiftID := strings.TrimSpace(req.ShiftID)
	if shiftID == "" {
		return domain.Expense{}, domain.NewInputError("shift_id", errShiftRequired)
	}
	typeID := strings.TrimSpace(req.ExpenseTypeID)
	if typeID == "" {
		return domain.Expense{}, domain.NewInputError("expense_type_id", errExpenseTypeRequired)
	}
	paymentType, err := parsePaymentType(req.PaymentType)
	if err != nil {
		return domain.Expense{}, err
	}
	amount, err := parseStoredAmount("amount", req.Amount)
	if err != nil {
		return domain.Expense{}, err
	}

	expenseType, err := s.repo.GetExpenseType(ctx, typeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Expense{}, domain.NewInputError("expense_type_id", errUnknownExpenseType)
		}
		return domain.Expense{}, err
	}

	unlock := s.locks.Lock("shift:" + shiftID)
	defer unlock()

	saved, err := s.repo.CreateExpense(ctx, domain.Expense{
		ID:              xid.New("exp"),
		ShiftID:         shiftID,
		ExpenseTypeID:   expenseType.ID,
		ExpenseTypeName: expenseType.Name,
		Amount:          amount,
		PaymentType:     paymentType,
		Comment:         strings.TrimSpace(req.Comment),
		Timestamp:       s.now(),
	})
	if err != nil {
		return domain.Expense{}, noActiveShift(err)
	}

	s.logAudit(ctx, "expense_create", "expense", saved.ID, fmt.Sprintf("shift=%s,type=%s,amount=%s,payment=%s",
		shiftID, expenseType.Name, money.Format(amount), paymentType))
	return *saved, nil
}

// parseStoredAmount rejects amounts before they reach the log; the classifier
// would otherwise have to skip them at close time.
func parseStoredAmount(field string, raw string) (decimal.Decimal, error) {
	v, err := money.Parse(raw)
	if err == nil {
		err = money.NonNegative(v)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", domain.ErrInvalidAmount, field, err)
	}
	return v, nil
}

func parsePaymentType(raw string) (string, error) {
	switch value := strings.ToLower(strings.TrimSpace(raw)); value {
	case domain.PaymentCash:
		return domain.PaymentCash, nil
	case domain.PaymentTransfer, "card":
		return domain.PaymentTransfer, nil
	default:
		return "", domain.NewInputError("payment_type", fmt.Errorf("unknown payment type %q", value))
	}
}

func parseOrderType(raw string) (string, error) {
	switch value := strings.ToLower(strings.TrimSpace(raw)); value {
	case "":
		return domain.OrderTypeDelivery, nil
	case domain.OrderTypeHall, domain.OrderTypeDelivery, domain.OrderTypePickup:
		return value, nil
	default:
		return "", domain.NewInputError("order_type", fmt.Errorf("unknown order type %q", value))
	}
}

func parseOrderStatus(raw string) (string, error) {
	switch value := strings.ToLower(strings.TrimSpace(raw)); value {
	case "":
		return domain.OrderStatusPending, nil
	case domain.OrderStatusPending, domain.OrderStatusPaid, domain.OrderStatusCancelled:
		return value, nil
	default:
		return "", domain.NewInputError("status", fmt.Errorf("unknown order status %q", value))
	}
}
