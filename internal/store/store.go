package store

import (
	"context"
	"errors"
	"time"

	"shiftdesk/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidRecord = errors.New("invalid record")
	ErrConflict      = errors.New("conflicting record")
	ErrInUse         = errors.New("record is referenced")
	ErrShiftClosed   = errors.New("shift is not open")
)

// CloseFunc computes the closing attributes of shift from its transaction log.
// Repositories call it with a snapshot no other writer can change until the
// closing write commits. A returned error aborts the close and leaves the
// shift open.
type CloseFunc func(shift domain.Shift, txs []domain.Transaction) (domain.ShiftClosing, error)

type Repository interface {
	CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error)
	GetEmployee(ctx context.Context, id string) (*domain.Employee, error)
	ListEmployees(ctx context.Context, includeInactive bool) ([]domain.Employee, error)
	UpdateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error)
	DeleteEmployee(ctx context.Context, id string) error

	ListExpenseTypes(ctx context.Context) ([]domain.ExpenseType, error)
	GetExpenseType(ctx context.Context, id string) (*domain.ExpenseType, error)
	CreateExpenseType(ctx context.Context, expenseType domain.ExpenseType) (*domain.ExpenseType, error)
	RenameExpenseType(ctx context.Context, id string, name string) (*domain.ExpenseType, error)
	DeleteExpenseType(ctx context.Context, id string) error

	CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error)
	GetShift(ctx context.Context, id string) (*domain.Shift, error)
	GetOpenShift(ctx context.Context, employeeID string) (*domain.Shift, error)
	ListShifts(ctx context.Context, filter domain.ShiftFilter) ([]domain.Shift, error)
	CloseShift(ctx context.Context, id string, closedAt time.Time, compute CloseFunc) (*domain.Shift, error)

	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, from string, to string) (*domain.Order, error)
	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListTransactionsForShift(ctx context.Context, shiftID string) ([]domain.Transaction, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}

// DefaultExpenseTypes are the categories a fresh store starts with.
var DefaultExpenseTypes = []domain.ExpenseType{
	{ID: "et-groceries", Name: "Groceries"},
	{ID: "et-packaging", Name: "Packaging"},
	{ID: "et-utilities", Name: "Utilities"},
	{ID: "et-transport", Name: "Transport"},
	{ID: "et-other", Name: "Other expenses"},
}
