package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"shiftdesk/backend/internal/domain"
	"shiftdesk/backend/internal/store"
	"shiftdesk/backend/internal/xid"
)

type Store struct {
	mu                  sync.RWMutex
	employeesByID       map[string]domain.Employee
	expenseTypesByID    map[string]domain.ExpenseType
	shiftsByID          map[string]domain.Shift
	openShiftByEmployee map[string]string
	ordersByID          map[string]domain.Order
	expensesByID        map[string]domain.Expense
	auditLogs           []domain.AuditLog
}

func New() *Store {
	s := &Store{
		employeesByID:       make(map[string]domain.Employee),
		expenseTypesByID:    make(map[string]domain.ExpenseType),
		shiftsByID:          make(map[string]domain.Shift),
		openShiftByEmployee: make(map[string]string),
		ordersByID:          make(map[string]domain.Order),
		expensesByID:        make(map[string]domain.Expense),
	}
	for _, et := range store.DefaultExpenseTypes {
		s.expenseTypesByID[et.ID] = et
	}
	return s
}

// NewSeeded returns a store with the default expense types and two demo
// cashiers for dev mode. Their PIN comes from SEED_EMPLOYEE_PIN; when unset a
// dev default is used and a warning is logged.
func NewSeeded() *Store {
	s := New()

	pin := os.Getenv("SEED_EMPLOYEE_PIN")
	if pin == "" {
		pin = "2468"
		logrus.Warn("memory store: using default dev employee PIN, set SEED_EMPLOYEE_PIN to override")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		logrus.WithError(err).Fatal("memory store: failed to hash seed PIN")
	}

	now := time.Now().UTC()
	for _, e := range []struct {
		id     string
		name   string
		salary int64
	}{
		{"emp-anna", "Anna", 1500},
		{"emp-oleg", "Oleg", 1200},
	} {
		s.employeesByID[e.id] = domain.Employee{
			ID:            e.id,
			Name:          e.name,
			Role:          domain.RoleCashier,
			Active:        true,
			DefaultSalary: decimal.NewFromInt(e.salary),
			PINHash:       string(hash),
			CreatedAt:     now,
		}
	}
	return s
}

func (s *Store) CreateEmployee(_ context.Context, employee domain.Employee) (*domain.Employee, error) {
	employee.Name = strings.TrimSpace(employee.Name)
	if employee.Name == "" {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if employee.ID == "" {
		employee.ID = xid.New("emp")
	}
	if _, exists := s.employeesByID[employee.ID]; exists {
		return nil, store.ErrConflict
	}
	if employee.Role == "" {
		employee.Role = domain.RoleCashier
	}
	if employee.CreatedAt.IsZero() {
		employee.CreatedAt = time.Now().UTC()
	}
	s.employeesByID[employee.ID] = employee
	saved := employee
	return &saved, nil
}

func (s *Store) GetEmployee(_ context.Context, id string) (*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employee, exists := s.employeesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &employee, nil
}

func (s *Store) ListEmployees(_ context.Context, includeInactive bool) ([]domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employees := make([]domain.Employee, 0, len(s.employeesByID))
	for _, employee := range s.employeesByID {
		if !includeInactive && !employee.Active {
			continue
		}
		employees = append(employees, employee)
	}
	slices.SortFunc(employees, func(a, b domain.Employee) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return employees, nil
}

func (s *Store) UpdateEmployee(_ context.Context, employee domain.Employee) (*domain.Employee, error) {
	employee.Name = strings.TrimSpace(employee.Name)
	if employee.Name == "" {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.employeesByID[employee.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	employee.CreatedAt = current.CreatedAt
	s.employeesByID[employee.ID] = employee
	saved := employee
	return &saved, nil
}

func (s *Store) DeleteEmployee(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.employeesByID[id]; !exists {
		return store.ErrNotFound
	}
	for _, shift := range s.shiftsByID {
		if shift.EmployeeID == id {
			return store.ErrInUse
		}
	}
	delete(s.employeesByID, id)
	return nil
}

func (s *Store) ListExpenseTypes(_ context.Context) ([]domain.ExpenseType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]domain.ExpenseType, 0, len(s.expenseTypesByID))
	for _, et := range s.expenseTypesByID {
		types = append(types, et)
	}
	slices.SortFunc(types, func(a, b domain.ExpenseType) int {
		return strings.Compare(a.Name, b.Name)
	})
	return types, nil
}

func (s *Store) GetExpenseType(_ context.Context, id string) (*domain.ExpenseType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	et, exists := s.expenseTypesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &et, nil
}

func (s *Store) CreateExpenseType(_ context.Context, expenseType domain.ExpenseType) (*domain.ExpenseType, error) {
	expenseType.Name = strings.TrimSpace(expenseType.Name)
	if expenseType.Name == "" {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expenseTypeNameTakenLocked(expenseType.Name, "") {
		return nil, store.ErrConflict
	}
	if expenseType.ID == "" {
		expenseType.ID = xid.New("et")
	}
	s.expenseTypesByID[expenseType.ID] = expenseType
	saved := expenseType
	return &saved, nil
}

func (s *Store) RenameExpenseType(_ context.Context, id string, name string) (*domain.ExpenseType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	et, exists := s.expenseTypesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if s.expenseTypeNameTakenLocked(name, id) {
		return nil, store.ErrConflict
	}
	et.Name = name
	s.expenseTypesByID[id] = et
	return &et, nil
}

func (s *Store) DeleteExpenseType(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.expenseTypesByID[id]; !exists {
		return store.ErrNotFound
	}
	for _, expense := range s.expensesByID {
		if expense.ExpenseTypeID == id {
			return store.ErrInUse
		}
	}
	delete(s.expenseTypesByID, id)
	return nil
}

func (s *Store) expenseTypeNameTakenLocked(name string, exceptID string) bool {
	for _, et := range s.expenseTypesByID {
		if et.ID != exceptID && strings.EqualFold(et.Name, name) {
			return true
		}
	}
	return false
}

func (s *Store) CreateShift(_ context.Context, shift domain.Shift) (*domain.Shift, error) {
	if strings.TrimSpace(shift.EmployeeID) == "" {
		return nil, store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.openShiftByEmployee[shift.EmployeeID]; exists {
		return nil, store.ErrConflict
	}
	if shift.ID == "" {
		shift.ID = xid.New("shf")
	}
	if shift.StartTime.IsZero() {
		shift.StartTime = time.Now().UTC()
	}
	shift.Status = domain.ShiftStatusOpen
	shift.EndTime = nil
	shift.Closing = nil

	s.shiftsByID[shift.ID] = shift
	s.openShiftByEmployee[shift.EmployeeID] = shift.ID
	saved := cloneShift(shift)
	return &saved, nil
}

func (s *Store) GetShift(_ context.Context, id string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shift, exists := s.shiftsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	saved := cloneShift(shift)
	return &saved, nil
}

func (s *Store) GetOpenShift(_ context.Context, employeeID string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shiftID, exists := s.openShiftByEmployee[employeeID]
	if !exists {
		return nil, store.ErrNotFound
	}
	shift, exists := s.shiftsByID[shiftID]
	if !exists || shift.Status != domain.ShiftStatusOpen {
		return nil, store.ErrNotFound
	}
	saved := cloneShift(shift)
	return &saved, nil
}

func (s *Store) ListShifts(_ context.Context, filter domain.ShiftFilter) ([]domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Shift, 0, 32)
	for _, shift := range s.shiftsByID {
		if filter.EmployeeID != "" && shift.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Status != "" && shift.Status != filter.Status {
			continue
		}
		if !filter.From.IsZero() && shift.StartTime.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !shift.StartTime.Before(filter.To) {
			continue
		}
		result = append(result, cloneShift(shift))
	}

	slices.SortFunc(result, func(a, b domain.Shift) int {
		if c := b.StartTime.Compare(a.StartTime); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// CloseShift holds the write lock across compute, so no order, expense or
// second close can interleave with the snapshot.
func (s *Store) CloseShift(_ context.Context, id string, closedAt time.Time, compute store.CloseFunc) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shift, exists := s.shiftsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if shift.Status != domain.ShiftStatusOpen {
		return nil, store.ErrShiftClosed
	}

	closing, err := compute(cloneShift(shift), s.transactionsForShiftLocked(shift))
	if err != nil {
		return nil, err
	}
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	shift.Status = domain.ShiftStatusClosed
	shift.EndTime = &closedAt
	shift.Closing = cloneClosing(&closing)

	delete(s.openShiftByEmployee, shift.EmployeeID)
	s.shiftsByID[id] = shift
	saved := cloneShift(shift)
	return &saved, nil
}

// CreateOrder stores an order of an open shift. An order without a shift id is
// kept as a legacy record and is matched to shifts by timestamp only.
func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOpenShiftLocked(order.ShiftID); err != nil {
		return nil, err
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if _, exists := s.ordersByID[order.ID]; exists {
		return nil, store.ErrConflict
	}
	if order.Timestamp.IsZero() {
		order.Timestamp = time.Now().UTC()
	}
	s.ordersByID[order.ID] = order
	saved := order
	return &saved, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.ordersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &order, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id string, from string, to string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.ordersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if err := s.requireOpenShiftLocked(order.ShiftID); err != nil {
		return nil, err
	}
	if order.Status != from {
		return nil, store.ErrConflict
	}
	order.Status = to
	s.ordersByID[id] = order
	saved := order
	return &saved, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOpenShiftLocked(expense.ShiftID); err != nil {
		return nil, err
	}
	if _, exists := s.expenseTypesByID[expense.ExpenseTypeID]; !exists {
		return nil, store.ErrNotFound
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if _, exists := s.expensesByID[expense.ID]; exists {
		return nil, store.ErrConflict
	}
	if expense.Timestamp.IsZero() {
		expense.Timestamp = time.Now().UTC()
	}
	s.expensesByID[expense.ID] = expense
	saved := expense
	return &saved, nil
}

func (s *Store) ListTransactionsForShift(_ context.Context, shiftID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shift, exists := s.shiftsByID[shiftID]
	if !exists {
		return nil, store.ErrNotFound
	}
	return s.transactionsForShiftLocked(shift), nil
}

func (s *Store) requireOpenShiftLocked(shiftID string) error {
	if shiftID == "" {
		return nil
	}
	shift, exists := s.shiftsByID[shiftID]
	if !exists {
		return store.ErrNotFound
	}
	if shift.Status != domain.ShiftStatusOpen {
		return store.ErrShiftClosed
	}
	return nil
}

// transactionsForShiftLocked returns the records carrying the shift's id plus
// legacy records without one that fall inside the shift window.
func (s *Store) transactionsForShiftLocked(shift domain.Shift) []domain.Transaction {
	inWindow := func(ts time.Time) bool {
		if ts.Before(shift.StartTime) {
			return false
		}
		return shift.EndTime == nil || ts.Before(*shift.EndTime)
	}

	txs := make([]domain.Transaction, 0, 64)
	for _, order := range s.ordersByID {
		if order.ShiftID == shift.ID || (order.ShiftID == "" && inWindow(order.Timestamp)) {
			txs = append(txs, domain.SaleTransaction(order))
		}
	}
	for _, expense := range s.expensesByID {
		if expense.ShiftID == shift.ID || (expense.ShiftID == "" && inWindow(expense.Timestamp)) {
			txs = append(txs, domain.ExpenseTransaction(expense))
		}
	}

	slices.SortFunc(txs, func(a, b domain.Transaction) int {
		if c := a.Timestamp().Compare(b.Timestamp()); c != 0 {
			return c
		}
		return strings.Compare(a.ID(), b.ID())
	})
	return txs
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func cloneShift(src domain.Shift) domain.Shift {
	dup := src
	if src.EndTime != nil {
		end := *src.EndTime
		dup.EndTime = &end
	}
	dup.Closing = cloneClosing(src.Closing)
	return dup
}

func cloneClosing(src *domain.ShiftClosing) *domain.ShiftClosing {
	if src == nil {
		return nil
	}
	dup := *src
	categories := make([]domain.CategoryTotal, len(src.ExpenseCategories))
	copy(categories, src.ExpenseCategories)
	dup.ExpenseCategories = categories
	salaries := make([]domain.SalaryPayout, len(src.Salaries))
	copy(salaries, src.Salaries)
	dup.Salaries = salaries
	return &dup
}
