package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"shiftdesk/backend/internal/domain"
	"shiftdesk/backend/internal/money"
	"shiftdesk/backend/internal/store"
	"shiftdesk/backend/internal/xid"
)

// serializableAttempts bounds how often a transaction aborted with a
// serialization failure is replayed.
const serializableAttempts = 3

type Store struct {
	db *sql.DB
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const employeeColumns = `id, name, role, active, default_salary, pin_hash, created_at`

func scanEmployee(row rowScanner) (*domain.Employee, error) {
	var e domain.Employee
	if err := row.Scan(&e.ID, &e.Name, &e.Role, &e.Active, &e.DefaultSalary, &e.PINHash, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

func (s *Store) CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error) {
	employee.Name = strings.TrimSpace(employee.Name)
	if employee.Name == "" {
		return nil, store.ErrInvalidRecord
	}
	if employee.ID == "" {
		employee.ID = xid.New("emp")
	}
	if employee.Role == "" {
		employee.Role = domain.RoleCashier
	}
	if employee.CreatedAt.IsZero() {
		employee.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, employee.ID, employee.Name, employee.Role, employee.Active, employee.DefaultSalary, employee.PINHash, employee.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, errors.Wrap(err, "insert employee")
	}
	saved := employee
	return &saved, nil
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*domain.Employee, error) {
	employee, err := scanEmployee(s.db.QueryRowContext(ctx, `
		SELECT `+employeeColumns+`
		FROM employees
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "select employee")
	}
	return employee, nil
}

func (s *Store) ListEmployees(ctx context.Context, includeInactive bool) ([]domain.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+employeeColumns+`
		FROM employees
		WHERE active OR $1::boolean
		ORDER BY name, id
	`, includeInactive)
	if err != nil {
		return nil, errors.Wrap(err, "list employees")
	}
	defer rows.Close()

	employees := make([]domain.Employee, 0, 16)
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *employee)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return employees, nil
}

func (s *Store) UpdateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error) {
	employee.Name = strings.TrimSpace(employee.Name)
	if employee.Name == "" {
		return nil, store.ErrInvalidRecord
	}

	updated, err := scanEmployee(s.db.QueryRowContext(ctx, `
		UPDATE employees
		SET name = $2, role = $3, active = $4, default_salary = $5, pin_hash = $6
		WHERE id = $1
		RETURNING `+employeeColumns,
		employee.ID, employee.Name, employee.Role, employee.Active, employee.DefaultSalary, employee.PINHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "update employee")
	}
	return updated, nil
}

func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrInUse
		}
		return errors.Wrap(err, "delete employee")
	}
	return requireAffected(res)
}

func (s *Store) ListExpenseTypes(ctx context.Context) ([]domain.ExpenseType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name
		FROM expense_types
		ORDER BY name
	`)
	if err != nil {
		return nil, errors.Wrap(err, "list expense types")
	}
	defer rows.Close()

	types := make([]domain.ExpenseType, 0, 16)
	for rows.Next() {
		var et domain.ExpenseType
		if err := rows.Scan(&et.ID, &et.Name); err != nil {
			return nil, err
		}
		types = append(types, et)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return types, nil
}

func (s *Store) GetExpenseType(ctx context.Context, id string) (*domain.ExpenseType, error) {
	var et domain.ExpenseType
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM expense_types WHERE id = $1`, id).Scan(&et.ID, &et.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "select expense type")
	}
	return &et, nil
}

func (s *Store) CreateExpenseType(ctx context.Context, expenseType domain.ExpenseType) (*domain.ExpenseType, error) {
	expenseType.Name = strings.TrimSpace(expenseType.Name)
	if expenseType.Name == "" {
		return nil, store.ErrInvalidRecord
	}
	if expenseType.ID == "" {
		expenseType.ID = xid.New("et")
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO expense_types (id, name) VALUES ($1,$2)`, expenseType.ID, expenseType.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, errors.Wrap(err, "insert expense type")
	}
	saved := expenseType
	return &saved, nil
}

func (s *Store) RenameExpenseType(ctx context.Context, id string, name string) (*domain.ExpenseType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrInvalidRecord
	}

	var et domain.ExpenseType
	err := s.db.QueryRowContext(ctx, `
		UPDATE expense_types SET name = $2 WHERE id = $1
		RETURNING id, name
	`, id, name).Scan(&et.ID, &et.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, errors.Wrap(err, "rename expense type")
	}
	return &et, nil
}

// DeleteExpenseType relies on the RESTRICT foreign key from expenses, so the
// reference check and the delete cannot race.
func (s *Store) DeleteExpenseType(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expense_types WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrInUse
		}
		return errors.Wrap(err, "delete expense type")
	}
	return requireAffected(res)
}

const shiftColumns = `id, employee_id, employee_name, start_time, end_time, initial_cash, status,
	cash_balance, card_balance, fuel_expense, salary_payments, cash_expenses, transfer_expenses,
	cash_revenue, card_revenue, total_revenue, total_discounts, expected_cash, discrepancy,
	expense_categories, salaries, notes`

func scanShift(row rowScanner) (*domain.Shift, error) {
	var (
		shift      domain.Shift
		endTime    sql.NullTime
		nums       [12]decimal.NullDecimal
		categories []byte
		salaries   []byte
		notes      sql.NullString
	)
	dest := []any{
		&shift.ID, &shift.EmployeeID, &shift.EmployeeName, &shift.StartTime, &endTime, &shift.InitialCash, &shift.Status,
	}
	for i := range nums {
		dest = append(dest, &nums[i])
	}
	dest = append(dest, &categories, &salaries, &notes)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	shift.StartTime = shift.StartTime.UTC()
	if endTime.Valid {
		at := endTime.Time.UTC()
		shift.EndTime = &at
	}
	if shift.Status != domain.ShiftStatusClosed {
		return &shift, nil
	}

	closing := &domain.ShiftClosing{
		CashBalance:      nums[0].Decimal,
		CardBalance:      nums[1].Decimal,
		FuelExpense:      nums[2].Decimal,
		SalaryPayments:   nums[3].Decimal,
		CashExpenses:     nums[4].Decimal,
		TransferExpenses: nums[5].Decimal,
		CashRevenue:      nums[6].Decimal,
		CardRevenue:      nums[7].Decimal,
		TotalRevenue:     nums[8].Decimal,
		TotalDiscounts:   nums[9].Decimal,
		ExpectedCash:     nums[10].Decimal,
		Discrepancy:      nums[11].Decimal,
		Notes:            notes.String,
	}
	if err := decodeJSONColumn(categories, &closing.ExpenseCategories); err != nil {
		return nil, errors.Wrapf(err, "decode expense categories of shift %s", shift.ID)
	}
	if err := decodeJSONColumn(salaries, &closing.Salaries); err != nil {
		return nil, errors.Wrapf(err, "decode salaries of shift %s", shift.ID)
	}
	shift.Closing = closing
	return &shift, nil
}

func (s *Store) CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	if strings.TrimSpace(shift.EmployeeID) == "" {
		return nil, store.ErrInvalidRecord
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shifts (id, employee_id, employee_name, start_time, initial_cash, status)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, shift.ID, shift.EmployeeID, shift.EmployeeName, shift.StartTime, shift.InitialCash, shift.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "insert shift")
	}
	saved := shift
	return &saved, nil
}

func (s *Store) GetShift(ctx context.Context, id string) (*domain.Shift, error) {
	shift, err := scanShift(s.db.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "select shift")
	}
	return shift, nil
}

func (s *Store) GetOpenShift(ctx context.Context, employeeID string) (*domain.Shift, error) {
	shift, err := scanShift(s.db.QueryRowContext(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE employee_id = $1 AND status = 'open'
	`, employeeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "select open shift")
	}
	return shift, nil
}

func (s *Store) ListShifts(ctx context.Context, filter domain.ShiftFilter) ([]domain.Shift, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE ($1::text = '' OR employee_id = $1)
			AND ($2::text = '' OR status = $2)
			AND ($3::timestamptz IS NULL OR start_time >= $3)
			AND ($4::timestamptz IS NULL OR start_time < $4)
		ORDER BY start_time DESC, id DESC
		LIMIT $5
	`, filter.EmployeeID, filter.Status, nullZeroTime(filter.From), nullZeroTime(filter.To), limit)
	if err != nil {
		return nil, errors.Wrap(err, "list shifts")
	}
	defer rows.Close()

	shifts := make([]domain.Shift, 0, limit)
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, *shift)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return shifts, nil
}

// CloseShift locks the shift row, reads its transaction log and writes every
// closing column in one serializable transaction. Order and expense writers
// take a share lock on the same row, so the snapshot handed to compute is the
// complete log.
func (s *Store) CloseShift(ctx context.Context, id string, closedAt time.Time, compute store.CloseFunc) (*domain.Shift, error) {
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	var closed *domain.Shift
	err := s.serializable(ctx, func(pgTx *sql.Tx) error {
		shift, err := scanShift(pgTx.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return errors.Wrap(err, "lock shift")
		}
		if shift.Status != domain.ShiftStatusOpen {
			return store.ErrShiftClosed
		}

		txs, err := listTransactions(ctx, pgTx, *shift)
		if err != nil {
			return err
		}
		closing, err := compute(*shift, txs)
		if err != nil {
			return err
		}

		categories, err := json.Marshal(nonNilCategories(closing.ExpenseCategories))
		if err != nil {
			return err
		}
		salaries, err := json.Marshal(nonNilSalaries(closing.Salaries))
		if err != nil {
			return err
		}

		res, err := pgTx.ExecContext(ctx, `
			UPDATE shifts
			SET status = 'closed', end_time = $2,
				cash_balance = $3, card_balance = $4, fuel_expense = $5, salary_payments = $6,
				cash_expenses = $7, transfer_expenses = $8, cash_revenue = $9, card_revenue = $10,
				total_revenue = $11, total_discounts = $12, expected_cash = $13, discrepancy = $14,
				expense_categories = $15, salaries = $16, notes = $17
			WHERE id = $1 AND status = 'open'
		`, id, closedAt,
			closing.CashBalance, closing.CardBalance, closing.FuelExpense, closing.SalaryPayments,
			closing.CashExpenses, closing.TransferExpenses, closing.CashRevenue, closing.CardRevenue,
			closing.TotalRevenue, closing.TotalDiscounts, closing.ExpectedCash, closing.Discrepancy,
			string(categories), string(salaries), closing.Notes)
		if err != nil {
			return errors.Wrap(err, "write shift closing")
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return store.ErrShiftClosed
		}

		shift.Status = domain.ShiftStatusClosed
		shift.EndTime = &closedAt
		shift.Closing = &closing
		closed = shift
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// lockOpenShift takes a share lock on an open shift so a concurrent close has
// to wait for the writer to commit.
func lockOpenShift(ctx context.Context, pgTx *sql.Tx, shiftID string) error {
	var status string
	err := pgTx.QueryRowContext(ctx, `SELECT status FROM shifts WHERE id = $1 FOR SHARE`, shiftID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return errors.Wrap(err, "lock shift")
	}
	if status != domain.ShiftStatusOpen {
		return store.ErrShiftClosed
	}
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.Timestamp.IsZero() {
		order.Timestamp = time.Now().UTC()
	}

	err := s.serializable(ctx, func(pgTx *sql.Tx) error {
		if order.ShiftID != "" {
			if err := lockOpenShift(ctx, pgTx, order.ShiftID); err != nil {
				return err
			}
		}
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO orders (
				id, shift_id, order_type, payment_type, discount_percent,
				original_amount, total_amount, status, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, order.ID, nullIfEmpty(order.ShiftID), order.OrderType, order.PaymentType, order.DiscountPercent,
			order.OriginalAmount, order.TotalAmount, order.Status, order.Timestamp)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrConflict
			}
			return errors.Wrap(err, "insert order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	saved := order
	return &saved, nil
}

const orderColumns = `id, COALESCE(shift_id, ''), order_type, payment_type,
	discount_percent::text, original_amount::text, total_amount::text, status, created_at`

// scanOrder reads amounts as text so a stored NaN or garbage value surfaces as
// a decode error on the transaction instead of failing the whole query.
func scanOrder(row rowScanner) (domain.Transaction, error) {
	var (
		order                     domain.Order
		discount, original, total string
	)
	if err := row.Scan(&order.ID, &order.ShiftID, &order.OrderType, &order.PaymentType,
		&discount, &original, &total, &order.Status, &order.Timestamp); err != nil {
		return domain.Transaction{}, err
	}
	order.Timestamp = order.Timestamp.UTC()

	var problems []string
	var err error
	if order.DiscountPercent, err = money.Parse(discount); err != nil {
		problems = append(problems, "discount_percent: "+err.Error())
	}
	if order.OriginalAmount, err = money.Parse(original); err != nil {
		problems = append(problems, "original_amount: "+err.Error())
	}
	if order.TotalAmount, err = money.Parse(total); err != nil {
		problems = append(problems, "total_amount: "+err.Error())
	}

	tx := domain.SaleTransaction(order)
	tx.DecodeError = strings.Join(problems, "; ")
	return tx, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	tx, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "select order")
	}
	if tx.DecodeError != "" {
		return nil, errors.Errorf("order %s: %s", id, tx.DecodeError)
	}
	return tx.Order, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, from string, to string) (*domain.Order, error) {
	var updated *domain.Order
	err := s.serializable(ctx, func(pgTx *sql.Tx) error {
		var shiftID sql.NullString
		var status string
		err := pgTx.QueryRowContext(ctx, `SELECT shift_id, status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&shiftID, &status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return errors.Wrap(err, "lock order")
		}
		if shiftID.Valid {
			if err := lockOpenShift(ctx, pgTx, shiftID.String); err != nil {
				return err
			}
		}
		if status != from {
			return store.ErrConflict
		}

		tx, err := scanOrder(pgTx.QueryRowContext(ctx, `
			UPDATE orders SET status = $2 WHERE id = $1
			RETURNING `+orderColumns, id, to))
		if err != nil {
			return errors.Wrap(err, "update order status")
		}
		updated = tx.Order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.Timestamp.IsZero() {
		expense.Timestamp = time.Now().UTC()
	}

	err := s.serializable(ctx, func(pgTx *sql.Tx) error {
		if expense.ShiftID != "" {
			if err := lockOpenShift(ctx, pgTx, expense.ShiftID); err != nil {
				return err
			}
		}
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO expenses (
				id, shift_id, expense_type_id, expense_type_name, amount, payment_type, comment, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, expense.ID, nullIfEmpty(expense.ShiftID), expense.ExpenseTypeID, expense.ExpenseTypeName,
			expense.Amount, expense.PaymentType, expense.Comment, expense.Timestamp)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrConflict
			}
			if isForeignKeyViolation(err) {
				return store.ErrNotFound
			}
			return errors.Wrap(err, "insert expense")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	saved := expense
	return &saved, nil
}

func (s *Store) ListTransactionsForShift(ctx context.Context, shiftID string) ([]domain.Transaction, error) {
	shift, err := s.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	return listTransactions(ctx, s.db, *shift)
}

// listTransactions returns the records carrying the shift's id plus legacy
// records without one inside the shift window, oldest first.
func listTransactions(ctx context.Context, q queryer, shift domain.Shift) ([]domain.Transaction, error) {
	orderRows, err := q.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE shift_id = $1
			OR (shift_id IS NULL AND created_at >= $2 AND ($3::timestamptz IS NULL OR created_at < $3))
		ORDER BY created_at, id
	`, shift.ID, shift.StartTime, nullTime(shift.EndTime))
	if err != nil {
		return nil, errors.Wrap(err, "list shift orders")
	}
	txs := make([]domain.Transaction, 0, 64)
	for orderRows.Next() {
		tx, err := scanOrder(orderRows)
		if err != nil {
			_ = orderRows.Close()
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := orderRows.Err(); err != nil {
		_ = orderRows.Close()
		return nil, err
	}
	_ = orderRows.Close()

	expenseRows, err := q.QueryContext(ctx, `
		SELECT id, COALESCE(shift_id, ''), expense_type_id, expense_type_name,
			amount::text, payment_type, comment, created_at
		FROM expenses
		WHERE shift_id = $1
			OR (shift_id IS NULL AND created_at >= $2 AND ($3::timestamptz IS NULL OR created_at < $3))
		ORDER BY created_at, id
	`, shift.ID, shift.StartTime, nullTime(shift.EndTime))
	if err != nil {
		return nil, errors.Wrap(err, "list shift expenses")
	}
	defer expenseRows.Close()
	for expenseRows.Next() {
		var expense domain.Expense
		var amount string
		if err := expenseRows.Scan(&expense.ID, &expense.ShiftID, &expense.ExpenseTypeID, &expense.ExpenseTypeName,
			&amount, &expense.PaymentType, &expense.Comment, &expense.Timestamp); err != nil {
			return nil, err
		}
		expense.Timestamp = expense.Timestamp.UTC()
		tx := domain.ExpenseTransaction(expense)
		if tx.Expense.Amount, err = money.Parse(amount); err != nil {
			tx.DecodeError = "amount: " + err.Error()
		}
		txs = append(txs, tx)
	}
	if err := expenseRows.Err(); err != nil {
		return nil, err
	}

	sortTransactions(txs)
	return txs, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return errors.Wrap(err, "insert audit log")
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1
			AND created_at < $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list audit logs")
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

// serializable runs fn in a SERIALIZABLE transaction and replays it when
// PostgreSQL reports a serialization failure.
func (s *Store) serializable(ctx context.Context, fn func(pgTx *sql.Tx) error) error {
	var err error
	for attempt := 0; attempt < serializableAttempts; attempt++ {
		err = s.runSerializable(ctx, fn)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return errors.Wrap(err, "serializable transaction retries exhausted")
}

func (s *Store) runSerializable(ctx context.Context, fn func(pgTx *sql.Tx) error) error {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = pgTx.Rollback() }()

	if err := fn(pgTx); err != nil {
		return err
	}
	return pgTx.Commit()
}
