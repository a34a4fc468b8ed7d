package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Employee struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Role          string          `json:"role"`
	Active        bool            `json:"active"`
	DefaultSalary decimal.Decimal `json:"default_salary"`
	PINHash       string          `json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
}

type EmployeeCreateRequest struct {
	Name          string `json:"name"`
	Role          string `json:"role"`
	DefaultSalary string `json:"default_salary,omitempty"`
	PIN           string `json:"pin,omitempty"`
}

type EmployeeUpdateRequest struct {
	Name          *string `json:"name,omitempty"`
	Active        *bool   `json:"active,omitempty"`
	DefaultSalary *string `json:"default_salary,omitempty"`
	PIN           *string `json:"pin,omitempty"`
}

type ExpenseType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ExpenseTypeRequest struct {
	Name string `json:"name"`
}

// Shift is one cashier working period. Closing and EndTime stay nil while the
// shift is open and are written together when it closes.
type Shift struct {
	ID           string          `json:"id"`
	EmployeeID   string          `json:"employee_id"`
	EmployeeName string          `json:"employee_name"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
	InitialCash  decimal.Decimal `json:"initial_cash"`
	Status       string          `json:"status"`
	Closing      *ShiftClosing   `json:"closing,omitempty"`
}

func (s Shift) IsOpen() bool {
	return s.Status == ShiftStatusOpen
}

// ShiftClosing holds the financial attributes written when a shift closes.
type ShiftClosing struct {
	CashBalance       decimal.Decimal `json:"cash_balance"`
	CardBalance       decimal.Decimal `json:"card_balance"`
	FuelExpense       decimal.Decimal `json:"fuel_expense"`
	SalaryPayments    decimal.Decimal `json:"salary_payments"`
	CashExpenses      decimal.Decimal `json:"cash_expenses"`
	TransferExpenses  decimal.Decimal `json:"transfer_expenses"`
	CashRevenue       decimal.Decimal `json:"cash_revenue"`
	CardRevenue       decimal.Decimal `json:"card_revenue"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalDiscounts    decimal.Decimal `json:"total_discounts"`
	ExpectedCash      decimal.Decimal `json:"expected_cash"`
	Discrepancy       decimal.Decimal `json:"discrepancy"`
	ExpenseCategories []CategoryTotal `json:"expense_categories"`
	Salaries          []SalaryPayout  `json:"salaries"`
	Notes             string          `json:"notes,omitempty"`
}

type ShiftOpenRequest struct {
	EmployeeID  string `json:"employee_id"`
	InitialCash string `json:"initial_cash"`
}

// ShiftCloseRequest carries the manually entered closing figures as text so
// that non-numeric input is reported by the reconciliation step itself.
type ShiftCloseRequest struct {
	TerminalBalance string                `json:"terminal_balance"`
	FuelExpense     string                `json:"fuel_expense"`
	Salaries        []SalaryPayoutRequest `json:"salaries"`
	CountedCash     string                `json:"counted_cash"`
	Notes           string                `json:"notes,omitempty"`
}

type SalaryPayoutRequest struct {
	EmployeeID  string `json:"employee_id,omitempty"`
	Name        string `json:"name"`
	Amount      string `json:"amount"`
	SaveDefault bool   `json:"save_default,omitempty"`
}

type SalaryPayout struct {
	EmployeeID  string          `json:"employee_id,omitempty"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	SaveDefault bool            `json:"-"`
}

type ClosingInputs struct {
	TerminalBalance decimal.Decimal
	FuelExpense     decimal.Decimal
	Salaries        []SalaryPayout
	CountedCash     decimal.Decimal
	Notes           string
}

func (c ClosingInputs) SalaryPayments() decimal.Decimal {
	total := decimal.Zero
	for _, s := range c.Salaries {
		total = total.Add(s.Amount)
	}
	return total
}

type ShiftFilter struct {
	EmployeeID string
	Status     string
	From       time.Time
	To         time.Time
	Limit      int
}

type Order struct {
	ID              string          `json:"id"`
	ShiftID         string          `json:"shift_id"`
	OrderType       string          `json:"order_type"`
	PaymentType     string          `json:"payment_type"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          string          `json:"status"`
	Timestamp       time.Time       `json:"timestamp"`
}

type OrderCreateRequest struct {
	ShiftID         string `json:"shift_id"`
	OrderType       string `json:"order_type"`
	PaymentType     string `json:"payment_type"`
	DiscountPercent string `json:"discount_percent,omitempty"`
	OriginalAmount  string `json:"original_amount"`
	Status          string `json:"status,omitempty"`
}

type OrderStatusRequest struct {
	Status string `json:"status"`
}

type Expense struct {
	ID              string          `json:"id"`
	ShiftID         string          `json:"shift_id"`
	ExpenseTypeID   string          `json:"expense_type_id"`
	ExpenseTypeName string          `json:"expense_type_name"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentType     string          `json:"payment_type"`
	Comment         string          `json:"comment,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

type ExpenseCreateRequest struct {
	ShiftID       string `json:"shift_id"`
	ExpenseTypeID string `json:"expense_type_id"`
	Amount        string `json:"amount"`
	PaymentType   string `json:"payment_type"`
	Comment       string `json:"comment,omitempty"`
}

// Transaction is one entry of the shift's monetary log: exactly one of Order
// or Expense is set, matching Kind. DecodeError is filled by a storage backend
// that could not read the stored amount.
type Transaction struct {
	Kind        string   `json:"kind"`
	Order       *Order   `json:"order,omitempty"`
	Expense     *Expense `json:"expense,omitempty"`
	DecodeError string   `json:"decode_error,omitempty"`
}

func SaleTransaction(order Order) Transaction {
	return Transaction{Kind: TransactionKindSale, Order: &order}
}

func ExpenseTransaction(expense Expense) Transaction {
	return Transaction{Kind: TransactionKindExpense, Expense: &expense}
}

func (t Transaction) ID() string {
	switch {
	case t.Order != nil:
		return t.Order.ID
	case t.Expense != nil:
		return t.Expense.ID
	default:
		return ""
	}
}

func (t Transaction) ShiftID() string {
	switch {
	case t.Order != nil:
		return t.Order.ShiftID
	case t.Expense != nil:
		return t.Expense.ShiftID
	default:
		return ""
	}
}

func (t Transaction) Timestamp() time.Time {
	switch {
	case t.Order != nil:
		return t.Order.Timestamp
	case t.Expense != nil:
		return t.Expense.Timestamp
	default:
		return time.Time{}
	}
}

type CategoryTotal struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

type IntegrityWarning struct {
	TransactionID string `json:"transaction_id"`
	Kind          string `json:"kind"`
	Reason        string `json:"reason"`
}

// Subtotals is the aggregator's fold of a shift's transaction log.
type Subtotals struct {
	IncomeCash         decimal.Decimal    `json:"income_cash"`
	IncomeCard         decimal.Decimal    `json:"income_card"`
	ExpenseCash        decimal.Decimal    `json:"expense_cash"`
	ExpenseTransfer    decimal.Decimal    `json:"expense_transfer"`
	TotalDiscounts     decimal.Decimal    `json:"total_discounts"`
	ExpensesByCategory []CategoryTotal    `json:"expenses_by_category"`
	PaidOrders         int                `json:"paid_orders"`
	PendingOrders      int                `json:"pending_orders"`
	CancelledOrders    int                `json:"cancelled_orders"`
	ExpenseCount       int                `json:"expense_count"`
	Warnings           []IntegrityWarning `json:"warnings,omitempty"`
}

type ReconciliationReport struct {
	Subtotals
	InitialCash     decimal.Decimal `json:"initial_cash"`
	TerminalBalance decimal.Decimal `json:"terminal_balance"`
	FuelExpense     decimal.Decimal `json:"fuel_expense"`
	SalaryPayments  decimal.Decimal `json:"salary_payments"`
	ExpectedCash    decimal.Decimal `json:"expected_cash"`
	CountedCash     decimal.Decimal `json:"counted_cash"`
	Discrepancy     decimal.Decimal `json:"discrepancy"`
	CardVariance    decimal.Decimal `json:"card_variance"`
}

type SummaryLine struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

// ShiftSummary is the presentation payload of a closed shift; amounts are
// already rounded to two decimals.
type ShiftSummary struct {
	ShiftID          string        `json:"shift_id"`
	CashierName      string        `json:"cashier_name"`
	StartedAt        time.Time     `json:"started_at"`
	EndedAt          time.Time     `json:"ended_at"`
	InitialCash      string        `json:"initial_cash"`
	SalesCash        string        `json:"sales_cash"`
	SalesTransfer    string        `json:"sales_transfer"`
	TotalDiscounts   string        `json:"total_discounts"`
	ExpensesCash     string        `json:"expenses_cash"`
	ExpensesTransfer string        `json:"expenses_transfer"`
	TerminalBalance  string        `json:"terminal_balance"`
	FuelExpense      string        `json:"fuel_expense"`
	SalaryPayments   string        `json:"salary_payments"`
	Salaries         []SummaryLine `json:"salaries"`
	Categories       []SummaryLine `json:"categories"`
	ExpectedCash     string        `json:"expected_cash"`
	CountedCash      string        `json:"counted_cash"`
	Discrepancy      string        `json:"discrepancy"`
	Verdict          string        `json:"verdict"`
	Notes            string        `json:"notes,omitempty"`
}

type ShiftResponse struct {
	Shift Shift `json:"shift"`
}

type ShiftCloseResponse struct {
	Shift   Shift                `json:"shift"`
	Report  ReconciliationReport `json:"report"`
	Summary ShiftSummary         `json:"summary"`
}

type ShiftTransactionsResponse struct {
	Shift        Shift         `json:"shift"`
	Transactions []Transaction `json:"transactions"`
}

type DailySummary struct {
	Date            string          `json:"date"`
	Shifts          int             `json:"shifts"`
	IncomeCash      decimal.Decimal `json:"income_cash"`
	IncomeCard      decimal.Decimal `json:"income_card"`
	TotalSales      decimal.Decimal `json:"total_sales"`
	ExpenseCash     decimal.Decimal `json:"expense_cash"`
	ExpenseTransfer decimal.Decimal `json:"expense_transfer"`
	TotalExpenses   decimal.Decimal `json:"total_expenses"`
	CashInDrawer    decimal.Decimal `json:"cash_in_drawer"`
	PaidOrders      int             `json:"paid_orders"`
}

type LoginRequest struct {
	EmployeeID string `json:"employee_id,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	RoleCashier = "cashier"
	RoleAdmin   = "admin"
)

const (
	ShiftStatusOpen   = "open"
	ShiftStatusClosed = "closed"
)

const (
	TransactionKindSale    = "sale"
	TransactionKindExpense = "expense"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCancelled = "cancelled"
)

const (
	OrderTypeHall     = "hall"
	OrderTypeDelivery = "delivery"
	OrderTypePickup   = "pickup"
)

const (
	PaymentCash     = "cash"
	PaymentTransfer = "transfer"
)

const (
	VerdictBalanced = "balanced"
	VerdictSurplus  = "surplus"
	VerdictShortage = "shortage"
)

// UncategorizedExpense labels expenses whose type can no longer be resolved.
const UncategorizedExpense = "Other"
