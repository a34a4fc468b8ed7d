package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"shiftdesk/backend/internal/domain"
	"shiftdesk/backend/internal/logger"
	"shiftdesk/backend/internal/store"
	"shiftdesk/backend/internal/store/memory"
)

var day = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

// steppingClock advances one second per reading so records get distinct,
// ordered timestamps.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]domain.ShiftSummary
}

func (c *mapCache) Get(_ context.Context, shiftID string) (*domain.ShiftSummary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[shiftID]
	if !ok {
		return nil, false, nil
	}
	return &v, true, nil
}

func (c *mapCache) Set(_ context.Context, shiftID string, value *domain.ShiftSummary, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[shiftID] = *value
	return nil
}

type ServiceTestSuite struct {
	suite.Suite
	repo    *memory.Store
	reports *mapCache
	svc     *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	t.Setenv("SEED_EMPLOYEE_PIN", "1357")
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) SetupTest() {
	s.repo = memory.NewSeeded()
	s.reports = &mapCache{entries: make(map[string]domain.ShiftSummary)}
	s.svc = New(s.repo, s.reports, logger.Discard(), Policy{MaxInitialCash: decimal.NewFromInt(10000)})
	s.svc.now = steppingClock(day)
	s.ctx = WithActor(context.Background(), domain.Actor{Username: "emp-anna", Role: domain.RoleCashier})
}

func (s *ServiceTestSuite) open(employeeID string, initial string) domain.Shift {
	resp, err := s.svc.OpenShift(s.ctx, domain.ShiftOpenRequest{EmployeeID: employeeID, InitialCash: initial})
	s.Require().NoError(err)
	return resp.Shift
}

func (s *ServiceTestSuite) order(shiftID string, payment string, status string, amount string) domain.Order {
	o, err := s.svc.RecordOrder(s.ctx, domain.OrderCreateRequest{
		ShiftID:        shiftID,
		OrderType:      domain.OrderTypeHall,
		PaymentType:    payment,
		OriginalAmount: amount,
		Status:         status,
	})
	s.Require().NoError(err)
	return o
}

func (s *ServiceTestSuite) expense(shiftID string, payment string, typeID string, amount string) domain.Expense {
	e, err := s.svc.RecordExpense(s.ctx, domain.ExpenseCreateRequest{
		ShiftID:       shiftID,
		ExpenseTypeID: typeID,
		Amount:        amount,
		PaymentType:   payment,
	})
	s.Require().NoError(err)
	return e
}

func (s *ServiceTestSuite) TestOpenShiftOncePerEmployee() {
	first := s.open("emp-anna", "500")
	s.Equal(domain.ShiftStatusOpen, first.Status)
	s.Equal("Anna", first.EmployeeName)

	_, err := s.svc.OpenShift(s.ctx, domain.ShiftOpenRequest{EmployeeID: "emp-anna", InitialCash: "10"})
	s.ErrorIs(err, domain.ErrShiftAlreadyOpen)

	current, err := s.svc.GetOpenShift(s.ctx, "emp-anna")
	s.Require().NoError(err)
	s.Require().NotNil(current)
	s.Equal(first.ID, current.ID)

	none, err := s.svc.GetOpenShift(s.ctx, "emp-oleg")
	s.Require().NoError(err)
	s.Nil(none)
}

func (s *ServiceTestSuite) TestOpenShiftValidation() {
	for _, raw := range []string{"", "abc", "NaN", "-1", "10000.01"} {
		_, err := s.svc.OpenShift(s.ctx, domain.ShiftOpenRequest{EmployeeID: "emp-anna", InitialCash: raw})
		s.ErrorIs(err, domain.ErrInvalidAmount, "initial cash %q", raw)
	}

	_, err := s.svc.OpenShift(s.ctx, domain.ShiftOpenRequest{EmployeeID: "emp-nobody", InitialCash: "1"})
	s.ErrorIs(err, store.ErrNotFound)

	inactive := false
	_, err = s.svc.UpdateEmployee(s.ctx, "emp-oleg", domain.EmployeeUpdateRequest{Active: &inactive})
	s.Require().NoError(err)
	_, err = s.svc.OpenShift(s.ctx, domain.ShiftOpenRequest{EmployeeID: "emp-oleg", InitialCash: "1"})
	s.ErrorIs(err, domain.ErrInvalidInput)

	shifts, err := s.svc.ListShifts(s.ctx, domain.ShiftFilter{})
	s.Require().NoError(err)
	s.Empty(shifts)
}

func (s *ServiceTestSuite) TestCloseShiftReconcilesAndPersists() {
	shift := s.open("emp-anna", "500")
	s.order(shift.ID, "cash", "paid", "1000")
	s.order(shift.ID, "card", "paid", "300")
	s.order(shift.ID, "cash", "pending", "50")
	s.order(shift.ID, "cash", "cancelled", "70")
	s.expense(shift.ID, "cash", "et-groceries", "100")
	s.expense(shift.ID, "transfer", "et-transport", "40")

	resp, err := s.svc.CloseShift(s.ctx, shift.ID, domain.ShiftCloseRequest{
		TerminalBalance: "300",
		FuelExpense:     "50",
		Salaries:        []domain.SalaryPayoutRequest{{EmployeeID: "emp-oleg", Name: "Oleg", Amount: "150", SaveDefault: true}},
		CountedCash:     "905",
		Notes:           "till jammed once",
	})
	s.Require().NoError(err)

	report := resp.Report
	s.True(report.IncomeCash.Equal(decimal.NewFromInt(1000)))
	s.True(report.IncomeCard.Equal(decimal.NewFromInt(300)))
	s.True(report.ExpenseCash.Equal(decimal.NewFromInt(100)))
	s.True(report.ExpenseTransfer.Equal(decimal.NewFromInt(40)))
	s.True(report.ExpectedCash.Equal(decimal.NewFromInt(900)), report.ExpectedCash.String())
	s.True(report.Discrepancy.Equal(decimal.NewFromInt(5)))
	s.Equal(2, report.PaidOrders)
	s.Equal(1, report.PendingOrders)
	s.Equal(1, report.CancelledOrders)
	s.Equal(2, report.ExpenseCount)

	s.Equal(domain.ShiftStatusClosed, resp.Shift.Status)
	s.Require().NotNil(resp.Shift.EndTime)
	s.Require().NotNil(resp.Shift.Closing)
	s.True(resp.Shift.Closing.CashBalance.Equal(decimal.NewFromInt(905)))
	s.Equal("till jammed once", resp.Shift.Closing.Notes)

	s.Equal("900.00", resp.Summary.ExpectedCash)
	s.Equal("5.00", resp.Summary.Discrepancy)
	s.Equal(domain.VerdictSurplus, resp.Summary.Verdict)
	s.Equal([]domain.SummaryLine{{Label: "Groceries", Amount: "100.00"}, {Label: "Transport", Amount: "40.00"}}, resp.Summary.Categories)
	s.Equal([]domain.SummaryLine{{Label: "Oleg", Amount: "150.00"}}, resp.Summary.Salaries)

	oleg, err := s.svc.GetEmployee(s.ctx, "emp-oleg")
	s.Require().NoError(err)
	s.True(oleg.DefaultSalary.Equal(decimal.NewFromInt(150)))

	cached, err := s.svc.GetShiftReport(s.ctx, shift.ID)
	s.Require().NoError(err)
	s.Equal(resp.Summary, cached)

	logs, err := s.svc.ListAuditLogs(s.ctx, "", 0)
	s.Require().NoError(err)
	actions := make([]string, 0, len(logs))
	for _, entry := range logs {
		actions = append(actions, entry.Action)
	}
	s.Contains(actions, "shift_open")
	s.Contains(actions, "shift_close")
	s.Contains(actions, "order_create")
}

func (s *ServiceTestSuite) TestReportRebuiltFromClosingOnCacheMiss() {
	shift := s.open("emp-anna", "100")
	s.order(shift.ID, "cash", "paid", "20")
	resp, err := s.svc.CloseShift(s.ctx, shift.ID, domain.ShiftCloseRequest{CountedCash: "110"})
	s.Require().NoError(err)

	cold := New(s.repo, nil, logger.Discard(), Policy{})
	summary, err := cold.GetShiftReport(s.ctx, shift.ID)
	s.Require().NoError(err)
	s.Equal(resp.Summary, summary)
	s.Equal(domain.VerdictShortage, summary.Verdict)
	s.Equal("-10.00", summary.Discrepancy)
}

func (s *ServiceTestSuite) TestGetShiftReportRequiresClosedShift() {
	shift := s.open("emp-anna", "100")
	_, err := s.svc.GetShiftReport(s.ctx, shift.ID)
	s.ErrorIs(err, domain.ErrShiftNotClosed)

	_, err = s.svc.GetShiftReport(s.ctx, "shift-missing")
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *ServiceTestSuite) TestCloseShiftInputErrorLeavesShiftOpen() {
	shift := s.open("emp-anna", "100")

	_, err := s.svc.CloseShift(s.ctx, shift.ID, domain.ShiftCloseRequest{TerminalBalance: "12", CountedCash: "lots"})
	s.ErrorIs(err, domain.ErrInvalidInput)
	var inputErr *domain.InputError
	s.Require().True(errors.As(err, &inputErr))
	s.Equal("counted_cash", inputErr.Field)

	current, err := s.svc.GetOpenShift(s.ctx, "emp-anna")
	s.Require().NoError(err)
	s.Require().NotNil(current)
	s.Nil(current.Closing)
}

func (s *ServiceTestSuite) TestCloseWithoutOpenShift() {
	_, err := s.svc.CloseShift(s.ctx, "shift-missing", domain.ShiftCloseRequest{CountedCash: "0"})
	s.ErrorIs(err, domain.ErrNoActiveShift)

	shift := s.open("emp-anna", "100")
	_, err = s.svc.CloseShift(s.ctx, shift.ID, domain.ShiftCloseRequest{CountedCash: "100"})
	s.Require().NoError(err)
	_, err = s.svc.CloseShift(s.ctx, shift.ID, domain.ShiftCloseRequest{CountedCash: "100"})
	s.ErrorIs(err, domain.ErrNoActiveShift)

	reopened := s.open("emp-anna", "50")
	s.NotEqual(shift.ID, reopened.ID)
}

func (s *ServiceTestSuite) TestConcurrentClosersExactlyOneWins() {
	shift := s.open("emp-anna", "100")
	s.order(shift.ID, "cash", "paid", "10")

	const closers = 8
	var wg sync.WaitGroup
	errs := make(chan error, closers)
	for i := 0; i < closers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.CloseShift(s.ctx, shift.ID, domain.ShiftCloseRequest{CountedCash: "110"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		s.ErrorIs(err, domain.ErrNoActiveShift)
	}
	s.Equal(1, wins)
	s.Equal(0, s.svc.locks.size())
}

func (s *ServiceTestSuite) TestClosedShiftIsReadOnly() {
	shift := s.open("emp-anna", "100")
	pending := s.order(shift.ID, "cash", "pending", "10")
	_, err := s.svc.CloseShift(s.ctx, shift.ID, domain.ShiftCloseRequest{CountedCash: "100"})
	s.Require().NoError(err)

	_, err = s.svc.RecordOrder(s.ctx, domain.OrderCreateRequest{ShiftID: shift.ID, PaymentType: "cash", OriginalAmount: "5"})
	s.ErrorIs(err, domain.ErrNoActiveShift)
	_, err = s.svc.RecordExpense(s.ctx, domain.ExpenseCreateRequest{ShiftID: shift.ID, ExpenseTypeID: "et-other", PaymentType: "cash", Amount: "5"})
	s.ErrorIs(err, domain.ErrNoActiveShift)
	_, err = s.svc.ResolveOrder(s.ctx, pending.ID, domain.OrderStatusRequest{Status: "paid"})
	s.ErrorIs(err, domain.ErrNoActiveShift)
}

func (s *ServiceTestSuite) TestResolveOrderTransitions() {
	shift := s.open("emp-anna", "100")
	o := s.order(shift.ID, "cash", "", "10")
	s.Equal(domain.OrderStatusPending, o.Status)

	paid, err := s.svc.ResolveOrder(s.ctx, o.ID, domain.OrderStatusRequest{Status: "PAID"})
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusPaid, paid.Status)

	_, err = s.svc.ResolveOrder(s.ctx, o.ID, domain.OrderStatusRequest{Status: "pending"})
	s.ErrorIs(err, domain.ErrInvalidInput)

	cancelled, err := s.svc.ResolveOrder(s.ctx, o.ID, domain.OrderStatusRequest{Status: "cancelled"})
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCancelled, cancelled.Status)

	_, err = s.svc.ResolveOrder(s.ctx, o.ID, domain.OrderStatusRequest{Status: "paid"})
	s.ErrorIs(err, domain.ErrInvalidInput)

	_, err = s.svc.ResolveOrder(s.ctx, "ord-missing", domain.OrderStatusRequest{Status: "paid"})
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *ServiceTestSuite) TestRecordOrderDiscountAndValidation() {
	shift := s.open("emp-anna", "100")

	o, err := s.svc.RecordOrder(s.ctx, domain.OrderCreateRequest{
		ShiftID:         shift.ID,
		PaymentType:     "Cash",
		DiscountPercent: "10",
		OriginalAmount:  "1000",
	})
	s.Require().NoError(err)
	s.True(o.TotalAmount.Equal(decimal.NewFromInt(900)), o.TotalAmount.String())
	s.Equal(domain.OrderTypeDelivery, o.OrderType)
	s.Equal(domain.PaymentCash, o.PaymentType)

	cases := []struct {
		name string
		req  domain.OrderCreateRequest
		want error
	}{
		{"no shift", domain.OrderCreateRequest{PaymentType: "cash", OriginalAmount: "1"}, domain.ErrInvalidInput},
		{"unknown payment", domain.OrderCreateRequest{ShiftID: shift.ID, PaymentType: "barter", OriginalAmount: "1"}, domain.ErrInvalidInput},
		{"unknown order type", domain.OrderCreateRequest{ShiftID: shift.ID, OrderType: "drone", PaymentType: "cash", OriginalAmount: "1"}, domain.ErrInvalidInput},
		{"negative amount", domain.OrderCreateRequest{ShiftID: shift.ID, PaymentType: "cash", OriginalAmount: "-1"}, domain.ErrInvalidAmount},
		{"nan amount", domain.OrderCreateRequest{ShiftID: shift.ID, PaymentType: "cash", OriginalAmount: "NaN"}, domain.ErrInvalidAmount},
		{"discount above 100", domain.OrderCreateRequest{ShiftID: shift.ID, PaymentType: "cash", OriginalAmount: "1", DiscountPercent: "101"}, domain.ErrInvalidInput},
		{"unknown shift", domain.OrderCreateRequest{ShiftID: "shift-missing", PaymentType: "cash", OriginalAmount: "1"}, domain.ErrNoActiveShift},
	}
	for _, tc := range cases {
		_, err := s.svc.RecordOrder(s.ctx, tc.req)
		s.ErrorIs(err, tc.want, tc.name)
	}
}

func (s *ServiceTestSuite) TestExpenseKeepsNameAfterRename() {
	shift := s.open("emp-anna", "100")
	e := s.expense(shift.ID, "cash", "et-transport", "25")
	s.Equal("Transport", e.ExpenseTypeName)

	_, err := s.svc.RenameExpenseType(s.ctx, "et-transport", domain.ExpenseTypeRequest{Name: "Taxi"})
	s.Require().NoError(err)
	s.ErrorIs(s.svc.DeleteExpenseType(s.ctx, "et-transport"), domain.ErrExpenseTypeInUse)

	resp, err := s.svc.CloseShift(s.ctx, shift.ID, domain.ShiftCloseRequest{CountedCash: "75"})
	s.Require().NoError(err)
	s.Equal([]domain.SummaryLine{{Label: "Transport", Amount: "25.00"}}, resp.Summary.Categories)
	s.Equal(domain.VerdictBalanced, resp.Summary.Verdict)

	_, err = s.svc.RecordExpense(s.ctx, domain.ExpenseCreateRequest{ShiftID: "x", ExpenseTypeID: "et-missing", PaymentType: "cash", Amount: "1"})
	s.ErrorIs(err, domain.ErrInvalidInput)
}

func (s *ServiceTestSuite) TestExpenseTypeCatalog() {
	created, err := s.svc.CreateExpenseType(s.ctx, domain.ExpenseTypeRequest{Name: "  Cleaning "})
	s.Require().NoError(err)
	s.Equal("Cleaning", created.Name)

	_, err = s.svc.CreateExpenseType(s.ctx, domain.ExpenseTypeRequest{Name: "cleaning"})
	s.ErrorIs(err, store.ErrConflict)
	_, err = s.svc.CreateExpenseType(s.ctx, domain.ExpenseTypeRequest{Name: " "})
	s.ErrorIs(err, domain.ErrInvalidInput)

	s.NoError(s.svc.DeleteExpenseType(s.ctx, created.ID))
	s.ErrorIs(s.svc.DeleteExpenseType(s.ctx, created.ID), store.ErrNotFound)
}

func (s *ServiceTestSuite) TestEmployeeLifecycle() {
	_, err := s.svc.CreateEmployee(s.ctx, domain.EmployeeCreateRequest{Name: "Ivan", PIN: "12ab"})
	s.ErrorIs(err, domain.ErrInvalidInput)
	_, err = s.svc.CreateEmployee(s.ctx, domain.EmployeeCreateRequest{Name: "Ivan", Role: "owner"})
	s.ErrorIs(err, domain.ErrInvalidInput)
	_, err = s.svc.CreateEmployee(s.ctx, domain.EmployeeCreateRequest{Name: "Ivan", DefaultSalary: "-3"})
	s.ErrorIs(err, domain.ErrInvalidAmount)

	ivan, err := s.svc.CreateEmployee(s.ctx, domain.EmployeeCreateRequest{Name: "Ivan", DefaultSalary: "900", PIN: "4321"})
	s.Require().NoError(err)
	s.Equal(domain.RoleCashier, ivan.Role)
	s.True(ivan.Active)
	s.NotEmpty(ivan.PINHash)

	name := "Ivan P."
	renamed, err := s.svc.UpdateEmployee(s.ctx, ivan.ID, domain.EmployeeUpdateRequest{Name: &name})
	s.Require().NoError(err)
	s.Equal(name, renamed.Name)
	s.Equal(ivan.PINHash, renamed.PINHash)

	s.open(ivan.ID, "0")
	s.ErrorIs(s.svc.DeleteEmployee(s.ctx, ivan.ID), domain.ErrInvalidInput)
	s.NoError(s.svc.DeleteEmployee(s.ctx, "emp-oleg"))
}

func (s *ServiceTestSuite) TestDailySummary() {
	anna := s.open("emp-anna", "100")
	oleg := s.open("emp-oleg", "50")
	s.order(anna.ID, "cash", "paid", "30")
	s.order(oleg.ID, "transfer", "paid", "20")
	s.order(oleg.ID, "cash", "pending", "99")
	s.expense(anna.ID, "cash", "et-other", "5")
	_, err := s.svc.CloseShift(s.ctx, anna.ID, domain.ShiftCloseRequest{CountedCash: "125"})
	s.Require().NoError(err)

	summary, err := s.svc.DailySummary(s.ctx, "2026-05-04")
	s.Require().NoError(err)
	s.Equal("2026-05-04", summary.Date)
	s.Equal(2, summary.Shifts)
	s.Equal(2, summary.PaidOrders)
	s.True(summary.TotalSales.Equal(decimal.NewFromInt(50)))
	s.True(summary.TotalExpenses.Equal(decimal.NewFromInt(5)))
	s.True(summary.CashInDrawer.Equal(decimal.NewFromInt(125)))

	empty, err := s.svc.DailySummary(s.ctx, "2026-05-05")
	s.Require().NoError(err)
	s.Zero(empty.Shifts)

	_, err = s.svc.DailySummary(s.ctx, "05/04/2026")
	s.ErrorIs(err, domain.ErrInvalidInput)
}

func (s *ServiceTestSuite) TestListShiftTransactions() {
	shift := s.open("emp-anna", "100")
	o := s.order(shift.ID, "cash", "paid", "30")
	e := s.expense(shift.ID, "cash", "et-other", "5")

	resp, err := s.svc.ListShiftTransactions(s.ctx, shift.ID)
	s.Require().NoError(err)
	s.Require().Len(resp.Transactions, 2)
	s.Equal(o.ID, resp.Transactions[0].ID())
	s.Equal(e.ID, resp.Transactions[1].ID())
}

func TestKeyedMutexReleasesKeys(t *testing.T) {
	k := newKeyedMutex()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("shift:a")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("expected 50 increments, got %d", counter)
	}
	if k.size() != 0 {
		t.Fatalf("expected no retained keys, got %d", k.size())
	}
}
