package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"shiftdesk/backend/internal/domain"
	"shiftdesk/backend/internal/money"
	"shiftdesk/backend/internal/store"
	"shiftdesk/backend/internal/xid"
)

var (
	errNameRequired       = errors.New("name required")
	errUnknownRole        = errors.New("role must be cashier or admin")
	errWeakPIN            = errors.New("pin must be 4 to 12 digits")
	errEmployeeReferenced = errors.New("employee has recorded shifts")
)

func (s *Service) GetEmployee(ctx context.Context, id string) (domain.Employee, error) {
	employee, err := s.repo.GetEmployee(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Employee{}, err
	}
	return *employee, nil
}

func (s *Service) ListEmployees(ctx context.Context, includeInactive bool) ([]domain.Employee, error) {
	return s.repo.ListEmployees(ctx, includeInactive)
}

func (s *Service) CreateEmployee(ctx context.Context, req domain.EmployeeCreateRequest) (domain.Employee, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Employee{}, domain.NewInputError("name", errNameRequired)
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	switch role {
	case "":
		role = domain.RoleCashier
	case domain.RoleCashier, domain.RoleAdmin:
	default:
		return domain.Employee{}, domain.NewInputError("role", errUnknownRole)
	}
	salary, err := parseSalary(req.DefaultSalary)
	if err != nil {
		return domain.Employee{}, err
	}

	employee := domain.Employee{
		ID:            xid.New("emp"),
		Name:          name,
		Role:          role,
		Active:        true,
		DefaultSalary: salary,
		CreatedAt:     s.now(),
	}
	if strings.TrimSpace(req.PIN) != "" {
		if employee.PINHash, err = hashPIN(req.PIN); err != nil {
			return domain.Employee{}, err
		}
	}

	created, err := s.repo.CreateEmployee(ctx, employee)
	if err != nil {
		return domain.Employee{}, err
	}
	s.logAudit(ctx, "employee_create", "employee", created.ID, fmt.Sprintf("name=%s,role=%s", created.Name, created.Role))
	return *created, nil
}

func (s *Service) UpdateEmployee(ctx context.Context, id string, req domain.EmployeeUpdateRequest) (domain.Employee, error) {
	existing, err := s.repo.GetEmployee(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Employee{}, err
	}

	updated := *existing
	changes := make([]string, 0, 4)
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Employee{}, domain.NewInputError("name", errNameRequired)
		}
		updated.Name = name
		changes = append(changes, "name="+name)
	}
	if req.Active != nil {
		updated.Active = *req.Active
		changes = append(changes, fmt.Sprintf("active=%t", updated.Active))
	}
	if req.DefaultSalary != nil {
		if updated.DefaultSalary, err = parseSalary(*req.DefaultSalary); err != nil {
			return domain.Employee{}, err
		}
		changes = append(changes, "default_salary="+money.Format(updated.DefaultSalary))
	}
	if req.PIN != nil {
		if updated.PINHash, err = hashPIN(*req.PIN); err != nil {
			return domain.Employee{}, err
		}
		changes = append(changes, "pin")
	}

	saved, err := s.repo.UpdateEmployee(ctx, updated)
	if err != nil {
		return domain.Employee{}, err
	}
	if len(changes) > 0 {
		s.logAudit(ctx, "employee_update", "employee", saved.ID, strings.Join(changes, ","))
	}
	return *saved, nil
}

// DeleteEmployee removes an employee that never worked a shift. Referenced
// employees should be deactivated instead.
func (s *Service) DeleteEmployee(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := s.repo.DeleteEmployee(ctx, id); err != nil {
		if errors.Is(err, store.ErrInUse) {
			return domain.NewInputError("id", errEmployeeReferenced)
		}
		return err
	}
	s.logAudit(ctx, "employee_delete", "employee", id, "")
	return nil
}

func (s *Service) ListExpenseTypes(ctx context.Context) ([]domain.ExpenseType, error) {
	return s.repo.ListExpenseTypes(ctx)
}

func (s *Service) CreateExpenseType(ctx context.Context, req domain.ExpenseTypeRequest) (domain.ExpenseType, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ExpenseType{}, domain.NewInputError("name", errNameRequired)
	}
	created, err := s.repo.CreateExpenseType(ctx, domain.ExpenseType{ID: xid.New("et"), Name: name})
	if err != nil {
		return domain.ExpenseType{}, err
	}
	s.logAudit(ctx, "expense_type_create", "expense_type", created.ID, name)
	return *created, nil
}

// RenameExpenseType changes the live name only; recorded expenses keep the
// name they were logged with.
func (s *Service) RenameExpenseType(ctx context.Context, id string, req domain.ExpenseTypeRequest) (domain.ExpenseType, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ExpenseType{}, domain.NewInputError("name", errNameRequired)
	}
	renamed, err := s.repo.RenameExpenseType(ctx, strings.TrimSpace(id), name)
	if err != nil {
		return domain.ExpenseType{}, err
	}
	s.logAudit(ctx, "expense_type_rename", "expense_type", renamed.ID, name)
	return *renamed, nil
}

func (s *Service) DeleteExpenseType(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := s.repo.DeleteExpenseType(ctx, id); err != nil {
		if errors.Is(err, store.ErrInUse) {
			return domain.ErrExpenseTypeInUse
		}
		return err
	}
	s.logAudit(ctx, "expense_type_delete", "expense_type", id, "")
	return nil
}

func parseSalary(raw string) (decimal.Decimal, error) {
	v, err := money.ParseOptional(raw)
	if err == nil {
		err = money.NonNegative(v)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: default_salary: %v", domain.ErrInvalidAmount, err)
	}
	return v, nil
}

func hashPIN(pin string) (string, error) {
	pin = strings.TrimSpace(pin)
	if len(pin) < 4 || len(pin) > 12 || strings.Trim(pin, "0123456789") != "" {
		return "", domain.NewInputError("pin", errWeakPIN)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(hash), nil
}
