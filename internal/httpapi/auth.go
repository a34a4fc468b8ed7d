package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"shiftdesk/backend/internal/domain"
)

const adminUsername = "admin"

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errInactiveAccount    = errors.New("account is inactive")
)

// EmployeeDirectory resolves the employee behind a PIN login.
type EmployeeDirectory interface {
	GetEmployee(ctx context.Context, id string) (domain.Employee, error)
}

// AuthManager issues and verifies bearer tokens. The admin signs in with the
// configured password; employees sign in with their id and PIN.
type AuthManager struct {
	secret        []byte
	tokenTTL      time.Duration
	adminPassword string
	employees     EmployeeDirectory
	now           func() time.Time
}

type shiftClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, adminPassword string, employees EmployeeDirectory) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	// An empty password keeps admin login disabled.
	adminHash := ""
	if password := strings.TrimSpace(adminPassword); password != "" {
		if hashed, err := hashPassword(password); err == nil {
			adminHash = hashed
		}
	}

	return &AuthManager{
		secret:        []byte(secret),
		tokenTTL:      tokenTTL,
		adminPassword: adminHash,
		employees:     employees,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	subject, role, err := a.authenticate(ctx, req)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	expiresAt := a.now().Add(a.tokenTTL)
	token, err := a.sign(subject, role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) authenticate(ctx context.Context, req domain.LoginRequest) (string, string, error) {
	if employeeID := strings.TrimSpace(req.EmployeeID); employeeID != "" {
		if a.employees == nil {
			return "", "", errInvalidCredentials
		}
		employee, err := a.employees.GetEmployee(ctx, employeeID)
		if err != nil || !verifyPassword(employee.PINHash, req.Password) {
			return "", "", errInvalidCredentials
		}
		if !employee.Active {
			return "", "", errInactiveAccount
		}
		return employee.ID, employee.Role, nil
	}

	if strings.ToLower(strings.TrimSpace(req.Username)) != adminUsername || !verifyPassword(a.adminPassword, req.Password) {
		return "", "", errInvalidCredentials
	}
	return adminUsername, domain.RoleAdmin, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &shiftClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Username: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(subject string, role string, expiresAt time.Time) (string, error) {
	claims := shiftClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwtlib.NewNumericDate(a.now()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "shiftdesk",
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(strings.TrimSpace(input))) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
