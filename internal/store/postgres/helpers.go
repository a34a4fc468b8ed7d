package postgres

import (
	"database/sql"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"shiftdesk/backend/internal/domain"
	"shiftdesk/backend/internal/store"
)

func isUniqueViolation(err error) bool {
	return hasCode(err, "23505")
}

func isForeignKeyViolation(err error) bool {
	return hasCode(err, "23503")
}

func isSerializationFailure(err error) bool {
	return hasCode(err, "40001")
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullZeroTime(val time.Time) any {
	if val.IsZero() {
		return nil
	}
	return val
}

func decodeJSONColumn(raw []byte, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func nonNilCategories(v []domain.CategoryTotal) []domain.CategoryTotal {
	if v == nil {
		return []domain.CategoryTotal{}
	}
	return v
}

func nonNilSalaries(v []domain.SalaryPayout) []domain.SalaryPayout {
	if v == nil {
		return []domain.SalaryPayout{}
	}
	return v
}

func sortTransactions(txs []domain.Transaction) {
	slices.SortFunc(txs, func(a, b domain.Transaction) int {
		if c := a.Timestamp().Compare(b.Timestamp()); c != 0 {
			return c
		}
		return strings.Compare(a.ID(), b.ID())
	})
}
