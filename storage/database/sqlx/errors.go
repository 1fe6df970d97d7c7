package sqlxrepos

import (
	"database/sql"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/foureyes/bando/core"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// trapErr maps driver errors to the core error kinds.
// Anything it does not recognize becomes a *core.PersistenceError.
func trapErr(err error, op, entity, key string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewNotFoundError(entity, key)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return core.NewConflictError(entity, key)
		case pqForeignKeyViolation:
			return missingReference(entity, err)
		}
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return core.NewConflictError(entity, key)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return missingReference(entity, err)
		}
	}

	return core.NewPersistenceError(op, err)
}

// isForeignKeyViolation reports whether err comes from a foreign key constraint.
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqForeignKeyViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return false
}

func missingReference(entity string, err error) error {
	return core.NewValidationError(err, core.FieldError{Field: entity, Error: "references a record that does not exist"})
}

// rowsAffected returns how many rows res changed.
func rowsAffected(res sql.Result, op string) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, core.NewPersistenceError(op, err)
	}
	return n, nil
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func nullDate(s string) null.Time {
	t, err := time.Parse(core.DateLayout, s)
	return null.NewTime(t, err == nil)
}

func dateString(t null.Time) string {
	if !t.Valid {
		return ""
	}
	return t.Time.UTC().Format(core.DateLayout)
}

// orderBy turns orderings into an ORDER BY clause, keeping only the allowed columns.
func orderBy(ordering []core.DBOrdering, allowed map[string]bool, def string) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if allowed[ord.Field] {
			clauses = append(clauses, ord.String())
		}
	}
	if len(clauses) == 0 {
		return " ORDER BY " + def
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}
