package database

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// IsUniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY constraint failure.
func IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const foreignKeyFailed = "FOREIGN KEY constraint failed"

// IsForeignKeyViolation reports whether err is a SQLite FOREIGN KEY constraint
// failure. Deleting a row still referenced through ON DELETE RESTRICT is
// reported by SQLite as a trigger constraint carrying the foreign key message.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return strings.Contains(err.Error(), foreignKeyFailed)
	}
	if se.Code != sqlite3.ErrConstraint {
		return false
	}
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintForeignKey:
		return true
	case sqlite3.ErrConstraintTrigger:
		return strings.Contains(se.Error(), foreignKeyFailed)
	default:
		return false
	}
}
