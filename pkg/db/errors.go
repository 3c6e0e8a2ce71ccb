package db

import (
	"strings"

	pkgerrors "github.com/angelmondragon/bizledger-backend/pkg/errors"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation from
// Postgres (by SQLSTATE) or SQLite (by message). A non-empty constraintName
// narrows the match to that constraint or index.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if pkgerrors.PGCode(err) == pgUniqueViolation {
		if constraintName == "" {
			return true
		}
		return pkgerrors.Dump(err).PGConstraint == constraintName || strings.Contains(err.Error(), constraintName)
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") && !strings.Contains(msg, "duplicate key value") {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}
