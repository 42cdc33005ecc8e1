package db

import "strings"

// IsUniqueViolation reports whether err describes a unique constraint
// violation. A non-empty constraintName matches that specific constraint;
// the generic markers cover Postgres and SQLite messages either way.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}
