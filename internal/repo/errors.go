package repo

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique or primary key conflict
// from any of the supported drivers.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	return false
}

// UniqueField names the API field behind a unique violation, or "" when the
// driver error does not say. Multi-column keys report their first column.
func UniqueField(err error) string {
	var col string
	var liteErr *sqlite.Error
	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &liteErr):
		// constraint failed: UNIQUE constraint failed: policies.policy_number (2067)
		msg := liteErr.Error()
		if i := strings.LastIndex(msg, "failed: "); i >= 0 {
			col = msg[i+len("failed: "):]
			if j := strings.IndexAny(col, ", ("); j >= 0 {
				col = col[:j]
			}
			if j := strings.LastIndex(col, "."); j >= 0 {
				col = col[j+1:]
			}
		}
	case errors.As(err, &pgErr):
		col = keyColumn(pgErr.Detail)
	case errors.As(err, &pqErr):
		col = keyColumn(pqErr.Detail)
	}
	return fieldName(col)
}

// keyColumn reads the column out of "Key (policy_number)=(POL-1) already exists."
func keyColumn(detail string) string {
	start := strings.Index(detail, "Key (")
	if start < 0 {
		return ""
	}
	rest := detail[start+len("Key ("):]
	end := strings.IndexAny(rest, ",)")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// fieldName is the inverse of Column.
func fieldName(col string) string {
	parts := strings.Split(col, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
