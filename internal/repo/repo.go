package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/jmoiron/sqlx"
)

// Repo is the single data-access layer. Methods taking a sqlx.ExtContext
// run against either the pool or an open transaction.
type Repo struct {
	DB *sqlx.DB
}

var ErrNotFound = errors.New("not found")

// Table names keyed by resource type.
var tables = map[string]string{
	"client":    "clients",
	"affiliate": "affiliates",
	"insurer":   "insurers",
	"policy":    "policies",
	"claim":     "claims",
	"invoice":   "invoices",
	"ticket":    "tickets",
}

// Table returns the table backing a resource type.
func Table(resourceType string) (string, bool) {
	t, ok := tables[resourceType]
	return t, ok
}

var columnPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Column maps a camelCase request field to its snake_case column.
func Column(field string) string {
	var b strings.Builder
	for i, r := range field {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UpdateColumns writes cols onto the row id of table. Keys are column names;
// a nil value writes NULL.
func (r Repo) UpdateColumns(ctx context.Context, q sqlx.ExtContext, table, id string, cols map[string]any) error {
	if len(cols) == 0 {
		return nil
	}
	names := make([]string, 0, len(cols))
	for name := range cols {
		if !columnPattern.MatchString(name) {
			return fmt.Errorf("invalid column %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	fields := make([]string, 0, len(names))
	args := make([]any, 0, len(names)+1)
	for _, name := range names {
		fields = append(fields, name+"=?")
		args = append(args, cols[name])
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id=?`, table, strings.Join(fields, ","))
	res, err := q.ExecContext(ctx, q.Rebind(query), args...)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func get(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Page is the cursor window shared by list queries, ordered newest first.
type Page struct {
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

type where struct {
	clauses []string
	args    []any
}

func (w *where) eq(col, v string) {
	if v == "" {
		return
	}
	w.clauses = append(w.clauses, col+"=?")
	w.args = append(w.args, v)
}

// in restricts col to vals. A nil slice means unrestricted; an empty
// non-nil slice matches nothing.
func (w *where) in(col string, vals []string) {
	if vals == nil {
		return
	}
	if len(vals) == 0 {
		w.clauses = append(w.clauses, "1=0")
		return
	}
	w.clauses = append(w.clauses, col+" IN (?)")
	w.args = append(w.args, vals)
}

func (w *where) page(p Page) {
	if p.CursorCreatedAt != "" && p.CursorID != "" {
		w.clauses = append(w.clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		w.args = append(w.args, p.CursorCreatedAt, p.CursorCreatedAt, p.CursorID)
	}
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func selectAll(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

func insert(ctx context.Context, q sqlx.ExtContext, query string, arg any) error {
	_, err := sqlx.NamedExecContext(ctx, q, query, arg)
	return err
}

func (r Repo) selectPage(ctx context.Context, dest any, base string, w where, p Page) error {
	w.page(p)
	query := base + w.String() + ` ORDER BY created_at DESC, id DESC`
	args := w.args
	if p.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, p.Limit)
	}
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return r.DB.SelectContext(ctx, dest, r.DB.Rebind(query), args...)
}
