// Package audit records who changed what. Entries are appended inside the
// caller's transaction so a lifecycle update and its history commit together.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"brokerdesk/internal/domain"
)

// Actions written by the services.
const (
	ActionCreated       = "created"
	ActionUpdated       = "updated"
	ActionStatusChanged = "status_changed"
	ActionAccepted      = "accepted"
	ActionCommented     = "commented"
	ActionUploaded      = "uploaded"
)

// Action builds the dotted action name, e.g. "claim.status_changed".
func Action(resourceType, verb string) string {
	return resourceType + "." + verb
}

type Entry struct {
	Action       string
	ResourceType string
	ResourceID   string
	ActorUserID  string
	Before       any
	After        any
	Metadata     map[string]any
}

type Writer struct {
	Now func() time.Time
}

func (w Writer) Append(ctx context.Context, tx *sqlx.Tx, e Entry) (domain.AuditLog, error) {
	if w.Now == nil {
		w.Now = time.Now
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	before, err := encode(e.Before)
	if err != nil {
		return domain.AuditLog{}, fmt.Errorf("marshal audit before: %w", err)
	}
	after, err := encode(e.After)
	if err != nil {
		return domain.AuditLog{}, fmt.Errorf("marshal audit after: %w", err)
	}
	meta, err := encode(e.Metadata)
	if err != nil {
		return domain.AuditLog{}, fmt.Errorf("marshal audit metadata: %w", err)
	}
	log := domain.AuditLog{
		ID:           uuid.NewString(),
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		ActorUserID:  e.ActorUserID,
		Before:       before,
		After:        after,
		Metadata:     meta,
		CreatedAt:    domain.Timestamp(w.Now()),
	}
	_, err = tx.NamedExecContext(ctx, `INSERT INTO audit_logs(id,action,resource_type,resource_id,actor_user_id,before_json,after_json,metadata_json,created_at)
VALUES (:id,:action,:resource_type,:resource_id,:actor_user_id,:before_json,:after_json,:metadata_json,:created_at)`, log)
	if err != nil {
		return domain.AuditLog{}, err
	}
	return log, nil
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type Filters struct {
	ResourceType    string
	ResourceID      string
	Action          string
	ActorUserID     string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

type Reader struct {
	DB *sqlx.DB
}

// List returns entries newest first, paging on (created_at, id).
func (r Reader) List(ctx context.Context, f Filters) ([]domain.AuditLog, error) {
	var (
		clauses []string
		args    []any
	)
	if f.ResourceType != "" {
		clauses = append(clauses, "resource_type=?")
		args = append(args, f.ResourceType)
	}
	if f.ResourceID != "" {
		clauses = append(clauses, "resource_id=?")
		args = append(args, f.ResourceID)
	}
	if f.Action != "" {
		clauses = append(clauses, "action=?")
		args = append(args, f.Action)
	}
	if f.ActorUserID != "" {
		clauses = append(clauses, "actor_user_id=?")
		args = append(args, f.ActorUserID)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT id,action,resource_type,resource_id,actor_user_id,before_json,after_json,metadata_json,created_at FROM audit_logs ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	var out []domain.AuditLog
	if err := r.DB.SelectContext(ctx, &out, r.DB.Rebind(query), args...); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode unpacks the stored JSON columns of an entry.
func Decode(l domain.AuditLog) (before, after any, metadata map[string]any, err error) {
	if l.Before != "" {
		if err = json.Unmarshal([]byte(l.Before), &before); err != nil {
			return nil, nil, nil, err
		}
	}
	if l.After != "" {
		if err = json.Unmarshal([]byte(l.After), &after); err != nil {
			return nil, nil, nil, err
		}
	}
	if l.Metadata != "" {
		if err = json.Unmarshal([]byte(l.Metadata), &metadata); err != nil {
			return nil, nil, nil, err
		}
	}
	return before, after, metadata, nil
}
