package engine

import (
	"context"
	"fmt"

	"brokerdesk/internal/audit"
	"brokerdesk/internal/domain"
	"brokerdesk/internal/lifecycle"
)

// AuditEntry is an audit row with its JSON columns decoded.
type AuditEntry struct {
	domain.AuditLog
	Before   any            `json:"before"`
	After    any            `json:"after"`
	Metadata map[string]any `json:"metadata"`
}

// ListAuditLogs is restricted to broker staff.
func (e Engine) ListAuditLogs(ctx context.Context, actorID string, f audit.Filters) ([]AuditEntry, error) {
	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !acc.IsStaff() {
		return nil, forbidden("role %s cannot read audit logs", acc.Role)
	}
	logs, err := e.AuditLog.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]AuditEntry, 0, len(logs))
	for _, l := range logs {
		before, after, meta, err := audit.Decode(l)
		if err != nil {
			return nil, fmt.Errorf("decode audit %s: %w", l.ID, err)
		}
		out = append(out, AuditEntry{AuditLog: l, Before: before, After: after, Metadata: meta})
	}
	return out, nil
}

// Blueprint returns the rule table of an entity for any authenticated user.
func (e Engine) Blueprint(ctx context.Context, actorID, entity string) (lifecycle.Export, error) {
	if _, err := e.Auth.Current(ctx, actorID); err != nil {
		return lifecycle.Export{}, err
	}
	bp, ok := lifecycle.Lookup(entity)
	if !ok {
		return lifecycle.Export{}, notFound("lifecycle", entity)
	}
	return bp.Export(), nil
}
