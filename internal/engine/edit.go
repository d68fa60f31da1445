package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"brokerdesk/internal/apperr"
	"brokerdesk/internal/audit"
	"brokerdesk/internal/engine/auth"
	"brokerdesk/internal/lifecycle"
	"brokerdesk/internal/metrics"
	"brokerdesk/internal/repo"
)

// Patch is a decoded JSON update body. A key mapped to nil clears the field;
// a missing key leaves it untouched. "status" requests a transition.
type Patch map[string]any

// Change describes what an accepted edit did.
type Change struct {
	From   lifecycle.Status
	To     lifecycle.Status
	Fields []lifecycle.Field
}

func (c Change) Transitioning() bool { return c.To != "" && c.To != c.From }

// editTarget is one loaded entity as the edit flow sees it.
type editTarget struct {
	Record  any
	Values  lifecycle.Values
	Visible bool
}

// editAdapter binds the generic flow to one entity type.
type editAdapter struct {
	Blueprint *lifecycle.Blueprint
	Schema    lifecycle.Schema
	Table     string
	Load      func(ctx context.Context, q sqlx.ExtContext, id string, acc auth.Access) (editTarget, error)
	// CheckRefs validates referenced ids in updates against the current record.
	CheckRefs func(ctx context.Context, target editTarget, updates lifecycle.Values) error
	// AfterWrite inserts records conditioned on the transition, inside the edit tx.
	AfterWrite func(ctx context.Context, tx *sqlx.Tx, id string, acc auth.Access, change Change, side lifecycle.Values) error
}

// edit runs the lifecycle-checked update shared by every entity.
func (e Engine) edit(ctx context.Context, actorID, id string, patch Patch, ad editAdapter) (change Change, err error) {
	bp := ad.Blueprint
	ctx, span := e.tracer().Start(ctx, "engine.edit", trace.WithAttributes(
		attribute.String("entity", bp.Entity),
		attribute.String("id", id),
	))
	start := time.Now()
	defer func() {
		e.Metrics.Edits.WithLabelValues(bp.Entity, outcome(err)).Inc()
		e.Metrics.EditDuration.WithLabelValues(bp.Entity).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	acc, err := e.Auth.Current(ctx, actorID)
	if err != nil {
		return change, err
	}
	target, err := ad.Load(ctx, e.DB, id, acc)
	if err != nil {
		return change, loadErr(err, bp.Entity, id)
	}
	if !target.Visible {
		return change, notFound(bp.Entity, id)
	}
	current := target.Values.Status()
	change.From = current
	if !bp.CanUserEdit(acc.Role, current) {
		return change, apperr.Newf(apperr.Forbidden, "role %s cannot edit %s in status %s", acc.Role, bp.Entity, current).
			With("status", string(current))
	}

	to, raw, err := splitStatus(patch)
	if err != nil {
		return change, err
	}
	updates, err := ad.Schema.Coerce(raw)
	if err != nil {
		return change, err
	}
	transitioning := to != "" && to != current
	var next lifecycle.Status
	if transitioning {
		next = to
	}

	rest, side := updates.Split(bp.SideChannel)
	if len(side) > 0 {
		needed := bp.Requirements(current, next)
		var stray []string
		for _, f := range side.Keys() {
			if !transitioning || !needed.Has(f) {
				stray = append(stray, string(f))
			}
		}
		if len(stray) > 0 {
			return change, badRequest("fields %s are only accepted with a transition that requires them", strings.Join(stray, ", ")).
				With("fields", stray)
		}
	}

	if bad := bp.ForbiddenFieldsForTransition(rest, current, next); len(bad) > 0 {
		names := fieldNames(bad)
		return change, badRequest("fields not editable in status %s: %s", current, strings.Join(names, ", ")).
			With("status", string(current)).With("fields", names)
	}

	if transitioning {
		if !bp.CanTransition(current, to) {
			return change, badRequest("cannot move %s from %s to %s", bp.Entity, current, to).
				With("from", string(current)).With("to", string(to))
		}
		if missing := bp.MissingRequirements(target.Values, lifecycle.Merge(rest, side), to); len(missing) > 0 {
			names := fieldNames(missing)
			return change, badRequest("missing required fields for %s -> %s: %s", current, to, strings.Join(names, ", ")).
				With("from", string(current)).With("to", string(to)).With("fields", names)
		}
		change.To = to
	}
	if ad.CheckRefs != nil {
		if err := ad.CheckRefs(ctx, target, rest); err != nil {
			return change, err
		}
	}

	change.Fields = rest.Keys()
	if len(change.Fields) == 0 && !transitioning {
		return change, nil
	}
	cols := make(map[string]any, len(rest)+3)
	for f, v := range rest {
		cols[repo.Column(string(f))] = v
	}
	if transitioning {
		cols["status"] = string(to)
	}
	cols[repo.Column(string(lifecycle.FieldUpdatedByID))] = acc.UserID
	cols["updated_at"] = e.timestamp()

	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return change, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateColumns(ctx, tx, ad.Table, id, cols); err != nil {
		return change, storeErr(err, bp.Entity)
	}
	after, err := ad.Load(ctx, tx, id, acc)
	if err != nil {
		return change, loadErr(err, bp.Entity, id)
	}
	action := audit.ActionUpdated
	var transition any
	if transitioning {
		action = audit.ActionStatusChanged
		transition = map[string]any{"from": current, "to": to}
	}
	if _, err := e.Audit.Append(ctx, tx, audit.Entry{
		Action:       audit.Action(bp.Entity, action),
		ResourceType: bp.Entity,
		ResourceID:   id,
		ActorUserID:  acc.UserID,
		Before:       target.Record,
		After:        after.Record,
		Metadata: map[string]any{
			"role":       acc.Role,
			"transition": transition,
			"fields":     fieldNames(change.Fields),
		},
	}); err != nil {
		return change, fmt.Errorf("append audit: %w", err)
	}
	if ad.AfterWrite != nil {
		if err := ad.AfterWrite(ctx, tx, id, acc, change, side); err != nil {
			return change, storeErr(err, bp.Entity)
		}
	}
	if err := tx.Commit(); err != nil {
		return change, storeErr(err, bp.Entity)
	}

	if transitioning {
		e.Metrics.Transitions.WithLabelValues(bp.Entity, string(current), string(to)).Inc()
	}
	e.Logger.InfoContext(ctx, "lifecycle edit",
		"entity", bp.Entity, "id", id, "actor", acc.UserID,
		"from", string(current), "to", string(change.To), "fields", len(change.Fields))
	return change, nil
}

func splitStatus(patch Patch) (lifecycle.Status, map[string]any, error) {
	rest := make(map[string]any, len(patch))
	var to lifecycle.Status
	for k, v := range patch {
		if k != string(lifecycle.StatusField) {
			rest[k] = v
			continue
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return "", nil, badRequest("status must be a non-empty string").With("field", k)
		}
		to = lifecycle.Status(strings.TrimSpace(s))
	}
	return to, rest, nil
}

// valuesOf projects a record's JSON form onto the fields the schema knows,
// plus status.
func valuesOf(record any, schema lifecycle.Schema) (lifecycle.Values, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(lifecycle.Values, len(schema)+1)
	for k, v := range raw {
		f := lifecycle.Field(k)
		if _, ok := schema[f]; ok || f == lifecycle.StatusField {
			out[f] = v
		}
	}
	return out, nil
}

func fieldNames(fields []lifecycle.Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	switch apperr.KindOf(err) {
	case apperr.Forbidden, apperr.Unauthenticated:
		return metrics.OutcomeForbidden
	case apperr.BadRequest, apperr.NotFound, apperr.Conflict:
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}

func (e Engine) tracer() trace.Tracer {
	if e.Tracer != nil {
		return e.Tracer
	}
	return otel.Tracer("brokerdesk/engine")
}
