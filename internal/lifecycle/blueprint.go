// Package lifecycle holds the per-entity status rule tables and the validator
// that enforces them. Rules are data: a Blueprint maps each status to a Rule,
// and every check below is a lookup against that table. Nothing here touches
// storage.
package lifecycle

import (
	"errors"
	"fmt"
	"sort"

	"brokerdesk/internal/domain"
)

type Status string

type Field string

// StatusField is the request key that carries a transition target.
const StatusField Field = "status"

type FieldSet map[Field]struct{}

func Fields(fields ...Field) FieldSet {
	s := make(FieldSet, len(fields))
	for _, f := range fields {
		s[f] = struct{}{}
	}
	return s
}

func (s FieldSet) Has(f Field) bool {
	_, ok := s[f]
	return ok
}

// With returns a copy of s extended with fields.
func (s FieldSet) With(fields ...Field) FieldSet {
	out := make(FieldSet, len(s)+len(fields))
	for f := range s {
		out[f] = struct{}{}
	}
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

func (s FieldSet) Sorted() []Field {
	out := make([]Field, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Rule is the policy attached to one status.
type Rule struct {
	Label                  string
	AllowedEditors         domain.RoleSet
	EditableFields         FieldSet
	AllowedTransitions     []Status
	TransitionRequirements map[Status]FieldSet
}

// Blueprint is the complete rule table for one entity type.
type Blueprint struct {
	Entity   string
	Initial  Status
	Order    []Status
	Terminal []Status
	Rules    map[Status]Rule
	// SideChannel fields may appear in requests and satisfy requirements but
	// are never written to the entity row.
	SideChannel FieldSet
}

// Statuses returns the full enumeration in display order.
func (b *Blueprint) Statuses() []Status {
	return append([]Status(nil), b.Order...)
}

func (b *Blueprint) Known(s Status) bool {
	_, ok := b.Rules[s]
	return ok
}

func (b *Blueprint) Rule(s Status) (Rule, bool) {
	r, ok := b.Rules[s]
	return r, ok
}

func (b *Blueprint) IsTerminal(s Status) bool {
	for _, t := range b.Terminal {
		if t == s {
			return true
		}
	}
	return false
}

// CanUserEdit reports whether role may edit an entity in status.
// Unknown statuses deny.
func (b *Blueprint) CanUserEdit(role domain.Role, status Status) bool {
	r, ok := b.Rules[status]
	if !ok {
		return false
	}
	return r.AllowedEditors.Has(role)
}

// ForbiddenFields returns the keys of updates not editable in status, sorted.
// Every key is forbidden when status is unknown.
func (b *Blueprint) ForbiddenFields(updates Values, status Status) []Field {
	r, ok := b.Rules[status]
	var out []Field
	for _, f := range updates.Keys() {
		if !ok || !r.EditableFields.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// ForbiddenFieldsForTransition is ForbiddenFields with the transition
// override applied: fields required by from -> to are allowed in the same
// request even when from does not list them as editable.
func (b *Blueprint) ForbiddenFieldsForTransition(updates Values, from, to Status) []Field {
	forbidden := b.ForbiddenFields(updates, from)
	if to == "" || to == from {
		return forbidden
	}
	required := b.Requirements(from, to)
	out := forbidden[:0]
	for _, f := range forbidden {
		if !required.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// CanTransition reports whether to is reachable from from in one step.
// Callers skip the check entirely when from == to.
func (b *Blueprint) CanTransition(from, to Status) bool {
	r, ok := b.Rules[from]
	if !ok {
		return false
	}
	for _, s := range r.AllowedTransitions {
		if s == to {
			return true
		}
	}
	return false
}

// Requirements returns the fields that must be non-empty to move from -> to.
// The result is empty, never nil, when nothing is required.
func (b *Blueprint) Requirements(from, to Status) FieldSet {
	r, ok := b.Rules[from]
	if !ok || r.TransitionRequirements[to] == nil {
		return FieldSet{}
	}
	return r.TransitionRequirements[to]
}

// MissingRequirements overlays updates onto current and returns, sorted, the
// fields required by current.status -> to that are empty in the merged state.
func (b *Blueprint) MissingRequirements(current, updates Values, to Status) []Field {
	required := b.Requirements(current.Status(), to)
	if len(required) == 0 {
		return nil
	}
	merged := Merge(current, updates)
	var missing []Field
	for _, f := range required.Sorted() {
		if IsEmpty(merged[f]) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Check validates the table's structure.
func (b *Blueprint) Check() error {
	var errs []error
	if b.Entity == "" {
		errs = append(errs, errors.New("entity name is required"))
	}
	if !b.Known(b.Initial) {
		errs = append(errs, fmt.Errorf("%s: initial status %q has no rule", b.Entity, b.Initial))
	}
	if len(b.Order) != len(b.Rules) {
		errs = append(errs, fmt.Errorf("%s: %d statuses ordered but %d rules defined", b.Entity, len(b.Order), len(b.Rules)))
	}
	for _, s := range b.Order {
		if !b.Known(s) {
			errs = append(errs, fmt.Errorf("%s: status %q has no rule", b.Entity, s))
		}
	}
	for status, r := range b.Rules {
		for _, to := range r.AllowedTransitions {
			if !b.Known(to) {
				errs = append(errs, fmt.Errorf("%s: %s -> %s targets unknown status", b.Entity, status, to))
			}
			if _, ok := r.TransitionRequirements[to]; !ok {
				errs = append(errs, fmt.Errorf("%s: %s -> %s has no requirements entry", b.Entity, status, to))
			}
		}
		for to := range r.TransitionRequirements {
			if !b.CanTransition(status, to) {
				errs = append(errs, fmt.Errorf("%s: requirements for %s -> %s without an allowed transition", b.Entity, status, to))
			}
		}
	}
	for _, t := range b.Terminal {
		r, ok := b.Rules[t]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: terminal status %q has no rule", b.Entity, t))
			continue
		}
		if len(r.AllowedTransitions) > 0 {
			errs = append(errs, fmt.Errorf("%s: terminal status %s has outgoing transitions", b.Entity, t))
		}
		if r.AllowedEditors&^domain.TopAdmin != 0 {
			errs = append(errs, fmt.Errorf("%s: terminal status %s is editable below top admin", b.Entity, t))
		}
	}
	return errors.Join(errs...)
}

// terminalRule is the shape of a locked status: top admin only, no transitions.
func terminalRule(label string, editable ...Field) Rule {
	return Rule{
		Label:                  label,
		AllowedEditors:         domain.TopAdmin,
		EditableFields:         Fields(editable...),
		TransitionRequirements: map[Status]FieldSet{},
	}
}

func mustBlueprint(b *Blueprint) *Blueprint {
	if err := b.Check(); err != nil {
		panic(fmt.Sprintf("lifecycle: invalid blueprint: %v", err))
	}
	registry[b.Entity] = b
	return b
}

var registry = map[string]*Blueprint{}

// Lookup returns the blueprint registered for an entity name.
func Lookup(entity string) (*Blueprint, bool) {
	b, ok := registry[entity]
	return b, ok
}

// Entities lists the registered entity names, sorted.
func Entities() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
