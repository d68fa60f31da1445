package lifecycle

import (
	"sort"

	"brokerdesk/internal/domain"
)

// Export is the JSON form of a Blueprint served to frontends.
type Export struct {
	Entity      string         `json:"entity"`
	Initial     Status         `json:"initial"`
	Terminal    []Status       `json:"terminal"`
	SideChannel []Field        `json:"sideChannel"`
	Statuses    []StatusExport `json:"statuses"`
	Fields      []FieldExport  `json:"fields,omitempty"`
}

type StatusExport struct {
	Status         Status             `json:"status"`
	Label          string             `json:"label"`
	AllowedEditors []domain.Role      `json:"allowedEditors"`
	EditableFields []Field            `json:"editableFields"`
	Transitions    []TransitionExport `json:"transitions"`
}

type TransitionExport struct {
	To       Status  `json:"to"`
	Requires []Field `json:"requires"`
}

type FieldExport struct {
	Field    Field    `json:"field"`
	Kind     string   `json:"kind"`
	Enum     []string `json:"enum,omitempty"`
	Required bool     `json:"required,omitempty"`
}

// Export flattens the rule table in status order.
func (b *Blueprint) Export() Export {
	out := Export{
		Entity:      b.Entity,
		Initial:     b.Initial,
		Terminal:    append([]Status{}, b.Terminal...),
		SideChannel: b.SideChannel.Sorted(),
	}
	for _, s := range b.Order {
		r := b.Rules[s]
		se := StatusExport{
			Status:         s,
			Label:          r.Label,
			AllowedEditors: r.AllowedEditors.List(),
			EditableFields: r.EditableFields.Sorted(),
			Transitions:    []TransitionExport{},
		}
		for _, to := range r.AllowedTransitions {
			se.Transitions = append(se.Transitions, TransitionExport{To: to, Requires: b.Requirements(s, to).Sorted()})
		}
		out.Statuses = append(out.Statuses, se)
	}
	if schema, ok := SchemaFor(b.Entity); ok {
		for f, k := range schema {
			out.Fields = append(out.Fields, FieldExport{Field: f, Kind: k.Name, Enum: k.Enum, Required: k.Required})
		}
		sort.Slice(out.Fields, func(i, j int) bool { return out.Fields[i].Field < out.Fields[j].Field })
	}
	return out
}

// SchemaFor returns the request schema of a registered entity.
func SchemaFor(entity string) (Schema, bool) {
	switch entity {
	case "claim":
		return ClaimSchema, true
	case "policy":
		return PolicySchema, true
	case "invoice":
		return InvoiceSchema, true
	case "ticket":
		return TicketSchema, true
	}
	return nil, false
}
