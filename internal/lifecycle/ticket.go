package lifecycle

import "brokerdesk/internal/domain"

const (
	TicketOpen       Status = "OPEN"
	TicketInProgress Status = "IN_PROGRESS"
	TicketResolved   Status = "RESOLVED"
	TicketClosed     Status = "CLOSED"
)

var TicketPriorities = []string{"LOW", "NORMAL", "HIGH", "URGENT"}

var Ticket = mustBlueprint(&Blueprint{
	Entity:   "ticket",
	Initial:  TicketOpen,
	Order:    []Status{TicketOpen, TicketInProgress, TicketResolved, TicketClosed},
	Terminal: []Status{TicketClosed},
	Rules: map[Status]Rule{
		TicketOpen: {
			Label:              "Open",
			AllowedEditors:     domain.BrokerEmployees,
			EditableFields:     Fields(FieldSubject, FieldDescription, FieldPriority, FieldAssigneeID),
			AllowedTransitions: []Status{TicketInProgress, TicketClosed},
			TransitionRequirements: map[Status]FieldSet{
				TicketInProgress: Fields(FieldAssigneeID),
				TicketClosed:     Fields(),
			},
		},
		TicketInProgress: {
			Label:              "In progress",
			AllowedEditors:     domain.BrokerEmployees,
			EditableFields:     Fields(FieldDescription, FieldPriority, FieldAssigneeID, FieldResolution),
			AllowedTransitions: []Status{TicketResolved, TicketOpen, TicketClosed},
			TransitionRequirements: map[Status]FieldSet{
				TicketResolved: Fields(FieldResolution),
				TicketOpen:     Fields(),
				TicketClosed:   Fields(),
			},
		},
		TicketResolved: {
			Label:              "Resolved",
			AllowedEditors:     domain.BrokerEmployees,
			EditableFields:     Fields(FieldResolution),
			AllowedTransitions: []Status{TicketClosed, TicketInProgress},
			TransitionRequirements: map[Status]FieldSet{
				TicketClosed:     Fields(),
				TicketInProgress: Fields(),
			},
		},
		TicketClosed: terminalRule("Closed"),
	},
})

var TicketSchema = Schema{
	FieldSubject:     KindString.NotNull(),
	FieldDescription: KindText,
	FieldPriority:    KindEnum(TicketPriorities...).NotNull(),
	FieldAssigneeID:  KindRef,
	FieldResolution:  KindText,
}
