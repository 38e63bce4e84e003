// Package workflow owns the ticket state machine. The transition table
// below is the single source of truth for which (role, from, to) moves
// are legal; nothing elsewhere may bypass it, including admins trying to
// leave the terminal Closed state.
package workflow

import (
	"github.com/tracklite-io/tracklite/internal/domain"
	apperrors "github.com/tracklite-io/tracklite/pkg/util"
)

// transitions maps (role, current status) to the permitted next statuses.
//
// Admin rows enumerate every move except out of Closed. The admin
// Open→InProgress entry doubles as the auto-advance applied on first
// assignment, so that side effect lives in the same enumerable matrix.
var transitions = map[domain.Role]map[domain.TicketStatus][]domain.TicketStatus{
	domain.RoleAdmin: {
		domain.TicketStatusOpen: {
			domain.TicketStatusInProgress,
			domain.TicketStatusResolved,
			domain.TicketStatusReopened,
			domain.TicketStatusClosed,
		},
		domain.TicketStatusInProgress: {
			domain.TicketStatusOpen,
			domain.TicketStatusResolved,
			domain.TicketStatusReopened,
			domain.TicketStatusClosed,
		},
		domain.TicketStatusResolved: {
			domain.TicketStatusOpen,
			domain.TicketStatusInProgress,
			domain.TicketStatusReopened,
			domain.TicketStatusClosed,
		},
		domain.TicketStatusReopened: {
			domain.TicketStatusOpen,
			domain.TicketStatusInProgress,
			domain.TicketStatusResolved,
			domain.TicketStatusClosed,
		},
	},
	domain.RoleDeveloper: {
		domain.TicketStatusInProgress: {domain.TicketStatusResolved},
		domain.TicketStatusReopened:   {domain.TicketStatusInProgress},
	},
	domain.RoleEndUser: {
		domain.TicketStatusResolved: {
			domain.TicketStatusClosed,
			domain.TicketStatusReopened,
		},
	},
}

// Allowed reports whether the table permits role to move a ticket from
// one status to another.
func Allowed(role domain.Role, from, to domain.TicketStatus) bool {
	byStatus, ok := transitions[role]
	if !ok {
		return false
	}
	for _, candidate := range byStatus[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Validate returns an InvalidTransition error naming the offending
// (role, from, to) triple when the move is not in the table.
func Validate(role domain.Role, from, to domain.TicketStatus) error {
	if !Allowed(role, from, to) {
		return apperrors.NewInvalidTransition(string(role), string(from), string(to))
	}
	return nil
}

// ActionFor maps an accepted transition to the audit action it records.
func ActionFor(to domain.TicketStatus) domain.HistoryAction {
	switch to {
	case domain.TicketStatusResolved:
		return domain.ActionResolved
	case domain.TicketStatusClosed:
		return domain.ActionClosed
	case domain.TicketStatusReopened:
		return domain.ActionReopened
	default:
		return domain.ActionStatusChanged
	}
}

// Recipient pairs a user with the notification it should receive.
type Recipient struct {
	UserID string
	Type   domain.NotificationType
}

// Recipients computes the notification fan-out for an accepted
// transition. The actor never notifies itself. adminIDs is the full
// administrator directory, consulted only for reopens.
func Recipients(role domain.Role, to domain.TicketStatus, ticket *domain.Ticket, actorID string, adminIDs []string) []Recipient {
	var out []Recipient
	add := func(userID string, t domain.NotificationType) {
		if userID == "" || userID == actorID {
			return
		}
		for _, existing := range out {
			if existing.UserID == userID {
				return
			}
		}
		out = append(out, Recipient{UserID: userID, Type: t})
	}

	switch to {
	case domain.TicketStatusResolved:
		add(ticket.CreatedBy, domain.NotificationTicketResolved)
	case domain.TicketStatusReopened:
		if ticket.AssignedTo != nil {
			add(*ticket.AssignedTo, domain.NotificationTicketReopened)
		}
		for _, adminID := range adminIDs {
			add(adminID, domain.NotificationTicketReopened)
		}
	case domain.TicketStatusClosed:
		// Terminal; nobody further.
	default:
		// A developer restarting work (Reopened→InProgress) is silent
		// per the table; generic admin moves alert both parties.
		if role == domain.RoleAdmin {
			add(ticket.CreatedBy, domain.NotificationStatusChanged)
			if ticket.AssignedTo != nil {
				add(*ticket.AssignedTo, domain.NotificationStatusChanged)
			}
		}
	}
	return out
}
