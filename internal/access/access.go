// Package access holds the single visibility rule every read and write
// path consults: who may see and act on a ticket, and which audit actions
// each role is allowed to replay.
package access

import "github.com/tracklite-io/tracklite/internal/domain"

// Visibility is the decision for one (role, ticket, actor) combination.
type Visibility struct {
	CanView bool
	CanAct  bool
}

// ForTicket computes visibility from role and relationship to the ticket.
// Admins see everything; developers only tickets assigned to them;
// requesters only tickets they created.
func ForTicket(role domain.Role, ticket *domain.Ticket, actorID string) Visibility {
	if ticket == nil {
		return Visibility{}
	}
	switch role {
	case domain.RoleAdmin:
		return Visibility{CanView: true, CanAct: true}
	case domain.RoleDeveloper:
		if ticket.AssignedTo != nil && *ticket.AssignedTo == actorID {
			return Visibility{CanView: true, CanAct: true}
		}
	case domain.RoleEndUser:
		if ticket.CreatedBy == actorID {
			return Visibility{CanView: true, CanAct: true}
		}
	}
	return Visibility{}
}

// historyAllowList fixes which audit actions each role may replay.
// Developers see the operational trail but not satisfaction ratings;
// requesters see outcome-level actions only.
var historyAllowList = map[domain.Role]map[domain.HistoryAction]struct{}{
	domain.RoleDeveloper: actionSet(
		domain.ActionCreated,
		domain.ActionAssigned,
		domain.ActionReassigned,
		domain.ActionStatusChanged,
		domain.ActionPriorityChanged,
		domain.ActionResolved,
		domain.ActionClosed,
		domain.ActionReopened,
		domain.ActionArchived,
		domain.ActionUnarchived,
		domain.ActionAttachmentAdded,
	),
	domain.RoleEndUser: actionSet(
		domain.ActionCreated,
		domain.ActionAssigned,
		domain.ActionStatusChanged,
		domain.ActionResolved,
		domain.ActionClosed,
		domain.ActionReopened,
		domain.ActionSatisfactionRated,
	),
}

func actionSet(actions ...domain.HistoryAction) map[domain.HistoryAction]struct{} {
	set := make(map[domain.HistoryAction]struct{}, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

// CanSeeHistoryAction reports whether role may replay entries of the
// given action kind. Admins see all actions.
func CanSeeHistoryAction(role domain.Role, action domain.HistoryAction) bool {
	if role == domain.RoleAdmin {
		return true
	}
	allowed, ok := historyAllowList[role]
	if !ok {
		return false
	}
	_, ok = allowed[action]
	return ok
}

// FilterHistory returns the entries role is allowed to replay, preserving
// chronological order.
func FilterHistory(role domain.Role, entries []domain.HistoryEntry) []domain.HistoryEntry {
	if role == domain.RoleAdmin {
		return entries
	}
	filtered := make([]domain.HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		if CanSeeHistoryAction(role, entry.Action) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}
