package domain

import "time"

// HistoryAction captures what a history entry records.
type HistoryAction string

const (
	ActionCreated           HistoryAction = "CREATED"
	ActionAssigned          HistoryAction = "ASSIGNED"
	ActionReassigned        HistoryAction = "REASSIGNED"
	ActionStatusChanged     HistoryAction = "STATUS_CHANGED"
	ActionPriorityChanged   HistoryAction = "PRIORITY_CHANGED"
	ActionResolved          HistoryAction = "RESOLVED"
	ActionClosed            HistoryAction = "CLOSED"
	ActionReopened          HistoryAction = "REOPENED"
	ActionArchived          HistoryAction = "ARCHIVED"
	ActionUnarchived        HistoryAction = "UNARCHIVED"
	ActionAttachmentAdded   HistoryAction = "ATTACHMENT_ADDED"
	ActionSatisfactionRated HistoryAction = "SATISFACTION_RATED"
)

// HistoryEntry is an immutable audit trail record. Entries are created
// exactly once, inside the same transaction as the ticket mutation they
// describe, and are never updated or deleted.
type HistoryEntry struct {
	ID        string
	TicketID  string
	Action    HistoryAction
	ActorID   string
	OldValue  map[string]any
	NewValue  map[string]any
	Comment   string
	CreatedAt time.Time
}
