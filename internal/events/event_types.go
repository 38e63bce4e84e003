package events

import (
	"time"

	"github.com/tracklite-io/tracklite/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketTransitioned  EventType = "ticket_transitioned"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketArchiveToggle EventType = "ticket_archive_toggled"
	EventNotificationCreated EventType = "notification_created"
)

// Event represents a domain event emitted after a committed mutation.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   string      `json:"actor_id"`
	ActorRole domain.Role `json:"actor_role"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ProjectID string                `json:"project_id"`
	Title     string                `json:"title"`
	Type      domain.TicketType     `json:"ticket_type"`
	Priority  domain.TicketPriority `json:"priority"`
}

// TicketTransitionedPayload payload.
type TicketTransitionedPayload struct {
	OldStatus domain.TicketStatus  `json:"old_status"`
	NewStatus domain.TicketStatus  `json:"new_status"`
	Action    domain.HistoryAction `json:"action"`
	Comment   string               `json:"comment,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID string  `json:"assignee_id"`
	Previous   *string `json:"previous_assignee_id,omitempty"`
}

// TicketArchiveTogglePayload payload.
type TicketArchiveTogglePayload struct {
	Archived bool `json:"archived"`
}

// NotificationCreatedPayload carries the durable row so push handlers
// never re-read the store.
type NotificationCreatedPayload struct {
	Notification domain.Notification `json:"notification"`
}
