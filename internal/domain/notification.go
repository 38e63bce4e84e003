package domain

import "time"

// NotificationType represents the kind of notification.
type NotificationType string

const (
	NotificationTicketAssigned  NotificationType = "TICKET_ASSIGNED"
	NotificationTicketResolved  NotificationType = "TICKET_RESOLVED"
	NotificationTicketReopened  NotificationType = "TICKET_REOPENED"
	NotificationStatusChanged   NotificationType = "TICKET_STATUS_CHANGED"
	NotificationPriorityChanged NotificationType = "TICKET_PRIORITY_CHANGED"
	NotificationAttachmentAdded NotificationType = "TICKET_ATTACHMENT_ADDED"
)

// Notification is a durable per-recipient alert. It is written in the
// same transaction as the triggering ticket mutation and only ever
// mutated by its recipient marking it read.
type Notification struct {
	ID          string
	RecipientID string
	TicketID    string
	Type        NotificationType
	Message     string
	IsRead      bool
	CreatedAt   time.Time
}
