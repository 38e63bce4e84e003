package dto

import (
	"time"

	"github.com/tracklite-io/tracklite/internal/domain"
)

// NotificationResponse represents one durable notification.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	TicketID  string                  `json:"ticket_id"`
	Type      domain.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	IsRead    bool                    `json:"is_read"`
	CreatedAt time.Time               `json:"created_at"`
}

// CreateProjectRequest payload.
type CreateProjectRequest struct {
	Name string `json:"name"`
}
