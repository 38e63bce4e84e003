package dto

import (
	"time"

	"github.com/tracklite-io/tracklite/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	ProjectID   string                `json:"project_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Type        domain.TicketType     `json:"type"`
	Priority    domain.TicketPriority `json:"priority"`
}

// AssignRequest payload.
type AssignRequest struct {
	DeveloperID string `json:"developer_id"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status  domain.TicketStatus `json:"status"`
	Comment string              `json:"comment"`
}

// CloseTicketRequest payload.
type CloseTicketRequest struct {
	Comment             string `json:"comment"`
	SatisfactionScore   *int   `json:"satisfaction_score"`
	SatisfactionComment string `json:"satisfaction_comment"`
}

// ReopenTicketRequest payload.
type ReopenTicketRequest struct {
	Comment string `json:"comment"`
}

// ChangePriorityRequest payload.
type ChangePriorityRequest struct {
	Priority domain.TicketPriority `json:"priority"`
}

// RateTicketRequest payload.
type RateTicketRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// AttachmentRequest describes attachment metadata.
type AttachmentRequest struct {
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// TicketSummary response.
type TicketSummary struct {
	ID          string                `json:"id"`
	ExternalKey string                `json:"external_key"`
	ProjectID   string                `json:"project_id"`
	Title       string                `json:"title"`
	Type        domain.TicketType     `json:"type"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	AssignedTo  *string               `json:"assigned_to"`
	Archived    bool                  `json:"archived"`
	ReopenCount int                   `json:"reopen_count"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description         string     `json:"description"`
	CreatedBy           string     `json:"created_by"`
	SatisfactionScore   *int       `json:"satisfaction_score"`
	SatisfactionComment *string    `json:"satisfaction_comment"`
	AssignedAt          *time.Time `json:"assigned_at"`
	StartedAt           *time.Time `json:"started_at"`
	ResolvedAt          *time.Time `json:"resolved_at"`
	ReopenedAt          *time.Time `json:"reopened_at"`
	ClosedAt            *time.Time `json:"closed_at"`
	RatedAt             *time.Time `json:"rated_at"`
}

// HistoryEntryResponse represents one audit entry.
type HistoryEntryResponse struct {
	ID        string               `json:"id"`
	Action    domain.HistoryAction `json:"action"`
	ActorID   string               `json:"actor_id"`
	OldValue  map[string]any       `json:"old_value,omitempty"`
	NewValue  map[string]any       `json:"new_value,omitempty"`
	Comment   string               `json:"comment,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}
