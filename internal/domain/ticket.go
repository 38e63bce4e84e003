package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusReopened   TicketStatus = "REOPENED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketStatuses lists every lifecycle state.
func TicketStatuses() []TicketStatus {
	return []TicketStatus{
		TicketStatusOpen,
		TicketStatusInProgress,
		TicketStatusResolved,
		TicketStatusReopened,
		TicketStatusClosed,
	}
}

// ValidStatus reports whether raw names a known lifecycle state.
func ValidStatus(raw TicketStatus) bool {
	for _, s := range TicketStatuses() {
		if s == raw {
			return true
		}
	}
	return false
}

// TicketType differentiates defect reports from feature requests.
type TicketType string

const (
	TicketTypeBug     TicketType = "BUG"
	TicketTypeFeature TicketType = "FEATURE"
)

// ValidTicketType reports whether raw is a known ticket type.
func ValidTicketType(raw TicketType) bool {
	return raw == TicketTypeBug || raw == TicketTypeFeature
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// ValidPriority reports whether raw is a known priority.
func ValidPriority(raw TicketPriority) bool {
	switch raw {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// Ticket is the aggregate for tracked work items.
//
// Lifecycle timestamps are set on first occurrence and never overwritten;
// ReopenCount carries the recurrence signal. Archived is orthogonal to
// Status and may only be raised on a Closed ticket.
type Ticket struct {
	ID                  string
	ExternalKey         string
	ProjectID           string
	CreatedBy           string
	AssignedTo          *string
	Title               string
	Description         string
	Type                TicketType
	Status              TicketStatus
	Priority            TicketPriority
	Archived            bool
	ReopenCount         int
	SatisfactionScore   *int
	SatisfactionComment *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	AssignedAt          *time.Time
	StartedAt           *time.Time
	ResolvedAt          *time.Time
	ReopenedAt          *time.Time
	ClosedAt            *time.Time
	RatedAt             *time.Time
}
