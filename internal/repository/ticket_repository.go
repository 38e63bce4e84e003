package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tracklite-io/tracklite/internal/domain"
)

// TicketFilter captures listing parameters. Role scoping is expressed by
// the caller pinning CreatedBy or AssignedTo.
type TicketFilter struct {
	ProjectID       *string
	CreatedBy       *string
	AssignedTo      *string
	Statuses        []domain.TicketStatus
	IncludeArchived bool
	Limit           int
	Offset          int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// UpdateGuarded persists the ticket's mutable fields only if the
	// stored (status, archived) pair still matches the expectation the
	// caller validated against. A mismatch returns ErrStaleTicket so a
	// losing concurrent writer surfaces as a conflict, never a silent
	// overwrite.
	UpdateGuarded(ctx context.Context, ticket *domain.Ticket, expectedStatus domain.TicketStatus, expectedArchived bool) error
}

type ticketRepository struct {
	db Querier
}

const ticketColumns = `id, external_key, project_id, created_by, assigned_to, title, description,
               ticket_type, status, priority, archived, reopen_count,
               satisfaction_score, satisfaction_comment,
               created_at, updated_at, assigned_at, started_at, resolved_at, reopened_at, closed_at, rated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, project_id, created_by, title, description, ticket_type, status, priority)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.ProjectID,
		ticket.CreatedBy,
		ticket.Title,
		ticket.Description,
		ticket.Type,
		ticket.Status,
		ticket.Priority,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := scanTicket(r.db.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) UpdateGuarded(ctx context.Context, ticket *domain.Ticket, expectedStatus domain.TicketStatus, expectedArchived bool) error {
	const query = `
        UPDATE tickets SET assigned_to=$1, status=$2, priority=$3, archived=$4, reopen_count=$5,
            satisfaction_score=$6, satisfaction_comment=$7,
            assigned_at=$8, started_at=$9, resolved_at=$10, reopened_at=$11, closed_at=$12, rated_at=$13,
            updated_at=NOW()
        WHERE id=$14 AND status=$15 AND archived=$16
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		ticket.AssignedTo,
		ticket.Status,
		ticket.Priority,
		ticket.Archived,
		ticket.ReopenCount,
		ticket.SatisfactionScore,
		ticket.SatisfactionComment,
		ticket.AssignedAt,
		ticket.StartedAt,
		ticket.ResolvedAt,
		ticket.ReopenedAt,
		ticket.ClosedAt,
		ticket.RatedAt,
		ticket.ID,
		expectedStatus,
		expectedArchived,
	).Scan(&ticket.UpdatedAt)
	if err == pgx.ErrNoRows {
		return ErrStaleTicket
	}
	return err
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ProjectID != nil {
		args = append(args, *filter.ProjectID)
		clauses = append(clauses, fmt.Sprintf("project_id=$%d", len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if !filter.IncludeArchived {
		clauses = append(clauses, "archived=FALSE")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.ProjectID,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.Title,
		&ticket.Description,
		&ticket.Type,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Archived,
		&ticket.ReopenCount,
		&ticket.SatisfactionScore,
		&ticket.SatisfactionComment,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.AssignedAt,
		&ticket.StartedAt,
		&ticket.ResolvedAt,
		&ticket.ReopenedAt,
		&ticket.ClosedAt,
		&ticket.RatedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
