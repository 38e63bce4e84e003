package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/tracklite-io/tracklite/internal/access"
	"github.com/tracklite-io/tracklite/internal/domain"
	"github.com/tracklite-io/tracklite/internal/events"
	"github.com/tracklite-io/tracklite/internal/observability"
	"github.com/tracklite-io/tracklite/internal/repository"
	"github.com/tracklite-io/tracklite/internal/workflow"
	apperrors "github.com/tracklite-io/tracklite/pkg/util"
)

// Actor is the (actorId, role) pair supplied by the identity layer.
type Actor struct {
	ID   string
	Role domain.Role
}

// TicketService is the lifecycle engine. Every accepted mutation commits
// the ticket write, exactly one history entry and zero-or-more
// notification rows as a single transaction, then hands events to the
// dispatcher for best-effort live delivery.
type TicketService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the engine.
type TicketDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewTicketService constructs the engine.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	ProjectID   string
	Title       string
	Description string
	Type        domain.TicketType
	Priority    domain.TicketPriority
}

// TicketListFilter describes listing options.
type TicketListFilter struct {
	Statuses        []domain.TicketStatus
	IncludeArchived bool
	Limit           int
	Offset          int
}

// AttachmentInput is metadata recorded for an attachment audit entry.
type AttachmentInput struct {
	FileName  string
	MimeType  string
	SizeBytes int64
}

// mutation is the outcome of one committed transaction, used to publish
// events strictly after the durable write.
type mutation struct {
	ticket *domain.Ticket
	notifs []domain.Notification
	event  events.Event
}

// CreateTicket creates a ticket for a requester or admin. Tickets always
// start Open.
func (s *TicketService) CreateTicket(ctx context.Context, actor Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if actor.Role != domain.RoleEndUser && actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only requesters and admins may create tickets")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title required", nil)
	}
	if !domain.ValidTicketType(input.Type) {
		return nil, apperrors.NewValidationError("invalid ticket type", map[string]any{"type": input.Type})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": input.Priority})
	}

	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		ProjectID:   input.ProjectID,
		CreatedBy:   actor.ID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Type:        input.Type,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		project, err := tx.Projects().GetByID(ctx, input.ProjectID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("project", map[string]any{"project_id": input.ProjectID})
			}
			return apperrors.MapError(err)
		}
		if !project.IsActive {
			return apperrors.NewValidationError("project inactive", map[string]any{"project_id": project.ID})
		}
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return apperrors.MapError(err)
		}
		entry := &domain.HistoryEntry{
			TicketID: ticket.ID,
			Action:   domain.ActionCreated,
			ActorID:  actor.ID,
			NewValue: map[string]any{
				"status":   ticket.Status,
				"priority": ticket.Priority,
				"type":     ticket.Type,
			},
		}
		return apperrors.MapError(tx.History().Create(ctx, entry))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(string(domain.ActionCreated))
	s.publish(ctx, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Payload: events.TicketCreatedPayload{
			ProjectID: ticket.ProjectID,
			Title:     ticket.Title,
			Type:      ticket.Type,
			Priority:  ticket.Priority,
		},
	})
	return ticket, nil
}

// ListTickets returns the tickets visible to the actor. Archived tickets
// are excluded unless explicitly requested.
func (s *TicketService) ListTickets(ctx context.Context, actor Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Statuses:        filter.Statuses,
		IncludeArchived: filter.IncludeArchived,
		Limit:           filter.Limit,
		Offset:          filter.Offset,
	}
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleDeveloper:
		id := actor.ID
		repoFilter.AssignedTo = &id
	case domain.RoleEndUser:
		id := actor.ID
		repoFilter.CreatedBy = &id
	default:
		return nil, apperrors.NewForbidden("unknown role")
	}
	tickets, err := s.store.Tickets().ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicket fetches a ticket the actor may view. A ticket that exists but
// is hidden from the actor yields Forbidden, not NotFound.
func (s *TicketService) GetTicket(ctx context.Context, actor Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !access.ForTicket(actor.Role, ticket, actor.ID).CanView {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// GetHistory returns the audit trail entries the actor's role may replay,
// chronological ascending.
func (s *TicketService) GetHistory(ctx context.Context, actor Actor, ticketID string) ([]domain.HistoryEntry, error) {
	if _, err := s.GetTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.store.History().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return access.FilterHistory(actor.Role, entries), nil
}

// Assign sets or replaces the ticket's developer. Admin only. Assigning
// an Open ticket auto-advances it to InProgress through the same
// transition table as any other move.
func (s *TicketService) Assign(ctx context.Context, actor Actor, ticketID, developerID string) (*domain.Ticket, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins may assign tickets")
	}

	var result mutation
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		assignee, err := tx.Users().GetByID(ctx, developerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewValidationError("assignee not found", map[string]any{"developer_id": developerID})
			}
			return apperrors.MapError(err)
		}
		if assignee.Role == domain.RoleEndUser {
			return apperrors.NewValidationError("assignee must be a developer", map[string]any{"developer_id": developerID})
		}
		if assignee.Status != domain.UserStatusActive {
			return apperrors.NewValidationError("assignee suspended", map[string]any{"developer_id": developerID})
		}

		ticket, err := s.loadForAct(ctx, tx, actor, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status == domain.TicketStatusClosed {
			return apperrors.NewValidationError("cannot assign a closed ticket", nil)
		}

		oldStatus := ticket.Status
		oldAssignee := ticket.AssignedTo
		action := domain.ActionAssigned
		if oldAssignee != nil {
			action = domain.ActionReassigned
		}

		if ticket.Status == domain.TicketStatusOpen {
			if err := workflow.Validate(domain.RoleAdmin, ticket.Status, domain.TicketStatusInProgress); err != nil {
				return err
			}
			ticket.Status = domain.TicketStatusInProgress
			stampOnce(&ticket.StartedAt)
		}
		ticket.AssignedTo = &assignee.ID
		stampOnce(&ticket.AssignedAt)

		if err := s.saveGuarded(ctx, tx, ticket, oldStatus, false); err != nil {
			return err
		}

		entry := &domain.HistoryEntry{
			TicketID: ticket.ID,
			Action:   action,
			ActorID:  actor.ID,
			OldValue: map[string]any{"assigned_to": oldAssignee, "status": oldStatus},
			NewValue: map[string]any{"assigned_to": assignee.ID, "status": ticket.Status},
		}
		if err := tx.History().Create(ctx, entry); err != nil {
			return apperrors.MapError(err)
		}

		notifs, err := s.createNotifications(ctx, tx, ticket,
			[]workflow.Recipient{{UserID: assignee.ID, Type: domain.NotificationTicketAssigned}}, actor.ID)
		if err != nil {
			return err
		}

		result = mutation{
			ticket: ticket,
			notifs: notifs,
			event: events.Event{
				Type:      events.EventTicketAssigned,
				TicketID:  ticket.ID,
				ActorID:   actor.ID,
				ActorRole: actor.Role,
				Payload:   events.TicketAssignedPayload{AssigneeID: assignee.ID, Previous: oldAssignee},
			},
		}
		s.metrics.RecordTransition(string(action))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishMutation(ctx, result)
	return result.ticket, nil
}

// ChangeStatus moves the ticket through the state machine for the actor's
// role. Reopened targets require a non-empty comment.
func (s *TicketService) ChangeStatus(ctx context.Context, actor Actor, ticketID string, next domain.TicketStatus, comment string) (*domain.Ticket, error) {
	if !domain.ValidStatus(next) {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": next})
	}
	if next == domain.TicketStatusReopened && strings.TrimSpace(comment) == "" {
		return nil, apperrors.NewValidationError("reopen requires a comment", nil)
	}
	return s.transition(ctx, actor, ticketID, next, comment, nil)
}

// Close moves a ticket to Closed, optionally capturing a satisfaction
// score and comment atomically with the close.
func (s *TicketService) Close(ctx context.Context, actor Actor, ticketID, comment string, score *int, satisfactionComment string) (*domain.Ticket, error) {
	if score != nil && (*score < 1 || *score > 5) {
		return nil, apperrors.NewValidationError("satisfaction score must be between 1 and 5", map[string]any{"score": *score})
	}
	return s.transition(ctx, actor, ticketID, domain.TicketStatusClosed, comment, func(t *domain.Ticket, entry *domain.HistoryEntry) {
		if score == nil {
			return
		}
		t.SatisfactionScore = score
		if c := strings.TrimSpace(satisfactionComment); c != "" {
			t.SatisfactionComment = &c
		}
		stampOnce(&t.RatedAt)
		entry.NewValue["satisfaction_score"] = *score
	})
}

// Reopen rejects a resolution. The comment is mandatory; the reopen
// counter advances by exactly one.
func (s *TicketService) Reopen(ctx context.Context, actor Actor, ticketID, comment string) (*domain.Ticket, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, apperrors.NewValidationError("reopen requires a comment", nil)
	}
	return s.transition(ctx, actor, ticketID, domain.TicketStatusReopened, comment, nil)
}

// transition runs one state-machine move as a single atomic unit:
// re-validate against the currently persisted status, compare-and-set the
// ticket row, append exactly one history entry, write notification rows.
func (s *TicketService) transition(ctx context.Context, actor Actor, ticketID string, next domain.TicketStatus, comment string, extra func(*domain.Ticket, *domain.HistoryEntry)) (*domain.Ticket, error) {
	var result mutation
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := s.loadForAct(ctx, tx, actor, ticketID)
		if err != nil {
			return err
		}
		if err := workflow.Validate(actor.Role, ticket.Status, next); err != nil {
			return err
		}
		if next == domain.TicketStatusReopened && ticket.AssignedTo != nil && *ticket.AssignedTo == actor.ID {
			// Reopening models the requester rejecting a resolution; the
			// assignee forging that rejection is blocked even for admins.
			return apperrors.NewForbidden("the assigned developer may not reopen their own ticket")
		}

		oldStatus := ticket.Status
		ticket.Status = next
		switch next {
		case domain.TicketStatusInProgress:
			stampOnce(&ticket.StartedAt)
		case domain.TicketStatusResolved:
			stampOnce(&ticket.ResolvedAt)
		case domain.TicketStatusReopened:
			stampOnce(&ticket.ReopenedAt)
			ticket.ReopenCount++
		case domain.TicketStatusClosed:
			stampOnce(&ticket.ClosedAt)
		}

		action := workflow.ActionFor(next)
		entry := &domain.HistoryEntry{
			TicketID: ticket.ID,
			Action:   action,
			ActorID:  actor.ID,
			Comment:  strings.TrimSpace(comment),
			OldValue: map[string]any{"status": oldStatus},
			NewValue: map[string]any{"status": next},
		}
		if extra != nil {
			extra(ticket, entry)
		}

		if err := s.saveGuarded(ctx, tx, ticket, oldStatus, false); err != nil {
			return err
		}
		if err := tx.History().Create(ctx, entry); err != nil {
			return apperrors.MapError(err)
		}

		recipients, err := s.recipientsFor(ctx, tx, actor, next, ticket)
		if err != nil {
			return err
		}
		notifs, err := s.createNotifications(ctx, tx, ticket, recipients, actor.ID)
		if err != nil {
			return err
		}

		result = mutation{
			ticket: ticket,
			notifs: notifs,
			event: events.Event{
				Type:      events.EventTicketTransitioned,
				TicketID:  ticket.ID,
				ActorID:   actor.ID,
				ActorRole: actor.Role,
				Payload: events.TicketTransitionedPayload{
					OldStatus: oldStatus,
					NewStatus: next,
					Action:    action,
					Comment:   entry.Comment,
				},
			},
		}
		s.metrics.RecordTransition(string(action))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishMutation(ctx, result)
	return result.ticket, nil
}

// Archive marks a Closed ticket read-only. Admin only.
func (s *TicketService) Archive(ctx context.Context, actor Actor, ticketID string) (*domain.Ticket, error) {
	return s.toggleArchive(ctx, actor, ticketID, true)
}

// Unarchive returns an archived ticket to plain Closed. Admin only.
func (s *TicketService) Unarchive(ctx context.Context, actor Actor, ticketID string) (*domain.Ticket, error) {
	return s.toggleArchive(ctx, actor, ticketID, false)
}

func (s *TicketService) toggleArchive(ctx context.Context, actor Actor, ticketID string, archived bool) (*domain.Ticket, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins may archive tickets")
	}

	var result mutation
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := s.loadVisible(ctx, tx, actor, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status != domain.TicketStatusClosed {
			return apperrors.NewValidationError("only closed tickets may be archived", map[string]any{"status": ticket.Status})
		}
		if ticket.Archived == archived {
			return apperrors.NewConflict("ticket archive state unchanged", map[string]any{"archived": ticket.Archived})
		}

		ticket.Archived = archived
		if err := s.saveGuarded(ctx, tx, ticket, domain.TicketStatusClosed, !archived); err != nil {
			return err
		}

		action := domain.ActionArchived
		if !archived {
			action = domain.ActionUnarchived
		}
		entry := &domain.HistoryEntry{
			TicketID: ticket.ID,
			Action:   action,
			ActorID:  actor.ID,
			OldValue: map[string]any{"archived": !archived},
			NewValue: map[string]any{"archived": archived},
		}
		if err := tx.History().Create(ctx, entry); err != nil {
			return apperrors.MapError(err)
		}

		result = mutation{
			ticket: ticket,
			event: events.Event{
				Type:      events.EventTicketArchiveToggle,
				TicketID:  ticket.ID,
				ActorID:   actor.ID,
				ActorRole: actor.Role,
				Payload:   events.TicketArchiveTogglePayload{Archived: archived},
			},
		}
		s.metrics.RecordTransition(string(action))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishMutation(ctx, result)
	return result.ticket, nil
}

// UpdatePriority changes the ticket's priority. Admin only.
func (s *TicketService) UpdatePriority(ctx context.Context, actor Actor, ticketID string, newPriority domain.TicketPriority) (*domain.Ticket, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins may change priority")
	}
	if !domain.ValidPriority(newPriority) {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": newPriority})
	}

	var result mutation
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := s.loadForAct(ctx, tx, actor, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status == domain.TicketStatusClosed {
			return apperrors.NewConflict("ticket is closed", nil)
		}

		oldPriority := ticket.Priority
		ticket.Priority = newPriority
		if err := s.saveGuarded(ctx, tx, ticket, ticket.Status, false); err != nil {
			return err
		}

		entry := &domain.HistoryEntry{
			TicketID: ticket.ID,
			Action:   domain.ActionPriorityChanged,
			ActorID:  actor.ID,
			OldValue: map[string]any{"priority": oldPriority},
			NewValue: map[string]any{"priority": newPriority},
		}
		if err := tx.History().Create(ctx, entry); err != nil {
			return apperrors.MapError(err)
		}

		var recipients []workflow.Recipient
		if ticket.AssignedTo != nil {
			recipients = append(recipients, workflow.Recipient{UserID: *ticket.AssignedTo, Type: domain.NotificationPriorityChanged})
		}
		notifs, err := s.createNotifications(ctx, tx, ticket, recipients, actor.ID)
		if err != nil {
			return err
		}

		result = mutation{ticket: ticket, notifs: notifs, event: events.Event{
			Type:      events.EventTicketTransitioned,
			TicketID:  ticket.ID,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Payload: events.TicketTransitionedPayload{
				OldStatus: ticket.Status,
				NewStatus: ticket.Status,
				Action:    domain.ActionPriorityChanged,
			},
		}}
		s.metrics.RecordTransition(string(domain.ActionPriorityChanged))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishMutation(ctx, result)
	return result.ticket, nil
}

// RecordAttachment appends an AttachmentAdded audit entry on behalf of
// the attachment subsystem, through the same access and archive gates as
// any other mutation.
func (s *TicketService) RecordAttachment(ctx context.Context, actor Actor, ticketID string, att AttachmentInput) error {
	if strings.TrimSpace(att.FileName) == "" {
		return apperrors.NewValidationError("file name required", nil)
	}

	var result mutation
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := s.loadForAct(ctx, tx, actor, ticketID)
		if err != nil {
			return err
		}

		entry := &domain.HistoryEntry{
			TicketID: ticket.ID,
			Action:   domain.ActionAttachmentAdded,
			ActorID:  actor.ID,
			NewValue: map[string]any{
				"file_name":  att.FileName,
				"mime_type":  att.MimeType,
				"size_bytes": att.SizeBytes,
			},
		}
		if err := tx.History().Create(ctx, entry); err != nil {
			return apperrors.MapError(err)
		}

		var recipients []workflow.Recipient
		if ticket.CreatedBy != actor.ID {
			recipients = append(recipients, workflow.Recipient{UserID: ticket.CreatedBy, Type: domain.NotificationAttachmentAdded})
		}
		if ticket.AssignedTo != nil && *ticket.AssignedTo != actor.ID {
			recipients = append(recipients, workflow.Recipient{UserID: *ticket.AssignedTo, Type: domain.NotificationAttachmentAdded})
		}
		notifs, err := s.createNotifications(ctx, tx, ticket, recipients, actor.ID)
		if err != nil {
			return err
		}
		result = mutation{ticket: ticket, notifs: notifs, event: events.Event{
			Type:      events.EventTicketTransitioned,
			TicketID:  ticket.ID,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Payload: events.TicketTransitionedPayload{
				OldStatus: ticket.Status,
				NewStatus: ticket.Status,
				Action:    domain.ActionAttachmentAdded,
			},
		}}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishMutation(ctx, result)
	return nil
}

// RateTicket captures a satisfaction score on a ticket that was closed
// without one, e.g. when an admin closed on the requester's behalf. Only
// the requester may rate, exactly once.
func (s *TicketService) RateTicket(ctx context.Context, actor Actor, ticketID string, score int, comment string) (*domain.Ticket, error) {
	if actor.Role != domain.RoleEndUser {
		return nil, apperrors.NewForbidden("only the requester may rate a ticket")
	}
	if score < 1 || score > 5 {
		return nil, apperrors.NewValidationError("satisfaction score must be between 1 and 5", map[string]any{"score": score})
	}

	var result mutation
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := s.loadForAct(ctx, tx, actor, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status != domain.TicketStatusClosed {
			return apperrors.NewValidationError("only closed tickets may be rated", map[string]any{"status": ticket.Status})
		}
		if ticket.RatedAt != nil {
			return apperrors.NewConflict("ticket already rated", nil)
		}

		ticket.SatisfactionScore = &score
		if c := strings.TrimSpace(comment); c != "" {
			ticket.SatisfactionComment = &c
		}
		stampOnce(&ticket.RatedAt)
		if err := s.saveGuarded(ctx, tx, ticket, domain.TicketStatusClosed, false); err != nil {
			return err
		}

		entry := &domain.HistoryEntry{
			TicketID: ticket.ID,
			Action:   domain.ActionSatisfactionRated,
			ActorID:  actor.ID,
			NewValue: map[string]any{"satisfaction_score": score},
		}
		if err := tx.History().Create(ctx, entry); err != nil {
			return apperrors.MapError(err)
		}

		result = mutation{ticket: ticket, event: events.Event{
			Type:      events.EventTicketTransitioned,
			TicketID:  ticket.ID,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Payload: events.TicketTransitionedPayload{
				OldStatus: ticket.Status,
				NewStatus: ticket.Status,
				Action:    domain.ActionSatisfactionRated,
			},
		}}
		s.metrics.RecordTransition(string(domain.ActionSatisfactionRated))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishMutation(ctx, result)
	return result.ticket, nil
}

// loadVisible fetches a ticket the actor may view.
func (s *TicketService) loadVisible(ctx context.Context, tx repository.Store, actor Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := tx.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !access.ForTicket(actor.Role, ticket, actor.ID).CanView {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// loadForAct fetches a ticket the actor may mutate. Archived tickets are
// read-only for everyone.
func (s *TicketService) loadForAct(ctx context.Context, tx repository.Store, actor Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadVisible(ctx, tx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if !access.ForTicket(actor.Role, ticket, actor.ID).CanAct {
		return nil, apperrors.NewForbidden("access denied")
	}
	if ticket.Archived {
		return nil, apperrors.NewConflict("ticket is archived", nil)
	}
	return ticket, nil
}

// saveGuarded compare-and-sets the ticket row; a lost race surfaces as
// Conflict naming the stale expectation.
func (s *TicketService) saveGuarded(ctx context.Context, tx repository.Store, ticket *domain.Ticket, expectedStatus domain.TicketStatus, expectedArchived bool) error {
	err := tx.Tickets().UpdateGuarded(ctx, ticket, expectedStatus, expectedArchived)
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrStaleTicket) {
		return apperrors.NewConflict("ticket changed concurrently", map[string]any{
			"ticket_id":       ticket.ID,
			"expected_status": expectedStatus,
		})
	}
	return apperrors.MapError(err)
}

func (s *TicketService) recipientsFor(ctx context.Context, tx repository.Store, actor Actor, next domain.TicketStatus, ticket *domain.Ticket) ([]workflow.Recipient, error) {
	var adminIDs []string
	if next == domain.TicketStatusReopened {
		admins, err := tx.Users().ListByRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		for _, admin := range admins {
			adminIDs = append(adminIDs, admin.ID)
		}
	}
	return workflow.Recipients(actor.Role, next, ticket, actor.ID, adminIDs), nil
}

// createNotifications writes one durable row per recipient inside the
// caller's transaction.
func (s *TicketService) createNotifications(ctx context.Context, tx repository.Store, ticket *domain.Ticket, recipients []workflow.Recipient, actorID string) ([]domain.Notification, error) {
	notifs := make([]domain.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		if recipient.UserID == actorID {
			continue
		}
		n := domain.Notification{
			RecipientID: recipient.UserID,
			TicketID:    ticket.ID,
			Type:        recipient.Type,
			Message:     notificationMessage(recipient.Type, ticket),
		}
		if err := tx.Notifications().Create(ctx, &n); err != nil {
			return nil, apperrors.MapError(err)
		}
		notifs = append(notifs, n)
	}
	return notifs, nil
}

func notificationMessage(t domain.NotificationType, ticket *domain.Ticket) string {
	switch t {
	case domain.NotificationTicketAssigned:
		return fmt.Sprintf("Ticket %s has been assigned to you", ticket.ExternalKey)
	case domain.NotificationTicketResolved:
		return fmt.Sprintf("Ticket %s has been resolved", ticket.ExternalKey)
	case domain.NotificationTicketReopened:
		return fmt.Sprintf("Ticket %s has been reopened", ticket.ExternalKey)
	case domain.NotificationPriorityChanged:
		return fmt.Sprintf("Ticket %s priority changed to %s", ticket.ExternalKey, ticket.Priority)
	case domain.NotificationAttachmentAdded:
		return fmt.Sprintf("A file was attached to ticket %s", ticket.ExternalKey)
	default:
		return fmt.Sprintf("Ticket %s status changed to %s", ticket.ExternalKey, ticket.Status)
	}
}

// publishMutation emits post-commit events: one per created notification
// plus the mutation's own event. Live delivery must never gate the write.
func (s *TicketService) publishMutation(ctx context.Context, m mutation) {
	for _, n := range m.notifs {
		s.publish(ctx, events.Event{
			Type:     events.EventNotificationCreated,
			TicketID: n.TicketID,
			ActorID:  n.RecipientID,
			Payload:  events.NotificationCreatedPayload{Notification: n},
		})
	}
	if m.event.Type != "" {
		s.publish(ctx, m.event)
	}
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func stampOnce(ts **time.Time) {
	if *ts == nil {
		now := time.Now()
		*ts = &now
	}
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
