package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tracklite-io/tracklite/internal/domain"
	"github.com/tracklite-io/tracklite/internal/events"
	"github.com/tracklite-io/tracklite/internal/repository"
	apperrors "github.com/tracklite-io/tracklite/pkg/util"
)

// fakeStore is an in-memory Store used to exercise the engine without
// Postgres. WithinTx snapshots state and restores it when the unit fails,
// matching the all-or-nothing semantics of the real transaction.
type fakeStore struct {
	users    map[string]*domain.User
	projects map[string]*domain.Project
	tickets  map[string]*domain.Ticket
	history  []domain.HistoryEntry
	notifs   []domain.Notification

	seq  int
	tick int
	base time.Time

	failNextUpdate bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]*domain.User),
		projects: make(map[string]*domain.Project),
		tickets:  make(map[string]*domain.Ticket),
		base:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *fakeStore) nextTime() time.Time {
	s.tick++
	return s.base.Add(time.Duration(s.tick) * time.Millisecond)
}

func (s *fakeStore) Users() repository.UserRepository                 { return fakeUserRepo{s} }
func (s *fakeStore) Projects() repository.ProjectRepository           { return fakeProjectRepo{s} }
func (s *fakeStore) Tickets() repository.TicketRepository             { return fakeTicketRepo{s} }
func (s *fakeStore) History() repository.HistoryRepository            { return fakeHistoryRepo{s} }
func (s *fakeStore) Notifications() repository.NotificationRepository { return fakeNotificationRepo{s} }

func (s *fakeStore) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	snapTickets := make(map[string]*domain.Ticket, len(s.tickets))
	for id, t := range s.tickets {
		snapTickets[id] = cloneTicket(t)
	}
	snapHistory := append([]domain.HistoryEntry(nil), s.history...)
	snapNotifs := append([]domain.Notification(nil), s.notifs...)

	if err := fn(s); err != nil {
		s.tickets = snapTickets
		s.history = snapHistory
		s.notifs = snapNotifs
		return err
	}
	return nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	c := *t
	c.AssignedTo = clonePtr(t.AssignedTo)
	c.SatisfactionScore = clonePtr(t.SatisfactionScore)
	c.SatisfactionComment = clonePtr(t.SatisfactionComment)
	c.AssignedAt = clonePtr(t.AssignedAt)
	c.StartedAt = clonePtr(t.StartedAt)
	c.ResolvedAt = clonePtr(t.ResolvedAt)
	c.ReopenedAt = clonePtr(t.ReopenedAt)
	c.ClosedAt = clonePtr(t.ClosedAt)
	c.RatedAt = clonePtr(t.RatedAt)
	return &c
}

type fakeUserRepo struct{ s *fakeStore }

func (r fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	user.ID = r.s.nextID("user")
	user.CreatedAt = r.s.nextTime()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = user
	return nil
}

func (r fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (r fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, user := range r.s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r fakeUserRepo) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	var out []domain.User
	for _, user := range r.s.users {
		if user.Role == role && user.Status == domain.UserStatusActive {
			out = append(out, *user)
		}
	}
	return out, nil
}

type fakeProjectRepo struct{ s *fakeStore }

func (r fakeProjectRepo) Create(ctx context.Context, project *domain.Project) error {
	project.ID = r.s.nextID("proj")
	project.CreatedAt = r.s.nextTime()
	project.UpdatedAt = project.CreatedAt
	r.s.projects[project.ID] = project
	return nil
}

func (r fakeProjectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	project, ok := r.s.projects[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return project, nil
}

func (r fakeProjectRepo) List(ctx context.Context) ([]domain.Project, error) {
	var out []domain.Project
	for _, p := range r.s.projects {
		out = append(out, *p)
	}
	return out, nil
}

type fakeTicketRepo struct{ s *fakeStore }

func (r fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	ticket.ID = r.s.nextID("ticket")
	ticket.CreatedAt = r.s.nextTime()
	ticket.UpdatedAt = ticket.CreatedAt
	r.s.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(ticket), nil
}

func (r fakeTicketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, ticket := range r.s.tickets {
		if filter.CreatedBy != nil && ticket.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.AssignedTo != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if !filter.IncludeArchived && ticket.Archived {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, status := range filter.Statuses {
				if ticket.Status == status {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, *cloneTicket(ticket))
	}
	return out, nil
}

func (r fakeTicketRepo) UpdateGuarded(ctx context.Context, ticket *domain.Ticket, expectedStatus domain.TicketStatus, expectedArchived bool) error {
	if r.s.failNextUpdate {
		r.s.failNextUpdate = false
		return repository.ErrStaleTicket
	}
	stored, ok := r.s.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Status != expectedStatus || stored.Archived != expectedArchived {
		return repository.ErrStaleTicket
	}
	ticket.UpdatedAt = r.s.nextTime()
	r.s.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

type fakeHistoryRepo struct{ s *fakeStore }

func (r fakeHistoryRepo) Create(ctx context.Context, entry *domain.HistoryEntry) error {
	entry.ID = r.s.nextID("hist")
	entry.CreatedAt = r.s.nextTime()
	r.s.history = append(r.s.history, *entry)
	return nil
}

func (r fakeHistoryRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.HistoryEntry, error) {
	var out []domain.HistoryEntry
	for _, entry := range r.s.history {
		if entry.TicketID == ticketID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type fakeNotificationRepo struct{ s *fakeStore }

func (r fakeNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	n.ID = r.s.nextID("notif")
	n.CreatedAt = r.s.nextTime()
	r.s.notifs = append(r.s.notifs, *n)
	return nil
}

func (r fakeNotificationRepo) ListUnread(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	for i := len(r.s.notifs) - 1; i >= 0; i-- {
		n := r.s.notifs[i]
		if n.RecipientID == recipientID && !n.IsRead {
			out = append(out, n)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r fakeNotificationRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	count := 0
	for _, n := range r.s.notifs {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r fakeNotificationRepo) MarkRead(ctx context.Context, recipientID, id string) error {
	for i := range r.s.notifs {
		if r.s.notifs[i].ID == id && r.s.notifs[i].RecipientID == recipientID {
			r.s.notifs[i].IsRead = true
		}
	}
	return nil
}

func (r fakeNotificationRepo) MarkAllRead(ctx context.Context, recipientID string) error {
	for i := range r.s.notifs {
		if r.s.notifs[i].RecipientID == recipientID {
			r.s.notifs[i].IsRead = true
		}
	}
	return nil
}

// recordingDispatcher captures published events in order.
type recordingDispatcher struct {
	published []events.Event
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.published = append(d.published, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func (d *recordingDispatcher) countType(t events.EventType) int {
	count := 0
	for _, e := range d.published {
		if e.Type == t {
			count++
		}
	}
	return count
}

// fixture wires the engine over a fake store seeded with one admin, one
// developer, one requester and an active project.
type fixture struct {
	store      *fakeStore
	dispatcher *recordingDispatcher
	svc        *TicketService

	admin     Actor
	developer Actor
	requester Actor
	projectID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFakeStore()
	ctx := context.Background()

	seed := func(name string, role domain.Role) Actor {
		user := &domain.User{Name: name, Email: name + "@example.com", Role: role, Status: domain.UserStatusActive}
		if err := store.Users().Create(ctx, user); err != nil {
			t.Fatalf("seed user: %v", err)
		}
		return Actor{ID: user.ID, Role: role}
	}
	admin := seed("alice", domain.RoleAdmin)
	developer := seed("bob", domain.RoleDeveloper)
	requester := seed("carol", domain.RoleEndUser)

	project := &domain.Project{Name: "support", IsActive: true}
	if err := store.Projects().Create(ctx, project); err != nil {
		t.Fatalf("seed project: %v", err)
	}

	dispatcher := &recordingDispatcher{}
	svc := NewTicketService(TicketDependencies{Store: store, Dispatcher: dispatcher})
	return &fixture{
		store:      store,
		dispatcher: dispatcher,
		svc:        svc,
		admin:      admin,
		developer:  developer,
		requester:  requester,
		projectID:  project.ID,
	}
}

func (f *fixture) createTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.CreateTicket(context.Background(), f.requester, TicketCreateInput{
		ProjectID:   f.projectID,
		Title:       "printer on fire",
		Description: "smoke everywhere",
		Type:        domain.TicketTypeBug,
		Priority:    domain.TicketPriorityHigh,
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if !apperrors.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestTicketLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket := f.createTicket(t)
	if ticket.Status != domain.TicketStatusOpen {
		t.Fatalf("new ticket status = %s", ticket.Status)
	}

	// Assignment auto-advances Open to InProgress.
	ticket, err := f.svc.Assign(ctx, f.admin, ticket.ID, f.developer.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if ticket.Status != domain.TicketStatusInProgress {
		t.Fatalf("status after assign = %s", ticket.Status)
	}
	if ticket.AssignedAt == nil || ticket.StartedAt == nil {
		t.Fatal("assignment timestamps not stamped")
	}

	ticket, err = f.svc.ChangeStatus(ctx, f.developer, ticket.ID, domain.TicketStatusResolved, "fixed")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	firstResolvedAt := ticket.ResolvedAt
	if firstResolvedAt == nil {
		t.Fatal("ResolvedAt not stamped")
	}

	ticket, err = f.svc.Reopen(ctx, f.requester, ticket.ID, "still broken")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if ticket.ReopenCount != 1 {
		t.Fatalf("reopen count = %d, want 1", ticket.ReopenCount)
	}

	ticket, err = f.svc.ChangeStatus(ctx, f.developer, ticket.ID, domain.TicketStatusInProgress, "")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}

	ticket, err = f.svc.ChangeStatus(ctx, f.developer, ticket.ID, domain.TicketStatusResolved, "fixed again")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if !ticket.ResolvedAt.Equal(*firstResolvedAt) {
		t.Fatal("ResolvedAt overwritten on second resolve")
	}

	score := 4
	ticket, err = f.svc.Close(ctx, f.requester, ticket.ID, "thanks", &score, "good work")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if ticket.Status != domain.TicketStatusClosed {
		t.Fatalf("final status = %s", ticket.Status)
	}
	if ticket.SatisfactionScore == nil || *ticket.SatisfactionScore != 4 {
		t.Fatal("satisfaction score not recorded")
	}
	if ticket.RatedAt == nil || ticket.ClosedAt == nil {
		t.Fatal("close timestamps not stamped")
	}

	// Full audit trail in exact order.
	entries, err := f.svc.GetHistory(ctx, f.admin, ticket.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	wantActions := []domain.HistoryAction{
		domain.ActionCreated,
		domain.ActionAssigned,
		domain.ActionResolved,
		domain.ActionReopened,
		domain.ActionStatusChanged,
		domain.ActionResolved,
		domain.ActionClosed,
	}
	if len(entries) != len(wantActions) {
		t.Fatalf("history length = %d, want %d", len(entries), len(wantActions))
	}
	for i, want := range wantActions {
		if entries[i].Action != want {
			t.Errorf("entry %d action = %s, want %s", i, entries[i].Action, want)
		}
	}
	if entries[6].NewValue["satisfaction_score"] != 4 {
		t.Error("close entry missing satisfaction score")
	}

	// Fan-out: assign notifies the developer; each resolve notifies the
	// requester; the reopen notifies the developer and the single admin;
	// restart and close are silent.
	byRecipient := map[string]int{}
	for _, n := range f.store.notifs {
		byRecipient[n.RecipientID]++
	}
	if len(f.store.notifs) != 5 {
		t.Fatalf("total notifications = %d, want 5", len(f.store.notifs))
	}
	if byRecipient[f.developer.ID] != 2 {
		t.Errorf("developer notifications = %d, want 2", byRecipient[f.developer.ID])
	}
	if byRecipient[f.requester.ID] != 2 {
		t.Errorf("requester notifications = %d, want 2", byRecipient[f.requester.ID])
	}
	if byRecipient[f.admin.ID] != 1 {
		t.Errorf("admin notifications = %d, want 1", byRecipient[f.admin.ID])
	}

	// One post-commit event per durable notification row.
	if got := f.dispatcher.countType(events.EventNotificationCreated); got != 5 {
		t.Errorf("notification events = %d, want 5", got)
	}
}

func TestCreateTicketRoleGate(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateTicket(context.Background(), f.developer, TicketCreateInput{
		ProjectID: f.projectID,
		Title:     "nope",
		Type:      domain.TicketTypeBug,
	})
	assertCode(t, err, apperrors.CodeForbidden)
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateTicket(ctx, f.requester, TicketCreateInput{ProjectID: f.projectID, Title: "  ", Type: domain.TicketTypeBug})
	assertCode(t, err, apperrors.CodeValidation)

	_, err = f.svc.CreateTicket(ctx, f.requester, TicketCreateInput{ProjectID: f.projectID, Title: "x", Type: "TASK"})
	assertCode(t, err, apperrors.CodeValidation)

	_, err = f.svc.CreateTicket(ctx, f.requester, TicketCreateInput{ProjectID: "proj-missing", Title: "x", Type: domain.TicketTypeBug})
	assertCode(t, err, apperrors.CodeNotFound)

	if len(f.store.history) != 0 || len(f.store.tickets) != 0 {
		t.Fatal("rejected creations left writes behind")
	}
}

func TestCreateTicketDefaultsPriority(t *testing.T) {
	f := newFixture(t)
	ticket, err := f.svc.CreateTicket(context.Background(), f.requester, TicketCreateInput{
		ProjectID: f.projectID,
		Title:     "no priority given",
		Type:      domain.TicketTypeFeature,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ticket.Priority != domain.TicketPriorityMedium {
		t.Fatalf("priority = %s, want MEDIUM", ticket.Priority)
	}
	if ticket.ExternalKey == "" {
		t.Fatal("external key not generated")
	}
}

func TestAssignGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)

	_, err := f.svc.Assign(ctx, f.developer, ticket.ID, f.developer.ID)
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.Assign(ctx, f.admin, ticket.ID, f.requester.ID)
	assertCode(t, err, apperrors.CodeValidation)

	_, err = f.svc.Assign(ctx, f.admin, ticket.ID, "user-missing")
	assertCode(t, err, apperrors.CodeValidation)
}

func TestReassignmentRecordsReassignedAndKeepsTimestamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)

	other := &domain.User{Name: "dana", Email: "dana@example.com", Role: domain.RoleDeveloper, Status: domain.UserStatusActive}
	if err := f.store.Users().Create(ctx, other); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	ticket, err := f.svc.Assign(ctx, f.admin, ticket.ID, f.developer.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	firstAssignedAt := ticket.AssignedAt

	ticket, err = f.svc.Assign(ctx, f.admin, ticket.ID, other.ID)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if *ticket.AssignedTo != other.ID {
		t.Fatalf("assignee = %s, want %s", *ticket.AssignedTo, other.ID)
	}
	if !ticket.AssignedAt.Equal(*firstAssignedAt) {
		t.Fatal("AssignedAt overwritten on reassignment")
	}

	last := f.store.history[len(f.store.history)-1]
	if last.Action != domain.ActionReassigned {
		t.Fatalf("last action = %s, want REASSIGNED", last.Action)
	}
}

func TestAssignClosedTicketRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)

	if _, err := f.svc.ChangeStatus(ctx, f.admin, ticket.ID, domain.TicketStatusClosed, "done"); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := f.svc.Assign(ctx, f.admin, ticket.ID, f.developer.ID)
	assertCode(t, err, apperrors.CodeValidation)
}

func TestInvalidTransitionRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)

	ticket, err := f.svc.Assign(ctx, f.admin, ticket.ID, f.developer.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.svc.ChangeStatus(ctx, f.developer, ticket.ID, domain.TicketStatusResolved, ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Developers may not close.
	_, err = f.svc.ChangeStatus(ctx, f.developer, ticket.ID, domain.TicketStatusClosed, "")
	assertCode(t, err, apperrors.CodeInvalidTransition)

	// Rejected moves leave no trace.
	entries, _ := f.store.History().ListByTicket(ctx, ticket.ID)
	if len(entries) != 3 {
		t.Fatalf("history length = %d after rejected move, want 3", len(entries))
	}
}

func TestGetTicketNotFoundVersusForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)

	_, err := f.svc.GetTicket(ctx, f.requester, "ticket-missing")
	assertCode(t, err, apperrors.CodeNotFound)

	stranger := &domain.User{Name: "eve", Email: "eve@example.com", Role: domain.RoleEndUser, Status: domain.UserStatusActive}
	if err := f.store.Users().Create(ctx, stranger); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	_, err = f.svc.GetTicket(ctx, Actor{ID: stranger.ID, Role: domain.RoleEndUser}, ticket.ID)
	assertCode(t, err, apperrors.CodeForbidden)

	// Unassigned developer cannot see it either.
	_, err = f.svc.GetTicket(ctx, f.developer, ticket.ID)
	assertCode(t, err, apperrors.CodeForbidden)
}

func TestListTicketsScopedByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)
	f.createTicket(t)

	if _, err := f.svc.Assign(ctx, f.admin, ticket.ID, f.developer.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	adminList, err := f.svc.ListTickets(ctx, f.admin, TicketListFilter{})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(adminList) != 2 {
		t.Fatalf("admin sees %d tickets, want 2", len(adminList))
	}

	devList, err := f.svc.ListTickets(ctx, f.developer, TicketListFilter{})
	if err != nil {
		t.Fatalf("developer list: %v", err)
	}
	if len(devList) != 1 || devList[0].ID != ticket.ID {
		t.Fatalf("developer list = %+v", devList)
	}

	userList, err := f.svc.ListTickets(ctx, f.requester, TicketListFilter{})
	if err != nil {
		t.Fatalf("requester list: %v", err)
	}
	if len(userList) != 2 {
		t.Fatalf("requester sees %d tickets, want 2", len(userList))
	}
}

func TestReopenRequiresComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)

	if _, err := f.svc.Assign(ctx, f.admin, ticket.ID, f.developer.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.svc.ChangeStatus(ctx, f.developer, ticket.ID, domain.TicketStatusResolved, ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	historyBefore := len(f.store.history)
	notifsBefore := len(f.store.notifs)

	_, err := f.svc.Reopen(ctx, f.requester, ticket.ID, "   ")
	assertCode(t, err, apperrors.CodeValidation)

	if len(f.store.history) != historyBefore || len(f.store.notifs) != notifsBefore {
		t.Fatal("rejected reopen produced side effects")
	}
	got, _ := f.svc.GetTicket(ctx, f.requester, ticket.ID)
	if got.Status != domain.TicketStatusResolved || got.ReopenCount != 0 {
		t.Fatalf("ticket mutated by rejected reopen: %+v", got)
	}
}

func TestCloseScoreBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)

	if _, err := f.svc.Assign(ctx, f.admin, ticket.ID, f.developer.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.svc.ChangeStatus(ctx, f.developer, ticket.ID, domain.TicketStatusResolved, ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	six := 6
	_, err := f.svc.Close(ctx, f.requester, ticket.ID, "", &six, "")
	assertCode(t, err, apperrors.CodeValidation)

	zero := 0
	_, err = f.svc.Close(ctx, f.requester, ticket.ID, "", &zero, "")
	assertCode(t, err, apperrors.CodeValidation)

	three := 3
	closed, err := f.svc.Close(ctx, f.requester, ticket.ID, "", &three, "fine")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.SatisfactionScore == nil || *closed.SatisfactionScore != 3 {
		t.Fatal("score not recorded")
	}
	if closed.RatedAt == nil {
		t.Fatal("RatedAt not stamped")
	}
}

func TestAssignedAdminCannotReopenOwnTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)

	// The admin assigns the ticket to themselves, then resolves it.
	if _, err := f.svc.Assign(ctx, f.admin, ticket.ID, f.admin.ID); err != nil {
		t.Fatalf("self assign: %v", err)
	}
	if _, err := f.svc.ChangeStatus(ctx, f.admin, ticket.ID, domain.TicketStatusResolved, ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	_, err := f.svc.Reopen(ctx, f.admin, ticket.ID, "second thoughts")
	assertCode(t, err, apperrors.CodeForbidden)

	// Another admin may still reopen it.
	second := &domain.User{Name: "frank", Email: "frank@example.com", Role: domain.RoleAdmin, Status: domain.UserStatusActive}
	if err := f.store.Users().Create(ctx, second); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if _, err := f.svc.Reopen(ctx, Actor{ID: second.ID, Role: domain.RoleAdmin}, ticket.ID, "regression"); err != nil {
		t.Fatalf("peer admin reopen: %v", err)
	}
}

func TestArchiveLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)

	_, err := f.svc.Archive(ctx, f.admin, ticket.ID)
	assertCode(t, err, apperrors.CodeValidation)

	if _, err := f.svc.ChangeStatus(ctx, f.admin, ticket.ID, domain.TicketStatusClosed, "done"); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err = f.svc.Archive(ctx, f.requester, ticket.ID)
	assertCode(t, err, apperrors.CodeForbidden)

	archived, err := f.svc.Archive(ctx, f.admin, ticket.ID)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !archived.Archived {
		t.Fatal("ticket not archived")
	}

	// Archived means read-only for everyone, including admins.
	_, err = f.svc.UpdatePriority(ctx, f.admin, ticket.ID, domain.TicketPriorityLow)
	assertCode(t, err, apperrors.CodeConflict)
	err = f.svc.RecordAttachment(ctx, f.admin, ticket.ID, AttachmentInput{FileName: "log.txt"})
	assertCode(t, err, apperrors.CodeConflict)

	_, err = f.svc.Archive(ctx, f.admin, ticket.ID)
	assertCode(t, err, apperrors.CodeConflict)

	restored, err := f.svc.Unarchive(ctx, f.admin, ticket.ID)
	if err != nil {
		t.Fatalf("unarchive: %v", err)
	}
	if restored.Archived {
		t.Fatal("ticket still archived")
	}

	entries, _ := f.store.History().ListByTicket(ctx, ticket.ID)
	last := entries[len(entries)-1]
	if last.Action != domain.ActionUnarchived {
		t.Fatalf("last action = %s, want UNARCHIVED", last.Action)
	}
}

func TestConcurrentUpdateSurfacesConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)

	historyBefore := len(f.store.history)
	f.store.failNextUpdate = true

	_, err := f.svc.ChangeStatus(ctx, f.admin, ticket.ID, domain.TicketStatusInProgress, "")
	assertCode(t, err, apperrors.CodeConflict)

	if len(f.store.history) != historyBefore {
		t.Fatal("losing writer appended history")
	}
	got, _ := f.svc.GetTicket(ctx, f.admin, ticket.ID)
	if got.Status != domain.TicketStatusOpen {
		t.Fatalf("status = %s after lost race, want OPEN", got.Status)
	}

	// The retry succeeds once the interference is gone.
	if _, err := f.svc.ChangeStatus(ctx, f.admin, ticket.ID, domain.TicketStatusInProgress, ""); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestUpdatePriority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)

	_, err := f.svc.UpdatePriority(ctx, f.requester, ticket.ID, domain.TicketPriorityLow)
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.UpdatePriority(ctx, f.admin, ticket.ID, "URGENT")
	assertCode(t, err, apperrors.CodeValidation)

	if _, err := f.svc.Assign(ctx, f.admin, ticket.ID, f.developer.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	notifsBefore := len(f.store.notifs)

	updated, err := f.svc.UpdatePriority(ctx, f.admin, ticket.ID, domain.TicketPriorityCritical)
	if err != nil {
		t.Fatalf("priority: %v", err)
	}
	if updated.Priority != domain.TicketPriorityCritical {
		t.Fatalf("priority = %s", updated.Priority)
	}
	if len(f.store.notifs) != notifsBefore+1 {
		t.Fatalf("expected one notification to the assignee, got %d new", len(f.store.notifs)-notifsBefore)
	}
	if f.store.notifs[len(f.store.notifs)-1].RecipientID != f.developer.ID {
		t.Fatal("priority change notified the wrong recipient")
	}

	if _, err := f.svc.ChangeStatus(ctx, f.admin, ticket.ID, domain.TicketStatusClosed, ""); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err = f.svc.UpdatePriority(ctx, f.admin, ticket.ID, domain.TicketPriorityLow)
	assertCode(t, err, apperrors.CodeConflict)
}

func TestRecordAttachmentNotifiesOtherParties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)

	if _, err := f.svc.Assign(ctx, f.admin, ticket.ID, f.developer.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	notifsBefore := len(f.store.notifs)

	err := f.svc.RecordAttachment(ctx, f.requester, ticket.ID, AttachmentInput{FileName: "screenshot.png", MimeType: "image/png", SizeBytes: 1024})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	entries, _ := f.store.History().ListByTicket(ctx, ticket.ID)
	last := entries[len(entries)-1]
	if last.Action != domain.ActionAttachmentAdded {
		t.Fatalf("last action = %s", last.Action)
	}
	if last.NewValue["file_name"] != "screenshot.png" {
		t.Fatal("attachment metadata missing from audit entry")
	}

	added := f.store.notifs[notifsBefore:]
	if len(added) != 1 || added[0].RecipientID != f.developer.ID {
		t.Fatalf("attachment fan-out = %+v", added)
	}

	err = f.svc.RecordAttachment(ctx, f.requester, ticket.ID, AttachmentInput{})
	assertCode(t, err, apperrors.CodeValidation)
}

func TestRateTicketAfterAdminClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)

	_, err := f.svc.RateTicket(ctx, f.requester, ticket.ID, 5, "")
	assertCode(t, err, apperrors.CodeValidation)

	if _, err := f.svc.ChangeStatus(ctx, f.admin, ticket.ID, domain.TicketStatusClosed, "closing on behalf"); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err = f.svc.RateTicket(ctx, f.admin, ticket.ID, 5, "")
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.RateTicket(ctx, f.requester, ticket.ID, 9, "")
	assertCode(t, err, apperrors.CodeValidation)

	rated, err := f.svc.RateTicket(ctx, f.requester, ticket.ID, 5, "great")
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rated.SatisfactionScore == nil || *rated.SatisfactionScore != 5 {
		t.Fatal("score not recorded")
	}

	_, err = f.svc.RateTicket(ctx, f.requester, ticket.ID, 4, "changed my mind")
	assertCode(t, err, apperrors.CodeConflict)
}

func TestGetHistoryFiltersByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)

	if _, err := f.svc.Assign(ctx, f.admin, ticket.ID, f.developer.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.svc.UpdatePriority(ctx, f.admin, ticket.ID, domain.TicketPriorityCritical); err != nil {
		t.Fatalf("priority: %v", err)
	}

	userEntries, err := f.svc.GetHistory(ctx, f.requester, ticket.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, entry := range userEntries {
		if entry.Action == domain.ActionPriorityChanged {
			t.Fatal("requester sees priority change entries")
		}
	}

	adminEntries, err := f.svc.GetHistory(ctx, f.admin, ticket.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(adminEntries) != len(userEntries)+1 {
		t.Fatalf("admin sees %d entries, requester %d", len(adminEntries), len(userEntries))
	}
}

func TestUpdatedAtAdvancesOnMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t)
	created := ticket.UpdatedAt

	moved, err := f.svc.ChangeStatus(ctx, f.admin, ticket.ID, domain.TicketStatusInProgress, "")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if !moved.UpdatedAt.After(created) {
		t.Fatalf("UpdatedAt did not advance: %s -> %s", created, moved.UpdatedAt)
	}
}
