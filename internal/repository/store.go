package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStaleTicket signals a compare-and-set ticket update that found the
// row changed underneath it.
var ErrStaleTicket = errors.New("ticket state is stale")

// Querier is the subset of pgx satisfied by both pgxpool.Pool and
// pgx.Tx, letting repositories run inside or outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles every repository behind one handle. WithinTx yields a
// Store whose repositories share a single transaction, so a ticket write,
// its history entry and its notification rows commit or fail as one unit.
type Store interface {
	Users() UserRepository
	Projects() ProjectRepository
	Tickets() TicketRepository
	History() HistoryRepository
	Notifications() NotificationRepository
	WithinTx(ctx context.Context, fn func(Store) error) error
}

type pgStore struct {
	db   Querier
	pool *pgxpool.Pool
}

// NewStore creates a Postgres-backed store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{db: pool, pool: pool}
}

func (s *pgStore) Users() UserRepository                 { return &userRepository{db: s.db} }
func (s *pgStore) Projects() ProjectRepository           { return &projectRepository{db: s.db} }
func (s *pgStore) Tickets() TicketRepository             { return &ticketRepository{db: s.db} }
func (s *pgStore) History() HistoryRepository            { return &historyRepository{db: s.db} }
func (s *pgStore) Notifications() NotificationRepository { return &notificationRepository{db: s.db} }

func (s *pgStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		// Already transaction-scoped; nested units join the outer tx.
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(&pgStore{db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
