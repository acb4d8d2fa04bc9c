// Package service implements the query lifecycle engine: creation,
// assignment, status transitions, timers and the audit trail.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	identityrepo "vitigo_crm_backend/internal/identity/repository"
	"vitigo_crm_backend/internal/query/dispatch"
	"vitigo_crm_backend/internal/query/repository"
	"vitigo_crm_backend/internal/query/transport"
	"vitigo_crm_backend/platform/apperr"
	"vitigo_crm_backend/platform/events"
	"vitigo_crm_backend/platform/logger"
)

// Notifier writes notification rows for a lifecycle event. Inbox rows are
// written inside the caller's transaction so inbox state never disagrees
// with query state; email/SMS rows are pending outbox entries delivered
// out-of-band.
type Notifier interface {
	Notify(ctx context.Context, db repository.DBTX, kind transport.EventKind, q *repository.Query, recipientID *uuid.UUID, data map[string]string) error
}

// IdentityResolver resolves an external contact to a user inside the
// lifecycle transaction.
type IdentityResolver interface {
	ResolveInTx(ctx context.Context, tx pgx.Tx, in ResolveInput) (*identityrepo.User, bool, error)
}

// ResolveInput mirrors the identity service input so callers of this package
// do not import it directly.
type ResolveInput struct {
	Email       string
	Phone       string
	CountryCode string
	FirstName   string
	LastName    string
}

type Service struct {
	pool       *pgxpool.Pool
	repo       *repository.Repository
	users      *identityrepo.Repository
	resolver   IdentityResolver
	strategy   dispatch.Strategy
	notifier   Notifier
	bus        events.Bus
	log        *logger.Logger
	defaultSLA time.Duration
}

func New(
	pool *pgxpool.Pool,
	repo *repository.Repository,
	users *identityrepo.Repository,
	resolver IdentityResolver,
	strategy dispatch.Strategy,
	notifier Notifier,
	bus events.Bus,
	log *logger.Logger,
	defaultSLA time.Duration,
) *Service {
	return &Service{
		pool:       pool,
		repo:       repo,
		users:      users,
		resolver:   resolver,
		strategy:   strategy,
		notifier:   notifier,
		bus:        bus,
		log:        log,
		defaultSLA: defaultSLA,
	}
}

// Get returns a query with its tags.
func (s *Service) Get(ctx context.Context, id int64) (*repository.Query, error) {
	q, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(fmt.Sprintf("query %d not found", id))
	}
	return q, err
}

// List returns queries matching the filter.
func (s *Service) List(ctx context.Context, f transport.ListQueriesFilter) ([]repository.Query, error) {
	return s.repo.List(ctx, f)
}

// ListUpdates returns a query's audit trail, newest first.
func (s *Service) ListUpdates(ctx context.Context, id int64) ([]repository.Update, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListUpdates(ctx, id)
}

// Escalations returns the priority escalation report.
func (s *Service) Escalations(ctx context.Context) (*repository.EscalationStats, error) {
	return s.repo.Escalations(ctx)
}

// Delete removes a query and its dependents.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(fmt.Sprintf("query %d not found", id))
	}
	return err
}

// withTx runs fn inside a transaction, committing on success.
func (s *Service) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// lockQuery loads the row under FOR UPDATE so no two transitions observe
// the same pre-state.
func (s *Service) lockQuery(ctx context.Context, tx pgx.Tx, id int64) (*repository.Query, error) {
	q, err := s.repo.WithTx(tx).GetForUpdate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(fmt.Sprintf("query %d not found", id))
	}
	return q, err
}
