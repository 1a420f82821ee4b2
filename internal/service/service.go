package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"apartado/backend/internal/clock"
	"apartado/backend/internal/domain"
	"apartado/backend/internal/events"
	"apartado/backend/internal/lock"
	"apartado/backend/internal/money"
	"apartado/backend/internal/obs"
	"apartado/backend/internal/store"
	"apartado/backend/internal/till"
	"apartado/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Options wires the collaborators. Zero values fall back to in-process
// defaults: a local branch locker, no event fan-out, the system clock.
type Options struct {
	Locker        lock.Locker
	Publisher     events.Publisher
	Clock         clock.Clock
	Metrics       *obs.Metrics
	RetryAttempts int
	Thresholds    till.Thresholds
}

type Service struct {
	repo          store.Repository
	locker        lock.Locker
	publisher     events.Publisher
	clock         clock.Clock
	metrics       *obs.Metrics
	retryAttempts int
	thresholds    till.Thresholds
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Locker == nil {
		opts.Locker = lock.NewLocalLocker()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 3
	}
	if opts.Thresholds == (till.Thresholds{}) {
		opts.Thresholds = till.Thresholds{Warning: money.FromCents(5000), Critical: money.FromCents(20000)}
	}

	return &Service{
		repo:          repo,
		locker:        opts.Locker,
		publisher:     opts.Publisher,
		clock:         opts.Clock,
		metrics:       opts.Metrics,
		retryAttempts: opts.RetryAttempts,
		thresholds:    opts.Thresholds,
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, branchID string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, strings.TrimSpace(branchID), limit)
}

// withRetry runs fn until it stops reporting a version conflict, at most
// retryAttempts times. A payment that lost its shift to a close is retried
// the same way so fn can pick up the branch's current shift.
func (s *Service) withRetry(ctx context.Context, aggregate string, fn func() error) error {
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		switch {
		case errors.Is(err, store.ErrShiftNotOpen):
			s.metrics.Conflict("shift")
		case errors.Is(err, store.ErrVersionConflict):
			s.metrics.Conflict(aggregate)
		default:
			return err
		}
	}
	return fmt.Errorf("%w: %s changed by another terminal, try again", domain.ErrConcurrentModification, aggregate)
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || strings.TrimSpace(actor.UserID) == "" {
		return domain.Actor{}, fmt.Errorf("%w: acting user is required", domain.ErrInvalidRequest)
	}
	return actor, nil
}

func (s *Service) logAudit(ctx context.Context, branchID string, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{UserID: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		BranchID:   branchID,
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.clock.Now(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
