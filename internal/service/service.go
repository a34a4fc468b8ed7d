package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"shiftdesk/backend/internal/cache"
	"shiftdesk/backend/internal/domain"
	"shiftdesk/backend/internal/logger"
	"shiftdesk/backend/internal/store"
	"shiftdesk/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Policy carries the operator limits applied when shifts are opened and
// reports are cached.
type Policy struct {
	// MaxInitialCash caps the opening float; zero disables the cap.
	MaxInitialCash decimal.Decimal
	ReportCacheTTL time.Duration
}

type Service struct {
	repo    store.Repository
	reports cache.ReportCache
	log     *logrus.Logger
	policy  Policy
	locks   *keyedMutex
	now     func() time.Time
}

func New(repo store.Repository, reports cache.ReportCache, log *logrus.Logger, policy Policy) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if log == nil {
		log = logger.Discard()
	}
	if policy.ReportCacheTTL <= 0 {
		policy.ReportCacheTTL = 24 * time.Hour
	}

	return &Service{
		repo:    repo,
		reports: reports,
		log:     log,
		policy:  policy,
		locks:   newKeyedMutex(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"action": action,
			"entity": entityType + "/" + entityID,
		}).Warn("failed to write audit log")
	}
}

// noActiveShift folds the repository's "missing" and "already closed" answers
// into the single state machine error callers act on.
func noActiveShift(err error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrShiftClosed) {
		return domain.ErrNoActiveShift
	}
	return err
}
