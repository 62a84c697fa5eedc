package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/romanzh1/mnemosyne/internal/models"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	conflictRetries = 3
	conflictBackoff = 10 * time.Millisecond

	defaultPageSize   = 50
	maxPageSize       = 100
	defaultDueLimit   = 20
	maxDueLimit       = 100
	defaultPeriodDays = 30
	defaultUpcoming   = 7
	maxPeriodDays     = 366
)

type Service struct {
	repo     models.Repository
	clock    models.Clock
	ids      models.IDGenerator
	loc      *time.Location
	validate *validator.Validate
}

var _ models.Service = (*Service)(nil)

// NewService wires the store, clock and id source. Calendar days are computed in loc.
func NewService(repo models.Repository, clock models.Clock, ids models.IDGenerator, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}

	return &Service{
		repo:     repo,
		clock:    clock,
		ids:      ids,
		loc:      loc,
		validate: newValidator(),
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now()
}

// withConflictRetry reruns fn while it fails with models.ErrConflict.
func (s *Service) withConflictRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(conflictRetries, retry.NewExponential(conflictBackoff))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if errors.Is(err, models.ErrConflict) {
			zap.L().Warn("concurrent update, retrying", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
}
