package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/webhook-dispatch/internal/queue"
	"github.com/kursadbilgin/webhook-dispatch/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultSweepInterval = 5 * time.Second
	defaultSweepLimit    = 100
)

// Locker is the distributed mutual-exclusion contract the Sweeper uses to
// guarantee only one replica runs a scan cycle at a time.
type Locker interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Sweeper periodically republishes notifications whose nextRetryAt has
// elapsed. It must run as a single instance across replicas, enforced by
// Locker rather than by any coordination in this type itself.
type Sweeper struct {
	notifications repository.NotificationRepository
	publisher     queue.Publisher
	lock          Locker
	logger        *zap.Logger
	interval      time.Duration
	limit         int
}

func NewSweeper(
	notifications repository.NotificationRepository,
	publisher queue.Publisher,
	lock Locker,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*Sweeper, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if lock == nil {
		return nil, fmt.Errorf("distributed lock is required")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sweeper{
		notifications: notifications,
		publisher:     publisher,
		lock:          lock,
		logger:        logger,
		interval:      interval,
		limit:         limit,
	}, nil
}

func (s *Sweeper) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial scan so already-due retries do not wait for the first ticker edge.
	if err := s.tryScan(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("sweeper initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.tryScan(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("sweeper scan failed", zap.Error(err))
			}
		}
	}
}

// tryScan acquires the distributed lock before scanning; a replica that
// loses the race simply skips this cycle and tries again next tick.
func (s *Sweeper) tryScan(ctx context.Context) error {
	acquired, err := s.lock.TryAcquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire sweeper lock: %w", err)
	}
	if !acquired {
		return nil
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logger.Warn("failed to release sweeper lock", zap.Error(err))
		}
	}()

	return s.scanDue(ctx)
}

func (s *Sweeper) scanDue(ctx context.Context) error {
	dueNotifications, err := s.notifications.GetDueForRetry(ctx, s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch due retries: %w", err)
	}

	for i := range dueNotifications {
		notification := dueNotifications[i]
		item := queue.WorkItem{
			NotificationID: notification.ID,
			RetryCount:     notification.RetryCount,
		}

		if err := s.publisher.Publish(ctx, item); err != nil {
			s.logger.Error("failed to enqueue retry notification",
				zap.String("notificationId", notification.ID),
				zap.Error(err),
			)
			continue
		}

		if err := s.notifications.ClearRetrySchedule(ctx, notification.ID); err != nil {
			s.logger.Error("failed to clear retry schedule after enqueue",
				zap.String("notificationId", notification.ID),
				zap.Error(err),
			)
			continue
		}
	}

	return nil
}
