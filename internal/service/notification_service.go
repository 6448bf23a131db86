package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/webhook-dispatch/internal/domain"
	"github.com/kursadbilgin/webhook-dispatch/internal/queue"
	"github.com/kursadbilgin/webhook-dispatch/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type NotificationService struct {
	notifications repository.NotificationRepository
	publisher     queue.Publisher
	logger        *zap.Logger
}

func NewNotificationService(
	notifications repository.NotificationRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*NotificationService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationService{
		notifications: notifications,
		publisher:     publisher,
		logger:        logger,
	}, nil
}

// Create accepts a caller-submitted notification, persists it as PENDING
// and enqueues it for delivery. On idempotency-key conflict it returns the
// already-existing notification instead of creating a duplicate.
func (s *NotificationService) Create(ctx context.Context, notification *domain.Notification) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := prepareNotificationForCreate(notification); err != nil {
		return nil, err
	}

	if err := s.notifications.Create(ctx, notification); err != nil {
		existing, resolved, resolveErr := s.resolveIdempotencyConflict(ctx, err, notification.IdempotencyKey)
		if resolveErr != nil {
			return nil, resolveErr
		}
		if resolved {
			return existing, nil
		}
		return nil, err
	}

	item := queue.WorkItem{
		NotificationID: notification.ID,
		RetryCount:     notification.RetryCount,
	}
	if err := s.publisher.Publish(ctx, item); err != nil {
		s.logger.Error("failed to publish notification",
			zap.String("notificationId", notification.ID),
			zap.Error(err),
		)
		if updateErr := s.notifications.UpdateStatus(ctx, notification.ID, domain.StatusFailed); updateErr != nil {
			s.logger.Error("failed to mark notification as failed after publish error",
				zap.String("notificationId", notification.ID),
				zap.Error(updateErr),
			)
			return nil, fmt.Errorf("failed to publish notification: %w (failed to mark as failed: %v)", err, updateErr)
		}
		notification.Status = domain.StatusFailed
		return nil, fmt.Errorf("failed to publish notification: %w", err)
	}

	return notification, nil
}

func (s *NotificationService) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	return s.notifications.GetByID(ctx, strings.TrimSpace(id))
}

func (s *NotificationService) List(
	ctx context.Context,
	params repository.ListParams,
) ([]domain.Notification, int64, error) {
	return s.notifications.List(ctx, params)
}

// CancelNotification transitions a PENDING notification to CANCELLED.
func (s *NotificationService) CancelNotification(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	return s.notifications.Cancel(ctx, strings.TrimSpace(id))
}

// MarkDelivered records a successful delivery outcome.
func (s *NotificationService) MarkDelivered(ctx context.Context, id string) error {
	return s.notifications.UpdateStatus(ctx, id, domain.StatusDelivered)
}

// MarkFailed records a permanently-failed delivery outcome (retries exhausted
// or the adapter classified the failure as non-retryable).
func (s *NotificationService) MarkFailed(ctx context.Context, id string) error {
	return s.notifications.UpdateStatus(ctx, id, domain.StatusFailed)
}

// ScheduleRetry keeps the notification PENDING, bumps its retry count, and
// records when the sweeper should next republish it.
func (s *NotificationService) ScheduleRetry(ctx context.Context, id string, nextRetryAt time.Time) error {
	return s.notifications.UpdateStatusWithRetry(ctx, id, domain.StatusPending, nextRetryAt)
}

// ResetForRetry is the operator-triggered /retry action: it moves a FAILED
// notification back to PENDING with a clean retry count and re-enqueues it
// for immediate delivery.
func (s *NotificationService) ResetForRetry(ctx context.Context, id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	if err := s.notifications.ResetForRetry(ctx, trimmed); err != nil {
		return err
	}

	item := queue.WorkItem{NotificationID: trimmed, RetryCount: 0}
	if err := s.publisher.Publish(ctx, item); err != nil {
		return fmt.Errorf("failed to re-enqueue notification after reset: %w", err)
	}

	return nil
}

func prepareNotificationForCreate(n *domain.Notification) error {
	if n == nil {
		return fmt.Errorf("%w: notification is required", domain.ErrValidation)
	}

	n.VendorName = strings.TrimSpace(n.VendorName)
	n.TargetURL = strings.TrimSpace(n.TargetURL)

	n.ID = strings.TrimSpace(n.ID)
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	n.IdempotencyKey = normalizeOptionalString(n.IdempotencyKey)

	n.Status = domain.StatusPending
	n.RetryCount = 0
	if n.MaxRetryCount <= 0 {
		n.MaxRetryCount = domain.DefaultMaxRetryCount
	}
	n.NextRetryAt = nil

	if err := n.Validate(); err != nil {
		return err
	}

	return nil
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *NotificationService) resolveIdempotencyConflict(
	ctx context.Context,
	createErr error,
	idempotencyKey *string,
) (*domain.Notification, bool, error) {
	if idempotencyKey == nil || strings.TrimSpace(*idempotencyKey) == "" {
		return nil, false, nil
	}
	if !isUniqueViolationError(createErr) {
		return nil, false, nil
	}

	existing, err := s.notifications.GetByIdempotencyKey(ctx, strings.TrimSpace(*idempotencyKey))
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing notification after idempotency conflict: %w", err)
	}
	s.logger.Info("idempotency conflict resolved",
		zap.String("existingId", existing.ID),
		zap.Stringp("idempotencyKey", idempotencyKey),
	)
	return existing, true, nil
}

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
