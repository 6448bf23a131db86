package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/webhook-dispatch/internal/domain"
	"github.com/kursadbilgin/webhook-dispatch/internal/observability"
	"github.com/kursadbilgin/webhook-dispatch/internal/provider"
	"github.com/kursadbilgin/webhook-dispatch/internal/queue"
	"github.com/kursadbilgin/webhook-dispatch/internal/repository"
	"github.com/kursadbilgin/webhook-dispatch/internal/retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

type WorkerService struct {
	notifications repository.NotificationRepository
	transitions   *NotificationService
	attempts      repository.AttemptRepository
	consumer      queue.Consumer
	publisher     queue.Publisher
	registry      *provider.Registry
	calculator    *retry.Calculator
	logger        *zap.Logger
	metrics       *observability.Metrics
	concurrency   int
	now           func() time.Time
}

func NewWorkerService(
	notifications repository.NotificationRepository,
	attempts repository.AttemptRepository,
	consumer queue.Consumer,
	publisher queue.Publisher,
	registry *provider.Registry,
	calculator *retry.Calculator,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transitions, err := NewNotificationService(notifications, publisher, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build notification transition facade: %w", err)
	}

	return &WorkerService{
		notifications: notifications,
		transitions:   transitions,
		attempts:      attempts,
		consumer:      consumer,
		publisher:     publisher,
		registry:      registry,
		calculator:    calculator,
		logger:        logger,
		concurrency:   concurrency,
		now:           time.Now,
	}, nil
}

// Start runs concurrency parallel consumers over the single work queue
// until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started", zap.Int("workerId", workerID))

			err := s.consumer.Consume(groupCtx, s.processItem)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processItem(ctx context.Context, item queue.WorkItem) error {
	notification, err := s.notifications.LockForSending(ctx, item.NotificationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("notification not found while locking, skipping",
				zap.String("notificationId", item.NotificationID),
			)
			return nil
		}
		return fmt.Errorf("failed to lock notification for sending: %w", err)
	}

	// Nil means the notification is no longer PENDING; ack without attempting.
	if notification == nil {
		return nil
	}

	adapter, err := s.registry.Resolve(notification.VendorName)
	if err != nil {
		return fmt.Errorf("failed to resolve adapter for vendor %q: %w", notification.VendorName, err)
	}

	if s.metrics != nil {
		s.metrics.IncWorkerInFlight(notification.VendorName)
		defer s.metrics.DecWorkerInFlight(notification.VendorName)
	}

	attemptNumber := notification.RetryCount + 1
	sendStart := s.now()
	result, deliverErr := adapter.Deliver(ctx, *notification)
	if s.metrics != nil {
		s.metrics.ObserveDeliveryDuration(notification.VendorName, s.now().Sub(sendStart))
	}
	if deliverErr != nil {
		return fmt.Errorf("adapter delivery failed: %w", deliverErr)
	}

	if err := s.recordAttempt(ctx, notification.ID, attemptNumber, result); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	if result.Success {
		if err := s.transitions.MarkDelivered(ctx, notification.ID); err != nil {
			return fmt.Errorf("failed to update notification status to delivered: %w", err)
		}
		if s.metrics != nil {
			s.metrics.IncNotificationDelivered(notification.VendorName)
		}
		return nil
	}

	retryable := adapter.IsRetryable(result.StatusCode, result.ResponseBody)
	maxRetries := notification.MaxRetryCount
	if maxRetries <= 0 {
		maxRetries = domain.DefaultMaxRetryCount
	}

	if retryable && notification.RetryCount < maxRetries {
		delay, err := s.calculator.CalculateDelay(notification.RetryCount)
		if err != nil {
			return fmt.Errorf("failed to compute retry delay: %w", err)
		}

		nextRetryAt := s.now().Add(delay)
		if err := s.transitions.ScheduleRetry(ctx, notification.ID, nextRetryAt); err != nil {
			return fmt.Errorf("failed to update notification for retry: %w", err)
		}

		retryItem := queue.WorkItem{
			NotificationID: notification.ID,
			RetryCount:     notification.RetryCount + 1,
		}
		if err := s.publisher.PublishWithDelay(ctx, retryItem, delay); err != nil {
			return fmt.Errorf("failed to publish delayed retry message: %w", err)
		}

		if s.metrics != nil {
			s.metrics.IncRetryScheduled(notification.VendorName)
		}
		return nil
	}

	if err := s.transitions.MarkFailed(ctx, notification.ID); err != nil {
		return fmt.Errorf("failed to update notification status to failed: %w", err)
	}
	if s.metrics != nil {
		reason := "permanent_error"
		if retryable {
			reason = "retry_exhausted"
		}
		s.metrics.IncNotificationFailed(notification.VendorName, reason)
	}

	return nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *WorkerService) recordAttempt(
	ctx context.Context,
	notificationID string,
	attemptNumber int,
	result *provider.DeliveryResult,
) error {
	var responseBody *string
	var errorMessage *string
	statusCode := 0

	if result != nil {
		statusCode = result.StatusCode
		if body := domain.TruncateResponseBody(result.ResponseBody); body != "" {
			responseBody = &body
		}
		if result.ErrorMessage != "" {
			msg := result.ErrorMessage
			errorMessage = &msg
		}
	}

	attempt := &domain.NotificationAttempt{
		ID:             uuid.NewString(),
		NotificationID: notificationID,
		AttemptNumber:  attemptNumber,
		Timestamp:      s.now().UTC(),
		ResponseCode:   statusCode,
		ResponseBody:   responseBody,
		ErrorMessage:   errorMessage,
		CreatedAt:      s.now().UTC(),
	}

	return s.attempts.Create(ctx, attempt)
}
