package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kursadbilgin/webhook-dispatch/internal/domain"
	"github.com/kursadbilgin/webhook-dispatch/internal/queue"
	"github.com/kursadbilgin/webhook-dispatch/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestNotificationServiceCreateHappyPath(t *testing.T) {
	t.Parallel()

	repo := &fakeNotificationRepo{
		createFn: func(ctx context.Context, n *domain.Notification) error {
			if n.Status != domain.StatusPending {
				t.Fatalf("status = %s, want PENDING", n.Status)
			}
			if strings.TrimSpace(n.ID) == "" {
				t.Fatal("id should be generated")
			}
			n.CreatedAt = time.Now().UTC()
			n.UpdatedAt = n.CreatedAt
			return nil
		},
	}

	publishCalled := false
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, item queue.WorkItem) error {
			if item.NotificationID == "" {
				t.Fatal("notification id should be set on publish")
			}
			publishCalled = true
			return nil
		},
	}

	svc, err := NewNotificationService(repo, publisher, nil)
	if err != nil {
		t.Fatalf("NewNotificationService() error = %v", err)
	}

	result, err := svc.Create(context.Background(), &domain.Notification{
		VendorName: "stripe",
		TargetURL:  "https://example.com/webhooks",
		HTTPMethod: domain.MethodPost,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if result.Status != domain.StatusPending {
		t.Fatalf("result status = %s, want PENDING", result.Status)
	}
	if !publishCalled {
		t.Fatal("expected publish to be called")
	}
}

func TestNotificationServiceCreatePublishFailureMarksFailed(t *testing.T) {
	t.Parallel()

	markedFailed := false
	repo := &fakeNotificationRepo{
		createFn: func(ctx context.Context, n *domain.Notification) error {
			n.CreatedAt = time.Now().UTC()
			n.UpdatedAt = n.CreatedAt
			return nil
		},
		updateStatusFn: func(ctx context.Context, id string, status domain.Status) error {
			if status != domain.StatusFailed {
				t.Fatalf("status update = %s, want FAILED", status)
			}
			markedFailed = true
			return nil
		},
	}

	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, item queue.WorkItem) error {
			return errors.New("broker unavailable")
		},
	}

	svc, err := NewNotificationService(repo, publisher, nil)
	if err != nil {
		t.Fatalf("NewNotificationService() error = %v", err)
	}

	_, err = svc.Create(context.Background(), &domain.Notification{
		VendorName: "stripe",
		TargetURL:  "https://example.com/webhooks",
		HTTPMethod: domain.MethodPost,
	})
	if err == nil {
		t.Fatal("Create() expected error, got nil")
	}
	if !markedFailed {
		t.Fatal("Create() should mark notification as FAILED when publish fails")
	}
}

func TestNotificationServiceCreateIdempotencyConflictReturnsExisting(t *testing.T) {
	t.Parallel()

	key := "order-42"
	existing := &domain.Notification{
		ID:             "existing-id",
		VendorName:     "stripe",
		TargetURL:      "https://example.com/webhooks",
		IdempotencyKey: &key,
		Status:         domain.StatusDelivered,
	}

	repo := &fakeNotificationRepo{
		createFn: func(ctx context.Context, n *domain.Notification) error {
			return gorm.ErrDuplicatedKey
		},
		getByIdempotencyKeyFn: func(ctx context.Context, idempotencyKey string) (*domain.Notification, error) {
			if idempotencyKey != key {
				t.Fatalf("idempotencyKey = %s, want %s", idempotencyKey, key)
			}
			return existing, nil
		},
	}

	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, item queue.WorkItem) error {
			t.Fatal("publish should not be called on idempotency conflict")
			return nil
		},
	}

	svc, err := NewNotificationService(repo, publisher, zap.NewNop())
	if err != nil {
		t.Fatalf("NewNotificationService() error = %v", err)
	}

	result, err := svc.Create(context.Background(), &domain.Notification{
		VendorName:     "stripe",
		TargetURL:      "https://example.com/webhooks",
		HTTPMethod:     domain.MethodPost,
		IdempotencyKey: &key,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if result.ID != existing.ID {
		t.Fatalf("result id = %s, want %s", result.ID, existing.ID)
	}
}

func TestNotificationServiceGetByIDRequiresID(t *testing.T) {
	t.Parallel()

	svc, err := NewNotificationService(&fakeNotificationRepo{}, &fakePublisher{}, nil)
	if err != nil {
		t.Fatalf("NewNotificationService() error = %v", err)
	}

	if _, err := svc.GetByID(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank id")
	}
}

func TestNotificationServiceCancelNotification(t *testing.T) {
	t.Parallel()

	cancelled := ""
	repo := &fakeNotificationRepo{
		cancelFn: func(ctx context.Context, id string) error {
			cancelled = id
			return nil
		},
	}

	svc, err := NewNotificationService(repo, &fakePublisher{}, nil)
	if err != nil {
		t.Fatalf("NewNotificationService() error = %v", err)
	}

	if err := svc.CancelNotification(context.Background(), "n1"); err != nil {
		t.Fatalf("CancelNotification() error = %v", err)
	}
	if cancelled != "n1" {
		t.Fatalf("cancelled = %s, want n1", cancelled)
	}
}

func TestNotificationServiceResetForRetryRepublishes(t *testing.T) {
	t.Parallel()

	reset := ""
	repo := &fakeNotificationRepo{
		resetForRetryFn: func(ctx context.Context, id string) error {
			reset = id
			return nil
		},
	}

	published := queue.WorkItem{}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, item queue.WorkItem) error {
			published = item
			return nil
		},
	}

	svc, err := NewNotificationService(repo, publisher, nil)
	if err != nil {
		t.Fatalf("NewNotificationService() error = %v", err)
	}

	if err := svc.ResetForRetry(context.Background(), "n1"); err != nil {
		t.Fatalf("ResetForRetry() error = %v", err)
	}
	if reset != "n1" {
		t.Fatalf("reset = %s, want n1", reset)
	}
	if published.NotificationID != "n1" || published.RetryCount != 0 {
		t.Fatalf("published = %+v, want n1/0", published)
	}
}

func TestNotificationServiceResetForRetryPropagatesConflict(t *testing.T) {
	t.Parallel()

	repo := &fakeNotificationRepo{
		resetForRetryFn: func(ctx context.Context, id string) error {
			return domain.ErrConflict
		},
	}

	svc, err := NewNotificationService(repo, &fakePublisher{}, nil)
	if err != nil {
		t.Fatalf("NewNotificationService() error = %v", err)
	}

	err = svc.ResetForRetry(context.Background(), "n1")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("ResetForRetry() error = %v, want ErrConflict", err)
	}
}

type fakeNotificationRepo struct {
	createFn                 func(ctx context.Context, n *domain.Notification) error
	getByIDFn                func(ctx context.Context, id string) (*domain.Notification, error)
	getByIdempotencyKeyFn    func(ctx context.Context, idempotencyKey string) (*domain.Notification, error)
	listFn                   func(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error)
	updateStatusFn           func(ctx context.Context, id string, status domain.Status) error
	updateStatusWithRetryFn  func(ctx context.Context, id string, status domain.Status, nextRetryAt time.Time) error
	cancelFn                 func(ctx context.Context, id string) error
	resetForRetryFn          func(ctx context.Context, id string) error
	lockForSendingFn         func(ctx context.Context, id string) (*domain.Notification, error)
	getDueForRetryFn         func(ctx context.Context, limit int) ([]domain.Notification, error)
	clearRetryScheduleFn     func(ctx context.Context, id string) error
	countByStatusFn          func(ctx context.Context) ([]repository.StatusCount, error)
	countByVendorAndStatusFn func(ctx context.Context, vendorName string) ([]repository.StatusCount, error)
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if f.createFn != nil {
		return f.createFn(ctx, n)
	}
	return nil
}

func (f *fakeNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeNotificationRepo) GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.Notification, error) {
	if f.getByIdempotencyKeyFn != nil {
		return f.getByIdempotencyKeyFn(ctx, idempotencyKey)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeNotificationRepo) List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, 0, nil
}

func (f *fakeNotificationRepo) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (f *fakeNotificationRepo) UpdateStatusWithRetry(ctx context.Context, id string, status domain.Status, nextRetryAt time.Time) error {
	if f.updateStatusWithRetryFn != nil {
		return f.updateStatusWithRetryFn(ctx, id, status, nextRetryAt)
	}
	return nil
}

func (f *fakeNotificationRepo) Cancel(ctx context.Context, id string) error {
	if f.cancelFn != nil {
		return f.cancelFn(ctx, id)
	}
	return nil
}

func (f *fakeNotificationRepo) ResetForRetry(ctx context.Context, id string) error {
	if f.resetForRetryFn != nil {
		return f.resetForRetryFn(ctx, id)
	}
	return nil
}

func (f *fakeNotificationRepo) LockForSending(ctx context.Context, id string) (*domain.Notification, error) {
	if f.lockForSendingFn != nil {
		return f.lockForSendingFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeNotificationRepo) GetDueForRetry(ctx context.Context, limit int) ([]domain.Notification, error) {
	if f.getDueForRetryFn != nil {
		return f.getDueForRetryFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeNotificationRepo) ClearRetrySchedule(ctx context.Context, id string) error {
	if f.clearRetryScheduleFn != nil {
		return f.clearRetryScheduleFn(ctx, id)
	}
	return nil
}

func (f *fakeNotificationRepo) CountByStatus(ctx context.Context) ([]repository.StatusCount, error) {
	if f.countByStatusFn != nil {
		return f.countByStatusFn(ctx)
	}
	return nil, nil
}

func (f *fakeNotificationRepo) CountByVendorAndStatus(ctx context.Context, vendorName string) ([]repository.StatusCount, error) {
	if f.countByVendorAndStatusFn != nil {
		return f.countByVendorAndStatusFn(ctx, vendorName)
	}
	return nil, nil
}

type fakePublisher struct {
	publishFn          func(ctx context.Context, item queue.WorkItem) error
	publishWithDelayFn func(ctx context.Context, item queue.WorkItem, delay time.Duration) error
	closeFn            func() error
}

func (f *fakePublisher) Publish(ctx context.Context, item queue.WorkItem) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, item)
	}
	return nil
}

func (f *fakePublisher) PublishWithDelay(ctx context.Context, item queue.WorkItem, delay time.Duration) error {
	if f.publishWithDelayFn != nil {
		return f.publishWithDelayFn(ctx, item, delay)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}
