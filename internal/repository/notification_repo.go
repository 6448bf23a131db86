package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/webhook-dispatch/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ListParams struct {
	Status     *domain.Status
	VendorName *string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

type StatusCount struct {
	Status domain.Status `gorm:"column:status"`
	Count  int           `gorm:"column:count"`
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.Notification, error)
	List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
	UpdateStatusWithRetry(ctx context.Context, id string, status domain.Status, nextRetryAt time.Time) error
	Cancel(ctx context.Context, id string) error
	ResetForRetry(ctx context.Context, id string) error
	LockForSending(ctx context.Context, id string) (*domain.Notification, error)
	GetDueForRetry(ctx context.Context, limit int) ([]domain.Notification, error)
	ClearRetrySchedule(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	CountByVendorAndStatus(ctx context.Context, vendorName string) ([]StatusCount, error)
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	model := notificationModelFromDomain(n)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if n != nil {
		*n = *notificationModelToDomain(model)
	}
	return nil
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", idempotencyKey).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&NotificationModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.VendorName != nil {
		query = query.Where("vendor_name = ?", *params.VendorName)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []NotificationModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}

	return notifications, total, nil
}

// UpdateStatus is used only for terminal transitions out of PENDING
// (DELIVERED/FAILED; CANCELLED goes through Cancel), so it clears
// next_retry_at along with the status column per the "clear nextRetryAt on
// terminal transition" invariant. The write applies only while the row is
// still PENDING; otherwise it returns ErrConflict.
func (r *GormNotificationRepo) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"status":        status,
			"next_retry_at": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormNotificationRepo) UpdateStatusWithRetry(ctx context.Context, id string, status domain.Status, nextRetryAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"status":        status,
			"next_retry_at": nextRetryAt,
			"retry_count":   gorm.Expr("retry_count + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// Cancel transitions a PENDING notification to CANCELLED. An unknown id is
// ErrNotFound; any other status is a conflict: the notification is already
// terminal.
func (r *GormNotificationRepo) Cancel(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Update("status", domain.StatusCancelled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&NotificationModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

// ResetForRetry transitions a FAILED notification back to PENDING with its
// retry count cleared, for the operator-triggered /retry endpoint.
func (r *GormNotificationRepo) ResetForRetry(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ?", id, domain.StatusFailed).
		Updates(map[string]any{
			"status":        domain.StatusPending,
			"retry_count":   0,
			"next_retry_at": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&NotificationModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

func (r *GormNotificationRepo) LockForSending(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	// Ack without attempting if the notification is no longer PENDING.
	if model.Status != domain.StatusPending {
		return nil, nil
	}

	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) GetDueForRetry(ctx context.Context, limit int) ([]domain.Notification, error) {
	var models []NotificationModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", domain.StatusPending, time.Now()).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}

	return notifications, nil
}

// ClearRetrySchedule clears next_retry_at once the sweeper has republished a
// due notification, so the same row is not picked up again next scan.
func (r *GormNotificationRepo) ClearRetrySchedule(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Update("next_retry_at", nil)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormNotificationRepo) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *GormNotificationRepo) CountByVendorAndStatus(ctx context.Context, vendorName string) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Select("status, COUNT(*) as count").
		Where("vendor_name = ?", vendorName).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
