package repository

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kursadbilgin/webhook-dispatch/internal/domain"
)

// headersColumn stores domain.Headers as a jsonb column; the teacher never
// needed a map-typed column, so this Scan/Value pair has no teacher analog.
type headersColumn domain.Headers

func (h headersColumn) Value() (driver.Value, error) {
	if len(h) == 0 {
		return "{}", nil
	}
	return json.Marshal(map[string]string(h))
}

func (h *headersColumn) Scan(src any) error {
	if src == nil {
		*h = nil
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for headers column", src)
	}

	if len(raw) == 0 {
		*h = nil
		return nil
	}

	var decoded map[string]string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("unmarshal headers column: %w", err)
	}
	*h = headersColumn(decoded)
	return nil
}

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID             string        `gorm:"type:uuid;primaryKey"`
	VendorName     string        `gorm:"type:varchar(255);not null"`
	TargetURL      string        `gorm:"column:target_url;type:text;not null"`
	HTTPMethod     string        `gorm:"column:http_method;type:varchar(10);not null"`
	Headers        headersColumn `gorm:"type:jsonb"`
	Body           *string       `gorm:"type:text"`
	IdempotencyKey *string       `gorm:"type:varchar(255)"`
	Status         domain.Status `gorm:"type:varchar(20);not null"`
	RetryCount     int           `gorm:"not null;default:0"`
	MaxRetryCount  int           `gorm:"not null;default:5"`
	NextRetryAt    *time.Time    `gorm:"type:timestamptz"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// NotificationAttemptModel is the persistence model for delivery_attempts.
type NotificationAttemptModel struct {
	ID             string    `gorm:"type:uuid;primaryKey"`
	NotificationID string    `gorm:"type:uuid;not null"`
	AttemptNumber  int       `gorm:"not null"`
	Timestamp      time.Time `gorm:"type:timestamptz;not null"`
	ResponseCode   int       `gorm:"not null;default:0"`
	ResponseBody   *string   `gorm:"type:text"`
	ErrorMessage   *string   `gorm:"type:text"`
	CreatedAt      time.Time
}

func (NotificationAttemptModel) TableName() string {
	return "delivery_attempts"
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:             n.ID,
		VendorName:     n.VendorName,
		TargetURL:      n.TargetURL,
		HTTPMethod:     n.HTTPMethod.String(),
		Headers:        headersColumn(n.Headers),
		Body:           n.Body,
		IdempotencyKey: n.IdempotencyKey,
		Status:         n.Status,
		RetryCount:     n.RetryCount,
		MaxRetryCount:  n.MaxRetryCount,
		NextRetryAt:    n.NextRetryAt,
		CreatedAt:      n.CreatedAt,
		UpdatedAt:      n.UpdatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:             m.ID,
		VendorName:     m.VendorName,
		TargetURL:      m.TargetURL,
		HTTPMethod:     domain.HTTPMethod(m.HTTPMethod),
		Headers:        domain.Headers(m.Headers),
		Body:           m.Body,
		IdempotencyKey: m.IdempotencyKey,
		Status:         m.Status,
		RetryCount:     m.RetryCount,
		MaxRetryCount:  m.MaxRetryCount,
		NextRetryAt:    m.NextRetryAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.NotificationAttempt) *NotificationAttemptModel {
	if a == nil {
		return nil
	}

	return &NotificationAttemptModel{
		ID:             a.ID,
		NotificationID: a.NotificationID,
		AttemptNumber:  a.AttemptNumber,
		Timestamp:      a.Timestamp,
		ResponseCode:   a.ResponseCode,
		ResponseBody:   a.ResponseBody,
		ErrorMessage:   a.ErrorMessage,
		CreatedAt:      a.CreatedAt,
	}
}

func attemptModelToDomain(m *NotificationAttemptModel) *domain.NotificationAttempt {
	if m == nil {
		return nil
	}

	return &domain.NotificationAttempt{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		AttemptNumber:  m.AttemptNumber,
		Timestamp:      m.Timestamp,
		ResponseCode:   m.ResponseCode,
		ResponseBody:   m.ResponseBody,
		ErrorMessage:   m.ErrorMessage,
		CreatedAt:      m.CreatedAt,
	}
}
