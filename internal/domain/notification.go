package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Status represents the lifecycle state of a notification.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusDelivered Status = "DELIVERED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusDelivered, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further delivery attempts occur from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// HTTPMethod is the outbound request method used to deliver a notification.
type HTTPMethod string

const (
	MethodGet    HTTPMethod = "GET"
	MethodPost   HTTPMethod = "POST"
	MethodPut    HTTPMethod = "PUT"
	MethodPatch  HTTPMethod = "PATCH"
	MethodDelete HTTPMethod = "DELETE"
)

func (m HTTPMethod) String() string { return string(m) }

func (m HTTPMethod) IsValid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
		return true
	}
	return false
}

func ParseHTTPMethodFromString(s string) (HTTPMethod, error) {
	m := HTTPMethod(strings.ToUpper(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: invalid httpMethod %q", ErrValidation, s)
	}
	return m, nil
}

// Headers is the header map carried on a notification. Keys are stored
// case-preserved as supplied by the caller.
type Headers map[string]string

// DefaultMaxRetryCount is used when the caller does not override maxRetryCount.
const DefaultMaxRetryCount = 5

// Notification is the core domain entity: a vendor webhook dispatch request
// and its delivery state, the system of record.
type Notification struct {
	ID             string     `gorm:"type:uuid;primaryKey"`
	VendorName     string     `gorm:"type:varchar(255);not null"`
	TargetURL      string     `gorm:"type:text;not null"`
	HTTPMethod     HTTPMethod `gorm:"type:varchar(10);not null"`
	Headers        Headers    `gorm:"-"`
	Body           *string    `gorm:"type:text"`
	IdempotencyKey *string    `gorm:"type:varchar(255)"`
	Status         Status     `gorm:"type:varchar(20);not null"`
	RetryCount     int        `gorm:"not null;default:0"`
	MaxRetryCount  int        `gorm:"not null;default:5"`
	NextRetryAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Attempts []NotificationAttempt `gorm:"-"`
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.VendorName) == "" {
		return fmt.Errorf("%w: vendorName is required", ErrValidation)
	}

	target := strings.TrimSpace(n.TargetURL)
	if target == "" {
		return fmt.Errorf("%w: targetUrl is required", ErrValidation)
	}
	parsed, err := url.ParseRequestURI(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("%w: targetUrl must be an absolute http(s) URL", ErrValidation)
	}

	if !n.HTTPMethod.IsValid() {
		return fmt.Errorf("%w: invalid httpMethod %q", ErrValidation, n.HTTPMethod)
	}

	return nil
}
