package domain

import (
	"strings"
	"time"
)

// MaxResponseBodyLength is the storage cap for a delivery attempt's
// response body; longer bodies are truncated with truncationSentinel.
const MaxResponseBodyLength = 1000

const truncationSentinel = "… [truncated]"

// NotificationAttempt is an immutable record of one adapter.Deliver call.
type NotificationAttempt struct {
	ID             string  `gorm:"type:uuid;primaryKey"`
	NotificationID string  `gorm:"type:uuid;not null"`
	AttemptNumber  int     `gorm:"not null"`
	Timestamp      time.Time
	ResponseCode   int     `gorm:"not null;default:0"`
	ResponseBody   *string `gorm:"type:text"`
	ErrorMessage   *string `gorm:"type:text"`
	CreatedAt      time.Time
}

// TruncateResponseBody caps body at MaxResponseBodyLength characters,
// appending truncationSentinel when it was cut.
func TruncateResponseBody(body string) string {
	runes := []rune(body)
	if len(runes) <= MaxResponseBodyLength {
		return body
	}
	return strings.TrimSpace(string(runes[:MaxResponseBodyLength])) + truncationSentinel
}
