package provider

import (
	"context"

	"github.com/kursadbilgin/webhook-dispatch/internal/domain"
)

// Adapter performs one HTTP delivery attempt against a vendor and classifies
// the outcome. One call = one attempt; no retries happen inside an adapter.
type Adapter interface {
	GetVendorName() string
	Deliver(ctx context.Context, notification domain.Notification) (*DeliveryResult, error)
	IsRetryable(statusCode int, body string) bool
}

// DeliveryResult is the transient outcome of one adapter.Deliver call.
type DeliveryResult struct {
	Success      bool
	StatusCode   int
	ResponseBody string
	ErrorMessage string
}
