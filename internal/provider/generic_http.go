package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/webhook-dispatch/internal/domain"
)

const defaultHTTPTimeout = 30 * time.Second

// GenericHTTPAdapter delivers a notification verbatim to its own targetUrl
// with its own method, headers and body. It is the default ("generic")
// vendor adapter; vendor-specific adapters extend the same contract with
// their own auth/framing on top of an equivalent resty client.
type GenericHTTPAdapter struct {
	client     *resty.Client
	vendorName string
}

// NewGenericHTTPAdapter builds the default adapter with a fresh resty client
// honoring the configured transport timeout.
func NewGenericHTTPAdapter(vendorName string, timeout time.Duration) (*GenericHTTPAdapter, error) {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)

	return NewGenericHTTPAdapterWithClient(vendorName, client)
}

// NewGenericHTTPAdapterWithClient builds an adapter around a caller-supplied
// resty client, primarily for tests that need to inject a shorter timeout.
func NewGenericHTTPAdapterWithClient(vendorName string, client *resty.Client) (*GenericHTTPAdapter, error) {
	name := strings.TrimSpace(vendorName)
	if name == "" {
		return nil, fmt.Errorf("vendor name is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultHTTPTimeout)
	}
	client.SetRetryCount(0)

	return &GenericHTTPAdapter{client: client, vendorName: name}, nil
}

func (a *GenericHTTPAdapter) GetVendorName() string {
	if a == nil {
		return ""
	}
	return a.vendorName
}

func (a *GenericHTTPAdapter) Deliver(ctx context.Context, notification domain.Notification) (*DeliveryResult, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("adapter is not initialized")
	}

	req := a.client.R().SetContext(ctx)
	for key, value := range notification.Headers {
		req.SetHeader(key, value)
	}
	if notification.Body != nil {
		req.SetBody(*notification.Body)
	}

	response, err := req.Execute(string(notification.HTTPMethod), notification.TargetURL)
	if err != nil {
		return &DeliveryResult{
			Success:      false,
			StatusCode:   0,
			ErrorMessage: err.Error(),
		}, nil
	}
	if response == nil {
		return &DeliveryResult{
			Success:      false,
			StatusCode:   0,
			ErrorMessage: "provider returned empty response",
		}, nil
	}

	statusCode := response.StatusCode()
	body := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &DeliveryResult{
			Success:      true,
			StatusCode:   statusCode,
			ResponseBody: body,
		}, nil
	}

	return &DeliveryResult{
		Success:      false,
		StatusCode:   statusCode,
		ResponseBody: body,
		ErrorMessage: fmt.Sprintf("vendor returned status %d", statusCode),
	}, nil
}

// IsRetryable matches spec's default classification: transport failure (0),
// 429, or any 5xx is retryable; all other 4xx and 2xx are not.
func (a *GenericHTTPAdapter) IsRetryable(statusCode int, _ string) bool {
	return IsRetryableStatus(statusCode)
}

// IsRetryableStatus is the shared classification rule every adapter defaults
// to unless it has a vendor-specific override.
func IsRetryableStatus(statusCode int) bool {
	return statusCode == 0 || statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
}
