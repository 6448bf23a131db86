package handler

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/webhook-dispatch/internal/domain"
	"github.com/kursadbilgin/webhook-dispatch/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

// NotificationService is the subset of service.NotificationService the
// handler depends on.
type NotificationService interface {
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error)
	CancelNotification(ctx context.Context, id string) error
	ResetForRetry(ctx context.Context, id string) error
}

// AttemptRepository is the subset of repository.AttemptRepository the
// handler depends on, for surfacing an audit trail on GET /{id}.
type AttemptRepository interface {
	GetByNotificationID(ctx context.Context, notificationID string) ([]domain.NotificationAttempt, error)
}

type NotificationHandler struct {
	service        NotificationService
	attempts       AttemptRepository
	adminTokenHash string
}

func NewNotificationHandler(service NotificationService, attempts AttemptRepository, adminTokenHash string) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	return &NotificationHandler{
		service:        service,
		attempts:       attempts,
		adminTokenHash: adminTokenHash,
	}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service NotificationService, attempts AttemptRepository, adminTokenHash string) error {
	h, err := NewNotificationHandler(service, attempts, adminTokenHash)
	if err != nil {
		return err
	}

	v1 := router.Group("/api/v1")
	v1.Post("/notifications", h.CreateNotification)
	v1.Get("/notifications", h.ListNotifications)
	v1.Get("/notifications/failed", h.ListFailedNotifications)
	v1.Get("/notifications/:id", h.GetNotification)
	v1.Post("/notifications/:id/retry", h.requireAdminToken, h.RetryNotification)
	v1.Delete("/notifications/:id", h.requireAdminToken, h.CancelNotification)

	return nil
}

type createNotificationRequest struct {
	VendorName     string            `json:"vendorName"`
	TargetURL      string            `json:"targetUrl"`
	HTTPMethod     string            `json:"httpMethod"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           *string           `json:"body,omitempty"`
	IdempotencyKey *string           `json:"idempotencyKey,omitempty"`
	MaxRetryCount  *int              `json:"maxRetryCount,omitempty"`
}

type notificationResponse struct {
	ID             string             `json:"id"`
	VendorName     string             `json:"vendorName"`
	TargetURL      string             `json:"targetUrl"`
	HTTPMethod     string             `json:"httpMethod"`
	Headers        map[string]string  `json:"headers,omitempty"`
	Body           *string            `json:"body,omitempty"`
	IdempotencyKey *string            `json:"idempotencyKey,omitempty"`
	Status         string             `json:"status"`
	RetryCount     int                `json:"retryCount"`
	MaxRetryCount  int                `json:"maxRetryCount"`
	NextRetryAt    *time.Time         `json:"nextRetryAt,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
	Attempts       []attemptResponse  `json:"attempts,omitempty"`
}

type attemptResponse struct {
	ID            string    `json:"id"`
	AttemptNumber int       `json:"attemptNumber"`
	Timestamp     time.Time `json:"timestamp"`
	ResponseCode  int       `json:"responseCode"`
	ResponseBody  *string   `json:"responseBody,omitempty"`
	ErrorMessage  *string   `json:"errorMessage,omitempty"`
}

type createNotificationResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *NotificationHandler) CreateNotification(c *fiber.Ctx) error {
	var req createNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}

	method, err := domain.ParseHTTPMethodFromString(req.HTTPMethod)
	if err != nil {
		return err
	}

	notification := domain.Notification{
		VendorName:     req.VendorName,
		TargetURL:      req.TargetURL,
		HTTPMethod:     method,
		Headers:        req.Headers,
		Body:           req.Body,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.MaxRetryCount != nil {
		notification.MaxRetryCount = *req.MaxRetryCount
	}

	created, err := h.service.Create(c.Context(), &notification)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(createNotificationResponse{
		ID:        created.ID,
		Status:    created.Status.String(),
		CreatedAt: created.CreatedAt,
	})
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	notification, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return err
	}

	attempts, err := h.attempts.GetByNotificationID(c.Context(), notification.ID)
	if err != nil {
		return err
	}
	notification.Attempts = attempts

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) RetryNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.ResetForRetry(c.Context(), id); err != nil {
		return err
	}

	notification, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) CancelNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.CancelNotification(c.Context(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return err
	}

	notifications, total, err := h.service.List(c.Context(), params)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: toNotificationResponses(notifications),
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *NotificationHandler) ListFailedNotifications(c *fiber.Ctx) error {
	failed := domain.StatusFailed
	params := repository.ListParams{
		Status:   &failed,
		Page:     defaultPage,
		PageSize: maxPageSize,
	}

	if rawVendor := strings.TrimSpace(c.Query("vendorName")); rawVendor != "" {
		params.VendorName = &rawVendor
	}

	notifications, _, err := h.service.List(c.Context(), params)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponses(notifications))
}

// requireAdminToken gates the operator-triggered /retry and cancel endpoints
// behind a bearer token checked against the configured bcrypt hash. The gate
// is opt-in: if no hash is configured, it is a no-op, so deployments that
// don't set one keep the documented status contract.
func (h *NotificationHandler) requireAdminToken(c *fiber.Ctx) error {
	if strings.TrimSpace(h.adminTokenHash) == "" {
		return c.Next()
	}

	auth := c.Get(fiber.HeaderAuthorization)
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || subtle.ConstantTimeCompare([]byte(auth[:len(prefix)]), []byte(prefix)) != 1 {
		return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
	}
	token := auth[len(prefix):]

	if err := bcrypt.CompareHashAndPassword([]byte(h.adminTokenHash), []byte(token)); err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid admin token")
	}

	return c.Next()
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	if rawVendor := strings.TrimSpace(c.Query("vendorName")); rawVendor != "" {
		params.VendorName = &rawVendor
	}

	return params, nil
}

func toNotificationResponses(notifications []domain.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for i := range notifications {
		responses = append(responses, toNotificationResponse(&notifications[i]))
	}
	return responses
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	var attempts []attemptResponse
	if len(n.Attempts) > 0 {
		attempts = make([]attemptResponse, 0, len(n.Attempts))
		for _, a := range n.Attempts {
			attempts = append(attempts, attemptResponse{
				ID:            a.ID,
				AttemptNumber: a.AttemptNumber,
				Timestamp:     a.Timestamp,
				ResponseCode:  a.ResponseCode,
				ResponseBody:  a.ResponseBody,
				ErrorMessage:  a.ErrorMessage,
			})
		}
	}

	return notificationResponse{
		ID:             n.ID,
		VendorName:     n.VendorName,
		TargetURL:      n.TargetURL,
		HTTPMethod:     n.HTTPMethod.String(),
		Headers:        n.Headers,
		Body:           n.Body,
		IdempotencyKey: n.IdempotencyKey,
		Status:         n.Status.String(),
		RetryCount:     n.RetryCount,
		MaxRetryCount:  n.MaxRetryCount,
		NextRetryAt:    n.NextRetryAt,
		CreatedAt:      n.CreatedAt,
		UpdatedAt:      n.UpdatedAt,
		Attempts:       attempts,
	}
}
