package transport

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/webhook-dispatch/internal/domain"
	"go.uber.org/zap"
)

// errorResponse is the envelope written for every error a handler returns.
type errorResponse struct {
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Details   []string  `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// detailer is implemented by errors that carry field-level detail messages.
type detailer interface {
	Details() []string
}

func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code, label := classify(err)

		logger.Error("request error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		)

		var details []string
		var d detailer
		if errors.As(err, &d) {
			details = d.Details()
		} else {
			details = []string{}
		}

		return c.Status(code).JSON(errorResponse{
			Status:    code,
			Error:     label,
			Message:   err.Error(),
			Details:   details,
			Timestamp: time.Now().UTC(),
		})
	}
}

func classify(err error) (int, string) {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, http.StatusText(fiberErr.Code)
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest, http.StatusText(fiber.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, http.StatusText(fiber.StatusNotFound)
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict, http.StatusText(fiber.StatusConflict)
	default:
		return fiber.StatusInternalServerError, http.StatusText(fiber.StatusInternalServerError)
	}
}
