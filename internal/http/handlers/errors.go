package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/proquint-registry/backend/internal/commitment"
	"github.com/proquint-registry/backend/internal/http/dto"
	"github.com/proquint-registry/backend/internal/lifecycle"
	"github.com/proquint-registry/backend/internal/middleware"
	"github.com/proquint-registry/backend/internal/pricing"
	"github.com/proquint-registry/backend/internal/proquint"
	"github.com/proquint-registry/backend/internal/services"
	"go.uber.org/zap"
)

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, proquint.ErrInvalidLength),
		errors.Is(err, proquint.ErrInvalidHex),
		errors.Is(err, pricing.ErrYearsOutOfRange),
		errors.Is(err, services.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, commitment.ErrNotYetReady),
		errors.Is(err, commitment.ErrExpired),
		errors.Is(err, services.ErrNotCommitted),
		errors.Is(err, services.ErrNameUnavailable),
		errors.Is(err, services.ErrActionNotAllowed),
		errors.Is(err, lifecycle.ErrInboxFull):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func writeError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := statusFor(err)
	resp := dto.ErrorResponse{Error: err.Error(), RequestID: middleware.GetRequestID(c)}

	var notReady *commitment.NotReadyError
	if errors.As(err, &notReady) {
		resp.RetryAfter = int64((notReady.Remaining + time.Second - 1) / time.Second)
	}

	if status == fiber.StatusInternalServerError {
		log.Error("request failed",
			zap.String("request_id", resp.RequestID),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		resp.Error = "internal error"
	}
	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg, RequestID: middleware.GetRequestID(c)})
}
