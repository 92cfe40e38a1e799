package serverutils

import (
	"errors"

	"kb-chat-be/internal/dto"
	"kb-chat-be/pkg/chat/orchestrator"
	"kb-chat-be/pkg/chat/session"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware maps domain errors to HTTP responses so controllers
// can return errors directly.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Validation failed",
				"errors":  validationErr.Fields,
			})
		}

		var rateLimitErr *dto.RateLimitError
		if errors.As(err, &rateLimitErr) {
			return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": rateLimitErr.Error(),
				"data": dto.RateLimitData{
					Scope:   rateLimitErr.Scope,
					Limit:   rateLimitErr.Limit,
					ResetAt: rateLimitErr.ResetAt,
				},
			})
		}

		if errors.Is(err, session.ErrSessionNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "Chat session not found",
			})
		}

		if errors.Is(err, session.ErrCrossOrganization) {
			return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "Chat session belongs to another organization",
			})
		}

		// The pipeline already logged the specifics; clients get a retryable
		// generic message.
		var pipelineErr *orchestrator.PipelineError
		if errors.As(err, &pipelineErr) {
			return ctx.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"success": false,
				"message": "Unable to process your message right now, please try again",
			})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(fiber.Map{
				"success": false,
				"message": fiberErr.Message,
			})
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}
}
