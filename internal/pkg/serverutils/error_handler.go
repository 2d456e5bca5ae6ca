package serverutils

import (
	"errors"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/tutor/tutorerr"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps an error to an HTTP status.
func StatusFor(err error) int {
	var fe *fiber.Error
	var ve *ValidationError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &ve), errors.Is(err, tutorerr.ErrInvalidRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, tutorerr.ErrConversationNotFound), errors.Is(err, tutorerr.ErrQuizNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, tutorerr.ErrConversationExists),
		errors.Is(err, tutorerr.ErrQuizConflict),
		errors.Is(err, tutorerr.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, tutorerr.ErrGeneration):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware turns errors returned by handlers into a JSON
// ErrorResponse. Server-side failures are logged and their details hidden.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := StatusFor(err)
		body := ErrorResponse{Success: false, Message: err.Error()}

		var ve *ValidationError
		if errors.As(err, &ve) {
			body.Message = "Validation failed"
			body.Errors = ve.Fields
		}

		if status >= fiber.StatusInternalServerError {
			log.Error("HTTP", "Request failed", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"status": status,
				"error":  err.Error(),
			})
			if status == fiber.StatusBadGateway {
				body.Message = "The tutor could not produce a response, please try again"
			} else {
				body.Message = "Internal server error"
			}
		}

		return ctx.Status(status).JSON(body)
	}
}
