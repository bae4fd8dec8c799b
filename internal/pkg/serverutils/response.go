package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Prophet73/ai-chat-test/internal/pkg/logger"
)

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func SuccessResponse(message string, data any) Response {
	return Response{Success: true, Message: message, Data: data}
}

func FailResponse(message string) Response {
	return Response{Success: false, Message: message}
}

// ErrorHandler converts errors bubbling out of handlers into the
// uniform JSON envelope. fiber.Error carries its own status, anything
// else is a 500.
func ErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("HTTP", "request failed", map[string]interface{}{
				"path":  ctx.Path(),
				"error": err.Error(),
			})
		}
		return ctx.Status(code).JSON(FailResponse(err.Error()))
	}
}
