package controller

import (
	"errors"

	"docchat-be/internal/repository/contract"
	"docchat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// mapError converts domain errors into HTTP errors. Unknown errors pass
// through to the error handler, which logs them and answers 500.
func mapError(err error) error {
	switch {
	case errors.Is(err, contract.ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Chat session not found")
	case errors.Is(err, service.ErrDocumentNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Document not found")
	default:
		return err
	}
}

func parseID(ctx *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params(param))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid "+param)
	}
	return id, nil
}
