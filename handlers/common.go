package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/finvault/trading-backend/shared"
)

// errorResponse maps the service error taxonomy onto HTTP statuses and the
// standard response envelope
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case shared.IsNotFound(err):
		status = fiber.StatusNotFound
	case shared.IsValidation(err):
		status = fiber.StatusBadRequest
	case shared.IsConflict(err):
		status = fiber.StatusConflict
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}
