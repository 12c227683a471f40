package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/finvault/trading-backend/services"
)

type PortfolioHandler struct {
	Store services.Store
}

func NewPortfolioHandler(store services.Store) *PortfolioHandler {
	return &PortfolioHandler{Store: store}
}

func (h *PortfolioHandler) GetPortfolioByUserID(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid user id",
		})
	}

	portfolio, err := h.Store.FindPortfolioByUserID(c.Context(), userID)
	if err != nil {
		return errorResponse(c, err)
	}
	if portfolio == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "portfolio not found",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    portfolio,
	})
}
