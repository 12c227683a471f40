package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finvault/trading-backend/services"
)

type TransactionHandler struct {
	Purchase *services.PurchaseService
}

func NewTransactionHandler(purchase *services.PurchaseService) *TransactionHandler {
	return &TransactionHandler{Purchase: purchase}
}

type buyStockRequest struct {
	UserID   uuid.UUID       `json:"user_id"`
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (h *TransactionHandler) BuyStock(c *fiber.Ctx) error {
	var request buyStockRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body: " + err.Error(),
		})
	}

	result, err := h.Purchase.ProcessPurchase(c.Context(), services.PurchaseRequest{
		UserID:   request.UserID,
		Symbol:   strings.ToUpper(request.Symbol),
		Quantity: request.Quantity,
		Price:    request.Price,
	})
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}
