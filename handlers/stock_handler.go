package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/finvault/trading-backend/services"
)

type StockHandler struct {
	Service *services.StockService
	Cache   *services.QuoteCache
}

func NewStockHandler(service *services.StockService, cache *services.QuoteCache) *StockHandler {
	return &StockHandler{Service: service, Cache: cache}
}

func (h *StockHandler) GetStocks(c *fiber.Ctx) error {
	quotes, err := h.Service.ListStocks(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    quotes,
	})
}

func (h *StockHandler) GetStockBySymbol(c *fiber.Ctx) error {
	// Symbols are uppercase-normalized at the boundary, not in the cache
	symbol := strings.ToUpper(c.Params("symbol"))
	quote, err := h.Service.GetStockBySymbol(c.Context(), symbol)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    quote,
	})
}

func (h *StockHandler) GetCacheStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.Cache.Stats(),
	})
}

func (h *StockHandler) InvalidateCache(c *fiber.Ctx) error {
	if c.QueryBool("stale") {
		count := h.Cache.InvalidateStale()
		return c.JSON(fiber.Map{
			"success": true,
			"data":    fiber.Map{"invalidated": count},
		})
	}
	h.Cache.InvalidateAll()
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"invalidated": "all"},
	})
}
