package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/finvault/trading-backend/shared"
)

// ReportTrigger is the manual-trigger surface of the report scheduler job.
type ReportTrigger interface {
	TriggerManual(ctx context.Context, date time.Time) error
}

// StockRefresher is the manual-trigger surface of the stock update job.
type StockRefresher interface {
	Run(ctx context.Context)
}

// AdminHandler exposes manual triggers for the background jobs.
type AdminHandler struct {
	Scheduler ReportTrigger
	Updater   StockRefresher
}

func NewAdminHandler(scheduler ReportTrigger, updater StockRefresher) *AdminHandler {
	return &AdminHandler{Scheduler: scheduler, Updater: updater}
}

// GenerateReport triggers report generation for a given date (default: yesterday).
// Runs through the same retry path as the scheduled job.
func (h *AdminHandler) GenerateReport(c *fiber.Ctx) error {
	date := time.Now().UTC().AddDate(0, 0, -1)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "invalid date, expected YYYY-MM-DD",
			})
		}
		date = parsed
	}

	if err := h.Scheduler.TriggerManual(c.Context(), date); err != nil {
		if shared.IsConflict(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"error":   "report already exists or is in progress for this date",
			})
		}
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Report generated",
		"date":    date.Format("2006-01-02"),
	})
}

// RefreshStocks kicks off a stock data refresh in the background. If a
// refresh cycle is already running the job skips the run internally.
func (h *AdminHandler) RefreshStocks(c *fiber.Ctx) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		h.Updater.Run(ctx)
	}()

	logrus.Info("Manual stock refresh triggered")
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"message": "Stock refresh started",
	})
}
