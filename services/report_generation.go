package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/finvault/trading-backend/models"
	"github.com/finvault/trading-backend/shared"
)

// reportPayload is the JSON blob stored on the report row after a
// successful run
type reportPayload struct {
	*AggregationResult
	HTMLReport string `json:"html_report"`
}

// ReportGenerationService drives one report run: acquire the per-day lock
// row, aggregate, format, persist, deliver. Mutual exclusion across
// process instances comes entirely from the (report_date, report_type)
// uniqueness constraint at the persistence layer.
type ReportGenerationService struct {
	store       Store
	aggregation *ReportAggregationService
	formatting  *ReportFormattingService
	delivery    *EmailDeliveryService
}

func NewReportGenerationService(
	store Store,
	aggregation *ReportAggregationService,
	formatting *ReportFormattingService,
	delivery *EmailDeliveryService,
) *ReportGenerationService {
	return &ReportGenerationService{
		store:       store,
		aggregation: aggregation,
		formatting:  formatting,
		delivery:    delivery,
	}
}

// GenerateReportForDate generates the daily report covering the UTC day of
// the given date. A conflict error means another run already holds (or
// held) the lock for this day; callers treat that as a benign skip.
// Delivery failure does not fail the report: the row stays COMPLETED with
// email_delivery_status FAILED.
func (rgs *ReportGenerationService) GenerateReportForDate(ctx context.Context, date time.Time) error {
	start := time.Date(date.UTC().Year(), date.UTC().Month(), date.UTC().Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	logrus.Infof("Starting report generation for date: %s", start.Format("2006-01-02"))

	report := &models.Report{
		ID:                  uuid.New(),
		ReportDate:          start,
		GeneratedAt:         time.Now().UTC(),
		ReportType:          models.ReportTypeDaily,
		Status:              models.ReportStatusInProgress,
		ReportData:          json.RawMessage("{}"),
		EmailDeliveryStatus: models.EmailDeliveryStatusPending,
	}

	if err := rgs.acquireReportLock(ctx, report); err != nil {
		return err
	}

	aggregation, htmlReport, err := rgs.buildReport(ctx, start, end)
	if err != nil {
		rgs.markFailed(ctx, report)
		return err
	}

	report.Status = models.ReportStatusCompleted
	report.TotalTransactions = aggregation.TotalTransactions
	report.SuccessfulTransactions = aggregation.SuccessfulTransactions
	report.FailedTransactions = aggregation.FailedTransactions

	payload, err := json.Marshal(reportPayload{AggregationResult: aggregation, HTMLReport: htmlReport})
	if err != nil {
		rgs.markFailed(ctx, report)
		return shared.WrapError(err, shared.ErrorCategoryProcessing, "PAYLOAD_ENCODE_FAILED", "report-generation", "generate_report", false)
	}
	report.ReportData = payload

	if err := rgs.saveReport(ctx, report); err != nil {
		return err
	}
	logrus.Info("Report saved with status COMPLETED")

	rgs.deliverReport(ctx, report, aggregation, htmlReport, start)

	logrus.Infof("Report generation complete for %s", start.Format("2006-01-02"))
	return nil
}

// acquireReportLock inserts the IN_PROGRESS row; the uniqueness constraint
// on (report_date, report_type) is the lock
func (rgs *ReportGenerationService) acquireReportLock(ctx context.Context, report *models.Report) error {
	uow, err := rgs.store.BeginUnitOfWork(ctx)
	if err != nil {
		return shared.WrapError(err, shared.ErrorCategoryDatabase, "BEGIN_TX_FAILED", "report-generation", "acquire_lock", true)
	}
	defer uow.Release()

	if err := uow.InsertReportIfAbsent(ctx, report); err != nil {
		if shared.IsConflict(err) {
			logrus.Warn("Report for this date is already being generated or exists, skipping")
			return err
		}
		return shared.WrapError(err, shared.ErrorCategoryDatabase, "LOCK_INSERT_FAILED", "report-generation", "acquire_lock", true)
	}
	if err := uow.Commit(); err != nil {
		return shared.WrapError(err, shared.ErrorCategoryDatabase, "LOCK_COMMIT_FAILED", "report-generation", "acquire_lock", true)
	}

	logrus.Info("Acquired report lock (row inserted)")
	return nil
}

func (rgs *ReportGenerationService) buildReport(ctx context.Context, start, end time.Time) (*AggregationResult, string, error) {
	logrus.Infof("Aggregating transactions from %s to %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	aggregation, err := rgs.aggregation.AggregateByDateRange(ctx, start, end)
	if err != nil {
		return nil, "", err
	}

	htmlReport, err := rgs.formatting.FormatAsHTML(aggregation)
	if err != nil {
		return nil, "", shared.WrapError(err, shared.ErrorCategoryProcessing, "FORMAT_FAILED", "report-generation", "generate_report", false)
	}
	logrus.Info("Formatted report as HTML")

	return aggregation, htmlReport, nil
}

func (rgs *ReportGenerationService) saveReport(ctx context.Context, report *models.Report) error {
	uow, err := rgs.store.BeginUnitOfWork(ctx)
	if err != nil {
		return shared.WrapError(err, shared.ErrorCategoryDatabase, "BEGIN_TX_FAILED", "report-generation", "save_report", true)
	}
	defer uow.Release()

	if err := uow.SaveReport(ctx, report); err != nil {
		return shared.WrapError(err, shared.ErrorCategoryDatabase, "REPORT_SAVE_FAILED", "report-generation", "save_report", true)
	}
	if err := uow.Commit(); err != nil {
		return shared.WrapError(err, shared.ErrorCategoryDatabase, "REPORT_COMMIT_FAILED", "report-generation", "save_report", true)
	}
	return nil
}

// markFailed records the FAILED status; the original generation error is
// what propagates to the caller
func (rgs *ReportGenerationService) markFailed(ctx context.Context, report *models.Report) {
	report.Status = models.ReportStatusFailed
	if err := rgs.saveReport(ctx, report); err != nil {
		logrus.Errorf("Failed to mark report %s as FAILED: %v", report.ID, err)
	} else {
		logrus.Info("Report status updated to FAILED")
	}
}

// deliverReport emails the rendered report. Failures flip the email
// delivery status but never fail the generated report.
func (rgs *ReportGenerationService) deliverReport(
	ctx context.Context,
	report *models.Report,
	aggregation *AggregationResult,
	htmlReport string,
	start time.Time,
) {
	payload := EmailPayload{
		Subject: "Daily Transaction Report - " + start.Format("2006-01-02"),
		HTML:    htmlReport,
		Text:    rgs.formatting.FormatAsText(aggregation),
	}

	if err := rgs.delivery.SendReport(payload); err != nil {
		report.EmailDeliveryStatus = models.EmailDeliveryStatusFailed
		logrus.Errorf("Failed to send report email: %v", err)
	} else {
		report.EmailDeliveryStatus = models.EmailDeliveryStatusSent
		logrus.Info("Report email sent successfully")
	}

	if err := rgs.saveReport(ctx, report); err != nil {
		logrus.Errorf("Failed to update email delivery status for report %s: %v", report.ID, err)
	}
}
