package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ReportStatus string

const (
	ReportStatusInProgress ReportStatus = "IN_PROGRESS"
	ReportStatusCompleted  ReportStatus = "COMPLETED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

type EmailDeliveryStatus string

const (
	EmailDeliveryStatusPending EmailDeliveryStatus = "PENDING"
	EmailDeliveryStatusSent    EmailDeliveryStatus = "SENT"
	EmailDeliveryStatusFailed  EmailDeliveryStatus = "FAILED"
)

const ReportTypeDaily = "DAILY"

// Report is one generated report run. The (report_date, report_type)
// uniqueness constraint doubles as the cross-process generation lock: the
// row is inserted IN_PROGRESS to acquire the lock, then mutated in place
// through aggregation, formatting, and delivery.
type Report struct {
	ID                     uuid.UUID           `json:"id"`
	ReportDate             time.Time           `json:"report_date"`
	GeneratedAt            time.Time           `json:"generated_at"`
	ReportType             string              `json:"report_type"`
	Status                 ReportStatus        `json:"status"`
	TotalTransactions      int                 `json:"total_transactions"`
	SuccessfulTransactions int                 `json:"successful_transactions"`
	FailedTransactions     int                 `json:"failed_transactions"`
	ReportData             json.RawMessage     `json:"report_data"`
	EmailDeliveryStatus    EmailDeliveryStatus `json:"email_delivery_status"`
}
