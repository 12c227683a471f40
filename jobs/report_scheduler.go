package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/finvault/trading-backend/services"
	"github.com/finvault/trading-backend/shared"
)

// ReportSchedulerJob triggers daily report generation on a cron schedule
// (default 02:00 UTC) and exposes a manual trigger for arbitrary dates.
// Each invocation is wrapped in exponential-backoff retry; a held report
// lock is excluded from retry and from failure accounting. The scheduled
// path logs the lock as a benign skip, the manual trigger surfaces it as
// a Conflict.
type ReportSchedulerJob struct {
	generator    *services.ReportGenerationService
	schedule     string
	maxAttempts  int
	baseDelay    time.Duration
	cron         *cron.Cron
	successCount atomic.Int64
	failureCount atomic.Int64
}

func NewReportSchedulerJob(generator *services.ReportGenerationService, schedule string, maxAttempts int, baseDelay time.Duration) *ReportSchedulerJob {
	if schedule == "" {
		schedule = "0 2 * * *"
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return &ReportSchedulerJob{
		generator:   generator,
		schedule:    schedule,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

// Start registers the cron trigger. The scheduled run covers "today" at
// UTC midnight.
func (j *ReportSchedulerJob) Start() error {
	j.cron = cron.New(cron.WithLocation(time.UTC))
	_, err := j.cron.AddFunc(j.schedule, func() {
		today := time.Now().UTC()
		if err := j.execute(context.Background(), today, "scheduled daily"); err != nil && shared.IsConflict(err) {
			// Another instance already holds the report lock
			logrus.Warn("Skipped: report already in progress or exists")
		}
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	logrus.Infof("Report scheduler started (schedule: %q UTC)", j.schedule)
	return nil
}

// Stop halts the cron scheduler
func (j *ReportSchedulerJob) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

// TriggerManual generates the report for an arbitrary caller-supplied
// date. Unlike the scheduled path, a held report lock is returned as a
// Conflict error so the caller can report the duplicate.
func (j *ReportSchedulerJob) TriggerManual(ctx context.Context, date time.Time) error {
	return j.execute(ctx, date, "manual")
}

func (j *ReportSchedulerJob) execute(ctx context.Context, date time.Time, trigger string) error {
	logrus.Infof("%s report generation started for %s", trigger, date.UTC().Format("2006-01-02"))
	startTime := time.Now()

	operation := func() error {
		err := j.generator.GenerateReportForDate(ctx, date)
		if err != nil && shared.IsConflict(err) {
			// Lock held elsewhere, retrying cannot help
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = j.baseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	err := backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(j.maxAttempts-1)), ctx),
		func(err error, delay time.Duration) {
			logrus.Warnf("Report generation attempt failed, retrying in %v: %v", delay, err)
		},
	)

	duration := time.Since(startTime)
	if err != nil {
		if shared.IsConflict(err) {
			// Not a failure, the caller decides whether to skip or report
			return err
		}
		j.failureCount.Add(1)
		logrus.WithFields(logrus.Fields{
			"trigger":   trigger,
			"duration":  duration,
			"failures":  j.failureCount.Load(),
			"successes": j.successCount.Load(),
		}).Errorf("Report generation failed after retries: %v", err)
		return err
	}

	j.successCount.Add(1)
	logrus.WithFields(logrus.Fields{
		"trigger":   trigger,
		"duration":  duration,
		"failures":  j.failureCount.Load(),
		"successes": j.successCount.Load(),
	}).Info("Report generation completed")
	return nil
}
