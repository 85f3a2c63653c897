package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ashare-lab/screener/internal/pipeline"
	"github.com/ashare-lab/screener/pkg/config"
	"github.com/ashare-lab/screener/pkg/logger"
)

// DailyScreenJob runs the screening pipeline for the current trading
// day after the market close.
type DailyScreenJob struct {
	pipeline *pipeline.Pipeline
	config   *config.Config
	logger   *logger.Logger
	location *time.Location
}

// NewDailyScreenJob creates the daily screening job.
func NewDailyScreenJob(p *pipeline.Pipeline, cfg *config.Config, log *logger.Logger, loc *time.Location) *DailyScreenJob {
	if loc == nil {
		loc = time.Local
	}
	return &DailyScreenJob{
		pipeline: p,
		config:   cfg,
		logger:   log,
		location: loc,
	}
}

// Name returns the job name.
func (j *DailyScreenJob) Name() string {
	return "daily_screen"
}

// Schedule returns the configured cron expression.
func (j *DailyScreenJob) Schedule() string {
	return j.config.Scheduler.CronSpec
}

// Run screens for today's date in the configured market timezone.
func (j *DailyScreenJob) Run(ctx context.Context) error {
	date := time.Now().In(j.location).Format("2006-01-02")
	j.logger.WithField("date", date).Info("Starting scheduled screening run")

	rep, err := j.pipeline.Run(ctx, pipeline.Options{Date: date})
	if err != nil {
		return fmt.Errorf("scheduled screen for %s: %w", date, err)
	}

	j.logger.WithFields(map[string]interface{}{
		"date":   date,
		"count":  rep.Count,
		"issues": rep.Issues,
	}).Info("Scheduled screening run finished")
	return nil
}
