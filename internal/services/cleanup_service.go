package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/villastay/booking-backend/internal/database"
)

// CleanupService manages scheduled maintenance jobs
type CleanupService struct {
	cron      *cron.Cron
	events    *database.WebhookEventRepository
	retention time.Duration
	logger    *logrus.Logger
}

// NewCleanupService creates a new CleanupService
func NewCleanupService(events *database.WebhookEventRepository, retention time.Duration, logger *logrus.Logger) *CleanupService {
	return &CleanupService{
		cron:      cron.New(cron.WithSeconds()),
		events:    events,
		retention: retention,
		logger:    logger,
	}
}

// Start schedules and starts all maintenance jobs
func (s *CleanupService) Start() error {
	// Purge old webhook audit rows daily at 4 AM
	// Cron format: second minute hour day month weekday
	_, err := s.cron.AddFunc("0 0 4 * * *", s.purgeWebhookEventsJob)
	if err != nil {
		return fmt.Errorf("failed to schedule webhook events purge job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Cleanup service started")

	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *CleanupService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cleanup service stopped")
}

// purgeWebhookEventsJob deletes webhook audit rows older than the retention window
func (s *CleanupService) purgeWebhookEventsJob() {
	startTime := time.Now()
	cutoff := startTime.Add(-s.retention)

	deleted, err := s.events.DeleteOlderThan(cutoff)
	if err != nil {
		s.logger.WithError(err).Error("Webhook events purge job failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"deleted":  deleted,
		"cutoff":   cutoff,
		"duration": time.Since(startTime).String(),
	}).Info("Webhook events purge job finished")
}

// RunPurgeNow runs the purge job immediately (for admin triggers)
func (s *CleanupService) RunPurgeNow() {
	s.purgeWebhookEventsJob()
}
