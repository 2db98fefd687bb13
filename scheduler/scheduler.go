package scheduler

import (
	"log"
	"time"

	"stock_etl_project/config"
	"stock_etl_project/services/pipeline"

	"github.com/go-co-op/gocron"
)

// Scheduler manages scheduled pipeline jobs
type Scheduler struct {
	cron   *gocron.Scheduler
	driver *pipeline.Driver
}

// NewScheduler creates a new scheduler instance
func NewScheduler(driver *pipeline.Driver) *Scheduler {
	return &Scheduler{
		cron:   gocron.NewScheduler(time.UTC),
		driver: driver,
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Run the full pipeline daily after market close
	s.cron.Every(1).Day().At(config.AppConfig.PipelineAt).Do(func() {
		s.runDailyPipeline()
	})

	s.cron.StartAsync()
	log.Printf("Scheduler started, daily pipeline at %s UTC", config.AppConfig.PipelineAt)
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}
