// Package scheduler runs periodic maintenance jobs, currently the nightly
// duplicate consolidation sweep.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stephabauva/wellness-ai-rep-sub006/internal/config"
	"github.com/stephabauva/wellness-ai-rep-sub006/internal/engine"
)

// cronParser accepts standard five-field cron specs.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler drives scheduled consolidation runs.
type Scheduler struct {
	cfg          config.SchedulerConfig
	consolidator *engine.Consolidator
	cron         *cron.Cron
}

// New creates a scheduler. It does nothing until Start is called.
func New(cfg config.SchedulerConfig, consolidator *engine.Consolidator) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		consolidator: consolidator,
		cron:         cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the consolidation job and begins the cron loop. When
// scheduled consolidation is disabled this is a no-op.
func (s *Scheduler) Start() error {
	if !s.cfg.ConsolidationEnabled {
		log.Println("Scheduled consolidation disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.cfg.ConsolidationSpec, s.runConsolidation)
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("Scheduled consolidation enabled (spec %q)", s.cfg.ConsolidationSpec)
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runConsolidation() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	report, err := s.consolidator.Run(ctx, engine.ConsolidationOptions{})
	if err != nil {
		log.Printf("WARNING: Scheduled consolidation failed: %v", err)
		return
	}
	log.Printf("Scheduled consolidation: %d groups, %d deactivated, %d updated in %dms",
		report.DuplicateGroups, report.MemoriesDeactivated, report.MemoriesUpdated,
		report.ProcessingTimeMs)
}
