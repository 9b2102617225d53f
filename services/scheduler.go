// services/scheduler.go
package services

import (
	"context"
	"log"

	"github.com/koratarata807/misenabiai/utils"

	"github.com/go-co-op/gocron/v2"
)

// StartDailyScheduler fires the dispatch job once a day at 10:00 JST (the
// process runs with TZ left alone; gocron gets the zone explicitly).
func (d *DispatchService) StartDailyScheduler() {
	sched, err := gocron.NewScheduler(gocron.WithLocation(utils.JST))
	if err != nil {
		log.Printf("❌ [SCHEDULER] init failed: %v", err)
		return
	}
	sched.Start()
	d.sched = sched

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(10, 0, 0))),
		gocron.NewTask(func() {
			report := d.RunDaily(context.Background())
			log.Printf("✅ [SCHEDULER] daily dispatch done: sent=%d skipped=%d failed=%d", report.Sent, report.Skipped, report.Failed)
		}),
	)
	if err != nil {
		log.Printf("❌ [SCHEDULER] job registration failed: %v", err)
	}
}

// StopScheduler shuts the daily scheduler down. Safe to call when the
// scheduler never started.
func (d *DispatchService) StopScheduler() error {
	if d.sched == nil {
		return nil
	}
	if err := d.sched.Shutdown(); err != nil {
		return err
	}
	log.Printf("⏹️ [SCHEDULER] stopped")
	return nil
}
