package main

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/michael-poon/rss-feeds/internal/logger"
)

// startSchedule runs fn on the cron spec until the returned stop is called.
// A tick that fires while the previous one is still running is skipped.
func startSchedule(spec string, log logger.Logger, fn func()) (stop func(), err error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, fn); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	c.Start()
	log.InfoObj("schedule started", "schedule_started", map[string]any{"schedule": spec})
	return func() { <-c.Stop().Done() }, nil
}

// runScheduled blocks until ctx is done, running batch on every tick.
func runScheduled(ctx context.Context, spec string, log logger.Logger, batch func(context.Context) int) error {
	stop, err := startSchedule(spec, log, func() {
		if code := batch(ctx); code != 0 {
			log.WarnObj("scheduled batch finished with errors", "schedule_batch_failed", map[string]any{"exit_code": code})
		}
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	stop()
	log.InfoObj("schedule stopped", "schedule_stopped", nil)
	return nil
}
