package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/michael-poon/rss-feeds/internal/logger"
)

func TestStartScheduleRejectsBadSpec(t *testing.T) {
	_, err := startSchedule("every now and then", logger.NopLogger{}, func() {})
	assert.NotEqual(t, nil, err)
}

func TestRunScheduledTicksUntilCancelled(t *testing.T) {
	var ticks atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- runScheduled(ctx, "@every 1s", logger.NopLogger{}, func(context.Context) int {
			ticks.Add(1)
			return 0
		})
	}()

	deadline := time.After(5 * time.Second)
	for ticks.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("schedule never fired")
		case <-time.After(50 * time.Millisecond):
		}
	}
	cancel()
	assert.Equal(t, nil, <-done)
}
