// Package publishers announces written feeds to external sinks: webhooks,
// cloud queues and object storage.
package publishers

import (
	"context"
	"time"

	"github.com/michael-poon/rss-feeds/internal/logger"
)

// Logger is the logging surface publishers write to.
type Logger = logger.Logger

func ensureLogger(log Logger) Logger { return logger.Ensure(log) }

// Event describes one feed file that was just written.
type Event struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	Feed        string    `json:"feed"`
	OutputPath  string    `json:"output_path"`
	ItemCount   int       `json:"item_count"`
	StockCodes  []string  `json:"stock_codes"`
	FailedCodes []string  `json:"failed_codes,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Publisher delivers events to one sink.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}
