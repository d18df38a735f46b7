package publishers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/michael-poon/rss-feeds/internal/crawler"
)

type route struct {
	pub   Publisher
	feeds []string
}

// Dispatcher fans one event out to every publisher subscribed to its feed.
type Dispatcher struct {
	routes []route
	log    Logger
}

// NewDispatcher builds the enabled publishers in cfgs with reg.
func NewDispatcher(ctx context.Context, reg *Registry, cfgs []PublisherConfig, log Logger) (*Dispatcher, error) {
	if reg == nil {
		reg = DefaultRegistry()
	}
	d := &Dispatcher{log: ensureLogger(log)}
	for _, cfg := range Enabled(cfgs) {
		pub, err := reg.Build(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		d.Add(pub, cfg.Feeds...)
	}
	return d, nil
}

// Add registers pub for the named feeds, or for every feed when none are given.
func (d *Dispatcher) Add(pub Publisher, feeds ...string) {
	if pub == nil {
		return
	}
	d.routes = append(d.routes, route{pub: pub, feeds: feeds})
}

// Len reports how many publishers are registered.
func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.routes)
}

// Publish delivers evt to each subscribed publisher. Every publisher is tried;
// failures are joined into the returned error.
func (d *Dispatcher) Publish(ctx context.Context, evt Event) error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, r := range d.routes {
		if !subscribed(r.feeds, evt.Feed) {
			continue
		}
		if err := r.pub.Publish(ctx, evt); err != nil {
			d.log.WarnObj("publisher failed", "publisher_error", map[string]any{
				"publisher": r.pub.ID(),
				"type":      r.pub.Type(),
				"feed":      evt.Feed,
				"error":     err.Error(),
			})
			errs = append(errs, fmt.Errorf("publisher %s: %w", r.pub.ID(), err))
			continue
		}
		d.log.InfoObj("event published", "publisher_delivered", map[string]any{
			"publisher": r.pub.ID(),
			"type":      r.pub.Type(),
			"feed":      evt.Feed,
		})
	}
	return errors.Join(errs...)
}

// Notify turns a finished run into an Event and publishes it.
func (d *Dispatcher) Notify(ctx context.Context, rep crawler.Report) error {
	return d.Publish(ctx, EventFromReport(rep))
}

// EventFromReport maps a run report onto the published event shape.
func EventFromReport(rep crawler.Report) Event {
	generated := rep.FinishedAt
	if generated.IsZero() {
		generated = rep.StartedAt
	}
	return Event{
		ID:          uuid.NewString(),
		RunID:       rep.RunID,
		Feed:        rep.Feed,
		OutputPath:  rep.Output,
		ItemCount:   rep.Items,
		StockCodes:  rep.Codes,
		FailedCodes: rep.Failed,
		GeneratedAt: generated,
	}
}

var _ crawler.Notifier = (*Dispatcher)(nil)
