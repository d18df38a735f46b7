package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/michael-poon/rss-feeds/internal/domain"
	"github.com/michael-poon/rss-feeds/internal/logger"
	"github.com/michael-poon/rss-feeds/pkg/feed"
)

// Fetcher returns the records listed for one stock code.
type Fetcher interface {
	Fetch(ctx context.Context, stockCode string) ([]domain.NewsRecord, error)
}

// Recorder persists a finished run.
type Recorder interface {
	Record(ctx context.Context, rep Report) error
}

// Notifier is told about every feed written.
type Notifier interface {
	Notify(ctx context.Context, rep Report) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, rep Report) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, rep Report) error { return f(ctx, rep) }

// Job is one feed to build: an ordered list of stock codes and where to write it.
type Job struct {
	Name   string
	Codes  []string
	Output string
}

// Report summarises a run.
type Report struct {
	RunID      string    `json:"run_id"`
	Feed       string    `json:"feed"`
	Output     string    `json:"output"`
	Codes      []string  `json:"codes"`
	Failed     []string  `json:"failed,omitempty"`
	Items      int       `json:"items"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Runner drives the fetcher over a stock list, one code at a time.
type Runner struct {
	fetcher   Fetcher
	limiter   Limiter
	assembler *feed.Assembler
	recorder  Recorder
	notifier  Notifier
	log       logger.Logger
	now       func() time.Time
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

// WithLimiter sets the pause between stock codes.
func WithLimiter(l Limiter) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.limiter = l
		}
	}
}

// WithRecorder stores each report after the feed is written.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) { r.recorder = rec }
}

// WithNotifier announces each written feed.
func WithNotifier(n Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// WithClock replaces the clock used for report timestamps.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner creates a Runner. Without a limiter option codes are throttled 2–5 s apart.
func NewRunner(fetcher Fetcher, assembler *feed.Assembler, log logger.Logger, opts ...RunnerOption) *Runner {
	if assembler == nil {
		assembler = feed.NewAssembler(feed.DefaultMeta(), log)
	}
	r := &Runner{
		fetcher:   fetcher,
		limiter:   NewJitterLimiter(2*time.Second, 5*time.Second),
		assembler: assembler,
		log:       logger.Ensure(log),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Collect fetches every code in order and accumulates the records. A code
// that fails is reported in failed and skipped; only ctx cancellation stops
// the loop early.
func (r *Runner) Collect(ctx context.Context, codes []string) (records []domain.NewsRecord, failed []string, err error) {
	for i, code := range codes {
		if i > 0 {
			if err := r.limiter.Wait(ctx); err != nil {
				return records, failed, err
			}
		}

		got, fetchErr := r.fetcher.Fetch(ctx, code)
		if fetchErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return records, failed, ctxErr
			}
			r.log.WarnObj("stock code skipped", "code_skipped", map[string]any{
				"stock_code": code,
				"error":      fetchErr.Error(),
			})
			failed = append(failed, code)
			continue
		}

		r.log.InfoObj("stock code collected", "code_collected", map[string]any{
			"stock_code": code,
			"records":    len(got),
		})
		records = append(records, got...)
	}
	return records, failed, nil
}

// Run builds one feed: collect, assemble, verify, write, then record and notify.
func (r *Runner) Run(ctx context.Context, job Job) (Report, error) {
	rep := Report{
		RunID:     uuid.NewString(),
		Feed:      job.Name,
		Output:    job.Output,
		Codes:     job.Codes,
		StartedAt: r.now(),
	}
	if strings.TrimSpace(job.Output) == "" {
		return rep, errors.New("job output path is empty")
	}

	records, failed, err := r.Collect(ctx, job.Codes)
	rep.Failed = failed
	if err != nil {
		return rep, fmt.Errorf("collect %s: %w", job.Name, err)
	}

	data, err := r.assembler.Assemble(records).Marshal()
	if err != nil {
		return rep, err
	}
	if err := feed.Verify(data, len(records)); err != nil {
		return rep, fmt.Errorf("verify %s: %w", job.Name, err)
	}
	if err := feed.WriteFile(job.Output, data); err != nil {
		return rep, err
	}

	rep.Items = len(records)
	rep.FinishedAt = r.now()
	r.log.InfoObj("feed written", "feed_written", map[string]any{
		"feed":   job.Name,
		"output": job.Output,
		"items":  rep.Items,
		"failed": len(rep.Failed),
	})

	r.afterWrite(ctx, rep)
	return rep, nil
}

// afterWrite records and announces the run; failures here never fail the run.
func (r *Runner) afterWrite(ctx context.Context, rep Report) {
	if r.recorder != nil {
		if err := r.recorder.Record(ctx, rep); err != nil {
			r.log.WarnObj("run not recorded", "runlog_error", map[string]any{
				"run_id": rep.RunID,
				"error":  err.Error(),
			})
		}
	}
	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, rep); err != nil {
			r.log.WarnObj("feed notification failed", "notify_error", map[string]any{
				"run_id": rep.RunID,
				"error":  err.Error(),
			})
		}
	}
}
