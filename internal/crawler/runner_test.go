package crawler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/mmcdole/gofeed"

	"github.com/michael-poon/rss-feeds/internal/domain"
	"github.com/michael-poon/rss-feeds/pkg/feed"
	"github.com/michael-poon/rss-feeds/pkg/providers"
)

type stubFetcher struct {
	records map[string][]domain.NewsRecord
	fail    map[string]bool
	calls   []string
}

func (f *stubFetcher) Fetch(_ context.Context, code string) ([]domain.NewsRecord, error) {
	f.calls = append(f.calls, code)
	if f.fail[code] {
		return nil, fmt.Errorf("fetch %s: %w", code, providers.ErrRetriesExhausted)
	}
	return f.records[code], nil
}

func newsFor(code string, n int) []domain.NewsRecord {
	out := make([]domain.NewsRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.NewsRecord{
			StockCode: code,
			Title:     fmt.Sprintf("%s headline %d", code, i),
			Link:      fmt.Sprintf("https://www.aastocks.com/tc/news/%s/%d", code, i),
			PubDate:   "Tue, 01 Jul 2025 09:30:00 +0800",
			Summary:   fmt.Sprintf("%s summary %d", code, i),
			GUID:      fmt.Sprintf("NOW.%s.%d", code, i),
		})
	}
	return out
}

type countingLimiter struct {
	waits int
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits++
	return ctx.Err()
}

type recorderStub struct {
	reports []Report
	err     error
}

func (r *recorderStub) Record(_ context.Context, rep Report) error {
	r.reports = append(r.reports, rep)
	return r.err
}

func TestRunSkipsFailedCodeAndKeepsOrder(t *testing.T) {
	fetcher := &stubFetcher{
		records: map[string][]domain.NewsRecord{
			"00001": newsFor("00001", 2),
			"00700": newsFor("00700", 3),
		},
		fail: map[string]bool{"00005": true},
	}
	limiter := &countingLimiter{}
	out := filepath.Join(t.TempDir(), "stocks_rss.xml")

	runner := NewRunner(fetcher, feed.NewAssembler(feed.DefaultMeta(), nil), nil, WithLimiter(limiter))
	rep, err := runner.Run(context.Background(), Job{Name: "my", Codes: []string{"00001", "00005", "00700"}, Output: out})

	assert.Equal(t, nil, err)
	assert.Equal(t, 5, rep.Items)
	assert.Equal(t, []string{"00005"}, rep.Failed)
	assert.Equal(t, []string{"00001", "00005", "00700"}, fetcher.calls)
	assert.Equal(t, 2, limiter.waits)

	data, err := os.ReadFile(out)
	assert.Equal(t, nil, err)
	parsed, err := gofeed.NewParser().ParseString(string(data))
	assert.Equal(t, nil, err)
	assert.Equal(t, 5, len(parsed.Items))

	want := []string{"NOW.00001.0", "NOW.00001.1", "NOW.00700.0", "NOW.00700.1", "NOW.00700.2"}
	for i, it := range parsed.Items {
		assert.Equal(t, want[i], it.GUID)
	}
}

func TestRunAllCodesFailStillWritesEmptyFeed(t *testing.T) {
	fetcher := &stubFetcher{fail: map[string]bool{"1": true, "2": true}}
	out := filepath.Join(t.TempDir(), "watch_rss.xml")

	rep, err := NewRunner(fetcher, nil, nil, WithLimiter(NopLimiter{})).
		Run(context.Background(), Job{Name: "watch", Codes: []string{"1", "2"}, Output: out})

	assert.Equal(t, nil, err)
	assert.Equal(t, 0, rep.Items)
	assert.Equal(t, 2, len(rep.Failed))

	_, statErr := os.Stat(out)
	assert.Equal(t, nil, statErr)
}

func TestRunRecordsAndNotifies(t *testing.T) {
	fetcher := &stubFetcher{records: map[string][]domain.NewsRecord{"00001": newsFor("00001", 1)}}
	rec := &recorderStub{err: errors.New("disk full")}
	var notified []Report
	notifier := NotifierFunc(func(_ context.Context, rep Report) error {
		notified = append(notified, rep)
		return errors.New("sink down")
	})
	clock := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	rep, err := NewRunner(fetcher, nil, nil,
		WithLimiter(NopLimiter{}),
		WithRecorder(rec),
		WithNotifier(notifier),
		WithClock(func() time.Time { return clock }),
	).Run(context.Background(), Job{Name: "my", Codes: []string{"00001"}, Output: filepath.Join(t.TempDir(), "f.xml")})

	// sink failures are logged, not returned
	assert.Equal(t, nil, err)
	assert.NotEqual(t, "", rep.RunID)
	assert.Equal(t, clock, rep.StartedAt)
	assert.Equal(t, 1, len(rec.reports))
	assert.Equal(t, 1, len(notified))
	assert.Equal(t, rep.RunID, notified[0].RunID)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	fetcher := &stubFetcher{records: map[string][]domain.NewsRecord{"1": newsFor("1", 1)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := filepath.Join(t.TempDir(), "f.xml")

	_, err := NewRunner(fetcher, nil, nil, WithLimiter(NopLimiter{})).
		Run(ctx, Job{Name: "x", Codes: []string{"1", "2"}, Output: out})

	assert.Equal(t, true, errors.Is(err, context.Canceled))
	_, statErr := os.Stat(out)
	assert.Equal(t, true, os.IsNotExist(statErr))
}

func TestRunRequiresOutput(t *testing.T) {
	_, err := NewRunner(&stubFetcher{}, nil, nil).Run(context.Background(), Job{Name: "x", Codes: []string{"1"}})
	assert.NotEqual(t, nil, err)
}

func TestJitterLimiterBounds(t *testing.T) {
	l := NewJitterLimiter(5*time.Second, 2*time.Second)
	assert.Equal(t, 2*time.Second, l.Min)
	assert.Equal(t, 5*time.Second, l.Max)

	l.rand = func(int64) int64 { return 0 }
	assert.Equal(t, 2*time.Second, l.Next())

	l.rand = func(n int64) int64 { return n - 1 }
	assert.Equal(t, 5*time.Second, l.Next())

	l = NewJitterLimiter(2*time.Second, 5*time.Second)
	for i := 0; i < 100; i++ {
		d := l.Next()
		if d < 2*time.Second || d > 5*time.Second {
			t.Fatalf("Next() = %v outside [2s, 5s]", d)
		}
	}
}

func TestJitterLimiterWaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewJitterLimiter(time.Hour, time.Hour).Wait(ctx)
	assert.Equal(t, true, errors.Is(err, context.Canceled))
}
