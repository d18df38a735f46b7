package runlog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/michael-poon/rss-feeds/internal/crawler"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "runs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndListNewestFirst(t *testing.T) {
	s := openTemp(t)
	base := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		err := s.Record(ctx, crawler.Report{
			RunID:     id,
			Feed:      "my",
			Output:    "stocks_rss.xml",
			Codes:     []string{"00001"},
			Items:     i,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		assert.Equal(t, nil, err)
	}

	all, err := s.List(0)
	assert.Equal(t, nil, err)
	assert.Equal(t, 3, len(all))
	assert.Equal(t, "c", all[0].RunID)
	assert.Equal(t, "a", all[2].RunID)
	assert.Equal(t, 2, all[0].Items)
	assert.Equal(t, true, all[0].StartedAt.Equal(base.Add(2*time.Minute)))

	two, err := s.List(2)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(two))
	assert.Equal(t, "b", two[1].RunID)
}

func TestListEmpty(t *testing.T) {
	got, err := openTemp(t).List(5)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(got))
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, s.Record(context.Background(), crawler.Report{RunID: "x", StartedAt: time.Now()}))
	assert.Equal(t, nil, s.Close())

	s, err = Open(path)
	assert.Equal(t, nil, err)
	defer s.Close()
	got, err := s.List(0)
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(got))
	assert.Equal(t, "x", got[0].RunID)
}

func TestClosedStore(t *testing.T) {
	s := openTemp(t)
	assert.Equal(t, nil, s.Close())

	err := s.Record(context.Background(), crawler.Report{RunID: "x"})
	assert.Equal(t, true, errors.Is(err, ErrClosed))
	_, err = s.List(0)
	assert.Equal(t, true, errors.Is(err, ErrClosed))
}

func TestRecordHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := openTemp(t).Record(ctx, crawler.Report{RunID: "x"})
	assert.Equal(t, true, errors.Is(err, context.Canceled))
}
