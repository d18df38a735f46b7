package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/mmcdole/gofeed"
)

// setupEnv points the fetcher at a local listing server and removes waits.
func setupEnv(t *testing.T) *atomic.Int32 {
	t.Helper()
	listing, err := os.ReadFile(filepath.Join("..", "..", "pkg", "providers", "testdata", "listing.html"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	hits := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.Contains(r.URL.Path, "/99999/") {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(listing)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("STOCKFEED_SOURCE_BASE_URL", srv.URL)
	t.Setenv("STOCKFEED_THROTTLE_MIN_DELAY", "0s")
	t.Setenv("STOCKFEED_THROTTLE_MAX_DELAY", "0s")
	t.Setenv("STOCKFEED_RETRY_MAX_ATTEMPTS", "2")
	t.Setenv("STOCKFEED_RETRY_BASE_DELAY", "0s")
	t.Setenv("STOCKFEED_RUNLOG_PATH", filepath.Join(dir, "state", "runs.db"))
	t.Setenv("STOCK_LIST_MY", "")
	t.Setenv("STOCK_LIST_WATCH", "")
	t.Setenv("DEBUG", "")
	return hits
}

func TestRunWithoutInputPrintsHelpAndExitsZero(t *testing.T) {
	setupEnv(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), nil, &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Equal(t, true, strings.Contains(stderr.String(), "no stock list supplied"))
	assert.Equal(t, true, strings.Contains(stderr.String(), "STOCK_LIST_MY"))
	_, err := os.Stat("stocks_rss.xml")
	assert.Equal(t, true, os.IsNotExist(err))
}

func TestRunFileModeWritesFeedNextToList(t *testing.T) {
	hits := setupEnv(t)
	assert.Equal(t, nil, os.WriteFile("my_stocks.txt", []byte("00001\n\n99999\n00005\n"), 0o644))
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"my_stocks.txt"}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	// 99999 fails twice, the other two codes succeed once each
	assert.Equal(t, int32(4), hits.Load())
	assert.Equal(t, true, strings.Contains(stdout.String(), "my_stocks: 6 items from 3 codes"))
	assert.Equal(t, true, strings.Contains(stdout.String(), "99999"))

	data, err := os.ReadFile("my_stocks_rss.xml")
	assert.Equal(t, nil, err)
	parsed, err := gofeed.NewParser().ParseString(string(data))
	assert.Equal(t, nil, err)
	assert.Equal(t, 6, len(parsed.Items))
	assert.Equal(t, "zh-HK", parsed.Language)

	stdout.Reset()
	code = run(context.Background(), []string{"--history", "5"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Equal(t, true, strings.Contains(stdout.String(), "my_stocks"))
	assert.Equal(t, true, strings.Contains(stdout.String(), "my_stocks_rss.xml"))
}

func TestRunEnvModeSkipsUnsetList(t *testing.T) {
	setupEnv(t)
	t.Setenv("STOCK_LIST_MY", "00001, 00700")
	out := filepath.Join(t.TempDir(), "feeds")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--output-dir", out}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	data, err := os.ReadFile(filepath.Join(out, "stocks_rss.xml"))
	assert.Equal(t, nil, err)
	assert.Equal(t, 6, strings.Count(string(data), "<item>"))
	_, err = os.Stat(filepath.Join(out, "watch_rss.xml"))
	assert.Equal(t, true, os.IsNotExist(err))
}

func TestRunMissingListFileFails(t *testing.T) {
	setupEnv(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"nope.txt"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Equal(t, true, strings.Contains(stderr.String(), "nope.txt"))
}

func TestRunHistoryNeedsRunLog(t *testing.T) {
	setupEnv(t)
	t.Setenv("STOCKFEED_RUNLOG_PATH", "")
	var stdout, stderr bytes.Buffer

	assert.Equal(t, 1, run(context.Background(), []string{"--history", "3"}, &stdout, &stderr))
	assert.Equal(t, true, strings.Contains(stderr.String(), "runlog.path"))
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), []string{"--bogus"}, &stdout, &stderr))
	assert.Equal(t, 0, run(context.Background(), []string{"--help"}, &stdout, &stderr))
}
