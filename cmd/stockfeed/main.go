// Command stockfeed builds combined RSS feeds of AASTOCKS stock news.
//
// With list files as arguments it writes one feed per file next to it
// (my_stocks.txt -> my_stocks_rss.xml). Without arguments it reads the
// comma-separated lists named in the configuration from the environment.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/michael-poon/rss-feeds/internal/config"
	"github.com/michael-poon/rss-feeds/internal/crawler"
	"github.com/michael-poon/rss-feeds/internal/logger"
	"github.com/michael-poon/rss-feeds/internal/runlog"
	"github.com/michael-poon/rss-feeds/internal/stocklist"
	"github.com/michael-poon/rss-feeds/pkg/feed"
	"github.com/michael-poon/rss-feeds/pkg/httpclient"
	"github.com/michael-poon/rss-feeds/pkg/providers"
	"github.com/michael-poon/rss-feeds/pkg/publishers"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath string
	outputDir  string
	history    int
	schedule   string
	files      []string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("stockfeed", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: stockfeed [flags] [list.txt ...]")
		fs.PrintDefaults()
	}
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML/JSON/TOML config file")
	fs.StringVarP(&opts.outputDir, "output-dir", "o", "", "directory for generated feeds (default: next to each list file, or output_dir)")
	fs.IntVar(&opts.history, "history", 0, "print the N most recent runs and exit")
	fs.StringVar(&opts.schedule, "schedule", "", `keep running and rebuild feeds on a cron schedule, e.g. "*/30 9-16 * * 1-5"`)
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.files = fs.Args()
	return opts, nil
}

// run is main without the process exit so it can be driven from tests.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "stockfeed: %v\n", err)
		return 1
	}
	if opts.outputDir != "" {
		cfg.OutputDir = opts.outputDir
	}
	if opts.schedule != "" {
		cfg.Schedule = opts.schedule
	}

	level, _ := cfg.LogLevel()
	log, err := logger.New(logger.Options{Level: level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(stderr, "stockfeed: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	if opts.history > 0 {
		return printHistory(cfg, opts.history, stdout, stderr)
	}

	jobs, err := buildJobs(cfg, opts, log)
	if err != nil {
		fmt.Fprintf(stderr, "stockfeed: %v\n", err)
		return 1
	}
	if len(jobs) == 0 {
		fmt.Fprintln(stderr, "stockfeed: no stock list supplied; pass list files as arguments or set the list environment variables")
		for _, l := range cfg.Lists {
			fmt.Fprintf(stderr, "  %s=00001,00005,... -> %s\n", l.Env, l.Output)
		}
		return 0
	}

	runner, cleanup, err := newRunner(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "stockfeed: %v\n", err)
		return 1
	}
	defer cleanup()

	if cfg.Schedule == "" {
		return runJobs(ctx, runner, jobs, log, stdout, stderr)
	}
	err = runScheduled(ctx, cfg.Schedule, log, func(ctx context.Context) int {
		jobs, err := buildJobs(cfg, opts, log)
		if err != nil {
			log.ErrorObj("stock lists unreadable", "jobs_failed", map[string]any{"error": err.Error()})
			return 1
		}
		return runJobs(ctx, runner, jobs, log, stdout, stderr)
	})
	if err != nil {
		fmt.Fprintf(stderr, "stockfeed: %v\n", err)
		return 1
	}
	return 0
}

// runJobs builds each feed in turn. A failed feed does not stop the others.
func runJobs(ctx context.Context, runner *crawler.Runner, jobs []crawler.Job, log logger.Logger, stdout, stderr io.Writer) int {
	exit := 0
	for _, job := range jobs {
		rep, err := runner.Run(ctx, job)
		if err != nil {
			log.ErrorObj("feed run failed", "run_failed", map[string]any{
				"feed":  job.Name,
				"error": err.Error(),
			})
			fmt.Fprintf(stderr, "stockfeed: %s: %v\n", job.Name, err)
			exit = 1
			if ctx.Err() != nil {
				break
			}
			continue
		}
		fmt.Fprintf(stdout, "%s: %d items from %d codes -> %s\n", rep.Feed, rep.Items, len(rep.Codes), rep.Output)
		if len(rep.Failed) > 0 {
			fmt.Fprintf(stdout, "  failed: %v\n", rep.Failed)
		}
	}
	return exit
}

// buildJobs turns list files, or the configured environment lists, into jobs.
func buildJobs(cfg *config.Config, opts options, log logger.Logger) ([]crawler.Job, error) {
	var jobs []crawler.Job
	if len(opts.files) > 0 {
		for _, path := range opts.files {
			codes, err := stocklist.ReadFile(path)
			if errors.Is(err, stocklist.ErrEmptyList) {
				log.WarnObj("stock list file is empty", "list_empty", map[string]any{"path": path})
				continue
			}
			if err != nil {
				return nil, err
			}
			out := stocklist.OutputNameFor(path)
			if opts.outputDir != "" {
				out = filepath.Join(opts.outputDir, filepath.Base(out))
			}
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			jobs = append(jobs, crawler.Job{Name: name, Codes: codes, Output: out})
		}
		return jobs, nil
	}

	for _, l := range cfg.Lists {
		codes, err := stocklist.FromEnv(l.Env)
		if errors.Is(err, stocklist.ErrEmptyList) {
			log.WarnObj("stock list not set", "list_empty", map[string]any{
				"list": l.Name,
				"env":  l.Env,
			})
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, crawler.Job{Name: l.Name, Codes: codes, Output: filepath.Join(cfg.OutputDir, l.Output)})
	}
	return jobs, nil
}

// newRunner wires fetcher, assembler, run log and publishers from cfg.
func newRunner(ctx context.Context, cfg *config.Config, log logger.Logger) (*crawler.Runner, func(), error) {
	provider := providers.Provider{
		ID:           providers.AAStocksProviderID,
		BaseURL:      cfg.Source.BaseURL,
		PathTemplate: cfg.Source.PathTemplate,
		UserAgent:    cfg.Source.UserAgent,
		Headers:      cfg.Source.Headers,
		Timeout:      cfg.Source.Timeout,
	}
	fetcher := providers.NewAAStocksFetcher(
		httpclient.NewRestyClient(cfg.Source.Timeout),
		provider,
		providers.RetryPolicy{MaxAttempts: cfg.Retry.MaxAttempts, BaseDelay: cfg.Retry.BaseDelay},
		log,
		providers.WithDateExtractor(providers.DateExtractor{NormalizeFallback: cfg.Fetch.NormalizeFallbackZone}),
	)
	assembler := feed.NewAssembler(feed.Meta{
		Title:       cfg.Feed.Title,
		Link:        cfg.Feed.Link,
		Description: cfg.Feed.Description,
		Language:    cfg.Feed.Language,
	}, log)

	runOpts := []crawler.RunnerOption{
		crawler.WithLimiter(crawler.NewJitterLimiter(cfg.Throttle.MinDelay, cfg.Throttle.MaxDelay)),
	}
	cleanup := func() {}

	if cfg.RunLog.Path != "" {
		store, err := runlog.Open(cfg.RunLog.Path)
		if err != nil {
			return nil, nil, err
		}
		runOpts = append(runOpts, crawler.WithRecorder(store))
		cleanup = func() { _ = store.Close() }
	}

	if cfg.PublishersFile != "" {
		cfgs, err := publishers.LoadConfigs(cfg.PublishersFile)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		dispatcher, err := publishers.NewDispatcher(ctx, publishers.DefaultRegistry(), cfgs, log)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		log.InfoObj("publishers ready", "publishers_loaded", map[string]any{"count": dispatcher.Len()})
		runOpts = append(runOpts, crawler.WithNotifier(dispatcher))
	}

	log.DebugObj("configuration loaded", "config_loaded", map[string]any{"config": cfg.String()})
	return crawler.NewRunner(fetcher, assembler, log, runOpts...), cleanup, nil
}

func printHistory(cfg *config.Config, limit int, stdout, stderr io.Writer) int {
	if cfg.RunLog.Path == "" {
		fmt.Fprintln(stderr, "stockfeed: run history is disabled; set runlog.path")
		return 1
	}
	store, err := runlog.Open(cfg.RunLog.Path)
	if err != nil {
		fmt.Fprintf(stderr, "stockfeed: %v\n", err)
		return 1
	}
	defer store.Close()

	reports, err := store.List(limit)
	if err != nil {
		fmt.Fprintf(stderr, "stockfeed: %v\n", err)
		return 1
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tFEED\tITEMS\tCODES\tFAILED\tOUTPUT")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Feed, r.Items, len(r.Codes), len(r.Failed), r.Output)
	}
	_ = tw.Flush()
	return 0
}
