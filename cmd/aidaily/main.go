package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/YuqingLong18/aidaily/pkg/classify"
	"github.com/YuqingLong18/aidaily/pkg/config"
	"github.com/YuqingLong18/aidaily/pkg/content"
	"github.com/YuqingLong18/aidaily/pkg/edition"
	"github.com/YuqingLong18/aidaily/pkg/enrich"
	"github.com/YuqingLong18/aidaily/pkg/fetch"
	"github.com/YuqingLong18/aidaily/pkg/llm"
	"github.com/YuqingLong18/aidaily/pkg/normalize"
	"github.com/YuqingLong18/aidaily/pkg/pipeline"
	"github.com/YuqingLong18/aidaily/pkg/repository"
	"github.com/YuqingLong18/aidaily/pkg/source"
	"github.com/YuqingLong18/aidaily/pkg/summarize"
	"github.com/YuqingLong18/aidaily/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"f" long:"config" env:"AIDAILY_CONFIG" default:"config.yml" description:"config file (defaults used when missing)"`

	ServerCmd ServerCommand `command:"server" description:"run the read-only edition API"`
	IngestCmd IngestCommand `command:"ingest" description:"ingest one or more editions"`
	CurateCmd CurateCommand `command:"curate" description:"run the LLM editor pass over a stored edition"`

	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

// ServerCommand runs the HTTP API
type ServerCommand struct {
	Listen string `short:"l" long:"listen" env:"LISTEN" description:"listen address, overrides config"`
}

// IngestCommand ingests editions
type IngestCommand struct {
	Date        string   `long:"date" description:"local edition date (YYYY-MM-DD), default today"`
	Days        int      `long:"days" default:"1" description:"number of editions ending at --date"`
	Dates       []string `long:"dates" description:"explicit local edition dates, overrides --date/--days"`
	Timezone    string   `long:"tz" description:"editions timezone, overrides config"`
	DryRun      bool     `long:"dry-run" description:"normalize but do not write"`
	PrintWindow bool     `long:"print-window" description:"print the UTC windows and exit"`
	Curate      bool     `long:"curate" description:"run the LLM editor pass after ingestion"`
}

// CurateCommand runs the LLM editor pass on its own
type CurateCommand struct {
	Date     string `long:"date" description:"local edition date (YYYY-MM-DD), default today"`
	Timezone string `long:"tz" description:"editions timezone, overrides config"`
	DryRun   bool   `long:"dry-run" description:"curate but do not write"`
}

var opts Opts

var revision = "unknown"

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.CommandHandler = func(command flags.Commander, args []string) error {
		setupLog(opts.Debug)
		log.Printf("[INFO] aidaily version %s", revision)
		return command.Execute(args)
	}

	if _, err := parser.Parse(); err != nil {
		if opts.Version {
			fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
			os.Exit(0)
		}
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// Execute runs the API server until interrupted
func (cmd *ServerCommand) Execute(_ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Listen != "" {
		cfg.Server.Listen = cmd.Listen
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := repository.New(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] storage close failed: %v", err)
		}
	}()

	srv := server.New(serverConfig{cfg}, store, cfg.Editions.Timezone, revision, opts.Debug)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	log.Print("[INFO] shutdown complete")
	return nil
}

// Execute ingests the requested edition windows
func (cmd *IngestCommand) Execute(_ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tz := cfg.Editions.Timezone
	if cmd.Timezone != "" {
		tz = cmd.Timezone
	}

	dates, err := cmd.editionDates(tz)
	if err != nil {
		return err
	}

	windows := make([]edition.Window, 0, len(dates))
	for _, date := range dates {
		w, werr := edition.WindowFor(date, tz)
		if werr != nil {
			return werr
		}
		windows = append(windows, w)
	}

	if cmd.PrintWindow {
		for _, w := range windows {
			fmt.Println(w.String())
		}
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := repository.New(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] storage close failed: %v", err)
		}
	}()

	p := pipeline.New(buildAdapters(cfg), buildEnricher(cfg),
		normalize.New(classify.Keyword{}, summarize.Heuristic{}), store, cmd.DryRun)

	for _, w := range windows {
		res, rerr := p.Run(ctx, w)
		if rerr != nil {
			return rerr
		}
		log.Printf("[INFO] edition %s done: fetched=%d deduped=%d written=%d warnings=%d",
			w.EditionDateLocal, res.Fetched, res.Deduped, res.Written, len(res.Warnings))
	}

	if cmd.Curate {
		if !cfg.LLM.Enabled {
			log.Print("[WARN] --curate requested but llm is disabled in config, skipping")
			return nil
		}
		curator := llm.NewCurator(cfg.LLM)
		for _, w := range windows {
			if err := curateEdition(ctx, curator, store, w.EditionDateLocal, tz, cmd.DryRun); err != nil {
				return err
			}
		}
	}
	return nil
}

// editionDates resolves the --dates/--date/--days flags into local dates
func (cmd *IngestCommand) editionDates(tz string) ([]string, error) {
	if len(cmd.Dates) > 0 {
		return cmd.Dates, nil
	}

	base := cmd.Date
	if base == "" {
		today, err := edition.Today(tz)
		if err != nil {
			return nil, err
		}
		base = today
	}

	days := cmd.Days
	if days < 1 {
		days = 1
	}

	baseDate, err := time.Parse(edition.DateFormat, base)
	if err != nil {
		return nil, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD: %w", base, err)
	}

	dates := make([]string, 0, days)
	for i := days - 1; i >= 0; i-- {
		dates = append(dates, baseDate.AddDate(0, 0, -i).Format(edition.DateFormat))
	}
	return dates, nil
}

// Execute runs the editor pass without ingesting
func (cmd *CurateCommand) Execute(_ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.LLM.Enabled {
		return fmt.Errorf("llm is disabled in config")
	}

	tz := cfg.Editions.Timezone
	if cmd.Timezone != "" {
		tz = cmd.Timezone
	}
	date := cmd.Date
	if date == "" {
		if date, err = edition.Today(tz); err != nil {
			return err
		}
	}
	if _, err := time.Parse(edition.DateFormat, date); err != nil {
		return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD: %w", date, err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := repository.New(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] storage close failed: %v", err)
		}
	}()

	return curateEdition(ctx, llm.NewCurator(cfg.LLM), store, date, tz, cmd.DryRun)
}

// curateEdition loads an edition, runs the editor pass and writes back the
// curated fields
func curateEdition(ctx context.Context, curator *llm.Curator, store *repository.Store, date, tz string, dryRun bool) error {
	items, err := store.ListEdition(ctx, date, tz, repository.ListOptions{})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		log.Printf("[WARN] nothing to curate for edition %s (%s)", date, tz)
		return nil
	}

	updated, err := curator.Curate(ctx, items)
	if err != nil {
		return fmt.Errorf("curate edition %s: %w", date, err)
	}

	if dryRun {
		log.Printf("[INFO] dry run: would update %d curated items for %s", len(updated), date)
		return nil
	}
	for _, item := range updated {
		if err := store.UpdateCuration(ctx, item); err != nil {
			return err
		}
	}
	log.Printf("[INFO] curated edition %s: updated %d items", date, len(updated))
	return nil
}

// buildAdapters assembles the configured sources in fetch order: arXiv
// papers first, then the news feeds
func buildAdapters(cfg *config.Config) []source.Adapter {
	fetcher := fetch.New(fetch.Config{
		Timeout:    cfg.HTTP.Timeout,
		UserAgent:  cfg.HTTP.UserAgent,
		MaxRetries: cfg.HTTP.MaxRetries,
	})

	var adapters []source.Adapter
	if cfg.Sources.Arxiv.Enabled {
		adapters = append(adapters, source.NewArxiv(fetcher, source.ArxivConfig{
			BaseURL:    cfg.Sources.Arxiv.BaseURL,
			Categories: cfg.Sources.Arxiv.Categories,
			MaxResults: cfg.Sources.Arxiv.MaxResults,
		}))
	}
	for _, feed := range cfg.Sources.Feeds {
		adapters = append(adapters, source.NewFeed(fetcher, source.FeedConfig{
			Name:        feed.Name,
			URL:         feed.URL,
			MaxItems:    feed.MaxItems,
			Reliability: feed.Reliability,
		}))
	}
	return adapters
}

func buildEnricher(cfg *config.Config) *enrich.Enricher {
	extractor := content.NewExtractor(cfg.Enrichment.Timeout, cfg.HTTP.UserAgent)
	return enrich.New(extractor, enrich.Config{
		Enabled:       cfg.Enrichment.Enabled,
		MaxToProcess:  cfg.Enrichment.MaxToProcess,
		MaxConcurrent: cfg.Enrichment.MaxConcurrent,
	})
}

// loadConfig reads the config file, falling back to built-in defaults when
// the default path does not exist
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(opts.Config); os.IsNotExist(err) && opts.Config == "config.yml" {
		log.Print("[WARN] no config file found, using defaults")
		return config.Default(), nil
	}
	return config.Load(opts.Config)
}

// serverConfig adapts the loaded config to the server's ConfigProvider
type serverConfig struct {
	cfg *config.Config
}

func (s serverConfig) GetServerConfig() (string, time.Duration) {
	return s.cfg.Server.Listen, s.cfg.Server.Timeout
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigChan:
			log.Print("[INFO] termination signal received")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if !opts.NoColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}

	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
