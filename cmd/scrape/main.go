package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/pricewatch/pricewatch/internal/browser"
	"github.com/pricewatch/pricewatch/internal/config"
	"github.com/pricewatch/pricewatch/internal/database"
	"github.com/pricewatch/pricewatch/internal/queue"
	"github.com/pricewatch/pricewatch/internal/ratelimit"
	"github.com/pricewatch/pricewatch/internal/scraper"
	"github.com/pricewatch/pricewatch/internal/store"
)

// scrape runs a batch of product URLs through the pipeline from the command
// line. URLs come from arguments or a file, one per line.
func main() {
	_ = godotenv.Load()

	var (
		urlFile = flag.String("file", "", "file with one product URL per line")
		save    = flag.Bool("save", false, "record observations in the database")
		pretty  = flag.Bool("pretty", false, "indent JSON output")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("invalid configuration: %v", err)
	}

	urls, err := collectURLs(*urlFile, flag.Args())
	if err != nil {
		fatal("%v", err)
	}
	if len(urls) == 0 {
		fatal("no URLs given; pass them as arguments or via -file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		db     *database.DB
		ledger *database.Ledger
	)
	if *save {
		db, err = database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			fatal("failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.CreateSchema(ctx); err != nil {
			fatal("failed to create schema: %v", err)
		}
		ledger = database.NewLedger(db)
	}

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      cfg.Browser.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
		Latitude:       cfg.Browser.Latitude,
		Longitude:      cfg.Browser.Longitude,
		ProxyServer:    cfg.Browser.ProxyServer,
	})
	if err != nil {
		fatal("failed to initialize browser: %v", err)
	}
	defer b.Close()

	registry := store.DefaultRegistry()
	pool := scraper.NewPool(cfg.Scraper.Workers)
	defer pool.Close()

	limiter := ratelimit.NewAdaptiveRateLimiter(cfg.Scraper.RateLimitMin, cfg.Scraper.RateLimitMax)
	coordinator := scraper.NewCoordinator(registry, scraper.NewBrowserRenderer(b), pool, limiter, scraper.Options{
		JobTimeout:  cfg.Scraper.JobTimeout,
		SettleDelay: cfg.Scraper.SettleDelay,
	}, logger)

	// events are a server concern, the CLI writes the ledger directly
	service := scraper.NewService(coordinator, ledger, db, nil, logger)

	q := queue.NewInMemoryQueue()
	for _, u := range urls {
		q.Push(&queue.Task{
			ID:        uuid.NewString(),
			URL:       u,
			CreatedAt: time.Now(),
		})
	}
	q.Close()

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}

	exitCode := 0
	for {
		task, err := q.Pop(ctx)
		if errors.Is(err, queue.ErrQueueClosed) {
			break
		}
		if err != nil {
			fatal("queue error: %v", err)
		}

		var report *scraper.ScrapeReport
		for {
			report, err = service.ScrapeProduct(ctx, task.URL)
			if err != nil || report.Success || task.Retries >= cfg.Scraper.MaxRetries {
				break
			}
			task.Retries++
			fmt.Fprintf(os.Stderr, "retrying %s (%d/%d): %s\n",
				task.URL, task.Retries, cfg.Scraper.MaxRetries, report.Diagnostic)
		}
		if errors.Is(err, scraper.ErrStoreUnsupported) {
			fmt.Fprintf(os.Stderr, "skipping %s: store not supported (supported: %s)\n",
				task.URL, strings.Join(registry.Labels(), ", "))
			exitCode = 1
			continue
		}
		if err != nil {
			fatal("scrape failed for %s: %v", task.URL, err)
		}

		if !report.Success {
			exitCode = 1
		}
		enc.Encode(report)
	}

	os.Exit(exitCode)
}

func collectURLs(file string, args []string) ([]string, error) {
	urls := append([]string{}, args...)

	if file == "" {
		return urls, nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open URL file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL file: %w", err)
	}

	return urls, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
