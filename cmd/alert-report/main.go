// Package main is the entry point for the monthly external-alert report.
//
// The run is single-shot and sequential: resolve the previous-month
// window, fetch monitors and alerts (cache-aware), aggregate, write the
// CSV, then record the run. Missing credentials are the only fatal
// condition; everything after startup degrades to "log and keep what we
// have" so a flaky network still produces a report.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/mackerelops/alert-report/internal/alertcache"
	"github.com/mackerelops/alert-report/internal/config"
	"github.com/mackerelops/alert-report/internal/fetch"
	"github.com/mackerelops/alert-report/internal/history"
	"github.com/mackerelops/alert-report/internal/logging"
	"github.com/mackerelops/alert-report/internal/mackerel"
	"github.com/mackerelops/alert-report/internal/report"
	"github.com/mackerelops/alert-report/internal/timewindow"
	"github.com/mackerelops/alert-report/internal/upload"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// loadEnvFiles loads .env from standard locations.
func loadEnvFiles() {
	if homeDir, err := os.UserHomeDir(); err == nil {
		configEnv := filepath.Join(homeDir, ".config", "alert-report", ".env")
		if _, err := os.Stat(configEnv); err == nil {
			_ = godotenv.Load(configEnv)
		}
	}

	// Local .env can override.
	_ = godotenv.Load()
}

func run(args []string) int {
	loadEnvFiles()

	fs := flag.NewFlagSet("alert-report", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (optional)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New(logging.Config{Output: "stderr"}).Error().Err(err).Msg("startup failed")
		return 1
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}

	runID := uuid.NewString()
	logger := logging.New(cfg.Logging).With("run_id", runID)
	started := time.Now()

	loc := cfg.Location()
	window := timewindow.PreviousMonth(time.Now().In(loc))
	logger.Info().Str("period", window.String()).Msg("report window resolved")

	ctx := context.Background()
	client := mackerel.New(cfg.BaseURL, cfg.APIKey, logger, mackerel.WithTimeout(cfg.HTTPTimeout.Std()))

	logger.Info().Msg("fetching monitors")
	monitors, err := client.FindMonitors(ctx)
	if err != nil {
		// Non-fatal: rows for unknown monitors carry blank url/service.
		logger.Error().Err(err).Msg("monitor fetch failed, continuing without metadata")
		monitors = nil
	}

	logger.Info().Msg("fetching alerts")
	cache := alertcache.New(cfg.CacheDir, logger)
	fetcher := fetch.New(client, cache, logger, cfg.PageLimit)
	result := fetcher.FetchAlerts(ctx, window)
	if !result.Complete {
		logger.Warn().Int("alerts", len(result.Alerts)).Msg("alert fetch incomplete, reporting partial data")
	}

	rows := report.Aggregate(result.Alerts, monitors, loc)
	logger.Info().Int("total", len(rows)).Msg("aggregated external alerts")

	wrote := false
	if err := report.WriteCSV(cfg.OutputPath, rows); err != nil {
		logger.Error().Err(err).Str("path", cfg.OutputPath).Msg("csv write failed")
	} else {
		wrote = true
		logger.Info().Str("path", cfg.OutputPath).Msg("csv written")
	}

	recordRun(ctx, cfg, logger, history.Run{
		RunID:       runID,
		Window:      window,
		AlertsTotal: len(result.Alerts),
		Pages:       result.Pages,
		Complete:    result.Complete,
		FromCache:   result.FromCache,
		RowsWritten: len(rows),
		Duration:    time.Since(started),
		FinishedAt:  time.Now(),
	})

	if wrote && cfg.Upload.Enabled {
		uploadReport(ctx, cfg, logger, window)
	}

	logger.Info().Dur("elapsed", time.Since(started)).Msg("report complete")
	return 0
}

// recordRun appends the run to the sqlite ledger. Ledger failures never
// fail the run.
func recordRun(ctx context.Context, cfg *config.Config, logger *logging.Logger, run history.Run) {
	if !cfg.History.Enabled {
		return
	}

	ledger, err := history.Open(cfg.History.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("history ledger unavailable")
		return
	}
	defer ledger.Close()

	if err := ledger.Record(ctx, run); err != nil {
		logger.Warn().Err(err).Msg("failed to record run history")
	}
}

// uploadReport ships the CSV to S3. Upload failures never fail the run;
// the local file is the primary output.
func uploadReport(ctx context.Context, cfg *config.Config, logger *logging.Logger, w timewindow.Window) {
	up, err := upload.New(ctx, cfg.Upload.Bucket, cfg.Upload.Prefix, cfg.Upload.Region, logger)
	if err != nil {
		logger.Error().Err(err).Msg("upload setup failed")
		return
	}
	if err := up.UploadReport(ctx, cfg.OutputPath, w); err != nil {
		logger.Error().Err(err).Msg("report upload failed")
	}
}
