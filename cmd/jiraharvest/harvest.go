package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jiraharvest/pkg/auth"
	"jiraharvest/pkg/config"
	"jiraharvest/pkg/cursor"
	"jiraharvest/pkg/ingest"
	"jiraharvest/pkg/jira"
	"jiraharvest/pkg/logger"
	"jiraharvest/pkg/ratelimit"
)

var (
	// Harvest command flags
	baseURL        string
	projects       []string
	rateLimit      int
	pageSize       int
	concurrency    int
	maxRunDuration time.Duration
	stateDir       string
	outputDir      string
	accountName    string
)

// harvestCmd runs the ingestion engine over the configured collections
var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest configured projects into JSONL corpora",
	Long: `Harvest every configured project: fetch pages under the shared rate
ceiling, filter them through the per-project dedup index, append new and
updated issues to the project's corpus, and commit the resume cursor after
each durably written page.

Interrupting a run (Ctrl-C) is safe: already-committed cursors remain valid
resume points and the next run continues where this one stopped.`,
	Example: `  # Harvest with projects from the config file
  jiraharvest harvest

  # Harvest two projects from a specific instance at 30 requests/minute
  jiraharvest harvest --projects HADOOP,SPARK --rate-limit 30

  # Bound the run to one hour
  jiraharvest harvest --max-run-duration 1h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHarvest(cmd)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	harvestCmd.Flags().StringVar(&baseURL, "base-url", "", "Jira instance base URL")
	harvestCmd.Flags().StringSliceVar(&projects, "projects", nil, "project keys to harvest (overrides config)")
	harvestCmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "requests per minute ceiling")
	harvestCmd.Flags().IntVar(&pageSize, "page-size", 0, "records per page")
	harvestCmd.Flags().IntVar(&concurrency, "concurrency", 0, "collections harvested in parallel")
	harvestCmd.Flags().DurationVar(&maxRunDuration, "max-run-duration", 0, "abort the run after this duration (0 = unbounded)")
	harvestCmd.Flags().StringVar(&stateDir, "state-dir", "", "directory for cursors and dedup snapshots")
	harvestCmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for corpus output")
	harvestCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored credentials")
}

func runHarvest(cmd *cobra.Command) error {
	flags := map[string]interface{}{}
	if baseURL != "" {
		flags["base-url"] = baseURL
	}
	if len(projects) > 0 {
		flags["projects"] = projects
	}
	if rateLimit > 0 {
		flags["rate-limit"] = rateLimit
	}
	if pageSize > 0 {
		flags["page-size"] = pageSize
	}
	if concurrency > 0 {
		flags["concurrency"] = concurrency
	}
	if maxRunDuration > 0 {
		flags["max-run-duration"] = maxRunDuration
	}
	if stateDir != "" {
		flags["state-dir"] = stateDir
	}
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if accountName != "" {
		flags["account"] = accountName
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Harvest.MaxRunDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Harvest.MaxRunDuration)
		defer cancel()
	}

	client := jira.NewClient(cfg.Jira.BaseURL, cfg.Jira.Timeout, log)
	if err := configureAuth(client, cfg); err != nil {
		return err
	}

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute)
	cursors, err := cursor.NewStore(cfg.Harvest.StateDirectory, log)
	if err != nil {
		return fmt.Errorf("failed to open cursor store: %w", err)
	}

	log.InfoWithFields("harvest starting", map[string]interface{}{
		"base_url":    cfg.Jira.BaseURL,
		"collections": len(cfg.Collections),
		"rate_limit":  cfg.RateLimit.RequestsPerMinute,
		"page_size":   cfg.Harvest.PageSize,
		"concurrency": cfg.Harvest.Concurrency,
	})

	scheduler := ingest.NewScheduler(cfg, client, limiter, cursors, log)
	outcomes := scheduler.Run(ctx)

	failed := 0
	for _, outcome := range outcomes {
		if !outcome.Done() {
			failed++
		}
	}
	log.InfoWithFields("harvest finished", map[string]interface{}{
		"collections": len(outcomes),
		"failed":      failed,
	})
	if failed > 0 {
		return fmt.Errorf("%d of %d collections failed", failed, len(outcomes))
	}
	return nil
}

// configureAuth attaches stored credentials to the client when an account is
// configured; anonymous access otherwise
func configureAuth(client *jira.Client, cfg *config.Config) error {
	if cfg.Jira.Account == "" {
		return nil
	}
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open credential stores: %w", err)
	}
	account, err := manager.Retrieve(cfg.Jira.Account)
	if err != nil {
		return fmt.Errorf("failed to retrieve credentials for %q: %w", cfg.Jira.Account, err)
	}
	if account.Email != "" {
		client.SetBasicAuth(account.Email, account.Token)
	} else {
		client.SetBearerToken(account.Token)
	}
	return nil
}
