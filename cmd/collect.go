package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/config"
	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/gateway"
	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/report"
	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/snapshot"
	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/store/sqlite"
	"github.com/mickael-palma-wttj/wttj-metrics-sub001/internal/usecase"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collects GitHub metrics for an organization and outputs them as CSV or JSON",
	Long: `Collects the pull requests and releases of an organization over the lookback window,
reconciles them with the local snapshot and outputs one metric row per line.
Rows can additionally be upserted into a SQLite history database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := applyFlags(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		formatName, _ := cmd.Flags().GetString("format")
		format, err := report.ParseFormat(formatName)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")

		return runCollect(ctx, cmd, cfg, format, out)
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().StringP("org", "o", "", "Target GitHub organization name (defaults to GITHUB_ORG)")
	collectCmd.Flags().IntP("days", "d", 0, "Lookback window in days (defaults to METRICS_LOOKBACK_DAYS or 90)")
	collectCmd.Flags().String("out", "", "Output file (defaults to standard output)")
	collectCmd.Flags().StringP("format", "f", string(report.FormatCSV), "Output format: csv or json")
	collectCmd.Flags().String("db", "", "SQLite history database (defaults to METRICS_DB_PATH)")
	collectCmd.Flags().String("teams", "", "YAML team file (defaults to METRICS_TEAMS_FILE)")
}

// applyFlags overrides the environment configuration with the flags set by the user.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("org") {
		cfg.Org, _ = flags.GetString("org")
	}
	if flags.Changed("days") {
		days, err := flags.GetInt("days")
		if err != nil {
			return err
		}
		cfg.LookbackDays = days
	}
	if flags.Changed("db") {
		cfg.DBPath, _ = flags.GetString("db")
	}
	if flags.Changed("teams") {
		cfg.TeamsFile, _ = flags.GetString("teams")
	}
	return nil
}

func runCollect(ctx context.Context, cmd *cobra.Command, cfg *config.Config, format report.Format, out string) error {
	logger := newLogger(cmd)

	teams, err := config.LoadTeams(cfg.TeamsFile)
	if err != nil {
		return err
	}

	// Inject dependencies and run the main business logic.
	githubGateway, err := gateway.NewGitHubGateway(cfg.GitHubToken, logger)
	if err != nil {
		return fmt.Errorf("failed to create GitHub gateway: %w", err)
	}
	fetcher := usecase.NewPartitionFetcher(githubGateway, logger)
	syncer := usecase.NewSyncer(fetcher, snapshot.NewFileStore(cfg.CacheDir), cfg.LookbackDays, cfg.CacheMaxAge, logger)
	collector := usecase.NewCollector(syncer, githubGateway, teams, logger)

	result, err := collector.Collect(ctx, cfg.Org)
	if err != nil {
		return fmt.Errorf("failed to collect metrics: %w", err)
	}
	logger.Info("fetch progress",
		"run_id", result.RunID, "progress", fetcher.Progress().String(), "requests", githubGateway.Requests())

	if err := writeRows(cmd.OutOrStdout(), out, format, result); err != nil {
		return err
	}

	if cfg.DBPath == "" {
		return nil
	}
	return saveHistory(ctx, cfg, result)
}

// writeRows renders the rows to w, or atomically replaces the file at path when set.
func writeRows(w io.Writer, path string, format report.Format, result usecase.CollectResult) error {
	if path == "" {
		return report.Write(w, format, result.Rows)
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, format, result.Rows); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func saveHistory(ctx context.Context, cfg *config.Config, result usecase.CollectResult) error {
	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	run := sqlite.Run{
		ID:           result.RunID,
		Org:          cfg.Org,
		Mode:         string(result.Mode),
		Date:         result.Date,
		PullRequests: result.PullRequests,
		Releases:     result.Releases,
	}
	if err := sqlite.NewMetricStore(db).Save(ctx, run, result.Rows); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}
