package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"pat-settlement/internal/reporting"
	chstore "pat-settlement/internal/storage/clickhouse"
	"pat-settlement/internal/storage/migrations"
)

var (
	reportFrom      string
	reportTo        string
	reportOutputDir string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a settlement report from the analytics archive",
	Long: `Aggregates archived events in the window into a Markdown summary plus
provider and segment CSVs. The window defaults to the last 24 hours.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "window start, RFC3339 (default: --to minus 24h)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "window end, RFC3339 (default: now)")
	reportCmd.Flags().StringVar(&reportOutputDir, "output-dir", "reports", "directory for generated files")
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Analytics.ClickHouseDSN == "" {
		return fmt.Errorf("analytics.clickhouse_dsn is required for reports")
	}
	from, to, err := reportWindow(reportFrom, reportTo, time.Now().UTC())
	if err != nil {
		return err
	}
	logger := cfg.Log.NewLogger(os.Stderr)
	ctx := cmd.Context()

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Analytics.ClickHouseDSN)
	if err != nil {
		return err
	}
	defer conn.Close()

	gen := reporting.NewGenerator(chstore.NewEventArchive(conn), cfg.Genesis.Decimals)
	report, err := gen.Generate(ctx, from.Unix(), to.Unix())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(reportOutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	files := map[string]string{
		"SETTLEMENT_REPORT.md": reporting.RenderMarkdown(report),
		"providers.csv":        reporting.RenderCSV(report.Providers),
		"segments.csv":         reporting.RenderSegmentsCSV(report.Segments),
	}
	for name, content := range files {
		path := filepath.Join(reportOutputDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	logger.Info("report written",
		"component", "report",
		"dir", reportOutputDir,
		"purchases", report.Volume.Purchases,
		"integrity_errors", len(report.DataQuality.IntegrityErrors))
	return nil
}

func reportWindow(fromFlag, toFlag string, now time.Time) (time.Time, time.Time, error) {
	to := now
	if toFlag != "" {
		t, err := time.Parse(time.RFC3339, toFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--to: %w", err)
		}
		to = t
	}
	from := to.Add(-24 * time.Hour)
	if fromFlag != "" {
		t, err := time.Parse(time.RFC3339, fromFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--from: %w", err)
		}
		from = t
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	return from, to, nil
}
