package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pat-settlement/internal/config"
	"pat-settlement/internal/events"
	"pat-settlement/internal/replay"
	chstore "pat-settlement/internal/storage/clickhouse"
	"pat-settlement/internal/storage/migrations"
	pgstore "pat-settlement/internal/storage/postgres"
)

var (
	replayTarget string
	replayFrom   uint64
	replayTo     uint64
	replayPage   int
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-deliver the committed event log to the archive or the event bus",
	Long: `Reads the PostgreSQL event log in (seq, index) order and publishes each
operation's records to the chosen target. The archive skips records it
already holds, so replaying an overlapping range is harmless.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayTarget, "target", "archive", "archive or nats")
	replayCmd.Flags().Uint64Var(&replayFrom, "from-seq", 0, "first seq to replay")
	replayCmd.Flags().Uint64Var(&replayTo, "to-seq", 0, "last seq to replay (0 = end of log)")
	replayCmd.Flags().IntVar(&replayPage, "page-size", replay.DefaultPageSize, "records read per page")
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != config.DriverPostgres {
		return fmt.Errorf("replay reads the postgres event log; storage.driver is %q", cfg.Storage.Driver)
	}
	logger := cfg.Log.NewLogger(os.Stderr)
	ctx := cmd.Context()

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN, poolOptions(cfg, logger)...)
	if err != nil {
		return err
	}
	defer pool.Close()

	var target replay.Target
	switch replayTarget {
	case "archive":
		if cfg.Analytics.ClickHouseDSN == "" {
			return fmt.Errorf("analytics.clickhouse_dsn is required for the archive target")
		}
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Analytics.ClickHouseDSN)
		if err != nil {
			return err
		}
		defer conn.Close()
		target = events.NewArchiveSink(chstore.NewEventArchive(conn))
	case "nats":
		nc, err := events.DialNATS(cfg.NATS.URL, "pat-settlement-replay")
		if err != nil {
			return err
		}
		defer drainNATS(nc, logger)
		target = events.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix)
	default:
		return fmt.Errorf("unknown target %q: want archive or nats", replayTarget)
	}

	runner := replay.NewRunner(pgstore.NewStateStore(pool), replayPage, logger)
	stats, err := runner.Run(ctx, replay.Range{From: replayFrom, To: replayTo}, target)
	logger.Info("replay finished",
		"component", "replay",
		"target", target.Name(),
		"operations", stats.Operations,
		"records", stats.Records,
		"last_seq", stats.LastSeq)
	return err
}
