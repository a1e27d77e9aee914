// Command server runs the PAT settlement service.
//
//	server serve   --config config.yaml
//	server migrate --config config.yaml
//	server replay  --config config.yaml --target archive
//	server report  --config config.yaml --from 2026-01-01T00:00:00Z
//	server verify  --config config.yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pat-settlement/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "PAT segment settlement service",
	Long:          `Runs the segment marketplace: atomic settlement of purchases, provider earnings, token issuance and vesting, and governance, behind a signed HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (env PAT_* overrides it)")
	rootCmd.AddCommand(serveCmd, migrateCmd, replayCmd, reportCmd, verifyCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	applyFlagOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
