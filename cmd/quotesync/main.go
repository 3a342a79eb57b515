// Command quotesync keeps a local Postgres/TimescaleDB copy of A-share daily
// bars in step with the upstream market-data API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rickgao/quotesync/internal/version"
)

type rootFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "quotesync",
		Short:         "Sync A-share instrument lists and daily bars into TimescaleDB",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "configs/quotesync.yaml", "path to config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "optional dotenv file loaded before the config")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newMigrateCmd(flags),
		newListCmd(flags),
		newOneCmd(flags),
		newBatchCmd(flags),
		newServeCmd(flags),
	)
	return root
}
