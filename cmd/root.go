package cmd

import (
	"fmt"
	"os"

	"cardstock/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "cardstock",
	Short: "Cardstock Inventory Service",
	Long: `Cardstock tracks trading card inventory in an append-only quantity ledger
and keeps external marketplace listings synchronized with it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Console format and debug level so CLI errors come out readable with
		// ISO8601 timestamps rather than the production JSON encoding.
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}
