package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zjrosen/metaagentd/internal/log"

	"github.com/spf13/cobra"
)

var logsTailCmd = &cobra.Command{
	Use:   "logs:tail",
	Short: "Stream debug log lines as they are written",
	Long:  `Streams the debug log lines that this process's own logger emits, as they are written. Requires --debug (or METAAGENTD_DEBUG) on this command; log lines written by other metaagentd processes, such as a separate "run", are not read.`,
	RunE:  runLogsTail,
}

func init() {
	rootCmd.AddCommand(logsTailCmd)
}

func runLogsTail(cmd *cobra.Command, args []string) error {
	cleanup, err := enableDebugLogging("logs-tail")
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	listener := log.NewListener(ctx)
	if listener == nil {
		return fmt.Errorf("logging is not enabled; pass --debug")
	}

	for {
		evt, ok := listener.Next()
		if !ok {
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), evt.Payload)
	}
}
