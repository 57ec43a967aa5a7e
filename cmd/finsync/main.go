// Command finsync imports bank statements from Gmail into the transaction store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev" // set by the linker

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "finsync",
		Short: "Import bank statement CSVs from Gmail",
		Long: `finsync connects a user's Gmail mailbox, finds bank statement emails by
sender and subject, parses their CSV attachments and stores the transactions
the user confirms. Configuration comes from FINSYNC_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newAuthorizeCmd(),
		newReviewCmd(),
		newUserCmd(),
		newTokenCmd(),
	)
	return root
}
