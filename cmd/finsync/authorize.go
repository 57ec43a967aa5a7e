package main

import (
	"fmt"
	"time"

	"finsync/internal/gmail"

	"github.com/spf13/cobra"
)

func newAuthorizeCmd() *cobra.Command {
	var userID string
	var timeout time.Duration
	var revoke, noBrowser bool

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Connect a user's Gmail mailbox from the terminal",
		Long: `Runs the Google consent flow with a loopback redirect on 127.0.0.1.
Open the printed URL, approve read-only access and the credential is stored
for the user. With --revoke the stored credential is deleted instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if revoke {
				if err := a.auth.Revoke(cmd.Context(), userID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Mailbox access for %s removed.\n", userID)
				return nil
			}
			if _, err := a.db.EnsureUser(cmd.Context(), userID); err != nil {
				return err
			}
			err = a.auth.AuthorizeLoopback(cmd.Context(), userID, gmail.LoopbackPrompt{
				Out:         cmd.ErrOrStderr(),
				In:          cmd.InOrStdin(),
				Timeout:     timeout,
				OpenBrowser: !noBrowser,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mailbox connected for %s.\n", userID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (email) to authorize")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "how long to wait for the browser redirect")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "only print the consent URL")
	cmd.Flags().BoolVar(&revoke, "revoke", false, "delete the stored credential instead")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
