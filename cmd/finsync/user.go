package main

import (
	"fmt"
	"time"

	"finsync/internal/util"
	"finsync/internal/web"

	"github.com/spf13/cobra"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the local user directory",
	}

	var email string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a user so imports can be stored for them",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := util.SenderAddress(email)
			if err != nil {
				return fmt.Errorf("invalid email %q", email)
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			acct, err := a.db.EnsureUser(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s -> account %d\n", acct.UserID, acct.ID)
			return nil
		},
	}
	add.Flags().StringVar(&email, "email", "", "user email")
	_ = add.MarkFlagRequired("email")
	cmd.AddCommand(add)
	return cmd
}

func newTokenCmd() *cobra.Command {
	var userID string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for calling the API as a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("FINSYNC_AUTH_JWT_SECRET is not set")
			}
			tok, err := web.IssueToken([]byte(a.cfg.Auth.JWTSecret), userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (email)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
