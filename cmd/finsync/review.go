package main

import (
	"fmt"

	"finsync/internal/tui"
	"finsync/internal/util"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newReviewCmd() *cobra.Command {
	var userID, sender, subject string

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Find statements, pick transactions and import them",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := util.SenderAddress(sender)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			appModel := tui.NewAppModel(a.pipeline, userID, addr, util.SubjectPhrase(subject), a.cfg.HTTP.RequestTimeout)
			p := tea.NewProgram(appModel, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			finalModel, err := p.Run()
			if err != nil {
				return fmt.Errorf("review screen: %w", err)
			}
			m, ok := finalModel.(*tui.AppModel)
			if !ok {
				return nil
			}
			if m.Err != nil {
				return m.Err
			}
			if m.Result != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d transactions (%d already imported).\n", m.Result.Inserted, m.Result.Duplicates)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (email) whose mailbox is searched")
	cmd.Flags().StringVar(&sender, "sender", "", "statement sender address")
	cmd.Flags().StringVar(&subject, "subject", "", "statement subject phrase")
	for _, f := range []string{"user", "sender", "subject"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
