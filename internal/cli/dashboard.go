package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/suqaba/suqaba-cli/internal/dashboard"
)

func newDashboardCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"dash"},
		Short:   "Show job counts and recent simulations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.requireSession(ctx); err != nil {
					return err
				}
				if limit <= 0 {
					limit = a.cfg.ListLimit
				}

				summary, err := dashboard.New(a.sessions, a.client).Load(ctx, limit)
				if err != nil {
					return err
				}
				// Refresh may have replaced the session with fresh counters
				printDashboard(cmd.OutOrStdout(), a.sessions.Current(), summary)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Number of recent simulations to show (default from config)")
	return cmd
}
