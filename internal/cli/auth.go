package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/suqaba/suqaba-cli/internal/session"
)

func newLoginCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to Suqaba",
		Long: `Log in with your email and password.

The access token is saved to the token file (see 'suqaba config show')
unless --no-persist is given. Logging in replaces any previous session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			var err error
			if email == "" {
				if email, err = p.required("Email"); err != nil {
					return err
				}
			}
			password, err := p.password("Password")
			if err != nil {
				return err
			}

			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				sess, err := a.sessions.Login(ctx, email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged in as %s\n", sessionLabel(sess))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email (prompted if omitted)")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a Suqaba account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			var err error
			if name == "" {
				if name, err = p.required("Name"); err != nil {
					return err
				}
			}
			if email == "" {
				if email, err = p.required("Email"); err != nil {
					return err
				}
			}
			password, err := p.password("Password")
			if err != nil {
				return err
			}
			confirm, err := p.password("Confirm password")
			if err != nil {
				return err
			}
			if password != confirm {
				return fmt.Errorf("passwords do not match")
			}

			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				sess, err := a.sessions.Register(ctx, email, password, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Account created, logged in as %s\n", sessionLabel(sess))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email (prompted if omitted)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Your name (prompted if omitted)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the saved token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				a.sessions.Logout()
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
				return nil
			})
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				sess, err := a.requireSession(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "User:   %s\n", sessionLabel(sess))
				fmt.Fprintf(out, "ID:     %s\n", sess.UserID)
				fmt.Fprintf(out, "Server: %s\n", a.client.BaseURL())
				fmt.Fprintf(out, "Jobs:   %d completed, %d processing, %d queued\n",
					sess.JobCounts.Completed, sess.JobCounts.Processing, sess.JobCounts.Queued)
				return nil
			})
		},
	}
}

func sessionLabel(s *session.Session) string {
	if s.DisplayName == "" {
		return s.Email
	}
	return fmt.Sprintf("%s <%s>", s.DisplayName, s.Email)
}
