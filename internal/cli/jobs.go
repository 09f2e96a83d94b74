package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/suqaba/suqaba-cli/internal/dashboard"
	"github.com/suqaba/suqaba-cli/internal/jobs"
	"github.com/suqaba/suqaba-cli/internal/models"
	"github.com/suqaba/suqaba-cli/internal/progress"
	"github.com/suqaba/suqaba-cli/internal/results"
	"github.com/suqaba/suqaba-cli/internal/session"
)

func newJobsCmd() *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"job", "simulations"},
		Short:   "List and manage simulations",
		Long: `Commands for working with submitted simulations.

Commands:
  list      - List recent simulations
  get       - Show one simulation
  start     - Start a draft simulation
  stop      - Cancel a queued or running simulation
  watch     - Follow a simulation until it finishes
  download  - Download the results of a completed simulation
  delete    - Delete a simulation`,
	}

	jobsCmd.AddCommand(newJobsListCmd())
	jobsCmd.AddCommand(newJobsGetCmd())
	jobsCmd.AddCommand(newJobsStartCmd())
	jobsCmd.AddCommand(newJobsStopCmd())
	jobsCmd.AddCommand(newJobsWatchCmd())
	jobsCmd.AddCommand(newJobsDownloadCmd())
	jobsCmd.AddCommand(newJobsDeleteCmd())

	return jobsCmd
}

// withJob restores the session and loads the job named by the first argument.
func withJob(cmd *cobra.Command, id string, fn func(ctx context.Context, a *app, sess *session.Session, c *jobs.Controller) error) error {
	return runWithApp(cmd, func(ctx context.Context, a *app) error {
		sess, err := a.requireSession(ctx)
		if err != nil {
			return err
		}
		c, err := jobs.Load(ctx, a.client, sess, id, a.logger, jobs.WithLogger(a.logger), jobs.WithEventBus(a.bus))
		if err != nil {
			return err
		}
		return fn(ctx, a, sess, c)
	})
}

func newJobsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent simulations, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				sess, err := a.requireSession(ctx)
				if err != nil {
					return err
				}
				if limit <= 0 {
					limit = a.cfg.ListLimit
				}
				sims, err := a.client.ListSimulations(ctx, sess, limit)
				if err != nil {
					return err
				}
				printJobTable(cmd.OutOrStdout(), dashboard.Build(sess.JobCounts, sims).Recent)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum number of simulations (default from config)")
	return cmd
}

func newJobsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show details of a simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJob(cmd, args[0], func(ctx context.Context, a *app, sess *session.Session, c *jobs.Controller) error {
				printJob(cmd.OutOrStdout(), c.Machine())
				return nil
			})
		},
	}
}

func newJobsStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <job-id>",
		Short: "Start a draft simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJob(cmd, args[0], func(ctx context.Context, a *app, sess *session.Session, c *jobs.Controller) error {
				if err := c.Start(ctx, sess); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Started %s: %s\n", c.Machine().ID(), c.Machine().Hint().Render())
				return nil
			})
		},
	}
}

func newJobsStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "stop <job-id>",
		Aliases: []string{"cancel"},
		Short:   "Cancel a queued or running simulation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJob(cmd, args[0], func(ctx context.Context, a *app, sess *session.Session, c *jobs.Controller) error {
				if err := c.Stop(ctx, sess); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Stop requested for %s: %s\n", c.Machine().ID(), c.Machine().Hint().Render())
				return nil
			})
		},
	}
}

func newJobsDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <job-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a simulation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJob(cmd, args[0], func(ctx context.Context, a *app, sess *session.Session, c *jobs.Controller) error {
				m := c.Machine()
				if !yes {
					ok, err := newPrompter(cmd).confirm(fmt.Sprintf("Delete %s (%s)?", m.ID(), m.Snapshot().Name))
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
						return nil
					}
				}
				if err := c.Delete(ctx, sess); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", m.ID())
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newJobsWatchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Follow a simulation until it completes, fails or is cancelled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJob(cmd, args[0], func(ctx context.Context, a *app, sess *session.Session, c *jobs.Controller) error {
				if interval <= 0 {
					interval = a.cfg.PollInterval
				}
				return watchJob(ctx, cmd.OutOrStdout(), a, sess, c.Machine(), interval)
			})
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "Poll interval (default from config, minimum 2s)")
	return cmd
}

// watchJob prints each status change until the job is terminal or ctx ends.
func watchJob(ctx context.Context, out io.Writer, a *app, sess *session.Session, m *jobs.Machine, interval time.Duration) error {
	start := now()
	fmt.Fprintf(out, "%s  %s\n", m.ID(), m.Hint().Render())
	if m.Status().Terminal() {
		return nil
	}

	w := jobs.Watch(ctx, a.client, sess, m, jobs.WatchConfig{
		Interval: interval,
		Logger:   a.logger,
		OnUpdate: func(m *jobs.Machine, changed bool) {
			if changed {
				fmt.Fprintf(out, "%s  %s  %s\n", m.ID(), m.Hint().Render(),
					mutedStyle.Render(humanize.RelTime(start, now(), "elapsed", "")))
			}
		},
	})
	defer w.Close()

	select {
	case <-w.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := w.Err(); err != nil {
		return err
	}
	if m.Status() == models.StatusCompleted {
		fmt.Fprintf(out, "Results are ready: suqaba jobs download %s\n", m.ID())
	}
	return nil
}

func newJobsDownloadCmd() *cobra.Command {
	var outDir, extractDir string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "download <job-id>",
		Short: "Download the results archive of a completed simulation",
		Long: `Download the results of a completed simulation as a zip archive.

The file name comes from the server; if a file with that name exists,
a numeric suffix is added. Use --extract to unpack the archive.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJob(cmd, args[0], func(ctx context.Context, a *app, sess *session.Session, c *jobs.Controller) error {
				var reporter progress.Reporter = progress.NewCLIProgress(cmd.ErrOrStderr())
				if quiet {
					reporter = progress.NoOpProgress{}
				}

				res, err := results.Download(ctx, a.client, sess, c.Machine(), results.Options{
					Dir:        outDir,
					ExtractDir: extractDir,
					Progress:   reporter,
					Logger:     a.logger,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "✓ Saved %s (%s)\n", res.Path, humanize.Bytes(uint64(res.Bytes)))
				if extractDir != "" {
					fmt.Fprintf(out, "✓ Extracted %d files to %s\n", res.Extracted, extractDir)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outDir, "outdir", "o", ".", "Directory to save the archive in")
	cmd.Flags().StringVarP(&extractDir, "extract", "x", "", "Also unpack the archive into this directory")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")
	return cmd
}
