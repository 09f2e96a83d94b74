package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/suqaba/suqaba-cli/internal/config"
	"github.com/suqaba/suqaba-cli/internal/jobs"
	"github.com/suqaba/suqaba-cli/internal/wizard"
)

// submitFlags maps command-line flags to draft fields.
var submitFlags = []struct {
	flag  string
	field wizard.Field
	usage string
}{
	{"name", wizard.FieldName, "Simulation name (required)"},
	{"description", wizard.FieldDescription, "Free-text description"},
	{"analysis-type", wizard.FieldAnalysisType, "Analysis type: static, dynamic or thermal"},
	{"error-threshold", wizard.FieldErrorThreshold, "Target error threshold in percent, greater than 0 and at most 100"},
	{"materials", wizard.FieldMaterials, "Material definition"},
	{"boundary-conditions", wizard.FieldBoundaryConditions, "Boundary condition definition"},
}

func newSubmitCmd() *cobra.Command {
	var (
		resume    bool
		saveDraft bool
		watch     bool
		draftFile string
	)
	values := make(map[wizard.Field]*string, len(submitFlags))

	cmd := &cobra.Command{
		Use:   "submit [geometry-file]",
		Short: "Submit a new simulation",
		Long: `Submit a new simulation in three steps: upload the geometry, configure
the analysis, review and submit.

Supported geometry formats: .step .stp .iges .igs .inp .dat

Use --save-draft to keep the configuration for later without submitting,
and --resume to continue from the saved draft. Flags given together with
--resume override the saved values.

Examples:
  suqaba submit bracket.step --name "Bracket Test" --error-threshold 20
  suqaba submit bracket.step --name "Bracket" --save-draft
  suqaba submit --resume --analysis-type thermal --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				if draftFile == "" {
					draftFile = config.GetDefaultDraftPath()
				}
				store := wizard.NewFileDraftStore(draftFile)

				w := wizard.New(a.client, wizard.Config{
					MaxUploadBytes:    a.cfg.MaxUploadBytes,
					MinErrorThreshold: a.cfg.MinErrorThreshold,
					Store:             store,
					Logger:            a.logger,
					Bus:               a.bus,
					JobOptions:        []jobs.Option{jobs.WithLogger(a.logger), jobs.WithEventBus(a.bus)},
				})

				if resume {
					ok, err := w.ResumeDraft(ctx)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("no saved draft in %s", store.Path())
					}
				}

				// Step 1: geometry
				if len(args) == 1 {
					if err := w.SelectFile(args[0]); err != nil {
						return err
					}
				}

				// Step 2: configuration
				for _, f := range submitFlags {
					if cmd.Flags().Changed(f.flag) {
						if err := w.SetField(f.field, *values[f.field]); err != nil {
							return err
						}
					}
				}

				if saveDraft {
					if err := w.SaveDraft(ctx); err != nil {
						return err
					}
					printReview(out, w.Draft())
					fmt.Fprintf(out, "\n✓ Draft saved to %s\n", store.Path())
					return nil
				}

				if err := w.Advance(); err != nil {
					return err
				}
				if err := w.Advance(); err != nil {
					return err
				}

				// Step 3: review and submit
				printReview(out, w.Draft())
				fmt.Fprintln(out)

				sess, err := a.requireSession(ctx)
				if err != nil {
					return err
				}
				m, err := w.Submit(ctx, sess)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Submitted %s: %s\n", m.ID(), m.Hint().Render())

				if watch {
					return watchJob(ctx, out, a, sess, m, a.cfg.PollInterval)
				}
				fmt.Fprintf(out, "Follow it with: suqaba jobs watch %s\n", m.ID())
				return nil
			})
		},
	}

	for _, f := range submitFlags {
		values[f.field] = cmd.Flags().String(f.flag, "", f.usage)
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "Start from the saved draft")
	cmd.Flags().BoolVar(&saveDraft, "save-draft", false, "Save the draft instead of submitting")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow the simulation after submitting")
	cmd.Flags().StringVar(&draftFile, "draft-file", "", "Draft location (default in the config directory)")

	return cmd
}
