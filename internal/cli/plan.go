package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/forPelevin/reelcut/internal/pipeline"
	"github.com/forPelevin/reelcut/internal/types"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <input-dir>",
		Short: "Show which clips a build would use, without rendering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			absIn, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			policy, err := types.ParsePolicy(stringFlag(cmd, "policy", cfg.Build.Policy))
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			res, err := pipeline.Plan(cmd.Context(), pipeline.PlanConfig{
				InputDir:    absIn,
				MaxDuration: floatFlag(cmd, "max", cfg.Build.MaxDuration),
				Policy:      policy,
				FFprobePath: cfg.Paths.FFprobe,
				Logger:      logger,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			rows := make([][]string, 0, len(res.Plan.Entries))
			for i, e := range res.Plan.Entries {
				rows = append(rows, []string{
					fmt.Sprint(i + 1),
					filepath.Base(e.Clip.Path),
					fmt.Sprintf("%dx%d", e.Clip.Width, e.Clip.Height),
					audioLabel(e.Clip.HasAudio),
					formatSeconds(e.Clip.Duration),
					formatSeconds(e.Allotted),
				})
			}
			fmt.Fprint(w, renderTable(
				[]string{"#", "Clip", "Size", "Audio", "Source", "Used"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			fmt.Fprintf(w, "\n%s of %s budget, %s\n", formatSeconds(res.Plan.Total()), formatSeconds(res.Plan.Budget), res.Plan.Policy)
			printSkipped(w, res.Skipped)
			return nil
		},
	}
	cmd.Flags().Float64("max", 0, "Duration budget in seconds (default from config)")
	cmd.Flags().String("policy", "", "Selection policy: longest-first or shortest-first")
	return cmd
}

func audioLabel(has bool) string {
	if has {
		return "yes"
	}
	return "-"
}
