package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forPelevin/reelcut/internal/pipeline"
	"github.com/forPelevin/reelcut/internal/ports/adapters/youtube"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent builds and their uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := pipeline.OpenHistory(cfg.Paths.HistoryDB, logger)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			builds, err := store.ListBuilds(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(builds) == 0 {
				fmt.Fprintln(w, "no builds recorded")
				return nil
			}

			rows := make([][]string, 0, len(builds))
			for _, b := range builds {
				video := "-"
				if b.LastVideoID != "" {
					video = youtube.WatchURL(b.LastVideoID)
				}
				rows = append(rows, []string{
					shortID(b.ID),
					b.CreatedAt.Local().Format("2006-01-02 15:04"),
					b.OutputPath,
					formatSeconds(b.DurationSec),
					fmt.Sprint(b.ClipCount),
					b.Policy,
					video,
				})
			}
			fmt.Fprint(w, renderTable(
				[]string{"Run", "Created", "Output", "Length", "Clips", "Policy", "Video"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of builds to show")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
