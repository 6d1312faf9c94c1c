package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/forPelevin/reelcut/internal/config"
	"github.com/forPelevin/reelcut/internal/pipeline"
	"github.com/forPelevin/reelcut/internal/types"
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <input-dir>",
		Short: "Assemble a vertical short from a directory of clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0])
		},
	}
	f := cmd.Flags()
	f.String("out", "", "Output MP4 path (default: <out-dir>/<input>-<timestamp>.mp4)")
	f.String("out-dir", "out", "Directory for generated outputs when --out is not set")
	f.String("music", "", "Background music (.mp3, .m4a, .aac, .wav)")
	f.Float64("max", 0, "Duration budget in seconds (default from config)")
	f.String("policy", "", "Selection policy: longest-first or shortest-first")
	f.String("bitrate", "", "Video bitrate, e.g. 2500k")
	f.Bool("upload", false, "Upload the result to YouTube")
	addUploadFlags(cmd)
	return cmd
}

func run(cmd *cobra.Command, input string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	pc, err := buildConfig(cmd, cfg, input)
	if err != nil {
		return err
	}
	pc.Logger = logger

	bar := newEncodeProgress(cmd.ErrOrStderr())
	pc.Progress = bar.Update

	if err := pc.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	rep, err := pipeline.Run(cmd.Context(), pc)
	bar.Finish()
	if err != nil {
		if rep.ManifestPath != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "built %s (upload failed, file kept)\n", rep.Output)
		}
		return err
	}
	printBuildReport(cmd.OutOrStdout(), rep)
	return nil
}

// buildConfig merges the loaded configuration with explicitly set flags.
func buildConfig(cmd *cobra.Command, cfg *config.Config, input string) (pipeline.Config, error) {
	absIn, err := filepath.Abs(input)
	if err != nil {
		return pipeline.Config{}, err
	}
	policy, err := types.ParsePolicy(stringFlag(cmd, "policy", cfg.Build.Policy))
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("config: %w", err)
	}

	export := types.DefaultExportSettings()
	export.Bitrate = stringFlag(cmd, "bitrate", cfg.Export.Bitrate)
	export.Preset = cfg.Export.Preset
	export.Threads = cfg.Export.Threads

	pc := pipeline.Config{
		InputDir:     absIn,
		OutDir:       stringFlag(cmd, "out-dir", "out"),
		MaxDuration:  floatFlag(cmd, "max", cfg.Build.MaxDuration),
		Policy:       policy,
		Target:       types.Target{Width: cfg.Build.TargetWidth, Height: cfg.Build.TargetHeight},
		Export:       export,
		OriginalGain: cfg.Build.OriginalGain,
		MusicGain:    cfg.Build.MusicGain,
		CacheDir:     cfg.Paths.CacheDir,
		HistoryDB:    cfg.Paths.HistoryDB,
		FFmpegPath:   cfg.Paths.FFmpeg,
		FFprobePath:  cfg.Paths.FFprobe,
	}
	if out := stringFlag(cmd, "out", ""); out != "" {
		if pc.Output, err = config.ExpandPath(out); err != nil {
			return pipeline.Config{}, err
		}
	}
	if music := stringFlag(cmd, "music", ""); music != "" {
		if pc.Music, err = config.ExpandPath(music); err != nil {
			return pipeline.Config{}, err
		}
	}
	if up, _ := cmd.Flags().GetBool("upload"); up {
		uc, err := uploadConfig(cmd, cfg)
		if err != nil {
			return pipeline.Config{}, err
		}
		pc.Upload = &uc
	}
	return pc, nil
}

func printBuildReport(w io.Writer, rep pipeline.Report) {
	plan := rep.Result.Plan
	rows := make([][]string, 0, len(plan.Entries))
	for i, e := range plan.Entries {
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			filepath.Base(e.Clip.Path),
			formatSeconds(e.Clip.Duration),
			formatSeconds(e.Allotted),
		})
	}
	fmt.Fprint(w, renderTable(
		[]string{"#", "Clip", "Source", "Used"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
	))
	fmt.Fprintf(w, "\nshort:    %s (%s, %s)\n", rep.Output, formatSeconds(rep.Result.Composition.Duration), rep.Result.Composition.Mix.Mode)
	fmt.Fprintf(w, "manifest: %s\n", rep.ManifestPath)
	printSkipped(w, rep.Result.Skipped)
	if rep.URL != "" {
		fmt.Fprintf(w, "uploaded: %s\n", rep.URL)
	}
}

func printSkipped(w io.Writer, skipped []types.Skipped) {
	for _, s := range skipped {
		fmt.Fprintf(w, "skipped:  %s (%s)\n", filepath.Base(s.Path), s.Reason)
	}
}

func formatSeconds(sec float64) string {
	return fmt.Sprintf("%.1fs", sec)
}
