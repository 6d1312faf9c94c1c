package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forPelevin/reelcut/internal/config"
	"github.com/forPelevin/reelcut/internal/pipeline"
	"github.com/forPelevin/reelcut/internal/types"
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an existing short to YouTube",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			uc, err := uploadConfig(cmd, cfg)
			if err != nil {
				return err
			}
			file, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			rep, err := pipeline.Publish(cmd.Context(), pipeline.PublishConfig{
				File:      file,
				HistoryDB: cfg.Paths.HistoryDB,
				Logger:    logger,
				Upload:    uc,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded: %s\n", rep.URL)
			return nil
		},
	}
	addUploadFlags(cmd)
	return cmd
}

func addUploadFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("title", "", "Video title (default from config)")
	f.String("description", "", "Video description")
	f.String("tags", "", "Comma-separated tags")
	f.String("privacy", "", "Privacy status: public, unlisted or private")
}

// uploadConfig fills publishing metadata from config defaults, overridden
// by any upload flag set on the command line.
func uploadConfig(cmd *cobra.Command, cfg *config.Config) (pipeline.UploadConfig, error) {
	privacy, err := types.ParsePrivacy(stringFlag(cmd, "privacy", cfg.Upload.Privacy))
	if err != nil {
		return pipeline.UploadConfig{}, fmt.Errorf("config: %w", err)
	}
	tags := cfg.Upload.DefaultTags
	if cmd.Flags().Changed("tags") {
		raw, _ := cmd.Flags().GetString("tags")
		tags = config.SplitTags(raw)
	}
	return pipeline.UploadConfig{
		AccessToken:  cfg.Upload.AccessToken,
		BaseURL:      cfg.Upload.BaseURL,
		AllowedHosts: cfg.Upload.AllowedHosts,
		ChunkSize:    cfg.Upload.ChunkSize,
		Title:        stringFlag(cmd, "title", cfg.Upload.DefaultTitle),
		Description:  stringFlag(cmd, "description", cfg.Upload.DefaultDescription),
		Tags:         tags,
		Privacy:      privacy,
	}, nil
}
