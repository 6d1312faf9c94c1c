package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/forPelevin/reelcut/internal/ports/adapters/youtube"
	"github.com/forPelevin/reelcut/internal/types"
)

const chunkQuantum = 256 * 1024

var bitrateRE = regexp.MustCompile(`^[1-9][0-9]*[kKmM]?$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBuild(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateBuild() error {
	if c.Build.MaxDuration <= 0 {
		return errors.New("build.max_duration must be positive")
	}
	if _, err := types.ParsePolicy(c.Build.Policy); err != nil {
		return fmt.Errorf("build.policy: %w", err)
	}
	if err := ValidateTarget(c.Build.TargetWidth, c.Build.TargetHeight); err != nil {
		return err
	}
	if c.Build.OriginalGain <= 0 || c.Build.OriginalGain > 4 {
		return errors.New("build.original_gain must be in (0, 4]")
	}
	if c.Build.MusicGain <= 0 || c.Build.MusicGain > 4 {
		return errors.New("build.music_gain must be in (0, 4]")
	}
	return nil
}

// ValidateTarget rejects frame sizes libx264 with yuv420p cannot encode.
func ValidateTarget(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("target %dx%d: dimensions must be positive", w, h)
	}
	if w%2 != 0 || h%2 != 0 {
		return fmt.Errorf("target %dx%d: dimensions must be even", w, h)
	}
	return nil
}

// ValidateBitrate accepts ffmpeg bitrate values like 2500k or 4M.
func ValidateBitrate(s string) error {
	if !bitrateRE.MatchString(s) {
		return fmt.Errorf("invalid bitrate %q (want e.g. 2500k)", s)
	}
	return nil
}

func (c *Config) validateExport() error {
	if err := ValidateBitrate(c.Export.Bitrate); err != nil {
		return fmt.Errorf("export.bitrate: %w", err)
	}
	if c.Export.Threads < 0 {
		return errors.New("export.threads must be >= 0")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if _, err := types.ParsePrivacy(c.Upload.Privacy); err != nil {
		return fmt.Errorf("upload.privacy: %w", err)
	}
	if c.Upload.ChunkSize <= 0 || c.Upload.ChunkSize%chunkQuantum != 0 {
		return fmt.Errorf("upload.chunk_size must be a positive multiple of %d", chunkQuantum)
	}
	if err := youtube.ValidateBaseURL(c.Upload.BaseURL, c.Upload.AllowedHosts); err != nil {
		return fmt.Errorf("upload.base_url: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be auto, console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error (got %q)", c.Logging.Level)
	}
	return nil
}
