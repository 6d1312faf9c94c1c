package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBuild()
	c.normalizeUpload()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		c.Paths.HistoryDB = defaultHistoryDB
	}
	if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	c.Paths.FFmpeg = strings.TrimSpace(c.Paths.FFmpeg)
	if c.Paths.FFmpeg == "" {
		c.Paths.FFmpeg = "ffmpeg"
	}
	c.Paths.FFprobe = strings.TrimSpace(c.Paths.FFprobe)
	if c.Paths.FFprobe == "" {
		c.Paths.FFprobe = "ffprobe"
	}
	return nil
}

func (c *Config) normalizeBuild() {
	c.Build.Policy = strings.ToLower(strings.TrimSpace(c.Build.Policy))
	if c.Build.Policy == "" {
		c.Build.Policy = defaultPolicy
	}
	c.Export.Bitrate = strings.TrimSpace(c.Export.Bitrate)
	c.Export.Preset = strings.TrimSpace(c.Export.Preset)
	if c.Export.Preset == "" {
		c.Export.Preset = defaultPreset
	}
}

// normalizeUpload applies environment overrides. Secrets set in the
// environment win over the file.
func (c *Config) normalizeUpload() {
	if v := strings.TrimSpace(os.Getenv("YOUTUBE_ACCESS_TOKEN")); v != "" {
		c.Upload.AccessToken = v
	}
	if v := strings.TrimSpace(os.Getenv("YOUTUBE_UPLOAD_BASE_URL")); v != "" {
		c.Upload.BaseURL = v
	}
	if v, ok := os.LookupEnv("YOUTUBE_ALLOWED_HOSTS"); ok && strings.TrimSpace(v) != "" {
		c.Upload.AllowedHosts = strings.Split(v, ",")
	}
	c.Upload.AccessToken = strings.TrimSpace(c.Upload.AccessToken)
	c.Upload.BaseURL = strings.TrimSpace(c.Upload.BaseURL)
	if c.Upload.BaseURL == "" {
		c.Upload.BaseURL = defaultUploadURL
	}
	c.Upload.Privacy = strings.ToLower(strings.TrimSpace(c.Upload.Privacy))
	if c.Upload.Privacy == "" {
		c.Upload.Privacy = defaultPrivacy
	}
	if strings.TrimSpace(c.Upload.DefaultTitle) == "" {
		c.Upload.DefaultTitle = defaultTitle
	}
	c.Upload.DefaultTags = NormalizeTags(c.Upload.DefaultTags)
	c.Upload.AllowedHosts = lo.Compact(lo.Map(c.Upload.AllowedHosts, func(h string, _ int) string {
		return strings.TrimSpace(h)
	}))
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}

// NormalizeTags trims tags, drops empties and duplicates, keeping order.
func NormalizeTags(tags []string) []string {
	out := lo.Uniq(lo.Compact(lo.Map(tags, func(t string, _ int) string {
		return strings.TrimSpace(t)
	})))
	if out == nil {
		return []string{}
	}
	return out
}

// SplitTags parses a comma-separated tag list.
func SplitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	return NormalizeTags(strings.Split(s, ","))
}
