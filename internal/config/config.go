package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Build holds assembly defaults: the duration budget, selection policy,
// target frame and mixing gains.
type Build struct {
	MaxDuration  float64 `toml:"max_duration"`
	Policy       string  `toml:"policy"`
	TargetWidth  int     `toml:"target_width"`
	TargetHeight int     `toml:"target_height"`
	OriginalGain float64 `toml:"original_gain"`
	MusicGain    float64 `toml:"music_gain"`
}

// Export holds encoder settings that may be tuned per machine.
type Export struct {
	Bitrate string `toml:"bitrate"`
	Preset  string `toml:"preset"`
	Threads int    `toml:"threads"`
}

type Paths struct {
	CacheDir  string `toml:"cache_dir"`
	HistoryDB string `toml:"history_db"`
	FFmpeg    string `toml:"ffmpeg"`
	FFprobe   string `toml:"ffprobe"`
}

// Upload holds publishing defaults and the YouTube connection settings.
// AccessToken is an OAuth bearer token obtained outside reelcut.
type Upload struct {
	DefaultTitle       string   `toml:"default_title"`
	DefaultDescription string   `toml:"default_description"`
	DefaultTags        []string `toml:"default_tags"`
	Privacy            string   `toml:"privacy"`
	AccessToken        string   `toml:"access_token"`
	BaseURL            string   `toml:"base_url"`
	AllowedHosts       []string `toml:"allowed_hosts"`
	ChunkSize          int64    `toml:"chunk_size"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the full reelcut configuration.
type Config struct {
	Build   Build   `toml:"build"`
	Export  Export  `toml:"export"`
	Paths   Paths   `toml:"paths"`
	Upload  Upload  `toml:"upload"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelcut/config.toml")
}

// SampleConfig returns the commented sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. A missing file
// yields defaults. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelcut.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// RunsDir is where per-run workspaces are created.
func (c *Config) RunsDir() string {
	return filepath.Join(c.Paths.CacheDir, "runs")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for flag values.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
