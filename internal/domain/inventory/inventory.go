package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/forPelevin/reelcut/internal/types"
)

var (
	VideoExts = []string{".mp4", ".mov", ".mkv", ".avi", ".webm"}
	MusicExts = []string{".mp3", ".m4a", ".wav", ".aac"}
)

func IsVideo(path string) bool { return hasExt(path, VideoExts) }

func IsMusic(path string) bool { return hasExt(path, MusicExts) }

func hasExt(path string, exts []string) bool {
	return lo.Contains(exts, strings.ToLower(filepath.Ext(path)))
}

// Prober reads duration and display geometry of one media file. Each call
// must release the file before returning.
type Prober interface {
	Probe(ctx context.Context, path string) (types.MediaInfo, error)
}

type Result struct {
	Clips   []types.SourceClip
	Skipped []types.Skipped
}

// Discover lists candidate clips in dir, in directory order. Subdirectories
// are not descended into.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w in %s: %v", types.ErrDiscovery, dir, err)
	}
	files := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		if !e.Type().IsRegular() || !IsVideo(e.Name()) {
			return "", false
		}
		return filepath.Join(dir, e.Name()), true
	})
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", types.ErrDiscovery, dir)
	}
	return files, nil
}

// Collect probes paths one at a time. Unreadable files are skipped and
// reported; the call fails only when nothing could be read.
func Collect(ctx context.Context, p Prober, paths []string, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var res Result
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		info, err := p.Probe(ctx, path)
		if err == nil {
			err = checkInfo(info)
		}
		if err != nil {
			logger.Warn("skipping unreadable clip", "path", path, "error", err)
			res.Skipped = append(res.Skipped, types.Skipped{Path: path, Reason: err.Error()})
			continue
		}
		res.Clips = append(res.Clips, types.SourceClip{
			Path:     path,
			Duration: info.Duration,
			Width:    info.Width,
			Height:   info.Height,
			HasAudio: info.HasAudio,
		})
		logger.Debug("probed clip",
			"path", path,
			"duration_sec", info.Duration,
			"width", info.Width,
			"height", info.Height,
			"audio", info.HasAudio,
		)
	}
	if len(res.Clips) == 0 {
		return res, fmt.Errorf("%w (%d candidates)", types.ErrNoReadableClips, len(paths))
	}
	return res, nil
}

func checkInfo(info types.MediaInfo) error {
	if !info.HasVideo {
		return fmt.Errorf("no video stream")
	}
	if info.Width <= 0 || info.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", info.Width, info.Height)
	}
	if info.Duration < 0 {
		return fmt.Errorf("invalid duration %.3f", info.Duration)
	}
	return nil
}
