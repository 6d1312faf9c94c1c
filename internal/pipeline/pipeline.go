package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/forPelevin/reelcut/internal/config"
	"github.com/forPelevin/reelcut/internal/domain/inventory"
	"github.com/forPelevin/reelcut/internal/history"
	"github.com/forPelevin/reelcut/internal/logging"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/reelcut/internal/ports/adapters/wavfile"
	"github.com/forPelevin/reelcut/internal/ports/adapters/youtube"
	"github.com/forPelevin/reelcut/internal/types"
	"github.com/forPelevin/reelcut/internal/usecase"
)

// ErrOutputLocked means another build holds the output path.
var ErrOutputLocked = errors.New("output is locked by another build")

type Config struct {
	InputDir string
	// Output is the final MP4. If empty, a unique name under OutDir is derived
	// from the input directory.
	Output string
	OutDir string
	Music  string

	MaxDuration  float64
	Policy       types.Policy
	Target       types.Target
	Export       types.ExportSettings
	OriginalGain float64
	MusicGain    float64

	// CacheDir is the base directory for run workspaces.
	// If empty, defaults to ".cache".
	CacheDir string
	// HistoryDB is the sqlite ledger path. Empty disables history.
	HistoryDB string

	FFmpegPath  string
	FFprobePath string

	Logger   *slog.Logger
	Progress ports.Progress

	// Upload publishes the finished file when set.
	Upload *UploadConfig
}

// UploadConfig carries publishing metadata and connection settings.
type UploadConfig struct {
	AccessToken  string
	BaseURL      string
	AllowedHosts []string
	ChunkSize    int64

	Title       string
	Description string
	Tags        []string
	Privacy     types.Privacy

	// Uploader overrides the YouTube adapter.
	Uploader ports.Uploader
}

func (c Config) Validate() error {
	if c.InputDir == "" {
		return errors.New("input directory is empty")
	}
	if st, err := os.Stat(c.InputDir); err != nil {
		return fmt.Errorf("stat input: %w", err)
	} else if !st.IsDir() {
		return fmt.Errorf("input %s is not a directory", c.InputDir)
	}
	if c.MaxDuration <= 0 {
		return fmt.Errorf("max duration must be > 0")
	}
	if err := config.ValidateTarget(c.Target.Width, c.Target.Height); err != nil {
		return err
	}
	if c.Music != "" {
		if _, err := os.Stat(c.Music); err != nil {
			return fmt.Errorf("stat music: %w", err)
		}
		if !inventory.IsMusic(c.Music) {
			return fmt.Errorf("music %s: unsupported format (want one of %s)", c.Music, strings.Join(inventory.MusicExts, ", "))
		}
	}
	if c.Export.Bitrate != "" {
		if err := config.ValidateBitrate(c.Export.Bitrate); err != nil {
			return err
		}
	}
	if c.Upload != nil {
		return c.Upload.Validate()
	}
	return nil
}

func (u UploadConfig) Validate() error {
	if u.Uploader != nil {
		return nil
	}
	if strings.TrimSpace(u.AccessToken) == "" {
		return errors.New("upload requires an access token (set YOUTUBE_ACCESS_TOKEN or upload.access_token)")
	}
	if strings.TrimSpace(u.Title) == "" {
		return errors.New("upload title is empty")
	}
	return youtube.ValidateBaseURL(u.BaseURL, u.AllowedHosts)
}

type Report struct {
	RunID        string
	Output       string
	ManifestPath string
	Result       usecase.Result
	VideoID      string
	URL          string
}

// Run builds one short, writes its manifest next to it, records it in the
// history ledger and optionally uploads it. An upload failure keeps the file.
func Run(ctx context.Context, cfg Config) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	runID := uuid.NewString()
	logger := logging.WithRunID(cfg.Logger, runID)

	output := cfg.Output
	if output == "" {
		outDir := cfg.OutDir
		if outDir == "" {
			outDir = "out"
		}
		output = buildOutputPath(outDir, cfg.InputDir, time.Now().UTC())
	}
	output, err := filepath.Abs(output)
	if err != nil {
		return Report{}, fmt.Errorf("resolve output: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return Report{}, fmt.Errorf("create output dir: %w", err)
	}

	unlock, err := lockOutput(output)
	if err != nil {
		return Report{}, err
	}
	defer unlock()

	// adapters
	v := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)
	uc := usecase.New(usecase.Deps{
		Video:  v,
		Audio:  musicProber{wav: wavfile.New(), fallback: v},
		Logger: logger,
	})

	workDir, err := workspaceDir(cfg.CacheDir, runID)
	if err != nil {
		return Report{}, err
	}
	logger.Info("starting build", "input", cfg.InputDir, "output", output, "workspace", workDir)

	res, err := uc.Run(ctx, usecase.Input{
		InputDir:     cfg.InputDir,
		Output:       output,
		Music:        cfg.Music,
		Budget:       cfg.MaxDuration,
		Policy:       cfg.Policy,
		Target:       cfg.Target,
		Export:       exportSettings(cfg.Export),
		OriginalGain: cfg.OriginalGain,
		MusicGain:    cfg.MusicGain,
		WorkDir:      workDir,
		RunID:        runID,
		Progress:     cfg.Progress,
	})
	rep := Report{RunID: runID, Output: output, Result: res}
	if err != nil {
		return rep, err
	}

	rep.ManifestPath = manifestPath(output)
	if err := writeManifest(rep.ManifestPath, res.Manifest); err != nil {
		return rep, err
	}
	logger.Info("manifest written", "clips", len(res.Manifest.Clips), "path", rep.ManifestPath)

	store := openHistory(cfg.HistoryDB, logger)
	if store != nil {
		defer store.Close()
		err := store.RecordBuild(ctx, history.Build{
			ID:           runID,
			InputDir:     cfg.InputDir,
			OutputPath:   output,
			DurationSec:  res.Composition.Duration,
			ClipCount:    len(res.Plan.Entries),
			Policy:       string(res.Plan.Policy),
			MusicPath:    cfg.Music,
			SkippedCount: len(res.Skipped),
		})
		if err != nil {
			logger.Warn("history not recorded", "error", err)
		}
	}

	if cfg.Upload == nil {
		return rep, nil
	}
	pub, err := publish(ctx, output, runID, *cfg.Upload, store, logger)
	if err != nil {
		return rep, err
	}
	rep.VideoID, rep.URL = pub.VideoID, pub.URL

	res.Manifest.Upload = &types.ManifestUpload{VideoID: pub.VideoID, URL: pub.URL}
	rep.Result.Manifest = res.Manifest
	if err := writeManifest(rep.ManifestPath, res.Manifest); err != nil {
		return rep, err
	}
	return rep, nil
}

type PlanConfig struct {
	InputDir    string
	MaxDuration float64
	Policy      types.Policy
	FFprobePath string
	Logger      *slog.Logger
}

// Plan probes the input directory and returns the selection without
// writing any media.
func Plan(ctx context.Context, cfg PlanConfig) (usecase.PlanResult, error) {
	if cfg.MaxDuration <= 0 {
		return usecase.PlanResult{}, fmt.Errorf("max duration must be > 0")
	}
	uc := usecase.New(usecase.Deps{
		Video:  ffmpeg.New("", cfg.FFprobePath),
		Logger: cfg.Logger,
	})
	return uc.Plan(ctx, usecase.PlanInput{InputDir: cfg.InputDir, Budget: cfg.MaxDuration, Policy: cfg.Policy})
}

type PublishConfig struct {
	File      string
	HistoryDB string
	Logger    *slog.Logger
	Upload    UploadConfig
}

type PublishReport struct {
	VideoID string
	URL     string
}

// Publish uploads an existing build. When the file has a recorded build,
// the upload is linked to it.
func Publish(ctx context.Context, pc PublishConfig) (PublishReport, error) {
	if err := pc.Upload.Validate(); err != nil {
		return PublishReport{}, err
	}
	file, err := filepath.Abs(pc.File)
	if err != nil {
		return PublishReport{}, fmt.Errorf("resolve file: %w", err)
	}
	if st, err := os.Stat(file); err != nil {
		return PublishReport{}, fmt.Errorf("stat file: %w", err)
	} else if st.IsDir() {
		return PublishReport{}, fmt.Errorf("%s is a directory", file)
	}

	logger := logging.OrDiscard(pc.Logger)
	store := openHistory(pc.HistoryDB, logger)
	var buildID string
	if store != nil {
		defer store.Close()
		if b, ok, err := store.LatestBuildFor(ctx, file); err != nil {
			logger.Warn("history lookup failed", "error", err)
		} else if ok {
			buildID = b.ID
		}
	}
	return publish(ctx, file, buildID, pc.Upload, store, logger)
}

func publish(ctx context.Context, file, buildID string, uc UploadConfig, store *history.Store, logger *slog.Logger) (PublishReport, error) {
	up := uc.Uploader
	if up == nil {
		up = youtube.New(uc.AccessToken, uc.BaseURL, uc.ChunkSize, logging.WithComponent(logger, "upload"))
	}
	privacy := uc.Privacy
	if privacy == "" {
		privacy = types.PrivacyPrivate
	}
	logger.Info("uploading", "file", file, "title", uc.Title, "privacy", string(privacy))

	videoID, err := up.Upload(ctx, types.UploadRequest{
		FilePath:    file,
		Title:       uc.Title,
		Description: uc.Description,
		Tags:        uc.Tags,
		Privacy:     privacy,
	})
	if err != nil {
		return PublishReport{}, fmt.Errorf("upload %s: %w", file, err)
	}
	rep := PublishReport{VideoID: videoID, URL: youtube.WatchURL(videoID)}
	logger.Info("upload complete", "video_id", videoID, "url", rep.URL)

	if store != nil {
		err := store.RecordUpload(ctx, history.Upload{
			BuildID:    buildID,
			OutputPath: file,
			VideoID:    videoID,
			Title:      uc.Title,
			Privacy:    string(privacy),
		})
		if err != nil {
			logger.Warn("upload not recorded in history", "error", err)
		}
	}
	return rep, nil
}

// OpenHistory opens the ledger for read-only commands.
func OpenHistory(path string, logger *slog.Logger) (*history.Store, error) {
	if path == "" {
		return nil, errors.New("history database path is empty")
	}
	return history.Open(path, logger)
}

func openHistory(path string, logger *slog.Logger) *history.Store {
	if path == "" {
		return nil
	}
	s, err := history.Open(path, logger)
	if err != nil {
		logger.Warn("history unavailable", "path", path, "error", err)
		return nil
	}
	return s
}

func lockOutput(output string) (func(), error) {
	lockPath := output + ".lock"
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, output)
	}
	return func() {
		_ = lock.Unlock()
		_ = os.Remove(lockPath)
	}, nil
}

func exportSettings(e types.ExportSettings) types.ExportSettings {
	def := types.DefaultExportSettings()
	if e.FPS <= 0 {
		e.FPS = def.FPS
	}
	if e.VideoCodec == "" {
		e.VideoCodec = def.VideoCodec
	}
	if e.AudioCodec == "" {
		e.AudioCodec = def.AudioCodec
	}
	if e.Bitrate == "" {
		e.Bitrate = def.Bitrate
	}
	if e.Preset == "" {
		e.Preset = def.Preset
	}
	if e.Threads < 0 {
		e.Threads = def.Threads
	}
	return e
}

// workspaceDir is the absolute per-run directory under cacheDir (".cache"
// when empty).
func workspaceDir(cacheDir, runID string) (string, error) {
	if cacheDir == "" {
		cacheDir = ".cache"
	}
	dir, err := filepath.Abs(filepath.Join(cacheDir, "runs", runID))
	if err != nil {
		return "", fmt.Errorf("resolve workspace: %w", err)
	}
	return dir, nil
}

func manifestPath(output string) string {
	return output + ".json"
}

func writeManifest(path string, m types.Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func buildOutputPath(outRoot, inputDir string, now time.Time) string {
	name := normalizePathSegment(filepath.Base(filepath.Clean(inputDir)))
	if name == "" {
		name = "short"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", inputDir, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s.mp4", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// musicProber reads WAV headers natively and hands everything else, or
// WAV variants the decoder rejects, to ffprobe.
type musicProber struct {
	wav      ports.AudioProber
	fallback ports.AudioProber
}

func (m musicProber) ProbeAudio(ctx context.Context, path string) (float64, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		if d, err := m.wav.ProbeAudio(ctx, path); err == nil && d > 0 {
			return d, nil
		}
	}
	return m.fallback.ProbeAudio(ctx, path)
}

// ensure adapters implement ports
var _ ports.VideoTool = (*ffmpeg.Adapter)(nil)
var _ ports.AudioProber = (*ffmpeg.Adapter)(nil)
var _ ports.AudioProber = (*wavfile.Adapter)(nil)
var _ ports.Uploader = (*youtube.Adapter)(nil)
