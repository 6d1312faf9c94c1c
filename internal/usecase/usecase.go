package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/forPelevin/reelcut/internal/domain/budget"
	"github.com/forPelevin/reelcut/internal/domain/inventory"
	"github.com/forPelevin/reelcut/internal/domain/mix"
	"github.com/forPelevin/reelcut/internal/logging"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

type Deps struct {
	Video  ports.VideoTool
	Audio  ports.AudioProber
	Logger *slog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	d.Logger = logging.OrDiscard(d.Logger)
	return Usecase{d: d}
}

type PlanInput struct {
	InputDir string
	Budget   float64
	Policy   types.Policy
}

type PlanResult struct {
	Plan    types.SelectionPlan
	Skipped []types.Skipped
}

// Plan discovers and probes the input directory and allocates the budget.
// No media is written.
func (u Usecase) Plan(ctx context.Context, in PlanInput) (PlanResult, error) {
	log := logging.WithComponent(u.d.Logger, "inventory")
	if in.Policy == "" {
		in.Policy = types.LongestFirst
	}

	paths, err := inventory.Discover(in.InputDir)
	if err != nil {
		return PlanResult{}, err
	}
	log.Info("discovered candidates", "dir", in.InputDir, "count", len(paths))

	inv, err := inventory.Collect(ctx, u.d.Video, paths, log)
	if err != nil {
		return PlanResult{Skipped: inv.Skipped}, err
	}

	plan := budget.Allocate(inv.Clips, in.Budget, in.Policy)
	if len(plan.Entries) == 0 {
		return PlanResult{Skipped: inv.Skipped}, fmt.Errorf("%w: no clip has a positive duration", types.ErrNoReadableClips)
	}
	logging.WithComponent(u.d.Logger, "budget").Info("allocated budget",
		"policy", string(plan.Policy),
		"budget_sec", plan.Budget,
		"selected", len(plan.Entries),
		"duration_sec", plan.Total(),
	)
	return PlanResult{Plan: plan, Skipped: inv.Skipped}, nil
}

type Input struct {
	InputDir     string
	Output       string
	Music        string
	Budget       float64
	Policy       types.Policy
	Target       types.Target
	Export       types.ExportSettings
	OriginalGain float64
	MusicGain    float64
	// WorkDir holds intermediate segments. It is created on start and
	// removed when Run returns.
	WorkDir  string
	RunID    string
	Progress ports.Progress
}

type Result struct {
	Plan        types.SelectionPlan
	Skipped     []types.Skipped
	Composition types.Composition
	Manifest    types.Manifest
}

// Run builds the short: plan, reframe every selected clip, concatenate,
// then encode with the mixed audio. On any stage failure nothing is left at
// in.Output.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	in = withDefaults(in)
	started := time.Now()

	pr, err := u.Plan(ctx, PlanInput{InputDir: in.InputDir, Budget: in.Budget, Policy: in.Policy})
	if err != nil {
		return Result{Skipped: pr.Skipped}, err
	}
	res := Result{Plan: pr.Plan, Skipped: pr.Skipped}

	var music *types.AudioTrack
	var musicDur float64
	if in.Music != "" {
		music = &types.AudioTrack{Path: in.Music, Gain: in.MusicGain}
		if musicDur, err = u.probeMusic(ctx, in.Music); err != nil {
			return res, &types.StageError{Stage: types.StageCompose, Path: in.Music, Err: err}
		}
	}

	if err := os.MkdirAll(in.WorkDir, 0o755); err != nil {
		return res, fmt.Errorf("create workspace: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(in.WorkDir); err != nil {
			u.d.Logger.Warn("workspace cleanup failed", "dir", in.WorkDir, "error", err)
		}
	}()

	segments, err := u.reframeAll(ctx, pr.Plan, in)
	if err != nil {
		return res, err
	}

	comp, err := u.compose(ctx, segments, in.WorkDir, music, musicDur, in.OriginalGain)
	if err != nil {
		return res, err
	}
	res.Composition = comp

	if err := u.encode(ctx, comp, in); err != nil {
		return res, err
	}

	res.Manifest = buildManifest(in, res)
	u.d.Logger.Info("build finished",
		"output", in.Output,
		"duration_sec", comp.Duration,
		"clips", len(segments),
		"audio", string(comp.Mix.Mode),
		"elapsed", time.Since(started).Round(time.Millisecond).String(),
	)
	return res, nil
}

func withDefaults(in Input) Input {
	if in.Export == (types.ExportSettings{}) {
		in.Export = types.DefaultExportSettings()
	}
	if in.OriginalGain <= 0 {
		in.OriginalGain = mix.DefaultOriginalGain
	}
	if in.MusicGain <= 0 {
		in.MusicGain = mix.DefaultMusicGain
	}
	if in.Policy == "" {
		in.Policy = types.LongestFirst
	}
	return in
}

func (u Usecase) probeMusic(ctx context.Context, path string) (float64, error) {
	if !inventory.IsMusic(path) {
		return 0, fmt.Errorf("unsupported music format %q", filepath.Ext(path))
	}
	if u.d.Audio == nil {
		return 0, errors.New("no audio prober configured")
	}
	d, err := u.d.Audio.ProbeAudio(ctx, path)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("music has no duration")
	}
	return d, nil
}

func (u Usecase) reframeAll(ctx context.Context, plan types.SelectionPlan, in Input) ([]types.Segment, error) {
	log := logging.WithComponent(u.d.Logger, "reframe")
	// Segments must agree on stream layout for a stream-copy concat.
	padSilence := plan.AnyAudio()

	segments := make([]types.Segment, 0, len(plan.Entries))
	for i, e := range plan.Entries {
		job := types.ReframeJob{
			Clip:       e.Clip,
			Allotted:   e.Allotted,
			Target:     in.Target,
			FPS:        in.Export.FPS,
			AddSilence: padSilence && !e.Clip.HasAudio,
			OutPath:    filepath.Join(in.WorkDir, fmt.Sprintf("seg_%03d.mp4", i+1)),
		}
		log.Info("reframing clip", "path", e.Clip.Path, "allotted_sec", e.Allotted, "index", i+1, "total", len(plan.Entries))
		seg, err := u.d.Video.Reframe(ctx, job)
		if err != nil {
			return nil, &types.StageError{Stage: types.StageReframe, Path: e.Clip.Path, Err: err}
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func (u Usecase) compose(ctx context.Context, segments []types.Segment, workDir string, music *types.AudioTrack, musicDur, originalGain float64) (types.Composition, error) {
	log := logging.WithComponent(u.d.Logger, "compose")
	out := filepath.Join(workDir, "composed.mp4")

	if err := u.d.Video.Concat(ctx, segments, out); err != nil {
		return types.Composition{}, &types.StageError{Stage: types.StageCompose, Err: err}
	}

	comp := types.Composition{VideoPath: out}
	for _, s := range segments {
		comp.Duration += s.Duration
		comp.HasAudio = comp.HasAudio || s.HasAudio
	}
	comp.Mix = mix.Plan(comp.Duration, comp.HasAudio, music, musicDur, originalGain)
	log.Info("composed segments", "segments", len(segments), "duration_sec", comp.Duration, "audio", string(comp.Mix.Mode))
	return comp, nil
}

func (u Usecase) encode(ctx context.Context, comp types.Composition, in Input) error {
	log := logging.WithComponent(u.d.Logger, "encode")
	log.Info("encoding", "output", in.Output, "bitrate", in.Export.Bitrate, "duration_sec", comp.Duration)

	job := types.EncodeJob{Composition: comp, OutPath: in.Output, Settings: in.Export}
	if err := u.d.Video.Encode(ctx, job, in.Progress); err != nil {
		if rmErr := os.Remove(in.Output); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warn("remove partial output", "path", in.Output, "error", rmErr)
		}
		return &types.StageError{Stage: types.StageEncode, Path: in.Output, Err: err}
	}
	return nil
}

func buildManifest(in Input, res Result) types.Manifest {
	m := types.Manifest{
		RunID:       in.RunID,
		InputDir:    in.InputDir,
		Output:      in.Output,
		DurationSec: res.Composition.Duration,
		Target:      in.Target.String(),
		Policy:      res.Plan.Policy,
		BudgetSec:   res.Plan.Budget,
		Music:       in.Music,
		AudioMode:   res.Composition.Mix.Mode,
		Skipped:     res.Skipped,
	}
	for _, e := range res.Plan.Entries {
		m.Clips = append(m.Clips, types.ManifestClip{
			File:        filepath.Base(e.Clip.Path),
			SourceSec:   e.Clip.Duration,
			AllottedSec: e.Allotted,
			Width:       e.Clip.Width,
			Height:      e.Clip.Height,
		})
	}
	return m
}
