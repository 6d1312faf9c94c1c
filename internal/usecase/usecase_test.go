package usecase

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

var vertical = types.Target{Width: 1080, Height: 1920}

type fakeVideoTool struct {
	infos map[string]types.MediaInfo

	failReframe string
	failConcat  bool
	failEncode  bool

	reframeJobs []types.ReframeJob
	concatIn    []types.Segment
	encodeJobs  []types.EncodeJob
}

func (f *fakeVideoTool) Probe(_ context.Context, path string) (types.MediaInfo, error) {
	info, ok := f.infos[filepath.Base(path)]
	if !ok {
		return types.MediaInfo{}, errors.New("invalid data found when processing input")
	}
	return info, nil
}

func (f *fakeVideoTool) Reframe(_ context.Context, job types.ReframeJob) (types.Segment, error) {
	f.reframeJobs = append(f.reframeJobs, job)
	if f.failReframe != "" && filepath.Base(job.Clip.Path) == f.failReframe {
		return types.Segment{}, errors.New("ffmpeg reframe: exit status 1")
	}
	if err := os.WriteFile(job.OutPath, []byte("seg"), 0o644); err != nil {
		return types.Segment{}, err
	}
	return types.Segment{
		Path:     job.OutPath,
		Width:    job.Target.Width,
		Height:   job.Target.Height,
		Duration: math.Min(job.Clip.Duration, job.Allotted),
		HasAudio: job.Clip.HasAudio || job.AddSilence,
	}, nil
}

func (f *fakeVideoTool) Concat(_ context.Context, segments []types.Segment, outPath string) error {
	f.concatIn = segments
	if f.failConcat {
		return errors.New("ffmpeg concat: exit status 1")
	}
	return os.WriteFile(outPath, []byte("composed"), 0o644)
}

func (f *fakeVideoTool) Encode(_ context.Context, job types.EncodeJob, progress ports.Progress) error {
	f.encodeJobs = append(f.encodeJobs, job)
	if err := os.WriteFile(job.OutPath, []byte("partial"), 0o644); err != nil {
		return err
	}
	if f.failEncode {
		return errors.New("ffmpeg encode: exit status 1")
	}
	if progress != nil {
		progress(job.Composition.Duration, job.Composition.Duration)
	}
	return nil
}

type fakeAudio struct {
	dur float64
	err error
}

func (f fakeAudio) ProbeAudio(_ context.Context, _ string) (float64, error) {
	return f.dur, f.err
}

func clipInfo(sec float64, audio bool) types.MediaInfo {
	return types.MediaInfo{Duration: sec, Width: 1920, Height: 1080, HasVideo: true, HasAudio: audio}
}

type fixture struct {
	inputDir string
	workDir  string
	output   string
}

func newFixture(t *testing.T, names ...string) fixture {
	t.Helper()
	tmp := t.TempDir()
	fx := fixture{
		inputDir: filepath.Join(tmp, "clips"),
		workDir:  filepath.Join(tmp, "cache", "runs", "r1"),
		output:   filepath.Join(tmp, "short.mp4"),
	}
	if err := os.MkdirAll(fx.inputDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(fx.inputDir, n), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", n, err)
		}
	}
	return fx
}

func (fx fixture) input(policy types.Policy) Input {
	return Input{
		InputDir: fx.inputDir,
		Output:   fx.output,
		Budget:   60,
		Policy:   policy,
		Target:   vertical,
		WorkDir:  fx.workDir,
		RunID:    "r1",
	}
}

func (fx fixture) assertClean(t *testing.T, wantOutput bool) {
	t.Helper()
	if _, err := os.Stat(fx.workDir); !os.IsNotExist(err) {
		t.Fatalf("expected workspace to be removed, stat err=%v", err)
	}
	_, err := os.Stat(fx.output)
	if wantOutput && err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if !wantOutput && !os.IsNotExist(err) {
		t.Fatalf("expected no output file, stat err=%v", err)
	}
}

func TestRun_SingleShortClip(t *testing.T) {
	fx := newFixture(t, "a.mp4")
	video := &fakeVideoTool{infos: map[string]types.MediaInfo{"a.mp4": clipInfo(10, true)}}
	uc := New(Deps{Video: video, Audio: fakeAudio{}})

	var progressed float64
	in := fx.input(types.LongestFirst)
	in.Progress = func(sec, _ float64) { progressed = sec }

	res, err := uc.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Composition.Duration != 10 {
		t.Fatalf("duration = %v, want 10", res.Composition.Duration)
	}
	if res.Composition.Mix.Mode != types.MixOriginal {
		t.Fatalf("audio mode = %s, want original", res.Composition.Mix.Mode)
	}
	if got := video.reframeJobs[0].Target; got != vertical {
		t.Fatalf("reframe target = %v", got)
	}
	if video.reframeJobs[0].AddSilence {
		t.Fatalf("clip with audio must not get silence")
	}
	if got := video.encodeJobs[0].Settings; got != types.DefaultExportSettings() {
		t.Fatalf("encode settings = %+v", got)
	}
	if progressed != 10 {
		t.Fatalf("progress callback not wired, got %v", progressed)
	}
	if res.Manifest.Target != "1080x1920" || len(res.Manifest.Clips) != 1 || res.Manifest.Clips[0].File != "a.mp4" {
		t.Fatalf("unexpected manifest: %+v", res.Manifest)
	}
	fx.assertClean(t, true)
}

func TestRun_LongestFirstFillsBudgetGreedily(t *testing.T) {
	fx := newFixture(t, "c30.mp4", "c40.mp4", "c50.mp4")
	video := &fakeVideoTool{infos: map[string]types.MediaInfo{
		"c30.mp4": clipInfo(30, true),
		"c40.mp4": clipInfo(40, true),
		"c50.mp4": clipInfo(50, true),
	}}
	res, err := New(Deps{Video: video}).Run(context.Background(), fx.input(types.LongestFirst))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(video.reframeJobs) != 2 {
		t.Fatalf("expected 2 reframed clips, got %d", len(video.reframeJobs))
	}
	if filepath.Base(video.reframeJobs[0].Clip.Path) != "c50.mp4" || video.reframeJobs[0].Allotted != 50 {
		t.Fatalf("first job = %+v", video.reframeJobs[0])
	}
	if filepath.Base(video.reframeJobs[1].Clip.Path) != "c40.mp4" || video.reframeJobs[1].Allotted != 10 {
		t.Fatalf("second job = %+v", video.reframeJobs[1])
	}
	if res.Composition.Duration != 60 {
		t.Fatalf("duration = %v, want 60", res.Composition.Duration)
	}
}

func TestRun_ShortestFirstKeepsDiscoveryOrderOnTies(t *testing.T) {
	fx := newFixture(t, "a.mp4", "b.mp4", "c.mp4")
	video := &fakeVideoTool{infos: map[string]types.MediaInfo{
		"a.mp4": clipInfo(10, true),
		"b.mp4": clipInfo(10, true),
		"c.mp4": clipInfo(10, true),
	}}
	res, err := New(Deps{Video: video}).Run(context.Background(), fx.input(types.ShortestFirst))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var got []string
	for _, j := range video.reframeJobs {
		got = append(got, filepath.Base(j.Clip.Path))
		if j.Allotted != 10 {
			t.Fatalf("expected full 10s per clip, got %v", j.Allotted)
		}
	}
	if len(got) != 3 || got[0] != "a.mp4" || got[1] != "b.mp4" || got[2] != "c.mp4" {
		t.Fatalf("order = %v", got)
	}
	if res.Composition.Duration != 30 {
		t.Fatalf("duration = %v, want 30", res.Composition.Duration)
	}
}

func TestRun_EmptyDirectory(t *testing.T) {
	fx := newFixture(t)
	video := &fakeVideoTool{}
	_, err := New(Deps{Video: video}).Run(context.Background(), fx.input(types.LongestFirst))
	if !errors.Is(err, types.ErrDiscovery) {
		t.Fatalf("expected ErrDiscovery, got %v", err)
	}
	if len(video.reframeJobs) != 0 {
		t.Fatalf("nothing should be reframed")
	}
	fx.assertClean(t, false)
}

func TestRun_MusicLongerThanVideoIsTrimmedAndMixed(t *testing.T) {
	fx := newFixture(t, "a.mp4", "b.mp4")
	video := &fakeVideoTool{infos: map[string]types.MediaInfo{
		"a.mp4": clipInfo(20, true),
		"b.mp4": clipInfo(15, true),
	}}
	in := fx.input(types.LongestFirst)
	in.Music = filepath.Join(t.TempDir(), "anthem.mp3")

	res, err := New(Deps{Video: video, Audio: fakeAudio{dur: 180}}).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	m := res.Composition.Mix
	if m.Mode != types.MixMixed {
		t.Fatalf("mode = %s, want mixed", m.Mode)
	}
	if m.MusicTrim != res.Composition.Duration || m.MusicTrim != 35 {
		t.Fatalf("music trim = %v, video = %v", m.MusicTrim, res.Composition.Duration)
	}
	if m.OriginalGain != 0.9 || m.MusicGain != 0.6 {
		t.Fatalf("gains = %v/%v, want 0.9/0.6", m.OriginalGain, m.MusicGain)
	}
	if video.encodeJobs[0].Composition.Mix != m {
		t.Fatalf("encoder did not receive the mix plan")
	}
	if res.Manifest.AudioMode != types.MixMixed || res.Manifest.Music != in.Music {
		t.Fatalf("manifest = %+v", res.Manifest)
	}
}

func TestRun_SilentClipsAreMusicOnly(t *testing.T) {
	fx := newFixture(t, "a.mp4")
	video := &fakeVideoTool{infos: map[string]types.MediaInfo{"a.mp4": clipInfo(12, false)}}
	in := fx.input(types.LongestFirst)
	in.Music = "/music/short.wav"

	res, err := New(Deps{Video: video, Audio: fakeAudio{dur: 5}}).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Composition.Mix.Mode != types.MixMusic || res.Composition.Mix.MusicTrim != 0 {
		t.Fatalf("mix = %+v", res.Composition.Mix)
	}
	if video.reframeJobs[0].AddSilence {
		t.Fatalf("no silence padding when no clip has audio")
	}
}

func TestRun_PadsSilenceWhenAudioIsMixed(t *testing.T) {
	fx := newFixture(t, "loud.mp4", "quiet.mp4")
	video := &fakeVideoTool{infos: map[string]types.MediaInfo{
		"loud.mp4":  clipInfo(20, true),
		"quiet.mp4": clipInfo(10, false),
	}}
	if _, err := New(Deps{Video: video}).Run(context.Background(), fx.input(types.LongestFirst)); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, j := range video.reframeJobs {
		want := !j.Clip.HasAudio
		if j.AddSilence != want {
			t.Fatalf("%s: AddSilence = %v, want %v", j.Clip.Path, j.AddSilence, want)
		}
	}
	for _, s := range video.concatIn {
		if !s.HasAudio {
			t.Fatalf("segment %s has no audio; concat needs uniform streams", s.Path)
		}
	}
}

func TestRun_ReportsSkippedFiles(t *testing.T) {
	fx := newFixture(t, "good.mp4", "broken.mkv")
	video := &fakeVideoTool{infos: map[string]types.MediaInfo{"good.mp4": clipInfo(8, true)}}
	res, err := New(Deps{Video: video}).Run(context.Background(), fx.input(types.LongestFirst))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Skipped) != 1 || filepath.Base(res.Skipped[0].Path) != "broken.mkv" {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	if len(res.Manifest.Skipped) != 1 {
		t.Fatalf("manifest should list skipped files")
	}
}

func TestRun_StageFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeVideoTool)
		music string
		audio fakeAudio
		want  error
	}{
		{"reframe", func(f *fakeVideoTool) { f.failReframe = "b.mp4" }, "", fakeAudio{}, types.ErrReframe},
		{"concat", func(f *fakeVideoTool) { f.failConcat = true }, "", fakeAudio{}, types.ErrComposition},
		{"encode", func(f *fakeVideoTool) { f.failEncode = true }, "", fakeAudio{}, types.ErrEncoding},
		{"music probe", func(*fakeVideoTool) {}, "/m/song.mp3", fakeAudio{err: errors.New("moov atom not found")}, types.ErrComposition},
		{"music format", func(*fakeVideoTool) {}, "/m/song.flac", fakeAudio{dur: 30}, types.ErrComposition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, "a.mp4", "b.mp4")
			video := &fakeVideoTool{infos: map[string]types.MediaInfo{
				"a.mp4": clipInfo(30, true),
				"b.mp4": clipInfo(20, true),
			}}
			tt.setup(video)
			in := fx.input(types.LongestFirst)
			in.Music = tt.music

			_, err := New(Deps{Video: video, Audio: tt.audio}).Run(context.Background(), in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var se *types.StageError
			if !errors.As(err, &se) {
				t.Fatalf("expected *types.StageError, got %T", err)
			}
			fx.assertClean(t, false)
		})
	}
}

func TestPlan_WritesNothing(t *testing.T) {
	fx := newFixture(t, "a.mp4", "b.mp4")
	video := &fakeVideoTool{infos: map[string]types.MediaInfo{
		"a.mp4": clipInfo(45, true),
		"b.mp4": clipInfo(45, false),
	}}
	res, err := New(Deps{Video: video}).Plan(context.Background(), PlanInput{InputDir: fx.inputDir, Budget: 60, Policy: types.LongestFirst})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(res.Plan.Entries) != 2 || res.Plan.Total() != 60 {
		t.Fatalf("plan = %+v", res.Plan)
	}
	if len(video.reframeJobs) != 0 || len(video.encodeJobs) != 0 {
		t.Fatalf("plan must not transform media")
	}
}

func TestPlan_AllZeroDurationClips(t *testing.T) {
	fx := newFixture(t, "a.mp4")
	video := &fakeVideoTool{infos: map[string]types.MediaInfo{"a.mp4": clipInfo(0, true)}}
	_, err := New(Deps{Video: video}).Plan(context.Background(), PlanInput{InputDir: fx.inputDir, Budget: 60})
	if !errors.Is(err, types.ErrNoReadableClips) {
		t.Fatalf("expected ErrNoReadableClips, got %v", err)
	}
}
