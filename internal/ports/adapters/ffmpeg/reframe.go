package ffmpeg

import (
	"context"
	"fmt"
	"strconv"

	"github.com/forPelevin/reelcut/internal/domain/reframe"
	"github.com/forPelevin/reelcut/internal/types"
)

const (
	segmentSampleRate = "48000"
	segmentChannels   = "2"
)

// Reframe writes one segment with the exact target resolution, a constant
// frame rate and uniform codec parameters so segments can be stream-copied
// into one file later.
func (a *Adapter) Reframe(ctx context.Context, job types.ReframeJob) (types.Segment, error) {
	args, dur := reframeArgs(job)
	if err := a.run(ctx, "reframe", args); err != nil {
		return types.Segment{}, err
	}
	return types.Segment{
		Path:     job.OutPath,
		Width:    job.Target.Width,
		Height:   job.Target.Height,
		Duration: dur,
		HasAudio: job.Clip.HasAudio || job.AddSilence,
	}, nil
}

func reframeArgs(job types.ReframeJob) ([]string, float64) {
	g := reframe.Compute(job.Clip.Width, job.Clip.Height, job.Target)
	dur := job.Clip.Duration
	trim, trimmed := reframe.TrimTo(job.Clip.Duration, job.Allotted)
	if trimmed {
		dur = trim
	}
	fps := job.FPS
	if fps <= 0 {
		fps = 30
	}

	args := preamble()
	args = append(args, "-i", job.Clip.Path)
	silence := job.AddSilence && !job.Clip.HasAudio
	if silence {
		args = append(args,
			"-f", "lavfi",
			"-t", fmtSeconds(dur),
			"-i", "anullsrc=channel_layout=stereo:sample_rate="+segmentSampleRate,
		)
	}

	args = append(args,
		"-vf", videoFilter(g, fps),
		"-map", "0:v:0",
	)
	switch {
	case job.Clip.HasAudio:
		args = append(args, "-map", "0:a:0")
	case silence:
		args = append(args, "-map", "1:a:0", "-shortest")
	}

	if trimmed {
		args = append(args, "-t", fmtSeconds(trim))
	}

	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-pix_fmt", "yuv420p",
	)
	if job.Clip.HasAudio || silence {
		args = append(args,
			"-c:a", "aac",
			"-b:a", "192k",
			"-ar", segmentSampleRate,
			"-ac", segmentChannels,
		)
	} else {
		args = append(args, "-an")
	}
	args = append(args, job.OutPath)
	return args, dur
}

func videoFilter(g reframe.Geometry, fps int) string {
	return fmt.Sprintf("scale=%d:%d,crop=%d:%d:%d:%d,setsar=1,fps=%s,format=yuv420p",
		g.ScaleW, g.ScaleH, g.CropW, g.CropH, g.CropX, g.CropY, strconv.Itoa(fps))
}
