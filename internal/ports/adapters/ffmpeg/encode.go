package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

// Encode renders the composition to the delivery file. A failed encode
// removes whatever was written to the output path.
func (a *Adapter) Encode(ctx context.Context, job types.EncodeJob, progress ports.Progress) error {
	args := encodeArgs(job)
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg encode: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg encode: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg encode: %w", err)
	}

	var errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error { return readProgress(stdout, job.Composition.Duration, progress) })
	g.Go(func() error {
		_, err := io.Copy(&errBuf, stderr)
		return err
	})
	readErr := g.Wait()
	waitErr := cmd.Wait()

	if waitErr != nil || readErr != nil {
		_ = os.Remove(job.OutPath)
		if waitErr == nil {
			waitErr = readErr
		}
		return fmt.Errorf("ffmpeg encode: %w\n%s", waitErr, tail(errBuf.String(), 2000))
	}
	return nil
}

func encodeArgs(job types.EncodeJob) []string {
	s := job.Settings
	comp := job.Composition

	args := preamble()
	args = append(args, "-i", comp.VideoPath)
	if comp.Mix.Mode == types.MixMusic || comp.Mix.Mode == types.MixMixed {
		args = append(args, "-i", comp.Mix.MusicPath)
	}

	if graph := audioFilter(comp.Mix); graph != "" {
		args = append(args, "-filter_complex", graph, "-map", "0:v:0", "-map", "[aout]")
	} else {
		args = append(args, "-map", "0:v:0")
		if comp.Mix.Mode == types.MixOriginal {
			args = append(args, "-map", "0:a:0")
		}
	}

	args = append(args,
		"-r", strconv.Itoa(s.FPS),
		"-c:v", s.VideoCodec,
		"-preset", s.Preset,
		"-b:v", s.Bitrate,
		"-pix_fmt", "yuv420p",
	)
	if comp.Mix.Mode == types.MixNone {
		args = append(args, "-an")
	} else {
		args = append(args, "-c:a", s.AudioCodec)
	}
	if s.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(s.Threads))
	}
	if s.FastStart {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, "-progress", "pipe:1", "-nostats", job.OutPath)
	return args
}

// audioFilter renders the mix plan as a filtergraph whose output pad is
// [aout]. Modes that need no filtering return "".
func audioFilter(m types.MixPlan) string {
	music := "[1:a]"
	if m.MusicTrim > 0 {
		music += "atrim=end=" + fmtSeconds(m.MusicTrim) + ",asetpts=PTS-STARTPTS,"
	}
	music += "volume=" + fmtGain(m.MusicGain)

	switch m.Mode {
	case types.MixMusic:
		return music + "[aout]"
	case types.MixMixed:
		return strings.Join([]string{
			"[0:a]volume=" + fmtGain(m.OriginalGain) + "[orig]",
			music + "[music]",
			"[orig][music]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[aout]",
		}, ";")
	default:
		return ""
	}
}

// readProgress consumes ffmpeg's -progress key=value stream.
func readProgress(r io.Reader, total float64, progress ports.Progress) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, val, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok || progress == nil {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// Both keys carry microseconds.
			us, err := strconv.ParseInt(val, 10, 64)
			if err != nil || us < 0 {
				continue
			}
			sec := float64(us) / 1e6
			if total > 0 {
				sec = min(sec, total)
			}
			progress(sec, total)
		}
	}
	if err := sc.Err(); err != nil {
		// keep the pipe drained so ffmpeg never blocks on a full buffer
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}
