package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/forPelevin/reelcut/internal/types"
)

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Duration     string            `json:"duration"`
	Tags         map[string]string `json:"tags"`
	SideDataList []struct {
		Rotation float64 `json:"rotation"`
	} `json:"side_data_list"`
	Disposition struct {
		AttachedPic int `json:"attached_pic"`
	} `json:"disposition"`
}

type probeFormat struct {
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// Probe runs a single ffprobe process against path; the file is released
// when the process exits.
func (a *Adapter) Probe(ctx context.Context, path string) (types.MediaInfo, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return types.MediaInfo{}, errors.New("ffprobe inspect: empty path")
	}
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-of", "json",
		"--", path,
	)
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return types.MediaInfo{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(ee.Stderr)))
		}
		return types.MediaInfo{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	return parseProbe(out)
}

func parseProbe(raw []byte) (types.MediaInfo, error) {
	var res probeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return types.MediaInfo{}, fmt.Errorf("ffprobe parse: %w", err)
	}

	var info types.MediaInfo
	var video *probeStream
	for i := range res.Streams {
		s := &res.Streams[i]
		switch strings.ToLower(s.CodecType) {
		case "video":
			// Cover art in audio files shows up as a one-frame video stream.
			if video == nil && s.Disposition.AttachedPic == 0 {
				video = s
			}
		case "audio":
			info.HasAudio = true
		}
	}

	info.Duration = parseSeconds(res.Format.Duration)
	if video != nil {
		info.HasVideo = true
		info.Width, info.Height = video.Width, video.Height
		if quarterTurn(rotation(*video)) {
			info.Width, info.Height = info.Height, info.Width
		}
		if info.Duration <= 0 {
			info.Duration = parseSeconds(video.Duration)
		}
	}
	if info.Duration <= 0 {
		return info, errors.New("ffprobe: duration unavailable")
	}
	return info, nil
}

func rotation(s probeStream) float64 {
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			return sd.Rotation
		}
	}
	if v, ok := s.Tags["rotate"]; ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return 0
}

func quarterTurn(deg float64) bool {
	r := math.Mod(math.Abs(deg), 180)
	return r == 90
}

func parseSeconds(v string) float64 {
	v = strings.TrimSpace(v)
	if v == "" || v == "N/A" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || f < 0 {
		return 0
	}
	return f
}
