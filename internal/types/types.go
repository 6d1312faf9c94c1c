package types

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

type SourceClip struct {
	Path     string
	Duration float64
	Width    int
	Height   int
	HasAudio bool
}

// Skipped records a candidate file that could not be probed.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type Policy string

const (
	LongestFirst  Policy = "longest-first"
	ShortestFirst Policy = "shortest-first"
)

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "longest", string(LongestFirst):
		return LongestFirst, nil
	case "shortest", string(ShortestFirst):
		return ShortestFirst, nil
	default:
		return "", fmt.Errorf("unknown selection policy %q (want %s or %s)", s, LongestFirst, ShortestFirst)
	}
}

type PlanEntry struct {
	Clip     SourceClip
	Allotted float64
}

// SelectionPlan is ordered: entry order is final playback order.
type SelectionPlan struct {
	Entries []PlanEntry
	Budget  float64
	Policy  Policy
}

func (p SelectionPlan) Total() float64 {
	return lo.SumBy(p.Entries, func(e PlanEntry) float64 { return e.Allotted })
}

// AnyAudio reports whether at least one selected clip carries audio.
func (p SelectionPlan) AnyAudio() bool {
	return lo.SomeBy(p.Entries, func(e PlanEntry) bool { return e.Clip.HasAudio })
}

type Target struct {
	Width  int
	Height int
}

func (t Target) Ratio() float64 {
	if t.Height == 0 {
		return 0
	}
	return float64(t.Width) / float64(t.Height)
}

func (t Target) String() string { return fmt.Sprintf("%dx%d", t.Width, t.Height) }

// Segment is a reframed clip written to the run workspace.
type Segment struct {
	Path     string
	Width    int
	Height   int
	Duration float64
	HasAudio bool
}

type AudioTrack struct {
	Path string
	Gain float64
}

type MixMode string

const (
	MixNone     MixMode = "none"
	MixOriginal MixMode = "original"
	MixMusic    MixMode = "music"
	MixMixed    MixMode = "mixed"
)

// MixPlan describes how the final audio is derived. MusicTrim > 0 means the
// music is cut to [0, MusicTrim].
type MixPlan struct {
	Mode         MixMode
	MusicPath    string
	MusicTrim    float64
	OriginalGain float64
	MusicGain    float64
}

type Composition struct {
	VideoPath string
	Duration  float64
	HasAudio  bool
	Mix       MixPlan
}

type ExportSettings struct {
	FPS        int
	VideoCodec string
	AudioCodec string
	Bitrate    string
	Preset     string
	Threads    int
	FastStart  bool
}

func DefaultExportSettings() ExportSettings {
	return ExportSettings{
		FPS:        30,
		VideoCodec: "libx264",
		AudioCodec: "aac",
		Bitrate:    "2500k",
		Preset:     "medium",
		Threads:    4,
		FastStart:  true,
	}
}

// ReframeJob is everything the video tool needs to produce one Segment.
type ReframeJob struct {
	Clip     SourceClip
	Allotted float64
	Target   Target
	FPS      int
	// AddSilence asks for a silent audio track when the clip has none.
	AddSilence bool
	OutPath    string
}

type EncodeJob struct {
	Composition Composition
	OutPath     string
	Settings    ExportSettings
}

type MediaInfo struct {
	Duration float64
	Width    int
	Height   int
	HasVideo bool
	HasAudio bool
}

type Privacy string

const (
	PrivacyPublic   Privacy = "public"
	PrivacyUnlisted Privacy = "unlisted"
	PrivacyPrivate  Privacy = "private"
)

func ParsePrivacy(s string) (Privacy, error) {
	switch p := Privacy(strings.ToLower(strings.TrimSpace(s))); p {
	case PrivacyPublic, PrivacyUnlisted, PrivacyPrivate:
		return p, nil
	case "":
		return PrivacyPrivate, nil
	default:
		return "", fmt.Errorf("unknown privacy status %q", s)
	}
}

type UploadRequest struct {
	FilePath    string
	Title       string
	Description string
	Tags        []string
	Privacy     Privacy
}

type Manifest struct {
	RunID       string          `json:"run_id"`
	InputDir    string          `json:"input_dir"`
	Output      string          `json:"output"`
	DurationSec float64         `json:"duration_sec"`
	Target      string          `json:"target"`
	Policy      Policy          `json:"policy"`
	BudgetSec   float64         `json:"budget_sec"`
	Music       string          `json:"music,omitempty"`
	AudioMode   MixMode         `json:"audio_mode"`
	Clips       []ManifestClip  `json:"clips"`
	Skipped     []Skipped       `json:"skipped,omitempty"`
	Upload      *ManifestUpload `json:"upload,omitempty"`
}

type ManifestClip struct {
	File        string  `json:"file"`
	SourceSec   float64 `json:"source_sec"`
	AllottedSec float64 `json:"allotted_sec"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
}

type ManifestUpload struct {
	VideoID string `json:"video_id"`
	URL     string `json:"url"`
}
