package mix

import "github.com/forPelevin/reelcut/internal/types"

const (
	DefaultOriginalGain = 0.9
	DefaultMusicGain    = 0.6
)

// Plan decides how the final audio track is built. Music longer than the
// video is cut to the video duration. With original audio present the two are
// summed (original*originalGain + music*music.Gain) without normalisation, so
// loud inputs can clip. Without original audio the music plays alone.
func Plan(videoDuration float64, videoHasAudio bool, music *types.AudioTrack, musicDuration, originalGain float64) types.MixPlan {
	if music == nil || music.Path == "" {
		if videoHasAudio {
			return types.MixPlan{Mode: types.MixOriginal, OriginalGain: 1}
		}
		return types.MixPlan{Mode: types.MixNone}
	}

	p := types.MixPlan{
		MusicPath: music.Path,
		MusicGain: music.Gain,
	}
	if musicDuration > videoDuration {
		p.MusicTrim = videoDuration
	}
	if videoHasAudio {
		p.Mode = types.MixMixed
		p.OriginalGain = originalGain
	} else {
		p.Mode = types.MixMusic
	}
	return p
}
