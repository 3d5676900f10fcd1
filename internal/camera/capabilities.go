package camera

import "github.com/smazurov/bellbridge/internal/ffmpeg"

// AudioCodec is an advertised audio encoding.
type AudioCodec struct {
	Type       string `json:"type" example:"OPUS"`
	SampleRate int    `json:"sample_rate" example:"16" doc:"kHz"`
}

// Capabilities is what the bridge advertises to streaming clients.
type Capabilities struct {
	SRTP         bool                `json:"srtp"`
	Resolutions  []ffmpeg.Resolution `json:"resolutions"`
	Profiles     []int               `json:"profiles" doc:"H.264 profiles: 0 baseline, 1 main, 2 high"`
	Levels       []int               `json:"levels" doc:"H.264 levels: 0 = 3.1, 1 = 3.2, 2 = 4.0"`
	AudioCodecs  []AudioCodec        `json:"audio_codecs"`
	ComfortNoise bool                `json:"comfort_noise"`
}

// NewCapabilities builds the descriptor for a ladder limited to maxHeight.
//
// The doorbell only sends 8 kHz PCM and most ffmpeg builds lack libfdk_aac,
// so Opus at 16 kHz is the single advertised audio codec.
func NewCapabilities(maxHeight int) Capabilities {
	return Capabilities{
		SRTP:        true,
		Resolutions: ffmpeg.FilterLadder(ffmpeg.Ladder, maxHeight),
		Profiles:    []int{0, 1, 2},
		Levels:      []int{0, 1, 2},
		AudioCodecs: []AudioCodec{{Type: ffmpeg.AudioCodecOpus, SampleRate: 16}},
	}
}

// liveSource estimates the resolution of the doorbell's live stream: the
// best ladder entry the device is configured for.
func liveSource(maxHeight int) ffmpeg.Resolution {
	for _, r := range ffmpeg.Ladder {
		if r.Height <= maxHeight {
			return r
		}
	}
	return ffmpeg.Ladder[len(ffmpeg.Ladder)-1]
}
