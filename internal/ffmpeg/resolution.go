package ffmpeg

import "fmt"

// Resolution is a width/height/frame-rate triple.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	FPS    int `json:"fps"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d@%d", r.Width, r.Height, r.FPS)
}

// fits reports whether r is no larger than limit in either dimension.
func (r Resolution) fits(limit Resolution) bool {
	return r.Width <= limit.Width && r.Height <= limit.Height
}

// covers reports whether r is at least as large as other in both dimensions.
func (r Resolution) covers(other Resolution) bool {
	return r.Width >= other.Width && r.Height >= other.Height
}

func (r Resolution) sameSize(other Resolution) bool {
	return r.Width == other.Width && r.Height == other.Height
}

// MaxFPS is the highest frame rate the doorbell produces.
const MaxFPS = 30

// Ladder is the full set of supported output resolutions, best first.
// The two 15 fps entries are the watch sizes (4:3 and 16:9).
var Ladder = []Resolution{
	{1920, 1080, MaxFPS},
	{1280, 720, MaxFPS},
	{640, 360, MaxFPS},
	{480, 270, MaxFPS},
	{320, 240, min(MaxFPS, 15)},
	{320, 180, min(MaxFPS, 15)},
}

// FilterLadder returns the ladder entries whose height is at most maxHeight.
func FilterLadder(ladder []Resolution, maxHeight int) []Resolution {
	out := make([]Resolution, 0, len(ladder))
	for _, r := range ladder {
		if r.Height <= maxHeight {
			out = append(out, r)
		}
	}
	return out
}

// SelectResolution picks the output size for a client request.
//
// Candidates are the ladder entries that fit inside requested. The smallest
// candidate that still covers source wins, so nothing is upscaled past what
// the client asked for; failing that the largest candidate is used, and with
// no candidates at all the request itself. ladder must be ordered best first.
func SelectResolution(ladder []Resolution, requested, source Resolution) Resolution {
	var largest, covering *Resolution
	for i := range ladder {
		r := &ladder[i]
		if !r.fits(requested) {
			continue
		}
		if largest == nil {
			largest = r
		}
		if r.covers(source) {
			covering = r
		}
	}

	var chosen Resolution
	switch {
	case covering != nil:
		chosen = *covering
	case largest != nil:
		chosen = *largest
	default:
		return requested
	}

	if requested.FPS > 0 && requested.FPS < chosen.FPS {
		chosen.FPS = requested.FPS
	}
	return chosen
}
