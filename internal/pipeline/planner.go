package pipeline

import (
	"math"

	"github.com/salmlabs/video-pipeline/internal/models"
)

// Downscale ceilings for the long side of the frame. Landscape output
// never exceeds 1080 wide, portrait never exceeds 1920 tall. Outputs
// are forced even for encoder block alignment.
const (
	maxLandscapeWidth = 1080
	maxPortraitHeight = 1920
)

// Planner derives the fixed-policy encode target from probed source
// metadata. The codec policy is not user-controlled.
type Planner struct {
	crf    int
	preset string
}

func NewPlanner(crf int, preset string) *Planner {
	return &Planner{crf: crf, preset: preset}
}

// Plan computes the aspect-preserving downscale target. Unknown (zero)
// geometry yields a plan without a scale step.
func (p *Planner) Plan(meta models.MediaMetadata) models.EncodePlan {
	w, h := meta.Width, meta.Height

	switch {
	case w <= 0 || h <= 0:
		w, h = 0, 0
	case w >= h && w > maxLandscapeWidth:
		h = int(math.Round(float64(h) * maxLandscapeWidth / float64(w)))
		w = maxLandscapeWidth
	case h > w && h > maxPortraitHeight:
		w = int(math.Round(float64(w) * maxPortraitHeight / float64(h)))
		h = maxPortraitHeight
	}

	// drop the odd bit
	w &^= 1
	h &^= 1

	return models.EncodePlan{
		TargetWidth:  w,
		TargetHeight: h,
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		AudioBitrate: "128k",
		CRF:          p.crf,
		Preset:       p.preset,
	}
}
