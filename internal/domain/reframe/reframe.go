package reframe

import (
	"math"

	"github.com/forPelevin/reelcut/internal/types"
)

// Geometry is a uniform scale followed by a crop of exactly the target size.
type Geometry struct {
	ScaleW, ScaleH int
	CropX, CropY   int
	CropW, CropH   int
}

// Compute derives the scale-then-center-crop that maps a srcW x srcH frame onto
// target without distortion. Sources wider than the target ratio are fitted to
// the target height and cropped horizontally; all others are fitted to the
// target width and cropped vertically. Crop offsets are clamped at 0.
func Compute(srcW, srcH int, target types.Target) Geometry {
	g := Geometry{CropW: target.Width, CropH: target.Height}
	if srcW <= 0 || srcH <= 0 {
		g.ScaleW, g.ScaleH = target.Width, target.Height
		return g
	}

	r := float64(srcW) / float64(srcH)
	if r > target.Ratio() {
		g.ScaleH = target.Height
		g.ScaleW = scaledSide(float64(srcW)*float64(target.Height)/float64(srcH), target.Width)
		g.CropX = max(0, (g.ScaleW-target.Width)/2)
	} else {
		g.ScaleW = target.Width
		g.ScaleH = scaledSide(float64(srcH)*float64(target.Width)/float64(srcW), target.Height)
		g.CropY = max(0, (g.ScaleH-target.Height)/2)
	}
	return g
}

// scaledSide rounds to the nearest pixel, bumps odd values to even for 4:2:0
// chroma, and never goes below the target side so the crop stays in bounds.
func scaledSide(v float64, floor int) int {
	n := int(math.Round(v))
	if n%2 != 0 {
		n++
	}
	return max(n, floor)
}

// TrimTo reports the duration to cut the clip to. The clip is only ever
// shortened: when it already fits, ok is false and no trim applies.
func TrimTo(srcDuration, allotted float64) (float64, bool) {
	if allotted <= 0 || srcDuration <= allotted {
		return 0, false
	}
	return allotted, true
}
