package cli

import (
	"io"
	"math"

	"github.com/schollz/progressbar/v3"

	"github.com/forPelevin/reelcut/internal/logging"
)

// encodeProgress renders encoder progress on a terminal and stays silent
// otherwise. The bar is sized on the first update, once the total is known.
type encodeProgress struct {
	w       io.Writer
	enabled bool
	bar     *progressbar.ProgressBar
}

func newEncodeProgress(w io.Writer) *encodeProgress {
	return &encodeProgress{w: w, enabled: logging.IsTerminal(w)}
}

func (p *encodeProgress) Update(doneSec, totalSec float64) {
	if !p.enabled || totalSec <= 0 {
		return
	}
	if p.bar == nil {
		p.bar = progressbar.NewOptions(int(math.Ceil(totalSec)),
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription("Encoding"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "▐",
				BarEnd:        "▌",
			}),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = p.bar.Set(int(doneSec))
}

func (p *encodeProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
