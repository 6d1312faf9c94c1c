package ports

import (
	"context"

	"github.com/forPelevin/reelcut/internal/types"
)

// Progress receives encoded seconds out of the composition length as an
// encode advances.
type Progress func(doneSec, totalSec float64)

type VideoTool interface {
	Probe(ctx context.Context, path string) (types.MediaInfo, error)
	Reframe(ctx context.Context, job types.ReframeJob) (types.Segment, error)
	Concat(ctx context.Context, segments []types.Segment, outPath string) error
	Encode(ctx context.Context, job types.EncodeJob, progress Progress) error
}

type AudioProber interface {
	ProbeAudio(ctx context.Context, path string) (float64, error)
}

type Uploader interface {
	Upload(ctx context.Context, req types.UploadRequest) (string, error)
}
