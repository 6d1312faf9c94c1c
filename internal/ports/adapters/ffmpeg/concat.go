package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/reelcut/internal/types"
)

// Concat joins segments in the given order with the concat demuxer. Segments
// share codec parameters, so streams are copied rather than re-encoded.
func (a *Adapter) Concat(ctx context.Context, segments []types.Segment, outPath string) error {
	if len(segments) == 0 {
		return errors.New("ffmpeg concat: no segments")
	}
	list, err := concatList(segments)
	if err != nil {
		return fmt.Errorf("ffmpeg concat: %w", err)
	}
	listPath := outPath + ".txt"
	if err := os.WriteFile(listPath, []byte(list), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	args := preamble()
	args = append(args,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	)
	return a.run(ctx, "concat", args)
}

// concatList writes absolute paths: the demuxer resolves relative entries
// against the list file's directory, not the working directory.
func concatList(segments []types.Segment) (string, error) {
	var b strings.Builder
	for _, s := range segments {
		p, err := filepath.Abs(s.Path)
		if err != nil {
			return "", fmt.Errorf("resolve segment %s: %w", s.Path, err)
		}
		b.WriteString("file '")
		b.WriteString(escapeConcatPath(p))
		b.WriteString("'\n")
	}
	return b.String(), nil
}

func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}
