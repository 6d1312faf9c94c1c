package wavfile

import (
	"context"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// Adapter reads WAV durations from the RIFF header without spawning ffprobe.
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) ProbeAudio(_ context.Context, path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("%s is not a valid WAV file", path)
	}
	d, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("wav duration: %w", err)
	}
	return d.Seconds(), nil
}
