package reframe

import (
	"testing"

	"github.com/forPelevin/reelcut/internal/types"
)

var vertical = types.Target{Width: 1080, Height: 1920}

func TestCompute_Table(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		want Geometry
	}{
		{
			name: "landscape 1080p",
			w:    1920, h: 1080,
			want: Geometry{ScaleW: 3414, ScaleH: 1920, CropX: 1167, CropY: 0, CropW: 1080, CropH: 1920},
		},
		{
			name: "already vertical",
			w:    1080, h: 1920,
			want: Geometry{ScaleW: 1080, ScaleH: 1920, CropW: 1080, CropH: 1920},
		},
		{
			name: "half size vertical",
			w:    540, h: 960,
			want: Geometry{ScaleW: 1080, ScaleH: 1920, CropW: 1080, CropH: 1920},
		},
		{
			name: "taller than target",
			w:    720, h: 1600,
			want: Geometry{ScaleW: 1080, ScaleH: 2400, CropX: 0, CropY: 240, CropW: 1080, CropH: 1920},
		},
		{
			name: "square",
			w:    1000, h: 1000,
			want: Geometry{ScaleW: 1920, ScaleH: 1920, CropX: 420, CropW: 1080, CropH: 1920},
		},
		{
			name: "invalid source",
			w:    0, h: 0,
			want: Geometry{ScaleW: 1080, ScaleH: 1920, CropW: 1080, CropH: 1920},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compute(tt.w, tt.h, vertical); got != tt.want {
				t.Fatalf("Compute(%d, %d) = %+v, want %+v", tt.w, tt.h, got, tt.want)
			}
		})
	}
}

func TestCompute_AlwaysExactTarget(t *testing.T) {
	targets := []types.Target{vertical, {Width: 720, Height: 1280}, {Width: 1080, Height: 1080}}
	for _, target := range targets {
		for w := 16; w <= 4096; w += 97 {
			for h := 16; h <= 4096; h += 89 {
				g := Compute(w, h, target)
				if g.CropW != target.Width || g.CropH != target.Height {
					t.Fatalf("%dx%d -> %s: crop %dx%d", w, h, target, g.CropW, g.CropH)
				}
				if g.CropX < 0 || g.CropY < 0 {
					t.Fatalf("%dx%d -> %s: negative offset %+v", w, h, target, g)
				}
				if g.CropX+g.CropW > g.ScaleW || g.CropY+g.CropH > g.ScaleH {
					t.Fatalf("%dx%d -> %s: crop outside scaled frame %+v", w, h, target, g)
				}
				if g.ScaleW%2 != 0 || g.ScaleH%2 != 0 {
					t.Fatalf("%dx%d -> %s: odd scaled size %+v", w, h, target, g)
				}
				if g.ScaleW != target.Width && g.ScaleH != target.Height {
					t.Fatalf("%dx%d -> %s: neither side fitted %+v", w, h, target, g)
				}
			}
		}
	}
}

func TestTrimTo(t *testing.T) {
	if d, ok := TrimTo(30, 12.5); !ok || d != 12.5 {
		t.Fatalf("expected trim to 12.5, got %v %v", d, ok)
	}
	if _, ok := TrimTo(10, 10); ok {
		t.Fatalf("equal duration must not trim")
	}
	if _, ok := TrimTo(8, 10); ok {
		t.Fatalf("shorter source must never be padded or trimmed")
	}
}
