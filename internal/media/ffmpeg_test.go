package media

import "testing"

func TestTargetBitrates(t *testing.T) {
	cases := []struct {
		name        string
		duration    float64
		targetBytes int64
		videoKbps   int
		audioKbps   int
	}{
		// 50 MB over 100s: 50*1024*1024*8/100/1000 = 4194 kbps total.
		{"short clip", 100, 50 * 1024 * 1024, 4194 - 96, 96},
		// So long the computed total drops under the 300 kbps floor.
		{"long video floors total", 20000, 50 * 1024 * 1024, 300 - 96, 96},
		{"zero duration treated as 1s", 0, 125000, 904, 96},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, a := TargetBitrates(tc.duration, tc.targetBytes)
			if v != tc.videoKbps || a != tc.audioKbps {
				t.Fatalf("got %d/%d kbps, want %d/%d", v, a, tc.videoKbps, tc.audioKbps)
			}
		})
	}
}

func TestFitWithin(t *testing.T) {
	cases := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"already fits", 640, 360, 640, 360},
		{"wide 4k", 3840, 2160, 1280, 720},
		{"tall portrait", 1080, 1920, 404, 720},
		{"odd input rounded even", 641, 361, 640, 360},
		{"unknown dimensions default to box", 0, 0, 1280, 720},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotW, gotH := FitWithin(tc.w, tc.h, 1280, 720)
			if gotW != tc.wantW || gotH != tc.wantH {
				t.Fatalf("got %dx%d, want %dx%d", gotW, gotH, tc.wantW, tc.wantH)
			}
		})
	}
}
