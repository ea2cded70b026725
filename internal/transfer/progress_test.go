package transfer

import (
	"strings"
	"testing"
	"time"
)

func TestBar(t *testing.T) {
	cases := []struct {
		percent float64
		filled  int
	}{
		{0, 0},
		{5, 0},
		{6.7, 1},
		{50, 7},
		{99, 14},
		{100, 15},
		{150, 15},
		{-3, 0},
	}
	for _, tc := range cases {
		bar := Bar(tc.percent)
		if got := strings.Count(bar, "🟩"); got != tc.filled {
			t.Errorf("Bar(%v): %d filled segments, want %d", tc.percent, got, tc.filled)
		}
		if got := strings.Count(bar, "⬜️"); got != 15-tc.filled {
			t.Errorf("Bar(%v): %d empty segments, want %d", tc.percent, got, 15-tc.filled)
		}
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tc := range cases {
		if got := FormatSize(tc.in); got != tc.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatSpeed(t *testing.T) {
	if got := FormatSpeed(1536 * 1024); got != "1.5 MB/s" {
		t.Errorf("FormatSpeed = %q", got)
	}
	if got := FormatSpeed(512); got != "512 B/s" {
		t.Errorf("FormatSpeed(512) = %q", got)
	}
}

func TestFormatETA(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{45 * time.Second, "0:45"},
		{90 * time.Second, "1:30"},
		{3700 * time.Second, "1:01:40"},
		{0, "0:00"},
	}
	for _, tc := range cases {
		if got := FormatETA(tc.in); got != tc.want {
			t.Errorf("FormatETA(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
