package transfer

import (
	"fmt"
	"strings"
	"time"

	"github.com/okatsuo/teravault/internal/config"
)

const (
	barFilled = "🟩"
	barEmpty  = "⬜️"
)

// Progress is one sampled snapshot of a running transfer, emitted to the
// status-message consumer at most once per config.ProgressInterval.
type Progress struct {
	Percent    float64
	Downloaded int64
	Total      int64
	Speed      float64 // bytes per second
	ETA        time.Duration
}

// Bar renders the discrete progress bar: segmentCount fixed segments,
// filled count = floor(segments * percent / 100).
func Bar(percent float64) string {
	segments := config.ProgressBarSegments
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * float64(segments))
	if filled > segments {
		filled = segments
	}
	return strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, segments-filled)
}

// FormatSpeed renders bytes/sec in the usual binary units.
func FormatSpeed(bps float64) string {
	switch {
	case bps >= 1024*1024:
		return fmt.Sprintf("%.1f MB/s", bps/1024/1024)
	case bps >= 1024:
		return fmt.Sprintf("%.1f KB/s", bps/1024)
	default:
		return fmt.Sprintf("%.0f B/s", bps)
	}
}

// FormatETA renders a duration as m:ss or h:mm:ss.
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	total := int(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatSize renders a byte count for captions and error messages.
func FormatSize(n int64) string {
	switch {
	case n >= 1024*1024*1024:
		return fmt.Sprintf("%.2f GB", float64(n)/1024/1024/1024)
	case n >= 1024*1024:
		return fmt.Sprintf("%.2f MB", float64(n)/1024/1024)
	case n >= 1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
