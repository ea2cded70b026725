package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/okatsuo/teravault/internal/config"
)

// Info holds the probe fields the pipeline cares about.
type Info struct {
	DurationSeconds float64
	Width           int
	Height          int
	SizeBytes       int64
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// Probe runs ffprobe and extracts duration and video dimensions.
func Probe(ctx context.Context, path string) (*Info, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams", "-show_format",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("ffprobe output: %w", err)
	}

	info := &Info{}
	info.DurationSeconds, _ = strconv.ParseFloat(parsed.Format.Duration, 64)
	info.SizeBytes, _ = strconv.ParseInt(parsed.Format.Size, 10, 64)
	for _, s := range parsed.Streams {
		if s.CodecType == "video" {
			info.Width = s.Width
			info.Height = s.Height
			break
		}
	}
	return info, nil
}

// RemuxFaststart rewrites the container with the moov atom up front so
// Telegram clients can start playback before the whole file arrives.
// Codecs are copied, not re-encoded. Failure leaves the input untouched
// and is reported to the caller, who treats it as non-fatal.
func RemuxFaststart(ctx context.Context, path string) error {
	tmp := path + ".faststart.mp4"
	err := runFFmpeg(ctx,
		"-y", "-i", path,
		"-codec", "copy",
		"-movflags", "+faststart",
		tmp,
	)
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// TargetBitrates computes the transcode budget for fitting a video of the
// given duration under targetBytes. The total rate floors at 300 kbps so
// very long videos still get a usable picture even if they end up over
// target; audio takes a fixed 96 kbps and video keeps at least 200 kbps.
func TargetBitrates(durationSeconds float64, targetBytes int64) (videoKbps, audioKbps int) {
	if durationSeconds <= 0 {
		durationSeconds = 1
	}
	totalKbps := int(float64(targetBytes*8) / durationSeconds / 1000)
	if totalKbps < config.MinTotalBitrateKbps {
		totalKbps = config.MinTotalBitrateKbps
	}
	audioKbps = config.AudioBitrateKbps
	videoKbps = totalKbps - audioKbps
	if videoKbps < config.MinVideoBitrateKbps {
		videoKbps = config.MinVideoBitrateKbps
	}
	return videoKbps, audioKbps
}

// FitWithin scales (w, h) down to fit inside maxW×maxH preserving aspect
// ratio, rounding to even values as required by yuv420p. Dimensions
// already inside the box pass through unchanged.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}
	if w <= maxW && h <= maxH {
		return even(w), even(h)
	}
	scaleW := float64(maxW) / float64(w)
	scaleH := float64(maxH) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	return even(int(float64(w) * scale)), even(int(float64(h) * scale))
}

func even(n int) int {
	if n%2 != 0 {
		n--
	}
	if n < 2 {
		n = 2
	}
	return n
}

// TranscodeToSize re-encodes src into dst aiming under targetBytes, using
// the probed duration and dimensions to pick bitrates and output size.
func TranscodeToSize(ctx context.Context, src, dst string, targetBytes int64) error {
	info, err := Probe(ctx, src)
	if err != nil {
		return err
	}

	videoKbps, audioKbps := TargetBitrates(info.DurationSeconds, targetBytes)
	outW, outH := FitWithin(info.Width, info.Height, config.MaxTranscodeWidth, config.MaxTranscodeHeight)

	log.Info().
		Str("src", src).
		Int("video_kbps", videoKbps).
		Int("audio_kbps", audioKbps).
		Int("width", outW).
		Int("height", outH).
		Msg("transcoding to fit size limit")

	err = runFFmpeg(ctx,
		"-y", "-i", src,
		"-c:v", "libx264",
		"-preset", "fast",
		"-b:v", fmt.Sprintf("%dk", videoKbps),
		"-maxrate", fmt.Sprintf("%dk", videoKbps),
		"-bufsize", fmt.Sprintf("%dk", videoKbps*2),
		"-vf", fmt.Sprintf("scale=%d:%d", outW, outH),
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", audioKbps),
		"-movflags", "+faststart",
		dst,
	)
	if err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

func runFFmpeg(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stderrPipe, _ := cmd.StderrPipe()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	stderrBytes, _ := io.ReadAll(stderrPipe)
	if err := cmd.Wait(); err != nil {
		errStr := string(stderrBytes)
		if len(errStr) > 500 {
			errStr = errStr[len(errStr)-500:]
		}
		log.Warn().Str("stderr", errStr).Msg("ffmpeg failed")
		return fmt.Errorf("encoding failed (code %d)", cmd.ProcessState.ExitCode())
	}
	return nil
}
