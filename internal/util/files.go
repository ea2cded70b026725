package util

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/okatsuo/teravault/internal/config"
)

var unsafeFilenameRe = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
var multiSpaceRe = regexp.MustCompile(`\s+`)

// ClearDownloadsDir wipes artifacts left behind by a previous process
// lifetime and makes sure the directory exists.
func ClearDownloadsDir() {
	dir := config.DownloadsDir
	entries, err := os.ReadDir(dir)
	if err != nil {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error().Err(err).Str("dir", dir).Msg("failed to create downloads dir")
		}
		return
	}
	removed := 0
	for _, e := range entries {
		if os.RemoveAll(filepath.Join(dir, e.Name())) == nil {
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("files", removed).Msg("cleared stale downloads")
	}
}

// CleanupSourceFiles removes the artifact for one source id along with
// any derived siblings. All names for a source start with "<id>." —
// <id>.mp4, <id>.mp4.part, <id>.reduced.mp4 — so the dot is part of the
// match: source "1abc" must never touch "1abcdef.mp4".
func CleanupSourceFiles(sourceID string) {
	if sourceID == "" {
		return
	}
	entries, err := os.ReadDir(config.DownloadsDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), sourceID+".") {
			p := filepath.Join(config.DownloadsDir, e.Name())
			if err := os.Remove(p); err == nil {
				log.Debug().Str("file", e.Name()).Msg("removed artifact")
			}
		}
	}
}

// StartRetentionSweep periodically deletes downloads older than the
// retention window. Covers artifacts whose deferred cleanup was lost to
// a crash.
func StartRetentionSweep() {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		for range ticker.C {
			sweepExpired(time.Now())
		}
	}()
}

func sweepExpired(now time.Time) {
	entries, err := os.ReadDir(config.DownloadsDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > config.FileRetention {
			if os.Remove(filepath.Join(config.DownloadsDir, e.Name())) == nil {
				log.Info().Str("file", e.Name()).Msg("retention sweep removed old artifact")
			}
		}
	}
}

// SanitizeFilename makes a title safe to use as a filesystem name.
func SanitizeFilename(name string) string {
	s := unsafeFilenameRe.ReplaceAllString(name, "_")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
