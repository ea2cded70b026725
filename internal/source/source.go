// Package source parses TeraBox share links and canonicalizes their
// identifiers. The normalized identifier is the cache key and the local
// artifact namespace, so two spellings of the same share must always
// collapse to one SourceID.
package source

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// linkRe matches the share-link variants TeraBox hands out: any
// terabox-ish domain with either a /s/<id> path or a wap filelist
// URL carrying surl=<id>.
var linkRe = regexp.MustCompile(`https?://(?:www\.)?(?:1024)?terabox[a-z0-9]*\.[a-z]+/(?:s/|wap/share/filelist\?surl=)([a-zA-Z0-9_-]+)`)

var ErrNoLink = errors.New("no terabox link found")

// Item carries everything known about one requested share. Only the
// SourceID outlives the request; ResolvedURL and the display metadata
// are filled in by the resolver and discarded afterwards.
type Item struct {
	SourceID string
	ShareURL string

	ResolvedURL     string
	Title           string
	ThumbnailURL    string
	DurationSeconds float64
	Width           int
	Height          int
}

// Parse extracts the first TeraBox share link from text and returns an
// Item with its canonical SourceID and a normalized share URL.
func Parse(text string) (*Item, error) {
	m := linkRe.FindStringSubmatch(text)
	if m == nil {
		return nil, ErrNoLink
	}

	id := NormalizeID(m[1])
	return &Item{
		SourceID: id,
		ShareURL: fmt.Sprintf("https://terabox.com/s/%s", id),
	}, nil
}

// NormalizeID maps every spelling of a share identifier to one canonical
// form. TeraBox /s/ ids carry a leading "1" that the surl= variant drops,
// so the rule is: prefix "1" unless already present. Applied uniformly to
// every variant.
func NormalizeID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if strings.HasPrefix(raw, "1") {
		return raw
	}
	return "1" + raw
}
