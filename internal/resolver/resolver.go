// Package resolver turns a TeraBox share URL into a direct-fetch stream
// URL plus display metadata, via the iteraplay API. The pipeline treats
// this as a single blocking call: retries, if any, belong to the API,
// not to us.
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	playURL   = "https://iteraplay.com/api/play.php"
	streamURL = "https://iteraplay.com/api/stream.php"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// qualityOrder is the preference list when the API offers several
// stream renditions.
var qualityOrder = []string{"1080p", "720p", "480p", "360p"}

// Result is what the pipeline needs to start a transfer.
type Result struct {
	DirectURL       string
	Title           string
	ThumbnailURL    string
	DurationSeconds float64
	Width           int
	Height          int
}

// Error is the user-visible resolution failure: link invalid, expired,
// or the resolver unreachable. Terminal for the request, never retried.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("resolve failed: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Resolver is the boundary the pipeline depends on.
type Resolver interface {
	Resolve(ctx context.Context, shareURL string) (*Result, error)
}

type iteraplayResolver struct {
	client    *http.Client
	apiKey    func() string
	playURL   string
	streamURL string
}

// New returns the iteraplay-backed resolver. apiKey is read per call so
// the admin /setkey command takes effect without restart.
func New(apiKey func() string) Resolver {
	jar, _ := cookiejar.New(nil)
	return &iteraplayResolver{
		client:    &http.Client{Timeout: 30 * time.Second, Jar: jar},
		apiKey:    apiKey,
		playURL:   playURL,
		streamURL: streamURL,
	}
}

type streamResponse struct {
	List []struct {
		Name           string          `json:"name"`
		ServerFilename string          `json:"server_filename"`
		Thumbnail      string          `json:"thumbnail"`
		Duration       float64         `json:"duration"`
		Width          int             `json:"width"`
		Height         int             `json:"height"`
		FastStreamURL  json.RawMessage `json:"fast_stream_url"`
	} `json:"list"`
}

func (r *iteraplayResolver) Resolve(ctx context.Context, shareURL string) (*Result, error) {
	playPage := fmt.Sprintf("%s?url=%s&key=%s", r.playURL, url.QueryEscape(shareURL), url.QueryEscape(r.apiKey()))

	// Step 1: hit the play page so the API sets its session cookies.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playPage, nil)
	if err != nil {
		return nil, &Error{Err: err}
	}
	r.setHeaders(req, playPage)
	if resp, err := r.client.Do(req); err != nil {
		return nil, &Error{Err: err}
	} else {
		resp.Body.Close()
	}

	// Step 2: post the share URL to the stream API.
	payload, _ := json.Marshal(map[string]string{"url": shareURL})
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, r.streamURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Err: err}
	}
	r.setHeaders(req, playPage)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &Error{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Err: fmt.Errorf("stream API returned HTTP %d", resp.StatusCode)}
	}

	var data streamResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &Error{Err: fmt.Errorf("invalid stream API response: %w", err)}
	}
	if len(data.List) == 0 {
		return nil, &Error{Err: fmt.Errorf("no files in stream API response")}
	}

	f := data.List[0]
	title := f.Name
	if title == "" {
		title = f.ServerFilename
	}
	if title == "" {
		title = "TeraBox Video"
	}

	direct := pickStream(f.FastStreamURL)
	if direct == "" {
		return nil, &Error{Err: fmt.Errorf("no stream URL for %q", title)}
	}

	log.Debug().Str("title", title).Msg("resolved share link")
	return &Result{
		DirectURL:       direct,
		Title:           title,
		ThumbnailURL:    f.Thumbnail,
		DurationSeconds: f.Duration,
		Width:           f.Width,
		Height:          f.Height,
	}, nil
}

func (r *iteraplayResolver) setHeaders(req *http.Request, referer string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)
	req.Header.Set("Origin", "https://iteraplay.com")
	req.Header.Set("Content-Type", "application/json")
}

// pickStream handles the two shapes fast_stream_url arrives in: a
// quality→url map or a bare string.
func pickStream(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var byQuality map[string]string
	if err := json.Unmarshal(raw, &byQuality); err == nil {
		for _, q := range qualityOrder {
			if u := byQuality[q]; u != "" {
				return u
			}
		}
		for _, u := range byQuality {
			if u != "" {
				return u
			}
		}
		return ""
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	return ""
}
