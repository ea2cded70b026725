package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testEngine() *Engine {
	return NewEngine(
		WithRetries(3),
		WithRetryDelay(time.Millisecond),
		WithProgressInterval(0),
	)
}

func TestDownloadWritesFile(t *testing.T) {
	payload := bytes.Repeat([]byte("teravault"), 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "v.mp4")
	sess := &Session{RequesterID: 1}

	var last Progress
	var calls int
	err := testEngine().Download(context.Background(), srv.URL, dest, sess, func(p Progress) {
		last = p
		calls++
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("downloaded %d bytes, want %d", len(got), len(payload))
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Fatal("part file left behind after completion")
	}
	if calls == 0 {
		t.Fatal("no progress reported")
	}
	if last.Percent != 100 {
		t.Fatalf("final percent = %v", last.Percent)
	}
	if last.Downloaded != int64(len(payload)) || last.Total != int64(len(payload)) {
		t.Fatalf("final progress = %d/%d", last.Downloaded, last.Total)
	}
}

func TestDownloadCancellation(t *testing.T) {
	sess := &Session{RequesterID: 1}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1048576")
		w.Write(bytes.Repeat([]byte("x"), 64*1024))
		w.(http.Flusher).Flush()
		// Cancel mid-stream, then trickle so the copy loop runs again.
		sess.Cancel()
		w.Write([]byte("y"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "v.mp4")
	err := testEngine().Download(context.Background(), srv.URL, dest, sess, nil)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Download: got %v, want ErrCancelled", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatal("cancelled transfer produced the final file")
	}
}

func TestDownloadRetriesTransientError(t *testing.T) {
	payload := []byte("after the outage")
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "v.mp4")
	err := testEngine().Download(context.Background(), srv.URL, dest, &Session{RequesterID: 1}, nil)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("server hits = %d, want 3", got)
	}
	got, _ := os.ReadFile(dest)
	if !bytes.Equal(got, payload) {
		t.Fatalf("dest = %q", got)
	}
}

func TestDownloadExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "v.mp4")
	err := testEngine().Download(context.Background(), srv.URL, dest, &Session{RequesterID: 1}, nil)

	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("Download: got %v, want *Error", err)
	}
	if !strings.Contains(terr.Error(), "http 500") {
		t.Fatalf("error = %q", terr.Error())
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("server hits = %d, want 3", got)
	}
}

func TestDownloadResumesPartFile(t *testing.T) {
	full := []byte("0123456789abcdef")
	var gotRange atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.Header.Get("Range")
		gotRange.Store(rng)
		if rng != "bytes=8-" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		rest := full[8:]
		w.Header().Set("Content-Length", fmt.Sprint(len(rest)))
		w.Header().Set("Content-Range", fmt.Sprintf("bytes 8-%d/%d", len(full)-1, len(full)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(rest)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "v.mp4")
	if err := os.WriteFile(dest+".part", full[:8], 0o644); err != nil {
		t.Fatal(err)
	}

	err := testEngine().Download(context.Background(), srv.URL, dest, &Session{RequesterID: 1}, nil)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got, _ := gotRange.Load().(string); got != "bytes=8-" {
		t.Fatalf("Range header = %q", got)
	}
	got, _ := os.ReadFile(dest)
	if !bytes.Equal(got, full) {
		t.Fatalf("dest = %q, want %q", got, full)
	}
}
