package bot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/okatsuo/teravault/internal/config"
	"github.com/okatsuo/teravault/internal/source"
)

func writeArtifact(t *testing.T, sourceID string, size int64) string {
	t.Helper()
	path := filepath.Join(config.DownloadsDir, sourceID+".mp4")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(size); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func testStatus(api *fakeAPI) *statusMessage {
	return &statusMessage{api: api, chatID: 222, messageID: 1}
}

func testUser() *tgbotapi.User {
	return &tgbotapi.User{ID: 111, FirstName: "Ann"}
}

func TestDistributeDirectUpload(t *testing.T) {
	api := &fakeAPI{videoFileID: "DIRECT1"}
	b := newTestBot(t, api, &fakeResolver{})
	item := &source.Item{SourceID: "1abc123", Title: "Clip"}
	path := writeArtifact(t, item.SourceID, 1024)

	retained, err := b.distribute(context.Background(), testUser(), 222, item, testStatus(api), path)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if retained {
		t.Error("small direct upload marked retained")
	}

	videos := api.videos()
	if len(videos) != 1 || videos[0].ChatID != 222 {
		t.Fatalf("videos = %d to %v", len(videos), videos)
	}

	rec, err := b.store.GetVideo(context.Background(), "1abc123")
	if err != nil {
		t.Fatalf("opportunistic cache write missing: %v", err)
	}
	if rec.FileID != "DIRECT1" {
		t.Errorf("cached file_id = %q", rec.FileID)
	}
}

func TestDistributeCloudChannel(t *testing.T) {
	api := &fakeAPI{videoFileID: "CH42"}
	b := newTestBot(t, api, &fakeResolver{})
	config.CloudChannelID = -100900
	item := &source.Item{SourceID: "1abc123", Title: "Clip"}
	path := writeArtifact(t, item.SourceID, 1024)

	retained, err := b.distribute(context.Background(), testUser(), 222, item, testStatus(api), path)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if retained {
		t.Error("channel-cached upload marked retained")
	}

	videos := api.videos()
	if len(videos) != 2 {
		t.Fatalf("video sends = %d, want channel upload + resend", len(videos))
	}
	if videos[0].ChatID != -100900 {
		t.Errorf("first upload chat = %d, want channel", videos[0].ChatID)
	}
	if !strings.Contains(videos[0].Caption, "1abc123") {
		t.Errorf("channel caption = %q, want source id", videos[0].Caption)
	}
	if fid, ok := videos[1].File.(tgbotapi.FileID); !ok || string(fid) != "CH42" {
		t.Errorf("resend file = %#v, want channel file_id", videos[1].File)
	}

	rec, err := b.store.GetVideo(context.Background(), "1abc123")
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if rec.FileID != "CH42" {
		t.Errorf("cached file_id = %q, want CH42", rec.FileID)
	}
}

func TestDistributeChannelFailureFallsBackToDirect(t *testing.T) {
	api := &fakeAPI{videoFileID: "FALL1", failChatID: -100900}
	b := newTestBot(t, api, &fakeResolver{})
	config.CloudChannelID = -100900
	item := &source.Item{SourceID: "1abc123", Title: "Clip"}
	path := writeArtifact(t, item.SourceID, 1024)

	retained, err := b.distribute(context.Background(), testUser(), 222, item, testStatus(api), path)
	if err != nil {
		t.Fatalf("distribute after channel failure: %v", err)
	}
	if retained {
		t.Error("fallback upload marked retained")
	}

	videos := api.videos()
	if len(videos) != 1 || videos[0].ChatID != 222 {
		t.Fatalf("videos = %+v, want single direct upload", videos)
	}
}

func TestDistributeStreamLink(t *testing.T) {
	api := &fakeAPI{}
	b := newTestBot(t, api, &fakeResolver{})
	config.PublicURL = "https://vault.example.com"
	item := &source.Item{SourceID: "1abc123", Title: "Big Clip"}
	path := writeArtifact(t, item.SourceID, config.InlineLimit+1)

	retained, err := b.distribute(context.Background(), testUser(), 222, item, testStatus(api), path)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if !retained {
		t.Error("stream-linked artifact not retained")
	}
	if len(api.videos()) != 0 {
		t.Error("oversized file was uploaded inline")
	}

	texts := api.messageTexts()
	if len(texts) != 1 {
		t.Fatalf("texts = %q", texts)
	}
	if !strings.Contains(texts[0], "https://vault.example.com/files/1abc123.mp4") {
		t.Errorf("link message = %q", texts[0])
	}
	if !strings.Contains(texts[0], "too large") {
		t.Errorf("link message = %q", texts[0])
	}
}

func TestDistributeStreamLinkExpiresArtifact(t *testing.T) {
	api := &fakeAPI{}
	b := newTestBot(t, api, &fakeResolver{})
	config.PublicURL = "https://vault.example.com"
	oldRetention := config.StreamRetention
	config.StreamRetention = 20 * time.Millisecond
	t.Cleanup(func() { config.StreamRetention = oldRetention })

	item := &source.Item{SourceID: "1abc123", Title: "Big Clip"}
	path := writeArtifact(t, item.SourceID, config.InlineLimit+1)

	retained, err := b.distribute(context.Background(), testUser(), 222, item, testStatus(api), path)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if !retained {
		t.Fatal("stream-linked artifact not retained")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("artifact still present after retention window")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
