package bot

import (
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/okatsuo/teravault/internal/alerts"
	"github.com/okatsuo/teravault/internal/config"
	"github.com/okatsuo/teravault/internal/media"
	"github.com/okatsuo/teravault/internal/source"
	"github.com/okatsuo/teravault/internal/transfer"
	"github.com/okatsuo/teravault/internal/util"
)

// tooLargeError marks an artifact that exceeds the inline limit with no
// stream endpoint configured and no successful size reduction.
type tooLargeError struct {
	size int64
}

func (e *tooLargeError) Error() string {
	return fmt.Sprintf("file too large to deliver: %s", transfer.FormatSize(e.size))
}

// distribute delivers the finished artifact. Small files go through
// Telegram (preferring a one-time cloud channel upload whose file_id is
// cached and resent); oversized files fall back to a retained stream
// link, or a size-reduction transcode when no public URL is configured.
// Returns whether the artifact must outlive the request.
func (b *Bot) distribute(ctx context.Context, user *tgbotapi.User, chatID int64, item *source.Item, st *statusMessage, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	size := info.Size()

	if size > config.InlineLimit {
		if config.PublicURL != "" {
			b.sendStreamLink(chatID, item, size)
			scheduleRetention(item.SourceID)
			return true, nil
		}

		reduced, ok := b.tryReduce(ctx, item, st, path)
		if !ok {
			return false, &tooLargeError{size: size}
		}
		path = reduced
	}

	caption := fmt.Sprintf("🎬 <b>%s</b>", html.EscapeString(item.Title))

	if config.CloudChannelID != 0 {
		channelCaption := fmt.Sprintf(
			"🆔: %s\n🎬: %s\n\n👤 <b>Requested by:</b> %s\n🆔 <b>User ID:</b> <code>%d</code>",
			item.SourceID, html.EscapeString(item.Title), html.EscapeString(displayName(user)), user.ID)

		sent, err := b.uploadVideo(config.CloudChannelID, path, channelCaption, item, st)
		if err == nil && sent.Video != nil {
			fileID := sent.Video.FileID
			if err := b.store.PutVideo(ctx, item.SourceID, fileID, item.Title); err != nil {
				log.Error().Err(err).Str("source_id", item.SourceID).Msg("cache write failed")
				alerts.StoreDegraded(config.StoreBackend, err)
			}
			alerts.CloudUploaded(item.SourceID, item.Title, size)

			resend := tgbotapi.NewVideo(chatID, tgbotapi.FileID(fileID))
			resend.Caption = caption
			resend.ParseMode = tgbotapi.ModeHTML
			resend.SupportsStreaming = true
			_, rerr := b.api.Send(resend)
			if rerr == nil {
				return false, nil
			}
			log.Warn().Err(rerr).Msg("file_id resend failed, uploading directly")
		} else if err != nil {
			log.Error().Err(err).Int64("channel", config.CloudChannelID).Msg("cloud channel upload failed")
		}
	}

	sent, err := b.uploadVideo(chatID, path, caption, item, st)
	if err != nil {
		log.Error().Err(err).Str("source_id", item.SourceID).Msg("upload to user failed")
		return false, err
	}
	if sent.Video != nil {
		if err := b.store.PutVideo(ctx, item.SourceID, sent.Video.FileID, item.Title); err != nil {
			log.Warn().Err(err).Str("source_id", item.SourceID).Msg("cache write failed")
		}
	}
	return false, nil
}

// tryReduce transcodes toward the inline limit. Best-effort; returns the
// reduced path only when the result actually fits.
func (b *Bot) tryReduce(ctx context.Context, item *source.Item, st *statusMessage, path string) (string, bool) {
	st.Edit("🗜 <b>Compressing Video...</b>\nTrying to fit it under the upload limit.")

	reduced := filepath.Join(config.DownloadsDir, item.SourceID+".reduced.mp4")
	// Aim under the limit with headroom for container overhead.
	target := config.InlineLimit * 95 / 100
	if err := media.TranscodeToSize(ctx, path, reduced, int64(target)); err != nil {
		log.Warn().Err(err).Str("source_id", item.SourceID).Msg("size-reduction transcode failed")
		return "", false
	}
	info, err := os.Stat(reduced)
	if err != nil || info.Size() > config.InlineLimit {
		os.Remove(reduced)
		return "", false
	}
	return reduced, true
}

func (b *Bot) sendStreamLink(chatID int64, item *source.Item, size int64) {
	link := fmt.Sprintf("%s/files/%s.mp4", config.PublicURL, item.SourceID)
	b.reply(chatID, fmt.Sprintf(
		"⚠️ <b>File too large for Telegram!</b> (%s)\n\n🔗 <b>Direct Stream Link:</b>\n%s\n\n<i>The link expires in %d minutes.</i>",
		transfer.FormatSize(size), link, int(config.StreamRetention.Minutes())))
}

func scheduleRetention(sourceID string) {
	time.AfterFunc(config.StreamRetention, func() {
		util.CleanupSourceFiles(sourceID)
	})
}

// uploadVideo streams a local file to Telegram, driving "Uploading..."
// status edits from a counting reader wrapper.
func (b *Bot) uploadVideo(chatID int64, path, caption string, item *source.Item, st *statusMessage) (tgbotapi.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return tgbotapi.Message{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return tgbotapi.Message{}, err
	}

	onProgress, stop := progressConsumer(st, renderUpload)
	defer stop()

	pr := &progressReader{
		r:          f,
		total:      info.Size(),
		interval:   config.ProgressInterval,
		onProgress: onProgress,
	}

	video := tgbotapi.NewVideo(chatID, tgbotapi.FileReader{
		Name:   util.SanitizeFilename(item.Title) + ".mp4",
		Reader: pr,
	})
	video.Caption = caption
	video.ParseMode = tgbotapi.ModeHTML
	video.SupportsStreaming = true
	if item.DurationSeconds > 0 {
		video.Duration = int(item.DurationSeconds)
	}
	if item.ThumbnailURL != "" {
		video.Thumb = tgbotapi.FileURL(item.ThumbnailURL)
	}

	return b.api.Send(video)
}

// progressReader reports consumed bytes while Telegram reads the upload.
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	last       time.Time
	interval   time.Duration
	onProgress func(transfer.Progress)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.read += int64(n)
	if p.onProgress != nil && p.total > 0 {
		now := time.Now()
		if p.read >= p.total || now.Sub(p.last) >= p.interval {
			p.last = now
			p.onProgress(transfer.Progress{
				Percent:    float64(p.read) / float64(p.total) * 100,
				Downloaded: p.read,
				Total:      p.total,
			})
		}
	}
	return n, err
}
