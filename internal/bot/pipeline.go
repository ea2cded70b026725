package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/okatsuo/teravault/internal/alerts"
	"github.com/okatsuo/teravault/internal/config"
	"github.com/okatsuo/teravault/internal/media"
	"github.com/okatsuo/teravault/internal/source"
	"github.com/okatsuo/teravault/internal/store"
	"github.com/okatsuo/teravault/internal/transfer"
	"github.com/okatsuo/teravault/internal/util"
)

// handleLink runs the full request pipeline for one message containing a
// share link: cache lookup, resolve, gated download, post-processing and
// distribution.
func (b *Bot) handleLink(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	user := msg.From

	item, err := source.Parse(msg.Text)
	if err != nil {
		b.reply(chatID, "❌ <b>Invalid Link</b>\nPlease send a valid TeraBox link.")
		return
	}

	lg := log.With().Str("job", uuid.NewString()).Str("source_id", item.SourceID).Logger()

	if err := b.store.AddUser(ctx, user.ID, displayName(user), user.UserName); err != nil {
		lg.Warn().Err(err).Int64("user_id", user.ID).Msg("user registration failed")
	}

	if rec, err := b.store.GetVideo(ctx, item.SourceID); err == nil {
		if b.sendCached(chatID, rec) {
			lg.Info().Msg("served from cache")
			return
		}
		// Stale file_id, most likely deleted from the channel. Refetch.
		lg.Warn().Msg("cached handle rejected, refetching")
	} else if !errors.Is(err, store.ErrNotFound) {
		lg.Error().Err(err).Msg("cache lookup failed")
		alerts.StoreDegraded(config.StoreBackend, err)
	}

	sess, err := b.registry.Begin(user.ID)
	if err != nil {
		busy := tgbotapi.NewMessage(chatID, "⚠️ <b>You already have an active transfer.</b>\nCancel it first or wait for it to finish.")
		busy.ParseMode = tgbotapi.ModeHTML
		busy.ReplyMarkup = *cancelKeyboard(user.ID)
		if _, err := b.api.Send(busy); err != nil {
			lg.Warn().Err(err).Msg("send failed")
		}
		return
	}
	defer b.registry.End(user.ID)

	retained := false
	defer func() {
		if !retained {
			util.CleanupSourceFiles(item.SourceID)
		}
	}()

	st, err := newStatus(b.api, chatID, "🔍 <b>Analyzing Link...</b>\nPlease wait a moment.", user.ID)
	if err != nil {
		lg.Warn().Err(err).Msg("status message failed")
		return
	}
	deleteStatus := true
	defer func() {
		if deleteStatus {
			st.Delete()
		}
	}()
	fail := func(text string) {
		st.markup = nil
		st.Edit(text)
		deleteStatus = false
	}

	res, err := b.resolver.Resolve(ctx, item.ShareURL)
	if err != nil {
		lg.Error().Err(err).Str("share_url", item.ShareURL).Msg("resolve failed")
		alerts.ResolverFailed(item.ShareURL, err)
		fail("❌ " + util.ToUserError(err))
		return
	}
	item.ResolvedURL = res.DirectURL
	item.Title = res.Title
	item.ThumbnailURL = res.ThumbnailURL
	item.DurationSeconds = res.DurationSeconds
	item.Width = res.Width
	item.Height = res.Height

	st.Edit(fmt.Sprintf(
		"🎬 <b>Found Video!</b>\n<b>Title:</b> %s\n⬇️ Starting download...",
		html.EscapeString(item.Title)))

	if !b.registry.TryAcquire() {
		st.Edit("⏳ <b>Queued...</b>\nWaiting for a free download slot.")
		if err := b.registry.Acquire(ctx); err != nil {
			fail("❌ " + util.ToUserError(err))
			return
		}
	}
	defer b.registry.Release()

	if sess.Cancelled() {
		fail("❌ " + util.ToUserError(transfer.ErrCancelled))
		return
	}

	dest := filepath.Join(config.DownloadsDir, item.SourceID+".mp4")
	onProgress, stopProgress := progressConsumer(st, renderDownload)
	err = b.engine.Download(ctx, item.ResolvedURL, dest, sess, onProgress)
	stopProgress()
	if err != nil {
		if !errors.Is(err, transfer.ErrCancelled) {
			lg.Error().Err(err).Msg("download failed")
			alerts.TransferFailed(item.SourceID, item.ResolvedURL, err)
		}
		fail("❌ " + util.ToUserError(err))
		return
	}

	if err := media.RemuxFaststart(ctx, dest); err != nil {
		lg.Warn().Err(err).Msg("faststart remux failed, sending original")
	}

	retained, err = b.distribute(ctx, user, chatID, item, st, dest)
	if err != nil {
		var tle *tooLargeError
		if errors.As(err, &tle) {
			fail(fmt.Sprintf(
				"⚠️ <b>File too large for Telegram!</b> (%s)\nCould not reduce it under the %d MB limit.",
				transfer.FormatSize(tle.size), config.InlineLimit/1024/1024))
			return
		}
		lg.Error().Err(err).Msg("delivery failed")
		fail("❌ " + util.ToUserError(err))
		return
	}
}

// sendCached resends a previously stored file handle. Returns false when
// Telegram rejects it so the pipeline falls through to a fresh fetch.
func (b *Bot) sendCached(chatID int64, rec *store.VideoRecord) bool {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FileID(rec.FileID))
	video.Caption = fmt.Sprintf("🎬 <b>%s</b>\n\n⚡️ <i>Fast delivered from Cloud</i>", html.EscapeString(rec.Title))
	video.ParseMode = tgbotapi.ModeHTML
	video.SupportsStreaming = true
	_, err := b.api.Send(video)
	return err == nil
}
