package bot

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/okatsuo/teravault/internal/config"
	"github.com/okatsuo/teravault/internal/source"
)

func (b *Bot) isAdmin(userID int64) bool {
	return config.AdminID != 0 && userID == config.AdminID
}

func (b *Bot) handleUsers(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From.ID) {
		return
	}
	ids, err := b.store.AllUserIDs(ctx)
	if err != nil {
		b.reply(msg.Chat.ID, "❌ Failed to read the user list.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("📊 <b>Total Users:</b> %d", len(ids)))
}

func (b *Bot) handleBroadcast(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From.ID) {
		return
	}
	text := strings.TrimSpace(msg.CommandArguments())
	if text == "" {
		b.reply(msg.Chat.ID, "⚠️ <b>Usage:</b> /broadcast &lt;message&gt;")
		return
	}

	ids, err := b.store.AllUserIDs(ctx)
	if err != nil {
		b.reply(msg.Chat.ID, "❌ Failed to read the user list.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("📣 <b>Broadcasting to %d users...</b>", len(ids)))

	sent := 0
	for _, id := range ids {
		m := tgbotapi.NewMessage(id, text)
		m.ParseMode = tgbotapi.ModeHTML
		if _, err := b.api.Send(m); err != nil {
			log.Debug().Err(err).Int64("user_id", id).Msg("broadcast delivery failed")
		} else {
			sent++
		}
		time.Sleep(config.BroadcastPause)
	}

	b.reply(msg.Chat.ID, fmt.Sprintf("✅ <b>Broadcast Complete!</b>\n\nSent to %d/%d users.", sent, len(ids)))
}

func (b *Bot) handleDel(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From.ID) {
		return
	}
	raw := strings.TrimSpace(msg.CommandArguments())
	if raw == "" {
		b.reply(msg.Chat.ID, "⚠️ <b>Usage:</b> /del &lt;terabox_id&gt;")
		return
	}

	id := source.NormalizeID(raw)
	deleted, err := b.store.DeleteVideo(ctx, id)
	if err != nil {
		b.reply(msg.Chat.ID, "❌ Failed to delete from database.")
		return
	}
	if deleted {
		b.reply(msg.Chat.ID, fmt.Sprintf("✅ <b>Deleted:</b> <code>%s</code> from database.", html.EscapeString(id)))
	} else {
		b.reply(msg.Chat.ID, fmt.Sprintf("❌ <b>Not Found:</b> <code>%s</code> in database.", html.EscapeString(id)))
	}
}

// handleSetKey swaps the resolver API key for the rest of the process
// lifetime. Useful when the upstream rotates keys without a redeploy.
func (b *Bot) handleSetKey(msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From.ID) {
		return
	}
	key := strings.TrimSpace(msg.CommandArguments())
	if key == "" {
		b.reply(msg.Chat.ID, "⚠️ <b>Usage:</b> /setkey &lt;value&gt;")
		return
	}
	b.setKey(key)
	b.reply(msg.Chat.ID, "✅ Resolver key updated.")
}
