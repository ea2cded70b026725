package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/okatsuo/teravault/internal/alerts"
	"github.com/okatsuo/teravault/internal/config"
)

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.handleStart(ctx, msg)
		case "help":
			b.handleHelp(msg)
		case "users":
			b.handleUsers(ctx, msg)
		case "broadcast":
			b.handleBroadcast(ctx, msg)
		case "del":
			b.handleDel(ctx, msg)
		case "setkey":
			b.handleSetKey(msg)
		}
		return
	}

	b.handleLink(ctx, msg)
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	user := msg.From
	if err := b.store.AddUser(ctx, user.ID, displayName(user), user.UserName); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("user registration failed")
	} else {
		alerts.NewUser(user.ID, displayName(user), user.UserName)
	}

	text := fmt.Sprintf(
		"👋 Hi %s!\n\n"+
			"I can help you convert <b>TeraBox</b> links to direct video links!\n\n"+
			"<b>How to use:</b>\n"+
			"Just send me a TeraBox link like:\n"+
			"<code>https://1024terabox.com/s/1jggGfxx...</code>\n\n"+
			"I will fetch the video and send it to you! 🚀",
		html.EscapeString(displayName(user)),
	)
	b.reply(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) {
	b.reply(msg.Chat.ID,
		"ℹ️ <b>How to use:</b>\n\n"+
			"1. Copy a TeraBox link (e.g., <code>https://1024terabox.com/s/...</code>)\n"+
			"2. Paste it here.\n"+
			"3. Wait for the magic! ✨\n\n"+
			"<i>Note: Large files (>50MB) will be sent as a direct stream link due to Telegram limits.</i>")
}

// handleCallback processes the ❌ Cancel button. Only the transfer owner
// or the admin may cancel.
func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	if !strings.HasPrefix(data, "cancel:") {
		return
	}
	targetID, err := strconv.ParseInt(strings.TrimPrefix(data, "cancel:"), 10, 64)
	if err != nil {
		return
	}

	callerID := cb.From.ID
	if callerID != targetID && callerID != config.AdminID {
		b.answerCallback(cb.ID, "This is not your download.")
		return
	}

	if b.registry.Cancel(targetID) {
		b.answerCallback(cb.ID, "Cancelling...")
	} else {
		b.answerCallback(cb.ID, "Nothing to cancel.")
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		log.Debug().Err(err).Msg("callback answer failed")
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}
