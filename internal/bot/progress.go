package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/okatsuo/teravault/internal/transfer"
)

// statusMessage is the single editable message a request shows its state
// through. All edits go through one place so progress samples arriving
// from the copy loop never interleave.
type statusMessage struct {
	api       messenger
	chatID    int64
	messageID int
	markup    *tgbotapi.InlineKeyboardMarkup
	lastText  string
}

func cancelKeyboard(ownerID int64) *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", fmt.Sprintf("cancel:%d", ownerID)),
		),
	)
	return &kb
}

func newStatus(api messenger, chatID int64, text string, ownerID int64) (*statusMessage, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	markup := cancelKeyboard(ownerID)
	msg.ReplyMarkup = *markup

	sent, err := api.Send(msg)
	if err != nil {
		return nil, err
	}
	return &statusMessage{
		api:       api,
		chatID:    chatID,
		messageID: sent.MessageID,
		markup:    markup,
		lastText:  text,
	}, nil
}

func (s *statusMessage) Edit(text string) {
	if text == s.lastText {
		return
	}
	s.lastText = text

	edit := tgbotapi.NewEditMessageText(s.chatID, s.messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	if s.markup != nil {
		edit.ReplyMarkup = s.markup
	}
	if _, err := s.api.Send(edit); err != nil {
		log.Debug().Err(err).Msg("status edit failed")
	}
}

func (s *statusMessage) Delete() {
	if _, err := s.api.Request(tgbotapi.NewDeleteMessage(s.chatID, s.messageID)); err != nil {
		log.Debug().Err(err).Msg("status delete failed")
	}
}

// progressConsumer returns a callback safe to call from the transfer
// goroutine and the stop func that drains it. Samples are pushed over a
// depth-1 channel; bursts are dropped rather than queued so the edit
// loop never falls behind the download.
func progressConsumer(s *statusMessage, render func(transfer.Progress) string) (func(transfer.Progress), func()) {
	ch := make(chan transfer.Progress, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for p := range ch {
			s.Edit(render(p))
		}
	}()

	cb := func(p transfer.Progress) {
		select {
		case ch <- p:
		default:
		}
	}
	stop := func() {
		close(ch)
		<-done
	}
	return cb, stop
}

func renderDownload(p transfer.Progress) string {
	return fmt.Sprintf(
		"🎬 <b>Downloading Video...</b>\n\n"+
			"<b>Progress:</b> %s %.1f%%\n"+
			"<b>Speed:</b> %s 🚀\n"+
			"<b>ETA:</b> %s ⏳",
		transfer.Bar(p.Percent), p.Percent,
		transfer.FormatSpeed(p.Speed),
		transfer.FormatETA(p.ETA),
	)
}

func renderUpload(p transfer.Progress) string {
	return fmt.Sprintf(
		"📤 <b>Uploading Video...</b>\n\n"+
			"<b>Progress:</b> %s %.1f%%",
		transfer.Bar(p.Percent), p.Percent,
	)
}
