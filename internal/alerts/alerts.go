package alerts

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/okatsuo/teravault/internal/config"
)

// Operational notifications to the log channel. Every alert is
// fire-and-forget: failures to deliver are logged and never propagate
// into the pipeline that raised them.

var (
	mu                sync.Mutex
	bot               *tgbotapi.BotAPI
	categoryCooldowns = make(map[string]time.Time)
)

// Init wires the shared bot client. Alerts are silently dropped until it
// is called, and whenever LOG_CHANNEL is unset.
func Init(b *tgbotapi.BotAPI) {
	mu.Lock()
	bot = b
	mu.Unlock()
}

func send(category string, cooldown time.Duration, title, description string, fields map[string]string) {
	mu.Lock()
	b := bot
	now := time.Now()
	if cooldown > 0 {
		if last, ok := categoryCooldowns[category]; ok && now.Sub(last) < cooldown {
			mu.Unlock()
			return
		}
	}
	categoryCooldowns[category] = now
	mu.Unlock()

	if b == nil || config.LogChannelID == 0 {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b>\n%s", escape(title), escape(truncate(description, 2048)))
	for k, v := range fields {
		if v == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n<b>%s:</b> %s", escape(k), escape(truncate(v, 500)))
	}

	msg := tgbotapi.NewMessage(config.LogChannelID, sb.String())
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	go func() {
		if _, err := b.Send(msg); err != nil {
			log.Warn().Err(err).Str("category", category).Msg("alert delivery failed")
		}
	}()
}

func BotStarted(username string) {
	send("bot-start", 0, "✅ Bot Started", fmt.Sprintf("@%s is up and polling", username), nil)
}

func BotStopping() {
	send("bot-stop", 0, "🛑 Bot Stopping", "shutting down", nil)
}

func NewUser(userID int64, displayName, username string) {
	handle := ""
	if username != "" {
		handle = "@" + username
	}
	send("new-user", 0, "👤 New User", displayName, map[string]string{
		"ID":       fmt.Sprint(userID),
		"Username": handle,
	})
}

func CloudUploaded(sourceID, title string, sizeBytes int64) {
	send("cloud-upload", 0, "☁️ Cached to Channel", title, map[string]string{
		"Source": sourceID,
		"Size":   fmt.Sprintf("%.2f MB", float64(sizeBytes)/1024/1024),
	})
}

func TransferFailed(sourceID, url string, err error) {
	send("transfer", 5*time.Second, "❌ Transfer Failed", err.Error(), map[string]string{
		"Source": sourceID,
		"URL":    truncate(url, 200),
	})
}

func ResolverFailed(shareURL string, err error) {
	send("resolver", 10*time.Second, "⚠️ Resolver Failed", err.Error(), map[string]string{
		"URL": truncate(shareURL, 200),
	})
}

func StoreDegraded(backend string, err error) {
	send("store", 60*time.Second, "🔥 Store Degraded", err.Error(), map[string]string{
		"Backend": backend,
	})
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

// truncate caps s at maxLen bytes, backing up so the cut never lands
// inside a multibyte rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
