package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/okatsuo/teravault/internal/config"
	"github.com/okatsuo/teravault/internal/resolver"
	"github.com/okatsuo/teravault/internal/store"
	"github.com/okatsuo/teravault/internal/transfer"
)

// messenger is the slice of the Telegram client the handlers use. Tests
// substitute a recording fake; *tgbotapi.BotAPI satisfies it.
type messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// downloader matches transfer.Engine.Download.
type downloader interface {
	Download(ctx context.Context, url, dest string, sess *transfer.Session, onProgress func(transfer.Progress)) error
}

type Bot struct {
	tg       *tgbotapi.BotAPI
	api      messenger
	store    store.Store
	resolver resolver.Resolver
	engine   downloader
	registry *transfer.Registry

	keyMu       sync.RWMutex
	resolverKey string
}

func New(tg *tgbotapi.BotAPI, st store.Store) *Bot {
	b := &Bot{
		tg:          tg,
		api:         tg,
		store:       st,
		engine:      transfer.NewEngine(),
		registry:    transfer.NewRegistry(config.MaxConcurrentTransfers),
		resolverKey: config.ResolverAPIKey,
	}
	b.resolver = resolver.New(b.currentKey)
	return b
}

func (b *Bot) currentKey() string {
	b.keyMu.RLock()
	defer b.keyMu.RUnlock()
	return b.resolverKey
}

func (b *Bot) setKey(key string) {
	b.keyMu.Lock()
	b.resolverKey = key
	b.keyMu.Unlock()
}

// Run polls for updates until ctx is cancelled. Each update is handled in
// its own goroutine so a slow transfer never stalls the loop.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.tg.GetUpdatesChan(u)

	log.Info().Str("username", b.tg.Self.UserName).Msg("bot polling for updates")

	for {
		select {
		case <-ctx.Done():
			b.tg.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go b.safeHandle(ctx, update)
		}
	}
}

func (b *Bot) safeHandle(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("update handler panicked")
		}
	}()
	b.handleUpdate(ctx, update)
}
