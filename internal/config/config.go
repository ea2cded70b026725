package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var Version = "dev"

var (
	BotToken       string
	CloudChannelID int64
	LogChannelID   int64
	AdminID        int64

	StoreBackend string
	SQLitePath   string
	MongoURL     string
	MongoDB      string

	Port      string
	PublicURL string
	EnvMode   string

	DownloadsDir string

	ResolverAPIKey string

	MaxConcurrentTransfers int64

	StreamRetention = 30 * time.Minute
	FileRetention   = 45 * time.Minute
)

const (
	// InlineLimit is the largest file Telegram accepts as a bot upload.
	InlineLimit = 50 * 1024 * 1024

	ProgressInterval    = 3 * time.Second
	ProgressBarSegments = 15

	TransferRetries    = 3
	TransferRetryDelay = 2 * time.Second
	TransferTimeout    = 30 * time.Second

	BroadcastPause = 100 * time.Millisecond

	// Floors and caps for the size-reduction transcode path.
	MinTotalBitrateKbps = 300
	MinVideoBitrateKbps = 200
	AudioBitrateKbps    = 96
	MaxTranscodeWidth   = 1280
	MaxTranscodeHeight  = 720
)

func Load() {
	BotToken = os.Getenv("BOT_TOKEN")
	CloudChannelID = envInt64("CLOUD_CHANNEL_ID", 0)
	LogChannelID = envInt64("LOG_CHANNEL_ID", 0)
	AdminID = envInt64("ADMIN_ID", 0)

	StoreBackend = envOrDefault("STORE_BACKEND", "sqlite")
	SQLitePath = envOrDefault("SQLITE_PATH", "teravault.db")
	MongoURL = os.Getenv("MONGO_URL")
	MongoDB = envOrDefault("MONGO_DB", "teravault")

	Port = envOrDefault("PORT", "8080")
	// Empty means no public endpoint: oversized files get the transcode
	// fallback instead of a stream link.
	PublicURL = strings.TrimRight(os.Getenv("PUBLIC_URL"), "/")
	EnvMode = envOrDefault("ENV_MODE", "development")

	DownloadsDir = envOrDefault("DOWNLOADS_DIR", filepath.Join(os.TempDir(), "teravault", "downloads"))

	ResolverAPIKey = envOrDefault("RESOLVER_API_KEY", "iTeraPlay2025")

	MaxConcurrentTransfers = envInt64("MAX_CONCURRENT_TRANSFERS", 2)
	if MaxConcurrentTransfers < 1 {
		MaxConcurrentTransfers = 1
	}

	if CloudChannelID == 0 {
		log.Warn().Msg("CLOUD_CHANNEL_ID is not set, videos will not be archived to a channel")
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
