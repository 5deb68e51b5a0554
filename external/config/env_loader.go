package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/vcthread/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env                          string        `env:"ENV" envDefault:"production"`
	DiscordToken                 string        `env:"DISCORD_TOKEN,required"`
	DiscordGuildID               string        `env:"DISCORD_GUILD_ID,required"`
	VCCategoryID                 string        `env:"VC_CATEGORY_ID,required"`
	VCIgnoredChannelIDs          []string      `env:"VC_IGNORED_CHANNEL_IDS" envSeparator:","`
	ThreadChannelID              string        `env:"THREAD_CHANNEL_ID,required"`
	ThreadAutoArchiveMinutes     int           `env:"THREAD_AUTO_ARCHIVE_MINUTES" envDefault:"1440"`
	ThreadJoinNotice             bool          `env:"THREAD_JOIN_NOTICE" envDefault:"true"`
	CountBotsAsParticipants      bool          `env:"COUNT_BOTS_AS_PARTICIPANTS" envDefault:"false"`
	RenameRequiresManageChannels bool          `env:"RENAME_REQUIRES_MANAGE_CHANNELS" envDefault:"true"`
	PlatformMaxAttempts          int           `env:"PLATFORM_MAX_ATTEMPTS" envDefault:"3"`
	PlatformRetryInitialInterval time.Duration `env:"PLATFORM_RETRY_INITIAL_INTERVAL" envDefault:"500ms"`
	SummaryTimezone              string        `env:"SUMMARY_TIMEZONE" envDefault:"Asia/Tokyo"`
	SummaryWebhookURL            string        `env:"SUMMARY_WEBHOOK_URL"`
	DatabaseURL                  string        `env:"DATABASE_URL"`
	MetricsAddr                  string        `env:"METRICS_ADDR"`
}

// Load reads an optional .env file from the working directory, then the
// process environment. Variables already set in the environment win.
func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                          raw.Env,
		DiscordToken:                 raw.DiscordToken,
		DiscordGuildID:               raw.DiscordGuildID,
		VCCategoryID:                 raw.VCCategoryID,
		VCIgnoredChannelIDs:          compactIDs(raw.VCIgnoredChannelIDs),
		ThreadChannelID:              raw.ThreadChannelID,
		ThreadAutoArchiveMinutes:     raw.ThreadAutoArchiveMinutes,
		ThreadJoinNotice:             raw.ThreadJoinNotice,
		CountBotsAsParticipants:      raw.CountBotsAsParticipants,
		RenameRequiresManageChannels: raw.RenameRequiresManageChannels,
		PlatformMaxAttempts:          raw.PlatformMaxAttempts,
		PlatformRetryInitialInterval: raw.PlatformRetryInitialInterval,
		SummaryTimezone:              raw.SummaryTimezone,
		SummaryWebhookURL:            raw.SummaryWebhookURL,
		DatabaseURL:                  raw.DatabaseURL,
		MetricsAddr:                  raw.MetricsAddr,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func compactIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out = append(out, id)
	}
	return out
}
