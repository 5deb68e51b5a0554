package config

import (
	"fmt"
	"slices"
	"time"
)

var validThreadAutoArchiveMinutes = []int{60, 1440, 4320, 10080}

type Config struct {
	Env                          string
	DiscordToken                 string
	DiscordGuildID               string
	VCCategoryID                 string
	VCIgnoredChannelIDs          []string
	ThreadChannelID              string
	ThreadAutoArchiveMinutes     int
	ThreadJoinNotice             bool
	CountBotsAsParticipants      bool
	RenameRequiresManageChannels bool
	PlatformMaxAttempts          int
	PlatformRetryInitialInterval time.Duration
	SummaryTimezone              string
	SummaryWebhookURL            string
	DatabaseURL                  string
	MetricsAddr                  string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if !slices.Contains(validThreadAutoArchiveMinutes, c.ThreadAutoArchiveMinutes) {
		return fmt.Errorf("THREAD_AUTO_ARCHIVE_MINUTES must be one of %v, got %d", validThreadAutoArchiveMinutes, c.ThreadAutoArchiveMinutes)
	}
	if c.PlatformMaxAttempts <= 0 {
		return fmt.Errorf("PLATFORM_MAX_ATTEMPTS must be positive, got %d", c.PlatformMaxAttempts)
	}
	if c.PlatformRetryInitialInterval <= 0 {
		return fmt.Errorf("PLATFORM_RETRY_INITIAL_INTERVAL must be positive, got %s", c.PlatformRetryInitialInterval)
	}
	if slices.Contains(c.VCIgnoredChannelIDs, c.ThreadChannelID) {
		return fmt.Errorf("THREAD_CHANNEL_ID must not be listed in VC_IGNORED_CHANNEL_IDS")
	}
	if c.SummaryTimezone == "" {
		return fmt.Errorf("SUMMARY_TIMEZONE is required")
	}
	if _, err := time.LoadLocation(c.SummaryTimezone); err != nil {
		return fmt.Errorf("SUMMARY_TIMEZONE is invalid: %w", err)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "DISCORD_GUILD_ID", value: c.DiscordGuildID},
		{name: "VC_CATEGORY_ID", value: c.VCCategoryID},
		{name: "THREAD_CHANNEL_ID", value: c.ThreadChannelID},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsIgnoredChannel reports whether channelID is excluded from tracking.
func (c *Config) IsIgnoredChannel(channelID string) bool {
	return slices.Contains(c.VCIgnoredChannelIDs, channelID)
}

// SummaryLocation never fails after Validate; it falls back to UTC otherwise.
func (c *Config) SummaryLocation() *time.Location {
	loc, err := time.LoadLocation(c.SummaryTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
