package session

import (
	"time"

	"github.com/foxseedlab/vcthread/internal/config"
	"github.com/foxseedlab/vcthread/internal/discord"
)

type trackedChannels interface {
	Has(voiceChannelID string) bool
}

// Normalizer turns raw gateway payloads into lifecycle events. Removal is
// driven only by channel deletion; an empty voice channel is not removed.
type Normalizer struct {
	cfg       *config.Config
	tracked   trackedChannels
	now       func() time.Time
	botUserID string
}

func NewNormalizer(cfg *config.Config, tracked trackedChannels) *Normalizer {
	return &Normalizer{cfg: cfg, tracked: tracked, now: time.Now}
}

func (n *Normalizer) SetBotUserID(userID string) {
	n.botUserID = userID
}

func (n *Normalizer) NormalizeVoiceState(ev discord.VoiceStateEvent) []Event {
	if ev.GuildID != n.cfg.DiscordGuildID || ev.UserID == "" {
		return nil
	}
	if !n.countsMember(ev.UserID, ev.UserIsBot) {
		return nil
	}
	before, after := ev.BeforeChannel, ev.AfterChannel
	if before != nil && after != nil && before.ID == after.ID {
		return nil
	}

	at := n.now()
	var out []Event
	// Leaves are not filtered by the store here: a queued appearance may not
	// have recorded the session yet, and RecordLeave drops untracked ones.
	if before != nil && (n.isEligible(*before) || n.tracked.Has(before.ID)) {
		out = append(out, Event{Kind: EventMemberLeft, VoiceChannelID: before.ID, VoiceChannelName: before.Name, MemberID: ev.UserID, At: at})
	}
	if after == nil {
		return out
	}
	if !n.tracked.Has(after.ID) {
		if !n.isEligible(*after) {
			return out
		}
		out = append(out, Event{Kind: EventVoiceChannelAppeared, VoiceChannelID: after.ID, VoiceChannelName: after.Name, MemberID: ev.UserID, At: at})
	}
	out = append(out, Event{Kind: EventMemberJoined, VoiceChannelID: after.ID, VoiceChannelName: after.Name, MemberID: ev.UserID, At: at})
	return out
}

func (n *Normalizer) NormalizeChannelDelete(ev discord.ChannelEvent) []Event {
	ch := ev.Channel
	if ch.ID == "" {
		return nil
	}
	if !n.isEligible(ch) && !n.tracked.Has(ch.ID) {
		return nil
	}
	return []Event{{Kind: EventVoiceChannelRemoved, VoiceChannelID: ch.ID, VoiceChannelName: ch.Name, At: n.now()}}
}

func (n *Normalizer) NormalizeChannelUpdate(ev discord.ChannelEvent) []Event {
	ch := ev.Channel
	if ch.ID == "" || ch.Name == "" || ch.Name == ev.BeforeName {
		return nil
	}
	if !n.tracked.Has(ch.ID) {
		return nil
	}
	return []Event{{Kind: EventVoiceChannelRenamed, VoiceChannelID: ch.ID, VoiceChannelName: ch.Name, At: n.now()}}
}

func (n *Normalizer) isEligible(ch discord.ChannelInfo) bool {
	if !ch.IsVoice || ch.ID == "" {
		return false
	}
	if ch.GuildID != "" && ch.GuildID != n.cfg.DiscordGuildID {
		return false
	}
	if ch.ParentID == "" || ch.ParentID != n.cfg.VCCategoryID {
		return false
	}
	return !n.cfg.IsIgnoredChannel(ch.ID)
}

func (n *Normalizer) countsMember(userID string, isBot bool) bool {
	if n.botUserID != "" && userID == n.botUserID {
		return false
	}
	if !isBot {
		return true
	}
	return n.cfg.CountBotsAsParticipants
}
