package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/vcthread/internal/discord"
	"github.com/foxseedlab/vcthread/internal/webhook"
)

// 変更容易性を高めるため、time.DateTime をあえて指定していない
const summaryTimeLayout = "2006-01-02 15:04:05"

type sessionSummary struct {
	session  VoiceSession
	endedAt  time.Time
	duration time.Duration
}

func newSessionSummary(s VoiceSession, endedAt time.Time) sessionSummary {
	d := endedAt.Sub(s.StartedAt)
	if d < 0 {
		d = 0
	}
	return sessionSummary{session: s, endedAt: endedAt, duration: d}
}

func (s sessionSummary) durationSeconds() int64 {
	return int64(s.duration / time.Second)
}

func buildSummaryText(sum sessionSummary, timezone string, loc *time.Location) string {
	startText := sum.session.StartedAt.In(safeLocation(loc)).Format(summaryTimeLayout)
	endText := sum.endedAt.In(safeLocation(loc)).Format(summaryTimeLayout)
	lines := []string{
		messageSummaryTitle,
		fmt.Sprintf(messageSummaryChannelFormat, sum.session.VoiceChannelName),
		fmt.Sprintf(messageSummaryPeriodFormat, startText, endText, timezone),
		fmt.Sprintf(messageSummaryDurationFormat, formatElapsedHMS(sum.duration)),
		fmt.Sprintf(messageSummaryParticipantsFormat, len(sum.session.Participants), participantMentions(sum.session.Participants)),
	}
	return strings.Join(lines, "\n")
}

func buildSummaryWebhookPayload(eventID, guildID string, sum sessionSummary, timezone string, loc *time.Location, archived bool) webhook.SessionSummaryPayload {
	participants := make([]webhook.SessionSummaryParticipant, 0, len(sum.session.Participants))
	for _, id := range sum.session.Participants {
		participants = append(participants, webhook.SessionSummaryParticipant{
			UserID:  id,
			Mention: discord.UserMention(id),
		})
	}
	return webhook.SessionSummaryPayload{
		SchemaVersion:    webhook.SessionSummaryWebhookSchemaVersion,
		EventID:          eventID,
		DiscordServerID:  guildID,
		VoiceChannelID:   sum.session.VoiceChannelID,
		VoiceChannelName: sum.session.VoiceChannelName,
		ThreadID:         sum.session.ThreadID,
		StartAt:          sum.session.StartedAt.In(safeLocation(loc)).Format(time.RFC3339),
		EndAt:            sum.endedAt.In(safeLocation(loc)).Format(time.RFC3339),
		Timezone:         timezone,
		DurationSeconds:  sum.durationSeconds(),
		ParticipantCount: len(participants),
		Participants:     participants,
		Archived:         archived,
	}
}

func formatElapsedHMS(d time.Duration) string {
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func safeLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
