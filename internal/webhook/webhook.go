package webhook

import "context"

const SessionSummaryWebhookSchemaVersion = "2026-10-01"

type SessionSummaryParticipant struct {
	UserID  string `json:"user_id"`
	Mention string `json:"mention"`
}

type SessionSummaryPayload struct {
	SchemaVersion    string                      `json:"schema_version"`
	EventID          string                      `json:"event_id"`
	DiscordServerID  string                      `json:"discord_server_id"`
	VoiceChannelID   string                      `json:"voice_channel_id"`
	VoiceChannelName string                      `json:"voice_channel_name"`
	ThreadID         string                      `json:"thread_id"`
	StartAt          string                      `json:"start_at"`
	EndAt            string                      `json:"end_at"`
	Timezone         string                      `json:"timezone"`
	DurationSeconds  int64                       `json:"duration_seconds"`
	ParticipantCount int                         `json:"participant_count"`
	Participants     []SessionSummaryParticipant `json:"participants"`
	Archived         bool                        `json:"archived"`
}

type Sender interface {
	SendSessionSummary(ctx context.Context, payload SessionSummaryPayload) error
}
