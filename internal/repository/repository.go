package repository

import (
	"context"
	"time"
)

type SaveArchivedSessionInput struct {
	GuildID          string
	VoiceChannelID   string
	VoiceChannelName string
	ThreadID         string
	StartedAt        time.Time
	EndedAt          time.Time
	ParticipantIDs   []string
	Status           ArchiveStatus
}

// HistoryRepository is an append-only log of archived sessions. It is never
// read back to rebuild live session state.
type HistoryRepository interface {
	SaveArchivedSession(ctx context.Context, input SaveArchivedSessionInput) (*ArchivedSession, error)
}
