package repository

import "time"

type ArchiveStatus string

const (
	ArchiveStatusArchived ArchiveStatus = "archived"
	ArchiveStatusFailed   ArchiveStatus = "failed"
)

type ArchivedSession struct {
	ID               string
	GuildID          string
	VoiceChannelID   string
	VoiceChannelName string
	ThreadID         string
	StartedAt        time.Time
	EndedAt          time.Time
	DurationSeconds  int64
	ParticipantIDs   []string
	Status           ArchiveStatus
	CreatedAt        time.Time
}
