package repository

import (
	"context"
	"time"

	"github.com/foxseedlab/vcthread/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	db    rowQuerier
	newID func() string
}

func NewPostgresRepository(db rowQuerier) repository.HistoryRepository {
	return &PostgresRepository{db: db, newID: uuid.NewString}
}

func (r *PostgresRepository) SaveArchivedSession(ctx context.Context, input repository.SaveArchivedSessionInput) (*repository.ArchivedSession, error) {
	participants := input.ParticipantIDs
	if participants == nil {
		participants = []string{}
	}
	row := r.db.QueryRow(ctx,
		`INSERT INTO voice_session_history
		 (id, guild_id, voice_channel_id, voice_channel_name, thread_id, started_at, ended_at, duration_seconds, participant_ids, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at`,
		r.newID(), input.GuildID, input.VoiceChannelID, input.VoiceChannelName, input.ThreadID,
		input.StartedAt, input.EndedAt, durationSeconds(input.StartedAt, input.EndedAt), participants, string(input.Status))

	s := repository.ArchivedSession{
		GuildID:          input.GuildID,
		VoiceChannelID:   input.VoiceChannelID,
		VoiceChannelName: input.VoiceChannelName,
		ThreadID:         input.ThreadID,
		StartedAt:        input.StartedAt,
		EndedAt:          input.EndedAt,
		DurationSeconds:  durationSeconds(input.StartedAt, input.EndedAt),
		ParticipantIDs:   participants,
		Status:           input.Status,
	}
	if err := row.Scan(&s.ID, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func durationSeconds(startedAt, endedAt time.Time) int64 {
	d := endedAt.Sub(startedAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// NoopRepository is used when no database is configured.
type NoopRepository struct{}

func (NoopRepository) SaveArchivedSession(_ context.Context, input repository.SaveArchivedSessionInput) (*repository.ArchivedSession, error) {
	return &repository.ArchivedSession{
		GuildID:          input.GuildID,
		VoiceChannelID:   input.VoiceChannelID,
		VoiceChannelName: input.VoiceChannelName,
		ThreadID:         input.ThreadID,
		StartedAt:        input.StartedAt,
		EndedAt:          input.EndedAt,
		DurationSeconds:  durationSeconds(input.StartedAt, input.EndedAt),
		ParticipantIDs:   input.ParticipantIDs,
		Status:           input.Status,
	}, nil
}
