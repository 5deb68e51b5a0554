package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE archive_status AS ENUM ('archived', 'failed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS voice_session_history (
		id UUID PRIMARY KEY,
		guild_id TEXT NOT NULL,
		voice_channel_id TEXT NOT NULL,
		voice_channel_name TEXT NOT NULL,
		thread_id TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ NOT NULL,
		duration_seconds BIGINT NOT NULL,
		participant_ids TEXT[] NOT NULL DEFAULT '{}',
		status archive_status NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_voice_session_history_channel ON voice_session_history (guild_id, voice_channel_id, ended_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_voice_session_history_thread ON voice_session_history (thread_id)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
