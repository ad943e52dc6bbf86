package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema 闹钟与会话历史表结构
const Schema = `
CREATE TABLE IF NOT EXISTS wake_alarms (
	alarm_id       TEXT PRIMARY KEY,
	label          TEXT NOT NULL DEFAULT '',
	hour           SMALLINT NOT NULL CHECK (hour BETWEEN 0 AND 23),
	minute         SMALLINT NOT NULL CHECK (minute BETWEEN 0 AND 59),
	repeat_days    INTEGER[] NOT NULL DEFAULT '{}',
	window_minutes SMALLINT NOT NULL DEFAULT 30 CHECK (window_minutes BETWEEN 0 AND 180),
	smart_wake     BOOLEAN NOT NULL DEFAULT TRUE,
	enabled        BOOLEAN NOT NULL DEFAULT TRUE,
	trigger_ids    TEXT[] NOT NULL DEFAULT '{}',
	next_fire_at   TIMESTAMPTZ,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS wake_sessions (
	session_id     TEXT PRIMARY KEY,
	alarm_id       TEXT NOT NULL DEFAULT '',
	stage          TEXT NOT NULL,
	early          BOOLEAN NOT NULL,
	wake_at        TIMESTAMPTZ NOT NULL,
	minutes_early  INTEGER NOT NULL DEFAULT 0,
	target         TIMESTAMPTZ NOT NULL,
	window_minutes SMALLINT NOT NULL DEFAULT 0,
	rating         SMALLINT CHECK (rating BETWEEN 1 AND 5),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_wake_sessions_created_at ON wake_sessions (created_at DESC);
`

// EnsureSchema 建表（幂等）
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
