package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/CodingHusk3y/heartwake/internal/models"

	"go.uber.org/zap"
)

// DefaultHistoryLimit 会话历史保留条数
const DefaultHistoryLimit = 100

var (
	// ErrSessionNotFound 会话不存在
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidRating 评分超出 1..5
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// SessionRepository 会话历史（最新在前，最多保留 limit 条）
type SessionRepository struct {
	db     *sql.DB
	limit  int
	logger *zap.Logger
}

// NewSessionRepository 创建会话历史存储
func NewSessionRepository(db *sql.DB, limit int, logger *zap.Logger) *SessionRepository {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &SessionRepository{
		db:     db,
		limit:  limit,
		logger: logger,
	}
}

const sessionColumns = `
	session_id, alarm_id, stage, early, wake_at, minutes_early,
	target, window_minutes, rating, created_at`

func scanSession(row rowScanner) (*models.StoredSession, error) {
	var (
		s      models.StoredSession
		stage  string
		rating sql.NullInt64
	)
	err := row.Scan(
		&s.SessionID,
		&s.AlarmID,
		&stage,
		&s.Early,
		&s.WakeAt,
		&s.MinutesEarly,
		&s.Target,
		&s.WindowMinutes,
		&rating,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if s.Stage, err = models.ParseStage(stage); err != nil {
		return nil, err
	}
	if rating.Valid {
		v := int(rating.Int64)
		s.Rating = &v
	}
	return &s, nil
}

// Save 保存会话结果并裁剪历史
func (r *SessionRepository) Save(ctx context.Context, outcome models.SessionOutcome) error {
	if outcome.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO wake_sessions (
			session_id, alarm_id, stage, early, wake_at, minutes_early, target, window_minutes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (session_id) DO NOTHING
	`
	_, err = tx.ExecContext(ctx, insert,
		outcome.SessionID,
		outcome.AlarmID,
		outcome.Stage.String(),
		outcome.Early,
		outcome.WakeAt,
		outcome.MinutesEarly,
		outcome.Target,
		outcome.WindowMinutes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	trim := `
		DELETE FROM wake_sessions
		WHERE session_id NOT IN (
			SELECT session_id FROM wake_sessions ORDER BY created_at DESC LIMIT $1
		)
	`
	result, err := tx.ExecContext(ctx, trim, r.limit)
	if err != nil {
		return fmt.Errorf("failed to trim session history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}

	trimmed, _ := result.RowsAffected()
	r.logger.Info("Session saved",
		zap.String("session_id", outcome.SessionID),
		zap.String("stage", outcome.Stage.String()),
		zap.Bool("early", outcome.Early),
		zap.Int64("trimmed", trimmed),
	)
	return nil
}

// List 最近的会话（最新在前）
func (r *SessionRepository) List(ctx context.Context, limit int) ([]models.StoredSession, error) {
	if limit <= 0 || limit > r.limit {
		limit = r.limit
	}
	query := `SELECT` + sessionColumns + `
		FROM wake_sessions
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.StoredSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// Rate 为会话评分（1..5）
func (r *SessionRepository) Rate(ctx context.Context, sessionID string, rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE wake_sessions SET rating = $2 WHERE session_id = $1`,
		sessionID, rating,
	)
	if err != nil {
		return fmt.Errorf("failed to rate session: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// LatestUnrated 最近一条未评分的会话（没有时返回 nil）
func (r *SessionRepository) LatestUnrated(ctx context.Context) (*models.StoredSession, error) {
	query := `SELECT` + sessionColumns + `
		FROM wake_sessions
		WHERE rating IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	s, err := scanSession(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest unrated session: %w", err)
	}
	return s, nil
}
