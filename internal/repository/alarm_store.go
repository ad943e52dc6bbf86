package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrAlarmNotFound 闹钟不存在
var ErrAlarmNotFound = errors.New("alarm not found")

// AlarmRepository 闹钟存储
type AlarmRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlarmRepository 创建闹钟存储
func NewAlarmRepository(db *sql.DB, logger *zap.Logger) *AlarmRepository {
	return &AlarmRepository{
		db:     db,
		logger: logger,
	}
}

const alarmColumns = `
	alarm_id, label, hour, minute, repeat_days, window_minutes,
	smart_wake, enabled, trigger_ids, next_fire_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlarm(row rowScanner) (*models.AlarmDefinition, error) {
	var (
		alarm      models.AlarmDefinition
		repeatDays []int64
		triggerIDs []string
		nextFireAt sql.NullTime
	)
	err := row.Scan(
		&alarm.ID,
		&alarm.Label,
		&alarm.TimeOfDay.Hour,
		&alarm.TimeOfDay.Minute,
		pq.Array(&repeatDays),
		&alarm.WindowMinutes,
		&alarm.SmartWakeEnabled,
		&alarm.Enabled,
		pq.Array(&triggerIDs),
		&nextFireAt,
	)
	if err != nil {
		return nil, err
	}

	for _, d := range repeatDays {
		alarm.RepeatDays = append(alarm.RepeatDays, time.Weekday(d))
	}
	alarm.TriggerIDs = triggerIDs
	if nextFireAt.Valid {
		t := nextFireAt.Time
		alarm.NextFireAt = &t
	}
	return &alarm, nil
}

// List 获取所有闹钟
func (r *AlarmRepository) List(ctx context.Context) ([]models.AlarmDefinition, error) {
	query := `SELECT` + alarmColumns + `
		FROM wake_alarms
		ORDER BY hour, minute, alarm_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list alarms: %w", err)
	}
	defer rows.Close()

	var alarms []models.AlarmDefinition
	for rows.Next() {
		alarm, err := scanAlarm(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alarm: %w", err)
		}
		alarms = append(alarms, *alarm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alarms: %w", err)
	}
	return alarms, nil
}

// Get 获取单个闹钟
func (r *AlarmRepository) Get(ctx context.Context, alarmID string) (*models.AlarmDefinition, error) {
	if alarmID == "" {
		return nil, fmt.Errorf("alarm_id is required")
	}
	query := `SELECT` + alarmColumns + `
		FROM wake_alarms
		WHERE alarm_id = $1
	`
	alarm, err := scanAlarm(r.db.QueryRowContext(ctx, query, alarmID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlarmNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alarm: %w", err)
	}
	return alarm, nil
}

// Upsert 保存闹钟定义（不修改调度结果）
func (r *AlarmRepository) Upsert(ctx context.Context, alarm models.AlarmDefinition) error {
	if alarm.ID == "" {
		return fmt.Errorf("alarm_id is required")
	}
	days := make([]int64, 0, len(alarm.RepeatDays))
	for _, d := range alarm.SortedRepeatDays() {
		days = append(days, int64(d))
	}

	query := `
		INSERT INTO wake_alarms (
			alarm_id, label, hour, minute, repeat_days, window_minutes, smart_wake, enabled, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (alarm_id) DO UPDATE SET
			label = EXCLUDED.label,
			hour = EXCLUDED.hour,
			minute = EXCLUDED.minute,
			repeat_days = EXCLUDED.repeat_days,
			window_minutes = EXCLUDED.window_minutes,
			smart_wake = EXCLUDED.smart_wake,
			enabled = EXCLUDED.enabled,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		alarm.ID,
		alarm.Label,
		alarm.TimeOfDay.Hour,
		alarm.TimeOfDay.Minute,
		pq.Array(days),
		alarm.WindowMinutes,
		alarm.SmartWakeEnabled,
		alarm.Enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert alarm: %w", err)
	}
	return nil
}

// Persist 回写调度结果（触发 ID 与下一次响铃时间）
func (r *AlarmRepository) Persist(ctx context.Context, alarmID string, triggerIDs []string, nextFireAt *time.Time) error {
	if triggerIDs == nil {
		triggerIDs = []string{}
	}
	var next interface{}
	if nextFireAt != nil {
		next = *nextFireAt
	}

	query := `
		UPDATE wake_alarms
		SET trigger_ids = $2, next_fire_at = $3, updated_at = NOW()
		WHERE alarm_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, alarmID, pq.StringArray(triggerIDs), next)
	if err != nil {
		return fmt.Errorf("failed to persist trigger ids: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrAlarmNotFound
	}

	r.logger.Debug("Persisted alarm triggers",
		zap.String("alarm_id", alarmID),
		zap.Int("trigger_count", len(triggerIDs)),
	)
	return nil
}

// Delete 删除闹钟
func (r *AlarmRepository) Delete(ctx context.Context, alarmID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM wake_alarms WHERE alarm_id = $1`, alarmID)
	if err != nil {
		return fmt.Errorf("failed to delete alarm: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrAlarmNotFound
	}
	return nil
}

// ListExpiredOneTime 下一次响铃时间早于 before 的单次闹钟
func (r *AlarmRepository) ListExpiredOneTime(ctx context.Context, before time.Time) ([]string, error) {
	query := `
		SELECT alarm_id
		FROM wake_alarms
		WHERE cardinality(repeat_days) = 0
		  AND next_fire_at IS NOT NULL
		  AND next_fire_at < $1
	`
	rows, err := r.db.QueryContext(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired alarms: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan alarm id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
