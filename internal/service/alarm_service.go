package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"
	"github.com/CodingHusk3y/heartwake/internal/notifier"
	"github.com/CodingHusk3y/heartwake/internal/repository"
	"github.com/CodingHusk3y/heartwake/internal/scheduler"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// expiredGrace 单次闹钟过期多久后清理
const expiredGrace = 60 * time.Second

// AlarmStore 闹钟存储（*repository.AlarmRepository 实现）
type AlarmStore interface {
	List(ctx context.Context) ([]models.AlarmDefinition, error)
	Get(ctx context.Context, alarmID string) (*models.AlarmDefinition, error)
	Upsert(ctx context.Context, alarm models.AlarmDefinition) error
	Persist(ctx context.Context, alarmID string, triggerIDs []string, nextFireAt *time.Time) error
	Delete(ctx context.Context, alarmID string) error
	ListExpiredOneTime(ctx context.Context, before time.Time) ([]string, error)
}

// ScheduleResult 一次调度的结果
type ScheduleResult struct {
	AlarmID string                 `json:"alarm_id"`
	Plan    models.TriggerPlan     `json:"plan"`
	Results []models.TriggerResult `json:"results"`
}

// TriggerIDs 成功下发的触发 ID
func (r ScheduleResult) TriggerIDs() []string {
	ids := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		if res.OK() {
			ids = append(ids, res.TriggerID)
		}
	}
	return ids
}

// AlarmService 闹钟调度服务
type AlarmService struct {
	store      AlarmStore
	dispatcher notifier.Dispatcher
	location   *time.Location
	now        func() time.Time
	logger     *zap.Logger
}

// NewAlarmService 创建闹钟调度服务
func NewAlarmService(store AlarmStore, dispatcher notifier.Dispatcher, location *time.Location, logger *zap.Logger) *AlarmService {
	if location == nil {
		location = time.Local
	}
	return &AlarmService{
		store:      store,
		dispatcher: dispatcher,
		location:   location,
		now:        time.Now,
		logger:     logger,
	}
}

func (s *AlarmService) localNow() time.Time {
	return s.now().In(s.location)
}

// List 所有闹钟
func (s *AlarmService) List(ctx context.Context) ([]models.AlarmDefinition, error) {
	return s.store.List(ctx)
}

// Get 获取闹钟
func (s *AlarmService) Get(ctx context.Context, alarmID string) (*models.AlarmDefinition, error) {
	return s.store.Get(ctx, alarmID)
}

// Preview 只计算触发计划，不保存也不下发
func (s *AlarmService) Preview(alarm models.AlarmDefinition) (models.TriggerPlan, error) {
	alarm.WindowMinutes = scheduler.ClampWindow(alarm.WindowMinutes)
	return scheduler.Plan(alarm, s.localNow())
}

// Save 校验并保存闹钟，然后重新调度
// 窗口在这里截断到 [0,180]；窗口不小于距离下一次响铃的时间时返回配置错误，闹钟不保存
func (s *AlarmService) Save(ctx context.Context, alarm models.AlarmDefinition) (*ScheduleResult, error) {
	if alarm.ID == "" {
		alarm.ID = uuid.New().String()
	}
	alarm.WindowMinutes = scheduler.ClampWindow(alarm.WindowMinutes)

	if err := scheduler.Validate(alarm); err != nil {
		return nil, err
	}
	if alarm.Enabled {
		if err := scheduler.CheckWindowFits(alarm, s.localNow()); err != nil {
			return nil, err
		}
	}

	if err := s.store.Upsert(ctx, alarm); err != nil {
		return nil, fmt.Errorf("failed to save alarm: %w", err)
	}
	s.logger.Info("Alarm saved",
		zap.String("alarm_id", alarm.ID),
		zap.String("time_of_day", alarm.TimeOfDay.String()),
		zap.String("repeat", models.RepeatSummary(alarm.RepeatDays)),
		zap.Int("window_minutes", alarm.WindowMinutes),
	)
	return s.Schedule(ctx, alarm.ID)
}

// Schedule 重新调度闹钟：先计算计划，再取消旧触发、下发新触发并回写
func (s *AlarmService) Schedule(ctx context.Context, alarmID string) (*ScheduleResult, error) {
	alarm, err := s.store.Get(ctx, alarmID)
	if err != nil {
		return nil, err
	}
	result := &ScheduleResult{AlarmID: alarm.ID}

	if !alarm.Enabled {
		s.cancelAll(ctx, alarm)
		if err := s.store.Persist(ctx, alarm.ID, nil, nil); err != nil {
			return nil, err
		}
		s.logger.Info("Alarm disabled, triggers cleared", zap.String("alarm_id", alarm.ID))
		return result, nil
	}

	// 配置错误时不动旧触发
	plan, err := scheduler.Plan(*alarm, s.localNow())
	if err != nil {
		return nil, err
	}
	result.Plan = plan

	s.cancelAll(ctx, alarm)

	for _, trigger := range plan.Triggers {
		payload := scheduler.BuildPayload(*alarm, trigger)
		id, err := notifier.Dispatch(ctx, s.dispatcher, trigger, payload)
		if err != nil {
			s.logger.Warn("Dispatcher rejected trigger",
				zap.String("alarm_id", alarm.ID),
				zap.String("kind", string(trigger.Kind)),
				zap.Error(err),
			)
		}
		result.Results = append(result.Results, models.TriggerResult{Trigger: trigger, TriggerID: id, Err: err})
	}

	next := plan.NextFire
	if err := s.store.Persist(ctx, alarm.ID, result.TriggerIDs(), &next); err != nil {
		return result, err
	}

	failure := &models.SchedulingFailure{AlarmID: alarm.ID, Results: result.Results}
	if len(failure.Failed()) > 0 {
		return result, failure
	}

	s.logger.Info("Alarm scheduled",
		zap.String("alarm_id", alarm.ID),
		zap.Int("trigger_count", len(result.Results)),
		zap.Time("next_fire_at", next),
	)
	return result, nil
}

func (s *AlarmService) cancelAll(ctx context.Context, alarm *models.AlarmDefinition) {
	for _, id := range alarm.TriggerIDs {
		if err := s.dispatcher.Cancel(ctx, id); err != nil {
			s.logger.Debug("Failed to cancel trigger, ignoring",
				zap.String("alarm_id", alarm.ID),
				zap.String("trigger_id", id),
				zap.Error(err),
			)
		}
	}
}

// ScheduleAll 调度所有闹钟（单个失败不影响其他闹钟）
func (s *AlarmService) ScheduleAll(ctx context.Context) error {
	alarms, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list alarms: %w", err)
	}

	var errs []error
	for _, alarm := range alarms {
		if _, err := s.Schedule(ctx, alarm.ID); err != nil {
			s.logger.Error("Failed to schedule alarm",
				zap.String("alarm_id", alarm.ID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("alarm %s: %w", alarm.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Delete 取消触发并删除闹钟
func (s *AlarmService) Delete(ctx context.Context, alarmID string) error {
	alarm, err := s.store.Get(ctx, alarmID)
	if err != nil {
		return err
	}
	s.cancelAll(ctx, alarm)
	return s.store.Delete(ctx, alarmID)
}

// HandleDelivered 处理送达回执：单次闹钟响铃后删除；重复闹钟更新下一次响铃时间
func (s *AlarmService) HandleDelivered(ctx context.Context, delivery models.TriggerDelivery) error {
	if delivery.Kind != models.TriggerDeadline {
		return nil
	}
	alarm, err := s.store.Get(ctx, delivery.AlarmID)
	if errors.Is(err, repository.ErrAlarmNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if !alarm.Repeating() {
		s.logger.Info("One-time alarm delivered, deleting", zap.String("alarm_id", alarm.ID))
		return s.store.Delete(ctx, alarm.ID)
	}

	next := scheduler.NextOccurrence(*alarm, s.localNow())
	return s.store.Persist(ctx, alarm.ID, alarm.TriggerIDs, &next)
}

// CleanupExpired 删除已过期超过一分钟的单次闹钟
func (s *AlarmService) CleanupExpired(ctx context.Context) (int, error) {
	ids, err := s.store.ListExpiredOneTime(ctx, s.now().Add(-expiredGrace))
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, id := range ids {
		if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrAlarmNotFound) {
			s.logger.Error("Failed to delete expired alarm", zap.String("alarm_id", id), zap.Error(err))
			continue
		}
		deleted++
	}
	if deleted > 0 {
		s.logger.Info("Expired one-time alarms deleted", zap.Int("count", deleted))
	}
	return deleted, nil
}

// RunMaintenance 定期清理过期闹钟，直到 ctx 取消
func (s *AlarmService) RunMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 立即执行一次
	if _, err := s.CleanupExpired(ctx); err != nil {
		s.logger.Error("Failed to clean up expired alarms", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CleanupExpired(ctx); err != nil {
				s.logger.Error("Failed to clean up expired alarms", zap.Error(err))
			}
		}
	}
}
