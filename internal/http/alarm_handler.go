package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"
	"github.com/CodingHusk3y/heartwake/internal/repository"
	"github.com/CodingHusk3y/heartwake/internal/service"

	"go.uber.org/zap"
)

// AlarmAPI 闹钟调度（*service.AlarmService 实现）
type AlarmAPI interface {
	List(ctx context.Context) ([]models.AlarmDefinition, error)
	Get(ctx context.Context, alarmID string) (*models.AlarmDefinition, error)
	Preview(alarm models.AlarmDefinition) (models.TriggerPlan, error)
	Save(ctx context.Context, alarm models.AlarmDefinition) (*service.ScheduleResult, error)
	Schedule(ctx context.Context, alarmID string) (*service.ScheduleResult, error)
	Delete(ctx context.Context, alarmID string) error
}

// alarmRequest 闹钟保存请求
//
//	{"label": "Work", "time": "06:45", "repeat_days": [1,2,3,4,5], "window_minutes": 20, "smart_wake_enabled": true}
type alarmRequest struct {
	ID               string `json:"id"`
	Label            string `json:"label"`
	Time             string `json:"time"`
	RepeatDays       []int  `json:"repeat_days"` // 0=周日 .. 6=周六
	WindowMinutes    *int   `json:"window_minutes"`
	SmartWakeEnabled bool   `json:"smart_wake_enabled"`
	Enabled          *bool  `json:"enabled"`
}

func (req alarmRequest) toAlarm(defaultWindow int) (models.AlarmDefinition, error) {
	tod, err := models.ParseTimeOfDay(req.Time)
	if err != nil {
		return models.AlarmDefinition{}, models.NewConfigurationError("time", "%v", err)
	}
	alarm := models.AlarmDefinition{
		ID:               req.ID,
		Label:            req.Label,
		TimeOfDay:        tod,
		WindowMinutes:    defaultWindow,
		SmartWakeEnabled: req.SmartWakeEnabled,
		Enabled:          true,
	}
	if req.WindowMinutes != nil {
		alarm.WindowMinutes = *req.WindowMinutes
	}
	if req.Enabled != nil {
		alarm.Enabled = *req.Enabled
	}
	for _, d := range req.RepeatDays {
		alarm.RepeatDays = append(alarm.RepeatDays, time.Weekday(d))
	}
	return alarm, nil
}

// alarmView 闹钟列表项
type alarmView struct {
	models.AlarmDefinition
	Time   string `json:"time"`
	Repeat string `json:"repeat"`
}

func newAlarmView(a models.AlarmDefinition) alarmView {
	return alarmView{AlarmDefinition: a, Time: a.TimeOfDay.String(), Repeat: models.RepeatSummary(a.RepeatDays)}
}

// AlarmHandler 闹钟接口
type AlarmHandler struct {
	alarms        AlarmAPI
	defaultWindow int
	logger        *zap.Logger
}

// NewAlarmHandler 创建闹钟接口
func NewAlarmHandler(alarms AlarmAPI, defaultWindow int, logger *zap.Logger) *AlarmHandler {
	return &AlarmHandler{alarms: alarms, defaultWindow: defaultWindow, logger: logger}
}

// Alarms GET 列表 / POST 保存并调度
func (h *AlarmHandler) Alarms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		alarms, err := h.alarms.List(r.Context())
		if err != nil {
			h.writeError(w, err)
			return
		}
		views := make([]alarmView, 0, len(alarms))
		for _, a := range alarms {
			views = append(views, newAlarmView(a))
		}
		writeJSON(w, http.StatusOK, Ok(views))
	case http.MethodPost, http.MethodPut:
		alarm, ok := h.decodeAlarm(w, r)
		if !ok {
			return
		}
		result, err := h.alarms.Save(r.Context(), alarm)
		h.writeSchedule(w, result, err)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Plan POST 预览触发计划（不保存）
func (h *AlarmHandler) Plan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	alarm, ok := h.decodeAlarm(w, r)
	if !ok {
		return
	}
	plan, err := h.alarms.Preview(alarm)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(plan))
}

// Alarm /alarms/{id}：GET 详情，DELETE 删除，POST /alarms/{id}/schedule 重新调度
func (h *AlarmHandler) Alarm(w http.ResponseWriter, r *http.Request, id, rest string) {
	switch {
	case rest == "schedule" && r.Method == http.MethodPost:
		result, err := h.alarms.Schedule(r.Context(), id)
		h.writeSchedule(w, result, err)
	case rest == "" && r.Method == http.MethodGet:
		alarm, err := h.alarms.Get(r.Context(), id)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(newAlarmView(*alarm)))
	case rest == "" && r.Method == http.MethodDelete:
		if err := h.alarms.Delete(r.Context(), id); err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]string{"id": id}))
	case rest == "" || rest == "schedule":
		w.WriteHeader(http.StatusMethodNotAllowed)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *AlarmHandler) decodeAlarm(w http.ResponseWriter, r *http.Request) (models.AlarmDefinition, bool) {
	var req alarmRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return models.AlarmDefinition{}, false
	}
	alarm, err := req.toAlarm(h.defaultWindow)
	if err != nil {
		h.writeError(w, err)
		return models.AlarmDefinition{}, false
	}
	return alarm, true
}

func (h *AlarmHandler) writeSchedule(w http.ResponseWriter, result *service.ScheduleResult, err error) {
	var failure *models.SchedulingFailure
	if errors.As(err, &failure) {
		h.logger.Warn("Alarm partially scheduled", zap.String("alarm_id", failure.AlarmID), zap.Error(err))
		writeJSON(w, http.StatusOK, FailWith(ResultSchedulingFailure, err.Error(), result))
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

func (h *AlarmHandler) writeError(w http.ResponseWriter, err error) {
	writeError(w, h.logger, err)
}

// writeError 错误映射到统一响应
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var cfgErr *models.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		writeJSON(w, http.StatusOK, FailWith(ResultConfigurationError, err.Error(), map[string]string{"field": cfgErr.Field}))
	case errors.Is(err, repository.ErrAlarmNotFound),
		errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, service.ErrNoActiveSession),
		errors.Is(err, repository.ErrInvalidRating):
		writeJSON(w, http.StatusOK, Fail(err.Error()))
	default:
		logger.Error("Request failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("internal error"))
	}
}
