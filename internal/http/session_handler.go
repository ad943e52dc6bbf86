package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/CodingHusk3y/heartwake/internal/models"

	"go.uber.org/zap"
)

// SessionAPI 实时会话（*service.SessionService 实现）
type SessionAPI interface {
	StartForAlarm(ctx context.Context, alarmID string) (models.SessionConfig, error)
	Start(ctx context.Context, cfg models.SessionConfig) (models.SessionConfig, error)
	Stop(ctx context.Context) error
	Live() (models.LiveState, error)
	LastOutcome() (models.SessionOutcome, bool)
	Sensitivity() float64
	SetSensitivity(ctx context.Context, v float64) float64
}

// SessionHistory 会话历史（*repository.SessionRepository 实现）
type SessionHistory interface {
	List(ctx context.Context, limit int) ([]models.StoredSession, error)
	Rate(ctx context.Context, sessionID string, rating int) error
	LatestUnrated(ctx context.Context) (*models.StoredSession, error)
}

// startRequest 开始会话：按闹钟，或直接给出目标时间
type startRequest struct {
	AlarmID       string     `json:"alarm_id"`
	Target        *time.Time `json:"target"`
	WindowMinutes *int       `json:"window_minutes"`
}

type ratingRequest struct {
	Rating int `json:"rating"`
}

type sensitivityRequest struct {
	Sensitivity *float64 `json:"sensitivity"`
}

// SessionHandler 会话接口
type SessionHandler struct {
	sessions      SessionAPI
	history       SessionHistory
	defaultWindow int
	historyLimit  int
	logger        *zap.Logger
}

// NewSessionHandler 创建会话接口
func NewSessionHandler(sessions SessionAPI, history SessionHistory, defaultWindow, historyLimit int, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:      sessions,
		history:       history,
		defaultWindow: defaultWindow,
		historyLimit:  historyLimit,
		logger:        logger,
	}
}

// Start POST 开始会话
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req startRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	var (
		cfg models.SessionConfig
		err error
	)
	switch {
	case req.AlarmID != "":
		cfg, err = h.sessions.StartForAlarm(r.Context(), req.AlarmID)
	case req.Target != nil:
		window := h.defaultWindow
		if req.WindowMinutes != nil {
			window = *req.WindowMinutes
		}
		cfg, err = h.sessions.Start(r.Context(), models.SessionConfig{Target: *req.Target, WindowMinutes: window})
	default:
		writeJSON(w, http.StatusOK, Fail("alarm_id or target is required"))
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(cfg))
}

// Stop POST 结束当前会话（不产生结果）
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := h.sessions.Stop(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"stopped": true}))
}

// Live GET 当前会话实时状态
func (h *SessionHandler) Live(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	state, err := h.sessions.Live()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(state))
}

// Last GET 最近一次会话结果
func (h *SessionHandler) Last(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	outcome, ok := h.sessions.LastOutcome()
	if !ok {
		writeJSON(w, http.StatusOK, Ok[*models.SessionOutcome](nil))
		return
	}
	writeJSON(w, http.StatusOK, Ok(&outcome))
}

// List GET 会话历史（?limit=）
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessions, err := h.history.List(r.Context(), h.limit(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(sessions))
}

// Unrated GET 最近一条未评分的会话
func (h *SessionHandler) Unrated(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	session, err := h.history.LatestUnrated(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(session))
}

// Rate POST /sessions/{id}/rating
func (h *SessionHandler) Rate(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req ratingRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}
	if err := h.history.Rate(r.Context(), sessionID, req.Rating); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"session_id": sessionID, "rating": req.Rating}))
}

// Export GET 会话历史导出为 Excel
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessions, err := h.history.List(r.Context(), h.limit(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	data, err := GenerateSessionExport(sessions)
	if err != nil {
		h.logger.Error("Failed to generate session export", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to generate export"))
		return
	}

	filename := fmt.Sprintf("heartwake_sessions_%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Sensitivity GET 当前灵敏度 / PUT 设置灵敏度
func (h *SessionHandler) Sensitivity(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, Ok(map[string]float64{"sensitivity": h.sessions.Sensitivity()}))
	case http.MethodPut, http.MethodPost:
		var req sensitivityRequest
		if err := readBodyJSON(r, maxBodyBytes, &req); err != nil || req.Sensitivity == nil {
			writeJSON(w, http.StatusOK, Fail("sensitivity is required"))
			return
		}
		applied := h.sessions.SetSensitivity(r.Context(), *req.Sensitivity)
		writeJSON(w, http.StatusOK, Ok(map[string]float64{"sensitivity": applied}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *SessionHandler) limit(r *http.Request) int {
	limit := parseInt(r.URL.Query().Get("limit"), h.historyLimit)
	if limit <= 0 || limit > h.historyLimit {
		limit = h.historyLimit
	}
	return limit
}
