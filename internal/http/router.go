package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

const (
	alarmsPath   = "/api/v1/alarms"
	sessionsPath = "/api/v1/sessions"
)

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterHealthRoutes 健康检查
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	})
}

// RegisterAlarmRoutes 注册闹钟路由
func (r *Router) RegisterAlarmRoutes(h *AlarmHandler) {
	r.Handle(alarmsPath, h.Alarms)
	r.Handle(alarmsPath+"/plan", h.Plan)

	// alarms/{id}, alarms/{id}/schedule
	r.Handle(alarmsPath+"/", func(w http.ResponseWriter, req *http.Request) {
		id, rest := pathID(req.URL.Path, alarmsPath+"/")
		if id == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.Alarm(w, req, id, rest)
	})
}

// RegisterSessionRoutes 注册会话路由
func (r *Router) RegisterSessionRoutes(h *SessionHandler) {
	r.Handle(sessionsPath, h.List)
	r.Handle(sessionsPath+"/start", h.Start)
	r.Handle(sessionsPath+"/stop", h.Stop)
	r.Handle(sessionsPath+"/live", h.Live)
	r.Handle(sessionsPath+"/last", h.Last)
	r.Handle(sessionsPath+"/unrated", h.Unrated)
	r.Handle(sessionsPath+"/export", h.Export)
	r.Handle("/api/v1/sensitivity", h.Sensitivity)

	// sessions/{id}/rating
	r.Handle(sessionsPath+"/", func(w http.ResponseWriter, req *http.Request) {
		id, rest := pathID(req.URL.Path, sessionsPath+"/")
		if id == "" || rest != "rating" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.Rate(w, req, id)
	})
}
