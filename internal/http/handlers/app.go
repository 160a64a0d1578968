package handlers

import (
	"encoding/json"
	"net/http"

	"genqueue/internal/infra"
	"genqueue/internal/middleware"
	"genqueue/internal/queue"
)

// App bundles the dependencies shared by all HTTP handlers.
type App struct {
	SQL            infra.SQLExecutor
	Enqueue        *queue.EnqueueService
	Scheduler      *queue.Scheduler
	SchedulerToken string
	Logger         infra.Logger
}

func NewApp(sql infra.SQLExecutor, enqueue *queue.EnqueueService, scheduler *queue.Scheduler, schedulerToken string, logger infra.Logger) *App {
	return &App{
		SQL:            sql,
		Enqueue:        enqueue,
		Scheduler:      scheduler,
		SchedulerToken: schedulerToken,
		Logger:         logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
