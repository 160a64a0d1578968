package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

type schedulerRunRequest struct {
	Trigger string `json:"trigger"`
}

// SchedulerRun is the internal-only trigger that drains the queue ahead of
// the next periodic tick. It is authenticated by a privileged service
// credential, never by a user token.
func (a *App) SchedulerRun(w http.ResponseWriter, r *http.Request) {
	if !a.authorizeService(r) {
		a.error(w, http.StatusUnauthorized, "unauthorized", "service credential required")
		return
	}

	var req schedulerRunRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	trigger := req.Trigger
	if trigger == "" {
		trigger = "http"
	}

	report, err := a.Scheduler.Run(r.Context(), trigger)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: scheduler run failed")
		a.error(w, http.StatusInternalServerError, "internal", "scheduler run failed")
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"processed":       report.Processed,
		"swept":           report.Swept,
		"elapsed_seconds": report.Elapsed.Seconds(),
	})
}

func (a *App) authorizeService(r *http.Request) bool {
	if a.SchedulerToken == "" {
		return false
	}
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(parts[1]), []byte(a.SchedulerToken)) == 1
}
