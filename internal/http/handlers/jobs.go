package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"genqueue/internal/domain"
	"genqueue/internal/infra"
	"genqueue/internal/middleware"
	"genqueue/internal/queue"
	"genqueue/internal/sqlinline"
)

type enqueueRequest struct {
	JobType    string          `json:"jobType"`
	Payload    json.RawMessage `json:"payload"`
	ImageCount int             `json:"imageCount"`
	Quality    string          `json:"quality"`
}

type enqueueResponse struct {
	JobID       string `json:"jobId"`
	Position    int    `json:"position"`
	Priority    int64  `json:"priority"`
	NewBalance  int64  `json:"newBalance"`
	CreditsCost int64  `json:"creditsCost"`
}

// JobsEnqueue admits a generation request into the queue.
func (a *App) JobsEnqueue(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	receipt, err := a.Enqueue.Enqueue(r.Context(), userID, queue.EnqueueRequest{
		JobType:    domain.JobType(req.JobType),
		Payload:    req.Payload,
		ImageCount: req.ImageCount,
		Quality:    domain.Quality(req.Quality),
	})
	if err != nil {
		a.enqueueError(w, r, err)
		return
	}

	a.json(w, http.StatusAccepted, enqueueResponse{
		JobID:       receipt.JobID,
		Position:    receipt.Position,
		Priority:    receipt.Priority,
		NewBalance:  receipt.NewBalance,
		CreditsCost: receipt.CreditsCost,
	})
}

func (a *App) enqueueError(w http.ResponseWriter, r *http.Request, err error) {
	locale := middleware.LocaleFromContext(r.Context())

	var rateErr *queue.RateLimitError
	if errors.As(err, &rateErr) {
		a.error(w, http.StatusTooManyRequests, "rate_limit_exceeded", rateLimitMessage(locale, rateErr.Limit))
		return
	}
	var concErr *queue.ConcurrencyLimitError
	if errors.As(err, &concErr) {
		a.error(w, http.StatusTooManyRequests, "rate_limit_exceeded", concurrencyMessage(locale, concErr.Limit))
		return
	}
	var creditsErr *queue.InsufficientCreditsError
	if errors.As(err, &creditsErr) {
		a.error(w, http.StatusPaymentRequired, "insufficient_credits", insufficientCreditsMessage(locale, creditsErr.Balance, creditsErr.Cost))
		return
	}
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "unknown identity")
	case errors.Is(err, domain.ErrInvalidJobType), errors.Is(err, domain.ErrInvalidRequest):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("handlers: enqueue failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
	}
}

// JobStatus returns the polled state of one job, owner-scoped.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	row := a.SQL.QueryRow(r.Context(), sqlinline.QGetJobForUser, jobID, userID)
	var job domain.Job
	var startedAt, completedAt *time.Time
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Type,
		&job.Status,
		&job.Payload,
		&job.ImageCount,
		&job.Quality,
		&job.PriorityScore,
		&job.CreditsReserved,
		&job.CreditsRefunded,
		&job.Result,
		&job.ErrorMessage,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: load job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	job.StartedAt = startedAt
	job.CompletedAt = completedAt

	resp := map[string]any{
		"id":            job.ID,
		"job_type":      job.Type,
		"status":        job.Status,
		"result":        nullableJSON(job.Result),
		"error_message": nullableString(job.ErrorMessage),
		"created_at":    job.CreatedAt,
		"started_at":    job.StartedAt,
		"completed_at":  job.CompletedAt,
	}
	if job.Status == domain.JobStatusQueued {
		var position int
		if err := a.SQL.QueryRow(r.Context(), sqlinline.QQueuePosition, job.PriorityScore).Scan(&position); err == nil {
			resp["position"] = position
		}
	}
	a.json(w, http.StatusOK, resp)
}

// JobCancel honors a cancellation while the job is still queued.
func (a *App) JobCancel(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	var cancelledID string
	if err := a.SQL.QueryRow(r.Context(), sqlinline.QCancelJob, jobID, userID).Scan(&cancelledID); err != nil {
		if !infra.IsNoRows(err) {
			a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: cancel failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to cancel job")
			return
		}
		// Nothing matched: either the job is not ours or it already left the
		// queued state. Distinguish for the client.
		var status string
		probe := a.SQL.QueryRow(r.Context(), sqlinline.QGetJobForUser, jobID, userID)
		var job domain.Job
		var startedAt, completedAt *time.Time
		if scanErr := probe.Scan(
			&job.ID, &job.UserID, &job.Type, &job.Status, &job.Payload,
			&job.ImageCount, &job.Quality, &job.PriorityScore,
			&job.CreditsReserved, &job.CreditsRefunded, &job.Result,
			&job.ErrorMessage, &job.CreatedAt, &startedAt, &completedAt,
		); scanErr != nil {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		status = string(job.Status)
		a.error(w, http.StatusConflict, "not_cancellable", "job is already "+status)
		return
	}

	a.json(w, http.StatusOK, map[string]string{"id": cancelledID, "status": string(domain.JobStatusCancelled)})
}

// CreditsBalance returns the caller's plan and current balance.
func (a *App) CreditsBalance(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var plan string
	var balance int64
	if err := a.SQL.QueryRow(r.Context(), sqlinline.QGetUserAccount, userID).Scan(&plan, &balance); err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusUnauthorized, "unauthorized", "unknown identity")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load balance")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"plan":    domain.NormalizePlanTier(plan),
		"balance": balance,
	})
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
