package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"genqueue/internal/domain"
	"genqueue/internal/domain/plancfg"
	"genqueue/internal/infra"
	"genqueue/internal/sqlinline"
)

// EnqueueRequest is a validated generation request on its way into the queue.
type EnqueueRequest struct {
	JobType    domain.JobType
	Payload    json.RawMessage
	ImageCount int
	Quality    domain.Quality
}

// EnqueueReceipt reports the durable outcome of an accepted request.
type EnqueueReceipt struct {
	JobID       string
	Position    int
	Priority    int64
	NewBalance  int64
	CreditsCost int64
}

// RateLimitError rejects a request that exceeded the tier's hourly allowance.
type RateLimitError struct {
	Limit int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: at most %d jobs per hour on this plan", e.Limit)
}

func (e *RateLimitError) Unwrap() error { return domain.ErrRateLimited }

// ConcurrencyLimitError rejects a request while too many jobs are still active.
type ConcurrencyLimitError struct {
	Limit int
}

func (e *ConcurrencyLimitError) Error() string {
	return fmt.Sprintf("too many active jobs: at most %d concurrent jobs on this plan", e.Limit)
}

func (e *ConcurrencyLimitError) Unwrap() error { return domain.ErrRateLimited }

// InsufficientCreditsError rejects a request the balance cannot cover.
type InsufficientCreditsError struct {
	Balance int64
	Cost    int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d, balance is %d", e.Cost, e.Balance)
}

func (e *InsufficientCreditsError) Unwrap() error { return domain.ErrInsufficientCredits }

// EnqueueService turns generation requests into durably queued, credit-backed
// jobs. All admission checks happen before the reservation; the reservation
// and the job insert are one SQL statement.
type EnqueueService struct {
	sql      infra.SQLExecutor
	catalog  *plancfg.Catalog
	notifier Notifier
	logger   infra.Logger
	now      func() time.Time
}

func NewEnqueueService(sql infra.SQLExecutor, catalog *plancfg.Catalog, notifier Notifier, logger infra.Logger) *EnqueueService {
	return &EnqueueService{
		sql:      sql,
		catalog:  catalog,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Enqueue admits, prices and queues one request for the given identity.
func (s *EnqueueService) Enqueue(ctx context.Context, userID string, req EnqueueRequest) (EnqueueReceipt, error) {
	if userID == "" {
		return EnqueueReceipt{}, domain.ErrUnauthorized
	}
	if !domain.ValidJobType(req.JobType) {
		return EnqueueReceipt{}, fmt.Errorf("%w: job type %q", domain.ErrInvalidJobType, req.JobType)
	}
	if len(req.Payload) == 0 || bytes.Equal(bytes.TrimSpace(req.Payload), []byte("null")) {
		return EnqueueReceipt{}, fmt.Errorf("%w: payload is required", domain.ErrInvalidRequest)
	}
	if req.ImageCount < 1 {
		return EnqueueReceipt{}, fmt.Errorf("%w: image count must be at least 1", domain.ErrInvalidRequest)
	}
	quality := req.Quality
	if quality == "" {
		quality = domain.QualityStandard
	}
	if quality != domain.QualityStandard && quality != domain.QualityHigh {
		return EnqueueReceipt{}, fmt.Errorf("%w: unsupported quality %q", domain.ErrInvalidRequest, req.Quality)
	}

	cost := domain.Cost(req.JobType, req.ImageCount, quality)

	var plan string
	var balance int64
	if err := s.sql.QueryRow(ctx, sqlinline.QGetUserAccount, userID).Scan(&plan, &balance); err != nil {
		if infra.IsNoRows(err) {
			return EnqueueReceipt{}, domain.ErrUnauthorized
		}
		return EnqueueReceipt{}, fmt.Errorf("load account: %w", err)
	}
	tier := domain.NormalizePlanTier(plan)
	policy := s.catalog.Policy(tier)

	var recent, active int
	if err := s.sql.QueryRow(ctx, sqlinline.QAdmissionCounts, userID).Scan(&recent, &active); err != nil {
		return EnqueueReceipt{}, fmt.Errorf("count jobs: %w", err)
	}
	if recent >= policy.PerHourLimit {
		return EnqueueReceipt{}, &RateLimitError{Limit: policy.PerHourLimit}
	}
	if active >= policy.MaxConcurrent {
		return EnqueueReceipt{}, &ConcurrencyLimitError{Limit: policy.MaxConcurrent}
	}

	priority := domain.PriorityScore(tier, s.now())

	var jobID string
	var newBalance int64
	row := s.sql.QueryRow(ctx, sqlinline.QEnqueueJob,
		userID, string(req.JobType), []byte(req.Payload), req.ImageCount, string(quality), cost, priority)
	if err := row.Scan(&jobID, &newBalance); err != nil {
		if infra.IsNoRows(err) {
			// The conditional reservation matched nothing: balance too low.
			return EnqueueReceipt{}, &InsufficientCreditsError{Balance: balance, Cost: cost}
		}
		return EnqueueReceipt{}, fmt.Errorf("enqueue job: %w", err)
	}

	position := 0
	if err := s.sql.QueryRow(ctx, sqlinline.QQueuePosition, priority).Scan(&position); err != nil {
		// Informational only; the job is already durably queued.
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("enqueue: queue position unavailable")
	}

	if s.notifier != nil {
		s.notifier.Wake(ctx, "enqueue")
	}

	s.logger.Info().
		Str("job_id", jobID).
		Str("job_type", string(req.JobType)).
		Str("plan", string(tier)).
		Int64("credits_cost", cost).
		Int("position", position).
		Msg("enqueue: job queued")

	return EnqueueReceipt{
		JobID:       jobID,
		Position:    position,
		Priority:    priority,
		NewBalance:  newBalance,
		CreditsCost: cost,
	}, nil
}
