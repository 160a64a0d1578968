package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"genqueue/internal/domain"
	"genqueue/internal/infra"
	"genqueue/internal/providers/generation"
	"genqueue/internal/sqlinline"
)

const (
	// Headroom kept inside the invocation budget so there is always time to
	// record an outcome after the last backend call returns.
	recordHeadroom = 5 * time.Second

	staleErrorMessage = "job exceeded its maximum runtime and was failed by cleanup; reserved credits were returned"
)

var errNoJobAvailable = errors.New("no job available")

// SchedulerOptions bound a single scheduler invocation.
type SchedulerOptions struct {
	// Budget is the wall-clock allowance for one Run invocation.
	Budget time.Duration
	// CallTimeout caps each individual backend call.
	CallTimeout time.Duration
	// MaxRuntime is the age past which a processing job is considered stale.
	MaxRuntime time.Duration
}

func (o *SchedulerOptions) applyDefaults() {
	if o.Budget <= 0 {
		o.Budget = 100 * time.Second
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 60 * time.Second
	}
	if o.MaxRuntime <= 0 {
		o.MaxRuntime = 300 * time.Second
	}
}

// Report summarizes one scheduler invocation for observability.
type Report struct {
	Processed int
	Swept     int
	Elapsed   time.Duration
}

// Scheduler drains the queue within a bounded time budget per invocation. It
// holds no state between invocations; any number of invocations may run
// concurrently because every queue mutation is a guarded SQL statement.
type Scheduler struct {
	sql      infra.SQLExecutor
	backends map[domain.JobType]generation.Generator
	opts     SchedulerOptions
	logger   infra.Logger
	now      func() time.Time
}

func NewScheduler(sql infra.SQLExecutor, backends map[domain.JobType]generation.Generator, opts SchedulerOptions, logger infra.Logger) *Scheduler {
	opts.applyDefaults()
	return &Scheduler{
		sql:      sql,
		backends: backends,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

type claimedJob struct {
	ID              string
	UserID          string
	Type            domain.JobType
	Payload         json.RawMessage
	ImageCount      int
	Quality         domain.Quality
	CreditsReserved int64
}

// Run performs one bounded scheduling pass: sweep stale work, then claim and
// process jobs until the queue is empty or the budget runs out.
func (s *Scheduler) Run(ctx context.Context, trigger string) (Report, error) {
	start := s.now()
	deadline := start.Add(s.opts.Budget)
	var report Report

	swept, err := s.sweepStale(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduler: stale sweep failed")
	}
	report.Swept = swept

	for {
		if ctx.Err() != nil {
			break
		}
		if !s.now().Add(recordHeadroom).Before(deadline) {
			s.logger.Info().Msg("scheduler: time budget exhausted")
			break
		}
		job, err := s.claim(ctx)
		if err != nil {
			if errors.Is(err, errNoJobAvailable) {
				break
			}
			s.logger.Error().Err(err).Msg("scheduler: claim failed")
			break
		}
		s.process(ctx, job, deadline)
		report.Processed++
	}

	report.Elapsed = s.now().Sub(start)
	s.logger.Info().
		Str("trigger", trigger).
		Int("processed", report.Processed).
		Int("swept", report.Swept).
		Dur("elapsed", report.Elapsed).
		Msg("scheduler: pass finished")
	return report, nil
}

func (s *Scheduler) claim(ctx context.Context) (claimedJob, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QClaimJob)
	var j claimedJob
	if err := row.Scan(&j.ID, &j.UserID, &j.Type, &j.Payload, &j.ImageCount, &j.Quality, &j.CreditsReserved); err != nil {
		if infra.IsNoRows(err) {
			return claimedJob{}, errNoJobAvailable
		}
		return claimedJob{}, err
	}
	// Ensure payload bytes are not aliased to driver buffers.
	j.Payload = append(json.RawMessage(nil), j.Payload...)
	return j, nil
}

func (s *Scheduler) process(ctx context.Context, job claimedJob, deadline time.Time) {
	s.logger.Info().Str("job_id", job.ID).Str("job_type", string(job.Type)).Msg("scheduler: picked job")

	produced, attemptErrs, err := s.dispatch(ctx, job, deadline)
	if err != nil || len(produced) == 0 {
		msg := failureMessage(err, attemptErrs)
		s.fail(ctx, job.ID, msg)
		return
	}

	refund := domain.PartialRefund(job.CreditsReserved, job.ImageCount, len(produced))
	s.complete(ctx, job.ID, domain.JobResult{Images: produced, Errors: attemptErrs}, refund)
}

// dispatch invokes the backend for the job's type. Freestyle jobs asking for
// several outputs are fanned out as sequential single-output calls so a late
// backend error still yields a partial result.
func (s *Scheduler) dispatch(ctx context.Context, job claimedJob, deadline time.Time) ([]string, []string, error) {
	gen, ok := s.backends[job.Type]
	if !ok {
		return nil, nil, fmt.Errorf("no backend configured for job type %q", job.Type)
	}

	if job.Type == domain.JobTypeFreestyle && job.ImageCount > 1 {
		var produced []string
		var attemptErrs []string
		for attempt := 1; attempt <= job.ImageCount; attempt++ {
			callCtx, cancel, ok := s.callContext(ctx, deadline)
			if !ok {
				break
			}
			urls, err := gen.Generate(callCtx, generation.Request{
				JobID:   job.ID,
				Type:    string(job.Type),
				Payload: job.Payload,
				Count:   1,
				Quality: string(job.Quality),
			})
			cancel()
			if err != nil {
				attemptErrs = append(attemptErrs, fmt.Sprintf("attempt %d: %v", attempt, err))
				continue
			}
			produced = append(produced, urls...)
		}
		return produced, attemptErrs, nil
	}

	callCtx, cancel, ok := s.callContext(ctx, deadline)
	if !ok {
		return nil, nil, fmt.Errorf("time budget exhausted before dispatch")
	}
	defer cancel()
	urls, err := gen.Generate(callCtx, generation.Request{
		JobID:   job.ID,
		Type:    string(job.Type),
		Payload: job.Payload,
		Count:   job.ImageCount,
		Quality: string(job.Quality),
	})
	return urls, nil, err
}

// callContext caps a backend call to the per-call timeout while leaving
// recording headroom inside the invocation budget.
func (s *Scheduler) callContext(ctx context.Context, deadline time.Time) (context.Context, context.CancelFunc, bool) {
	avail := deadline.Sub(s.now()) - recordHeadroom
	if avail <= 0 {
		return nil, nil, false
	}
	timeout := s.opts.CallTimeout
	if avail < timeout {
		timeout = avail
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	return callCtx, cancel, true
}

func (s *Scheduler) complete(ctx context.Context, jobID string, result domain.JobResult, refund int64) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		s.fail(ctx, jobID, fmt.Sprintf("encode result: %v", err))
		return
	}
	var id string
	if err := s.sql.QueryRow(ctx, sqlinline.QCompleteJob, jobID, resultJSON, refund).Scan(&id); err != nil {
		if infra.IsNoRows(err) {
			// The job left processing underneath us (swept as stale); the
			// sweep already reconciled credits.
			s.logger.Warn().Str("job_id", jobID).Msg("scheduler: job no longer processing at completion")
			return
		}
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("scheduler: record completion failed")
		return
	}
	s.logger.Info().
		Str("job_id", jobID).
		Int("images", len(result.Images)).
		Int64("refund", refund).
		Msg("scheduler: job completed")
}

func (s *Scheduler) fail(ctx context.Context, jobID, message string) {
	var id string
	if err := s.sql.QueryRow(ctx, sqlinline.QFailJob, jobID, message).Scan(&id); err != nil {
		if infra.IsNoRows(err) {
			s.logger.Warn().Str("job_id", jobID).Msg("scheduler: job no longer processing at failure")
			return
		}
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("scheduler: record failure failed")
		return
	}
	s.logger.Info().Str("job_id", jobID).Str("error", message).Msg("scheduler: job failed")
}

// SweepStale runs the stale-job cleanup pass on its own, for operator tooling.
func (s *Scheduler) SweepStale(ctx context.Context) (int, error) {
	return s.sweepStale(ctx)
}

func (s *Scheduler) sweepStale(ctx context.Context) (int, error) {
	var count int
	row := s.sql.QueryRow(ctx, sqlinline.QSweepStaleJobs, int64(s.opts.MaxRuntime.Seconds()), staleErrorMessage)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Warn().Int("count", count).Msg("scheduler: swept stale jobs")
	}
	return count, nil
}

func failureMessage(err error, attemptErrs []string) string {
	if err != nil {
		return err.Error()
	}
	if len(attemptErrs) > 0 {
		return fmt.Sprintf("generation produced no output: %s", attemptErrs[0])
	}
	return "generation produced no output"
}
