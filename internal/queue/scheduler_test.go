package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"genqueue/internal/domain"
	"genqueue/internal/providers/generation"
)

// schedulerDB scripts the claim/complete/fail/sweep statements and records
// every terminal write for assertions.
type schedulerDB struct {
	jobs  []claimedJob
	swept int

	completions []completionRecord
	failures    []failureRecord
}

type completionRecord struct {
	jobID  string
	result domain.JobResult
	refund int64
}

type failureRecord struct {
	jobID   string
	message string
}

func (f *schedulerDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected exec: " + query)
}

func (f *schedulerDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected query: " + query)
}

func (f *schedulerDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	switch {
	case strings.Contains(query, "for update skip locked"):
		if len(f.jobs) == 0 {
			return stubRow{}
		}
		job := f.jobs[0]
		f.jobs = f.jobs[1:]
		return stubRow{scan: func(dest ...any) error {
			*(dest[0].(*string)) = job.ID
			*(dest[1].(*string)) = job.UserID
			*(dest[2].(*domain.JobType)) = job.Type
			*(dest[3].(*json.RawMessage)) = job.Payload
			*(dest[4].(*int)) = job.ImageCount
			*(dest[5].(*domain.Quality)) = job.Quality
			*(dest[6].(*int64)) = job.CreditsReserved
			return nil
		}}
	case strings.Contains(query, "'completed'"):
		var result domain.JobResult
		if err := json.Unmarshal(args[1].([]byte), &result); err != nil {
			return stubRow{scan: func(dest ...any) error { return err }}
		}
		f.completions = append(f.completions, completionRecord{
			jobID:  args[0].(string),
			result: result,
			refund: args[2].(int64),
		})
		return stubRow{scan: func(dest ...any) error {
			*(dest[0].(*string)) = args[0].(string)
			return nil
		}}
	case strings.Contains(query, "'failed'") && strings.Contains(query, "started_at <"):
		return stubRow{scan: func(dest ...any) error {
			*(dest[0].(*int)) = f.swept
			f.swept = 0
			return nil
		}}
	case strings.Contains(query, "'failed'"):
		f.failures = append(f.failures, failureRecord{
			jobID:   args[0].(string),
			message: args[1].(string),
		})
		return stubRow{scan: func(dest ...any) error {
			*(dest[0].(*string)) = args[0].(string)
			return nil
		}}
	}
	return stubRow{scan: func(dest ...any) error {
		return errors.New("unexpected query_row: " + query)
	}}
}

type genFunc func(ctx context.Context, req generation.Request) ([]string, error)

func (f genFunc) Generate(ctx context.Context, req generation.Request) ([]string, error) {
	return f(ctx, req)
}

func testJob(jobType domain.JobType, count int, reserved int64) claimedJob {
	return claimedJob{
		ID:              "2f9c7a69-1f3a-4b0c-9c20-000000000001",
		UserID:          testUserID,
		Type:            jobType,
		Payload:         json.RawMessage(`{"prompt":"moody product shot"}`),
		ImageCount:      count,
		Quality:         domain.QualityStandard,
		CreditsReserved: reserved,
	}
}

func newTestScheduler(db *schedulerDB, backends map[domain.JobType]generation.Generator) *Scheduler {
	return NewScheduler(db, backends, SchedulerOptions{
		Budget:      time.Minute,
		CallTimeout: 10 * time.Second,
		MaxRuntime:  5 * time.Minute,
	}, zerolog.Nop())
}

func TestSchedulerFullSuccess(t *testing.T) {
	db := &schedulerDB{jobs: []claimedJob{testJob(domain.JobTypeProduct, 2, 8)}}
	backends := map[domain.JobType]generation.Generator{
		domain.JobTypeProduct: genFunc(func(ctx context.Context, req generation.Request) ([]string, error) {
			if req.Count != 2 {
				t.Fatalf("backend got count %d, want 2", req.Count)
			}
			return []string{"https://cdn.example/a.png", "https://cdn.example/b.png"}, nil
		}),
	}

	report, err := newTestScheduler(db, backends).Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Processed != 1 {
		t.Fatalf("Processed = %d, want 1", report.Processed)
	}
	if len(db.completions) != 1 || len(db.failures) != 0 {
		t.Fatalf("completions %d failures %d, want 1/0", len(db.completions), len(db.failures))
	}
	done := db.completions[0]
	if len(done.result.Images) != 2 || len(done.result.Errors) != 0 {
		t.Fatalf("result = %+v, want 2 images, no errors", done.result)
	}
	if done.refund != 0 {
		t.Fatalf("refund = %d, want 0 for full output", done.refund)
	}
}

func TestSchedulerPartialFreestyle(t *testing.T) {
	db := &schedulerDB{jobs: []claimedJob{testJob(domain.JobTypeFreestyle, 4, 16)}}
	calls := 0
	backends := map[domain.JobType]generation.Generator{
		domain.JobTypeFreestyle: genFunc(func(ctx context.Context, req generation.Request) ([]string, error) {
			calls++
			if req.Count != 1 {
				t.Fatalf("freestyle fan-out must request one output per call, got %d", req.Count)
			}
			if calls == 4 {
				return nil, errors.New("model overloaded")
			}
			return []string{fmt.Sprintf("https://cdn.example/fs-%d.png", calls)}, nil
		}),
	}

	if _, err := newTestScheduler(db, backends).Run(context.Background(), "test"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if calls != 4 {
		t.Fatalf("backend calls = %d, want 4", calls)
	}
	if len(db.completions) != 1 {
		t.Fatalf("completions = %d, want 1 (partial success is still completed)", len(db.completions))
	}
	done := db.completions[0]
	if len(done.result.Images) != 3 {
		t.Fatalf("images = %d, want 3", len(done.result.Images))
	}
	if len(done.result.Errors) != 1 || !strings.Contains(done.result.Errors[0], "model overloaded") {
		t.Fatalf("errors = %v, want one overload entry", done.result.Errors)
	}
	// floor(16/4) x (4-3)
	if done.refund != 4 {
		t.Fatalf("refund = %d, want 4", done.refund)
	}
}

func TestSchedulerTotalFailure(t *testing.T) {
	db := &schedulerDB{jobs: []claimedJob{testJob(domain.JobTypeWorkflow, 1, 4)}}
	backends := map[domain.JobType]generation.Generator{
		domain.JobTypeWorkflow: genFunc(func(ctx context.Context, req generation.Request) ([]string, error) {
			return nil, errors.New("upstream exploded")
		}),
	}

	if _, err := newTestScheduler(db, backends).Run(context.Background(), "test"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(db.failures) != 1 || len(db.completions) != 0 {
		t.Fatalf("failures %d completions %d, want 1/0", len(db.failures), len(db.completions))
	}
	if !strings.Contains(db.failures[0].message, "upstream exploded") {
		t.Fatalf("failure message %q does not carry the cause", db.failures[0].message)
	}
}

func TestSchedulerZeroOutputIsFailure(t *testing.T) {
	db := &schedulerDB{jobs: []claimedJob{testJob(domain.JobTypeFreestyle, 2, 8)}}
	backends := map[domain.JobType]generation.Generator{
		domain.JobTypeFreestyle: genFunc(func(ctx context.Context, req generation.Request) ([]string, error) {
			return nil, errors.New("safety filter")
		}),
	}

	if _, err := newTestScheduler(db, backends).Run(context.Background(), "test"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(db.failures) != 1 {
		t.Fatalf("failures = %d, want 1 when no output was produced", len(db.failures))
	}
	if !strings.Contains(db.failures[0].message, "safety filter") {
		t.Fatalf("failure message %q does not carry the first attempt error", db.failures[0].message)
	}
}

func TestSchedulerUnknownBackendFailsJob(t *testing.T) {
	db := &schedulerDB{jobs: []claimedJob{testJob(domain.JobTypeVideo, 1, 30)}}

	if _, err := newTestScheduler(db, nil).Run(context.Background(), "test"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(db.failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(db.failures))
	}
	if !strings.Contains(db.failures[0].message, "no backend") {
		t.Fatalf("failure message %q, want backend misconfiguration", db.failures[0].message)
	}
}

func TestSchedulerEmptyQueue(t *testing.T) {
	db := &schedulerDB{}
	report, err := newTestScheduler(db, nil).Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Processed != 0 {
		t.Fatalf("Processed = %d, want 0", report.Processed)
	}
}

func TestSchedulerReportsSweep(t *testing.T) {
	db := &schedulerDB{swept: 3}
	report, err := newTestScheduler(db, nil).Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Swept != 3 {
		t.Fatalf("Swept = %d, want 3", report.Swept)
	}
}

func TestSchedulerBudgetStopsClaims(t *testing.T) {
	db := &schedulerDB{jobs: []claimedJob{testJob(domain.JobTypeProduct, 1, 4)}}
	s := NewScheduler(db, nil, SchedulerOptions{
		Budget:      time.Nanosecond,
		CallTimeout: time.Millisecond,
		MaxRuntime:  time.Minute,
	}, zerolog.Nop())

	report, err := s.Run(context.Background(), "test")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Processed != 0 {
		t.Fatalf("Processed = %d, want 0 once the budget is spent", report.Processed)
	}
	if len(db.jobs) != 1 {
		t.Fatal("job should remain unclaimed after budget exhaustion")
	}
}

func TestSchedulerFreestyleStopsWhenBudgetRunsOut(t *testing.T) {
	db := &schedulerDB{jobs: []claimedJob{testJob(domain.JobTypeFreestyle, 4, 16)}}
	calls := 0
	backends := map[domain.JobType]generation.Generator{
		domain.JobTypeFreestyle: genFunc(func(ctx context.Context, req generation.Request) ([]string, error) {
			calls++
			return []string{fmt.Sprintf("https://cdn.example/fs-%d.png", calls)}, nil
		}),
	}
	s := NewScheduler(db, backends, SchedulerOptions{
		Budget:      time.Minute,
		CallTimeout: 10 * time.Second,
		MaxRuntime:  5 * time.Minute,
	}, zerolog.Nop())

	// Pin the clock so the deadline expires right after the second call.
	base := time.Now()
	step := 0
	s.now = func() time.Time {
		step++
		// Each callContext check advances the clock by ~25s against a 60s budget.
		return base.Add(time.Duration(step) * 25 * time.Second)
	}

	if _, err := s.Run(context.Background(), "test"); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if calls >= 4 {
		t.Fatalf("calls = %d, want early stop before all 4 attempts", calls)
	}
	if len(db.completions) != 1 {
		t.Fatalf("completions = %d, want 1 partial result", len(db.completions))
	}
	done := db.completions[0]
	if len(done.result.Images) == 0 || len(done.result.Images) >= 4 {
		t.Fatalf("images = %d, want a partial count", len(done.result.Images))
	}
	wantRefund := (int64(16) / 4) * int64(4-len(done.result.Images))
	if done.refund != wantRefund {
		t.Fatalf("refund = %d, want %d", done.refund, wantRefund)
	}
}
