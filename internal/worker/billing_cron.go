package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"billremind/internal/services"
)

// BillingRunner performs one billing run.
type BillingRunner interface {
	Run(ctx context.Context) (services.RunSummary, error)
}

// BillingCron triggers billing runs on a cron schedule. A run still in
// progress when the next tick fires makes that tick a no-op.
type BillingCron struct {
	cron   *cron.Cron
	runner BillingRunner
	logger *slog.Logger

	mu   sync.Mutex
	ctx  context.Context
	runs atomic.Int64
}

// NewBillingCron parses spec (standard five-field cron) and registers
// the run. Nothing fires until Start.
func NewBillingCron(spec string, runner BillingRunner, logger *slog.Logger) (*BillingCron, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")

	cl := cronLogger{logger: logger}
	s := &BillingCron{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		runner: runner,
		logger: logger,
		ctx:    context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid billing cron %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing runs. Runs receive ctx, so cancelling it stops an
// in-flight run at the next account boundary.
func (s *BillingCron) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("Billing schedule started", "next_run", e.Next.Format(time.RFC3339))
	}
}

// Stop halts the schedule and returns a context done when the running job,
// if any, has finished.
func (s *BillingCron) Stop() context.Context {
	return s.cron.Stop()
}

// RunNow performs a run immediately, outside the schedule.
func (s *BillingCron) RunNow(ctx context.Context) (services.RunSummary, error) {
	s.runs.Add(1)
	summary, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Billing run failed", "run_id", summary.RunID, "error", err)
		return summary, err
	}
	return summary, nil
}

// Runs returns how many runs have started.
func (s *BillingCron) Runs() int64 {
	return s.runs.Load()
}

// NextRun returns when the schedule fires next, zero before Start.
func (s *BillingCron) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *BillingCron) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	_, _ = s.RunNow(ctx)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
