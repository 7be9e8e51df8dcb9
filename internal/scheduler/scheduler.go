package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the sync every six hours
const DefaultSchedule = "@every 6h"

// Job is one scheduled sync run
type Job func(ctx context.Context) error

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler fires a job on a cron expression. A run still in progress when
// the next tick arrives causes that tick to be skipped.
type Scheduler struct {
	expr       string
	job        Job
	runOnStart bool
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithRunOnStart fires the job once immediately when Run starts
func WithRunOnStart(b bool) Option {
	return func(s *Scheduler) {
		s.runOnStart = b
	}
}

// Validate reports whether expr is an accepted cron expression or descriptor
func Validate(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// New validates expr and returns a scheduler for job. An empty expr uses
// DefaultSchedule.
func New(expr string, job Job, opts ...Option) (*Scheduler, error) {
	if expr == "" {
		expr = DefaultSchedule
	}
	if err := Validate(expr); err != nil {
		return nil, err
	}
	s := &Scheduler{expr: expr, job: job}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Expr returns the cron expression in use
func (s *Scheduler) Expr() string {
	return s.expr
}

// Run registers the job and blocks until ctx is done, then waits for any
// running job, including the run-on-start one, to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	id, err := c.AddFunc(s.expr, func() { s.fire(ctx) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.expr, err)
	}

	c.Start()
	slog.Info("scheduler started", "schedule", s.expr, "next", c.Entry(id).Next)
	var initial sync.WaitGroup
	if s.runOnStart {
		job := c.Entry(id).WrappedJob
		initial.Add(1)
		go func() {
			defer initial.Done()
			job.Run()
		}()
	}

	<-ctx.Done()
	slog.Info("scheduler stopping")
	<-c.Stop().Done()
	initial.Wait()
	return nil
}

func (s *Scheduler) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	slog.Info("scheduled run firing", "schedule", s.expr)
	if err := s.job(ctx); err != nil {
		slog.Error("scheduled run failed", "error", err)
	}
}
