package appointment

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Expirer is the part of Service the sweeper drives.
type Expirer interface {
	ExpireStale(ctx context.Context) (*SweepReport, error)
}

// Sweeper runs the expiry sweep once at start and then on a cron schedule.
// Runs never overlap; a run still in progress when the next tick fires makes
// that tick a no-op.
type Sweeper struct {
	expirer  Expirer
	schedule cron.Schedule
	spec     string
	logger   zerolog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running sync.Mutex
	done    chan struct{}
}

// NewSweeper parses spec, which accepts standard five-field cron expressions
// and descriptors such as "@every 5m".
func NewSweeper(expirer Expirer, spec string, logger zerolog.Logger) (*Sweeper, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", spec, err)
	}
	return &Sweeper{
		expirer:  expirer,
		schedule: sched,
		spec:     spec,
		logger:   logger.With().Str("component", "expiry-sweeper").Logger(),
	}, nil
}

// Start runs one sweep synchronously and schedules the rest. The sweeper
// stops when ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.cron = cron.New()
	s.cron.Schedule(s.schedule, cron.FuncJob(func() { s.RunOnce(ctx) }))
	c, done := s.cron, s.done
	s.mu.Unlock()

	s.RunOnce(ctx)
	c.Start()
	s.logger.Info().Str("schedule", s.spec).Msg("expiry sweeper started")

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		close(done)
	}()
}

// Stop cancels any run in progress and waits for scheduled jobs to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info().Msg("expiry sweeper stopped")
}

// RunOnce performs a single sweep unless one is already running.
func (s *Sweeper) RunOnce(ctx context.Context) {
	if !s.running.TryLock() {
		s.logger.Debug().Msg("previous sweep still running, skipping")
		return
	}
	defer s.running.Unlock()

	if ctx.Err() != nil {
		return
	}
	report, err := s.expirer.ExpireStale(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	s.logger.Info().
		Int("candidates", report.Candidates).
		Int("expired", report.Expired).
		Int("cancelled", report.Cancelled).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("expiry sweep finished")
}
