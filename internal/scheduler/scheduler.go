package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler drives the periodic tick. Ticks never overlap: a tick that is
// still running when the next one fires causes that one to be skipped.
type Scheduler struct {
	Cron   *cron.Cron
	tick   cron.EntryID
	logger *zap.Logger
}

// NewScheduler creates a Scheduler evaluating specs in loc.
func NewScheduler(loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "scheduler"))
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// RegisterTick registers tick to run every interval.
func (s *Scheduler) RegisterTick(interval time.Duration, tick func()) error {
	if interval < time.Second {
		return fmt.Errorf("tick interval %v is below one second", interval)
	}
	id, err := s.Cron.AddFunc(fmt.Sprintf("@every %s", interval), tick)
	if err != nil {
		return fmt.Errorf("register tick: %w", err)
	}
	s.tick = id
	s.logger.Info("tick registered", zap.Duration("interval", interval))
	return nil
}

// RunNow runs the registered tick through the same job chain as scheduled
// runs, so it is skipped while another tick is in flight. It blocks until the
// tick returns.
func (s *Scheduler) RunNow() error {
	e := s.Cron.Entry(s.tick)
	if !e.Valid() {
		return fmt.Errorf("no tick registered")
	}
	e.WrappedJob.Run()
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the scheduler and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
