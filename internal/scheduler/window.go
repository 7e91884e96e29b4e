package scheduler

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Action is a unit of work attempted by a DailyWindow. Attempt reports
// success; errors must be logged by the action and collapsed to false.
type Action interface {
	Attempt() bool
}

// ActionFunc adapts a plain function to Action.
type ActionFunc func() bool

func (f ActionFunc) Attempt() bool { return f() }

// DailyWindow runs an action at most once per day inside an hour-of-day
// window, retrying on every evaluation until the action succeeds.
//
// The action is eligible when start < hour < end (both bounds excluded) and
// more than (24 - end + start) hours have passed since the last success.
type DailyWindow struct {
	Name string

	startHour int
	endHour   int
	loc       *time.Location
	logger    *zap.Logger

	evalMu      sync.Mutex // serializes evaluations
	mu          sync.RWMutex
	lastSuccess int64 // epoch seconds, 0 = never
}

// NewDailyWindow validates 0 <= start < end <= 24. Hours are read in loc.
func NewDailyWindow(name string, startHour, endHour int, loc *time.Location, logger *zap.Logger) (*DailyWindow, error) {
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return nil, fmt.Errorf("window %q: invalid hours [%d, %d): need 0 <= start < end <= 24", name, startHour, endHour)
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyWindow{
		Name:      name,
		startHour: startHour,
		endHour:   endHour,
		loc:       loc,
		logger:    logger.With(zap.String("component", "window"), zap.String("window", name)),
	}, nil
}

// Gap is the minimum time between two successes: the complement of the window.
func (w *DailyWindow) Gap() time.Duration {
	return time.Duration(24-w.endHour+w.startHour) * time.Hour
}

// Hours returns the configured window bounds.
func (w *DailyWindow) Hours() (start, end int) {
	return w.startHour, w.endHour
}

// Due reports whether an evaluation at now would invoke the action.
func (w *DailyWindow) Due(now time.Time) bool {
	hour := now.In(w.loc).Hour()
	if hour <= w.startHour || hour >= w.endHour {
		return false
	}
	elapsed := now.Unix() - w.LastSuccessUnix()
	return elapsed > int64(w.Gap()/time.Second)
}

// EvaluateAndMaybeRun invokes action when the window is due at now and
// records now as the last success if the action returns true.
func (w *DailyWindow) EvaluateAndMaybeRun(now time.Time, action Action) *DailyWindow {
	w.evalMu.Lock()
	defer w.evalMu.Unlock()

	if !w.Due(now) {
		return w
	}

	w.logger.Debug("executing", zap.Int("hour", now.In(w.loc).Hour()))
	if !action.Attempt() {
		w.logger.Info("attempt failed, will retry on next tick")
		return w
	}

	w.mu.Lock()
	if ts := now.Unix(); ts > w.lastSuccess {
		w.lastSuccess = ts
	}
	w.mu.Unlock()
	w.logger.Info("attempt succeeded", zap.Time("at", now))
	return w
}

// LastSuccessUnix returns the last success in epoch seconds (0 = never).
func (w *DailyWindow) LastSuccessUnix() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastSuccess
}

// LastSuccess returns the last success time, or the zero time if the action
// never succeeded.
func (w *DailyWindow) LastSuccess() time.Time {
	ts := w.LastSuccessUnix()
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).In(w.loc)
}

// Restore seeds the last success from persisted state. It never moves the
// timestamp backward.
func (w *DailyWindow) Restore(ts int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ts > w.lastSuccess {
		w.lastSuccess = ts
	}
}
