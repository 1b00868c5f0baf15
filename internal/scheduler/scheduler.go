// Package scheduler runs each worker as an independent, cooperatively
// cancelable polling loop. Workers keep no pipeline state between ticks
// (only the Commit Listener holds its open event subscription); the
// scheduler's only job is to call Run on an interval and stop cleanly when
// asked (spec §4.8, original's schedule_polling).
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/l2settle/committer/internal/services"
)

var log = logrus.WithField("component", "scheduler")

// Task pairs a Runner with the name it logs under and the interval it polls
// at.
type Task struct {
	Name     string
	Runner   services.Runner
	Interval time.Duration
}

// Scheduler fans a set of Tasks out into their own goroutines and tears them
// all down together on cancellation.
type Scheduler struct {
	tasks []Task
}

// New returns a Scheduler with no tasks registered yet.
func New() *Scheduler {
	return &Scheduler{}
}

// Register adds a task. Must be called before Run.
func (s *Scheduler) Register(t Task) {
	s.tasks = append(s.tasks, t)
}

// Run starts every registered task and blocks until ctx is canceled, then
// waits for every task to exit before returning. A failing Run call is
// logged and never stops its task, so Run returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range s.tasks {
		t := t
		g.Go(func() error {
			s.poll(ctx, t)
			return nil
		})
	}
	return g.Wait()
}

// poll ticks t.Runner.Run on t.Interval until ctx is canceled. Ticks never
// overlap: the next tick is scheduled only once the previous Run call has
// returned, so a slow adapter call simply delays the next tick rather than
// piling up concurrent calls (original's suspend-between-polls behavior).
func (s *Scheduler) poll(ctx context.Context, t Task) {
	taskLog := log.WithField("task", t.Name)
	timer := time.NewTimer(t.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			taskLog.Debug("stopping")
			return
		case <-timer.C:
			if err := t.Runner.Run(ctx); err != nil {
				taskLog.WithError(err).Warn("tick failed")
			}
			timer.Reset(t.Interval)
		}
	}
}
