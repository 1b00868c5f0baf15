package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/l2settle/committer/internal/ports"
)

var commitListenerLog = logrus.WithField("component", "commit_listener")

// CommitListener watches the L1 settlement contract for commitment events
// and marks the matching BlockSubmission completed (spec §4.3).
type CommitListener struct {
	l1      ports.L1Api
	storage ports.Storage

	events <-chan ports.CommitEvent
	errs   <-chan error

	latestCommitted prometheus.Gauge
}

// NewCommitListener builds a CommitListener. The event stream is not
// started until Run's first call.
func NewCommitListener(l1 ports.L1Api, storage ports.Storage) *CommitListener {
	return &CommitListener{
		l1:      l1,
		storage: storage,
		latestCommitted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "latest_committed_block",
			Help: "Height of the most recently observed completed block commitment.",
		}),
	}
}

// RegisterMetrics registers this worker's collectors.
func (c *CommitListener) RegisterMetrics(registry *prometheus.Registry) {
	registry.MustRegister(c.latestCommitted)
}

// Run drains whatever commit events are currently buffered on the event
// stream, (re)starting the subscription from the height of the oldest
// incomplete submission if it has not been started yet or has ended.
func (c *CommitListener) Run(ctx context.Context) error {
	if c.events == nil {
		fromHeight, err := c.resumeHeight(ctx)
		if err != nil {
			return errors.Wrap(err, "determining resume height")
		}
		c.events, c.errs = c.l1.EventStream(ctx, fromHeight)
	}

	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				c.events, c.errs = nil, nil
				return nil
			}
			if err := c.handle(ctx, ev); err != nil {
				commitListenerLog.WithError(err).Warn("handling commit event")
			}
		case err, ok := <-c.errs:
			c.events, c.errs = nil, nil
			if ok && err != nil {
				return errors.Wrap(err, "commit event stream")
			}
			return nil
		default:
			return nil
		}
	}
}

func (c *CommitListener) handle(ctx context.Context, ev ports.CommitEvent) error {
	sub, err := c.storage.MarkBlockSubmissionCompleted(ctx, ev.FuelBlockHash)
	if errors.Is(err, ports.ErrNotFound) {
		commitListenerLog.WithField("hash", ev.FuelBlockHash).Warn("commit event for unknown block submission")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "marking block submission completed")
	}

	c.latestCommitted.Set(float64(sub.FuelBlockHeight))
	commitListenerLog.WithField("height", sub.FuelBlockHeight).Info("observed block commitment")
	return nil
}

// resumeHeight starts the subscription at L1 height zero if no submission is
// currently incomplete; otherwise it restarts from the lowest submittal
// height among every incomplete submission, so the oldest still-outstanding
// commit event is re-observed rather than permanently skipped by jumping
// past it to a more recently submitted one (spec §4.3 "Failure policy").
func (c *CommitListener) resumeHeight(ctx context.Context) (uint64, error) {
	incomplete, err := c.storage.IncompleteBlockSubmissions(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "reading incomplete block submissions")
	}
	if len(incomplete) == 0 {
		return 0, nil
	}

	from := incomplete[0].SubmittalHeight
	for _, sub := range incomplete[1:] {
		if sub.SubmittalHeight < from {
			from = sub.SubmittalHeight
		}
	}
	return from, nil
}
