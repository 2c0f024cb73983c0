package reminders

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/deltasquad/taskbot/internal/observability"
)

// Sender delivers one reminder notification to its user. The chat transport
// implements it.
type Sender interface {
	Deliver(ctx context.Context, rem DueReminder) error
}

// Scheduler sweeps the store on a fixed interval, independent of request
// traffic. Each sweep delivers due reminders one by one and batch-closes the
// ones that went out; a failed delivery stays due and is retried on the next
// sweep. At-least-once, not exactly-once.
type Scheduler struct {
	store    Store
	sender   Sender
	interval time.Duration
	breaker  *gobreaker.CircuitBreaker
	metrics  *observability.Metrics
	log      *logrus.Entry
}

func NewScheduler(store Store, sender Sender, interval time.Duration, metrics *observability.Metrics, log *logrus.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	entry := log.WithField("component", "reminder-scheduler")
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ReminderSenderCB",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			entry.Infof("circuit breaker %s: %s -> %s", name, from.String(), to.String())
		},
	})
	return &Scheduler{
		store:    store,
		sender:   sender,
		interval: interval,
		breaker:  breaker,
		metrics:  metrics,
		log:      entry,
	}
}

// Run blocks until ctx is canceled, sweeping once per interval.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one delivery pass. Exported so tests and the postpone flow can
// drive it without the ticker.
func (s *Scheduler) Sweep(ctx context.Context) {
	started := time.Now()
	due, err := s.store.Due(ctx, time.Now())
	if err != nil {
		s.log.WithError(err).Warn("unable to fetch due reminders")
		return
	}
	if s.metrics != nil {
		s.metrics.ReminderSweeps.Inc()
	}

	delivered := make([]int64, 0, len(due))
	for _, rem := range due {
		rem := rem
		_, err := s.breaker.Execute(func() (any, error) {
			return nil, s.sender.Deliver(ctx, rem)
		})
		if err != nil {
			// Leave the row due; the next sweep retries it.
			s.log.WithError(err).WithField("reminder_id", rem.ID).Warn("unable to deliver reminder")
			if s.metrics != nil {
				s.metrics.RemindersFailed.Inc()
			}
			continue
		}
		delivered = append(delivered, rem.ID)
		if s.metrics != nil {
			s.metrics.RemindersDelivered.Inc()
		}
	}

	if err := s.store.CloseBatch(ctx, delivered); err != nil {
		s.log.WithError(err).Warn("unable to close delivered reminders")
	}
	if s.metrics != nil {
		s.metrics.SweepDuration.Observe(time.Since(started).Seconds())
	}
}
