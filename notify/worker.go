package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/warp/outpass-engine/workflow"
)

var (
	// QueueDepth is the number of events waiting for the worker.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outpass_notify_queue_depth",
		Help: "Number of workflow events waiting to be turned into notifications",
	})

	// Delivered counts notifications handed to the dispatcher by target kind.
	Delivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outpass_notifications_delivered_total",
		Help: "Total number of notifications delivered",
	}, []string{"target"})

	// Duplicates counts notifications skipped because they were already delivered.
	Duplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outpass_notify_duplicates_total",
		Help: "Total number of duplicate notifications skipped",
	})

	// Failures counts notifications whose delivery failed after retries.
	Failures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outpass_notify_failures_total",
		Help: "Total number of workflow events whose notifications could not be delivered",
	})
)

// Worker drains events, deduplicates them by transition and dispatches the
// rendered notifications.
type Worker struct {
	dispatcher Dispatcher
	marker     Marker
	log        logrus.FieldLogger

	MaxTries   uint
	NewBackOff func() backoff.BackOff
}

func NewWorker(d Dispatcher, m Marker, log logrus.FieldLogger) *Worker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Worker{
		dispatcher: d,
		marker:     m,
		log:        log,
		MaxTries:   3,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			return b
		},
	}
}

// Run consumes events until ctx is canceled or the channel is closed.
func (w *Worker) Run(ctx context.Context, events <-chan workflow.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			QueueDepth.Dec()
			if err := w.Handle(ctx, e); err != nil {
				w.log.WithFields(logrus.Fields{
					"request_id": e.RequestID,
					"cause":      e.Cause,
				}).WithError(err).Error("notification delivery failed")
			}
		}
	}
}

// Handle processes one event. Each rendered notification of a transition is
// delivered at most once; on failure its marker is released so a re-emitted
// event resends only what did not go out.
func (w *Worker) Handle(ctx context.Context, e workflow.Event) error {
	key := e.DedupKey()
	for i, n := range Render(e) {
		nkey := fmt.Sprintf("%s#%d", key, i)
		first, err := w.marker.Mark(ctx, nkey)
		if err != nil {
			return fmt.Errorf("mark %s: %w", nkey, err)
		}
		if !first {
			Duplicates.Inc()
			w.log.WithFields(logrus.Fields{"request_id": e.RequestID, "cause": e.Cause, "key": nkey}).Debug("duplicate notification skipped")
			continue
		}

		if err := w.deliver(ctx, n); err != nil {
			Failures.Inc()
			if rerr := w.marker.Release(ctx, nkey); rerr != nil {
				w.log.WithField("key", nkey).WithError(rerr).Warn("release marker")
			}
			return err
		}
	}
	return nil
}

func (w *Worker) deliver(ctx context.Context, n Notification) error {
	target := "user"
	if n.UserID == "" {
		target = "role"
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if target == "user" {
			return struct{}{}, w.dispatcher.NotifyUser(ctx, n.UserID, n.Title, n.Body)
		}
		return struct{}{}, w.dispatcher.NotifyRole(ctx, n.Role, n.Title, n.Body)
	}, backoff.WithBackOff(w.NewBackOff()), backoff.WithMaxTries(w.MaxTries))
	if err != nil {
		return err
	}
	Delivered.WithLabelValues(target).Inc()
	return nil
}
