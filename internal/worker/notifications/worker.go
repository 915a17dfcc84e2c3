// Package notifications consumes appointment events from the queue and
// dispatches doctor notifications.
package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/medivuno/scheduler/internal/events"
	"github.com/medivuno/scheduler/pkg/logging"
)

const consumerName = "notifications"

// Notifier dispatches one notification per event kind.
type Notifier interface {
	NotifyBooked(ctx context.Context, evt events.AppointmentBookedV1) error
	NotifyRescheduled(ctx context.Context, evt events.AppointmentRescheduledV1) error
	NotifyStatusChanged(ctx context.Context, evt events.AppointmentStatusChangedV1) error
}

// Deduper remembers which event ids were already handled. Nil disables
// dedupe, which is acceptable only for the in-memory queue.
type Deduper interface {
	AlreadyProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
}

// Config tunes the consume loop.
type Config struct {
	Workers          int
	ReceiveBatchSize int
	ReceiveWaitSecs  int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.ReceiveBatchSize <= 0 {
		c.ReceiveBatchSize = 10
	}
	if c.ReceiveWaitSecs <= 0 {
		c.ReceiveWaitSecs = 20
	}
	return c
}

// Worker polls the queue and hands events to the notifier.
type Worker struct {
	queue    events.Queue
	notifier Notifier
	dedupe   Deduper
	logger   *logging.Logger
	cfg      Config
	wg       sync.WaitGroup
}

// New creates a notification worker.
func New(queue events.Queue, notifier Notifier, dedupe Deduper, logger *logging.Logger, cfg Config) *Worker {
	if queue == nil {
		panic("notifications: queue required")
	}
	if notifier == nil {
		panic("notifications: notifier required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		queue:    queue,
		notifier: notifier,
		dedupe:   dedupe,
		logger:   logger,
		cfg:      cfg.withDefaults(),
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("notification worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("notification worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.ReceiveBatchSize, w.cfg.ReceiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive appointment events", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg events.Message) {
	env, err := events.DecodeEnvelope(msg.Body)
	if err != nil {
		// Malformed payloads never become valid; drop them.
		w.logger.Error("failed to decode appointment event", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	if w.dedupe != nil && env.ID != "" {
		seen, err := w.dedupe.AlreadyProcessed(ctx, consumerName, env.ID)
		if err != nil {
			w.logger.Error("dedupe lookup failed, leaving message for retry", "error", err, "event_id", env.ID)
			return
		}
		if seen {
			w.logger.Debug("skipping already processed event", "event_id", env.ID)
			w.deleteMessage(msg.ReceiptHandle)
			return
		}
	}

	if err := w.dispatch(ctx, env); err != nil {
		// Leave the message on the queue so the broker redelivers it.
		w.logger.Error("notification dispatch failed", "error", err, "event_id", env.ID, "kind", env.Kind)
		return
	}

	if w.dedupe != nil && env.ID != "" {
		if _, err := w.dedupe.MarkProcessed(ctx, consumerName, env.ID); err != nil {
			w.logger.Error("failed to mark event processed", "error", err, "event_id", env.ID)
		}
	}
	w.deleteMessage(msg.ReceiptHandle)
}

func (w *Worker) dispatch(ctx context.Context, env events.Envelope) error {
	switch env.Kind {
	case events.KindBooked:
		if env.Booked == nil {
			return errors.New("notifications: booked envelope missing payload")
		}
		return w.notifier.NotifyBooked(ctx, *env.Booked)
	case events.KindRescheduled:
		if env.Rescheduled == nil {
			return errors.New("notifications: rescheduled envelope missing payload")
		}
		return w.notifier.NotifyRescheduled(ctx, *env.Rescheduled)
	case events.KindStatusChanged:
		if env.StatusChanged == nil {
			return errors.New("notifications: status changed envelope missing payload")
		}
		return w.notifier.NotifyStatusChanged(ctx, *env.StatusChanged)
	default:
		w.logger.Warn("ignoring unknown event kind", "kind", env.Kind, "event_id", env.ID)
		return nil
	}
}

func (w *Worker) deleteMessage(receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	// Delete with a fresh context so shutdown does not strand handled messages.
	deleteCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete queue message", "error", err)
	}
}
