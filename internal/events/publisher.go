package events

import (
	"context"
	"fmt"

	"github.com/medivuno/scheduler/pkg/logging"
)

// Publisher enqueues appointment events for asynchronous notification dispatch.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("events: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// PublishBooked enqueues an appointment_booked event.
func (p *Publisher) PublishBooked(ctx context.Context, evt AppointmentBookedV1) error {
	return p.publish(ctx, Envelope{ID: evt.EventID, Kind: KindBooked, Booked: &evt})
}

// PublishRescheduled enqueues an appointment_rescheduled event.
func (p *Publisher) PublishRescheduled(ctx context.Context, evt AppointmentRescheduledV1) error {
	return p.publish(ctx, Envelope{ID: evt.EventID, Kind: KindRescheduled, Rescheduled: &evt})
}

// PublishStatusChanged enqueues an appointment_status_changed event.
func (p *Publisher) PublishStatusChanged(ctx context.Context, evt AppointmentStatusChangedV1) error {
	return p.publish(ctx, Envelope{ID: evt.EventID, Kind: KindStatusChanged, StatusChanged: &evt})
}

func (p *Publisher) publish(ctx context.Context, env Envelope) error {
	if ctx == nil {
		ctx = context.Background()
	}

	env, body, err := env.Encode()
	if err != nil {
		return err
	}

	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("events: failed to enqueue event: %w", err)
	}

	p.logger.Debug("appointment event enqueued", "event_id", env.ID, "kind", env.Kind)
	return nil
}
