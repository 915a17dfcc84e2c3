package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medivuno/scheduler/internal/events"
)

type fakeNotifier struct {
	mu          sync.Mutex
	booked      []events.AppointmentBookedV1
	rescheduled []events.AppointmentRescheduledV1
	status      []events.AppointmentStatusChangedV1
	err         error
}

func (f *fakeNotifier) NotifyBooked(_ context.Context, evt events.AppointmentBookedV1) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.booked = append(f.booked, evt)
	return nil
}

func (f *fakeNotifier) NotifyRescheduled(_ context.Context, evt events.AppointmentRescheduledV1) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rescheduled = append(f.rescheduled, evt)
	return nil
}

func (f *fakeNotifier) NotifyStatusChanged(_ context.Context, evt events.AppointmentStatusChangedV1) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.status = append(f.status, evt)
	return nil
}

func (f *fakeNotifier) bookedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.booked)
}

type mapDeduper struct {
	mu        sync.Mutex
	seen      map[string]bool
	lookupErr error
}

func newMapDeduper() *mapDeduper {
	return &mapDeduper{seen: map[string]bool{}}
}

func (d *mapDeduper) AlreadyProcessed(_ context.Context, consumer, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lookupErr != nil {
		return false, d.lookupErr
	}
	return d.seen[consumer+":"+eventID], nil
}

func (d *mapDeduper) MarkProcessed(_ context.Context, consumer, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := consumer + ":" + eventID
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

// countingQueue wraps a MemoryQueue to observe deletes.
type countingQueue struct {
	*events.MemoryQueue
	mu      sync.Mutex
	deletes []string
}

func (q *countingQueue) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	q.deletes = append(q.deletes, receiptHandle)
	q.mu.Unlock()
	return q.MemoryQueue.Delete(ctx, receiptHandle)
}

func (q *countingQueue) deleteCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.deletes)
}

func encodeBooked(t *testing.T, eventID string) string {
	t.Helper()
	env := events.Envelope{
		ID:   eventID,
		Kind: events.KindBooked,
		Booked: &events.AppointmentBookedV1{
			EventID:       eventID,
			AppointmentID: "appt-1",
			DoctorID:      "doc-1",
			PatientID:     "patient-1",
		},
	}
	_, body, err := env.Encode()
	require.NoError(t, err)
	return body
}

func newMessage(body string) events.Message {
	return events.Message{ID: "msg-1", Body: body, ReceiptHandle: "rh-1"}
}

func TestHandleMessageDispatchesBooked(t *testing.T) {
	queue := &countingQueue{MemoryQueue: events.NewMemoryQueue(4)}
	notifier := &fakeNotifier{}
	dedupe := newMapDeduper()
	w := New(queue, notifier, dedupe, nil, Config{})

	w.handleMessage(context.Background(), newMessage(encodeBooked(t, "evt-1")))

	require.Len(t, notifier.booked, 1)
	assert.Equal(t, "appt-1", notifier.booked[0].AppointmentID)
	assert.Equal(t, 1, queue.deleteCount())

	seen, err := dedupe.AlreadyProcessed(context.Background(), consumerName, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestHandleMessageSkipsDuplicate(t *testing.T) {
	queue := &countingQueue{MemoryQueue: events.NewMemoryQueue(4)}
	notifier := &fakeNotifier{}
	dedupe := newMapDeduper()
	w := New(queue, notifier, dedupe, nil, Config{})

	body := encodeBooked(t, "evt-1")
	w.handleMessage(context.Background(), newMessage(body))
	w.handleMessage(context.Background(), newMessage(body))

	assert.Len(t, notifier.booked, 1)
	// Both deliveries are deleted, only one is dispatched.
	assert.Equal(t, 2, queue.deleteCount())
}

func TestHandleMessageDropsMalformedBody(t *testing.T) {
	queue := &countingQueue{MemoryQueue: events.NewMemoryQueue(4)}
	notifier := &fakeNotifier{}
	w := New(queue, notifier, nil, nil, Config{})

	w.handleMessage(context.Background(), newMessage("{not json"))

	assert.Empty(t, notifier.booked)
	assert.Equal(t, 1, queue.deleteCount())
}

func TestHandleMessageLeavesOnDispatchFailure(t *testing.T) {
	queue := &countingQueue{MemoryQueue: events.NewMemoryQueue(4)}
	notifier := &fakeNotifier{err: errors.New("smtp down")}
	dedupe := newMapDeduper()
	w := New(queue, notifier, dedupe, nil, Config{})

	w.handleMessage(context.Background(), newMessage(encodeBooked(t, "evt-1")))

	assert.Equal(t, 0, queue.deleteCount())
	seen, err := dedupe.AlreadyProcessed(context.Background(), consumerName, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestHandleMessageLeavesOnDedupeLookupFailure(t *testing.T) {
	queue := &countingQueue{MemoryQueue: events.NewMemoryQueue(4)}
	notifier := &fakeNotifier{}
	dedupe := newMapDeduper()
	dedupe.lookupErr = errors.New("database down")
	w := New(queue, notifier, dedupe, nil, Config{})

	w.handleMessage(context.Background(), newMessage(encodeBooked(t, "evt-1")))

	assert.Empty(t, notifier.booked)
	assert.Equal(t, 0, queue.deleteCount())
}

func TestHandleMessageIgnoresUnknownKind(t *testing.T) {
	queue := &countingQueue{MemoryQueue: events.NewMemoryQueue(4)}
	notifier := &fakeNotifier{}
	w := New(queue, notifier, nil, nil, Config{})

	w.handleMessage(context.Background(), newMessage(`{"id":"evt-1","kind":"appointment_teleported.v1"}`))

	assert.Empty(t, notifier.booked)
	assert.Equal(t, 1, queue.deleteCount())
}

func TestWorkerConsumesFromQueue(t *testing.T) {
	queue := events.NewMemoryQueue(8)
	notifier := &fakeNotifier{}
	w := New(queue, notifier, newMapDeduper(), nil, Config{Workers: 2, ReceiveWaitSecs: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	for i := 0; i < 3; i++ {
		require.NoError(t, queue.Send(ctx, encodeBooked(t, "evt-"+string(rune('a'+i)))))
	}

	deadline := time.After(3 * time.Second)
	for notifier.bookedCount() < 3 {
		select {
		case <-deadline:
			t.Fatalf("timed out, dispatched %d of 3 events", notifier.bookedCount())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	w.Wait()
	assert.Equal(t, 3, notifier.bookedCount())
}
