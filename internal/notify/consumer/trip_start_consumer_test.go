package consumer

import (
	"context"
	"errors"
	"io"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"bus-tracker/internal/notify/domain"
	"bus-tracker/internal/shared/util"
)

type ackRecorder struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	a.nacked++
	return nil
}

type stubRelay struct {
	got domain.Event
	err error
}

func (s *stubRelay) Relay(_ context.Context, ev domain.Event) (domain.Report, error) {
	s.got = ev
	return domain.Report{Attempted: 1, Succeeded: 1}, s.err
}

func newTestConsumer(r Relayer) *TripStartConsumer {
	return NewTripStartConsumer(r, nil, util.NewWithWriter(io.Discard))
}

func TestHandle_Relays(t *testing.T) {
	relay := &stubRelay{}
	ack := &ackRecorder{}
	c := newTestConsumer(relay)

	c.handle(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte(`{"vehicleId":"B-12","sessionId":"s1","driverLabel":"Ravi","initiatedBy":"d1","excludeToken":"tk","startedAt":"2024-05-01T07:30:00Z"}`),
	})

	if ack.acked != 1 || ack.nacked != 0 {
		t.Fatalf("acked=%d nacked=%d", ack.acked, ack.nacked)
	}
	if relay.got.VehicleID != "B-12" || relay.got.InitiatedBy != "d1" || relay.got.ExcludeToken != "tk" {
		t.Errorf("event = %+v", relay.got)
	}
	if relay.got.CreatedAt.IsZero() {
		t.Error("startedAt not carried over")
	}
}

func TestHandle_MalformedIsDropped(t *testing.T) {
	ack := &ackRecorder{}
	relay := &stubRelay{}
	newTestConsumer(relay).handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte(`not json`)})

	if ack.nacked != 1 || ack.requeue {
		t.Errorf("nacked=%d requeue=%v", ack.nacked, ack.requeue)
	}
	if relay.got.VehicleID != "" {
		t.Error("relay called for malformed message")
	}
}

func TestHandle_RelayFailureNotRequeued(t *testing.T) {
	ack := &ackRecorder{}
	newTestConsumer(&stubRelay{err: errors.New("directory down")}).handle(context.Background(),
		amqp.Delivery{Acknowledger: ack, Body: []byte(`{"vehicleId":"B-12"}`)})

	if ack.nacked != 1 || ack.requeue || ack.acked != 0 {
		t.Errorf("acked=%d nacked=%d requeue=%v", ack.acked, ack.nacked, ack.requeue)
	}
}
