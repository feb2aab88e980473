package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"bus-tracker/internal/notify/domain"
	"bus-tracker/internal/shared/mq"
	"bus-tracker/internal/shared/util"
)

// Relayer is implemented by *app.Relay.
type Relayer interface {
	Relay(ctx context.Context, ev domain.Event) (domain.Report, error)
}

// ChannelSource is implemented by *mq.Connection; the channel changes after a reconnect.
type ChannelSource interface {
	Channel() *amqp.Channel
}

type TripStartConsumer struct {
	relay  Relayer
	source ChannelSource
	queue  string
	logger *util.Logger
	retry  time.Duration
}

// tripStarted mirrors the event the tracking service publishes on tracking.started.
type tripStarted struct {
	VehicleID    string    `json:"vehicleId"`
	SessionID    string    `json:"sessionId"`
	DriverLabel  string    `json:"driverLabel"`
	InitiatedBy  string    `json:"initiatedBy"`
	ExcludeToken string    `json:"excludeToken"`
	StartedAt    time.Time `json:"startedAt"`
}

func NewTripStartConsumer(relay Relayer, source ChannelSource, logger *util.Logger) *TripStartConsumer {
	return &TripStartConsumer{
		relay:  relay,
		source: source,
		queue:  mq.TripStartQueue,
		logger: logger,
		retry:  5 * time.Second,
	}
}

// Start consumes until ctx is done, resubscribing whenever the delivery
// channel closes underneath it.
func (c *TripStartConsumer) Start(ctx context.Context) error {
	msgs, err := c.consume()
	if err != nil {
		return err
	}

	go func() {
		for {
			c.drain(ctx, msgs)
			if ctx.Err() != nil {
				return
			}

			c.logger.Warn("TripStartConsumer", "delivery channel closed, resubscribing")
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.retry):
				}
				if msgs, err = c.consume(); err == nil {
					break
				}
				c.logger.Error("TripStartConsumer", "resubscribe failed", err)
			}
		}
	}()

	c.logger.OK("TripStartConsumer", c.queue+" consumer started")
	return nil
}

func (c *TripStartConsumer) consume() (<-chan amqp.Delivery, error) {
	ch := c.source.Channel()
	if ch == nil {
		return nil, errors.New("no AMQP channel")
	}
	return ch.Consume(
		c.queue,
		"",
		false, // manual acknowledgment
		false,
		false,
		false,
		nil,
	)
}

func (c *TripStartConsumer) drain(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			c.handle(ctx, msg)
		}
	}
}

// handle never requeues: a trip start that could not be relayed is reported
// and the driver may start again.
func (c *TripStartConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	var ev tripStarted
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		c.logger.Error("TripStartConsumer", "invalid JSON", err)
		msg.Nack(false, false)
		return
	}

	relayCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	report, err := c.relay.Relay(relayCtx, domain.Event{
		VehicleID:    ev.VehicleID,
		DriverLabel:  ev.DriverLabel,
		InitiatedBy:  ev.InitiatedBy,
		ExcludeToken: ev.ExcludeToken,
		CreatedAt:    ev.StartedAt,
	})
	if err != nil {
		c.logger.Error("TripStartConsumer", fmt.Sprintf("relay failed for vehicle %s session %s", ev.VehicleID, ev.SessionID), err)
		msg.Nack(false, false)
		return
	}

	c.logger.Info("TripStartConsumer", fmt.Sprintf("vehicle %s: %d/%d delivered", ev.VehicleID, report.Succeeded, report.Attempted))
	msg.Ack(false)
}
