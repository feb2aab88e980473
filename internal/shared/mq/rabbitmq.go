package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"bus-tracker/internal/shared/models"
	"bus-tracker/internal/shared/util"
)

const (
	// TrackingExchange carries session lifecycle events (tracking.started, tracking.stopped).
	TrackingExchange = "tracking_topic"
	// LocationExchange carries every committed location record.
	LocationExchange = "location_fanout"

	RoutingTrackingStarted = "tracking.started"
	RoutingTrackingStopped = "tracking.stopped"

	TripStartQueue = "notification_trip_start"
)

// Connection owns the AMQP connection and keeps the channel handed out by
// Channel() pointing at a live connection.
type Connection struct {
	mu     sync.RWMutex
	conn   *amqp091.Connection
	ch     *amqp091.Channel
	url    string
	logger *util.Logger
	done   chan struct{}
}

func ConnectToRMQ(cfg *models.RabbitMQConfig, logger *util.Logger) (*Connection, error) {
	dsn := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.User, cfg.Password, cfg.Host, cfg.Port)

	var err error
	for i := 0; i < 10; i++ {
		var conn *amqp091.Connection
		conn, err = amqp091.Dial(dsn)
		if err == nil {
			var ch *amqp091.Channel
			ch, err = conn.Channel()
			if err == nil {
				c := &Connection{conn: conn, ch: ch, url: dsn, logger: logger, done: make(chan struct{})}
				go c.monitor()
				return c, nil
			}
			conn.Close()
		}
		logger.Warn("RabbitMQ", fmt.Sprintf("not ready, retrying... (%d/10)", i+1))
		time.Sleep(3 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
}

func (c *Connection) Channel() *amqp091.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ch
}

func (c *Connection) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn == nil || c.conn.IsClosed()
}

func (c *Connection) Close() error {
	close(c.done)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// monitor reconnects with exponential backoff when the broker drops us.
func (c *Connection) monitor() {
	for {
		c.mu.RLock()
		notifyClose := c.conn.NotifyClose(make(chan *amqp091.Error, 1))
		c.mu.RUnlock()

		select {
		case <-c.done:
			return
		case err := <-notifyClose:
			if err == nil {
				// closed cleanly
				return
			}
			c.logger.Error("RabbitMQ", "connection lost, reconnecting", err)
		}

		backoff := 5 * time.Second
		maxBackoff := 60 * time.Second

		for {
			select {
			case <-c.done:
				return
			case <-time.After(backoff):
			}

			conn, err := amqp091.Dial(c.url)
			if err == nil {
				var ch *amqp091.Channel
				ch, err = conn.Channel()
				if err == nil {
					c.mu.Lock()
					c.conn, c.ch = conn, ch
					c.mu.Unlock()
					c.logger.OK("RabbitMQ", "reconnected")
					break
				}
				conn.Close()
			}

			c.logger.Error("RabbitMQ", fmt.Sprintf("reconnect failed, retrying in %v", backoff), err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// DeclareTopology declares the exchanges and queues both services rely on.
func DeclareTopology(ch *amqp091.Channel) error {
	if err := ch.ExchangeDeclare(TrackingExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", TrackingExchange, err)
	}
	if err := ch.ExchangeDeclare(LocationExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", LocationExchange, err)
	}
	if _, err := ch.QueueDeclare(TripStartQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", TripStartQueue, err)
	}
	if err := ch.QueueBind(TripStartQueue, RoutingTrackingStarted, TrackingExchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", TripStartQueue, err)
	}
	return nil
}

type Publisher struct {
	conn *Connection
}

func NewPublisher(conn *Connection) *Publisher {
	return &Publisher{conn: conn}
}

// Publish marshals data as JSON. An empty routing key publishes to a fanout exchange.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = p.conn.Channel().PublishWithContext(ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}
