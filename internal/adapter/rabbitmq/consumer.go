package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/interfaces"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsQueue       = "order_events"
	eventsDLXExchange = "order_events_dlx"
	eventsDLQ         = "order_events_dlq"

	channelRetryDelay = 5 * time.Second
)

// EventBindings are the routing keys the events queue listens on.
var EventBindings = []string{"payment.#", "delivery.#"}

type consumer struct {
	conn     Connection
	prefetch int
	logger   logger.Logger
}

func NewConsumer(conn Connection, prefetch int, logger logger.Logger) interfaces.MessageConsumer {
	return &consumer{conn: conn, prefetch: prefetch, logger: logger}
}

func (c *consumer) ConsumeEvents(ctx context.Context, handler interfaces.EventMessageHandler) error {
	return c.loop(ctx, "events", func(ctx context.Context) error {
		return c.consumeEvents(ctx, handler)
	})
}

func (c *consumer) ConsumeNotifications(ctx context.Context, handler interfaces.NotificationHandler) error {
	return c.loop(ctx, "notifications", func(ctx context.Context) error {
		return c.consumeNotifications(ctx, handler)
	})
}

// loop keeps a consumer alive across broker disconnects until ctx is done.
func (c *consumer) loop(ctx context.Context, name string, run func(ctx context.Context) error) error {
	for {
		err := run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		c.logger.Error("consumer_disconnected", fmt.Sprintf("%s consumer disconnected, reconnecting", name), "", nil, err)

		// a dropped session is redialed with backoff; a dropped channel is reopened after a pause
		if c.conn.IsClosed() {
			if err := c.conn.Reconnect(ctx); err != nil {
				if errors.Is(err, errSessionClosed) || ctx.Err() != nil {
					return err
				}
				c.logger.Error("rabbitmq_reconnect_failed", "Failed to reconnect to RabbitMQ", "", nil, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(channelRetryDelay):
		}
	}
}

func (c *consumer) consumeEvents(ctx context.Context, handler interfaces.EventMessageHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	closeChan := ch.NotifyClose()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(EventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return fmt.Errorf("channel closed gracefully")

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("messages channel closed")
			}
			c.settle(msg, handler(ctx, msg.RoutingKey, msg.Body))
		}
	}
}

// settle acks handled messages. A failed message is retried once, then dead-lettered.
func (c *consumer) settle(msg amqp.Delivery, err error) {
	if err == nil {
		msg.Ack(false)
		return
	}

	requeue := !msg.Redelivered
	c.logger.Error("event_handling_failed", "Failed to handle event", msg.MessageId, map[string]interface{}{
		"routing_key": msg.RoutingKey,
		"requeue":     requeue,
	}, err)
	msg.Nack(false, requeue)
}

func (c *consumer) consumeNotifications(ctx context.Context, handler interfaces.NotificationHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	closeChan := ch.NotifyClose()

	// temporary exclusive queue per subscriber
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", NotificationsExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return fmt.Errorf("channel closed gracefully")

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("messages channel closed")
			}
			if err := handler(ctx, msg.Body); err != nil {
				c.logger.Debug("notification_skipped", "Notification could not be handled", "", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// DeclareTopology declares the orders and notifications exchanges, the events
// exchange with its queue, and the dead letter path for events that keep failing.
func DeclareTopology(ch Channel) error {
	if err := ch.ExchangeDeclare(OrdersExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare orders exchange: %w", err)
	}

	if err := ch.ExchangeDeclare(NotificationsExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare notifications exchange: %w", err)
	}

	if err := ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare events exchange: %w", err)
	}

	if err := ch.ExchangeDeclare(eventsDLXExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(eventsDLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	if err := ch.QueueBind(eventsDLQ, "", eventsDLXExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange": eventsDLXExchange,
	}
	q, err := ch.QueueDeclare(EventsQueue, true, false, false, false, args)
	if err != nil {
		return fmt.Errorf("failed to declare events queue: %w", err)
	}

	for _, key := range EventBindings {
		if err := ch.QueueBind(q.Name, key, EventsExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind events queue to %s: %w", key, err)
		}
	}
	return nil
}
