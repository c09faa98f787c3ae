package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/YelzhanWeb/catering/internal/interfaces"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	OrdersExchange        = "orders_topic"
	NotificationsExchange = "notifications_fanout"
	EventsExchange        = "order_events_topic"

	OrderCreatedKey = "order.created"
)

type Publisher struct {
	conn Connection
}

func NewPublisher(conn Connection) *Publisher {
	return &Publisher{conn: conn}
}

func (p *Publisher) PublishOrderCreated(ctx context.Context, msg interfaces.OrderCreatedMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return p.publish(ctx, OrdersExchange, OrderCreatedKey, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    msg.OrderID,
		Body:         body,
	})
}

func (p *Publisher) PublishStatusUpdate(ctx context.Context, msg interfaces.StatusUpdateMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   msg.Timestamp,
		Body:        body,
	}
	if msg.Alert {
		pub.Priority = 9
		pub.Headers = amqp.Table{"alert": true}
	}
	return p.publish(ctx, NotificationsExchange, "", pub)
}

// PublishEvent puts a payment or delivery event on the events exchange,
// where the event worker picks it up.
func (p *Publisher) PublishEvent(ctx context.Context, routingKey string, body []byte) error {
	return p.publish(ctx, EventsExchange, routingKey, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
	})
}

// publish uses a short-lived channel. The exchanges exist since the session was dialed.
func (p *Publisher) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.PublishWithContext(ctx, exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}
