package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection is the broker session shared by the publisher and the consumers.
// Every exchange and durable queue is declared when the session is dialed.
type Connection interface {
	Channel() (Channel, error)
	Close() error
	IsClosed() bool
	// Reconnect dials again with backoff after the broker dropped the session.
	Reconnect(ctx context.Context) error
}

type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Close() error
	NotifyClose() <-chan *amqp.Error
}

type Queue struct {
	Name string
}

var errSessionClosed = errors.New("rabbitmq session is closed")

type session struct {
	cfg    config.RabbitMQConfig
	logger logger.Logger

	mu     sync.RWMutex
	conn   *amqp.Connection
	closed bool
}

// Connect dials the broker under the configured reconnect policy and declares
// the catering topology.
func Connect(ctx context.Context, cfg config.RabbitMQConfig, logger logger.Logger) (Connection, error) {
	s := &session{cfg: cfg, logger: logger}
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return s, nil
}

func (s *session) dial(ctx context.Context) (*amqp.Connection, error) {
	policy := s.cfg.Reconnect
	for attempt := 1; ; attempt++ {
		conn, err := amqp.Dial(s.cfg.URL())
		if err == nil {
			if err := declareOn(conn); err != nil {
				conn.Close()
				return nil, err
			}
			return conn, nil
		}
		if policy.MaxAttempts > 0 && attempt >= policy.MaxAttempts {
			return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempt, err)
		}

		delay := backoff(policy, attempt)
		s.logger.Warn("rabbitmq_dial_failed", "RabbitMQ unreachable, retrying", "", map[string]interface{}{
			"attempt":  attempt,
			"retry_in": delay.String(),
			"error":    err.Error(),
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func declareOn(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open setup channel: %w", err)
	}
	defer ch.Close()
	return DeclareTopology(&amqpChannel{ch: ch})
}

// backoff doubles the initial delay per failed attempt up to the cap.
func backoff(policy config.ReconnectPolicy, attempt int) time.Duration {
	delay := time.Duration(policy.InitialDelayMs) * time.Millisecond
	limit := time.Duration(policy.MaxDelayMs) * time.Millisecond
	for i := 1; i < attempt && delay < limit; i++ {
		delay *= 2
	}
	return min(delay, limit)
}

func (s *session) Channel() (Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errSessionClosed
	}
	ch, err := s.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return &amqpChannel{ch: ch}, nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.conn != nil && !s.conn.IsClosed() {
		return s.conn.Close()
	}
	return nil
}

func (s *session) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed || s.conn == nil || s.conn.IsClosed()
}

// Reconnect is a no-op while the current connection is alive. Channel callers
// are not blocked during the backoff; the new connection is swapped in once dialed.
func (s *session) Reconnect(ctx context.Context) error {
	if s.isShutDown() {
		return errSessionClosed
	}
	if !s.IsClosed() {
		return nil
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to reconnect to RabbitMQ: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		conn.Close()
		return errSessionClosed
	}
	s.conn = conn
	s.logger.Info("rabbitmq_reconnected", "Reconnected to RabbitMQ", "", map[string]interface{}{"host": s.cfg.Host})
	return nil
}

func (s *session) isShutDown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

type amqpChannel struct {
	ch *amqp.Channel
}

func (c *amqpChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return c.ch.ExchangeDeclare(name, kind, durable, autoDelete, internal, noWait, args)
}

func (c *amqpChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (Queue, error) {
	q, err := c.ch.QueueDeclare(name, durable, autoDelete, exclusive, noWait, args)
	if err != nil {
		return Queue{}, err
	}
	return Queue{Name: q.Name}, nil
}

func (c *amqpChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	return c.ch.QueueBind(name, key, exchange, noWait, args)
}

func (c *amqpChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return c.ch.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}

func (c *amqpChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return c.ch.Consume(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
}

func (c *amqpChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	return c.ch.Qos(prefetchCount, prefetchSize, global)
}

func (c *amqpChannel) Close() error {
	return c.ch.Close()
}

func (c *amqpChannel) NotifyClose() <-chan *amqp.Error {
	return c.ch.NotifyClose(make(chan *amqp.Error, 1))
}
