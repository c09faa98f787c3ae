package rabbitmq

import (
	"context"
	"errors"
	"testing"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

type binding struct{ queue, key, exchange string }

type fakeChannel struct {
	exchanges map[string]string
	queues    map[string]amqp.Table
	bindings  []binding
	published []amqp.Publishing
	routes    []string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{exchanges: map[string]string{}, queues: map[string]amqp.Table{}}
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.exchanges[name] = kind
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (Queue, error) {
	f.queues[name] = args
	return Queue{Name: name}, nil
}

func (f *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	f.bindings = append(f.bindings, binding{name, key, exchange})
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.published = append(f.published, msg)
	f.routes = append(f.routes, exchange+"/"+key)
	return nil
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return make(chan amqp.Delivery), nil
}

func (f *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error { return nil }
func (f *fakeChannel) Close() error                                          { return nil }
func (f *fakeChannel) NotifyClose() <-chan *amqp.Error                        { return make(chan *amqp.Error) }

type fakeAcknowledger struct {
	acked, nacked, requeued bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = true
	a.requeued = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error { return nil }

func TestDeclareTopology(t *testing.T) {
	ch := newFakeChannel()
	if err := DeclareTopology(ch); err != nil {
		t.Fatal(err)
	}

	kinds := map[string]string{
		OrdersExchange:        "topic",
		NotificationsExchange: "fanout",
		EventsExchange:        "topic",
		eventsDLXExchange:     "fanout",
	}
	for name, kind := range kinds {
		if ch.exchanges[name] != kind {
			t.Errorf("exchange %s declared as %q, want %q", name, ch.exchanges[name], kind)
		}
	}
	if ch.queues[EventsQueue]["x-dead-letter-exchange"] != eventsDLXExchange {
		t.Errorf("events queue has no dead letter exchange: %v", ch.queues[EventsQueue])
	}

	bound := map[string]bool{}
	for _, b := range ch.bindings {
		if b.queue == EventsQueue && b.exchange == EventsExchange {
			bound[b.key] = true
		}
	}
	for _, key := range EventBindings {
		if !bound[key] {
			t.Errorf("events queue not bound to %s", key)
		}
	}
}

func TestLoopRedialsDroppedSession(t *testing.T) {
	conn := &fakeConnection{ch: newFakeChannel(), closed: true}
	c := &consumer{conn: conn, logger: logger.NewNop()}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := 0
	err := c.loop(ctx, "events", func(ctx context.Context) error {
		runs++
		if runs == 1 {
			return errors.New("connection reset")
		}
		cancel()
		return ctx.Err()
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("loop returned %v", err)
	}
	if runs != 2 || conn.reconnects != 1 {
		t.Errorf("runs %d reconnects %d", runs, conn.reconnects)
	}
}

func TestSettle(t *testing.T) {
	c := &consumer{logger: logger.NewNop()}

	tests := []struct {
		name        string
		err         error
		redelivered bool
		acked       bool
		requeued    bool
	}{
		{"handled", nil, false, true, false},
		{"first failure is retried", errors.New("db down"), false, false, true},
		{"second failure is dead-lettered", errors.New("db down"), true, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			c.settle(amqp.Delivery{Acknowledger: ack, Redelivered: tt.redelivered, RoutingKey: "payment.succeeded"}, tt.err)
			if ack.acked != tt.acked || ack.requeued != tt.requeued || ack.nacked == tt.acked {
				t.Errorf("ack=%v nack=%v requeue=%v", ack.acked, ack.nacked, ack.requeued)
			}
		})
	}
}
