package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/config"
	"github.com/YelzhanWeb/catering/internal/domain"

	"github.com/IBM/sarama"
	"github.com/shopspring/decimal"
)

// CustomerRecord is the contact mirrored to the CRM customers topic.
type CustomerRecord struct {
	CustomerID string    `json:"customer_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Company    string    `json:"company,omitempty"`
	LastOrder  string    `json:"last_order_id"`
	SeenAt     time.Time `json:"seen_at"`
}

// OrderRecord is the deal mirrored to the CRM orders topic.
type OrderRecord struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	CustomerID  string          `json:"customer_id"`
	Status      domain.Status   `json:"status"`
	Event       domain.Event    `json:"event"`
	EventName   string          `json:"event_name"`
	EventDate   time.Time       `json:"event_date"`
	HeadCount   int             `json:"head_count"`
	Total       decimal.Decimal `json:"total"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

const sendTimeout = 100 * time.Millisecond

// CRMProducer mirrors customers and orders to Kafka. A record the producer
// cannot take within sendTimeout is dropped with a warning.
type CRMProducer struct {
	producer       sarama.AsyncProducer
	customersTopic string
	ordersTopic    string
	logger         logger.Logger
	done           chan struct{}
}

func NewCRMProducer(cfg config.KafkaConfig, logger logger.Logger) (*CRMProducer, error) {
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Flush.Frequency = 500 * time.Millisecond
	sc.Producer.Retry.Max = 5

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to start kafka producer: %w", err)
	}
	return newCRMProducer(producer, cfg.CustomersTopic, cfg.OrdersTopic, logger), nil
}

func newCRMProducer(producer sarama.AsyncProducer, customersTopic, ordersTopic string, logger logger.Logger) *CRMProducer {
	p := &CRMProducer{
		producer:       producer,
		customersTopic: customersTopic,
		ordersTopic:    ordersTopic,
		logger:         logger,
		done:           make(chan struct{}),
	}
	go p.drainErrors()
	return p
}

func (p *CRMProducer) drainErrors() {
	defer close(p.done)
	for err := range p.producer.Errors() {
		p.logger.Error("crm_sync_failed", "Failed to send CRM record", "", map[string]interface{}{"topic": err.Msg.Topic}, err.Err)
	}
}

func (p *CRMProducer) SyncOrder(ctx context.Context, order *domain.Order) {
	contact := order.Selections.EventDetails.Contact
	if contact.CustomerID != "" {
		p.send(p.customersTopic, contact.CustomerID, CustomerRecord{
			CustomerID: contact.CustomerID,
			Name:       contact.Name,
			Email:      contact.Email,
			Phone:      contact.Phone,
			Company:    contact.Company,
			LastOrder:  order.ID,
			SeenAt:     order.CreatedAt,
		})
	}
	p.send(p.ordersTopic, order.ID, orderRecord(order, domain.EventOrderCreated))
}

func (p *CRMProducer) SyncStatus(ctx context.Context, order *domain.Order, event domain.Event) {
	p.send(p.ordersTopic, order.ID, orderRecord(order, event))
}

func orderRecord(order *domain.Order, event domain.Event) OrderRecord {
	details := order.Selections.EventDetails
	return OrderRecord{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		CustomerID:  order.CustomerID(),
		Status:      order.Status,
		Event:       event,
		EventName:   details.Name,
		EventDate:   details.Date,
		HeadCount:   details.HeadCount,
		Total:       order.Pricing.Total,
		UpdatedAt:   order.UpdatedAt,
	}
}

func (p *CRMProducer) send(topic, key string, record any) {
	data, err := json.Marshal(record)
	if err != nil {
		p.logger.Error("crm_encode_failed", "Failed to encode CRM record", "", map[string]interface{}{"topic": topic}, err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}
	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()
	select {
	case p.producer.Input() <- msg:
	case <-timer.C:
		p.logger.Warn("crm_sync_dropped", "CRM producer is backed up, record dropped", "", map[string]interface{}{"topic": topic, "key": key})
	}
}

// Close flushes buffered records and waits for the error drain to finish.
func (p *CRMProducer) Close() error {
	err := p.producer.Close()
	<-p.done
	return err
}
