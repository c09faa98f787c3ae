package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/domain"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
)

func testOrder() *domain.Order {
	now := time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC)
	return &domain.Order{
		ID:     "0b6f4a38-9a55-4a4e-9d43-1f1e2b8c7a11",
		Number: "CAT_20261101_001",
		Status: domain.StatusDraft,
		Selections: domain.Selections{
			EventDetails: domain.EventDetails{
				Name:      "Offsite",
				Date:      now.AddDate(0, 0, 7),
				HeadCount: 25,
				Contact:   domain.Contact{CustomerID: "cust-9", Name: "Ari", Email: "ari@example.com"},
			},
		},
		Pricing:   domain.OrderPricing{Total: decimal.RequireFromString("412.50")},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSyncOrderSendsCustomerAndOrder(t *testing.T) {
	var topics []string
	var orderRec OrderRecord

	producer := mocks.NewAsyncProducer(t, nil)
	producer.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		topics = append(topics, msg.Topic)
		return nil
	})
	producer.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		topics = append(topics, msg.Topic)
		data, _ := msg.Value.Encode()
		return json.Unmarshal(data, &orderRec)
	})

	p := newCRMProducer(producer, "crm.customers", "crm.orders", logger.NewNop())
	p.SyncOrder(context.Background(), testOrder())
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	if len(topics) != 2 || topics[0] != "crm.customers" || topics[1] != "crm.orders" {
		t.Fatalf("topics = %v", topics)
	}
	if orderRec.Event != domain.EventOrderCreated || !orderRec.Total.Equal(decimal.RequireFromString("412.50")) || orderRec.HeadCount != 25 {
		t.Errorf("unexpected order record %+v", orderRec)
	}
}

func TestSyncStatusSurvivesBrokerErrors(t *testing.T) {
	producer := mocks.NewAsyncProducer(t, nil)
	producer.ExpectInputAndFail(sarama.ErrOutOfBrokers)

	p := newCRMProducer(producer, "crm.customers", "crm.orders", logger.NewNop())
	order := testOrder()
	order.Status = domain.StatusConfirmed
	p.SyncStatus(context.Background(), order, domain.EventPaymentSucceeded)

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}
