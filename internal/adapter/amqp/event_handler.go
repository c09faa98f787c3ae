package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"
)

// EventHandler feeds payment and delivery events from the broker into the lifecycle service.
type EventHandler struct {
	service interfaces.LifecycleService
	logger  logger.Logger
}

func NewEventHandler(service interfaces.LifecycleService, logger logger.Logger) *EventHandler {
	return &EventHandler{
		service: service,
		logger:  logger,
	}
}

func (h *EventHandler) HandleEvent(ctx context.Context, routingKey string, body []byte) error {
	var (
		result *interfaces.TransitionResult
		err    error
	)

	switch {
	case strings.HasPrefix(routingKey, "payment."):
		var msg interfaces.PaymentEventMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			h.logger.Error("message_parse_failed", "Failed to parse payment event", "", nil, err)
			return err
		}
		result, err = h.service.HandlePaymentEvent(ctx, interfaces.PaymentEventCommand{
			OrderID:           msg.OrderID,
			Outcome:           msg.Outcome,
			ExternalPaymentID: msg.ExternalPaymentID,
			AmountMinor:       msg.AmountMinor,
			Method:            msg.Method,
			RequestID:         routingKey,
		})

	case strings.HasPrefix(routingKey, "delivery."):
		var msg interfaces.DeliveryEventMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			h.logger.Error("message_parse_failed", "Failed to parse delivery event", "", nil, err)
			return err
		}
		result, err = h.service.HandleDeliveryWebhook(ctx, interfaces.DeliveryWebhookCommand{
			ExternalOrderID: msg.ExternalOrderID,
			RawStatus:       msg.RawStatus,
			Driver:          msg.Driver,
			RequestID:       routingKey,
		})

	default:
		return fmt.Errorf("unexpected routing key %q", routingKey)
	}

	// a redelivery cannot fix an event the state machine rejects
	if errors.Is(err, domain.ErrIllegalTransition) {
		h.logger.Warn("event_rejected", "Event rejected by the order lifecycle", routingKey, map[string]interface{}{"reason": err.Error()})
		return nil
	}
	if err != nil {
		return err
	}

	if result.Ignored {
		h.logger.Debug("event_ignored", "Event acknowledged without a status change", routingKey, map[string]interface{}{"reason": result.Reason})
	}
	return nil
}
