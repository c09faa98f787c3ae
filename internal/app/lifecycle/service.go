package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"

	"github.com/google/uuid"
)

const maxUpdateAttempts = 3

// Payment outcomes as relayed by the payment integration.
const (
	OutcomeIntentCreated = "intent_created"
	OutcomeSucceeded     = "succeeded"
	OutcomeFailed        = "failed"
	OutcomeRefunded      = "refunded"
)

var paymentEvents = map[string]domain.Event{
	OutcomeIntentCreated: domain.EventPaymentIntentCreated,
	OutcomeSucceeded:     domain.EventPaymentSucceeded,
	OutcomeFailed:        domain.EventPaymentFailed,
	OutcomeRefunded:      domain.EventRefunded,
}

var adminEvents = map[interfaces.AdminAction]domain.Event{
	interfaces.AdminActionPreparing: domain.EventAdminMarkPreparing,
	interfaces.AdminActionReady:     domain.EventAdminMarkReady,
	interfaces.AdminActionCancel:    domain.EventAdminCancel,
}

// Service moves orders through the state machine and persists each move
// together with its status log entry.
type Service struct {
	repo      interfaces.OrderRepository
	publisher interfaces.MessagePublisher
	crm       interfaces.CRMSync
	logger    logger.Logger
	now       func() time.Time
}

func NewService(repo interfaces.OrderRepository, publisher interfaces.MessagePublisher, crm interfaces.CRMSync, logger logger.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		crm:       crm,
		logger:    logger,
		now:       time.Now,
	}
}

type loader func(ctx context.Context) (*domain.Order, error)

// mutator changes a freshly loaded order and returns the event to apply, if any.
type mutator func(order *domain.Order, now time.Time) mutation

type mutation struct {
	event    domain.Event
	hasEvent bool
	// unchanged reports that the order was left as loaded, so nothing is written.
	unchanged bool
}

type updateOptions struct {
	actor     string
	requestID string
	// acknowledge turns an illegal transition into an ignored result instead of an error.
	acknowledge bool
	// keepChanges persists the mutator's changes even when no status moved.
	keepChanges bool
}

// Apply feeds event to the order. Illegal transitions are returned as errors.
func (s *Service) Apply(ctx context.Context, orderID string, event domain.Event, actor, requestID string) (*interfaces.TransitionResult, error) {
	if !event.Known() {
		return nil, &domain.Error{Kind: domain.KindIllegalTransition, Field: "event", Message: fmt.Sprintf("unknown event %q", event)}
	}
	return s.update(ctx, s.byID(orderID), func(*domain.Order, time.Time) mutation {
		return mutation{event: event, hasEvent: true}
	}, updateOptions{actor: actor, requestID: requestID})
}

func (s *Service) AdminAction(ctx context.Context, orderID string, action interfaces.AdminAction, actor, requestID string) (*interfaces.TransitionResult, error) {
	event, ok := adminEvents[action]
	if !ok {
		return nil, &domain.Error{Kind: domain.KindIllegalTransition, Field: "action", Message: fmt.Sprintf("unknown admin action %q", action)}
	}
	if actor == "" {
		actor = "admin"
	}
	return s.Apply(ctx, orderID, event, actor, requestID)
}

// HandlePaymentEvent applies a payment outcome. Redelivered or out of order
// events are acknowledged and reported as ignored.
func (s *Service) HandlePaymentEvent(ctx context.Context, cmd interfaces.PaymentEventCommand) (*interfaces.TransitionResult, error) {
	event, ok := paymentEvents[cmd.Outcome]
	if !ok {
		return nil, &domain.Error{Kind: domain.KindIllegalTransition, Field: "outcome", Message: fmt.Sprintf("unknown payment outcome %q", cmd.Outcome)}
	}

	result, err := s.update(ctx, s.byID(cmd.OrderID), func(order *domain.Order, now time.Time) mutation {
		if cmd.AmountMinor != nil {
			if expected := domain.ToMinorUnits(order.Pricing.Total); *cmd.AmountMinor != expected {
				s.logger.Warn("payment_amount_mismatch", "Payment amount differs from order total", cmd.RequestID, map[string]interface{}{
					"order_id":       order.ID,
					"amount_minor":   *cmd.AmountMinor,
					"expected_minor": expected,
					"payment_id":     cmd.ExternalPaymentID,
				})
			}
		}
		order.AttachPayment(cmd.ExternalPaymentID, cmd.Method, event, now)
		return mutation{event: event, hasEvent: true}
	}, updateOptions{actor: "payment-processor", requestID: cmd.RequestID, acknowledge: true})

	if errors.Is(err, domain.ErrOrderNotFound) {
		s.logger.Warn("payment_event_unknown_order", "Payment event for unknown order", cmd.RequestID, map[string]interface{}{
			"order_id": cmd.OrderID,
			"outcome":  cmd.Outcome,
		})
		return &interfaces.TransitionResult{Ignored: true, Reason: "order not found"}, nil
	}
	return result, err
}

// HandleDeliveryWebhook records a dispatch provider update. Tracking is stored
// even when the update raises no lifecycle event or the event is rejected.
func (s *Service) HandleDeliveryWebhook(ctx context.Context, cmd interfaces.DeliveryWebhookCommand) (*interfaces.TransitionResult, error) {
	load := func(ctx context.Context) (*domain.Order, error) {
		order, err := s.repo.FindByExternalDeliveryID(ctx, cmd.ExternalOrderID)
		if errors.Is(err, domain.ErrOrderNotFound) {
			// the first update for an order carries our own order id
			if _, perr := uuid.Parse(cmd.ExternalOrderID); perr == nil {
				return s.repo.FindByID(ctx, cmd.ExternalOrderID)
			}
		}
		return order, err
	}

	result, err := s.update(ctx, load, func(order *domain.Order, now time.Time) mutation {
		update := order.RecordDelivery(cmd.ExternalOrderID, cmd.RawStatus, cmd.Driver, now)
		if update.Duplicate {
			s.logger.Debug("delivery_update_duplicate", "Delivery update already recorded", cmd.RequestID, map[string]interface{}{
				"order_id":   order.ID,
				"raw_status": cmd.RawStatus,
			})
			return mutation{unchanged: true}
		}
		if update.Entry.Unmapped {
			s.logger.Warn("delivery_status_unmapped", "Unknown delivery status recorded as pending", cmd.RequestID, map[string]interface{}{
				"order_id":   order.ID,
				"raw_status": cmd.RawStatus,
			})
		}
		return mutation{event: update.Event, hasEvent: update.HasEvent}
	}, updateOptions{actor: "delivery-provider", requestID: cmd.RequestID, acknowledge: true, keepChanges: true})

	if errors.Is(err, domain.ErrOrderNotFound) {
		s.logger.Warn("delivery_event_unknown_order", "Delivery update for unknown order", cmd.RequestID, map[string]interface{}{
			"external_order_id": cmd.ExternalOrderID,
			"raw_status":        cmd.RawStatus,
		})
		return &interfaces.TransitionResult{Ignored: true, Reason: "order not found"}, nil
	}
	return result, err
}

func (s *Service) byID(orderID string) loader {
	return func(ctx context.Context) (*domain.Order, error) {
		return s.repo.FindByID(ctx, orderID)
	}
}

// update runs load-mutate-write under the order version, re-reading on conflict.
func (s *Service) update(ctx context.Context, load loader, mutate mutator, opts updateOptions) (*interfaces.TransitionResult, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		order, err := load(ctx)
		if err != nil {
			return nil, err
		}

		now := s.now()
		version := order.Version
		result := &interfaces.TransitionResult{Order: order, OldStatus: order.Status, NewStatus: order.Status}

		m := mutate(order, now)
		if m.unchanged {
			result.Ignored = true
			result.Reason = "update already recorded"
			return result, nil
		}

		event := m.event
		var entry *domain.StatusLog
		if m.hasEvent {
			next, err := order.Apply(event, now)
			switch {
			case err == nil:
				result.NewStatus = next
				entry = &domain.StatusLog{
					OrderID:   order.ID,
					Status:    next,
					Event:     event,
					ChangedBy: opts.actor,
					ChangedAt: now,
				}
			case errors.Is(err, domain.ErrIllegalTransition):
				s.logger.Warn("transition_rejected", "Event not allowed in current status", opts.requestID, map[string]interface{}{
					"order_id": order.ID,
					"status":   order.Status,
					"event":    event,
					"actor":    opts.actor,
				})
				if !opts.acknowledge {
					return nil, err
				}
				result.Ignored = true
				result.Reason = err.Error()
			default:
				return nil, err
			}
		}

		if entry == nil && !opts.keepChanges {
			return result, nil
		}

		err = s.repo.UpdateWithLog(ctx, order, version, entry)
		if errors.Is(err, domain.ErrConcurrentUpdate) {
			s.logger.Debug("update_conflict", "Order changed concurrently, retrying", opts.requestID, map[string]interface{}{
				"order_id": order.ID,
				"attempt":  attempt,
			})
			continue
		}
		if err != nil {
			s.logger.Error("db_transaction_failed", "Failed to update order", opts.requestID, map[string]interface{}{"order_id": order.ID}, err)
			return nil, fmt.Errorf("failed to update order %s: %w", order.ID, err)
		}

		if entry != nil {
			s.notify(ctx, result, event, opts)
		}
		return result, nil
	}
	return nil, fmt.Errorf("order update gave up after %d attempts: %w", maxUpdateAttempts, domain.ErrConcurrentUpdate)
}

func (s *Service) notify(ctx context.Context, result *interfaces.TransitionResult, event domain.Event, opts updateOptions) {
	order := result.Order
	details := map[string]interface{}{
		"order_id":   order.ID,
		"old_status": result.OldStatus,
		"new_status": result.NewStatus,
		"event":      event,
	}
	s.logger.Info("status_changed", "Order status changed", opts.requestID, details)

	if event == domain.EventDeliveryFailed {
		s.logger.Error("delivery_failed_alert", "Delivery failed, order needs attention", opts.requestID, details, nil)
	}

	if s.publisher != nil {
		msg := interfaces.StatusUpdateMessage{
			OrderID:     order.ID,
			OrderNumber: order.Number,
			OldStatus:   result.OldStatus,
			NewStatus:   result.NewStatus,
			Event:       event,
			ChangedBy:   opts.actor,
			Alert:       event.Alerting(),
			Timestamp:   order.UpdatedAt,
		}
		if err := s.publisher.PublishStatusUpdate(ctx, msg); err != nil {
			// the transition is already committed
			s.logger.Error("rabbitmq_publish_failed", "Failed to publish status update", opts.requestID, details, err)
		}
	}

	if s.crm != nil {
		s.crm.SyncStatus(ctx, order, event)
	}
}
