package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"
)

type Service struct {
	repo       interfaces.OrderRepository
	promotions interfaces.PromotionService
	menu       interfaces.MenuService
	calc       *domain.Calculator
	publisher  interfaces.MessagePublisher
	crm        interfaces.CRMSync
	logger     logger.Logger
	now        func() time.Time
}

type Option func(*Service)

// WithLunchPricing prices lunch selections from the available lunch menu.
func WithLunchPricing(menu interfaces.MenuService) Option {
	return func(s *Service) { s.menu = menu }
}

func NewService(
	repo interfaces.OrderRepository,
	promotions interfaces.PromotionService,
	calc *domain.Calculator,
	publisher interfaces.MessagePublisher,
	crm interfaces.CRMSync,
	logger logger.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		repo:       repo,
		promotions: promotions,
		calc:       calc,
		publisher:  publisher,
		crm:        crm,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Quote prices a draft without persisting anything.
func (s *Service) Quote(ctx context.Context, cmd interfaces.QuoteCommand) (*interfaces.Quote, error) {
	return s.quote(ctx, &cmd.Draft, "")
}

func (s *Service) quote(ctx context.Context, draft *domain.OrderDraft, requestID string) (*interfaces.Quote, error) {
	calc, err := s.calculator(ctx)
	if err != nil {
		return nil, err
	}

	if err := draft.Validate(calc.Catalog); err != nil {
		s.logger.Debug("validation_failed", "Order draft rejected", requestID, map[string]interface{}{"reason": err.Error()})
		return nil, err
	}

	subtotal, err := calc.Subtotal(draft)
	if err != nil {
		return nil, err
	}

	var promo *domain.PromotionResult
	if code := draft.NormalizedPromotionCode(); code != "" {
		promo, err = s.promotions.Validate(ctx, interfaces.ValidatePromotionRequest{
			Code:          code,
			OrderSubtotal: domain.Round2(subtotal),
			CustomerID:    draft.EventDetails.Contact.CustomerID,
		})
		if err != nil {
			return nil, err
		}
	}

	pricing, err := calc.Price(draft, promo)
	if err != nil {
		if errors.Is(err, domain.ErrPricingInvariantViolated) {
			s.logger.Error("pricing_invariant_violated", "Computed pricing failed its invariants", requestID, map[string]interface{}{
				"promotion_code": draft.NormalizedPromotionCode(),
				"customer_id":    draft.EventDetails.Contact.CustomerID,
			}, err)
		}
		return nil, err
	}

	return &interfaces.Quote{Pricing: pricing, Promotion: promo}, nil
}

func (s *Service) calculator(ctx context.Context) (*domain.Calculator, error) {
	if s.menu == nil {
		return s.calc, nil
	}
	prices, err := s.menu.LunchPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load lunch prices: %w", err)
	}
	return s.calc.WithLunchPrices(prices), nil
}

func (s *Service) CreateOrder(ctx context.Context, cmd interfaces.CreateOrderCommand) (*domain.Order, error) {
	// 1. Price the draft, promotion included
	quote, err := s.quote(ctx, &cmd.Draft, cmd.RequestID)
	if err != nil {
		return nil, err
	}

	// 2. Freeze selections and pricing on a new order
	order, err := domain.NewOrder(&cmd.Draft, quote.Pricing, quote.Promotion, s.now())
	if err != nil {
		s.logger.Error("pricing_invariant_violated", "Order pricing failed its invariants", cmd.RequestID, nil, err)
		return nil, err
	}

	number, err := s.repo.GenerateOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate order number: %w", err)
	}
	order.Number = number

	// 3. Order row and initial status log go in one transaction
	if err := s.repo.Create(ctx, order); err != nil {
		s.logger.Error("db_transaction_failed", "Failed to create order", cmd.RequestID, nil, err)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	s.logger.Info("order_created", "Order created", cmd.RequestID, map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.Number,
		"total":        order.Pricing.Total.StringFixed(2),
	})

	// 4. Claim the redemption. An order that lost it to a concurrent checkout is withdrawn
	if quote.Promotion != nil && order.PromotionID != nil {
		err := s.promotions.RecordUsage(ctx, *order.PromotionID, order.CustomerID(), order.ID, quote.Promotion.DiscountAmount)
		switch {
		case err == nil:
		case domain.IsPromotionError(err):
			s.withdraw(ctx, order, err, cmd.RequestID)
			return nil, err
		default:
			s.logger.Error("promotion_usage_failed", "Failed to record promotion usage", cmd.RequestID,
				map[string]interface{}{"order_id": order.ID, "promotion_id": *order.PromotionID}, err)
		}
	}

	// 5. The order stands from here on; downstream failures are logged, not returned

	if s.publisher != nil {
		msg := interfaces.OrderCreatedMessage{
			OrderID:     order.ID,
			OrderNumber: order.Number,
			CustomerID:  order.CustomerID(),
			EventDate:   order.Selections.EventDetails.Date,
			HeadCount:   order.Selections.EventDetails.HeadCount,
			Total:       order.Pricing.Total,
			Status:      order.Status,
		}
		if err := s.publisher.PublishOrderCreated(ctx, msg); err != nil {
			s.logger.Error("rabbitmq_publish_failed", "Failed to publish order", cmd.RequestID,
				map[string]interface{}{"order_id": order.ID}, err)
		} else {
			s.logger.Debug("order_published", "Order published to RabbitMQ", cmd.RequestID,
				map[string]interface{}{"order_number": order.Number})
		}
	}

	if s.crm != nil {
		s.crm.SyncOrder(ctx, order)
	}

	return order, nil
}

// withdraw cancels a freshly created order whose promotion could not be redeemed.
func (s *Service) withdraw(ctx context.Context, order *domain.Order, reason error, requestID string) {
	expected := order.Version
	now := s.now()
	status, err := order.Apply(domain.EventAdminCancel, now)
	if err != nil {
		s.logger.Error("order_withdraw_failed", "Failed to cancel order without redemption", requestID,
			map[string]interface{}{"order_id": order.ID}, err)
		return
	}

	notes := reason.Error()
	entry := &domain.StatusLog{
		OrderID:   order.ID,
		Status:    status,
		Event:     domain.EventAdminCancel,
		ChangedBy: "order-service",
		ChangedAt: now,
		Notes:     &notes,
	}
	if err := s.repo.UpdateWithLog(ctx, order, expected, entry); err != nil {
		s.logger.Error("order_withdraw_failed", "Failed to cancel order without redemption", requestID,
			map[string]interface{}{"order_id": order.ID}, err)
		return
	}
	s.logger.Warn("order_withdrawn", "Order cancelled, promotion has no redemptions left", requestID, map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.Number,
	})
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return order, nil
}
