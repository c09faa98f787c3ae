package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/adapter/memory"
	"github.com/YelzhanWeb/catering/internal/app/menu"
	"github.com/YelzhanWeb/catering/internal/app/promotion"
	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"

	"github.com/shopspring/decimal"
)

type fakePublisher struct {
	created []interfaces.OrderCreatedMessage
	err     error
}

func (p *fakePublisher) PublishOrderCreated(ctx context.Context, msg interfaces.OrderCreatedMessage) error {
	if p.err != nil {
		return p.err
	}
	p.created = append(p.created, msg)
	return nil
}

func (p *fakePublisher) PublishStatusUpdate(ctx context.Context, msg interfaces.StatusUpdateMessage) error {
	return nil
}

type fakeCRM struct {
	orders []string
}

func (c *fakeCRM) SyncOrder(ctx context.Context, order *domain.Order) { c.orders = append(c.orders, order.ID) }

func (c *fakeCRM) SyncStatus(ctx context.Context, order *domain.Order, event domain.Event) {}

type fixture struct {
	store     *memory.Store
	svc       *Service
	publisher *fakePublisher
	crm       *fakeCRM
}

func newFixture(t *testing.T, opts ...func(store *memory.Store) Option) *fixture {
	t.Helper()
	store := memory.NewStore()
	min := decimal.NewFromInt(50)
	now := time.Now()
	store.PutPromotion(&domain.Promotion{
		ID:                 "promo-save10",
		Code:               "SAVE10",
		Type:               domain.PromotionPercentage,
		Value:              decimal.NewFromInt(10),
		MinimumOrderAmount: &min,
		Status:             domain.PromotionActive,
		ValidFrom:          now.Add(-time.Hour),
		ValidUntil:         now.Add(time.Hour),
	})

	calc := domain.NewCalculator(decimal.RequireFromString("0.08"), decimal.RequireFromString("15.00"))
	promos := promotion.NewService(store.Promotions(), store.Orders(), calc.Rules(), logger.NewNop())
	pub := &fakePublisher{}
	crm := &fakeCRM{}

	var options []Option
	for _, o := range opts {
		options = append(options, o(store))
	}
	return &fixture{
		store:     store,
		svc:       NewService(store.Orders(), promos, calc, pub, crm, logger.NewNop(), options...),
		publisher: pub,
		crm:       crm,
	}
}

func scenarioDraft(code string) domain.OrderDraft {
	d := domain.OrderDraft{
		Selections: domain.Selections{
			EventDetails: domain.EventDetails{
				Name:      "Board meeting",
				Date:      time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC),
				HeadCount: 10,
				Contact:   domain.Contact{CustomerID: "cust-1", Name: "Dana Lee", Email: "dana@example.com"},
			},
			Breakfast: &domain.BreakfastSelection{PackageType: domain.BreakfastContinental, HeadCount: 10},
			Snacks:    &domain.SnackSelection{PackageType: domain.SnacksBasic},
			Delivery:  domain.DeliveryInfo{Street: "1 Market St", City: "Springfield"},
		},
	}
	if code != "" {
		d.PromotionCode = &code
	}
	return d
}

func TestCreateOrderScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, interfaces.CreateOrderCommand{Draft: scenarioDraft("save10"), RequestID: "req-1"})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	want := map[string]decimal.Decimal{
		"subtotal": order.Pricing.Subtotal,
		"discount": order.Pricing.DiscountAmount,
		"tax":      order.Pricing.Tax,
		"fee":      order.Pricing.DeliveryFee,
		"total":    order.Pricing.Total,
	}
	expected := map[string]string{"subtotal": "199.80", "discount": "19.98", "tax": "14.39", "fee": "15.00", "total": "209.21"}
	for k, v := range expected {
		if !want[k].Equal(decimal.RequireFromString(v)) {
			t.Errorf("%s = %s, want %s", k, want[k], v)
		}
	}

	if order.Status != domain.StatusDraft || order.Number == "" || order.Version != 1 {
		t.Errorf("unexpected order header %s %q v%d", order.Status, order.Number, order.Version)
	}
	if order.PromotionID == nil || *order.PromotionID != "promo-save10" {
		t.Errorf("promotion not attached: %v", order.PromotionID)
	}
	if got := f.store.Promotion("SAVE10").UsageCount; got != 1 {
		t.Errorf("usage count = %d, want 1", got)
	}
	if len(f.publisher.created) != 1 || !f.publisher.created[0].Total.Equal(order.Pricing.Total) {
		t.Errorf("order.created not published: %+v", f.publisher.created)
	}
	if len(f.crm.orders) != 1 {
		t.Errorf("crm sync calls = %d", len(f.crm.orders))
	}

	stored, err := f.svc.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if !stored.Pricing.Total.Equal(order.Pricing.Total) {
		t.Errorf("stored total %s", stored.Pricing.Total)
	}
}

func TestQuoteDoesNotPersist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.Quote(ctx, interfaces.QuoteCommand{Draft: scenarioDraft("")})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.Promotion != nil || !q.Pricing.Total.Equal(decimal.RequireFromString("230.78")) {
		t.Errorf("unexpected quote %+v", q.Pricing)
	}
	if got := f.store.Promotion("SAVE10").UsageCount; got != 0 {
		t.Errorf("quote recorded usage")
	}
	if len(f.publisher.created) != 0 {
		t.Error("quote published an event")
	}
}

func TestCreateOrderRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	small := scenarioDraft("SAVE10")
	small.Breakfast = nil
	small.EventDetails.HeadCount = 2
	_, err := f.svc.CreateOrder(ctx, interfaces.CreateOrderCommand{Draft: small})
	if !errors.Is(err, domain.ErrPromotionMinimumNotMet) {
		t.Errorf("expected PromotionMinimumNotMet, got %v", err)
	}

	_, err = f.svc.CreateOrder(ctx, interfaces.CreateOrderCommand{Draft: scenarioDraft("BOGUS")})
	if !errors.Is(err, domain.ErrPromotionInvalid) {
		t.Errorf("expected PromotionInvalid, got %v", err)
	}

	bad := scenarioDraft("")
	bad.Snacks.PackageType = "gourmet"
	_, err = f.svc.CreateOrder(ctx, interfaces.CreateOrderCommand{Draft: bad})
	if !errors.Is(err, domain.ErrInvalidSelection) {
		t.Errorf("expected InvalidSelection, got %v", err)
	}

	if len(f.publisher.created) != 0 {
		t.Errorf("rejected drafts published %d events", len(f.publisher.created))
	}
}

// staleValidation answers with a result validated before another checkout
// claimed the promotion's last redemption.
type staleValidation struct {
	*promotion.Service
	result *domain.PromotionResult
}

func (v staleValidation) Validate(ctx context.Context, req interfaces.ValidatePromotionRequest) (*domain.PromotionResult, error) {
	return v.result, nil
}

func TestCreateOrderWithdrawsOrderThatLostLastRedemption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	limit := 1
	now := time.Now()
	f.store.PutPromotion(&domain.Promotion{
		ID:         "promo-last1",
		Code:       "LAST1",
		Type:       domain.PromotionPercentage,
		Value:      decimal.NewFromInt(10),
		UsageLimit: &limit,
		Status:     domain.PromotionActive,
		ValidFrom:  now.Add(-time.Hour),
		ValidUntil: now.Add(time.Hour),
	})

	calc := domain.NewCalculator(decimal.RequireFromString("0.08"), decimal.RequireFromString("15.00"))
	promos := promotion.NewService(f.store.Promotions(), f.store.Orders(), calc.Rules(), logger.NewNop())
	result, err := promos.Validate(ctx, interfaces.ValidatePromotionRequest{Code: "LAST1", OrderSubtotal: decimal.RequireFromString("199.80")})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	svc := NewService(f.store.Orders(), staleValidation{Service: promos, result: result}, calc, f.publisher, f.crm, logger.NewNop())

	if _, err := svc.CreateOrder(ctx, interfaces.CreateOrderCommand{Draft: scenarioDraft("LAST1")}); err != nil {
		t.Fatalf("first CreateOrder: %v", err)
	}
	second, err := svc.CreateOrder(ctx, interfaces.CreateOrderCommand{Draft: scenarioDraft("LAST1")})
	if !errors.Is(err, domain.ErrPromotionExhausted) {
		t.Fatalf("expected PromotionExhausted, got %v", err)
	}
	if second != nil {
		t.Errorf("losing checkout returned order %s", second.ID)
	}

	if got := f.store.Promotion("LAST1").UsageCount; got != 1 {
		t.Errorf("usage count = %d, want 1", got)
	}
	active, err := f.store.Orders().CountActiveOrdersByCustomer(ctx, "cust-1")
	if err != nil {
		t.Fatal(err)
	}
	if active != 1 {
		t.Errorf("active orders = %d, want 1", active)
	}
	if len(f.publisher.created) != 1 {
		t.Errorf("order.created published %d times, want 1", len(f.publisher.created))
	}
}

func TestCreateOrderSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	order, err := f.svc.CreateOrder(context.Background(), interfaces.CreateOrderCommand{Draft: scenarioDraft("")})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := f.svc.GetOrder(context.Background(), order.ID); err != nil {
		t.Errorf("order not stored: %v", err)
	}
}

func TestLunchPricingFromMenu(t *testing.T) {
	var menuSvc *menu.Service
	f := newFixture(t, func(store *memory.Store) Option {
		menuSvc = menu.NewService(store.Menu(), logger.NewNop())
		return WithLunchPricing(menuSvc)
	})
	ctx := context.Background()

	wrap, err := menuSvc.Create(ctx, &domain.MenuItem{Name: "Chicken wrap", Category: domain.MenuLunch, Price: decimal.RequireFromString("11.50"), Available: true})
	if err != nil {
		t.Fatalf("create menu item: %v", err)
	}

	draft := scenarioDraft("")
	draft.Breakfast = nil
	draft.Snacks = nil
	draft.LunchSelections = []domain.LunchSelection{
		{AttendeeID: "a1", MenuItemID: wrap.ID},
		{AttendeeID: "a2", MenuItemID: wrap.ID},
	}

	q, err := f.svc.Quote(ctx, interfaces.QuoteCommand{Draft: draft})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !q.Pricing.Subtotal.Equal(decimal.RequireFromString("23.00")) {
		t.Errorf("subtotal = %s, want 23.00", q.Pricing.Subtotal)
	}

	if _, err := menuSvc.SetAvailability(ctx, wrap.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Quote(ctx, interfaces.QuoteCommand{Draft: draft}); !errors.Is(err, domain.ErrInvalidSelection) {
		t.Errorf("expected InvalidSelection for unavailable item, got %v", err)
	}
}
