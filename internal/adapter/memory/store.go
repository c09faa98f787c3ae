// Package memory keeps orders, promotions and menu items in process memory.
// It backs local runs with --store=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu         sync.RWMutex
	orders     map[string]*domain.Order
	statusLogs map[string][]*domain.StatusLog
	promotions map[string]*domain.Promotion
	usages     map[string]domain.PromotionUsage
	menu       map[string]*domain.MenuItem
	logSeq     int
	numberSeq  int
}

func NewStore() *Store {
	return &Store{
		orders:     make(map[string]*domain.Order),
		statusLogs: make(map[string][]*domain.StatusLog),
		promotions: make(map[string]*domain.Promotion),
		usages:     make(map[string]domain.PromotionUsage),
		menu:       make(map[string]*domain.MenuItem),
	}
}

func (s *Store) Orders() interfaces.OrderRepository         { return orderRepo{s} }
func (s *Store) Promotions() interfaces.PromotionRepository { return promotionRepo{s} }
func (s *Store) Menu() interfaces.MenuRepository            { return menuRepo{s} }
func (s *Store) Stats() interfaces.StatsRepository          { return statsRepo{s} }

// PutPromotion seeds a promotion.
func (s *Store) PutPromotion(p *domain.Promotion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.promotions[domain.NormalizeCode(p.Code)] = &cp
}

// Promotion returns a copy of the stored promotion.
func (s *Store) Promotion(code string) *domain.Promotion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.promotions[domain.NormalizeCode(code)]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// PutOrder seeds an order as is.
func (s *Store) PutOrder(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = cloneOrder(o)
}

// --- orders ---

type orderRepo struct{ s *Store }

func (r orderRepo) Create(ctx context.Context, order *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	r.s.orders[order.ID] = cloneOrder(order)
	r.s.appendLog(domain.StatusLog{OrderID: order.ID, Status: order.Status, Event: domain.EventOrderCreated, ChangedBy: "order-service", ChangedAt: order.CreatedAt})
	return nil
}

func (r orderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r orderRepo) FindByExternalDeliveryID(ctx context.Context, externalID string) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, o := range r.s.orders {
		if o.DeliveryTracking != nil && o.DeliveryTracking.ExternalDeliveryID == externalID {
			return cloneOrder(o), nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r orderRepo) GenerateOrderNumber(ctx context.Context) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.numberSeq++
	return fmt.Sprintf("CAT_%s_%03d", time.Now().UTC().Format("20060102"), r.s.numberSeq), nil
}

func (r orderRepo) UpdateWithLog(ctx context.Context, order *domain.Order, expectedVersion int, entry *domain.StatusLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != expectedVersion {
		return domain.ErrConcurrentUpdate
	}
	stored := cloneOrder(order)
	stored.Version = expectedVersion + 1
	r.s.orders[order.ID] = stored
	order.Version = stored.Version

	if entry != nil {
		logged := *entry
		logged.OrderID = order.ID
		r.s.appendLog(logged)
	}
	return nil
}

func (r orderRepo) GetStatusHistory(ctx context.Context, orderID string) ([]*domain.StatusLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	logs := r.s.statusLogs[orderID]
	out := make([]*domain.StatusLog, len(logs))
	for i, l := range logs {
		cp := *l
		out[i] = &cp
	}
	return out, nil
}

func (r orderRepo) CountActiveOrdersByCustomer(ctx context.Context, customerID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, o := range r.s.orders {
		if o.CustomerID() == customerID && o.Status != domain.StatusCancelled {
			n++
		}
	}
	return n, nil
}

func (s *Store) appendLog(entry domain.StatusLog) {
	s.logSeq++
	entry.ID = s.logSeq
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now()
	}
	s.statusLogs[entry.OrderID] = append(s.statusLogs[entry.OrderID], &entry)
}

// --- promotions ---

type promotionRepo struct{ s *Store }

func (r promotionRepo) FindByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	if p := r.s.Promotion(code); p != nil {
		return p, nil
	}
	return nil, domain.ErrPromotionNotFound
}

func (r promotionRepo) CountUsagesByCustomer(ctx context.Context, promotionID, customerID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.countUsages(promotionID, customerID), nil
}

func (s *Store) countUsages(promotionID, customerID string) int {
	n := 0
	for _, u := range s.usages {
		if u.PromotionID == promotionID && u.CustomerID == customerID {
			n++
		}
	}
	return n
}

func (r promotionRepo) RecordUsage(ctx context.Context, usage domain.PromotionUsage) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, done := r.s.usages[usage.OrderID]; done {
		return false, nil
	}
	var promo *domain.Promotion
	for _, p := range r.s.promotions {
		if p.ID == usage.PromotionID {
			promo = p
			break
		}
	}
	if promo == nil {
		return false, domain.ErrPromotionNotFound
	}
	if promo.UsageLimit != nil && promo.UsageCount >= *promo.UsageLimit {
		return false, domain.ErrUsageLimitReached
	}
	if usage.CustomerID != "" && promo.PerUserLimit != nil && r.s.countUsages(promo.ID, usage.CustomerID) >= *promo.PerUserLimit {
		return false, domain.ErrPerUserLimitReached
	}
	r.s.usages[usage.OrderID] = usage
	promo.UsageCount++
	return true, nil
}

// --- menu ---

type menuRepo struct{ s *Store }

func (r menuRepo) Create(ctx context.Context, item *domain.MenuItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	cp := *item
	r.s.menu[item.ID] = &cp
	return nil
}

func (r menuRepo) Update(ctx context.Context, item *domain.MenuItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.menu[item.ID]; !ok {
		return domain.ErrMenuItemNotFound
	}
	cp := *item
	r.s.menu[item.ID] = &cp
	return nil
}

func (r menuRepo) FindByID(ctx context.Context, id string) (*domain.MenuItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	item, ok := r.s.menu[id]
	if !ok {
		return nil, domain.ErrMenuItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (r menuRepo) List(ctx context.Context, category *domain.MenuCategory, onlyAvailable bool) ([]*domain.MenuItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*domain.MenuItem
	for _, item := range r.s.menu {
		if category != nil && item.Category != *category {
			continue
		}
		if onlyAvailable && !item.Available {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// --- stats ---

type statsRepo struct{ s *Store }

func (r statsRepo) SalesStats(ctx context.Context, from, to time.Time, topN int) (*domain.SalesStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats := &domain.SalesStats{
		From: from, To: to,
		GrossRevenue:  decimal.Zero,
		DiscountTotal: decimal.Zero,
		TaxTotal:      decimal.Zero,
		ByStatus:      map[domain.Status]int{},
	}
	paid := map[domain.Status]bool{}
	for _, st := range domain.PaidStatuses {
		paid[st] = true
	}
	volumes := map[string]*domain.MenuItemVolume{}

	for _, o := range r.s.orders {
		if o.CreatedAt.Before(from) || !o.CreatedAt.Before(to) {
			continue
		}
		stats.OrderCount++
		stats.ByStatus[o.Status]++
		if !paid[o.Status] {
			continue
		}
		stats.GrossRevenue = stats.GrossRevenue.Add(o.Pricing.Total)
		stats.DiscountTotal = stats.DiscountTotal.Add(o.Pricing.DiscountAmount)
		stats.TaxTotal = stats.TaxTotal.Add(o.Pricing.Tax)
		for _, sel := range o.Selections.LunchSelections {
			v, ok := volumes[sel.MenuItemID]
			if !ok {
				v = &domain.MenuItemVolume{MenuItemID: sel.MenuItemID, MenuItemName: sel.MenuItemName}
				volumes[sel.MenuItemID] = v
			}
			v.Count++
		}
	}

	for _, v := range volumes {
		stats.TopMenuItems = append(stats.TopMenuItems, *v)
	}
	sort.Slice(stats.TopMenuItems, func(i, j int) bool {
		if stats.TopMenuItems[i].Count != stats.TopMenuItems[j].Count {
			return stats.TopMenuItems[i].Count > stats.TopMenuItems[j].Count
		}
		return stats.TopMenuItems[i].MenuItemID < stats.TopMenuItems[j].MenuItemID
	})
	if topN > 0 && len(stats.TopMenuItems) > topN {
		stats.TopMenuItems = stats.TopMenuItems[:topN]
	}

	stats.Finalize()
	return stats, nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Selections.LunchSelections = append([]domain.LunchSelection(nil), o.Selections.LunchSelections...)
	if o.Payment != nil {
		p := *o.Payment
		cp.Payment = &p
	}
	if o.DeliveryTracking != nil {
		t := *o.DeliveryTracking
		t.History = append([]domain.DeliveryStatusEntry(nil), o.DeliveryTracking.History...)
		cp.DeliveryTracking = &t
	}
	return &cp
}
