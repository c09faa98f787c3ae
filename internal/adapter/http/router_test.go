package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/adapter/memory"
	"github.com/YelzhanWeb/catering/internal/app/lifecycle"
	"github.com/YelzhanWeb/catering/internal/app/menu"
	"github.com/YelzhanWeb/catering/internal/app/order"
	"github.com/YelzhanWeb/catering/internal/app/promotion"
	"github.com/YelzhanWeb/catering/internal/app/stats"
	"github.com/YelzhanWeb/catering/internal/app/tracking"
	"github.com/YelzhanWeb/catering/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	paymentSecret  = "pay-secret"
	deliverySecret = "dispatch-secret"
)

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *stubLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}

type recordingRelay struct {
	keys   []string
	bodies [][]byte
}

func (r *recordingRelay) PublishEvent(ctx context.Context, routingKey string, body []byte) error {
	r.keys = append(r.keys, routingKey)
	r.bodies = append(r.bodies, body)
	return nil
}

type testServer struct {
	store   *memory.Store
	handler http.Handler
}

func newTestServer(t *testing.T, limiter RateLimiter, relay *recordingRelay) *testServer {
	t.Helper()
	log := logger.NewNop()
	store := memory.NewStore()
	now := time.Now()
	min := decimal.NewFromInt(50)
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
	promos := promotion.NewService(store.Promotions(), store.Orders(), calc.Rules(), log)
	life := lifecycle.NewService(store.Orders(), nil, nil, log)

	var webhooks *WebhookHandler
	if relay != nil {
		webhooks = NewWebhookHandler(life, relay, paymentSecret, deliverySecret, log)
	} else {
		// a nil *recordingRelay would be a non-nil interface
		webhooks = NewWebhookHandler(life, nil, paymentSecret, deliverySecret, log)
	}

	h := Handlers{
		Orders:     NewOrderHandler(order.NewService(store.Orders(), promos, calc, nil, nil, log), log),
		Promotions: NewPromotionHandler(promos, log),
		Webhooks:   webhooks,
		Admin:      NewAdminHandler(life, menu.NewService(store.Menu(), log), stats.NewService(store.Stats(), log), log),
		Tracking:   NewTrackingHandler(tracking.NewService(store.Orders(), log), log),
	}
	return &testServer{store: store, handler: NewRouter(h, limiter, log)}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

var customer = map[string]string{"X-User-ID": "cust-1"}
var admin = map[string]string{"X-User-ID": "ops-1", "X-User-Admin": "true"}

func draftBody(code string) map[string]any {
	body := map[string]any{
		"event_details": map[string]any{
			"name":       "Board meeting",
			"date":       "2026-11-03T00:00:00Z",
			"head_count": 10,
			"contact":    map[string]any{"name": "Dana Lee", "email": "dana@example.com"},
		},
		"breakfast": map[string]any{"package_type": "continental", "head_count": 10},
		"snacks":    map[string]any{"package_type": "basic"},
		"delivery":  map[string]any{"street": "1 Market St", "city": "Springfield"},
	}
	if code != "" {
		body["promotion_code"] = code
	}
	return body
}

func signed(secret string, body []byte) map[string]string {
	return map[string]string{signatureHeader: Sign([]byte(secret), body)}
}

func TestCreateOrderAndTrack(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := s.do(t, http.MethodPost, "/orders", draftBody("save10"), customer)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[OrderResponse](t, rec)
	if !created.Pricing.Total.Equal(decimal.RequireFromString("209.21")) || created.Status != domain.StatusDraft {
		t.Errorf("unexpected order %s %s", created.Status, created.Pricing.Total)
	}
	if created.Selections.EventDetails.Contact.CustomerID != "cust-1" {
		t.Errorf("customer id not taken from identity: %q", created.Selections.EventDetails.Contact.CustomerID)
	}

	rec = s.do(t, http.MethodGet, "/orders/"+created.ID, nil, customer)
	if rec.Code != http.StatusOK {
		t.Errorf("get own order: %d", rec.Code)
	}
	rec = s.do(t, http.MethodGet, "/orders/"+created.ID, nil, map[string]string{"X-User-ID": "someone-else"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign order visible: %d", rec.Code)
	}

	payment, _ := json.Marshal(PaymentWebhookRequest{OrderID: created.ID, Outcome: "succeeded", ExternalPaymentID: "pi_42"})
	rec = s.do(t, http.MethodPost, "/webhooks/payments", payment, signed(paymentSecret, payment))
	if rec.Code != http.StatusOK || decode[WebhookResponse](t, rec).NewStatus != domain.StatusConfirmed {
		t.Fatalf("payment webhook: %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/admin/orders/"+created.ID+"/preparing", nil, admin)
	if rec.Code != http.StatusOK || decode[TransitionResponse](t, rec).NewStatus != domain.StatusPreparing {
		t.Fatalf("admin preparing: %d %s", rec.Code, rec.Body.String())
	}

	delivery, _ := json.Marshal(DeliveryWebhookRequest{ExternalOrderID: created.ID, RawStatus: "Picked Up", Driver: &domain.Driver{Name: "Sam", Phone: "555-0100"}})
	rec = s.do(t, http.MethodPost, "/webhooks/delivery", delivery, signed(deliverySecret, delivery))
	if rec.Code != http.StatusOK {
		t.Fatalf("delivery webhook: %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/orders/"+created.ID+"/status", nil, customer)
	status := decode[OrderStatusResponse](t, rec)
	if status.CurrentStatus != domain.StatusOutForDelivery || status.Driver == nil || status.Driver.Name != "Sam" {
		t.Errorf("unexpected status %+v", status)
	}

	rec = s.do(t, http.MethodGet, "/orders/"+created.ID+"/history", nil, customer)
	history := decode[OrderHistoryResponse](t, rec)
	if len(history.Statuses) != 4 || len(history.Delivery) != 1 {
		t.Errorf("history has %d statuses and %d delivery entries", len(history.Statuses), len(history.Delivery))
	}
}

func TestOrderErrors(t *testing.T) {
	s := newTestServer(t, nil, nil)

	tests := []struct {
		name string
		body any
		want int
		kind domain.ErrorKind
	}{
		{"malformed", `{"event_details":`, http.StatusBadRequest, ""},
		{"unknown package", func() any {
			b := draftBody("")
			b["snacks"] = map[string]any{"package_type": "gourmet"}
			return b
		}(), http.StatusBadRequest, domain.KindInvalidSelection},
		{"unknown code", draftBody("NOPE"), http.StatusUnprocessableEntity, domain.KindPromotionInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/orders", tt.body, customer)
			if rec.Code != tt.want {
				t.Fatalf("status %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.kind != "" {
				if got := decode[ErrorResponse](t, rec).Kind; got != string(tt.kind) {
					t.Errorf("kind %q, want %q", got, tt.kind)
				}
			}
		})
	}

	if rec := s.do(t, http.MethodGet, "/orders/does-not-exist", nil, customer); rec.Code != http.StatusNotFound {
		t.Errorf("missing order: %d", rec.Code)
	}
}

func TestQuote(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := s.do(t, http.MethodPost, "/orders/quote", draftBody("SAVE10"), customer)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	q := decode[QuoteResponse](t, rec)
	if q.Promotion == nil || !q.Promotion.DiscountAmount.Equal(decimal.RequireFromString("19.98")) {
		t.Errorf("unexpected promotion %+v", q.Promotion)
	}
	if got := s.store.Promotion("SAVE10").UsageCount; got != 0 {
		t.Errorf("quote recorded usage")
	}
}

func TestValidatePromotion(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := s.do(t, http.MethodPost, "/promotions/validate", map[string]any{"code": "save10", "order_subtotal": "40.00"}, customer)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	resp := decode[struct {
		IsValid   bool   `json:"is_valid"`
		ErrorKind string `json:"error_kind"`
	}](t, rec)
	if resp.IsValid || resp.ErrorKind != string(domain.KindPromotionMinimumNotMet) {
		t.Errorf("unexpected response %s", rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/promotions/validate", map[string]any{"code": "SAVE10", "order_subtotal": "100"}, customer)
	if !decode[struct {
		IsValid bool `json:"is_valid"`
	}](t, rec).IsValid {
		t.Errorf("expected valid: %s", rec.Body.String())
	}
}

func TestWebhookSignatures(t *testing.T) {
	s := newTestServer(t, nil, nil)
	body := []byte(`{"orderId":"x","outcome":"succeeded"}`)

	if rec := s.do(t, http.MethodPost, "/webhooks/payments", body, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("unsigned: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/webhooks/payments", body, signed(deliverySecret, body)); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: %d", rec.Code)
	}

	bad := []byte(`{"orderId":`)
	if rec := s.do(t, http.MethodPost, "/webhooks/payments", bad, signed(paymentSecret, bad)); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed: %d", rec.Code)
	}

	// unknown orders are acknowledged
	rec := s.do(t, http.MethodPost, "/webhooks/payments", body, signed(paymentSecret, body))
	if rec.Code != http.StatusOK || decode[WebhookResponse](t, rec).Status != "ignored" {
		t.Errorf("unknown order: %d %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookRelay(t *testing.T) {
	relay := &recordingRelay{}
	s := newTestServer(t, nil, relay)

	body := []byte(`{"orderId":"o-1","outcome":"refunded","amountMinor":20921}`)
	rec := s.do(t, http.MethodPost, "/webhooks/payments", body, signed(paymentSecret, body))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if len(relay.keys) != 1 || relay.keys[0] != "payment.refunded" {
		t.Fatalf("relayed %v", relay.keys)
	}
	var msg struct {
		OrderID     string `json:"order_id"`
		AmountMinor int64  `json:"amount_minor"`
	}
	if err := json.Unmarshal(relay.bodies[0], &msg); err != nil || msg.OrderID != "o-1" || msg.AmountMinor != 20921 {
		t.Errorf("unexpected relayed body %s", relay.bodies[0])
	}
}

func TestAdminGuard(t *testing.T) {
	s := newTestServer(t, nil, nil)

	if rec := s.do(t, http.MethodGet, "/admin/stats", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/admin/stats", nil, customer); rec.Code != http.StatusForbidden {
		t.Errorf("customer: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/admin/stats", nil, admin); rec.Code != http.StatusOK {
		t.Errorf("admin: %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodGet, "/admin/stats?from=2026-11-02&to=2026-11-01", nil, admin); rec.Code != http.StatusBadRequest {
		t.Errorf("inverted range: %d", rec.Code)
	}
}

func TestAdminOrderActions(t *testing.T) {
	s := newTestServer(t, nil, nil)
	created := decode[OrderResponse](t, s.do(t, http.MethodPost, "/orders", draftBody(""), customer))

	// draft orders cannot go to the kitchen
	rec := s.do(t, http.MethodPost, "/admin/orders/"+created.ID+"/preparing", nil, admin)
	if rec.Code != http.StatusConflict {
		t.Errorf("illegal transition: %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodPost, "/admin/orders/"+created.ID+"/bake", nil, admin); rec.Code != http.StatusNotFound {
		t.Errorf("unknown action: %d", rec.Code)
	}
	rec = s.do(t, http.MethodPost, "/admin/orders/"+created.ID+"/cancel", nil, admin)
	if rec.Code != http.StatusOK || decode[TransitionResponse](t, rec).NewStatus != domain.StatusCancelled {
		t.Errorf("cancel: %d %s", rec.Code, rec.Body.String())
	}
}

func TestMenuAdministration(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := s.do(t, http.MethodPost, "/admin/menu", map[string]any{"name": " Falafel bowl ", "category": "Lunch", "price": "12.75", "dietary_tags": []string{"vegan"}}, admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	item := decode[MenuItemResponse](t, rec)
	if item.Name != "Falafel bowl" || item.Category != "lunch" || !item.Available {
		t.Errorf("unexpected item %+v", item)
	}

	if rec := s.do(t, http.MethodPost, "/admin/menu", map[string]any{"name": "Mystery", "category": "dinner", "price": "1"}, admin); rec.Code != http.StatusBadRequest {
		t.Errorf("bad category: %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/admin/menu/"+item.ID+"/availability", map[string]bool{"available": false}, admin)
	if rec.Code != http.StatusOK || decode[MenuItemResponse](t, rec).Available {
		t.Errorf("availability: %d %s", rec.Code, rec.Body.String())
	}

	public := decode[[]MenuItemResponse](t, s.do(t, http.MethodGet, "/menu?category=lunch", nil, customer))
	if len(public) != 0 {
		t.Errorf("unavailable item listed publicly: %+v", public)
	}
	all := decode[[]MenuItemResponse](t, s.do(t, http.MethodGet, "/admin/menu", nil, admin))
	if len(all) != 1 {
		t.Errorf("admin listing has %d items", len(all))
	}

	if rec := s.do(t, http.MethodPut, "/admin/menu/missing", map[string]any{"name": "x", "category": "lunch", "price": "1"}, admin); rec.Code != http.StatusNotFound {
		t.Errorf("update missing: %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := &stubLimiter{allow: false}
	s := newTestServer(t, limiter, nil)

	if rec := s.do(t, http.MethodGet, "/menu", nil, customer); rec.Code != http.StatusTooManyRequests {
		t.Errorf("limited: %d", rec.Code)
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != "cust-1" {
		t.Errorf("limiter keys %v", limiter.keys)
	}

	body := []byte(`{"orderId":"x","outcome":"succeeded"}`)
	if rec := s.do(t, http.MethodPost, "/webhooks/payments", body, signed(paymentSecret, body)); rec.Code == http.StatusTooManyRequests {
		t.Error("webhooks must not be rate limited")
	}

	limiter.err = errors.New("redis down")
	if rec := s.do(t, http.MethodGet, "/menu", nil, customer); rec.Code != http.StatusOK {
		t.Errorf("limiter failure should let requests through: %d", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status %d", rec.Code)
	}
}
