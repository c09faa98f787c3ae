package http

import (
	"net/http"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
)

type Handlers struct {
	Orders     *OrderHandler
	Promotions *PromotionHandler
	Webhooks   *WebhookHandler
	Admin      *AdminHandler
	Tracking   *TrackingHandler
}

// NewRouter wires every route. Webhooks skip the rate limiter so provider
// retries are never throttled; limiter may be nil.
func NewRouter(h Handlers, limiter RateLimiter, logger logger.Logger) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /orders", h.Orders.CreateOrder)
	api.HandleFunc("POST /orders/quote", h.Orders.Quote)
	api.HandleFunc("GET /orders/{id}", h.Orders.GetOrder)
	api.HandleFunc("GET /orders/{id}/status", h.Tracking.GetOrderStatus)
	api.HandleFunc("GET /orders/{id}/history", h.Tracking.GetOrderHistory)
	api.HandleFunc("POST /promotions/validate", h.Promotions.Validate)
	api.HandleFunc("GET /menu", h.Admin.ListMenu(true))

	admin := http.NewServeMux()
	admin.HandleFunc("POST /admin/orders/{id}/{action}", h.Admin.OrderAction)
	admin.HandleFunc("GET /admin/menu", h.Admin.ListMenu(false))
	admin.HandleFunc("POST /admin/menu", h.Admin.CreateMenuItem)
	admin.HandleFunc("PUT /admin/menu/{id}", h.Admin.UpdateMenuItem)
	admin.HandleFunc("POST /admin/menu/{id}/availability", h.Admin.SetAvailability)
	admin.HandleFunc("GET /admin/stats", h.Admin.SalesStats)

	var limited http.Handler = api
	if limiter != nil {
		limited = RateLimitMiddleware(limiter, logger)(api)
	}

	mux := http.NewServeMux()
	mux.Handle("/", limited)
	mux.Handle("/admin/", RequireAdmin(admin))
	mux.HandleFunc("POST /webhooks/payments", h.Webhooks.Payments)
	mux.HandleFunc("POST /webhooks/delivery", h.Webhooks.Delivery)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var handler http.Handler = mux
	handler = IdentityMiddleware(handler)
	handler = LoggingMiddleware(logger)(handler)
	handler = RecoveryMiddleware(logger)(handler)
	return handler
}
