package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"

	"github.com/shopspring/decimal"
)

type AdminHandler struct {
	lifecycle interfaces.LifecycleService
	menu      interfaces.MenuService
	stats     interfaces.StatsService
	logger    logger.Logger
}

func NewAdminHandler(lifecycle interfaces.LifecycleService, menu interfaces.MenuService, stats interfaces.StatsService, logger logger.Logger) *AdminHandler {
	return &AdminHandler{
		lifecycle: lifecycle,
		menu:      menu,
		stats:     stats,
		logger:    logger,
	}
}

type TransitionResponse struct {
	OrderID     string        `json:"order_id"`
	OrderNumber string        `json:"order_number"`
	OldStatus   domain.Status `json:"old_status"`
	NewStatus   domain.Status `json:"new_status"`
}

func (h *AdminHandler) OrderAction(w http.ResponseWriter, r *http.Request) {
	action := interfaces.AdminAction(r.PathValue("action"))
	switch action {
	case interfaces.AdminActionPreparing, interfaces.AdminActionReady, interfaces.AdminActionCancel:
	default:
		respondError(w, "Not found", http.StatusNotFound, nil)
		return
	}

	id := IdentityFrom(r.Context())
	result, err := h.lifecycle.AdminAction(r.Context(), r.PathValue("id"), action, id.UserID, RequestIDFrom(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, TransitionResponse{
		OrderID:     result.Order.ID,
		OrderNumber: result.Order.Number,
		OldStatus:   result.OldStatus,
		NewStatus:   result.NewStatus,
	})
}

type MenuItemRequest struct {
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	DietaryTags []string        `json:"dietary_tags"`
	Available   *bool           `json:"available,omitempty"`
}

type MenuItemResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	DietaryTags []string        `json:"dietary_tags"`
	Available   bool            `json:"available"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func newMenuItemResponse(item *domain.MenuItem) MenuItemResponse {
	tags := item.DietaryTags
	if tags == nil {
		tags = []string{}
	}
	return MenuItemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Category:    string(item.Category),
		Description: item.Description,
		Price:       item.Price,
		DietaryTags: tags,
		Available:   item.Available,
		UpdatedAt:   item.UpdatedAt,
	}
}

func (req MenuItemRequest) toDomain(id string) *domain.MenuItem {
	available := true
	if req.Available != nil {
		available = *req.Available
	}
	return &domain.MenuItem{
		ID:          id,
		Name:        req.Name,
		Category:    domain.MenuCategory(strings.ToLower(strings.TrimSpace(req.Category))),
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		DietaryTags: req.DietaryTags,
		Available:   available,
	}
}

func (h *AdminHandler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var req MenuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	item, err := h.menu.Create(r.Context(), req.toDomain(""))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, newMenuItemResponse(item))
}

func (h *AdminHandler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	var req MenuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	item, err := h.menu.Update(r.Context(), req.toDomain(r.PathValue("id")))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newMenuItemResponse(item))
}

type AvailabilityRequest struct {
	Available bool `json:"available"`
}

func (h *AdminHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	var req AvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	item, err := h.menu.SetAvailability(r.Context(), r.PathValue("id"), req.Available)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newMenuItemResponse(item))
}

// ListMenu serves the public menu and, under /admin, every item.
func (h *AdminHandler) ListMenu(onlyAvailable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var category *domain.MenuCategory
		if c := strings.TrimSpace(r.URL.Query().Get("category")); c != "" {
			mc := domain.MenuCategory(strings.ToLower(c))
			category = &mc
		}

		items, err := h.menu.List(r.Context(), category, onlyAvailable)
		if err != nil {
			h.logger.Error("menu_list_failed", "Failed to list menu", RequestIDFrom(r.Context()), nil, err)
			respondDomainError(w, err)
			return
		}

		resp := make([]MenuItemResponse, len(items))
		for i, item := range items {
			resp[i] = newMenuItemResponse(item)
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

func (h *AdminHandler) SalesStats(w http.ResponseWriter, r *http.Request) {
	from, err := parseStatsTime(r.URL.Query().Get("from"))
	if err != nil {
		respondError(w, "Validation failed", http.StatusBadRequest, []ValidationError{{Field: "from", Message: err.Error()}})
		return
	}
	to, err := parseStatsTime(r.URL.Query().Get("to"))
	if err != nil {
		respondError(w, "Validation failed", http.StatusBadRequest, []ValidationError{{Field: "to", Message: err.Error()}})
		return
	}

	stats, err := h.stats.SalesStats(r.Context(), from, to)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// parseStatsTime accepts RFC 3339 timestamps or plain dates. Empty is the zero time.
func parseStatsTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}
