package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/interfaces"

	"github.com/shopspring/decimal"
)

type PromotionHandler struct {
	service interfaces.PromotionService
	logger  logger.Logger
}

func NewPromotionHandler(service interfaces.PromotionService, logger logger.Logger) *PromotionHandler {
	return &PromotionHandler{
		service: service,
		logger:  logger,
	}
}

type ValidatePromotionRequest struct {
	Code          string          `json:"code"`
	OrderSubtotal decimal.Decimal `json:"order_subtotal"`
	CustomerID    string          `json:"customer_id,omitempty"`
}

// Validate always answers 200; a rejected code is reported in the body.
func (h *PromotionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidatePromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if req.OrderSubtotal.IsNegative() {
		respondError(w, "Validation failed", http.StatusBadRequest, []ValidationError{
			{Field: "order_subtotal", Message: "order subtotal must not be negative"},
		})
		return
	}

	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		customerID = IdentityFrom(r.Context()).UserID
	}

	resp := h.service.Check(r.Context(), interfaces.ValidatePromotionRequest{
		Code:          req.Code,
		OrderSubtotal: req.OrderSubtotal,
		CustomerID:    customerID,
	})
	respondJSON(w, http.StatusOK, resp)
}
