package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/YelzhanWeb/catering/internal/adapter/logger"
	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"
)

const (
	signatureHeader = "X-Signature"
	maxWebhookBody  = 1 << 20
)

// WebhookHandler verifies provider callbacks. With a relay the event is handed
// to the broker and answered 202; without one it is applied inline.
type WebhookHandler struct {
	service        interfaces.LifecycleService
	relay          interfaces.EventRelay
	paymentSecret  []byte
	deliverySecret []byte
	logger         logger.Logger
}

func NewWebhookHandler(service interfaces.LifecycleService, relay interfaces.EventRelay, paymentSecret, deliverySecret string, logger logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		service:        service,
		relay:          relay,
		paymentSecret:  []byte(paymentSecret),
		deliverySecret: []byte(deliverySecret),
		logger:         logger,
	}
}

type PaymentWebhookRequest struct {
	OrderID           string `json:"orderId"`
	Outcome           string `json:"outcome"`
	ExternalPaymentID string `json:"externalPaymentId"`
	AmountMinor       *int64 `json:"amountMinor,omitempty"`
	Method            string `json:"method,omitempty"`
}

type DeliveryWebhookRequest struct {
	ExternalOrderID string         `json:"externalOrderId"`
	RawStatus       string         `json:"rawStatus"`
	Driver          *domain.Driver `json:"driver,omitempty"`
}

type WebhookResponse struct {
	Status    string        `json:"status"`
	OldStatus domain.Status `json:"old_status,omitempty"`
	NewStatus domain.Status `json:"new_status,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// Sign returns the hex HMAC-SHA256 of body, as expected in the X-Signature header.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *WebhookHandler) readSigned(w http.ResponseWriter, r *http.Request, secret []byte) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest, nil)
		return nil, false
	}

	got, err := hex.DecodeString(strings.TrimPrefix(r.Header.Get(signatureHeader), "sha256="))
	if err != nil || len(secret) == 0 {
		got = nil
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	if got == nil || !hmac.Equal(got, want) {
		h.logger.Warn("webhook_signature_invalid", "Webhook signature rejected", RequestIDFrom(r.Context()), map[string]interface{}{"path": r.URL.Path})
		respondError(w, "Invalid signature", http.StatusUnauthorized, nil)
		return nil, false
	}
	return body, true
}

func (h *WebhookHandler) Payments(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readSigned(w, r, h.paymentSecret)
	if !ok {
		return
	}

	var req PaymentWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if req.OrderID == "" || req.Outcome == "" {
		respondError(w, "Validation failed", http.StatusBadRequest, []ValidationError{
			{Field: "orderId", Message: "orderId and outcome are required"},
		})
		return
	}

	if h.relay != nil {
		h.forward(w, r, "payment."+req.Outcome, interfaces.PaymentEventMessage{
			OrderID:           req.OrderID,
			Outcome:           req.Outcome,
			ExternalPaymentID: req.ExternalPaymentID,
			AmountMinor:       req.AmountMinor,
			Method:            req.Method,
		})
		return
	}

	result, err := h.service.HandlePaymentEvent(r.Context(), interfaces.PaymentEventCommand{
		OrderID:           req.OrderID,
		Outcome:           req.Outcome,
		ExternalPaymentID: req.ExternalPaymentID,
		AmountMinor:       req.AmountMinor,
		Method:            req.Method,
		RequestID:         RequestIDFrom(r.Context()),
	})
	h.respondResult(w, r, result, err)
}

func (h *WebhookHandler) Delivery(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readSigned(w, r, h.deliverySecret)
	if !ok {
		return
	}

	var req DeliveryWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if req.ExternalOrderID == "" {
		respondError(w, "Validation failed", http.StatusBadRequest, []ValidationError{
			{Field: "externalOrderId", Message: "externalOrderId is required"},
		})
		return
	}

	if h.relay != nil {
		h.forward(w, r, "delivery.status", interfaces.DeliveryEventMessage{
			ExternalOrderID: req.ExternalOrderID,
			RawStatus:       req.RawStatus,
			Driver:          req.Driver,
		})
		return
	}

	result, err := h.service.HandleDeliveryWebhook(r.Context(), interfaces.DeliveryWebhookCommand{
		ExternalOrderID: req.ExternalOrderID,
		RawStatus:       req.RawStatus,
		Driver:          req.Driver,
		RequestID:       RequestIDFrom(r.Context()),
	})
	h.respondResult(w, r, result, err)
}

func (h *WebhookHandler) forward(w http.ResponseWriter, r *http.Request, routingKey string, msg any) {
	requestID := RequestIDFrom(r.Context())
	data, err := json.Marshal(msg)
	if err == nil {
		err = h.relay.PublishEvent(r.Context(), routingKey, data)
	}
	if err != nil {
		// the provider retries on 5xx
		h.logger.Error("webhook_relay_failed", "Failed to relay webhook to the broker", requestID, map[string]interface{}{"routing_key": routingKey}, err)
		respondError(w, "Temporarily unavailable", http.StatusServiceUnavailable, nil)
		return
	}
	respondJSON(w, http.StatusAccepted, WebhookResponse{Status: "queued"})
}

// respondResult acknowledges rejected transitions so the provider stops retrying.
func (h *WebhookHandler) respondResult(w http.ResponseWriter, r *http.Request, result *interfaces.TransitionResult, err error) {
	if errors.Is(err, domain.ErrIllegalTransition) {
		h.logger.Warn("webhook_rejected", "Webhook event rejected by the order lifecycle", RequestIDFrom(r.Context()), map[string]interface{}{"reason": err.Error()})
		respondJSON(w, http.StatusOK, WebhookResponse{Status: "ignored", Reason: err.Error()})
		return
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if result.Ignored {
		respondJSON(w, http.StatusOK, WebhookResponse{Status: "ignored", Reason: result.Reason})
		return
	}
	respondJSON(w, http.StatusOK, WebhookResponse{Status: "applied", OldStatus: result.OldStatus, NewStatus: result.NewStatus})
}
