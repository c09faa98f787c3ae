package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/YelzhanWeb/catering/internal/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`
}

func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, message string, statusCode int, validationErrors []ValidationError) {
	respondJSON(w, statusCode, ErrorResponse{
		Error:  message,
		Errors: validationErrors,
	})
}

// respondDomainError picks the status code from the error kind or store sentinel.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		respondError(w, "Order not found", http.StatusNotFound, nil)
		return
	case errors.Is(err, domain.ErrMenuItemNotFound):
		respondError(w, "Menu item not found", http.StatusNotFound, nil)
		return
	case errors.Is(err, domain.ErrConcurrentUpdate):
		respondError(w, "Order is being updated, try again", http.StatusConflict, nil)
		return
	}

	var derr *domain.Error
	if !errors.As(err, &derr) {
		respondError(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}

	resp := ErrorResponse{Error: derr.Error(), Kind: string(derr.Kind)}
	if derr.Field != "" {
		resp.Errors = []ValidationError{{Field: derr.Field, Message: derr.Message}}
	}

	status := http.StatusInternalServerError
	switch {
	case derr.Kind == domain.KindInvalidSelection:
		status = http.StatusBadRequest
	case derr.Kind == domain.KindIllegalTransition:
		status = http.StatusConflict
	case domain.IsPromotionError(derr):
		status = http.StatusUnprocessableEntity
	case derr.Kind == domain.KindPricingInvariantViolated:
		resp = ErrorResponse{Error: "Internal server error"}
	}
	respondJSON(w, status, resp)
}
