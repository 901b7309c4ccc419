package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"pizza42-api/internal/domain"
	"pizza42-api/internal/middleware"
	"pizza42-api/internal/service"
	apperrors "pizza42-api/pkg/errors"
	"pizza42-api/pkg/logger"
)

const maxOrderBody = 64 << 10

// OrderHandler serves the order endpoints
type OrderHandler struct {
	orders service.Orders
	logger *logger.Logger
}

func NewOrderHandler(orders service.Orders, log *logger.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: log}
}

// PlaceOrderResponse is returned by POST /api/orders
type PlaceOrderResponse struct {
	Success      bool                      `json:"success"`
	Message      string                    `json:"message"`
	Order        *domain.Order             `json:"order"`
	Verification domain.VerificationStatus `json:"verification"`
	Warnings     []string                  `json:"warnings"`
}

// ListOrdersResponse is returned by GET /api/orders
type ListOrdersResponse struct {
	Success      bool                      `json:"success"`
	Orders       []domain.Order            `json:"orders"`
	Profile      domain.CustomerProfile    `json:"profile"`
	Verification domain.VerificationStatus `json:"verification"`
	Warnings     []string                  `json:"warnings"`
}

// PlaceOrder handles POST /api/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	tok, ok := middleware.GetToken(r.Context())
	if !ok {
		middleware.WriteError(w, r, apperrors.NewAuthenticationError(apperrors.CodeMissingToken, "Authentication required"), h.logger)
		return
	}
	status, _ := middleware.GetVerification(r.Context())

	var in domain.OrderInput
	if err := decodeBody(w, r, &in); err != nil {
		middleware.WriteError(w, r, apperrors.NewValidationError("Invalid request body", map[string]interface{}{
			"body": err.Error(),
		}), h.logger)
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), tok.Subject, in)
	if err != nil {
		middleware.WriteError(w, r, apperrors.AsAppError(err), h.logger)
		return
	}

	respondJSON(w, http.StatusCreated, PlaceOrderResponse{
		Success:      true,
		Message:      "Order placed successfully",
		Order:        order,
		Verification: status,
		Warnings:     warningsOrEmpty(status.Warnings),
	}, h.logger)
}

// ListOrders handles GET /api/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	tok, ok := middleware.GetToken(r.Context())
	if !ok {
		middleware.WriteError(w, r, apperrors.NewAuthenticationError(apperrors.CodeMissingToken, "Authentication required"), h.logger)
		return
	}
	status, _ := middleware.GetVerification(r.Context())

	history, err := h.orders.ListOrders(r.Context(), tok.Subject)
	if err != nil {
		middleware.WriteError(w, r, apperrors.AsAppError(err), h.logger)
		return
	}

	respondJSON(w, http.StatusOK, ListOrdersResponse{
		Success:      true,
		Orders:       history.Orders,
		Profile:      history.Profile,
		Verification: status,
		Warnings:     warningsOrEmpty(status.Warnings),
	}, h.logger)
}

// decodeBody reads a single JSON object, rejecting trailing data. Unknown
// fields are ignored.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOrderBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
