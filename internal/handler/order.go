package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/gamestore-backend/internal/order"
)

type ShippingAddressPayload struct {
	Street     string `json:"street" validate:"required,max=255"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"omitempty,max=100"`
	Country    string `json:"country" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
}

type PlaceOrderRequest struct {
	ShippingAddress ShippingAddressPayload `json:"shipping_address" validate:"required"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING PROCESSING COMPLETED CANCELLED"`
}

type OrderListResponse struct {
	Orders   []order.Order `json:"orders"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handlePlaceOrder)
	router.Get("/orders", h.handleListUserOrders)
	router.Get("/orders/{orderID}", h.handleGetOrderByID)
	router.Get("/admin/orders", h.handleListAllOrders)
	router.Patch("/admin/orders/{orderID}/status", h.handleUpdateOrderStatus)
}

// handlePlaceOrder конвертирует корзину пользователя в заказ.
func (h *OrderHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Missing or invalid user identity")
		return
	}

	var requestPayload PlaceOrderRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&requestPayload); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload %v", err))
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if ok {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return
	}

	address := order.ShippingAddress{
		Street:     requestPayload.ShippingAddress.Street,
		City:       requestPayload.ShippingAddress.City,
		State:      requestPayload.ShippingAddress.State,
		Country:    requestPayload.ShippingAddress.Country,
		PostalCode: requestPayload.ShippingAddress.PostalCode,
	}

	placedOrder, err := h.service.PlaceOrder(r.Context(), userID, address)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, placedOrder)
}

func (h *OrderHandler) handleGetOrderByID(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Missing or invalid user identity")
		return
	}

	orderID, err := uuid.FromString(chi.URLParam(r, "orderID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	// Админ видит любой заказ, обычный пользователь — только свой.
	ownerID := userID
	if isAdmin(r) {
		ownerID = uuid.Nil
	}

	ord, err := h.service.GetOrderByID(r.Context(), orderID, ownerID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ord)
}

func (h *OrderHandler) handleListUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Missing or invalid user identity")
		return
	}

	page := pageFromRequest(r)

	orders, total, err := h.service.ListUserOrders(r.Context(), userID, page)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, OrderListResponse{
		Orders:   orders,
		Total:    total,
		Page:     page.Number,
		PageSize: page.Size,
	})
}

func (h *OrderHandler) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		respondWithError(w, http.StatusForbidden, "Admin access required")
		return
	}

	page := pageFromRequest(r)

	var statusFilter *order.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := order.OrderStatus(raw)
		switch status {
		case order.StatusPending, order.StatusProcessing, order.StatusCompleted, order.StatusCancelled:
			statusFilter = &status
		default:
			respondWithError(w, http.StatusBadRequest, "Unknown order status")
			return
		}
	}

	orders, total, err := h.service.ListAllOrders(r.Context(), page, statusFilter)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, OrderListResponse{
		Orders:   orders,
		Total:    total,
		Page:     page.Number,
		PageSize: page.Size,
	})
}

func (h *OrderHandler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		respondWithError(w, http.StatusForbidden, "Admin access required")
		return
	}

	orderID, err := uuid.FromString(chi.URLParam(r, "orderID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	var requestPayload UpdateOrderStatusRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&requestPayload); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload %v", err))
		return
	}

	if err := h.validate.Struct(requestPayload); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if ok {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return
	}

	if err := h.service.UpdateOrderStatus(r.Context(), orderID, order.OrderStatus(requestPayload.Status)); err != nil {
		respondWithDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func pageFromRequest(r *http.Request) order.Page {
	page := order.Page{Number: 1, Size: 20}

	if raw := r.URL.Query().Get("page"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			page.Number = parsed
		}
	}
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			page.Size = parsed
		}
	}

	return page
}
