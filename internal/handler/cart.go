package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/gamestore-backend/internal/cart"
)

type AddCartItemRequest struct {
	GameID   string `json:"game_id" validate:"required,uuid4"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type CartItemResponse struct {
	ID              uuid.UUID `json:"id"`
	GameID          uuid.UUID `json:"game_id"`
	GameName        string    `json:"game_name"`
	GameSlug        string    `json:"game_slug"`
	Quantity        int       `json:"quantity"`
	PriceAtAddition float64   `json:"price_at_addition"`
	Subtotal        float64   `json:"subtotal"`
}

type CartResponse struct {
	ID          uuid.UUID          `json:"id"`
	Items       []CartItemResponse `json:"items"`
	TotalItems  int                `json:"total_items"`
	TotalAmount float64            `json:"total_amount"`
}

// CartHandler handles HTTP requests for the shopping cart.
type CartHandler struct {
	service  cart.Service
	validate *validator.Validate
}

func NewCartHandler(service cart.Service) *CartHandler {
	return &CartHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Get("/cart", h.handleGetCart)
	router.Post("/cart/items", h.handleAddItem)
	router.Put("/cart/items/{itemID}", h.handleUpdateItem)
	router.Delete("/cart/items/{itemID}", h.handleRemoveItem)
}

func (h *CartHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Missing or invalid user identity")
		return
	}

	userCart, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get cart via service")
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toCartResponse(userCart))
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Missing or invalid user identity")
		return
	}

	var requestPayload AddCartItemRequest

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

	gameID, err := uuid.FromString(requestPayload.GameID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid game id")
		return
	}

	item, err := h.service.AddItem(r.Context(), userID, gameID, requestPayload.Quantity)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, toCartItemResponse(item))
}

func (h *CartHandler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Missing or invalid user identity")
		return
	}

	itemID, err := uuid.FromString(chi.URLParam(r, "itemID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid cart item id")
		return
	}

	var requestPayload UpdateCartItemRequest

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

	item, err := h.service.UpdateItemQuantity(r.Context(), userID, itemID, requestPayload.Quantity)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toCartItemResponse(item))
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Missing or invalid user identity")
		return
	}

	itemID, err := uuid.FromString(chi.URLParam(r, "itemID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid cart item id")
		return
	}

	if err := h.service.RemoveItem(r.Context(), userID, itemID); err != nil {
		respondWithDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toCartItemResponse(item *cart.CartItem) CartItemResponse {
	return CartItemResponse{
		ID:              item.ID,
		GameID:          item.GameID,
		GameName:        item.GameName,
		GameSlug:        item.GameSlug,
		Quantity:        item.Quantity,
		PriceAtAddition: item.PriceAtAddition,
		Subtotal:        item.Subtotal(),
	}
}

func toCartResponse(c *cart.Cart) CartResponse {
	items := make([]CartItemResponse, 0, len(c.Items))
	for i := range c.Items {
		items = append(items, toCartItemResponse(&c.Items[i]))
	}
	return CartResponse{
		ID:          c.ID,
		Items:       items,
		TotalItems:  c.TotalItems(),
		TotalAmount: c.TotalAmount(),
	}
}
