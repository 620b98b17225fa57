package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/gamestore-backend/internal/cart"
	"github.com/vasiliy-maslov/gamestore-backend/internal/game"
	"github.com/vasiliy-maslov/gamestore-backend/internal/order"
)

// Заголовки, которые проставляет gateway после аутентификации.
// Сам токен сюда не доходит.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
	roleAdmin      = "admin"
)

var errMissingUser = errors.New("missing or invalid user identity")

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

// respondWithError отправляет JSON ошибку
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON отправляет JSON ответ
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func formatValidationErrors(validationErrors validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Field()] = fmt.Sprintf("failed on the '%s' rule", fieldErr.Tag())
	}
	return details
}

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(headerUserID)
	if raw == "" {
		return uuid.Nil, errMissingUser
	}
	userID, err := uuid.FromString(raw)
	if err != nil {
		return uuid.Nil, errMissingUser
	}
	return userID, nil
}

func isAdmin(r *http.Request) bool {
	return r.Header.Get(headerUserRole) == roleAdmin
}

func mapErrorToStatusCode(err error) int {
	var stockErr *game.InsufficientStockError
	switch {
	case errors.Is(err, game.ErrGameNotFound),
		errors.Is(err, cart.ErrCartItemNotFound),
		errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.As(err, &stockErr),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrInvalidStatusTransition):
		return http.StatusConflict
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrIncompleteAddress):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondWithDomainError переводит доменную ошибку в ответ; нехватка склада
// отдаётся с цифрами available/requested, как их вернула база.
func respondWithDomainError(w http.ResponseWriter, err error) {
	var stockErr *game.InsufficientStockError
	if errors.As(err, &stockErr) {
		respondWithJSON(w, http.StatusConflict, map[string]interface{}{
			"error":     "Insufficient stock",
			"game_id":   stockErr.GameID.String(),
			"game_name": stockErr.Name,
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
		return
	}

	code := mapErrorToStatusCode(err)
	var clientMessage string
	switch {
	case errors.Is(err, game.ErrGameNotFound):
		clientMessage = "Game not found"
	case errors.Is(err, cart.ErrCartItemNotFound):
		clientMessage = "Cart item not found"
	case errors.Is(err, order.ErrOrderNotFound):
		clientMessage = "Order not found"
	case errors.Is(err, order.ErrEmptyCart):
		clientMessage = "Cart is empty"
	case errors.Is(err, order.ErrInvalidStatusTransition):
		clientMessage = "Invalid order status transition"
	case errors.Is(err, cart.ErrInvalidQuantity):
		clientMessage = "Quantity must be at least 1"
	case errors.Is(err, order.ErrIncompleteAddress):
		clientMessage = "Shipping address is incomplete"
	default:
		clientMessage = "Internal server error"
	}

	respondWithError(w, code, clientMessage)
}
