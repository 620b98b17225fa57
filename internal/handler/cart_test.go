package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/vasiliy-maslov/gamestore-backend/internal/cart"
	"github.com/vasiliy-maslov/gamestore-backend/internal/game"
	"github.com/vasiliy-maslov/gamestore-backend/internal/handler"
)

type mockCartService struct {
	getCartFunc            func(ctx context.Context, userID uuid.UUID) (*cart.Cart, error)
	addItemFunc            func(ctx context.Context, userID, gameID uuid.UUID, quantity int) (*cart.CartItem, error)
	updateItemQuantityFunc func(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*cart.CartItem, error)
	removeItemFunc         func(ctx context.Context, userID, itemID uuid.UUID) error
}

func (m *mockCartService) GetCart(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	return m.getCartFunc(ctx, userID)
}

func (m *mockCartService) AddItem(ctx context.Context, userID, gameID uuid.UUID, quantity int) (*cart.CartItem, error) {
	return m.addItemFunc(ctx, userID, gameID, quantity)
}

func (m *mockCartService) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*cart.CartItem, error) {
	return m.updateItemQuantityFunc(ctx, userID, itemID, quantity)
}

func (m *mockCartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return m.removeItemFunc(ctx, userID, itemID)
}

func newCartRouter(svc cart.Service) http.Handler {
	router := chi.NewRouter()
	handler.NewCartHandler(svc).RegisterRoutes(router)
	return router
}

func TestCartHandler_GetCart(t *testing.T) {
	mockSvc := &mockCartService{
		getCartFunc: func(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
			return &cart.Cart{
				ID:     uuid.Must(uuid.NewV4()),
				UserID: userID,
				Items: []cart.CartItem{
					{Quantity: 2, PriceAtAddition: 10.00},
					{Quantity: 1, PriceAtAddition: 25.00},
				},
			}, nil
		},
	}
	router := newCartRouter(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("X-User-ID", testUserID)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body handler.CartResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.TotalItems)
	assert.InDelta(t, 45.00, body.TotalAmount, 0.001)
}

func TestCartHandler_AddItem(t *testing.T) {
	gameID := "550e8400-e29b-41d4-a716-446655440000"

	tests := []struct {
		name           string
		userHeader     string
		body           string
		addItem        func(ctx context.Context, userID, gameID uuid.UUID, quantity int) (*cart.CartItem, error)
		expectedStatus int
	}{
		{
			name:       "success",
			userHeader: testUserID,
			body:       `{"game_id":"` + gameID + `","quantity":2}`,
			addItem: func(ctx context.Context, userID, id uuid.UUID, quantity int) (*cart.CartItem, error) {
				return &cart.CartItem{ID: uuid.Must(uuid.NewV4()), GameID: id, Quantity: quantity, PriceAtAddition: 19.99}, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing_user_header",
			userHeader:     "",
			body:           `{"game_id":"` + gameID + `","quantity":2}`,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "zero_quantity_fails_validation",
			userHeader:     testUserID,
			body:           `{"game_id":"` + gameID + `","quantity":0}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown_field_rejected",
			userHeader:     testUserID,
			body:           `{"game_id":"` + gameID + `","quantity":1,"price":0.01}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:       "game_not_found",
			userHeader: testUserID,
			body:       `{"game_id":"` + gameID + `","quantity":1}`,
			addItem: func(ctx context.Context, userID, id uuid.UUID, quantity int) (*cart.CartItem, error) {
				return nil, game.ErrGameNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:       "insufficient_stock",
			userHeader: testUserID,
			body:       `{"game_id":"` + gameID + `","quantity":5}`,
			addItem: func(ctx context.Context, userID, id uuid.UUID, quantity int) (*cart.CartItem, error) {
				return nil, &game.InsufficientStockError{GameID: id, Available: 3, Requested: 5}
			},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := &mockCartService{addItemFunc: tt.addItem}
			router := newCartRouter(mockSvc)

			req := httptest.NewRequest(http.MethodPost, "/cart/items", bytes.NewBufferString(tt.body))
			if tt.userHeader != "" {
				req.Header.Set("X-User-ID", tt.userHeader)
			}
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestCartHandler_RemoveItem(t *testing.T) {
	itemID := uuid.Must(uuid.NewV4())

	t.Run("removed", func(t *testing.T) {
		mockSvc := &mockCartService{
			removeItemFunc: func(ctx context.Context, userID, id uuid.UUID) error {
				return nil
			},
		}
		router := newCartRouter(mockSvc)

		req := httptest.NewRequest(http.MethodDelete, "/cart/items/"+itemID.String(), nil)
		req.Header.Set("X-User-ID", testUserID)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("not_found", func(t *testing.T) {
		mockSvc := &mockCartService{
			removeItemFunc: func(ctx context.Context, userID, id uuid.UUID) error {
				return cart.ErrCartItemNotFound
			},
		}
		router := newCartRouter(mockSvc)

		req := httptest.NewRequest(http.MethodDelete, "/cart/items/"+itemID.String(), nil)
		req.Header.Set("X-User-ID", testUserID)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid_item_id", func(t *testing.T) {
		router := newCartRouter(&mockCartService{})

		req := httptest.NewRequest(http.MethodDelete, "/cart/items/not-a-uuid", nil)
		req.Header.Set("X-User-ID", testUserID)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
