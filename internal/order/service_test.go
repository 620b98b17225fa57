package order_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/vasiliy-maslov/gamestore-backend/internal/game"
	"github.com/vasiliy-maslov/gamestore-backend/internal/order"
)

type mockOrderRepository struct {
	createFromCartFunc func(ctx context.Context, userID uuid.UUID, address order.ShippingAddress) (*order.Order, error)
	getByIDFunc        func(ctx context.Context, orderID, ownerID uuid.UUID) (*order.Order, error)
	listByUserFunc     func(ctx context.Context, userID uuid.UUID, page order.Page) ([]order.Order, int, error)
	listAllFunc        func(ctx context.Context, page order.Page, status *order.OrderStatus) ([]order.Order, int, error)
	updateStatusFunc   func(ctx context.Context, orderID uuid.UUID, newStatus order.OrderStatus) error

	updateStatusCalls int
}

func (m *mockOrderRepository) CreateFromCart(ctx context.Context, userID uuid.UUID, address order.ShippingAddress) (*order.Order, error) {
	return m.createFromCartFunc(ctx, userID, address)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, orderID, ownerID uuid.UUID) (*order.Order, error) {
	return m.getByIDFunc(ctx, orderID, ownerID)
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, page order.Page) ([]order.Order, int, error) {
	return m.listByUserFunc(ctx, userID, page)
}

func (m *mockOrderRepository) ListAll(ctx context.Context, page order.Page, status *order.OrderStatus) ([]order.Order, int, error) {
	return m.listAllFunc(ctx, page, status)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus order.OrderStatus) error {
	m.updateStatusCalls++
	return m.updateStatusFunc(ctx, orderID, newStatus)
}

var validAddress = order.ShippingAddress{
	Street:     "Calle Falsa 123",
	City:       "Springfield",
	Country:    "US",
	PostalCode: "12345",
}

func TestOrderService_PlaceOrder(t *testing.T) {
	userID := uuid.Must(uuid.FromString("123e4567-e89b-12d3-a456-426614174000"))
	gameID := uuid.Must(uuid.FromString("550e8400-e29b-41d4-a716-446655440000"))

	placedOrder := &order.Order{
		ID:          uuid.Must(uuid.NewV4()),
		UserID:      userID,
		OrderNumber: "ORD-20250120-A1B2C3",
		Status:      order.StatusPending,
		TotalAmount: 45.00,
		Items: []order.OrderItem{
			{GameID: gameID, Quantity: 2, PriceAtPurchase: 10.00},
			{GameID: uuid.Must(uuid.NewV4()), Quantity: 1, PriceAtPurchase: 25.00},
		},
	}

	tests := []struct {
		name           string
		address        order.ShippingAddress
		createFromCart func(ctx context.Context, userID uuid.UUID, address order.ShippingAddress) (*order.Order, error)
		wantErrIs      error
		wantErrAs      bool // *game.InsufficientStockError
		wantOrder      *order.Order
	}{
		{
			name:    "success",
			address: validAddress,
			createFromCart: func(ctx context.Context, userID uuid.UUID, address order.ShippingAddress) (*order.Order, error) {
				return placedOrder, nil
			},
			wantOrder: placedOrder,
		},
		{
			name:    "empty_cart",
			address: validAddress,
			createFromCart: func(ctx context.Context, userID uuid.UUID, address order.ShippingAddress) (*order.Order, error) {
				return nil, order.ErrEmptyCart
			},
			wantErrIs: order.ErrEmptyCart,
		},
		{
			name:    "insufficient_stock",
			address: validAddress,
			createFromCart: func(ctx context.Context, userID uuid.UUID, address order.ShippingAddress) (*order.Order, error) {
				return nil, &game.InsufficientStockError{GameID: gameID, Name: "Hollow Knight", Available: 3, Requested: 5}
			},
			wantErrAs: true,
		},
		{
			name:    "incomplete_address",
			address: order.ShippingAddress{Street: "Calle Falsa 123"},
			createFromCart: func(ctx context.Context, userID uuid.UUID, address order.ShippingAddress) (*order.Order, error) {
				t.Fatal("repository must not be called with incomplete address")
				return nil, nil
			},
			wantErrIs: order.ErrIncompleteAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &mockOrderRepository{createFromCartFunc: tt.createFromCart}
			svc := order.NewService(mockRepo)

			got, err := svc.PlaceOrder(context.Background(), userID, tt.address)

			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
				assert.Nil(t, got)
				return
			}
			if tt.wantErrAs {
				var stockErr *game.InsufficientStockError
				assert.ErrorAs(t, err, &stockErr)
				assert.Equal(t, 3, stockErr.Available)
				assert.Equal(t, 5, stockErr.Requested)
				assert.Nil(t, got)
				return
			}

			assert.NoError(t, err)
			if diff := cmp.Diff(tt.wantOrder, got); diff != "" {
				t.Errorf("PlaceOrder() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOrderService_PlaceOrder_RetriesOrderNumberConflict(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())

	attempts := 0
	mockRepo := &mockOrderRepository{
		createFromCartFunc: func(ctx context.Context, userID uuid.UUID, address order.ShippingAddress) (*order.Order, error) {
			attempts++
			if attempts < 3 {
				return nil, order.ErrOrderNumberConflict
			}
			return &order.Order{ID: uuid.Must(uuid.NewV4()), Status: order.StatusPending}, nil
		},
	}
	svc := order.NewService(mockRepo)

	got, err := svc.PlaceOrder(context.Background(), userID, validAddress)
	assert.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, 3, attempts)
}

func TestOrderService_PlaceOrder_GivesUpAfterRepeatedConflicts(t *testing.T) {
	userID := uuid.Must(uuid.NewV4())

	attempts := 0
	mockRepo := &mockOrderRepository{
		createFromCartFunc: func(ctx context.Context, userID uuid.UUID, address order.ShippingAddress) (*order.Order, error) {
			attempts++
			return nil, order.ErrOrderNumberConflict
		},
	}
	svc := order.NewService(mockRepo)

	got, err := svc.PlaceOrder(context.Background(), userID, validAddress)
	assert.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 3, attempts)
}

func TestOrderService_UpdateOrderStatus(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())

	tests := []struct {
		name            string
		currentStatus   order.OrderStatus
		newStatus       order.OrderStatus
		wantErrIs       error
		wantUpdateCalls int
	}{
		{name: "pending_to_processing", currentStatus: order.StatusPending, newStatus: order.StatusProcessing, wantUpdateCalls: 1},
		{name: "pending_to_cancelled", currentStatus: order.StatusPending, newStatus: order.StatusCancelled, wantUpdateCalls: 1},
		{name: "processing_to_completed", currentStatus: order.StatusProcessing, newStatus: order.StatusCompleted, wantUpdateCalls: 1},
		{name: "processing_to_cancelled", currentStatus: order.StatusProcessing, newStatus: order.StatusCancelled, wantUpdateCalls: 1},
		{name: "pending_skips_processing", currentStatus: order.StatusPending, newStatus: order.StatusCompleted, wantErrIs: order.ErrInvalidStatusTransition},
		{name: "completed_is_terminal", currentStatus: order.StatusCompleted, newStatus: order.StatusCancelled, wantErrIs: order.ErrInvalidStatusTransition},
		{name: "cancelled_is_terminal", currentStatus: order.StatusCancelled, newStatus: order.StatusPending, wantErrIs: order.ErrInvalidStatusTransition},
		{name: "same_status_is_noop", currentStatus: order.StatusProcessing, newStatus: order.StatusProcessing, wantUpdateCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &mockOrderRepository{
				getByIDFunc: func(ctx context.Context, id, ownerID uuid.UUID) (*order.Order, error) {
					return &order.Order{ID: id, Status: tt.currentStatus}, nil
				},
				updateStatusFunc: func(ctx context.Context, id uuid.UUID, newStatus order.OrderStatus) error {
					return nil
				},
			}
			svc := order.NewService(mockRepo)

			err := svc.UpdateOrderStatus(context.Background(), orderID, tt.newStatus)

			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantUpdateCalls, mockRepo.updateStatusCalls)
		})
	}
}

func TestOrderService_UpdateOrderStatus_NotFound(t *testing.T) {
	mockRepo := &mockOrderRepository{
		getByIDFunc: func(ctx context.Context, id, ownerID uuid.UUID) (*order.Order, error) {
			return nil, order.ErrOrderNotFound
		},
	}
	svc := order.NewService(mockRepo)

	err := svc.UpdateOrderStatus(context.Background(), uuid.Must(uuid.NewV4()), order.StatusProcessing)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestOrderService_GetOrderByID(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())
	ownerID := uuid.Must(uuid.NewV4())

	t.Run("owner_filter_passed_through", func(t *testing.T) {
		var gotOwner uuid.UUID
		mockRepo := &mockOrderRepository{
			getByIDFunc: func(ctx context.Context, id, owner uuid.UUID) (*order.Order, error) {
				gotOwner = owner
				return &order.Order{ID: id, UserID: owner}, nil
			},
		}
		svc := order.NewService(mockRepo)

		_, err := svc.GetOrderByID(context.Background(), orderID, ownerID)
		assert.NoError(t, err)
		assert.Equal(t, ownerID, gotOwner)
	})

	t.Run("not_found", func(t *testing.T) {
		mockRepo := &mockOrderRepository{
			getByIDFunc: func(ctx context.Context, id, owner uuid.UUID) (*order.Order, error) {
				return nil, order.ErrOrderNotFound
			},
		}
		svc := order.NewService(mockRepo)

		got, err := svc.GetOrderByID(context.Background(), orderID, ownerID)
		assert.ErrorIs(t, err, order.ErrOrderNotFound)
		assert.Nil(t, got)
	})
}
