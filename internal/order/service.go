package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/gamestore-backend/internal/game"
)

// Разрешённые переходы статусов. COMPLETED и CANCELLED — терминальные.
var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPending: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusCompleted: true,
		StatusCancelled: true,
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

var (
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrIncompleteAddress       = errors.New("shipping address is incomplete")
)

// Сколько раз перегенерировать номер заказа при коллизии.
const orderNumberAttempts = 3

type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, address ShippingAddress) (*Order, error)
	GetOrderByID(ctx context.Context, orderID, ownerID uuid.UUID) (*Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, page Page) ([]Order, int, error)
	ListAllOrders(ctx context.Context, page Page, status *OrderStatus) ([]Order, int, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus OrderStatus) error
}

type service struct {
	orderRepo Repository
}

func NewService(orderRepo Repository) Service {
	return &service{orderRepo: orderRepo}
}

func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, address ShippingAddress) (*Order, error) {
	if address.Street == "" || address.City == "" || address.Country == "" || address.PostalCode == "" {
		return nil, ErrIncompleteAddress
	}

	var createdOrder *Order
	var err error
	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		createdOrder, err = s.orderRepo.CreateFromCart(ctx, userID, address)
		if !errors.Is(err, ErrOrderNumberConflict) {
			break
		}
		log.Warn().Stringer("user_id", userID).Int("attempt", attempt).Msg("service: order number collision, retrying checkout")
	}
	if err != nil {
		var stockErr *game.InsufficientStockError
		switch {
		case errors.Is(err, ErrEmptyCart):
			log.Warn().Stringer("user_id", userID).Msg("service: checkout rejected, cart is empty")
			return nil, err
		case errors.As(err, &stockErr):
			log.Warn().Stringer("user_id", userID).Stringer("game_id", stockErr.GameID).
				Int("available", stockErr.Available).Int("requested", stockErr.Requested).
				Msg("service: checkout rejected, insufficient stock")
			return nil, err
		}
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to place order")
		return nil, fmt.Errorf("service: failed to place order: %w", err)
	}

	log.Info().
		Stringer("order_id", createdOrder.ID).
		Stringer("user_id", userID).
		Str("order_number", createdOrder.OrderNumber).
		Float64("total_amount", createdOrder.TotalAmount).
		Msg("service: order placed successfully")

	return createdOrder, nil
}

func (s *service) GetOrderByID(ctx context.Context, orderID, ownerID uuid.UUID) (*Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID, ownerID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", orderID).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}

		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}

	return order, nil
}

func (s *service) ListUserOrders(ctx context.Context, userID uuid.UUID, page Page) ([]Order, int, error) {
	orders, total, err := s.orderRepo.ListByUser(ctx, userID, page)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders")
		return nil, 0, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}

	return orders, total, nil
}

func (s *service) ListAllOrders(ctx context.Context, page Page, status *OrderStatus) ([]Order, int, error) {
	orders, total, err := s.orderRepo.ListAll(ctx, page, status)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to fetch orders")
		return nil, 0, fmt.Errorf("service: failed to fetch orders: %w", err)
	}

	return orders, total, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus OrderStatus) error {
	currentOrder, err := s.orderRepo.GetByID(ctx, orderID, uuid.Nil)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: order not found, cannot update status")
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to get order for status update")
		return fmt.Errorf("service: failed to get order for status update: %w", err)
	}

	if currentOrder.Status == newStatus {
		log.Info().Stringer("order_id", orderID).Stringer("status", newStatus).Msg("service: order status is already the same, no update needed")
		return nil
	}

	transitionsForCurrentStatus, ok := allowedTransitions[currentOrder.Status]
	if !ok || !transitionsForCurrentStatus[newStatus] {
		log.Warn().
			Stringer("order_id", currentOrder.ID).
			Stringer("current_status", currentOrder.Status).
			Stringer("new_status", newStatus).
			Msg("service: invalid status transition attempt")
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, currentOrder.Status, newStatus)
	}

	err = s.orderRepo.UpdateStatus(ctx, orderID, newStatus)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: failed to update order status")
		return fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Stringer("old_status", currentOrder.Status).Stringer("new_status", newStatus).Msg("service: order status updated")
	return nil
}
