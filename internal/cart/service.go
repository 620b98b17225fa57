package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/gamestore-backend/internal/game"
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*Cart, error)
	AddItem(ctx context.Context, userID, gameID uuid.UUID, quantity int) (*CartItem, error)
	UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartItem, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
}

type service struct {
	cartRepo Repository
}

func NewService(cartRepo Repository) Service {
	return &service{cartRepo: cartRepo}
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	cart, err := s.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to get or create cart")
		return nil, fmt.Errorf("service: failed to get cart: %w", err)
	}

	return cart, nil
}

func (s *service) AddItem(ctx context.Context, userID, gameID uuid.UUID, quantity int) (*CartItem, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	item, err := s.cartRepo.AddItem(ctx, userID, gameID, quantity)
	if err != nil {
		var stockErr *game.InsufficientStockError
		switch {
		case errors.Is(err, game.ErrGameNotFound):
			log.Warn().Stringer("user_id", userID).Stringer("game_id", gameID).Msg("service: add to cart rejected, game not found or retired")
			return nil, err
		case errors.As(err, &stockErr):
			log.Warn().Stringer("user_id", userID).Stringer("game_id", gameID).
				Int("available", stockErr.Available).Int("requested", stockErr.Requested).
				Msg("service: add to cart rejected, insufficient stock")
			return nil, err
		}
		log.Error().Err(err).Stringer("user_id", userID).Stringer("game_id", gameID).Msg("service: failed to add item to cart")
		return nil, fmt.Errorf("service: failed to add item to cart: %w", err)
	}

	log.Info().Stringer("user_id", userID).Stringer("game_id", gameID).Int("quantity", item.Quantity).Msg("service: item added to cart")
	return item, nil
}

func (s *service) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartItem, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	item, err := s.cartRepo.UpdateQuantity(ctx, userID, itemID, quantity)
	if err != nil {
		var stockErr *game.InsufficientStockError
		if errors.Is(err, ErrCartItemNotFound) || errors.As(err, &stockErr) {
			return nil, err
		}
		log.Error().Err(err).Stringer("user_id", userID).Stringer("item_id", itemID).Msg("service: failed to update cart item quantity")
		return nil, fmt.Errorf("service: failed to update cart item quantity: %w", err)
	}

	return item, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	removed, err := s.cartRepo.RemoveItem(ctx, userID, itemID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Stringer("item_id", itemID).Msg("service: failed to remove cart item")
		return fmt.Errorf("service: failed to remove cart item: %w", err)
	}
	if !removed {
		return ErrCartItemNotFound
	}

	return nil
}
