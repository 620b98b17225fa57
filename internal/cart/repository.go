package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/gamestore-backend/internal/game"
)

var ErrCartItemNotFound = errors.New("cart item not found")

type Repository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*Cart, error)
	AddItem(ctx context.Context, userID, gameID uuid.UUID, quantity int) (*CartItem, error)
	UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartItem, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (bool, error)
	Clear(ctx context.Context, cartID uuid.UUID) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	cart, err := r.ensureCart(ctx, r.db, userID)
	if err != nil {
		return nil, err
	}

	queryItems := `
		SELECT ci.id, ci.cart_id, ci.game_id, g.name, g.slug, ci.quantity, ci.price_at_addition, ci.created_at
		FROM cart_items ci
		JOIN games g ON g.id = ci.game_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at
	`

	rows, err := r.db.Query(ctx, queryItems, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cart items for cart %s: %w", cart.ID, err)
	}
	defer rows.Close()

	items := make([]CartItem, 0)
	for rows.Next() {
		var item CartItem
		err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.GameID,
			&item.GameName,
			&item.GameSlug,
			&item.Quantity,
			&item.PriceAtAddition,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart item for cart %s: %w", cart.ID, err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating cart items for cart %s: %w", cart.ID, err)
	}

	cart.Items = items
	return cart, nil
}

// ensureCart возвращает корзину пользователя, лениво создавая её.
// ON CONFLICT DO NOTHING делает создание идемпотентным даже при гонке
// двух первых запросов одного пользователя.
func (r *postgresRepository) ensureCart(ctx context.Context, q game.Querier, userID uuid.UUID) (*Cart, error) {
	newID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate cart ID: %w", err)
	}

	now := time.Now().UTC()
	insertQuery := `
		INSERT INTO carts (id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := q.Exec(ctx, insertQuery, newID, userID, now); err != nil {
		return nil, fmt.Errorf("repository: failed to create cart for user %s: %w", userID, err)
	}

	var cart Cart
	selectQuery := `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`
	err = q.QueryRow(ctx, selectQuery, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to select cart for user %s: %w", userID, err)
	}

	return &cart, nil
}

func (r *postgresRepository) AddItem(ctx context.Context, userID, gameID uuid.UUID, quantity int) (*CartItem, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op после успешного Commit

	cart, err := r.ensureCart(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	var name, slug string
	var price float64
	var stock int
	var lifecycle game.Lifecycle
	gameQuery := `SELECT name, slug, price, stock, status FROM games WHERE id = $1`
	err = tx.QueryRow(ctx, gameQuery, gameID).Scan(&name, &slug, &price, &stock, &lifecycle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, game.ErrGameNotFound
		}
		return nil, fmt.Errorf("repository: failed to select game %s: %w", gameID, err)
	}
	if lifecycle != game.LifecycleActive {
		// retired-игра не отличается для покупателя от несуществующей
		return nil, game.ErrGameNotFound
	}

	// Строка корзины блокируется, чтобы два параллельных добавления
	// не потеряли слияние количеств.
	var existing CartItem
	lineQuery := `
		SELECT id, quantity, price_at_addition, created_at
		FROM cart_items
		WHERE cart_id = $1 AND game_id = $2
		FOR UPDATE
	`
	err = tx.QueryRow(ctx, lineQuery, cart.ID, gameID).Scan(&existing.ID, &existing.Quantity, &existing.PriceAtAddition, &existing.CreatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("repository: failed to select cart item for cart %s: %w", cart.ID, err)
	}

	item := CartItem{
		CartID:   cart.ID,
		GameID:   gameID,
		GameName: name,
		GameSlug: slug,
	}

	if existing.ID != uuid.Nil {
		// Слияние: валидируем итоговое количество, а не только дельту.
		newQuantity := existing.Quantity + quantity
		if stock < newQuantity {
			return nil, &game.InsufficientStockError{GameID: gameID, Name: name, Available: stock, Requested: newQuantity}
		}

		updateQuery := `UPDATE cart_items SET quantity = $1 WHERE id = $2`
		if _, err = tx.Exec(ctx, updateQuery, newQuantity, existing.ID); err != nil {
			return nil, fmt.Errorf("repository: failed to update cart item %s: %w", existing.ID, err)
		}

		item.ID = existing.ID
		item.Quantity = newQuantity
		item.PriceAtAddition = existing.PriceAtAddition
		item.CreatedAt = existing.CreatedAt
	} else {
		if stock < quantity {
			return nil, &game.InsufficientStockError{GameID: gameID, Name: name, Available: stock, Requested: quantity}
		}

		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			return nil, fmt.Errorf("repository: failed to generate cart item ID: %w", genErr)
		}

		createdAt := time.Now().UTC()
		insertQuery := `
			INSERT INTO cart_items (id, cart_id, game_id, quantity, price_at_addition, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err = tx.Exec(ctx, insertQuery, itemID, cart.ID, gameID, quantity, price, createdAt); err != nil {
			return nil, fmt.Errorf("repository: failed to insert cart item for cart %s: %w", cart.ID, err)
		}

		item.ID = itemID
		item.Quantity = quantity
		item.PriceAtAddition = price
		item.CreatedAt = createdAt
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository: failed to commit transaction: %w", err)
	}

	return &item, nil
}

func (r *postgresRepository) UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartItem, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Ownership проверяется join'ом на carts.user_id: чужая строка
	// неотличима от несуществующей.
	var item CartItem
	var stock int
	query := `
		SELECT ci.id, ci.cart_id, ci.game_id, g.name, g.slug, ci.price_at_addition, ci.created_at, g.stock
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		JOIN games g ON g.id = ci.game_id
		WHERE ci.id = $1 AND c.user_id = $2
		FOR UPDATE OF ci
	`
	err = tx.QueryRow(ctx, query, itemID, userID).Scan(
		&item.ID,
		&item.CartID,
		&item.GameID,
		&item.GameName,
		&item.GameSlug,
		&item.PriceAtAddition,
		&item.CreatedAt,
		&stock,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("repository: failed to select cart item %s: %w", itemID, err)
	}

	if stock < quantity {
		return nil, &game.InsufficientStockError{GameID: item.GameID, Name: item.GameName, Available: stock, Requested: quantity}
	}

	updateQuery := `UPDATE cart_items SET quantity = $1 WHERE id = $2`
	if _, err = tx.Exec(ctx, updateQuery, quantity, itemID); err != nil {
		return nil, fmt.Errorf("repository: failed to update cart item %s: %w", itemID, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("repository: failed to commit transaction: %w", err)
	}

	item.Quantity = quantity
	return &item, nil
}

func (r *postgresRepository) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (bool, error) {
	query := `
		DELETE FROM cart_items ci
		USING carts c
		WHERE ci.cart_id = c.id AND ci.id = $1 AND c.user_id = $2
	`

	cmdTag, err := r.db.Exec(ctx, query, itemID, userID)
	if err != nil {
		return false, fmt.Errorf("repository: failed to delete cart item %s: %w", itemID, err)
	}

	return cmdTag.RowsAffected() > 0, nil
}

func (r *postgresRepository) Clear(ctx context.Context, cartID uuid.UUID) error {
	query := `DELETE FROM cart_items WHERE cart_id = $1`

	if _, err := r.db.Exec(ctx, query, cartID); err != nil {
		log.Error().Err(err).Stringer("cart_id", cartID).Msg("repository: failed to clear cart")
		return fmt.Errorf("repository: failed to clear cart %s: %w", cartID, err)
	}

	return nil
}
