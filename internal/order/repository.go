package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/gamestore-backend/internal/game"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrOrderNumberConflict = errors.New("order number already exists")
)

type Repository interface {
	CreateFromCart(ctx context.Context, userID uuid.UUID, address ShippingAddress) (*Order, error)
	GetByID(ctx context.Context, orderID, ownerID uuid.UUID) (*Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page Page) ([]Order, int, error)
	ListAll(ctx context.Context, page Page, status *OrderStatus) ([]Order, int, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus OrderStatus) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// строка корзины, развёрнутая для checkout'а
type checkoutLine struct {
	itemID          uuid.UUID
	gameID          uuid.UUID
	gameName        string
	gameSlug        string
	quantity        int
	priceAtAddition float64
}

// CreateFromCart выполняет весь checkout одной транзакцией: читает корзину,
// списывает склад условным UPDATE'ом, создаёт заказ с позициями по ценам
// на момент добавления и опустошает корзину. Любая ошибка до commit
// откатывает всё — частичных списаний и заказов-сирот не бывает.
func (r *postgresRepository) CreateFromCart(ctx context.Context, userID uuid.UUID, address ShippingAddress) (createdOrder *Order, err error) {
	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Stringer("user_id", userID).Msg("Panic recovered during checkout, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("user_id", userID).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("user_id", userID).Msg("Failed to rollback checkout transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				log.Error().Err(commitErr).Stringer("user_id", userID).Msg("Failed to commit checkout transaction")
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
				createdOrder = nil
			}
		}
	}()

	// 1. Корзина с позициями. FOR UPDATE OF ci: параллельное изменение
	// корзины не пролезет между чтением и опустошением.
	linesQuery := `
		SELECT c.id, ci.id, ci.game_id, g.name, g.slug, ci.quantity, ci.price_at_addition
		FROM carts c
		JOIN cart_items ci ON ci.cart_id = c.id
		JOIN games g ON g.id = ci.game_id
		WHERE c.user_id = $1
		ORDER BY ci.created_at
		FOR UPDATE OF ci
	`
	rows, err := tx.Query(ctx, linesQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cart lines for user %s: %w", userID, err)
	}

	var cartID uuid.UUID
	var lines []checkoutLine
	for rows.Next() {
		var line checkoutLine
		err = rows.Scan(&cartID, &line.itemID, &line.gameID, &line.gameName, &line.gameSlug, &line.quantity, &line.priceAtAddition)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("repository: failed to scan cart line for user %s: %w", userID, err)
		}
		lines = append(lines, line)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating cart lines for user %s: %w", userID, err)
	}

	if len(lines) == 0 {
		err = ErrEmptyCart
		return nil, err
	}

	// 2+6. Проверка и списание склада — одно условное выражение на строку.
	// Первая нехватка прерывает checkout, rollback вернёт уже списанное.
	for _, line := range lines {
		if err = game.DecrementStock(ctx, tx, line.gameID, line.quantity); err != nil {
			return nil, err
		}
	}

	// 3. Итог по ценам на момент добавления: изменение цены в каталоге
	// посреди checkout'а не меняет сумму, которую видел покупатель.
	totalAmount := 0.0
	for _, line := range lines {
		totalAmount += float64(line.quantity) * line.priceAtAddition
	}

	// 4-5. Заголовок заказа.
	orderID, genErr := uuid.NewV4()
	if genErr != nil {
		err = fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		return nil, err
	}

	orderNumber, numErr := GenerateOrderNumber()
	if numErr != nil {
		err = fmt.Errorf("repository: %w", numErr)
		return nil, err
	}

	addressJSON, marshalErr := json.Marshal(address)
	if marshalErr != nil {
		err = fmt.Errorf("repository: failed to marshal shipping address: %w", marshalErr)
		return nil, err
	}

	now := time.Now().UTC()
	orderQuery := `
		INSERT INTO orders (id, user_id, order_number, status, total_amount, shipping_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	_, err = tx.Exec(ctx, orderQuery, orderID, userID, orderNumber, string(StatusPending), totalAmount, addressJSON, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			// Коллизия номера заказа; сервис перегенерирует и повторит.
			err = ErrOrderNumberConflict
			return nil, err
		}
		return nil, fmt.Errorf("repository: failed to insert order: %w", err)
	}

	orderItems := make([]OrderItem, 0, len(lines))
	itemQuery := `
		INSERT INTO order_items (id, order_id, game_id, quantity, price_at_purchase, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, line := range lines {
		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			err = fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
			return nil, err
		}

		_, err = tx.Exec(ctx, itemQuery, itemID, orderID, line.gameID, line.quantity, line.priceAtAddition, now)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to insert order item for order %s: %w", orderID, err)
		}

		orderItems = append(orderItems, OrderItem{
			ID:              itemID,
			OrderID:         orderID,
			GameID:          line.gameID,
			GameName:        line.gameName,
			GameSlug:        line.gameSlug,
			Quantity:        line.quantity,
			PriceAtPurchase: line.priceAtAddition,
			CreatedAt:       now,
		})
	}

	// 7. Опустошаем корзину: следующий GetOrCreate вернёт пустую.
	if _, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return nil, fmt.Errorf("repository: failed to drain cart %s: %w", cartID, err)
	}

	createdOrder = &Order{
		ID:              orderID,
		UserID:          userID,
		OrderNumber:     orderNumber,
		Status:          StatusPending,
		TotalAmount:     totalAmount,
		ShippingAddress: address,
		Items:           orderItems,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return createdOrder, nil
}

// GetByID возвращает заказ. Ненулевой ownerID добавляет фильтр владельца:
// чужой заказ неотличим от несуществующего.
func (r *postgresRepository) GetByID(ctx context.Context, orderID, ownerID uuid.UUID) (*Order, error) {
	query := `
		SELECT id, user_id, order_number, status, total_amount, shipping_address, created_at, updated_at
		FROM orders
		WHERE id = $1
	`
	args := []any{orderID}
	if ownerID != uuid.Nil {
		query += ` AND user_id = $2`
		args = append(args, ownerID)
	}

	var order Order
	var addressJSON []byte
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Status,
		&order.TotalAmount,
		&addressJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", orderID, err)
	}

	if err = json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("repository: failed to unmarshal shipping address for order %s: %w", orderID, err)
	}

	itemsByOrder, err := r.loadItems(ctx, []uuid.UUID{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = itemsByOrder[order.ID]
	if order.Items == nil {
		order.Items = make([]OrderItem, 0)
	}

	return &order, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, page Page) ([]Order, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM orders WHERE user_id = $1`
	if err := r.db.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count orders for user %s: %w", userID, err)
	}

	query := `
		SELECT id, user_id, order_number, status, total_amount, shipping_address, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	orders, err := r.queryOrders(ctx, query, userID, page.limit(), page.offset())
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *postgresRepository) ListAll(ctx context.Context, page Page, status *OrderStatus) ([]Order, int, error) {
	var total int
	var orders []Order
	var err error

	if status != nil {
		countQuery := `SELECT COUNT(*) FROM orders WHERE status = $1`
		if err = r.db.QueryRow(ctx, countQuery, string(*status)).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("repository: failed to count orders with status %s: %w", *status, err)
		}

		query := `
			SELECT id, user_id, order_number, status, total_amount, shipping_address, created_at, updated_at
			FROM orders
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`
		orders, err = r.queryOrders(ctx, query, string(*status), page.limit(), page.offset())
	} else {
		countQuery := `SELECT COUNT(*) FROM orders`
		if err = r.db.QueryRow(ctx, countQuery).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("repository: failed to count orders: %w", err)
		}

		query := `
			SELECT id, user_id, order_number, status, total_amount, shipping_address, created_at, updated_at
			FROM orders
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2
		`
		orders, err = r.queryOrders(ctx, query, page.limit(), page.offset())
	}
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	cmdTag, err := r.db.Exec(ctx, query, string(newStatus), time.Now().UTC(), orderID)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Str("new_status", string(newStatus)).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update order status %s: %w", orderID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		log.Warn().Stringer("order_id", orderID).Str("new_status", string(newStatus)).Msg("repository: order not found for status update")
		return ErrOrderNotFound
	}

	return nil
}

// queryOrders выполняет запрос заголовков и подтягивает позиции двумя
// запросами, как в GetOrdersByUserID до разделения на списки.
func (r *postgresRepository) queryOrders(ctx context.Context, query string, args ...any) ([]Order, error) {
	orderRows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer orderRows.Close()

	ordersMap := make(map[uuid.UUID]*Order)
	var orderIDs []uuid.UUID

	for orderRows.Next() {
		var order Order
		var addressJSON []byte
		err := orderRows.Scan(
			&order.ID,
			&order.UserID,
			&order.OrderNumber,
			&order.Status,
			&order.TotalAmount,
			&addressJSON,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		if err = json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
			return nil, fmt.Errorf("repository: failed to unmarshal shipping address for order %s: %w", order.ID, err)
		}

		order.Items = make([]OrderItem, 0)
		ordersMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}
	if err = orderRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	itemsByOrder, err := r.loadItems(ctx, orderIDs)
	if err != nil {
		return nil, err
	}
	for orderID, items := range itemsByOrder {
		if order, ok := ordersMap[orderID]; ok {
			order.Items = items
		}
	}

	resultOrders := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		if order, ok := ordersMap[id]; ok {
			resultOrders = append(resultOrders, *order)
		}
	}

	return resultOrders, nil
}

func (r *postgresRepository) loadItems(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]OrderItem, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.game_id, g.name, g.slug, oi.quantity, oi.price_at_purchase, oi.created_at
		FROM order_items oi
		JOIN games g ON g.id = oi.game_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.created_at
	`

	itemRows, err := r.db.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer itemRows.Close()

	itemsByOrder := make(map[uuid.UUID][]OrderItem)
	for itemRows.Next() {
		var item OrderItem
		err := itemRows.Scan(
			&item.ID,
			&item.OrderID,
			&item.GameID,
			&item.GameName,
			&item.GameSlug,
			&item.Quantity,
			&item.PriceAtPurchase,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], item)
	}
	if err = itemRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}

	return itemsByOrder, nil
}
