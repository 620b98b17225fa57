package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrGameNotFound = errors.New("game not found")

// InsufficientStockError возвращается условным декрементом и валидацией
// корзины: сколько было доступно и сколько запросили.
type InsufficientStockError struct {
	GameID    uuid.UUID
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.Name, e.Available, e.Requested)
	}
	return fmt.Sprintf("insufficient stock for game %s: available %d, requested %d", e.GameID, e.Available, e.Requested)
}

// Querier покрывает и *pgxpool.Pool, и pgx.Tx — декремент склада должен
// уметь работать внутри чужой транзакции (checkout).
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Game, error)
	CheckAvailability(ctx context.Context, id uuid.UUID, quantity int) (bool, error)
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error
}

type postgresRepository struct {
	db Querier
}

func NewRepository(db Querier) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Game, error) {
	query := `
		SELECT id, rawg_id, slug, name, price, stock, status, COALESCE(image_url, ''), created_at, updated_at
		FROM games
		WHERE id = $1
	`

	var g Game
	err := r.db.QueryRow(ctx, query, id).Scan(
		&g.ID,
		&g.RawgID,
		&g.Slug,
		&g.Name,
		&g.Price,
		&g.Stock,
		&g.Lifecycle,
		&g.ImageURL,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("repository: failed to select game by id %s: %w", id, err)
	}

	return &g, nil
}

func (r *postgresRepository) CheckAvailability(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	query := `SELECT stock, status FROM games WHERE id = $1`

	var stock int
	var lifecycle Lifecycle
	err := r.db.QueryRow(ctx, query, id).Scan(&stock, &lifecycle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("repository: failed to check availability for game %s: %w", id, err)
	}

	return lifecycle == LifecycleActive && stock >= quantity, nil
}

func (r *postgresRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	return DecrementStock(ctx, r.db, id, quantity)
}

// DecrementStock уменьшает склад одним условным UPDATE: проверка stock >= qty
// и само списание — одно атомарное выражение, а не read-then-write.
// Ноль затронутых строк означает либо нехватку, либо отсутствие игры —
// различаем повторным чтением.
func DecrementStock(ctx context.Context, q Querier, id uuid.UUID, quantity int) error {
	query := `
		UPDATE games
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
	`

	cmdTag, err := q.Exec(ctx, query, id, quantity)
	if err != nil {
		return fmt.Errorf("repository: failed to decrement stock for game %s: %w", id, err)
	}

	if cmdTag.RowsAffected() == 0 {
		var name string
		var available int
		err := q.QueryRow(ctx, `SELECT name, stock FROM games WHERE id = $1`, id).Scan(&name, &available)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrGameNotFound
			}
			return fmt.Errorf("repository: failed to read stock for game %s: %w", id, err)
		}
		return &InsufficientStockError{GameID: id, Name: name, Available: available, Requested: quantity}
	}

	return nil
}
