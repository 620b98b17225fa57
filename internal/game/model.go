package game

import (
	"time"

	"github.com/gofrs/uuid"
)

// Lifecycle описывает состояние игры в каталоге. Retired-игры не продаются,
// но остаются в базе, потому что на них ссылается история заказов.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "active"
	LifecycleRetired Lifecycle = "retired"
)

func (l Lifecycle) String() string {
	return string(l)
}

type Game struct {
	ID        uuid.UUID `json:"id" db:"id"`
	RawgID    int64     `json:"rawg_id" db:"rawg_id"`
	Slug      string    `json:"slug" db:"slug"`
	Name      string    `json:"name" db:"name"`
	Price     float64   `json:"price" db:"price"` // NUMERIC(10,2) в базе
	Stock     int       `json:"stock" db:"stock"`
	Lifecycle Lifecycle `json:"lifecycle" db:"status"`
	ImageURL  string    `json:"image_url,omitempty" db:"image_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Orderable — можно ли положить игру в корзину.
func (g *Game) Orderable() bool {
	return g.Lifecycle == LifecycleActive
}
