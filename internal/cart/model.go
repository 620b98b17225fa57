package cart

import (
	"time"

	"github.com/gofrs/uuid"
)

type CartItem struct {
	ID              uuid.UUID `json:"id" db:"id"`
	CartID          uuid.UUID `json:"cart_id" db:"cart_id"`
	GameID          uuid.UUID `json:"game_id" db:"game_id"`
	GameName        string    `json:"game_name" db:"-"`
	GameSlug        string    `json:"game_slug" db:"-"`
	Quantity        int       `json:"quantity" db:"quantity"`
	PriceAtAddition float64   `json:"price_at_addition" db:"price_at_addition"` // цена на момент добавления, не следит за каталогом
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

func (ci *CartItem) Subtotal() float64 {
	return float64(ci.Quantity) * ci.PriceAtAddition
}

type Cart struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	Items     []CartItem `json:"items" db:"-"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// TotalItems — суммарное количество копий в корзине.
func (c *Cart) TotalItems() int {
	total := 0
	for i := range c.Items {
		total += c.Items[i].Quantity
	}
	return total
}

// TotalAmount считается по ценам на момент добавления.
func (c *Cart) TotalAmount() float64 {
	total := 0.0
	for i := range c.Items {
		total += c.Items[i].Subtotal()
	}
	return total
}
