package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusCompleted  OrderStatus = "COMPLETED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

func (os OrderStatus) String() string {
	return string(os)
}

// ShippingAddress хранится в заказе как JSONB-снимок, а не ссылка:
// заказ должен пережить любые изменения профиля пользователя.
type ShippingAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

type OrderItem struct {
	ID              uuid.UUID `json:"id" db:"id"`
	OrderID         uuid.UUID `json:"order_id" db:"order_id"`
	GameID          uuid.UUID `json:"game_id" db:"game_id"`
	GameName        string    `json:"game_name" db:"-"`
	GameSlug        string    `json:"game_slug" db:"-"`
	Quantity        int       `json:"quantity" db:"quantity"`
	PriceAtPurchase float64   `json:"price_at_purchase" db:"price_at_purchase"` // исторический снимок, после создания не меняется
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

func (oi *OrderItem) Subtotal() float64 {
	return float64(oi.Quantity) * oi.PriceAtPurchase
}

type Order struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	UserID          uuid.UUID       `json:"user_id" db:"user_id"`
	OrderNumber     string          `json:"order_number" db:"order_number"`
	Status          OrderStatus     `json:"status" db:"status"`
	TotalAmount     float64         `json:"total_amount" db:"total_amount"`
	ShippingAddress ShippingAddress `json:"shipping_address" db:"shipping_address"`
	Items           []OrderItem     `json:"items" db:"-"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// Page — параметры страницы для списков заказов.
type Page struct {
	Number int
	Size   int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (p Page) limit() int {
	if p.Size <= 0 {
		return defaultPageSize
	}
	if p.Size > maxPageSize {
		return maxPageSize
	}
	return p.Size
}

func (p Page) offset() int {
	number := p.Number
	if number < 1 {
		number = 1
	}
	return (number - 1) * p.limit()
}
