package storage

import (
	"context"

	"github.com/shopspring/decimal"
)

// Storage defines the interface for persisting catalog and order data
type Storage interface {
	// Product operations
	CreateProduct(ctx context.Context, product *Product) error
	GetProduct(ctx context.Context, productID int64) (*Product, error)
	ListProducts(ctx context.Context) ([]*Product, error)
	UpdateProduct(ctx context.Context, product *Product) error
	DeleteProduct(ctx context.Context, productID int64) error
	CountProducts(ctx context.Context) (int, error)

	// Order operations
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, orderID int64) (*Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*Order, error)
	ListOrders(ctx context.Context) ([]*Order, error)
	UpdateOrder(ctx context.Context, order *Order) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
	DeleteOrder(ctx context.Context, orderID int64) error

	// Line item operations
	InsertLineItems(ctx context.Context, orderID int64, items []*LineItem) error
	ListLineItems(ctx context.Context, orderID int64) ([]*LineItemDetail, error)
	DeleteLineItemsByOrder(ctx context.Context, orderID int64) (deletedCount int, err error)

	// Database operations
	Ping(ctx context.Context) error
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Product is a catalog entry
type Product struct {
	ID        int64
	Name      string
	UnitPrice decimal.Decimal
}

// Order is the order header row. NumProducts and FinalPrice are
// denormalized aggregates over the order's line items.
type Order struct {
	ID          int64
	OrderNumber string
	Date        string // YYYY-MM-DD
	Status      string
	NumProducts int
	FinalPrice  decimal.Decimal
}

// LineItem is a row of order_products
type LineItem struct {
	ID         int64
	OrderID    int64
	ProductID  int64
	Qty        int
	TotalPrice decimal.Decimal
}

// LineItemDetail is a line item joined with its product
type LineItemDetail struct {
	LineItem
	ProductName string
	UnitPrice   decimal.Decimal
}
