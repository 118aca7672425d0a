package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dshills/ordermgr/internal/obs"
	"github.com/dshills/ordermgr/internal/storage"
)

// CreateOrderInput is a new order as submitted. Items is nil when the
// products field was absent and empty when it was an empty list.
type CreateOrderInput struct {
	OrderNumber string
	Date        string
	Items       []LineItemInput
}

// UpdateOrderInput replaces an order's number and full line-item set
type UpdateOrderInput struct {
	OrderNumber string
	Items       []LineItemInput
}

// OrderDetail is an order header with its line items
type OrderDetail struct {
	*storage.Order
	Items []*storage.LineItemDetail
}

// OrderService owns the order write path. Each create or update runs as a
// single transaction: all reads and writes go through the tx, and nothing
// is committed unless every validation step passed.
type OrderService struct {
	store   storage.Storage
	logger  *slog.Logger
	metrics *obs.Metrics
}

// NewOrderService creates an OrderService over store. logger and metrics
// may be nil.
func NewOrderService(store storage.Storage, logger *slog.Logger, metrics *obs.Metrics) *OrderService {
	if logger == nil {
		logger = obs.Discard()
	}
	return &OrderService{store: store, logger: logger, metrics: metrics}
}

// Create validates and persists a new Pending order and returns its id
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (id int64, err error) {
	defer func() { s.observe(ctx, "create", id, err) }()

	if err := requireFields(
		[]string{"order_number", "date", "products"},
		[]bool{in.OrderNumber != "", in.Date != "", in.Items != nil},
	); err != nil {
		return 0, err
	}
	date, err := normalizeDate(in.Date)
	if err != nil {
		return 0, err
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return 0, storageFailure("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	orderNumber, err := checkOrderNumber(ctx, tx, in.OrderNumber, 0)
	if err != nil {
		return 0, err
	}
	items, total, err := priceLineItems(ctx, tx, in.Items)
	if err != nil {
		return 0, err
	}

	order := &storage.Order{
		OrderNumber: orderNumber,
		Date:        date,
		Status:      string(StatusPending),
		NumProducts: len(items),
		FinalPrice:  total,
	}
	if err := tx.CreateOrder(ctx, order); err != nil {
		return 0, orderWriteError("create order", in.OrderNumber, err)
	}
	if err := tx.InsertLineItems(ctx, order.ID, items); err != nil {
		return 0, storageFailure("insert line items", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storageFailure("commit order", err)
	}

	return order.ID, nil
}

// Update replaces the order number and line items of a non-Completed order.
// Line items are deleted and re-inserted rather than diffed.
func (s *OrderService) Update(ctx context.Context, orderID int64, in UpdateOrderInput) (err error) {
	defer func() { s.observe(ctx, "update", orderID, err) }()

	if err := requireFields(
		[]string{"order_number", "products"},
		[]bool{in.OrderNumber != "", in.Items != nil},
	); err != nil {
		return err
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return storageFailure("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := tx.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return notFound(err, "Order not found")
	}
	if err != nil {
		return storageFailure("get order", err)
	}
	if !Status(current.Status).AllowsEdit() {
		return invalidState("Cannot edit completed orders")
	}

	orderNumber, err := checkOrderNumber(ctx, tx, in.OrderNumber, orderID)
	if err != nil {
		return err
	}
	items, total, err := priceLineItems(ctx, tx, in.Items)
	if err != nil {
		return err
	}

	current.OrderNumber = orderNumber
	current.NumProducts = len(items)
	current.FinalPrice = total
	if err := tx.UpdateOrder(ctx, current); err != nil {
		return orderWriteError("update order", in.OrderNumber, err)
	}
	if _, err := tx.DeleteLineItemsByOrder(ctx, orderID); err != nil {
		return storageFailure("delete line items", err)
	}
	if err := tx.InsertLineItems(ctx, orderID, items); err != nil {
		return storageFailure("insert line items", err)
	}
	if err := tx.Commit(); err != nil {
		return storageFailure("commit order", err)
	}

	return nil
}

// Delete removes an order; its line items cascade
func (s *OrderService) Delete(ctx context.Context, orderID int64) (err error) {
	defer func() { s.observe(ctx, "delete", orderID, err) }()

	if err := s.store.DeleteOrder(ctx, orderID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFound(err, "Order not found")
		}
		return storageFailure("delete order", err)
	}
	return nil
}

// SetStatus moves an order to any canonical status. It is deliberately not
// gated on the current status, so a Completed order can be reopened.
func (s *OrderService) SetStatus(ctx context.Context, orderID int64, status string) (err error) {
	defer func() { s.observe(ctx, "set_status", orderID, err) }()

	st, err := ParseStatus(status)
	if err != nil {
		return err
	}
	if err := s.store.UpdateOrderStatus(ctx, orderID, string(st)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFound(err, "Order not found")
		}
		return storageFailure("update order status", err)
	}
	return nil
}

// Get returns an order with its line items joined to product name and
// current unit price
func (s *OrderService) Get(ctx context.Context, orderID int64) (*OrderDetail, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound(err, "Order not found")
	}
	if err != nil {
		return nil, storageFailure("get order", err)
	}

	items, err := s.store.ListLineItems(ctx, orderID)
	if err != nil {
		return nil, storageFailure("list line items", err)
	}
	return &OrderDetail{Order: order, Items: items}, nil
}

// List returns all order headers, newest date first
func (s *OrderService) List(ctx context.Context) ([]*storage.Order, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, storageFailure("list orders", err)
	}
	return orders, nil
}

// checkOrderNumber trims raw and rejects it when empty or already used by an
// order other than selfID. The UNIQUE constraint still guards the race
// between this check and the insert.
func checkOrderNumber(ctx context.Context, tx storage.Tx, raw string, selfID int64) (string, error) {
	orderNumber := strings.TrimSpace(raw)
	if orderNumber == "" {
		return "", invalidInput("Order number cannot be empty")
	}

	existing, err := tx.GetOrderByNumber(ctx, orderNumber)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return orderNumber, nil
	case err != nil:
		return "", storageFailure("check order number", err)
	case existing.ID != selfID:
		return "", duplicateOrderNumber(nil, raw)
	}
	return orderNumber, nil
}

// priceLineItems validates items, then looks each product up inside tx and
// recomputes total_price from the catalog. Client totals never survive.
func priceLineItems(ctx context.Context, tx storage.Tx, in []LineItemInput) ([]*storage.LineItem, decimal.Decimal, error) {
	if err := validateLineItems(in); err != nil {
		return nil, decimal.Zero, err
	}

	items := make([]*storage.LineItem, len(in))
	total := decimal.Zero
	for i, item := range in {
		product, err := tx.GetProduct(ctx, item.ProductID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, decimal.Zero, invalidInput("Product with id %d does not exist", item.ProductID)
		}
		if err != nil {
			return nil, decimal.Zero, storageFailure("get product", err)
		}

		qty := int(item.Qty)
		lineTotal := product.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
		items[i] = &storage.LineItem{ProductID: item.ProductID, Qty: qty, TotalPrice: lineTotal}
		total = total.Add(lineTotal)
	}
	return items, total, nil
}

// orderWriteError classifies a failed header write; a unique violation here
// means a concurrent writer took the order number after our check.
func orderWriteError(op, rawOrderNumber string, err error) error {
	if errors.Is(err, storage.ErrAlreadyExists) {
		return duplicateOrderNumber(err, rawOrderNumber)
	}
	return storageFailure(op, err)
}

// duplicateOrderNumber echoes the order number exactly as submitted, before
// trimming, and without escaping.
func duplicateOrderNumber(err error, raw string) error {
	return conflict(err, "Order number \"%s\" already exists", raw)
}

func (s *OrderService) observe(ctx context.Context, op string, orderID int64, err error) {
	if err == nil {
		s.metrics.ObserveOrderWrite(op, "ok")
		s.logger.InfoContext(ctx, "order_"+op, "order_id", orderID)
		return
	}

	kind := KindOf(err)
	s.metrics.ObserveOrderWrite(op, kind.String())
	if kind == KindStorageFailure {
		s.logger.ErrorContext(ctx, "order_write_failed", "op", op, "order_id", orderID, "error", err)
		return
	}
	s.logger.DebugContext(ctx, "order_write_rejected", "op", op, "order_id", orderID,
		"kind", kind.String(), "error", err)
}
