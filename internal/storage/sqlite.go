package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a write violates a unique constraint
	ErrAlreadyExists = errors.New("already exists")
	// ErrReferenced is returned when a write violates a foreign key, e.g.
	// deleting a product that order line items still reference
	ErrReferenced = errors.New("referenced by other rows")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// A single connection serializes writers and keeps per-connection
	// pragmas (and in-memory databases) alive for the pool's lifetime.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Cascade and restrict on order_products depend on this
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// OpenDB opens dbPath with the connection settings the store relies on but
// does not touch the schema. Used by migration tooling.
func OpenDB(dbPath string) (*sql.DB, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// DB exposes the underlying pool for migration tooling
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// wrapWriteError annotates err and, for constraint violations, also wraps the
// matching storage sentinel so callers can use errors.Is.
func wrapWriteError(op string, err error) error {
	if sentinel := classifyConstraint(err); sentinel != nil {
		return fmt.Errorf("failed to %s: %w: %w", op, sentinel, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// requireAffected converts a zero rows-affected result into ErrNotFound
func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Product operations

func (s *SQLiteStorage) createProductWithQuerier(ctx context.Context, q querier, product *Product) error {
	query := `INSERT INTO products (name, unit_price) VALUES (?, ?)`
	result, err := q.ExecContext(ctx, query, product.Name, product.UnitPrice.StringFixed(2))
	if err != nil {
		return wrapWriteError("create product", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	product.ID = id
	return nil
}

func (s *SQLiteStorage) CreateProduct(ctx context.Context, product *Product) error {
	return s.createProductWithQuerier(ctx, s.querier(), product)
}

func (s *SQLiteStorage) getProductWithQuerier(ctx context.Context, q querier, productID int64) (*Product, error) {
	query := `SELECT id, name, unit_price FROM products WHERE id = ?`
	var product Product
	err := q.QueryRowContext(ctx, query, productID).Scan(&product.ID, &product.Name, &product.UnitPrice)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *SQLiteStorage) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	return s.getProductWithQuerier(ctx, s.querier(), productID)
}

func (s *SQLiteStorage) listProductsWithQuerier(ctx context.Context, q querier) ([]*Product, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, unit_price FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := make([]*Product, 0)
	for rows.Next() {
		var product Product
		if err := rows.Scan(&product.ID, &product.Name, &product.UnitPrice); err != nil {
			return nil, err
		}
		products = append(products, &product)
	}
	return products, rows.Err()
}

func (s *SQLiteStorage) ListProducts(ctx context.Context) ([]*Product, error) {
	return s.listProductsWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) updateProductWithQuerier(ctx context.Context, q querier, product *Product) error {
	query := `UPDATE products SET name = ?, unit_price = ? WHERE id = ?`
	result, err := q.ExecContext(ctx, query, product.Name, product.UnitPrice.StringFixed(2), product.ID)
	if err != nil {
		return wrapWriteError("update product", err)
	}
	return requireAffected(result)
}

func (s *SQLiteStorage) UpdateProduct(ctx context.Context, product *Product) error {
	return s.updateProductWithQuerier(ctx, s.querier(), product)
}

func (s *SQLiteStorage) deleteProductWithQuerier(ctx context.Context, q querier, productID int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, productID)
	if err != nil {
		return wrapWriteError("delete product", err)
	}
	return requireAffected(result)
}

func (s *SQLiteStorage) DeleteProduct(ctx context.Context, productID int64) error {
	return s.deleteProductWithQuerier(ctx, s.querier(), productID)
}

func (s *SQLiteStorage) countProductsWithQuerier(ctx context.Context, q querier) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	return n, err
}

func (s *SQLiteStorage) CountProducts(ctx context.Context) (int, error) {
	return s.countProductsWithQuerier(ctx, s.querier())
}

// Order operations

const orderColumns = `id, order_number, date, status, num_products, final_price`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var order Order
	err := row.Scan(&order.ID, &order.OrderNumber, &order.Date, &order.Status,
		&order.NumProducts, &order.FinalPrice)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *SQLiteStorage) createOrderWithQuerier(ctx context.Context, q querier, order *Order) error {
	query := `
		INSERT INTO orders (order_number, date, status, num_products, final_price)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query,
		order.OrderNumber, order.Date, order.Status, order.NumProducts, order.FinalPrice.StringFixed(2))
	if err != nil {
		return wrapWriteError("create order", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	order.ID = id
	return nil
}

func (s *SQLiteStorage) CreateOrder(ctx context.Context, order *Order) error {
	return s.createOrderWithQuerier(ctx, s.querier(), order)
}

func (s *SQLiteStorage) getOrderWithQuerier(ctx context.Context, q querier, orderID int64) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`
	order, err := scanOrder(q.QueryRowContext(ctx, query, orderID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return order, err
}

func (s *SQLiteStorage) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	return s.getOrderWithQuerier(ctx, s.querier(), orderID)
}

func (s *SQLiteStorage) getOrderByNumberWithQuerier(ctx context.Context, q querier, orderNumber string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = ?`
	order, err := scanOrder(q.QueryRowContext(ctx, query, orderNumber))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return order, err
}

func (s *SQLiteStorage) GetOrderByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	return s.getOrderByNumberWithQuerier(ctx, s.querier(), orderNumber)
}

func (s *SQLiteStorage) listOrdersWithQuerier(ctx context.Context, q querier) ([]*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY date DESC, id DESC`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := make([]*Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *SQLiteStorage) ListOrders(ctx context.Context) ([]*Order, error) {
	return s.listOrdersWithQuerier(ctx, s.querier())
}

// updateOrderWithQuerier rewrites the editable header columns. Status is
// changed only through UpdateOrderStatus.
func (s *SQLiteStorage) updateOrderWithQuerier(ctx context.Context, q querier, order *Order) error {
	query := `
		UPDATE orders
		SET order_number = ?, num_products = ?, final_price = ?
		WHERE id = ?
	`
	result, err := q.ExecContext(ctx, query,
		order.OrderNumber, order.NumProducts, order.FinalPrice.StringFixed(2), order.ID)
	if err != nil {
		return wrapWriteError("update order", err)
	}
	return requireAffected(result)
}

func (s *SQLiteStorage) UpdateOrder(ctx context.Context, order *Order) error {
	return s.updateOrderWithQuerier(ctx, s.querier(), order)
}

func (s *SQLiteStorage) updateOrderStatusWithQuerier(ctx context.Context, q querier, orderID int64, status string) error {
	result, err := q.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, status, orderID)
	if err != nil {
		return wrapWriteError("update order status", err)
	}
	return requireAffected(result)
}

func (s *SQLiteStorage) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	return s.updateOrderStatusWithQuerier(ctx, s.querier(), orderID, status)
}

func (s *SQLiteStorage) deleteOrderWithQuerier(ctx context.Context, q querier, orderID int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, orderID)
	if err != nil {
		return wrapWriteError("delete order", err)
	}
	return requireAffected(result)
}

func (s *SQLiteStorage) DeleteOrder(ctx context.Context, orderID int64) error {
	return s.deleteOrderWithQuerier(ctx, s.querier(), orderID)
}

// Line item operations

// insertLineItemsWithQuerier writes all items with one multi-row INSERT
func (s *SQLiteStorage) insertLineItemsWithQuerier(ctx context.Context, q querier, orderID int64, items []*LineItem) error {
	if len(items) == 0 {
		return nil
	}

	placeholders := make([]string, len(items))
	args := make([]interface{}, 0, len(items)*4)
	for i, item := range items {
		placeholders[i] = "(?, ?, ?, ?)"
		args = append(args, orderID, item.ProductID, item.Qty, item.TotalPrice.StringFixed(2))
	}

	query := `INSERT INTO order_products (order_id, product_id, qty, total_price) VALUES ` +
		strings.Join(placeholders, ", ") + ` RETURNING id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return wrapWriteError("insert line items", err)
	}
	defer func() { _ = rows.Close() }()

	// RETURNING yields ids in insertion order
	i := 0
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		if i < len(items) {
			items[i].ID = id
			items[i].OrderID = orderID
		}
		i++
	}
	if err := rows.Err(); err != nil {
		return wrapWriteError("insert line items", err)
	}
	return nil
}

func (s *SQLiteStorage) InsertLineItems(ctx context.Context, orderID int64, items []*LineItem) error {
	return s.insertLineItemsWithQuerier(ctx, s.querier(), orderID, items)
}

func (s *SQLiteStorage) listLineItemsWithQuerier(ctx context.Context, q querier, orderID int64) ([]*LineItemDetail, error) {
	query := `
		SELECT op.id, op.order_id, op.product_id, op.qty, op.total_price, p.name, p.unit_price
		FROM order_products op
		JOIN products p ON op.product_id = p.id
		WHERE op.order_id = ?
		ORDER BY op.id
	`
	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := make([]*LineItemDetail, 0)
	for rows.Next() {
		var item LineItemDetail
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Qty, &item.TotalPrice,
			&item.ProductName, &item.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (s *SQLiteStorage) ListLineItems(ctx context.Context, orderID int64) ([]*LineItemDetail, error) {
	return s.listLineItemsWithQuerier(ctx, s.querier(), orderID)
}

func (s *SQLiteStorage) deleteLineItemsByOrderWithQuerier(ctx context.Context, q querier, orderID int64) (int, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM order_products WHERE order_id = ?`, orderID)
	if err != nil {
		return 0, wrapWriteError("delete line items", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStorage) DeleteLineItemsByOrder(ctx context.Context, orderID int64) (int, error) {
	return s.deleteLineItemsByOrderWithQuerier(ctx, s.querier(), orderID)
}

// Transaction implementations route every call through the tx querier so a
// transaction never waits on a second pool connection.

func (t *sqliteTx) CreateProduct(ctx context.Context, product *Product) error {
	return t.storage.createProductWithQuerier(ctx, t.querier(), product)
}

func (t *sqliteTx) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	return t.storage.getProductWithQuerier(ctx, t.querier(), productID)
}

func (t *sqliteTx) ListProducts(ctx context.Context) ([]*Product, error) {
	return t.storage.listProductsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) UpdateProduct(ctx context.Context, product *Product) error {
	return t.storage.updateProductWithQuerier(ctx, t.querier(), product)
}

func (t *sqliteTx) DeleteProduct(ctx context.Context, productID int64) error {
	return t.storage.deleteProductWithQuerier(ctx, t.querier(), productID)
}

func (t *sqliteTx) CountProducts(ctx context.Context) (int, error) {
	return t.storage.countProductsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) CreateOrder(ctx context.Context, order *Order) error {
	return t.storage.createOrderWithQuerier(ctx, t.querier(), order)
}

func (t *sqliteTx) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	return t.storage.getOrderWithQuerier(ctx, t.querier(), orderID)
}

func (t *sqliteTx) GetOrderByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	return t.storage.getOrderByNumberWithQuerier(ctx, t.querier(), orderNumber)
}

func (t *sqliteTx) ListOrders(ctx context.Context) ([]*Order, error) {
	return t.storage.listOrdersWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) UpdateOrder(ctx context.Context, order *Order) error {
	return t.storage.updateOrderWithQuerier(ctx, t.querier(), order)
}

func (t *sqliteTx) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	return t.storage.updateOrderStatusWithQuerier(ctx, t.querier(), orderID, status)
}

func (t *sqliteTx) DeleteOrder(ctx context.Context, orderID int64) error {
	return t.storage.deleteOrderWithQuerier(ctx, t.querier(), orderID)
}

func (t *sqliteTx) InsertLineItems(ctx context.Context, orderID int64, items []*LineItem) error {
	return t.storage.insertLineItemsWithQuerier(ctx, t.querier(), orderID, items)
}

func (t *sqliteTx) ListLineItems(ctx context.Context, orderID int64) ([]*LineItemDetail, error) {
	return t.storage.listLineItemsWithQuerier(ctx, t.querier(), orderID)
}

func (t *sqliteTx) DeleteLineItemsByOrder(ctx context.Context, orderID int64) (int, error) {
	return t.storage.deleteLineItemsByOrderWithQuerier(ctx, t.querier(), orderID)
}

func (t *sqliteTx) Ping(ctx context.Context) error {
	return nil
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
