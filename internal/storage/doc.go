// Package storage provides SQLite-based persistence for the product catalog
// and for orders with their line items.
//
// # Database Schema
//
// Tables:
//   - products: catalog entries (name, unit price)
//   - orders: order headers with the denormalized num_products / final_price
//   - order_products: line items; order_id cascades on delete, product_id restricts
//   - schema_version: applied migrations (semantic versions)
//
// Money columns are stored as fixed two-decimal TEXT and scanned into
// decimal.Decimal, so no value ever round-trips through float64.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage("orders.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	p := &storage.Product{Name: "Widget", UnitPrice: decimal.RequireFromString("10.00")}
//	if err := store.CreateProduct(ctx, p); err != nil {
//	    return err
//	}
//
// # Transactions
//
// Use transactions for atomic operations:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback() }()
//
//	if err := tx.CreateOrder(ctx, order); err != nil {
//	    return err
//	}
//	if err := tx.InsertLineItems(ctx, order.ID, items); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// Every Tx method runs on the transaction's connection. The pool holds a
// single connection, so calling the parent Storage from inside an open
// transaction blocks until that transaction ends.
//
// # Errors
//
// Lookups return ErrNotFound. Constraint violations are classified from the
// driver's extended result codes: unique violations wrap ErrAlreadyExists and
// foreign key violations wrap ErrReferenced.
//
// # Drivers
//
// The default build uses modernc.org/sqlite (pure Go). Building with
// -tags sqlite_cgo switches to github.com/mattn/go-sqlite3.
package storage
