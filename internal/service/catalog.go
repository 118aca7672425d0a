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

// ProductInput is the writable part of a product. Nil fields were absent
// from the request.
type ProductInput struct {
	Name      *string
	UnitPrice *decimal.Decimal
}

// CatalogService manages products
type CatalogService struct {
	store  storage.Storage
	logger *slog.Logger
}

// NewCatalogService creates a CatalogService over store. A nil logger
// discards output.
func NewCatalogService(store storage.Storage, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = obs.Discard()
	}
	return &CatalogService{store: store, logger: logger}
}

// validateProduct returns the trimmed name and the price rounded to cents
func validateProduct(in ProductInput) (string, decimal.Decimal, error) {
	if err := requireFields(
		[]string{"name", "unit_price"},
		[]bool{in.Name != nil && *in.Name != "", in.UnitPrice != nil},
	); err != nil {
		return "", decimal.Zero, err
	}
	name := strings.TrimSpace(*in.Name)
	if name == "" {
		return "", decimal.Zero, invalidInput("Product name cannot be empty")
	}
	if in.UnitPrice.IsNegative() {
		return "", decimal.Zero, invalidInput("Unit price must be a non-negative number")
	}
	return name, in.UnitPrice.Round(2), nil
}

// Create adds a product to the catalog
func (c *CatalogService) Create(ctx context.Context, in ProductInput) (*storage.Product, error) {
	name, price, err := validateProduct(in)
	if err != nil {
		return nil, err
	}

	product := &storage.Product{Name: name, UnitPrice: price}
	if err := c.store.CreateProduct(ctx, product); err != nil {
		return nil, storageFailure("create product", err)
	}

	c.logger.InfoContext(ctx, "product_created", "product_id", product.ID, "unit_price", price.StringFixed(2))
	return product, nil
}

// Update replaces a product's name and unit price. Existing line items keep
// the totals computed when they were written.
func (c *CatalogService) Update(ctx context.Context, productID int64, in ProductInput) (*storage.Product, error) {
	name, price, err := validateProduct(in)
	if err != nil {
		return nil, err
	}

	product := &storage.Product{ID: productID, Name: name, UnitPrice: price}
	if err := c.store.UpdateProduct(ctx, product); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFound(err, "Product not found")
		}
		return nil, storageFailure("update product", err)
	}

	c.logger.InfoContext(ctx, "product_updated", "product_id", productID)
	return product, nil
}

// Delete removes a product. The order_products foreign key refuses the
// delete while any line item references the product.
func (c *CatalogService) Delete(ctx context.Context, productID int64) error {
	err := c.store.DeleteProduct(ctx, productID)
	switch {
	case err == nil:
		c.logger.InfoContext(ctx, "product_deleted", "product_id", productID)
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return notFound(err, "Product not found")
	case errors.Is(err, storage.ErrReferenced):
		return conflict(err, "Cannot delete product because it is used in orders.")
	default:
		return storageFailure("delete product", err)
	}
}

// Get returns one product
func (c *CatalogService) Get(ctx context.Context, productID int64) (*storage.Product, error) {
	product, err := c.store.GetProduct(ctx, productID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound(err, "Product not found")
	}
	if err != nil {
		return nil, storageFailure("get product", err)
	}
	return product, nil
}

// List returns the whole catalog ordered by id
func (c *CatalogService) List(ctx context.Context) ([]*storage.Product, error) {
	products, err := c.store.ListProducts(ctx)
	if err != nil {
		return nil, storageFailure("list products", err)
	}
	return products, nil
}

// SampleProducts is the starter catalog written by Seed
var SampleProducts = []struct {
	Name      string
	UnitPrice string
}{
	{"Laptop ThinkPad X1", "1200.00"},
	{"Monitor 27-inch 4K", "350.50"},
	{"Mechanical Keyboard", "85.00"},
}

// Seed inserts SampleProducts when the catalog is empty and reports how many
// products were written.
func (c *CatalogService) Seed(ctx context.Context) (int, error) {
	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return 0, storageFailure("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	count, err := tx.CountProducts(ctx)
	if err != nil {
		return 0, storageFailure("count products", err)
	}
	if count > 0 {
		c.logger.InfoContext(ctx, "seed_skipped", "existing_products", count)
		return 0, nil
	}

	for _, sp := range SampleProducts {
		p := &storage.Product{Name: sp.Name, UnitPrice: decimal.RequireFromString(sp.UnitPrice)}
		if err := tx.CreateProduct(ctx, p); err != nil {
			return 0, storageFailure("seed product", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, storageFailure("commit seed", err)
	}

	c.logger.InfoContext(ctx, "seed_complete", "products", len(SampleProducts))
	return len(SampleProducts), nil
}
