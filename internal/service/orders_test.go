package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dshills/ordermgr/internal/obs"
	"github.com/dshills/ordermgr/internal/storage"
)

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func item(productID int64, qty float64, total string) LineItemInput {
	return LineItemInput{ProductID: productID, Qty: qty, TotalPrice: price(total)}
}

type OrderServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *storage.SQLiteStorage
	catalog *CatalogService
	orders  *OrderService
	metrics *obs.Metrics

	widget *storage.Product
	gadget *storage.Product
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}

func (s *OrderServiceSuite) SetupTest() {
	s.ctx = context.Background()

	store, err := storage.NewSQLiteStorage(":memory:")
	s.Require().NoError(err)
	s.store = store
	s.metrics = obs.NewMetrics(prometheus.NewRegistry())
	s.catalog = NewCatalogService(store, nil)
	s.orders = NewOrderService(store, nil, s.metrics)

	s.widget = s.newProduct("Widget", "10.00")
	s.gadget = s.newProduct("Gadget", "2.50")
}

func (s *OrderServiceSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *OrderServiceSuite) newProduct(name, unitPrice string) *storage.Product {
	p, err := s.catalog.Create(s.ctx, ProductInput{Name: &name, UnitPrice: price(unitPrice)})
	s.Require().NoError(err)
	return p
}

func (s *OrderServiceSuite) createOrder(number string, items ...LineItemInput) int64 {
	id, err := s.orders.Create(s.ctx, CreateOrderInput{OrderNumber: number, Date: "2024-05-01", Items: items})
	s.Require().NoError(err)
	return id
}

func (s *OrderServiceSuite) orderCount() int {
	orders, err := s.orders.List(s.ctx)
	s.Require().NoError(err)
	return len(orders)
}

// hookedStore hands out transactions wrapped by wrap, so a test can replace
// single Tx methods while the rest still reach SQLite.
type hookedStore struct {
	storage.Storage
	wrap func(storage.Tx) storage.Tx
}

func (h hookedStore) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := h.Storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return h.wrap(tx), nil
}

// blindNumberTx never finds an order by number, leaving the UNIQUE
// constraint as the only duplicate check.
type blindNumberTx struct{ storage.Tx }

func (blindNumberTx) GetOrderByNumber(context.Context, string) (*storage.Order, error) {
	return nil, storage.ErrNotFound
}

var errDiskFull = errors.New("disk full")

type failingItemsTx struct{ storage.Tx }

func (failingItemsTx) InsertLineItems(context.Context, int64, []*storage.LineItem) error {
	return errDiskFull
}

func (s *OrderServiceSuite) ordersWith(wrap func(storage.Tx) storage.Tx) *OrderService {
	return NewOrderService(hookedStore{Storage: s.store, wrap: wrap}, nil, s.metrics)
}

func blindNumbers(tx storage.Tx) storage.Tx { return blindNumberTx{tx} }
func failingItems(tx storage.Tx) storage.Tx { return failingItemsTx{tx} }

func (s *OrderServiceSuite) TestCreate_RecomputesPrices() {
	id := s.createOrder("A-1", item(s.widget.ID, 3, "999"))

	detail, err := s.orders.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("A-1", detail.OrderNumber)
	s.Equal("2024-05-01", detail.Date)
	s.Equal(string(StatusPending), detail.Status)
	s.Equal(1, detail.NumProducts)
	s.Equal("30.00", detail.FinalPrice.StringFixed(2))

	s.Require().Len(detail.Items, 1)
	s.Equal("30.00", detail.Items[0].TotalPrice.StringFixed(2))
	s.Equal("Widget", detail.Items[0].ProductName)
	s.Equal(3, detail.Items[0].Qty)
}

func (s *OrderServiceSuite) TestCreate_SumsLineItems() {
	id := s.createOrder("A-2",
		item(s.widget.ID, 2, "0"),
		item(s.gadget.ID, 4, "0"),
		item(s.widget.ID, 1, "0"),
	)

	detail, err := s.orders.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(3, detail.NumProducts)
	s.Equal("40.00", detail.FinalPrice.StringFixed(2))

	sum := decimal.Zero
	for _, li := range detail.Items {
		sum = sum.Add(li.TotalPrice)
	}
	s.True(sum.Equal(detail.FinalPrice))
}

func (s *OrderServiceSuite) TestCreate_TrimsOrderNumberAndNormalizesDate() {
	id, err := s.orders.Create(s.ctx, CreateOrderInput{
		OrderNumber: "  A-3  ",
		Date:        "2024-05-01T15:04:05Z",
		Items:       []LineItemInput{item(s.widget.ID, 1, "10")},
	})
	s.Require().NoError(err)

	detail, err := s.orders.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("A-3", detail.OrderNumber)
	s.Equal("2024-05-01", detail.Date)
}

func (s *OrderServiceSuite) TestCreate_MissingFields() {
	_, err := s.orders.Create(s.ctx, CreateOrderInput{})
	s.True(IsKind(err, KindInvalidInput))
	s.EqualError(err, "Missing required fields: order_number, date, products")

	_, err = s.orders.Create(s.ctx, CreateOrderInput{OrderNumber: "A-4", Items: []LineItemInput{}})
	s.EqualError(err, "Missing required fields: date")
	s.Equal(0, s.orderCount())
}

func (s *OrderServiceSuite) TestCreate_RejectsInvalidInput() {
	cases := []struct {
		name  string
		input CreateOrderInput
		msg   string
	}{
		{
			name:  "empty products",
			input: CreateOrderInput{OrderNumber: "B-1", Date: "2024-05-01", Items: []LineItemInput{}},
			msg:   "Order must have at least one product",
		},
		{
			name:  "blank order number",
			input: CreateOrderInput{OrderNumber: "   ", Date: "2024-05-01", Items: []LineItemInput{item(1, 1, "1")}},
			msg:   "Order number cannot be empty",
		},
		{
			name:  "bad date",
			input: CreateOrderInput{OrderNumber: "B-2", Date: "05/01/2024", Items: []LineItemInput{item(1, 1, "1")}},
			msg:   `Invalid date "05/01/2024": expected YYYY-MM-DD`,
		},
		{
			name:  "missing product id",
			input: CreateOrderInput{OrderNumber: "B-3", Date: "2024-05-01", Items: []LineItemInput{item(0, 1, "1")}},
			msg:   "Product at index 0: missing product_id",
		},
		{
			name:  "zero quantity",
			input: CreateOrderInput{OrderNumber: "B-4", Date: "2024-05-01", Items: []LineItemInput{item(1, 1, "1"), item(1, 0, "1")}},
			msg:   "Product at index 1: quantity must be at least 1",
		},
		{
			name:  "fractional quantity",
			input: CreateOrderInput{OrderNumber: "B-5", Date: "2024-05-01", Items: []LineItemInput{item(1, 1.5, "1")}},
			msg:   "Product at index 0: quantity must be a whole number",
		},
		{
			name:  "missing total",
			input: CreateOrderInput{OrderNumber: "B-6", Date: "2024-05-01", Items: []LineItemInput{{ProductID: 1, Qty: 1}}},
			msg:   "Product at index 0: invalid total_price",
		},
		{
			name:  "negative total",
			input: CreateOrderInput{OrderNumber: "B-7", Date: "2024-05-01", Items: []LineItemInput{item(1, 1, "-1")}},
			msg:   "Product at index 0: invalid total_price",
		},
		{
			name:  "unknown product",
			input: CreateOrderInput{OrderNumber: "B-8", Date: "2024-05-01", Items: []LineItemInput{item(9999, 1, "1")}},
			msg:   "Product with id 9999 does not exist",
		},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.orders.Create(s.ctx, tc.input)
			s.True(IsKind(err, KindInvalidInput), "kind = %v", KindOf(err))
			s.EqualError(err, tc.msg)
		})
	}
	s.Equal(0, s.orderCount())
}

func (s *OrderServiceSuite) TestCreate_UnknownProductRollsBack() {
	_, err := s.orders.Create(s.ctx, CreateOrderInput{
		OrderNumber: "C-1",
		Date:        "2024-05-01",
		Items:       []LineItemInput{item(s.widget.ID, 1, "10"), item(424242, 1, "1")},
	})
	s.True(IsKind(err, KindInvalidInput))

	_, err = s.store.GetOrderByNumber(s.ctx, "C-1")
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *OrderServiceSuite) TestCreate_DuplicateOrderNumber() {
	s.createOrder("D-1", item(s.widget.ID, 1, "10"))

	_, err := s.orders.Create(s.ctx, CreateOrderInput{
		OrderNumber: "D-1",
		Date:        "2024-05-02",
		Items:       []LineItemInput{item(s.gadget.ID, 1, "2.5")},
	})
	s.True(IsKind(err, KindConflict))
	s.EqualError(err, `Order number "D-1" already exists`)
	s.Equal(1, s.orderCount())
}

func (s *OrderServiceSuite) TestCreate_ConcurrentDuplicate() {
	const writers = 2
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.orders.Create(s.ctx, CreateOrderInput{
				OrderNumber: "RACE-1",
				Date:        "2024-05-01",
				Items:       []LineItemInput{item(s.widget.ID, 1, "10")},
			})
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case IsKind(err, KindConflict):
			conflicts++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, ok)
	s.Equal(1, conflicts)
	s.Equal(1, s.orderCount())
}

func (s *OrderServiceSuite) TestCreate_DuplicateEchoesSubmittedNumber() {
	s.createOrder("D-9", item(s.widget.ID, 1, "10"))

	_, err := s.orders.Create(s.ctx, CreateOrderInput{
		OrderNumber: " D-9 ",
		Date:        "2024-05-02",
		Items:       []LineItemInput{item(s.widget.ID, 1, "10")},
	})
	s.True(IsKind(err, KindConflict))
	s.EqualError(err, `Order number " D-9 " already exists`)
}

func (s *OrderServiceSuite) TestCreate_UniqueConstraintIsConflict() {
	s.createOrder("U-1", item(s.widget.ID, 1, "10"))

	_, err := s.ordersWith(blindNumbers).Create(s.ctx, CreateOrderInput{
		OrderNumber: "U-1",
		Date:        "2024-05-02",
		Items:       []LineItemInput{item(s.gadget.ID, 2, "5")},
	})
	s.Require().Error(err)
	s.True(IsKind(err, KindConflict), "got %v", err)
	s.EqualError(err, `Order number "U-1" already exists`)
	s.ErrorIs(err, storage.ErrAlreadyExists)
	s.Equal(1, s.orderCount())
}

func (s *OrderServiceSuite) TestCreate_LineItemFailureRollsBack() {
	_, err := s.ordersWith(failingItems).Create(s.ctx, CreateOrderInput{
		OrderNumber: "L-1",
		Date:        "2024-05-02",
		Items:       []LineItemInput{item(s.widget.ID, 1, "10")},
	})
	s.Require().Error(err)
	s.Equal(KindStorageFailure, KindOf(err))
	s.ErrorIs(err, errDiskFull)

	_, err = s.store.GetOrderByNumber(s.ctx, "L-1")
	s.ErrorIs(err, storage.ErrNotFound)
	s.Equal(0, s.orderCount())
}

func (s *OrderServiceSuite) TestUpdate_UniqueConstraintIsConflict() {
	s.createOrder("U-2", item(s.widget.ID, 1, "10"))
	id := s.createOrder("U-3", item(s.widget.ID, 1, "10"))

	err := s.ordersWith(blindNumbers).Update(s.ctx, id, UpdateOrderInput{
		OrderNumber: "U-2",
		Items:       []LineItemInput{item(s.gadget.ID, 4, "10")},
	})
	s.Require().Error(err)
	s.True(IsKind(err, KindConflict), "got %v", err)
	s.EqualError(err, `Order number "U-2" already exists`)

	detail, err := s.orders.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("U-3", detail.OrderNumber)
	s.Equal("10.00", detail.FinalPrice.StringFixed(2))
}

func (s *OrderServiceSuite) TestUpdate_LineItemFailureRollsBack() {
	id := s.createOrder("L-2", item(s.widget.ID, 2, "20"))

	err := s.ordersWith(failingItems).Update(s.ctx, id, UpdateOrderInput{
		OrderNumber: "L-2b",
		Items:       []LineItemInput{item(s.gadget.ID, 1, "2.5")},
	})
	s.Require().Error(err)
	s.Equal(KindStorageFailure, KindOf(err))

	detail, err := s.orders.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("L-2", detail.OrderNumber)
	s.Require().Len(detail.Items, 1)
	s.Equal(s.widget.ID, detail.Items[0].ProductID)
	s.Equal(2, detail.Items[0].Qty)
}

func (s *OrderServiceSuite) TestUpdate_ReplacesLineItems() {
	id := s.createOrder("E-1", item(s.widget.ID, 1, "10"), item(s.gadget.ID, 2, "5"))

	err := s.orders.Update(s.ctx, id, UpdateOrderInput{
		OrderNumber: "E-1b",
		Items:       []LineItemInput{item(s.gadget.ID, 3, "123")},
	})
	s.Require().NoError(err)

	detail, err := s.orders.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("E-1b", detail.OrderNumber)
	s.Equal("2024-05-01", detail.Date)
	s.Equal(1, detail.NumProducts)
	s.Equal("7.50", detail.FinalPrice.StringFixed(2))
	s.Require().Len(detail.Items, 1)
	s.Equal(s.gadget.ID, detail.Items[0].ProductID)
}

func (s *OrderServiceSuite) TestUpdate_KeepsOwnOrderNumber() {
	id := s.createOrder("E-2", item(s.widget.ID, 1, "10"))

	err := s.orders.Update(s.ctx, id, UpdateOrderInput{
		OrderNumber: "E-2",
		Items:       []LineItemInput{item(s.widget.ID, 2, "20")},
	})
	s.NoError(err)
}

func (s *OrderServiceSuite) TestUpdate_DuplicateOrderNumber() {
	s.createOrder("E-3", item(s.widget.ID, 1, "10"))
	id := s.createOrder("E-4", item(s.widget.ID, 1, "10"))

	err := s.orders.Update(s.ctx, id, UpdateOrderInput{
		OrderNumber: "E-3",
		Items:       []LineItemInput{item(s.widget.ID, 5, "50")},
	})
	s.True(IsKind(err, KindConflict))

	detail, err := s.orders.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("E-4", detail.OrderNumber)
	s.Equal("10.00", detail.FinalPrice.StringFixed(2))
}

func (s *OrderServiceSuite) TestUpdate_CompletedOrderIsLocked() {
	id := s.createOrder("F-1", item(s.widget.ID, 1, "10"))
	s.Require().NoError(s.orders.SetStatus(s.ctx, id, "Completed"))

	err := s.orders.Update(s.ctx, id, UpdateOrderInput{
		OrderNumber: "F-1-changed",
		Items:       []LineItemInput{item(s.gadget.ID, 1, "2.5")},
	})
	s.True(IsKind(err, KindInvalidState))
	s.EqualError(err, "Cannot edit completed orders")

	detail, err := s.orders.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("F-1", detail.OrderNumber)
	s.Require().Len(detail.Items, 1)
	s.Equal(s.widget.ID, detail.Items[0].ProductID)
}

func (s *OrderServiceSuite) TestUpdate_InProgressIsEditable() {
	id := s.createOrder("F-2", item(s.widget.ID, 1, "10"))
	s.Require().NoError(s.orders.SetStatus(s.ctx, id, "In Progress"))

	err := s.orders.Update(s.ctx, id, UpdateOrderInput{
		OrderNumber: "F-2",
		Items:       []LineItemInput{item(s.widget.ID, 2, "0")},
	})
	s.NoError(err)
}

func (s *OrderServiceSuite) TestUpdate_NotFound() {
	err := s.orders.Update(s.ctx, 9999, UpdateOrderInput{
		OrderNumber: "X",
		Items:       []LineItemInput{item(s.widget.ID, 1, "10")},
	})
	s.True(IsKind(err, KindNotFound))
	s.EqualError(err, "Order not found")
}

func (s *OrderServiceSuite) TestUpdate_InvalidItemsLeaveOrderUntouched() {
	id := s.createOrder("F-3", item(s.widget.ID, 2, "20"))

	err := s.orders.Update(s.ctx, id, UpdateOrderInput{
		OrderNumber: "F-3-new",
		Items:       []LineItemInput{item(s.gadget.ID, 1, "2.5"), item(777, 1, "1")},
	})
	s.True(IsKind(err, KindInvalidInput))

	detail, err := s.orders.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("F-3", detail.OrderNumber)
	s.Equal("20.00", detail.FinalPrice.StringFixed(2))
	s.Len(detail.Items, 1)
}

func (s *OrderServiceSuite) TestSetStatus_NotGated() {
	id := s.createOrder("G-1", item(s.widget.ID, 1, "10"))

	s.Require().NoError(s.orders.SetStatus(s.ctx, id, "Completed"))
	s.Require().NoError(s.orders.SetStatus(s.ctx, id, "Pending"))

	detail, err := s.orders.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("Pending", detail.Status)
}

func (s *OrderServiceSuite) TestSetStatus_Invalid() {
	id := s.createOrder("G-2", item(s.widget.ID, 1, "10"))

	err := s.orders.SetStatus(s.ctx, id, "Shipped")
	s.True(IsKind(err, KindInvalidInput))
	s.EqualError(err, "Invalid status. Allowed: Pending, In Progress, Completed")

	err = s.orders.SetStatus(s.ctx, id, "")
	s.EqualError(err, "Missing required fields: status")

	err = s.orders.SetStatus(s.ctx, 9999, "Pending")
	s.True(IsKind(err, KindNotFound))

	detail, err := s.orders.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("Pending", detail.Status)
}

func (s *OrderServiceSuite) TestDelete_CascadesLineItems() {
	id := s.createOrder("H-1", item(s.widget.ID, 1, "10"))

	err := s.catalog.Delete(s.ctx, s.widget.ID)
	s.True(IsKind(err, KindConflict))

	s.Require().NoError(s.orders.Delete(s.ctx, id))
	_, err = s.orders.Get(s.ctx, id)
	s.True(IsKind(err, KindNotFound))

	items, err := s.store.ListLineItems(s.ctx, id)
	s.Require().NoError(err)
	s.Empty(items)

	// nothing references the product any more
	s.NoError(s.catalog.Delete(s.ctx, s.widget.ID))
}

func (s *OrderServiceSuite) TestDelete_NotFound() {
	err := s.orders.Delete(s.ctx, 9999)
	s.True(IsKind(err, KindNotFound))
}

func (s *OrderServiceSuite) TestList_NewestFirst() {
	for _, o := range []struct{ number, date string }{
		{"L-1", "2024-01-10"},
		{"L-2", "2024-03-01"},
		{"L-3", "2023-12-31"},
	} {
		_, err := s.orders.Create(s.ctx, CreateOrderInput{
			OrderNumber: o.number,
			Date:        o.date,
			Items:       []LineItemInput{item(s.widget.ID, 1, "10")},
		})
		s.Require().NoError(err)
	}

	orders, err := s.orders.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(orders, 3)
	s.Equal("L-2", orders[0].OrderNumber)
	s.Equal("L-1", orders[1].OrderNumber)
	s.Equal("L-3", orders[2].OrderNumber)
}

func (s *OrderServiceSuite) TestProductPriceChangeKeepsHistoricTotals() {
	id := s.createOrder("P-1", item(s.widget.ID, 2, "20"))

	name := "Widget"
	_, err := s.catalog.Update(s.ctx, s.widget.ID, ProductInput{Name: &name, UnitPrice: price("12.00")})
	s.Require().NoError(err)

	detail, err := s.orders.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("20.00", detail.FinalPrice.StringFixed(2))
	s.Equal("20.00", detail.Items[0].TotalPrice.StringFixed(2))
	s.Equal("12.00", detail.Items[0].UnitPrice.StringFixed(2))
}

func (s *OrderServiceSuite) TestMetricsRecordOutcomes() {
	s.createOrder("M-1", item(s.widget.ID, 1, "10"))
	_, err := s.orders.Create(s.ctx, CreateOrderInput{
		OrderNumber: "M-1",
		Date:        "2024-05-01",
		Items:       []LineItemInput{item(s.widget.ID, 1, "10")},
	})
	s.Require().Error(err)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.OrderWrites.WithLabelValues("create", "ok")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.OrderWrites.WithLabelValues("create", "conflict")))
}

func TestErrorKinds(t *testing.T) {
	assert.Equal(t, "invalid_input", KindInvalidInput.String())
	assert.Equal(t, "storage_failure", KindOf(assert.AnError).String())

	err := storageFailure("get order", assert.AnError)
	assert.Equal(t, "failed to get order: "+assert.AnError.Error(), err.Error())
	assert.ErrorIs(t, err, assert.AnError)

	nf := notFound(storage.ErrNotFound, "Order not found")
	assert.Equal(t, "Order not found", nf.Error())
	assert.ErrorIs(t, nf, storage.ErrNotFound)
	require.True(t, IsKind(nf, KindNotFound))
}
