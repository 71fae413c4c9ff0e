package orders

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"agropos-system/internal/database/models"
	"agropos-system/internal/errs"
	"agropos-system/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeStore keeps everything in memory. Atomic serializes callers with a
// mutex and restores a snapshot when fn fails, mirroring the rollback and
// row-lock guarantees the real store provides.
type fakeStore struct {
	repository.Store

	mu        sync.Mutex
	products  map[int64]*models.Product
	orders    []*models.Order
	lines     []models.OrderLine
	movements []models.StockMovement
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{products: map[int64]*models.Product{}}
}

func (f *fakeStore) addProduct(id int64, sellingPrice string, active bool) *models.Product {
	p := &models.Product{
		ID:           id,
		SKU:          "SKU-" + strconv.FormatInt(id, 10),
		Name:         "Product " + strconv.FormatInt(id, 10),
		SellingPrice: dec(sellingPrice),
		ReorderLevel: 5,
		IsActive:     active,
	}
	f.products[id] = p
	return p
}

func (f *fakeStore) addStock(productID int64, qty string) {
	f.movements = append(f.movements, models.StockMovement{
		ProductID:    productID,
		Quantity:     dec(qty),
		MovementType: models.MovementIn,
		Reference:    "seed",
	})
}

func (f *fakeStore) snapshot() ([]*models.Order, []models.OrderLine, []models.StockMovement, int64) {
	orders := make([]*models.Order, len(f.orders))
	copy(orders, f.orders)
	lines := make([]models.OrderLine, len(f.lines))
	copy(lines, f.lines)
	movements := make([]models.StockMovement, len(f.movements))
	copy(movements, f.movements)
	return orders, lines, movements, f.nextID
}

func (f *fakeStore) Atomic(ctx context.Context, fn func(repository.Store) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	orders, lines, movements, nextID := f.snapshot()
	if err := fn(f); err != nil {
		f.orders, f.lines, f.movements, f.nextID = orders, lines, movements, nextID
		return err
	}
	return nil
}

func (f *fakeStore) LockProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakeStore) StockQuantity(ctx context.Context, productID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, m := range f.movements {
		if m.ProductID == productID {
			sum = sum.Add(m.Quantity)
		}
	}
	return sum, nil
}

func (f *fakeStore) CreateOrder(ctx context.Context, o *models.Order) error {
	f.nextID++
	o.ID = f.nextID
	f.orders = append(f.orders, o)
	return nil
}

func (f *fakeStore) CreateOrderLine(ctx context.Context, l *models.OrderLine) error {
	f.lines = append(f.lines, *l)
	return nil
}

func (f *fakeStore) AppendMovement(ctx context.Context, m *models.StockMovement) error {
	f.movements = append(f.movements, *m)
	return nil
}

func (f *fakeStore) UpdateOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	for _, o := range f.orders {
		if o.ID == orderID {
			o.Total = total
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func newTestEngine(store *fakeStore) *Engine {
	return NewEngine(store, nil, zerolog.Nop())
}

func saleInput(channel string, lines ...CreateLine) CreateOrderInput {
	return CreateOrderInput{Kind: models.OrderKindSale, Channel: channel, Lines: lines}
}

func TestCreatePOSSaleComputesTotal(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, "100.00", true)
	store.addProduct(2, "50.00", true)
	store.addStock(1, "10")
	store.addStock(2, "10")
	engine := newTestEngine(store)

	order, err := engine.CreateOrder(context.Background(), saleInput(models.ChannelPOS,
		CreateLine{ProductID: 1, Quantity: dec("2")},
		CreateLine{ProductID: 2, Quantity: dec("1.5"), UnitPrice: decPtr("40.00")},
	))
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, order.Status)
	assert.Equal(t, models.ChannelPOS, order.Channel)
	// 2*100 + 1.5*40 = 260
	assert.True(t, order.Total.Equal(dec("260")), "total = %s", order.Total)
	require.Len(t, order.Lines, 2)
	assert.True(t, order.Lines[0].UnitPrice.Equal(dec("100.00")))
	assert.True(t, order.Lines[1].UnitPrice.Equal(dec("40.00")))

	// Stock left: 10-2 and 10-1.5.
	q1, _ := store.StockQuantity(context.Background(), 1)
	q2, _ := store.StockQuantity(context.Background(), 2)
	assert.True(t, q1.Equal(dec("8")))
	assert.True(t, q2.Equal(dec("8.5")))

	last := store.movements[len(store.movements)-1]
	assert.Equal(t, models.MovementOut, last.MovementType)
	assert.Equal(t, "POS Sale #1", last.Reference)
	assert.True(t, last.Quantity.IsNegative())
}

func TestCreateWebSaleIsPending(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, "100.00", true)
	store.addStock(1, "10")
	engine := newTestEngine(store)

	order, err := engine.CreateOrder(context.Background(), saleInput(models.ChannelWeb,
		CreateLine{ProductID: 1, Quantity: dec("8")},
	))
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, "Online Order #1", store.movements[len(store.movements)-1].Reference)

	qty, _ := store.StockQuantity(context.Background(), 1)
	assert.True(t, qty.Equal(dec("2")), "pending web sales deduct stock immediately")
}

func TestCreatePurchaseStocksIn(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, "100.00", false) // inactive products can still be restocked
	supplierID := int64(7)
	engine := newTestEngine(store)

	order, err := engine.CreateOrder(context.Background(), CreateOrderInput{
		Kind:       models.OrderKindPurchase,
		SupplierID: &supplierID,
		Lines: []CreateLine{
			{ProductID: 1, Quantity: dec("25"), UnitPrice: decPtr("60.00")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, order.Status)
	assert.True(t, order.Total.Equal(dec("1500")))

	m := store.movements[0]
	assert.Equal(t, models.MovementIn, m.MovementType)
	assert.Equal(t, "Purchase #1", m.Reference)
	assert.True(t, m.Quantity.Equal(dec("25")))
}

func TestInsufficientStockAbortsWholeOrder(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, "100.00", true)
	store.addProduct(2, "50.00", true)
	store.addStock(1, "10")
	store.addStock(2, "2")
	engine := newTestEngine(store)

	_, err := engine.CreateOrder(context.Background(), saleInput(models.ChannelPOS,
		CreateLine{ProductID: 1, Quantity: dec("1")},
		CreateLine{ProductID: 2, Quantity: dec("20")},
	))

	var stockErr *errs.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(2), stockErr.ProductID)
	assert.True(t, stockErr.Requested.Equal(dec("20")))
	assert.True(t, stockErr.Available.Equal(dec("2")))

	// Nothing persisted, stock untouched.
	assert.Empty(t, store.orders)
	assert.Empty(t, store.lines)
	q1, _ := store.StockQuantity(context.Background(), 1)
	q2, _ := store.StockQuantity(context.Background(), 2)
	assert.True(t, q1.Equal(dec("10")))
	assert.True(t, q2.Equal(dec("2")))
}

func TestDuplicateLinesAdmittedAgainstCombinedQuantity(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, "10.00", true)
	store.addStock(1, "5")
	engine := newTestEngine(store)

	_, err := engine.CreateOrder(context.Background(), saleInput(models.ChannelPOS,
		CreateLine{ProductID: 1, Quantity: dec("3")},
		CreateLine{ProductID: 1, Quantity: dec("3")},
	))

	var stockErr *errs.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.True(t, stockErr.Requested.Equal(dec("6")))
}

func TestUnknownProductRollsBack(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, "100.00", true)
	store.addStock(1, "10")
	engine := newTestEngine(store)

	_, err := engine.CreateOrder(context.Background(), saleInput(models.ChannelPOS,
		CreateLine{ProductID: 1, Quantity: dec("1")},
		CreateLine{ProductID: 99, Quantity: dec("1")},
	))

	require.ErrorIs(t, err, errs.ErrNotFound)
	assert.Empty(t, store.orders)
	assert.Empty(t, store.lines)
}

func TestInactiveProductRejectedForSale(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, "100.00", false)
	store.addStock(1, "10")
	engine := newTestEngine(store)

	_, err := engine.CreateOrder(context.Background(), saleInput(models.ChannelPOS,
		CreateLine{ProductID: 1, Quantity: dec("1")},
	))

	var validationErr *errs.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestInputValidation(t *testing.T) {
	supplierID := int64(1)
	cases := []struct {
		name string
		in   CreateOrderInput
	}{
		{"unknown kind", CreateOrderInput{Kind: "TRANSFER"}},
		{"sale without channel", CreateOrderInput{Kind: models.OrderKindSale}},
		{"purchase without supplier", CreateOrderInput{Kind: models.OrderKindPurchase}},
		{"no lines", saleInput(models.ChannelPOS)},
		{"zero quantity", saleInput(models.ChannelPOS, CreateLine{ProductID: 1, Quantity: decimal.Zero})},
		{"negative quantity", saleInput(models.ChannelPOS, CreateLine{ProductID: 1, Quantity: dec("-1")})},
		{"negative price override", saleInput(models.ChannelPOS, CreateLine{ProductID: 1, Quantity: dec("1"), UnitPrice: decPtr("-5")})},
		{"purchase line without price", CreateOrderInput{
			Kind:       models.OrderKindPurchase,
			SupplierID: &supplierID,
			Lines:      []CreateLine{{ProductID: 1, Quantity: dec("1")}},
		}},
	}

	store := newFakeStore()
	engine := newTestEngine(store)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.CreateOrder(context.Background(), tc.in)
			var validationErr *errs.ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
	assert.Empty(t, store.orders, "validation failures must not persist anything")
}

func TestPriceSnapshotSurvivesPriceChange(t *testing.T) {
	store := newFakeStore()
	p := store.addProduct(1, "100.00", true)
	store.addStock(1, "10")
	engine := newTestEngine(store)

	order, err := engine.CreateOrder(context.Background(), saleInput(models.ChannelPOS,
		CreateLine{ProductID: 1, Quantity: dec("1")},
	))
	require.NoError(t, err)

	p.SellingPrice = dec("200.00")

	assert.True(t, store.lines[0].UnitPrice.Equal(dec("100.00")))
	assert.True(t, order.Lines[0].UnitPrice.Equal(dec("100.00")))
}

func TestConcurrentSalesCannotOversell(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, "100.00", true)
	store.addStock(1, "10")
	engine := newTestEngine(store)

	const workers = 8
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.CreateOrder(context.Background(), saleInput(models.ChannelWeb,
				CreateLine{ProductID: 1, Quantity: dec("10")},
			))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, insufficient int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		default:
			var stockErr *errs.InsufficientStockError
			if errors.As(err, &stockErr) {
				insufficient++
			}
		}
	}

	assert.Equal(t, 1, succeeded, "exactly one sale may take the full stock")
	assert.Equal(t, workers-1, insufficient)

	qty, _ := store.StockQuantity(context.Background(), 1)
	assert.True(t, qty.Equal(decimal.Zero))
}
