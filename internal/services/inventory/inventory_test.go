package inventory

import (
	"context"
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

type fakeStore struct {
	repository.Store

	products  map[int64]*models.Product
	movements []models.StockMovement
}

func newFakeStore() *fakeStore {
	return &fakeStore{products: map[int64]*models.Product{}}
}

func (f *fakeStore) Atomic(ctx context.Context, fn func(repository.Store) error) error {
	before := len(f.movements)
	if err := fn(f); err != nil {
		f.movements = f.movements[:before]
		return err
	}
	return nil
}

func (f *fakeStore) ProductByID(ctx context.Context, id int64) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakeStore) LockProduct(ctx context.Context, id int64) (*models.Product, error) {
	return f.ProductByID(ctx, id)
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

func (f *fakeStore) AppendMovement(ctx context.Context, m *models.StockMovement) error {
	f.movements = append(f.movements, *m)
	return nil
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestStockQuantityFoldsLedger(t *testing.T) {
	store := newFakeStore()
	store.products[1] = &models.Product{ID: 1}
	store.movements = []models.StockMovement{
		{ProductID: 1, Quantity: d("10")},
		{ProductID: 1, Quantity: d("-3.5")},
		{ProductID: 2, Quantity: d("99")},
	}
	svc := NewService(store, zerolog.Nop())

	qty, err := svc.StockQuantity(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, qty.Equal(d("6.5")))

	_, err = svc.StockQuantity(context.Background(), 42)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAdjustAppendsSignedMovement(t *testing.T) {
	store := newFakeStore()
	store.products[1] = &models.Product{ID: 1}
	svc := NewService(store, zerolog.Nop())

	m, err := svc.Adjust(context.Background(), 1, d("4"), "stock take surplus")
	require.NoError(t, err)
	assert.Equal(t, models.MovementIn, m.MovementType)
	assert.Equal(t, "Adjustment: stock take surplus", m.Reference)

	m, err = svc.Adjust(context.Background(), 1, d("-1.5"), "spoilage")
	require.NoError(t, err)
	assert.Equal(t, models.MovementOut, m.MovementType)

	qty, _ := store.StockQuantity(context.Background(), 1)
	assert.True(t, qty.Equal(d("2.5")))
}

func TestAdjustCannotDriveStockNegative(t *testing.T) {
	store := newFakeStore()
	store.products[1] = &models.Product{ID: 1}
	store.movements = []models.StockMovement{{ProductID: 1, Quantity: d("2")}}
	svc := NewService(store, zerolog.Nop())

	_, err := svc.Adjust(context.Background(), 1, d("-5"), "write off")

	var stockErr *errs.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.True(t, stockErr.Requested.Equal(d("5")))
	assert.True(t, stockErr.Available.Equal(d("2")))
	assert.Len(t, store.movements, 1, "failed adjustment leaves the ledger untouched")
}

func TestAdjustValidation(t *testing.T) {
	store := newFakeStore()
	store.products[1] = &models.Product{ID: 1}
	svc := NewService(store, zerolog.Nop())

	var validationErr *errs.ValidationError
	_, err := svc.Adjust(context.Background(), 1, decimal.Zero, "nothing")
	assert.ErrorAs(t, err, &validationErr)

	_, err = svc.Adjust(context.Background(), 1, d("1"), "")
	assert.ErrorAs(t, err, &validationErr)

	_, err = svc.Adjust(context.Background(), 42, d("1"), "missing product")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
