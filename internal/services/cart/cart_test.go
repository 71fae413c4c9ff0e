package cart

import (
	"testing"

	"agropos-system/internal/database/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestPriceCart(t *testing.T) {
	contents := map[int64]decimal.Decimal{
		1: d("2"),
		2: d("0.5"),
		3: d("1"), // no matching product, dropped
	}
	products := []models.Product{
		{ID: 1, Name: "Dairy Meal 70kg", SellingPrice: d("3200.00")},
		{ID: 2, Name: "Layers Mash 50kg", SellingPrice: d("2900.00")},
		{ID: 4, Name: "Not in cart", SellingPrice: d("100.00")},
	}

	cart := PriceCart(contents, products)

	require.Len(t, cart.Items, 2)
	// 2*3200 + 0.5*2900 = 7850
	assert.True(t, cart.Total.Equal(d("7850")), "total = %s", cart.Total)

	byID := map[int64]Item{}
	for _, it := range cart.Items {
		byID[it.ProductID] = it
	}
	assert.True(t, byID[1].LineTotal.Equal(d("6400")))
	assert.True(t, byID[2].LineTotal.Equal(d("1450")))
	assert.True(t, byID[2].UnitPrice.Equal(d("2900.00")))
}

func TestPriceCartEmpty(t *testing.T) {
	cart := PriceCart(map[int64]decimal.Decimal{}, nil)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Total.IsZero())
}

func TestPriceCartAvoidsFloatDrift(t *testing.T) {
	contents := map[int64]decimal.Decimal{1: d("3")}
	products := []models.Product{{ID: 1, Name: "Syringe", SellingPrice: d("0.10")}}

	cart := PriceCart(contents, products)
	assert.True(t, cart.Total.Equal(d("0.30")))
}
