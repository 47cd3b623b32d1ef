package usecase

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelens/backend/internal/domain"
)

func supplier(id domain.SupplierID, status domain.SupplierStatus) domain.Supplier {
	return domain.Supplier{ID: id, Name: "Supplier", URL: "https://example.com", Status: status}
}

func TestCompareProduct_ExcludesInactiveSuppliers(t *testing.T) {
	product := domain.Product{ID: 1, Name: "Gloves"}
	suppliers := []domain.Supplier{
		supplier(1, domain.SupplierActive),
		supplier(2, domain.SupplierActive),
		supplier(3, domain.SupplierPending),
	}
	matrix := domain.PriceMatrix{1: {1: domain.Price(24.99), 2: domain.Price(22.50), 3: domain.Price(26.75)}}

	cmp := CompareProduct(product, suppliers, matrix)

	require.NotNil(t, cmp.Best)
	require.NotNil(t, cmp.Worst)
	assert.Equal(t, 22.50, cmp.Best.Price)
	assert.Equal(t, domain.SupplierID(2), cmp.Best.Supplier.ID)
	assert.Equal(t, 24.99, cmp.Worst.Price)
	assert.Equal(t, domain.SupplierID(1), cmp.Worst.Supplier.ID)
	assert.Equal(t, 2, cmp.ObservedCount)
	assert.InDelta(t, (24.99-22.50)/24.99*100, cmp.SavingsPercent, 1e-9)
	assert.InDelta(t, 9.96, cmp.SavingsPercent, 0.01)
	assert.InDelta(t, 2.49, cmp.SavingsAmount, 1e-9)
	assert.Equal(t, "10.0%", cmp.SavingsDisplay())

	// only active suppliers appear in the row
	require.Len(t, cmp.Prices, 2)
	assert.Equal(t, domain.TagHighest, cmp.Prices[0].Tag)
	assert.Equal(t, domain.TagLowest, cmp.Prices[1].Tag)
}

func TestCompareProduct_TieBreakPicksFirstSupplier(t *testing.T) {
	product := domain.Product{ID: 1}
	matrix := domain.PriceMatrix{1: {1: domain.Price(30), 2: domain.Price(10), 3: domain.Price(10)}}

	forward := []domain.Supplier{supplier(1, domain.SupplierActive), supplier(2, domain.SupplierActive), supplier(3, domain.SupplierActive)}
	reversed := []domain.Supplier{supplier(3, domain.SupplierActive), supplier(2, domain.SupplierActive), supplier(1, domain.SupplierActive)}

	for i := 0; i < 20; i++ {
		assert.Equal(t, domain.SupplierID(2), CompareProduct(product, forward, matrix).Best.Supplier.ID)
		assert.Equal(t, domain.SupplierID(3), CompareProduct(product, reversed, matrix).Best.Supplier.ID)
	}
}

func TestCompareProduct_NoObservations(t *testing.T) {
	product := domain.Product{ID: 1}
	suppliers := []domain.Supplier{supplier(1, domain.SupplierActive), supplier(2, domain.SupplierActive)}

	tests := []struct {
		name   string
		matrix domain.PriceMatrix
	}{
		{name: "all null", matrix: domain.PriceMatrix{1: {1: nil, 2: nil}}},
		{name: "missing row", matrix: domain.PriceMatrix{}},
		{name: "nil matrix", matrix: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp := CompareProduct(product, suppliers, tt.matrix)
			assert.Nil(t, cmp.Best)
			assert.Nil(t, cmp.Worst)
			assert.False(t, cmp.Comparable())
			assert.Zero(t, cmp.SavingsPercent)
			assert.Zero(t, cmp.ObservedCount)
			for _, p := range cmp.Prices {
				assert.Equal(t, domain.TagUnavailable, p.Tag)
				assert.Nil(t, p.Price)
			}
		})
	}
}

func TestCompareProduct_SinglePrice(t *testing.T) {
	matrix := domain.PriceMatrix{1: {1: domain.Price(12.5), 2: nil}}
	suppliers := []domain.Supplier{supplier(1, domain.SupplierActive), supplier(2, domain.SupplierActive)}

	cmp := CompareProduct(domain.Product{ID: 1}, suppliers, matrix)

	require.NotNil(t, cmp.Best)
	assert.Equal(t, cmp.Best.Price, cmp.Worst.Price)
	assert.Zero(t, cmp.SavingsPercent)
	assert.Equal(t, domain.TagLowest, cmp.Prices[0].Tag)
	assert.Equal(t, domain.TagUnavailable, cmp.Prices[1].Tag)
}

func TestCompareProduct_ZeroPrices(t *testing.T) {
	matrix := domain.PriceMatrix{1: {1: domain.Price(0), 2: domain.Price(0)}}
	suppliers := []domain.Supplier{supplier(1, domain.SupplierActive), supplier(2, domain.SupplierActive)}

	cmp := CompareProduct(domain.Product{ID: 1}, suppliers, matrix)

	require.NotNil(t, cmp.Best)
	assert.Equal(t, 0.0, cmp.Best.Price)
	assert.Equal(t, 0.0, cmp.SavingsPercent)
	assert.False(t, math.IsNaN(cmp.SavingsPercent))
}

func TestCompareProduct_MiddleTag(t *testing.T) {
	matrix := domain.PriceMatrix{1: {1: domain.Price(5), 2: domain.Price(7), 3: domain.Price(9)}}
	suppliers := []domain.Supplier{supplier(1, domain.SupplierActive), supplier(2, domain.SupplierActive), supplier(3, domain.SupplierActive)}

	cmp := CompareProduct(domain.Product{ID: 1}, suppliers, matrix)

	assert.Equal(t, []domain.PriceTag{domain.TagLowest, domain.TagMiddle, domain.TagHighest},
		[]domain.PriceTag{cmp.Prices[0].Tag, cmp.Prices[1].Tag, cmp.Prices[2].Tag})
}

func TestCompareProduct_DoesNotMutateInputs(t *testing.T) {
	snapshot := SampleSnapshot(fixedNow)
	before := snapshot.Clone()

	CompareAll(snapshot.Products, snapshot.Suppliers, snapshot.Prices)
	AggregateStats(snapshot.Products, snapshot.Suppliers, snapshot.Prices)

	assert.True(t, before.Prices.Equal(snapshot.Prices))
	assert.Equal(t, before.Suppliers, snapshot.Suppliers)
	assert.Equal(t, before.Products, snapshot.Products)
}

func TestCompareAll_IsIdempotent(t *testing.T) {
	snapshot := SampleSnapshot(fixedNow)

	first := CompareAll(snapshot.Products, snapshot.Suppliers, snapshot.Prices)
	second := CompareAll(snapshot.Products, snapshot.Suppliers, snapshot.Prices)

	assert.Equal(t, first, second)
	require.Len(t, first, len(snapshot.Products))
	for i, cmp := range first {
		assert.Equal(t, snapshot.Products[i].ID, cmp.Product.ID)
	}
}

func TestAggregateStats(t *testing.T) {
	t.Run("single qualifying product", func(t *testing.T) {
		products := []domain.Product{{ID: 1}}
		suppliers := []domain.Supplier{
			supplier(1, domain.SupplierActive),
			supplier(2, domain.SupplierActive),
			supplier(3, domain.SupplierPending),
		}
		matrix := domain.PriceMatrix{1: {1: domain.Price(24.99), 2: domain.Price(22.50), 3: domain.Price(26.75)}}

		stats := AggregateStats(products, suppliers, matrix)

		assert.Equal(t, 1, stats.TrackedProducts)
		assert.Equal(t, 2, stats.ActiveSuppliers)
		assert.Equal(t, 1, stats.QualifyingProducts)
		assert.InDelta(t, 9.96, stats.AverageSavings, 0.01)
	})

	t.Run("products with fewer than two prices are excluded", func(t *testing.T) {
		products := []domain.Product{{ID: 1}, {ID: 2}, {ID: 3}}
		suppliers := []domain.Supplier{supplier(1, domain.SupplierActive), supplier(2, domain.SupplierActive)}
		matrix := domain.PriceMatrix{
			1: {1: domain.Price(10), 2: domain.Price(8)}, // 20%
			2: {1: domain.Price(5), 2: nil},
			3: {},
		}

		stats := AggregateStats(products, suppliers, matrix)

		assert.Equal(t, 3, stats.TrackedProducts)
		assert.Equal(t, 1, stats.QualifyingProducts)
		assert.InDelta(t, 20.0, stats.AverageSavings, 1e-9)
	})

	t.Run("no qualifying product averages zero", func(t *testing.T) {
		products := []domain.Product{{ID: 1}}
		suppliers := []domain.Supplier{supplier(1, domain.SupplierActive), supplier(2, domain.SupplierInactive)}
		matrix := domain.PriceMatrix{1: {1: domain.Price(10), 2: domain.Price(8)}}

		stats := AggregateStats(products, suppliers, matrix)

		assert.Equal(t, 1, stats.ActiveSuppliers)
		assert.Zero(t, stats.QualifyingProducts)
		assert.Zero(t, stats.AverageSavings)
		assert.Equal(t, "0.0%", stats.AverageSavingsDisplay())
	})

	t.Run("empty catalog", func(t *testing.T) {
		stats := AggregateStats(nil, nil, nil)
		assert.Zero(t, stats.TrackedProducts)
		assert.Zero(t, stats.ActiveSuppliers)
		assert.Zero(t, stats.AverageSavings)
	})
}
