package usecase

import (
	"github.com/pricelens/backend/internal/domain"
)

// CompareProduct compares one product's prices across the active suppliers.
// Suppliers are visited in input order, so on a tie for the lowest price the
// supplier listed first wins. Inputs are never mutated.
func CompareProduct(product domain.Product, suppliers []domain.Supplier, matrix domain.PriceMatrix) domain.Comparison {
	result := domain.Comparison{
		Product: product,
		Prices:  make([]domain.SupplierPrice, 0, len(suppliers)),
	}

	var minPrice, maxPrice float64
	var best, worst *domain.PricePoint

	for _, supplier := range suppliers {
		if !supplier.IsActive() {
			continue
		}

		price, ok := matrix.Lookup(product.ID, supplier.ID)
		if !ok {
			result.Prices = append(result.Prices, domain.SupplierPrice{
				Supplier: supplier,
				Tag:      domain.TagUnavailable,
			})
			continue
		}

		result.Prices = append(result.Prices, domain.SupplierPrice{
			Supplier: supplier,
			Price:    domain.Price(price),
		})
		result.ObservedCount++

		// Strict comparisons keep the first supplier on ties
		if best == nil || price < minPrice {
			minPrice = price
			best = &domain.PricePoint{Supplier: supplier, Price: price}
		}
		if worst == nil || price > maxPrice {
			maxPrice = price
			worst = &domain.PricePoint{Supplier: supplier, Price: price}
		}
	}

	if best == nil {
		return result
	}

	result.Best = best
	result.Worst = worst
	result.SavingsAmount = maxPrice - minPrice
	result.SavingsPercent = savingsPercent(minPrice, maxPrice)

	for i := range result.Prices {
		if result.Prices[i].Price == nil {
			continue
		}
		result.Prices[i].Tag = classifyPrice(*result.Prices[i].Price, minPrice, maxPrice)
	}

	return result
}

// CompareAll compares every product in input order. Products without any
// observation are kept and simply have no best or worst price.
func CompareAll(products []domain.Product, suppliers []domain.Supplier, matrix domain.PriceMatrix) []domain.Comparison {
	results := make([]domain.Comparison, 0, len(products))
	for _, product := range products {
		results = append(results, CompareProduct(product, suppliers, matrix))
	}
	return results
}

// AggregateStats computes the dashboard headline figures. The average
// savings only counts products with at least two active prices; products
// with fewer are left out of the denominator rather than counted as zero.
func AggregateStats(products []domain.Product, suppliers []domain.Supplier, matrix domain.PriceMatrix) domain.Stats {
	stats := domain.Stats{TrackedProducts: len(products)}

	for _, supplier := range suppliers {
		if supplier.IsActive() {
			stats.ActiveSuppliers++
		}
	}

	var total float64
	for _, product := range products {
		cmp := CompareProduct(product, suppliers, matrix)
		if cmp.ObservedCount < 2 {
			continue
		}
		total += cmp.SavingsPercent
		stats.QualifyingProducts++
	}

	if stats.QualifyingProducts > 0 {
		stats.AverageSavings = total / float64(stats.QualifyingProducts)
	}

	return stats
}

// savingsPercent is (max - min) / max * 100, or 0 when max is 0
func savingsPercent(minPrice, maxPrice float64) float64 {
	if maxPrice <= 0 {
		return 0
	}
	return (maxPrice - minPrice) / maxPrice * 100
}

func classifyPrice(price, minPrice, maxPrice float64) domain.PriceTag {
	switch {
	case price == minPrice:
		return domain.TagLowest
	case price == maxPrice && maxPrice != minPrice:
		return domain.TagHighest
	default:
		return domain.TagMiddle
	}
}
