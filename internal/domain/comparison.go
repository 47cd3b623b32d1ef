package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceTag classifies a supplier's price within a product comparison
type PriceTag string

const (
	TagLowest      PriceTag = "lowest"
	TagHighest     PriceTag = "highest"
	TagMiddle      PriceTag = "middle"
	TagUnavailable PriceTag = "unavailable"
)

// SupplierPrice is one active supplier's cell in a comparison row
type SupplierPrice struct {
	Supplier Supplier `json:"supplier"`
	Price    *float64 `json:"price"`
	Tag      PriceTag `json:"tag"`
}

// PricePoint pairs a supplier with the price it offers
type PricePoint struct {
	Supplier Supplier `json:"supplier"`
	Price    float64  `json:"price"`
}

// Comparison is the derived per-product result of the comparison engine.
// Best and Worst are nil when no active supplier reports a price.
type Comparison struct {
	Product        Product         `json:"product"`
	Prices         []SupplierPrice `json:"prices"`
	Best           *PricePoint     `json:"bestPrice,omitempty"`
	Worst          *PricePoint     `json:"worstPrice,omitempty"`
	ObservedCount  int             `json:"observedCount"`
	SavingsAmount  float64         `json:"savingsAmount"`
	SavingsPercent float64         `json:"savingsPercent"`
}

// Comparable reports whether the product has any active price
func (c Comparison) Comparable() bool {
	return c.Best != nil
}

// SavingsDisplay renders the savings percentage rounded to one decimal
func (c Comparison) SavingsDisplay() string {
	return FormatPercent(c.SavingsPercent)
}

// Stats are the dashboard's headline figures
type Stats struct {
	TrackedProducts    int       `json:"trackedProducts"`
	ActiveSuppliers    int       `json:"activeSuppliers"`
	AverageSavings     float64   `json:"averageSavings"`
	QualifyingProducts int       `json:"qualifyingProducts"`
	LastUpdated        time.Time `json:"lastUpdated"`
}

// AverageSavingsDisplay renders the average savings rounded to one decimal
func (s Stats) AverageSavingsDisplay() string {
	return FormatPercent(s.AverageSavings)
}

// FormatPercent rounds v to one decimal place, e.g. 9.96 -> "10.0%"
func FormatPercent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1) + "%"
}

// FormatCurrency renders an amount in dollars with two decimals
func FormatCurrency(v float64) string {
	d := decimal.NewFromFloat(v)
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
