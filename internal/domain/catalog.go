package domain

import (
	"strings"
	"time"
)

// ProductID identifies a tracked product
type ProductID int

// SupplierID identifies a registered supplier
type SupplierID int

// Category groups products on the dashboard. Free text is accepted; the
// constants below are the categories offered by the product form.
type Category string

const (
	CategoryPPE             Category = "PPE"
	CategorySyringes        Category = "Syringes"
	CategoryInstruments     Category = "Instruments"
	CategoryPharmaceuticals Category = "Pharmaceuticals"
	CategoryDiagnostics     Category = "Diagnostics"
	CategoryConsumables     Category = "Consumables"
	CategoryEquipment       Category = "Equipment"
	CategoryOther           Category = "Other"
)

// KnownCategories lists the categories in form order
var KnownCategories = []Category{
	CategoryPPE,
	CategorySyringes,
	CategoryInstruments,
	CategoryPharmaceuticals,
	CategoryDiagnostics,
	CategoryConsumables,
	CategoryEquipment,
	CategoryOther,
}

// SupplierStatus is the lifecycle state of a supplier
type SupplierStatus string

const (
	SupplierActive   SupplierStatus = "active"
	SupplierPending  SupplierStatus = "pending"
	SupplierInactive SupplierStatus = "inactive"
	SupplierError    SupplierStatus = "error"
)

// Valid reports whether s is one of the known statuses
func (s SupplierStatus) Valid() bool {
	switch s {
	case SupplierActive, SupplierPending, SupplierInactive, SupplierError:
		return true
	}
	return false
}

// Product is an item whose price is tracked across suppliers
type Product struct {
	ID          ProductID `json:"id"`
	Name        string    `json:"name"`
	SKU         string    `json:"sku"`
	Category    Category  `json:"category"`
	Keywords    []string  `json:"keywords,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// Supplier is a source of price observations. Only active suppliers take
// part in comparisons.
type Supplier struct {
	ID     SupplierID     `json:"id"`
	Name   string         `json:"name"`
	URL    string         `json:"url"`
	Status SupplierStatus `json:"status"`

	// PriceSelector overrides the price feed's default CSS selector for this supplier
	PriceSelector string     `json:"priceSelector,omitempty"`
	LastScrapedAt *time.Time `json:"lastScrapedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt,omitempty"`
}

// IsActive reports whether the supplier participates in comparisons
func (s Supplier) IsActive() bool {
	return s.Status == SupplierActive
}

// ProductInput carries the caller-supplied fields of a product
type ProductInput struct {
	Name        string   `json:"name" binding:"required"`
	SKU         string   `json:"sku" binding:"required"`
	Category    Category `json:"category" binding:"required"`
	Keywords    []string `json:"keywords,omitempty"`
	Description string   `json:"description,omitempty"`
}

// SupplierInput carries the caller-supplied fields of a supplier
type SupplierInput struct {
	Name          string `json:"name" binding:"required"`
	URL           string `json:"url" binding:"required,url"`
	PriceSelector string `json:"priceSelector,omitempty"`
}

// Clone returns a deep copy of the product
func (p Product) Clone() Product {
	if p.Keywords != nil {
		p.Keywords = append([]string(nil), p.Keywords...)
	}
	return p
}

// SearchText returns the text the dashboard search box matches against
func (p Product) SearchText() string {
	parts := make([]string, 0, 2+len(p.Keywords))
	parts = append(parts, p.Name, p.SKU)
	parts = append(parts, p.Keywords...)
	return strings.Join(parts, " ")
}
