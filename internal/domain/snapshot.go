package domain

import "time"

// Snapshot is an immutable view of the catalog and its price matrix. Every
// mutation produces a new Snapshot with a higher Version; readers holding an
// older one never observe partial writes.
type Snapshot struct {
	Version   uint64      `json:"version"`
	Products  []Product   `json:"products"`
	Suppliers []Supplier  `json:"suppliers"`
	Prices    PriceMatrix `json:"prices"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// NewSnapshot returns an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Products:  []Product{},
		Suppliers: []Supplier{},
		Prices:    PriceMatrix{},
	}
}

// Clone returns a deep copy of the snapshot
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Version:   s.Version,
		Products:  make([]Product, len(s.Products)),
		Suppliers: make([]Supplier, len(s.Suppliers)),
		Prices:    s.Prices.Clone(),
		UpdatedAt: s.UpdatedAt,
	}
	for i, p := range s.Products {
		out.Products[i] = p.Clone()
	}
	copy(out.Suppliers, s.Suppliers)
	return out
}

// Product finds a product by ID
func (s *Snapshot) Product(id ProductID) (Product, bool) {
	for _, p := range s.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// Supplier finds a supplier by ID
func (s *Snapshot) Supplier(id SupplierID) (Supplier, bool) {
	for _, sup := range s.Suppliers {
		if sup.ID == id {
			return sup, true
		}
	}
	return Supplier{}, false
}

// ActiveSuppliers returns the active suppliers in roster order
func (s *Snapshot) ActiveSuppliers() []Supplier {
	active := make([]Supplier, 0, len(s.Suppliers))
	for _, sup := range s.Suppliers {
		if sup.IsActive() {
			active = append(active, sup)
		}
	}
	return active
}
