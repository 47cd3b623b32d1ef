package domain

// PriceMatrix maps (product, supplier) to an observed price. A nil price is
// an explicit "unknown" marker and a missing entry means the same thing; both
// are distinct from a zero price.
type PriceMatrix map[ProductID]map[SupplierID]*float64

// Price returns a pointer to v, for building matrix entries
func Price(v float64) *float64 {
	return &v
}

// Lookup returns the observed price for the pair, if any
func (m PriceMatrix) Lookup(productID ProductID, supplierID SupplierID) (float64, bool) {
	row, ok := m[productID]
	if !ok {
		return 0, false
	}
	p, ok := row[supplierID]
	if !ok || p == nil {
		return 0, false
	}
	return *p, true
}

// Clone returns a deep copy. Price pointers are copied too, so the clone can
// be mutated without affecting readers of the original.
func (m PriceMatrix) Clone() PriceMatrix {
	out := make(PriceMatrix, len(m))
	for productID, row := range m {
		newRow := make(map[SupplierID]*float64, len(row))
		for supplierID, p := range row {
			if p == nil {
				newRow[supplierID] = nil
				continue
			}
			newRow[supplierID] = Price(*p)
		}
		out[productID] = newRow
	}
	return out
}

// Observed counts the non-null entries
func (m PriceMatrix) Observed() int {
	n := 0
	for _, row := range m {
		for _, p := range row {
			if p != nil {
				n++
			}
		}
	}
	return n
}

// Equal reports whether both matrices hold the same non-null values at the
// same positions and null markers at the same positions.
func (m PriceMatrix) Equal(other PriceMatrix) bool {
	if len(m) != len(other) {
		return false
	}
	for productID, row := range m {
		otherRow, ok := other[productID]
		if !ok || len(row) != len(otherRow) {
			return false
		}
		for supplierID, p := range row {
			q, ok := otherRow[supplierID]
			if !ok {
				return false
			}
			if (p == nil) != (q == nil) {
				return false
			}
			if p != nil && *p != *q {
				return false
			}
		}
	}
	return true
}
