package usecase

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

// The helpers below never modify their input snapshot. Each returns a new
// snapshot with a bumped version, keeping the price matrix free of entries
// that reference a missing product or supplier.

// AddProduct appends a product with the next unused ID and an empty price row
func AddProduct(s *domain.Snapshot, input domain.ProductInput, now time.Time) (*domain.Snapshot, domain.Product) {
	next := s.Clone()

	product := domain.Product{
		ID:          nextProductID(s.Products),
		Name:        strings.TrimSpace(input.Name),
		SKU:         strings.TrimSpace(input.SKU),
		Category:    input.Category,
		Keywords:    cleanKeywords(input.Keywords),
		Description: strings.TrimSpace(input.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	next.Products = append(next.Products, product)
	next.Prices[product.ID] = map[domain.SupplierID]*float64{}

	return stamp(next, now), product.Clone()
}

// UpdateProduct replaces the editable fields of an existing product
func UpdateProduct(s *domain.Snapshot, id domain.ProductID, input domain.ProductInput, now time.Time) (*domain.Snapshot, domain.Product, error) {
	idx := productIndex(s.Products, id)
	if idx < 0 {
		return nil, domain.Product{}, fmt.Errorf("%w: %d", domain.ErrProductNotFound, id)
	}

	next := s.Clone()
	p := &next.Products[idx]
	p.Name = strings.TrimSpace(input.Name)
	p.SKU = strings.TrimSpace(input.SKU)
	p.Category = input.Category
	p.Keywords = cleanKeywords(input.Keywords)
	p.Description = strings.TrimSpace(input.Description)
	p.UpdatedAt = now

	return stamp(next, now), p.Clone(), nil
}

// RemoveProduct deletes the product together with its whole price row
func RemoveProduct(s *domain.Snapshot, id domain.ProductID, now time.Time) (*domain.Snapshot, error) {
	idx := productIndex(s.Products, id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrProductNotFound, id)
	}

	next := s.Clone()
	next.Products = append(next.Products[:idx], next.Products[idx+1:]...)
	delete(next.Prices, id)

	return stamp(next, now), nil
}

// AddSupplier registers a supplier with the next unused ID. New suppliers
// start pending and only join comparisons once explicitly activated.
func AddSupplier(s *domain.Snapshot, input domain.SupplierInput, now time.Time) (*domain.Snapshot, domain.Supplier) {
	next := s.Clone()

	supplier := domain.Supplier{
		ID:            nextSupplierID(s.Suppliers),
		Name:          strings.TrimSpace(input.Name),
		URL:           strings.TrimSpace(input.URL),
		Status:        domain.SupplierPending,
		PriceSelector: strings.TrimSpace(input.PriceSelector),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	next.Suppliers = append(next.Suppliers, supplier)

	return stamp(next, now), supplier
}

// SetSupplierStatus moves a supplier to a new lifecycle state
func SetSupplierStatus(s *domain.Snapshot, id domain.SupplierID, status domain.SupplierStatus, now time.Time) (*domain.Snapshot, domain.Supplier, error) {
	if !status.Valid() {
		return nil, domain.Supplier{}, fmt.Errorf("%w: unknown supplier status %q", domain.ErrInvalidRequest, status)
	}

	idx := supplierIndex(s.Suppliers, id)
	if idx < 0 {
		return nil, domain.Supplier{}, fmt.Errorf("%w: %d", domain.ErrSupplierNotFound, id)
	}

	next := s.Clone()
	next.Suppliers[idx].Status = status
	next.Suppliers[idx].UpdatedAt = now

	return stamp(next, now), next.Suppliers[idx], nil
}

// RemoveSupplier deletes the supplier and its column from every price row
func RemoveSupplier(s *domain.Snapshot, id domain.SupplierID, now time.Time) (*domain.Snapshot, error) {
	idx := supplierIndex(s.Suppliers, id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrSupplierNotFound, id)
	}

	next := s.Clone()
	next.Suppliers = append(next.Suppliers[:idx], next.Suppliers[idx+1:]...)
	for _, row := range next.Prices {
		delete(row, id)
	}

	return stamp(next, now), nil
}

// SetPrice records a price observation. A nil price stores the explicit
// unknown marker.
func SetPrice(s *domain.Snapshot, productID domain.ProductID, supplierID domain.SupplierID, price *float64, now time.Time) (*domain.Snapshot, error) {
	if productIndex(s.Products, productID) < 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrProductNotFound, productID)
	}
	if supplierIndex(s.Suppliers, supplierID) < 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrSupplierNotFound, supplierID)
	}
	if err := ValidatePrice(price); err != nil {
		return nil, err
	}

	next := s.Clone()
	row, ok := next.Prices[productID]
	if !ok {
		row = map[domain.SupplierID]*float64{}
		next.Prices[productID] = row
	}
	if price == nil {
		row[supplierID] = nil
	} else {
		row[supplierID] = domain.Price(*price)
	}

	return stamp(next, now), nil
}

// WithPrices swaps in a refreshed matrix, dropping any entry that no longer
// references a product and supplier of the snapshot.
func WithPrices(s *domain.Snapshot, prices domain.PriceMatrix, now time.Time) *domain.Snapshot {
	next := s.Clone()
	next.Prices = PruneOrphans(prices.Clone(), next.Products, next.Suppliers)
	return stamp(next, now)
}

// PruneOrphans removes matrix entries for unknown products or suppliers and
// makes sure every product has a row.
func PruneOrphans(m domain.PriceMatrix, products []domain.Product, suppliers []domain.Supplier) domain.PriceMatrix {
	knownProducts := make(map[domain.ProductID]struct{}, len(products))
	for _, p := range products {
		knownProducts[p.ID] = struct{}{}
		if _, ok := m[p.ID]; !ok {
			m[p.ID] = map[domain.SupplierID]*float64{}
		}
	}
	knownSuppliers := make(map[domain.SupplierID]struct{}, len(suppliers))
	for _, sup := range suppliers {
		knownSuppliers[sup.ID] = struct{}{}
	}

	for productID, row := range m {
		if _, ok := knownProducts[productID]; !ok {
			delete(m, productID)
			continue
		}
		for supplierID := range row {
			if _, ok := knownSuppliers[supplierID]; !ok {
				delete(row, supplierID)
			}
		}
	}
	return m
}

// ValidatePrice rejects negative, NaN and infinite prices
func ValidatePrice(price *float64) error {
	if price == nil {
		return nil
	}
	if math.IsNaN(*price) || math.IsInf(*price, 0) || *price < 0 {
		return fmt.Errorf("%w: got %v", domain.ErrInvalidPrice, *price)
	}
	return nil
}

func stamp(s *domain.Snapshot, now time.Time) *domain.Snapshot {
	s.Version++
	s.UpdatedAt = now
	return s
}

func nextProductID(products []domain.Product) domain.ProductID {
	var maxID domain.ProductID
	for _, p := range products {
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	return maxID + 1
}

func nextSupplierID(suppliers []domain.Supplier) domain.SupplierID {
	var maxID domain.SupplierID
	for _, s := range suppliers {
		if s.ID > maxID {
			maxID = s.ID
		}
	}
	return maxID + 1
}

func productIndex(products []domain.Product, id domain.ProductID) int {
	for i, p := range products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func supplierIndex(suppliers []domain.Supplier, id domain.SupplierID) int {
	for i, s := range suppliers {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func cleanKeywords(keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
