package usecase

import (
	"time"

	"github.com/pricelens/backend/internal/domain"
)

// SampleSnapshot returns the demo catalog loaded on first start: five
// medical supplies priced by three active suppliers and one pending supplier
// that has not reported yet.
func SampleSnapshot(now time.Time) *domain.Snapshot {
	products := []domain.Product{
		{ID: 1, Name: "Surgical Gloves (Box of 100)", SKU: "SG-100", Category: domain.CategoryPPE},
		{ID: 2, Name: "N95 Respirator Masks (Pack of 20)", SKU: "N95-20", Category: domain.CategoryPPE},
		{ID: 3, Name: "Disposable Syringes 10ml (Pack of 50)", SKU: "SYR-10-50", Category: domain.CategorySyringes},
		{ID: 4, Name: "Digital Thermometer", SKU: "THERM-001", Category: domain.CategoryInstruments},
		{ID: 5, Name: "Blood Pressure Cuff Adult", SKU: "BP-ADULT", Category: domain.CategoryInstruments},
	}
	suppliers := []domain.Supplier{
		{ID: 1, Name: "MedSupply Pro", URL: "https://medsupply.com", Status: domain.SupplierActive},
		{ID: 2, Name: "Clinical Direct", URL: "https://clinicaldirect.com", Status: domain.SupplierActive},
		{ID: 3, Name: "Healthcare Plus", URL: "https://healthcareplus.com", Status: domain.SupplierActive},
		{ID: 4, Name: "Medical Depot", URL: "https://medicaldepot.com", Status: domain.SupplierPending},
	}
	for i := range products {
		products[i].CreatedAt = now
		products[i].UpdatedAt = now
	}
	for i := range suppliers {
		suppliers[i].CreatedAt = now
		suppliers[i].UpdatedAt = now
	}

	row := func(a, b, c float64) map[domain.SupplierID]*float64 {
		return map[domain.SupplierID]*float64{
			1: domain.Price(a),
			2: domain.Price(b),
			3: domain.Price(c),
			4: nil,
		}
	}

	return &domain.Snapshot{
		Version:   1,
		Products:  products,
		Suppliers: suppliers,
		Prices: domain.PriceMatrix{
			1: row(24.99, 22.50, 26.75),
			2: row(45.99, 42.00, 48.50),
			3: row(18.75, 17.25, 19.99),
			4: row(12.99, 11.50, 14.25),
			5: row(34.99, 32.75, 36.50),
		},
		UpdatedAt: now,
	}
}
