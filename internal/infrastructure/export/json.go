// Package export converts catalog snapshots to and from the JSON document
// offered as the dashboard's download.
package export

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

// FormatVersion is written into every document's metadata
const FormatVersion = "1.0"

// Metadata describes an export document
type Metadata struct {
	ExportedAt      time.Time `json:"exportedAt"`
	Version         string    `json:"version"`
	SnapshotVersion uint64    `json:"snapshotVersion"`
	TotalProducts   int       `json:"totalProducts"`
	TotalSuppliers  int       `json:"totalSuppliers"`
}

// Document is the serialized form. Null prices are kept as JSON null so an
// import restores the same unknown markers.
type Document struct {
	Metadata  Metadata           `json:"metadata"`
	Products  []domain.Product   `json:"products"`
	Suppliers []domain.Supplier  `json:"suppliers"`
	Prices    domain.PriceMatrix `json:"prices"`
	Exported  time.Time          `json:"exported"`
}

// JSONExporter implements domain.Exporter
type JSONExporter struct {
	indent bool
}

// NewJSONExporter creates an exporter. Indented output is meant for
// human-facing downloads.
func NewJSONExporter(indent bool) *JSONExporter {
	return &JSONExporter{indent: indent}
}

// Export serializes products, suppliers, the full matrix and the timestamp
func (e *JSONExporter) Export(snapshot *domain.Snapshot, exportedAt time.Time) ([]byte, error) {
	exportedAt = exportedAt.UTC()
	doc := Document{
		Metadata: Metadata{
			ExportedAt:      exportedAt,
			Version:         FormatVersion,
			SnapshotVersion: snapshot.Version,
			TotalProducts:   len(snapshot.Products),
			TotalSuppliers:  len(snapshot.Suppliers),
		},
		Products:  snapshot.Products,
		Suppliers: snapshot.Suppliers,
		Prices:    snapshot.Prices,
		Exported:  exportedAt,
	}

	if e.indent {
		return json.MarshalIndent(doc, "", "  ")
	}
	return json.Marshal(doc)
}

// Import parses a document and checks the matrix references only known
// products and suppliers
func (e *JSONExporter) Import(data []byte) (*domain.Snapshot, time.Time, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", domain.ErrInvalidExport, err)
	}

	if err := validate(&doc); err != nil {
		return nil, time.Time{}, err
	}

	snapshot := &domain.Snapshot{
		Version:   doc.Metadata.SnapshotVersion,
		Products:  doc.Products,
		Suppliers: doc.Suppliers,
		Prices:    doc.Prices,
		UpdatedAt: doc.Exported,
	}
	if snapshot.Products == nil {
		snapshot.Products = []domain.Product{}
	}
	if snapshot.Suppliers == nil {
		snapshot.Suppliers = []domain.Supplier{}
	}
	if snapshot.Prices == nil {
		snapshot.Prices = domain.PriceMatrix{}
	}
	for _, p := range snapshot.Products {
		if _, ok := snapshot.Prices[p.ID]; !ok {
			snapshot.Prices[p.ID] = map[domain.SupplierID]*float64{}
		}
	}

	exportedAt := doc.Exported
	if exportedAt.IsZero() {
		exportedAt = doc.Metadata.ExportedAt
	}

	return snapshot, exportedAt, nil
}

func validate(doc *Document) error {
	products := make(map[domain.ProductID]struct{}, len(doc.Products))
	for _, p := range doc.Products {
		if _, dup := products[p.ID]; dup {
			return fmt.Errorf("%w: duplicate product id %d", domain.ErrInvalidExport, p.ID)
		}
		products[p.ID] = struct{}{}
	}

	suppliers := make(map[domain.SupplierID]struct{}, len(doc.Suppliers))
	for _, s := range doc.Suppliers {
		if _, dup := suppliers[s.ID]; dup {
			return fmt.Errorf("%w: duplicate supplier id %d", domain.ErrInvalidExport, s.ID)
		}
		if !s.Status.Valid() {
			return fmt.Errorf("%w: supplier %d has unknown status %q", domain.ErrInvalidExport, s.ID, s.Status)
		}
		suppliers[s.ID] = struct{}{}
	}

	for productID, row := range doc.Prices {
		if _, ok := products[productID]; !ok {
			return fmt.Errorf("%w: prices reference unknown product %d", domain.ErrInvalidExport, productID)
		}
		for supplierID, p := range row {
			if _, ok := suppliers[supplierID]; !ok {
				return fmt.Errorf("%w: prices reference unknown supplier %d", domain.ErrInvalidExport, supplierID)
			}
			if p != nil && (*p < 0 || math.IsNaN(*p) || math.IsInf(*p, 0)) {
				return fmt.Errorf("%w: invalid price %v for product %d supplier %d", domain.ErrInvalidExport, *p, productID, supplierID)
			}
		}
	}

	return nil
}
