package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pricelens/backend/internal/domain"
)

// DashboardServiceConfig holds configuration for the dashboard service
type DashboardServiceConfig struct {
	Limits         domain.TierLimits
	CacheTTL       time.Duration
	RefreshTimeout time.Duration
	// RefreshFeature is the capability a tier needs to trigger a refresh
	RefreshFeature domain.Feature
	// Seed is stored when the repository holds no snapshot yet
	Seed *domain.Snapshot
}

// ExportFile is a serialized export ready for download
type ExportFile struct {
	Filename   string
	Data       []byte
	ExportedAt time.Time
}

// DashboardService owns the current snapshot. Writers are serialized and
// publish a fresh immutable snapshot; readers load it without locking.
type DashboardService struct {
	repo     domain.SnapshotRepository
	cache    domain.CacheRepository
	exporter domain.Exporter
	policy   *AccessPolicy

	refresher      *Refresher
	refreshFeature domain.Feature
	cacheTTL       time.Duration
	clock          func() time.Time
	logger         *log.Entry

	mu      sync.Mutex
	current atomic.Pointer[domain.Snapshot]
}

// NewDashboardService loads the stored snapshot, seeding the repository on
// first start, and wires a refresher over the observation source.
func NewDashboardService(
	ctx context.Context,
	repo domain.SnapshotRepository,
	cache domain.CacheRepository,
	source domain.ObservationSource,
	exporter domain.Exporter,
	config DashboardServiceConfig,
) (*DashboardService, error) {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}
	refreshFeature := config.RefreshFeature
	if refreshFeature == "" {
		refreshFeature = domain.FeaturePriceTracking
	}

	s := &DashboardService{
		repo:           repo,
		cache:          cache,
		exporter:       exporter,
		policy:         NewAccessPolicy(config.Limits),
		refreshFeature: refreshFeature,
		cacheTTL:       cacheTTL,
		clock:          time.Now,
		logger:         log.WithField("component", "dashboard"),
	}

	snapshot, err := repo.Load(ctx)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		snapshot = config.Seed
		if snapshot == nil {
			snapshot = domain.NewSnapshot()
		}
		if err := repo.Save(ctx, snapshot); err != nil {
			return nil, fmt.Errorf("failed to store initial snapshot: %w", err)
		}
		s.logger.WithField("products", len(snapshot.Products)).Info("initialized catalog")
	} else if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	snapshot.Prices = PruneOrphans(snapshot.Prices, snapshot.Products, snapshot.Suppliers)
	s.current.Store(snapshot)

	s.refresher = NewRefresher(source, s, RefresherConfig{Timeout: config.RefreshTimeout})

	return s, nil
}

// Current returns the published snapshot. Callers must treat it as read-only.
func (s *DashboardService) Current() *domain.Snapshot {
	return s.current.Load()
}

// Products lists the catalog in insertion order
func (s *DashboardService) Products() []domain.Product {
	return s.Current().Clone().Products
}

// Suppliers lists the roster in insertion order
func (s *DashboardService) Suppliers() []domain.Supplier {
	return s.Current().Clone().Suppliers
}

// CreateProduct adds a product if the tier's product quota allows it
func (s *DashboardService) CreateProduct(ctx context.Context, input domain.ProductInput) (domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return domain.Product{}, err
	}

	var created domain.Product
	err := s.commit(ctx, func(cur *domain.Snapshot, now time.Time) (*domain.Snapshot, error) {
		if err := s.policy.CanAddProduct(len(cur.Products)); err != nil {
			return nil, err
		}
		next, p := AddProduct(cur, input, now)
		created = p
		return next, nil
	})
	return created, err
}

// UpdateProduct edits an existing product
func (s *DashboardService) UpdateProduct(ctx context.Context, id domain.ProductID, input domain.ProductInput) (domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return domain.Product{}, err
	}

	var updated domain.Product
	err := s.commit(ctx, func(cur *domain.Snapshot, now time.Time) (*domain.Snapshot, error) {
		next, p, err := UpdateProduct(cur, id, input, now)
		updated = p
		return next, err
	})
	return updated, err
}

// DeleteProduct removes a product and its observations
func (s *DashboardService) DeleteProduct(ctx context.Context, id domain.ProductID) error {
	return s.commit(ctx, func(cur *domain.Snapshot, now time.Time) (*domain.Snapshot, error) {
		return RemoveProduct(cur, id, now)
	})
}

// CreateSupplier registers a pending supplier if the quota allows it
func (s *DashboardService) CreateSupplier(ctx context.Context, input domain.SupplierInput) (domain.Supplier, error) {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.URL) == "" {
		return domain.Supplier{}, fmt.Errorf("%w: supplier name and url are required", domain.ErrInvalidRequest)
	}

	var created domain.Supplier
	err := s.commit(ctx, func(cur *domain.Snapshot, now time.Time) (*domain.Snapshot, error) {
		if err := s.policy.CanAddSupplier(len(cur.Suppliers)); err != nil {
			return nil, err
		}
		next, sup := AddSupplier(cur, input, now)
		created = sup
		return next, nil
	})
	return created, err
}

// SetSupplierStatus transitions a supplier, e.g. pending -> active
func (s *DashboardService) SetSupplierStatus(ctx context.Context, id domain.SupplierID, status domain.SupplierStatus) (domain.Supplier, error) {
	var updated domain.Supplier
	err := s.commit(ctx, func(cur *domain.Snapshot, now time.Time) (*domain.Snapshot, error) {
		next, sup, err := SetSupplierStatus(cur, id, status, now)
		updated = sup
		return next, err
	})
	return updated, err
}

// DeleteSupplier removes a supplier and its price column
func (s *DashboardService) DeleteSupplier(ctx context.Context, id domain.SupplierID) error {
	return s.commit(ctx, func(cur *domain.Snapshot, now time.Time) (*domain.Snapshot, error) {
		return RemoveSupplier(cur, id, now)
	})
}

// SetPrice records or clears one observation
func (s *DashboardService) SetPrice(ctx context.Context, productID domain.ProductID, supplierID domain.SupplierID, price *float64) error {
	return s.commit(ctx, func(cur *domain.Snapshot, now time.Time) (*domain.Snapshot, error) {
		return SetPrice(cur, productID, supplierID, price, now)
	})
}

// Comparisons returns the comparison table for the current snapshot
func (s *DashboardService) Comparisons(ctx context.Context, query ComparisonQuery) ([]domain.Comparison, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	report := s.report(ctx, s.Current())
	return ApplyQuery(report, query), nil
}

// Comparison returns one product's comparison
func (s *DashboardService) Comparison(ctx context.Context, id domain.ProductID) (domain.Comparison, error) {
	snapshot := s.Current()
	product, ok := snapshot.Product(id)
	if !ok {
		return domain.Comparison{}, fmt.Errorf("%w: %d", domain.ErrProductNotFound, id)
	}
	return CompareProduct(product, snapshot.Suppliers, snapshot.Prices), nil
}

// Stats returns the headline figures for the current snapshot
func (s *DashboardService) Stats(ctx context.Context) domain.Stats {
	snapshot := s.Current()
	stats := AggregateStats(snapshot.Products, snapshot.Suppliers, snapshot.Prices)
	stats.LastUpdated = snapshot.UpdatedAt
	return stats
}

// Usage reports quota consumption against the tier
func (s *DashboardService) Usage() Usage {
	snapshot := s.Current()
	return s.policy.Usage(len(snapshot.Products), len(snapshot.Suppliers))
}

// StartRefresh launches a background refresh of every price
func (s *DashboardService) StartRefresh(ctx context.Context) (domain.RefreshJob, error) {
	if err := s.policy.Require(s.refreshFeature); err != nil {
		return domain.RefreshJob{}, err
	}
	return s.refresher.Start(ctx)
}

// RefreshStatus returns the latest refresh job
func (s *DashboardService) RefreshStatus() (domain.RefreshJob, bool) {
	return s.refresher.Status()
}

// CancelRefresh aborts the running refresh
func (s *DashboardService) CancelRefresh() error {
	return s.refresher.Cancel()
}

// WaitRefresh blocks until the running refresh finishes
func (s *DashboardService) WaitRefresh(ctx context.Context) (domain.RefreshJob, error) {
	return s.refresher.Wait(ctx)
}

// ApplyRefresh commits refreshed prices unless the snapshot moved on since
// the refresh started
func (s *DashboardService) ApplyRefresh(ctx context.Context, baseVersion uint64, prices domain.PriceMatrix) error {
	return s.commit(ctx, func(cur *domain.Snapshot, now time.Time) (*domain.Snapshot, error) {
		// checked under the writer lock so a refresh cancelled or timed out
		// while waiting for it never commits
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cur.Version != baseVersion {
			return nil, fmt.Errorf("%w: base %d, current %d", domain.ErrVersionConflict, baseVersion, cur.Version)
		}
		next := WithPrices(cur, prices, now)
		for i := range next.Suppliers {
			if next.Suppliers[i].IsActive() {
				scraped := now
				next.Suppliers[i].LastScrapedAt = &scraped
			}
		}
		return next, nil
	})
}

// Export serializes the current snapshot
func (s *DashboardService) Export(ctx context.Context) (ExportFile, error) {
	if err := s.policy.Require(domain.FeatureBasicExport); err != nil {
		return ExportFile{}, err
	}

	now := s.clock().UTC()
	data, err := s.exporter.Export(s.Current(), now)
	if err != nil {
		return ExportFile{}, fmt.Errorf("failed to export snapshot: %w", err)
	}

	return ExportFile{
		Filename:   ExportFilename(now),
		Data:       data,
		ExportedAt: now,
	}, nil
}

// Import replaces the catalog with the contents of an export document
func (s *DashboardService) Import(ctx context.Context, data []byte) (*domain.Snapshot, error) {
	imported, _, err := s.exporter.Import(data)
	if err != nil {
		return nil, err
	}

	err = s.commit(ctx, func(cur *domain.Snapshot, now time.Time) (*domain.Snapshot, error) {
		limits := s.policy.Limits()
		if limits.MaxProducts != domain.Unlimited && len(imported.Products) > limits.MaxProducts {
			return nil, fmt.Errorf("%w: import has %d products", domain.ErrQuotaExceeded, len(imported.Products))
		}
		if limits.MaxSuppliers != domain.Unlimited && len(imported.Suppliers) > limits.MaxSuppliers {
			return nil, fmt.Errorf("%w: import has %d suppliers", domain.ErrQuotaExceeded, len(imported.Suppliers))
		}

		next := imported.Clone()
		next.Version = cur.Version
		next.Prices = PruneOrphans(next.Prices, next.Products, next.Suppliers)
		return stamp(next, now), nil
	})
	if err != nil {
		return nil, err
	}
	return s.Current(), nil
}

// Close cancels any running refresh
func (s *DashboardService) Close() {
	if err := s.refresher.Cancel(); err == nil {
		s.logger.Info("cancelled running refresh on shutdown")
	}
}

// ExportFilename names an export download after its date
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("price-comparison-%s.json", t.Format("2006-01-02"))
}

// commit applies fn to the current snapshot, persists the result and then
// publishes it. Nothing is published when fn or the save fails.
func (s *DashboardService) commit(ctx context.Context, fn func(cur *domain.Snapshot, now time.Time) (*domain.Snapshot, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.current.Load(), s.clock())
	if err != nil {
		return err
	}

	if err := s.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.current.Store(next)
	return nil
}

// report returns the full comparison table, cached per snapshot version
func (s *DashboardService) report(ctx context.Context, snapshot *domain.Snapshot) []domain.Comparison {
	key := fmt.Sprintf("comparison:v%d:%d", snapshot.Version, snapshot.UpdatedAt.UnixNano())

	if data, err := s.cache.Get(ctx, key); err == nil {
		var cached []domain.Comparison
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached
		}
	}

	report := CompareAll(snapshot.Products, snapshot.Suppliers, snapshot.Prices)

	if data, err := json.Marshal(report); err == nil {
		if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
			s.logger.WithError(err).Warn("failed to cache comparison report")
		}
	}

	return report
}

func validateProductInput(input domain.ProductInput) error {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.SKU) == "" || strings.TrimSpace(string(input.Category)) == "" {
		return fmt.Errorf("%w: product name, sku and category are required", domain.ErrInvalidRequest)
	}
	return nil
}
