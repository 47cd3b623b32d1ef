package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/export"
)

// MockSnapshotRepository is an in-memory domain.SnapshotRepository
type MockSnapshotRepository struct {
	mu        sync.Mutex
	snapshot  *domain.Snapshot
	loadError error
	saveError error
	saves     int
}

func (m *MockSnapshotRepository) Load(ctx context.Context) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadError != nil {
		return nil, m.loadError
	}
	if m.snapshot == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	return m.snapshot.Clone(), nil
}

func (m *MockSnapshotRepository) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.snapshot = snapshot.Clone()
	m.saves++
	return nil
}

// MockCacheRepository is a map-backed domain.CacheRepository
type MockCacheRepository struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{data: make(map[string][]byte)}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		m.hits++
		return v, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type serviceFixture struct {
	service *DashboardService
	repo    *MockSnapshotRepository
	cache   *MockCacheRepository
	source  *fakeSource
}

func newTestService(t *testing.T, tier domain.Tier) serviceFixture {
	t.Helper()

	limits, err := domain.LimitsFor(tier)
	require.NoError(t, err)

	repo := &MockSnapshotRepository{}
	cache := NewMockCacheRepository()
	source := newFakeSource(nil)

	svc, err := NewDashboardService(context.Background(), repo, cache, source, export.NewJSONExporter(false), DashboardServiceConfig{
		Limits: limits,
		Seed:   SampleSnapshot(fixedNow),
	})
	require.NoError(t, err)

	tick := fixedNow
	svc.clock = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	t.Cleanup(svc.Close)

	return serviceFixture{service: svc, repo: repo, cache: cache, source: source}
}

func TestNewDashboardService_SeedsEmptyRepository(t *testing.T) {
	f := newTestService(t, domain.TierPro)

	assert.Equal(t, 1, f.repo.saves)
	assert.Len(t, f.service.Products(), 5)
	assert.Len(t, f.service.Suppliers(), 4)
}

func TestNewDashboardService_LoadsStoredSnapshot(t *testing.T) {
	stored := SampleSnapshot(fixedNow)
	stored.Version = 9
	stored.Prices[99] = map[domain.SupplierID]*float64{1: domain.Price(1)}
	repo := &MockSnapshotRepository{snapshot: stored}

	svc, err := NewDashboardService(context.Background(), repo, NewMockCacheRepository(), newFakeSource(nil), export.NewJSONExporter(false), DashboardServiceConfig{
		Limits: domain.DefaultTierLimits[domain.TierPro],
		Seed:   domain.NewSnapshot(),
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(9), svc.Current().Version)
	assert.NotContains(t, svc.Current().Prices, domain.ProductID(99))
	assert.Zero(t, repo.saves)
}

func TestNewDashboardService_LoadError(t *testing.T) {
	repo := &MockSnapshotRepository{loadError: errors.New("connection refused")}

	_, err := NewDashboardService(context.Background(), repo, NewMockCacheRepository(), newFakeSource(nil), export.NewJSONExporter(false), DashboardServiceConfig{})
	assert.Error(t, err)
}

func TestDashboardService_CreateProductQuota(t *testing.T) {
	f := newTestService(t, domain.TierFree)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.service.CreateProduct(ctx, domain.ProductInput{Name: "Extra", SKU: "EX", Category: domain.CategoryOther})
		require.NoError(t, err)
	}

	_, err := f.service.CreateProduct(ctx, domain.ProductInput{Name: "One too many", SKU: "EX", Category: domain.CategoryOther})
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Len(t, f.service.Products(), 10)
}

func TestDashboardService_CreateProductValidation(t *testing.T) {
	f := newTestService(t, domain.TierPro)

	_, err := f.service.CreateProduct(context.Background(), domain.ProductInput{Name: "  ", SKU: "X", Category: domain.CategoryOther})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Equal(t, uint64(1), f.service.Current().Version)
}

func TestDashboardService_CreateSupplierQuota(t *testing.T) {
	f := newTestService(t, domain.TierFree)

	_, err := f.service.CreateSupplier(context.Background(), domain.SupplierInput{Name: "Vendor", URL: "https://vendor.example"})
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
}

func TestDashboardService_SupplierLifecycle(t *testing.T) {
	f := newTestService(t, domain.TierPro)
	ctx := context.Background()

	sup, err := f.service.CreateSupplier(ctx, domain.SupplierInput{Name: "Vendor", URL: "https://vendor.example"})
	require.NoError(t, err)
	assert.Equal(t, domain.SupplierPending, sup.Status)

	require.NoError(t, f.service.SetPrice(ctx, 1, sup.ID, domain.Price(1.00)))

	// pending suppliers do not take part in comparisons
	cmp, err := f.service.Comparison(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 22.50, cmp.Best.Price)

	_, err = f.service.SetSupplierStatus(ctx, sup.ID, domain.SupplierActive)
	require.NoError(t, err)
	cmp, err = f.service.Comparison(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.00, cmp.Best.Price)
	assert.Equal(t, sup.ID, cmp.Best.Supplier.ID)

	require.NoError(t, f.service.DeleteSupplier(ctx, sup.ID))
	for _, row := range f.service.Current().Prices {
		assert.NotContains(t, row, sup.ID)
	}
}

func TestDashboardService_DeleteProduct(t *testing.T) {
	f := newTestService(t, domain.TierPro)
	ctx := context.Background()

	require.NoError(t, f.service.DeleteProduct(ctx, 1))
	assert.NotContains(t, f.service.Current().Prices, domain.ProductID(1))

	_, err := f.service.Comparison(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.ErrorIs(t, f.service.DeleteProduct(ctx, 1), domain.ErrProductNotFound)
}

func TestDashboardService_SaveFailureKeepsSnapshot(t *testing.T) {
	f := newTestService(t, domain.TierPro)
	before := f.service.Current()
	f.repo.saveError = errors.New("disk full")

	err := f.service.SetPrice(context.Background(), 1, 1, domain.Price(1))
	assert.Error(t, err)
	assert.Same(t, before, f.service.Current())
}

func TestDashboardService_ComparisonsCachedPerVersion(t *testing.T) {
	f := newTestService(t, domain.TierPro)
	ctx := context.Background()

	first, err := f.service.Comparisons(ctx, ComparisonQuery{})
	require.NoError(t, err)
	require.Len(t, first, 5)
	assert.Zero(t, f.cache.hits)

	second, err := f.service.Comparisons(ctx, ComparisonQuery{Sort: SortByPrice})
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)
	assert.Equal(t, domain.ProductID(4), second[0].Product.ID)

	// a write produces a new version and a fresh report
	require.NoError(t, f.service.SetPrice(ctx, 4, 1, domain.Price(100)))
	third, err := f.service.Comparisons(ctx, ComparisonQuery{Sort: SortBySavings, Direction: SortDesc})
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)
	assert.Equal(t, domain.ProductID(4), third[0].Product.ID)
	assert.Equal(t, 100.0, third[0].Worst.Price)

	_, err = f.service.Comparisons(ctx, ComparisonQuery{Sort: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestDashboardService_Stats(t *testing.T) {
	f := newTestService(t, domain.TierPro)

	stats := f.service.Stats(context.Background())
	assert.Equal(t, 5, stats.TrackedProducts)
	assert.Equal(t, 3, stats.ActiveSuppliers)
	assert.Equal(t, 5, stats.QualifyingProducts)
	assert.True(t, stats.LastUpdated.Equal(fixedNow))
}

func TestDashboardService_Usage(t *testing.T) {
	f := newTestService(t, domain.TierFree)

	usage := f.service.Usage()
	assert.Equal(t, 5, usage.Products)
	assert.Equal(t, 5, usage.RemainingProducts)
	assert.Equal(t, 0, usage.RemainingSuppliers)
}

func TestDashboardService_RefreshCommits(t *testing.T) {
	f := newTestService(t, domain.TierPro)
	ctx := context.Background()

	refreshed := f.service.Current().Prices.Clone()
	refreshed[1][1] = domain.Price(5.00)
	f.source.result = &domain.RefreshResult{Prices: refreshed, Updated: refreshed.Observed()}

	_, err := f.service.StartRefresh(ctx)
	require.NoError(t, err)
	close(f.source.release)

	job, err := f.service.WaitRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RefreshCompleted, job.Status)

	current := f.service.Current()
	assert.Equal(t, uint64(2), current.Version)
	p, _ := current.Prices.Lookup(1, 1)
	assert.Equal(t, 5.00, p)
	for _, sup := range current.Suppliers {
		if sup.IsActive() {
			assert.NotNil(t, sup.LastScrapedAt)
		} else {
			assert.Nil(t, sup.LastScrapedAt)
		}
	}
}

func TestDashboardService_RefreshSupersededByWrite(t *testing.T) {
	f := newTestService(t, domain.TierPro)
	ctx := context.Background()

	refreshed := f.service.Current().Prices.Clone()
	refreshed[1][1] = domain.Price(5.00)
	f.source.result = &domain.RefreshResult{Prices: refreshed}

	_, err := f.service.StartRefresh(ctx)
	require.NoError(t, err)
	<-f.source.started

	// a manual edit lands while the refresh is in flight
	require.NoError(t, f.service.SetPrice(ctx, 2, 1, domain.Price(40.00)))
	close(f.source.release)

	job, err := f.service.WaitRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RefreshSuperseded, job.Status)

	current := f.service.Current()
	p, _ := current.Prices.Lookup(1, 1)
	assert.Equal(t, 24.99, p)
	p, _ = current.Prices.Lookup(2, 1)
	assert.Equal(t, 40.00, p)
}

func TestDashboardService_ApplyRefreshAfterContextEnds(t *testing.T) {
	f := newTestService(t, domain.TierPro)
	before := f.service.Current()

	refreshed := before.Prices.Clone()
	refreshed[1][1] = domain.Price(5.00)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.service.ApplyRefresh(cancelled, before.Version, refreshed)
	assert.ErrorIs(t, err, context.Canceled)

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	err = f.service.ApplyRefresh(expired, before.Version, refreshed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	current := f.service.Current()
	assert.Same(t, before, current)
	p, _ := current.Prices.Lookup(1, 1)
	assert.Equal(t, 24.99, p)
}

func TestDashboardService_RefreshInProgress(t *testing.T) {
	f := newTestService(t, domain.TierPro)
	ctx := context.Background()
	f.source.result = &domain.RefreshResult{Prices: f.service.Current().Prices.Clone()}

	first, err := f.service.StartRefresh(ctx)
	require.NoError(t, err)

	running, err := f.service.StartRefresh(ctx)
	assert.ErrorIs(t, err, domain.ErrRefreshInProgress)
	assert.Equal(t, first.ID, running.ID)

	require.NoError(t, f.service.CancelRefresh())
	job, err := f.service.WaitRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RefreshCancelled, job.Status)
	assert.Equal(t, uint64(1), f.service.Current().Version)
}

func TestDashboardService_RefreshRequiresFeature(t *testing.T) {
	limits := domain.TierLimits{Tier: "viewer", MaxProducts: 10, MaxSuppliers: 10}
	svc, err := NewDashboardService(context.Background(), &MockSnapshotRepository{}, NewMockCacheRepository(), newFakeSource(nil), export.NewJSONExporter(false), DashboardServiceConfig{
		Limits: limits,
		Seed:   SampleSnapshot(fixedNow),
	})
	require.NoError(t, err)

	_, err = svc.StartRefresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrFeatureUnavailable)

	_, err = svc.Export(context.Background())
	assert.ErrorIs(t, err, domain.ErrFeatureUnavailable)
}

func TestDashboardService_ExportImport(t *testing.T) {
	f := newTestService(t, domain.TierPro)
	ctx := context.Background()

	file, err := f.service.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "price-comparison-2026-10-01.json", file.Filename)
	assert.NotEmpty(t, file.Data)

	original := f.service.Current()
	require.NoError(t, f.service.DeleteProduct(ctx, 1))
	require.NoError(t, f.service.SetPrice(ctx, 2, 1, nil))

	imported, err := f.service.Import(ctx, file.Data)
	require.NoError(t, err)

	assert.Equal(t, uint64(4), imported.Version)
	assert.Len(t, imported.Products, 5)
	assert.True(t, original.Prices.Equal(imported.Prices))
}

func TestDashboardService_ImportRejects(t *testing.T) {
	f := newTestService(t, domain.TierFree)
	ctx := context.Background()

	_, err := f.service.Import(ctx, []byte(`{"products": nope}`))
	assert.ErrorIs(t, err, domain.ErrInvalidExport)

	big := SampleSnapshot(fixedNow)
	for i := 6; i <= 11; i++ {
		big, _ = AddProduct(big, domain.ProductInput{Name: "P", SKU: "P", Category: domain.CategoryOther}, fixedNow)
	}
	data, err := export.NewJSONExporter(false).Export(big, fixedNow)
	require.NoError(t, err)

	_, err = f.service.Import(ctx, data)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Equal(t, uint64(1), f.service.Current().Version)
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "price-comparison-2026-01-09.json", ExportFilename(time.Date(2026, 1, 9, 23, 59, 0, 0, time.UTC)))
}
