package usecase

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

// DefaultFloorPrice keeps simulated prices positive
const DefaultFloorPrice = 0.99

// ApplySimulatedRefresh returns a new matrix where every non-null price moved
// by a uniform delta in [-magnitude/2, +magnitude/2], clamped at floorPrice.
// Null entries stay null. The input matrix is not modified.
func ApplySimulatedRefresh(matrix domain.PriceMatrix, magnitude, floorPrice float64, rng *rand.Rand) domain.PriceMatrix {
	out := matrix.Clone()
	for _, row := range out {
		for supplierID, p := range row {
			if p == nil {
				continue
			}
			delta := (rng.Float64() - 0.5) * magnitude
			row[supplierID] = domain.Price(math.Max(floorPrice, *p+delta))
		}
	}
	return out
}

// SimulatedSourceConfig holds configuration for the simulated observation source
type SimulatedSourceConfig struct {
	Magnitude  float64
	FloorPrice float64
	Delay      time.Duration
	Seed       uint64
}

// SimulatedSource stands in for live price scraping by jittering the
// prices already in the matrix.
type SimulatedSource struct {
	magnitude  float64
	floorPrice float64
	delay      time.Duration
	current    func() *domain.Snapshot

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedSource creates a simulated source. current supplies the
// snapshot GetPrice reads from.
func NewSimulatedSource(config SimulatedSourceConfig, current func() *domain.Snapshot) *SimulatedSource {
	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &SimulatedSource{
		magnitude:  config.Magnitude,
		floorPrice: config.FloorPrice,
		delay:      config.Delay,
		current:    current,
		rng:        rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// GetPrice returns a jittered copy of the current observation, or nil when
// the pair has never been observed
func (s *SimulatedSource) GetPrice(ctx context.Context, product domain.Product, supplier domain.Supplier) (*float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.current == nil {
		return nil, nil
	}

	price, ok := s.current().Prices.Lookup(product.ID, supplier.ID)
	if !ok {
		return nil, nil
	}

	s.mu.Lock()
	delta := (s.rng.Float64() - 0.5) * s.magnitude
	s.mu.Unlock()

	return domain.Price(math.Max(s.floorPrice, price+delta)), nil
}

// RefreshAll waits out the simulated latency and jitters the whole matrix
func (s *SimulatedSource) RefreshAll(ctx context.Context, snapshot *domain.Snapshot) (*domain.RefreshResult, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	prices := ApplySimulatedRefresh(snapshot.Prices, s.magnitude, s.floorPrice, s.rng)
	s.mu.Unlock()

	return &domain.RefreshResult{
		Prices:  prices,
		Updated: prices.Observed(),
	}, nil
}
