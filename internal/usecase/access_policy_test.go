package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelens/backend/internal/domain"
)

func TestAccessPolicy_Quotas(t *testing.T) {
	limits, err := domain.LimitsFor(domain.TierFree)
	require.NoError(t, err)
	policy := NewAccessPolicy(limits)

	assert.NoError(t, policy.CanAddProduct(9))
	assert.ErrorIs(t, policy.CanAddProduct(10), domain.ErrQuotaExceeded)
	assert.NoError(t, policy.CanAddSupplier(2))
	assert.ErrorIs(t, policy.CanAddSupplier(3), domain.ErrQuotaExceeded)
}

func TestAccessPolicy_Unlimited(t *testing.T) {
	policy := NewAccessPolicy(domain.DefaultTierLimits[domain.TierEnterprise])

	assert.NoError(t, policy.CanAddProduct(1_000_000))
	assert.NoError(t, policy.CanAddSupplier(1_000_000))

	usage := policy.Usage(50, 7)
	assert.Equal(t, domain.Unlimited, usage.RemainingProducts)
	assert.Equal(t, domain.Unlimited, usage.RemainingSuppliers)
}

func TestAccessPolicy_Require(t *testing.T) {
	free := NewAccessPolicy(domain.DefaultTierLimits[domain.TierFree])
	pro := NewAccessPolicy(domain.DefaultTierLimits[domain.TierPro])

	assert.NoError(t, free.Require(domain.FeaturePriceTracking))
	assert.NoError(t, free.Require(domain.FeatureBasicExport))
	assert.ErrorIs(t, free.Require(domain.FeatureAutoRefresh), domain.ErrFeatureUnavailable)
	assert.NoError(t, pro.Require(domain.FeatureAutoRefresh))
	assert.ErrorIs(t, pro.Require(domain.FeatureCustomIntegrations), domain.ErrFeatureUnavailable)
}

func TestAccessPolicy_Usage(t *testing.T) {
	policy := NewAccessPolicy(domain.DefaultTierLimits[domain.TierFree])

	usage := policy.Usage(4, 5)
	assert.Equal(t, domain.TierFree, usage.Limits.Tier)
	assert.Equal(t, 6, usage.RemainingProducts)
	assert.Equal(t, 0, usage.RemainingSuppliers)
}

func TestAccessPolicy_InjectedLimits(t *testing.T) {
	policy := NewAccessPolicy(domain.TierLimits{Tier: "custom", MaxProducts: 1, MaxSuppliers: 1})

	assert.NoError(t, policy.CanAddProduct(0))
	assert.ErrorIs(t, policy.CanAddProduct(1), domain.ErrQuotaExceeded)
	assert.ErrorIs(t, policy.Require(domain.FeatureBasicExport), domain.ErrFeatureUnavailable)
}
