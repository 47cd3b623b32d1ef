package usecase

import (
	"fmt"

	"github.com/pricelens/backend/internal/domain"
)

// AccessPolicy enforces a subscription tier's quotas and feature set. The
// limits are injected; nothing here reads ambient auth state.
type AccessPolicy struct {
	limits domain.TierLimits
}

// Usage reports quota consumption for the subscription endpoint
type Usage struct {
	Limits             domain.TierLimits `json:"limits"`
	Products           int               `json:"products"`
	Suppliers          int               `json:"suppliers"`
	RemainingProducts  int               `json:"remainingProducts"`
	RemainingSuppliers int               `json:"remainingSuppliers"`
}

// NewAccessPolicy creates a policy for the given limits
func NewAccessPolicy(limits domain.TierLimits) *AccessPolicy {
	return &AccessPolicy{limits: limits}
}

// Limits returns the enforced limits
func (p *AccessPolicy) Limits() domain.TierLimits {
	return p.limits
}

// CanAddProduct checks the product quota against the current count
func (p *AccessPolicy) CanAddProduct(current int) error {
	if !withinQuota(current, p.limits.MaxProducts) {
		return fmt.Errorf("%w: %s tier allows %d products", domain.ErrQuotaExceeded, p.limits.Tier, p.limits.MaxProducts)
	}
	return nil
}

// CanAddSupplier checks the supplier quota against the current count
func (p *AccessPolicy) CanAddSupplier(current int) error {
	if !withinQuota(current, p.limits.MaxSuppliers) {
		return fmt.Errorf("%w: %s tier allows %d suppliers", domain.ErrQuotaExceeded, p.limits.Tier, p.limits.MaxSuppliers)
	}
	return nil
}

// Require fails unless the tier grants the feature
func (p *AccessPolicy) Require(feature domain.Feature) error {
	if !p.limits.Has(feature) {
		return fmt.Errorf("%w: %s requires a plan above %s", domain.ErrFeatureUnavailable, feature, p.limits.Tier)
	}
	return nil
}

// Usage summarizes consumption for the given counts
func (p *AccessPolicy) Usage(products, suppliers int) Usage {
	return Usage{
		Limits:             p.limits,
		Products:           products,
		Suppliers:          suppliers,
		RemainingProducts:  remaining(products, p.limits.MaxProducts),
		RemainingSuppliers: remaining(suppliers, p.limits.MaxSuppliers),
	}
}

func withinQuota(current, max int) bool {
	return max == domain.Unlimited || current < max
}

func remaining(used, max int) int {
	if max == domain.Unlimited {
		return domain.Unlimited
	}
	if used >= max {
		return 0
	}
	return max - used
}
