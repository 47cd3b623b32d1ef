package domain

import "fmt"

// Tier is a subscription plan
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Feature is a capability tag granted by a tier
type Feature string

const (
	FeaturePriceTracking      Feature = "price_tracking"
	FeatureBasicExport        Feature = "basic_export"
	FeatureAutoRefresh        Feature = "auto_refresh"
	FeatureAdvancedExport     Feature = "advanced_export"
	FeatureAPIAccess          Feature = "api_access"
	FeaturePrioritySupport    Feature = "priority_support"
	FeatureCustomIntegrations Feature = "custom_integrations"
)

// Unlimited marks a quota without an upper bound
const Unlimited = -1

// TierLimits is the quota table entry for one tier
type TierLimits struct {
	Tier         Tier      `json:"tier"`
	MaxProducts  int       `json:"maxProducts"`
	MaxSuppliers int       `json:"maxSuppliers"`
	Features     []Feature `json:"features"`
}

// Has reports whether the limits grant the feature
func (l TierLimits) Has(f Feature) bool {
	for _, have := range l.Features {
		if have == f {
			return true
		}
	}
	return false
}

// DefaultTierLimits is the stock quota table
var DefaultTierLimits = map[Tier]TierLimits{
	TierFree: {
		Tier:         TierFree,
		MaxProducts:  10,
		MaxSuppliers: 3,
		Features:     []Feature{FeaturePriceTracking, FeatureBasicExport},
	},
	TierPro: {
		Tier:         TierPro,
		MaxProducts:  100,
		MaxSuppliers: 20,
		Features: []Feature{
			FeaturePriceTracking, FeatureBasicExport, FeatureAutoRefresh,
			FeatureAdvancedExport, FeatureAPIAccess,
		},
	},
	TierEnterprise: {
		Tier:         TierEnterprise,
		MaxProducts:  Unlimited,
		MaxSuppliers: Unlimited,
		Features: []Feature{
			FeaturePriceTracking, FeatureBasicExport, FeatureAutoRefresh,
			FeatureAdvancedExport, FeatureAPIAccess, FeaturePrioritySupport,
			FeatureCustomIntegrations,
		},
	},
}

// LimitsFor looks up the stock limits of a tier
func LimitsFor(t Tier) (TierLimits, error) {
	limits, ok := DefaultTierLimits[t]
	if !ok {
		return TierLimits{}, fmt.Errorf("unknown subscription tier %q", t)
	}
	return limits, nil
}
