package plan

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FallbackPlanID is the plan used for tenants with no active subscription and
// for unknown plan references.
const FallbackPlanID = "free"

// Registry is an immutable plan catalog. It performs pure lookups; plans are
// never mutated after construction.
type Registry struct {
	plans map[string]Plan
}

// NewRegistry validates and wraps a plan catalog. The catalog must contain
// the fallback "free" plan and every map key must match its plan's ID.
func NewRegistry(plans map[string]Plan) (*Registry, error) {
	if _, ok := plans[FallbackPlanID]; !ok {
		return nil, fmt.Errorf("%w: missing fallback plan %q", ErrInvalidCatalog, FallbackPlanID)
	}
	for id, p := range plans {
		if p.ID != id {
			return nil, fmt.Errorf("%w: map key %q != plan ID %q", ErrInvalidCatalog, id, p.ID)
		}
		if p.PriceMonthly.IsNegative() || p.PriceYearly.IsNegative() {
			return nil, fmt.Errorf("%w: plan %q has negative price", ErrInvalidCatalog, id)
		}
	}

	cloned := make(map[string]Plan, len(plans))
	for id, p := range plans {
		cloned[id] = p
	}
	return &Registry{plans: cloned}, nil
}

// Plan returns the plan for id.
func (r *Registry) Plan(id string) (Plan, error) {
	p, ok := r.plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrPlanNotFound, id)
	}
	return p, nil
}

// FeaturesFor returns the feature map for id, falling back to the free plan
// when id is unknown or empty (no subscription).
func (r *Registry) FeaturesFor(id string) map[Feature]Value {
	p, ok := r.plans[id]
	if !ok {
		p = r.plans[FallbackPlanID]
	}
	return p.Features
}

// HasFeature reports whether the plan grants a feature. A missing key reads
// as false; 0 reads as absent; -1 or any nonzero value reads as present.
func (r *Registry) HasFeature(id string, f Feature) bool {
	return r.FeaturesFor(id)[f].Bool()
}

// FeatureLimit returns the numeric cap for a feature. Missing keys return 0,
// which is a hard floor: only Unlimited (-1) removes the cap.
func (r *Registry) FeatureLimit(id string, f Feature) int64 {
	return r.FeaturesFor(id)[f].Limit()
}

// WithinLimit reports whether current usage leaves room for one more unit
// under the plan's cap for f.
func (r *Registry) WithinLimit(id string, f Feature, current int64) bool {
	limit := r.FeatureLimit(id, f)
	if limit == Unlimited {
		return true
	}
	return current < limit
}

// Price returns the price of a plan for the given billing cycle.
func (r *Registry) Price(id string, cycle Cycle) (decimal.Decimal, error) {
	p, err := r.Plan(id)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Price(cycle)
}

// IDs returns all plan identifiers in the catalog.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.plans))
	for id := range r.plans {
		ids = append(ids, id)
	}
	return ids
}
