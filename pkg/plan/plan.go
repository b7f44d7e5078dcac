package plan

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Feature names a plan capability or countable limit.
type Feature string

const (
	FeatureForms               Feature = "forms"
	FeatureSubmissionsPerMonth Feature = "submissions_per_month"
	FeatureFileUploadSize      Feature = "file_upload_size"
	FeatureTeamMembers         Feature = "team_members"
	FeatureCustomDomain        Feature = "custom_domain"
	FeatureWhiteLabel          Feature = "white_label"
	FeatureAPIAccess           Feature = "api_access"
	FeatureIntegrations        Feature = "integrations"
	FeaturePrioritySupport     Feature = "priority_support"
	FeatureFormLogic           Feature = "form_logic"
	FeatureFileUploads         Feature = "file_uploads"
	FeatureEmailNotifications  Feature = "email_notifications"
	FeatureFormAnalytics       Feature = "form_analytics"
	FeatureExportData          Feature = "export_data"
	FeatureRemoveBranding      Feature = "remove_branding"
)

// Unlimited lifts a numeric limit entirely.
const Unlimited int64 = -1

// Value is a feature value: 0/1 for boolean flags, a count for limits,
// Unlimited (-1) for no cap.
type Value int64

// Bool reports whether the feature is present. Any nonzero value, including
// Unlimited, reads as true.
func (v Value) Bool() bool { return v != 0 }

// Limit returns the value as a numeric cap.
func (v Value) Limit() int64 { return int64(v) }

// UnmarshalYAML accepts both booleans and integers so catalogs can write
// flags as true/false and limits as numbers.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var b bool
	if err := node.Decode(&b); err == nil {
		if b {
			*v = 1
		} else {
			*v = 0
		}
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("plan: feature value must be bool or integer: %w", err)
	}
	*v = Value(n)
	return nil
}

// Cycle is a billing recurrence period.
type Cycle string

const (
	CycleMonthly Cycle = "monthly"
	CycleYearly  Cycle = "yearly"
)

// Valid reports whether the cycle is a recognized value.
func (c Cycle) Valid() bool {
	return c == CycleMonthly || c == CycleYearly
}

// Plan bundles pricing, feature flags, and secondary numeric caps.
type Plan struct {
	ID           string
	Name         string
	Description  string
	PriceMonthly decimal.Decimal
	PriceYearly  decimal.Decimal
	Features     map[Feature]Value
	Limits       map[string]int64
}

// Price returns the plan's price for the given billing cycle.
func (p Plan) Price(cycle Cycle) (decimal.Decimal, error) {
	switch cycle {
	case CycleMonthly:
		return p.PriceMonthly, nil
	case CycleYearly:
		return p.PriceYearly, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidCycle, cycle)
	}
}

// Free reports whether the plan carries no recurring charge on either cycle.
func (p Plan) Free() bool {
	return p.PriceMonthly.IsZero() && p.PriceYearly.IsZero()
}
