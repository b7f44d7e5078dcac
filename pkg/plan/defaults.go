package plan

import "github.com/shopspring/decimal"

// DefaultCatalog returns the built-in plan catalog, used when no external
// catalog file is configured.
func DefaultCatalog() map[string]Plan {
	return map[string]Plan{
		"free": {
			ID:           "free",
			Name:         "Free",
			Description:  "Perfect for trying out the platform",
			PriceMonthly: decimal.Zero,
			PriceYearly:  decimal.Zero,
			Features: map[Feature]Value{
				FeatureForms:               3,
				FeatureSubmissionsPerMonth: 100,
				FeatureFileUploadSize:      5,
				FeatureTeamMembers:         1,
				FeatureFileUploads:         1,
				FeatureEmailNotifications:  1,
			},
			Limits: map[string]int64{
				"max_fields_per_form":   10,
				"max_submissions_stored": 100,
				"data_retention_days":   30,
			},
		},
		"starter": {
			ID:           "starter",
			Name:         "Starter",
			Description:  "For small teams getting started",
			PriceMonthly: decimal.RequireFromString("19.00"),
			PriceYearly:  decimal.RequireFromString("190.00"),
			Features: map[Feature]Value{
				FeatureForms:               20,
				FeatureSubmissionsPerMonth: 1000,
				FeatureFileUploadSize:      25,
				FeatureTeamMembers:         3,
				FeatureFileUploads:         1,
				FeatureEmailNotifications:  1,
				FeatureFormLogic:           1,
				FeatureFormAnalytics:       1,
				FeatureExportData:          1,
			},
			Limits: map[string]int64{
				"max_fields_per_form":   50,
				"max_submissions_stored": 5000,
				"data_retention_days":   180,
			},
		},
		"professional": {
			ID:           "professional",
			Name:         "Professional",
			Description:  "For growing businesses",
			PriceMonthly: decimal.RequireFromString("49.00"),
			PriceYearly:  decimal.RequireFromString("490.00"),
			Features: map[Feature]Value{
				FeatureForms:               Value(Unlimited),
				FeatureSubmissionsPerMonth: 10000,
				FeatureFileUploadSize:      100,
				FeatureTeamMembers:         10,
				FeatureCustomDomain:        1,
				FeatureFileUploads:         1,
				FeatureEmailNotifications:  1,
				FeatureFormLogic:           1,
				FeatureFormAnalytics:       1,
				FeatureExportData:          1,
				FeatureIntegrations:        1,
				FeatureAPIAccess:           1,
				FeatureRemoveBranding:      1,
			},
			Limits: map[string]int64{
				"max_fields_per_form":   200,
				"max_submissions_stored": 50000,
				"data_retention_days":   365,
			},
		},
		"enterprise": {
			ID:           "enterprise",
			Name:         "Enterprise",
			Description:  "For organizations at scale",
			PriceMonthly: decimal.RequireFromString("99.00"),
			PriceYearly:  decimal.RequireFromString("990.00"),
			Features: map[Feature]Value{
				FeatureForms:               Value(Unlimited),
				FeatureSubmissionsPerMonth: Value(Unlimited),
				FeatureFileUploadSize:      500,
				FeatureTeamMembers:         Value(Unlimited),
				FeatureCustomDomain:        1,
				FeatureWhiteLabel:          1,
				FeatureFileUploads:         1,
				FeatureEmailNotifications:  1,
				FeatureFormLogic:           1,
				FeatureFormAnalytics:       1,
				FeatureExportData:          1,
				FeatureIntegrations:        1,
				FeatureAPIAccess:           1,
				FeaturePrioritySupport:     1,
				FeatureRemoveBranding:      1,
			},
			Limits: map[string]int64{
				"max_fields_per_form":   Unlimited,
				"max_submissions_stored": Unlimited,
				"data_retention_days":   Unlimited,
			},
		},
	}
}
