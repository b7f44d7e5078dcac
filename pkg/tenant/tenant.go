package tenant

import (
	"time"

	"github.com/google/uuid"
)

// Status is the tenant's lifecycle state.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Settings holds tenant operational preferences. Recognized keys are typed
// fields; anything else a client stores rides along in Extra untouched.
type Settings struct {
	Timezone             string            `json:"timezone"`
	DateFormat           string            `json:"date_format"`
	NotificationsEnabled bool              `json:"notifications_enabled"`
	SuspensionReason     string            `json:"suspension_reason,omitempty"`
	Extra                map[string]string `json:"extra,omitempty"`
}

// DefaultSettings returns the settings applied to a newly created tenant.
func DefaultSettings() Settings {
	return Settings{
		Timezone:             "UTC",
		DateFormat:           "2006-01-02",
		NotificationsEnabled: true,
	}
}

// Branding holds the tenant's form appearance configuration.
type Branding struct {
	PrimaryColor   string            `json:"primary_color"`
	SecondaryColor string            `json:"secondary_color"`
	FontFamily     string            `json:"font_family"`
	FooterText     string            `json:"footer_text"`
	HidePoweredBy  bool              `json:"hide_powered_by"`
	Extra          map[string]string `json:"extra,omitempty"`
}

// DefaultBranding returns the branding applied to a newly created tenant.
func DefaultBranding() Branding {
	return Branding{
		PrimaryColor:   "#3B82F6",
		SecondaryColor: "#10B981",
		FontFamily:     "Inter",
		FooterText:     "Powered by FormForge",
	}
}

// Tenant is an isolated customer account. Subdomain, custom domain, and ID
// are each unique across all non-deleted tenants.
type Tenant struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Slug         string     `json:"slug"`
	Subdomain    string     `json:"subdomain"`
	CustomDomain string     `json:"custom_domain,omitempty"`
	Status       Status     `json:"status"`
	TrialEndsAt  *time.Time `json:"trial_ends_at,omitempty"`
	Settings     Settings   `json:"settings"`
	Branding     Branding   `json:"branding"`
	VaultRef     string     `json:"-"` // payment vault reference issued by the gateway
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"-"`
}

// IsTrialing reports whether the tenant is on an unexpired trial.
func (t *Tenant) IsTrialing() bool {
	return t.Status == StatusTrial && t.TrialEndsAt != nil && t.TrialEndsAt.After(time.Now().UTC())
}

// IsActive reports whether the tenant may use the platform: either paid
// active or on a valid trial.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive || t.IsTrialing()
}

// IsSuspended reports whether the tenant has been suspended.
func (t *Tenant) IsSuspended() bool {
	return t.Status == StatusSuspended
}

// FullDomain returns the domain the tenant is served on: the custom domain
// when set, otherwise the subdomain under the central domain.
func (t *Tenant) FullDomain(centralDomain string) string {
	if t.CustomDomain != "" {
		return t.CustomDomain
	}
	return t.Subdomain + "." + centralDomain
}

// Role is a member's role within a tenant.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Member links a user to a tenant with a role.
type Member struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
