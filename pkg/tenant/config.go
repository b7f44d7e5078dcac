package tenant

import "time"

// Config is the tenancy configuration surface. The core treats it as an
// immutable snapshot injected at construction.
type Config struct {
	// CentralDomain is the platform's base domain; tenant subdomains are
	// provisioned under it.
	CentralDomain string `env:"TENANT_CENTRAL_DOMAIN" envDefault:"forms.local"`
	// CentralDomains lists additional hosts that must never resolve to a
	// tenant (marketing site, bare apex, etc).
	CentralDomains []string `env:"TENANT_CENTRAL_DOMAINS"`
	// ReservedSubdomains can never be claimed by or resolved to a tenant.
	ReservedSubdomains []string `env:"TENANT_RESERVED_SUBDOMAINS" envDefault:"www,api,admin,app,mail,smtp,ftp,cdn,assets,static,media,support,help,docs,status,blog"`
	// TrialDays is the trial length granted to new tenants.
	TrialDays int `env:"TENANT_TRIAL_DAYS" envDefault:"14"`
	// CacheTTL bounds how long directory entries live regardless of
	// invalidation calls.
	CacheTTL time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`
	// VerificationPrefix is the well-known subdomain queried for the DNS TXT
	// record during custom-domain verification.
	VerificationPrefix string `env:"TENANT_VERIFICATION_PREFIX" envDefault:"_formforge-verify"`
	// VerificationTTL bounds how long an issued verification token stays
	// redeemable.
	VerificationTTL time.Duration `env:"TENANT_VERIFICATION_TTL" envDefault:"24h"`
}
