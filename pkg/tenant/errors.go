package tenant

import "errors"

var (
	// ErrTenantNotFound is returned when no tenant matches a lookup key.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrSubdomainTaken is returned when the requested subdomain or derived
	// slug already belongs to another tenant.
	ErrSubdomainTaken = errors.New("subdomain already taken")

	// ErrSubdomainReserved is returned when the requested subdomain is on the
	// reserved list.
	ErrSubdomainReserved = errors.New("subdomain is reserved")

	// ErrDomainTaken is returned when a custom domain already belongs to
	// another tenant.
	ErrDomainTaken = errors.New("custom domain already taken")

	// ErrInvalidSubdomain is returned for subdomains that are not DNS-safe.
	ErrInvalidSubdomain = errors.New("invalid subdomain")

	// ErrLimitExceeded is returned when an operation would exceed a plan limit.
	ErrLimitExceeded = errors.New("plan limit exceeded")

	// ErrLastOwner is returned when removing a user would leave the tenant
	// without an owner.
	ErrLastOwner = errors.New("cannot remove the last owner")

	// ErrMemberNotFound is returned when a user is not a member of the tenant.
	ErrMemberNotFound = errors.New("user is not a member of the tenant")

	// ErrMemberExists is returned when adding a user who is already a member.
	ErrMemberExists = errors.New("user is already a member of the tenant")

	// ErrTenantSuspended is returned when a request resolves to a suspended
	// tenant.
	ErrTenantSuspended = errors.New("tenant is suspended")

	// ErrNoVerificationPending is returned when verifying a domain that has no
	// outstanding verification token.
	ErrNoVerificationPending = errors.New("no pending verification for domain")

	// ErrVerificationFailed is returned when the DNS TXT record does not match
	// the issued verification token.
	ErrVerificationFailed = errors.New("domain verification failed")

	// ErrNoTenantInContext is returned when a handler requires a tenant but
	// none was attached to the request context.
	ErrNoTenantInContext = errors.New("no tenant in context")
)
