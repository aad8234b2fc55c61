package session

import "portal/internal/domain"

// Authorization decisions are pure functions over caller and target so
// they stay unit-testable independent of transport and storage.

// CanInvalidateSession reports whether caller may revoke target's
// credentials. Admins act inside their own organization; super admins
// are unscoped.
func CanInvalidateSession(caller, target *domain.Account) bool {
	if caller == nil || target == nil {
		return false
	}
	switch caller.Role {
	case domain.RoleSuperAdmin:
		return true
	case domain.RoleAdmin:
		return sameOrganization(caller, target)
	default:
		return false
	}
}

// CanManageAccount gates status and role changes. Nobody manages a
// super admin except another super admin, and self-demotion of the
// caller's own status is the caller module's concern, not checked here.
func CanManageAccount(caller, target *domain.Account) bool {
	if !CanInvalidateSession(caller, target) {
		return false
	}
	if target.Role == domain.RoleSuperAdmin {
		return caller.Role == domain.RoleSuperAdmin
	}
	return true
}

func sameOrganization(a, b *domain.Account) bool {
	if a.OrganizationID == nil || b.OrganizationID == nil {
		return false
	}
	return *a.OrganizationID == *b.OrganizationID
}
