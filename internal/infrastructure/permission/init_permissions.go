package permission

import (
	"fmt"

	"github.com/casbin/casbin/v2"

	"github.com/wick-sh/wick/internal/shared/logger"
)

// InitEntitlementPermissions seeds the role policies for the entitlement
// surface. Admins manage everything; owner admins manage their org; consumer
// identities may only bind, list and unbind for themselves (object-level
// ownership is enforced separately by the principal permissions).
func InitEntitlementPermissions(enforcer *casbin.Enforcer, log logger.Interface) error {
	policies := [][]string{
		// Admin permissions - full access
		{"admin", "owner", "create"},
		{"admin", "owner", "read"},
		{"admin", "owner", "update"},
		{"admin", "owner", "delete"},
		{"admin", "owner", "refresh"},
		{"admin", "consumer", "create"},
		{"admin", "consumer", "read"},
		{"admin", "consumer", "update"},
		{"admin", "consumer", "delete"},
		{"admin", "pool", "create"},
		{"admin", "pool", "read"},
		{"admin", "pool", "update"},
		{"admin", "pool", "delete"},
		{"admin", "entitlement", "create"},
		{"admin", "entitlement", "read"},
		{"admin", "entitlement", "delete"},
		{"admin", "certificate", "read"},
		{"admin", "certificate", "regenerate"},
		{"admin", "crl", "read"},
		{"admin", "crl", "update"},

		// Owner admin permissions - manage their organization
		{"owner", "owner", "read"},
		{"owner", "owner", "refresh"},
		{"owner", "consumer", "create"},
		{"owner", "consumer", "read"},
		{"owner", "consumer", "update"},
		{"owner", "consumer", "delete"},
		{"owner", "pool", "read"},
		{"owner", "entitlement", "create"},
		{"owner", "entitlement", "read"},
		{"owner", "entitlement", "delete"},
		{"owner", "certificate", "read"},
		{"owner", "certificate", "regenerate"},

		// Consumer permissions - act on their own behalf
		{"consumer", "pool", "read"},
		{"consumer", "entitlement", "create"},
		{"consumer", "entitlement", "read"},
		{"consumer", "entitlement", "delete"},
		{"consumer", "certificate", "read"},
		{"consumer", "crl", "read"},
	}

	for _, policy := range policies {
		_, err := enforcer.AddPolicy(policy)
		if err != nil {
			log.Errorw("failed to add permission policy",
				"error", err,
				"role", policy[0],
				"resource", policy[1],
				"action", policy[2])
			return fmt.Errorf("failed to add policy [%s, %s, %s]: %w",
				policy[0], policy[1], policy[2], err)
		}
	}

	if err := enforcer.SavePolicy(); err != nil {
		log.Error("failed to save entitlement permissions", "error", err)
		return fmt.Errorf("failed to save entitlement permissions: %w", err)
	}

	log.Info("entitlement permissions initialized successfully")
	return nil
}
