package auth

// Role names used by the role-based policy layer. Owned-object checks are
// handled by Permission implementations; roles gate the coarse resource
// surface.
const (
	RoleAdmin    = "admin"
	RoleOwner    = "owner"
	RoleConsumer = "consumer"
)

// RoleEnforcer answers coarse role-based permission checks and manages the
// role assignments behind them.
type RoleEnforcer interface {
	Enforce(subject string, resource string, action string) (bool, error)
	AddPolicy(role string, resource string, action string) error
	RemovePolicy(role string, resource string, action string) error
	AddRoleForUser(userID string, role string) error
	DeleteRoleForUser(userID string, role string) error
	GetRolesForUser(userID string) ([]string, error)
}
