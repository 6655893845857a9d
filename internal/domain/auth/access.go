// Package auth implements the permission model: access levels, per-entity
// permission predicates, and principals that hold them. An access decision
// is the logical OR across every permission a principal carries.
package auth

// Access is an ordered access level. Higher levels contain lower ones.
type Access int

const (
	AccessNone Access = iota
	AccessReadOnly
	AccessCreate
	AccessAll
)

// Provides reports whether this level satisfies the required one.
func (a Access) Provides(required Access) bool {
	return a >= required
}

func (a Access) String() string {
	switch a {
	case AccessNone:
		return "NONE"
	case AccessReadOnly:
		return "READ_ONLY"
	case AccessCreate:
		return "CREATE"
	case AccessAll:
		return "ALL"
	default:
		return "UNKNOWN"
	}
}

// SubResource narrows a permission to one sub-collection of its target.
type SubResource string

const (
	SubResourceNone           SubResource = ""
	SubResourceConsumers      SubResource = "consumers"
	SubResourceEntitlements   SubResource = "entitlements"
	SubResourcePools          SubResource = "pools"
	SubResourceActivationKeys SubResource = "activation_keys"
)
