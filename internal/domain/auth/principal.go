package auth

// PrincipalType discriminates who is acting.
type PrincipalType string

const (
	PrincipalUser     PrincipalType = "user"
	PrincipalConsumer PrincipalType = "consumer"
	PrincipalSystem   PrincipalType = "system"
)

// Principal is the authenticated actor behind a request, holding the
// permissions that were minted for it at authentication time.
type Principal struct {
	name        string
	typ         PrincipalType
	permissions []Permission
}

// NewUserPrincipal builds a principal for a logged-in user.
func NewUserPrincipal(username string, permissions []Permission) *Principal {
	return &Principal{name: username, typ: PrincipalUser, permissions: permissions}
}

// NewConsumerPrincipal builds the self-service principal a consumer
// authenticates as with its identity certificate.
func NewConsumerPrincipal(consumerID, ownerKey string) *Principal {
	return &Principal{
		name: consumerID,
		typ:  PrincipalConsumer,
		permissions: []Permission{
			NewConsumerPermission(consumerID, ownerKey),
		},
	}
}

// NewSystemPrincipal builds the trusted internal principal used by
// background jobs. It passes every access check.
func NewSystemPrincipal() *Principal {
	return &Principal{name: "system", typ: PrincipalSystem}
}

func (p *Principal) Name() string              { return p.name }
func (p *Principal) Type() PrincipalType       { return p.typ }
func (p *Principal) Permissions() []Permission { return p.permissions }

// IsConsumer reports whether the actor is a self-service consumer.
func (p *Principal) IsConsumer() bool { return p.typ == PrincipalConsumer }

// CanAccess is the OR over all held permissions; a single permission
// granting the required level is enough.
func (p *Principal) CanAccess(target any, sub SubResource, required Access) bool {
	if p.typ == PrincipalSystem {
		return true
	}
	for _, perm := range p.permissions {
		if perm.CanAccess(target, sub, required) {
			return true
		}
	}
	return false
}
