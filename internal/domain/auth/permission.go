package auth

// Owned is implemented by domain objects that belong to an owner.
type Owned interface {
	OwnerKey() string
}

// ConsumerOwned is implemented by domain objects bound to one consumer.
type ConsumerOwned interface {
	ConsumerID() string
}

// OwnerTarget identifies an owner organization as an access target.
type OwnerTarget struct {
	Key string
}

// OwnerKey satisfies Owned so owner-scoped permissions match their own org.
func (o OwnerTarget) OwnerKey() string { return o.Key }

// UserTarget identifies a user account as an access target.
type UserTarget struct {
	Username string
}

// ActivationKeyTarget identifies an activation key as an access target.
type ActivationKeyTarget struct {
	ID       string
	ownerKey string
}

// NewActivationKeyTarget builds an activation key target in an owner scope.
func NewActivationKeyTarget(id, ownerKey string) ActivationKeyTarget {
	return ActivationKeyTarget{ID: id, ownerKey: ownerKey}
}

func (a ActivationKeyTarget) OwnerKey() string { return a.ownerKey }

// JobTarget identifies an async job as an access target. Principal is the
// identity string of whoever started the job; OrgKey is set for jobs created
// in an owner context.
type JobTarget struct {
	ID        string
	Principal string
	OrgKey    string
}

// Permission is a predicate deciding whether one target may be accessed at
// a required level. Each implementation is scoped to a single target type
// and returns false for everything else.
type Permission interface {
	CanAccess(target any, sub SubResource, required Access) bool
}

// OwnerPermission grants an access level over one owner and everything
// scoped to it. A sub-resource filter, when set, restricts the permission to
// that sub-collection only; the owner object itself then gets read access at
// most.
type OwnerPermission struct {
	ownerKey string
	access   Access
	sub      SubResource
}

// NewOwnerPermission grants access to an owner and all its objects.
func NewOwnerPermission(ownerKey string, access Access) *OwnerPermission {
	return &OwnerPermission{ownerKey: ownerKey, access: access, sub: SubResourceNone}
}

// NewOwnerSubPermission grants access only to one sub-collection of an owner.
func NewOwnerSubPermission(ownerKey string, sub SubResource, access Access) *OwnerPermission {
	return &OwnerPermission{ownerKey: ownerKey, access: access, sub: sub}
}

func (p *OwnerPermission) CanAccess(target any, sub SubResource, required Access) bool {
	owned, ok := target.(Owned)
	if !ok || owned.OwnerKey() != p.ownerKey {
		return false
	}
	if p.sub != SubResourceNone && p.sub != sub {
		// A sub-scoped permission still lets the holder read the owner
		// object itself, otherwise the sub-collection is unreachable.
		if _, isOwner := target.(OwnerTarget); isOwner && sub == SubResourceNone {
			return AccessReadOnly.Provides(required)
		}
		return false
	}
	return p.access.Provides(required)
}

// ConsumerPermission lets a consumer act on itself and on its own
// entitlements, with full access, and read its owner.
type ConsumerPermission struct {
	consumerID string
	ownerKey   string
}

// NewConsumerPermission builds the self-service permission for a consumer.
func NewConsumerPermission(consumerID, ownerKey string) *ConsumerPermission {
	return &ConsumerPermission{consumerID: consumerID, ownerKey: ownerKey}
}

func (p *ConsumerPermission) CanAccess(target any, sub SubResource, required Access) bool {
	switch t := target.(type) {
	case OwnerTarget:
		return t.Key == p.ownerKey && AccessReadOnly.Provides(required)
	case ConsumerOwned:
		return t.ConsumerID() == p.consumerID
	case interface {
		ID() string
		TypeLabel() string
	}:
		// The consumer aggregate itself.
		return t.ID() == p.consumerID
	}
	return false
}

// EntitlementPermission grants an access level over a single entitlement.
type EntitlementPermission struct {
	entitlementID string
	access        Access
}

// NewEntitlementPermission scopes access to one entitlement.
func NewEntitlementPermission(entitlementID string, access Access) *EntitlementPermission {
	return &EntitlementPermission{entitlementID: entitlementID, access: access}
}

func (p *EntitlementPermission) CanAccess(target any, sub SubResource, required Access) bool {
	e, ok := target.(interface{ ID() string })
	if !ok || e.ID() != p.entitlementID {
		return false
	}
	if _, isConsumerOwned := target.(ConsumerOwned); !isConsumerOwned {
		return false
	}
	return p.access.Provides(required)
}

// ActivationKeyPermission grants an access level over one activation key.
type ActivationKeyPermission struct {
	keyID  string
	access Access
}

// NewActivationKeyPermission scopes access to one activation key.
func NewActivationKeyPermission(keyID string, access Access) *ActivationKeyPermission {
	return &ActivationKeyPermission{keyID: keyID, access: access}
}

func (p *ActivationKeyPermission) CanAccess(target any, sub SubResource, required Access) bool {
	k, ok := target.(ActivationKeyTarget)
	if !ok || k.ID != p.keyID {
		return false
	}
	return p.access.Provides(required)
}

// JobPermission lets a principal manage jobs it started itself, plus jobs
// created in an org it administers.
type JobPermission struct {
	principalName string
	orgKeys       map[string]struct{}
}

// NewJobPermission builds a job permission for a principal identity and the
// org keys it administers.
func NewJobPermission(principalName string, orgKeys []string) *JobPermission {
	keys := make(map[string]struct{}, len(orgKeys))
	for _, k := range orgKeys {
		keys[k] = struct{}{}
	}
	return &JobPermission{principalName: principalName, orgKeys: keys}
}

func (p *JobPermission) CanAccess(target any, sub SubResource, required Access) bool {
	j, ok := target.(JobTarget)
	if !ok {
		return false
	}
	if j.Principal == p.principalName {
		return true
	}
	if j.OrgKey != "" {
		_, ok := p.orgKeys[j.OrgKey]
		return ok
	}
	return false
}

// UserPermission grants an access level over one user account.
type UserPermission struct {
	username string
	access   Access
}

// NewUserPermission scopes access to one user account.
func NewUserPermission(username string, access Access) *UserPermission {
	return &UserPermission{username: username, access: access}
}

func (p *UserPermission) CanAccess(target any, sub SubResource, required Access) bool {
	u, ok := target.(UserTarget)
	if !ok || u.Username != p.username {
		return false
	}
	return p.access.Provides(required)
}
