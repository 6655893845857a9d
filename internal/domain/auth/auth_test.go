package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeEntitlement struct {
	id       string
	consumer string
	owner    string
}

func (f fakeEntitlement) ID() string         { return f.id }
func (f fakeEntitlement) ConsumerID() string { return f.consumer }
func (f fakeEntitlement) OwnerKey() string   { return f.owner }

type fakeConsumer struct {
	id    string
	owner string
}

func (f fakeConsumer) ID() string        { return f.id }
func (f fakeConsumer) TypeLabel() string { return "system" }
func (f fakeConsumer) OwnerKey() string  { return f.owner }

func TestAccessProvides(t *testing.T) {
	assert.True(t, AccessAll.Provides(AccessNone))
	assert.True(t, AccessAll.Provides(AccessAll))
	assert.True(t, AccessCreate.Provides(AccessReadOnly))
	assert.False(t, AccessReadOnly.Provides(AccessCreate))
	assert.False(t, AccessNone.Provides(AccessReadOnly))
}

func TestOwnerPermission(t *testing.T) {
	p := NewOwnerPermission("acme", AccessAll)

	assert.True(t, p.CanAccess(OwnerTarget{Key: "acme"}, SubResourceNone, AccessAll))
	assert.True(t, p.CanAccess(fakeEntitlement{id: "ent_1", owner: "acme"}, SubResourceEntitlements, AccessAll))
	assert.False(t, p.CanAccess(OwnerTarget{Key: "other"}, SubResourceNone, AccessReadOnly))
	assert.False(t, p.CanAccess("not a target", SubResourceNone, AccessReadOnly))
}

func TestOwnerSubPermission(t *testing.T) {
	p := NewOwnerSubPermission("acme", SubResourceEntitlements, AccessAll)

	assert.True(t, p.CanAccess(fakeEntitlement{id: "ent_1", owner: "acme"}, SubResourceEntitlements, AccessAll))
	assert.False(t, p.CanAccess(fakeConsumer{id: "cons_1", owner: "acme"}, SubResourceConsumers, AccessReadOnly))
	// The owner object itself stays readable so the sub-collection can be
	// navigated to, but no more than that.
	assert.True(t, p.CanAccess(OwnerTarget{Key: "acme"}, SubResourceNone, AccessReadOnly))
	assert.False(t, p.CanAccess(OwnerTarget{Key: "acme"}, SubResourceNone, AccessAll))
}

func TestConsumerPermission(t *testing.T) {
	p := NewConsumerPermission("cons_self", "acme")

	assert.True(t, p.CanAccess(fakeConsumer{id: "cons_self", owner: "acme"}, SubResourceNone, AccessAll))
	assert.False(t, p.CanAccess(fakeConsumer{id: "cons_other", owner: "acme"}, SubResourceNone, AccessReadOnly))
	assert.True(t, p.CanAccess(fakeEntitlement{id: "ent_1", consumer: "cons_self"}, SubResourceNone, AccessAll))
	assert.False(t, p.CanAccess(fakeEntitlement{id: "ent_2", consumer: "cons_other"}, SubResourceNone, AccessReadOnly))
	assert.True(t, p.CanAccess(OwnerTarget{Key: "acme"}, SubResourceNone, AccessReadOnly))
	assert.False(t, p.CanAccess(OwnerTarget{Key: "acme"}, SubResourceNone, AccessCreate))
}

func TestEntitlementPermission(t *testing.T) {
	p := NewEntitlementPermission("ent_1", AccessReadOnly)

	assert.True(t, p.CanAccess(fakeEntitlement{id: "ent_1", consumer: "cons_x"}, SubResourceNone, AccessReadOnly))
	assert.False(t, p.CanAccess(fakeEntitlement{id: "ent_1", consumer: "cons_x"}, SubResourceNone, AccessAll))
	assert.False(t, p.CanAccess(fakeEntitlement{id: "ent_2", consumer: "cons_x"}, SubResourceNone, AccessReadOnly))
}

func TestActivationKeyPermission(t *testing.T) {
	p := NewActivationKeyPermission("ak_1", AccessAll)

	assert.True(t, p.CanAccess(NewActivationKeyTarget("ak_1", "acme"), SubResourceNone, AccessAll))
	assert.False(t, p.CanAccess(NewActivationKeyTarget("ak_2", "acme"), SubResourceNone, AccessReadOnly))
}

func TestJobPermission(t *testing.T) {
	p := NewJobPermission("alice", []string{"acme"})

	// Own jobs, by identity string equality.
	assert.True(t, p.CanAccess(JobTarget{ID: "j1", Principal: "alice"}, SubResourceNone, AccessAll))
	assert.False(t, p.CanAccess(JobTarget{ID: "j2", Principal: "bob"}, SubResourceNone, AccessReadOnly))
	// Jobs created in an administered org.
	assert.True(t, p.CanAccess(JobTarget{ID: "j3", Principal: "bob", OrgKey: "acme"}, SubResourceNone, AccessAll))
	assert.False(t, p.CanAccess(JobTarget{ID: "j4", Principal: "bob", OrgKey: "globex"}, SubResourceNone, AccessReadOnly))
}

func TestPrincipalOrSemantics(t *testing.T) {
	p := NewUserPrincipal("alice", []Permission{
		NewOwnerSubPermission("acme", SubResourceEntitlements, AccessAll),
		NewOwnerPermission("globex", AccessReadOnly),
	})

	// Either permission may grant.
	assert.True(t, p.CanAccess(fakeEntitlement{id: "ent_1", owner: "acme"}, SubResourceEntitlements, AccessAll))
	assert.True(t, p.CanAccess(OwnerTarget{Key: "globex"}, SubResourceNone, AccessReadOnly))
	// Neither grants write on globex.
	assert.False(t, p.CanAccess(OwnerTarget{Key: "globex"}, SubResourceNone, AccessAll))
	assert.False(t, p.IsConsumer())
}

func TestConsumerPrincipal(t *testing.T) {
	p := NewConsumerPrincipal("cons_self", "acme")

	assert.True(t, p.IsConsumer())
	assert.True(t, p.CanAccess(fakeEntitlement{id: "ent_1", consumer: "cons_self"}, SubResourceNone, AccessAll))
	assert.False(t, p.CanAccess(fakeEntitlement{id: "ent_2", consumer: "cons_other"}, SubResourceNone, AccessReadOnly))
}

func TestSystemPrincipal(t *testing.T) {
	p := NewSystemPrincipal()
	assert.True(t, p.CanAccess(OwnerTarget{Key: "anything"}, SubResourceNone, AccessAll))
	assert.True(t, p.CanAccess("opaque", SubResourceNone, AccessAll))
}
