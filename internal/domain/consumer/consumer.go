// Package consumer contains the consumer aggregate: a registered system or
// person that binds entitlements and receives certificates.
package consumer

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wick-sh/wick/internal/shared/id"
)

// Well-known consumer type labels.
const (
	TypeSystem     = "system"
	TypePerson     = "person"
	TypeCandidate  = "candidate"
	TypeHypervisor = "hypervisor"
)

// Consumer is the aggregate root for an entitlement-consuming unit.
type Consumer struct {
	id        string
	uuid      string
	name      string
	typeLabel string
	ownerKey  string
	username  string
	facts     map[string]string
	createdAt time.Time
	updatedAt time.Time
}

// NewConsumer registers a new consumer under an owner. A fresh UUID is
// assigned; the UUID is the consumer's stable external identity and ends up
// in its identity certificate subject.
func NewConsumer(name, typeLabel, ownerKey, username string) (*Consumer, error) {
	if name == "" {
		return nil, fmt.Errorf("consumer name is required")
	}
	if typeLabel == "" {
		return nil, fmt.Errorf("consumer type is required")
	}
	if ownerKey == "" {
		return nil, fmt.Errorf("owner key is required")
	}

	now := time.Now().UTC()
	return &Consumer{
		id:        id.MustGenerateWithPrefix(id.PrefixConsumer, id.DefaultLength),
		uuid:      uuid.NewString(),
		name:      name,
		typeLabel: typeLabel,
		ownerKey:  ownerKey,
		username:  username,
		facts:     make(map[string]string),
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructParams carries every persisted consumer field.
type ReconstructParams struct {
	ID        string
	UUID      string
	Name      string
	TypeLabel string
	OwnerKey  string
	Username  string
	Facts     map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reconstruct rebuilds a consumer from persistence.
func Reconstruct(p ReconstructParams) (*Consumer, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("consumer ID cannot be empty")
	}
	if p.UUID == "" {
		return nil, fmt.Errorf("consumer UUID cannot be empty")
	}
	facts := p.Facts
	if facts == nil {
		facts = make(map[string]string)
	}
	return &Consumer{
		id:        p.ID,
		uuid:      p.UUID,
		name:      p.Name,
		typeLabel: p.TypeLabel,
		ownerKey:  p.OwnerKey,
		username:  p.Username,
		facts:     facts,
		createdAt: p.CreatedAt,
		updatedAt: p.UpdatedAt,
	}, nil
}

func (c *Consumer) ID() string           { return c.id }
func (c *Consumer) UUID() string         { return c.uuid }
func (c *Consumer) Name() string         { return c.name }
func (c *Consumer) TypeLabel() string    { return c.typeLabel }
func (c *Consumer) OwnerKey() string     { return c.ownerKey }
func (c *Consumer) Username() string     { return c.username }
func (c *Consumer) CreatedAt() time.Time { return c.createdAt }
func (c *Consumer) UpdatedAt() time.Time { return c.updatedAt }

// Facts returns a copy of the consumer fact map.
func (c *Consumer) Facts() map[string]string {
	out := make(map[string]string, len(c.facts))
	for k, v := range c.facts {
		out[k] = v
	}
	return out
}

// Fact returns the named fact and whether it is set.
func (c *Consumer) Fact(name string) (string, bool) {
	v, ok := c.facts[name]
	return v, ok
}

// SetFact records or replaces a single fact.
func (c *Consumer) SetFact(name, value string) {
	c.facts[name] = value
	c.touch()
}

// ReplaceFacts swaps the entire fact map, as client check-ins do.
func (c *Consumer) ReplaceFacts(facts map[string]string) {
	c.facts = make(map[string]string, len(facts))
	for k, v := range facts {
		c.facts[k] = v
	}
	c.touch()
}

// IsType reports whether the consumer carries the given type label.
func (c *Consumer) IsType(label string) bool {
	return c.typeLabel == label
}

// Rename updates the consumer's display name.
func (c *Consumer) Rename(name string) error {
	if name == "" {
		return fmt.Errorf("consumer name is required")
	}
	c.name = name
	c.touch()
	return nil
}

func (c *Consumer) touch() {
	c.updatedAt = time.Now().UTC()
}
