package subscription

import "strings"

// Product describes a marketed product as known to the upstream product
// service. Products are read-only inputs; they are never persisted locally.
type Product struct {
	ID         string            `json:"id" yaml:"id"`
	Name       string            `json:"name" yaml:"name"`
	Multiplier int64             `json:"multiplier" yaml:"multiplier"`
	Attributes map[string]string `json:"attributes" yaml:"attributes"`
}

// EffectiveMultiplier returns the pool quantity multiplier, defaulting to 1
// when unset.
func (p Product) EffectiveMultiplier() int64 {
	if p.Multiplier <= 0 {
		return 1
	}
	return p.Multiplier
}

// Attribute returns the named product attribute and whether it is set.
func (p Product) Attribute(name string) (string, bool) {
	v, ok := p.Attributes[name]
	return v, ok
}

// ModifiedProductIDs returns the product IDs whose content this product
// modifies, parsed from the "modifies" attribute (comma-separated).
func (p Product) ModifiedProductIDs() []string {
	raw, ok := p.Attributes["modifies"]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
