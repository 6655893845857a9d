package policy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// GlobalRuleName is the implicit catch-all rule that matches every
// attribute set at the lowest order.
const GlobalRuleName = "global"

// Rule describes one named rule exported by a rules file: the script
// function suffix it maps to, its order (higher runs with higher priority),
// and the product/pool attributes that must all be present for it to apply.
type Rule struct {
	Name       string
	Order      int
	Attributes []string
}

// Matches reports whether every attribute the rule requires is present in
// the given attribute set.
func (r Rule) Matches(attributes map[string]string) bool {
	for _, a := range r.Attributes {
		if _, ok := attributes[a]; !ok {
			return false
		}
	}
	return true
}

// ParseRule parses the legacy "name:order:attr1:attr2" declaration format
// still accepted from rules files.
func ParseRule(decl string) (Rule, error) {
	parts := strings.Split(decl, ":")
	if len(parts) < 2 {
		return Rule{}, fmt.Errorf("malformed rule declaration %q: expected name:order[:attributes]", decl)
	}
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return Rule{}, fmt.Errorf("malformed rule declaration %q: empty name", decl)
	}
	order, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Rule{}, fmt.Errorf("malformed rule declaration %q: bad order: %w", decl, err)
	}
	var attrs []string
	for _, a := range parts[2:] {
		a = strings.TrimSpace(a)
		if a != "" {
			attrs = append(attrs, a)
		}
	}
	return Rule{Name: name, Order: order, Attributes: attrs}, nil
}

// RulesForAttributes selects the rules applicable to an attribute set:
// every registered rule whose required attributes are all present, plus the
// implicit global rule at order zero. The result is sorted by descending
// order so higher-priority rules run first.
func RulesForAttributes(attributes map[string]string, rules []Rule) []Rule {
	matched := make([]Rule, 0, len(rules)+1)
	for _, r := range rules {
		if r.Matches(attributes) {
			matched = append(matched, r)
		}
	}
	matched = append(matched, Rule{Name: GlobalRuleName, Order: 0})
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Order > matched[j].Order
	})
	return matched
}

// FlattenAttributes merges product attributes with pool attributes, the
// pool's values winning on conflict.
func FlattenAttributes(product, pool map[string]string) map[string]string {
	out := make(map[string]string, len(product)+len(pool))
	for k, v := range product {
		out[k] = v
	}
	for k, v := range pool {
		out[k] = v
	}
	return out
}
