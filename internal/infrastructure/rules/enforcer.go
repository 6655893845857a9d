package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/wick-sh/wick/internal/domain/consumer"
	"github.com/wick-sh/wick/internal/domain/entitlement"
	"github.com/wick-sh/wick/internal/domain/policy"
	"github.com/wick-sh/wick/internal/domain/pool"
	"github.com/wick-sh/wick/internal/domain/subscription"
)

// Script function name prefixes. Each registered rule maps to one function
// per phase; the implicit global rule maps to pre_global, post_global and
// select_pool_global.
const (
	preFuncPrefix    = "pre_"
	postFuncPrefix   = "post_"
	selectFuncPrefix = "select_pool_"
)

// Enforcer evaluates the compiled rules program against pools and
// consumers. It implements policy.Enforcer.
type Enforcer struct {
	engine   *Engine
	products subscription.ProductService
}

// NewEnforcer wires the engine to the product catalog, which supplies the
// product attributes the rule matching runs on.
func NewEnforcer(engine *Engine, products subscription.ProductService) *Enforcer {
	return &Enforcer{engine: engine, products: products}
}

var _ policy.Enforcer = (*Enforcer)(nil)

// preHelper is the "pre" script object. Methods are exposed uncapitalized,
// so scripts call pre.addError(...), pre.addWarning(...) and
// pre.grantFreeEntitlement().
type preHelper struct {
	result    *policy.ValidationResult
	grantFree bool
}

func (h *preHelper) bindings() map[string]any {
	return map[string]any{
		"addError":             func(key string) { h.result.AddError(key) },
		"addWarning":           func(key string) { h.result.AddWarning(key) },
		"grantFreeEntitlement": func() { h.grantFree = true },
	}
}

// postHelper is the "post" script object. createPool records a derived
// sub-pool request for the caller to materialize inside its transaction.
type postHelper struct {
	actions *policy.PostActions
}

func (h *postHelper) bindings() map[string]any {
	return map[string]any{
		"createPool": func(productID string, quantity int64, attributes map[string]string) {
			h.actions.DerivedPools = append(h.actions.DerivedPools, policy.DerivedPoolSpec{
				ProductID:  productID,
				Quantity:   quantity,
				Attributes: attributes,
			})
		},
	}
}

// flattenedAttributes merges product and pool attributes, the pool winning.
func (e *Enforcer) flattenedAttributes(ctx context.Context, p *pool.Pool) (map[string]string, error) {
	product, err := e.products.GetProductByID(ctx, p.ProductID())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve product %s: %w", p.ProductID(), err)
	}
	return policy.FlattenAttributes(product.Attributes, p.Attributes()), nil
}

// PreEntitlement runs the pre phase for a prospective bind. Capacity and
// expiry are enforced here as well, so a rules file that forgets the global
// checks cannot oversubscribe a pool.
func (e *Enforcer) PreEntitlement(ctx context.Context, c *consumer.Consumer, p *pool.Pool, quantity int64) (*policy.PreEntitlementResult, error) {
	attrs, err := e.flattenedAttributes(ctx, p)
	if err != nil {
		return nil, err
	}

	vm, err := e.engine.newRuntime()
	if err != nil {
		return nil, &policy.RuleExecutionError{Function: "pre", Err: err}
	}

	helper := &preHelper{result: policy.NewValidationResult()}
	for name, value := range map[string]any{
		"consumer":   newConsumerView(c),
		"pool":       newPoolView(p),
		"quantity":   quantity,
		"attributes": attrs,
		"pre":        helper.bindings(),
	} {
		if err := vm.Set(name, value); err != nil {
			return nil, &policy.RuleExecutionError{Function: "pre", Err: err}
		}
	}

	for _, r := range policy.RulesForAttributes(attrs, e.engine.rules) {
		if _, _, err := e.engine.call(vm, preFuncPrefix+r.Name); err != nil {
			return nil, err
		}
	}

	if !helper.grantFree && !p.HasCapacityFor(quantity) {
		helper.result.AddError("rulefailed.no.entitlements.available")
	}
	if p.IsExpired(time.Now()) {
		helper.result.AddError("rulefailed.pool.expired")
	}

	return &policy.PreEntitlementResult{
		ValidationResult: helper.result,
		GrantFree:        helper.grantFree,
	}, nil
}

// PostEntitlement runs the post phase after a bind and collects requested
// side effects.
func (e *Enforcer) PostEntitlement(ctx context.Context, c *consumer.Consumer, p *pool.Pool, ent *entitlement.Entitlement) (*policy.PostActions, error) {
	attrs, err := e.flattenedAttributes(ctx, p)
	if err != nil {
		return nil, err
	}

	vm, err := e.engine.newRuntime()
	if err != nil {
		return nil, &policy.RuleExecutionError{Function: "post", Err: err}
	}

	helper := &postHelper{actions: &policy.PostActions{}}
	for name, value := range map[string]any{
		"consumer":    newConsumerView(c),
		"pool":        newPoolView(p),
		"entitlement": newEntitlementView(ent),
		"attributes":  attrs,
		"post":        helper.bindings(),
	} {
		if err := vm.Set(name, value); err != nil {
			return nil, &policy.RuleExecutionError{Function: "post", Err: err}
		}
	}

	for _, r := range policy.RulesForAttributes(attrs, e.engine.rules) {
		if _, _, err := e.engine.call(vm, postFuncPrefix+r.Name); err != nil {
			return nil, err
		}
	}
	return helper.actions, nil
}

// SelectBestPools ranks candidates for an autobind. The highest-order
// applicable rule with a select function wins; without any script override
// the first candidate is taken. A script that returns an empty selection
// from a non-empty candidate list is broken and reported as such.
func (e *Enforcer) SelectBestPools(ctx context.Context, c *consumer.Consumer, productIDs []string, candidates []*pool.Pool) ([]*pool.Pool, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	// Rules applicable to any candidate, best order first.
	merged := make(map[string]string)
	for _, p := range candidates {
		attrs, err := e.flattenedAttributes(ctx, p)
		if err != nil {
			return nil, err
		}
		for k, v := range attrs {
			merged[k] = v
		}
	}

	vm, err := e.engine.newRuntime()
	if err != nil {
		return nil, &policy.RuleExecutionError{Function: "select_pool", Err: err}
	}
	for name, value := range map[string]any{
		"consumer": newConsumerView(c),
		"products": productIDs,
		"pools":    newPoolViews(candidates),
	} {
		if err := vm.Set(name, value); err != nil {
			return nil, &policy.RuleExecutionError{Function: "select_pool", Err: err}
		}
	}

	for _, r := range policy.RulesForAttributes(merged, e.engine.rules) {
		funcName := selectFuncPrefix + r.Name
		v, ran, err := e.engine.call(vm, funcName)
		if err != nil {
			return nil, err
		}
		if !ran {
			continue
		}
		selected, err := e.mapSelection(funcName, v, candidates)
		if err != nil {
			return nil, err
		}
		if len(selected) == 0 {
			return nil, &policy.RuleExecutionError{
				Function: funcName,
				Err:      fmt.Errorf("returned no pools for %d candidates", len(candidates)),
			}
		}
		return selected, nil
	}

	// No select function anywhere in the rules file: first candidate wins.
	return candidates[:1], nil
}

// mapSelection resolves a script return value, an array of pool IDs or of
// pool objects, back to the candidate pools in the returned order.
func (e *Enforcer) mapSelection(funcName string, v goja.Value, candidates []*pool.Pool) ([]*pool.Pool, error) {
	byID := make(map[string]*pool.Pool, len(candidates))
	for _, p := range candidates {
		byID[p.ID()] = p
	}

	var raw []any
	switch exported := v.Export().(type) {
	case []any:
		raw = exported
	case []PoolView:
		// The script handed back the reflected candidate slice itself.
		for _, pv := range exported {
			raw = append(raw, pv)
		}
	default:
		return nil, &policy.RuleExecutionError{
			Function: funcName,
			Err:      fmt.Errorf("selection must be an array, got %T", exported),
		}
	}
	out := make([]*pool.Pool, 0, len(raw))
	for _, item := range raw {
		var id string
		switch t := item.(type) {
		case string:
			id = t
		case map[string]any:
			id, _ = t["id"].(string)
		case PoolView:
			id = t.ID
		}
		p, ok := byID[id]
		if !ok {
			return nil, &policy.RuleExecutionError{
				Function: funcName,
				Err:      fmt.Errorf("selected unknown pool %q", id),
			}
		}
		out = append(out, p)
	}
	return out, nil
}
