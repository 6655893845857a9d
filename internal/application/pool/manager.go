// Package pool implements the application services that reconcile pools
// against upstream subscriptions and manage the entitlement lifecycle.
package pool

import (
	"context"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wick-sh/wick/internal/domain/auth"
	"github.com/wick-sh/wick/internal/domain/certificate"
	"github.com/wick-sh/wick/internal/domain/consumer"
	"github.com/wick-sh/wick/internal/domain/entitlement"
	"github.com/wick-sh/wick/internal/domain/policy"
	"github.com/wick-sh/wick/internal/domain/pool"
	"github.com/wick-sh/wick/internal/domain/shared/events"
	"github.com/wick-sh/wick/internal/domain/subscription"
	"github.com/wick-sh/wick/internal/shared/config"
	"github.com/wick-sh/wick/internal/shared/errors"
	"github.com/wick-sh/wick/internal/shared/logger"
)

// Transactor runs a unit of work inside a database transaction. Satisfied
// by db.TransactionManager.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// CertificateService issues and revokes entitlement certificates. Satisfied
// by the certificate application service.
type CertificateService interface {
	GenerateForEntitlement(ctx context.Context, c *consumer.Consumer, p *pool.Pool,
		e *entitlement.Entitlement) (*certificate.EntitlementCertificate, error)
	RevokeForEntitlement(ctx context.Context, entitlementID string) error
	RegenerateForEntitlement(ctx context.Context, c *consumer.Consumer, p *pool.Pool,
		e *entitlement.Entitlement) error
}

// Manager coordinates pool reconciliation, binding and revocation. All
// multi-step mutations run inside a transaction so a failed bind never
// leaves a half-consumed pool behind.
type Manager struct {
	poolRepo     pool.Repository
	entRepo      entitlement.Repository
	consumerRepo consumer.Repository
	certSvc      CertificateService
	enforcer     policy.Enforcer
	subSvc       subscription.Service
	prodSvc      subscription.ProductService
	txManager    Transactor
	dispatcher   events.EventPublisher
	revokeFifo   bool
	logger       logger.Interface
	printer      *message.Printer
}

// NewManager creates a new pool Manager.
func NewManager(
	poolRepo pool.Repository,
	entRepo entitlement.Repository,
	consumerRepo consumer.Repository,
	certSvc CertificateService,
	enforcer policy.Enforcer,
	subSvc subscription.Service,
	prodSvc subscription.ProductService,
	txManager Transactor,
	dispatcher events.EventPublisher,
	cfg config.EntitlementConfig,
	logger logger.Interface,
) *Manager {
	return &Manager{
		poolRepo:     poolRepo,
		entRepo:      entRepo,
		consumerRepo: consumerRepo,
		certSvc:      certSvc,
		enforcer:     enforcer,
		subSvc:       subSvc,
		prodSvc:      prodSvc,
		txManager:    txManager,
		dispatcher:   dispatcher,
		revokeFifo:   cfg.RevokeFifo,
		logger:       logger,
		printer:      message.NewPrinter(language.English),
	}
}

// RefreshPools reconciles the owner's pools against the upstream
// subscription service. Subscriptions without a pool get one created,
// existing pools are updated in place, and pools whose subscription has
// disappeared are removed. Derived sub-pools are never touched here; they
// live and die with their source entitlement. The operation is idempotent.
func (m *Manager) RefreshPools(ctx context.Context, ownerKey string) error {
	m.logger.Infow("refreshing pools", "owner", ownerKey)

	subs, err := m.subSvc.GetSubscriptions(ctx, ownerKey)
	if err != nil {
		return err
	}
	pools, err := m.poolRepo.ListByOwner(ctx, ownerKey)
	if err != nil {
		return err
	}

	bySubscription := make(map[string][]*pool.Pool)
	for _, p := range pools {
		if p.IsDerived() || p.SubscriptionID() == "" {
			continue
		}
		bySubscription[p.SubscriptionID()] = append(bySubscription[p.SubscriptionID()], p)
	}

	known := make(map[string]bool, len(subs))
	for _, sub := range subs {
		known[sub.ID] = true
		existing := bySubscription[sub.ID]
		if len(existing) == 0 {
			if _, err := m.CreatePoolForSubscription(ctx, sub); err != nil {
				return err
			}
			continue
		}
		for _, p := range existing {
			if err := m.UpdatePoolForSubscription(ctx, p, sub); err != nil {
				return err
			}
		}
	}

	for subID, orphaned := range bySubscription {
		if known[subID] {
			continue
		}
		for _, p := range orphaned {
			m.logger.Infow("removing pool for vanished subscription",
				"pool_id", p.ID(), "subscription_id", subID)
			if err := m.DeletePool(ctx, p.ID()); err != nil {
				return err
			}
		}
	}
	return nil
}

// CreatePoolForSubscription materializes a pool from an upstream
// subscription. The pool quantity is the subscription quantity scaled by
// the product multiplier; a negative subscription quantity yields an
// unlimited pool.
func (m *Manager) CreatePoolForSubscription(ctx context.Context, sub subscription.Subscription) (*pool.Pool, error) {
	quantity := sub.Quantity
	if quantity >= 0 {
		quantity = sub.Quantity * sub.Product.EffectiveMultiplier()
	} else {
		quantity = pool.UnlimitedQuantity
	}

	provided := make([]pool.ProvidedProduct, 0, len(sub.ProvidedProducts))
	for _, pp := range sub.ProvidedProducts {
		provided = append(provided, pool.ProvidedProduct{ProductID: pp.ID, ProductName: pp.Name})
	}

	p, err := pool.NewPool(sub.OwnerKey, sub.Product.ID, sub.Product.Name,
		provided, quantity, sub.StartDate, sub.EndDate)
	if err != nil {
		return nil, err
	}
	p.SetSubscriptionID(sub.ID)
	p.SetContract(sub.ContractNumber, sub.AccountNumber)

	if err := m.poolRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	m.logger.Infow("pool created from subscription",
		"pool_id", p.ID(), "subscription_id", sub.ID, "quantity", quantity)
	m.publish(pool.NewPoolCreatedEvent(p))
	return p, nil
}

// UpdatePoolForSubscription brings an existing pool in line with its
// backing subscription. Quantity shrinks trigger excess entitlement
// revocation; date or product changes trigger certificate regeneration for
// every entitlement bound to the pool.
func (m *Manager) UpdatePoolForSubscription(ctx context.Context, p *pool.Pool, sub subscription.Subscription) error {
	quantity := sub.Quantity
	if quantity >= 0 {
		quantity = sub.Quantity * sub.Product.EffectiveMultiplier()
	} else {
		quantity = pool.UnlimitedQuantity
	}

	var changed, regenerate bool

	if p.Quantity() != quantity {
		p.SetQuantity(quantity)
		changed = true
	}
	if !p.StartDate().Equal(sub.StartDate) || !p.EndDate().Equal(sub.EndDate) {
		p.SetDates(sub.StartDate, sub.EndDate)
		changed = true
		regenerate = true
	}
	provided := make([]pool.ProvidedProduct, 0, len(sub.ProvidedProducts))
	for _, pp := range sub.ProvidedProducts {
		provided = append(provided, pool.ProvidedProduct{ProductID: pp.ID, ProductName: pp.Name})
	}
	if productChanged(p, sub.Product, provided) {
		p.SetProduct(sub.Product.ID, sub.Product.Name, provided)
		changed = true
		regenerate = true
	}
	if p.ContractNumber() != sub.ContractNumber || p.AccountNumber() != sub.AccountNumber {
		p.SetContract(sub.ContractNumber, sub.AccountNumber)
		changed = true
	}

	if !changed {
		return nil
	}

	if err := m.poolRepo.Update(ctx, p); err != nil {
		return err
	}
	m.logger.Infow("pool updated from subscription",
		"pool_id", p.ID(), "subscription_id", sub.ID)
	m.publish(pool.NewPoolChangedEvent(p))

	if p.IsOverflowing() {
		if err := m.DeleteExcessEntitlements(ctx, p); err != nil {
			return err
		}
	}
	if regenerate {
		if err := m.regeneratePoolCertificates(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func productChanged(p *pool.Pool, prod subscription.Product, provided []pool.ProvidedProduct) bool {
	if p.ProductID() != prod.ID || p.ProductName() != prod.Name {
		return true
	}
	current := p.ProvidedProducts()
	if len(current) != len(provided) {
		return true
	}
	byID := make(map[string]string, len(current))
	for _, pp := range current {
		byID[pp.ProductID] = pp.ProductName
	}
	for _, pp := range provided {
		name, ok := byID[pp.ProductID]
		if !ok || name != pp.ProductName {
			return true
		}
	}
	return false
}

// DeleteExcessEntitlements revokes entitlements from an overflowing pool
// until consumption fits the new quantity again. The revocation order is
// newest-first unless FIFO revocation is configured. Free entitlements
// never count against capacity, so they are skipped.
func (m *Manager) DeleteExcessEntitlements(ctx context.Context, p *pool.Pool) error {
	if !p.IsOverflowing() {
		return nil
	}
	lifo := !m.revokeFifo
	ents, err := m.entRepo.ListByPool(ctx, p.ID(), lifo)
	if err != nil {
		return err
	}

	excess := p.Consumed() - p.Quantity()
	for _, e := range ents {
		if excess <= 0 {
			break
		}
		if e.IsFree() {
			continue
		}
		m.logger.Infow("revoking excess entitlement",
			"pool_id", p.ID(), "entitlement_id", e.ID(), "quantity", e.Quantity())
		if err := m.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
			return m.revoke(txCtx, e)
		}); err != nil {
			return err
		}
		m.publish(entitlement.NewEntitlementDeletedEvent(e))
		excess -= e.Quantity()
	}
	return nil
}

// EntitleByPool binds a consumer to a specific pool. Rule rejections come
// back as *policy.EntitlementRefusedError so callers can surface the
// individual rule messages.
func (m *Manager) EntitleByPool(ctx context.Context, consumerID, poolID string, quantity int64) (*entitlement.Entitlement, error) {
	c, err := m.consumerRepo.FindByID(ctx, consumerID)
	if err != nil {
		return nil, err
	}

	var ent *entitlement.Entitlement
	err = m.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		ent, err = m.bind(txCtx, c, poolID, quantity)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.publish(entitlement.NewEntitlementCreatedEvent(ent))
	return ent, nil
}

// EntitleByProducts finds the best pools covering the requested products
// and binds the consumer to each, one unit per pool. When no pool survives
// the rules the caller gets the last rule failure; when no pool covers the
// products at all the caller gets ErrNoEntitlementsAvailable.
func (m *Manager) EntitleByProducts(ctx context.Context, consumerID string, productIDs []string) ([]*entitlement.Entitlement, error) {
	c, err := m.consumerRepo.FindByID(ctx, consumerID)
	if err != nil {
		return nil, err
	}
	pools, err := m.poolRepo.ListByOwner(ctx, c.OwnerKey())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var candidates []*pool.Pool
	var lastFailure *policy.ValidationResult
	for _, p := range pools {
		if p.IsExpired(now) || !providesAny(p, productIDs) {
			continue
		}
		res, err := m.enforcer.PreEntitlement(ctx, c, p, 1)
		if err != nil {
			return nil, err
		}
		if res.HasErrors() {
			lastFailure = res.ValidationResult
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		if lastFailure != nil {
			return nil, &policy.EntitlementRefusedError{Result: lastFailure}
		}
		return nil, pool.ErrNoEntitlementsAvailable
	}

	selected, err := m.enforcer.SelectBestPools(ctx, c, productIDs, candidates)
	if err != nil {
		return nil, err
	}

	ents := make([]*entitlement.Entitlement, 0, len(selected))
	err = m.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		for _, p := range selected {
			ent, err := m.bind(txCtx, c, p.ID(), 1)
			if err != nil {
				return err
			}
			ents = append(ents, ent)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, ent := range ents {
		m.publish(entitlement.NewEntitlementCreatedEvent(ent))
	}
	return ents, nil
}

func providesAny(p *pool.Pool, productIDs []string) bool {
	for _, id := range productIDs {
		if p.Provides(id) {
			return true
		}
	}
	return false
}

// bind performs a single entitlement grant inside the caller's
// transaction. The pool row is locked for the duration so concurrent binds
// serialize on the capacity check.
func (m *Manager) bind(ctx context.Context, c *consumer.Consumer, poolID string, quantity int64) (*entitlement.Entitlement, error) {
	p, err := m.poolRepo.LockAndLoad(ctx, poolID)
	if err != nil {
		return nil, err
	}

	res, err := m.enforcer.PreEntitlement(ctx, c, p, quantity)
	if err != nil {
		return nil, err
	}
	if res.HasErrors() {
		return nil, &policy.EntitlementRefusedError{Result: res.ValidationResult}
	}
	for _, w := range res.Warnings() {
		m.logger.Warnw("entitlement rule warning",
			"pool_id", p.ID(), "consumer_id", c.ID(), "warning", w)
	}

	ent, err := entitlement.NewEntitlement(p.ID(), c.ID(), p.OwnerKey(),
		quantity, p.StartDate(), p.EndDate())
	if err != nil {
		return nil, err
	}
	ent.SetContract(p.ContractNumber(), p.AccountNumber())
	if res.GrantFree {
		ent.MarkFree()
	}
	if err := m.entRepo.Create(ctx, ent); err != nil {
		return nil, err
	}

	actions, err := m.enforcer.PostEntitlement(ctx, c, p, ent)
	if err != nil {
		return nil, err
	}
	for _, spec := range actions.DerivedPools {
		if _, err := m.createDerivedPool(ctx, p, ent, spec); err != nil {
			return nil, err
		}
	}

	if _, err := m.certSvc.GenerateForEntitlement(ctx, c, p, ent); err != nil {
		return nil, err
	}
	if err := m.regenerateModifyingCertificates(ctx, c, p.ProductIDs(), ent.ID()); err != nil {
		return nil, err
	}

	if !ent.IsFree() {
		if err := m.poolRepo.AdjustConsumed(ctx, p.ID(), quantity); err != nil {
			return nil, err
		}
	}

	m.logger.Infow("entitlement granted",
		"entitlement_id", ent.ID(), "pool_id", p.ID(),
		"consumer_id", c.ID(), "quantity", quantity, "free", ent.IsFree())
	return ent, nil
}

// createDerivedPool materializes a sub-pool requested by the post rules.
// The sub-pool inherits the source pool's validity window and subscription
// and is tied to the granting entitlement for cascade cleanup.
func (m *Manager) createDerivedPool(ctx context.Context, src *pool.Pool, ent *entitlement.Entitlement, spec policy.DerivedPoolSpec) (*pool.Pool, error) {
	name := spec.ProductName
	if name == "" {
		if prod, err := m.prodSvc.GetProductByID(ctx, spec.ProductID); err == nil {
			name = prod.Name
		} else {
			name = spec.ProductID
		}
	}

	dp, err := pool.NewPool(src.OwnerKey(), spec.ProductID, name,
		spec.ProvidedProducts, spec.Quantity, src.StartDate(), src.EndDate())
	if err != nil {
		return nil, err
	}
	dp.SetSubscriptionID(src.SubscriptionID())
	dp.SetContract(src.ContractNumber(), src.AccountNumber())
	dp.SetSourceEntitlement(ent.ID())
	for k, v := range spec.Attributes {
		dp.SetAttribute(k, v)
	}

	if err := m.poolRepo.Create(ctx, dp); err != nil {
		return nil, err
	}
	m.logger.Infow("derived pool created",
		"pool_id", dp.ID(), "source_entitlement_id", ent.ID(), "product_id", spec.ProductID)
	m.publish(pool.NewPoolCreatedEvent(dp))
	return dp, nil
}

// RevokeEntitlement removes an entitlement and everything hanging off it:
// derived sub-pools (and their entitlements, recursively), certificates,
// and the pool consumption. Consumer principals may not revoke an
// entitlement while other consumers still hold entitlements from its
// derived pools.
func (m *Manager) RevokeEntitlement(ctx context.Context, principal *auth.Principal, entitlementID string) error {
	ent, err := m.entRepo.FindByID(ctx, entitlementID)
	if err != nil {
		return err
	}

	if principal != nil && principal.IsConsumer() {
		blocked, msg, err := m.outstandingSubPoolUsage(ctx, ent)
		if err != nil {
			return err
		}
		if blocked {
			return errors.NewForbiddenError(msg)
		}
	}

	if err := m.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		return m.revoke(txCtx, ent)
	}); err != nil {
		return err
	}
	m.publish(entitlement.NewEntitlementDeletedEvent(ent))
	return nil
}

// RevokeAllEntitlements revokes every entitlement held by a consumer.
func (m *Manager) RevokeAllEntitlements(ctx context.Context, principal *auth.Principal, consumerID string) error {
	ents, err := m.entRepo.ListByConsumer(ctx, consumerID)
	if err != nil {
		return err
	}
	for _, ent := range ents {
		if err := m.RevokeEntitlement(ctx, principal, ent.ID()); err != nil {
			if errors.Is(err, entitlement.ErrEntitlementNotFound) {
				// already removed by a cascade earlier in the loop
				continue
			}
			return err
		}
	}
	return nil
}

// DeletePool removes a pool after revoking all of its entitlements.
func (m *Manager) DeletePool(ctx context.Context, poolID string) error {
	p, err := m.poolRepo.FindByID(ctx, poolID)
	if err != nil {
		return err
	}
	return m.txManager.RunInTransaction(ctx, func(txCtx context.Context) error {
		return m.deletePool(txCtx, p)
	})
}

// RegenerateCertificates reissues every certificate held by a consumer,
// e.g. after an identity change or a CA rollover.
func (m *Manager) RegenerateCertificates(ctx context.Context, consumerID string) error {
	c, err := m.consumerRepo.FindByID(ctx, consumerID)
	if err != nil {
		return err
	}
	ents, err := m.entRepo.ListByConsumer(ctx, consumerID)
	if err != nil {
		return err
	}
	for _, ent := range ents {
		p, err := m.poolRepo.FindByID(ctx, ent.PoolID())
		if err != nil {
			return err
		}
		if err := m.certSvc.RegenerateForEntitlement(ctx, c, p, ent); err != nil {
			return err
		}
	}
	return nil
}

// revoke tears down a single entitlement inside the caller's transaction.
// Derived pools go first so their entitlements release before the source
// disappears.
func (m *Manager) revoke(ctx context.Context, ent *entitlement.Entitlement) error {
	derived, err := m.poolRepo.ListBySourceEntitlement(ctx, ent.ID())
	if err != nil {
		return err
	}
	for _, dp := range derived {
		if err := m.deletePool(ctx, dp); err != nil {
			return err
		}
	}

	p, err := m.poolRepo.FindByID(ctx, ent.PoolID())
	if err != nil && !errors.Is(err, pool.ErrPoolNotFound) {
		return err
	}

	if err := m.certSvc.RevokeForEntitlement(ctx, ent.ID()); err != nil {
		return err
	}
	if err := m.entRepo.Delete(ctx, ent.ID()); err != nil {
		return err
	}
	if !ent.IsFree() && p != nil {
		if err := m.poolRepo.AdjustConsumed(ctx, p.ID(), -ent.Quantity()); err != nil {
			return err
		}
	}

	// Products that modify the removed products need their content view
	// refreshed.
	if p != nil {
		if c, cerr := m.consumerRepo.FindByID(ctx, ent.ConsumerID()); cerr == nil {
			if err := m.regenerateModifyingCertificates(ctx, c, p.ProductIDs(), ent.ID()); err != nil {
				return err
			}
		}
	}

	m.logger.Infow("entitlement revoked",
		"entitlement_id", ent.ID(), "pool_id", ent.PoolID(), "consumer_id", ent.ConsumerID())
	return nil
}

// deletePool revokes all entitlements bound to the pool, then removes it.
// Runs inside the caller's transaction.
func (m *Manager) deletePool(ctx context.Context, p *pool.Pool) error {
	ents, err := m.entRepo.ListByPool(ctx, p.ID(), false)
	if err != nil {
		return err
	}
	for _, ent := range ents {
		if err := m.revoke(ctx, ent); err != nil {
			return err
		}
	}
	if err := m.poolRepo.Delete(ctx, p.ID()); err != nil {
		return err
	}
	m.logger.Infow("pool deleted", "pool_id", p.ID())
	m.publish(pool.NewPoolDeletedEvent(p))
	return nil
}

// outstandingSubPoolUsage reports whether other consumers hold
// entitlements from sub-pools derived from the given entitlement, with a
// human-readable message naming each blocker.
func (m *Manager) outstandingSubPoolUsage(ctx context.Context, ent *entitlement.Entitlement) (bool, string, error) {
	derived, err := m.poolRepo.ListBySourceEntitlement(ctx, ent.ID())
	if err != nil {
		return false, "", err
	}

	var blockers []string
	for _, dp := range derived {
		subEnts, err := m.entRepo.ListByPool(ctx, dp.ID(), false)
		if err != nil {
			return false, "", err
		}
		for _, se := range subEnts {
			name := se.ConsumerID()
			if c, cerr := m.consumerRepo.FindByID(ctx, se.ConsumerID()); cerr == nil {
				name = c.Name()
			}
			blockers = append(blockers,
				m.printer.Sprintf("entitlement %s held by consumer %s", se.ID(), name))
		}
	}
	if len(blockers) == 0 {
		return false, "", nil
	}

	msg := m.printer.Sprintf("cannot revoke entitlement %s while its sub-pools are in use", ent.ID())
	return true, msg + ": " + joinBlockers(blockers), nil
}

func joinBlockers(blockers []string) string {
	out := blockers[0]
	for _, b := range blockers[1:] {
		out += "; " + b
	}
	return out
}

// regeneratePoolCertificates reissues certificates for every entitlement
// bound to the pool, used when the pool's dates or products change.
func (m *Manager) regeneratePoolCertificates(ctx context.Context, p *pool.Pool) error {
	ents, err := m.entRepo.ListByPool(ctx, p.ID(), false)
	if err != nil {
		return err
	}
	for _, ent := range ents {
		c, err := m.consumerRepo.FindByID(ctx, ent.ConsumerID())
		if err != nil {
			if errors.Is(err, consumer.ErrConsumerNotFound) {
				continue
			}
			return err
		}
		if err := m.certSvc.RegenerateForEntitlement(ctx, c, p, ent); err != nil {
			return err
		}
	}
	return nil
}

// regenerateModifyingCertificates reissues the consumer's certificates for
// entitled products whose "modifies" attribute intersects the given
// product IDs. The triggering entitlement itself is excluded.
func (m *Manager) regenerateModifyingCertificates(ctx context.Context, c *consumer.Consumer, productIDs []string, excludeEntID string) error {
	touched := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		touched[id] = true
	}

	ents, err := m.entRepo.ListByConsumer(ctx, c.ID())
	if err != nil {
		return err
	}
	for _, ent := range ents {
		if ent.ID() == excludeEntID {
			continue
		}
		p, err := m.poolRepo.FindByID(ctx, ent.PoolID())
		if err != nil {
			if errors.Is(err, pool.ErrPoolNotFound) {
				continue
			}
			return err
		}
		prod, err := m.prodSvc.GetProductByID(ctx, p.ProductID())
		if err != nil {
			continue
		}
		modifies := false
		for _, id := range prod.ModifiedProductIDs() {
			if touched[id] {
				modifies = true
				break
			}
		}
		if !modifies {
			continue
		}
		if err := m.certSvc.RegenerateForEntitlement(ctx, c, p, ent); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) publish(event events.DomainEvent) {
	if m.dispatcher == nil {
		return
	}
	if err := m.dispatcher.Publish(event); err != nil {
		m.logger.Warnw("failed to publish event",
			"event_type", event.GetEventType(), "error", err)
	}
}
