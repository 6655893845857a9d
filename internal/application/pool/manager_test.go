package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wick-sh/wick/internal/domain/auth"
	"github.com/wick-sh/wick/internal/domain/certificate"
	"github.com/wick-sh/wick/internal/domain/consumer"
	"github.com/wick-sh/wick/internal/domain/entitlement"
	"github.com/wick-sh/wick/internal/domain/policy"
	"github.com/wick-sh/wick/internal/domain/pool"
	"github.com/wick-sh/wick/internal/domain/subscription"
	"github.com/wick-sh/wick/internal/shared/config"
	"github.com/wick-sh/wick/internal/shared/errors"
	"github.com/wick-sh/wick/internal/shared/logger"
)

// ---- fakes ----

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakePoolRepo struct {
	pools map[string]*pool.Pool
	order []string
}

func newFakePoolRepo() *fakePoolRepo {
	return &fakePoolRepo{pools: make(map[string]*pool.Pool)}
}

func (r *fakePoolRepo) Create(_ context.Context, p *pool.Pool) error {
	r.pools[p.ID()] = p
	r.order = append(r.order, p.ID())
	return nil
}

func (r *fakePoolRepo) FindByID(_ context.Context, id string) (*pool.Pool, error) {
	p, ok := r.pools[id]
	if !ok {
		return nil, pool.ErrPoolNotFound
	}
	return p, nil
}

func (r *fakePoolRepo) LockAndLoad(ctx context.Context, id string) (*pool.Pool, error) {
	return r.FindByID(ctx, id)
}

func (r *fakePoolRepo) Update(_ context.Context, p *pool.Pool) error {
	if _, ok := r.pools[p.ID()]; !ok {
		return pool.ErrPoolNotFound
	}
	r.pools[p.ID()] = p
	return nil
}

func (r *fakePoolRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.pools[id]; !ok {
		return pool.ErrPoolNotFound
	}
	delete(r.pools, id)
	return nil
}

func (r *fakePoolRepo) list(filter func(*pool.Pool) bool) []*pool.Pool {
	var out []*pool.Pool
	for _, id := range r.order {
		p, ok := r.pools[id]
		if ok && filter(p) {
			out = append(out, p)
		}
	}
	return out
}

func (r *fakePoolRepo) ListByOwner(_ context.Context, ownerKey string) ([]*pool.Pool, error) {
	return r.list(func(p *pool.Pool) bool { return p.OwnerKey() == ownerKey }), nil
}

func (r *fakePoolRepo) ListBySubscription(_ context.Context, subID string) ([]*pool.Pool, error) {
	return r.list(func(p *pool.Pool) bool { return p.SubscriptionID() == subID }), nil
}

func (r *fakePoolRepo) ListBySourceEntitlement(_ context.Context, entID string) ([]*pool.Pool, error) {
	return r.list(func(p *pool.Pool) bool { return p.SourceEntitlementID() == entID }), nil
}

func (r *fakePoolRepo) AdjustConsumed(_ context.Context, id string, delta int64) error {
	p, ok := r.pools[id]
	if !ok {
		return pool.ErrPoolNotFound
	}
	p.SetConsumed(p.Consumed() + delta)
	return nil
}

type fakeEntRepo struct {
	ents  map[string]*entitlement.Entitlement
	order []string
}

func newFakeEntRepo() *fakeEntRepo {
	return &fakeEntRepo{ents: make(map[string]*entitlement.Entitlement)}
}

func (r *fakeEntRepo) Create(_ context.Context, e *entitlement.Entitlement) error {
	r.ents[e.ID()] = e
	r.order = append(r.order, e.ID())
	return nil
}

func (r *fakeEntRepo) FindByID(_ context.Context, id string) (*entitlement.Entitlement, error) {
	e, ok := r.ents[id]
	if !ok {
		return nil, entitlement.ErrEntitlementNotFound
	}
	return e, nil
}

func (r *fakeEntRepo) Update(_ context.Context, e *entitlement.Entitlement) error {
	if _, ok := r.ents[e.ID()]; !ok {
		return entitlement.ErrEntitlementNotFound
	}
	r.ents[e.ID()] = e
	return nil
}

func (r *fakeEntRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.ents[id]; !ok {
		return entitlement.ErrEntitlementNotFound
	}
	delete(r.ents, id)
	return nil
}

func (r *fakeEntRepo) list(filter func(*entitlement.Entitlement) bool) []*entitlement.Entitlement {
	var out []*entitlement.Entitlement
	for _, id := range r.order {
		e, ok := r.ents[id]
		if ok && filter(e) {
			out = append(out, e)
		}
	}
	return out
}

func (r *fakeEntRepo) ListByConsumer(_ context.Context, consumerID string) ([]*entitlement.Entitlement, error) {
	return r.list(func(e *entitlement.Entitlement) bool { return e.ConsumerID() == consumerID }), nil
}

func (r *fakeEntRepo) ListByPool(_ context.Context, poolID string, lifo bool) ([]*entitlement.Entitlement, error) {
	out := r.list(func(e *entitlement.Entitlement) bool { return e.PoolID() == poolID })
	if lifo {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (r *fakeEntRepo) CountByPool(_ context.Context, poolID string) (int64, error) {
	return int64(len(r.list(func(e *entitlement.Entitlement) bool { return e.PoolID() == poolID }))), nil
}

type fakeConsumerRepo struct {
	consumers map[string]*consumer.Consumer
}

func newFakeConsumerRepo(cs ...*consumer.Consumer) *fakeConsumerRepo {
	r := &fakeConsumerRepo{consumers: make(map[string]*consumer.Consumer)}
	for _, c := range cs {
		r.consumers[c.ID()] = c
	}
	return r
}

func (r *fakeConsumerRepo) Create(_ context.Context, c *consumer.Consumer) error {
	r.consumers[c.ID()] = c
	return nil
}

func (r *fakeConsumerRepo) FindByID(_ context.Context, id string) (*consumer.Consumer, error) {
	c, ok := r.consumers[id]
	if !ok {
		return nil, consumer.ErrConsumerNotFound
	}
	return c, nil
}

func (r *fakeConsumerRepo) FindByUUID(_ context.Context, uuid string) (*consumer.Consumer, error) {
	for _, c := range r.consumers {
		if c.UUID() == uuid {
			return c, nil
		}
	}
	return nil, consumer.ErrConsumerNotFound
}

func (r *fakeConsumerRepo) Update(_ context.Context, c *consumer.Consumer) error {
	r.consumers[c.ID()] = c
	return nil
}

func (r *fakeConsumerRepo) Delete(_ context.Context, id string) error {
	delete(r.consumers, id)
	return nil
}

func (r *fakeConsumerRepo) ListByOwner(_ context.Context, ownerKey string) ([]*consumer.Consumer, error) {
	var out []*consumer.Consumer
	for _, c := range r.consumers {
		if c.OwnerKey() == ownerKey {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeCertService struct {
	generated   []string // entitlement IDs in call order
	revoked     []string
	regenerated []string
}

func (s *fakeCertService) GenerateForEntitlement(_ context.Context, _ *consumer.Consumer,
	_ *pool.Pool, e *entitlement.Entitlement) (*certificate.EntitlementCertificate, error) {
	s.generated = append(s.generated, e.ID())
	serial, err := certificate.NewCertificateSerial(e.EndDate())
	if err != nil {
		return nil, err
	}
	return certificate.NewEntitlementCertificate(e.ID(), serial.Serial(), []byte("cert"), []byte("key"))
}

func (s *fakeCertService) RevokeForEntitlement(_ context.Context, entitlementID string) error {
	s.revoked = append(s.revoked, entitlementID)
	return nil
}

func (s *fakeCertService) RegenerateForEntitlement(_ context.Context, _ *consumer.Consumer,
	_ *pool.Pool, e *entitlement.Entitlement) error {
	s.regenerated = append(s.regenerated, e.ID())
	return nil
}

// fakeEnforcer approves everything unless configured otherwise.
type fakeEnforcer struct {
	preFn    func(c *consumer.Consumer, p *pool.Pool, quantity int64) (*policy.PreEntitlementResult, error)
	postFn   func(c *consumer.Consumer, p *pool.Pool, e *entitlement.Entitlement) (*policy.PostActions, error)
	selectFn func(candidates []*pool.Pool) ([]*pool.Pool, error)
}

func allowAll(_ *consumer.Consumer, _ *pool.Pool, _ int64) (*policy.PreEntitlementResult, error) {
	return &policy.PreEntitlementResult{ValidationResult: policy.NewValidationResult()}, nil
}

func (f *fakeEnforcer) PreEntitlement(_ context.Context, c *consumer.Consumer, p *pool.Pool,
	quantity int64) (*policy.PreEntitlementResult, error) {
	if f.preFn != nil {
		return f.preFn(c, p, quantity)
	}
	return allowAll(c, p, quantity)
}

func (f *fakeEnforcer) PostEntitlement(_ context.Context, c *consumer.Consumer, p *pool.Pool,
	e *entitlement.Entitlement) (*policy.PostActions, error) {
	if f.postFn != nil {
		return f.postFn(c, p, e)
	}
	return &policy.PostActions{}, nil
}

func (f *fakeEnforcer) SelectBestPools(_ context.Context, _ *consumer.Consumer, _ []string,
	candidates []*pool.Pool) ([]*pool.Pool, error) {
	if f.selectFn != nil {
		return f.selectFn(candidates)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return candidates[:1], nil
}

type fakeSubService struct {
	subs []subscription.Subscription
}

func (s *fakeSubService) GetSubscriptions(_ context.Context, ownerKey string) ([]subscription.Subscription, error) {
	var out []subscription.Subscription
	for _, sub := range s.subs {
		if sub.OwnerKey == ownerKey {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *fakeSubService) GetSubscription(_ context.Context, id string) (*subscription.Subscription, error) {
	for _, sub := range s.subs {
		if sub.ID == id {
			return &sub, nil
		}
	}
	return nil, errors.NewNotFoundError("subscription not found")
}

type fakeProductService struct {
	products map[string]*subscription.Product
}

func (s *fakeProductService) GetProductByID(_ context.Context, id string) (*subscription.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, errors.NewNotFoundError("product not found")
	}
	return p, nil
}

// ---- harness ----

type harness struct {
	mgr       *Manager
	poolRepo  *fakePoolRepo
	entRepo   *fakeEntRepo
	consumers *fakeConsumerRepo
	certs     *fakeCertService
	enforcer  *fakeEnforcer
	subs      *fakeSubService
	products  *fakeProductService
}

func newHarness(t *testing.T, cfg config.EntitlementConfig) *harness {
	t.Helper()
	h := &harness{
		poolRepo:  newFakePoolRepo(),
		entRepo:   newFakeEntRepo(),
		consumers: newFakeConsumerRepo(),
		certs:     &fakeCertService{},
		enforcer:  &fakeEnforcer{},
		subs:      &fakeSubService{},
		products:  &fakeProductService{products: make(map[string]*subscription.Product)},
	}
	h.mgr = NewManager(h.poolRepo, h.entRepo, h.consumers, h.certs, h.enforcer,
		h.subs, h.products, passthroughTx{}, nil, cfg, logger.NewLogger())
	return h
}

func (h *harness) addConsumer(t *testing.T, name string) *consumer.Consumer {
	t.Helper()
	c, err := consumer.NewConsumer(name, consumer.TypeSystem, "acme", "admin")
	require.NoError(t, err)
	require.NoError(t, h.consumers.Create(context.Background(), c))
	return c
}

func (h *harness) addPool(t *testing.T, productID string, quantity int64) *pool.Pool {
	t.Helper()
	p, err := pool.NewPool("acme", productID, productID+" name", nil, quantity,
		time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	require.NoError(t, h.poolRepo.Create(context.Background(), p))
	return p
}

func testSubscription(id, productID string, quantity int64) subscription.Subscription {
	return subscription.Subscription{
		ID:        id,
		OwnerKey:  "acme",
		Product:   subscription.Product{ID: productID, Name: productID + " name"},
		Quantity:  quantity,
		StartDate: time.Now().Add(-time.Hour).Truncate(time.Second),
		EndDate:   time.Now().Add(24 * time.Hour).Truncate(time.Second),
	}
}

// ---- refresh ----

func TestRefreshPoolsCreatesMissing(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	h.subs.subs = []subscription.Subscription{testSubscription("sub-1", "prod-os", 5)}

	require.NoError(t, h.mgr.RefreshPools(context.Background(), "acme"))

	pools, err := h.poolRepo.ListByOwner(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, "sub-1", pools[0].SubscriptionID())
	assert.Equal(t, int64(5), pools[0].Quantity())
}

func TestRefreshPoolsAppliesMultiplier(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	sub := testSubscription("sub-1", "prod-os", 5)
	sub.Product.Multiplier = 4
	h.subs.subs = []subscription.Subscription{sub}

	require.NoError(t, h.mgr.RefreshPools(context.Background(), "acme"))

	pools, _ := h.poolRepo.ListByOwner(context.Background(), "acme")
	require.Len(t, pools, 1)
	assert.Equal(t, int64(20), pools[0].Quantity())
}

func TestRefreshPoolsIsIdempotent(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	h.subs.subs = []subscription.Subscription{testSubscription("sub-1", "prod-os", 5)}

	require.NoError(t, h.mgr.RefreshPools(context.Background(), "acme"))
	require.NoError(t, h.mgr.RefreshPools(context.Background(), "acme"))

	pools, _ := h.poolRepo.ListByOwner(context.Background(), "acme")
	require.Len(t, pools, 1)
	version := pools[0].Version()

	require.NoError(t, h.mgr.RefreshPools(context.Background(), "acme"))
	assert.Equal(t, version, pools[0].Version())
}

func TestRefreshPoolsUpdatesQuantity(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	h.subs.subs = []subscription.Subscription{testSubscription("sub-1", "prod-os", 5)}
	require.NoError(t, h.mgr.RefreshPools(context.Background(), "acme"))

	h.subs.subs[0].Quantity = 10
	require.NoError(t, h.mgr.RefreshPools(context.Background(), "acme"))

	pools, _ := h.poolRepo.ListByOwner(context.Background(), "acme")
	require.Len(t, pools, 1)
	assert.Equal(t, int64(10), pools[0].Quantity())
}

func TestRefreshPoolsUpdatesProduct(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	h.subs.subs = []subscription.Subscription{testSubscription("sub-1", "prod-os", 5)}
	require.NoError(t, h.mgr.RefreshPools(context.Background(), "acme"))

	h.subs.subs[0].Product = subscription.Product{ID: "prod-os-v2", Name: "OS v2"}
	h.subs.subs[0].ProvidedProducts = []subscription.Product{{ID: "prod-kernel", Name: "Kernel"}}
	require.NoError(t, h.mgr.RefreshPools(context.Background(), "acme"))

	pools, _ := h.poolRepo.ListByOwner(context.Background(), "acme")
	require.Len(t, pools, 1)
	assert.Equal(t, "prod-os-v2", pools[0].ProductID())
	assert.Equal(t, "OS v2", pools[0].ProductName())
	require.Len(t, pools[0].ProvidedProducts(), 1)
	assert.Equal(t, "prod-kernel", pools[0].ProvidedProducts()[0].ProductID)
}

func TestRefreshPoolsDeletesOrphans(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	h.subs.subs = []subscription.Subscription{testSubscription("sub-1", "prod-os", 5)}
	require.NoError(t, h.mgr.RefreshPools(context.Background(), "acme"))

	h.subs.subs = nil
	require.NoError(t, h.mgr.RefreshPools(context.Background(), "acme"))

	pools, _ := h.poolRepo.ListByOwner(context.Background(), "acme")
	assert.Empty(t, pools)
}

func TestRefreshPoolsLeavesDerivedPoolsAlone(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	derived := h.addPool(t, "prod-guest", 10)
	derived.SetSourceEntitlement("ent-1")
	derived.SetSubscriptionID("sub-gone")

	require.NoError(t, h.mgr.RefreshPools(context.Background(), "acme"))

	_, err := h.poolRepo.FindByID(context.Background(), derived.ID())
	assert.NoError(t, err)
}

func TestUpdatePoolRegeneratesCertificatesOnDateChange(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	c := h.addConsumer(t, "box-1")
	h.subs.subs = []subscription.Subscription{testSubscription("sub-1", "prod-os", 5)}
	require.NoError(t, h.mgr.RefreshPools(context.Background(), "acme"))

	pools, _ := h.poolRepo.ListByOwner(context.Background(), "acme")
	ent, err := h.mgr.EntitleByPool(context.Background(), c.ID(), pools[0].ID(), 1)
	require.NoError(t, err)

	h.subs.subs[0].EndDate = h.subs.subs[0].EndDate.Add(48 * time.Hour)
	require.NoError(t, h.mgr.RefreshPools(context.Background(), "acme"))

	assert.Contains(t, h.certs.regenerated, ent.ID())
}

// ---- excess revocation ----

func TestDeleteExcessEntitlementsLifo(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	c := h.addConsumer(t, "box-1")
	p := h.addPool(t, "prod-os", 3)

	var ids []string
	for i := 0; i < 3; i++ {
		ent, err := h.mgr.EntitleByPool(context.Background(), c.ID(), p.ID(), 1)
		require.NoError(t, err)
		ids = append(ids, ent.ID())
	}

	p.SetQuantity(1)
	require.NoError(t, h.mgr.DeleteExcessEntitlements(context.Background(), p))

	// newest two revoked, oldest survives
	assert.Equal(t, []string{ids[2], ids[1]}, h.certs.revoked)
	_, err := h.entRepo.FindByID(context.Background(), ids[0])
	assert.NoError(t, err)
	assert.Equal(t, int64(1), p.Consumed())
}

func TestDeleteExcessEntitlementsFifo(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{RevokeFifo: true})
	c := h.addConsumer(t, "box-1")
	p := h.addPool(t, "prod-os", 2)

	var ids []string
	for i := 0; i < 2; i++ {
		ent, err := h.mgr.EntitleByPool(context.Background(), c.ID(), p.ID(), 1)
		require.NoError(t, err)
		ids = append(ids, ent.ID())
	}

	p.SetQuantity(1)
	require.NoError(t, h.mgr.DeleteExcessEntitlements(context.Background(), p))

	assert.Equal(t, []string{ids[0]}, h.certs.revoked)
	_, err := h.entRepo.FindByID(context.Background(), ids[1])
	assert.NoError(t, err)
}

// ---- bind ----

func TestEntitleByPoolGrantsAndConsumes(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	c := h.addConsumer(t, "box-1")
	p := h.addPool(t, "prod-os", 5)

	ent, err := h.mgr.EntitleByPool(context.Background(), c.ID(), p.ID(), 2)
	require.NoError(t, err)

	assert.Equal(t, int64(2), ent.Quantity())
	assert.Equal(t, int64(2), p.Consumed())
	assert.Equal(t, []string{ent.ID()}, h.certs.generated)
	assert.Equal(t, p.StartDate(), ent.StartDate())
	assert.Equal(t, p.EndDate(), ent.EndDate())
}

func TestEntitleByPoolRefusedByRules(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	c := h.addConsumer(t, "box-1")
	p := h.addPool(t, "prod-os", 5)

	h.enforcer.preFn = func(_ *consumer.Consumer, _ *pool.Pool, _ int64) (*policy.PreEntitlementResult, error) {
		res := policy.NewValidationResult()
		res.AddError("rulefailed.consumer.type.mismatch")
		return &policy.PreEntitlementResult{ValidationResult: res}, nil
	}

	_, err := h.mgr.EntitleByPool(context.Background(), c.ID(), p.ID(), 1)
	var refused *policy.EntitlementRefusedError
	require.ErrorAs(t, err, &refused)
	assert.Contains(t, refused.Result.Errors(), "rulefailed.consumer.type.mismatch")
	assert.Equal(t, int64(0), p.Consumed())
	assert.Empty(t, h.certs.generated)
}

func TestEntitleByPoolFreeEntitlementSkipsConsumption(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	c := h.addConsumer(t, "box-1")
	p := h.addPool(t, "prod-os", 1)

	h.enforcer.preFn = func(_ *consumer.Consumer, _ *pool.Pool, _ int64) (*policy.PreEntitlementResult, error) {
		return &policy.PreEntitlementResult{
			ValidationResult: policy.NewValidationResult(),
			GrantFree:        true,
		}, nil
	}

	ent, err := h.mgr.EntitleByPool(context.Background(), c.ID(), p.ID(), 1)
	require.NoError(t, err)
	assert.True(t, ent.IsFree())
	assert.Equal(t, int64(0), p.Consumed())
}

// serializingTx holds a lock for the duration of each transaction, the way
// the row lock taken in LockAndLoad is held until commit.
type serializingTx struct {
	mu sync.Mutex
}

func (t *serializingTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

func TestEntitleByPoolConcurrentBindsRespectCapacity(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	h.mgr = NewManager(h.poolRepo, h.entRepo, h.consumers, h.certs, h.enforcer,
		h.subs, h.products, &serializingTx{}, nil, config.EntitlementConfig{}, logger.NewLogger())
	h.enforcer.preFn = func(_ *consumer.Consumer, p *pool.Pool, quantity int64) (*policy.PreEntitlementResult, error) {
		res := policy.NewValidationResult()
		if !p.HasCapacityFor(quantity) {
			res.AddError("rulefailed.no.entitlements.available")
		}
		return &policy.PreEntitlementResult{ValidationResult: res}, nil
	}

	c := h.addConsumer(t, "box-1")
	p := h.addPool(t, "prod-os", 3)

	const attempts = 10
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.mgr.EntitleByPool(context.Background(), c.ID(), p.ID(), 1)
		}(i)
	}
	wg.Wait()

	var granted, refused int
	for _, err := range errs {
		if err == nil {
			granted++
			continue
		}
		var rf *policy.EntitlementRefusedError
		require.ErrorAs(t, err, &rf)
		refused++
	}
	assert.Equal(t, 3, granted)
	assert.Equal(t, attempts-3, refused)
	assert.Equal(t, int64(3), p.Consumed())
	count, err := h.entRepo.CountByPool(context.Background(), p.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestEntitleByPoolCreatesDerivedPool(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	c := h.addConsumer(t, "host-1")
	p := h.addPool(t, "prod-virt", 2)

	h.enforcer.postFn = func(_ *consumer.Consumer, _ *pool.Pool, _ *entitlement.Entitlement) (*policy.PostActions, error) {
		return &policy.PostActions{DerivedPools: []policy.DerivedPoolSpec{{
			ProductID:  "prod-virt",
			Quantity:   pool.UnlimitedQuantity,
			Attributes: map[string]string{"virt_only": "true"},
		}}}, nil
	}

	ent, err := h.mgr.EntitleByPool(context.Background(), c.ID(), p.ID(), 1)
	require.NoError(t, err)

	derived, err := h.poolRepo.ListBySourceEntitlement(context.Background(), ent.ID())
	require.NoError(t, err)
	require.Len(t, derived, 1)
	assert.True(t, derived[0].IsDerived())
	assert.True(t, derived[0].IsUnlimited())
	v, _ := derived[0].Attribute("virt_only")
	assert.Equal(t, "true", v)
	assert.Equal(t, p.StartDate(), derived[0].StartDate())
}

func TestEntitleByPoolRegeneratesModifyingCertificates(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	c := h.addConsumer(t, "box-1")
	base := h.addPool(t, "prod-os", 5)
	extras := h.addPool(t, "prod-extras", 5)

	h.products.products["prod-os"] = &subscription.Product{ID: "prod-os", Name: "OS"}
	h.products.products["prod-extras"] = &subscription.Product{
		ID: "prod-extras", Name: "Extras",
		Attributes: map[string]string{"modifies": "prod-os"},
	}

	extrasEnt, err := h.mgr.EntitleByPool(context.Background(), c.ID(), extras.ID(), 1)
	require.NoError(t, err)
	require.Empty(t, h.certs.regenerated)

	// gaining prod-os must refresh the extras certificate
	_, err = h.mgr.EntitleByPool(context.Background(), c.ID(), base.ID(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{extrasEnt.ID()}, h.certs.regenerated)
}

// ---- autobind ----

func TestEntitleByProductsBindsBestPool(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	c := h.addConsumer(t, "box-1")
	h.addPool(t, "prod-other", 5)
	p := h.addPool(t, "prod-os", 5)

	ents, err := h.mgr.EntitleByProducts(context.Background(), c.ID(), []string{"prod-os"})
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, p.ID(), ents[0].PoolID())
	assert.Equal(t, int64(1), p.Consumed())
}

func TestEntitleByProductsNoMatchingPool(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	c := h.addConsumer(t, "box-1")
	h.addPool(t, "prod-other", 5)

	_, err := h.mgr.EntitleByProducts(context.Background(), c.ID(), []string{"prod-os"})
	assert.ErrorIs(t, err, pool.ErrNoEntitlementsAvailable)
}

func TestEntitleByProductsAllRefusedReportsLastFailure(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	c := h.addConsumer(t, "box-1")
	h.addPool(t, "prod-os", 5)

	h.enforcer.preFn = func(_ *consumer.Consumer, _ *pool.Pool, _ int64) (*policy.PreEntitlementResult, error) {
		res := policy.NewValidationResult()
		res.AddError("rulefailed.arch.mismatch")
		return &policy.PreEntitlementResult{ValidationResult: res}, nil
	}

	_, err := h.mgr.EntitleByProducts(context.Background(), c.ID(), []string{"prod-os"})
	var refused *policy.EntitlementRefusedError
	require.ErrorAs(t, err, &refused)
	assert.Contains(t, refused.Result.Errors(), "rulefailed.arch.mismatch")
}

func TestEntitleByProductsSkipsExpiredPools(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	c := h.addConsumer(t, "box-1")
	expired, err := pool.NewPool("acme", "prod-os", "OS", nil, 5,
		time.Now().Add(-48*time.Hour), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, h.poolRepo.Create(context.Background(), expired))

	_, err = h.mgr.EntitleByProducts(context.Background(), c.ID(), []string{"prod-os"})
	assert.ErrorIs(t, err, pool.ErrNoEntitlementsAvailable)
}

func TestEntitleByProductsHonorsSelection(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	c := h.addConsumer(t, "box-1")
	h.addPool(t, "prod-os", 5)
	second := h.addPool(t, "prod-os", 5)

	h.enforcer.selectFn = func(candidates []*pool.Pool) ([]*pool.Pool, error) {
		return []*pool.Pool{candidates[len(candidates)-1]}, nil
	}

	ents, err := h.mgr.EntitleByProducts(context.Background(), c.ID(), []string{"prod-os"})
	require.NoError(t, err)
	require.Len(t, ents, 1)
	assert.Equal(t, second.ID(), ents[0].PoolID())
}

// ---- revoke ----

func TestRevokeEntitlementReleasesCapacity(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	c := h.addConsumer(t, "box-1")
	p := h.addPool(t, "prod-os", 5)

	ent, err := h.mgr.EntitleByPool(context.Background(), c.ID(), p.ID(), 2)
	require.NoError(t, err)
	require.Equal(t, int64(2), p.Consumed())

	require.NoError(t, h.mgr.RevokeEntitlement(context.Background(), nil, ent.ID()))

	assert.Equal(t, int64(0), p.Consumed())
	assert.Equal(t, []string{ent.ID()}, h.certs.revoked)
	_, err = h.entRepo.FindByID(context.Background(), ent.ID())
	assert.ErrorIs(t, err, entitlement.ErrEntitlementNotFound)
}

func TestRevokeEntitlementCascadesDerivedPools(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	host := h.addConsumer(t, "host-1")
	guest := h.addConsumer(t, "guest-1")
	p := h.addPool(t, "prod-virt", 2)

	h.enforcer.postFn = func(_ *consumer.Consumer, src *pool.Pool, _ *entitlement.Entitlement) (*policy.PostActions, error) {
		if src.IsDerived() {
			return &policy.PostActions{}, nil
		}
		return &policy.PostActions{DerivedPools: []policy.DerivedPoolSpec{{
			ProductID: "prod-virt", Quantity: 4,
		}}}, nil
	}

	hostEnt, err := h.mgr.EntitleByPool(context.Background(), host.ID(), p.ID(), 1)
	require.NoError(t, err)
	derived, _ := h.poolRepo.ListBySourceEntitlement(context.Background(), hostEnt.ID())
	require.Len(t, derived, 1)

	guestEnt, err := h.mgr.EntitleByPool(context.Background(), guest.ID(), derived[0].ID(), 1)
	require.NoError(t, err)

	// admin revocation cascades through the sub-pool
	require.NoError(t, h.mgr.RevokeEntitlement(context.Background(), nil, hostEnt.ID()))

	_, err = h.poolRepo.FindByID(context.Background(), derived[0].ID())
	assert.ErrorIs(t, err, pool.ErrPoolNotFound)
	_, err = h.entRepo.FindByID(context.Background(), guestEnt.ID())
	assert.ErrorIs(t, err, entitlement.ErrEntitlementNotFound)
	assert.ElementsMatch(t, []string{hostEnt.ID(), guestEnt.ID()}, h.certs.revoked)
}

func TestConsumerCannotRevokeWithOutstandingSubPoolUsage(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	host := h.addConsumer(t, "host-1")
	guest := h.addConsumer(t, "guest-vm")
	p := h.addPool(t, "prod-virt", 2)

	h.enforcer.postFn = func(_ *consumer.Consumer, src *pool.Pool, _ *entitlement.Entitlement) (*policy.PostActions, error) {
		if src.IsDerived() {
			return &policy.PostActions{}, nil
		}
		return &policy.PostActions{DerivedPools: []policy.DerivedPoolSpec{{
			ProductID: "prod-virt", Quantity: 4,
		}}}, nil
	}

	hostEnt, err := h.mgr.EntitleByPool(context.Background(), host.ID(), p.ID(), 1)
	require.NoError(t, err)
	derived, _ := h.poolRepo.ListBySourceEntitlement(context.Background(), hostEnt.ID())
	require.Len(t, derived, 1)
	_, err = h.mgr.EntitleByPool(context.Background(), guest.ID(), derived[0].ID(), 1)
	require.NoError(t, err)

	principal := auth.NewConsumerPrincipal(host.ID(), host.OwnerKey())
	err = h.mgr.RevokeEntitlement(context.Background(), principal, hostEnt.ID())
	require.Error(t, err)
	assert.True(t, errors.IsForbiddenError(err))
	assert.Contains(t, err.Error(), "guest-vm")

	// the entitlement survives
	_, err = h.entRepo.FindByID(context.Background(), hostEnt.ID())
	assert.NoError(t, err)
}

func TestConsumerCanRevokeWhenSubPoolsUnused(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	host := h.addConsumer(t, "host-1")
	p := h.addPool(t, "prod-virt", 2)

	h.enforcer.postFn = func(_ *consumer.Consumer, src *pool.Pool, _ *entitlement.Entitlement) (*policy.PostActions, error) {
		if src.IsDerived() {
			return &policy.PostActions{}, nil
		}
		return &policy.PostActions{DerivedPools: []policy.DerivedPoolSpec{{
			ProductID: "prod-virt", Quantity: 4,
		}}}, nil
	}

	hostEnt, err := h.mgr.EntitleByPool(context.Background(), host.ID(), p.ID(), 1)
	require.NoError(t, err)

	principal := auth.NewConsumerPrincipal(host.ID(), host.OwnerKey())
	require.NoError(t, h.mgr.RevokeEntitlement(context.Background(), principal, hostEnt.ID()))

	derived, _ := h.poolRepo.ListBySourceEntitlement(context.Background(), hostEnt.ID())
	assert.Empty(t, derived)
}

func TestRevokeAllEntitlements(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	c := h.addConsumer(t, "box-1")
	p1 := h.addPool(t, "prod-os", 5)
	p2 := h.addPool(t, "prod-extras", 5)

	_, err := h.mgr.EntitleByPool(context.Background(), c.ID(), p1.ID(), 1)
	require.NoError(t, err)
	_, err = h.mgr.EntitleByPool(context.Background(), c.ID(), p2.ID(), 1)
	require.NoError(t, err)

	require.NoError(t, h.mgr.RevokeAllEntitlements(context.Background(), nil, c.ID()))

	ents, _ := h.entRepo.ListByConsumer(context.Background(), c.ID())
	assert.Empty(t, ents)
	assert.Equal(t, int64(0), p1.Consumed())
	assert.Equal(t, int64(0), p2.Consumed())
}

func TestDeletePoolRevokesEntitlements(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	c := h.addConsumer(t, "box-1")
	p := h.addPool(t, "prod-os", 5)

	ent, err := h.mgr.EntitleByPool(context.Background(), c.ID(), p.ID(), 1)
	require.NoError(t, err)

	require.NoError(t, h.mgr.DeletePool(context.Background(), p.ID()))

	_, err = h.poolRepo.FindByID(context.Background(), p.ID())
	assert.ErrorIs(t, err, pool.ErrPoolNotFound)
	_, err = h.entRepo.FindByID(context.Background(), ent.ID())
	assert.ErrorIs(t, err, entitlement.ErrEntitlementNotFound)
	assert.Equal(t, []string{ent.ID()}, h.certs.revoked)
}

func TestRegenerateCertificates(t *testing.T) {
	h := newHarness(t, config.EntitlementConfig{})
	c := h.addConsumer(t, "box-1")
	p := h.addPool(t, "prod-os", 5)

	ent, err := h.mgr.EntitleByPool(context.Background(), c.ID(), p.ID(), 1)
	require.NoError(t, err)

	require.NoError(t, h.mgr.RegenerateCertificates(context.Background(), c.ID()))
	assert.Equal(t, []string{ent.ID()}, h.certs.regenerated)
}
