package http

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	certificateApp "github.com/wick-sh/wick/internal/application/certificate"
	consumerApp "github.com/wick-sh/wick/internal/application/consumer"
	poolApp "github.com/wick-sh/wick/internal/application/pool"
	"github.com/wick-sh/wick/internal/domain/certificate"
	"github.com/wick-sh/wick/internal/domain/consumer"
	"github.com/wick-sh/wick/internal/domain/entitlement"
	"github.com/wick-sh/wick/internal/domain/pool"
	"github.com/wick-sh/wick/internal/domain/shared/events"
	"github.com/wick-sh/wick/internal/domain/subscription"
	"github.com/wick-sh/wick/internal/infrastructure/adapters"
	infraAuth "github.com/wick-sh/wick/internal/infrastructure/auth"
	"github.com/wick-sh/wick/internal/infrastructure/config"
	"github.com/wick-sh/wick/internal/infrastructure/permission"
	"github.com/wick-sh/wick/internal/infrastructure/pki"
	"github.com/wick-sh/wick/internal/infrastructure/repository"
	"github.com/wick-sh/wick/internal/infrastructure/rules"
	"github.com/wick-sh/wick/internal/infrastructure/scheduler"
	"github.com/wick-sh/wick/internal/interfaces/http/handlers"
	"github.com/wick-sh/wick/internal/interfaces/http/middleware"
	"github.com/wick-sh/wick/internal/shared/db"
	"github.com/wick-sh/wick/internal/shared/logger"
)

// Container wires repositories, domain services, handlers and background jobs
// together and owns their shutdown order.
type Container struct {
	engine *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
	log    logger.Interface
	redis  *redis.Client

	// Repositories
	poolRepo     pool.Repository
	entRepo      entitlement.Repository
	consumerRepo consumer.Repository
	serialRepo   certificate.SerialRepository
	certRepo     certificate.EntitlementCertRepository

	// Upstream adapters
	subService  *adapters.YAMLSubscriptionService
	prodService subscription.ProductService

	// PKI
	certReader   *pki.CertificateReader
	issuer       *pki.PKI
	crlGenerator *pki.CRLGenerator

	// Domain services
	certService     *certificateApp.ServiceImpl
	poolManager     *poolApp.Manager
	consumerService *consumerApp.Service
	ruleEngine      *rules.Engine
	ruleEnforcer    *rules.Enforcer
	permEnforcer    *permission.Enforcer

	// Handlers
	consumerHandler    *handlers.ConsumerHandler
	poolHandler        *handlers.PoolHandler
	entitlementHandler *handlers.EntitlementHandler
	crlHandler         *handlers.CRLHandler

	// Middlewares
	jwtService     *infraAuth.JWTService
	authMiddleware *middleware.AuthMiddleware
	permMiddleware *middleware.PermissionMiddleware

	// Background services
	dispatcher       *events.InMemoryEventDispatcher
	schedulerManager *scheduler.SchedulerManager
}

// NewContainer creates a Container with all dependencies wired together.
func NewContainer(gdb *gorm.DB, cfg *config.Config, log logger.Interface) (*Container, error) {
	c := &Container{
		engine: gin.New(),
		db:     gdb,
		cfg:    cfg,
		log:    log,
	}

	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}
	if err := c.initServices(); err != nil {
		return nil, err
	}
	c.initHandlers()
	if err := c.initScheduler(); err != nil {
		return nil, err
	}
	c.registerRoutes()

	return c, nil
}

// initInfrastructure sets up repositories, upstream adapters and the PKI.
func (c *Container) initInfrastructure() error {
	if c.cfg.Redis.Enabled {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     c.cfg.Redis.Addr,
			Password: c.cfg.Redis.Password,
			DB:       c.cfg.Redis.DB,
		})
	}

	c.poolRepo = repository.NewPoolRepository(c.db, c.log)
	c.entRepo = repository.NewEntitlementRepository(c.db, c.log)
	c.consumerRepo = repository.NewConsumerRepository(c.db, c.log)
	c.serialRepo = repository.NewCertificateSerialRepository(c.db, c.log)
	c.certRepo = repository.NewEntitlementCertRepository(c.db, c.log)

	subSvc, err := adapters.NewYAMLSubscriptionService(c.cfg.Adapters.SubscriptionsFile, c.log)
	if err != nil {
		return fmt.Errorf("failed to load subscription catalog: %w", err)
	}
	c.subService = subSvc

	prodSvc, err := adapters.NewYAMLProductService(c.cfg.Adapters.ProductsFile, c.log)
	if err != nil {
		return fmt.Errorf("failed to load product catalog: %w", err)
	}
	c.prodService = prodSvc
	if c.redis != nil {
		ttl := time.Duration(c.cfg.Adapters.ProductCacheTTL) * time.Minute
		c.prodService = adapters.NewCachedProductService(prodSvc, c.redis, ttl, c.log)
	}

	c.certReader = pki.NewCertificateReader(c.cfg.PKI)
	c.issuer = pki.New(c.certReader)
	c.crlGenerator = pki.NewCRLGenerator(c.certReader, c.serialRepo,
		time.Duration(c.cfg.CRL.ValidityHours)*time.Hour, c.log)

	return nil
}

// initServices sets up the rules engine, role enforcer and the application
// services built on top of the repositories.
func (c *Container) initServices() error {
	engine, err := rules.NewEngineFromFile(c.cfg.Rules.Path, c.log)
	if err != nil {
		return fmt.Errorf("failed to load entitlement rules: %w", err)
	}
	c.ruleEngine = engine
	c.ruleEnforcer = rules.NewEnforcer(engine, c.prodService)

	permEnforcer, err := permission.NewEnforcer(c.db, c.cfg.Auth.RBACModel, c.log)
	if err != nil {
		return fmt.Errorf("failed to init permission enforcer: %w", err)
	}
	c.permEnforcer = permEnforcer
	if err := permission.InitEntitlementPermissions(permEnforcer.Casbin(), c.log); err != nil {
		return fmt.Errorf("failed to seed permissions: %w", err)
	}

	c.dispatcher = events.NewInMemoryEventDispatcher(256, c.log)
	if err := c.dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start event dispatcher: %w", err)
	}
	c.subscribeAuditLog()

	c.certService = certificateApp.NewService(c.issuer, c.serialRepo, c.certRepo, c.log)

	c.poolManager = poolApp.NewManager(
		c.poolRepo,
		c.entRepo,
		c.consumerRepo,
		c.certService,
		c.ruleEnforcer,
		c.subService,
		c.prodService,
		db.NewTransactionManager(c.db),
		c.dispatcher,
		c.cfg.Entitlement,
		c.log,
	)

	c.consumerService = consumerApp.NewService(c.consumerRepo, c.poolManager, c.log)

	return nil
}

// subscribeAuditLog logs every pool and entitlement lifecycle event.
func (c *Container) subscribeAuditLog() {
	audit := func(event events.DomainEvent) error {
		c.log.Infow("audit",
			"event_type", event.GetEventType(),
			"aggregate_id", event.GetAggregateID(),
			"occurred_at", event.GetOccurredAt())
		return nil
	}
	for _, eventType := range []string{
		pool.EventPoolCreated,
		pool.EventPoolChanged,
		pool.EventPoolDeleted,
		entitlement.EventEntitlementCreated,
		entitlement.EventEntitlementChanged,
		entitlement.EventEntitlementDeleted,
	} {
		handler := events.NewSimpleEventHandler(eventType, audit)
		if err := c.dispatcher.Subscribe(eventType, handler); err != nil {
			c.log.Warnw("failed to subscribe audit handler", "event_type", eventType, "error", err)
		}
	}
}

// initHandlers sets up HTTP handlers and middlewares.
func (c *Container) initHandlers() {
	c.jwtService = infraAuth.NewJWTService(
		c.cfg.Auth.JWT.Secret,
		c.cfg.Auth.JWT.AccessExpMinutes,
		c.cfg.Auth.JWT.RefreshExpDays,
	)
	c.authMiddleware = middleware.NewAuthMiddleware(c.jwtService, c.log)
	c.permMiddleware = middleware.NewPermissionMiddleware(c.permEnforcer, c.log)

	c.consumerHandler = handlers.NewConsumerHandler(c.consumerService, c.log)
	c.poolHandler = handlers.NewPoolHandler(c.poolManager, c.poolRepo, c.log)
	c.entitlementHandler = handlers.NewEntitlementHandler(c.poolManager, c.entRepo, c.certRepo, c.log)
	c.crlHandler = handlers.NewCRLHandler(c.crlGenerator, c.cfg.CRL.FilePath, c.log)
}

// initScheduler sets up the background CRL and pool refresh jobs.
func (c *Container) initScheduler() error {
	mgr, err := scheduler.NewSchedulerManager(c.log)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	c.schedulerManager = mgr

	if err := mgr.RegisterCRLJobs(c.crlGenerator, c.cfg.CRL); err != nil {
		return fmt.Errorf("failed to register crl job: %w", err)
	}

	refreshJob := poolApp.NewRefreshJob(c.poolManager, c.subService, c.log)
	interval := time.Duration(c.cfg.Entitlement.RefreshIntervalMinutes) * time.Minute
	if err := mgr.RegisterPoolRefreshJobs(refreshJob, interval); err != nil {
		return fmt.Errorf("failed to register pool refresh job: %w", err)
	}

	return nil
}

// Engine returns the configured gin engine.
func (c *Container) Engine() *gin.Engine {
	return c.engine
}

// Scheduler returns the background job manager.
func (c *Container) Scheduler() *scheduler.SchedulerManager {
	return c.schedulerManager
}

// Shutdown stops background services in reverse dependency order.
func (c *Container) Shutdown(ctx context.Context) error {
	if c.schedulerManager != nil && c.schedulerManager.IsStarted() {
		if err := c.schedulerManager.Stop(); err != nil {
			c.log.Warnw("scheduler stop failed", "error", err)
		}
	}
	if c.dispatcher != nil {
		if err := c.dispatcher.Stop(); err != nil {
			c.log.Warnw("event dispatcher stop failed", "error", err)
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.log.Warnw("redis close failed", "error", err)
		}
	}
	return nil
}
