package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wick-sh/wick/internal/interfaces/http/middleware"
)

// registerRoutes attaches middlewares and the API surface to the engine.
// The CRL is served without authentication so clients can verify
// certificates before they hold any credentials.
func (c *Container) registerRoutes() {
	c.engine.Use(middleware.Recovery())
	c.engine.Use(middleware.Logger(c.log))
	c.engine.Use(middleware.CORS(nil))

	c.engine.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	c.engine.GET("/crl", c.crlHandler.Get)

	api := c.engine.Group("/api/v1")
	api.Use(c.authMiddleware.RequireAuth())

	owners := api.Group("/owners/:owner")
	{
		owners.GET("/pools",
			c.permMiddleware.RequirePermission("pool", "read"), c.poolHandler.ListByOwner)
		owners.POST("/pools/refresh",
			c.permMiddleware.RequirePermission("owner", "refresh"), c.poolHandler.Refresh)
		owners.GET("/consumers",
			c.permMiddleware.RequirePermission("consumer", "read"), c.consumerHandler.ListByOwner)
		owners.POST("/consumers",
			c.permMiddleware.RequirePermission("consumer", "create"), c.consumerHandler.Register)
	}

	pools := api.Group("/pools")
	{
		pools.GET("/:id",
			c.permMiddleware.RequirePermission("pool", "read"), c.poolHandler.Get)
		pools.DELETE("/:id",
			c.permMiddleware.RequirePermission("pool", "delete"), c.poolHandler.Delete)
	}

	consumers := api.Group("/consumers")
	{
		consumers.GET("/:id",
			c.permMiddleware.RequirePermission("consumer", "read"), c.consumerHandler.Get)
		consumers.PUT("/:id/facts",
			c.permMiddleware.RequirePermission("consumer", "update"), c.consumerHandler.UpdateFacts)
		consumers.DELETE("/:id",
			c.permMiddleware.RequirePermission("consumer", "delete"), c.consumerHandler.Unregister)
		consumers.GET("/:id/entitlements",
			c.permMiddleware.RequirePermission("entitlement", "read"), c.entitlementHandler.List)
		consumers.POST("/:id/entitlements",
			c.permMiddleware.RequirePermission("entitlement", "create"), c.entitlementHandler.Bind)
		consumers.POST("/:id/certificates/regenerate",
			c.permMiddleware.RequirePermission("certificate", "regenerate"), c.entitlementHandler.RegenerateCertificates)
	}

	entitlements := api.Group("/entitlements")
	{
		entitlements.DELETE("/:id",
			c.permMiddleware.RequirePermission("entitlement", "delete"), c.entitlementHandler.Unbind)
		entitlements.GET("/:id/certificates",
			c.permMiddleware.RequirePermission("certificate", "read"), c.entitlementHandler.Certificates)
	}

	api.POST("/crl/update",
		c.permMiddleware.RequirePermission("crl", "update"), c.crlHandler.Update)
}
