package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	poolApp "github.com/wick-sh/wick/internal/application/pool"
	"github.com/wick-sh/wick/internal/domain/pool"
	"github.com/wick-sh/wick/internal/shared/logger"
	"github.com/wick-sh/wick/internal/shared/utils"
)

// PoolHandler handles HTTP requests for pool queries and maintenance.
type PoolHandler struct {
	manager  *poolApp.Manager
	poolRepo pool.Repository
	logger   logger.Interface
}

// NewPoolHandler creates a new pool handler.
func NewPoolHandler(manager *poolApp.Manager, poolRepo pool.Repository, logger logger.Interface) *PoolHandler {
	return &PoolHandler{
		manager:  manager,
		poolRepo: poolRepo,
		logger:   logger,
	}
}

// ListByOwner handles GET /owners/:owner/pools
// Query parameters:
//   - product: only pools providing the given product ID
func (h *PoolHandler) ListByOwner(c *gin.Context) {
	ownerKey := c.Param("owner")

	pools, err := h.poolRepo.ListByOwner(c.Request.Context(), ownerKey)
	if err != nil {
		h.logger.Errorw("failed to list pools", "error", err, "owner", ownerKey)
		respondDomainError(c, err)
		return
	}

	productID := c.Query("product")

	out := make([]PoolResponse, 0, len(pools))
	for _, p := range pools {
		if productID != "" && !p.Provides(productID) {
			continue
		}
		out = append(out, toPoolResponse(p))
	}
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"pools": out})
}

// Get handles GET /pools/:id
func (h *PoolHandler) Get(c *gin.Context) {
	id := c.Param("id")

	p, err := h.poolRepo.FindByID(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", toPoolResponse(p))
}

// Refresh handles POST /owners/:owner/pools/refresh
// Reconciles the owner's pools against the subscription source.
func (h *PoolHandler) Refresh(c *gin.Context) {
	ownerKey := c.Param("owner")

	if err := h.manager.RefreshPools(c.Request.Context(), ownerKey); err != nil {
		h.logger.Errorw("pool refresh failed", "error", err, "owner", ownerKey)
		respondDomainError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "pools refreshed", nil)
}

// Delete handles DELETE /pools/:id
// Every entitlement granted from the pool is revoked first.
func (h *PoolHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if err := h.manager.DeletePool(c.Request.Context(), id); err != nil {
		h.logger.Errorw("failed to delete pool", "error", err, "pool_id", id)
		respondDomainError(c, err)
		return
	}

	utils.NoContentResponse(c)
}
