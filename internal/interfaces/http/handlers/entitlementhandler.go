package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	poolApp "github.com/wick-sh/wick/internal/application/pool"
	"github.com/wick-sh/wick/internal/domain/certificate"
	"github.com/wick-sh/wick/internal/domain/entitlement"
	"github.com/wick-sh/wick/internal/interfaces/http/middleware"
	"github.com/wick-sh/wick/internal/shared/logger"
	"github.com/wick-sh/wick/internal/shared/utils"
)

// EntitlementHandler handles HTTP requests for binding and unbinding
// entitlements and for fetching the certificates they carry.
type EntitlementHandler struct {
	manager  *poolApp.Manager
	entRepo  entitlement.Repository
	certRepo certificate.EntitlementCertRepository
	logger   logger.Interface
}

// NewEntitlementHandler creates a new entitlement handler.
func NewEntitlementHandler(
	manager *poolApp.Manager,
	entRepo entitlement.Repository,
	certRepo certificate.EntitlementCertRepository,
	logger logger.Interface,
) *EntitlementHandler {
	return &EntitlementHandler{
		manager:  manager,
		entRepo:  entRepo,
		certRepo: certRepo,
		logger:   logger,
	}
}

type bindRequest struct {
	PoolID   string   `json:"pool_id"`
	Products []string `json:"products"`
	Quantity int64    `json:"quantity"`
}

// Bind handles POST /consumers/:id/entitlements
// Either pool_id (direct bind) or products (autobind) must be set.
func (h *EntitlementHandler) Bind(c *gin.Context) {
	consumerID := c.Param("id")

	var req bindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	switch {
	case req.PoolID != "":
		quantity := req.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		ent, err := h.manager.EntitleByPool(c.Request.Context(), consumerID, req.PoolID, quantity)
		if err != nil {
			h.logger.Warnw("bind by pool failed",
				"error", err, "consumer_id", consumerID, "pool_id", req.PoolID)
			respondDomainError(c, err)
			return
		}
		utils.CreatedResponse(c, gin.H{"entitlements": toEntitlementResponses([]*entitlement.Entitlement{ent})})

	case len(req.Products) > 0:
		ents, err := h.manager.EntitleByProducts(c.Request.Context(), consumerID, req.Products)
		if err != nil {
			h.logger.Warnw("bind by products failed",
				"error", err, "consumer_id", consumerID, "products", req.Products)
			respondDomainError(c, err)
			return
		}
		utils.CreatedResponse(c, gin.H{"entitlements": toEntitlementResponses(ents)})

	default:
		utils.ErrorResponse(c, http.StatusBadRequest, "either pool_id or products must be provided")
	}
}

// List handles GET /consumers/:id/entitlements
func (h *EntitlementHandler) List(c *gin.Context) {
	consumerID := c.Param("id")

	ents, err := h.entRepo.ListByConsumer(c.Request.Context(), consumerID)
	if err != nil {
		h.logger.Errorw("failed to list entitlements", "error", err, "consumer_id", consumerID)
		respondDomainError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"entitlements": toEntitlementResponses(ents)})
}

// Unbind handles DELETE /entitlements/:id
// Consumer principals are refused while derived sub-pools still have
// outstanding entitlements.
func (h *EntitlementHandler) Unbind(c *gin.Context) {
	entitlementID := c.Param("id")

	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.manager.RevokeEntitlement(c.Request.Context(), principal, entitlementID); err != nil {
		h.logger.Warnw("unbind failed", "error", err, "entitlement_id", entitlementID)
		respondDomainError(c, err)
		return
	}

	utils.NoContentResponse(c)
}

// Certificates handles GET /entitlements/:id/certificates
func (h *EntitlementHandler) Certificates(c *gin.Context) {
	entitlementID := c.Param("id")

	certs, err := h.certRepo.FindByEntitlement(c.Request.Context(), entitlementID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	out := make([]CertificateResponse, 0, len(certs))
	for _, crt := range certs {
		out = append(out, CertificateResponse{
			Serial:        crt.Serial(),
			EntitlementID: crt.EntitlementID(),
			Cert:          string(crt.CertPEM()),
			Key:           string(crt.KeyPEM()),
			CreatedAt:     crt.CreatedAt(),
		})
	}
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"certificates": out})
}

// RegenerateCertificates handles POST /consumers/:id/certificates/regenerate
func (h *EntitlementHandler) RegenerateCertificates(c *gin.Context) {
	consumerID := c.Param("id")

	if err := h.manager.RegenerateCertificates(c.Request.Context(), consumerID); err != nil {
		h.logger.Errorw("certificate regeneration failed", "error", err, "consumer_id", consumerID)
		respondDomainError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "certificates regenerated", nil)
}
