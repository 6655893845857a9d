package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	consumerApp "github.com/wick-sh/wick/internal/application/consumer"
	"github.com/wick-sh/wick/internal/interfaces/http/middleware"
	"github.com/wick-sh/wick/internal/shared/logger"
	"github.com/wick-sh/wick/internal/shared/utils"
)

// ConsumerHandler handles HTTP requests for consumer registration and lifecycle.
type ConsumerHandler struct {
	service *consumerApp.Service
	logger  logger.Interface
}

// NewConsumerHandler creates a new consumer handler.
func NewConsumerHandler(service *consumerApp.Service, logger logger.Interface) *ConsumerHandler {
	return &ConsumerHandler{
		service: service,
		logger:  logger,
	}
}

type registerConsumerRequest struct {
	Name     string            `json:"name" validate:"required,min=1,max=255"`
	Type     string            `json:"type" validate:"omitempty,oneof=system person hypervisor domain"`
	Username string            `json:"username" validate:"omitempty,max=255"`
	Facts    map[string]string `json:"facts"`
}

// Register handles POST /owners/:owner/consumers
func (h *ConsumerHandler) Register(c *gin.Context) {
	ownerKey := c.Param("owner")

	var req registerConsumerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	if req.Type == "" {
		req.Type = "system"
	}

	cons, err := h.service.Register(c.Request.Context(), consumerApp.RegisterInput{
		Name:      req.Name,
		TypeLabel: req.Type,
		OwnerKey:  ownerKey,
		Username:  req.Username,
		Facts:     req.Facts,
	})
	if err != nil {
		h.logger.Errorw("failed to register consumer", "error", err, "owner", ownerKey, "name", req.Name)
		respondDomainError(c, err)
		return
	}

	utils.CreatedResponse(c, toConsumerResponse(cons), "consumer registered")
}

// Get handles GET /consumers/:id
func (h *ConsumerHandler) Get(c *gin.Context) {
	id := c.Param("id")

	cons, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", toConsumerResponse(cons))
}

// ListByOwner handles GET /owners/:owner/consumers
func (h *ConsumerHandler) ListByOwner(c *gin.Context) {
	ownerKey := c.Param("owner")

	consumers, err := h.service.ListByOwner(c.Request.Context(), ownerKey)
	if err != nil {
		h.logger.Errorw("failed to list consumers", "error", err, "owner", ownerKey)
		respondDomainError(c, err)
		return
	}

	out := make([]ConsumerResponse, 0, len(consumers))
	for _, cons := range consumers {
		out = append(out, toConsumerResponse(cons))
	}
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"consumers": out})
}

type updateFactsRequest struct {
	Facts map[string]string `json:"facts" binding:"required"`
}

// UpdateFacts handles PUT /consumers/:id/facts
func (h *ConsumerHandler) UpdateFacts(c *gin.Context) {
	id := c.Param("id")

	var req updateFactsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cons, err := h.service.UpdateFacts(c.Request.Context(), id, req.Facts)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "facts updated", toConsumerResponse(cons))
}

// Unregister handles DELETE /consumers/:id
// All of the consumer's entitlements are revoked before the record is removed.
func (h *ConsumerHandler) Unregister(c *gin.Context) {
	id := c.Param("id")

	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.service.Unregister(c.Request.Context(), principal, id); err != nil {
		h.logger.Errorw("failed to unregister consumer", "error", err, "consumer_id", id)
		respondDomainError(c, err)
		return
	}

	utils.NoContentResponse(c)
}
