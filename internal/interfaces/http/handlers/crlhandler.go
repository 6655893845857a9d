package handlers

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/wick-sh/wick/internal/shared/logger"
	"github.com/wick-sh/wick/internal/shared/utils"
)

// CRLUpdater regenerates the revocation list file on demand.
type CRLUpdater interface {
	UpdateFile(ctx context.Context, path string) error
}

// CRLHandler serves the certificate revocation list and triggers on-demand
// regeneration.
type CRLHandler struct {
	updater  CRLUpdater
	filePath string
	logger   logger.Interface
}

// NewCRLHandler creates a new CRL handler.
func NewCRLHandler(updater CRLUpdater, filePath string, logger logger.Interface) *CRLHandler {
	return &CRLHandler{
		updater:  updater,
		filePath: filePath,
		logger:   logger,
	}
}

// Get handles GET /crl
// Serves the current revocation list in PEM form.
func (h *CRLHandler) Get(c *gin.Context) {
	data, err := os.ReadFile(h.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			utils.ErrorResponse(c, http.StatusNotFound, "revocation list has not been generated yet")
			return
		}
		h.logger.Errorw("failed to read revocation list", "error", err, "path", h.filePath)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to read revocation list")
		return
	}

	c.Data(http.StatusOK, "application/x-pem-file", data)
}

// Update handles POST /crl/update
// Regenerates the revocation list immediately instead of waiting for the
// scheduled run.
func (h *CRLHandler) Update(c *gin.Context) {
	if err := h.updater.UpdateFile(c.Request.Context(), h.filePath); err != nil {
		h.logger.Errorw("revocation list update failed", "error", err, "path", h.filePath)
		utils.ErrorResponse(c, http.StatusInternalServerError, "failed to update revocation list")
		return
	}

	h.logger.Infow("revocation list updated", "path", h.filePath)
	utils.SuccessResponse(c, http.StatusOK, "revocation list updated", nil)
}
