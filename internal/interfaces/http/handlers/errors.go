package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/wick-sh/wick/internal/domain/certificate"
	"github.com/wick-sh/wick/internal/domain/consumer"
	"github.com/wick-sh/wick/internal/domain/entitlement"
	"github.com/wick-sh/wick/internal/domain/policy"
	"github.com/wick-sh/wick/internal/domain/pool"
	"github.com/wick-sh/wick/internal/shared/errors"
	"github.com/wick-sh/wick/internal/shared/utils"
)

// respondDomainError translates domain sentinel errors into API error
// responses before falling back to the generic AppError mapping.
func respondDomainError(c *gin.Context, err error) {
	var refused *policy.EntitlementRefusedError
	if errors.As(err, &refused) {
		utils.ErrorResponseWithError(c, errors.NewForbiddenError(
			"entitlement refused by rules", refused.Result.Errors()...))
		return
	}

	switch {
	case errors.Is(err, pool.ErrPoolNotFound):
		utils.ErrorResponseWithError(c, errors.NewNotFoundError("pool not found"))
	case errors.Is(err, entitlement.ErrEntitlementNotFound):
		utils.ErrorResponseWithError(c, errors.NewNotFoundError("entitlement not found"))
	case errors.Is(err, consumer.ErrConsumerNotFound):
		utils.ErrorResponseWithError(c, errors.NewNotFoundError("consumer not found"))
	case errors.Is(err, certificate.ErrCertificateNotFound):
		utils.ErrorResponseWithError(c, errors.NewNotFoundError("certificate not found"))
	case errors.Is(err, pool.ErrNoEntitlementsAvailable):
		utils.ErrorResponseWithError(c, errors.NewForbiddenError("no entitlements are available for the requested products"))
	default:
		utils.ErrorResponseWithError(c, err)
	}
}
