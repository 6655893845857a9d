package pool

import (
	"context"

	"github.com/wick-sh/wick/internal/shared/logger"
)

// OwnerLister enumerates the owner keys known to the upstream subscription
// source. Satisfied by the subscription service adapters.
type OwnerLister interface {
	Owners(ctx context.Context) ([]string, error)
}

// RefreshJob reconciles pools for every known owner. It implements the
// scheduler's BatchJob contract and returns the number of owners refreshed.
type RefreshJob struct {
	manager *Manager
	owners  OwnerLister
	logger  logger.Interface
}

// NewRefreshJob creates a new RefreshJob.
func NewRefreshJob(manager *Manager, owners OwnerLister, logger logger.Interface) *RefreshJob {
	return &RefreshJob{
		manager: manager,
		owners:  owners,
		logger:  logger,
	}
}

// Execute refreshes pools owner by owner. A failure for one owner does not
// stop the others; the first error is reported after the full sweep.
func (j *RefreshJob) Execute(ctx context.Context) (int, error) {
	owners, err := j.owners.Owners(ctx)
	if err != nil {
		return 0, err
	}

	var firstErr error
	refreshed := 0
	for _, ownerKey := range owners {
		if err := j.manager.RefreshPools(ctx, ownerKey); err != nil {
			j.logger.Errorw("pool refresh failed for owner",
				"owner", ownerKey, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		refreshed++
	}
	return refreshed, firstErr
}
