package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"donation-rewards-api/internal/models"
)

// EligibilityCache stores computed eligibility per user and month. It is a
// read-through aid for the check endpoint only; claims always re-evaluate
// against the database.
type EligibilityCache struct {
	backend Cache
	ttl     time.Duration
	log     *zap.Logger
}

func NewEligibilityCache(backend Cache, ttl time.Duration, log *zap.Logger) *EligibilityCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &EligibilityCache{backend: backend, ttl: ttl, log: log}
}

func eligibilityKey(userID, period string) string {
	return "eligibility:" + userID + ":" + period
}

// Get returns the cached response, if any. Backend errors are logged and
// reported as a miss.
func (c *EligibilityCache) Get(ctx context.Context, userID, period string) (*models.EligibilityResponse, bool) {
	var resp models.EligibilityResponse
	err := GetJSON(ctx, c.backend, eligibilityKey(userID, period), &resp)
	if errors.Is(err, ErrNotFound) {
		return nil, false
	}
	if err != nil {
		c.log.Warn("eligibility cache read failed", zap.String("user_id", userID), zap.Error(err))
		return nil, false
	}
	return &resp, true
}

func (c *EligibilityCache) Put(ctx context.Context, userID, period string, resp models.EligibilityResponse) {
	if err := SetJSON(ctx, c.backend, eligibilityKey(userID, period), resp, c.ttl); err != nil {
		c.log.Warn("eligibility cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (c *EligibilityCache) Invalidate(ctx context.Context, userID, period string) {
	if err := c.backend.Delete(ctx, eligibilityKey(userID, period)); err != nil {
		c.log.Warn("eligibility cache invalidation failed",
			zap.String("user_id", userID),
			zap.String("period", period),
			zap.Error(err),
		)
	}
}
