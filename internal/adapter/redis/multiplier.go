package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nomadride/surge-engine/internal/domain/models"
	"github.com/nomadride/surge-engine/internal/engine/scheduler"
	"github.com/nomadride/surge-engine/pkg/logger"
)

const (
	multiplierKeyPrefix = "surge:multiplier:"

	// Keys outlive the feed by a few intervals so a crashed engine decays
	// back to 1.0 instead of freezing stale surge prices.
	multiplierTTL = 30 * time.Minute

	writeTimeout = 2 * time.Second
)

// MultiplierCache mirrors each zone's committed multiplier into redis, where
// the fare calculator reads it on the booking hot path.
type MultiplierCache struct {
	client *redis.Client
	l      logger.Logger
}

func NewMultiplierCache(client *redis.Client, l logger.Logger) *MultiplierCache {
	return &MultiplierCache{client: client, l: l}
}

func key(zoneID string) string {
	return multiplierKeyPrefix + zoneID
}

func (c *MultiplierCache) PublishTick(ctx context.Context, view scheduler.ZoneView) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	value := strconv.FormatFloat(view.Multiplier, 'f', 2, 64)
	if err := c.client.Set(ctx, key(view.ZoneID.String()), value, multiplierTTL).Err(); err != nil {
		c.l.Warn(ctx, "failed to cache zone multiplier", "zone_id", view.ZoneID.String(), "err", err.Error())
	}
}

func (c *MultiplierCache) PublishLifecycle(ctx context.Context, event *models.SurgeEvent, transition string) {
	if transition != scheduler.TransitionClosed {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	// Closed means the zone is back at the neutral multiplier.
	if err := c.client.Set(ctx, key(event.ZoneID.String()), "1.00", multiplierTTL).Err(); err != nil {
		c.l.Warn(ctx, "failed to reset zone multiplier", "zone_id", event.ZoneID.String(), "err", err.Error())
	}
}

// Get reads a zone multiplier back, defaulting to 1.0 on a missing key.
func (c *MultiplierCache) Get(ctx context.Context, zoneID string) (float64, error) {
	val, err := c.client.Get(ctx, key(zoneID)).Result()
	if err == redis.Nil {
		return 1.0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("multiplier cache: Get: %w", err)
	}

	m, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("multiplier cache: Get (parse): %w", err)
	}
	return m, nil
}
