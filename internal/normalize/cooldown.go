package normalize

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anatoliahealth/medtour-crm/pkg/logging"
)

// DefaultCooldownTTL is the minimum spacing between normalization runs for
// the same lead.
const DefaultCooldownTTL = 30 * time.Second

// Cooldown rate-limits normalization per lead using a shared Redis key, so
// the limit holds across replicas. It degrades open: with no Redis client,
// or when Redis is unreachable, every run is allowed.
type Cooldown struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCooldown builds a cooldown gate. A nil client disables gating.
func NewCooldown(client *redis.Client, ttl time.Duration, logger *logging.Logger) *Cooldown {
	if ttl <= 0 {
		ttl = DefaultCooldownTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Cooldown{client: client, ttl: ttl, logger: logger}
}

// Allow reports whether a normalization run may start for the lead. The
// first caller in a window claims the key; later callers are refused until
// the TTL expires.
func (c *Cooldown) Allow(ctx context.Context, orgID, leadID string) bool {
	if c == nil || c.client == nil {
		return true
	}
	key := "normalize:cooldown:" + orgID + ":" + leadID
	ok, err := c.client.SetNX(ctx, key, "1", c.ttl).Result()
	if err != nil {
		c.logger.Warn("normalize cooldown: redis unavailable, allowing run", "error", err)
		return true
	}
	return ok
}
