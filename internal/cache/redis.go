package cache

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"outreach/internal/domain"
)

// StatsCache keeps derived campaign counters warm for the dashboard-ish
// read path. A nil *StatsCache is a valid no-op cache.
type StatsCache struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewStatsCache(addr, password string, db int, ttl time.Duration) (*StatsCache, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &StatsCache{rdb: rdb, ttl: ttl}, nil
}

func (c *StatsCache) Close() {
	if c == nil {
		return
	}
	_ = c.rdb.Close()
}

func (c *StatsCache) Get(ctx context.Context, campaignID string) (domain.CampaignStats, bool) {
	if c == nil {
		return domain.CampaignStats{}, false
	}
	raw, err := c.rdb.Get(ctx, statsKey(campaignID)).Bytes()
	if err != nil {
		return domain.CampaignStats{}, false
	}
	var stats domain.CampaignStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return domain.CampaignStats{}, false
	}
	return stats, true
}

func (c *StatsCache) Set(ctx context.Context, stats domain.CampaignStats) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	// best effort; a cache write failure only costs a recompute
	_ = c.rdb.Set(ctx, statsKey(stats.CampaignID), raw, c.ttl).Err()
}

func statsKey(campaignID string) string {
	return "campaign:stats:" + campaignID
}
