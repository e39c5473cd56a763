package service

import (
	"fmt"
	"time"

	"island-tracker/internal/domain"
	"island-tracker/internal/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// statsCache holds recent extraction results per map code and option set.
// Entries are shared read-only between callers.
type statsCache struct {
	lru *expirable.LRU[string, *domain.IslandStats]
}

func newStatsCache(size int, ttl time.Duration) *statsCache {
	return &statsCache{
		lru: expirable.NewLRU[string, *domain.IslandStats](size, nil, ttl),
	}
}

func cacheKey(code domain.MapCode, opts domain.ExtractOptions) string {
	return fmt.Sprintf("%s:%t:%t", code, opts.IncludeDaily, opts.IncludeMonthly)
}

func (c *statsCache) Get(code domain.MapCode, opts domain.ExtractOptions) (*domain.IslandStats, bool) {
	stats, ok := c.lru.Get(cacheKey(code, opts))
	if ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	return stats, ok
}

func (c *statsCache) Set(code domain.MapCode, opts domain.ExtractOptions, stats *domain.IslandStats) {
	c.lru.Add(cacheKey(code, opts), stats)
}

// Invalidate drops every option variant cached for code.
func (c *statsCache) Invalidate(code domain.MapCode) {
	for _, daily := range []bool{false, true} {
		for _, monthly := range []bool{false, true} {
			c.lru.Remove(cacheKey(code, domain.ExtractOptions{IncludeDaily: daily, IncludeMonthly: monthly}))
		}
	}
}

func (c *statsCache) Len() int {
	return c.lru.Len()
}
