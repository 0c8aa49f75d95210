package market

import (
	"sync"
)

// Cache accumulates per-symbol candle series across ticks. Constructed once
// at startup, owned by the trading loop, appended to by pollers and the
// websocket feed.
//
// Merge rules per incoming candle: newer than the latest bar appends,
// equal timestamp replaces the latest bar (the exchange restates the
// still-open candle), older bars are dropped.
type Cache struct {
	mu      sync.RWMutex
	series  map[string]Series
	maxBars int
}

// NewCache creates an empty cache. maxBars bounds each symbol's retained
// history; 0 means unbounded.
func NewCache(maxBars int) *Cache {
	return &Cache{
		series:  make(map[string]Series),
		maxBars: maxBars,
	}
}

// Merge folds incoming candles into the symbol's cumulative series and
// returns the number of bars appended or replaced.
func (c *Cache) Merge(symbol string, incoming Series) int {
	if len(incoming) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.series[symbol]
	applied := 0
	for _, candle := range incoming.Sorted() {
		n := len(cur)
		switch {
		case n == 0 || candle.Time.After(cur[n-1].Time):
			cur = append(cur, candle)
			applied++
		case candle.Time.Equal(cur[n-1].Time):
			cur[n-1] = candle
			applied++
		}
	}

	if c.maxBars > 0 && len(cur) > c.maxBars {
		trimmed := make(Series, c.maxBars)
		copy(trimmed, cur[len(cur)-c.maxBars:])
		cur = trimmed
	}

	c.series[symbol] = cur
	return applied
}

// Get returns a copy of the symbol's series, safe for the caller to hold
// across a strategy evaluation.
func (c *Cache) Get(symbol string) Series {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cur := c.series[symbol]
	if len(cur) == 0 {
		return nil
	}
	out := make(Series, len(cur))
	copy(out, cur)
	return out
}

// Snapshot returns a copy of every symbol's series, keyed by symbol.
func (c *Cache) Snapshot() map[string]Series {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Series, len(c.series))
	for sym, cur := range c.series {
		s := make(Series, len(cur))
		copy(s, cur)
		out[sym] = s
	}
	return out
}
