package engine

import "sync/atomic"

// BlockClock supplies the height counter that gates rebalance timing.
// Heights are opaque monotonic units, not wall time.
type BlockClock interface {
	Height() int64
}

// TickClock is the production clock: the host advances it once per
// settlement tick. Safe for concurrent reads.
type TickClock struct {
	height atomic.Int64
}

func NewTickClock(start int64) *TickClock {
	c := &TickClock{}
	c.height.Store(start)
	return c
}

func (c *TickClock) Height() int64 { return c.height.Load() }

func (c *TickClock) Advance() int64 { return c.height.Add(1) }

// SetHeight jumps the clock, used when resuming from a snapshot.
func (c *TickClock) SetHeight(h int64) { c.height.Store(h) }

// ManualClock is a test clock pinned to an explicit height.
type ManualClock struct {
	H int64
}

func (c *ManualClock) Height() int64 { return c.H }
