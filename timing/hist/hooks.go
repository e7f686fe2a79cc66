package hist

import (
	"sync"

	"github.com/sarchlab/akita/v4/sim"
)

// Hook positions invoked by the Table. The hook context carries the
// *Request involved (nil when there is none) as Item and an Event as Detail.
var (
	HookPosClassify = &sim.HookPos{Name: "HistClassify"}
	HookPosAllocate = &sim.HookPos{Name: "HistAllocate"}
	HookPosEvict    = &sim.HookPos{Name: "HistEvict"}
	HookPosWaiter   = &sim.HookPos{Name: "HistWaiter"}
	HookPosReady    = &sim.HookPos{Name: "HistReady"}
	HookPosRelease  = &sim.HookPos{Name: "HistRelease"}
	HookPosDeliver  = &sim.HookPos{Name: "HistDeliver"}
	HookPosRetry    = &sim.HookPos{Name: "HistRetry"}
)

// Event describes what happened at a hook position.
type Event struct {
	// Cycle is the cycle passed to the operation. Classify takes no cycle,
	// so classify events carry zero.
	Cycle uint64

	Home int
	Node int
	Addr uint64
	Tag  uint64

	// Outcome is set on classify events.
	Outcome Outcome

	// Freed is set on release events that returned the entry to Invalid.
	Freed bool
}

// Statistics holds directory activity counters.
type Statistics struct {
	Classified  uint64
	Misses      uint64
	HitWaits    uint64
	HitReadies  uint64
	Fulls       uint64
	OutOfRanges uint64

	Allocations uint64
	Evictions   uint64
	Waiters     uint64
	Fills       uint64
	Releases    uint64
	Frees       uint64
	Deliveries  uint64
	Retries     uint64
}

// StatsCollector is a hook that counts directory events. Attach it with
// Builder.WithHook or Table.AcceptHook. It is safe for concurrent use.
type StatsCollector struct {
	lock  sync.Mutex
	stats Statistics
}

// NewStatsCollector creates an empty collector.
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{}
}

// Func counts one hook invocation.
func (c *StatsCollector) Func(ctx sim.HookCtx) {
	c.lock.Lock()
	defer c.lock.Unlock()

	switch ctx.Pos {
	case HookPosClassify:
		c.countClassify(ctx)
	case HookPosAllocate:
		c.stats.Allocations++
	case HookPosEvict:
		c.stats.Evictions++
	case HookPosWaiter:
		c.stats.Waiters++
	case HookPosReady:
		c.stats.Fills++
	case HookPosRelease:
		c.stats.Releases++
		if evt, ok := ctx.Detail.(Event); ok && evt.Freed {
			c.stats.Frees++
		}
	case HookPosDeliver:
		c.stats.Deliveries++
	case HookPosRetry:
		c.stats.Retries++
	}
}

func (c *StatsCollector) countClassify(ctx sim.HookCtx) {
	c.stats.Classified++

	evt, ok := ctx.Detail.(Event)
	if !ok {
		return
	}

	switch evt.Outcome {
	case Miss:
		c.stats.Misses++
	case HitWait:
		c.stats.HitWaits++
	case HitReady:
		c.stats.HitReadies++
	case Full:
		c.stats.Fulls++
	case OutOfRange:
		c.stats.OutOfRanges++
	}
}

// Stats returns a copy of the counters.
func (c *StatsCollector) Stats() Statistics {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.stats
}

// Reset clears the counters.
func (c *StatsCollector) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.stats = Statistics{}
}
