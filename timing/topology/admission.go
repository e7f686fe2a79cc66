package topology

import (
	"fmt"
	"math"
	"sort"
)

// TooFar is the offset reported for a requester outside the admission range.
// It lies outside every valid signed offset so that callers can test for it
// without the value ever being used as a shift amount.
const TooFar = math.MaxInt32

// NoSlot is the interest slot reported for a requester that is not admitted.
const NoSlot = -1

// MaxSlots is the widest interest vector a directory entry can carry.
const MaxSlots = 64

// A Policy decides whether a requester is admissible for a home node, where
// it sits in the home's interest vector, and how far away it is for the
// purpose of delivery delay.
type Policy interface {
	// Name identifies the policy in configuration and dumps.
	Name() string

	// Slots returns the number of interest slots a directory entry needs.
	Slots() int

	// Offset returns the requester's position relative to home, or TooFar.
	Offset(home, requester int) int

	// Slot returns the requester's interest slot, or NoSlot.
	Slot(home, requester int) int

	// Distance returns the delivery distance between home and requester.
	Distance(home, requester int) int
}

// WidthPolicy admits requesters whose ring offset from home lies within
// [-width, +width].
type WidthPolicy struct {
	nodeCount int
	width     int
}

// NewWidthPolicy creates a width-bounded admission policy.
func NewWidthPolicy(nodeCount, width int) (*WidthPolicy, error) {
	if nodeCount < 1 {
		return nil, fmt.Errorf("node count must be >= 1, got %d", nodeCount)
	}
	if width < 0 {
		return nil, fmt.Errorf("admission width must be >= 0, got %d", width)
	}
	if 2*width+1 > MaxSlots {
		return nil, fmt.Errorf(
			"admission width %d needs %d interest slots, at most %d supported",
			width, 2*width+1, MaxSlots)
	}

	return &WidthPolicy{nodeCount: nodeCount, width: width}, nil
}

// Name returns "width".
func (p *WidthPolicy) Name() string {
	return "width"
}

// Width returns the admission width.
func (p *WidthPolicy) Width() int {
	return p.width
}

// Slots returns 2*width+1.
func (p *WidthPolicy) Slots() int {
	return 2*p.width + 1
}

// Offset returns the first d in [-width, +width] that walks from home to
// requester around the node ring.
func (p *WidthPolicy) Offset(home, requester int) int {
	n := p.nodeCount
	for d := -p.width; d <= p.width; d++ {
		if ((home+d)%n+n)%n == requester {
			return d
		}
	}

	return TooFar
}

// Slot maps the offset onto [0, 2*width].
func (p *WidthPolicy) Slot(home, requester int) int {
	d := p.Offset(home, requester)
	if d == TooFar {
		return NoSlot
	}

	return d + p.width
}

// Distance is the absolute ring offset. Requesters outside the width are
// reported as TooFar.
func (p *WidthPolicy) Distance(home, requester int) int {
	d := p.Offset(home, requester)
	if d == TooFar {
		return TooFar
	}

	return abs(d)
}

// RangePolicy admits, for every home, the distance rings that are reached
// before `rng` nodes have been enumerated in non-decreasing grid distance.
// All members of an admitted ring share the ring's rank, so the admitted set
// can exceed rng and its radius varies with local node density.
type RangePolicy struct {
	grid Grid
	rng  int

	// closer[home][node] counts nodes strictly closer to home than node.
	closer [][]int
}

// NewRangePolicy creates a range-ranked admission policy over grid.
func NewRangePolicy(grid Grid, rng int) (*RangePolicy, error) {
	if grid.NodeCount() < 1 {
		return nil, fmt.Errorf("node count must be >= 1, got %d", grid.NodeCount())
	}
	if rng < 1 {
		return nil, fmt.Errorf("admission range must be >= 1, got %d", rng)
	}
	if grid.NodeCount() > MaxSlots {
		return nil, fmt.Errorf(
			"range admission needs one interest slot per node, %d nodes exceeds %d",
			grid.NodeCount(), MaxSlots)
	}

	p := &RangePolicy{grid: grid, rng: rng}
	p.rankRings()

	return p, nil
}

func (p *RangePolicy) rankRings() {
	n := p.grid.NodeCount()
	p.closer = make([][]int, n)

	for home := 0; home < n; home++ {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool {
			return p.grid.Distance(home, order[i]) < p.grid.Distance(home, order[j])
		})

		ranks := make([]int, n)
		ringStart := 0
		for i, node := range order {
			if i > 0 && p.grid.Distance(home, node) != p.grid.Distance(home, order[i-1]) {
				ringStart = i
			}
			ranks[node] = ringStart
		}
		p.closer[home] = ranks
	}
}

// Name returns "range".
func (p *RangePolicy) Name() string {
	return "range"
}

// Range returns the rank budget.
func (p *RangePolicy) Range() int {
	return p.rng
}

// Slots returns the node count; every requester owns the slot of its id.
func (p *RangePolicy) Slots() int {
	return p.grid.NodeCount()
}

func (p *RangePolicy) admitted(home, requester int) bool {
	return p.closer[home][requester] < p.rng
}

// Offset returns the grid distance of an admitted requester, or TooFar.
func (p *RangePolicy) Offset(home, requester int) int {
	if !p.admitted(home, requester) {
		return TooFar
	}

	return p.grid.Distance(home, requester)
}

// Slot returns the requester id when it is admitted.
func (p *RangePolicy) Slot(home, requester int) int {
	if !p.admitted(home, requester) {
		return NoSlot
	}

	return requester
}

// Distance returns the grid distance, regardless of admission.
func (p *RangePolicy) Distance(home, requester int) int {
	return p.grid.Distance(home, requester)
}
