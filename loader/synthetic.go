package loader

import (
	"fmt"
	"math/rand"
)

// SyntheticParams describes a synthetic workload in which all nodes share a
// small set of hot lines on top of a uniform background region.
type SyntheticParams struct {
	NodeCount       int
	AccessesPerNode int
	LineSize        uint64
	// HotLines is the number of lines every node contends on.
	HotLines int
	// HotFraction is the probability that an access goes to a hot line.
	HotFraction float64
	// FootprintLines is the number of lines in the background region.
	FootprintLines int
	Seed           int64
}

// DefaultSyntheticParams returns a small contended workload.
func DefaultSyntheticParams() SyntheticParams {
	return SyntheticParams{
		NodeCount:       16,
		AccessesPerNode: 1000,
		LineSize:        64,
		HotLines:        32,
		HotFraction:     0.5,
		FootprintLines:  1 << 16,
		Seed:            1,
	}
}

// Validate checks the parameters.
func (p SyntheticParams) Validate() error {
	if p.NodeCount < 1 {
		return fmt.Errorf("node count must be >= 1, got %d", p.NodeCount)
	}
	if p.AccessesPerNode < 0 {
		return fmt.Errorf("accesses per node must be >= 0, got %d", p.AccessesPerNode)
	}
	if p.LineSize == 0 {
		return fmt.Errorf("line size must be > 0")
	}
	if p.HotFraction < 0 || p.HotFraction > 1 {
		return fmt.Errorf("hot fraction must be in [0, 1], got %g", p.HotFraction)
	}
	if p.HotFraction > 0 && p.HotLines < 1 {
		return fmt.Errorf("hot fraction %g needs at least one hot line", p.HotFraction)
	}
	if p.HotFraction < 1 && p.FootprintLines < 1 {
		return fmt.Errorf("footprint must be >= 1 line, got %d", p.FootprintLines)
	}
	return nil
}

// Generate builds a trace round-robin over the nodes. The same parameters
// always produce the same trace.
func Generate(p SyntheticParams) (*Trace, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(p.Seed))

	// The background region starts right after the hot lines.
	background := uint64(p.HotLines)

	trace := &Trace{
		Accesses: make([]Access, 0, p.NodeCount*p.AccessesPerNode),
	}
	for i := 0; i < p.AccessesPerNode; i++ {
		for n := 0; n < p.NodeCount; n++ {
			var line uint64
			if rng.Float64() < p.HotFraction {
				line = uint64(rng.Intn(p.HotLines))
			} else {
				line = background + uint64(rng.Intn(p.FootprintLines))
			}

			offset := uint64(rng.Int63n(int64(p.LineSize)))
			trace.Accesses = append(trace.Accesses, Access{
				Node: n,
				Addr: line*p.LineSize + offset,
			})
		}
	}

	return trace, nil
}
