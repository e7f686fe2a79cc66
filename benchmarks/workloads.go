package benchmarks

import (
	"github.com/sarchlab/histsim/loader"
	"github.com/sarchlab/histsim/timing/addrmap"
	"github.com/sarchlab/histsim/timing/config"
)

// GetWorkloads returns the standard set of workloads. Each one stresses a
// different directory outcome.
func GetWorkloads() []Benchmark {
	return []Benchmark{
		sharedLines(),
		privateLines(),
		setConflict(),
		capacityStream(),
		hotSet(config.PolicyWidth),
		hotSet(config.PolicyRange),
	}
}

// GetCoreWorkloads returns a minimal set of 3 workloads for quick validation:
// full sharing, no sharing, and set pressure.
func GetCoreWorkloads() []Benchmark {
	return []Benchmark{
		sharedLines(),
		privateLines(),
		setConflict(),
	}
}

// lineAt returns the address of the line with the given tag and set.
func lineAt(m addrmap.Mapper, tag uint64, set uint64) uint64 {
	return (tag*m.SetCount() + set) * m.LineSize()
}

// 1. Shared Lines - every node reads the same lines in the same order
func sharedLines() Benchmark {
	const lines = 64

	return Benchmark{
		Name:        "shared_lines",
		Description: "All nodes read the same 64 lines - measures coalescing",
		Streams: func(c *config.Config) ([][]uint64, error) {
			m, err := c.Mapper()
			if err != nil {
				return nil, err
			}

			stream := make([]uint64, lines)
			for i := range stream {
				stream[i] = uint64(i) * m.LineSize()
			}

			streams := make([][]uint64, c.NodeCount)
			for n := range streams {
				streams[n] = stream
			}

			return streams, nil
		},
	}
}

// 2. Private Lines - every node reads lines no other node touches
func privateLines() Benchmark {
	const lines = 64

	return Benchmark{
		Name:        "private_lines",
		Description: "Each node reads 64 lines of its own - baseline without sharing",
		Streams: func(c *config.Config) ([][]uint64, error) {
			m, err := c.Mapper()
			if err != nil {
				return nil, err
			}

			streams := make([][]uint64, c.NodeCount)
			for n := range streams {
				streams[n] = make([]uint64, lines)
				for i := range streams[n] {
					line := uint64(n*lines + i)
					streams[n][i] = line * m.LineSize()
				}
			}

			return streams, nil
		},
	}
}

// 3. Set Conflict - more lines than ways, all in one set of one home
func setConflict() Benchmark {
	return Benchmark{
		Name:        "set_conflict",
		Description: "All nodes read 4x associativity lines of one set - measures full sets",
		Streams: func(c *config.Config) ([][]uint64, error) {
			m, err := c.Mapper()
			if err != nil {
				return nil, err
			}

			// Tags that are multiples of the node count all live at home 0.
			stream := make([]uint64, 4*c.Associativity)
			for i := range stream {
				tag := uint64(i * c.NodeCount)
				stream[i] = lineAt(m, tag, 0)
			}

			streams := make([][]uint64, c.NodeCount)
			for n := range streams {
				streams[n] = stream
			}

			return streams, nil
		},
	}
}

// 4. Capacity Stream - a shared stream twice the L1 size, read twice
func capacityStream() Benchmark {
	return Benchmark{
		Name:        "capacity_stream",
		Description: "All nodes sweep twice the L1 capacity twice - measures interest release",
		Streams: func(c *config.Config) ([][]uint64, error) {
			m, err := c.Mapper()
			if err != nil {
				return nil, err
			}

			lines := 2 * c.L1Size / c.LineSize
			stream := make([]uint64, 0, 2*lines)
			for pass := 0; pass < 2; pass++ {
				for i := 0; i < lines; i++ {
					stream = append(stream, uint64(i)*m.LineSize())
				}
			}

			streams := make([][]uint64, c.NodeCount)
			for n := range streams {
				streams[n] = stream
			}

			return streams, nil
		},
	}
}

// 5. Hot Set - random accesses with a small shared hot region
func hotSet(policy string) Benchmark {
	return Benchmark{
		Name:        "hot_set_" + policy,
		Description: "80% of accesses to 32 hot lines under the " + policy + " policy",
		Configure: func(c *config.Config) {
			c.Policy = policy
		},
		Streams: func(c *config.Config) ([][]uint64, error) {
			p := loader.DefaultSyntheticParams()
			p.NodeCount = c.NodeCount
			p.AccessesPerNode = 500
			p.LineSize = uint64(c.LineSize)
			p.HotFraction = 0.8

			trace, err := loader.Generate(p)
			if err != nil {
				return nil, err
			}

			return trace.Streams(c.NodeCount)
		},
	}
}
