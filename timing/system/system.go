// Package system assembles HIST nodes, their private caches and the shared
// directory into an Akita simulation.
package system

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/histsim/timing/cache"
	"github.com/sarchlab/histsim/timing/config"
	"github.com/sarchlab/histsim/timing/core"
	"github.com/sarchlab/histsim/timing/hist"
)

// System is a complete HIST simulation. It implements hist.ResponseSink and
// routes every response to the node that asked for it.
type System struct {
	name   string
	engine sim.Engine
	freq   sim.Freq
	config *config.Config

	table     *hist.Table
	collector *hist.StatsCollector
	nodes     []*core.Node
}

// Name returns the name of the system.
func (s *System) Name() string {
	return s.name
}

// Engine returns the simulation engine.
func (s *System) Engine() sim.Engine {
	return s.engine
}

// Config returns the configuration the system was built from.
func (s *System) Config() *config.Config {
	return s.config
}

// Table returns the directory.
func (s *System) Table() *hist.Table {
	return s.table
}

// Nodes returns all nodes, indexed by id.
func (s *System) Nodes() []*core.Node {
	return s.nodes
}

// Now returns the current cycle.
func (s *System) Now() uint64 {
	return s.freq.Cycle(s.engine.CurrentTime())
}

// Deliver completes a coalesced request at its node.
func (s *System) Deliver(node int, req *hist.Request) {
	s.nodes[node].Complete(req, s.Now())
}

// Retry returns a request to its node for reissue.
func (s *System) Retry(req *hist.Request) {
	s.nodes[req.Source].Retry(req)
}

// SetStreams assigns one address stream per node.
func (s *System) SetStreams(streams [][]uint64) error {
	if len(streams) > len(s.nodes) {
		return fmt.Errorf("%d streams for %d nodes", len(streams), len(s.nodes))
	}

	for i, n := range s.nodes {
		if i < len(streams) {
			n.SetStream(streams[i])
		} else {
			n.SetStream(nil)
		}
	}

	return nil
}

// Run wakes every node and runs the engine until no event is left.
func (s *System) Run() error {
	for _, n := range s.nodes {
		n.TickLater()
	}

	if err := s.engine.Run(); err != nil {
		return err
	}

	for _, n := range s.nodes {
		if !n.Done() {
			return fmt.Errorf("node %d stopped with %d requests in flight",
				n.ID(), n.Outstanding())
		}
	}

	return nil
}

// Report summarizes a run.
type Report struct {
	Cycles uint64

	Nodes     []core.Stats
	Total     core.Stats
	L1        cache.Statistics
	Directory hist.Statistics
}

// AverageMissLatency returns the mean issue-to-completion latency of all
// misses.
func (r Report) AverageMissLatency() float64 {
	if r.Total.Completed == 0 {
		return 0
	}

	return float64(r.Total.TotalLatency) / float64(r.Total.Completed)
}

// CoalescingRate returns the share of misses merged onto an existing entry.
func (r Report) CoalescingRate() float64 {
	if r.Total.L1Misses == 0 {
		return 0
	}

	return float64(r.Total.Coalesced) / float64(r.Total.L1Misses)
}

// Report collects the statistics of every node and of the directory.
func (s *System) Report() Report {
	r := Report{
		Directory: s.collector.Stats(),
	}

	for _, n := range s.nodes {
		st := n.Stats()
		r.Nodes = append(r.Nodes, st)

		r.Total.Accesses += st.Accesses
		r.Total.L1Hits += st.L1Hits
		r.Total.L1Misses += st.L1Misses
		r.Total.HomeMisses += st.HomeMisses
		r.Total.Coalesced += st.Coalesced
		r.Total.Fulls += st.Fulls
		r.Total.OutOfRanges += st.OutOfRanges
		r.Total.Retries += st.Retries
		r.Total.Releases += st.Releases
		r.Total.Completed += st.Completed
		r.Total.TotalLatency += st.TotalLatency
		r.Total.StallCycles += st.StallCycles
		if st.LastCycle > r.Total.LastCycle {
			r.Total.LastCycle = st.LastCycle
		}

		l1 := n.L1Stats()
		r.L1.Lookups += l1.Lookups
		r.L1.Hits += l1.Hits
		r.L1.Misses += l1.Misses
		r.L1.Fills += l1.Fills
		r.L1.Evictions += l1.Evictions
	}
	r.Cycles = s.Now()

	return r
}
