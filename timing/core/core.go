// Package core provides the node model of the HIST simulator.
// A node owns a private L1, replays an address stream, and serves as the home
// for the slice of the directory that maps to it.
package core

import (
	"log"
	"sync"

	"github.com/rs/xid"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/histsim/timing/cache"
	"github.com/sarchlab/histsim/timing/hist"
)

// Stats holds activity counters for one node.
type Stats struct {
	// Accesses is the number of stream accesses issued.
	Accesses uint64
	// L1Hits is the number of accesses served by the private L1.
	L1Hits uint64
	// L1Misses is the number of accesses that left the node.
	L1Misses uint64

	// HomeMisses is the number of requests that allocated a directory entry
	// and went to the backing store on its behalf.
	HomeMisses uint64
	// Coalesced is the number of requests merged onto an existing entry.
	Coalesced uint64
	// Fulls is the number of requests bypassing a full set.
	Fulls uint64
	// OutOfRanges is the number of requests bypassing the directory because
	// the home does not admit this node.
	OutOfRanges uint64

	// Retries is the number of requests the directory handed back.
	Retries uint64
	// Releases is the number of interest releases on L1 eviction.
	Releases uint64

	// Completed is the number of misses that received their line.
	Completed uint64
	// TotalLatency is the sum of issue-to-completion cycles of all misses.
	TotalLatency uint64
	// StallCycles is the number of cycles the stream could not advance.
	StallCycles uint64
	// LastCycle is the cycle of the last completion.
	LastCycle uint64
}

// DirectMisses returns the number of requests served without coalescing.
func (s Stats) DirectMisses() uint64 {
	return s.Fulls + s.OutOfRanges
}

// fill is a backing store response that arrives at a due cycle.
type fill struct {
	req *hist.Request
	due uint64
}

// Node is a ticking component modeling one node of the system.
type Node struct {
	*sim.TickingComponent

	id    int
	table *hist.Table
	l1    *cache.Cache
	peers []*Node

	memoryLatency  uint64
	maxOutstanding int
	verbose        bool

	stream []uint64
	next   int

	outstanding map[uint64]*hist.Request
	retries     []*hist.Request
	homeFills   []fill
	directFills []fill

	// statsLock guards stats and the L1 counters against readers outside
	// the engine, such as the monitor.
	statsLock sync.Mutex
	stats     Stats
}

// Config holds the parameters of a node.
type Config struct {
	ID             int
	L1             cache.Config
	MemoryLatency  uint64
	MaxOutstanding int
	Verbose        bool
}

// NewNode creates a node that talks to table. The node does not tick until
// it is given a stream and woken.
func NewNode(
	name string,
	engine sim.Engine,
	freq sim.Freq,
	table *hist.Table,
	config Config,
) *Node {
	if config.MaxOutstanding < 1 {
		log.Panicf("core: node %d needs at least one outstanding slot", config.ID)
	}

	n := &Node{
		id:             config.ID,
		table:          table,
		l1:             cache.New(config.L1),
		memoryLatency:  config.MemoryLatency,
		maxOutstanding: config.MaxOutstanding,
		verbose:        config.Verbose,
		outstanding:    make(map[uint64]*hist.Request),
	}
	n.TickingComponent = sim.NewTickingComponent(name, engine, freq, n)

	return n
}

// ID returns the node id.
func (n *Node) ID() int {
	return n.id
}

// L1 returns the private cache.
func (n *Node) L1() *cache.Cache {
	return n.l1
}

// Stats returns a copy of the node counters.
func (n *Node) Stats() Stats {
	n.statsLock.Lock()
	defer n.statsLock.Unlock()

	return n.stats
}

// L1Stats returns a copy of the private cache counters.
func (n *Node) L1Stats() cache.Statistics {
	n.statsLock.Lock()
	defer n.statsLock.Unlock()

	return n.l1.Stats()
}

func (n *Node) bump(counter *uint64) {
	n.statsLock.Lock()
	*counter++
	n.statsLock.Unlock()
}

// SetPeers gives the node access to every node of the system, itself
// included, indexed by node id.
func (n *Node) SetPeers(peers []*Node) {
	n.peers = peers
}

// SetStream sets the addresses the node issues, in order.
func (n *Node) SetStream(stream []uint64) {
	n.stream = stream
	n.next = 0
}

// Outstanding returns the number of misses in flight.
func (n *Node) Outstanding() int {
	return len(n.outstanding)
}

// Done returns true if the stream is exhausted and nothing is in flight.
func (n *Node) Done() bool {
	return n.next >= len(n.stream) &&
		len(n.outstanding) == 0 &&
		len(n.homeFills) == 0 &&
		len(n.directFills) == 0 &&
		n.table.Pending(n.id) == 0
}

// Tick advances the node by one cycle.
func (n *Node) Tick() bool {
	return n.Step(n.Freq.Cycle(n.Engine.CurrentTime()))
}

// Step runs one cycle of the node at cycle now. It returns true if the node
// needs to tick again on the next cycle.
func (n *Node) Step(now uint64) bool {
	n.serveHomeFills(now)
	n.serveDirectFills(now)
	n.table.Tick(n.id, now)
	n.reissueRetries(now)
	issued := n.issue(now)

	return issued ||
		len(n.homeFills) > 0 ||
		len(n.directFills) > 0 ||
		len(n.retries) > 0 ||
		n.table.Pending(n.id) > 0 ||
		n.canIssue()
}

// Complete gives a miss its line. It fills the L1 and releases the interest
// of any line the fill evicts.
func (n *Node) Complete(req *hist.Request, now uint64) {
	line := n.lineAddr(req.Addr)
	if n.outstanding[line] != req {
		log.Panicf("core: node %d completes unknown request %s", n.id, req.ID)
	}
	delete(n.outstanding, line)

	n.statsLock.Lock()
	n.stats.Completed++
	n.stats.TotalLatency += now - req.IssueCycle
	n.stats.LastCycle = now
	result := n.l1.Fill(req.Addr)
	n.statsLock.Unlock()

	if result.Evicted {
		n.release(result.EvictedAddr)
	}

	if n.verbose {
		log.Printf("node %d: %s %#x done after %d cycles",
			n.id, req.ID, req.Addr, now-req.IssueCycle)
	}

	n.TickLater()
}

// Retry queues a request handed back by the directory. It is reissued as a
// fresh miss on the next tick.
func (n *Node) Retry(req *hist.Request) {
	n.bump(&n.stats.Retries)
	n.retries = append(n.retries, req)
	n.TickLater()
}

func (n *Node) lineAddr(addr uint64) uint64 {
	return n.table.Mapper().LineAddr(addr)
}

func (n *Node) canIssue() bool {
	if n.next >= len(n.stream) || len(n.outstanding) >= n.maxOutstanding {
		return false
	}

	_, busy := n.outstanding[n.lineAddr(n.stream[n.next])]

	return !busy
}

func (n *Node) issue(now uint64) bool {
	if n.next >= len(n.stream) {
		return false
	}

	if !n.canIssue() {
		n.bump(&n.stats.StallCycles)
		return false
	}

	addr := n.stream[n.next]
	n.next++
	n.statsLock.Lock()
	n.stats.Accesses++
	hit := n.l1.Lookup(addr).Hit
	if hit {
		n.stats.L1Hits++
	} else {
		n.stats.L1Misses++
	}
	n.statsLock.Unlock()

	if hit {
		return true
	}

	req := &hist.Request{
		ID:         xid.New().String(),
		Source:     n.id,
		Addr:       addr,
		IssueCycle: now,
	}
	n.outstanding[n.lineAddr(addr)] = req
	n.dispatch(req, now)

	return true
}

func (n *Node) reissueRetries(now uint64) {
	if len(n.retries) == 0 {
		return
	}

	retries := n.retries
	n.retries = nil
	for _, req := range retries {
		n.dispatch(req, now)
	}
}

// dispatch sends a miss to its home directory and picks how it is served.
func (n *Node) dispatch(req *hist.Request, now uint64) {
	c := n.table.Classify(n.id, req.Addr)

	switch c.Outcome {
	case hist.Miss:
		n.bump(&n.stats.HomeMisses)
		n.table.AdmitMiss(c, req, now)
		n.peers[c.Home].addHomeFill(req, now+n.memoryLatency)
	case hist.HitWait, hist.HitReady:
		n.bump(&n.stats.Coalesced)
		n.table.AdmitWaiter(c, req, now)
	case hist.Full:
		n.bump(&n.stats.Fulls)
		n.addDirectFill(req, now)
	case hist.OutOfRange:
		n.bump(&n.stats.OutOfRanges)
		if c.Probe == hist.HitReady {
			n.table.TouchReady(c, now)
		}
		n.addDirectFill(req, now)
	default:
		log.Panicf("core: unexpected outcome %s", c.Outcome)
	}

	if n.verbose {
		log.Printf("node %d: %s %#x -> home %d %s",
			n.id, req.ID, req.Addr, c.Home, c.Outcome)
	}
}

func (n *Node) addHomeFill(req *hist.Request, due uint64) {
	req.RemainingWait = n.memoryLatency
	n.homeFills = append(n.homeFills, fill{req: req, due: due})
	n.TickLater()
}

func (n *Node) addDirectFill(req *hist.Request, now uint64) {
	req.RemainingWait = n.memoryLatency
	n.directFills = append(n.directFills, fill{req: req, due: now + n.memoryLatency})
}

// serveHomeFills completes the backing store reads this node started as a
// home. The line becomes ready, waiters are scheduled, and the allocating
// request is completed directly.
func (n *Node) serveHomeFills(now uint64) {
	for len(n.homeFills) > 0 && n.homeFills[0].due <= now {
		f := n.homeFills[0]
		n.homeFills = n.homeFills[1:]
		f.req.RemainingWait = 0

		c := n.table.Lookup(f.req.Addr)
		if c.Probe == hist.HitWait {
			n.table.MarkReady(c, now)
			n.wakePending()
		}

		n.peers[f.req.Source].Complete(f.req, now)
	}

	for _, f := range n.homeFills {
		f.req.RemainingWait = f.due - now
	}
}

func (n *Node) serveDirectFills(now uint64) {
	for len(n.directFills) > 0 && n.directFills[0].due <= now {
		f := n.directFills[0]
		n.directFills = n.directFills[1:]
		f.req.RemainingWait = 0

		n.Complete(f.req, now)
	}

	for _, f := range n.directFills {
		f.req.RemainingWait = f.due - now
	}
}

// wakePending makes sure every node with queued deliveries keeps ticking.
func (n *Node) wakePending() {
	for _, p := range n.peers {
		if n.table.Pending(p.id) > 0 {
			p.TickLater()
		}
	}
}

// release drops this node's interest in an evicted line.
func (n *Node) release(lineAddr uint64) {
	c := n.table.Classify(n.id, lineAddr)
	if !c.IsHit() || !c.Interested {
		return
	}

	if n.table.ReleaseInterest(c) {
		n.bump(&n.stats.Releases)
	}
}
