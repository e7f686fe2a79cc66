// Package hist implements the HIST table, a distributed miss-coalescing
// directory. Every node owns a set-associative shard for the lines homed on
// it. Concurrent misses to the same line from admissible requesters are
// merged onto one entry, and the fill is fanned out to every waiter through
// per-node delivery queues that model the network delay.
package hist

import (
	"log"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/histsim/timing/addrmap"
	"github.com/sarchlab/histsim/timing/topology"
)

// Table is the directory of all home shards plus the delivery queues of all
// nodes.
//
// Operations on different homes touch disjoint shards and may run
// concurrently. Operations on one home must be ordered by the caller, and a
// Classification must be consumed before any other mutation of its home.
type Table struct {
	*sim.HookableBase

	name      string
	mapper    addrmap.Mapper
	policy    topology.Policy
	baseDelay uint64
	sink      ResponseSink

	shards []*shard
	queues []*deliveryQueue
}

// Name returns the name of the table.
func (t *Table) Name() string {
	return t.name
}

// NodeCount returns the number of homes.
func (t *Table) NodeCount() int {
	return len(t.shards)
}

// Mapper returns the address mapper.
func (t *Table) Mapper() addrmap.Mapper {
	return t.mapper
}

// Policy returns the admission policy.
func (t *Table) Policy() topology.Policy {
	return t.policy
}

// BaseDelay returns the base delivery delay in cycles.
func (t *Table) BaseDelay() uint64 {
	return t.baseDelay
}

// Classify probes addr on behalf of requester. It does not change any state
// and returns the same result until the home shard is mutated.
func (t *Table) Classify(requester int, addr uint64) Classification {
	t.mustBeNode(requester)

	c := t.locate(addr)
	c.Requester = requester
	c.Slot = t.policy.Slot(c.Home, requester)

	s := t.shards[c.Home]
	s.Lock()
	c.Probe, c.Index = s.probe(c.Set, c.Tag)
	c.version = s.version
	if c.IsHit() && c.Slot != topology.NoSlot {
		c.Interested = s.entries[c.Index].hasInterest(c.Slot)
	}
	s.Unlock()

	c.Outcome = c.Probe
	if c.Slot == topology.NoSlot {
		c.Outcome = OutOfRange
	}

	t.invoke(HookPosClassify, nil, Event{
		Home:    c.Home,
		Node:    requester,
		Addr:    addr,
		Tag:     c.Tag,
		Outcome: c.Outcome,
	})

	return c
}

// Lookup probes addr from the home side, without a requester. It is used to
// classify fills for MarkReady.
func (t *Table) Lookup(addr uint64) Classification {
	c := t.locate(addr)
	c.Requester = -1
	c.Slot = topology.NoSlot

	s := t.shards[c.Home]
	s.Lock()
	c.Probe, c.Index = s.probe(c.Set, c.Tag)
	c.version = s.version
	s.Unlock()

	c.Outcome = c.Probe

	return c
}

func (t *Table) locate(addr uint64) Classification {
	return Classification{
		Addr:  addr,
		Home:  t.mapper.Home(addr),
		Set:   t.mapper.SetIndex(addr),
		Tag:   t.mapper.Tag(addr),
		Index: -1,
	}
}

// AdmitMiss allocates the line classified as a Miss and records the
// requester's interest. A ready line occupying the slot is evicted. The
// caller forwards req to the backing store and later calls MarkReady.
func (t *Table) AdmitMiss(c Classification, req *Request, now uint64) {
	if c.Outcome != Miss {
		log.Panicf("hist: AdmitMiss needs a miss classification, got %s", c.Outcome)
	}
	t.mustMatchRequest(c, req)

	s := t.shards[c.Home]
	s.Lock()
	t.mustBeCurrent(s, c)
	evicted, evictedKey, stranded := s.allocate(c.Index, c.Tag, now)
	s.addInterest(c.Index, c.Slot, now)
	s.Unlock()

	if evicted {
		t.invoke(HookPosEvict, nil, Event{
			Cycle: now,
			Home:  c.Home,
			Node:  c.Requester,
			Tag:   evictedKey,
		})
	}
	t.invoke(HookPosAllocate, req, t.eventOf(c, now))

	t.retryAll(stranded)
}

// AdmitWaiter records a requester on a line that is already allocated. On a
// waiting line the request is parked until MarkReady; on a ready line its
// delivery is scheduled immediately.
func (t *Table) AdmitWaiter(c Classification, req *Request, now uint64) {
	if c.Outcome != HitWait && c.Outcome != HitReady {
		log.Panicf("hist: AdmitWaiter needs a hit classification, got %s", c.Outcome)
	}
	t.mustMatchRequest(c, req)

	s := t.shards[c.Home]
	s.Lock()
	t.mustBeCurrent(s, c)
	s.addInterest(c.Index, c.Slot, now)
	if c.Outcome == HitWait {
		s.enqueuePending(c.Index, c.Slot, req)
	}
	s.Unlock()

	t.invoke(HookPosWaiter, req, t.eventOf(c, now))

	if c.Outcome == HitReady {
		t.schedule(c.Home, c.Set, c.Tag, req)
	}
}

// MarkReady fills a waiting line and moves every parked request into the
// delivery queue of its requester.
func (t *Table) MarkReady(c Classification, now uint64) {
	if c.Probe != HitWait {
		log.Panicf("hist: MarkReady needs a waiting line, got %s", c.Probe)
	}

	s := t.shards[c.Home]
	s.Lock()
	t.mustBeCurrent(s, c)
	drained := s.ready(c.Index, now)
	s.Unlock()

	t.invoke(HookPosReady, nil, t.eventOf(c, now))

	for _, req := range drained {
		t.schedule(c.Home, c.Set, c.Tag, req)
	}
}

// ReleaseInterest clears the requester's interest in a line. The entry is
// freed once nobody is interested. It returns false, changing nothing, when
// the requester held no interest.
func (t *Table) ReleaseInterest(c Classification) bool {
	if c.Outcome != HitWait && c.Outcome != HitReady {
		log.Panicf("hist: ReleaseInterest needs a hit classification, got %s", c.Outcome)
	}
	if c.Slot == topology.NoSlot {
		log.Panic("hist: ReleaseInterest needs a requester classification")
	}

	s := t.shards[c.Home]
	s.Lock()
	t.mustBeCurrent(s, c)
	if !s.entries[c.Index].hasInterest(c.Slot) {
		s.Unlock()
		return false
	}
	freed, stranded := s.removeInterest(c.Index, c.Slot)
	s.Unlock()

	evt := t.eventOf(c, 0)
	evt.Freed = freed
	t.invoke(HookPosRelease, nil, evt)

	t.retryAll(stranded)

	return true
}

// TouchReady refreshes the access time of a ready line on behalf of a
// requester that was not admitted. Replacement ranking is the only thing it
// affects.
func (t *Table) TouchReady(c Classification, now uint64) {
	if c.Probe != HitReady {
		log.Panicf("hist: TouchReady needs a ready line, got %s", c.Probe)
	}

	s := t.shards[c.Home]
	s.Lock()
	t.mustBeCurrent(s, c)
	s.touch(c.Index, now)
	s.Unlock()
}

// Tick advances node's delivery queue by one cycle. At most one request
// leaves the queue. It returns whether requests remain queued.
func (t *Table) Tick(node int, now uint64) bool {
	t.mustBeNode(node)

	q := t.queues[node]
	d, ok := q.advance(t.baseDelay)
	if ok {
		t.release(node, d, now)
	}

	return q.len() > 0
}

// Pending returns the number of requests queued for delivery to node.
func (t *Table) Pending(node int) int {
	t.mustBeNode(node)
	return t.queues[node].len()
}

// release delivers d, re-validating the line first when the item was picked
// at countdown one.
func (t *Table) release(node int, d pendingDelivery, now uint64) {
	evt := Event{
		Cycle: now,
		Home:  d.home,
		Node:  node,
		Addr:  d.req.Addr,
		Tag:   d.tag,
	}

	if d.countdown == 1 && !t.stillReady(d) {
		t.invoke(HookPosRetry, d.req, evt)
		t.sink.Retry(d.req)
		return
	}

	t.invoke(HookPosDeliver, d.req, evt)
	t.sink.Deliver(node, d.req)
}

func (t *Table) stillReady(d pendingDelivery) bool {
	s := t.shards[d.home]
	s.Lock()
	defer s.Unlock()

	outcome, _ := s.probe(d.set, d.tag)

	return outcome == HitReady
}

// schedule puts req into the delivery queue of its source node.
func (t *Table) schedule(home, set int, tag uint64, req *Request) {
	t.mustBeNode(req.Source)

	var delay uint64
	if req.Source != home {
		dist := t.policy.Distance(home, req.Source)
		if dist == topology.TooFar {
			log.Panicf("hist: node %d is out of range of home %d", req.Source, home)
		}
		delay = t.baseDelay + uint64(dist)
	}

	t.queues[req.Source].push(pendingDelivery{
		req:       req,
		home:      home,
		set:       set,
		tag:       tag,
		countdown: delay,
	})
}

func (t *Table) retryAll(reqs []*Request) {
	for _, req := range reqs {
		t.invoke(HookPosRetry, req, Event{
			Home: t.mapper.Home(req.Addr),
			Node: req.Source,
			Addr: req.Addr,
			Tag:  t.mapper.Tag(req.Addr),
		})
		t.sink.Retry(req)
	}
}

func (t *Table) eventOf(c Classification, now uint64) Event {
	return Event{
		Cycle:   now,
		Home:    c.Home,
		Node:    c.Requester,
		Addr:    c.Addr,
		Tag:     c.Tag,
		Outcome: c.Outcome,
	}
}

func (t *Table) invoke(pos *sim.HookPos, req *Request, evt Event) {
	if t.NumHooks() == 0 {
		return
	}

	var item interface{}
	if req != nil {
		item = req
	}

	t.InvokeHook(sim.HookCtx{
		Domain: t,
		Pos:    pos,
		Item:   item,
		Detail: evt,
	})
}

func (t *Table) mustBeNode(node int) {
	if node < 0 || node >= len(t.shards) {
		log.Panicf("hist: node %d out of [0, %d)", node, len(t.shards))
	}
}

func (t *Table) mustMatchRequest(c Classification, req *Request) {
	if req == nil {
		log.Panic("hist: nil request")
	}
	if c.Requester != req.Source {
		log.Panicf("hist: classification for node %d used for a request from node %d",
			c.Requester, req.Source)
	}
	if t.mapper.Tag(req.Addr) != c.Tag || t.mapper.Home(req.Addr) != c.Home {
		log.Panicf("hist: classification for %#x used for a request to %#x",
			c.Addr, req.Addr)
	}
}

func (t *Table) mustBeCurrent(s *shard, c Classification) {
	if c.version != s.version {
		s.Unlock()
		log.Panicf("hist: stale classification of %#x on home %d", c.Addr, c.Home)
	}
}
