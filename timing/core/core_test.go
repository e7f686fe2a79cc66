package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/histsim/timing/addrmap"
	"github.com/sarchlab/histsim/timing/cache"
	"github.com/sarchlab/histsim/timing/core"
	"github.com/sarchlab/histsim/timing/hist"
	"github.com/sarchlab/histsim/timing/topology"
)

// router hands directory responses to the nodes at the cycle the test is
// stepping.
type router struct {
	nodes []*core.Node
	now   uint64
}

func (r *router) Deliver(node int, req *hist.Request) {
	r.nodes[node].Complete(req, r.now)
}

func (r *router) Retry(req *hist.Request) {
	r.nodes[req.Source].Retry(req)
}

var _ = Describe("Node", func() {
	const (
		lineA = uint64(0x080) // home 2
		lineB = uint64(0x180) // home 2
		lineC = uint64(0x280) // home 2
	)

	var (
		table *hist.Table
		r     *router
		nodes []*core.Node
	)

	build := func(assoc, l1Size, maxOutstanding int) {
		mapper, err := addrmap.NewMapper(64, 1, 4)
		Expect(err).NotTo(HaveOccurred())
		policy, err := topology.NewWidthPolicy(4, 1)
		Expect(err).NotTo(HaveOccurred())

		r = &router{}
		table = hist.MakeBuilder().
			WithMapper(mapper).
			WithPolicy(policy).
			WithAssociativity(assoc).
			WithBaseDelay(4).
			WithSink(r).
			Build("Directory")

		engine := sim.NewSerialEngine()
		nodes = make([]*core.Node, 4)
		for i := range nodes {
			nodes[i] = core.NewNode("Node", engine, 1*sim.GHz, table, core.Config{
				ID: i,
				L1: cache.Config{
					Size:          l1Size,
					Associativity: 1,
					BlockSize:     64,
					HitLatency:    1,
				},
				MemoryLatency:  10,
				MaxOutstanding: maxOutstanding,
			})
		}
		for _, n := range nodes {
			n.SetPeers(nodes)
		}
		r.nodes = nodes
	}

	step := func(n *core.Node, now uint64) bool {
		r.now = now
		return n.Step(now)
	}

	BeforeEach(func() {
		build(2, 64, 2)
	})

	It("should panic without an outstanding slot", func() {
		engine := sim.NewSerialEngine()
		Expect(func() {
			core.NewNode("Node", engine, 1*sim.GHz, table, core.Config{
				L1: cache.DefaultL1Config(),
			})
		}).To(Panic())
	})

	It("should report L1 counters alongside node counters", func() {
		nodes[1].SetStream([]uint64{lineA, lineA})

		step(nodes[1], 0)
		for cycle := uint64(1); cycle <= 10; cycle++ {
			step(nodes[2], cycle)
		}
		step(nodes[1], 11)

		l1 := nodes[1].L1Stats()
		Expect(l1).To(Equal(nodes[1].L1().Stats()))
		Expect(l1.Lookups).To(Equal(nodes[1].Stats().Accesses))
		Expect(l1.Hits).To(Equal(uint64(1)))
		Expect(l1.Misses).To(Equal(uint64(1)))
		Expect(l1.Fills).To(Equal(uint64(1)))
	})

	It("should be done without a stream", func() {
		Expect(nodes[0].Done()).To(BeTrue())
		Expect(step(nodes[0], 0)).To(BeFalse())
	})

	It("should complete the allocating request at the memory latency", func() {
		nodes[1].SetStream([]uint64{lineA})

		Expect(step(nodes[1], 0)).To(BeTrue())
		Expect(nodes[1].Stats().HomeMisses).To(Equal(uint64(1)))
		Expect(nodes[1].Outstanding()).To(Equal(1))

		for cycle := uint64(1); cycle < 10; cycle++ {
			step(nodes[2], cycle)
			Expect(nodes[1].Outstanding()).To(Equal(1))
		}
		step(nodes[2], 10)

		Expect(nodes[1].Outstanding()).To(Equal(0))
		Expect(nodes[1].Done()).To(BeTrue())
		Expect(nodes[1].Stats().TotalLatency).To(Equal(uint64(10)))
		Expect(nodes[1].L1().Contains(lineA)).To(BeTrue())
		Expect(table.Classify(1, lineA).Outcome).To(Equal(hist.HitReady))
	})

	It("should coalesce a second requester and deliver after the network delay", func() {
		nodes[1].SetStream([]uint64{lineA})
		nodes[3].SetStream([]uint64{lineA + 8})

		step(nodes[1], 0)
		step(nodes[3], 0)
		Expect(nodes[3].Stats().Coalesced).To(Equal(uint64(1)))

		step(nodes[2], 10)
		Expect(nodes[1].Outstanding()).To(Equal(0))
		Expect(table.Pending(3)).To(Equal(1))

		for cycle := uint64(11); cycle < 15; cycle++ {
			step(nodes[3], cycle)
			Expect(nodes[3].Outstanding()).To(Equal(1))
		}
		step(nodes[3], 15)

		Expect(nodes[3].Outstanding()).To(Equal(0))
		Expect(nodes[3].Stats().TotalLatency).To(Equal(uint64(15)))
		Expect(nodes[3].L1().Contains(lineA)).To(BeTrue())
	})

	It("should serve an out-of-range requester directly", func() {
		nodes[0].SetStream([]uint64{lineA})

		step(nodes[0], 0)
		Expect(nodes[0].Stats().OutOfRanges).To(Equal(uint64(1)))
		Expect(table.Classify(1, lineA).Outcome).To(Equal(hist.Miss))

		for cycle := uint64(1); cycle < 10; cycle++ {
			step(nodes[0], cycle)
		}
		Expect(nodes[0].Outstanding()).To(Equal(1))

		step(nodes[0], 10)
		Expect(nodes[0].Done()).To(BeTrue())
	})

	It("should bypass a full set", func() {
		build(1, 64, 2)
		nodes[1].SetStream([]uint64{lineA})
		nodes[3].SetStream([]uint64{lineB})

		step(nodes[1], 0)
		step(nodes[3], 0)

		Expect(nodes[3].Stats().Fulls).To(Equal(uint64(1)))
		Expect(nodes[3].Stats().DirectMisses()).To(Equal(uint64(1)))
	})

	It("should stall on a second miss to an outstanding line", func() {
		nodes[1].SetStream([]uint64{lineA, lineA + 4})

		step(nodes[1], 0)
		step(nodes[1], 1)

		Expect(nodes[1].Stats().Accesses).To(Equal(uint64(1)))
		Expect(nodes[1].Stats().StallCycles).To(Equal(uint64(1)))

		step(nodes[2], 10)
		step(nodes[1], 11)

		Expect(nodes[1].Stats().Accesses).To(Equal(uint64(2)))
		Expect(nodes[1].Stats().L1Hits).To(Equal(uint64(1)))
	})

	It("should respect the outstanding limit", func() {
		build(2, 64, 1)
		nodes[1].SetStream([]uint64{lineA, lineB})

		step(nodes[1], 0)
		step(nodes[1], 1)

		Expect(nodes[1].Outstanding()).To(Equal(1))
		Expect(nodes[1].Stats().StallCycles).To(Equal(uint64(1)))
	})

	It("should release interest when the L1 evicts a line", func() {
		nodes[1].SetStream([]uint64{lineA, lineB})

		step(nodes[1], 0)
		step(nodes[1], 1)
		step(nodes[2], 10)
		step(nodes[2], 11)

		// The single-line L1 evicted A when B arrived.
		Expect(nodes[1].L1().Contains(lineA)).To(BeFalse())
		Expect(nodes[1].Stats().Releases).To(Equal(uint64(1)))
		Expect(table.Classify(1, lineA).Outcome).To(Equal(hist.Miss))
		Expect(table.Classify(1, lineB).Interested).To(BeTrue())
	})

	It("should reissue a request handed back by the directory", func() {
		build(1, 64, 2)
		nodes[1].SetStream([]uint64{lineA})
		nodes[3].SetStream([]uint64{lineA})

		step(nodes[1], 0)
		step(nodes[2], 10)
		step(nodes[3], 11)
		Expect(table.Pending(3)).To(Equal(1))

		// Once node 1 drops A, node 3 is the only one interested and node 2
		// can take the way for C.
		c := table.Classify(1, lineA)
		Expect(table.ReleaseInterest(c)).To(BeTrue())
		nodes[2].SetStream([]uint64{lineC})
		step(nodes[2], 12)
		Expect(table.Classify(2, lineC).Outcome).To(Equal(hist.HitWait))

		for cycle := uint64(12); cycle <= 16; cycle++ {
			step(nodes[3], cycle)
		}

		Expect(nodes[3].Stats().Retries).To(Equal(uint64(1)))
		Expect(nodes[3].Outstanding()).To(Equal(1))
		Expect(nodes[3].Stats().Fulls).To(Equal(uint64(1)))
	})
})
