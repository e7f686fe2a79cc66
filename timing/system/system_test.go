package system_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/histsim/loader"
	"github.com/sarchlab/histsim/timing/config"
	"github.com/sarchlab/histsim/timing/system"
)

var _ = Describe("System", func() {
	var cfg *config.Config

	BeforeEach(func() {
		cfg = config.Default()
		cfg.NodeCount = 4
		cfg.SetCount = 1
		cfg.Associativity = 2
		cfg.AdmissionWidth = 1
		cfg.BaseDelay = 4
		cfg.MemoryLatency = 10
		cfg.L1Size = 64
		cfg.L1Associativity = 1
		cfg.MaxOutstanding = 2
	})

	It("should panic on an invalid config", func() {
		cfg.BaseDelay = 0
		Expect(func() {
			system.MakeBuilder().WithConfig(cfg).Build("HIST")
		}).To(Panic())
	})

	It("should build one node per configured node", func() {
		s := system.MakeBuilder().WithConfig(cfg).Build("HIST")

		Expect(s.Nodes()).To(HaveLen(4))
		Expect(s.Table().NodeCount()).To(Equal(4))
		Expect(s.Nodes()[3].Name()).To(Equal("HIST.Node[3]"))
	})

	It("should reject more streams than nodes", func() {
		s := system.MakeBuilder().WithConfig(cfg).Build("HIST")
		Expect(s.SetStreams(make([][]uint64, 5))).NotTo(Succeed())
	})

	It("should coalesce concurrent misses to one line", func() {
		s := system.MakeBuilder().WithConfig(cfg).Build("HIST")
		Expect(s.SetStreams([][]uint64{
			{0x80}, {0x80}, {0x84}, {0xB0},
		})).To(Succeed())

		Expect(s.Run()).To(Succeed())

		r := s.Report()
		Expect(r.Total.Accesses).To(Equal(uint64(4)))
		Expect(r.Total.Completed).To(Equal(uint64(4)))
		Expect(r.Total.OutOfRanges).To(Equal(uint64(1)))
		Expect(r.Total.HomeMisses).To(Equal(uint64(1)))
		Expect(r.Total.Coalesced).To(Equal(uint64(2)))
		Expect(r.Directory.Fills).To(Equal(uint64(1)))
		Expect(r.Directory.Deliveries).To(Equal(uint64(2)))
		Expect(r.CoalescingRate()).To(BeNumerically("~", 0.5))
		Expect(r.AverageMissLatency()).To(BeNumerically(">=", 10))
	})

	It("should release interest on L1 eviction", func() {
		s := system.MakeBuilder().WithConfig(cfg).Build("HIST")
		Expect(s.SetStreams([][]uint64{
			nil, {0x080, 0x180},
		})).To(Succeed())

		Expect(s.Run()).To(Succeed())

		r := s.Report()
		Expect(r.Total.Releases).To(Equal(uint64(1)))
		Expect(r.Directory.Frees).To(Equal(uint64(1)))
		Expect(r.L1.Evictions).To(Equal(uint64(1)))
	})

	It("should run a synthetic workload to completion", func() {
		cfg.NodeCount = 9
		cfg.SetCount = 4
		cfg.Policy = config.PolicyRange
		cfg.AdmissionRange = 4
		cfg.L1Size = 256
		cfg.L1Associativity = 2

		params := loader.DefaultSyntheticParams()
		params.NodeCount = 9
		params.AccessesPerNode = 40
		params.HotLines = 4
		params.FootprintLines = 64
		trace, err := loader.Generate(params)
		Expect(err).NotTo(HaveOccurred())
		streams, err := trace.Streams(9)
		Expect(err).NotTo(HaveOccurred())

		s := system.MakeBuilder().WithConfig(cfg).Build("HIST")
		Expect(s.SetStreams(streams)).To(Succeed())
		Expect(s.Run()).To(Succeed())

		r := s.Report()
		t := r.Total
		Expect(t.Accesses).To(Equal(uint64(360)))
		Expect(t.L1Hits + t.L1Misses).To(Equal(t.Accesses))
		Expect(t.Completed).To(Equal(t.L1Misses))
		Expect(t.HomeMisses + t.Coalesced + t.Fulls + t.OutOfRanges).
			To(Equal(t.L1Misses + t.Retries))
		Expect(r.Directory.Allocations).To(Equal(t.HomeMisses))
		Expect(r.Directory.Retries).To(Equal(t.Retries))
		Expect(r.Cycles).To(BeNumerically(">", 0))
	})
})
