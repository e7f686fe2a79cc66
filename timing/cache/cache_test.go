package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/histsim/timing/cache"
)

var _ = Describe("Cache", func() {
	var c *cache.Cache

	BeforeEach(func() {
		// Small cache for testing: 1KB, 2-way, 64B lines, 8 sets
		config := cache.Config{
			Size:          1024,
			Associativity: 2,
			BlockSize:     64,
			HitLatency:    1,
		}
		c = cache.New(config)
	})

	Describe("Lookup", func() {
		It("should miss on cold cache", func() {
			result := c.Lookup(0x1000)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Latency).To(Equal(uint64(1)))

			stats := c.Stats()
			Expect(stats.Lookups).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(0)))
		})

		It("should hit after a fill", func() {
			c.Fill(0x1000)

			result := c.Lookup(0x1000)
			Expect(result.Hit).To(BeTrue())

			stats := c.Stats()
			Expect(stats.Hits).To(Equal(uint64(1)))
		})

		It("should hit anywhere in the same line", func() {
			c.Fill(0x1000)

			Expect(c.Lookup(0x1004).Hit).To(BeTrue())
			Expect(c.Lookup(0x103F).Hit).To(BeTrue())
			Expect(c.Lookup(0x1040).Hit).To(BeFalse())
		})
	})

	Describe("Fill", func() {
		It("should report lines that are already present", func() {
			c.Fill(0x1000)

			result := c.Fill(0x1010)
			Expect(result.AlreadyPresent).To(BeTrue())
			Expect(result.Evicted).To(BeFalse())
			Expect(c.Stats().Fills).To(Equal(uint64(1)))
		})

		It("should not evict while the set has free ways", func() {
			Expect(c.Fill(0x0000).Evicted).To(BeFalse())
			Expect(c.Fill(0x0200).Evicted).To(BeFalse())
		})

		It("should evict the LRU line when the set is full", func() {
			// 0x0000, 0x0200 and 0x0400 share set 0
			c.Fill(0x0000)
			c.Fill(0x0200)

			result := c.Fill(0x0400)
			Expect(result.Evicted).To(BeTrue())
			Expect(result.EvictedAddr).To(Equal(uint64(0x0000)))
			Expect(c.Contains(0x0000)).To(BeFalse())
			Expect(c.Stats().Evictions).To(Equal(uint64(1)))
		})

		It("should respect LRU refresh from lookups", func() {
			c.Fill(0x0000)
			c.Fill(0x0200)
			c.Lookup(0x0000)

			result := c.Fill(0x0400)
			Expect(result.Evicted).To(BeTrue())
			Expect(result.EvictedAddr).To(Equal(uint64(0x0200)))
		})
	})

	Describe("Contains", func() {
		It("should not change statistics", func() {
			c.Fill(0x1000)

			Expect(c.Contains(0x1000)).To(BeTrue())
			Expect(c.Stats().Lookups).To(Equal(uint64(0)))
		})
	})

	Describe("Invalidate", func() {
		It("should drop a resident line", func() {
			c.Fill(0x1000)

			Expect(c.Invalidate(0x1000)).To(BeTrue())
			Expect(c.Contains(0x1000)).To(BeFalse())
		})

		It("should report false for absent lines", func() {
			Expect(c.Invalidate(0x1000)).To(BeFalse())
		})
	})

	Describe("ResidentLines", func() {
		It("should list every valid line", func() {
			c.Fill(0x0000)
			c.Fill(0x1040)

			Expect(c.ResidentLines()).To(ConsistOf(uint64(0x0000), uint64(0x1040)))
		})
	})

	Describe("Reset", func() {
		It("should invalidate everything and clear statistics", func() {
			c.Fill(0x0000)
			c.Lookup(0x0000)

			c.Reset()

			Expect(c.Contains(0x0000)).To(BeFalse())
			Expect(c.Stats()).To(Equal(cache.Statistics{}))
		})
	})

	Describe("Default configuration", func() {
		It("should create the L1 config", func() {
			config := cache.DefaultL1Config()
			Expect(config.Size).To(Equal(16 * 1024))
			Expect(config.Associativity).To(Equal(4))
			Expect(config.BlockSize).To(Equal(128))
			Expect(config.NumSets()).To(Equal(32))
		})
	})
})
