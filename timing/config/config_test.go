package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/histsim/timing/config"
	"github.com/sarchlab/histsim/timing/topology"
)

var _ = Describe("Config", func() {
	Describe("Default", func() {
		It("should be valid", func() {
			Expect(config.Default().Validate()).To(Succeed())
		})

		It("should use the width policy", func() {
			p, err := config.Default().AdmissionPolicy()
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name()).To(Equal("width"))
			Expect(p.Slots()).To(Equal(5))
		})
	})

	Describe("Validate", func() {
		var c *config.Config

		BeforeEach(func() {
			c = config.Default()
		})

		It("should reject a line size that is not a power of two", func() {
			c.LineSize = 48
			Expect(c.Validate()).To(MatchError(ContainSubstring("line size")))
		})

		It("should reject a set count that is not a power of two", func() {
			c.SetCount = 3
			Expect(c.Validate()).To(MatchError(ContainSubstring("set count")))
		})

		It("should reject zero associativity", func() {
			c.Associativity = 0
			Expect(c.Validate()).To(MatchError(ContainSubstring("associativity")))
		})

		It("should reject an unknown policy", func() {
			c.Policy = "nearest"
			Expect(c.Validate()).To(MatchError(ContainSubstring("unknown policy")))
		})

		It("should reject a range policy over too many nodes", func() {
			c.Policy = config.PolicyRange
			c.NodeCount = 100
			Expect(c.Validate()).To(MatchError(ContainSubstring("range policy")))
		})

		It("should reject a zero base delay", func() {
			c.BaseDelay = 0
			Expect(c.Validate()).To(MatchError(ContainSubstring("base_delay")))
		})

		It("should reject a zero memory latency", func() {
			c.MemoryLatency = 0
			Expect(c.Validate()).To(MatchError(ContainSubstring("memory_latency")))
		})

		It("should reject an L1 that does not divide into sets", func() {
			c.L1Size = 1000
			Expect(c.Validate()).To(MatchError(ContainSubstring("l1_size")))
		})

		It("should reject zero outstanding requests", func() {
			c.MaxOutstanding = 0
			Expect(c.Validate()).To(MatchError(ContainSubstring("max_outstanding")))
		})

		It("should reject a non-positive frequency", func() {
			c.FreqGHz = 0
			Expect(c.Validate()).To(MatchError(ContainSubstring("freq_ghz")))
		})
	})

	Describe("Derived components", func() {
		It("should build the mapper", func() {
			c := config.Default()
			m, err := c.Mapper()
			Expect(err).NotTo(HaveOccurred())
			Expect(m.LineSize()).To(Equal(uint64(64)))
			Expect(m.SetCount()).To(Equal(uint64(64)))
			Expect(m.NodeCount()).To(Equal(16))
		})

		It("should build the range policy", func() {
			c := config.Default()
			c.Policy = config.PolicyRange
			p, err := c.AdmissionPolicy()
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(BeAssignableToTypeOf(&topology.RangePolicy{}))
			Expect(p.Slots()).To(Equal(16))
		})

		It("should build the L1 config with the shared line size", func() {
			c := config.Default()
			l1 := c.L1Config()
			Expect(l1.Size).To(Equal(16 * 1024))
			Expect(l1.Associativity).To(Equal(4))
			Expect(l1.BlockSize).To(Equal(64))
			Expect(l1.HitLatency).To(Equal(uint64(1)))
		})
	})

	Describe("Clone", func() {
		It("should not share state with the original", func() {
			c := config.Default()
			clone := c.Clone()
			clone.BaseDelay = 9

			Expect(c.BaseDelay).To(Equal(uint64(4)))
			Expect(clone.LineSize).To(Equal(c.LineSize))
		})
	})

	Describe("File operations", func() {
		var tmpDir string

		BeforeEach(func() {
			var err error
			tmpDir, err = os.MkdirTemp("", "config-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			os.RemoveAll(tmpDir)
		})

		It("should save and load a config", func() {
			path := filepath.Join(tmpDir, "hist.json")

			original := config.Default()
			original.NodeCount = 9
			original.Policy = config.PolicyRange
			original.AdmissionRange = 4
			original.BaseDelay = 6

			Expect(original.Save(path)).To(Succeed())

			loaded, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(original))
		})

		It("should keep defaults for absent fields", func() {
			path := filepath.Join(tmpDir, "partial.json")
			Expect(os.WriteFile(path, []byte(`{"node_count": 4}`), 0644)).To(Succeed())

			loaded, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.NodeCount).To(Equal(4))
			Expect(loaded.BaseDelay).To(Equal(uint64(4)))
			Expect(loaded.Policy).To(Equal(config.PolicyWidth))
		})

		It("should return error for nonexistent file", func() {
			_, err := config.Load("/nonexistent/path/config.json")
			Expect(err).To(HaveOccurred())
		})

		It("should return error for invalid JSON", func() {
			path := filepath.Join(tmpDir, "invalid.json")
			Expect(os.WriteFile(path, []byte("not valid json"), 0644)).To(Succeed())

			_, err := config.Load(path)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ApplyEnv", func() {
		var tmpDir string

		BeforeEach(func() {
			var err error
			tmpDir, err = os.MkdirTemp("", "config-env-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			os.RemoveAll(tmpDir)
			for _, name := range []string{
				"HIST_NODE_COUNT", "HIST_BASE_DELAY", "HIST_POLICY",
				"HIST_FREQ_GHZ", "HIST_ADMISSION_RANGE",
			} {
				os.Unsetenv(name)
			}
		})

		It("should apply overrides from the environment", func() {
			os.Setenv("HIST_NODE_COUNT", "25")
			os.Setenv("HIST_BASE_DELAY", "7")
			os.Setenv("HIST_POLICY", "range")
			os.Setenv("HIST_FREQ_GHZ", "2.5")

			c := config.Default()
			Expect(c.ApplyEnv()).To(Succeed())

			Expect(c.NodeCount).To(Equal(25))
			Expect(c.BaseDelay).To(Equal(uint64(7)))
			Expect(c.Policy).To(Equal(config.PolicyRange))
			Expect(c.FreqGHz).To(Equal(2.5))
		})

		It("should read .env files and skip missing ones", func() {
			path := filepath.Join(tmpDir, ".env")
			Expect(os.WriteFile(path,
				[]byte("HIST_ADMISSION_RANGE=3\n"), 0644)).To(Succeed())

			c := config.Default()
			Expect(c.ApplyEnv(filepath.Join(tmpDir, "missing.env"), path)).
				To(Succeed())

			Expect(c.AdmissionRange).To(Equal(3))
		})

		It("should reject malformed numbers", func() {
			os.Setenv("HIST_BASE_DELAY", "soon")

			c := config.Default()
			Expect(c.ApplyEnv()).To(MatchError(ContainSubstring("HIST_BASE_DELAY")))
		})
	})
})
