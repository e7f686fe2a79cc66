package loader_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/histsim/loader"
)

var _ = Describe("Trace Loader", func() {
	Describe("Parse", func() {
		It("should read decimal and hex addresses", func() {
			trace, err := loader.Parse(strings.NewReader("0 4096\n3 0x1f40\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(trace.Accesses).To(Equal([]loader.Access{
				{Node: 0, Addr: 4096},
				{Node: 3, Addr: 0x1f40},
			}))
		})

		It("should skip comments and blank lines", func() {
			input := `# header
1 0x80   # trailing comment

   
2 0x100
`
			trace, err := loader.Parse(strings.NewReader(input))
			Expect(err).NotTo(HaveOccurred())
			Expect(trace.Len()).To(Equal(2))
			Expect(trace.MaxNode()).To(Equal(2))
		})

		It("should reject lines with the wrong number of fields", func() {
			_, err := loader.Parse(strings.NewReader("1 0x80 extra\n"))
			Expect(err).To(MatchError(ContainSubstring("line 1")))
		})

		It("should reject negative nodes", func() {
			_, err := loader.Parse(strings.NewReader("0 0x0\n-1 0x80\n"))
			Expect(err).To(MatchError(ContainSubstring("line 2")))
		})

		It("should reject malformed addresses", func() {
			_, err := loader.Parse(strings.NewReader("1 0xZZ\n"))
			Expect(err).To(MatchError(ContainSubstring("invalid address")))
		})

		It("should report -1 as the max node of an empty trace", func() {
			trace, err := loader.Parse(strings.NewReader(""))
			Expect(err).NotTo(HaveOccurred())
			Expect(trace.MaxNode()).To(Equal(-1))
		})
	})

	Describe("Streams", func() {
		It("should split accesses per node in order", func() {
			trace := &loader.Trace{Accesses: []loader.Access{
				{Node: 1, Addr: 0x10},
				{Node: 0, Addr: 0x20},
				{Node: 1, Addr: 0x30},
			}}

			streams, err := trace.Streams(3)
			Expect(err).NotTo(HaveOccurred())
			Expect(streams[0]).To(Equal([]uint64{0x20}))
			Expect(streams[1]).To(Equal([]uint64{0x10, 0x30}))
			Expect(streams[2]).To(BeEmpty())
		})

		It("should reject nodes beyond the system", func() {
			trace := &loader.Trace{Accesses: []loader.Access{{Node: 4, Addr: 0}}}

			_, err := trace.Streams(4)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Load", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "trace-loader-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("should read back a written trace", func() {
			original := &loader.Trace{Accesses: []loader.Access{
				{Node: 2, Addr: 0xdead00},
				{Node: 0, Addr: 64},
			}}

			var buf bytes.Buffer
			Expect(original.Write(&buf)).To(Succeed())

			path := filepath.Join(tempDir, "trace.txt")
			Expect(os.WriteFile(path, buf.Bytes(), 0644)).To(Succeed())

			loaded, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(original))
		})

		It("should return error for nonexistent file", func() {
			_, err := loader.Load(filepath.Join(tempDir, "missing.txt"))
			Expect(err).To(HaveOccurred())
		})
	})
})
