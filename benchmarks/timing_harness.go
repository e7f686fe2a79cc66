// Package benchmarks provides a harness that runs canned workloads through the
// HIST simulator and reports how the directory behaves under each of them.
package benchmarks

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"github.com/sarchlab/histsim/timing/config"
	"github.com/sarchlab/histsim/timing/system"
)

// BenchmarkResult holds the measurements of a single workload run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// Policy is the admission policy the run used
	Policy string `json:"policy"`

	// Nodes is the number of nodes in the system
	Nodes int `json:"nodes"`

	// Timing
	SimulatedCycles uint64  `json:"simulated_cycles"`
	Accesses        uint64  `json:"accesses"`
	L1Misses        uint64  `json:"l1_misses"`
	AvgMissLatency  float64 `json:"avg_miss_latency"`
	StallCycles     uint64  `json:"stall_cycles"`

	// Directory outcomes
	HomeMisses     uint64  `json:"home_misses"`
	Coalesced      uint64  `json:"coalesced"`
	Fulls          uint64  `json:"fulls"`
	OutOfRanges    uint64  `json:"out_of_ranges"`
	Retries        uint64  `json:"retries"`
	Releases       uint64  `json:"releases"`
	Evictions      uint64  `json:"evictions"`
	Deliveries     uint64  `json:"deliveries"`
	CoalescingRate float64 `json:"coalescing_rate"`

	// Error is set when the run did not drain.
	Error string `json:"error,omitempty"`

	// WallTime is the host time spent on the run
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark describes a workload.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Configure adjusts a copy of the harness configuration, may be nil.
	Configure func(c *config.Config)

	// Streams builds one address stream per node.
	Streams func(c *config.Config) ([][]uint64, error)
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// System is the configuration every benchmark starts from.
	System *config.Config

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables per-request logging
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		System:  config.Default(),
		Output:  os.Stdout,
		Verbose: false,
	}
}

// Harness runs workloads and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.System == nil {
		config.System = DefaultConfig().System
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		results = append(results, result)
	}

	return results
}

// runBenchmark executes a single benchmark on a fresh system.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	c := h.config.System.Clone()
	if bench.Configure != nil {
		bench.Configure(c)
	}

	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
		Policy:      c.Policy,
		Nodes:       c.NodeCount,
	}

	if err := c.Validate(); err != nil {
		result.Error = err.Error()
		return result
	}

	streams, err := bench.Streams(c)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	s := system.MakeBuilder().
		WithConfig(c).
		WithVerbose(h.config.Verbose).
		Build(componentName(bench.Name))
	if err := s.SetStreams(streams); err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	if err := s.Run(); err != nil {
		result.Error = err.Error()
	}
	result.WallTime = time.Since(start)

	r := s.Report()
	result.SimulatedCycles = r.Cycles
	result.Accesses = r.Total.Accesses
	result.L1Misses = r.Total.L1Misses
	result.AvgMissLatency = r.AverageMissLatency()
	result.StallCycles = r.Total.StallCycles
	result.HomeMisses = r.Total.HomeMisses
	result.Coalesced = r.Total.Coalesced
	result.Fulls = r.Total.Fulls
	result.OutOfRanges = r.Total.OutOfRanges
	result.Retries = r.Total.Retries
	result.Releases = r.Total.Releases
	result.Evictions = r.Directory.Evictions
	result.Deliveries = r.Directory.Deliveries
	result.CoalescingRate = r.CoalescingRate()

	return result
}

// componentName turns a snake_case benchmark name into a CamelCase name that
// is valid for Akita components, which may not contain underscores.
func componentName(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}

	if b.Len() == 0 {
		return "Bench"
	}

	return b.String()
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== HIST Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Policy: %s, Nodes: %d\n", r.Policy, r.Nodes)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Accesses:             %d\n", r.Accesses)
		_, _ = fmt.Fprintf(h.config.Output, "  L1 Misses:            %d\n", r.L1Misses)
		_, _ = fmt.Fprintf(h.config.Output, "  Avg Miss Latency:     %.2f\n", r.AvgMissLatency)
		_, _ = fmt.Fprintf(h.config.Output, "  Stall Cycles:         %d\n", r.StallCycles)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Directory ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Home Misses:   %d\n", r.HomeMisses)
		_, _ = fmt.Fprintf(h.config.Output, "  Coalesced:     %d\n", r.Coalesced)
		_, _ = fmt.Fprintf(h.config.Output, "  Full:          %d\n", r.Fulls)
		_, _ = fmt.Fprintf(h.config.Output, "  Out of Range:  %d\n", r.OutOfRanges)
		if r.Retries > 0 || r.Releases > 0 {
			_, _ = fmt.Fprintf(h.config.Output, "  Retries:       %d\n", r.Retries)
			_, _ = fmt.Fprintf(h.config.Output, "  Releases:      %d\n", r.Releases)
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Evictions:     %d\n", r.Evictions)
		_, _ = fmt.Fprintf(h.config.Output, "  Deliveries:    %d\n", r.Deliveries)
		_, _ = fmt.Fprintf(h.config.Output, "  Coalescing:    %.1f%%\n", r.CoalescingRate*100)

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,policy,nodes,cycles,accesses,l1_misses,avg_miss_latency,stalls,home_misses,coalesced,fulls,out_of_ranges,retries,releases,evictions,deliveries,error")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%s,%d,%d,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%d,%d,%s\n",
			r.Name,
			r.Policy,
			r.Nodes,
			r.SimulatedCycles,
			r.Accesses,
			r.L1Misses,
			r.AvgMissLatency,
			r.StallCycles,
			r.HomeMisses,
			r.Coalesced,
			r.Fulls,
			r.OutOfRanges,
			r.Retries,
			r.Releases,
			r.Evictions,
			r.Deliveries,
			r.Error,
		)
	}
}

// BenchmarkReport is the JSON output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Config is the base system configuration
	Config *config.Config `json:"config"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Failed is the number of benchmarks that did not drain
	Failed int `json:"failed"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalMisses is the sum of all L1 misses
	TotalMisses uint64 `json:"total_misses"`

	// CoalescingRate is the share of all misses merged onto an entry
	CoalescingRate float64 `json:"coalescing_rate"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Summarize aggregates results.
func Summarize(results []BenchmarkResult) ReportSummary {
	s := ReportSummary{TotalBenchmarks: len(results)}

	var coalesced uint64
	for _, r := range results {
		if r.Error != "" {
			s.Failed++
		}
		s.TotalCycles += r.SimulatedCycles
		s.TotalMisses += r.L1Misses
		s.TotalWallTime += r.WallTime
		coalesced += r.Coalesced
	}

	if s.TotalMisses > 0 {
		s.CoalescingRate = float64(coalesced) / float64(s.TotalMisses)
	}

	return s
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Config:    h.config.System,
		},
		Results: results,
		Summary: Summarize(results),
	}

	data, err := sonnet.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	_, err = fmt.Fprintln(h.config.Output, string(data))
	return err
}
