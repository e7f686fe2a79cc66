// Package main provides a profiling wrapper for histsim to identify
// performance bottlenecks of the simulator itself.
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"sort"
	"time"

	"github.com/google/pprof/profile"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/histsim/loader"
	"github.com/sarchlab/histsim/timing/config"
	"github.com/sarchlab/histsim/timing/system"
)

type profileOptions struct {
	configPath string
	cpuProfile string
	memProfile string
	top        int
	synthetic  loader.SyntheticParams
}

func main() {
	if err := newProfileCmd().Execute(); err != nil {
		atexit.Fatalf("profile: %v", err)
	}
	atexit.Exit(0)
}

func newProfileCmd() *cobra.Command {
	opts := profileOptions{
		synthetic: loader.DefaultSyntheticParams(),
		top:       10,
	}

	cmd := &cobra.Command{
		Use:           "profile",
		Short:         "Profile a synthetic simulation run",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProfile(opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Path to configuration JSON file")
	f.StringVar(&opts.cpuProfile, "cpuprofile", "", "write cpu profile to file")
	f.StringVar(&opts.memProfile, "memprofile", "", "write memory profile to file")
	f.IntVar(&opts.top, "top", opts.top, "number of hottest functions to print")
	f.IntVar(&opts.synthetic.AccessesPerNode, "accesses", opts.synthetic.AccessesPerNode,
		"Synthetic accesses per node")
	f.Float64Var(&opts.synthetic.HotFraction, "hot-fraction", opts.synthetic.HotFraction,
		"Share of synthetic accesses going to the hot lines")
	f.Int64Var(&opts.synthetic.Seed, "seed", opts.synthetic.Seed, "Synthetic workload seed")

	return cmd
}

func runProfile(opts profileOptions, out io.Writer) error {
	c := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}
		c = loaded
	}
	if err := c.Validate(); err != nil {
		return err
	}

	params := opts.synthetic
	params.NodeCount = c.NodeCount
	params.LineSize = uint64(c.LineSize)
	trace, err := loader.Generate(params)
	if err != nil {
		return err
	}
	streams, err := trace.Streams(c.NodeCount)
	if err != nil {
		return err
	}

	s := system.MakeBuilder().WithConfig(c).Build("HIST")
	if err := s.SetStreams(streams); err != nil {
		return err
	}

	// The CPU profile is kept in memory so that it can be summarized even
	// when it is not written out.
	cpu := &bytes.Buffer{}
	if err := pprof.StartCPUProfile(cpu); err != nil {
		return fmt.Errorf("failed to start CPU profile: %w", err)
	}

	start := time.Now()
	runErr := s.Run()
	elapsed := time.Since(start)

	pprof.StopCPUProfile()

	if runErr != nil {
		return runErr
	}

	if opts.cpuProfile != "" {
		if err := os.WriteFile(opts.cpuProfile, cpu.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write CPU profile: %w", err)
		}
	}

	if opts.memProfile != "" {
		if err := writeHeapProfile(opts.memProfile); err != nil {
			return err
		}
	}

	r := s.Report()
	fmt.Fprintf(out, "\nProfiling Results:\n")
	fmt.Fprintf(out, "Accesses: %d\n", r.Total.Accesses)
	fmt.Fprintf(out, "Simulated cycles: %d\n", r.Cycles)
	fmt.Fprintf(out, "Elapsed time: %v\n", elapsed)
	if elapsed > 0 {
		fmt.Fprintf(out, "Accesses/second: %.0f\n", float64(r.Total.Accesses)/elapsed.Seconds())
	}

	return printTopFunctions(out, cpu.Bytes(), opts.top)
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create memory profile: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write memory profile: %w", err)
	}

	return nil
}

type funcSample struct {
	name string
	flat int64
}

// printTopFunctions prints the functions with the most flat CPU samples.
func printTopFunctions(out io.Writer, data []byte, top int) error {
	if top <= 0 || len(data) == 0 {
		return nil
	}

	prof, err := profile.ParseData(data)
	if err != nil {
		return fmt.Errorf("failed to parse CPU profile: %w", err)
	}

	flat := make(map[string]int64)
	for _, s := range prof.Sample {
		if len(s.Location) == 0 || len(s.Location[0].Line) == 0 || len(s.Value) == 0 {
			continue
		}
		fn := s.Location[0].Line[0].Function
		if fn == nil {
			continue
		}
		flat[fn.Name] += s.Value[0]
	}

	samples := make([]funcSample, 0, len(flat))
	for name, v := range flat {
		samples = append(samples, funcSample{name: name, flat: v})
	}
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].flat != samples[j].flat {
			return samples[i].flat > samples[j].flat
		}
		return samples[i].name < samples[j].name
	})

	if len(samples) > top {
		samples = samples[:top]
	}

	fmt.Fprintf(out, "\nTop functions (flat samples):\n")
	for _, s := range samples {
		fmt.Fprintf(out, "  %8d  %s\n", s.flat, s.name)
	}

	return nil
}
