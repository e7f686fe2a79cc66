// Command benchmark runs the HIST workload harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	--csv       Output results in CSV format (default: human-readable)
//	--json      Output results in JSON format
//	--core      Run only the three core workloads
//	--config    JSON configuration every workload starts from
//
// Example:
//
//	# Run all workloads with human-readable output
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark --csv > results.csv
package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/histsim/benchmarks"
	"github.com/sarchlab/histsim/timing/config"
)

func main() {
	if err := newBenchmarkCmd().Execute(); err != nil {
		atexit.Fatalf("benchmark: %v", err)
	}
	atexit.Exit(0)
}

func newBenchmarkCmd() *cobra.Command {
	var (
		csvOutput  bool
		jsonOutput bool
		coreOnly   bool
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:           "benchmark",
		Short:         "Run the HIST workload harness",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if csvOutput && jsonOutput {
				return fmt.Errorf("--csv and --json are exclusive")
			}

			c := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				c = loaded
			}
			if err := c.Validate(); err != nil {
				return err
			}

			hc := benchmarks.DefaultConfig()
			hc.System = c
			hc.Output = cmd.OutOrStdout()
			hc.Verbose = verbose

			harness := benchmarks.NewHarness(hc)
			if coreOnly {
				harness.AddBenchmarks(benchmarks.GetCoreWorkloads())
			} else {
				harness.AddBenchmarks(benchmarks.GetWorkloads())
			}

			results := harness.RunAll()

			switch {
			case csvOutput:
				harness.PrintCSV(results)
			case jsonOutput:
				return harness.PrintJSON(results)
			default:
				harness.PrintResults(results)
			}

			if s := benchmarks.Summarize(results); s.Failed > 0 {
				return fmt.Errorf("%d of %d workloads did not drain", s.Failed, s.TotalBenchmarks)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&csvOutput, "csv", false, "Output results in CSV format")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results in JSON format")
	cmd.Flags().BoolVar(&coreOnly, "core", false, "Run only the core workloads")
	cmd.Flags().StringVar(&configPath, "config", "", "JSON configuration file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every request")

	return cmd
}
