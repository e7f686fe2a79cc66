package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
	"github.com/spf13/cobra"

	"github.com/sarchlab/histsim/loader"
	"github.com/sarchlab/histsim/monitoring"
	"github.com/sarchlab/histsim/recording"
	"github.com/sarchlab/histsim/timing/config"
	"github.com/sarchlab/histsim/timing/system"
)

type runOptions struct {
	configPath string
	envFiles   []string
	tracePath  string

	synthetic loader.SyntheticParams

	record   bool
	recordDB string

	monitor     bool
	monitorPort int
	openBrowser bool

	dumpHome int
	verbose  bool
}

func newRunCmd() *cobra.Command {
	opts := runOptions{
		synthetic: loader.DefaultSyntheticParams(),
	}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation.",
		Long: "`run --trace <file>` replays a trace with one \"<node> <address>\" " +
			"access per line. Without --trace a synthetic workload is generated.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulation(opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Path to configuration JSON file")
	f.StringSliceVar(&opts.envFiles, "env", []string{".env"}, "Optional .env files")
	f.StringVar(&opts.tracePath, "trace", "", "Path to access trace")
	f.IntVar(&opts.synthetic.AccessesPerNode, "accesses", opts.synthetic.AccessesPerNode,
		"Synthetic accesses per node")
	f.IntVar(&opts.synthetic.HotLines, "hot-lines", opts.synthetic.HotLines,
		"Synthetic lines shared by all nodes")
	f.Float64Var(&opts.synthetic.HotFraction, "hot-fraction", opts.synthetic.HotFraction,
		"Share of synthetic accesses going to the hot lines")
	f.IntVar(&opts.synthetic.FootprintLines, "footprint", opts.synthetic.FootprintLines,
		"Synthetic background footprint in lines")
	f.Int64Var(&opts.synthetic.Seed, "seed", opts.synthetic.Seed, "Synthetic workload seed")
	f.BoolVar(&opts.record, "record", false, "Record directory events to SQLite")
	f.StringVar(&opts.recordDB, "record-db", "", "Recording database name, without extension")
	f.BoolVar(&opts.monitor, "monitor", false, "Serve the simulation state over HTTP")
	f.IntVar(&opts.monitorPort, "monitor-port", 0, "Monitoring port, random if 0")
	f.BoolVar(&opts.openBrowser, "open-browser", false, "Open the monitor in a browser")
	f.IntVar(&opts.dumpHome, "dump-home", -1, "Dump one home directory after the run")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")

	return cmd
}

func runSimulation(opts runOptions, out io.Writer) error {
	cfg, err := loadConfig(opts.configPath, opts.envFiles)
	if err != nil {
		return err
	}

	if opts.dumpHome >= cfg.NodeCount {
		return fmt.Errorf("--dump-home %d: only %d nodes", opts.dumpHome, cfg.NodeCount)
	}

	trace, err := loadTrace(opts, cfg)
	if err != nil {
		return err
	}

	streams, err := trace.Streams(cfg.NodeCount)
	if err != nil {
		return err
	}

	builder := system.MakeBuilder().
		WithConfig(cfg).
		WithVerbose(opts.verbose)

	var recorder *recording.Recorder
	if opts.record {
		recorder, err = recording.New(opts.recordDB)
		if err != nil {
			return err
		}
		builder = builder.WithDirectoryHook(recorder)
	}

	sys := builder.Build("HIST")
	if err := sys.SetStreams(streams); err != nil {
		return err
	}

	if opts.monitor {
		url, err := monitoring.NewMonitor(sys).
			WithPortNumber(opts.monitorPort).
			StartServer()
		if err != nil {
			return err
		}

		if opts.openBrowser {
			if err := monitoring.OpenBrowser(url); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to open browser: %v\n", err)
			}
		}
	}

	if opts.verbose {
		log.Printf("running %d accesses on %d nodes", trace.Len(), cfg.NodeCount)
	}

	start := time.Now()
	if err := sys.Run(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	report := sys.Report()
	printReport(out, cfg, report, elapsed)

	if recorder != nil {
		recordReport(recorder, report)
		if err := recorder.Close(); err != nil {
			return err
		}
	}

	if opts.dumpHome >= 0 {
		fmt.Fprintf(out, "\nHome %d:\n", opts.dumpHome)
		if err := sys.Table().DumpHome(out, opts.dumpHome, false); err != nil {
			return err
		}
	}

	return nil
}

func loadTrace(opts runOptions, cfg *config.Config) (*loader.Trace, error) {
	if opts.tracePath != "" {
		return loader.Load(opts.tracePath)
	}

	params := opts.synthetic
	params.NodeCount = cfg.NodeCount
	params.LineSize = uint64(cfg.LineSize)

	return loader.Generate(params)
}

func printReport(
	out io.Writer,
	cfg *config.Config,
	r system.Report,
	elapsed time.Duration,
) {
	t := r.Total

	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "Nodes: %d, policy: %s\n", cfg.NodeCount, cfg.Policy)
	fmt.Fprintf(out, "Total Cycles: %d\n", r.Cycles)
	fmt.Fprintf(out, "Accesses: %d\n", t.Accesses)
	fmt.Fprintf(out, "L1 hits: %d, misses: %d\n", t.L1Hits, t.L1Misses)
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "Misses:\n")
	fmt.Fprintf(out, "  Allocated:    %6d (%5.1f%%)\n", t.HomeMisses, percent(t.HomeMisses, t.L1Misses))
	fmt.Fprintf(out, "  Coalesced:    %6d (%5.1f%%)\n", t.Coalesced, percent(t.Coalesced, t.L1Misses))
	fmt.Fprintf(out, "  Full:         %6d (%5.1f%%)\n", t.Fulls, percent(t.Fulls, t.L1Misses))
	fmt.Fprintf(out, "  Out of range: %6d (%5.1f%%)\n", t.OutOfRanges, percent(t.OutOfRanges, t.L1Misses))
	fmt.Fprintf(out, "  Retried:      %6d\n", t.Retries)
	fmt.Fprintf(out, "  Avg latency:  %.2f cycles\n", r.AverageMissLatency())
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "Directory:\n")
	fmt.Fprintf(out, "  Evictions:  %d\n", r.Directory.Evictions)
	fmt.Fprintf(out, "  Releases:   %d (%d freed)\n", r.Directory.Releases, r.Directory.Frees)
	fmt.Fprintf(out, "  Deliveries: %d\n", r.Directory.Deliveries)
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "Wall time: %s\n", elapsed.Round(time.Millisecond))

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil {
			fmt.Fprintf(out, "Memory (RSS): %.1f MB\n", float64(mem.RSS)/(1<<20))
		}
	}
}

func percent(part, total uint64) float64 {
	if total == 0 {
		return 0
	}

	return 100.0 * float64(part) / float64(total)
}

func recordReport(rec *recording.Recorder, r system.Report) {
	rec.RecordSummary("cycles", float64(r.Cycles))
	rec.RecordSummary("accesses", float64(r.Total.Accesses))
	rec.RecordSummary("l1_misses", float64(r.Total.L1Misses))
	rec.RecordSummary("home_misses", float64(r.Total.HomeMisses))
	rec.RecordSummary("coalesced", float64(r.Total.Coalesced))
	rec.RecordSummary("direct_misses", float64(r.Total.DirectMisses()))
	rec.RecordSummary("retries", float64(r.Total.Retries))
	rec.RecordSummary("avg_miss_latency", r.AverageMissLatency())
}
