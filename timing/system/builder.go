package system

import (
	"fmt"
	"log"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/histsim/timing/config"
	"github.com/sarchlab/histsim/timing/core"
	"github.com/sarchlab/histsim/timing/hist"
)

// Builder can build Systems.
type Builder struct {
	engine  sim.Engine
	config  *config.Config
	hooks   []sim.Hook
	verbose bool
}

// MakeBuilder creates a Builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		config: config.Default(),
	}
}

// WithEngine sets the engine. A serial engine is created if none is given.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithConfig sets the configuration.
func (b Builder) WithConfig(c *config.Config) Builder {
	b.config = c
	return b
}

// WithDirectoryHook attaches a hook to the directory, such as a recorder.
func (b Builder) WithDirectoryHook(h sim.Hook) Builder {
	b.hooks = append(append([]sim.Hook(nil), b.hooks...), h)
	return b
}

// WithVerbose turns on per-request logging.
func (b Builder) WithVerbose(verbose bool) Builder {
	b.verbose = verbose
	return b
}

// Build creates a System. The configuration must be valid.
func (b Builder) Build(name string) *System {
	if err := b.config.Validate(); err != nil {
		log.Panicf("system: invalid config: %v", err)
	}

	engine := b.engine
	if engine == nil {
		engine = sim.NewSerialEngine()
	}

	mapper, _ := b.config.Mapper()
	policy, _ := b.config.AdmissionPolicy()

	s := &System{
		name:      name,
		engine:    engine,
		freq:      sim.Freq(b.config.FreqGHz) * sim.GHz,
		config:    b.config.Clone(),
		collector: hist.NewStatsCollector(),
	}

	tb := hist.MakeBuilder().
		WithMapper(mapper).
		WithPolicy(policy).
		WithAssociativity(b.config.Associativity).
		WithBaseDelay(b.config.BaseDelay).
		WithSink(s).
		WithHook(s.collector)
	for _, h := range b.hooks {
		tb = tb.WithHook(h)
	}
	s.table = tb.Build(name + ".Directory")

	s.nodes = make([]*core.Node, b.config.NodeCount)
	for i := range s.nodes {
		s.nodes[i] = core.NewNode(
			fmt.Sprintf("%s.Node[%d]", name, i),
			engine,
			s.freq,
			s.table,
			core.Config{
				ID:             i,
				L1:             b.config.L1Config(),
				MemoryLatency:  b.config.MemoryLatency,
				MaxOutstanding: b.config.MaxOutstanding,
				Verbose:        b.verbose,
			},
		)
	}
	for _, n := range s.nodes {
		n.SetPeers(s.nodes)
	}

	return s
}
