package hist

import (
	"log"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/histsim/timing/addrmap"
	"github.com/sarchlab/histsim/timing/topology"
)

// Builder can build Tables.
type Builder struct {
	mapper    *addrmap.Mapper
	policy    topology.Policy
	assoc     int
	baseDelay uint64
	sink      ResponseSink
	hooks     []sim.Hook
}

// MakeBuilder creates a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		assoc:     4,
		baseDelay: 4,
	}
}

// WithMapper sets the address mapper. The mapper's node count decides the
// number of home shards and its set count the number of sets per shard.
func (b Builder) WithMapper(m addrmap.Mapper) Builder {
	b.mapper = &m
	return b
}

// WithPolicy sets the admission policy.
func (b Builder) WithPolicy(p topology.Policy) Builder {
	b.policy = p
	return b
}

// WithAssociativity sets the number of ways per set.
func (b Builder) WithAssociativity(assoc int) Builder {
	b.assoc = assoc
	return b
}

// WithBaseDelay sets the delivery delay added on top of the network
// distance for remote requesters.
func (b Builder) WithBaseDelay(cycles uint64) Builder {
	b.baseDelay = cycles
	return b
}

// WithSink sets where delivered and retried requests go.
func (b Builder) WithSink(sink ResponseSink) Builder {
	b.sink = sink
	return b
}

// WithHook attaches a hook, such as a StatsCollector, to the built table.
func (b Builder) WithHook(h sim.Hook) Builder {
	b.hooks = append(append([]sim.Hook(nil), b.hooks...), h)
	return b
}

// Build creates a Table.
func (b Builder) Build(name string) *Table {
	b.mustBeValid()

	t := &Table{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		mapper:       *b.mapper,
		policy:       b.policy,
		baseDelay:    b.baseDelay,
		sink:         b.sink,
	}

	n := b.mapper.NodeCount()
	sets := int(b.mapper.SetCount())
	t.shards = make([]*shard, n)
	t.queues = make([]*deliveryQueue, n)
	for i := 0; i < n; i++ {
		t.shards[i] = newShard(i, sets, b.assoc, b.policy.Slots())
		t.queues[i] = newDeliveryQueue(i)
	}

	for _, h := range b.hooks {
		t.AcceptHook(h)
	}

	return t
}

func (b Builder) mustBeValid() {
	if b.mapper == nil {
		log.Panic("hist: address mapper is not set")
	}
	if b.policy == nil {
		log.Panic("hist: admission policy is not set")
	}
	if b.sink == nil {
		log.Panic("hist: response sink is not set")
	}
	if b.assoc < 1 {
		log.Panicf("hist: associativity must be >= 1, got %d", b.assoc)
	}
	if b.baseDelay < 1 {
		log.Panicf("hist: base delay must be >= 1, got %d", b.baseDelay)
	}
	if b.policy.Slots() > topology.MaxSlots {
		log.Panicf("hist: %d interest slots exceed the %d-bit mask",
			b.policy.Slots(), topology.MaxSlots)
	}
}
