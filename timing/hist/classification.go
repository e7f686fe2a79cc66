package hist

// Outcome is the result of classifying a request against the directory.
type Outcome int

// Classification outcomes.
const (
	// Miss means no entry holds the line and a slot is available, either
	// invalid or an evictable ready line.
	Miss Outcome = iota

	// HitWait means the line is allocated and its fill is still pending.
	HitWait

	// HitReady means the line has been filled.
	HitReady

	// Full means no slot in the set can be reserved. The request must be
	// serviced as an uncoalesced miss.
	Full

	// OutOfRange means the requester is not admissible for the line's home.
	// The request must bypass coalescing.
	OutOfRange
)

func (o Outcome) String() string {
	switch o {
	case Miss:
		return "miss"
	case HitWait:
		return "hit-wait"
	case HitReady:
		return "hit-ready"
	case Full:
		return "full"
	case OutOfRange:
		return "out-of-range"
	default:
		return "unknown"
	}
}

// Classification captures one probe of the directory. Mutating operations
// take the classification instead of probing again, so the slot they act on
// is exactly the one the caller saw. A classification becomes stale as soon
// as any other mutation touches the same home shard.
type Classification struct {
	// Outcome is the admission-filtered result.
	Outcome Outcome

	// Probe is the raw directory result, before admission filtering.
	Probe Outcome

	// Requester is the classified node, or -1 for a home-side lookup.
	Requester int

	Addr uint64
	Home int
	Set  int
	Tag  uint64

	// Index is the entry inside the home shard, -1 when Probe is Full.
	Index int

	// Slot is the requester's interest slot, or topology.NoSlot.
	Slot int

	// Interested reports whether the requester's interest bit is already
	// set on the hit entry.
	Interested bool

	version uint64
}

// IsHit reports whether the directory holds the line.
func (c Classification) IsHit() bool {
	return c.Probe == HitWait || c.Probe == HitReady
}
