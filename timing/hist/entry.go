package hist

import "math/bits"

// Status is the protocol state of a directory entry.
type Status int

// Entry states. An entry moves Invalid -> Wait -> Ready -> Invalid only.
const (
	Invalid Status = iota
	Wait
	Ready
)

func (s Status) String() string {
	switch s {
	case Invalid:
		return "invalid"
	case Wait:
		return "wait"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// maxEvictableInterest is the interested-requester count at which a ready
// line stops being a replacement candidate.
const maxEvictableInterest = 2

// entry is a value slot inside a home shard. Entries are never allocated on
// their own; allocation overwrites a slot and freeing resets it.
type entry struct {
	status   Status
	key      uint64
	interest uint64

	allocTime      uint64
	lastAccessTime uint64
	fillTime       uint64

	// pending holds one FIFO per interest slot. The outer slice is sized
	// once at construction.
	pending [][]*Request
}

func newEntry(slots int) entry {
	return entry{pending: make([][]*Request, slots)}
}

func (e *entry) interestCount() int {
	return bits.OnesCount64(e.interest)
}

func (e *entry) hasInterest(slot int) bool {
	return e.interest&(uint64(1)<<uint(slot)) != 0
}

func (e *entry) pendingCount() int {
	n := 0
	for _, q := range e.pending {
		n += len(q)
	}

	return n
}

// takePending empties every pending FIFO and returns their requests in slot
// order, FIFO within each slot.
func (e *entry) takePending() []*Request {
	var out []*Request
	for slot, q := range e.pending {
		if len(q) == 0 {
			continue
		}
		out = append(out, q...)
		clear(q)
		e.pending[slot] = q[:0]
	}

	return out
}

func (e *entry) takeSlot(slot int) []*Request {
	q := e.pending[slot]
	if len(q) == 0 {
		return nil
	}

	out := append([]*Request(nil), q...)
	clear(q)
	e.pending[slot] = q[:0]

	return out
}

// reset frees the slot and returns any request that was still pending.
func (e *entry) reset() []*Request {
	stranded := e.takePending()

	e.status = Invalid
	e.key = 0
	e.interest = 0
	e.allocTime = 0
	e.lastAccessTime = 0
	e.fillTime = 0

	return stranded
}
