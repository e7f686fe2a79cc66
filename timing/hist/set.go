package hist

import "sync"

// shard is the directory owned by one home node: sets x associativity
// entries stored contiguously, set-major.
type shard struct {
	sync.Mutex

	home    int
	assoc   int
	entries []entry

	// version advances on every mutation so stale classifications can be
	// detected.
	version uint64
}

func newShard(home, sets, assoc, slots int) *shard {
	s := &shard{
		home:    home,
		assoc:   assoc,
		entries: make([]entry, sets*assoc),
	}

	for i := range s.entries {
		s.entries[i] = newEntry(slots)
	}

	return s
}

// probe looks tag up in set. On a hit it returns the hit entry. Otherwise it
// returns the first invalid way, or the best ready victim, or Full.
//
// Victims are ready lines with fewer than maxEvictableInterest interested
// requesters, ranked by interested count and then by least recent access.
// Waiting lines are never victims.
func (s *shard) probe(set int, tag uint64) (Outcome, int) {
	base := set * s.assoc
	invalid, victim := -1, -1

	for way := 0; way < s.assoc; way++ {
		idx := base + way
		e := &s.entries[idx]

		if e.status != Invalid && e.key == tag {
			if e.status == Wait {
				return HitWait, idx
			}
			return HitReady, idx
		}

		switch e.status {
		case Invalid:
			if invalid < 0 {
				invalid = idx
			}
		case Ready:
			if e.interestCount() >= maxEvictableInterest {
				continue
			}
			if victim < 0 || s.betterVictim(e, &s.entries[victim]) {
				victim = idx
			}
		}
	}

	switch {
	case invalid >= 0:
		return Miss, invalid
	case victim >= 0:
		return Miss, victim
	default:
		return Full, -1
	}
}

func (s *shard) betterVictim(a, b *entry) bool {
	ca, cb := a.interestCount(), b.interestCount()
	if ca != cb {
		return ca < cb
	}

	return a.lastAccessTime < b.lastAccessTime
}

// allocate overwrites idx with a waiting line. If the slot held a ready line
// it is evicted; the evicted key and any request still queued on it are
// returned.
func (s *shard) allocate(idx int, tag, now uint64) (evicted bool, evictedKey uint64, stranded []*Request) {
	e := &s.entries[idx]
	if e.status != Invalid {
		evicted = true
		evictedKey = e.key
		stranded = e.reset()
	}

	e.status = Wait
	e.key = tag
	e.interest = 0
	e.allocTime = now
	e.lastAccessTime = now
	e.fillTime = 0
	s.version++

	return evicted, evictedKey, stranded
}

// ready fills a waiting line and returns the requests that were waiting on
// it, in slot order.
func (s *shard) ready(idx int, now uint64) []*Request {
	e := &s.entries[idx]
	e.status = Ready
	e.lastAccessTime = now
	e.fillTime = now
	s.version++

	return e.takePending()
}

func (s *shard) addInterest(idx, slot int, now uint64) {
	e := &s.entries[idx]
	e.interest |= uint64(1) << uint(slot)
	e.lastAccessTime = now
	s.version++
}

func (s *shard) enqueuePending(idx, slot int, req *Request) {
	e := &s.entries[idx]
	e.pending[slot] = append(e.pending[slot], req)
	s.version++
}

// removeInterest clears slot's bit. Requests the slot still had pending are
// returned, and when the mask becomes empty the entry is freed and whatever
// else it held is returned too.
func (s *shard) removeInterest(idx, slot int) (freed bool, stranded []*Request) {
	e := &s.entries[idx]
	e.interest &^= uint64(1) << uint(slot)
	stranded = e.takeSlot(slot)

	if e.interest == 0 {
		freed = true
		stranded = append(stranded, e.reset()...)
	}
	s.version++

	return freed, stranded
}

func (s *shard) touch(idx int, now uint64) {
	s.entries[idx].lastAccessTime = now
	s.version++
}
