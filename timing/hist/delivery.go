package hist

import "sync"

// pendingDelivery is a request waiting for its delivery cycle.
type pendingDelivery struct {
	req       *Request
	home      int
	set       int
	tag       uint64
	countdown uint64
	seq       uint64
}

// deliveryQueue is the per-node countdown queue. Items stay in enqueue
// order, which breaks countdown ties in favour of the oldest item.
type deliveryQueue struct {
	sync.Mutex

	node    int
	items   []pendingDelivery
	nextSeq uint64
}

func newDeliveryQueue(node int) *deliveryQueue {
	return &deliveryQueue{node: node}
}

func (q *deliveryQueue) push(d pendingDelivery) {
	q.Lock()
	defer q.Unlock()

	d.seq = q.nextSeq
	q.nextSeq++
	q.items = append(q.items, d)
}

// advance runs one cycle. Among the items whose countdown is at most
// baseDelay it picks the smallest countdown; if that countdown is 0 or 1 the
// item leaves the queue and is returned. Every item still queued then ages
// by one cycle.
func (q *deliveryQueue) advance(baseDelay uint64) (pendingDelivery, bool) {
	q.Lock()
	defer q.Unlock()

	pick := -1
	for i := range q.items {
		cd := q.items[i].countdown
		if cd > baseDelay {
			continue
		}
		if pick < 0 || cd < q.items[pick].countdown {
			pick = i
		}
	}

	var out pendingDelivery
	found := false
	if pick >= 0 && q.items[pick].countdown <= 1 {
		out = q.items[pick]
		found = true

		copy(q.items[pick:], q.items[pick+1:])
		q.items[len(q.items)-1] = pendingDelivery{}
		q.items = q.items[:len(q.items)-1]
	}

	for i := range q.items {
		if q.items[i].countdown > 0 {
			q.items[i].countdown--
		}
	}

	return out, found
}

func (q *deliveryQueue) len() int {
	q.Lock()
	defer q.Unlock()

	return len(q.items)
}

func (q *deliveryQueue) snapshot() []pendingDelivery {
	q.Lock()
	defer q.Unlock()

	return append([]pendingDelivery(nil), q.items...)
}
