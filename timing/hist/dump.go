package hist

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// EntrySnapshot is a copy of one directory entry for inspection.
type EntrySnapshot struct {
	Index          int    `json:"index"`
	Set            int    `json:"set"`
	Way            int    `json:"way"`
	Status         string `json:"status"`
	Key            uint64 `json:"key"`
	Interest       uint64 `json:"interest"`
	Interested     int    `json:"interested"`
	Pending        int    `json:"pending"`
	AllocTime      uint64 `json:"alloc_time"`
	LastAccessTime uint64 `json:"last_access_time"`
	FillTime       uint64 `json:"fill_time"`
}

// DeliverySnapshot is a copy of one queued delivery for inspection.
type DeliverySnapshot struct {
	RequestID string `json:"request_id"`
	Source    int    `json:"source"`
	Addr      uint64 `json:"addr"`
	Home      int    `json:"home"`
	Countdown uint64 `json:"countdown"`
}

// HomeSnapshot copies every entry of home's shard.
func (t *Table) HomeSnapshot(home int) []EntrySnapshot {
	t.mustBeNode(home)

	s := t.shards[home]
	s.Lock()
	defer s.Unlock()

	out := make([]EntrySnapshot, len(s.entries))
	for i := range s.entries {
		e := &s.entries[i]
		out[i] = EntrySnapshot{
			Index:          i,
			Set:            i / s.assoc,
			Way:            i % s.assoc,
			Status:         e.status.String(),
			Key:            e.key,
			Interest:       e.interest,
			Interested:     e.interestCount(),
			Pending:        e.pendingCount(),
			AllocTime:      e.allocTime,
			LastAccessTime: e.lastAccessTime,
			FillTime:       e.fillTime,
		}
	}

	return out
}

// QueueSnapshot copies node's delivery queue in enqueue order.
func (t *Table) QueueSnapshot(node int) []DeliverySnapshot {
	t.mustBeNode(node)

	items := t.queues[node].snapshot()
	out := make([]DeliverySnapshot, len(items))
	for i, d := range items {
		out[i] = DeliverySnapshot{
			RequestID: d.req.ID,
			Source:    d.req.Source,
			Addr:      d.req.Addr,
			Home:      d.home,
			Countdown: d.countdown,
		}
	}

	return out
}

// DumpHome writes home's shard as a table. Invalid entries are skipped
// unless all is set.
func (t *Table) DumpHome(w io.Writer, home int, all bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', tabwriter.AlignRight)

	fmt.Fprintf(tw, "idx\tset\tway\tstatus\tkey\tmask\tpending\tlast\t\n")
	for _, e := range t.HomeSnapshot(home) {
		if e.Status == Invalid.String() && !all {
			continue
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%#x\t%#x\t%d\t%d\t\n",
			e.Index, e.Set, e.Way, e.Status, e.Key, e.Interest,
			e.Pending, e.LastAccessTime)
	}

	return tw.Flush()
}

// DumpQueue writes node's delivery queue as a table.
func (t *Table) DumpQueue(w io.Writer, node int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', tabwriter.AlignRight)

	fmt.Fprintf(tw, "request\tsource\taddr\thome\tcountdown\t\n")
	for _, d := range t.QueueSnapshot(node) {
		fmt.Fprintf(tw, "%s\t%d\t%#x\t%d\t%d\t\n",
			d.RequestID, d.Source, d.Addr, d.Home, d.Countdown)
	}

	return tw.Flush()
}
